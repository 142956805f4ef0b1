package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"structai/internal/history"
)

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	store, err := h.historyFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": store.List()})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	store, err := h.historyFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) PatchHistory(w http.ResponseWriter, r *http.Request) {
	store, err := h.historyFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p history.Patch
	if err := decode(r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := store.Update(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "history entry not found")
		return
	}
	e, err := store.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	store, err := h.historyFor(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := store.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
