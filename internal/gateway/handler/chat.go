package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"structai/internal/chat"
	"structai/internal/llm"
)

type chatRequest struct {
	ProjectContext chat.ProjectContext `json:"projectContext"`
	History        []llm.Message       `json:"history"`
}

// Chat answers one turn for a history the caller keeps.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	reply, err := chat.Reply(r.Context(), h.d.Chatter, h.d.Catalog, req.ProjectContext, req.History)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type sessionView struct {
	ID             string              `json:"id"`
	ProjectContext chat.ProjectContext `json:"projectContext"`
	Busy           bool                `json:"busy"`
	Transcript     []chat.Turn         `json:"transcript"`
}

func viewOf(id string, s *chat.Session) sessionView {
	return sessionView{ID: id, ProjectContext: s.Context(), Busy: s.Busy(), Transcript: s.Transcript()}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectContext chat.ProjectContext `json:"projectContext"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, s, err := h.d.Chats.Create(req.ProjectContext)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(id, s))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.d.Chats.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(id, s))
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.d.Chats.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	turn, err := s.Send(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := struct {
		sessionView
		Turn *chat.Turn `json:"turn,omitempty"`
	}{sessionView: viewOf(id, s)}
	if turn.Role != "" {
		out.Turn = &turn
	}
	writeJSON(w, http.StatusOK, out)
}
