package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/engineering"
	"structai/internal/history"
	"structai/internal/speech"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("gateway: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, analysis.ErrEmptyDescription),
		errors.Is(err, engineering.ErrEmptyDescription),
		errors.Is(err, engineering.ErrInvalidBuildingCode),
		errors.Is(err, engineering.ErrEmptyTopic),
		errors.Is(err, engineering.ErrInvalidLevel),
		errors.Is(err, chat.ErrHistoryRequired),
		errors.Is(err, speech.ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound),
		errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrBusy):
		return http.StatusConflict
	}
	// Upstream model failures land here with everything else.
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json body: %v", errBadRequest, err)
	}
	return nil
}
