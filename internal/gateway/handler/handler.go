// Package handler serves the JSON HTTP API and the pipeline websocket.
package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/engineering"
	"structai/internal/history"
	"structai/internal/prompt"
	"structai/internal/speech"
)

// ClientHeader selects the history slot for a request.
const ClientHeader = "X-Client-ID"

type Deps struct {
	Pipeline *analysis.Pipeline
	Designer *engineering.Designer
	Tutor    *engineering.Tutor
	History  *history.Registry
	Chats    *chat.Manager
	Chatter  chat.Chatter
	Catalog  *prompt.Catalog
	// Narrator is nil when no speech backend is configured.
	Narrator *speech.Narrator
	Logger   *log.Logger
}

type Handler struct {
	d      Deps
	logger *log.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Catalog == nil {
		d.Catalog = prompt.MustDefault()
	}
	return &Handler{d: d, logger: d.Logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", h.Generate)
		r.Post("/simulate", h.Simulate)
		r.Post("/explain", h.Explain)
		r.Post("/speech", h.Speech)

		r.Post("/chat", h.Chat)
		r.Post("/chat/sessions", h.CreateSession)
		r.Get("/chat/sessions/{id}", h.GetSession)
		r.Post("/chat/sessions/{id}/messages", h.SendMessage)

		r.Get("/history", h.ListHistory)
		r.Delete("/history", h.ClearHistory)
		r.Get("/history/{id}", h.GetHistory)
		r.Patch("/history/{id}", h.PatchHistory)

		r.Get("/pipeline/ws", h.PipelineWS)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) historyFor(r *http.Request) (*history.Store, error) {
	return h.d.History.Store(r.Context(), strings.TrimSpace(r.Header.Get(ClientHeader)))
}
