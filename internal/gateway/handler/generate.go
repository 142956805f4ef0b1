package handler

import (
	"fmt"
	"net/http"
	"strings"

	"structai/internal/analysis"
	"structai/internal/engineering"
	"structai/internal/history"
)

const (
	analysisPreliminary      = "preliminary"
	analysisConceptualDesign = "conceptualDesign"
)

type generateRequest struct {
	AnalysisType              string `json:"analysisType"`
	ProjectDescription        string `json:"projectDescription"`
	ProjectLocation           string `json:"projectLocation"`
	BuildingCode              string `json:"buildingCode"`
	SuggestedStructuralSystem string `json:"suggestedStructuralSystem"`
	HistoryID                 string `json:"historyId"`
}

type generateResponse struct {
	ID     string          `json:"id"`
	Result analysis.Result `json:"result"`
}

// Generate runs either the preliminary pipeline or the conceptual design.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	switch strings.TrimSpace(req.AnalysisType) {
	case "":
		writeError(w, http.StatusBadRequest, "Analysis type is required")
	case analysisPreliminary:
		h.preliminary(w, r, req)
	case analysisConceptualDesign:
		h.conceptualDesign(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "Invalid analysis type")
	}
}

func (h *Handler) preliminary(w http.ResponseWriter, r *http.Request, req generateRequest) {
	in := analysis.Input{ProjectDescription: req.ProjectDescription, ProjectLocation: req.ProjectLocation}
	state, err := h.d.Pipeline.Run(r.Context(), in, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.record(r, state)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{ID: entry.ID, Result: state.Result})
}

func (h *Handler) record(r *http.Request, state analysis.State) (history.Entry, error) {
	store, err := h.historyFor(r)
	if err != nil {
		return history.Entry{}, err
	}
	return store.Append(r.Context(), historyEntry(state))
}

func historyEntry(state analysis.State) history.Entry {
	return history.Entry{
		ProjectDescription: strings.TrimSpace(state.Input.ProjectDescription),
		ProjectLocation:    strings.TrimSpace(state.Input.ProjectLocation),
		Analysis:           state.Result,
	}
}

func (h *Handler) conceptualDesign(w http.ResponseWriter, r *http.Request, req generateRequest) {
	design, err := h.d.Designer.Design(r.Context(), engineering.DesignInput{
		ProjectDescription: req.ProjectDescription,
		ProjectLocation:    req.ProjectLocation,
		BuildingCode:       req.BuildingCode,
		StructuralSystem:   req.SuggestedStructuralSystem,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.attach(r, req.HistoryID, history.Patch{ConceptualDesign: &design}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, design)
}

type simulateRequest struct {
	engineering.SimulationInput
	HistoryID string `json:"historyId"`
}

func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sim, err := h.d.Designer.Simulate(r.Context(), req.SimulationInput)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.attach(r, req.HistoryID, history.Patch{Simulation: &sim}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// attach merges p into the named history entry. An unknown id is ignored.
func (h *Handler) attach(r *http.Request, id string, p history.Patch) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	store, err := h.historyFor(r)
	if err != nil {
		return err
	}
	ok, err := store.Update(r.Context(), id, p)
	if err != nil {
		return fmt.Errorf("attach to history: %w", err)
	}
	if !ok {
		h.logger.Printf("gateway: history entry %s not found, result not attached", id)
	}
	return nil
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	var in engineering.ExplainInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.d.Tutor.Explain(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	if h.d.Narrator == nil {
		writeError(w, http.StatusServiceUnavailable, "speech synthesis is not configured")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	clip, err := h.d.Narrator.Speak(r.Context(), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clip)
}
