package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// FakeClient returns deterministic, minimal payloads per phase for offline
// runs and tests. It also implements SpeechSynthesizer.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeLLM" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var obj any
	switch PhaseFrom(ctx) {
	case "structural-system":
		obj = map[string]any{"suggestedStructuralSystem": "Reinforced concrete moment frame with shear walls around the cores."}
	case "building-codes":
		obj = map[string]any{"applicableBuildingCodes": "Local building code with ACI 318 for concrete design and ASCE 7 for loads."}
	case "execution-method":
		obj = map[string]any{"executionMethod": "Cast-in-place concrete with climbing formwork for the cores and flying forms for slabs."}
	case "potential-challenges":
		obj = map[string]any{"potentialChallenges": "Hot-weather concreting, tight site logistics and crane scheduling."}
	case "key-focus-areas":
		obj = map[string]any{"keyFocusAreas": "Lateral system design, foundation settlement and curing control."}
	case "academic-references":
		obj = map[string]any{"academicReferences": []any{
			map[string]any{
				"title":      "Design of Concrete Structures",
				"authors":    "Nilson, Darwin, Dolan",
				"note":       "Reference text for reinforced concrete member design.",
				"searchLink": "https://scholar.google.com/scholar?q=Design+of+Concrete+Structures",
			},
		}}
	case "conceptual-design":
		obj = map[string]any{
			"structuralSystemSuggestion": "Reinforced concrete frame with shear walls.",
			"columnCrossSection":         "60 x 60 cm",
			"beamCrossSection":           "30 x 60 cm",
			"foundationDesign":           "Raft foundation, 1.2 m thick.",
			"deadLoad":                   "6.5 kN/m2",
			"liveLoad":                   "2.0 kN/m2",
			"windLoad":                   "1.1 kN/m2",
			"seismicLoad":                "Base shear 4% of seismic weight.",
			"columnWidth":                60,
			"columnHeight":               300,
		}
	case "simulation":
		obj = map[string]any{
			"summary": "Forces are within typical limits for the assumed sections.",
			"analysisResults": []any{
				map[string]any{"element": "Ground floor column C1", "moment": 85.5, "shear": 42.0, "axial": 2150.0},
				map[string]any{"element": "Typical beam B1", "moment": 120.0, "shear": 95.0, "axial": 0.0},
			},
		}
	case "explain":
		obj = map[string]any{
			"explanation":  "A shear wall is a vertical element that resists lateral loads in its own plane.",
			"references":   []string{"ACI 318 Chapter 18"},
			"projectIdeas": []string{"Build a cardboard model and compare drift with and without walls."},
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

// Chat answers with a canned reply that quotes the last user turn.
func (f *FakeClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	last := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			last = strings.TrimSpace(history[i].Content)
			break
		}
	}
	if last == "" {
		return "", ErrEmptyReply
	}
	return fmt.Sprintf("Regarding %q: based on the project context, review the lateral system and the governing code provisions.", last), nil
}

// SynthesizeSpeech returns a short block of silence.
func (f *FakeClient) SynthesizeSpeech(ctx context.Context, text string) ([]byte, int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, 0, ErrNoAudio
	}
	const rate = 24000
	return make([]byte, rate/10*2), rate, nil
}
