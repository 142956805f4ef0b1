package chat

import (
	"structai/internal/analysis"
	"structai/internal/llm"
	"structai/internal/prompt"
)

type TurnState string

const (
	Pending  TurnState = "pending"
	Resolved TurnState = "resolved"
	Failed   TurnState = "failed"
)

// Turn is one transcript message. A model turn starts Pending and ends either
// Resolved with the reply or Failed with the user-facing error text.
type Turn struct {
	Role        llm.Role  `json:"role"`
	State       TurnState `json:"state"`
	Content     string    `json:"content"`
	Audio       string    `json:"audio,omitempty"`
	AudioFailed bool      `json:"audioFailed,omitempty"`
}

// ProjectContext is the analysis a conversation is about. It is fixed for
// the life of a session.
type ProjectContext struct {
	ProjectDescription        string `json:"projectDescription"`
	SuggestedStructuralSystem string `json:"suggestedStructuralSystem"`
	ApplicableBuildingCodes   string `json:"applicableBuildingCodes"`
	ExecutionMethod           string `json:"executionMethod"`
	PotentialChallenges       string `json:"potentialChallenges"`
	KeyFocusAreas             string `json:"keyFocusAreas"`
}

func ContextFromAnalysis(description string, r analysis.Result) ProjectContext {
	return ProjectContext{
		ProjectDescription:        description,
		SuggestedStructuralSystem: r.SuggestedStructuralSystem,
		ApplicableBuildingCodes:   r.ApplicableBuildingCodes,
		ExecutionMethod:           r.ExecutionMethod,
		PotentialChallenges:       r.PotentialChallenges,
		KeyFocusAreas:             r.KeyFocusAreas,
	}
}

func (pc ProjectContext) facts() []prompt.Fact {
	return []prompt.Fact{
		{Label: "Project Description", Value: pc.ProjectDescription},
		{Label: "Suggested Structural System", Value: pc.SuggestedStructuralSystem},
		{Label: "Applicable Building Codes", Value: pc.ApplicableBuildingCodes},
		{Label: "Execution Method", Value: pc.ExecutionMethod},
		{Label: "Potential Challenges", Value: pc.PotentialChallenges},
		{Label: "Key Focus Areas", Value: pc.KeyFocusAreas},
	}
}

// messages drops pending turns and audio.
func messages(turns []Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		if t.State == Pending {
			continue
		}
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
