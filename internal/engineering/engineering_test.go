package engineering

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/llm"
)

type cannedClient struct {
	raw   string
	err   error
	calls int
	phase string
	input any
}

func (c *cannedClient) Name() string { return "canned" }
func (c *cannedClient) Close() error { return nil }
func (c *cannedClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	c.calls++
	c.phase, c.input = llm.PhaseFrom(ctx), input
	if c.err != nil {
		return nil, c.err
	}
	return json.RawMessage(c.raw), nil
}
func (c *cannedClient) Chat(ctx context.Context, system string, history []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func TestParseBuildingCode(t *testing.T) {
	for in, want := range map[string]BuildingCode{"": CodeACI, "aci": CodeACI, " BS ": CodeBS, "upc": CodeUPC} {
		got, err := ParseBuildingCode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBuildingCode("Eurocode")
	assert.ErrorIs(t, err, ErrInvalidBuildingCode)
}

func TestDesigner_DesignWithFakeModel(t *testing.T) {
	d := NewDesigner(llm.NewFakeClient(), nil)
	out, err := d.Design(context.Background(), DesignInput{ProjectDescription: "4-story school, Jeddah"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, out.ColumnWidth)
	assert.Equal(t, 300.0, out.ColumnHeight)
	assert.NotEmpty(t, out.FoundationDesign)
}

func TestDesigner_DesignDefaultsCodeAndLocation(t *testing.T) {
	cli := &cannedClient{raw: `{
		"structuralSystemSuggestion": "flat slab",
		"columnCrossSection": "50x50",
		"beamCrossSection": "none",
		"foundationDesign": "isolated footings",
		"deadLoad": "5 kN/m2",
		"liveLoad": "3 kN/m2",
		"columnWidth": "50 cm",
		"columnHeight": "320"
	}`}
	out, err := NewDesigner(cli, nil).Design(context.Background(), DesignInput{ProjectDescription: "warehouse"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, out.ColumnWidth)
	assert.Equal(t, 320.0, out.ColumnHeight)

	assert.Equal(t, "conceptual-design", cli.phase)
	sent := cli.input.(DesignInput)
	assert.Equal(t, "ACI", sent.BuildingCode)
	assert.NotEmpty(t, sent.ProjectLocation)
}

func TestDesigner_DesignRejectsBadInput(t *testing.T) {
	cli := &cannedClient{}
	d := NewDesigner(cli, nil)

	_, err := d.Design(context.Background(), DesignInput{ProjectDescription: " "})
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = d.Design(context.Background(), DesignInput{ProjectDescription: "x", BuildingCode: "SBC"})
	assert.ErrorIs(t, err, ErrInvalidBuildingCode)
	assert.Zero(t, cli.calls)
}

func TestDesigner_DesignMalformed(t *testing.T) {
	cli := &cannedClient{raw: `{"structuralSystemSuggestion": "frame", "columnWidth": "wide"}`}
	_, err := NewDesigner(cli, nil).Design(context.Background(), DesignInput{ProjectDescription: "x"})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	cli.raw = `{"structuralSystemSuggestion": "frame"}`
	_, err = NewDesigner(cli, nil).Design(context.Background(), DesignInput{ProjectDescription: "x"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestDesigner_Simulate(t *testing.T) {
	d := NewDesigner(llm.NewFakeClient(), nil)
	design, err := d.Design(context.Background(), DesignInput{ProjectDescription: "clinic"})
	require.NoError(t, err)

	sim, err := d.Simulate(context.Background(), SimulationInput{ProjectDescription: "clinic", Design: design})
	require.NoError(t, err)
	assert.NotEmpty(t, sim.Summary)
	require.Len(t, sim.AnalysisResults, 2)
	assert.Equal(t, 2150.0, sim.AnalysisResults[0].Axial)
}

func TestDesigner_SimulateNeedsElements(t *testing.T) {
	cli := &cannedClient{raw: `{"summary": "ok", "analysisResults": []}`}
	_, err := NewDesigner(cli, nil).Simulate(context.Background(), SimulationInput{ProjectDescription: "x"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, "simulation", cli.phase)
}

func TestDesigner_UpstreamError(t *testing.T) {
	boom := errors.New("quota")
	_, err := NewDesigner(&cannedClient{err: boom}, nil).Simulate(context.Background(), SimulationInput{ProjectDescription: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestTutor_ExplainCaches(t *testing.T) {
	cli := &cannedClient{raw: `{"explanation": " Moments bend beams. ", "references": ["ACI 318", " "], "projectIdeas": ["Load a ruler"]}`}
	tut := NewTutor(cli, nil)

	in := ExplainInput{Topic: "Bending moment", Level: "Beginner", Goal: "exam"}
	out, err := tut.Explain(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Moments bend beams.", out.Explanation)
	assert.Equal(t, []string{"ACI 318"}, out.References)
	assert.Equal(t, "explain", cli.phase)

	_, err = tut.Explain(context.Background(), ExplainInput{Topic: " bending moment ", Level: "beginner", Goal: "Exam"})
	require.NoError(t, err)
	assert.Equal(t, 1, cli.calls)
}

func TestTutor_NoCache(t *testing.T) {
	cli := &cannedClient{raw: `{"explanation": "x"}`}
	tut := NewTutor(cli, nil, WithCache(0, time.Minute))
	for i := 0; i < 2; i++ {
		_, err := tut.Explain(context.Background(), ExplainInput{Topic: "t", Level: Advanced})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cli.calls)
}

func TestTutor_Validation(t *testing.T) {
	tut := NewTutor(llm.NewFakeClient(), nil)
	_, err := tut.Explain(context.Background(), ExplainInput{Level: Beginner})
	assert.ErrorIs(t, err, ErrEmptyTopic)
	_, err = tut.Explain(context.Background(), ExplainInput{Topic: "beams", Level: "expert"})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	cli := &cannedClient{raw: `{"explanation": ""}`}
	_, err = NewTutor(cli, nil).Explain(context.Background(), ExplainInput{Topic: "beams", Level: Intermediate})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}
