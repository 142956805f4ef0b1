package analysis

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/llm"
)

func quietLogger() *log.Logger { return log.New(&bytes.Buffer{}, "", 0) }

func TestPipeline_RiyadhTowerWithFakeModel(t *testing.T) {
	runner, err := NewLLMRunner(llm.NewFakeClient(), nil)
	require.NoError(t, err)
	p := NewPipeline(runner, quietLogger())

	var events []Progress
	state, err := p.Run(context.Background(), Input{ProjectDescription: "10-story residential tower, Riyadh"}, func(pr Progress) {
		events = append(events, pr)
	})
	require.NoError(t, err)

	assert.True(t, state.Status.Terminal())
	assert.True(t, state.Result.Complete())
	assert.NotEmpty(t, state.Result.SuggestedStructuralSystem)
	assert.NotEmpty(t, state.Result.ApplicableBuildingCodes)
	assert.NotEmpty(t, state.Result.ExecutionMethod)
	assert.NotEmpty(t, state.Result.PotentialChallenges)
	assert.NotEmpty(t, state.Result.KeyFocusAreas)
	require.NotEmpty(t, state.Result.AcademicReferences)

	require.Len(t, events, 7)
	assert.Equal(t, StepKind(""), events[0].Step)
	assert.Equal(t, 0, events[0].Completed)
	for i, k := range Kinds() {
		ev := events[i+1]
		assert.Equal(t, k, ev.Step)
		assert.Equal(t, i+1, ev.Completed)
		assert.Equal(t, 6, ev.Total)
		assert.LessOrEqual(t, loadingCount(ev.Status), 1)
	}
}

func TestPipeline_StopsAtFailedStep(t *testing.T) {
	p := NewPipeline(NewRunner(&echoAnalyzer{failOn: PotentialChallenges}, nil), quietLogger())

	var events []Progress
	state, err := p.Run(context.Background(), Input{ProjectDescription: "stadium"}, func(pr Progress) {
		events = append(events, pr)
	})
	require.ErrorIs(t, err, ErrStepFailed)

	assert.Len(t, events, 4)
	assert.Equal(t, Loading, state.Status[PotentialChallenges])
	assert.Equal(t, Complete, state.Status[ExecutionMethod])
	assert.Equal(t, Pending, state.Status[KeyFocusAreas])
	assert.Empty(t, state.Result.PotentialChallenges)
	assert.NotEmpty(t, state.Result.ExecutionMethod)
}

func TestPipeline_ProgressSnapshotsAreIndependent(t *testing.T) {
	p := NewPipeline(NewRunner(&echoAnalyzer{}, nil), quietLogger())

	var first Progress
	_, err := p.Run(context.Background(), Input{ProjectDescription: "villa"}, func(pr Progress) {
		if pr.Completed == 1 {
			first = pr
		}
	})
	require.NoError(t, err)
	assert.Equal(t, Loading, first.Status[BuildingCodes])
	assert.Empty(t, first.Result.ApplicableBuildingCodes)
}

func TestPipeline_RejectsEmptyDescription(t *testing.T) {
	p := NewPipeline(NewRunner(&echoAnalyzer{}, nil), quietLogger())
	_, err := p.Run(context.Background(), Input{ProjectDescription: "  "}, nil)
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestPipeline_CanceledContext(t *testing.T) {
	a := &echoAnalyzer{}
	p := NewPipeline(NewRunner(a, nil), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := p.Run(ctx, Input{ProjectDescription: "x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, a.reqs)
	assert.Equal(t, Loading, state.Status[StructuralSystem])
}

func TestPipeline_FailedStepIsNotRetried(t *testing.T) {
	base := &cannedClient{err: errors.New("upstream 503")}
	clients, err := llm.New(context.Background(), llm.Options{Base: base, Logger: quietLogger(), RetryDelay: time.Millisecond})
	require.NoError(t, err)
	runner, err := NewLLMRunner(clients.LLM, nil)
	require.NoError(t, err)

	state, err := NewPipeline(runner, quietLogger()).Run(context.Background(), Input{ProjectDescription: "warehouse"}, nil)
	require.ErrorIs(t, err, ErrStepFailed)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, Loading, state.Status[StructuralSystem])
	assert.Equal(t, Pending, state.Status[BuildingCodes])
}
