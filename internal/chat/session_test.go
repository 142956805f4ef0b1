package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/llm"
	"structai/internal/prompt"
)

type scriptedChatter struct {
	mu      sync.Mutex
	reply   string
	err     error
	system  string
	history []llm.Message
	calls   int
	gate    chan struct{}
}

func (c *scriptedChatter) Chat(ctx context.Context, system string, history []llm.Message) (string, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.system = system
	c.history = append([]llm.Message(nil), history...)
	return c.reply, c.err
}

type stubNarrator struct {
	err error
}

func (n stubNarrator) Narrate(ctx context.Context, text string) (string, error) {
	if n.err != nil {
		return "", n.err
	}
	return "data:audio/wav;base64,AAAA", nil
}

func quiet() Option { return WithLogger(log.New(&bytes.Buffer{}, "", 0)) }

func TestSend_BlankIsNoop(t *testing.T) {
	c := &scriptedChatter{reply: "x"}
	s := NewSession(c, ProjectContext{}, quiet())
	for _, in := range []string{"", "   ", "\n\t"} {
		turn, err := s.Send(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, Turn{}, turn)
	}
	assert.Empty(t, s.Transcript())
	assert.Zero(t, c.calls)
}

func TestSend_WhyScenario(t *testing.T) {
	c := &scriptedChatter{reply: "Shear walls give lateral stiffness."}
	s := NewSession(c, ProjectContext{SuggestedStructuralSystem: "shear wall system"}, quiet())

	turn, err := s.Send(context.Background(), "why?")
	require.NoError(t, err)
	assert.Equal(t, Resolved, turn.State)

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, Turn{Role: llm.RoleUser, State: Resolved, Content: "why?"}, tr[0])
	assert.Equal(t, llm.RoleModel, tr[1].Role)
	assert.Equal(t, "Shear walls give lateral stiffness.", tr[1].Content)
	for _, tt := range tr {
		assert.NotEqual(t, Pending, tt.State)
	}

	assert.Contains(t, c.system, "Suggested Structural System: shear wall system")
	assert.Contains(t, c.system, "Execution Method: "+prompt.MustDefault().Chat.Unknown)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "why?"}}, c.history)
}

func TestSend_FailureYieldsExactlyOneModelTurn(t *testing.T) {
	c := &scriptedChatter{err: errors.New("upstream 500")}
	s := NewSession(c, ProjectContext{}, quiet())

	turn, err := s.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Failed, turn.State)

	tr := s.Transcript()
	require.Len(t, tr, 2)
	assert.Equal(t, Failed, tr[1].State)
	assert.Equal(t, prompt.MustDefault().Chat.ErrorMessage, tr[1].Content)
	assert.False(t, s.Busy())
}

// modelClient lifts a scriptedChatter to a full llm.LLMClient.
type modelClient struct{ *scriptedChatter }

func (modelClient) Name() string { return "scripted" }
func (modelClient) Close() error { return nil }
func (modelClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return nil, errors.New("not used")
}

func TestSend_FailedTurnIsNotRetried(t *testing.T) {
	c := &scriptedChatter{err: errors.New("upstream 503")}
	clients, err := llm.New(context.Background(), llm.Options{
		Base:       modelClient{c},
		Logger:     log.New(&bytes.Buffer{}, "", 0),
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	turn, err := NewSession(clients.LLM, ProjectContext{}, quiet()).Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Failed, turn.State)
	assert.Equal(t, 1, c.calls)
}

func TestSend_EmptyReplyIsFailure(t *testing.T) {
	s := NewSession(&scriptedChatter{reply: "  "}, ProjectContext{}, quiet(), WithErrorMessage("try later"))
	turn, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Turn{Role: llm.RoleModel, State: Failed, Content: "try later"}, turn)
}

func TestSend_HistoryCarriesEarlierTurns(t *testing.T) {
	c := &scriptedChatter{reply: "ok"}
	s := NewSession(c, ProjectContext{}, quiet(), WithNarrator(stubNarrator{}))
	_, err := s.Send(context.Background(), "first")
	require.NoError(t, err)
	_, err = s.Send(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "first"},
		{Role: llm.RoleModel, Content: "ok"},
		{Role: llm.RoleUser, Content: "second"},
	}, c.history)
	assert.Len(t, s.Transcript(), 4)
}

func TestSend_Narration(t *testing.T) {
	s := NewSession(&scriptedChatter{reply: "ok"}, ProjectContext{}, quiet(), WithNarrator(stubNarrator{}))
	turn, err := s.Send(context.Background(), "read it")
	require.NoError(t, err)
	assert.Equal(t, "data:audio/wav;base64,AAAA", turn.Audio)
	assert.False(t, turn.AudioFailed)

	s = NewSession(&scriptedChatter{reply: "ok"}, ProjectContext{}, quiet(), WithNarrator(stubNarrator{err: llm.ErrNoAudio}))
	turn, err = s.Send(context.Background(), "read it")
	require.NoError(t, err)
	assert.Equal(t, Resolved, turn.State)
	assert.Equal(t, "ok", turn.Content)
	assert.True(t, turn.AudioFailed)
	assert.True(t, s.Transcript()[1].AudioFailed)
}

func TestSend_NoNarrationForFailedTurn(t *testing.T) {
	n := &countingNarrator{}
	s := NewSession(&scriptedChatter{err: errors.New("x")}, ProjectContext{}, quiet(), WithNarrator(n))
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Zero(t, n.calls)
}

type countingNarrator struct{ calls int }

func (n *countingNarrator) Narrate(ctx context.Context, text string) (string, error) {
	n.calls++
	return "", nil
}

func TestSend_RejectsConcurrentSend(t *testing.T) {
	c := &scriptedChatter{reply: "done", gate: make(chan struct{})}
	var snaps [][]Turn
	var mu sync.Mutex
	s := NewSession(c, ProjectContext{}, quiet(), WithObserver(func(tr []Turn) {
		mu.Lock()
		snaps = append(snaps, tr)
		mu.Unlock()
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Send(context.Background(), "first")
		assert.NoError(t, err)
	}()

	require.Eventually(t, s.Busy, time.Second, time.Millisecond)
	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(c.gate)
	<-done
	assert.False(t, s.Busy())
	assert.Len(t, s.Transcript(), 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 2)
	assert.Equal(t, Pending, snaps[0][1].State)
	assert.Equal(t, Resolved, snaps[1][1].State)
}

func TestTranscriptIsACopy(t *testing.T) {
	s := NewSession(&scriptedChatter{reply: "ok"}, ProjectContext{}, quiet())
	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	tr := s.Transcript()
	tr[0].Content = "mutated"
	assert.Equal(t, "hi", s.Transcript()[0].Content)
}

func TestReply(t *testing.T) {
	c := &scriptedChatter{reply: " answer "}
	_, err := Reply(context.Background(), c, nil, ProjectContext{}, nil)
	assert.ErrorIs(t, err, ErrHistoryRequired)

	got, err := Reply(context.Background(), c, nil, ProjectContext{ProjectDescription: "bridge"},
		[]llm.Message{{Role: llm.RoleUser, Content: "span?"}})
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.Contains(t, c.system, "Project Description: bridge")

	boom := errors.New("boom")
	_, err = Reply(context.Background(), &scriptedChatter{err: boom}, nil, ProjectContext{}, []llm.Message{})
	assert.ErrorIs(t, err, boom)
}

func TestReplyWithFakeClient(t *testing.T) {
	got, err := Reply(context.Background(), llm.NewFakeClient(), nil, ProjectContext{},
		[]llm.Message{{Role: llm.RoleUser, Content: "why?"}})
	require.NoError(t, err)
	assert.Contains(t, got, `"why?"`)
}

func TestManager(t *testing.T) {
	m := NewManager(&scriptedChatter{reply: "ok"}, 4, time.Minute, quiet())
	id, s, err := m.Create(ProjectContext{ProjectDescription: "dam"})
	require.NoError(t, err)

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, "dam", got.Context().ProjectDescription)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Delete(id)
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
