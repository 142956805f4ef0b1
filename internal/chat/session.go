// Package chat holds project-scoped conversations with the model.
package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"structai/internal/llm"
	"structai/internal/prompt"
)

var (
	ErrBusy            = errors.New("chat: a message is already in flight")
	ErrHistoryRequired = errors.New("History is required")
)

// Chatter is the chat-completion half of llm.LLMClient.
type Chatter interface {
	Chat(ctx context.Context, system string, history []llm.Message) (string, error)
}

// Narrator turns a reply into an audio data URI.
type Narrator interface {
	Narrate(ctx context.Context, text string) (string, error)
}

type Option func(*Session)

func WithNarrator(n Narrator) Option { return func(s *Session) { s.narrator = n } }

// WithObserver registers fn to receive a transcript snapshot after every
// change. fn runs on the sending goroutine without the session lock held.
func WithObserver(fn func([]Turn)) Option { return func(s *Session) { s.observer = fn } }

func WithCatalog(c *prompt.Catalog) Option { return func(s *Session) { s.catalog = c } }

// WithErrorMessage overrides the text shown in place of a failed reply.
func WithErrorMessage(msg string) Option {
	return func(s *Session) {
		if strings.TrimSpace(msg) != "" {
			s.errorMessage = msg
		}
	}
}

func WithLogger(l *log.Logger) Option { return func(s *Session) { s.logger = l } }

// Session is an append-only transcript with at most one request in flight.
type Session struct {
	chatter      Chatter
	catalog      *prompt.Catalog
	context      ProjectContext
	system       string
	errorMessage string
	narrator     Narrator
	observer     func([]Turn)
	logger       *log.Logger

	mu    sync.Mutex
	busy  bool
	turns []Turn
}

func NewSession(c Chatter, pc ProjectContext, opts ...Option) *Session {
	s := &Session{chatter: c, context: pc, logger: log.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.catalog == nil {
		s.catalog = prompt.MustDefault()
	}
	if s.errorMessage == "" {
		s.errorMessage = s.catalog.Chat.ErrorMessage
	}
	s.system = s.catalog.ChatFraming(pc.facts())
	return s
}

func (s *Session) Context() ProjectContext { return s.context }

// Send runs one round-trip. Blank text is ignored. An upstream failure is not
// returned as an error; the returned model turn is Failed instead.
func (s *Session) Send(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, nil
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return Turn{}, ErrBusy
	}
	s.busy = true
	s.turns = append(s.turns,
		Turn{Role: llm.RoleUser, State: Resolved, Content: text},
		Turn{Role: llm.RoleModel, State: Pending},
	)
	idx := len(s.turns) - 1
	history := messages(s.turns)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.release()
	s.notify(snap)

	reply, err := s.chatter.Chat(llm.WithPhase(ctx, "chat"), s.system, history)
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrEmptyReply
	}

	turn := Turn{Role: llm.RoleModel, State: Resolved, Content: reply}
	if err != nil {
		s.logger.Printf("chat: reply failed: %v", err)
		turn = Turn{Role: llm.RoleModel, State: Failed, Content: s.errorMessage}
	}
	s.notify(s.set(idx, turn))

	if turn.State == Resolved && s.narrator != nil {
		audio, nerr := s.narrator.Narrate(ctx, turn.Content)
		if nerr != nil {
			s.logger.Printf("chat: narration failed: %v", nerr)
			turn.AudioFailed = true
		} else {
			turn.Audio = audio
		}
		s.notify(s.set(idx, turn))
	}
	return turn, nil
}

// Busy reports whether a round-trip is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Transcript returns a copy of every turn so far.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) set(idx int, t Turn) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[idx] = t
	return s.snapshotLocked()
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) snapshotLocked() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) notify(snap []Turn) {
	if s.observer != nil {
		s.observer(snap)
	}
}

// Reply is the stateless form: one completion for a caller-held history.
func Reply(ctx context.Context, c Chatter, catalog *prompt.Catalog, pc ProjectContext, history []llm.Message) (string, error) {
	if history == nil {
		return "", ErrHistoryRequired
	}
	if catalog == nil {
		catalog = prompt.MustDefault()
	}
	reply, err := c.Chat(llm.WithPhase(ctx, "chat"), catalog.ChatFraming(pc.facts()), history)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", llm.ErrEmptyReply
	}
	return reply, nil
}
