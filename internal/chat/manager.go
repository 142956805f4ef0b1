package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"structai/internal/cache/memory"
)

var ErrSessionNotFound = errors.New("chat: session not found")

// Manager keeps server-side sessions by id. Idle sessions expire.
type Manager struct {
	chatter  Chatter
	opts     []Option
	sessions *memory.LRUTTL[string, *Session]
}

func NewManager(c Chatter, maxSessions int, idle time.Duration, opts ...Option) *Manager {
	if maxSessions <= 0 {
		maxSessions = 1024
	}
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &Manager{
		chatter:  c,
		opts:     opts,
		sessions: memory.NewLRUTTL[string, *Session](maxSessions, idle),
	}
}

// Create starts a session for pc. extra options apply after the manager's.
func (m *Manager) Create(pc ProjectContext, extra ...Option) (string, *Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("chat: new session id: %w", err)
	}
	opts := append(append([]Option(nil), m.opts...), extra...)
	s := NewSession(m.chatter, pc, opts...)
	m.sessions.Set(id.String(), s)
	return id.String(), s, nil
}

// Get returns the session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	id = strings.TrimSpace(id)
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.sessions.Set(id, s)
	return s, nil
}

func (m *Manager) Delete(id string) { m.sessions.Delete(strings.TrimSpace(id)) }

func (m *Manager) Len() int { return m.sessions.Len() }
