// Package history keeps completed analyses, most recent first, and persists
// them as one JSON document under a named slot.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"structai/internal/analysis"
	"structai/internal/engineering"
)

// DefaultSlot is the slot used when a caller does not name one.
const DefaultSlot = "structural-analysis-history"

const payloadVersion = 1

var (
	ErrNotFound = errors.New("history: entry not found")
	ErrCorrupt  = errors.New("history: stored payload is not readable")
)

// Entry is one completed analysis, optionally followed by a design and a
// simulation of that design.
type Entry struct {
	ID                 string                  `json:"id"`
	ProjectDescription string                  `json:"projectDescription"`
	ProjectLocation    string                  `json:"projectLocation"`
	CreatedAt          time.Time               `json:"createdAt"`
	Analysis           analysis.Result         `json:"analysis"`
	ConceptualDesign   *engineering.Design     `json:"conceptualDesign,omitempty"`
	Simulation         *engineering.Simulation `json:"simulation,omitempty"`
}

// Patch carries the parts of an entry that may change after creation.
// Nil fields are left untouched.
type Patch struct {
	ConceptualDesign *engineering.Design     `json:"conceptualDesign,omitempty"`
	Simulation       *engineering.Simulation `json:"simulation,omitempty"`
}

func (p Patch) empty() bool { return p.ConceptualDesign == nil && p.Simulation == nil }

// Persister reads and writes a single slot. Load returns nil data for a slot
// that has never been written.
type Persister interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

type payload struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

func decode(b []byte) ([]Entry, error) {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return entries, nil
	}
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if p.Version > payloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, p.Version)
	}
	return p.Entries, nil
}

func encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(payload{Version: payloadVersion, Entries: entries})
}

// Store is the in-memory list for one slot, written through to its Persister
// on every change.
type Store struct {
	key string
	p   Persister
	// registry is set for stores handed out by a Registry. Once evicted the
	// store is detached and forwards every call to the live store for key.
	registry *Registry

	mu       sync.RWMutex
	detached bool
	entries  []Entry
	now      func() time.Time
}

// Open reads the slot once. A missing slot yields an empty store.
func Open(ctx context.Context, p Persister, key string) (*Store, error) {
	if strings.TrimSpace(key) == "" {
		key = DefaultSlot
	}
	b, err := p.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("history: load %s: %w", key, err)
	}
	entries, err := decode(b)
	if err != nil {
		return nil, err
	}
	return &Store{key: key, p: p, entries: entries, now: time.Now}, nil
}

func (s *Store) Key() string { return s.key }

// locked returns the live store for s.key with its write lock held.
func (s *Store) locked(ctx context.Context) (*Store, error) {
	s.mu.Lock()
	if !s.detached {
		return s, nil
	}
	s.mu.Unlock()
	live, err := s.registry.Store(ctx, s.key)
	if err != nil {
		return nil, err
	}
	return live.locked(ctx)
}

// rlocked is locked for readers. If the live store cannot be reopened the
// detached copy is read instead.
func (s *Store) rlocked() *Store {
	s.mu.RLock()
	if !s.detached {
		return s
	}
	s.mu.RUnlock()
	if live, err := s.registry.Store(context.Background(), s.key); err == nil {
		return live.rlocked()
	}
	s.mu.RLock()
	return s
}

// detach waits for in-flight writes so a reopened store sees them.
func (s *Store) detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

// Append inserts e at the front and persists the list. A missing id or
// creation time is filled in. On a failed save the list is left as it was.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	if strings.TrimSpace(e.ID) == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Entry{}, fmt.Errorf("history: new id: %w", err)
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	t, err := s.locked(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer t.mu.Unlock()
	next := make([]Entry, 0, len(t.entries)+1)
	next = append(next, cloneEntry(e))
	next = append(next, t.entries...)
	if err := t.save(ctx, next); err != nil {
		return Entry{}, err
	}
	t.entries = next
	return cloneEntry(e), nil
}

// Update merges patch into the entry with the given id. An unknown id is not
// an error; it reports false and changes nothing.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (bool, error) {
	t, err := s.locked(ctx)
	if err != nil {
		return false, err
	}
	defer t.mu.Unlock()
	idx := t.indexOf(id)
	if idx < 0 || patch.empty() {
		return idx >= 0, nil
	}
	next := make([]Entry, len(t.entries))
	copy(next, t.entries)
	if patch.ConceptualDesign != nil {
		d := *patch.ConceptualDesign
		next[idx].ConceptualDesign = &d
	}
	if patch.Simulation != nil {
		sim := cloneSimulation(*patch.Simulation)
		next[idx].Simulation = &sim
	}
	if err := t.save(ctx, next); err != nil {
		return false, err
	}
	t.entries = next
	return true, nil
}

// List returns a deep copy of the entries, most recent first.
func (s *Store) List() []Entry {
	t := s.rlocked()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

func (s *Store) Get(id string) (Entry, error) {
	t := s.rlocked()
	defer t.mu.RUnlock()
	if i := t.indexOf(id); i >= 0 {
		return cloneEntry(t.entries[i]), nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) Len() int {
	t := s.rlocked()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Clear removes every entry from the slot.
func (s *Store) Clear(ctx context.Context) error {
	t, err := s.locked(ctx)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()
	if err := t.save(ctx, nil); err != nil {
		return err
	}
	t.entries = nil
	return nil
}

func (s *Store) indexOf(id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// save must be called with mu held.
func (s *Store) save(ctx context.Context, entries []Entry) error {
	b, err := encode(entries)
	if err != nil {
		return err
	}
	if err := s.p.Save(ctx, s.key, b); err != nil {
		return fmt.Errorf("history: save %s: %w", s.key, err)
	}
	return nil
}

// cloneEntry copies the pointer and slice fields so callers cannot reach the
// stored entry.
func cloneEntry(e Entry) Entry {
	e.Analysis.AcademicReferences = append([]analysis.Reference(nil), e.Analysis.AcademicReferences...)
	if e.ConceptualDesign != nil {
		d := *e.ConceptualDesign
		e.ConceptualDesign = &d
	}
	if e.Simulation != nil {
		sim := cloneSimulation(*e.Simulation)
		e.Simulation = &sim
	}
	return e
}

func cloneSimulation(s engineering.Simulation) engineering.Simulation {
	s.AnalysisResults = append([]engineering.ElementForces(nil), s.AnalysisResults...)
	return s
}
