package history

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry hands out one Store per slot key. Evicted stores are reopened
// from the persister on next use; handles to the evicted store keep working
// through the reopened one.
type Registry struct {
	p     Persister
	mu    sync.Mutex
	cache *lru.Cache[string, *Store]
}

func NewRegistry(p Persister, size int) (*Registry, error) {
	if size <= 0 {
		size = 128
	}
	cache, err := lru.NewWithEvict[string, *Store](size, func(_ string, s *Store) { s.detach() })
	if err != nil {
		return nil, err
	}
	return &Registry{p: p, cache: cache}, nil
}

// Store returns the store for key, opening it on first use.
func (r *Registry) Store(ctx context.Context, key string) (*Store, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultSlot
	}
	if s, ok := r.cache.Get(key); ok {
		return s, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cache.Get(key); ok {
		return s, nil
	}
	s, err := Open(ctx, r.p, key)
	if err != nil {
		return nil, err
	}
	s.registry = r
	r.cache.Add(key, s)
	return s, nil
}

func (r *Registry) Len() int { return r.cache.Len() }
