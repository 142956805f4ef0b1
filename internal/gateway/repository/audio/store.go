// Package audio archives narration clips and hands out links to them.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("audio: clip not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	URL(ctx context.Context, key string) (string, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	clips map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{clips: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	key = normalizeKey(key)
	if key == "" {
		return fmt.Errorf("audio: key is required")
	}
	s.mu.Lock()
	s.clips[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.clips[normalizeKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *MemoryStore) URL(ctx context.Context, key string) (string, error) {
	key = normalizeKey(key)
	s.mu.RLock()
	_, ok := s.clips[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return "memory://" + key, nil
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
