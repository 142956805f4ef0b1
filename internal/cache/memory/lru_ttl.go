package memory

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUTTL is a threadsafe LRU cache with per-entry TTL. A nil cache is a
// valid no-op cache.
type LRUTTL[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

func NewLRUTTL[K comparable, V any](maxEntries int, ttl time.Duration) *LRUTTL[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUTTL[K, V]{lru: expirable.NewLRU[K, V](maxEntries, nil, ttl)}
}

func (c *LRUTTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	return c.lru.Get(key)
}

func (c *LRUTTL[K, V]) Set(key K, value V) {
	if c == nil {
		return
	}
	c.lru.Add(key, value)
}

func (c *LRUTTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.lru.Remove(key)
}

func (c *LRUTTL[K, V]) Clear() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *LRUTTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
