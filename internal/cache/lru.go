package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a bounded cache that evicts the least recently used entry once the
// configured size is reached. Selected via CACHE_SIZE > 0 for long-running
// server deployments where the unbounded map would grow without limit.
type LRU[V any] struct {
	inner *lru.Cache[string, V]
}

// NewLRU constructs a bounded cache holding at most size entries.
func NewLRU[V any](size int) (*LRU[V], error) {
	inner, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid LRU size %d: %w", size, err)
	}
	return &LRU[V]{inner: inner}, nil
}

// Get returns the value stored under key, if any, marking it recently used.
func (l *LRU[V]) Get(key string) (V, bool) {
	return l.inner.Get(key)
}

// Put stores value under key, evicting the oldest entry if the cache is full.
func (l *LRU[V]) Put(key string, value V) {
	l.inner.Add(key, value)
}

// Len returns the number of stored entries.
func (l *LRU[V]) Len() int {
	return l.inner.Len()
}
