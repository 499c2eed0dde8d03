package cache

import "sync"

// Memory is an unbounded map-backed cache. It is the default implementation:
// generation results are small and the key space (distinct description +
// provider pairs) grows slowly in practice.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMemory constructs an empty unbounded cache.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{entries: make(map[string]V)}
}

// Get returns the value stored under key, if any.
func (m *Memory[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok
}

// Put stores value under key, replacing any existing entry.
func (m *Memory[V]) Put(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Len returns the number of stored entries.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
