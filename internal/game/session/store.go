// Package session holds live battle sessions between requests: a keyed store with
// idle eviction and a per-key lock that serializes actions on the same battle.
package session

import (
	"sync"
	"time"
)

// Store holds one live value per battle id.
type Store[V any] interface {
	// Get returns the value for key and marks it as recently used.
	Get(key string) (V, bool)
	// Put installs v under key, replacing any previous value.
	Put(key string, v V)
	// Remove deletes key. Removing a missing key is a no-op.
	Remove(key string)
}

type entry[V any] struct {
	value   V
	touched time.Time
}

// MemoryStore is a process-local Store that evicts entries left idle for longer than its timeout.
// All methods are safe for concurrent use.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	idle    time.Duration
	keep    func(V) bool
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
//
// Precondition: idle <= 0 disables eviction; keep may be nil.
// Postcondition: Entries for which keep returns true are never evicted by Sweep.
func NewMemoryStore[V any](idle time.Duration, keep func(V) bool) *MemoryStore[V] {
	return &MemoryStore[V]{
		entries: make(map[string]*entry[V]),
		idle:    idle,
		keep:    keep,
		now:     time.Now,
	}
}

// Get returns the value stored under key and refreshes its idle clock.
//
// Postcondition: Returns (zero, false) when key is absent.
func (m *MemoryStore[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.touched = m.now()
	return e.value, true
}

// Put installs v under key.
func (m *MemoryStore[V]) Put(key string, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry[V]{value: v, touched: m.now()}
}

// Remove deletes key.
func (m *MemoryStore[V]) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len returns the number of live entries.
func (m *MemoryStore[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep evicts every entry idle for longer than the store's timeout as of now.
//
// Postcondition: Returns the evicted keys; returns nil when eviction is disabled.
func (m *MemoryStore[V]) Sweep(now time.Time) []string {
	if m.idle <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for key, e := range m.entries {
		if now.Sub(e.touched) <= m.idle {
			continue
		}
		if m.keep != nil && m.keep(e.value) {
			continue
		}
		delete(m.entries, key)
		evicted = append(evicted, key)
	}
	return evicted
}
