package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count int64
	reset time.Time
}

// MemoryStore is the in-process counter backend, the default for single
// instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{entries: make(map[string]*memoryEntry)}
	go s.sweep()
	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.reset) {
		e = &memoryEntry{reset: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.reset, nil
}

// sweep drops expired windows so idle identities do not accumulate.
func (s *MemoryStore) sweep() {
	for range time.Tick(5 * time.Minute) {
		now := time.Now()
		s.mu.Lock()
		for k, e := range s.entries {
			if now.After(e.reset) {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}
