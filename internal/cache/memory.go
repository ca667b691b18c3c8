package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. It suits single-instance
// deployments and tests.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]*windowCounter
	clock  func() time.Time
	sweeps int
}

type windowCounter struct {
	count     int64
	windowEnd time.Time
}

// NewMemoryStore constructs an empty in-memory store. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{data: make(map[string]*windowCounter), clock: clock}
}

// IncrementWithTTL implements Store.
func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = defaultWindow
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Expired counters are purged every so often instead of on a background ticker.
	s.sweeps++
	if s.sweeps%1024 == 0 {
		for k, counter := range s.data {
			if now.After(counter.windowEnd) {
				delete(s.data, k)
			}
		}
	}

	counter, ok := s.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &windowCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++
	return counter.count, counter.windowEnd.Sub(now), nil
}

// Len reports how many counters are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
