package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps events in process memory. It backs the admin
// dashboard's recent-activity view and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemoryStore constructs a store that retains at most limit events,
// oldest evicted first. A non-positive limit keeps everything.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
	return nil
}

// Recent returns up to n events, newest first.
func (s *MemoryStore) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}
	out := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		out = append(out, s.events[i])
	}
	return out
}
