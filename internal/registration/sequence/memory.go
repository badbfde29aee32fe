package sequence

import (
	"context"
	"sync"
)

// InMemoryAllocator keeps per-year counters behind a mutex. Suitable for a
// single process; use the Redis allocator when running more than one replica.
type InMemoryAllocator struct {
	mu       sync.Mutex
	counters map[int]int64
}

// NewInMemory creates an allocator starting every year at zero.
func NewInMemory() *InMemoryAllocator {
	return &InMemoryAllocator{counters: make(map[int]int64)}
}

// Next atomically increments and returns the counter for year.
func (a *InMemoryAllocator) Next(ctx context.Context, year int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[year]++
	return a.counters[year], nil
}
