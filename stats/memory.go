package stats

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory Store. Counters reset on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	total   int64
	perChat map[int64]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		perChat: make(map[int64]int64),
	}
}

// Incr records one rewritten message in the given chat.
func (m *MemoryStore) Incr(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.perChat[chatID]++
	return nil
}

// Snapshot returns a copy of the current counters.
func (m *MemoryStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Snapshot{
		Total:   m.total,
		PerChat: maps.Clone(m.perChat),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
