package history

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory Store.
type MemStore struct {
	mtx     *sync.RWMutex
	entries []Entry
}

// NewMemStore returns a new in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{mtx: &sync.RWMutex{}}
}

// Record stores an entry.
func (m *MemStore) Record(_ context.Context, entry Entry) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// List returns up to limit entries, most recent first.
func (m *MemStore) List(_ context.Context, limit int) ([]Entry, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	result := slices.Clone(m.entries)
	slices.Reverse(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
