// Package snapshot persists the engine state as a flat key-value snapshot.
package snapshot

import (
	"context"
	"maps"
	"sync"
)

// Snapshot maps namespaced keys (see pkg/rediskey) to serialized values.
type Snapshot map[string]string

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}

// Store loads and saves whole snapshots. Save replaces the stored snapshot:
// keys absent from the new snapshot are removed.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: Snapshot{}}
}

func (m *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = s.Clone()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = Snapshot{}
	return nil
}
