// internal/status/memory.go
package status

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Used in development, tests,
// and as a fallback when no durable backend is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[Key(snapshot.StatusTrackingID)] = data
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, trackingID string) (*Snapshot, error) {
	m.mu.RLock()
	data, ok := m.snapshots[Key(trackingID)]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
