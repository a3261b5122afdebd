package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"llmfit/internal/state"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps serialized snapshots in a locked map. Snapshots are
// stored as JSON copies so a caller mutating its RunState after Save cannot
// corrupt the stored version.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Save(ctx context.Context, runID string, st *state.RunState, ttl time.Duration) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("snapshot: run id is required")
	}
	if st == nil {
		return fmt.Errorf("snapshot: state is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot: encode state: %w", err)
	}
	m.mu.Lock()
	m.byID[runID] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, runID string) (*state.RunState, error) {
	m.mu.RLock()
	entry, ok := m.byID[strings.TrimSpace(runID)]
	m.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	var st state.RunState
	if err := json.Unmarshal(entry.data, &st); err != nil {
		return nil, fmt.Errorf("snapshot: decode state: %w", err)
	}
	return &st, nil
}

func (m *MemoryStore) Delete(ctx context.Context, runID string) error {
	m.mu.Lock()
	delete(m.byID, strings.TrimSpace(runID))
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, runID string) (bool, error) {
	m.mu.RLock()
	entry, ok := m.byID[strings.TrimSpace(runID)]
	m.mu.RUnlock()
	return ok && time.Now().Before(entry.expiresAt), nil
}
