// Package snapshot persists run state across suspensions. The sequencer
// only sees this narrow interface; whether the backend is an in-memory map
// or postgres is a hosting decision.
package snapshot

import (
	"context"
	"time"

	"llmfit/internal/state"
)

// DefaultTTL is applied when a caller passes a zero TTL hint.
const DefaultTTL = 24 * time.Hour

// Store is the durable snapshot interface.
type Store interface {
	// Save persists the snapshot. ttl is a hint; 0 means DefaultTTL.
	Save(ctx context.Context, runID string, st *state.RunState, ttl time.Duration) error

	// Load returns the snapshot, or nil when absent or expired.
	Load(ctx context.Context, runID string) (*state.RunState, error)

	Delete(ctx context.Context, runID string) error

	Exists(ctx context.Context, runID string) (bool, error)
}
