package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"llmfit/internal/state"
)

// PostgresStore persists snapshots in a single table through the pgx stdlib
// driver.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_snapshots (
    run_id     TEXT PRIMARY KEY,
    state      JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	})
	return p.schemaErr
}

func (p *PostgresStore) Save(ctx context.Context, runID string, st *state.RunState, ttl time.Duration) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("snapshot: run id is required")
	}
	if st == nil {
		return fmt.Errorf("snapshot: state is required")
	}
	if err := p.ensureSchema(ctx); err != nil {
		return fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot: encode state: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO run_snapshots (run_id, state, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (run_id)
DO UPDATE SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		runID, data, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("snapshot: save %s: %w", runID, err)
	}
	return nil
}

func (p *PostgresStore) Load(ctx context.Context, runID string) (*state.RunState, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	var data []byte
	err := p.db.QueryRowContext(ctx, `
SELECT state FROM run_snapshots WHERE run_id = $1 AND expires_at > now()`,
		strings.TrimSpace(runID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", runID, err)
	}
	var st state.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("snapshot: decode state: %w", err)
	}
	return &st, nil
}

func (p *PostgresStore) Delete(ctx context.Context, runID string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	_, err := p.db.ExecContext(ctx, `DELETE FROM run_snapshots WHERE run_id = $1`, strings.TrimSpace(runID))
	if err != nil {
		return fmt.Errorf("snapshot: delete %s: %w", runID, err)
	}
	return nil
}

func (p *PostgresStore) Exists(ctx context.Context, runID string) (bool, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return false, fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	var one int
	err := p.db.QueryRowContext(ctx, `
SELECT 1 FROM run_snapshots WHERE run_id = $1 AND expires_at > now()`,
		strings.TrimSpace(runID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("snapshot: exists %s: %w", runID, err)
	}
	return true, nil
}

// FromEnv returns a postgres-backed store when dsn is set, otherwise the
// in-memory store.
func FromEnv(dsn string) Store {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryStore()
	}
	s, err := NewPostgresStore(dsn)
	if err != nil {
		return NewMemoryStore()
	}
	return s
}
