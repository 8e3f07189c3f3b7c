// internal/status/postgres.go
package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"signup-orchestrator/internal/common/config"
)

// PostgresStore keeps one row per workflow run, replacing the snapshot
// document on every write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg config.PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the snapshot table when it does not exist yet.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_status (
			status_tracking_id TEXT PRIMARY KEY,
			snapshot           JSONB NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure workflow_status schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Put(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflow_status (status_tracking_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (status_tracking_id)
		DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		snapshot.StatusTrackingID, data)
	if err != nil {
		return fmt.Errorf("failed to upsert status snapshot: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, trackingID string) (*Snapshot, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT snapshot FROM workflow_status WHERE status_tracking_id = $1`,
		trackingID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read status snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt status snapshot for %s: %w", trackingID, err)
	}
	return &snapshot, nil
}

func (p *PostgresStore) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
