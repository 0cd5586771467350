package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize checkpoint schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT PRIMARY KEY,
		state BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&state)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	return state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (thread_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		threadID, state, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE updated_at < ?`, olderThan.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep checkpoints: %w", err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}
