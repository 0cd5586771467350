package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SQLiteStore implements Store on the shared database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serialises interaction allocation to prevent SQLITE_BUSY races
}

func NewSQLite(db *sql.DB) (*SQLiteStore, error) {
	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize artifact schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS interactions (
		session_id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		number INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, thread_id, number)
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		session_id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		interaction INTEGER NOT NULL,
		tool_name TEXT NOT NULL,
		payload BLOB,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, thread_id, interaction, tool_name)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) OpenInteraction(ctx context.Context, sessionID, threadID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	number, err := s.highest(ctx, sessionID, threadID)
	if err != nil {
		return 0, err
	}
	number++

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interactions (session_id, thread_id, number, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, threadID, number, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("open interaction: %w", err)
	}

	return number, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID, threadID, tool string, payload []byte) error {
	number, err := s.highest(ctx, sessionID, threadID)
	if err != nil {
		return err
	}
	if number == 0 {
		return fmt.Errorf("no open interaction for %s/%s", sessionID, threadID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (session_id, thread_id, interaction, tool_name, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, thread_id, interaction, tool_name)
		DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		sessionID, threadID, number, tool, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID, threadID, tool string) ([]byte, error) {
	number, err := s.highest(ctx, sessionID, threadID)
	if err != nil {
		return nil, err
	}
	if number == 0 {
		return nil, nil
	}

	payload, found, err := s.slot(ctx, sessionID, threadID, number, tool)
	if err != nil {
		return nil, err
	}
	if found {
		return payload, nil
	}

	// Fall back exactly one interaction: the current question may simply not
	// have invoked this tool yet.
	if number == 1 {
		return nil, nil
	}

	payload, _, err = s.slot(ctx, sessionID, threadID, number-1, tool)
	return payload, err
}

func (s *SQLiteStore) slot(ctx context.Context, sessionID, threadID string, number int, tool string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM artifacts
		 WHERE session_id = ? AND thread_id = ? AND interaction = ? AND tool_name = ?`,
		sessionID, threadID, number, tool,
	).Scan(&payload)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact slot: %w", err)
	}

	return payload, payload != nil, nil
}

func (s *SQLiteStore) highest(ctx context.Context, sessionID, threadID string) (int, error) {
	var number sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(number) FROM interactions WHERE session_id = ? AND thread_id = ?`,
		sessionID, threadID,
	).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("read highest interaction: %w", err)
	}

	return int(number.Int64), nil
}
