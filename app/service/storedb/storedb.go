// Package storedb opens the shared SQLite database used by the artifact
// store and the checkpointer.
package storedb

import (
	"os"
	"path/filepath"
	"time"

	"database/sql"

	"kgbot/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

// DB wraps the handle so the injector closes it on shutdown.
type DB struct {
	*sql.DB
}

func (d *DB) Shutdown() error {
	return d.Close()
}

// Open returns the process-wide database handle. WAL mode keeps concurrent
// thread reads from blocking writes.
func Open(di *do.Injector) (*DB, error) {
	cfg := do.MustInvoke[*config.Config](di)

	dbPath := cfg.Store.SQLitePath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, oops.Errorf("failed to create database directory: %w", err)
	}

	// modernc.org/sqlite only honors pragmas in the _pragma=name(value) form.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, oops.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}
