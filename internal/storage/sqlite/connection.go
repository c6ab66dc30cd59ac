// Package sqlite is the storage engine: a single SQLite database file
// holding workspaces, sessions, events, blobs and logs, accessed
// through database/sql with the pure-Go ncruces/go-sqlite3 driver (no
// cgo). Most exported methods report failures as *storeerr.Error;
// Open, OpenMemory and RunMigrations return plain wrapped errors for
// driver, schema and migration failures, Close returns the lock
// release error as is, and some row-iteration errors are returned
// unwrapped.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofrs/flock"

	"github.com/untoldecay/eventgraph/internal/ids"
	"github.com/untoldecay/eventgraph/internal/storeerr"
)

// Store is the concrete SQLite-backed engine. It owns the db handle,
// a per-process file lock enforcing single-writer-node semantics, and
// the monotonic clock used to stamp every event.
type Store struct {
	db    *sql.DB
	path  string
	lock  *flock.Flock
	clock *ids.Clock
}

// Open creates the database file (and its migrations) if needed and
// returns a ready Store. The file lock is held for the lifetime of the
// Store; a second process opening the same path fails fast rather than
// corrupting the append-only graph (non-goal: no cross-process
// writers).
func Open(ctx context.Context, path string) (*Store, error) {
	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return nil, storeerr.New(storeerr.StorageFailure, "store %s is already open by another process", path)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := configureConnection(ctx, db); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, path: path, lock: lock, clock: ids.NewClock()}, nil
}

// OpenMemory opens a private in-memory database, used by tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db, path: ":memory:", clock: ids.NewClock()}, nil
}

func configureConnection(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close releases the database handle and the advisory file lock.
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

// Path returns the filesystem path the store was opened from.
func (s *Store) Path() string { return filepath.Clean(s.path) }

// Now returns a strictly-increasing timestamp for the next event this
// process appends.
func (s *Store) Now() time.Time { return s.clock.Now() }
