package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/untoldecay/eventgraph/internal/storeerr"
)

// withTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise. Multi-statement writes such as event
// append, session creation and fork go through here so a partially
// applied event never becomes visible; single-statement writes (log
// records, tags, model and end-time updates) run without it.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeerr.Wrap(storeerr.StorageFailure, err, "beginning transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeerr.Wrap(storeerr.StorageFailure, err, "committing transaction")
	}
	committed = true
	return nil
}

// withImmediateTx is withTx with BEGIN IMMEDIATE semantics, used by
// PutBlob, which must take the write lock up front rather than
// discover a conflict at commit time (the append queue already
// serializes per-session writers, but blob dedup is shared across
// sessions and still races at the engine level).
// The connection pool is pinned to a single connection (see
// connection.go), so issuing BEGIN/COMMIT directly against *sql.DB and
// running fn against the same handle is safe.
func (s *Store) withImmediateTx(ctx context.Context, fn func(db *sql.DB) error) error {
	if _, err := s.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return storeerr.Wrap(storeerr.StorageFailure, err, "beginning immediate transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		}
	}()

	if err := fn(s.db); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "COMMIT"); err != nil {
		return storeerr.Wrap(storeerr.StorageFailure, err, "committing immediate transaction")
	}
	committed = true
	return nil
}

func wrapStorageErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return storeerr.Wrap(storeerr.StorageFailure, err, "%s", fmt.Sprintf(format, args...))
}
