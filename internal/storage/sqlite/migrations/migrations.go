// Package migrations holds the forward-only schema changes applied
// after the baseline schema. Each migration must be idempotent: it is
// re-run against every database on every open, and checks for its own
// effect before acting.
package migrations

import (
	"database/sql"
	"fmt"
)

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func tableExists(db *sql.DB, table string) (bool, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MigrateFTS5 creates the events_fts virtual table when the running
// SQLite build has FTS5 compiled in. Its absence is not an error:
// search.go detects the missing table and falls back to a LIKE scan.
func MigrateFTS5(db *sql.DB) error {
	exists, err := tableExists(db, "events_fts")
	if err != nil {
		return fmt.Errorf("checking events_fts: %w", err)
	}
	if exists {
		return nil
	}
	_, err = db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
			event_id UNINDEXED,
			session_id UNINDEXED,
			body
		);
	`)
	if err != nil {
		// FTS5 not compiled into this SQLite build. Leave the table
		// absent; search.go's LIKE fallback covers this case.
		return nil
	}
	return nil
}

// MigrateSessionTagsDefault backfills a NULL tags column (pre-dating
// the NOT NULL DEFAULT '[]' baseline) to an empty JSON array so
// readers never have to special-case NULL vs. "[]".
func MigrateSessionTagsDefault(db *sql.DB) error {
	has, err := columnExists(db, "sessions", "tags")
	if err != nil {
		return fmt.Errorf("checking sessions.tags: %w", err)
	}
	if !has {
		return nil
	}
	_, err = db.Exec(`UPDATE sessions SET tags = '[]' WHERE tags IS NULL`)
	if err != nil {
		return fmt.Errorf("backfilling sessions.tags: %w", err)
	}
	return nil
}

// MigrateBlobCompressionDefault backfills rows written before the
// compression column existed.
func MigrateBlobCompressionDefault(db *sql.DB) error {
	has, err := columnExists(db, "blobs", "compression")
	if err != nil {
		return fmt.Errorf("checking blobs.compression: %w", err)
	}
	if !has {
		return nil
	}
	_, err = db.Exec(`UPDATE blobs SET compression = 'none' WHERE compression IS NULL OR compression = ''`)
	if err != nil {
		return fmt.Errorf("backfilling blobs.compression: %w", err)
	}
	return nil
}
