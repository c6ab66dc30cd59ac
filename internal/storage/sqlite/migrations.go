package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/untoldecay/eventgraph/internal/storage/sqlite/migrations"
)

// Migration is one forward-only, idempotent schema change.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run after
// the baseline schema. Order matters; never reorder an entry once
// released.
var migrationsList = []Migration{
	{"fts5_index", migrations.MigrateFTS5},
	{"session_tags_default", migrations.MigrateSessionTagsDefault},
	{"blob_compression_default", migrations.MigrateBlobCompressionDefault},
}

// invariantSnapshot captures counts that must never decrease across a
// migration run: a migration that drops rows from these tables is
// almost certainly a bug, not an intended effect.
type invariantSnapshot struct {
	workspaces int64
	sessions   int64
	events     int64
	blobs      int64
}

func captureSnapshot(db *sql.DB) (invariantSnapshot, error) {
	var snap invariantSnapshot
	for table, dst := range map[string]*int64{
		"workspaces": &snap.workspaces,
		"sessions":   &snap.sessions,
		"events":     &snap.events,
		"blobs":      &snap.blobs,
	} {
		var exists int
		if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&exists); err != nil {
			return snap, fmt.Errorf("checking table %s: %w", table, err)
		}
		if exists == 0 {
			continue
		}
		if err := db.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(dst); err != nil {
			return snap, fmt.Errorf("counting %s: %w", table, err)
		}
	}
	return snap, nil
}

func verifyInvariants(db *sql.DB, before invariantSnapshot) error {
	after, err := captureSnapshot(db)
	if err != nil {
		return err
	}
	if after.workspaces < before.workspaces {
		return fmt.Errorf("migration dropped workspaces: %d -> %d", before.workspaces, after.workspaces)
	}
	if after.sessions < before.sessions {
		return fmt.Errorf("migration dropped sessions: %d -> %d", before.sessions, after.sessions)
	}
	if after.events < before.events {
		return fmt.Errorf("migration dropped events: %d -> %d", before.events, after.events)
	}
	if after.blobs < before.blobs {
		return fmt.Errorf("migration dropped blobs: %d -> %d", before.blobs, after.blobs)
	}
	return nil
}

// RunMigrations applies every registered migration inside a single
// EXCLUSIVE transaction, snapshotting row counts before and after so a
// migration that silently drops data fails the open instead of
// corrupting the graph quietly.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("acquiring exclusive lock for migrations: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	snapshot, err := captureSnapshot(db)
	if err != nil {
		return fmt.Errorf("capturing pre-migration snapshot: %w", err)
	}

	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
		if _, err := db.Exec(`INSERT OR IGNORE INTO schema_version (name) VALUES (?)`, m.Name); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.Name, err)
		}
	}

	if err := verifyInvariants(db, snapshot); err != nil {
		return fmt.Errorf("post-migration validation failed: %w", err)
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}
	committed = true
	return nil
}
