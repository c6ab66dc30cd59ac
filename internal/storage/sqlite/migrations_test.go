package sqlite

import (
	"context"
	"testing"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	appendUserMessage(t, s, sess, &sess.HeadEventID, "some content")

	if err := RunMigrations(s.db); err != nil {
		t.Fatalf("second RunMigrations call failed: %v", err)
	}
	if err := RunMigrations(s.db); err != nil {
		t.Fatalf("third RunMigrations call failed: %v", err)
	}

	got, err := s.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession after re-running migrations: %v", err)
	}
	if got.EventCount != 2 {
		t.Fatalf("expected event rows to survive repeated migrations, got count %d", got.EventCount)
	}
}

func TestRunMigrationsRecordsEachMigrationOnceInSchemaVersion(t *testing.T) {
	s := newTestStore(t)

	if err := RunMigrations(s.db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if err := RunMigrations(s.db); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		t.Fatalf("counting schema_version rows: %v", err)
	}
	if count != len(migrationsList) {
		t.Fatalf("expected %d recorded migrations, got %d", len(migrationsList), count)
	}
}

func TestCaptureSnapshotCountsExistingRows(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "/repo-a")
	newTestSession(t, s, "/repo-b")

	snap, err := captureSnapshot(s.db)
	if err != nil {
		t.Fatalf("captureSnapshot: %v", err)
	}
	if snap.sessions != 2 {
		t.Fatalf("expected 2 sessions in snapshot, got %d", snap.sessions)
	}
	if snap.workspaces != 2 {
		t.Fatalf("expected 2 workspaces in snapshot, got %d", snap.workspaces)
	}
}

func TestVerifyInvariantsRejectsRowLoss(t *testing.T) {
	s := newTestStore(t)
	newTestSession(t, s, "/repo")

	before, err := captureSnapshot(s.db)
	if err != nil {
		t.Fatalf("captureSnapshot: %v", err)
	}

	if _, err := s.db.Exec("DELETE FROM sessions"); err != nil {
		t.Fatalf("deleting sessions: %v", err)
	}

	if err := verifyInvariants(s.db, before); err == nil {
		t.Fatalf("expected verifyInvariants to reject a row-count decrease")
	}
}
