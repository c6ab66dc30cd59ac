package sqlite

import (
	"context"
)

// DoctorReport is the result of a schema/graph sanity sweep, surfaced
// by cmd/evstorectl doctor.
type DoctorReport struct {
	FTS5Available     bool
	SchemaTables      []string
	OrphanedBlobs     int
	DanglingParents   int
	MultipleRoots     []string
	EventCount        int64
	SessionCount      int64
	StaleOpenSessions int64
}

// staleSessionThresholdDays is how long a session can sit without
// activity before an unended session is flagged as probably abandoned
// rather than merely idle.
const staleSessionThresholdDays = 30

// RunDoctor inspects schema health beyond what normal operation checks:
// FTS5 availability (search.go already tolerates its absence; this
// makes that fact visible to an operator), refcount-zero blobs that
// are eligible for but have not undergone garbage collection, events
// whose parent_id does not resolve to an existing row, and sessions
// that ended up with more than one parent-less event (a sign the
// append queue was bypassed).
func (s *Store) RunDoctor(ctx context.Context) (*DoctorReport, error) {
	report := &DoctorReport{FTS5Available: s.ftsAvailable(ctx)}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' ORDER BY name`)
	if err != nil {
		return nil, wrapStorageErr(err, "listing tables")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, wrapStorageErr(err, "scanning table name")
		}
		report.SchemaTables = append(report.SchemaTables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr(err, "listing tables")
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs WHERE ref_count <= 0`).Scan(&report.OrphanedBlobs); err != nil {
		return nil, wrapStorageErr(err, "counting orphaned blobs")
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events e
		WHERE e.parent_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM events p WHERE p.id = e.parent_id)`).Scan(&report.DanglingParents); err != nil {
		return nil, wrapStorageErr(err, "scanning dangling parents")
	}

	rootRows, err := s.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*) FROM events WHERE parent_id IS NULL GROUP BY session_id HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, wrapStorageErr(err, "scanning session roots")
	}
	for rootRows.Next() {
		var sid string
		var n int
		if err := rootRows.Scan(&sid, &n); err != nil {
			rootRows.Close()
			return nil, wrapStorageErr(err, "scanning session root row")
		}
		report.MultipleRoots = append(report.MultipleRoots, sid)
	}
	rootRows.Close()
	if err := rootRows.Err(); err != nil {
		return nil, wrapStorageErr(err, "scanning session roots")
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&report.EventCount); err != nil {
		return nil, wrapStorageErr(err, "counting events")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&report.SessionCount); err != nil {
		return nil, wrapStorageErr(err, "counting sessions")
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE ended_at IS NULL
		  AND julianday('now') - julianday(last_activity_at) > ?`, staleSessionThresholdDays).Scan(&report.StaleOpenSessions); err != nil {
		return nil, wrapStorageErr(err, "scanning stale open sessions")
	}

	return report, nil
}

// Healthy reports whether the sweep found nothing an operator needs to
// act on. FTS5 absence is deliberately excluded: spec.md treats it as
// a documented degradation, not a fault.
func (r *DoctorReport) Healthy() bool {
	return r.OrphanedBlobs == 0 && r.DanglingParents == 0 && len(r.MultipleRoots) == 0
}
