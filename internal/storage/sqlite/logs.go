package sqlite

import (
	"context"

	"github.com/untoldecay/eventgraph/internal/types"
)

// WriteLog persists one operational log record. This is the
// database-backed mirror the opslog writer feeds in addition to its
// JSONL file; neither is consulted by reconstruction.
func (s *Store) WriteLog(ctx context.Context, rec *types.LogRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (session_id, timestamp, level, level_num, component, message, error_message, error_stack)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Timestamp, rec.Level, rec.LevelNum, rec.Component, rec.Message, rec.ErrorMessage, rec.ErrorStack)
	return wrapStorageErr(err, "writing log record")
}

// QueryLogsOpts filters QueryLogs.
type QueryLogsOpts struct {
	SessionID   string
	MinLevelNum int
	Limit       int
}

// QueryLogs returns log records most recent first.
func (s *Store) QueryLogs(ctx context.Context, opts QueryLogsOpts) ([]*types.LogRecord, error) {
	query := `SELECT id, session_id, timestamp, level, level_num, component, message, error_message, error_stack FROM logs WHERE level_num >= ?`
	args := []any{opts.MinLevelNum}
	if opts.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, opts.SessionID)
	}
	query += ` ORDER BY timestamp DESC`
	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr(err, "querying logs")
	}
	defer rows.Close()

	var out []*types.LogRecord
	for rows.Next() {
		var rec types.LogRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Timestamp, &rec.Level, &rec.LevelNum, &rec.Component, &rec.Message, &rec.ErrorMessage, &rec.ErrorStack); err != nil {
			return nil, wrapStorageErr(err, "scanning log row")
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
