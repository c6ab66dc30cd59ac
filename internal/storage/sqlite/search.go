package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/untoldecay/eventgraph/internal/types"
)

// SearchResult is one hit returned by Search.
type SearchResult struct {
	Event     *types.Event
	SessionID string
	Snippet   string
}

// searchableText extracts the plain-text body worth indexing from an
// event's payload. Events that carry no free text (config changes,
// stream markers) return "" and are simply never indexed.
func searchableText(e *types.Event) string {
	switch e.Type {
	case types.EventMessageUser:
		var p types.MessageUserPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ""
		}
		return joinText(p.Blocks())
	case types.EventMessageAssistant:
		var p types.MessageAssistantPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ""
		}
		return joinText(p.Content)
	case types.EventCompactSummary:
		var p types.CompactSummaryPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ""
		}
		return p.Summary
	case types.EventMemoryLedger:
		var p types.MemoryLedgerPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return ""
		}
		return p.Title + "\n" + p.Input
	}
	return ""
}

func joinText(blocks []types.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		switch b.Type {
		case "text":
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		case "thinking":
			sb.WriteString(b.Thinking)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (s *Store) ftsAvailable(ctx context.Context) bool {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='events_fts'`).Scan(&name)
	return err == nil
}

// indexForSearch mirrors a freshly appended event's text body into
// events_fts, when the running build has FTS5 available.
func indexForSearch(ctx context.Context, tx *sql.Tx, e *types.Event) error {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='events_fts'`).Scan(&name)
	if err != nil {
		// No FTS5 table in this build; Search falls back to a LIKE scan
		// against the events table itself.
		return nil
	}
	body := searchableText(e)
	if body == "" {
		return nil
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events_fts (event_id, session_id, body) VALUES (?, ?, ?)`, e.ID, e.SessionID, body)
	if err != nil {
		return wrapStorageErr(err, "indexing event %s for search", e.ID)
	}
	return nil
}

// RebuildSearchIndex repopulates events_fts from scratch, used after a
// bulk import or when the FTS table is recreated. It is a no-op if
// FTS5 is unavailable.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	if !s.ftsAvailable(ctx) {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events_fts`); err != nil {
			return wrapStorageErr(err, "clearing search index")
		}
		rows, err := tx.QueryContext(ctx, `SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload FROM events ORDER BY sequence ASC`)
		if err != nil {
			return wrapStorageErr(err, "scanning events for reindex")
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return wrapStorageErr(err, "scanning event row")
			}
			body := searchableText(e)
			if body == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO events_fts (event_id, session_id, body) VALUES (?, ?, ?)`, e.ID, e.SessionID, body); err != nil {
				return wrapStorageErr(err, "reindexing event %s", e.ID)
			}
		}
		return rows.Err()
	})
}

// SearchOpts scopes a search to a workspace, session and/or a set of
// event types.
type SearchOpts struct {
	WorkspaceID string
	SessionID   string
	Types       []string
	Limit       int
}

// maxSearchLimit bounds a single search call regardless of what the
// caller requests, per spec.md's "reasonable cap <= 500".
const maxSearchLimit = 500

// Search looks up events whose indexed text matches query. When FTS5
// is unavailable it falls back to a LIKE scan over message and
// summary payloads; the fallback never ranks results and returns them
// in reverse-chronological order instead.
func (s *Store) Search(ctx context.Context, query string, opts SearchOpts) ([]SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if s.ftsAvailable(ctx) {
		return s.searchFTS(ctx, query, opts, limit)
	}
	return s.searchLike(ctx, query, opts, limit)
}

func appendTypeFilter(sqlQuery string, args []any, column string, types []string) (string, []any) {
	if len(types) == 0 {
		return sqlQuery, args
	}
	placeholders := make([]string, len(types))
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, t)
	}
	sqlQuery += " AND " + column + " IN (" + strings.Join(placeholders, ",") + ")"
	return sqlQuery, args
}

func (s *Store) searchFTS(ctx context.Context, query string, opts SearchOpts, limit int) ([]SearchResult, error) {
	sqlQuery := `
		SELECT e.id, e.session_id, e.workspace_id, e.parent_id, e.sequence, e.timestamp, e.type, e.payload,
		       snippet(events_fts, 2, '[', ']', '...', 10)
		FROM events_fts
		JOIN events e ON e.id = events_fts.event_id
		WHERE events_fts MATCH ?`
	args := []any{`"` + strings.ReplaceAll(query, `"`, `""`) + `"`}
	if opts.SessionID != "" {
		sqlQuery += ` AND e.session_id = ?`
		args = append(args, opts.SessionID)
	}
	if opts.WorkspaceID != "" {
		sqlQuery += ` AND e.workspace_id = ?`
		args = append(args, opts.WorkspaceID)
	}
	sqlQuery, args = appendTypeFilter(sqlQuery, args, "e.type", opts.Types)
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, wrapStorageErr(err, "searching events")
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			e        types.Event
			parentID sql.NullString
			typeStr  string
			payload  string
			snippet  string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.WorkspaceID, &parentID, &e.Sequence, &e.Timestamp, &typeStr, &payload, &snippet); err != nil {
			return nil, wrapStorageErr(err, "scanning search result")
		}
		if parentID.Valid {
			v := parentID.String
			e.ParentID = &v
		}
		e.Type = types.EventType(typeStr)
		e.Payload = json.RawMessage(payload)
		out = append(out, SearchResult{Event: &e, SessionID: e.SessionID, Snippet: snippet})
	}
	return out, rows.Err()
}

// defaultSearchableTypes is the set of event types that carry
// free-text payload bodies worth a LIKE scan when FTS5 is absent.
var defaultSearchableTypes = []string{
	string(types.EventMessageUser), string(types.EventMessageAssistant),
	string(types.EventCompactSummary), string(types.EventMemoryLedger),
}

func (s *Store) searchLike(ctx context.Context, query string, opts SearchOpts, limit int) ([]SearchResult, error) {
	typeFilter := opts.Types
	if len(typeFilter) == 0 {
		typeFilter = defaultSearchableTypes
	}
	sqlQuery := `
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM events
		WHERE payload LIKE ?`
	args := []any{"%" + query + "%"}
	sqlQuery, args = appendTypeFilter(sqlQuery, args, "type", typeFilter)
	if opts.SessionID != "" {
		sqlQuery += ` AND session_id = ?`
		args = append(args, opts.SessionID)
	}
	if opts.WorkspaceID != "" {
		sqlQuery += ` AND workspace_id = ?`
		args = append(args, opts.WorkspaceID)
	}
	sqlQuery += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, wrapStorageErr(err, "searching events (like fallback)")
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapStorageErr(err, "scanning search result")
		}
		out = append(out, SearchResult{Event: e, SessionID: e.SessionID})
	}
	return out, rows.Err()
}
