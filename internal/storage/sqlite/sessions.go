package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/untoldecay/eventgraph/internal/ids"
	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// NewSessionParams is the set of fields a caller supplies when opening
// a session.
type NewSessionParams struct {
	WorkspacePath     string
	WorkingDirectory  string
	Model             string
	Title             string
	ParentSessionID   *string
	ForkFromEventID   *string
	SpawningSessionID *string
	SpawnType         *types.SpawnKind
	SpawnTask         *string
}

// CreateSession upserts the owning workspace and inserts an empty
// session row (no root event yet; the append queue writes the
// session.start event, and AppendEvent then records it through
// setRootAndHead). Keeping session
// creation and root-event append as two steps lets the queue own all
// event insertion through one code path.
func (s *Store) CreateSession(ctx context.Context, p NewSessionParams) (*types.Session, error) {
	var sess *types.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ws, err := getWorkspaceByPath(ctx, tx, p.WorkspacePath)
		if err != nil {
			if !storeerr.Is(err, storeerr.NotFound) {
				return err
			}
			now := s.Now()
			ws = &types.Workspace{
				ID:             ids.New(ids.Workspace),
				Path:           p.WorkspacePath,
				CreatedAt:      now,
				LastActivityAt: now,
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO workspaces (id, path, name, created_at, last_activity_at)
				VALUES (?, ?, '', ?, ?)`, ws.ID, ws.Path, ws.CreatedAt, ws.LastActivityAt); err != nil {
				return wrapStorageErr(err, "creating workspace for %s", p.WorkspacePath)
			}
		}

		now := s.Now()
		tags, _ := json.Marshal([]string{})
		sess = &types.Session{
			ID:                ids.New(ids.Session),
			WorkspaceID:       ws.ID,
			WorkingDirectory:  p.WorkingDirectory,
			LatestModel:       p.Model,
			Title:             p.Title,
			Tags:              []string{},
			ParentSessionID:   p.ParentSessionID,
			ForkFromEventID:   p.ForkFromEventID,
			SpawningSessionID: p.SpawningSessionID,
			SpawnType:         p.SpawnType,
			SpawnTask:         p.SpawnTask,
			CreatedAt:         now,
			LastActivityAt:    now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (
				id, workspace_id, working_directory, latest_model, title, tags,
				parent_session_id, fork_from_event_id, spawning_session_id,
				spawn_type, spawn_task, created_at, last_activity_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.WorkspaceID, sess.WorkingDirectory, sess.LatestModel, sess.Title, string(tags),
			sess.ParentSessionID, sess.ForkFromEventID, sess.SpawningSessionID,
			sess.SpawnType, sess.SpawnTask, sess.CreatedAt, sess.LastActivityAt)
		if err != nil {
			return wrapStorageErr(err, "creating session")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

const sessionColumns = `
	id, workspace_id, working_directory, latest_model, title, tags,
	root_event_id, head_event_id, parent_session_id, fork_from_event_id,
	spawning_session_id, spawn_type, spawn_task,
	event_count, message_count, input_tokens, output_tokens,
	cache_read_tokens, cache_creation_tokens, last_turn_input_tokens, total_cost,
	ended_at, created_at, last_activity_at`

func scanSession(row interface{ Scan(...any) error }) (*types.Session, error) {
	var (
		sess        types.Session
		tagsJSON    string
		rootEventID sql.NullString
		headEventID sql.NullString
		parentID    sql.NullString
		forkFromID  sql.NullString
		spawningID  sql.NullString
		spawnType   sql.NullString
		spawnTask   sql.NullString
		endedAt     sql.NullTime
	)
	err := row.Scan(
		&sess.ID, &sess.WorkspaceID, &sess.WorkingDirectory, &sess.LatestModel, &sess.Title, &tagsJSON,
		&rootEventID, &headEventID, &parentID, &forkFromID,
		&spawningID, &spawnType, &spawnTask,
		&sess.EventCount, &sess.MessageCount, &sess.InputTokens, &sess.OutputTokens,
		&sess.CacheReadTokens, &sess.CacheCreationTokens, &sess.LastTurnInputTokens, &sess.TotalCost,
		&endedAt, &sess.CreatedAt, &sess.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &sess.Tags)
	}
	if rootEventID.Valid {
		sess.RootEventID = rootEventID.String
	}
	if headEventID.Valid {
		sess.HeadEventID = headEventID.String
	}
	if parentID.Valid {
		v := parentID.String
		sess.ParentSessionID = &v
	}
	if forkFromID.Valid {
		v := forkFromID.String
		sess.ForkFromEventID = &v
	}
	if spawningID.Valid {
		v := spawningID.String
		sess.SpawningSessionID = &v
	}
	if spawnType.Valid {
		v := types.SpawnKind(spawnType.String)
		sess.SpawnType = &v
	}
	if spawnTask.Valid {
		v := spawnTask.String
		sess.SpawnTask = &v
	}
	if endedAt.Valid {
		v := endedAt.Time
		sess.EndedAt = &v
	}
	return &sess, nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeerr.New(storeerr.NotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading session %s", id)
	}
	return sess, nil
}

// ListSessionsOpts filters ListSessions.
type ListSessionsOpts struct {
	WorkspaceID string
	Limit       int
}

// ListSessions returns sessions most recently active first, optionally
// scoped to a workspace.
func (s *Store) ListSessions(ctx context.Context, opts ListSessionsOpts) ([]*types.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := []any{}
	if opts.WorkspaceID != "" {
		query += ` WHERE workspace_id = ?`
		args = append(args, opts.WorkspaceID)
	}
	query += ` ORDER BY last_activity_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorageErr(err, "listing sessions")
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrapStorageErr(err, "scanning session row")
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// setRootAndHead records the session's root event once, the first time
// an event is appended to it.
func (s *Store) setRootAndHead(ctx context.Context, tx *sql.Tx, sessionID, eventID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sessions SET root_event_id = ?, head_event_id = ?
		WHERE id = ? AND root_event_id IS NULL`, eventID, eventID, sessionID)
	return err
}

// SetTags replaces a session's tag set.
func (s *Store) SetTags(ctx context.Context, sessionID string, tags []string) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return storeerr.Wrap(storeerr.Validation, err, "encoding tags")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET tags = ? WHERE id = ?`, string(data), sessionID)
	if err != nil {
		return wrapStorageErr(err, "setting tags for session %s", sessionID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.New(storeerr.NotFound, "session %s not found", sessionID)
	}
	return nil
}

// UpdateLatestModel records a model switch on the session row itself,
// in addition to the config.model_switch event the caller appends
// separately, so list views can read the current model without
// reconstructing the full message history.
func (s *Store) UpdateLatestModel(ctx context.Context, sessionID, model string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET latest_model = ? WHERE id = ?`, model, sessionID)
	if err != nil {
		return wrapStorageErr(err, "updating latest model for session %s", sessionID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.New(storeerr.NotFound, "session %s not found", sessionID)
	}
	return nil
}

// EndSession stamps a session as ended. Idempotent: ending an
// already-ended session is not an error.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	now := s.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, now, sessionID)
	if err != nil {
		return wrapStorageErr(err, "ending session %s", sessionID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return err
		}
	}
	return nil
}

// ClearSessionEnded un-ends a session, used when new activity resumes
// on a session previously marked ended.
func (s *Store) ClearSessionEnded(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET ended_at = NULL WHERE id = ?`, sessionID)
	if err != nil {
		return wrapStorageErr(err, "clearing ended state for session %s", sessionID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeerr.New(storeerr.NotFound, "session %s not found", sessionID)
	}
	return nil
}
