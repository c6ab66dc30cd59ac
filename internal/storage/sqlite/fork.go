package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/untoldecay/eventgraph/internal/ids"
	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// ForkInput describes a new session branching off an existing one at
// a specific event.
type ForkInput struct {
	SourceSessionID string
	SourceEventID   string
	Name            string
}

// Fork creates a new session whose root is a session.fork event
// carrying a pointer to SourceEventID. The new session does not copy
// the source's events: the fork root's parent_id is SourceEventID, so
// GetAncestors walks back into the source session's chain and history
// is shared, not duplicated.
func (s *Store) Fork(ctx context.Context, in ForkInput) (*types.Session, error) {
	var newSess *types.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		src, err := scanSessionTx(ctx, tx, in.SourceSessionID)
		if err != nil {
			return err
		}
		srcEvent, err := scanEventByIDTx(ctx, tx, in.SourceEventID)
		if err != nil {
			return err
		}
		if srcEvent.SessionID != in.SourceSessionID {
			return storeerr.New(storeerr.Validation, "event %s does not belong to session %s", in.SourceEventID, in.SourceSessionID)
		}

		now := s.Now()
		tags, _ := json.Marshal([]string{})
		parentID := in.SourceSessionID
		forkFrom := in.SourceEventID
		spawn := types.SpawnFork

		sess := &types.Session{
			ID:                ids.New(ids.Session),
			WorkspaceID:       src.WorkspaceID,
			WorkingDirectory:  src.WorkingDirectory,
			LatestModel:       src.LatestModel,
			Title:             in.Name,
			Tags:              []string{},
			ParentSessionID:   &parentID,
			ForkFromEventID:   &forkFrom,
			SpawningSessionID: &parentID,
			SpawnType:         &spawn,
			CreatedAt:         now,
			LastActivityAt:    now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (
				id, workspace_id, working_directory, latest_model, title, tags,
				parent_session_id, fork_from_event_id, spawning_session_id, spawn_type,
				created_at, last_activity_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.WorkspaceID, sess.WorkingDirectory, sess.LatestModel, sess.Title, string(tags),
			sess.ParentSessionID, sess.ForkFromEventID, sess.SpawningSessionID, sess.SpawnType,
			sess.CreatedAt, sess.LastActivityAt)
		if err != nil {
			return wrapStorageErr(err, "creating forked session")
		}

		forkPayload, err := json.Marshal(types.SessionForkPayload{
			SourceSessionID: in.SourceSessionID,
			SourceEventID:   in.SourceEventID,
			Name:            in.Name,
		})
		if err != nil {
			return storeerr.Wrap(storeerr.Validation, err, "encoding fork payload")
		}

		// The fork root's parent_id crosses into the source session, even
		// though it is the first event of the new session; this is the
		// only place an ancestor walk crosses a session boundary.
		sourceEventID := in.SourceEventID
		ev := &types.Event{
			ID:          ids.New(ids.Event),
			SessionID:   sess.ID,
			WorkspaceID: sess.WorkspaceID,
			ParentID:    &sourceEventID,
			Sequence:    0,
			Timestamp:   now,
			Type:        types.EventSessionFork,
			Payload:     forkPayload,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.SessionID, ev.WorkspaceID, ev.ParentID, ev.Sequence, ev.Timestamp, string(ev.Type), string(ev.Payload))
		if err != nil {
			return wrapStorageErr(err, "inserting fork root event")
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET root_event_id = ?, head_event_id = ?, event_count = 1
			WHERE id = ?`, ev.ID, ev.ID, sess.ID); err != nil {
			return wrapStorageErr(err, "setting forked session root")
		}

		newSess = sess
		newSess.RootEventID = ev.ID
		newSess.HeadEventID = ev.ID
		newSess.EventCount = 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSess, nil
}

func scanSessionTx(ctx context.Context, tx *sql.Tx, id string) (*types.Session, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, storeerr.New(storeerr.NotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading session %s", id)
	}
	return sess, nil
}

func scanEventByIDTx(ctx context.Context, tx *sql.Tx, id string) (*types.Event, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, storeerr.New(storeerr.NotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading event %s", id)
	}
	return e, nil
}
