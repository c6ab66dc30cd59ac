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

// AppendInput is what the append queue hands the storage layer for a
// single event write. The queue is the only caller:
// it guarantees ParentID is the session's current head, so this
// method never has to resolve "what is the head" itself.
type AppendInput struct {
	SessionID   string
	WorkspaceID string
	ParentID    *string
	Type        types.EventType
	Payload     json.RawMessage
}

// AppendEvent inserts one event and advances the owning session's head
// pointer and rollup counters in the same transaction, so a reader
// never observes an event without its session accounting reflecting
// it.
func (s *Store) AppendEvent(ctx context.Context, in AppendInput) (*types.Event, error) {
	var ev *types.Event
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence) + 1, 0) FROM events WHERE session_id = ?`, in.SessionID).Scan(&seq)
		if err != nil {
			return wrapStorageErr(err, "allocating sequence for session %s", in.SessionID)
		}

		e := &types.Event{
			ID:          ids.New(ids.Event),
			SessionID:   in.SessionID,
			WorkspaceID: in.WorkspaceID,
			ParentID:    in.ParentID,
			Sequence:    seq,
			Timestamp:   s.Now(),
			Type:        in.Type,
			Payload:     in.Payload,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.SessionID, e.WorkspaceID, e.ParentID, e.Sequence, e.Timestamp, string(e.Type), string(e.Payload))
		if err != nil {
			return wrapStorageErr(err, "inserting event")
		}

		if err := s.setRootAndHead(ctx, tx, in.SessionID, e.ID); err != nil {
			return wrapStorageErr(err, "setting root event")
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET head_event_id = ?, event_count = event_count + 1, last_activity_at = ?
			WHERE id = ?`, e.ID, e.Timestamp, in.SessionID); err != nil {
			return wrapStorageErr(err, "advancing head")
		}

		if err := applyRollups(ctx, tx, in.SessionID, e); err != nil {
			return err
		}
		if err := indexForSearch(ctx, tx, e); err != nil {
			return err
		}

		ev = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// applyRollups updates the session's message/token/cost counters for
// event types that carry accounting data. Most event types carry none
// and this is a no-op.
func applyRollups(ctx context.Context, tx *sql.Tx, sessionID string, e *types.Event) error {
	switch e.Type {
	case types.EventMessageUser:
		var p types.MessageUserPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return storeerr.Wrap(storeerr.Validation, err, "decoding message.user payload")
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET message_count = message_count + 1,
				input_tokens = input_tokens + ?, output_tokens = output_tokens + ?,
				cache_read_tokens = cache_read_tokens + ?, cache_creation_tokens = cache_creation_tokens + ?,
				last_turn_input_tokens = ?
			WHERE id = ?`,
			tokensOrZero(p.TokenUsage).InputTokens, tokensOrZero(p.TokenUsage).OutputTokens,
			tokensOrZero(p.TokenUsage).CacheReadTokens, tokensOrZero(p.TokenUsage).CacheCreationTokens,
			tokensOrZero(p.TokenUsage).InputTokens, sessionID)
		return err

	case types.EventMessageAssistant:
		var p types.MessageAssistantPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return storeerr.Wrap(storeerr.Validation, err, "decoding message.assistant payload")
		}
		usage := tokensOrZero(p.TokenUsage)
		cost := 0.0
		switch {
		case p.Cost != nil:
			cost = *p.Cost
		case p.Model != "":
			cost = estimateCost(p.Model, usage)
		}
		contextSize := usage.InputTokens
		if p.NormalizedUsage != nil && p.NormalizedUsage.ContextWindowTokens > 0 {
			contextSize = p.NormalizedUsage.ContextWindowTokens
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions SET message_count = message_count + 1,
				input_tokens = input_tokens + ?, output_tokens = output_tokens + ?,
				cache_read_tokens = cache_read_tokens + ?, cache_creation_tokens = cache_creation_tokens + ?,
				last_turn_input_tokens = ?, total_cost = total_cost + ?
			WHERE id = ?`,
			usage.InputTokens, usage.OutputTokens,
			usage.CacheReadTokens, usage.CacheCreationTokens,
			contextSize, cost, sessionID)
		return err

	case types.EventConfigModelSwitch:
		var p types.ConfigModelSwitchPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return storeerr.Wrap(storeerr.Validation, err, "decoding config.model_switch payload")
		}
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET latest_model = ? WHERE id = ?`, p.NewModel, sessionID)
		return err
	}
	return nil
}

func tokensOrZero(u *types.TokenUsage) types.TokenUsage {
	if u == nil {
		return types.TokenUsage{}
	}
	return *u
}

// GetEvent loads a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeerr.New(storeerr.NotFound, "event %s not found", id)
	}
	if err != nil {
		return nil, wrapStorageErr(err, "loading event %s", id)
	}
	return e, nil
}

func scanEvent(row interface{ Scan(...any) error }) (*types.Event, error) {
	var (
		e        types.Event
		parentID sql.NullString
		typeStr  string
		payload  string
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.WorkspaceID, &parentID, &e.Sequence, &e.Timestamp, &typeStr, &payload); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.String
		e.ParentID = &v
	}
	e.Type = types.EventType(typeStr)
	e.Payload = json.RawMessage(payload)
	return &e, nil
}

// GetEventsBySession returns every event of a session in sequence
// order.
func (s *Store) GetEventsBySession(ctx context.Context, sessionID string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM events WHERE session_id = ? ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, wrapStorageErr(err, "listing events for session %s", sessionID)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapStorageErr(err, "scanning event row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetChildren returns the events whose parent is id, in sequence
// order. A session's linear history has at most one child per event;
// more than one only happens across a fork boundary: a forked
// session's root stores the source event as its parent_id, and since
// this query does not filter by session it is returned here too.
func (s *Store) GetChildren(ctx context.Context, id string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM events WHERE parent_id = ? ORDER BY sequence ASC`, id)
	if err != nil {
		return nil, wrapStorageErr(err, "listing children of %s", id)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapStorageErr(err, "scanning event row")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
