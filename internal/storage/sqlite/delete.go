package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// ValidateDeleteTarget checks that targetID names an event in
// sessionID whose type is one of the deletable kinds, before the
// append queue admits a message.deleted tombstone for it. It returns
// the target's type so the caller can embed it in the tombstone
// payload without a second round trip.
func (s *Store) ValidateDeleteTarget(ctx context.Context, sessionID, targetID string) (types.EventType, error) {
	row := s.db.QueryRowContext(ctx, `SELECT session_id, type FROM events WHERE id = ?`, targetID)
	var (
		owningSession string
		typeStr       string
	)
	if err := row.Scan(&owningSession, &typeStr); err == sql.ErrNoRows {
		return "", storeerr.New(storeerr.NotFound, "event %s not found", targetID)
	} else if err != nil {
		return "", wrapStorageErr(err, "loading delete target %s", targetID)
	}
	if owningSession != sessionID {
		return "", storeerr.New(storeerr.Validation, "event %s does not belong to session %s", targetID, sessionID)
	}
	kind := types.EventType(typeStr)
	if !types.DeletableKinds[kind] {
		return "", storeerr.New(storeerr.Validation, "event type %s cannot be deleted", kind)
	}
	return kind, nil
}

// IsAlreadyDeleted reports whether a message.deleted tombstone already
// targets eventID, so a retried delete call is a no-op rather than a
// duplicate tombstone.
func (s *Store) IsAlreadyDeleted(ctx context.Context, sessionID, eventID string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM events WHERE session_id = ? AND type = ?`, sessionID, string(types.EventMessageDeleted))
	if err != nil {
		return false, wrapStorageErr(err, "scanning tombstones for session %s", sessionID)
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return false, wrapStorageErr(err, "scanning tombstone row")
		}
		var p types.MessageDeletedPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			continue
		}
		if p.TargetEventID == eventID {
			return true, nil
		}
	}
	return false, rows.Err()
}
