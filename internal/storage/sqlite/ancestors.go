package sqlite

import (
	"context"
	"encoding/json"

	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// GetAncestors walks parent_id pointers from eventID back to a root
// event (crossing a fork root into its source session's chain) and
// returns them in root-to-eventID order, the shape
// reconstruct.Build expects.
//
// SQLite's recursive CTE support makes this a single query rather than
// a per-hop round trip; WITH RECURSIVE is ordinary ANSI SQL and
// ncruces/go-sqlite3 supports it like any other SQLite build.
func (s *Store) GetAncestors(ctx context.Context, eventID string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE chain(id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload, depth) AS (
			SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload, 0
			FROM events WHERE id = ?
			UNION ALL
			SELECT e.id, e.session_id, e.workspace_id, e.parent_id, e.sequence, e.timestamp, e.type, e.payload, chain.depth + 1
			FROM events e JOIN chain ON e.id = chain.parent_id
		)
		SELECT id, session_id, workspace_id, parent_id, sequence, timestamp, type, payload
		FROM chain ORDER BY depth DESC`, eventID)
	if err != nil {
		return nil, wrapStorageErr(err, "walking ancestors of %s", eventID)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapStorageErr(err, "scanning ancestor row")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr(err, "walking ancestors of %s", eventID)
	}
	if len(out) == 0 {
		return nil, storeerr.New(storeerr.NotFound, "event %s not found", eventID)
	}
	return out, nil
}

// GetAncestorsAtHead is GetAncestors for a session's current head, the
// common case.
func (s *Store) GetAncestorsAtHead(ctx context.Context, sessionID string) ([]*types.Event, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.HeadEventID == "" {
		return nil, nil
	}
	return s.GetAncestors(ctx, sess.HeadEventID)
}

// StateSnapshot is the cross-cutting session state as of a given
// event, derived from the ancestor chain in addition to the message
// list.
type StateSnapshot struct {
	Model          string
	ReasoningLevel *types.ReasoningLevel
	ActiveSkills   []string
	MemoryEntries  int
	InPlanMode     bool
	LastPlanPath   string
}

// BuildStateSnapshot folds the config/skill/plan/memory events of an
// ancestor chain into a point-in-time snapshot. It is a pure function
// over the chain so it is exercised directly by ancestors_test.go
// without a database.
func BuildStateSnapshot(chain []*types.Event) StateSnapshot {
	var snap StateSnapshot
	skills := map[string]bool{}

	for _, e := range chain {
		switch e.Type {
		case types.EventSessionStart:
			var p types.SessionStartPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				snap.Model = p.Model
			}
		case types.EventConfigModelSwitch:
			var p types.ConfigModelSwitchPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				snap.Model = p.NewModel
			}
		case types.EventConfigReasoningLvl:
			var p types.ConfigReasoningLevelPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				lvl := p.NewLevel
				snap.ReasoningLevel = &lvl
			}
		case types.EventSkillAdded:
			var p types.SkillAddedPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				skills[p.SkillName] = true
			}
		case types.EventSkillRemoved:
			var p types.SkillRemovedPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				delete(skills, p.SkillName)
			}
		case types.EventMemoryLedger:
			snap.MemoryEntries++
		case types.EventPlanModeEntered:
			snap.InPlanMode = true
		case types.EventPlanModeExited:
			snap.InPlanMode = false
		case types.EventPlanCreated:
			var p types.PlanCreatedPayload
			if json.Unmarshal(e.Payload, &p) == nil {
				snap.LastPlanPath = p.PlanPath
			}
		}
	}

	for name := range skills {
		snap.ActiveSkills = append(snap.ActiveSkills, name)
	}
	return snap
}
