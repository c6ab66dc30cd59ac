package types

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of event types every implementation must
// recognize. Unknown types are preserved verbatim and
// echoed back rather than rejected, so this is documentation of the
// known set, not a validated enum at the storage boundary.
type EventType string

const (
	EventSessionStart        EventType = "session.start"
	EventSessionFork         EventType = "session.fork"
	EventMessageUser         EventType = "message.user"
	EventMessageAssistant    EventType = "message.assistant"
	EventMessageDeleted      EventType = "message.deleted"
	EventToolCall            EventType = "tool.call"
	EventToolResult          EventType = "tool.result"
	EventCompactBoundary     EventType = "compact.boundary"
	EventCompactSummary      EventType = "compact.summary"
	EventContextCleared      EventType = "context.cleared"
	EventConfigModelSwitch   EventType = "config.model_switch"
	EventConfigReasoningLvl  EventType = "config.reasoning_level"
	EventConfigPromptUpdate  EventType = "config.prompt_update"
	EventSkillAdded          EventType = "skill.added"
	EventSkillRemoved        EventType = "skill.removed"
	EventMemoryLedger        EventType = "memory.ledger"
	EventPlanModeEntered     EventType = "plan.mode_entered"
	EventPlanModeExited      EventType = "plan.mode_exited"
	EventPlanCreated         EventType = "plan.created"
	EventStreamTurnStart     EventType = "stream.turn_start"
	EventStreamTurnEnd       EventType = "stream.turn_end"
)

// DeletableKinds is the closed set of event types a message.deleted
// tombstone may target.
var DeletableKinds = map[EventType]bool{
	EventMessageUser:      true,
	EventMessageAssistant: true,
	EventToolResult:       true,
}

// Event is one immutable node in a session's append-only graph.
// Payload is stored and handled as opaque JSON; typed views are
// parsed lazily at each boundary that needs them (see payloads.go),
// so that unknown event types round-trip untouched.
type Event struct {
	ID          string
	SessionID   string
	WorkspaceID string
	ParentID    *string
	Sequence    int64
	Timestamp   time.Time
	Type        EventType
	Payload     json.RawMessage
}

// IsRoot reports whether this event has no parent. A forked session's
// first event has a parent in the source session, so it is not a root.
func (e *Event) IsRoot() bool { return e.ParentID == nil }
