// Package types holds the data model shared by the storage layer, the
// append queue, the reconstructor and the facade: workspaces,
// sessions, events, blobs, log records, and the JSON payload shapes
// carried on events.
package types

import "time"

// Workspace is a filesystem path the store has seen, identified by
// that path.
type Workspace struct {
	ID             string
	Path           string
	Name           string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// SpawnKind is the closed set of ways a session can have come into
// being as a child of another session.
type SpawnKind string

const (
	SpawnSubsession SpawnKind = "subsession"
	SpawnTmux       SpawnKind = "tmux"
	SpawnFork       SpawnKind = "fork"
)

// ReasoningLevel is the closed set of effective reasoning levels a
// session can carry.
type ReasoningLevel string

const (
	ReasoningLow    ReasoningLevel = "low"
	ReasoningMedium ReasoningLevel = "medium"
	ReasoningHigh   ReasoningLevel = "high"
	ReasoningXHigh  ReasoningLevel = "xhigh"
)

// Session is one append-only conversation graph.
type Session struct {
	ID          string
	WorkspaceID string

	WorkingDirectory string
	LatestModel      string
	Title            string
	Tags             []string

	RootEventID string
	HeadEventID string

	ParentSessionID *string
	ForkFromEventID *string

	SpawningSessionID *string
	SpawnType         *SpawnKind
	SpawnTask         *string

	EventCount          int64
	MessageCount        int64
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	LastTurnInputTokens int64
	TotalCost           float64

	EndedAt *time.Time

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Blob is a content-addressed byte array referenced from event
// payloads for large data.
type Blob struct {
	ID             string
	ContentHash    string
	Content        []byte
	MimeType       string
	SizeOriginal   int
	SizeCompressed int
	Compression    string
	RefCount       int
	CreatedAt      time.Time
}

// LogRecord is an operational log line, never consulted by
// reconstruction.
type LogRecord struct {
	ID           int64
	SessionID    *string
	Timestamp    time.Time
	Level        string
	LevelNum     int
	Component    string
	Message      string
	ErrorMessage *string
	ErrorStack   *string
}

// DeleteReason is the closed set of reasons a message.deleted
// tombstone can carry.
type DeleteReason string

const (
	DeleteUserRequest       DeleteReason = "user_request"
	DeleteContentPolicy     DeleteReason = "content_policy"
	DeleteContextManagement DeleteReason = "context_management"
)
