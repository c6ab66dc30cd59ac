// Package eventstore is the public facade: the only entry point
// external callers use. It owns the database handle and the
// linearized append queue, and translates between the storage layer's
// row-oriented view and the reconstructed message view.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/untoldecay/eventgraph/internal/appendqueue"
	"github.com/untoldecay/eventgraph/internal/reconstruct"
	"github.com/untoldecay/eventgraph/internal/storage/sqlite"
	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// Store is the event store facade.
type Store struct {
	db    *sqlite.Store
	queue *appendqueue.Queue

	mu          sync.Mutex
	initialized bool
}

// Open initializes a Store backed by a SQLite file at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}
	s := &Store{db: db}
	s.queue = appendqueue.New(queueWriter{s})
	s.initialized = true
	return s, nil
}

// OpenMemory initializes a Store backed by a private in-memory
// database, for tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sqlite.OpenMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening in-memory event store: %w", err)
	}
	s := &Store{db: db}
	s.queue = appendqueue.New(queueWriter{s})
	s.initialized = true
	return s, nil
}

// IsInitialized reports whether the store has completed Open/OpenMemory.
func (s *Store) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Close flushes the append queue and releases the database handle.
func (s *Store) Close() error {
	s.queue.Close()
	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()
	return s.db.Close()
}

// queueWriter adapts Store's low-level append to the interface
// appendqueue.Queue expects, keeping appendqueue free of any
// dependency on the storage or types packages beyond what it needs.
type queueWriter struct{ s *Store }

func (w queueWriter) AppendEvent(ctx context.Context, sessionID, workspaceID string, parentID *string, typ types.EventType, payload []byte) (*types.Event, error) {
	return w.s.db.AppendEvent(ctx, sqlite.AppendInput{
		SessionID:   sessionID,
		WorkspaceID: workspaceID,
		ParentID:    parentID,
		Type:        typ,
		Payload:     json.RawMessage(payload),
	})
}

// CreateSessionOpts is the input to CreateSession.
type CreateSessionOpts struct {
	WorkspacePath    string
	WorkingDirectory string
	Model            string
	Provider         string
	Title            string
	SystemPrompt     string
	ClientType       string
	Version          string
	Metadata         map[string]any
}

// CreateSessionResult pairs the new session with its session.start
// event.
type CreateSessionResult struct {
	Session   *types.Session
	RootEvent *types.Event
}

// CreateSession creates (or reuses) a workspace by path, creates a
// session, and appends its session.start event.
func (s *Store) CreateSession(ctx context.Context, opts CreateSessionOpts) (*CreateSessionResult, error) {
	sess, err := s.db.CreateSession(ctx, sqlite.NewSessionParams{
		WorkspacePath:    opts.WorkspacePath,
		WorkingDirectory: opts.WorkingDirectory,
		Model:            opts.Model,
		Title:            opts.Title,
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(types.SessionStartPayload{
		WorkingDirectory: opts.WorkingDirectory,
		Model:            opts.Model,
		Provider:         opts.Provider,
		Title:            opts.Title,
		SystemPrompt:     opts.SystemPrompt,
		ClientType:       opts.ClientType,
		Version:          opts.Version,
		Metadata:         opts.Metadata,
	})
	if err != nil {
		return nil, storeerr.Wrap(storeerr.Validation, err, "encoding session.start payload")
	}

	s.queue.Register(sess.ID, sess.WorkspaceID, nil)
	ev, err := s.queue.Append(ctx, sess.ID, sess.WorkspaceID, types.EventSessionStart, payload)
	if err != nil {
		return nil, err
	}

	sess.RootEventID = ev.ID
	sess.HeadEventID = ev.ID
	sess.EventCount = 1
	return &CreateSessionResult{Session: sess, RootEvent: ev}, nil
}

// AppendOpts is the input to Append. ParentID is
// advisory only: the linearized queue always chains from its own
// tracked pending head.
type AppendOpts struct {
	SessionID string
	Type      types.EventType
	Payload   json.RawMessage
	ParentID  *string
}

// Append appends one event to a session through the linearized queue,
// lazily registering the session's actor from its current database
// head if this process has not touched it yet.
func (s *Store) Append(ctx context.Context, opts AppendOpts) (*types.Event, error) {
	sess, err := s.db.GetSession(ctx, opts.SessionID)
	if err != nil {
		return nil, err
	}
	var head *string
	if sess.HeadEventID != "" {
		h := sess.HeadEventID
		head = &h
	}
	s.queue.EnsureRegistered(sess.ID, sess.WorkspaceID, head)
	return s.queue.Append(ctx, sess.ID, sess.WorkspaceID, opts.Type, opts.Payload)
}

// AppendAsync is the fire-and-forget variant.
func (s *Store) AppendAsync(ctx context.Context, opts AppendOpts) error {
	sess, err := s.db.GetSession(ctx, opts.SessionID)
	if err != nil {
		return err
	}
	var head *string
	if sess.HeadEventID != "" {
		h := sess.HeadEventID
		head = &h
	}
	s.queue.EnsureRegistered(sess.ID, sess.WorkspaceID, head)
	s.queue.AppendAsync(ctx, sess.ID, sess.WorkspaceID, opts.Type, opts.Payload)
	return nil
}

// Flush waits for a session's append queue to drain.
func (s *Store) Flush(sessionID string) { s.queue.Flush(sessionID) }

// FlushAll waits for every tracked session's queue to drain.
func (s *Store) FlushAll() { s.queue.FlushAll() }

// DeleteMessage appends a message.deleted tombstone for targetID,
// idempotently: a repeat call for an already-deleted target is a
// no-op rather than a duplicate tombstone.
func (s *Store) DeleteMessage(ctx context.Context, sessionID, targetID string, reason types.DeleteReason) (*types.Event, error) {
	if reason == "" {
		reason = types.DeleteUserRequest
	}
	targetType, err := s.db.ValidateDeleteTarget(ctx, sessionID, targetID)
	if err != nil {
		return nil, err
	}
	already, err := s.db.IsAlreadyDeleted(ctx, sessionID, targetID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, nil
	}

	payload, err := json.Marshal(types.MessageDeletedPayload{
		TargetEventID: targetID,
		TargetType:    targetType,
		Reason:        reason,
	})
	if err != nil {
		return nil, storeerr.Wrap(storeerr.Validation, err, "encoding message.deleted payload")
	}
	return s.Append(ctx, AppendOpts{SessionID: sessionID, Type: types.EventMessageDeleted, Payload: payload})
}

// ForkOpts is the input to Fork.
type ForkOpts struct {
	FromEventID string
	Name        string
}

// ForkResult pairs the new session with its session.fork root event.
type ForkResult struct {
	Session   *types.Session
	RootEvent *types.Event
}

// Fork creates a new session rooted at an arbitrary ancestor event.
func (s *Store) Fork(ctx context.Context, opts ForkOpts) (*ForkResult, error) {
	origin, err := s.db.GetEvent(ctx, opts.FromEventID)
	if err != nil {
		return nil, err
	}
	sess, err := s.db.Fork(ctx, sqlite.ForkInput{
		SourceSessionID: origin.SessionID,
		SourceEventID:   opts.FromEventID,
		Name:            opts.Name,
	})
	if err != nil {
		return nil, err
	}
	s.queue.Register(sess.ID, sess.WorkspaceID, &sess.HeadEventID)
	rootEvent, err := s.db.GetEvent(ctx, sess.RootEventID)
	if err != nil {
		return nil, err
	}
	return &ForkResult{Session: sess, RootEvent: rootEvent}, nil
}

// GetEvent, GetEventsBySession, GetAncestors and GetChildren pass
// directly through to the storage layer.
func (s *Store) GetEvent(ctx context.Context, id string) (*types.Event, error) {
	return s.db.GetEvent(ctx, id)
}

func (s *Store) GetEventsBySession(ctx context.Context, sessionID string) ([]*types.Event, error) {
	return s.db.GetEventsBySession(ctx, sessionID)
}

func (s *Store) GetAncestors(ctx context.Context, eventID string) ([]*types.Event, error) {
	return s.db.GetAncestors(ctx, eventID)
}

func (s *Store) GetChildren(ctx context.Context, eventID string) ([]*types.Event, error) {
	return s.db.GetChildren(ctx, eventID)
}

// MessagesResult is the reconstructed view returned by
// GetMessagesAtHead / GetMessagesAt.
type MessagesResult struct {
	Messages        []types.Message
	MessageEventIDs []*string
	TokenUsage      types.TokenUsage
	TurnCount       int
}

// GetMessagesAtHead reconstructs the message list at a session's
// current head.
func (s *Store) GetMessagesAtHead(ctx context.Context, sessionID string) (*MessagesResult, error) {
	sess, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.HeadEventID == "" {
		return &MessagesResult{}, nil
	}
	return s.GetMessagesAt(ctx, sess.HeadEventID)
}

// GetMessagesAt reconstructs the message list as of eventID.
func (s *Store) GetMessagesAt(ctx context.Context, eventID string) (*MessagesResult, error) {
	chain, err := s.db.GetAncestors(ctx, eventID)
	if err != nil {
		return nil, err
	}
	result := reconstruct.Build(chain)
	return &MessagesResult{
		Messages:        result.Messages,
		MessageEventIDs: result.MessageEventIDs,
		TokenUsage:      result.TokenUsage,
		TurnCount:       result.TurnCount,
	}, nil
}

// StateResult is the session state view returned by GetStateAtHead /
// GetStateAt.
type StateResult struct {
	Messages         []types.Message
	MessageEventIDs  []*string
	TokenUsage       types.TokenUsage
	TurnCount        int
	Model            string
	WorkingDirectory string
	ReasoningLevel   *types.ReasoningLevel
	SystemPrompt     string
	ActiveSkills     []string
	MemoryEntries    int
	InPlanMode       bool
	LastPlanPath     string
}

// GetStateAtHead reconstructs full session state at a session's
// current head.
func (s *Store) GetStateAtHead(ctx context.Context, sessionID string) (*StateResult, error) {
	sess, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.HeadEventID == "" {
		return &StateResult{}, nil
	}
	return s.GetStateAt(ctx, sess.HeadEventID)
}

// GetStateAt reconstructs full session state as of eventID.
func (s *Store) GetStateAt(ctx context.Context, eventID string) (*StateResult, error) {
	chain, err := s.db.GetAncestors(ctx, eventID)
	if err != nil {
		return nil, err
	}
	result := reconstruct.Build(chain)
	snap := sqlite.BuildStateSnapshot(chain)
	return &StateResult{
		Messages:         result.Messages,
		MessageEventIDs:  result.MessageEventIDs,
		TokenUsage:       result.TokenUsage,
		TurnCount:        result.TurnCount,
		Model:            result.Model,
		WorkingDirectory: result.WorkingDirectory,
		ReasoningLevel:   result.ReasoningLevel,
		SystemPrompt:     result.SystemPrompt,
		ActiveSkills:     snap.ActiveSkills,
		MemoryEntries:    snap.MemoryEntries,
		InPlanMode:       snap.InPlanMode,
		LastPlanPath:     snap.LastPlanPath,
	}, nil
}

// Search delegates to the storage layer's FTS-or-LIKE search.
func (s *Store) Search(ctx context.Context, query string, opts sqlite.SearchOpts) ([]sqlite.SearchResult, error) {
	return s.db.Search(ctx, query, opts)
}

// ListSessions delegates to the storage layer.
func (s *Store) ListSessions(ctx context.Context, opts sqlite.ListSessionsOpts) ([]*types.Session, error) {
	return s.db.ListSessions(ctx, opts)
}

// MessagePreview is one entry of GetSessionMessagePreviews.
type MessagePreview struct {
	SessionID         string
	LastUserText      string
	LastAssistantText string
}

// GetSessionMessagePreviews returns, per session id, the last user
// prompt text and last assistant text, used by list views.
func (s *Store) GetSessionMessagePreviews(ctx context.Context, sessionIDs []string) ([]MessagePreview, error) {
	out := make([]MessagePreview, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		res, err := s.GetMessagesAtHead(ctx, id)
		if err != nil {
			return nil, err
		}
		preview := MessagePreview{SessionID: id}
		for i := len(res.Messages) - 1; i >= 0; i-- {
			m := res.Messages[i]
			text := firstText(m.Content)
			if text == "" {
				continue
			}
			if m.Role == types.RoleUser && preview.LastUserText == "" {
				preview.LastUserText = text
			}
			if m.Role == types.RoleAssistant && preview.LastAssistantText == "" {
				preview.LastAssistantText = text
			}
			if preview.LastUserText != "" && preview.LastAssistantText != "" {
				break
			}
		}
		out = append(out, preview)
	}
	return out, nil
}

func firstText(blocks []types.ContentBlock) string {
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// EndSession, ClearSessionEnded and UpdateLatestModel pass through to
// the storage layer.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	return s.db.EndSession(ctx, sessionID)
}

func (s *Store) ClearSessionEnded(ctx context.Context, sessionID string) error {
	return s.db.ClearSessionEnded(ctx, sessionID)
}

func (s *Store) UpdateLatestModel(ctx context.Context, sessionID, model string) error {
	if err := s.db.UpdateLatestModel(ctx, sessionID, model); err != nil {
		return err
	}
	return nil
}

// PutBlob, GetBlob and ReleaseBlob pass through to the storage layer.
func (s *Store) PutBlob(ctx context.Context, content []byte, mimeType string) (*types.Blob, error) {
	return s.db.PutBlob(ctx, content, mimeType)
}

func (s *Store) GetBlob(ctx context.Context, id string) (*types.Blob, error) {
	return s.db.GetBlob(ctx, id)
}

func (s *Store) ReleaseBlob(ctx context.Context, id string) error {
	return s.db.ReleaseBlob(ctx, id)
}

// WriteLog persists one operational log record, satisfying
// opslog.DBWriter so the CLI's logger can mirror records into the
// same database it operates on.
func (s *Store) WriteLog(ctx context.Context, rec *types.LogRecord) error {
	return s.db.WriteLog(ctx, rec)
}

// QueryLogs passes through to the storage layer.
func (s *Store) QueryLogs(ctx context.Context, opts sqlite.QueryLogsOpts) ([]*types.LogRecord, error) {
	return s.db.QueryLogs(ctx, opts)
}

// RunDoctor passes through to the storage layer's schema/graph sanity
// sweep.
func (s *Store) RunDoctor(ctx context.Context) (*sqlite.DoctorReport, error) {
	return s.db.RunDoctor(ctx)
}
