package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/untoldecay/eventgraph/internal/types"
)

// newTestStore returns an in-memory Store for a single test, closed
// automatically on cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
	})
	return store
}

// newTestSession creates a workspace, a session row, and its
// session.start root event, returning the session with its head
// pointer already set.
func newTestSession(t *testing.T, s *Store, workspacePath string) *types.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, NewSessionParams{
		WorkspacePath:    workspacePath,
		WorkingDirectory: workspacePath,
		Model:            "claude-sonnet-4",
	})
	if err != nil {
		t.Fatalf("CreateSession(%q) failed: %v", workspacePath, err)
	}

	payload := mustJSON(t, types.SessionStartPayload{
		WorkingDirectory: workspacePath,
		Model:            "claude-sonnet-4",
	})
	root, err := s.AppendEvent(ctx, AppendInput{
		SessionID:   sess.ID,
		WorkspaceID: sess.WorkspaceID,
		ParentID:    nil,
		Type:        types.EventSessionStart,
		Payload:     payload,
	})
	if err != nil {
		t.Fatalf("appending session.start: %v", err)
	}

	sess, err = s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("reloading session %s: %v", sess.ID, err)
	}
	if sess.RootEventID != root.ID {
		t.Fatalf("session %s root event not set to %s", sess.ID, root.ID)
	}
	return sess
}

func appendEvent(t *testing.T, s *Store, sess *types.Session, parentID *string, typ types.EventType, payload any) *types.Event {
	t.Helper()
	ev, err := s.AppendEvent(context.Background(), AppendInput{
		SessionID:   sess.ID,
		WorkspaceID: sess.WorkspaceID,
		ParentID:    parentID,
		Type:        typ,
		Payload:     mustJSON(t, payload),
	})
	if err != nil {
		t.Fatalf("appending %s: %v", typ, err)
	}
	return ev
}

// rawUserPayload mirrors message.user's wire shape directly (rather
// than going through types.MessageUserPayload, whose Content field is
// a private union type) since JSON's bare-string content form is all
// these tests need.
type rawUserPayload struct {
	Content string `json:"content"`
	Turn    int    `json:"turn,omitempty"`
}

func appendUserMessage(t *testing.T, s *Store, sess *types.Session, parentID *string, text string) *types.Event {
	t.Helper()
	return appendEvent(t, s, sess, parentID, types.EventMessageUser, rawUserPayload{Content: text})
}

func appendAssistantMessage(t *testing.T, s *Store, sess *types.Session, parentID *string, text string) *types.Event {
	t.Helper()
	payload := types.MessageAssistantPayload{
		Content: []types.ContentBlock{{Type: "text", Text: text}},
		Turn:    1,
	}
	return appendEvent(t, s, sess, parentID, types.EventMessageAssistant, payload)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling %T: %v", v, err)
	}
	return data
}

func stringPtr(s string) *string { return &s }

// ev and sp build a bare types.Event for tests that exercise pure
// functions (BuildStateSnapshot) directly over a hand-built chain,
// without a Store.
func ev(id string, parent *string, typ types.EventType, payload any) *types.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return &types.Event{ID: id, ParentID: parent, Type: typ, Payload: data}
}

func sp(s string) *string { return &s }

func textBlocks(text string) []types.ContentBlock {
	return []types.ContentBlock{{Type: "text", Text: text}}
}
