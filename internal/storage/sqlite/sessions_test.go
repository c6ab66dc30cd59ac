package sqlite

import (
	"context"
	"testing"
)

func TestCreateSessionCreatesWorkspaceOnFirstUse(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.CreateSession(context.Background(), NewSessionParams{
		WorkspacePath: "/repo",
		Model:         "claude-sonnet-4",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.WorkspaceID == "" {
		t.Fatalf("expected a workspace id to be assigned")
	}

	ws, err := s.GetWorkspace(context.Background(), sess.WorkspaceID)
	if err != nil {
		t.Fatalf("GetWorkspace: %v", err)
	}
	if ws.Path != "/repo" {
		t.Fatalf("expected workspace path /repo, got %s", ws.Path)
	}
}

func TestCreateSessionReusesWorkspaceAcrossSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s1, err := s.CreateSession(ctx, NewSessionParams{WorkspacePath: "/repo", Model: "m"})
	if err != nil {
		t.Fatalf("CreateSession 1: %v", err)
	}
	s2, err := s.CreateSession(ctx, NewSessionParams{WorkspacePath: "/repo", Model: "m"})
	if err != nil {
		t.Fatalf("CreateSession 2: %v", err)
	}
	if s1.WorkspaceID != s2.WorkspaceID {
		t.Fatalf("expected sessions against the same path to share a workspace, got %s and %s", s1.WorkspaceID, s2.WorkspaceID)
	}
}

func TestListSessionsScopesToWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessA := newTestSession(t, s, "/repo-a")
	newTestSession(t, s, "/repo-b")

	list, err := s.ListSessions(ctx, ListSessionsOpts{WorkspaceID: sessA.WorkspaceID})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session scoped to workspace, got %d", len(list))
	}
	if list[0].ID != sessA.ID {
		t.Fatalf("expected session %s, got %s", sessA.ID, list[0].ID)
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	ctx := context.Background()

	if err := s.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := s.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession (repeat): %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.EndedAt == nil {
		t.Fatalf("expected ended_at to be set")
	}
}

func TestClearSessionEndedUnsetsEndedAt(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	ctx := context.Background()

	if err := s.EndSession(ctx, sess.ID); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := s.ClearSessionEnded(ctx, sess.ID); err != nil {
		t.Fatalf("ClearSessionEnded: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.EndedAt != nil {
		t.Fatalf("expected ended_at to be cleared, got %v", got.EndedAt)
	}
}

func TestSetTagsReplacesTagSet(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	ctx := context.Background()

	if err := s.SetTags(ctx, sess.ID, []string{"bug", "urgent"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "bug" || got.Tags[1] != "urgent" {
		t.Fatalf("expected tags [bug urgent], got %v", got.Tags)
	}
}
