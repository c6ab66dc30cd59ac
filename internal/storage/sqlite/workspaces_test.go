package sqlite

import (
	"context"
	"testing"
)

func TestUpsertWorkspaceReusesExistingPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w1, err := s.UpsertWorkspace(ctx, "/repo", "repo")
	if err != nil {
		t.Fatalf("UpsertWorkspace: %v", err)
	}
	w2, err := s.UpsertWorkspace(ctx, "/repo", "repo")
	if err != nil {
		t.Fatalf("UpsertWorkspace (repeat): %v", err)
	}
	if w1.ID != w2.ID {
		t.Fatalf("expected same workspace id for repeated path, got %s and %s", w1.ID, w2.ID)
	}
}

func TestListWorkspacesOrdersByLastActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertWorkspace(ctx, "/repo-a", "a"); err != nil {
		t.Fatalf("UpsertWorkspace a: %v", err)
	}
	if _, err := s.UpsertWorkspace(ctx, "/repo-b", "b"); err != nil {
		t.Fatalf("UpsertWorkspace b: %v", err)
	}

	list, err := s.ListWorkspaces(ctx)
	if err != nil {
		t.Fatalf("ListWorkspaces: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(list))
	}
	// Most recently touched (b, created after a) should lead.
	if list[0].Path != "/repo-b" {
		t.Fatalf("expected /repo-b first, got %s", list[0].Path)
	}
}
