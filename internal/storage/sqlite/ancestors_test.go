package sqlite

import (
	"context"
	"testing"

	"github.com/untoldecay/eventgraph/internal/types"
)

func TestGetAncestorsReturnsRootToLeafOrder(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")

	e1 := appendUserMessage(t, s, sess, &sess.HeadEventID, "one")
	e2 := appendAssistantMessage(t, s, sess, &e1.ID, "two")
	e3 := appendUserMessage(t, s, sess, &e2.ID, "three")

	chain, err := s.GetAncestors(context.Background(), e3.ID)
	if err != nil {
		t.Fatalf("GetAncestors: %v", err)
	}
	if len(chain) != 4 { // session.start + 3
		t.Fatalf("expected chain length 4, got %d", len(chain))
	}
	if chain[0].Type != types.EventSessionStart {
		t.Fatalf("expected root first, got %s", chain[0].Type)
	}
	if chain[len(chain)-1].ID != e3.ID {
		t.Fatalf("expected leaf last, got %s", chain[len(chain)-1].ID)
	}
}

func TestGetAncestorsCrossesForkBoundary(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	e1 := appendUserMessage(t, s, sess, &sess.HeadEventID, "source turn")

	forked, err := s.Fork(context.Background(), ForkInput{
		SourceSessionID: sess.ID,
		SourceEventID:   e1.ID,
		Name:            "branch",
	})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}

	forkLeaf := appendUserMessage(t, s, forked, &forked.HeadEventID, "branch turn")

	chain, err := s.GetAncestors(context.Background(), forkLeaf.ID)
	if err != nil {
		t.Fatalf("GetAncestors: %v", err)
	}
	// session.start, message.user(e1), session.fork, message.user(forkLeaf)
	if len(chain) != 4 {
		t.Fatalf("expected chain length 4 across fork boundary, got %d: %v", len(chain), chain)
	}
	if chain[1].ID != e1.ID {
		t.Fatalf("expected source event in forked chain, got %s", chain[1].ID)
	}
	if chain[2].Type != types.EventSessionFork {
		t.Fatalf("expected session.fork event in chain, got %s", chain[2].Type)
	}
}

func TestGetAncestorsAtHeadMatchesSessionHead(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	e1 := appendUserMessage(t, s, sess, &sess.HeadEventID, "hi")

	chain, err := s.GetAncestorsAtHead(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetAncestorsAtHead: %v", err)
	}
	if chain[len(chain)-1].ID != e1.ID {
		t.Fatalf("expected leaf to be current head %s, got %s", e1.ID, chain[len(chain)-1].ID)
	}
}

func TestBuildStateSnapshotFoldsConfigAndSkillEvents(t *testing.T) {
	chain := []*types.Event{
		ev("e1", nil, types.EventSessionStart, types.SessionStartPayload{Model: "claude-sonnet-4"}),
		ev("e2", sp("e1"), types.EventSkillAdded, types.SkillAddedPayload{SkillName: "deploy"}),
		ev("e3", sp("e2"), types.EventConfigModelSwitch, types.ConfigModelSwitchPayload{NewModel: "claude-opus-4"}),
		ev("e4", sp("e3"), types.EventPlanModeEntered, struct{}{}),
	}

	snap := BuildStateSnapshot(chain)

	if snap.Model != "claude-opus-4" {
		t.Fatalf("expected model claude-opus-4, got %s", snap.Model)
	}
	if len(snap.ActiveSkills) != 1 || snap.ActiveSkills[0] != "deploy" {
		t.Fatalf("expected active skill deploy, got %v", snap.ActiveSkills)
	}
	if !snap.InPlanMode {
		t.Fatalf("expected plan mode entered")
	}
}
