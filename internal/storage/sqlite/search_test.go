package sqlite

import (
	"context"
	"testing"

	"github.com/untoldecay/eventgraph/internal/types"
)

func TestSearchFindsMatchingUserMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s, "/repo")
	appendUserMessage(t, s, sess, &sess.HeadEventID, "where is the retry logic implemented")
	appendUserMessage(t, s, sess, nil, "unrelated turn about deployment")

	results, err := s.Search(ctx, "retry", SearchOpts{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(results), results)
	}
}

func TestSearchScopesToSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessA := newTestSession(t, s, "/repo-a")
	sessB := newTestSession(t, s, "/repo-b")
	appendUserMessage(t, s, sessA, &sessA.HeadEventID, "unique marker alpha")
	appendUserMessage(t, s, sessB, &sessB.HeadEventID, "unique marker alpha")

	results, err := s.Search(ctx, "alpha", SearchOpts{SessionID: sessA.ID})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result scoped to session A, got %d", len(results))
	}
	if results[0].SessionID != sessA.ID {
		t.Fatalf("expected result from session %s, got %s", sessA.ID, results[0].SessionID)
	}
}

func TestSearchTypesFilterRestrictsToRequestedKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s, "/repo")
	appendUserMessage(t, s, sess, &sess.HeadEventID, "keyword zephyr in a user turn")
	appendEvent(t, s, sess, nil, types.EventCompactSummary, types.CompactSummaryPayload{Summary: "keyword zephyr in a summary"})

	results, err := s.Search(ctx, "zephyr", SearchOpts{Types: []string{string(types.EventMessageUser)}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Event.Type != types.EventMessageUser {
			t.Fatalf("expected only message.user results, got %s", r.Event.Type)
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 message.user match, got %d", len(results))
	}
}

func TestSearchLimitIsCappedAtMax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s, "/repo")
	for i := 0; i < 5; i++ {
		appendUserMessage(t, s, sess, nil, "repeated phrase marker")
	}

	results, err := s.Search(ctx, "repeated", SearchOpts{Limit: 1_000_000})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) > maxSearchLimit {
		t.Fatalf("expected results capped at %d, got %d", maxSearchLimit, len(results))
	}
	if len(results) != 5 {
		t.Fatalf("expected all 5 matches under the cap, got %d", len(results))
	}
}

func TestSearchLikeFallbackMatchesAcrossSearchableTypes(t *testing.T) {
	s := newTestStore(t)
	sess := newTestSession(t, s, "/repo")
	appendUserMessage(t, s, sess, &sess.HeadEventID, "fallback marker gamma")

	// Exercise the LIKE path directly regardless of whether this build
	// has FTS5 compiled in, since the fallback must work either way.
	results, err := s.searchLike(context.Background(), "gamma", SearchOpts{}, 50)
	if err != nil {
		t.Fatalf("searchLike: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 LIKE-fallback match, got %d", len(results))
	}
}
