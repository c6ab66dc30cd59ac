package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/eventgraph/internal/types"
)

func TestWriteLogAndQueryLogsFiltersByLevel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sess := newTestSession(t, s, "/repo")

	info := "an informational message"
	errMsg := "boom"
	for _, rec := range []*types.LogRecord{
		{SessionID: &sess.ID, Timestamp: time.Now(), Level: "info", LevelNum: 20, Component: "eventstore", Message: info},
		{SessionID: &sess.ID, Timestamp: time.Now(), Level: "error", LevelNum: 40, Component: "eventstore", Message: "failed", ErrorMessage: &errMsg},
	} {
		if err := s.WriteLog(ctx, rec); err != nil {
			t.Fatalf("WriteLog: %v", err)
		}
	}

	errorOnly, err := s.QueryLogs(ctx, QueryLogsOpts{MinLevelNum: 40})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(errorOnly) != 1 {
		t.Fatalf("expected 1 error-level record, got %d", len(errorOnly))
	}
	if errorOnly[0].ErrorMessage == nil || *errorOnly[0].ErrorMessage != errMsg {
		t.Fatalf("expected error message %q, got %v", errMsg, errorOnly[0].ErrorMessage)
	}

	all, err := s.QueryLogs(ctx, QueryLogsOpts{MinLevelNum: 0})
	if err != nil {
		t.Fatalf("QueryLogs (all): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records total, got %d", len(all))
	}
}

func TestQueryLogsScopesToSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sessA := newTestSession(t, s, "/repo-a")
	sessB := newTestSession(t, s, "/repo-b")

	if err := s.WriteLog(ctx, &types.LogRecord{SessionID: &sessA.ID, Timestamp: time.Now(), Level: "info", LevelNum: 20, Component: "c", Message: "a"}); err != nil {
		t.Fatalf("WriteLog A: %v", err)
	}
	if err := s.WriteLog(ctx, &types.LogRecord{SessionID: &sessB.ID, Timestamp: time.Now(), Level: "info", LevelNum: 20, Component: "c", Message: "b"}); err != nil {
		t.Fatalf("WriteLog B: %v", err)
	}

	scoped, err := s.QueryLogs(ctx, QueryLogsOpts{SessionID: sessA.ID})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Message != "a" {
		t.Fatalf("expected only session A's record, got %+v", scoped)
	}
}
