package appendqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// fakeWriter records the parentID seen by each write in order, and can
// be told to fail a specific call index.
type fakeWriter struct {
	mu       sync.Mutex
	parents  []*string
	failAt   int // -1 means never fail
	attempts int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{failAt: -1}
}

func (w *fakeWriter) AppendEvent(ctx context.Context, sessionID, workspaceID string, parentID *string, typ types.EventType, payload []byte) (*types.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := w.attempts
	w.attempts++
	w.parents = append(w.parents, parentID)
	if idx == w.failAt {
		return nil, fmt.Errorf("simulated write failure")
	}
	id := fmt.Sprintf("evt_%d", idx)
	return &types.Event{ID: id, SessionID: sessionID, WorkspaceID: workspaceID, ParentID: parentID, Type: typ}, nil
}

func TestAppendChainsParentFromPreviousHead(t *testing.T) {
	w := newFakeWriter()
	q := New(w)
	defer q.Close()

	q.Register("sess_1", "ws_1", nil)

	first, err := q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if first.ParentID != nil {
		t.Fatalf("first append should have nil parent, got %v", first.ParentID)
	}

	second, err := q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageAssistant, []byte(`{}`))
	if err != nil {
		t.Fatalf("second append failed: %v", err)
	}
	if second.ParentID == nil || *second.ParentID != first.ID {
		t.Fatalf("second append parent = %v, want %s", second.ParentID, first.ID)
	}
}

func TestAppendPreservesFIFOOrderAcrossConcurrentCallers(t *testing.T) {
	w := newFakeWriter()
	q := New(w)
	defer q.Close()

	q.Register("sess_1", "ws_1", nil)

	const n = 20
	results := make([]*types.Event, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev, err := q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
			if err != nil {
				t.Errorf("append %d failed: %v", i, err)
				return
			}
			results[i] = ev
		}(i)
	}
	wg.Wait()

	// The chain must be a single unbroken sequence: each event's
	// parent must be some other event's id (except exactly one root),
	// and every id must be distinct.
	seen := map[string]bool{}
	var roots int
	parentOf := map[string]*string{}
	for _, ev := range results {
		if ev == nil {
			t.Fatalf("missing result")
		}
		if seen[ev.ID] {
			t.Fatalf("duplicate event id %s", ev.ID)
		}
		seen[ev.ID] = true
		parentOf[ev.ID] = ev.ParentID
		if ev.ParentID == nil {
			roots++
		}
	}
	if roots != 1 {
		t.Fatalf("expected exactly one root event, got %d", roots)
	}
	for id, parent := range parentOf {
		if parent == nil {
			continue
		}
		if !seen[*parent] {
			t.Fatalf("event %s has parent %s that was never written", id, *parent)
		}
	}
}

func TestAppendFailureRollsBackPendingHead(t *testing.T) {
	w := newFakeWriter()
	w.failAt = 1 // second call fails
	q := New(w)
	defer q.Close()

	q.Register("sess_1", "ws_1", nil)

	first, err := q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	_, err = q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageAssistant, []byte(`{}`))
	if err == nil {
		t.Fatalf("expected second append to fail")
	}
	if !storeerr.Is(err, storeerr.QueueFailure) {
		t.Fatalf("expected QueueFailure, got %v", err)
	}

	third, err := q.Append(context.Background(), "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
	if err != nil {
		t.Fatalf("third append failed: %v", err)
	}
	if third.ParentID == nil || *third.ParentID != first.ID {
		t.Fatalf("third append should chain from %s (last successful head), got %v", first.ID, third.ParentID)
	}
}

func TestFlushWaitsForMailboxToDrain(t *testing.T) {
	w := newFakeWriter()
	q := New(w)
	defer q.Close()

	q.Register("sess_1", "ws_1", nil)
	for i := 0; i < 5; i++ {
		q.AppendAsync(context.Background(), "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
	}
	q.Flush("sess_1")

	w.mu.Lock()
	attempts := w.attempts
	w.mu.Unlock()
	if attempts != 5 {
		t.Fatalf("expected 5 writes to have landed before Flush returned, got %d", attempts)
	}
}

func TestFlushAllDrainsEverySession(t *testing.T) {
	w := newFakeWriter()
	q := New(w)
	defer q.Close()

	for _, id := range []string{"sess_1", "sess_2", "sess_3"} {
		q.Register(id, "ws_1", nil)
		q.AppendAsync(context.Background(), id, "ws_1", types.EventMessageUser, []byte(`{}`))
	}
	q.FlushAll()

	w.mu.Lock()
	attempts := w.attempts
	w.mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected 3 writes after FlushAll, got %d", attempts)
	}
}

func TestAppendRespectsContextCancellationWithoutAbortingWrite(t *testing.T) {
	w := newFakeWriter()
	q := New(w)
	defer q.Close()

	q.Register("sess_1", "ws_1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := q.Append(ctx, "sess_1", "ws_1", types.EventMessageUser, []byte(`{}`))
	if err == nil {
		t.Fatalf("expected caller to observe context deadline")
	}

	// The write still lands even though the caller gave up; a
	// subsequent Flush should see it committed.
	q.Flush("sess_1")
	w.mu.Lock()
	attempts := w.attempts
	w.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("expected the write to still land despite caller timeout, got %d attempts", attempts)
	}
}
