// Package appendqueue serializes event appends per session so that
// each write's parent_id is captured from the logical pending head
// rather than raced against a concurrent writer for the same session
//. Each session gets its own goroutine acting as a serial
// executor over a mailbox channel; different sessions proceed fully
// in parallel.
package appendqueue

import (
	"context"
	"sync"

	"github.com/untoldecay/eventgraph/internal/storeerr"
	"github.com/untoldecay/eventgraph/internal/types"
)

// Writer is the storage operation the queue serializes calls to. It
// must itself be safe for concurrent use across different sessions.
type Writer interface {
	AppendEvent(ctx context.Context, sessionID, workspaceID string, parentID *string, typ types.EventType, payload []byte) (*types.Event, error)
}

type job struct {
	ctx     context.Context
	typ     types.EventType
	payload []byte
	done    chan jobResult
	isDrain bool
}

type jobResult struct {
	event *types.Event
	err   error
}

// sessionActor owns one session's mailbox and pending-head pointer.
// A write failure rolls pendingHead back to the last known-good value
// so later fresh appends are not poisoned by a prior failure.
type sessionActor struct {
	sessionID   string
	workspaceID string
	mailbox     chan job
	pendingHead *string
}

// Queue is the process-wide table of active per-session actors. Its
// map access is guarded by a short, non-blocking mutex; all actual
// write work happens off the lock inside each actor's goroutine.
type Queue struct {
	writer Writer

	mu     sync.Mutex
	actors map[string]*sessionActor
	wg     sync.WaitGroup
}

// New returns a Queue backed by writer.
func New(writer Writer) *Queue {
	return &Queue{
		writer: writer,
		actors: map[string]*sessionActor{},
	}
}

// Register tells the queue the current head of a session, so the
// first enqueued append chains from it rather than from nil. Call
// this once when a session becomes active (on create_session or when
// resuming an existing session).
func (q *Queue) Register(sessionID, workspaceID string, headEventID *string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actors[sessionID] = &sessionActor{
		sessionID:   sessionID,
		workspaceID: workspaceID,
		mailbox:     make(chan job, 64),
		pendingHead: headEventID,
	}
	actor := q.actors[sessionID]
	q.wg.Add(1)
	go q.run(actor)
}

// EnsureRegistered seeds a session's actor with headEventID the first
// time this process touches it (e.g. resuming a session created in an
// earlier process run). It is a no-op if the session already has an
// actor, so it never clobbers a pending head that is already tracking
// in-flight appends.
func (q *Queue) EnsureRegistered(sessionID, workspaceID string, headEventID *string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.actors[sessionID]; ok {
		return
	}
	a := &sessionActor{
		sessionID:   sessionID,
		workspaceID: workspaceID,
		mailbox:     make(chan job, 64),
		pendingHead: headEventID,
	}
	q.actors[sessionID] = a
	q.wg.Add(1)
	go q.run(a)
}

func (q *Queue) getOrCreate(sessionID, workspaceID string) *sessionActor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a, ok := q.actors[sessionID]; ok {
		return a
	}
	a := &sessionActor{
		sessionID:   sessionID,
		workspaceID: workspaceID,
		mailbox:     make(chan job, 64),
	}
	q.actors[sessionID] = a
	q.wg.Add(1)
	go q.run(a)
	return a
}

func (q *Queue) run(a *sessionActor) {
	defer q.wg.Done()
	for j := range a.mailbox {
		if j.isDrain {
			j.done <- jobResult{}
			continue
		}
		ev, err := q.writer.AppendEvent(j.ctx, a.sessionID, a.workspaceID, a.pendingHead, j.typ, j.payload)
		if err != nil {
			// pendingHead is left untouched: the failed write never
			// became the new head, so the chain is intact for the
			// next enqueued append.
			j.done <- jobResult{err: storeerr.Wrap(storeerr.QueueFailure, err, "append failed for session %s", a.sessionID)}
			continue
		}
		a.pendingHead = &ev.ID
		j.done <- jobResult{event: ev}
	}
}

// Append enqueues one event for sessionID and blocks until it commits
// (or fails). The write is not cancellable once enqueued: ctx governs
// how long the caller waits for the result, not whether the write
// proceeds.
func (q *Queue) Append(ctx context.Context, sessionID, workspaceID string, typ types.EventType, payload []byte) (*types.Event, error) {
	a := q.getOrCreate(sessionID, workspaceID)
	done := make(chan jobResult, 1)
	a.mailbox <- job{ctx: context.WithoutCancel(ctx), typ: typ, payload: payload, done: done}

	select {
	case res := <-done:
		return res.event, res.err
	case <-ctx.Done():
		// The caller gave up waiting, but the append itself still
		// commits and advances pendingHead when res eventually
		// arrives; we just stop blocking on it here.
		go func() { <-done }()
		return nil, ctx.Err()
	}
}

// AppendAsync is the fire-and-forget variant for event-driven
// producers (e.g. streaming token deltas): it enqueues the write and
// returns immediately without waiting for commit. Ordering is still
// guaranteed; delivery confirmation is not.
func (q *Queue) AppendAsync(ctx context.Context, sessionID, workspaceID string, typ types.EventType, payload []byte) {
	a := q.getOrCreate(sessionID, workspaceID)
	done := make(chan jobResult, 1)
	a.mailbox <- job{ctx: context.WithoutCancel(ctx), typ: typ, payload: payload, done: done}
	go func() { <-done }()
}

// Flush waits for a single session's mailbox to fully drain.
func (q *Queue) Flush(sessionID string) {
	q.mu.Lock()
	a, ok := q.actors[sessionID]
	q.mu.Unlock()
	if !ok {
		return
	}
	done := make(chan jobResult, 1)
	a.mailbox <- job{ctx: context.Background(), done: done, isDrain: true}
	<-done
}

// FlushAll waits for every currently tracked session to drain.
func (q *Queue) FlushAll() {
	q.mu.Lock()
	ids := make([]string, 0, len(q.actors))
	for id := range q.actors {
		ids = append(ids, id)
	}
	q.mu.Unlock()
	for _, id := range ids {
		q.Flush(id)
	}
}

// Close stops accepting new sessions' mailboxes from being drained
// further and waits for in-flight actors to exit. Existing mailboxes
// are closed so their goroutines return.
func (q *Queue) Close() {
	q.mu.Lock()
	actors := make([]*sessionActor, 0, len(q.actors))
	for _, a := range q.actors {
		actors = append(actors, a)
	}
	q.mu.Unlock()

	for _, a := range actors {
		close(a.mailbox)
	}
	q.wg.Wait()
}
