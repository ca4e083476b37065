// Package engine ties the journal, the projection, the command pipeline,
// and the undo cursor into one scenario-scoped facade. Exactly one command
// runs through the validate-and-append section per scenario at a time;
// reads of historical offsets never take the write lock beyond the session
// lookup.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/pipeline"
	"github.com/louisbranch/yourupnext/internal/engine/projection"
	"github.com/louisbranch/yourupnext/internal/engine/replay"
	"github.com/louisbranch/yourupnext/internal/engine/timeline"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
	"github.com/louisbranch/yourupnext/internal/storage"
)

// notifyBuffer bounds a subscriber channel. A subscriber that falls this
// far behind loses notifications rather than blocking the writer.
const notifyBuffer = 16

// NotificationKind classifies what moved a scenario's timeline.
type NotificationKind string

const (
	NotificationAppended  NotificationKind = "appended"
	NotificationUndone    NotificationKind = "undone"
	NotificationRedone    NotificationKind = "redone"
	NotificationTruncated NotificationKind = "truncated"
)

// Notification is pushed to subscribers after a scenario's timeline moves.
type Notification struct {
	ScenarioID string
	Kind       NotificationKind
	// Seq is the cursor's journal sequence after the move.
	Seq uint64
	// Events carries newly appended events for NotificationAppended.
	Events []event.Event
}

// session is the in-memory view of one scenario's timeline.
type session struct {
	mu sync.Mutex
	// head is the projection at the journal head.
	head projection.State
	// view is the projection at the cursor. Equal to head unless the
	// cursor has been moved back.
	view   projection.State
	cursor *timeline.Cursor
}

// Engine is the scenario state engine facade.
type Engine struct {
	store    storage.EventStore
	handler  *pipeline.Handler
	replayer *replay.Replayer

	mu       sync.Mutex
	sessions map[string]*session

	subMu   sync.Mutex
	subs    map[string]map[int]chan Notification
	nextSub int
	closed  bool
}

// New builds an engine over an event store.
func New(store storage.EventStore) (*Engine, error) {
	handler, err := pipeline.NewHandler(store)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:   store,
		handler: handler,
		replayer: &replay.Replayer{
			Store:       store,
			Folder:      handler.Folder,
			Checkpoints: replay.NewMemoryCheckpoints(),
		},
		sessions: make(map[string]*session),
		subs:     make(map[string]map[int]chan Notification),
	}, nil
}

// Submit runs a command through the pipeline under the scenario's write
// lock. Submitting while the cursor sits behind the head first truncates
// the journal at the cursor, discarding the undone future.
func (e *Engine) Submit(ctx context.Context, cmd command.Command) (pipeline.Result, error) {
	sess, err := e.session(ctx, cmd.ScenarioID)
	if err != nil {
		return pipeline.Result{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.cursor.AtHead() {
		if err := e.store.TruncateEvents(ctx, cmd.ScenarioID, sess.cursor.Seq()); err != nil {
			return pipeline.Result{}, platformerrors.Wrap(platformerrors.CodeStorage, "truncate undone future", err)
		}
		sess.cursor.Truncate()
		sess.head = sess.view
		e.notify(Notification{
			ScenarioID: cmd.ScenarioID,
			Kind:       NotificationTruncated,
			Seq:        sess.cursor.Seq(),
		})
	}

	result, err := e.handler.Submit(ctx, sess.head, sess.cursor.HeadTimestamp(), cmd)
	if err != nil {
		return pipeline.Result{}, err
	}
	if !result.Accepted() {
		return result, nil
	}

	if err := sess.cursor.Append(result.Events); err != nil {
		return pipeline.Result{}, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "appended events do not extend the timeline", err)
	}
	sess.head = result.State
	sess.view = result.State
	e.notify(Notification{
		ScenarioID: cmd.ScenarioID,
		Kind:       NotificationAppended,
		Seq:        sess.cursor.Seq(),
		Events:     result.Events,
	})
	return result, nil
}

// State returns the projection at the scenario's cursor.
func (e *Engine) State(ctx context.Context, scenarioID string) (projection.State, error) {
	sess, err := e.session(ctx, scenarioID)
	if err != nil {
		return projection.State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view, nil
}

// StateAt replays the scenario up to and including seq. The cursor does
// not move; historical reads are side effect free.
func (e *Engine) StateAt(ctx context.Context, scenarioID string, seq uint64) (projection.State, error) {
	if _, err := e.session(ctx, scenarioID); err != nil {
		return projection.State{}, err
	}
	return e.replayer.StateAt(ctx, scenarioID, seq)
}

// Position reports the cursor sequence and the journal head sequence.
func (e *Engine) Position(ctx context.Context, scenarioID string) (cursor, head uint64, err error) {
	sess, err := e.session(ctx, scenarioID)
	if err != nil {
		return 0, 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cursor.Seq(), sess.cursor.HeadSeq(), nil
}

// Undo moves the scenario's cursor back one step and returns the view at
// the new position. The journal is not modified.
func (e *Engine) Undo(ctx context.Context, scenarioID string) (projection.State, error) {
	sess, err := e.session(ctx, scenarioID)
	if err != nil {
		return projection.State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.cursor.CanUndo() {
		return projection.State{}, platformerrors.New(platformerrors.CodeNothingToUndo, "cursor is at the start of the timeline")
	}
	target := sess.cursor.Steps()[sess.cursor.Position()-1].FirstSeq - 1
	view, err := e.replayer.StateAt(ctx, scenarioID, target)
	if err != nil {
		return projection.State{}, err
	}
	sess.cursor.Undo()
	sess.view = view
	e.notify(Notification{ScenarioID: scenarioID, Kind: NotificationUndone, Seq: sess.cursor.Seq()})
	return view, nil
}

// Redo reapplies the next undone step and returns the view at the new
// position.
func (e *Engine) Redo(ctx context.Context, scenarioID string) (projection.State, error) {
	sess, err := e.session(ctx, scenarioID)
	if err != nil {
		return projection.State{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.cursor.CanRedo() {
		return projection.State{}, platformerrors.New(platformerrors.CodeNothingToRedo, "cursor is at the head of the timeline")
	}
	step := sess.cursor.Steps()[sess.cursor.Position()]
	limit := int(step.LastSeq - sess.view.LastSeq)
	page, err := e.store.ListEvents(ctx, scenarioID, sess.view.LastSeq, limit)
	if err != nil {
		return projection.State{}, platformerrors.Wrap(platformerrors.CodeStorage, "list redo step", err)
	}
	view, err := e.handler.Folder.Fold(sess.view, page)
	if err != nil {
		return projection.State{}, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "redo step does not fold", err)
	}
	sess.cursor.Redo()
	sess.view = view
	e.notify(Notification{ScenarioID: scenarioID, Kind: NotificationRedone, Seq: sess.cursor.Seq()})
	return view, nil
}

// Steps returns the scenario's known steps in journal order.
func (e *Engine) Steps(ctx context.Context, scenarioID string) ([]timeline.Step, error) {
	sess, err := e.session(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cursor.Steps(), nil
}

// Scenarios lists every scenario known to the journal.
func (e *Engine) Scenarios(ctx context.Context) ([]string, error) {
	return e.store.ListScenarios(ctx)
}

// Subscribe registers for timeline notifications on a scenario. The
// returned cancel function must be called to release the subscription.
// A slow subscriber loses notifications instead of blocking writers.
func (e *Engine) Subscribe(scenarioID string) (<-chan Notification, func()) {
	ch := make(chan Notification, notifyBuffer)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	if e.subs[scenarioID] == nil {
		e.subs[scenarioID] = make(map[int]chan Notification)
	}
	id := e.nextSub
	e.nextSub++
	e.subs[scenarioID][id] = ch

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if subs, ok := e.subs[scenarioID]; ok {
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub)
			}
		}
	}
	return ch, cancel
}

// Close drops subscribers and closes the underlying store.
func (e *Engine) Close() error {
	e.subMu.Lock()
	if !e.closed {
		e.closed = true
		for _, subs := range e.subs {
			for id, ch := range subs {
				delete(subs, id)
				close(ch)
			}
		}
	}
	e.subMu.Unlock()
	return e.store.Close()
}

func (e *Engine) notify(n Notification) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs[n.ScenarioID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// session returns the scenario's session, loading it from the journal on
// first use.
func (e *Engine) session(ctx context.Context, scenarioID string) (*session, error) {
	if strings.TrimSpace(scenarioID) == "" {
		return nil, platformerrors.New(platformerrors.CodeScenarioIDRequired, "scenario id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.sessions[scenarioID]; ok {
		return sess, nil
	}

	head, err := e.replayer.Head(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	events, err := e.listAll(ctx, scenarioID, head.LastSeq)
	if err != nil {
		return nil, err
	}
	cursor, err := timeline.NewCursor(events)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "journal does not form a timeline", err)
	}
	sess := &session{head: head, view: head, cursor: cursor}
	e.sessions[scenarioID] = sess
	return sess, nil
}

func (e *Engine) listAll(ctx context.Context, scenarioID string, upToSeq uint64) ([]event.Event, error) {
	const pageSize = 256
	var out []event.Event
	var after uint64
	for after < upToSeq {
		page, err := e.store.ListEvents(ctx, scenarioID, after, pageSize)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.CodeStorage, "list journal", err)
		}
		if len(page) == 0 {
			return nil, platformerrors.New(platformerrors.CodeReplayInconsistency,
				fmt.Sprintf("journal ends at seq %d, expected %d", after, upToSeq))
		}
		out = append(out, page...)
		after = page[len(page)-1].Seq
	}
	return out, nil
}
