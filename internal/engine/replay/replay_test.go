package replay

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/projection"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
	"github.com/louisbranch/yourupnext/internal/storage/memory"
)

func testRegistry(t *testing.T) *event.Registry {
	t.Helper()
	registry := event.NewRegistry()
	if err := scenario.RegisterEvents(registry); err != nil {
		t.Fatalf("register scenario events: %v", err)
	}
	if err := entity.RegisterEvents(registry); err != nil {
		t.Fatalf("register entity events: %v", err)
	}
	return registry
}

func seedJournal(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	events := []event.Event{{
		ScenarioID:  "scn1",
		Type:        scenario.EventTypeCreated,
		Timestamp:   base,
		EntityType:  "scenario",
		EntityID:    "scn1",
		PayloadJSON: []byte(`{"name":"Keep"}`),
	}}
	for i := 1; i < n; i++ {
		events = append(events, event.Event{
			ScenarioID: "scn1",
			Type:       entity.EventTypeCreated,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			EntityType: entity.EntityType,
			EntityID:   "e" + string(rune('a'+i)),
			PayloadJSON: []byte(
				`{"pub_id":"e` + string(rune('a'+i)) + `","kind":"character","name":"E"}`),
		})
	}
	if _, err := store.AppendEvents(ctx, events); err != nil {
		t.Fatalf("seed journal: %v", err)
	}
}

func newReplayer(store *memory.Store, checkpoints CheckpointStore, pageSize int) *Replayer {
	return &Replayer{
		Store:       store,
		Folder:      projection.NewFolder(),
		Checkpoints: checkpoints,
		PageSize:    pageSize,
	}
}

func TestHeadReplaysAllPages(t *testing.T) {
	store := memory.NewStore(testRegistry(t))
	seedJournal(t, store, 7)

	replayer := newReplayer(store, nil, 3)
	state, err := replayer.Head(context.Background(), "scn1")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if state.LastSeq != 7 {
		t.Fatalf("expected last seq 7, got %d", state.LastSeq)
	}
	if len(state.Entities.Active()) != 6 {
		t.Fatalf("expected six entities, got %d", len(state.Entities.Active()))
	}
}

func TestStateAtStopsEarly(t *testing.T) {
	store := memory.NewStore(testRegistry(t))
	seedJournal(t, store, 5)

	replayer := newReplayer(store, nil, 2)
	state, err := replayer.StateAt(context.Background(), "scn1", 3)
	if err != nil {
		t.Fatalf("state at: %v", err)
	}
	if state.LastSeq != 3 || len(state.Entities.Active()) != 2 {
		t.Fatalf("unexpected state: seq %d, entities %d", state.LastSeq, len(state.Entities.Active()))
	}

	empty, err := replayer.StateAt(context.Background(), "scn1", 0)
	if err != nil {
		t.Fatalf("state at zero: %v", err)
	}
	if empty.LastSeq != 0 || empty.Scenario.Created {
		t.Fatalf("expected empty state, got %+v", empty)
	}
}

func TestStateAtBeyondHeadFails(t *testing.T) {
	store := memory.NewStore(testRegistry(t))
	seedJournal(t, store, 2)

	replayer := newReplayer(store, nil, 0)
	_, err := replayer.StateAt(context.Background(), "scn1", 10)
	if platformerrors.CodeOf(err) != platformerrors.CodeReplayInconsistency {
		t.Fatalf("expected replay inconsistency, got %v", err)
	}
}

func TestCheckpointResumesReplay(t *testing.T) {
	store := memory.NewStore(testRegistry(t))
	seedJournal(t, store, 4)
	checkpoints := NewMemoryCheckpoints()

	replayer := newReplayer(store, checkpoints, 2)
	ctx := context.Background()
	if _, err := replayer.Head(ctx, "scn1"); err != nil {
		t.Fatalf("first replay: %v", err)
	}
	checkpoint, ok, err := checkpoints.Load(ctx, "scn1")
	if err != nil || !ok {
		t.Fatalf("expected checkpoint saved, got %v %v", ok, err)
	}
	if checkpoint.State.LastSeq != 4 || checkpoint.ChainHash == "" {
		t.Fatalf("unexpected checkpoint: %+v", checkpoint)
	}

	// Append more and replay again from the checkpoint.
	base := time.Date(2026, 2, 3, 5, 0, 0, 0, time.UTC)
	if _, err := store.AppendEvents(ctx, []event.Event{{
		ScenarioID:  "scn1",
		Type:        entity.EventTypeCreated,
		Timestamp:   base,
		EntityType:  entity.EntityType,
		EntityID:    "late",
		PayloadJSON: []byte(`{"pub_id":"late","kind":"item","name":"Late"}`),
	}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	state, err := replayer.Head(ctx, "scn1")
	if err != nil {
		t.Fatalf("resumed replay: %v", err)
	}
	if state.LastSeq != 5 {
		t.Fatalf("expected seq 5, got %d", state.LastSeq)
	}
}

func TestStaleCheckpointFallsBackToFullReplay(t *testing.T) {
	store := memory.NewStore(testRegistry(t))
	seedJournal(t, store, 4)
	checkpoints := NewMemoryCheckpoints()
	ctx := context.Background()

	replayer := newReplayer(store, checkpoints, 2)
	if _, err := replayer.Head(ctx, "scn1"); err != nil {
		t.Fatalf("first replay: %v", err)
	}

	// Rewrite the timeline under the checkpoint.
	if err := store.TruncateEvents(ctx, "scn1", 2); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := store.AppendEvents(ctx, []event.Event{{
		ScenarioID:  "scn1",
		Type:        entity.EventTypeCreated,
		Timestamp:   time.Date(2026, 2, 3, 6, 0, 0, 0, time.UTC),
		EntityType:  entity.EntityType,
		EntityID:    "forked",
		PayloadJSON: []byte(`{"pub_id":"forked","kind":"item","name":"Forked"}`),
	}}); err != nil {
		t.Fatalf("append fork: %v", err)
	}

	state, err := replayer.Head(ctx, "scn1")
	if err != nil {
		t.Fatalf("replay after rewrite: %v", err)
	}
	if state.LastSeq != 3 {
		t.Fatalf("expected seq 3, got %d", state.LastSeq)
	}
	if _, ok := state.Entities.Get("forked"); !ok {
		t.Fatalf("expected forked entity in state")
	}
}

func TestCheckpointLoadIsIsolated(t *testing.T) {
	checkpoints := NewMemoryCheckpoints()
	ctx := context.Background()
	state := projection.NewState("scn1")
	state.LastSeq = 2
	if err := checkpoints.Save(ctx, "scn1", Checkpoint{State: state, ChainHash: "abc"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := checkpoints.Load(ctx, "scn1")
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	loaded.State.Entities.PubIDs["mutant"] = 9

	reloaded, _, _ := checkpoints.Load(ctx, "scn1")
	if _, leaked := reloaded.State.Entities.PubIDs["mutant"]; leaked {
		t.Fatalf("checkpoint state must be isolated from callers")
	}
}
