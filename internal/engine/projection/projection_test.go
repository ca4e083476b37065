package projection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/input"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
)

func testEvent(seq uint64, eventType event.Type, entityID string, payload any) event.Event {
	raw, _ := json.Marshal(payload)
	return event.Event{
		ScenarioID:  "scn1",
		Seq:         seq,
		Type:        eventType,
		Timestamp:   time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		ActorType:   event.ActorTypeSystem,
		EntityType:  eventType.Domain(),
		EntityID:    entityID,
		PayloadJSON: raw,
	}
}

func TestFoldIsDeterministic(t *testing.T) {
	events := []event.Event{
		testEvent(1, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Keep"}),
		testEvent(2, entity.EventTypeCreated, "hero", entity.CreatedPayload{PubID: "hero", Kind: entity.KindCharacter, Name: "Yuna"}),
		testEvent(3, effect.EventTypeApplied, "1", effect.AppliedPayload{
			EffectID:    1,
			Name:        "blessed",
			TargetPubID: "hero",
			Duration:    effect.Duration{Kind: effect.DurationPermanent},
		}),
	}

	folder := NewFolder()
	first, err := folder.Fold(NewState("scn1"), events)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	second, err := folder.Fold(NewState("scn1"), events)
	if err != nil {
		t.Fatalf("refold: %v", err)
	}

	if first.LastSeq != 3 || second.LastSeq != 3 {
		t.Fatalf("expected last seq 3, got %d and %d", first.LastSeq, second.LastSeq)
	}
	if len(first.Effects.Active()) != 1 || len(second.Effects.Active()) != 1 {
		t.Fatalf("expected one active effect in both folds")
	}
	if first.Scenario.Name != second.Scenario.Name {
		t.Fatalf("folds diverged: %q vs %q", first.Scenario.Name, second.Scenario.Name)
	}
}

func TestFoldRejectsOutOfOrderSeq(t *testing.T) {
	folder := NewFolder()
	state := NewState("scn1")
	state, err := folder.Apply(state, testEvent(1, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Keep"}))
	if err != nil {
		t.Fatalf("fold created: %v", err)
	}
	_, err = folder.Apply(state, testEvent(3, entity.EventTypeCreated, "hero", entity.CreatedPayload{PubID: "hero", Kind: entity.KindCharacter, Name: "Yuna"}))
	if err == nil {
		t.Fatalf("expected seq gap error")
	}
}

func TestFoldRejectsEffectOnUnknownEntity(t *testing.T) {
	folder := NewFolder()
	state := NewState("scn1")
	state, err := folder.Apply(state, testEvent(1, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Keep"}))
	if err != nil {
		t.Fatalf("fold created: %v", err)
	}
	_, err = folder.Apply(state, testEvent(2, effect.EventTypeApplied, "1", effect.AppliedPayload{
		EffectID:    1,
		Name:        "blessed",
		TargetPubID: "ghost",
		Duration:    effect.Duration{Kind: effect.DurationPermanent},
	}))
	if err == nil {
		t.Fatalf("expected unknown target error")
	}
}

func TestFoldRejectsUnknownEventType(t *testing.T) {
	folder := NewFolder()
	_, err := folder.Apply(NewState("scn1"), testEvent(1, "mystery.event", "x", nil))
	if err == nil {
		t.Fatalf("expected unhandled type error")
	}
}

func TestScenarioCreatedResetsState(t *testing.T) {
	folder := NewFolder()
	state := NewState("scn1")
	var err error
	state, err = folder.Fold(state, []event.Event{
		testEvent(1, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Keep"}),
		testEvent(2, entity.EventTypeCreated, "hero", entity.CreatedPayload{PubID: "hero", Kind: entity.KindCharacter, Name: "Yuna"}),
	})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}

	state, err = folder.Apply(state, testEvent(3, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Fresh"}))
	if err != nil {
		t.Fatalf("fold reset: %v", err)
	}
	if len(state.Entities.Active()) != 0 {
		t.Fatalf("expected roster reset, got %v", state.Entities.Active())
	}
	if state.Scenario.Name != "Fresh" || state.LastSeq != 3 {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
}

func TestBlockedTracksInputGate(t *testing.T) {
	folder := NewFolder()
	state := NewState("scn1")
	var err error
	state, err = folder.Fold(state, []event.Event{
		testEvent(1, scenario.EventTypeCreated, "scn1", scenario.CreatedPayload{Name: "Keep"}),
		testEvent(2, input.EventTypeRequested, "q1", input.RequestedPayload{InputID: "q1", Prompt: "Open the door?"}),
	})
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !state.Blocked() {
		t.Fatalf("expected blocked state")
	}
	state, err = folder.Apply(state, testEvent(3, input.EventTypeResolved, "q1", input.ResolvedPayload{InputID: "q1"}))
	if err != nil {
		t.Fatalf("fold resolved: %v", err)
	}
	if state.Blocked() {
		t.Fatalf("expected unblocked state")
	}
}
