package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
}

func mustFold(t *testing.T, state State, events ...event.Event) State {
	t.Helper()
	var err error
	for _, evt := range events {
		state, err = Fold(state, evt)
		if err != nil {
			t.Fatalf("fold %s: %v", evt.Type, err)
		}
	}
	return state
}

func create(t *testing.T, state State, pubID string, kind Kind, name string) State {
	t.Helper()
	payload, _ := json.Marshal(CreateCommandPayload{PubID: pubID, Kind: kind, Name: name})
	decision := Decide(state, command.Command{
		ScenarioID:  "scn1",
		Type:        CommandTypeCreate,
		PayloadJSON: payload,
	}, fixedNow)
	if len(decision.Rejections) != 0 {
		t.Fatalf("create %s rejected: %v", pubID, decision.Rejections)
	}
	return mustFold(t, state, decision.Events...)
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	state := NewState()
	state = create(t, state, "hero", KindCharacter, "Yuna")
	state = create(t, state, "sword", KindItem, "Moon Blade")

	hero, ok := state.Get("hero")
	if !ok || hero.ID != 1 {
		t.Fatalf("expected hero id 1, got %+v", hero)
	}
	sword, ok := state.Get("sword")
	if !ok || sword.ID != 2 {
		t.Fatalf("expected sword id 2, got %+v", sword)
	}
}

func TestCreateRejectsDuplicatePubID(t *testing.T) {
	state := create(t, NewState(), "hero", KindCharacter, "Yuna")
	payload, _ := json.Marshal(CreateCommandPayload{PubID: "hero", Kind: KindCharacter, Name: "Another"})
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeCreate, PayloadJSON: payload}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodePubIDTaken {
		t.Fatalf("expected %s, got %v", rejectionCodePubIDTaken, decision)
	}
}

func TestCreateRejectsUnknownKind(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{"pub_id": "x", "kind": "vehicle", "name": "Cart"})
	decision := Decide(NewState(), command.Command{ScenarioID: "scn1", Type: CommandTypeCreate, PayloadJSON: payload}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeKindInvalid {
		t.Fatalf("expected %s, got %v", rejectionCodeKindInvalid, decision)
	}
}

func TestRetireBlocksFurtherMutation(t *testing.T) {
	state := create(t, NewState(), "hero", KindCharacter, "Yuna")
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeRetire, EntityID: "hero"}, fixedNow)
	state = mustFold(t, state, decision.Events...)

	hero, _ := state.Get("hero")
	if !hero.Retired {
		t.Fatalf("expected retired hero, got %+v", hero)
	}

	rename, _ := json.Marshal(RenamedPayload{Name: "New Name"})
	decision = Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeRename, EntityID: "hero", PayloadJSON: rename}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeRetired {
		t.Fatalf("expected %s, got %v", rejectionCodeRetired, decision)
	}
}

func TestAssignParentRejectsCycle(t *testing.T) {
	state := NewState()
	state = create(t, state, "bag", KindItem, "Bag")
	state = create(t, state, "box", KindItem, "Box")

	assign := func(child, parent string) command.Decision {
		payload, _ := json.Marshal(AssignParentCommandPayload{ParentPubID: parent})
		return Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeAssignParent, EntityID: child, PayloadJSON: payload}, fixedNow)
	}

	decision := assign("box", "bag")
	if len(decision.Rejections) != 0 {
		t.Fatalf("expected acceptance, got %v", decision.Rejections)
	}
	state = mustFold(t, state, decision.Events...)

	decision = assign("bag", "box")
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeParentCycle {
		t.Fatalf("expected %s, got %v", rejectionCodeParentCycle, decision)
	}

	decision = assign("bag", "bag")
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeParentSelf {
		t.Fatalf("expected %s, got %v", rejectionCodeParentSelf, decision)
	}
}

func TestReleaseParentRequiresParent(t *testing.T) {
	state := create(t, NewState(), "hero", KindCharacter, "Yuna")
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeReleaseParent, EntityID: "hero"}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeNoParent {
		t.Fatalf("expected %s, got %v", rejectionCodeNoParent, decision)
	}
}

func TestRetireClearsParentAndController(t *testing.T) {
	state := NewState()
	state = create(t, state, "room", KindLocation, "Cellar")
	state = create(t, state, "hero", KindCharacter, "Yuna")

	parentPayload, _ := json.Marshal(AssignParentCommandPayload{ParentPubID: "room"})
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeAssignParent, EntityID: "hero", PayloadJSON: parentPayload}, fixedNow)
	state = mustFold(t, state, decision.Events...)

	ctrlPayload, _ := json.Marshal(AssignControllerCommandPayload{PlayerID: "p1"})
	decision = Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeAssignController, EntityID: "hero", PayloadJSON: ctrlPayload}, fixedNow)
	state = mustFold(t, state, decision.Events...)

	if player, ok := state.ControllerOf("hero"); !ok || player != "p1" {
		t.Fatalf("expected controller p1, got %q %v", player, ok)
	}

	decision = Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeRetire, EntityID: "hero"}, fixedNow)
	state = mustFold(t, state, decision.Events...)

	if _, ok := state.ParentOf("hero"); ok {
		t.Fatalf("expected parent cleared on retire")
	}
	if _, ok := state.ControllerOf("hero"); ok {
		t.Fatalf("expected controller cleared on retire")
	}
}

func TestChildrenOrderedByCreation(t *testing.T) {
	state := NewState()
	state = create(t, state, "room", KindLocation, "Cellar")
	state = create(t, state, "a", KindItem, "A")
	state = create(t, state, "b", KindItem, "B")

	for _, child := range []string{"b", "a"} {
		payload, _ := json.Marshal(AssignParentCommandPayload{ParentPubID: "room"})
		decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeAssignParent, EntityID: child, PayloadJSON: payload}, fixedNow)
		state = mustFold(t, state, decision.Events...)
	}

	children := state.Children("room")
	if len(children) != 2 || children[0] != "a" || children[1] != "b" {
		t.Fatalf("expected [a b], got %v", children)
	}
}

func TestCreateGeneratesPubIDWhenOmitted(t *testing.T) {
	payload, _ := json.Marshal(CreateCommandPayload{Kind: KindCharacter, Name: "Nameless"})
	decision := Decide(NewState(), command.Command{
		ScenarioID:  "scn1",
		Type:        CommandTypeCreate,
		PayloadJSON: payload,
	}, fixedNow)
	if len(decision.Rejections) != 0 {
		t.Fatalf("create rejected: %v", decision.Rejections)
	}
	if len(decision.Events) != 1 || len(decision.Events[0].EntityID) != 26 {
		t.Fatalf("expected generated 26-char pub id, got %q", decision.Events[0].EntityID)
	}
	var created CreatedPayload
	if err := json.Unmarshal(decision.Events[0].PayloadJSON, &created); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if created.PubID != decision.Events[0].EntityID {
		t.Fatalf("payload pub id %q does not match envelope %q", created.PubID, decision.Events[0].EntityID)
	}
}
