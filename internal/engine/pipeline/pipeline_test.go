package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/input"
	"github.com/louisbranch/yourupnext/internal/engine/projection"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	"github.com/louisbranch/yourupnext/internal/engine/scheduler"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
	"github.com/louisbranch/yourupnext/internal/storage/memory"
)

type harness struct {
	t       *testing.T
	handler *Handler
	state   projection.State
	head    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	_, events, err := CoreRegistries()
	if err != nil {
		t.Fatalf("core registries: %v", err)
	}
	handler, err := NewHandler(memory.NewStore(events))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return &harness{t: t, handler: handler, state: projection.NewState("scn1")}
}

func (h *harness) submit(cmd command.Command) Result {
	h.t.Helper()
	result, err := h.handler.Submit(context.Background(), h.state, h.head, cmd)
	if err != nil {
		h.t.Fatalf("submit %s: %v", cmd.Type, err)
	}
	if result.Accepted() {
		h.state = result.State
		h.head = result.Events[len(result.Events)-1].Timestamp
	}
	return result
}

func (h *harness) mustAccept(cmd command.Command) Result {
	h.t.Helper()
	result := h.submit(cmd)
	if !result.Accepted() {
		h.t.Fatalf("%s rejected: %v", cmd.Type, result.Rejections)
	}
	return result
}

func gmCmd(cmdType command.Type, entityID string, payload any) command.Command {
	raw, _ := json.Marshal(payload)
	return command.Command{
		ScenarioID:  "scn1",
		Type:        cmdType,
		ActorType:   command.ActorTypeGM,
		ActorID:     "gm1",
		EntityID:    entityID,
		PayloadJSON: raw,
	}
}

func (h *harness) seedScenario() {
	h.t.Helper()
	h.mustAccept(gmCmd(scenario.CommandTypeCreate, "", scenario.CreatedPayload{Name: "Keep"}))
}

func (h *harness) seedCombat() {
	h.t.Helper()
	h.seedScenario()
	for _, tc := range []struct {
		pubID string
		init  float64
	}{{"a", 10}, {"b", 5}} {
		h.mustAccept(gmCmd(entity.CommandTypeCreate, "", entity.CreateCommandPayload{
			PubID: tc.pubID, Kind: entity.KindCharacter, Name: tc.pubID,
		}))
		h.mustAccept(gmCmd(effect.CommandTypeApply, "", effect.ApplyCommandPayload{
			Name:        "initiative",
			TargetPubID: tc.pubID,
			Data:        map[string]any{effect.DataKeyInitiative: tc.init},
		}))
	}
}

func TestSubmitRequiresScenarioCreation(t *testing.T) {
	h := newHarness(t)
	result := h.submit(gmCmd(entity.CommandTypeCreate, "", entity.CreateCommandPayload{
		PubID: "hero", Kind: entity.KindCharacter, Name: "Yuna",
	}))
	if result.Accepted() || result.Rejections[0].Code != string(platformerrors.CodeScenarioNotCreated) {
		t.Fatalf("expected %s, got %+v", platformerrors.CodeScenarioNotCreated, result)
	}
}

func TestSubmitAppendsAndAdvancesState(t *testing.T) {
	h := newHarness(t)
	result := h.mustAccept(gmCmd(scenario.CommandTypeCreate, "", scenario.CreatedPayload{Name: "Keep"}))
	if len(result.Events) != 1 || result.Events[0].Seq != 1 {
		t.Fatalf("expected sealed seq 1, got %+v", result.Events)
	}
	if !h.state.Scenario.Created || h.state.LastSeq != 1 {
		t.Fatalf("state not advanced: %+v", h.state)
	}
}

func TestCommandAtomicity(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()

	result := h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))
	if len(result.Events) != 2 {
		t.Fatalf("expected round.started and turn.started, got %d", len(result.Events))
	}
	if result.Events[0].Seq+1 != result.Events[1].Seq {
		t.Fatalf("batch not contiguous: %+v", result.Events)
	}
	if !result.Events[0].Timestamp.Equal(result.Events[1].Timestamp) {
		t.Fatalf("batch events must share a timestamp")
	}
	if result.Events[0].RequestID == "" || result.Events[0].RequestID != result.Events[1].RequestID {
		t.Fatalf("batch events must share a request id")
	}
}

func TestInitiativeOrderFromEffects(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()
	h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))

	order := h.state.Scheduler.Order
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected [a b], got %v", order)
	}
	if h.state.Scheduler.ActivePubID != "a" {
		t.Fatalf("expected a active, got %q", h.state.Scheduler.ActivePubID)
	}
}

func TestPendingInputBlocksAndUnblocks(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()
	h.mustAccept(gmCmd(input.CommandTypeRequest, "", input.RequestedPayload{Prompt: "Open the door?"}))

	result := h.submit(gmCmd(scheduler.CommandTypeStartRound, "", nil))
	if result.Accepted() || result.Rejections[0].Code != string(platformerrors.CodeBlocked) {
		t.Fatalf("expected %s, got %+v", platformerrors.CodeBlocked, result)
	}

	h.mustAccept(command.Command{
		ScenarioID:  "scn1",
		Type:        input.CommandTypeResolve,
		ActorType:   command.ActorTypePlayer,
		ActorID:     "p1",
		PayloadJSON: []byte(`{"value":"yes"}`),
	})
	h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))
}

func TestPlayerAuthorization(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()
	h.mustAccept(gmCmd(entity.CommandTypeAssignController, "a", entity.AssignControllerCommandPayload{PlayerID: "p1"}))
	h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))

	// Controller may complete their own active turn.
	h.mustAccept(command.Command{
		ScenarioID: "scn1",
		Type:       scheduler.CommandTypeCompleteTurn,
		ActorType:  command.ActorTypePlayer,
		ActorID:    "p1",
		EntityID:   "a",
	})

	// A stranger may not act for b.
	result := h.submit(command.Command{
		ScenarioID: "scn1",
		Type:       scheduler.CommandTypeCompleteTurn,
		ActorType:  command.ActorTypePlayer,
		ActorID:    "p2",
		EntityID:   "b",
	})
	if result.Accepted() || result.Rejections[0].Code != string(platformerrors.CodeNotAuthorized) {
		t.Fatalf("expected %s, got %+v", platformerrors.CodeNotAuthorized, result)
	}
}

func TestTurnLegalityForPlayers(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()
	h.mustAccept(gmCmd(entity.CommandTypeAssignController, "b", entity.AssignControllerCommandPayload{PlayerID: "p2"}))
	h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))

	// b's controller cannot complete while a holds the turn.
	result := h.submit(command.Command{
		ScenarioID: "scn1",
		Type:       scheduler.CommandTypeCompleteTurn,
		ActorType:  command.ActorTypePlayer,
		ActorID:    "p2",
		EntityID:   "b",
	})
	if result.Accepted() || result.Rejections[0].Code != string(platformerrors.CodeNotYourTurn) {
		t.Fatalf("expected %s, got %+v", platformerrors.CodeNotYourTurn, result)
	}
}

func TestTurnCounterIncrementsOnlyOnCompletion(t *testing.T) {
	h := newHarness(t)
	h.seedCombat()
	h.mustAccept(gmCmd(scheduler.CommandTypeStartRound, "", nil))

	h.mustAccept(gmCmd(scheduler.CommandTypeSkipTurn, "a", nil))
	if h.state.Scheduler.TurnCounter != 0 {
		t.Fatalf("skip must not advance counter, got %d", h.state.Scheduler.TurnCounter)
	}
	h.mustAccept(gmCmd(scheduler.CommandTypeCompleteTurn, "", nil))
	if h.state.Scheduler.TurnCounter != 1 {
		t.Fatalf("expected counter 1, got %d", h.state.Scheduler.TurnCounter)
	}
}

func TestRejectionLeavesJournalUntouched(t *testing.T) {
	h := newHarness(t)
	h.seedScenario()
	before := h.state.LastSeq

	result := h.submit(gmCmd(scenario.CommandTypeCreate, "", scenario.CreatedPayload{Name: "Again"}))
	if result.Accepted() {
		t.Fatalf("expected rejection")
	}
	if h.state.LastSeq != before {
		t.Fatalf("rejection advanced the journal: %d -> %d", before, h.state.LastSeq)
	}
}

func TestEffectOnRetiredTargetRejected(t *testing.T) {
	h := newHarness(t)
	h.seedScenario()
	h.mustAccept(gmCmd(entity.CommandTypeCreate, "", entity.CreateCommandPayload{
		PubID: "hero", Kind: entity.KindCharacter, Name: "Yuna",
	}))
	h.mustAccept(gmCmd(entity.CommandTypeRetire, "hero", nil))

	result := h.submit(gmCmd(effect.CommandTypeApply, "", effect.ApplyCommandPayload{
		Name: "blessed", TargetPubID: "hero",
	}))
	if result.Accepted() || result.Rejections[0].Code != string(platformerrors.CodeEntityRetired) {
		t.Fatalf("expected %s, got %+v", platformerrors.CodeEntityRetired, result)
	}
}
