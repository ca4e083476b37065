package input

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
)

func fixedNow() time.Time {
	return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
}

func openInput(t *testing.T, prompt string) State {
	t.Helper()
	payload, _ := json.Marshal(RequestedPayload{Prompt: prompt})
	decision := Decide(State{}, command.Command{ScenarioID: "scn1", Type: CommandTypeRequest, PayloadJSON: payload}, fixedNow)
	if len(decision.Rejections) != 0 {
		t.Fatalf("request rejected: %v", decision.Rejections)
	}
	state, err := Fold(State{}, decision.Events[0])
	if err != nil {
		t.Fatalf("fold requested: %v", err)
	}
	return state
}

func TestRequestOpensGate(t *testing.T) {
	state := openInput(t, "Open the door?")
	if !state.Active || state.Prompt != "Open the door?" || state.ID == "" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRequestRejectsWhilePending(t *testing.T) {
	state := openInput(t, "First?")
	payload, _ := json.Marshal(RequestedPayload{Prompt: "Second?"})
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeRequest, PayloadJSON: payload}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeAlreadyPending {
		t.Fatalf("expected %s, got %v", rejectionCodeAlreadyPending, decision)
	}
}

func TestResolveClosesGateAndCorrelates(t *testing.T) {
	state := openInput(t, "Open the door?")
	payload, _ := json.Marshal(ResolveCommandPayload{Value: json.RawMessage(`"yes"`)})
	decision := Decide(state, command.Command{
		ScenarioID:  "scn1",
		Type:        CommandTypeResolve,
		ActorType:   command.ActorTypePlayer,
		ActorID:     "p1",
		PayloadJSON: payload,
	}, fixedNow)
	if len(decision.Rejections) != 0 {
		t.Fatalf("resolve rejected: %v", decision.Rejections)
	}
	evt := decision.Events[0]
	if evt.EntityID != state.ID {
		t.Fatalf("expected entity id %s, got %s", state.ID, evt.EntityID)
	}
	state, err := Fold(state, evt)
	if err != nil {
		t.Fatalf("fold resolved: %v", err)
	}
	if state.Active {
		t.Fatalf("expected gate closed, got %+v", state)
	}
}

func TestResolveRejectsMismatchedID(t *testing.T) {
	state := openInput(t, "Open the door?")
	payload, _ := json.Marshal(ResolveCommandPayload{InputID: "other"})
	decision := Decide(state, command.Command{ScenarioID: "scn1", Type: CommandTypeResolve, PayloadJSON: payload}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeWrongInput {
		t.Fatalf("expected %s, got %v", rejectionCodeWrongInput, decision)
	}
}

func TestCancelRequiresPending(t *testing.T) {
	decision := Decide(State{}, command.Command{ScenarioID: "scn1", Type: CommandTypeCancel}, fixedNow)
	if len(decision.Rejections) != 1 || decision.Rejections[0].Code != rejectionCodeNonePending {
		t.Fatalf("expected %s, got %v", rejectionCodeNonePending, decision)
	}
}

func TestResolveAndCancelBypassGate(t *testing.T) {
	registry := command.NewRegistry()
	if err := RegisterCommands(registry); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	for _, cmdType := range []command.Type{CommandTypeResolve, CommandTypeCancel} {
		def, ok := registry.Definition(cmdType)
		if !ok || !def.Gate.AllowWhenOpen {
			t.Fatalf("expected %s to bypass the gate, got %+v", cmdType, def)
		}
	}
	def, ok := registry.Definition(CommandTypeRequest)
	if !ok || def.Gate.AllowWhenOpen {
		t.Fatalf("expected %s to be gated, got %+v", CommandTypeRequest, def)
	}
}
