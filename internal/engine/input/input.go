// Package input defines the pending-input gate: a GM-posed question that
// blocks scenario progress until a player resolves it or the GM cancels it.
package input

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/id"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
)

const (
	// CommandTypeRequest requests opening a pending input.
	CommandTypeRequest command.Type = "input.request"
	// CommandTypeResolve answers the open pending input.
	CommandTypeResolve command.Type = "input.resolve"
	// CommandTypeCancel withdraws the open pending input.
	CommandTypeCancel command.Type = "input.cancel"

	// EventTypeRequested records the opening of a pending input.
	EventTypeRequested event.Type = "input.requested"
	// EventTypeResolved records a player answer.
	EventTypeResolved event.Type = "input.resolved"
	// EventTypeCancelled records a GM withdrawal.
	EventTypeCancelled event.Type = "input.cancelled"
)

// EntityType is the envelope entity type for input events.
const EntityType = "input"

const (
	rejectionCodeAlreadyPending = string(platformerrors.CodeInputAlreadyPending)
	rejectionCodeNonePending    = string(platformerrors.CodeInputNonePending)
	rejectionCodePromptRequired = string(platformerrors.CodeInputPromptEmpty)
	rejectionCodeWrongInput     = string(platformerrors.CodeInputIDMismatch)
)

// State captures the replayed gate.
type State struct {
	// Active indicates a pending input is open. While open, gated commands
	// are rejected as blocked.
	Active bool
	// ID is the open input's identity.
	ID string
	// Prompt is the question shown to players.
	Prompt string
	// TargetPubID optionally names the entity the question addresses.
	TargetPubID string
}

// RequestedPayload is the payload for input.requested.
type RequestedPayload struct {
	InputID     string `json:"input_id"`
	Prompt      string `json:"prompt"`
	TargetPubID string `json:"target_pub_id,omitempty"`
}

// ResolvedPayload is the payload for input.resolved. Value is an opaque
// JSON document supplied by the answering player.
type ResolvedPayload struct {
	InputID string          `json:"input_id"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// CancelledPayload is the payload for input.cancelled.
type CancelledPayload struct {
	InputID string `json:"input_id"`
}

// ResolveCommandPayload is the payload for input.resolve.
type ResolveCommandPayload struct {
	InputID string          `json:"input_id,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// FoldHandledTypes returns the event types handled by the input fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{EventTypeRequested, EventTypeResolved, EventTypeCancelled}
}

// DeciderHandledCommands returns the command types the input decider handles.
func DeciderHandledCommands() []command.Type {
	return []command.Type{CommandTypeRequest, CommandTypeResolve, CommandTypeCancel}
}

// RegisterCommands registers input command definitions. Resolution and
// cancellation stay usable while the gate is open; everything else in the
// scenario scope is held back.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeRequest, Auth: command.AuthGM},
		{Type: CommandTypeResolve, Auth: command.AuthAny, Gate: command.GatePolicy{Scope: command.GateScopeScenario, AllowWhenOpen: true}},
		{Type: CommandTypeCancel, Auth: command.AuthGM, Gate: command.GatePolicy{Scope: command.GateScopeScenario, AllowWhenOpen: true}},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers input event definitions.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: EventTypeRequested},
		{Type: EventTypeResolved},
		{Type: EventTypeCancelled},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Fold applies an input event to state.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeRequested:
		var payload RequestedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("input fold %s: %w", evt.Type, err)
		}
		if state.Active {
			return state, fmt.Errorf("input fold %s: input already pending: %s", evt.Type, state.ID)
		}
		state = State{Active: true, ID: payload.InputID, Prompt: payload.Prompt, TargetPubID: payload.TargetPubID}
	case EventTypeResolved, EventTypeCancelled:
		if !state.Active {
			return state, fmt.Errorf("input fold %s: no input pending", evt.Type)
		}
		state = State{}
	}
	return state, nil
}

// Decide returns the decision for an input command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeRequest:
		if state.Active {
			return command.Reject(command.Rejection{Code: rejectionCodeAlreadyPending, Message: "an input is already pending"})
		}
		var payload RequestedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.Prompt = strings.TrimSpace(payload.Prompt)
		if payload.Prompt == "" {
			return command.Reject(command.Rejection{Code: rejectionCodePromptRequired, Message: "input prompt is required"})
		}
		payload.InputID = strings.TrimSpace(payload.InputID)
		if payload.InputID == "" {
			payload.InputID = id.NewID()
		}
		payloadJSON, _ := json.Marshal(payload)
		return command.Accept(command.NewEvent(cmd, EventTypeRequested, EntityType, payload.InputID, payloadJSON, now().UTC()))

	case CommandTypeResolve:
		if !state.Active {
			return command.Reject(command.Rejection{Code: rejectionCodeNonePending, Message: "no input is pending"})
		}
		var payload ResolveCommandPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		payload.InputID = strings.TrimSpace(payload.InputID)
		if payload.InputID != "" && payload.InputID != state.ID {
			return command.Reject(command.Rejection{Code: rejectionCodeWrongInput, Message: "input id does not match the pending input"})
		}
		payloadJSON, _ := json.Marshal(ResolvedPayload{InputID: state.ID, Value: payload.Value})
		return command.Accept(command.NewEvent(cmd, EventTypeResolved, EntityType, state.ID, payloadJSON, now().UTC()))

	case CommandTypeCancel:
		if !state.Active {
			return command.Reject(command.Rejection{Code: rejectionCodeNonePending, Message: "no input is pending"})
		}
		payloadJSON, _ := json.Marshal(CancelledPayload{InputID: state.ID})
		return command.Accept(command.NewEvent(cmd, EventTypeCancelled, EntityType, state.ID, payloadJSON, now().UTC()))
	}
	return command.Reject(command.Rejection{Code: "VALIDATION", Message: "unsupported input command"})
}
