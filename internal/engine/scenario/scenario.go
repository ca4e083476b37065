// Package scenario defines the scenario lifecycle domain: creation and
// renaming of the root play-session scope. Creating a scenario is the first
// event of a journal and resets every derived counter.
package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
)

const (
	// CommandTypeCreate requests the creation of a scenario.
	CommandTypeCreate command.Type = "scenario.create"
	// CommandTypeRename requests renaming a scenario.
	CommandTypeRename command.Type = "scenario.rename"

	// EventTypeCreated records the creation of a scenario.
	EventTypeCreated event.Type = "scenario.created"
	// EventTypeRenamed records renaming a scenario.
	EventTypeRenamed event.Type = "scenario.renamed"
)

const (
	rejectionCodeNameRequired   = string(platformerrors.CodeScenarioNameEmpty)
	rejectionCodeAlreadyCreated = string(platformerrors.CodeScenarioAlreadyExists)
	rejectionCodeNotCreated     = string(platformerrors.CodeScenarioNotCreated)
	rejectionCodeNameUnchanged  = string(platformerrors.CodeValidation)
)

// State captures the replayed scenario lifecycle context.
type State struct {
	// Created indicates whether a create command has been accepted.
	Created bool
	// Name is a human-facing label for the scenario.
	Name string
}

// CreatedPayload is the payload for scenario.created.
type CreatedPayload struct {
	Name string `json:"name"`
}

// RenamedPayload is the payload for scenario.renamed.
type RenamedPayload struct {
	Name string `json:"name"`
}

// FoldHandledTypes returns the event types handled by the scenario fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{EventTypeCreated, EventTypeRenamed}
}

// DeciderHandledCommands returns the command types the scenario decider handles.
func DeciderHandledCommands() []command.Type {
	return []command.Type{CommandTypeCreate, CommandTypeRename}
}

// RegisterCommands registers scenario command definitions.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeCreate, Auth: command.AuthGM},
		{Type: CommandTypeRename, Auth: command.AuthGM},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers scenario event definitions.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: EventTypeCreated},
		{Type: EventTypeRenamed},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Fold applies an event to scenario state. It returns an error if a
// recognized event carries a payload that cannot be unmarshalled.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case EventTypeCreated:
		var payload CreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("scenario fold %s: %w", evt.Type, err)
		}
		state.Created = true
		state.Name = payload.Name
	case EventTypeRenamed:
		var payload RenamedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("scenario fold %s: %w", evt.Type, err)
		}
		state.Name = payload.Name
	}
	return state, nil
}

// Decide returns the decision for a scenario command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeCreate:
		if state.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeAlreadyCreated,
				Message: "scenario already created",
			})
		}
		var payload CreatedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeNameRequired,
				Message: "scenario name is required",
			})
		}
		payloadJSON, _ := json.Marshal(CreatedPayload{Name: name})
		return command.Accept(command.NewEvent(cmd, EventTypeCreated, "scenario", cmd.ScenarioID, payloadJSON, now().UTC()))

	case CommandTypeRename:
		if !state.Created {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeNotCreated,
				Message: "scenario has not been created",
			})
		}
		var payload RenamedPayload
		_ = json.Unmarshal(cmd.PayloadJSON, &payload)
		name := strings.TrimSpace(payload.Name)
		if name == "" {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeNameRequired,
				Message: "scenario name is required",
			})
		}
		if name == state.Name {
			return command.Reject(command.Rejection{
				Code:    rejectionCodeNameUnchanged,
				Message: "scenario name is unchanged",
			})
		}
		payloadJSON, _ := json.Marshal(RenamedPayload{Name: name})
		return command.Accept(command.NewEvent(cmd, EventTypeRenamed, "scenario", cmd.ScenarioID, payloadJSON, now().UTC()))
	}
	return command.Reject(command.Rejection{Code: "VALIDATION", Message: "unsupported scenario command"})
}
