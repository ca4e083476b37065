// Package entity defines the roster domain: creation, naming, retirement,
// parent containment, and player control of scenario entities.
package entity

import (
	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
)

const (
	// CommandTypeCreate requests creating an entity.
	CommandTypeCreate command.Type = "entity.create"
	// CommandTypeRename requests renaming an entity.
	CommandTypeRename command.Type = "entity.rename"
	// CommandTypeRetire requests retiring an entity.
	CommandTypeRetire command.Type = "entity.retire"
	// CommandTypeAssignParent requests placing an entity under a parent.
	CommandTypeAssignParent command.Type = "entity.assign_parent"
	// CommandTypeReleaseParent requests detaching an entity from its parent.
	CommandTypeReleaseParent command.Type = "entity.release_parent"
	// CommandTypeAssignController requests granting a player control of an entity.
	CommandTypeAssignController command.Type = "entity.assign_controller"

	// EventTypeCreated records entity creation.
	EventTypeCreated event.Type = "entity.created"
	// EventTypeRenamed records an entity rename.
	EventTypeRenamed event.Type = "entity.renamed"
	// EventTypeRetired records an entity retirement.
	EventTypeRetired event.Type = "entity.retired"
	// EventTypeParentAssigned records a containment change.
	EventTypeParentAssigned event.Type = "entity.parent_assigned"
	// EventTypeParentReleased records a containment removal.
	EventTypeParentReleased event.Type = "entity.parent_released"
	// EventTypeControllerAssigned records a control change.
	EventTypeControllerAssigned event.Type = "entity.controller_assigned"
)

// EntityType is the envelope entity type for roster events.
const EntityType = "entity"

// Kind categorizes an entity.
type Kind string

const (
	// KindCharacter is a playable or non-playable character.
	KindCharacter Kind = "character"
	// KindItem is an object that can be held or placed.
	KindItem Kind = "item"
	// KindLocation is a place that can contain other entities.
	KindLocation Kind = "location"
)

// IsValid reports whether the kind is one of the known categories.
func (k Kind) IsValid() bool {
	switch k {
	case KindCharacter, KindItem, KindLocation:
		return true
	}
	return false
}

const (
	rejectionCodeNameRequired    = string(platformerrors.CodeEntityNameEmpty)
	rejectionCodePubIDTaken      = string(platformerrors.CodeEntityPubIDTaken)
	rejectionCodeKindInvalid     = string(platformerrors.CodeEntityKindInvalid)
	rejectionCodeNotFound        = string(platformerrors.CodeEntityNotFound)
	rejectionCodeRetired         = string(platformerrors.CodeEntityRetired)
	rejectionCodeParentNotFound  = string(platformerrors.CodeEntityParentNotFound)
	rejectionCodeParentCycle     = string(platformerrors.CodeEntityParentCycle)
	rejectionCodeParentSelf      = string(platformerrors.CodeEntityParentSelf)
	rejectionCodeNoParent        = string(platformerrors.CodeEntityNoParent)
	rejectionCodeControllerEmpty = string(platformerrors.CodeEntityControllerEmpty)
)

// CreatedPayload is the payload for entity.created.
type CreatedPayload struct {
	PubID string `json:"pub_id"`
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
}

// RenamedPayload is the payload for entity.renamed.
type RenamedPayload struct {
	Name string `json:"name"`
}

// ParentAssignedPayload is the payload for entity.parent_assigned.
type ParentAssignedPayload struct {
	ParentPubID string `json:"parent_pub_id"`
}

// ControllerAssignedPayload is the payload for entity.controller_assigned.
// An empty PlayerID clears control.
type ControllerAssignedPayload struct {
	PlayerID string `json:"player_id"`
}

// FoldHandledTypes returns the event types handled by the entity fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		EventTypeCreated,
		EventTypeRenamed,
		EventTypeRetired,
		EventTypeParentAssigned,
		EventTypeParentReleased,
		EventTypeControllerAssigned,
	}
}

// DeciderHandledCommands returns the command types the entity decider handles.
func DeciderHandledCommands() []command.Type {
	return []command.Type{
		CommandTypeCreate,
		CommandTypeRename,
		CommandTypeRetire,
		CommandTypeAssignParent,
		CommandTypeReleaseParent,
		CommandTypeAssignController,
	}
}

// RegisterCommands registers entity command definitions.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeCreate, Auth: command.AuthGM},
		{Type: CommandTypeRename, Auth: command.AuthController},
		{Type: CommandTypeRetire, Auth: command.AuthGM},
		{Type: CommandTypeAssignParent, Auth: command.AuthGM},
		{Type: CommandTypeReleaseParent, Auth: command.AuthGM},
		{Type: CommandTypeAssignController, Auth: command.AuthGM},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers entity event definitions.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: EventTypeCreated, RequiresEntity: true},
		{Type: EventTypeRenamed, RequiresEntity: true},
		{Type: EventTypeRetired, RequiresEntity: true},
		{Type: EventTypeParentAssigned, RequiresEntity: true},
		{Type: EventTypeParentReleased, RequiresEntity: true},
		{Type: EventTypeControllerAssigned, RequiresEntity: true},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
