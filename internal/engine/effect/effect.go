// Package effect defines the modifier domain: named key/value effects applied
// to entities, with permanent, turn-bounded, or round-bounded lifetimes.
// Initiative values are carried as effect data and read by the scheduler.
package effect

import (
	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
)

const (
	// CommandTypeApply requests applying an effect to an entity.
	CommandTypeApply command.Type = "effect.apply"
	// CommandTypeRemove requests removing an active effect.
	CommandTypeRemove command.Type = "effect.remove"

	// EventTypeApplied records an effect application.
	EventTypeApplied event.Type = "effect.applied"
	// EventTypeRemoved records an explicit effect removal.
	EventTypeRemoved event.Type = "effect.removed"
	// EventTypeExpired records an automatic effect expiry.
	EventTypeExpired event.Type = "effect.expired"
)

// EntityType is the envelope entity type for effect events.
const EntityType = "effect"

// DurationKind classifies how long an effect lasts.
type DurationKind string

const (
	// DurationPermanent lasts until explicitly removed.
	DurationPermanent DurationKind = "permanent"
	// DurationTurns lasts for a fixed number of completed turns.
	DurationTurns DurationKind = "turns"
	// DurationRound lasts until the current round ends.
	DurationRound DurationKind = "round"
)

// IsValid reports whether the duration kind is known.
func (k DurationKind) IsValid() bool {
	switch k {
	case DurationPermanent, DurationTurns, DurationRound:
		return true
	}
	return false
}

// Data keys with engine-level meaning. Any other key is opaque scenario data.
const (
	// DataKeyInitiative orders entities within a round, highest first.
	DataKeyInitiative = "initiative"
	// DataKeyInitiativeGroup names a side whose members act in an
	// interleaved order against other groups.
	DataKeyInitiativeGroup = "initiative_group"
)

const (
	rejectionCodeNameRequired    = string(platformerrors.CodeEffectNameEmpty)
	rejectionCodeTargetRequired  = string(platformerrors.CodeEffectTargetEmpty)
	rejectionCodeTargetNotFound  = string(platformerrors.CodeEntityNotFound)
	rejectionCodeTargetRetired   = string(platformerrors.CodeEntityRetired)
	rejectionCodeSourceNotFound  = string(platformerrors.CodeEffectSourceNotFound)
	rejectionCodeDurationInvalid = string(platformerrors.CodeEffectDurationInvalid)
	rejectionCodeNotFound        = string(platformerrors.CodeEffectNotFound)
	rejectionCodeAlreadyRemoved  = string(platformerrors.CodeEffectAlreadyRemoved)
	rejectionCodeRoundNotActive  = string(platformerrors.CodeRoundNotActive)
)

// Duration describes an effect lifetime.
type Duration struct {
	Kind DurationKind `json:"kind"`
	// Turns is the number of completed turns the effect survives. Only
	// meaningful when Kind is DurationTurns, and must be at least 1.
	Turns uint64 `json:"turns,omitempty"`
}

// AppliedPayload is the payload for effect.applied. The EffectID is chosen at
// decision time so removals can address it.
type AppliedPayload struct {
	EffectID    uint64         `json:"effect_id"`
	Name        string         `json:"name"`
	TargetPubID string         `json:"target_pub_id"`
	SourcePubID string         `json:"source_pub_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Duration    Duration       `json:"duration"`
	// ExpiresAtTurn is the absolute turn counter value at which a
	// turn-bounded effect lapses. Zero for other durations.
	ExpiresAtTurn uint64 `json:"expires_at_turn,omitempty"`
}

// RemovedPayload is the payload for effect.removed and effect.expired.
type RemovedPayload struct {
	EffectID uint64 `json:"effect_id"`
	// Reason distinguishes explicit removal from turn or round expiry.
	Reason string `json:"reason"`
}

// Removal reasons.
const (
	RemovalReasonRemoved  = "removed"
	RemovalReasonTurns    = "turns_elapsed"
	RemovalReasonRoundEnd = "round_ended"
)

// FoldHandledTypes returns the event types handled by the effect fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{EventTypeApplied, EventTypeRemoved, EventTypeExpired}
}

// DeciderHandledCommands returns the command types the effect decider handles.
func DeciderHandledCommands() []command.Type {
	return []command.Type{CommandTypeApply, CommandTypeRemove}
}

// RegisterCommands registers effect command definitions.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeApply, Auth: command.AuthController},
		{Type: CommandTypeRemove, Auth: command.AuthGM},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers effect event definitions.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: EventTypeApplied, RequiresEntity: true},
		{Type: EventTypeRemoved, RequiresEntity: true},
		{Type: EventTypeExpired, RequiresEntity: true},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
