// Package scheduler defines the round and turn domain: initiative-ordered
// rounds, a monotonic turn counter, and per-entity turn statuses including
// held and interrupted turns.
package scheduler

import (
	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
)

const (
	// CommandTypeStartRound requests starting a new round.
	CommandTypeStartRound command.Type = "round.start"
	// CommandTypeEndRound requests ending the current round early.
	CommandTypeEndRound command.Type = "round.end"
	// CommandTypeCompleteTurn requests completing the active turn.
	CommandTypeCompleteTurn command.Type = "turn.complete"
	// CommandTypeSkipTurn requests skipping a participant's turn.
	CommandTypeSkipTurn command.Type = "turn.skip"
	// CommandTypeHoldTurn requests deferring the active turn.
	CommandTypeHoldTurn command.Type = "turn.hold"
	// CommandTypeResumeTurn requests resuming a held turn.
	CommandTypeResumeTurn command.Type = "turn.resume"
	// CommandTypeAdvanceTurn requests starting the next eligible turn when
	// no turn is active.
	CommandTypeAdvanceTurn command.Type = "turn.advance"

	// EventTypeRoundStarted records a round start with its computed order.
	EventTypeRoundStarted event.Type = "round.started"
	// EventTypeRoundEnded records a round end.
	EventTypeRoundEnded event.Type = "round.ended"
	// EventTypeTurnStarted records a turn becoming active.
	EventTypeTurnStarted event.Type = "turn.started"
	// EventTypeTurnCompleted records a turn completing; the only event that
	// advances the turn counter.
	EventTypeTurnCompleted event.Type = "turn.completed"
	// EventTypeTurnSkipped records a turn being skipped.
	EventTypeTurnSkipped event.Type = "turn.skipped"
	// EventTypeTurnHeld records a turn being deferred.
	EventTypeTurnHeld event.Type = "turn.held"
	// EventTypeTurnResumed records a held or paused turn becoming active.
	EventTypeTurnResumed event.Type = "turn.resumed"
	// EventTypeTurnPaused records an active turn interrupted by a resume.
	EventTypeTurnPaused event.Type = "turn.paused"
)

// Envelope entity types for scheduler events.
const (
	EntityTypeRound = "round"
	EntityTypeTurn  = "turn"
)

const (
	rejectionCodeRoundActive     = string(platformerrors.CodeRoundAlreadyActive)
	rejectionCodeRoundNotActive  = string(platformerrors.CodeRoundNotActive)
	rejectionCodeNoParticipants  = string(platformerrors.CodeRoundNoParticipants)
	rejectionCodeTurnNotActive   = string(platformerrors.CodeTurnNotActive)
	rejectionCodeTurnStillActive = string(platformerrors.CodeTurnStillActive)
	rejectionCodeTurnNotHeld     = string(platformerrors.CodeTurnNotHeld)
	rejectionCodeTurnDone        = string(platformerrors.CodeTurnAlreadyDone)
	rejectionCodeNotParticipant  = string(platformerrors.CodeTurnNotParticipant)
	rejectionCodeNoEligible      = string(platformerrors.CodeTurnNoneEligible)
)

// RoundStartedPayload is the payload for round.started.
type RoundStartedPayload struct {
	Round uint64 `json:"round"`
	// Order lists participant public handles in initiative order.
	Order []string `json:"order"`
	// Groups maps participants to their initiative group, when any.
	Groups map[string]string `json:"groups,omitempty"`
}

// RoundEndedPayload is the payload for round.ended.
type RoundEndedPayload struct {
	Round uint64 `json:"round"`
}

// TurnPayload is the payload shared by turn lifecycle events.
type TurnPayload struct {
	PubID string `json:"pub_id"`
	// Counter is the turn counter value after the event. Only set on
	// turn.completed.
	Counter uint64 `json:"counter,omitempty"`
}

// FoldHandledTypes returns the event types handled by the scheduler fold.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		EventTypeRoundStarted,
		EventTypeRoundEnded,
		EventTypeTurnStarted,
		EventTypeTurnCompleted,
		EventTypeTurnSkipped,
		EventTypeTurnHeld,
		EventTypeTurnResumed,
		EventTypeTurnPaused,
	}
}

// DeciderHandledCommands returns the command types the scheduler decider handles.
func DeciderHandledCommands() []command.Type {
	return []command.Type{
		CommandTypeStartRound,
		CommandTypeEndRound,
		CommandTypeCompleteTurn,
		CommandTypeSkipTurn,
		CommandTypeHoldTurn,
		CommandTypeResumeTurn,
		CommandTypeAdvanceTurn,
	}
}

// RegisterCommands registers scheduler command definitions.
func RegisterCommands(registry *command.Registry) error {
	definitions := []command.Definition{
		{Type: CommandTypeStartRound, Auth: command.AuthGM},
		{Type: CommandTypeEndRound, Auth: command.AuthGM},
		{Type: CommandTypeCompleteTurn, Auth: command.AuthController, Turn: command.TurnPolicy{RequiresActiveTurn: true}},
		{Type: CommandTypeSkipTurn, Auth: command.AuthGM},
		{Type: CommandTypeHoldTurn, Auth: command.AuthController, Turn: command.TurnPolicy{RequiresActiveTurn: true}},
		{Type: CommandTypeResumeTurn, Auth: command.AuthController},
		{Type: CommandTypeAdvanceTurn, Auth: command.AuthGM},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvents registers scheduler event definitions.
func RegisterEvents(registry *event.Registry) error {
	definitions := []event.Definition{
		{Type: EventTypeRoundStarted, RequiresEntity: true},
		{Type: EventTypeRoundEnded, RequiresEntity: true},
		{Type: EventTypeTurnStarted, RequiresEntity: true},
		{Type: EventTypeTurnCompleted, RequiresEntity: true},
		{Type: EventTypeTurnSkipped, RequiresEntity: true},
		{Type: EventTypeTurnHeld, RequiresEntity: true},
		{Type: EventTypeTurnResumed, RequiresEntity: true},
		{Type: EventTypeTurnPaused, RequiresEntity: true},
	}
	for _, def := range definitions {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
