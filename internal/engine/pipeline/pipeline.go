// Package pipeline runs commands through the decision stages: validation,
// authorization, the pending-input gate, turn legality, the domain decider,
// and the atomic journal append.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/id"
	"github.com/louisbranch/yourupnext/internal/engine/projection"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	platformerrors "github.com/louisbranch/yourupnext/internal/platform/errors"
	"github.com/louisbranch/yourupnext/internal/storage"
)

const tracerName = "github.com/louisbranch/yourupnext/internal/engine/pipeline"

// Result is the outcome of submitting a command.
type Result struct {
	// Events are the sealed events appended to the journal. Empty when the
	// command was rejected.
	Events []event.Event
	// Rejections carry the domain reasons a command was declined.
	Rejections []command.Rejection
	// State is the projection after the appended events.
	State projection.State
}

// Accepted reports whether the command produced journal events.
func (r Result) Accepted() bool {
	return len(r.Rejections) == 0
}

// Handler submits commands against a scenario journal.
type Handler struct {
	Commands *command.Registry
	Decider  DecideFunc
	Folder   *projection.Folder
	Store    storage.EventStore
	// Now stamps decision events. Defaults to time.Now.
	Now func() time.Time
}

// NewHandler wires a handler over the core domains.
func NewHandler(store storage.EventStore) (*Handler, error) {
	commands, _, err := CoreRegistries()
	if err != nil {
		return nil, err
	}
	return &Handler{
		Commands: commands,
		Decider:  CoreDecider(),
		Folder:   projection.NewFolder(),
		Store:    store,
	}, nil
}

// Submit validates, authorizes, decides, and appends a command's events.
// prevTimestamp is the journal head's timestamp; every event of a decision
// is stamped with one timestamp strictly after it, so a batch of events can
// be recognized later as a single step.
//
// The state argument must be the projection at the journal head. On success
// the returned Result carries the advanced projection.
func (h *Handler) Submit(ctx context.Context, state projection.State, prevTimestamp time.Time, cmd command.Command) (Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.submit",
		trace.WithAttributes(
			attribute.String("scenario.id", cmd.ScenarioID),
			attribute.String("command.type", string(cmd.Type)),
		))
	defer span.End()

	cmd, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		return Result{}, platformerrors.Wrap(platformerrors.CodeValidation, "command validation failed", err)
	}
	def, _ := h.Commands.Definition(cmd.Type)
	if strings.TrimSpace(cmd.RequestID) == "" {
		cmd.RequestID = id.NewID()
	}

	if rejection := h.admit(def, state, cmd); rejection != nil {
		return Result{Rejections: []command.Rejection{*rejection}, State: state}, nil
	}

	now := h.Now
	if now == nil {
		now = time.Now
	}
	decision := h.Decider(state, cmd, now)
	if len(decision.Rejections) > 0 {
		return Result{Rejections: decision.Rejections, State: state}, nil
	}
	if len(decision.Events) == 0 {
		return Result{}, platformerrors.New(platformerrors.CodeUnknown, "decision produced neither events nor rejections")
	}

	timestamp := now().UTC().Truncate(time.Millisecond)
	if !timestamp.After(prevTimestamp) {
		timestamp = prevTimestamp.Add(time.Millisecond)
	}
	for i := range decision.Events {
		decision.Events[i].Timestamp = timestamp
		decision.Events[i].RequestID = cmd.RequestID
	}

	// Fold before appending: a decision whose events cannot fold is an
	// engine bug and must not reach the journal.
	if _, err := h.Folder.Fold(state.Clone(), decision.Events); err != nil {
		return Result{}, platformerrors.Wrap(platformerrors.CodeUnknown, "decision events do not fold", err)
	}

	sealed, err := h.Store.AppendEvents(ctx, decision.Events)
	if err != nil {
		if containsDuplicate(err) {
			return Result{}, platformerrors.Wrap(platformerrors.CodeDuplicateEvent, "journal rejected duplicate event", err)
		}
		return Result{}, platformerrors.Wrap(platformerrors.CodeStorage, "journal append failed", err)
	}

	next, err := h.Folder.Fold(state, sealed)
	if err != nil {
		return Result{}, platformerrors.Wrap(platformerrors.CodeReplayInconsistency, "sealed events do not fold", err)
	}
	span.SetAttributes(attribute.Int("events.appended", len(sealed)))
	return Result{Events: sealed, State: next}, nil
}

// admit runs the pre-decision stages shared by every command.
func (h *Handler) admit(def command.Definition, state projection.State, cmd command.Command) *command.Rejection {
	if cmd.Type != scenario.CommandTypeCreate && !state.Scenario.Created {
		return &command.Rejection{
			Code:    string(platformerrors.CodeScenarioNotCreated),
			Message: "scenario has not been created",
		}
	}

	if rejection := authorize(def, state, cmd); rejection != nil {
		return rejection
	}

	if state.Blocked() && def.Gate.Scope == command.GateScopeScenario && !def.Gate.AllowWhenOpen {
		return &command.Rejection{
			Code:    string(platformerrors.CodeBlocked),
			Message: "a pending input is blocking this command",
		}
	}

	if def.Turn.RequiresActiveTurn && cmd.ActorType == command.ActorTypePlayer {
		target := strings.TrimSpace(cmd.EntityID)
		if target == "" {
			target = state.Scheduler.ActivePubID
		}
		if state.Scheduler.ActivePubID == "" || target != state.Scheduler.ActivePubID {
			return &command.Rejection{
				Code:    string(platformerrors.CodeNotYourTurn),
				Message: "entity does not hold the active turn",
			}
		}
	}
	return nil
}

func authorize(def command.Definition, state projection.State, cmd command.Command) *command.Rejection {
	if cmd.ActorType == command.ActorTypeSystem {
		return nil
	}
	switch def.Auth {
	case command.AuthAny:
		return nil
	case command.AuthGM:
		if cmd.ActorType == command.ActorTypeGM {
			return nil
		}
	case command.AuthController:
		if cmd.ActorType == command.ActorTypeGM {
			return nil
		}
		target := strings.TrimSpace(cmd.EntityID)
		if target == "" {
			target = state.Scheduler.ActivePubID
		}
		if controller, ok := state.Entities.ControllerOf(target); ok && controller == cmd.ActorID {
			return nil
		}
	}
	return &command.Rejection{
		Code:    string(platformerrors.CodeNotAuthorized),
		Message: "actor may not issue this command",
	}
}

func containsDuplicate(err error) bool {
	return errors.Is(err, storage.ErrDuplicateEvent)
}
