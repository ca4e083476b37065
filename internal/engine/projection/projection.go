// Package projection folds journal events into the composite scenario state.
// The fold is pure: the same event sequence always produces the same state,
// and an event the decision layer would never emit is a fold error.
package projection

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/input"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	"github.com/louisbranch/yourupnext/internal/engine/scheduler"
)

// State is the composite replayed scenario state.
type State struct {
	// ScenarioID is the scenario this state was folded for.
	ScenarioID string
	// LastSeq is the sequence number of the last folded event.
	LastSeq uint64
	// Scenario is the lifecycle sub-state.
	Scenario scenario.State
	// Entities is the roster sub-state.
	Entities entity.State
	// Effects is the modifier sub-state.
	Effects effect.State
	// Input is the pending-input gate sub-state.
	Input input.State
	// Scheduler is the round and turn sub-state.
	Scheduler scheduler.State
}

// NewState returns an empty state for a scenario.
func NewState(scenarioID string) State {
	return State{
		ScenarioID: scenarioID,
		Entities:   entity.NewState(),
		Effects:    effect.NewState(),
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Entities = s.Entities.Clone()
	out.Effects = s.Effects.Clone()
	out.Scheduler = s.Scheduler.Clone()
	return out
}

// Blocked reports whether a pending input is holding back gated commands.
func (s State) Blocked() bool {
	return s.Input.Active
}

type foldFunc func(State, event.Event) (State, error)

// Folder dispatches events to domain folds by event type.
type Folder struct {
	entries map[event.Type]foldFunc
}

// NewFolder returns a folder wired to the core domains.
func NewFolder() *Folder {
	f := &Folder{entries: make(map[event.Type]foldFunc)}
	f.register(scenario.FoldHandledTypes(), foldScenario)
	f.register(entity.FoldHandledTypes(), foldEntities)
	f.register(effect.FoldHandledTypes(), foldEffects)
	f.register(input.FoldHandledTypes(), foldInput)
	f.register(scheduler.FoldHandledTypes(), foldScheduler)
	return f
}

func (f *Folder) register(types []event.Type, fn foldFunc) {
	for _, t := range types {
		f.entries[t] = fn
	}
}

// Handles reports whether the folder knows the event type.
func (f *Folder) Handles(eventType event.Type) bool {
	_, ok := f.entries[eventType]
	return ok
}

// Apply folds a single event into state. Persisted events must arrive in
// sequence order; events not yet persisted carry a zero Seq and skip the
// ordering check.
func (f *Folder) Apply(state State, evt event.Event) (State, error) {
	if state.ScenarioID != "" && evt.ScenarioID != state.ScenarioID {
		return state, fmt.Errorf("fold: event belongs to scenario %s, state to %s", evt.ScenarioID, state.ScenarioID)
	}
	if evt.Seq != 0 {
		if evt.Seq != state.LastSeq+1 {
			return state, fmt.Errorf("fold: expected seq %d, got %d", state.LastSeq+1, evt.Seq)
		}
	}

	fn, ok := f.entries[evt.Type]
	if !ok {
		return state, fmt.Errorf("fold: unhandled event type %s", evt.Type)
	}

	// The first event of a journal starts from a clean slate.
	if evt.Type == scenario.EventTypeCreated {
		fresh := NewState(evt.ScenarioID)
		fresh.LastSeq = state.LastSeq
		state = fresh
	}

	state, err := fn(state, evt)
	if err != nil {
		return state, err
	}
	if evt.Seq != 0 {
		state.LastSeq = evt.Seq
	}
	return state, nil
}

// Fold replays a sequence of events from an initial state.
func (f *Folder) Fold(state State, events []event.Event) (State, error) {
	var err error
	for _, evt := range events {
		state, err = f.Apply(state, evt)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

func foldScenario(state State, evt event.Event) (State, error) {
	sub, err := scenario.Fold(state.Scenario, evt)
	if err != nil {
		return state, err
	}
	state.Scenario = sub
	return state, nil
}

func foldEntities(state State, evt event.Event) (State, error) {
	sub, err := entity.Fold(state.Entities, evt)
	if err != nil {
		return state, err
	}
	state.Entities = sub
	return state, nil
}

func foldEffects(state State, evt event.Event) (State, error) {
	if evt.Type == effect.EventTypeApplied {
		if err := checkEffectTarget(state, evt); err != nil {
			return state, err
		}
	}
	sub, err := effect.Fold(state.Effects, evt)
	if err != nil {
		return state, err
	}
	state.Effects = sub
	return state, nil
}

func foldInput(state State, evt event.Event) (State, error) {
	sub, err := input.Fold(state.Input, evt)
	if err != nil {
		return state, err
	}
	state.Input = sub
	return state, nil
}

func foldScheduler(state State, evt event.Event) (State, error) {
	sub, err := scheduler.Fold(state.Scheduler, evt)
	if err != nil {
		return state, err
	}
	state.Scheduler = sub
	return state, nil
}

// checkEffectTarget rejects effect applications whose target does not exist
// in the roster. The decision layer never emits them; seeing one means the
// journal is corrupt.
func checkEffectTarget(state State, evt event.Event) error {
	var payload effect.AppliedPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("fold %s: %w", evt.Type, err)
	}
	target, ok := state.Entities.Get(payload.TargetPubID)
	if !ok {
		return fmt.Errorf("fold %s: target entity %s does not exist", evt.Type, payload.TargetPubID)
	}
	if target.Retired {
		return fmt.Errorf("fold %s: target entity %s is retired", evt.Type, payload.TargetPubID)
	}
	return nil
}
