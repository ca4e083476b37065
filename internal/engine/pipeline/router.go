package pipeline

import (
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/event"
	"github.com/louisbranch/yourupnext/internal/engine/input"
	"github.com/louisbranch/yourupnext/internal/engine/projection"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	"github.com/louisbranch/yourupnext/internal/engine/scheduler"
)

// DecideFunc produces the decision for a command against replayed state.
type DecideFunc func(state projection.State, cmd command.Command, now func() time.Time) command.Decision

// CoreRegistries returns command and event registries with every core
// domain registered.
func CoreRegistries() (*command.Registry, *event.Registry, error) {
	commands := command.NewRegistry()
	events := event.NewRegistry()
	commandRegistrations := []func(*command.Registry) error{
		scenario.RegisterCommands,
		entity.RegisterCommands,
		effect.RegisterCommands,
		input.RegisterCommands,
		scheduler.RegisterCommands,
	}
	for _, register := range commandRegistrations {
		if err := register(commands); err != nil {
			return nil, nil, err
		}
	}
	eventRegistrations := []func(*event.Registry) error{
		scenario.RegisterEvents,
		entity.RegisterEvents,
		effect.RegisterEvents,
		input.RegisterEvents,
		scheduler.RegisterEvents,
	}
	for _, register := range eventRegistrations {
		if err := register(events); err != nil {
			return nil, nil, err
		}
	}
	return commands, events, nil
}

// CoreDecider routes commands to the owning domain decider, handing each one
// the foreign state slices it reads.
func CoreDecider() DecideFunc {
	return func(state projection.State, cmd command.Command, now func() time.Time) command.Decision {
		switch commandDomain(cmd.Type) {
		case "scenario":
			return scenario.Decide(state.Scenario, cmd, now)
		case "entity":
			return entity.Decide(state.Entities, cmd, now)
		case "effect":
			return effect.Decide(state.Effects, state.Entities, state.Scheduler.TurnCounter, state.Scheduler.RoundActive, cmd, now)
		case "input":
			return input.Decide(state.Input, cmd, now)
		case "round", "turn":
			return scheduler.Decide(state.Scheduler, state.Entities, state.Effects, cmd, now)
		}
		return command.Reject(command.Rejection{Code: "VALIDATION", Message: "no decider for command"})
	}
}

func commandDomain(cmdType command.Type) string {
	value := string(cmdType)
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		return value[:idx]
	}
	return value
}
