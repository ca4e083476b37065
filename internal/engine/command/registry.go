package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrScenarioIDRequired indicates a missing scenario id.
	ErrScenarioIDRequired = errors.New("scenario id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
	// ErrActorTypeInvalid indicates an unknown actor type.
	ErrActorTypeInvalid = errors.New("actor type is invalid")
	// ErrActorIDRequired indicates a missing actor id for player/gm.
	ErrActorIDRequired = errors.New("actor id is required for player or gm")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

// ActorType identifies the actor who initiated the command.
type ActorType string

const (
	// ActorTypeSystem indicates an engine-originated command.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates a player-originated command.
	ActorTypePlayer ActorType = "player"
	// ActorTypeGM indicates a GM-originated command.
	ActorTypeGM ActorType = "gm"
)

// GateScope declares when a command is subject to the pending-input gate.
type GateScope string

const (
	// GateScopeNone indicates the command is never gated.
	GateScopeNone GateScope = "none"
	// GateScopeScenario indicates the command is gated while a pending
	// input is open for its scenario.
	GateScopeScenario GateScope = "scenario"
)

// GatePolicy declares how a command behaves when a pending input is open.
type GatePolicy struct {
	Scope         GateScope
	AllowWhenOpen bool
}

// AuthPolicy declares who may issue a command.
type AuthPolicy string

const (
	// AuthAny allows any authenticated actor.
	AuthAny AuthPolicy = "any"
	// AuthGM restricts the command to GM or system actors.
	AuthGM AuthPolicy = "gm"
	// AuthController allows GM and system actors, and players controlling
	// the addressed entity.
	AuthController AuthPolicy = "controller"
)

// TurnPolicy declares whether a command requires the addressed entity to
// hold the active turn.
type TurnPolicy struct {
	RequiresActiveTurn bool
}

// Command captures the canonical command envelope.
type Command struct {
	ScenarioID  string
	Type        Type
	ActorType   ActorType
	ActorID     string
	EntityID    string
	RequestID   string
	PayloadJSON []byte
}

// Definition registers metadata for a command type.
type Definition struct {
	Type            Type
	ValidatePayload func(json.RawMessage) error
	Gate            GatePolicy
	Auth            AuthPolicy
	Turn            TurnPolicy
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if def.Auth == "" {
		def.Auth = AuthGM
	}
	if def.Gate.Scope == "" {
		def.Gate.Scope = GateScopeScenario
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before decision handling.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	cmd.ScenarioID = strings.TrimSpace(cmd.ScenarioID)
	if cmd.ScenarioID == "" {
		return Command{}, ErrScenarioIDRequired
	}
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	def, ok := r.definitions[cmd.Type]
	if !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrTypeUnknown, cmd.Type)
	}

	cmd.ActorType = ActorType(strings.TrimSpace(string(cmd.ActorType)))
	if cmd.ActorType == "" {
		cmd.ActorType = ActorTypeSystem
	}
	switch cmd.ActorType {
	case ActorTypeSystem, ActorTypePlayer, ActorTypeGM:
		// allowed
	default:
		return Command{}, ErrActorTypeInvalid
	}
	cmd.ActorID = strings.TrimSpace(cmd.ActorID)
	if (cmd.ActorType == ActorTypePlayer || cmd.ActorType == ActorTypeGM) && cmd.ActorID == "" {
		return Command{}, ErrActorIDRequired
	}
	cmd.EntityID = strings.TrimSpace(cmd.EntityID)

	if len(cmd.PayloadJSON) == 0 {
		cmd.PayloadJSON = []byte("{}")
	}
	if !json.Valid(cmd.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(cmd.PayloadJSON)); err != nil {
			return Command{}, fmt.Errorf("payload invalid: %w", err)
		}
	}
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	cmdType = Type(strings.TrimSpace(string(cmdType)))
	if cmdType == "" {
		return Definition{}, false
	}
	def, ok := r.definitions[cmdType]
	return def, ok
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return string(definitions[i].Type) < string(definitions[j].Type)
	})
	return definitions
}
