package event

import (
	"strings"
	"time"
)

// Type identifies the type of an engine event.
type Type string

// ActorType identifies who or what triggered an event.
type ActorType string

const (
	// ActorTypeSystem indicates the event was triggered by the engine itself.
	ActorTypeSystem ActorType = "system"
	// ActorTypePlayer indicates the event was triggered by a player.
	ActorTypePlayer ActorType = "player"
	// ActorTypeGM indicates the event was triggered by the GM.
	ActorTypeGM ActorType = "gm"
)

// Event represents an immutable event in the scenario journal.
type Event struct {
	// ScenarioID is the scenario this event belongs to.
	ScenarioID string
	// Seq is the event sequence number within the scenario (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// ID is the deterministic event identity derived from
	// (scenario_id, timestamp, seq). Assigned by storage on append.
	ID string
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// PrevHash is the previous event's chain hash (empty for the first event).
	// Assigned by storage on append.
	PrevHash string
	// ChainHash links this event to the previous event hash (SHA-256).
	// Assigned by storage on append.
	ChainHash string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who triggered the event.
	ActorType ActorType
	// ActorID is the player ID if ActorType is player or GM.
	ActorID string
	// EntityType is the type of entity affected (entity, effect, round, ...).
	EntityType string
	// EntityID is the public ID of the entity affected.
	EntityID string
	// RequestID correlates related events (e.g., input request to resolution).
	RequestID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "entity", "turn").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
