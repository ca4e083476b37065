package command

import (
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the per-event type, entity addressing, payload, and
// timestamp.
func NewEvent(cmd Command, eventType event.Type, entityType, entityID string, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		ScenarioID:  cmd.ScenarioID,
		Type:        eventType,
		Timestamp:   now,
		ActorType:   event.ActorType(cmd.ActorType),
		ActorID:     cmd.ActorID,
		EntityType:  entityType,
		EntityID:    entityID,
		RequestID:   cmd.RequestID,
		PayloadJSON: payloadJSON,
	}
}
