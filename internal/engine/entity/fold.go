package entity

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Fold applies a roster event to state. Events referencing unknown entities
// are an error: a journal that decides correctly never produces them.
func Fold(state State, evt event.Event) (State, error) {
	if state.Entities == nil {
		state = NewState()
	} else {
		state = state.Clone()
	}

	switch evt.Type {
	case EventTypeCreated:
		var payload CreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("entity fold %s: %w", evt.Type, err)
		}
		if _, exists := state.PubIDs[payload.PubID]; exists {
			return state, fmt.Errorf("entity fold %s: pub id already in use: %s", evt.Type, payload.PubID)
		}
		state.NextID++
		state.Entities[state.NextID] = Entity{
			ID:    state.NextID,
			PubID: payload.PubID,
			Kind:  payload.Kind,
			Name:  payload.Name,
		}
		state.PubIDs[payload.PubID] = state.NextID

	case EventTypeRenamed:
		id, ok := state.PubIDs[evt.EntityID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown entity: %s", evt.Type, evt.EntityID)
		}
		var payload RenamedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("entity fold %s: %w", evt.Type, err)
		}
		e := state.Entities[id]
		e.Name = payload.Name
		state.Entities[id] = e

	case EventTypeRetired:
		id, ok := state.PubIDs[evt.EntityID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown entity: %s", evt.Type, evt.EntityID)
		}
		e := state.Entities[id]
		e.Retired = true
		state.Entities[id] = e
		delete(state.Parents, id)
		delete(state.Controllers, id)

	case EventTypeParentAssigned:
		id, ok := state.PubIDs[evt.EntityID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown entity: %s", evt.Type, evt.EntityID)
		}
		var payload ParentAssignedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("entity fold %s: %w", evt.Type, err)
		}
		parentID, ok := state.PubIDs[payload.ParentPubID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown parent: %s", evt.Type, payload.ParentPubID)
		}
		if state.wouldCycle(id, parentID) {
			return state, fmt.Errorf("entity fold %s: containment cycle via %s", evt.Type, payload.ParentPubID)
		}
		state.Parents[id] = parentID

	case EventTypeParentReleased:
		id, ok := state.PubIDs[evt.EntityID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown entity: %s", evt.Type, evt.EntityID)
		}
		delete(state.Parents, id)

	case EventTypeControllerAssigned:
		id, ok := state.PubIDs[evt.EntityID]
		if !ok {
			return state, fmt.Errorf("entity fold %s: unknown entity: %s", evt.Type, evt.EntityID)
		}
		var payload ControllerAssignedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("entity fold %s: %w", evt.Type, err)
		}
		if payload.PlayerID == "" {
			delete(state.Controllers, id)
		} else {
			state.Controllers[id] = payload.PlayerID
		}
	}
	return state, nil
}
