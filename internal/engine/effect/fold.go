package effect

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Fold applies an effect event to state.
func Fold(state State, evt event.Event) (State, error) {
	if state.Effects == nil {
		state = NewState()
	} else {
		state = state.Clone()
	}

	switch evt.Type {
	case EventTypeApplied:
		var payload AppliedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("effect fold %s: %w", evt.Type, err)
		}
		if payload.EffectID == 0 {
			return state, fmt.Errorf("effect fold %s: effect id is required", evt.Type)
		}
		if _, exists := state.Effects[payload.EffectID]; exists {
			return state, fmt.Errorf("effect fold %s: effect id already in use: %d", evt.Type, payload.EffectID)
		}
		state.Effects[payload.EffectID] = Effect{
			ID:            payload.EffectID,
			Name:          payload.Name,
			TargetPubID:   payload.TargetPubID,
			SourcePubID:   payload.SourcePubID,
			Data:          payload.Data,
			Duration:      payload.Duration,
			ExpiresAtTurn: payload.ExpiresAtTurn,
		}
		state.Order = append(state.Order, payload.EffectID)
		if payload.EffectID > state.NextID {
			state.NextID = payload.EffectID
		}

	case EventTypeRemoved, EventTypeExpired:
		var payload RemovedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("effect fold %s: %w", evt.Type, err)
		}
		e, ok := state.Effects[payload.EffectID]
		if !ok {
			return state, fmt.Errorf("effect fold %s: unknown effect: %d", evt.Type, payload.EffectID)
		}
		if e.Removed {
			return state, fmt.Errorf("effect fold %s: effect already removed: %d", evt.Type, payload.EffectID)
		}
		e.Removed = true
		e.RemovalReason = payload.Reason
		state.Effects[payload.EffectID] = e
	}
	return state, nil
}
