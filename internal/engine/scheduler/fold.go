package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Fold applies a scheduler event to state.
func Fold(state State, evt event.Event) (State, error) {
	state = state.Clone()

	switch evt.Type {
	case EventTypeRoundStarted:
		var payload RoundStartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("scheduler fold %s: %w", evt.Type, err)
		}
		if state.RoundActive {
			return state, fmt.Errorf("scheduler fold %s: round already active", evt.Type)
		}
		state.RoundCount = payload.Round
		state.RoundActive = true
		state.Order = append([]string(nil), payload.Order...)
		state.Groups = payload.Groups
		state.Statuses = make(map[string]TurnStatus, len(payload.Order))
		for _, pubID := range payload.Order {
			state.Statuses[pubID] = TurnAvailable
		}
		state.ActivePubID = ""

	case EventTypeRoundEnded:
		if !state.RoundActive {
			return state, fmt.Errorf("scheduler fold %s: no round active", evt.Type)
		}
		state.RoundActive = false
		state.Order = nil
		state.Groups = nil
		state.Statuses = nil
		state.ActivePubID = ""

	case EventTypeTurnStarted, EventTypeTurnResumed:
		pubID, err := turnSubject(state, evt)
		if err != nil {
			return state, err
		}
		if state.ActivePubID != "" {
			return state, fmt.Errorf("scheduler fold %s: turn already active for %s", evt.Type, state.ActivePubID)
		}
		state.Statuses[pubID] = TurnActive
		state.ActivePubID = pubID

	case EventTypeTurnCompleted:
		pubID, err := turnSubject(state, evt)
		if err != nil {
			return state, err
		}
		if state.ActivePubID != pubID {
			return state, fmt.Errorf("scheduler fold %s: %s does not hold the active turn", evt.Type, pubID)
		}
		state.Statuses[pubID] = TurnCompleted
		state.ActivePubID = ""
		state.TurnCounter++

	case EventTypeTurnSkipped:
		pubID, err := turnSubject(state, evt)
		if err != nil {
			return state, err
		}
		state.Statuses[pubID] = TurnSkipped
		if state.ActivePubID == pubID {
			state.ActivePubID = ""
		}

	case EventTypeTurnHeld:
		pubID, err := turnSubject(state, evt)
		if err != nil {
			return state, err
		}
		if state.ActivePubID != pubID {
			return state, fmt.Errorf("scheduler fold %s: %s does not hold the active turn", evt.Type, pubID)
		}
		state.Statuses[pubID] = TurnHeld
		state.ActivePubID = ""

	case EventTypeTurnPaused:
		pubID, err := turnSubject(state, evt)
		if err != nil {
			return state, err
		}
		if state.ActivePubID != pubID {
			return state, fmt.Errorf("scheduler fold %s: %s does not hold the active turn", evt.Type, pubID)
		}
		state.Statuses[pubID] = TurnPaused
		state.ActivePubID = ""
	}
	return state, nil
}

func turnSubject(state State, evt event.Event) (string, error) {
	var payload TurnPayload
	if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
		return "", fmt.Errorf("scheduler fold %s: %w", evt.Type, err)
	}
	if !state.RoundActive {
		return "", fmt.Errorf("scheduler fold %s: no round active", evt.Type)
	}
	if _, ok := state.Statuses[payload.PubID]; !ok {
		return "", fmt.Errorf("scheduler fold %s: %s is not a participant", evt.Type, payload.PubID)
	}
	return payload.PubID, nil
}
