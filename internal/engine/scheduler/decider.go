package scheduler

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/event"
)

// Decide returns the decision for a scheduler command. The roster and effect
// ledger feed initiative ordering and effect expiry, which the scheduler
// chains onto turn completion and round end.
func Decide(state State, roster entity.State, effects effect.State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeStartRound:
		return decideStartRound(state, roster, effects, cmd, now)
	case CommandTypeEndRound:
		return decideEndRound(state, effects, cmd, now)
	case CommandTypeCompleteTurn:
		return decideCompleteTurn(state, effects, cmd, now)
	case CommandTypeSkipTurn:
		return decideSkipTurn(state, effects, cmd, now)
	case CommandTypeHoldTurn:
		return decideHoldTurn(state, cmd, now)
	case CommandTypeResumeTurn:
		return decideResumeTurn(state, cmd, now)
	case CommandTypeAdvanceTurn:
		return decideAdvanceTurn(state, cmd, now)
	}
	return command.Reject(command.Rejection{Code: "VALIDATION", Message: "unsupported scheduler command"})
}

func decideStartRound(state State, roster entity.State, effects effect.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.RoundActive {
		return command.Reject(command.Rejection{Code: rejectionCodeRoundActive, Message: "a round is already active"})
	}
	order, groups := InitiativeOrder(roster, effects)
	if len(order) == 0 {
		return command.Reject(command.Rejection{Code: rejectionCodeNoParticipants, Message: "no entity carries an initiative value"})
	}
	round := state.RoundCount + 1
	startedJSON, _ := json.Marshal(RoundStartedPayload{Round: round, Order: order, Groups: groups})
	firstJSON, _ := json.Marshal(TurnPayload{PubID: order[0]})
	return command.Accept(
		command.NewEvent(cmd, EventTypeRoundStarted, EntityTypeRound, strconv.FormatUint(round, 10), startedJSON, now().UTC()),
		systemEvent(cmd.ScenarioID, EventTypeTurnStarted, EntityTypeTurn, order[0], firstJSON, now().UTC()),
	)
}

func decideEndRound(state State, effects effect.State, cmd command.Command, now func() time.Time) command.Decision {
	if !state.RoundActive {
		return command.Reject(command.Rejection{Code: rejectionCodeRoundNotActive, Message: "no round is active"})
	}
	events := expireEffects(cmd.ScenarioID, effects.ExpiringAtRoundEnd(), effect.RemovalReasonRoundEnd, now)
	endedJSON, _ := json.Marshal(RoundEndedPayload{Round: state.RoundCount})
	events = append(events, command.NewEvent(cmd, EventTypeRoundEnded, EntityTypeRound, strconv.FormatUint(state.RoundCount, 10), endedJSON, now().UTC()))
	return command.Accept(events...)
}

func decideCompleteTurn(state State, effects effect.State, cmd command.Command, now func() time.Time) command.Decision {
	pubID, rejection := activeSubject(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	counter := state.TurnCounter + 1
	completedJSON, _ := json.Marshal(TurnPayload{PubID: pubID, Counter: counter})
	events := []event.Event{command.NewEvent(cmd, EventTypeTurnCompleted, EntityTypeTurn, pubID, completedJSON, now().UTC())}
	events = append(events, expireEffects(cmd.ScenarioID, effects.ExpiringAtTurn(counter), effect.RemovalReasonTurns, now)...)

	after := state.Clone()
	after.Statuses[pubID] = TurnCompleted
	after.ActivePubID = ""
	return command.Accept(append(events, progression(after, effects, cmd.ScenarioID, now)...)...)
}

func decideSkipTurn(state State, effects effect.State, cmd command.Command, now func() time.Time) command.Decision {
	if !state.RoundActive {
		return command.Reject(command.Rejection{Code: rejectionCodeRoundNotActive, Message: "no round is active"})
	}
	pubID := strings.TrimSpace(cmd.EntityID)
	status, ok := state.Statuses[pubID]
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeNotParticipant, Message: "entity is not a round participant"})
	}
	if status == TurnCompleted || status == TurnSkipped {
		return command.Reject(command.Rejection{Code: rejectionCodeTurnDone, Message: "turn has already finished"})
	}
	skippedJSON, _ := json.Marshal(TurnPayload{PubID: pubID})
	events := []event.Event{command.NewEvent(cmd, EventTypeTurnSkipped, EntityTypeTurn, pubID, skippedJSON, now().UTC())}

	after := state.Clone()
	after.Statuses[pubID] = TurnSkipped
	if after.ActivePubID == pubID {
		after.ActivePubID = ""
	}
	if after.ActivePubID == "" {
		events = append(events, progression(after, effects, cmd.ScenarioID, now)...)
	}
	return command.Accept(events...)
}

func decideHoldTurn(state State, cmd command.Command, now func() time.Time) command.Decision {
	pubID, rejection := activeSubject(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	heldJSON, _ := json.Marshal(TurnPayload{PubID: pubID})
	events := []event.Event{command.NewEvent(cmd, EventTypeTurnHeld, EntityTypeTurn, pubID, heldJSON, now().UTC())}

	after := state.Clone()
	after.Statuses[pubID] = TurnHeld
	after.ActivePubID = ""
	if next, ok := after.nextEligible(); ok {
		events = append(events, startOrResume(after, next, cmd.ScenarioID, now))
	}
	return command.Accept(events...)
}

func decideResumeTurn(state State, cmd command.Command, now func() time.Time) command.Decision {
	if !state.RoundActive {
		return command.Reject(command.Rejection{Code: rejectionCodeRoundNotActive, Message: "no round is active"})
	}
	pubID := strings.TrimSpace(cmd.EntityID)
	status, ok := state.Statuses[pubID]
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeNotParticipant, Message: "entity is not a round participant"})
	}
	if status != TurnHeld {
		return command.Reject(command.Rejection{Code: rejectionCodeTurnNotHeld, Message: "turn is not held"})
	}
	var events []event.Event
	if state.ActivePubID != "" {
		pausedJSON, _ := json.Marshal(TurnPayload{PubID: state.ActivePubID})
		events = append(events, systemEvent(cmd.ScenarioID, EventTypeTurnPaused, EntityTypeTurn, state.ActivePubID, pausedJSON, now().UTC()))
	}
	resumedJSON, _ := json.Marshal(TurnPayload{PubID: pubID})
	events = append(events, command.NewEvent(cmd, EventTypeTurnResumed, EntityTypeTurn, pubID, resumedJSON, now().UTC()))
	return command.Accept(events...)
}

func decideAdvanceTurn(state State, cmd command.Command, now func() time.Time) command.Decision {
	if !state.RoundActive {
		return command.Reject(command.Rejection{Code: rejectionCodeRoundNotActive, Message: "no round is active"})
	}
	if state.ActivePubID != "" {
		return command.Reject(command.Rejection{Code: rejectionCodeTurnStillActive, Message: "a turn is still active"})
	}
	next, ok := state.nextEligible()
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeNoEligible, Message: "no participant is eligible to act"})
	}
	return command.Accept(startOrResume(state, next, cmd.ScenarioID, now))
}

// activeSubject resolves the participant a turn command addresses. An empty
// entity id means the active turn.
func activeSubject(state State, entityID string) (string, *command.Rejection) {
	if !state.RoundActive {
		return "", &command.Rejection{Code: rejectionCodeRoundNotActive, Message: "no round is active"}
	}
	if state.ActivePubID == "" {
		return "", &command.Rejection{Code: rejectionCodeTurnNotActive, Message: "no turn is active"}
	}
	pubID := strings.TrimSpace(entityID)
	if pubID != "" && pubID != state.ActivePubID {
		return "", &command.Rejection{Code: rejectionCodeTurnNotActive, Message: "entity does not hold the active turn"}
	}
	return state.ActivePubID, nil
}

// progression chains the next turn start, or ends the round when no
// participant can act and none holds a deferred turn.
func progression(after State, effects effect.State, scenarioID string, now func() time.Time) []event.Event {
	if next, ok := after.nextEligible(); ok {
		return []event.Event{startOrResume(after, next, scenarioID, now)}
	}
	if after.heldRemain() {
		return nil
	}
	events := expireEffects(scenarioID, effects.ExpiringAtRoundEnd(), effect.RemovalReasonRoundEnd, now)
	endedJSON, _ := json.Marshal(RoundEndedPayload{Round: after.RoundCount})
	return append(events, systemEvent(scenarioID, EventTypeRoundEnded, EntityTypeRound, strconv.FormatUint(after.RoundCount, 10), endedJSON, now().UTC()))
}

func startOrResume(state State, pubID, scenarioID string, now func() time.Time) event.Event {
	payloadJSON, _ := json.Marshal(TurnPayload{PubID: pubID})
	eventType := EventTypeTurnStarted
	if state.Statuses[pubID] == TurnPaused {
		eventType = EventTypeTurnResumed
	}
	return systemEvent(scenarioID, eventType, EntityTypeTurn, pubID, payloadJSON, now().UTC())
}

func expireEffects(scenarioID string, ids []uint64, reason string, now func() time.Time) []event.Event {
	events := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		payloadJSON, _ := json.Marshal(effect.RemovedPayload{EffectID: id, Reason: reason})
		events = append(events, systemEvent(scenarioID, effect.EventTypeExpired, effect.EntityType, strconv.FormatUint(id, 10), payloadJSON, now().UTC()))
	}
	return events
}

func systemEvent(scenarioID string, eventType event.Type, entityType, entityID string, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		ScenarioID:  scenarioID,
		Type:        eventType,
		Timestamp:   now,
		ActorType:   event.ActorTypeSystem,
		EntityType:  entityType,
		EntityID:    entityID,
		PayloadJSON: payloadJSON,
	}
}
