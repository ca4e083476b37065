package effect

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
)

// ApplyCommandPayload is the payload for effect.apply.
type ApplyCommandPayload struct {
	Name        string         `json:"name"`
	TargetPubID string         `json:"target_pub_id"`
	SourcePubID string         `json:"source_pub_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Duration    Duration       `json:"duration"`
}

// RemoveCommandPayload is the payload for effect.remove.
type RemoveCommandPayload struct {
	EffectID uint64 `json:"effect_id"`
}

// Decide returns the decision for an effect command. The roster is consulted
// for target validation; turnCounter anchors turn-bounded durations; and
// roundActive guards round-bounded ones.
func Decide(state State, roster entity.State, turnCounter uint64, roundActive bool, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeApply:
		return decideApply(state, roster, turnCounter, roundActive, cmd, now)
	case CommandTypeRemove:
		return decideRemove(state, cmd, now)
	}
	return command.Reject(command.Rejection{Code: "VALIDATION", Message: "unsupported effect command"})
}

func decideApply(state State, roster entity.State, turnCounter uint64, roundActive bool, cmd command.Command, now func() time.Time) command.Decision {
	var payload ApplyCommandPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.Name = strings.TrimSpace(payload.Name)
	payload.TargetPubID = strings.TrimSpace(payload.TargetPubID)
	payload.SourcePubID = strings.TrimSpace(payload.SourcePubID)

	if payload.Name == "" {
		return command.Reject(command.Rejection{Code: rejectionCodeNameRequired, Message: "effect name is required"})
	}
	if payload.TargetPubID == "" {
		return command.Reject(command.Rejection{Code: rejectionCodeTargetRequired, Message: "effect target is required"})
	}
	target, ok := roster.Get(payload.TargetPubID)
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeTargetNotFound, Message: "target entity not found"})
	}
	if target.Retired {
		return command.Reject(command.Rejection{Code: rejectionCodeTargetRetired, Message: "target entity is retired"})
	}
	if payload.SourcePubID != "" {
		if _, ok := roster.Get(payload.SourcePubID); !ok {
			return command.Reject(command.Rejection{Code: rejectionCodeSourceNotFound, Message: "source entity not found"})
		}
	}

	if payload.Duration.Kind == "" {
		payload.Duration.Kind = DurationPermanent
	}
	if !payload.Duration.Kind.IsValid() {
		return command.Reject(command.Rejection{Code: rejectionCodeDurationInvalid, Message: "duration kind must be permanent, turns, or round"})
	}
	var expiresAt uint64
	switch payload.Duration.Kind {
	case DurationTurns:
		if payload.Duration.Turns == 0 {
			return command.Reject(command.Rejection{Code: rejectionCodeDurationInvalid, Message: "turn-bounded effects need at least one turn"})
		}
		expiresAt = turnCounter + payload.Duration.Turns
	case DurationRound:
		if !roundActive {
			return command.Reject(command.Rejection{Code: rejectionCodeRoundNotActive, Message: "round-bounded effects need an active round"})
		}
		payload.Duration.Turns = 0
	default:
		payload.Duration.Turns = 0
	}

	applied := AppliedPayload{
		EffectID:      state.NextID + 1,
		Name:          payload.Name,
		TargetPubID:   payload.TargetPubID,
		SourcePubID:   payload.SourcePubID,
		Data:          payload.Data,
		Duration:      payload.Duration,
		ExpiresAtTurn: expiresAt,
	}
	payloadJSON, _ := json.Marshal(applied)
	return command.Accept(command.NewEvent(cmd, EventTypeApplied, EntityType, strconv.FormatUint(applied.EffectID, 10), payloadJSON, now().UTC()))
}

func decideRemove(state State, cmd command.Command, now func() time.Time) command.Decision {
	var payload RemoveCommandPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	e, ok := state.Effects[payload.EffectID]
	if !ok {
		return command.Reject(command.Rejection{Code: rejectionCodeNotFound, Message: "effect not found"})
	}
	if e.Removed {
		return command.Reject(command.Rejection{Code: rejectionCodeAlreadyRemoved, Message: "effect already removed"})
	}
	removed := RemovedPayload{EffectID: e.ID, Reason: RemovalReasonRemoved}
	payloadJSON, _ := json.Marshal(removed)
	return command.Accept(command.NewEvent(cmd, EventTypeRemoved, EntityType, strconv.FormatUint(e.ID, 10), payloadJSON, now().UTC()))
}
