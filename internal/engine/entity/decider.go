package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/id"
)

// CreateCommandPayload is the payload for entity.create.
type CreateCommandPayload struct {
	PubID string `json:"pub_id"`
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
}

// AssignParentCommandPayload is the payload for entity.assign_parent.
type AssignParentCommandPayload struct {
	ParentPubID string `json:"parent_pub_id"`
}

// AssignControllerCommandPayload is the payload for entity.assign_controller.
type AssignControllerCommandPayload struct {
	PlayerID string `json:"player_id"`
	Clear    bool   `json:"clear,omitempty"`
}

// Decide returns the decision for a roster command against current state.
func Decide(state State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}
	switch cmd.Type {
	case CommandTypeCreate:
		return decideCreate(state, cmd, now)
	case CommandTypeRename:
		return decideRename(state, cmd, now)
	case CommandTypeRetire:
		return decideRetire(state, cmd, now)
	case CommandTypeAssignParent:
		return decideAssignParent(state, cmd, now)
	case CommandTypeReleaseParent:
		return decideReleaseParent(state, cmd, now)
	case CommandTypeAssignController:
		return decideAssignController(state, cmd, now)
	}
	return command.Reject(command.Rejection{Code: "VALIDATION", Message: "unsupported entity command"})
}

func decideCreate(state State, cmd command.Command, now func() time.Time) command.Decision {
	var payload CreateCommandPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.PubID = strings.TrimSpace(payload.PubID)
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.PubID == "" {
		payload.PubID = id.NewID()
	}
	if payload.Name == "" {
		return command.Reject(command.Rejection{Code: rejectionCodeNameRequired, Message: "entity name is required"})
	}
	if !payload.Kind.IsValid() {
		return command.Reject(command.Rejection{Code: rejectionCodeKindInvalid, Message: "entity kind must be character, item, or location"})
	}
	if _, exists := state.PubIDs[payload.PubID]; exists {
		return command.Reject(command.Rejection{Code: rejectionCodePubIDTaken, Message: "entity pub id already in use"})
	}
	payloadJSON, _ := json.Marshal(CreatedPayload{PubID: payload.PubID, Kind: payload.Kind, Name: payload.Name})
	return command.Accept(command.NewEvent(cmd, EventTypeCreated, EntityType, payload.PubID, payloadJSON, now().UTC()))
}

func decideRename(state State, cmd command.Command, now func() time.Time) command.Decision {
	target, rejection := activeTarget(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	var payload RenamedPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return command.Reject(command.Rejection{Code: rejectionCodeNameRequired, Message: "entity name is required"})
	}
	payloadJSON, _ := json.Marshal(RenamedPayload{Name: payload.Name})
	return command.Accept(command.NewEvent(cmd, EventTypeRenamed, EntityType, target.PubID, payloadJSON, now().UTC()))
}

func decideRetire(state State, cmd command.Command, now func() time.Time) command.Decision {
	target, rejection := activeTarget(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	return command.Accept(command.NewEvent(cmd, EventTypeRetired, EntityType, target.PubID, nil, now().UTC()))
}

func decideAssignParent(state State, cmd command.Command, now func() time.Time) command.Decision {
	target, rejection := activeTarget(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	var payload AssignParentCommandPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.ParentPubID = strings.TrimSpace(payload.ParentPubID)
	if payload.ParentPubID == target.PubID {
		return command.Reject(command.Rejection{Code: rejectionCodeParentSelf, Message: "entity cannot contain itself"})
	}
	parent, ok := state.Get(payload.ParentPubID)
	if !ok || parent.Retired {
		return command.Reject(command.Rejection{Code: rejectionCodeParentNotFound, Message: "parent entity not found"})
	}
	if state.wouldCycle(target.ID, parent.ID) {
		return command.Reject(command.Rejection{Code: rejectionCodeParentCycle, Message: "assignment would create a containment cycle"})
	}
	payloadJSON, _ := json.Marshal(ParentAssignedPayload{ParentPubID: parent.PubID})
	return command.Accept(command.NewEvent(cmd, EventTypeParentAssigned, EntityType, target.PubID, payloadJSON, now().UTC()))
}

func decideReleaseParent(state State, cmd command.Command, now func() time.Time) command.Decision {
	target, rejection := activeTarget(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	if _, has := state.ParentOf(target.PubID); !has {
		return command.Reject(command.Rejection{Code: rejectionCodeNoParent, Message: "entity has no parent"})
	}
	return command.Accept(command.NewEvent(cmd, EventTypeParentReleased, EntityType, target.PubID, nil, now().UTC()))
}

func decideAssignController(state State, cmd command.Command, now func() time.Time) command.Decision {
	target, rejection := activeTarget(state, cmd.EntityID)
	if rejection != nil {
		return command.Reject(*rejection)
	}
	var payload AssignControllerCommandPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	payload.PlayerID = strings.TrimSpace(payload.PlayerID)
	if payload.PlayerID == "" && !payload.Clear {
		return command.Reject(command.Rejection{Code: rejectionCodeControllerEmpty, Message: "player id is required unless clearing control"})
	}
	payloadJSON, _ := json.Marshal(ControllerAssignedPayload{PlayerID: payload.PlayerID})
	return command.Accept(command.NewEvent(cmd, EventTypeControllerAssigned, EntityType, target.PubID, payloadJSON, now().UTC()))
}

// activeTarget resolves the addressed entity and rejects commands that
// target unknown or retired entities.
func activeTarget(state State, pubID string) (Entity, *command.Rejection) {
	target, ok := state.Get(strings.TrimSpace(pubID))
	if !ok {
		return Entity{}, &command.Rejection{Code: rejectionCodeNotFound, Message: "entity not found"}
	}
	if target.Retired {
		return Entity{}, &command.Rejection{Code: rejectionCodeRetired, Message: "entity is retired"}
	}
	return target, nil
}
