package script

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/yourupnext/internal/engine"
	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/effect"
	"github.com/louisbranch/yourupnext/internal/engine/entity"
	"github.com/louisbranch/yourupnext/internal/engine/input"
	"github.com/louisbranch/yourupnext/internal/engine/scenario"
	"github.com/louisbranch/yourupnext/internal/engine/scheduler"
)

// Runner replays a Scene against an engine. Scripted commands are issued
// as the GM actor.
type Runner struct {
	Engine *engine.Engine
	// GM is the actor id for scripted commands. Defaults to "gm".
	GM string
}

// Run executes every step of a scene in order. The first rejected command
// or failed step aborts the run.
func (r *Runner) Run(ctx context.Context, scenarioID string, scene *Scene) error {
	if r.Engine == nil {
		return fmt.Errorf("runner engine is not configured")
	}
	if scene == nil {
		return fmt.Errorf("scene is required")
	}
	for index, step := range scene.Steps {
		if err := r.runStep(ctx, scenarioID, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", index+1, step.Kind, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, scenarioID string, step Step) error {
	switch step.Kind {
	case "undo":
		_, err := r.Engine.Undo(ctx, scenarioID)
		return err
	case "redo":
		_, err := r.Engine.Redo(ctx, scenarioID)
		return err
	}

	cmd, err := r.stepCommand(scenarioID, step)
	if err != nil {
		return err
	}
	result, err := r.Engine.Submit(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Accepted() {
		rejection := result.Rejections[0]
		return fmt.Errorf("command %s rejected: %s: %s", cmd.Type, rejection.Code, rejection.Message)
	}
	return nil
}

func (r *Runner) stepCommand(scenarioID string, step Step) (command.Command, error) {
	gm := r.GM
	if gm == "" {
		gm = "gm"
	}
	cmd := command.Command{
		ScenarioID: scenarioID,
		ActorType:  command.ActorTypeGM,
		ActorID:    gm,
	}

	switch step.Kind {
	case "create":
		cmd.Type = scenario.CommandTypeCreate
		return withPayload(cmd, scenario.CreatedPayload{Name: argString(step.Args, "name")})
	case "rename":
		cmd.Type = scenario.CommandTypeRename
		return withPayload(cmd, scenario.RenamedPayload{Name: argString(step.Args, "name")})
	case "entity":
		cmd.Type = entity.CommandTypeCreate
		return withPayload(cmd, entity.CreateCommandPayload{
			PubID: argString(step.Args, "id"),
			Kind:  entity.Kind(argString(step.Args, "kind")),
			Name:  argString(step.Args, "name"),
		})
	case "rename_entity":
		cmd.Type = entity.CommandTypeRename
		cmd.EntityID = argString(step.Args, "id")
		return withPayload(cmd, entity.RenamedPayload{Name: argString(step.Args, "name")})
	case "retire":
		cmd.Type = entity.CommandTypeRetire
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "parent":
		cmd.Type = entity.CommandTypeAssignParent
		cmd.EntityID = argString(step.Args, "id")
		return withPayload(cmd, entity.AssignParentCommandPayload{
			ParentPubID: argString(step.Args, "parent"),
		})
	case "release_parent":
		cmd.Type = entity.CommandTypeReleaseParent
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "controller":
		cmd.Type = entity.CommandTypeAssignController
		cmd.EntityID = argString(step.Args, "id")
		player := argString(step.Args, "player")
		return withPayload(cmd, entity.AssignControllerCommandPayload{
			PlayerID: player,
			Clear:    player == "",
		})
	case "initiative":
		cmd.Type = effect.CommandTypeApply
		data := map[string]any{effect.DataKeyInitiative: step.Args["value"]}
		if group := argString(step.Args, "group"); group != "" {
			data[effect.DataKeyInitiativeGroup] = group
		}
		return withPayload(cmd, effect.ApplyCommandPayload{
			Name:        "initiative",
			TargetPubID: argString(step.Args, "id"),
			Data:        data,
			Duration:    effect.Duration{Kind: effect.DurationPermanent},
		})
	case "effect":
		cmd.Type = effect.CommandTypeApply
		return withPayload(cmd, effectPayload(step.Args))
	case "remove_effect":
		cmd.Type = effect.CommandTypeRemove
		return withPayload(cmd, effect.RemoveCommandPayload{
			EffectID: uint64(argInt(step.Args, "effect_id")),
		})
	case "request_input":
		cmd.Type = input.CommandTypeRequest
		return withPayload(cmd, input.RequestedPayload{
			Prompt:      argString(step.Args, "prompt"),
			TargetPubID: argString(step.Args, "target"),
		})
	case "resolve_input":
		cmd.Type = input.CommandTypeResolve
		payload := input.ResolveCommandPayload{InputID: argString(step.Args, "id")}
		if value, ok := step.Args["value"]; ok {
			raw, err := json.Marshal(value)
			if err != nil {
				return command.Command{}, fmt.Errorf("marshal input value: %w", err)
			}
			payload.Value = raw
		}
		return withPayload(cmd, payload)
	case "cancel_input":
		cmd.Type = input.CommandTypeCancel
		return cmd, nil
	case "start_round":
		cmd.Type = scheduler.CommandTypeStartRound
		return cmd, nil
	case "end_round":
		cmd.Type = scheduler.CommandTypeEndRound
		return cmd, nil
	case "complete_turn":
		cmd.Type = scheduler.CommandTypeCompleteTurn
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "skip_turn":
		cmd.Type = scheduler.CommandTypeSkipTurn
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "hold_turn":
		cmd.Type = scheduler.CommandTypeHoldTurn
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "resume_turn":
		cmd.Type = scheduler.CommandTypeResumeTurn
		cmd.EntityID = argString(step.Args, "id")
		return cmd, nil
	case "advance_turn":
		cmd.Type = scheduler.CommandTypeAdvanceTurn
		return cmd, nil
	default:
		return command.Command{}, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func effectPayload(args map[string]any) effect.ApplyCommandPayload {
	payload := effect.ApplyCommandPayload{
		Name:        argString(args, "name"),
		TargetPubID: argString(args, "target"),
		SourcePubID: argString(args, "source"),
		Duration:    effect.Duration{Kind: effect.DurationKind(argString(args, "duration"))},
	}
	if payload.Duration.Kind == "" {
		payload.Duration.Kind = effect.DurationPermanent
	}
	if turns := argInt(args, "turns"); turns > 0 {
		payload.Duration.Turns = uint64(turns)
	}
	if data, ok := args["data"].(map[string]any); ok {
		payload.Data = data
	}
	return payload
}

func withPayload(cmd command.Command, payload any) (command.Command, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return command.Command{}, fmt.Errorf("marshal %s payload: %w", cmd.Type, err)
	}
	cmd.PayloadJSON = raw
	return cmd, nil
}

func argString(args map[string]any, key string) string {
	if value, ok := args[key].(string); ok {
		return value
	}
	return ""
}

func argInt(args map[string]any, key string) int {
	switch value := args[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	default:
		return 0
	}
}
