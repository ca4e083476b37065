package script

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/yourupnext/internal/engine"
	"github.com/louisbranch/yourupnext/internal/engine/pipeline"
	"github.com/louisbranch/yourupnext/internal/storage/memory"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	_, events, err := pipeline.CoreRegistries()
	if err != nil {
		t.Fatalf("core registries: %v", err)
	}
	eng, err := engine.New(memory.NewStore(events))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestLoadFileBuildsScene(t *testing.T) {
	scene, err := LoadFile(filepath.Join("testdata", "ambush.lua"))
	if err != nil {
		t.Fatalf("load scene: %v", err)
	}
	if scene.Name != "ambush" {
		t.Fatalf("scene name = %q, want ambush", scene.Name)
	}
	if len(scene.Steps) != 12 {
		t.Fatalf("expected 12 steps, got %d", len(scene.Steps))
	}
	if scene.Steps[0].Kind != "create" || scene.Steps[0].Args["name"] != "Roadside Ambush" {
		t.Fatalf("unexpected first step: %+v", scene.Steps[0])
	}
	effect := scene.Steps[9]
	if effect.Kind != "effect" || effect.Args["turns"] != 2 {
		t.Fatalf("unexpected effect step: %+v", effect)
	}
	data, ok := effect.Args["data"].(map[string]any)
	if !ok || data["bonus"] != 1 {
		t.Fatalf("effect data not decoded: %+v", effect.Args["data"])
	}
	if scene.Steps[11].Kind != "undo" {
		t.Fatalf("expected trailing undo, got %q", scene.Steps[11].Kind)
	}
}

func TestRunnerReplaysScene(t *testing.T) {
	scene, err := LoadFile(filepath.Join("testdata", "ambush.lua"))
	if err != nil {
		t.Fatalf("load scene: %v", err)
	}
	eng := newTestEngine(t)
	runner := &Runner{Engine: eng}
	ctx := context.Background()

	if err := runner.Run(ctx, "scn1", scene); err != nil {
		t.Fatalf("run scene: %v", err)
	}

	state, err := eng.State(ctx, "scn1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.Scenario.Created || state.Scenario.Name != "Roadside Ambush" {
		t.Fatalf("unexpected scenario: %+v", state.Scenario)
	}
	if len(state.Entities.Active()) != 3 {
		t.Fatalf("expected three entities, got %d", len(state.Entities.Active()))
	}
	if parent, ok := state.Entities.ParentOf("torch"); !ok || parent != "ava" {
		t.Fatalf("torch parent = %q, %v", parent, ok)
	}
	if controller, ok := state.Entities.ControllerOf("ava"); !ok || controller != "player-1" {
		t.Fatalf("ava controller = %q, %v", controller, ok)
	}

	// The script completes ava's turn and then undoes that step.
	if !state.Scheduler.RoundActive || state.Scheduler.ActivePubID != "ava" {
		t.Fatalf("unexpected scheduler state: %+v", state.Scheduler)
	}
	if state.Scheduler.TurnCounter != 0 {
		t.Fatalf("turn counter = %d, want 0 after undo", state.Scheduler.TurnCounter)
	}
	if len(state.Scheduler.Order) != 2 || state.Scheduler.Order[0] != "ava" {
		t.Fatalf("unexpected order: %v", state.Scheduler.Order)
	}
}

func TestRunnerStopsOnRejection(t *testing.T) {
	eng := newTestEngine(t)
	runner := &Runner{Engine: eng}

	scene := &Scene{Steps: []Step{
		{Kind: "create", Args: map[string]any{"name": "Keep"}},
		{Kind: "start_round", Args: map[string]any{}},
	}}
	err := runner.Run(context.Background(), "scn1", scene)
	if err == nil {
		t.Fatal("expected rejection for round without participants")
	}
	if !strings.Contains(err.Error(), "step 2") {
		t.Fatalf("error must name the failing step: %v", err)
	}
}

func TestRunnerRejectsUnknownStep(t *testing.T) {
	eng := newTestEngine(t)
	runner := &Runner{Engine: eng}

	scene := &Scene{Steps: []Step{{Kind: "teleport", Args: map[string]any{}}}}
	err := runner.Run(context.Background(), "scn1", scene)
	if err == nil || !strings.Contains(err.Error(), "unknown step kind") {
		t.Fatalf("expected unknown step error, got %v", err)
	}
}
