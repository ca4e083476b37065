// Package script loads table-scene scripts written in a small Lua DSL and
// replays them against the engine. Scripts build a Scene value describing a
// sequence of table moments; the runner turns each moment into commands.
package script

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const sceneTypeName = "scene"

// Scene is a scripted sequence of table moments.
type Scene struct {
	Name  string
	Steps []Step
}

// Step is one scripted moment. Args carry the DSL call's options verbatim.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadFile runs a Lua script and returns the Scene it produced. The script
// must return the Scene value built with Scene.new.
func LoadFile(path string) (*Scene, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerSceneType(state)
	registerSceneConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scene script must return Scene")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scene, ok := ud.(*Scene)
	if !ok || scene == nil {
		return nil, fmt.Errorf("scene script returned invalid Scene")
	}
	if strings.TrimSpace(scene.Name) == "" {
		scene.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scene, nil
}

func registerSceneType(state *lua.State) {
	lua.NewMetaTable(state, sceneTypeName)
	state.NewTable()
	lua.SetFunctions(state, sceneMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerSceneConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, sceneConstructor, 0)
	state.SetGlobal("Scene")
}

var sceneConstructor = []lua.RegistryFunction{
	{Name: "new", Function: sceneNew},
}

func sceneNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scene := &Scene{Name: name}
	state.PushUserData(scene)
	lua.SetMetaTableNamed(state, sceneTypeName)
	return 1
}

var sceneMethods = []lua.RegistryFunction{
	{Name: "create", Function: sceneCreate},
	{Name: "rename", Function: sceneRename},
	{Name: "character", Function: sceneCharacter},
	{Name: "item", Function: sceneItem},
	{Name: "location", Function: sceneLocation},
	{Name: "rename_entity", Function: sceneRenameEntity},
	{Name: "retire", Function: sceneRetire},
	{Name: "parent", Function: sceneParent},
	{Name: "release_parent", Function: sceneReleaseParent},
	{Name: "controller", Function: sceneController},
	{Name: "initiative", Function: sceneInitiative},
	{Name: "effect", Function: sceneEffect},
	{Name: "remove_effect", Function: sceneRemoveEffect},
	{Name: "request_input", Function: sceneRequestInput},
	{Name: "resolve_input", Function: sceneResolveInput},
	{Name: "cancel_input", Function: sceneCancelInput},
	{Name: "start_round", Function: sceneStartRound},
	{Name: "end_round", Function: sceneEndRound},
	{Name: "complete_turn", Function: sceneCompleteTurn},
	{Name: "skip_turn", Function: sceneSkipTurn},
	{Name: "hold_turn", Function: sceneHoldTurn},
	{Name: "resume_turn", Function: sceneResumeTurn},
	{Name: "advance_turn", Function: sceneAdvanceTurn},
	{Name: "undo", Function: sceneUndo},
	{Name: "redo", Function: sceneRedo},
}

func sceneCreate(state *lua.State) int {
	scene := checkScene(state)
	name := lua.CheckString(state, 2)
	appendStep(scene, "create", map[string]any{"name": name})
	return 0
}

func sceneRename(state *lua.State) int {
	scene := checkScene(state)
	name := lua.CheckString(state, 2)
	appendStep(scene, "rename", map[string]any{"name": name})
	return 0
}

func sceneCharacter(state *lua.State) int {
	return sceneEntity(state, "character")
}

func sceneItem(state *lua.State) int {
	return sceneEntity(state, "item")
}

func sceneLocation(state *lua.State) int {
	return sceneEntity(state, "location")
}

func sceneEntity(state *lua.State, kind string) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	opts := optionalTable(state, 3)
	data := map[string]any{"id": id, "kind": kind, "name": id}
	for key, value := range opts {
		data[key] = value
	}
	appendStep(scene, "entity", data)
	return 0
}

func sceneRenameEntity(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	name := lua.CheckString(state, 3)
	appendStep(scene, "rename_entity", map[string]any{"id": id, "name": name})
	return 0
}

func sceneRetire(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	appendStep(scene, "retire", map[string]any{"id": id})
	return 0
}

func sceneParent(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	parent := lua.CheckString(state, 3)
	appendStep(scene, "parent", map[string]any{"id": id, "parent": parent})
	return 0
}

func sceneReleaseParent(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	appendStep(scene, "release_parent", map[string]any{"id": id})
	return 0
}

func sceneController(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	player := lua.OptString(state, 3, "")
	appendStep(scene, "controller", map[string]any{"id": id, "player": player})
	return 0
}

func sceneInitiative(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckString(state, 2)
	value := lua.CheckNumber(state, 3)
	group := lua.OptString(state, 4, "")
	appendStep(scene, "initiative", map[string]any{
		"id": id, "value": normalizeNumber(value), "group": group,
	})
	return 0
}

func sceneEffect(state *lua.State) int {
	scene := checkScene(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scene, "effect", tableToMap(state, 2))
	return 0
}

func sceneRemoveEffect(state *lua.State) int {
	scene := checkScene(state)
	id := lua.CheckInteger(state, 2)
	appendStep(scene, "remove_effect", map[string]any{"effect_id": id})
	return 0
}

func sceneRequestInput(state *lua.State) int {
	scene := checkScene(state)
	prompt := lua.CheckString(state, 2)
	target := lua.OptString(state, 3, "")
	appendStep(scene, "request_input", map[string]any{"prompt": prompt, "target": target})
	return 0
}

func sceneResolveInput(state *lua.State) int {
	scene := checkScene(state)
	opts := optionalTable(state, 2)
	appendStep(scene, "resolve_input", opts)
	return 0
}

func sceneCancelInput(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "cancel_input", nil)
	return 0
}

func sceneStartRound(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "start_round", nil)
	return 0
}

func sceneEndRound(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "end_round", nil)
	return 0
}

func sceneCompleteTurn(state *lua.State) int {
	return sceneTurn(state, "complete_turn")
}

func sceneSkipTurn(state *lua.State) int {
	return sceneTurn(state, "skip_turn")
}

func sceneHoldTurn(state *lua.State) int {
	return sceneTurn(state, "hold_turn")
}

func sceneResumeTurn(state *lua.State) int {
	return sceneTurn(state, "resume_turn")
}

func sceneTurn(state *lua.State, kind string) int {
	scene := checkScene(state)
	id := lua.OptString(state, 2, "")
	appendStep(scene, kind, map[string]any{"id": id})
	return 0
}

func sceneAdvanceTurn(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "advance_turn", nil)
	return 0
}

func sceneUndo(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "undo", nil)
	return 0
}

func sceneRedo(state *lua.State) int {
	scene := checkScene(state)
	appendStep(scene, "redo", nil)
	return 0
}

func checkScene(state *lua.State) *Scene {
	ud := lua.CheckUserData(state, 1, sceneTypeName)
	if scene, ok := ud.(*Scene); ok && scene != nil {
		return scene
	}
	lua.ArgumentError(state, 1, "scene expected")
	return nil
}

func appendStep(scene *Scene, kind string, data map[string]any) {
	if scene == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scene.Steps = append(scene.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
