// Package run implements the yourupnext CLI: submitting commands, reading
// current or historical state, and moving the undo cursor over a scenario
// journal stored in SQLite.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/louisbranch/yourupnext/internal/engine"
	"github.com/louisbranch/yourupnext/internal/engine/command"
	"github.com/louisbranch/yourupnext/internal/engine/pipeline"
	"github.com/louisbranch/yourupnext/internal/engine/scheduler"
	"github.com/louisbranch/yourupnext/internal/platform/config"
	"github.com/louisbranch/yourupnext/internal/script"
	"github.com/louisbranch/yourupnext/internal/storage/sqlite"
)

// Config holds CLI configuration. Flags override environment values.
type Config struct {
	DBPath    string `env:"YOURUPNEXT_DB"         envDefault:"yourupnext.db"`
	Scenario  string `env:"YOURUPNEXT_SCENARIO"   envDefault:"table"`
	Actor     string `env:"YOURUPNEXT_ACTOR"      envDefault:"gm"`
	ActorType string `env:"YOURUPNEXT_ACTOR_TYPE" envDefault:"gm"`
	Verbose   bool   `env:"YOURUPNEXT_VERBOSE"`

	// Subcommand and its arguments, filled by ParseConfig.
	Subcommand string
	Args       []string
}

// Usage describes the CLI surface.
const Usage = `usage: yourupnext [flags] <subcommand>

subcommands:
  state                     print the projection at the undo cursor
  state-at -seq N           print the projection at a journal offset
  submit -type T [...]      submit a command
  undo                      move the cursor back one step
  redo                      reapply the next undone step
  advance                   start the next turn or end the round
  steps                     list the scenario's timeline steps
  scenarios                 list scenarios in the journal
  script <file.lua>         run a scene script
`

// ParseConfig parses environment variables and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the journal database")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "scenario id")
	fs.StringVar(&cfg.Actor, "actor", cfg.Actor, "actor id for submitted commands")
	fs.StringVar(&cfg.ActorType, "actor-type", cfg.ActorType, "actor type: gm or player")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Subcommand = fs.Arg(0)
	if fs.NArg() > 1 {
		cfg.Args = fs.Args()[1:]
	}
	return cfg, nil
}

// Run executes the selected subcommand.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Subcommand == "" {
		fmt.Fprint(errOut, Usage)
		return errors.New("subcommand is required")
	}

	logger := log.New(errOut, "", 0)

	_, events, err := pipeline.CoreRegistries()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(cfg.DBPath, events)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	eng, err := engine.New(store)
	if err != nil {
		store.Close()
		return err
	}
	defer eng.Close()

	switch cfg.Subcommand {
	case "state":
		return runState(ctx, cfg, eng, out)
	case "state-at":
		return runStateAt(ctx, cfg, eng, out)
	case "submit":
		return runSubmit(ctx, cfg, eng, out, logger)
	case "undo":
		return runUndo(ctx, cfg, eng, out)
	case "redo":
		return runRedo(ctx, cfg, eng, out)
	case "advance":
		return runAdvance(ctx, cfg, eng, out)
	case "steps":
		return runSteps(ctx, cfg, eng, out)
	case "scenarios":
		return runScenarios(ctx, eng, out)
	case "script":
		return runScript(ctx, cfg, eng, out, logger)
	default:
		fmt.Fprint(errOut, Usage)
		return fmt.Errorf("unknown subcommand %q", cfg.Subcommand)
	}
}

func runState(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	state, err := eng.State(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	return printJSON(out, state)
}

func runStateAt(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	fs := flag.NewFlagSet("state-at", flag.ContinueOnError)
	seq := fs.Uint64("seq", 0, "journal sequence to replay up to")
	if err := fs.Parse(cfg.Args); err != nil {
		return err
	}
	state, err := eng.StateAt(ctx, cfg.Scenario, *seq)
	if err != nil {
		return err
	}
	return printJSON(out, state)
}

func runSubmit(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer, logger *log.Logger) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	cmdType := fs.String("type", "", "command type, e.g. entity.create")
	entityID := fs.String("entity", "", "target entity public id")
	payload := fs.String("payload", "", "command payload as JSON")
	if err := fs.Parse(cfg.Args); err != nil {
		return err
	}
	if strings.TrimSpace(*cmdType) == "" {
		return errors.New("-type is required")
	}

	cmd := command.Command{
		ScenarioID: cfg.Scenario,
		Type:       command.Type(*cmdType),
		ActorType:  command.ActorType(cfg.ActorType),
		ActorID:    cfg.Actor,
		EntityID:   *entityID,
	}
	if *payload != "" {
		cmd.PayloadJSON = []byte(*payload)
	}

	result, err := eng.Submit(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Accepted() {
		for _, rejection := range result.Rejections {
			logger.Printf("rejected: %s: %s", rejection.Code, rejection.Message)
		}
		return fmt.Errorf("command %s was rejected", cmd.Type)
	}
	if cfg.Verbose {
		for _, evt := range result.Events {
			logger.Printf("appended seq=%d type=%s", evt.Seq, evt.Type)
		}
	}
	return printJSON(out, result.Events)
}

func runUndo(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	state, err := eng.Undo(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	return printJSON(out, state)
}

func runRedo(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	state, err := eng.Redo(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	return printJSON(out, state)
}

func runAdvance(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	result, err := eng.Submit(ctx, command.Command{
		ScenarioID: cfg.Scenario,
		Type:       scheduler.CommandTypeAdvanceTurn,
		ActorType:  command.ActorType(cfg.ActorType),
		ActorID:    cfg.Actor,
	})
	if err != nil {
		return err
	}
	if !result.Accepted() {
		rejection := result.Rejections[0]
		return fmt.Errorf("advance rejected: %s: %s", rejection.Code, rejection.Message)
	}
	return printJSON(out, result.Events)
}

func runSteps(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer) error {
	steps, err := eng.Steps(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	cursor, head, err := eng.Position(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "cursor at seq %d of %d\n", cursor, head)
	for i, step := range steps {
		marker := " "
		if step.LastSeq <= cursor {
			marker = "*"
		}
		types := make([]string, 0, len(step.Types))
		for _, t := range step.Types {
			types = append(types, string(t))
		}
		fmt.Fprintf(out, "%s %3d  seq %d-%d  %s\n", marker, i+1, step.FirstSeq, step.LastSeq, strings.Join(types, ", "))
	}
	return nil
}

func runScenarios(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	scenarios, err := eng.Scenarios(ctx)
	if err != nil {
		return err
	}
	for _, id := range scenarios {
		fmt.Fprintln(out, id)
	}
	return nil
}

func runScript(ctx context.Context, cfg Config, eng *engine.Engine, out io.Writer, logger *log.Logger) error {
	if len(cfg.Args) == 0 {
		return errors.New("script path is required")
	}
	scene, err := script.LoadFile(cfg.Args[0])
	if err != nil {
		return err
	}
	runner := &script.Runner{Engine: eng, GM: cfg.Actor}
	if err := runner.Run(ctx, cfg.Scenario, scene); err != nil {
		return err
	}
	if cfg.Verbose {
		logger.Printf("scene %s: %d steps applied", scene.Name, len(scene.Steps))
	}
	state, err := eng.State(ctx, cfg.Scenario)
	if err != nil {
		return err
	}
	return printJSON(out, state)
}

func printJSON(out io.Writer, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
