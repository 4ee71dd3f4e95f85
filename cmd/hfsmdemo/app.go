package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/amp-labs/amp-hfsm/cli"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/amp-labs/amp-hfsm/statemachine/runner"
	"github.com/amp-labs/amp-hfsm/statemachine/validator"
	"github.com/amp-labs/amp-hfsm/statemachine/visualizer"
	"github.com/amp-labs/amp-hfsm/telemetry"
)

var (
	errUnknownMachine = errors.New("unknown machine")
	errUnknownDiagram = errors.New("unknown diagram format")
)

type options struct {
	machine  string
	config   string
	events   []string
	diagram  string
	fleet    int
	validate bool
	strict   bool
	quiet    bool
	idle     time.Duration
	linger   time.Duration
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var (
		opts   options
		events string
	)

	flags := flag.NewFlagSet("hfsmdemo", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.StringVar(&opts.machine, "machine", "device", "machine to run: device or menu")
	flags.StringVar(&opts.config, "config", "", "optional YAML engine config")
	flags.StringVar(&events, "events", "", "comma separated events to send instead of prompting")
	flags.StringVar(&opts.diagram, "diagram", "", "print a diagram when done: mermaid or plantuml")
	flags.IntVar(&opts.fleet, "fleet", 0, "broadcast the events to this many copies of the machine")
	flags.BoolVar(&opts.validate, "validate", false, "print the hierarchy validation report")
	flags.BoolVar(&opts.strict, "strict", false, "with -validate and -config, fail on warnings in the config file")
	flags.BoolVar(&opts.quiet, "quiet", false, "mute engine and driver logs")
	flags.DurationVar(&opts.idle, "idle", DeviceIdle, "how long the device may stay idle before it powers down")
	flags.DurationVar(&opts.linger, "linger", 0, "keep running this long after scripted events so timeouts can fire")

	if err := flags.Parse(args); err != nil {
		return options{}, err
	}

	if _, ok := machines[opts.machine]; !ok {
		return options{}, fmt.Errorf("%w: %q", errUnknownMachine, opts.machine)
	}

	if err := checkDiagram(opts.diagram); err != nil {
		return options{}, err
	}

	for event := range strings.SplitSeq(events, ",") {
		if event = strings.TrimSpace(event); event != "" {
			opts.events = append(opts.events, event)
		}
	}

	return opts, nil
}

func checkDiagram(format string) error {
	switch format {
	case "", "mermaid", "plantuml":
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownDiagram, format)
	}
}

type app struct {
	opts    options
	def     machineDef
	config  *statemachine.Config
	console *cli.Console
}

func newApp(opts options, console *cli.Console) (*app, error) {
	if opts.idle <= 0 {
		opts.idle = DeviceIdle
	}

	a := &app{opts: opts, def: machines[opts.machine], console: console}

	if opts.config != "" {
		config, err := statemachine.LoadConfig(opts.config)
		if err != nil {
			return nil, err
		}

		a.config = config
	}

	return a, nil
}

func (a *app) build(ctx context.Context) (*statemachine.Engine[string, Device, string], error) {
	builder := a.def.build(a.opts.idle).
		WithTransitionLog().
		WithLogger(statemachine.NewDefaultLogger(telemetry.Logger(ctx, "hfsmdemo")))

	if a.config != nil {
		builder = builder.WithConfig(a.config)
	}

	return builder.Build()
}

func (a *app) run(ctx context.Context) error {
	ctx = logger.WithMuted(ctx, a.opts.quiet)

	if a.opts.fleet > 0 {
		return a.runFleet(ctx)
	}

	engine, err := a.build(ctx)
	if err != nil {
		return err
	}

	if a.opts.validate {
		if err := a.validate(engine.Registry().Hierarchy()); err != nil {
			return err
		}
	}

	if err := engine.Init(ctx, a.def.initial); err != nil {
		return err
	}

	driver := runner.NewDriver(engine, EventTimeout,
		runner.WithErrorHandler(func(ctx context.Context, event string, err error) {
			logger.Get(ctx).Debug("event failed", "event", event, "error", err)
		}))

	done := make(chan error, 1)

	go func() { done <- driver.Run(ctx) }()

	if len(a.opts.events) > 0 {
		a.script(ctx, driver)
		a.linger(ctx)
	} else if err := a.interact(ctx, driver); err != nil {
		driver.Stop()
		<-done

		return err
	}

	driver.Stop()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := driver.Stats()
	a.console.Printf("%s (timeouts=%d)\n", a.status(ctx, driver.Engine()), stats.Timeouts)

	return a.printDiagram(visualizer.FromEngine(engine))
}

// validate prints the report for the built hierarchy and, given -config, for the file.
func (a *app) validate(hierarchy statemachine.Hierarchy[string]) error {
	a.console.Printf("%s\n", validator.Validate(hierarchy))

	if a.opts.config == "" {
		return nil
	}

	check := validator.ValidateFile
	if a.opts.strict {
		check = validator.ValidateFileStrict
	}

	result, err := check(a.opts.config)
	if err != nil {
		return err
	}

	a.console.Printf("%s: %s\n", a.opts.config, result)

	return result.Err()
}

// script sends the configured events through the driver, which re-arms state timeouts
// after each one.
func (a *app) script(ctx context.Context, driver *runner.Driver[string, Device, string]) {
	for _, event := range a.opts.events {
		if err := driver.Process(ctx, event); err != nil {
			a.console.Printf("%s: %v\n", event, err)

			continue
		}

		a.console.Printf("%s -> %s\n", event, driver.Engine().CurrentState())
	}
}

func (a *app) linger(ctx context.Context) {
	if a.opts.linger <= 0 {
		return
	}

	select {
	case <-time.After(a.opts.linger):
	case <-ctx.Done():
	}
}

func (a *app) interact(ctx context.Context, driver *runner.Driver[string, Device, string]) error {
	for ctx.Err() == nil {
		event, quit, err := a.console.SelectEvent(a.status(ctx, driver.Engine()), a.def.events)
		if err != nil {
			return err
		}

		if quit {
			break
		}

		if err := driver.Process(ctx, event); err != nil {
			a.console.Printf("%s: %v\n", event, err)
		}
	}

	if a.opts.diagram == "" {
		return a.askDiagram()
	}

	return nil
}

func (a *app) askDiagram() error {
	show, err := a.console.Confirm("Print a diagram")
	if err != nil || !show {
		return err
	}

	format, err := a.console.PromptString("Format (mermaid or plantuml)")
	if err != nil {
		return err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if err := checkDiagram(format); err != nil {
		a.console.Printf("%v\n", err)

		return nil
	}

	a.opts.diagram = format

	return nil
}

func (a *app) status(ctx context.Context, engine *runner.Serial[string, Device, string]) string {
	return cli.Status(engine.Name(), engine.Active(), engine.CurrentTimeout(ctx))
}

func (a *app) runFleet(ctx context.Context) error {
	pool := runner.NewPool[string, Device, string](runner.WithStopOnShutdown())
	defer pool.Stop()

	for range a.opts.fleet {
		engine, err := a.build(ctx)
		if err != nil {
			return err
		}

		pool.Add(engine)
	}

	if err := pool.InitAll(ctx, a.def.initial); err != nil {
		return err
	}

	for _, event := range a.opts.events {
		if err := pool.Broadcast(ctx, event); err != nil {
			a.console.Printf("%s: %v\n", event, err)
		}
	}

	counts := make(map[string]int)
	for _, state := range pool.States() {
		counts[state]++
	}

	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}

	slices.Sort(states)

	for _, state := range states {
		a.console.Printf("%s: %d\n", state, counts[state])
	}

	return nil
}

func (a *app) printDiagram(d visualizer.Diagram[string]) error {
	var (
		out string
		err error
	)

	switch a.opts.diagram {
	case "mermaid":
		out, err = visualizer.GenerateMermaid(d)
	case "plantuml":
		out, err = visualizer.GeneratePlantUML(d)
	default:
		return nil
	}

	if err != nil {
		return err
	}

	a.console.Printf("%s", out)

	return nil
}
