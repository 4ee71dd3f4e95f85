package testing

import (
	"context"
	"path/filepath"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"go.uber.org/atomic"
)

// Recorder wraps a Behavior and counts how often each hook ran. Counters are safe to
// read from other goroutines, e.g. while a runner.Driver owns the engine.
type Recorder[S comparable, C any, E any] struct {
	statemachine.Behavior[S, C, E]

	enters   atomic.Int64
	exits    atomic.Int64
	events   atomic.Int64
	timeouts atomic.Int64
}

// Record wraps behavior in a Recorder.
func Record[S comparable, C any, E any](behavior statemachine.Behavior[S, C, E]) *Recorder[S, C, E] {
	return &Recorder[S, C, E]{Behavior: behavior}
}

func (r *Recorder[S, C, E]) OnEnter(ctx context.Context, c *C) statemachine.Response[S] {
	r.enters.Inc()

	return r.Behavior.OnEnter(ctx, c)
}

func (r *Recorder[S, C, E]) OnEvent(ctx context.Context, event E, c *C) statemachine.Response[S] {
	r.events.Inc()

	return r.Behavior.OnEvent(ctx, event, c)
}

func (r *Recorder[S, C, E]) OnExit(ctx context.Context, c *C) {
	r.exits.Inc()
	r.Behavior.OnExit(ctx, c)
}

func (r *Recorder[S, C, E]) Timeout(ctx context.Context, c *C) optional.Value[time.Duration] {
	r.timeouts.Inc()

	return r.Behavior.Timeout(ctx, c)
}

func (r *Recorder[S, C, E]) Enters() int64         { return r.enters.Load() }
func (r *Recorder[S, C, E]) Exits() int64          { return r.exits.Load() }
func (r *Recorder[S, C, E]) Events() int64         { return r.events.Load() }
func (r *Recorder[S, C, E]) TimeoutQueries() int64 { return r.timeouts.Load() }

// Reset zeroes all counters.
func (r *Recorder[S, C, E]) Reset() {
	r.enters.Store(0)
	r.exits.Store(0)
	r.events.Store(0)
	r.timeouts.Store(0)
}

// Script is a table-driven Behavior. Enter is returned from OnEnter (zero value is
// Handled), events found in Events get their response and all others are delegated to
// the superstate. Idle is the reported timeout.
type Script[S comparable, C any, E comparable] struct {
	Enter  statemachine.Response[S]
	Events map[E]statemachine.Response[S]
	Idle   optional.Value[time.Duration]
}

func (s Script[S, C, E]) OnEnter(context.Context, *C) statemachine.Response[S] {
	return s.Enter
}

func (s Script[S, C, E]) OnEvent(_ context.Context, event E, _ *C) statemachine.Response[S] {
	if resp, ok := s.Events[event]; ok {
		return resp
	}

	return statemachine.Super[S]()
}

func (s Script[S, C, E]) OnExit(context.Context, *C) {}

func (s Script[S, C, E]) Timeout(context.Context, *C) optional.Value[time.Duration] {
	return s.Idle
}

// Blank is the context of the fixture machines.
type Blank struct{}

type fixture = statemachine.Builder[string, Blank, string]

type script = Script[string, Blank, string]

type replies = map[string]statemachine.Response[string]

// ToggleIdle is the timeout the Toggle fixture reports while On.
const ToggleIdle = 30 * time.Second

// CommonTestMachines provides frequently used machines with string states and events.
var CommonTestMachines = struct {
	// Toggle: Off <-> On on PowerOn/PowerOff.
	Toggle func() *fixture
	// MenuTree: Root > Menu > Settings with Home handled at Root.
	MenuTree func() *fixture
	// Redirect: Start jumps to Hop, whose enter hook redirects to Landing.
	Redirect func() *fixture
}{
	Toggle: func() *fixture {
		return statemachine.NewBuilder[string, Blank, string]("toggle", Blank{}).
			State("Off", script{Events: replies{"PowerOn": statemachine.TransitionTo("On")}}).
			State("On", script{
				Events: replies{"PowerOff": statemachine.TransitionTo("Off")},
				Idle:   optional.Some(ToggleIdle),
			})
	},
	MenuTree: func() *fixture {
		return statemachine.NewBuilder[string, Blank, string]("menu", Blank{}).
			State("Root", script{Events: replies{"Home": statemachine.TransitionTo("Root")}}).
			State("Menu", script{Events: replies{"Open": statemachine.TransitionTo("Settings")}}).
			State("Settings", script{Events: replies{
				"Back": statemachine.TransitionTo("Menu"),
				"Save": statemachine.Reject[string]("read-only"),
			}}).
			Superstates(map[string]string{"Menu": "Root", "Settings": "Menu"})
	},
	Redirect: func() *fixture {
		return statemachine.NewBuilder[string, Blank, string]("redirect", Blank{}).
			State("Start", script{Events: replies{"Go": statemachine.TransitionTo("Hop")}}).
			State("Hop", script{Enter: statemachine.TransitionTo("Landing")}).
			State("Landing", script{})
	},
}

// LoadTestConfig loads a config from the testdata directory.
func LoadTestConfig(name string) (*statemachine.Config, error) {
	return statemachine.LoadConfig(filepath.Join("testdata", name))
}
