package statemachine

import (
	"context"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
)

// Behavior is the per-state capability set consulted by the engine.
// One Behavior is bound to exactly one state id in a Registry.
//
// All hooks receive the engine's context value by pointer. Timeout must treat it as
// read-only: it is a query and may be called any number of times between events.
type Behavior[S comparable, C any, E any] interface {
	OnEnter(ctx context.Context, c *C) Response[S]
	OnEvent(ctx context.Context, event E, c *C) Response[S]
	OnExit(ctx context.Context, c *C)
	Timeout(ctx context.Context, c *C) optional.Value[time.Duration]
}

// BaseBehavior supplies the default for every hook: enter and event are Handled,
// exit does nothing and there is no timeout. Embed it and override what the state needs.
type BaseBehavior[S comparable, C any, E any] struct{}

func (BaseBehavior[S, C, E]) OnEnter(context.Context, *C) Response[S] {
	return Handled[S]()
}

func (BaseBehavior[S, C, E]) OnEvent(context.Context, E, *C) Response[S] {
	return Handled[S]()
}

func (BaseBehavior[S, C, E]) OnExit(context.Context, *C) {}

func (BaseBehavior[S, C, E]) Timeout(context.Context, *C) optional.Value[time.Duration] {
	return optional.None[time.Duration]()
}

// BehaviorFuncs adapts plain functions to a Behavior. Nil fields fall back to the
// BaseBehavior defaults.
type BehaviorFuncs[S comparable, C any, E any] struct {
	EnterFn   func(ctx context.Context, c *C) Response[S]
	EventFn   func(ctx context.Context, event E, c *C) Response[S]
	ExitFn    func(ctx context.Context, c *C)
	TimeoutFn func(ctx context.Context, c *C) optional.Value[time.Duration]
}

func (f BehaviorFuncs[S, C, E]) OnEnter(ctx context.Context, c *C) Response[S] {
	if f.EnterFn == nil {
		return Handled[S]()
	}

	return f.EnterFn(ctx, c)
}

func (f BehaviorFuncs[S, C, E]) OnEvent(ctx context.Context, event E, c *C) Response[S] {
	if f.EventFn == nil {
		return Handled[S]()
	}

	return f.EventFn(ctx, event, c)
}

func (f BehaviorFuncs[S, C, E]) OnExit(ctx context.Context, c *C) {
	if f.ExitFn != nil {
		f.ExitFn(ctx, c)
	}
}

func (f BehaviorFuncs[S, C, E]) Timeout(ctx context.Context, c *C) optional.Value[time.Duration] {
	if f.TimeoutFn == nil {
		return optional.None[time.Duration]()
	}

	return f.TimeoutFn(ctx, c)
}

// SuperstateFunc maps a state to its parent, or None for a root state.
// Following it from any registered state must reach None within Registry.Len() steps.
type SuperstateFunc[S comparable] func(state S) optional.Value[S]

// ParentTable turns a static child -> parent table into a SuperstateFunc.
// States absent from the table are roots.
func ParentTable[S comparable](parents map[S]S) SuperstateFunc[S] {
	table := make(map[S]S, len(parents))
	for child, parent := range parents {
		table[child] = parent
	}

	return func(state S) optional.Value[S] {
		parent, ok := table[state]

		return optional.FromLookup(parent, ok)
	}
}

// NoSuperstates is the SuperstateFunc of a flat machine.
func NoSuperstates[S comparable](S) optional.Value[S] {
	return optional.None[S]()
}
