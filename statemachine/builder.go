package statemachine

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-hfsm/errors"
)

// Builder provides a fluent API for constructing engines. Defects found while building
// are collected and reported together by Build.
type Builder[S comparable, C any, E any] struct {
	name       string
	initial    C
	states     map[S]Behavior[S, C, E]
	superstate SuperstateFunc[S]
	opts       []Option
	errs       errors.Collection
}

// NewBuilder creates a builder for a machine called name whose context starts as initial.
func NewBuilder[S comparable, C any, E any](name string, initial C) *Builder[S, C, E] {
	return &Builder[S, C, E]{
		name:    name,
		initial: initial,
		states:  make(map[S]Behavior[S, C, E]),
	}
}

// State registers behavior under id.
func (b *Builder[S, C, E]) State(id S, behavior Behavior[S, C, E]) *Builder[S, C, E] {
	if behavior == nil {
		b.errs.Add(WrapStateError(id, fmt.Errorf("%w: nil behavior", ErrInvalidConfig)))

		return b
	}

	if _, exists := b.states[id]; exists {
		b.errs.Add(WrapStateError(id, fmt.Errorf("%w: state registered twice", ErrInvalidConfig)))

		return b
	}

	b.states[id] = behavior

	return b
}

// States registers every entry of states.
func (b *Builder[S, C, E]) States(states map[S]Behavior[S, C, E]) *Builder[S, C, E] {
	for id, behavior := range states {
		b.State(id, behavior)
	}

	return b
}

// SuperstateFn sets the superstate relation.
func (b *Builder[S, C, E]) SuperstateFn(fn SuperstateFunc[S]) *Builder[S, C, E] {
	b.superstate = fn

	return b
}

// Superstates sets the superstate relation from a static child to parent table.
func (b *Builder[S, C, E]) Superstates(parents map[S]S) *Builder[S, C, E] {
	return b.SuperstateFn(ParentTable(parents))
}

// WithMaxChainDepth bounds enter-triggered redirects. Defaults to DefaultMaxChainDepth.
func (b *Builder[S, C, E]) WithMaxChainDepth(depth int) *Builder[S, C, E] {
	return b.WithOptions(WithMaxChainDepth(depth))
}

// WithLogger sets the hook logger; nil disables hook logging.
func (b *Builder[S, C, E]) WithLogger(l Logger) *Builder[S, C, E] {
	return b.WithOptions(WithLogger(l))
}

// WithTransitionLog enables the transition log.
func (b *Builder[S, C, E]) WithTransitionLog() *Builder[S, C, E] {
	return b.WithOptions(WithTransitionLog(true))
}

// WithEventTimeout applies a deadline to every ProcessEvent call.
func (b *Builder[S, C, E]) WithEventTimeout(d time.Duration) *Builder[S, C, E] {
	return b.WithOptions(WithEventTimeout(d))
}

// WithOptions appends engine options. Later options win.
func (b *Builder[S, C, E]) WithOptions(opts ...Option) *Builder[S, C, E] {
	b.opts = append(b.opts, opts...)

	return b
}

// WithConfig applies the engine settings of cfg. A non-empty cfg.Name replaces the
// builder's name. cfg.Hierarchy is descriptive only and is not applied.
func (b *Builder[S, C, E]) WithConfig(cfg *Config) *Builder[S, C, E] {
	if cfg == nil {
		return b
	}

	opts, err := cfg.Options()
	if err != nil {
		b.errs.Add(err)

		return b
	}

	if cfg.Name != "" {
		b.name = cfg.Name
	}

	return b.WithOptions(opts...)
}

// Build freezes the registry, validates the superstate relation and creates the engine.
// The engine still has to be initialized with Init.
func (b *Builder[S, C, E]) Build() (*Engine[S, C, E], error) {
	if len(b.states) == 0 {
		b.errs.Add(fmt.Errorf("%w: no states registered", ErrInvalidConfig))
	}

	if b.errs.HasError() {
		return nil, b.errs.GetError()
	}

	registry := NewRegistry(b.states, b.superstate)

	if err := registry.Validate(); err != nil {
		return nil, err
	}

	return NewEngine(b.name, registry, b.initial, b.opts...)
}
