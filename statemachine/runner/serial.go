// Package runner hosts engines for concurrent callers. The engine itself has no lock and
// expects one caller at a time; Serial adds that lock, Driver owns an engine and feeds it
// from a channel plus its own timeout timer, and Pool fans events out to many engines.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Serial serializes every call on an engine. It is safe for concurrent use.
type Serial[S comparable, C any, E any] struct {
	mu     sync.Mutex
	engine *statemachine.Engine[S, C, E]
}

// NewSerial wraps engine. The engine must not be used directly afterwards.
func NewSerial[S comparable, C any, E any](engine *statemachine.Engine[S, C, E]) *Serial[S, C, E] {
	return &Serial[S, C, E]{engine: engine}
}

// ID returns the wrapped engine's ID.
func (s *Serial[S, C, E]) ID() string {
	return s.engine.ID()
}

// Name returns the wrapped engine's name.
func (s *Serial[S, C, E]) Name() string {
	return s.engine.Name()
}

func (s *Serial[S, C, E]) Init(ctx context.Context, initial S) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Init(ctx, initial)
}

func (s *Serial[S, C, E]) ProcessEvent(ctx context.Context, event E) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.ProcessEvent(ctx, event)
}

func (s *Serial[S, C, E]) ProcessEventWithTimeout(ctx context.Context, event E, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.ProcessEventWithTimeout(ctx, event, d)
}

func (s *Serial[S, C, E]) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Initialized()
}

func (s *Serial[S, C, E]) Active() optional.Value[S] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Active()
}

func (s *Serial[S, C, E]) CurrentState() S {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.CurrentState()
}

func (s *Serial[S, C, E]) CurrentTimeout(ctx context.Context) optional.Value[time.Duration] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.CurrentTimeout(ctx)
}

// Context returns a copy of the engine's context.
func (s *Serial[S, C, E]) Context() C {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.engine.Context()
}

// Do runs fn with exclusive access to the engine. fn must not retain the engine.
func (s *Serial[S, C, E]) Do(fn func(engine *statemachine.Engine[S, C, E]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.engine)
}
