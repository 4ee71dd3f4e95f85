// Package statemachine implements a hierarchical finite-state-machine engine.
//
// States are identified by any comparable type and each one is bound to a Behavior.
// Events are resolved against the active state; a Super response delegates resolution to
// the superstate, a Transition response exits the active state and enters the target, and
// enter hooks may redirect again (transition chaining) up to a configured depth.
//
// An Engine is not safe for concurrent use. Every call, including all hooks it runs,
// must complete before the next call on the same engine begins; runner.Serial provides
// that for callers that need it.
package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/google/uuid"
)

// DefaultMaxChainDepth bounds the number of enter-triggered redirects per transition.
const DefaultMaxChainDepth = 16

// Engine ties the registry, the context cell and the active state together.
type Engine[S comparable, C any, E any] struct {
	id       string
	name     string
	registry *Registry[S, C, E]
	cell     *Cell[C]
	active   optional.Value[S]
	opts     engineOptions
	history  *transitionLog[S]
}

type engineOptions struct {
	maxChainDepth int
	eventTimeout  time.Duration
	logger        Logger
	loggerSet     bool
	transitionLog bool
	metrics       bool
	tracing       bool
}

func defaultOptions() engineOptions {
	return engineOptions{
		maxChainDepth: DefaultMaxChainDepth,
		metrics:       true,
		tracing:       true,
	}
}

func (o engineOptions) validate() error {
	if o.maxChainDepth < 1 {
		return fmt.Errorf("%w: max chain depth must be at least 1, got %d", ErrInvalidConfig, o.maxChainDepth)
	}

	if o.eventTimeout < 0 {
		return fmt.Errorf("%w: event timeout must not be negative, got %s", ErrInvalidConfig, o.eventTimeout)
	}

	return nil
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithMaxChainDepth sets how many times enter hooks may redirect within one transition.
func WithMaxChainDepth(depth int) Option {
	return func(o *engineOptions) {
		o.maxChainDepth = depth
	}
}

// WithEventTimeout makes ProcessEvent behave like ProcessEventWithTimeout with d.
// Zero disables the deadline.
func WithEventTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.eventTimeout = d
	}
}

// WithLogger sets the hook logger. A nil logger disables hook logging.
func WithLogger(l Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
		o.loggerSet = true
	}
}

// WithTransitionLog enables recording of observed transitions and delegations.
func WithTransitionLog(enabled bool) Option {
	return func(o *engineOptions) {
		o.transitionLog = enabled
	}
}

// WithMetrics enables or disables prometheus metrics. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(o *engineOptions) {
		o.metrics = enabled
	}
}

// WithTracing enables or disables OpenTelemetry spans. Enabled by default.
func WithTracing(enabled bool) Option {
	return func(o *engineOptions) {
		o.tracing = enabled
	}
}

// NewEngine creates an uninitialized engine over a frozen registry. Unlike Builder.Build
// it does not validate the superstate relation; defects surface at dispatch time.
func NewEngine[S comparable, C any, E any](
	name string,
	registry *Registry[S, C, E],
	initial C,
	opts ...Option,
) (*Engine[S, C, E], error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	engine := &Engine[S, C, E]{
		id:       uuid.New().String(),
		name:     name,
		registry: registry,
		cell:     NewCell(initial),
		active:   optional.None[S](),
		opts:     options,
	}

	if !options.loggerSet {
		engine.opts.logger = NewDefaultLogger(logger.Get().With("machine_id", engine.id))
	}

	if options.transitionLog {
		engine.history = newTransitionLog[S]()
	}

	return engine, nil
}

// ID is a unique identifier of this engine instance.
func (e *Engine[S, C, E]) ID() string {
	return e.id
}

// Name is the machine name given at construction.
func (e *Engine[S, C, E]) Name() string {
	return e.name
}

// Registry returns the frozen registry, e.g. to enumerate states for diagram export.
func (e *Engine[S, C, E]) Registry() *Registry[S, C, E] {
	return e.registry
}

// Initialized reports whether Init has completed successfully.
func (e *Engine[S, C, E]) Initialized() bool {
	return e.active.NonEmpty()
}

// Active returns the active state, or None before Init.
func (e *Engine[S, C, E]) Active() optional.Value[S] {
	return e.active
}

// CurrentState returns the active state, or the zero value of S before Init.
func (e *Engine[S, C, E]) CurrentState() S {
	state, _ := e.active.Get()

	return state
}

// Context returns a copy of the context value.
func (e *Engine[S, C, E]) Context() C {
	return e.cell.Get()
}

// MutableContext returns the context value for mutation between events. The pointer
// must not be used while a call on this engine is in flight.
func (e *Engine[S, C, E]) MutableContext() *C {
	return e.cell.Ptr()
}

// TransitionLog returns the recorded transitions in first-seen order, or nil when the
// log is disabled.
func (e *Engine[S, C, E]) TransitionLog() []TransitionRecord[S] {
	if e.history == nil {
		return nil
	}

	return e.history.snapshot()
}

// Init enters the initial state, following enter-triggered redirects. On failure the
// engine stays uninitialized, although hooks that already ran keep their effects.
func (e *Engine[S, C, E]) Init(ctx context.Context, initial S) (err error) {
	if current, ok := e.active.Get(); ok {
		return e.annotate(WrapStateError(current, ErrAlreadyInitialized))
	}

	ctx, span := e.startSpan(ctx, spanInit, initial)
	defer func() {
		endSpan(span, "", err)
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.annotate(WrapStateError(initial, ctxErr))
	}

	final, err := e.enterChain(ctx, initial, false)
	if err != nil {
		e.logFailure(ctx, initial, err)

		return e.annotate(err)
	}

	e.active = optional.Some(final)

	return nil
}

// ProcessEvent resolves one event against the active state. See the package
// documentation for the dispatch rules.
func (e *Engine[S, C, E]) ProcessEvent(ctx context.Context, event E) error {
	if e.opts.eventTimeout > 0 {
		return e.ProcessEventWithTimeout(ctx, event, e.opts.eventTimeout)
	}

	return e.processEvent(ctx, event)
}

func (e *Engine[S, C, E]) processEvent(ctx context.Context, event E) (err error) {
	active, ok := e.active.Get()
	if !ok {
		return e.annotate(ErrNotInitialized)
	}

	ctx, span := e.startSpan(ctx, spanProcessEvent, active)
	start := time.Now()

	outcome, err := e.dispatch(ctx, active, event)
	if err != nil && outcome != outcomeRejected && outcome != outcomeUnhandled {
		outcome = outcomeError
	}

	endSpan(span, outcome, err)

	if e.opts.metrics {
		machine := sanitizeMachine(e.name)
		eventsTotal.WithLabelValues(machine, stateLabel(active), outcome).Inc()
		dispatchDuration.WithLabelValues(machine, outcome).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		e.logFailure(ctx, active, err)

		return e.annotate(err)
	}

	return nil
}

func (e *Engine[S, C, E]) annotate(err error) error {
	return logger.AnnotateError(err, "machine", e.name, "machine_id", e.id)
}

func (e *Engine[S, C, E]) logFailure(ctx context.Context, state S, err error) {
	if e.opts.logger != nil {
		e.opts.logger.EventFailed(ctx, e.name, state, err)
	}
}
