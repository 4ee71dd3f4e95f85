// Package testing provides testing utilities for state machines: a tracing test engine,
// counting and scripted behaviors, matchers and scenario runners.
//
//nolint:varnamelen // Short names idiomatic
package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

// TraceKind identifies the engine hook a TraceEntry was recorded from.
type TraceKind string

const (
	TraceEntered    TraceKind = "entered"
	TraceExited     TraceKind = "exited"
	TraceTransition TraceKind = "transition"
	TraceDelegated  TraceKind = "delegated"
	TraceFailed     TraceKind = "failed"
)

// TraceEntry records a single step in execution. State is set for entered, exited and
// failed entries; From and To for transitions and delegations.
type TraceEntry struct {
	Timestamp time.Time
	Kind      TraceKind
	State     any
	From      any
	To        any
	Error     error
}

// TraceLogger is a statemachine.Logger that records every call and forwards it to next.
type TraceLogger struct {
	mu      sync.Mutex
	entries []TraceEntry
	next    statemachine.Logger
}

var _ statemachine.Logger = (*TraceLogger)(nil)

// NewTraceLogger creates a TraceLogger. next may be nil.
func NewTraceLogger(next statemachine.Logger) *TraceLogger {
	return &TraceLogger{next: next}
}

func (l *TraceLogger) add(entry TraceEntry) {
	entry.Timestamp = time.Now()

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *TraceLogger) StateEntered(ctx context.Context, machine string, state any) {
	l.add(TraceEntry{Kind: TraceEntered, State: state})

	if l.next != nil {
		l.next.StateEntered(ctx, machine, state)
	}
}

func (l *TraceLogger) StateExited(ctx context.Context, machine string, state any) {
	l.add(TraceEntry{Kind: TraceExited, State: state})

	if l.next != nil {
		l.next.StateExited(ctx, machine, state)
	}
}

func (l *TraceLogger) TransitionExecuted(ctx context.Context, machine string, from, to any) {
	l.add(TraceEntry{Kind: TraceTransition, From: from, To: to})

	if l.next != nil {
		l.next.TransitionExecuted(ctx, machine, from, to)
	}
}

func (l *TraceLogger) EventDelegated(ctx context.Context, machine string, from, to any) {
	l.add(TraceEntry{Kind: TraceDelegated, From: from, To: to})

	if l.next != nil {
		l.next.EventDelegated(ctx, machine, from, to)
	}
}

func (l *TraceLogger) EventFailed(ctx context.Context, machine string, state any, err error) {
	l.add(TraceEntry{Kind: TraceFailed, State: state, Error: err})

	if l.next != nil {
		l.next.EventFailed(ctx, machine, state, err)
	}
}

// Entries returns a copy of the recorded trace.
func (l *TraceLogger) Entries() []TraceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.entries)
}

// Assertion represents a test assertion.
type Assertion struct {
	Name   string
	Passed bool
	Error  error
}

// TestEngine wraps Engine with tracing and assertion helpers.
type TestEngine[S comparable, C any, E any] struct {
	*statemachine.Engine[S, C, E]

	t          *testing.T
	trace      *TraceLogger
	assertions []Assertion
	lastErr    error
	elapsed    time.Duration
}

// NewTestEngine builds the machine with a trace logger that also writes to the test log.
func NewTestEngine[S comparable, C any, E any](
	t *testing.T,
	builder *statemachine.Builder[S, C, E],
) *TestEngine[S, C, E] {
	t.Helper()

	trace := NewTraceLogger(statemachine.NewDefaultLogger(slogt.New(t)))

	engine, err := builder.WithLogger(trace).Build()
	require.NoError(t, err, "failed to build engine")

	return &TestEngine[S, C, E]{
		Engine: engine,
		t:      t,
		trace:  trace,
	}
}

// ProcessEvent processes event and remembers the outcome for matchers.
func (te *TestEngine[S, C, E]) ProcessEvent(ctx context.Context, event E) error {
	start := time.Now()
	te.lastErr = te.Engine.ProcessEvent(ctx, event)
	te.elapsed += time.Since(start)

	return te.lastErr
}

// Start initializes the engine and fails the test on error.
func (te *TestEngine[S, C, E]) Start(initial S) {
	te.t.Helper()

	te.lastErr = te.Init(te.t.Context(), initial)
	require.NoError(te.t, te.lastErr, "init with %v", initial)
}

// Send processes events in order and fails the test on the first error.
func (te *TestEngine[S, C, E]) Send(events ...E) {
	te.t.Helper()

	for _, event := range events {
		require.NoError(te.t, te.ProcessEvent(te.t.Context(), event), "event %v", event)
	}
}

// SendExpectError processes event and requires the result to match target.
func (te *TestEngine[S, C, E]) SendExpectError(event E, target error) {
	te.t.Helper()

	err := te.ProcessEvent(te.t.Context(), event)
	te.record(fmt.Sprintf("event %v fails with %v", event, target), errors.Is(err, target), err)
	require.ErrorIs(te.t, err, target, "event %v", event)
}

// AssertState checks the active state.
func (te *TestEngine[S, C, E]) AssertState(expected S) {
	te.t.Helper()

	actual := te.CurrentState()
	te.record(fmt.Sprintf("Current state is '%v'", expected), actual == expected, nil)
	require.Equal(te.t, expected, actual, "current state should be '%v'", expected)
}

// AssertStateVisited checks that state was entered at least once.
func (te *TestEngine[S, C, E]) AssertStateVisited(state S) {
	te.t.Helper()

	matched, err := StateWasVisited(state).Match(te.Run())
	te.record(fmt.Sprintf("State '%v' was visited", state), matched, err)
	require.True(te.t, matched, "state '%v' should have been visited", state)
}

// AssertTransitionTaken checks that a transition from -> to was executed.
func (te *TestEngine[S, C, E]) AssertTransitionTaken(from, to S) {
	te.t.Helper()

	matched, err := TransitionWasTaken(from, to).Match(te.Run())
	te.record(fmt.Sprintf("Transition from '%v' to '%v' was taken", from, to), matched, err)
	require.True(te.t, matched, "transition from '%v' to '%v' should have been taken", from, to)
}

// AssertTimeout checks the timeout reported for the active state.
func (te *TestEngine[S, C, E]) AssertTimeout(expected optional.Value[time.Duration]) {
	te.t.Helper()

	actual := te.CurrentTimeout(te.t.Context())
	te.record(fmt.Sprintf("Timeout is %v", expected), actual == expected, nil)
	require.Equal(te.t, expected, actual, "timeout should be %v", expected)
}

// Run snapshots what matchers inspect.
func (te *TestEngine[S, C, E]) Run() *Run {
	run := &Run{
		Trace:     te.trace.Entries(),
		Context:   te.Context(),
		LastError: te.lastErr,
		Elapsed:   te.elapsed,
	}

	if state, ok := te.Active().Get(); ok {
		run.Current = state
	}

	return run
}

// GetTrace returns the execution trace for inspection.
func (te *TestEngine[S, C, E]) GetTrace() []TraceEntry {
	return te.trace.Entries()
}

// GetAssertions returns all assertions made.
func (te *TestEngine[S, C, E]) GetAssertions() []Assertion {
	return te.assertions
}

func (te *TestEngine[S, C, E]) record(name string, passed bool, err error) {
	te.assertions = append(te.assertions, Assertion{Name: name, Passed: passed, Error: err})
}
