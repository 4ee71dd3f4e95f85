package testing

import (
	"errors"
	"fmt"
	"time"
)

// Matcher errors.
var (
	ErrNoExecutionTrace          = errors.New("no execution trace available")
	ErrExecutionCompletedNoError = errors.New("execution completed without error")
	ErrNoMatchersPassed          = errors.New("no matchers passed")
	ErrStateNotVisited           = errors.New("state was not visited")
	ErrTransitionNotTaken        = errors.New("transition was not taken")
	ErrStateMismatch             = errors.New("current state mismatch")
	ErrContextMismatch           = errors.New("context does not satisfy predicate")
	ErrExecutionTooSlow          = errors.New("execution exceeded time limit")
)

// Run is what a matcher inspects: the trace of an engine, its active state (nil before
// init), a copy of its context and the result of the last processed event.
type Run struct {
	Trace     []TraceEntry
	Current   any
	Context   any
	LastError error
	Elapsed   time.Duration
}

// Matcher defines an assertion matcher interface.
type Matcher interface {
	Match(run *Run) (bool, error)
	Description() string
}

// StateWasVisited creates a matcher that checks if a state was entered.
func StateWasVisited(state any) Matcher {
	return &stateVisitedMatcher{state: state}
}

type stateVisitedMatcher struct {
	state any
}

func (m *stateVisitedMatcher) Match(run *Run) (bool, error) {
	for _, entry := range run.Trace {
		if entry.Kind == TraceEntered && entry.State == m.state {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%v'", ErrStateNotVisited, m.state)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%v' should be visited", m.state)
}

// TransitionWasTaken creates a matcher that checks if a transition occurred.
func TransitionWasTaken(from, to any) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from any
	to   any
}

func (m *transitionTakenMatcher) Match(run *Run) (bool, error) {
	for _, entry := range run.Trace {
		if entry.Kind == TraceTransition && entry.From == m.from && entry.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%v' to '%v'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%v' to '%v' should be taken", m.from, m.to)
}

// CurrentStateIs creates a matcher that checks the active state.
func CurrentStateIs(state any) Matcher {
	return &currentStateMatcher{state: state}
}

type currentStateMatcher struct {
	state any
}

func (m *currentStateMatcher) Match(run *Run) (bool, error) {
	if run.Current != m.state {
		return false, fmt.Errorf("%w: got '%v', expected '%v'", ErrStateMismatch, run.Current, m.state)
	}

	return true, nil
}

func (m *currentStateMatcher) Description() string {
	return fmt.Sprintf("current state should be '%v'", m.state)
}

// ContextSatisfies creates a matcher that applies pred to the engine context.
func ContextSatisfies[C any](description string, pred func(C) bool) Matcher {
	return &contextMatcher[C]{description: description, pred: pred}
}

type contextMatcher[C any] struct {
	description string
	pred        func(C) bool
}

func (m *contextMatcher[C]) Match(run *Run) (bool, error) {
	value, ok := run.Context.(C)
	if !ok {
		return false, fmt.Errorf("%w: context is %T", ErrContextMismatch, run.Context)
	}

	if !m.pred(value) {
		return false, fmt.Errorf("%w: %s", ErrContextMismatch, m.description)
	}

	return true, nil
}

func (m *contextMatcher[C]) Description() string {
	return "context should satisfy: " + m.description
}

// ExecutionCompleted creates a matcher that checks the last event succeeded.
func ExecutionCompleted() Matcher {
	return &executionCompletedMatcher{}
}

type executionCompletedMatcher struct{}

func (m *executionCompletedMatcher) Match(run *Run) (bool, error) {
	if len(run.Trace) == 0 {
		return false, ErrNoExecutionTrace
	}

	if run.LastError != nil {
		return false, fmt.Errorf("execution failed with error: %w", run.LastError)
	}

	return true, nil
}

func (m *executionCompletedMatcher) Description() string {
	return "execution should complete successfully"
}

// ExecutionFailed creates a matcher that checks the last event failed.
func ExecutionFailed() Matcher {
	return &executionFailedMatcher{}
}

type executionFailedMatcher struct{}

func (m *executionFailedMatcher) Match(run *Run) (bool, error) {
	if len(run.Trace) == 0 {
		return false, ErrNoExecutionTrace
	}

	if run.LastError == nil {
		return false, ErrExecutionCompletedNoError
	}

	return true, nil
}

func (m *executionFailedMatcher) Description() string {
	return "execution should fail"
}

// ExecutionTookLessThan creates a matcher that checks the total event processing time.
func ExecutionTookLessThan(duration time.Duration) Matcher {
	return &executionDurationMatcher{maxDuration: duration}
}

type executionDurationMatcher struct {
	maxDuration time.Duration
}

func (m *executionDurationMatcher) Match(run *Run) (bool, error) {
	if run.Elapsed > m.maxDuration {
		return false, fmt.Errorf("%w: took %s, max %s", ErrExecutionTooSlow, run.Elapsed, m.maxDuration)
	}

	return true, nil
}

func (m *executionDurationMatcher) Description() string {
	return fmt.Sprintf("execution should take less than %s", m.maxDuration)
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(run *Run) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(run)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(run *Run) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(run)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
