package statemachine

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; StateError and TransitionError carry the details.
var (
	// ErrInvalidEvent means a behavior explicitly rejected an event (or an enter hook
	// returned a response that is not valid there). The caller may try another event.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrStateNotRegistered means a transition target or superstate is absent from the registry.
	ErrStateNotRegistered = errors.New("state not registered")
	// ErrUnhandledEvent means delegation reached a state without a superstate.
	ErrUnhandledEvent = errors.New("unhandled event")
	// ErrCycleDetected means a superstate chain did not terminate within the registered-state bound.
	ErrCycleDetected = errors.New("superstate cycle detected")
	// ErrTransitionChainTooDeep means enter hooks redirected more times than the configured bound.
	ErrTransitionChainTooDeep = errors.New("transition chain too deep")
	// ErrAlreadyInitialized is returned by Init on an initialized engine.
	ErrAlreadyInitialized = errors.New("state machine already initialized")
	// ErrNotInitialized is returned when an event is processed before Init.
	ErrNotInitialized = errors.New("state machine not initialized")
	// ErrSuperFromEnter accompanies ErrInvalidEvent when an enter hook returns Super.
	ErrSuperFromEnter = errors.New("enter hook cannot delegate to a superstate")
	// ErrInvalidResponse is returned for a response kind outside the four known ones.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrEventTimeout is returned when an event deadline expired during dispatch.
	ErrEventTimeout = errors.New("event processing timeout")
	// ErrInvalidConfig indicates a malformed engine configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StateError wraps an error with the state it concerns and an optional message,
// e.g. the text of a Reject response.
type StateError[S comparable] struct {
	State   S
	Message string
	Err     error
}

func (e *StateError[S]) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("state %v: %v", e.State, e.Err)
	}

	return fmt.Sprintf("state %v: %v: %s", e.State, e.Err, e.Message)
}

func (e *StateError[S]) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with the transition it happened in.
type TransitionError[S comparable] struct {
	From S
	To   S
	Err  error
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("transition %v -> %v: %v", e.From, e.To, e.Err)
}

func (e *TransitionError[S]) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError[S comparable](state S, err error) error {
	if err == nil {
		return nil
	}

	return &StateError[S]{State: state, Err: err}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError[S comparable](from, to S, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError[S]{From: from, To: to, Err: err}
}

// IsRecoverable reports whether err is an event-level failure after which the engine
// is still usable as-is: a rejected, unhandled or timed-out event.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrUnhandledEvent) ||
		errors.Is(err, ErrEventTimeout)
}

// IsConfigurationDefect reports whether err stems from a malformed registry, superstate
// relation or configuration. Retrying cannot succeed.
func IsConfigurationDefect(err error) bool {
	return errors.Is(err, ErrStateNotRegistered) ||
		errors.Is(err, ErrCycleDetected) ||
		errors.Is(err, ErrInvalidConfig)
}
