package statemachine

import "fmt"

// ResponseKind tags the four outcomes a hook can report.
type ResponseKind int

const (
	// KindHandled means the event was consumed and the state does not change.
	KindHandled ResponseKind = iota
	// KindTransition moves the machine to Response.Target().
	KindTransition
	// KindSuper delegates resolution to the superstate of the state being consulted.
	KindSuper
	// KindError rejects the event with Response.Message().
	KindError
)

func (k ResponseKind) String() string {
	switch k {
	case KindHandled:
		return "handled"
	case KindTransition:
		return "transition"
	case KindSuper:
		return "super"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is the value returned by OnEnter and OnEvent. The zero value is Handled.
type Response[S comparable] struct {
	kind    ResponseKind
	target  S
	message string
}

// Handled reports that the event was consumed without a state change.
func Handled[S comparable]() Response[S] {
	return Response[S]{kind: KindHandled}
}

// TransitionTo requests a transition to target.
func TransitionTo[S comparable](target S) Response[S] {
	return Response[S]{kind: KindTransition, target: target}
}

// Super delegates the event to the superstate. Only meaningful from OnEvent.
func Super[S comparable]() Response[S] {
	return Response[S]{kind: KindSuper}
}

// Reject explicitly refuses the event with a message.
func Reject[S comparable](message string) Response[S] {
	return Response[S]{kind: KindError, message: message}
}

// Rejectf is Reject with fmt.Sprintf formatting.
func Rejectf[S comparable](format string, args ...any) Response[S] {
	return Reject[S](fmt.Sprintf(format, args...))
}

// Kind returns which of the four outcomes this response carries.
func (r Response[S]) Kind() ResponseKind {
	return r.kind
}

// Target is the transition target. Zero value unless Kind is KindTransition.
func (r Response[S]) Target() S {
	return r.target
}

// Message is the rejection message. Empty unless Kind is KindError.
func (r Response[S]) Message() string {
	return r.message
}

func (r Response[S]) String() string {
	switch r.kind {
	case KindTransition:
		return fmt.Sprintf("Transition(%v)", r.target)
	case KindError:
		return fmt.Sprintf("Error(%q)", r.message)
	case KindHandled, KindSuper:
		return r.kind.String()
	default:
		return r.kind.String()
	}
}
