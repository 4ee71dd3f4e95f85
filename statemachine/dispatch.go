package statemachine

import (
	"context"
	"fmt"
)

// dispatch resolves event starting at the active state and climbing the superstate chain
// on Super. It returns the outcome label together with the error, if any. The active
// state only changes through transitionTo.
func (e *Engine[S, C, E]) dispatch(ctx context.Context, active S, event E) (string, error) {
	if err := ctx.Err(); err != nil {
		return outcomeError, WrapStateError(active, err)
	}

	behavior, err := e.registry.Lookup(active)
	if err != nil {
		return outcomeError, err
	}

	cursor := active
	hops := 0

	for {
		resp := behavior.OnEvent(ctx, event, e.cell.Ptr())

		switch resp.Kind() {
		case KindHandled:
			return outcomeHandled, nil

		case KindTransition:
			return outcomeTransition, e.transitionTo(ctx, active, resp.Target())

		case KindError:
			return outcomeRejected, &StateError[S]{State: cursor, Message: resp.Message(), Err: ErrInvalidEvent}

		case KindSuper:
			parent, ok := e.registry.SuperstateOf(cursor).Get()
			if !ok {
				return outcomeUnhandled, &StateError[S]{
					State:   active,
					Message: fmt.Sprintf("no superstate above %v", cursor),
					Err:     ErrUnhandledEvent,
				}
			}

			if !e.registry.Contains(parent) {
				return outcomeError, WrapTransitionError(cursor, parent, ErrStateNotRegistered)
			}

			hops++
			if hops >= e.registry.Len() {
				return outcomeError, &StateError[S]{
					State:   active,
					Message: fmt.Sprintf("delegation exceeded %d hops", e.registry.Len()),
					Err:     ErrCycleDetected,
				}
			}

			if err := ctx.Err(); err != nil {
				return outcomeError, WrapStateError(cursor, err)
			}

			e.delegated(ctx, cursor, parent)

			cursor = parent

			behavior, err = e.registry.Lookup(cursor)
			if err != nil {
				return outcomeError, err
			}

		default:
			return outcomeError, &StateError[S]{State: cursor, Message: resp.String(), Err: ErrInvalidResponse}
		}
	}
}

func (e *Engine[S, C, E]) delegated(ctx context.Context, from, to S) {
	if e.opts.metrics {
		delegationsTotal.WithLabelValues(sanitizeMachine(e.name), stateLabel(from), stateLabel(to)).Inc()
	}

	if e.opts.logger != nil {
		e.opts.logger.EventDelegated(ctx, e.name, from, to)
	}

	if e.history != nil {
		e.history.record(from, to, TriggerDelegate)
	}
}
