package statemachine

import (
	"context"
	"fmt"

	"github.com/amp-labs/amp-hfsm/optional"
	"go.opentelemetry.io/otel/attribute"
)

// transitionTo leaves from and enters target. The target is checked before any hook
// runs so an unknown target leaves the engine untouched.
func (e *Engine[S, C, E]) transitionTo(ctx context.Context, from S, target S) error {
	if !e.registry.Contains(target) {
		return WrapTransitionError(from, target, ErrStateNotRegistered)
	}

	behavior, err := e.registry.Lookup(from)
	if err != nil {
		return err
	}

	e.exit(ctx, from, behavior)
	e.transitioned(ctx, from, target, TriggerTransition)

	_, err = e.enterChain(ctx, target, true)

	return err
}

// enterChain enters target and follows Transition responses from enter hooks: the state
// just entered is exited and the next one entered, at most maxChainDepth times. With
// commit set, the active state follows every entered state; otherwise the caller commits
// the returned final state. The returned state is the last one entered.
func (e *Engine[S, C, E]) enterChain(ctx context.Context, target S, commit bool) (S, error) {
	behavior, err := e.registry.Lookup(target)
	if err != nil {
		return target, err
	}

	current := target
	entered := 0

	defer func() {
		if e.opts.metrics && entered > 0 {
			chainLength.WithLabelValues(sanitizeMachine(e.name)).Observe(float64(entered))
		}
	}()

	for {
		if commit {
			e.active = optional.Some(current)
		}

		entered++
		resp := e.enter(ctx, current, behavior)

		switch resp.Kind() {
		case KindHandled:
			return current, nil

		case KindTransition:
			next := resp.Target()

			if entered > e.opts.maxChainDepth {
				return current, WrapTransitionError(current, next,
					fmt.Errorf("%w: more than %d redirects", ErrTransitionChainTooDeep, e.opts.maxChainDepth))
			}

			nextBehavior, err := e.registry.Lookup(next)
			if err != nil {
				return current, WrapTransitionError(current, next, ErrStateNotRegistered)
			}

			if err := ctx.Err(); err != nil {
				return current, WrapTransitionError(current, next, err)
			}

			e.exit(ctx, current, behavior)
			e.transitioned(ctx, current, next, TriggerEnterChain)

			current, behavior = next, nextBehavior

		case KindError:
			return current, &StateError[S]{State: current, Message: resp.Message(), Err: ErrInvalidEvent}

		case KindSuper:
			return current, &StateError[S]{
				State: current,
				Err:   fmt.Errorf("%w: %w", ErrInvalidEvent, ErrSuperFromEnter),
			}

		default:
			return current, &StateError[S]{State: current, Message: resp.String(), Err: ErrInvalidResponse}
		}
	}
}

func (e *Engine[S, C, E]) enter(ctx context.Context, state S, behavior Behavior[S, C, E]) Response[S] {
	ctx, span := e.startSpan(ctx, spanEnter, state)

	resp := behavior.OnEnter(ctx, e.cell.Ptr())

	span.SetAttributes(attribute.String("response", resp.Kind().String()))
	endSpan(span, "", nil)

	if e.opts.logger != nil {
		e.opts.logger.StateEntered(ctx, e.name, state)
	}

	return resp
}

func (e *Engine[S, C, E]) exit(ctx context.Context, state S, behavior Behavior[S, C, E]) {
	ctx, span := e.startSpan(ctx, spanExit, state)

	behavior.OnExit(ctx, e.cell.Ptr())

	endSpan(span, "", nil)

	if e.opts.logger != nil {
		e.opts.logger.StateExited(ctx, e.name, state)
	}
}

func (e *Engine[S, C, E]) transitioned(ctx context.Context, from, to S, trigger string) {
	if e.opts.metrics {
		transitionsTotal.WithLabelValues(sanitizeMachine(e.name), stateLabel(from), stateLabel(to)).Inc()
	}

	if e.opts.logger != nil {
		e.opts.logger.TransitionExecuted(ctx, e.name, from, to)
	}

	if e.history != nil {
		e.history.record(from, to, trigger)
	}
}
