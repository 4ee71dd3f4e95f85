package statemachine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
)

// CurrentTimeout asks the active state's behavior how long the machine may stay idle.
// It returns None before Init. The query does not change the engine, so calling it
// repeatedly without intervening events yields the same answer.
func (e *Engine[S, C, E]) CurrentTimeout(ctx context.Context) optional.Value[time.Duration] {
	active, ok := e.active.Get()
	if !ok {
		return optional.None[time.Duration]()
	}

	behavior, err := e.registry.Lookup(active)
	if err != nil {
		return optional.None[time.Duration]()
	}

	return behavior.Timeout(ctx, e.cell.Ptr())
}

// ProcessEventWithTimeout runs ProcessEvent under a deadline of d. Hooks observe the
// deadline through their context. When dispatch fails after the deadline expired the
// result wraps ErrEventTimeout; effects of hooks that already ran are kept.
func (e *Engine[S, C, E]) ProcessEventWithTimeout(ctx context.Context, event E, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := e.processEvent(ctx, event)
	if err == nil {
		return nil
	}

	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}

	timeoutErr := WrapStateError(e.CurrentState(), fmt.Errorf("%w after %s", ErrEventTimeout, d))

	return errors.Join(e.annotate(timeoutErr), err)
}
