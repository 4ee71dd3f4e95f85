// Package shutdown runs named cleanup hooks when the process receives SIGINT or SIGTERM,
// or when shutdown is requested programmatically.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/amp-labs/amp-hfsm/logger"
)

// HookTimeout bounds the context each hook receives.
const HookTimeout = 10 * time.Second

// Hook releases a resource. The context is still alive while hooks run.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	hook Hook
}

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []namedHook    //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook. Hooks run in reverse registration order, so a
// resource registered after its dependencies is released before them.
func BeforeShutdown(name string, h Hook) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, namedHook{name: name, hook: h})
}

// Shutdown triggers the shutdown process as if a signal had arrived. It does nothing
// when no handler is installed.
func Shutdown() {
	mut.Lock()
	ch := channel
	mut.Unlock()

	if ch != nil {
		select {
		case ch <- os.Interrupt:
		default:
		}
	}
}

// SetupHandler installs the signal handler and returns a context derived from parent
// that is canceled once every hook has run.
func SetupHandler(parent context.Context) context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	channel = ch
	mut.Unlock()

	// Only the handler cancels ctx, after the hooks; parent cancellation merely starts them.
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	go func() {
		defer cancel()

		select {
		case sig := <-ch:
			logger.Get(ctx).Warn("Received " + sig.String() + ", shutting down...")
		case <-parent.Done():
		}

		signal.Stop(ch)

		mut.Lock()
		channel = nil
		mut.Unlock()

		if err := RunHooks(ctx); err != nil {
			logger.Get(ctx).Error("shutdown hooks failed", "error", err)
		}
	}()

	return ctx
}

// RunHooks runs and clears every registered hook. Failures are joined; a failing hook
// does not stop the rest.
func RunHooks(ctx context.Context) error {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	var errs []error

	for i := len(pending) - 1; i >= 0; i-- {
		h := pending[i]

		if err := runHook(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}

func runHook(ctx context.Context, h namedHook) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), HookTimeout)
	defer cancel()

	logger.Get(ctx).Debug("running shutdown hook", "hook", h.name)

	return h.hook(ctx)
}
