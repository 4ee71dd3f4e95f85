package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"go.uber.org/atomic"
)

const defaultDriverBuffer = 16

var (
	// ErrDriverStopped is returned when sending to a driver that is no longer running.
	ErrDriverStopped = errors.New("driver is stopped")
	// ErrDriverRunning is returned when Run is called a second time.
	ErrDriverRunning = errors.New("driver is already running")
	// ErrDriverPanic wraps a panic raised by a hook while the driver processed an event.
	ErrDriverPanic = errors.New("panic in driver")
)

// Stats counts what a driver has done so far.
type Stats struct {
	Processed int64
	Failed    int64
	Timeouts  int64
}

// ErrorHandler is called, on the driver goroutine, for every event that failed.
type ErrorHandler[E any] func(ctx context.Context, event E, err error)

type driverOptions[E any] struct {
	buffer  int
	onError ErrorHandler[E]
	log     *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption[E any] func(*driverOptions[E])

// WithBuffer sets the event channel capacity. Zero makes Send wait for the driver.
func WithBuffer[E any](n int) DriverOption[E] {
	return func(o *driverOptions[E]) {
		o.buffer = max(n, 0)
	}
}

// WithErrorHandler installs a callback for failed events.
func WithErrorHandler[E any](fn func(ctx context.Context, event E, err error)) DriverOption[E] {
	return func(o *driverOptions[E]) {
		o.onError = fn
	}
}

// WithDriverLogger sets the logger for driver lifecycle records. Defaults to logger.Get(ctx).
func WithDriverLogger[E any](l *slog.Logger) DriverOption[E] {
	return func(o *driverOptions[E]) {
		o.log = l
	}
}

// envelope carries an event through the mailbox. done is nil for fire-and-forget sends.
type envelope[E any] struct {
	event E
	done  chan error
}

// Driver owns an engine and processes events from a mailbox one at a time. After every
// event it asks the engine for the active state's timeout and, if the state stays idle
// that long, processes timeoutEvent.
//
// Events must go through Send or Process. Calls made directly on Engine() change the
// state without re-arming the timeout.
type Driver[S comparable, C any, E any] struct {
	engine       *Serial[S, C, E]
	timeoutEvent E
	events       chan envelope[E]
	stop         chan struct{}
	stopOnce     sync.Once
	onError      ErrorHandler[E]
	log          *slog.Logger

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
	timeouts  atomic.Int64
}

// NewDriver creates a driver for engine. Init the engine before calling Run.
func NewDriver[S comparable, C any, E any](
	engine *statemachine.Engine[S, C, E],
	timeoutEvent E,
	opts ...DriverOption[E],
) *Driver[S, C, E] {
	options := driverOptions[E]{buffer: defaultDriverBuffer}

	for _, opt := range opts {
		opt(&options)
	}

	return &Driver[S, C, E]{
		engine:       NewSerial(engine),
		timeoutEvent: timeoutEvent,
		events:       make(chan envelope[E], options.buffer),
		stop:         make(chan struct{}),
		onError:      options.onError,
		log:          options.log,
	}
}

// Engine returns the serialized engine for queries while the driver runs.
func (d *Driver[S, C, E]) Engine() *Serial[S, C, E] {
	return d.engine
}

// Send queues an event. It blocks while the buffer is full.
func (d *Driver[S, C, E]) Send(ctx context.Context, event E) error {
	return d.enqueue(ctx, envelope[E]{event: event})
}

// Process queues an event and waits until the driver has processed it, returning the
// engine's result.
func (d *Driver[S, C, E]) Process(ctx context.Context, event E) error {
	done := make(chan error, 1)

	if err := d.enqueue(ctx, envelope[E]{event: event, done: done}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-d.stop:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver[S, C, E]) enqueue(ctx context.Context, env envelope[E]) error {
	select {
	case <-d.stop:
		return ErrDriverStopped
	default:
	}

	select {
	case d.events <- env:
		return nil
	case <-d.stop:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run after the event in progress. Queued events are dropped.
func (d *Driver[S, C, E]) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
}

// Stats returns a snapshot of the driver's counters.
func (d *Driver[S, C, E]) Stats() Stats {
	return Stats{
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Timeouts:  d.timeouts.Load(),
	}
}

func (d *Driver[S, C, E]) logger(ctx context.Context) *slog.Logger {
	if d.log != nil {
		return d.log
	}

	return logger.Get(ctx)
}

// Run processes events until ctx is done or Stop is called. It returns ctx.Err() when the
// context ended the loop and nil after Stop.
func (d *Driver[S, C, E]) Run(ctx context.Context) error {
	if !d.engine.Initialized() {
		return statemachine.ErrNotInitialized
	}

	if !d.running.CompareAndSwap(false, true) {
		return ErrDriverRunning
	}

	defer d.Stop()

	log := d.logger(ctx).With("machine", d.engine.Name(), "machine_id", d.engine.ID())
	log.Debug("driver started")

	defer func() {
		log.Debug("driver stopped",
			"processed", d.processed.Load(),
			"failed", d.failed.Load(),
			"timeouts", d.timeouts.Load())
	}()

	for {
		var (
			timer   *time.Timer
			expired <-chan time.Time
		)

		if idle, ok := d.engine.CurrentTimeout(ctx).Get(); ok {
			timer = time.NewTimer(idle)
			expired = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)

			return ctx.Err()
		case <-d.stop:
			stopTimer(timer)

			return nil
		case env := <-d.events:
			stopTimer(timer)

			err := d.handle(ctx, env.event)
			if env.done != nil {
				env.done <- err
			}
		case <-expired:
			d.timeouts.Inc()
			log.Debug("state timed out", "state", d.engine.CurrentState())
			_ = d.handle(ctx, d.timeoutEvent)
		}
	}
}

func (d *Driver[S, C, E]) handle(ctx context.Context, event E) error {
	err := d.process(ctx, event)

	d.processed.Inc()

	if err == nil {
		return nil
	}

	d.failed.Inc()

	if d.onError != nil {
		d.onError(ctx, event, err)
	}

	return err
}

func (d *Driver[S, C, E]) process(ctx context.Context, event E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger(ctx).Error("driver recovered from panic",
				"machine", d.engine.Name(),
				"event", event,
				"error", r,
				"stack", string(debug.Stack()))

			err = fmt.Errorf("%w %s: %v", ErrDriverPanic, d.engine.Name(), r)
		}
	}()

	return d.engine.ProcessEvent(ctx, event)
}

func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
