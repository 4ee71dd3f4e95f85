package runner

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/statemachine"
	smtest "github.com/amp-labs/amp-hfsm/statemachine/testing"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	eventually = time.Second
	tick       = 5 * time.Millisecond
)

type machine = statemachine.Engine[string, smtest.Blank, string]

func build(t *testing.T, builder *statemachine.Builder[string, smtest.Blank, string]) *machine {
	t.Helper()

	engine, err := builder.WithLogger(statemachine.NewDefaultLogger(slogt.New(t))).Build()
	require.NoError(t, err)

	return engine
}

func started(t *testing.T, builder *statemachine.Builder[string, smtest.Blank, string], initial string) *machine {
	t.Helper()

	engine := build(t, builder)
	require.NoError(t, engine.Init(t.Context(), initial))

	return engine
}

// idleMachine leaves Busy for Idle when Busy has been idle for 10ms.
func idleMachine() *statemachine.Builder[string, smtest.Blank, string] {
	type script = smtest.Script[string, smtest.Blank, string]

	return statemachine.NewBuilder[string, smtest.Blank, string]("idle", smtest.Blank{}).
		State("Busy", script{
			Events: map[string]statemachine.Response[string]{"Timeout": statemachine.TransitionTo("Idle")},
			Idle:   optional.Some(10 * time.Millisecond),
		}).
		State("Idle", script{
			Events: map[string]statemachine.Response[string]{"Work": statemachine.TransitionTo("Busy")},
		})
}

type counter struct {
	N int
}

func TestSerialConcurrentEvents(t *testing.T) {
	t.Parallel()

	engine, err := statemachine.NewBuilder[string, counter, string]("counter", counter{}).
		State("Counting", statemachine.BehaviorFuncs[string, counter, string]{
			EventFn: func(_ context.Context, _ string, c *counter) statemachine.Response[string] {
				c.N++

				return statemachine.Handled[string]()
			},
		}).
		WithLogger(nil).
		Build()
	require.NoError(t, err)

	serial := NewSerial(engine)
	require.NoError(t, serial.Init(t.Context(), "Counting"))

	const senders = 50

	var wg sync.WaitGroup

	for range senders {
		wg.Go(func() {
			assert.NoError(t, serial.ProcessEvent(t.Context(), "inc"))
		})
	}

	wg.Wait()

	assert.Equal(t, senders, serial.Context().N)
	assert.Equal(t, "Counting", serial.CurrentState())
	assert.Equal(t, optional.Some("Counting"), serial.Active())
	assert.Equal(t, "counter", serial.Name())
	assert.Equal(t, engine.ID(), serial.ID())
}

func TestSerialDo(t *testing.T) {
	t.Parallel()

	serial := NewSerial(started(t, smtest.CommonTestMachines.Toggle(), "Off"))

	require.NoError(t, serial.ProcessEventWithTimeout(t.Context(), "PowerOn", time.Second))
	assert.Equal(t, optional.Some(smtest.ToggleIdle), serial.CurrentTimeout(t.Context()))

	err := serial.Do(func(engine *machine) error {
		return engine.ProcessEvent(t.Context(), "PowerOff")
	})
	require.NoError(t, err)
	assert.Equal(t, "Off", serial.CurrentState())
}

func TestDriverProcessesEvents(t *testing.T) {
	t.Parallel()

	driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout")

	done := make(chan error, 1)

	go func() { done <- driver.Run(t.Context()) }()

	require.NoError(t, driver.Send(t.Context(), "PowerOn"))
	require.Eventually(t, func() bool {
		return driver.Engine().CurrentState() == "On"
	}, eventually, tick)

	require.NoError(t, driver.Send(t.Context(), "PowerOff"))
	require.Eventually(t, func() bool {
		return driver.Engine().CurrentState() == "Off"
	}, eventually, tick)

	driver.Stop()
	require.NoError(t, <-done)

	assert.Equal(t, Stats{Processed: 2}, driver.Stats())
	require.ErrorIs(t, driver.Send(t.Context(), "PowerOn"), ErrDriverStopped)
}

func TestDriverInjectsTimeoutEvent(t *testing.T) {
	t.Parallel()

	driver := NewDriver(started(t, idleMachine(), "Busy"), "Timeout")

	done := make(chan error, 1)

	go func() { done <- driver.Run(t.Context()) }()

	require.Eventually(t, func() bool {
		return driver.Engine().CurrentState() == "Idle"
	}, eventually, tick)

	require.NoError(t, driver.Send(t.Context(), "Work"))
	require.Eventually(t, func() bool {
		return driver.Stats().Timeouts == 2
	}, eventually, tick)

	driver.Stop()
	require.NoError(t, <-done)

	stats := driver.Stats()
	assert.Equal(t, int64(3), stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, "Idle", driver.Engine().CurrentState())
}

func TestDriverProcess(t *testing.T) {
	t.Parallel()

	t.Run("returns the engine result", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(started(t, smtest.CommonTestMachines.MenuTree(), "Settings"), "Timeout")

		go func() { _ = driver.Run(t.Context()) }()
		defer driver.Stop()

		require.ErrorIs(t, driver.Process(t.Context(), "Save"), statemachine.ErrInvalidEvent)
		assert.Equal(t, Stats{Processed: 1, Failed: 1}, driver.Stats())
	})

	t.Run("re-arms the idle timeout", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(started(t, idleMachine(), "Idle"), "Timeout")

		go func() { _ = driver.Run(t.Context()) }()
		defer driver.Stop()

		require.NoError(t, driver.Process(t.Context(), "Work"))

		require.Eventually(t, func() bool {
			return driver.Engine().CurrentState() == "Idle"
		}, eventually, tick)
		assert.Equal(t, int64(1), driver.Stats().Timeouts)
	})

	t.Run("stopped driver", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout")
		driver.Stop()

		require.ErrorIs(t, driver.Process(t.Context(), "PowerOn"), ErrDriverStopped)
		assert.Equal(t, "Off", driver.Engine().CurrentState())
	})
}

func TestDriverLogsFinalStats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	var mu sync.Mutex

	handler := slog.NewTextHandler(&lockedWriter{mu: &mu, w: &buf}, &slog.HandlerOptions{Level: slog.LevelDebug})

	driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout",
		WithDriverLogger[string](slog.New(handler)))

	done := make(chan error, 1)

	go func() { done <- driver.Run(t.Context()) }()

	require.NoError(t, driver.Process(t.Context(), "PowerOn"))
	require.NoError(t, driver.Process(t.Context(), "PowerOff"))

	driver.Stop()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()

	out := buf.String()
	assert.Contains(t, out, "driver stopped")
	assert.Contains(t, out, "processed=2")
	assert.Contains(t, out, "failed=0")
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}

func TestDriverErrorHandler(t *testing.T) {
	t.Parallel()

	type failure struct {
		event string
		err   error
	}

	failures := make(chan failure, 1)

	driver := NewDriver(started(t, smtest.CommonTestMachines.MenuTree(), "Settings"), "Timeout",
		WithBuffer[string](0),
		WithErrorHandler(func(_ context.Context, event string, err error) {
			failures <- failure{event: event, err: err}
		}))

	go func() { _ = driver.Run(t.Context()) }()
	defer driver.Stop()

	require.NoError(t, driver.Send(t.Context(), "Save"))

	select {
	case f := <-failures:
		assert.Equal(t, "Save", f.event)
		require.ErrorIs(t, f.err, statemachine.ErrInvalidEvent)
	case <-time.After(eventually):
		t.Fatal("error handler was not called")
	}

	assert.Equal(t, "Settings", driver.Engine().CurrentState())
	assert.Equal(t, int64(1), driver.Stats().Failed)
}

func TestDriverRecoversFromPanic(t *testing.T) {
	t.Parallel()

	builder := statemachine.NewBuilder[string, smtest.Blank, string]("panicky", smtest.Blank{}).
		State("Fragile", statemachine.BehaviorFuncs[string, smtest.Blank, string]{
			EventFn: func(context.Context, string, *smtest.Blank) statemachine.Response[string] {
				panic("boom")
			},
		})

	errs := make(chan error, 1)

	driver := NewDriver(started(t, builder, "Fragile"), "Timeout",
		WithErrorHandler(func(_ context.Context, _ string, err error) { errs <- err }))

	go func() { _ = driver.Run(t.Context()) }()
	defer driver.Stop()

	require.NoError(t, driver.Send(t.Context(), "Poke"))

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrDriverPanic)
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(eventually):
		t.Fatal("panic was not reported")
	}

	require.NoError(t, driver.Send(t.Context(), "Poke"))
	require.Eventually(t, func() bool {
		return driver.Stats().Failed == 2
	}, eventually, tick)
}

func TestDriverRun(t *testing.T) {
	t.Parallel()

	t.Run("requires init", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(build(t, smtest.CommonTestMachines.Toggle()), "Timeout")
		require.ErrorIs(t, driver.Run(t.Context()), statemachine.ErrNotInitialized)
	})

	t.Run("runs once", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout")

		go func() { _ = driver.Run(t.Context()) }()
		defer driver.Stop()

		require.Eventually(t, driver.running.Load, eventually, tick)
		require.ErrorIs(t, driver.Run(t.Context()), ErrDriverRunning)
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout")

		done := make(chan error, 1)

		go func() { done <- driver.Run(ctx) }()

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
		require.ErrorIs(t, driver.Send(t.Context(), "PowerOn"), ErrDriverStopped)
	})

	t.Run("send honors context", func(t *testing.T) {
		t.Parallel()

		driver := NewDriver(started(t, smtest.CommonTestMachines.Toggle(), "Off"), "Timeout",
			WithBuffer[string](0))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		require.ErrorIs(t, driver.Send(ctx, "PowerOn"), context.Canceled)
	})
}
