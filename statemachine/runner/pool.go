package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/amp-labs/amp-hfsm/shutdown"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/google/uuid"
)

// DefaultPoolConcurrency bounds how many engines a Pool drives at once.
const DefaultPoolConcurrency = 10

var (
	// ErrEngineNotFound is returned for an unknown engine key.
	ErrEngineNotFound = errors.New("engine not found")
	// ErrPoolStopped is returned once the pool's workers have been stopped.
	ErrPoolStopped = errors.New("pool is stopped")
)

type poolOptions struct {
	concurrency    int
	stopOnShutdown bool
}

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

// WithConcurrency sets the number of workers. Values below one use the default.
func WithConcurrency(n int) PoolOption {
	return func(o *poolOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithStopOnShutdown registers the pool's StopAndWait as a shutdown hook.
func WithStopOnShutdown() PoolOption {
	return func(o *poolOptions) {
		o.stopOnShutdown = true
	}
}

// Pool keeps many independent engines under generated keys and runs their events on a
// bounded worker pool. Each engine still sees one caller at a time.
type Pool[S comparable, C any, E any] struct {
	workers pond.Pool

	mu      sync.RWMutex
	engines map[uuid.UUID]*Serial[S, C, E]
	order   []uuid.UUID
}

// NewPool creates an empty pool.
func NewPool[S comparable, C any, E any](opts ...PoolOption) *Pool[S, C, E] {
	options := poolOptions{concurrency: DefaultPoolConcurrency}

	for _, opt := range opts {
		opt(&options)
	}

	p := &Pool[S, C, E]{
		workers: pond.NewPool(options.concurrency),
		engines: make(map[uuid.UUID]*Serial[S, C, E]),
	}

	if options.stopOnShutdown {
		shutdown.BeforeShutdown("runner.Pool", func(context.Context) error {
			p.Stop()

			return nil
		})
	}

	return p
}

// Add takes ownership of engine and returns its key.
func (p *Pool[S, C, E]) Add(engine *statemachine.Engine[S, C, E]) uuid.UUID {
	id := uuid.New()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.engines[id] = NewSerial(engine)
	p.order = append(p.order, id)

	return id
}

// Get returns the engine stored under id.
func (p *Pool[S, C, E]) Get(id uuid.UUID) optional.Value[*Serial[S, C, E]] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	engine, ok := p.engines[id]

	return optional.FromLookup(engine, ok)
}

// Remove forgets the engine stored under id. It reports whether it was present.
func (p *Pool[S, C, E]) Remove(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.engines[id]; !ok {
		return false
	}

	delete(p.engines, id)
	p.order = slices.DeleteFunc(p.order, func(other uuid.UUID) bool { return other == id })

	return true
}

// Len returns the number of engines in the pool.
func (p *Pool[S, C, E]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.engines)
}

// Keys returns engine keys in insertion order.
func (p *Pool[S, C, E]) Keys() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Clone(p.order)
}

// States returns the active state of every initialized engine.
func (p *Pool[S, C, E]) States() map[uuid.UUID]S {
	out := make(map[uuid.UUID]S)

	for _, entry := range p.snapshot() {
		if state, ok := entry.engine.Active().Get(); ok {
			out[entry.id] = state
		}
	}

	return out
}

// Send processes event on one engine and waits for the result.
func (p *Pool[S, C, E]) Send(ctx context.Context, id uuid.UUID, event E) error {
	engine, ok := p.Get(id).Get()
	if !ok {
		return fmt.Errorf("%w: %s", ErrEngineNotFound, id)
	}

	if p.workers.Stopped() {
		return ErrPoolStopped
	}

	return p.workers.SubmitErr(func() error {
		return engine.ProcessEvent(ctx, event)
	}).Wait()
}

// InitAll initializes every engine that is not initialized yet, concurrently.
func (p *Pool[S, C, E]) InitAll(ctx context.Context, initial S) error {
	return p.fanOut(ctx, "init", func(engine *Serial[S, C, E]) error {
		if engine.Initialized() {
			return nil
		}

		return engine.Init(ctx, initial)
	})
}

// Broadcast processes event on every engine concurrently. Failures are joined and each
// names the engine it came from; engines that succeeded keep their new state.
func (p *Pool[S, C, E]) Broadcast(ctx context.Context, event E) error {
	return p.fanOut(ctx, "broadcast", func(engine *Serial[S, C, E]) error {
		return engine.ProcessEvent(ctx, event)
	})
}

// Stop waits for running tasks and rejects new ones.
func (p *Pool[S, C, E]) Stop() {
	if !p.workers.Stopped() {
		p.workers.StopAndWait()
	}
}

type poolEntry[S comparable, C any, E any] struct {
	id     uuid.UUID
	engine *Serial[S, C, E]
}

func (p *Pool[S, C, E]) snapshot() []poolEntry[S, C, E] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]poolEntry[S, C, E], 0, len(p.order))
	for _, id := range p.order {
		entries = append(entries, poolEntry[S, C, E]{id: id, engine: p.engines[id]})
	}

	return entries
}

func (p *Pool[S, C, E]) fanOut(ctx context.Context, op string, fn func(*Serial[S, C, E]) error) error {
	if p.workers.Stopped() {
		return ErrPoolStopped
	}

	entries := p.snapshot()
	results := make([]error, len(entries))
	group := p.workers.NewGroup()

	for i, entry := range entries {
		group.Submit(func() {
			if err := fn(entry.engine); err != nil {
				results[i] = fmt.Errorf("engine %s: %w", entry.id, err)
			}
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	err := errors.Join(results...)
	if err != nil {
		logger.Get(ctx).Debug("pool fan-out finished with failures",
			"op", op, "engines", len(entries), "error", err)
	}

	return err
}
