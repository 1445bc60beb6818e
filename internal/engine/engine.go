package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/registry"
)

// TracerName is the instrumentation scope of engine spans.
const TracerName = "github.com/roach88/linkboard/internal/engine"

// Persister durably records accepted commands.
// Implemented by *store.Store. A nil Persister runs the engine in memory.
type Persister interface {
	WriteCommand(ctx context.Context, rec ir.CommandRecord) (bool, error)
}

// StateSource provides the persisted start state of the engine.
// Implemented by *store.Store.
type StateSource interface {
	ReadAllStates(ctx context.Context) ([]ir.State, error)
	MaxSeq(ctx context.Context) (int64, error)
}

// Engine is the single-writer command dispatcher.
//
// Thread-safety model:
//   - Create / AddLink / Vote / Submit: safe from any goroutine
//   - FetchState / Registries: safe from any goroutine, never block on commands
//   - Run: must be called from exactly one goroutine
//   - Load: must be called before Run
//
// INVARIANTS:
//   - records is only touched by the Run goroutine (after Load)
//   - a snapshot is published before the reply for its command is sent
type Engine struct {
	store      Persister
	clock      *Clock
	queue      *queue[*request]
	reqGen     RequestIDGenerator
	capacity   int
	records    map[string]*registry.Record
	projection *projection
	tracer     trace.Tracer
}

// request is one submitted command waiting for the Run loop.
type request struct {
	ctx       context.Context
	requestID string
	cmd       ir.Command
	reply     chan reply // Buffered, size 1
}

type reply struct {
	rec ir.CommandRecord
	err error
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithCapacity sets the byte capacity of every registry record.
// Zero means unlimited. Default: registry.DefaultCapacity.
func WithCapacity(bytes int) Option {
	return func(e *Engine) {
		e.capacity = bytes
	}
}

// WithRequestIDGenerator overrides the UUIDv7 request ID generator.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(e *Engine) {
		e.reqGen = g
	}
}

// WithClock sets a pre-configured clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New creates an Engine. s may be nil for a memory-only engine.
func New(s Persister, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		clock:      NewClock(),
		queue:      newQueue[*request](),
		reqGen:     UUIDv7Generator{},
		capacity:   registry.DefaultCapacity,
		records:    make(map[string]*registry.Record),
		projection: newProjection(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.tracer == nil {
		e.tracer = otel.Tracer(TracerName)
	}

	return e
}

// Load seeds the engine with persisted states and resumes the clock after
// the highest persisted seq. Must be called before Run.
func (e *Engine) Load(ctx context.Context, src StateSource) error {
	states, err := src.ReadAllStates(ctx)
	if err != nil {
		return fmt.Errorf("load states: %w", err)
	}
	seq, err := src.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("load seq: %w", err)
	}

	for _, s := range states {
		rec, err := registry.FromState(s, registry.WithCapacity(e.capacity))
		if err != nil {
			return fmt.Errorf("load registry %s: %w", s.Registry, err)
		}
		e.records[s.Registry] = rec
		e.projection.publish(rec.Snapshot())
	}
	e.clock.advanceTo(seq)

	slog.Info("engine loaded",
		"registries", len(states),
		"seq", seq,
	)
	return nil
}

// Run starts the single-writer loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Requests still queued when Run returns are answered with ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "seq", e.clock.Current())
	defer e.drain()

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			req.reply <- e.process(req)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue; an empty closed
			// queue means we are done.
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run finishes the requests already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// drain answers requests left behind after Run exits.
func (e *Engine) drain() {
	e.queue.Close()
	for {
		req, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		req.reply <- reply{err: ErrStopped}
	}
}

// Submit validates a command, hands it to the Run loop and waits for the
// outcome. Returns a *registry.Error for rejected commands.
//
// If ctx ends while the command is queued or running, Submit returns the
// context error; the command itself is not cancelled.
func (e *Engine) Submit(ctx context.Context, cmd ir.Command) (ir.CommandRecord, error) {
	if cmd.Registry == "" {
		cmd.Registry = ir.DefaultRegistry
	}
	requestID := e.reqGen.Generate()

	if err := validate(cmd); err != nil {
		logRejection(requestID, cmd, err)
		return ir.CommandRecord{}, err
	}

	req := &request{
		ctx:       ctx,
		requestID: requestID,
		cmd:       cmd,
		reply:     make(chan reply, 1),
	}
	if !e.queue.Enqueue(req) {
		return ir.CommandRecord{}, ErrStopped
	}

	select {
	case r := <-req.reply:
		return r.rec, r.err
	case <-ctx.Done():
		return ir.CommandRecord{}, fmt.Errorf("waiting for %s: %w", cmd.Kind, ctx.Err())
	}
}

// Create initializes a registry. The first caller becomes its owner.
func (e *Engine) Create(ctx context.Context, registryID string, owner ir.Address) error {
	_, err := e.Submit(ctx, ir.Command{
		Kind:     ir.CommandCreate,
		Registry: registryID,
		Caller:   owner,
	})
	return err
}

// AddLink appends a link and returns its index.
func (e *Engine) AddLink(ctx context.Context, registryID string, submitter ir.Address, link string) (uint64, error) {
	rec, err := e.Submit(ctx, ir.Command{
		Kind:     ir.CommandAddLink,
		Registry: registryID,
		Caller:   submitter,
		Link:     link,
	})
	if err != nil {
		return 0, err
	}
	return rec.Result.Index, nil
}

// Vote adjusts the tally of one entry by delta (-1 or +1) and returns the
// new tally. Any identity may vote any number of times.
func (e *Engine) Vote(ctx context.Context, registryID string, caller ir.Address, index uint64, delta int64) (int64, error) {
	rec, err := e.Submit(ctx, ir.Command{
		Kind:     ir.CommandVote,
		Registry: registryID,
		Caller:   caller,
		Index:    index,
		Delta:    delta,
	})
	if err != nil {
		return 0, err
	}
	return rec.Result.Vote, nil
}

// FetchState returns a consistent copy of a registry.
// Never blocks on in-flight commands.
func (e *Engine) FetchState(registryID string) ir.State {
	if registryID == "" {
		registryID = ir.DefaultRegistry
	}
	return e.projection.get(registryID)
}

// Registries returns the IDs of all created registries, sorted.
func (e *Engine) Registries() []string {
	return e.projection.registries()
}

// Seq returns the seq of the last accepted command.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}
