package fifo

import (
	"context"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/fifokit/logger"
	"github.com/kbukum/fifokit/resilience"
)

// Executor runs the parallel phase of submitted tasks on at most
// maxConcurrency workers and their ordered phase in submission order.
type Executor[T any] struct {
	id             string
	name           string
	maxConcurrency int
	opts           options
	log            *logger.Logger
	spawner        Spawner

	// admission bounds in-flight parallel phases; Submit blocks on it.
	admission *resilience.Bulkhead

	mu          sync.Mutex
	state       State
	next        uint64
	outstanding sync.WaitGroup
	done        chan struct{}

	// orderMu guards pending and nextOrdered, and serializes ordered phases.
	orderMu     sync.Mutex
	pending     map[uint64]pendingResult[T]
	nextOrdered uint64

	frontier  atomic.Int64
	buffered  atomic.Int64
	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

type pendingResult[T any] struct {
	task    Task[T]
	outcome T
	err     error
}

// Stats is a point-in-time snapshot of executor counters.
type Stats struct {
	// Submitted counts sequence numbers handed out.
	Submitted uint64
	// Succeeded counts RunSequential calls.
	Succeeded uint64
	// Failed counts OnError calls.
	Failed uint64
	// InFlight is the number of parallel phases holding a slot.
	InFlight int
	// Buffered is the number of finished tasks waiting for their turn.
	Buffered int
	// Frontier is the last sequence whose ordered phase ran, -1 if none.
	Frontier int64
}

// New creates an executor. maxConcurrency 0 means runtime.NumCPU();
// a negative value is rejected with ErrInvalidConcurrency.
func New[T any](maxConcurrency int, opts ...Option) (*Executor[T], error) {
	if maxConcurrency < 0 {
		return nil, ErrInvalidConcurrency.Detail("max_concurrency", maxConcurrency)
	}
	if maxConcurrency == 0 {
		maxConcurrency = runtime.NumCPU()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Executor[T]{
		id:             uuid.NewString(),
		name:           o.name,
		maxConcurrency: maxConcurrency,
		opts:           o,
		admission: resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          o.name,
			MaxConcurrent: maxConcurrency,
			MaxWait:       resilience.WaitIndefinitely,
		}),
		done:    make(chan struct{}),
		pending: make(map[uint64]pendingResult[T]),
	}
	e.frontier.Store(-1)

	switch {
	case o.spawner != nil:
		e.spawner = o.spawner
	case o.workerPool:
		e.spawner = NewWorkerPool(maxConcurrency)
	default:
		e.spawner = GoroutineSpawner{}
	}

	base := o.log
	if base == nil {
		base = logger.Get("fifo")
	}
	e.log = base.WithFields(logger.Fields(
		logger.FieldExecutor, e.name,
		logger.FieldExecutorID, e.id,
	))
	if e.opts.sink == nil {
		e.opts.sink = e.logFailure
	}

	e.log.Debug("executor created", logger.Fields(logger.FieldMaxConcurrency, maxConcurrency))
	return e, nil
}

// ID returns the unique instance id.
func (e *Executor[T]) ID() string { return e.id }

// MaxConcurrency returns the resolved concurrency bound.
func (e *Executor[T]) MaxConcurrency() int { return e.maxConcurrency }

// State returns the lifecycle state.
func (e *Executor[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Done is closed once the executor has terminated.
func (e *Executor[T]) Done() <-chan struct{} { return e.done }

// Frontier returns the last sequence whose ordered phase ran, or -1.
func (e *Executor[T]) Frontier() int64 { return e.frontier.Load() }

// Stats returns current counters. It never takes the ordering lock, so it
// is safe to call from inside an ordered callback.
func (e *Executor[T]) Stats() Stats {
	return Stats{
		Submitted: e.submitted.Load(),
		Succeeded: e.succeeded.Load(),
		Failed:    e.failed.Load(),
		InFlight:  e.admission.InUse(),
		Buffered:  int(e.buffered.Load()),
		Frontier:  e.frontier.Load(),
	}
}

// Submit assigns task the next sequence number and dispatches its parallel
// phase, blocking while maxConcurrency phases are in flight.
//
// If ctx ends during that wait the task is not dispatched. Its sequence
// number is already taken, so the slot is filled with an
// ErrAdmissionCancelled failure: OnError is called in order and the same
// error is returned.
func (e *Executor[T]) Submit(ctx context.Context, task Task[T]) error {
	if task == nil {
		return ErrNilTask
	}

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return ErrShutdown
	}
	seq := e.next
	e.next++
	e.outstanding.Add(1)
	e.mu.Unlock()

	e.submitted.Add(1)
	e.opts.metrics.RecordSubmit(ctx, e.name)

	start := time.Now()
	err := e.admission.Acquire(ctx)
	e.opts.metrics.RecordAdmission(ctx, e.name, time.Since(start), err)
	if err != nil {
		cancelled := ErrAdmissionCancelled.Wrap(err).WithDetail("seq", seq)
		e.log.Debug("admission cancelled", logger.Fields(logger.FieldSequence, seq, logger.FieldError, err.Error()))
		var zero T
		e.complete(seq, task, zero, cancelled)
		e.outstanding.Done()
		return cancelled
	}

	e.spawner.Go(func() { e.work(seq, task) })
	return nil
}

// work is the body every dispatched task runs on its worker.
func (e *Executor[T]) work(seq uint64, task Task[T]) {
	defer e.outstanding.Done()
	defer e.admission.Release()

	outcome, err := e.runParallel(seq, task)
	e.complete(seq, task, outcome, err)
}

func (e *Executor[T]) runParallel(seq uint64, task Task[T]) (outcome T, err error) {
	ctx, span := e.opts.tracer.Start(e.opts.ctx, "fifo.parallel", trace.WithAttributes(
		attribute.String("fifo.executor", e.name),
		attribute.Int64("fifo.seq", int64(seq)),
	))
	defer span.End()

	e.opts.metrics.RecordParallelStart(ctx, e.name)
	start := time.Now()

	var pc panics.Catcher
	pc.Try(func() { outcome, err = task.RunParallel(ctx) })
	if r := pc.Recovered(); r != nil {
		var zero T
		outcome = zero
		err = ErrTaskPanic.Wrap(r.AsError()).WithDetail("seq", seq)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.opts.metrics.RecordParallelEnd(ctx, e.name, time.Since(start), err)
	return outcome, err
}

// complete buffers the result of seq and runs every ordered phase that has
// become eligible.
func (e *Executor[T]) complete(seq uint64, task Task[T], outcome T, err error) {
	e.orderMu.Lock()
	defer e.orderMu.Unlock()

	e.pending[seq] = pendingResult[T]{task: task, outcome: outcome, err: err}
	e.buffered.Add(1)

	for {
		r, ok := e.pending[e.nextOrdered]
		if !ok {
			return
		}
		cur := e.nextOrdered
		delete(e.pending, cur)
		e.buffered.Add(-1)

		e.runOrdered(cur, r)

		e.nextOrdered++
		e.frontier.Store(int64(cur))
	}
}

func (e *Executor[T]) runOrdered(seq uint64, r pendingResult[T]) {
	var pc panics.Catcher
	failed := r.err != nil
	if failed {
		pc.Try(func() { r.task.OnError(r.err) })
		e.failed.Add(1)
	} else {
		pc.Try(func() { r.task.RunSequential(r.outcome) })
		e.succeeded.Add(1)
	}
	e.opts.metrics.RecordOrdered(e.opts.ctx, e.name, failed)

	if rec := pc.Recovered(); rec != nil {
		e.opts.metrics.RecordOrderedFailure(e.opts.ctx, e.name)
		e.report(seq, ErrOrderedPhase.Wrap(rec.AsError()).WithDetail("seq", seq))
	}
}

func (e *Executor[T]) report(seq uint64, err error) {
	var pc panics.Catcher
	pc.Try(func() { e.opts.sink(seq, err) })
	if rec := pc.Recovered(); rec != nil {
		e.log.Error("failure sink panicked", logger.Fields(logger.FieldSequence, seq, logger.FieldError, rec.String()))
	}
}

func (e *Executor[T]) logFailure(seq uint64, err error) {
	e.log.Error("ordered phase failed", logger.Fields(logger.FieldSequence, seq, logger.FieldError, err.Error()))
}

// Shutdown stops accepting submissions. Tasks that already hold a sequence
// number still run, including submitters still waiting for a slot. It does
// not wait; use AwaitTermination or Wait.
func (e *Executor[T]) Shutdown() {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	e.state = StateShuttingDown
	assigned := e.next
	e.mu.Unlock()

	e.log.Info("executor shutting down", logger.Fields(
		"assigned", assigned,
		logger.FieldFrontier, e.frontier.Load(),
		logger.FieldInFlight, e.admission.InUse(),
	))
	go e.drain()
}

func (e *Executor[T]) drain() {
	start := time.Now()
	e.outstanding.Wait()

	if c, ok := e.spawner.(io.Closer); ok {
		if err := c.Close(); err != nil {
			e.log.Warn("closing spawner failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}

	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()
	close(e.done)

	stats := e.Stats()
	e.log.Info("executor terminated", logger.MergeWithDuration(logger.Fields(
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		logger.FieldFrontier, stats.Frontier,
	), time.Since(start)))
}

// AwaitTermination blocks until every submitted task has had its ordered
// phase run and the workers have exited, or until timeout elapses. It
// reports which happened. It returns ErrNotShutdown if Shutdown was never
// called.
func (e *Executor[T]) AwaitTermination(timeout time.Duration) (bool, error) {
	if e.State() == StateRunning {
		return false, ErrNotShutdown
	}

	select {
	case <-e.done:
		return true, nil
	default:
	}
	if timeout <= 0 {
		return false, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.done:
		return true, nil
	case <-t.C:
		return false, nil
	}
}

// Wait is AwaitTermination bounded by ctx instead of a timeout.
func (e *Executor[T]) Wait(ctx context.Context) error {
	if e.State() == StateRunning {
		return ErrNotShutdown
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
