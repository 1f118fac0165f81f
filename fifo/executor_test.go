package fifo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/kbukum/fifokit/errors"
	"github.com/kbukum/fifokit/logger"
)

// journal records ordered-phase calls.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.events = append(j.events, s)
	j.mu.Unlock()
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func newTestExecutor[T any](t *testing.T, n int, opts ...Option) *Executor[T] {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	e, err := New[T](n, opts...)
	require.NoError(t, err)
	return e
}

func shutdownAndWait[T any](t *testing.T, e *Executor[T]) {
	t.Helper()
	e.Shutdown()
	ok, err := e.AwaitTermination(10 * time.Second)
	require.NoError(t, err)
	require.True(t, ok, "executor did not terminate")
}

// recordingTask reports "ok:<n>" or "err:<n>" to the journal.
func recordingTask(j *journal, idx int, parallel func(ctx context.Context) (int, error)) Task[int] {
	return TaskFuncs[int]{
		Parallel:   parallel,
		Sequential: func(v int) { j.add(fmt.Sprintf("ok:%d", v)) },
		Error:      func(error) { j.add(fmt.Sprintf("err:%d", idx)) },
	}
}

func TestNew_RejectsNegativeConcurrency(t *testing.T) {
	e, err := New[int](-1)
	assert.Nil(t, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
	assert.Equal(t, apperrors.ErrCodeInvalidConfig, apperrors.CodeOf(err))
}

func TestNew_ZeroUsesNumCPU(t *testing.T) {
	e := newTestExecutor[int](t, 0)
	assert.Equal(t, runtime.NumCPU(), e.MaxConcurrency())
	assert.NotEmpty(t, e.ID())
	assert.Equal(t, StateRunning, e.State())
	assert.Equal(t, int64(-1), e.Frontier())
	shutdownAndWait(t, e)
}

func TestSubmit_NilTask(t *testing.T) {
	e := newTestExecutor[int](t, 2)
	err := e.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilTask)
	assert.Zero(t, e.Stats().Submitted, "nil task must not consume a sequence number")
	shutdownAndWait(t, e)
}

func TestExecutor_OrderUnderRandomLatency(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("concurrency=%d", n), func(t *testing.T) {
			const tasks = 200
			e := newTestExecutor[int](t, n)
			rng := rand.New(rand.NewSource(42))
			j := &journal{}

			want := make([]string, 0, tasks)
			for i := 0; i < tasks; i++ {
				delay := time.Duration(rng.Intn(3000)) * time.Microsecond
				fail := rng.Float64() < 0.3
				if fail {
					want = append(want, fmt.Sprintf("err:%d", i))
				} else {
					want = append(want, fmt.Sprintf("ok:%d", i))
				}
				idx := i
				require.NoError(t, e.Submit(context.Background(), recordingTask(j, idx, func(context.Context) (int, error) {
					time.Sleep(delay)
					if fail {
						return 0, fmt.Errorf("task %d failed", idx)
					}
					return idx, nil
				})))
			}
			shutdownAndWait(t, e)

			assert.Equal(t, want, j.snapshot())
			stats := e.Stats()
			assert.Equal(t, uint64(tasks), stats.Submitted)
			assert.Equal(t, uint64(tasks), stats.Succeeded+stats.Failed)
			assert.Equal(t, int64(tasks-1), stats.Frontier)
			assert.Zero(t, stats.Buffered)
			assert.Zero(t, stats.InFlight)
		})
	}
}

func TestExecutor_ExactlyOnceNeverBoth(t *testing.T) {
	const tasks = 100
	e := newTestExecutor[int](t, 4)
	var seqCalls, errCalls [tasks]atomic.Int32

	for i := 0; i < tasks; i++ {
		idx := i
		require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
			Parallel: func(context.Context) (int, error) {
				if idx%3 == 0 {
					return 0, errors.New("boom")
				}
				return idx, nil
			},
			Sequential: func(int) { seqCalls[idx].Add(1) },
			Error:      func(error) { errCalls[idx].Add(1) },
		}))
	}
	shutdownAndWait(t, e)

	for i := 0; i < tasks; i++ {
		total := seqCalls[i].Load() + errCalls[i].Load()
		assert.Equal(t, int32(1), total, "task %d ordered phase calls", i)
		if i%3 == 0 {
			assert.Equal(t, int32(1), errCalls[i].Load(), "task %d should fail", i)
		}
	}
}

func TestExecutor_InFlightNeverExceedsBound(t *testing.T) {
	const limit = 3
	e := newTestExecutor[int](t, limit)
	var active, peak atomic.Int32

	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = e.Submit(context.Background(), TaskFuncs[int]{
					Parallel: func(context.Context) (int, error) {
						n := active.Add(1)
						for {
							p := peak.Load()
							if n <= p || peak.CompareAndSwap(p, n) {
								break
							}
						}
						time.Sleep(500 * time.Microsecond)
						active.Add(-1)
						return 0, nil
					},
				})
			}
		}()
	}
	wg.Wait()
	shutdownAndWait(t, e)

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.LessOrEqual(t, e.admission.Peak(), limit)
	assert.Equal(t, uint64(100), e.Stats().Succeeded)
}

func TestExecutor_OrderedPhasesNeverOverlap(t *testing.T) {
	e := newTestExecutor[int](t, 8)
	var inside atomic.Int32
	var overlaps atomic.Int32
	var calls atomic.Int32

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = e.Submit(context.Background(), TaskFuncs[int]{
					Parallel: func(context.Context) (int, error) {
						time.Sleep(time.Duration(rand.Intn(200)) * time.Microsecond)
						return 0, nil
					},
					Sequential: func(int) {
						if inside.Add(1) > 1 {
							overlaps.Add(1)
						}
						calls.Add(1)
						inside.Add(-1)
					},
				})
			}
		}()
	}
	wg.Wait()
	shutdownAndWait(t, e)

	assert.Zero(t, overlaps.Load())
	assert.Equal(t, int32(400), calls.Load())
}

func TestExecutor_ReverseCompletionStillOrdered(t *testing.T) {
	e := newTestExecutor[int](t, 3)
	j := &journal{}
	gates := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}
	finished := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}

	for i := 0; i < 3; i++ {
		idx := i
		require.NoError(t, e.Submit(context.Background(), recordingTask(j, idx, func(context.Context) (int, error) {
			defer close(finished[idx])
			<-gates[idx]
			return idx, nil
		})))
	}

	close(gates[2])
	<-finished[2]
	close(gates[1])
	<-finished[1]

	require.Eventually(t, func() bool { return e.Stats().Buffered == 2 }, time.Second, time.Millisecond)
	assert.Empty(t, j.snapshot(), "no ordered phase may run before task 0")
	assert.Equal(t, int64(-1), e.Frontier())

	close(gates[0])
	shutdownAndWait(t, e)

	assert.Equal(t, []string{"ok:0", "ok:1", "ok:2"}, j.snapshot())
}

func TestExecutor_FailingMiddleTask(t *testing.T) {
	e := newTestExecutor[int](t, 3)
	j := &journal{}
	var gotErr error

	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 0, func(context.Context) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return 0, nil
	})))
	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) { return 0, errors.New("middle failed") },
		Sequential: func(int) {
			j.add("ok:1")
		},
		Error: func(err error) {
			gotErr = err
			j.add("err:1")
		},
	}))
	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 2, func(context.Context) (int, error) {
		return 2, nil
	})))
	shutdownAndWait(t, e)

	assert.Equal(t, []string{"ok:0", "err:1", "ok:2"}, j.snapshot())
	assert.EqualError(t, gotErr, "middle failed")
}

func TestExecutor_ParallelPanicBecomesOnError(t *testing.T) {
	e := newTestExecutor[int](t, 2)
	j := &journal{}
	var gotErr error

	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) { panic("kaboom") },
		Error: func(err error) {
			gotErr = err
			j.add("err:0")
		},
	}))
	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 1, func(context.Context) (int, error) {
		return 1, nil
	})))
	shutdownAndWait(t, e)

	assert.Equal(t, []string{"err:0", "ok:1"}, j.snapshot())
	require.Error(t, gotErr)
	assert.ErrorIs(t, gotErr, ErrTaskPanic)
	assert.Contains(t, gotErr.Error(), "kaboom")
}

func TestExecutor_OrderedPanicReportedAndSkipped(t *testing.T) {
	var sinkMu sync.Mutex
	var sunk []uint64
	var sinkErr error
	e := newTestExecutor[int](t, 2, WithFailureSink(func(seq uint64, err error) {
		sinkMu.Lock()
		sunk = append(sunk, seq)
		sinkErr = err
		sinkMu.Unlock()
	}))
	j := &journal{}

	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel:   func(context.Context) (int, error) { return 0, nil },
		Sequential: func(int) { panic("sequential blew up") },
	}))
	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) { return 0, errors.New("x") },
		Error:    func(error) { panic("on error blew up") },
	}))
	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 2, func(context.Context) (int, error) {
		return 2, nil
	})))
	shutdownAndWait(t, e)

	sinkMu.Lock()
	defer sinkMu.Unlock()
	assert.Equal(t, []uint64{0, 1}, sunk)
	assert.ErrorIs(t, sinkErr, ErrOrderedPhase)
	assert.Equal(t, []string{"ok:2"}, j.snapshot())
	assert.Equal(t, int64(2), e.Frontier())
}

func TestExecutor_PanickingSinkDoesNotStall(t *testing.T) {
	e := newTestExecutor[int](t, 1, WithFailureSink(func(uint64, error) { panic("sink") }))
	j := &journal{}

	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Sequential: func(int) { panic("first") },
	}))
	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 1, func(context.Context) (int, error) {
		return 1, nil
	})))
	shutdownAndWait(t, e)

	assert.Equal(t, []string{"ok:1"}, j.snapshot())
}

func TestExecutor_SubmitBlocksWhenSaturated(t *testing.T) {
	e := newTestExecutor[int](t, 1)
	gate := make(chan struct{})

	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) {
			<-gate
			return 0, nil
		},
	}))

	returned := make(chan error, 1)
	go func() {
		returned <- e.Submit(context.Background(), TaskFuncs[int]{})
	}()

	select {
	case err := <-returned:
		t.Fatalf("Submit returned while saturated: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, e.Stats().InFlight)
	assert.Equal(t, uint64(2), e.Stats().Submitted, "blocked submitter already holds a sequence number")

	close(gate)
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Submit never unblocked")
	}
	shutdownAndWait(t, e)
}

func TestExecutor_CancelledAdmissionFillsSlot(t *testing.T) {
	e := newTestExecutor[int](t, 1)
	j := &journal{}
	gate := make(chan struct{})
	var ranParallel atomic.Bool
	var cancelledErr error

	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 0, func(context.Context) (int, error) {
		<-gate
		return 0, nil
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Submit(ctx, TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) {
			ranParallel.Store(true)
			return 1, nil
		},
		Sequential: func(int) { j.add("ok:1") },
		Error: func(err error) {
			cancelledErr = err
			j.add("err:1")
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAdmissionCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Empty(t, j.snapshot(), "cancelled slot waits behind task 0")
	assert.Equal(t, 1, e.Stats().Buffered)

	close(gate)
	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 2, func(context.Context) (int, error) {
		return 2, nil
	})))
	shutdownAndWait(t, e)

	assert.False(t, ranParallel.Load(), "cancelled task must not be dispatched")
	assert.Equal(t, []string{"ok:0", "err:1", "ok:2"}, j.snapshot())
	assert.ErrorIs(t, cancelledErr, ErrAdmissionCancelled)
	assert.Equal(t, uint64(3), e.Stats().Submitted)
}

func TestExecutor_ShutdownRejectsAndDrains(t *testing.T) {
	e := newTestExecutor[int](t, 2)
	var ordered atomic.Int32

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
			Parallel: func(context.Context) (int, error) {
				time.Sleep(2 * time.Millisecond)
				return 0, nil
			},
			Sequential: func(int) { ordered.Add(1) },
		}))
	}

	e.Shutdown()
	e.Shutdown()

	var dispatched atomic.Bool
	err := e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) {
			dispatched.Store(true)
			return 0, nil
		},
	})
	assert.ErrorIs(t, err, ErrShutdown)

	ok, err := e.AwaitTermination(10 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int32(10), ordered.Load())
	assert.False(t, dispatched.Load())
	assert.Equal(t, uint64(10), e.Stats().Submitted)
	assert.Equal(t, StateTerminated, e.State())
	assert.ErrorIs(t, e.Submit(context.Background(), TaskFuncs[int]{}), ErrShutdown)

	select {
	case <-e.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}

func TestExecutor_ShutdownLetsBlockedSubmitterFinish(t *testing.T) {
	e := newTestExecutor[int](t, 1)
	j := &journal{}
	gate := make(chan struct{})

	require.NoError(t, e.Submit(context.Background(), recordingTask(j, 0, func(context.Context) (int, error) {
		<-gate
		return 0, nil
	})))

	returned := make(chan error, 1)
	go func() {
		returned <- e.Submit(context.Background(), recordingTask(j, 1, func(context.Context) (int, error) {
			return 1, nil
		}))
	}()
	require.Eventually(t, func() bool { return e.Stats().Submitted == 2 }, time.Second, time.Millisecond)

	e.Shutdown()
	assert.Equal(t, StateShuttingDown, e.State())
	close(gate)

	require.NoError(t, <-returned)
	shutdownAndWait(t, e)
	assert.Equal(t, []string{"ok:0", "ok:1"}, j.snapshot())
}

func TestExecutor_AwaitTermination(t *testing.T) {
	e := newTestExecutor[int](t, 1)

	ok, err := e.AwaitTermination(time.Millisecond)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotShutdown)
	assert.ErrorIs(t, e.Wait(context.Background()), ErrNotShutdown)

	gate := make(chan struct{})
	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) {
			<-gate
			return 0, nil
		},
	}))
	e.Shutdown()

	ok, err = e.AwaitTermination(20 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "should time out while a task is blocked")

	ok, err = e.AwaitTermination(0)
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.DeadlineExceeded)

	close(gate)
	require.NoError(t, e.Wait(context.Background()))

	ok, err = e.AwaitTermination(0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecutor_ShutdownWithNothingSubmitted(t *testing.T) {
	e := newTestExecutor[string](t, 2)
	shutdownAndWait(t, e)
	assert.Equal(t, StateTerminated, e.State())
	assert.Equal(t, int64(-1), e.Frontier())
}

func TestExecutor_MoreConcurrencyIsFaster(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	run := func(n int) time.Duration {
		e := newTestExecutor[int](t, n)
		start := time.Now()
		for i := 0; i < 20; i++ {
			require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
				Parallel: func(context.Context) (int, error) {
					time.Sleep(10 * time.Millisecond)
					return 0, nil
				},
			}))
		}
		shutdownAndWait(t, e)
		return time.Since(start)
	}

	serial := run(1)
	parallel := run(4)
	assert.Less(t, parallel, serial)
	assert.Less(t, parallel, serial/2, "expected close to a 4x speedup: serial=%s parallel=%s", serial, parallel)
}

func TestExecutor_WorkerPool(t *testing.T) {
	e := newTestExecutor[int](t, 3, WithWorkerPool())
	pool, ok := e.spawner.(*WorkerPool)
	require.True(t, ok)
	assert.Equal(t, 3, pool.Size())

	j := &journal{}
	want := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		idx := i
		want = append(want, fmt.Sprintf("ok:%d", i))
		require.NoError(t, e.Submit(context.Background(), recordingTask(j, idx, func(context.Context) (int, error) {
			time.Sleep(time.Duration(30-idx) * 100 * time.Microsecond)
			return idx, nil
		})))
	}
	shutdownAndWait(t, e)

	assert.Equal(t, want, j.snapshot())
	pool.mu.RLock()
	assert.True(t, pool.closed, "pool should be closed after termination")
	pool.mu.RUnlock()
}

func TestExecutor_CustomSpawner(t *testing.T) {
	var spawned atomic.Int32
	e := newTestExecutor[int](t, 2, WithSpawner(SpawnerFunc(func(fn func()) {
		spawned.Add(1)
		go fn()
	})))

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{}))
	}
	shutdownAndWait(t, e)
	assert.Equal(t, int32(5), spawned.Load())
}

type ctxKey struct{}

func TestExecutor_WithContextReachesParallelPhase(t *testing.T) {
	base := context.WithValue(context.Background(), ctxKey{}, "tenant-a")
	e := newTestExecutor[string](t, 1, WithContext(base))
	var got string

	require.NoError(t, e.Submit(context.Background(), TaskFuncs[string]{
		Parallel: func(ctx context.Context) (string, error) {
			v, _ := ctx.Value(ctxKey{}).(string)
			return v, nil
		},
		Sequential: func(v string) { got = v },
	}))
	shutdownAndWait(t, e)
	assert.Equal(t, "tenant-a", got)
}

func TestExecutor_TracesParallelPhase(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := newTestExecutor[int](t, 2, WithName("traced"), WithTracer(tp.Tracer("test")))
	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{}))
	require.NoError(t, e.Submit(context.Background(), TaskFuncs[int]{
		Parallel: func(context.Context) (int, error) { return 0, errors.New("traced failure") },
	}))
	shutdownAndWait(t, e)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	var errored int
	for _, s := range spans {
		assert.Equal(t, "fifo.parallel", s.Name())
		if s.Status().Code == codes.Error {
			errored++
		}
	}
	assert.Equal(t, 1, errored)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "shutting_down", StateShuttingDown.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
