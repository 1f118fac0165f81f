package fifo

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kbukum/fifokit/logger"
)

const defaultName = "fifo"

// FailureSink receives failures raised by RunSequential or OnError.
// The executor has already moved past the failing task when it is called.
type FailureSink func(seq uint64, err error)

// MetricsRecorder receives executor measurements.
// observability.ExecutorMetrics implements it on top of OpenTelemetry.
type MetricsRecorder interface {
	RecordSubmit(ctx context.Context, executor string)
	RecordAdmission(ctx context.Context, executor string, wait time.Duration, err error)
	RecordParallelStart(ctx context.Context, executor string)
	RecordParallelEnd(ctx context.Context, executor string, d time.Duration, err error)
	RecordOrdered(ctx context.Context, executor string, failed bool)
	RecordOrderedFailure(ctx context.Context, executor string)
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	name       string
	spawner    Spawner
	workerPool bool
	log        *logger.Logger
	sink       FailureSink
	metrics    MetricsRecorder
	tracer     trace.Tracer
	ctx        context.Context
}

func defaultOptions() options {
	return options{
		name:    defaultName,
		metrics: nopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer(defaultName),
		ctx:     context.Background(),
	}
}

// WithName names the executor in logs, metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSpawner sets the strategy that starts parallel phases.
// The default starts one goroutine per task.
func WithSpawner(s Spawner) Option {
	return func(o *options) {
		o.spawner = s
		o.workerPool = false
	}
}

// WithWorkerPool runs parallel phases on a fixed pool of maxConcurrency
// goroutines, closed once the executor terminates.
func WithWorkerPool() Option {
	return func(o *options) {
		o.spawner = nil
		o.workerPool = true
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithFailureSink sets where ordered-phase failures are reported.
// The default logs them at error level.
func WithFailureSink(sink FailureSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer starts a span around every parallel phase.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithContext sets the context handed to RunParallel.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordSubmit(context.Context, string) {}
func (nopMetrics) RecordAdmission(context.Context, string, time.Duration, error) {}
func (nopMetrics) RecordParallelStart(context.Context, string) {}
func (nopMetrics) RecordParallelEnd(context.Context, string, time.Duration, error) {}
func (nopMetrics) RecordOrdered(context.Context, string, bool) {}
func (nopMetrics) RecordOrderedFailure(context.Context, string) {}
