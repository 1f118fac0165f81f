package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/fifokit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// Enabled turns on OTLP export. When false InitMeter is not called.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServiceName is the name of the service.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
	// Environment is the deployment environment (dev, staging, prod).
	Environment string `yaml:"environment" mapstructure:"environment"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a global meter provider exporting over OTLP HTTP.
// The caller shuts it down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Executor instrument names.
const (
	MetricTasksSubmitted  = "fifo.tasks.submitted"
	MetricAdmissionWait   = "fifo.admission.wait"
	MetricParallelActive  = "fifo.parallel.active"
	MetricParallelTime    = "fifo.parallel.duration"
	MetricOrderedTotal    = "fifo.ordered.total"
	MetricOrderedFailures = "fifo.ordered.failures"
)

// ExecutorMetrics records executor activity as OpenTelemetry instruments.
// It satisfies fifo.MetricsRecorder.
type ExecutorMetrics struct {
	submitted      metric.Int64Counter
	admissionWait  metric.Float64Histogram
	parallelActive metric.Int64UpDownCounter
	parallelTime   metric.Float64Histogram
	ordered        metric.Int64Counter
	orderedFailed  metric.Int64Counter
}

// NewExecutorMetrics creates the executor instruments on meter.
func NewExecutorMetrics(meter metric.Meter) (*ExecutorMetrics, error) {
	submitted, err := meter.Int64Counter(MetricTasksSubmitted,
		metric.WithDescription("Tasks that received a sequence number"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksSubmitted, err)
	}

	admissionWait, err := meter.Float64Histogram(MetricAdmissionWait,
		metric.WithDescription("Time submitters spent waiting for a slot"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricAdmissionWait, err)
	}

	parallelActive, err := meter.Int64UpDownCounter(MetricParallelActive,
		metric.WithDescription("Parallel phases currently running"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricParallelActive, err)
	}

	parallelTime, err := meter.Float64Histogram(MetricParallelTime,
		metric.WithDescription("Duration of parallel phases"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricParallelTime, err)
	}

	ordered, err := meter.Int64Counter(MetricOrderedTotal,
		metric.WithDescription("Ordered phases run, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricOrderedTotal, err)
	}

	orderedFailed, err := meter.Int64Counter(MetricOrderedFailures,
		metric.WithDescription("Ordered phases that panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricOrderedFailures, err)
	}

	return &ExecutorMetrics{
		submitted:      submitted,
		admissionWait:  admissionWait,
		parallelActive: parallelActive,
		parallelTime:   parallelTime,
		ordered:        ordered,
		orderedFailed:  orderedFailed,
	}, nil
}

func executorAttr(executor string) attribute.KeyValue {
	return attribute.String("executor", executor)
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "error")
	}
	return attribute.String("status", "ok")
}

// RecordSubmit counts a sequence number handed out.
func (m *ExecutorMetrics) RecordSubmit(ctx context.Context, executor string) {
	m.submitted.Add(ctx, 1, metric.WithAttributes(executorAttr(executor)))
}

// RecordAdmission records how long a submitter waited and whether it got in.
func (m *ExecutorMetrics) RecordAdmission(ctx context.Context, executor string, wait time.Duration, err error) {
	m.admissionWait.Record(ctx, wait.Seconds(), metric.WithAttributes(executorAttr(executor), statusAttr(err)))
}

// RecordParallelStart increments the active parallel phase count.
func (m *ExecutorMetrics) RecordParallelStart(ctx context.Context, executor string) {
	m.parallelActive.Add(ctx, 1, metric.WithAttributes(executorAttr(executor)))
}

// RecordParallelEnd decrements active phases and records the duration.
func (m *ExecutorMetrics) RecordParallelEnd(ctx context.Context, executor string, d time.Duration, err error) {
	m.parallelActive.Add(ctx, -1, metric.WithAttributes(executorAttr(executor)))
	m.parallelTime.Record(ctx, d.Seconds(), metric.WithAttributes(executorAttr(executor), statusAttr(err)))
}

// RecordOrdered counts an ordered phase; outcome is "sequential" or "error".
func (m *ExecutorMetrics) RecordOrdered(ctx context.Context, executor string, failed bool) {
	outcome := "sequential"
	if failed {
		outcome = "error"
	}
	m.ordered.Add(ctx, 1, metric.WithAttributes(executorAttr(executor), attribute.String("outcome", outcome)))
}

// RecordOrderedFailure counts an ordered phase that panicked.
func (m *ExecutorMetrics) RecordOrderedFailure(ctx context.Context, executor string) {
	m.orderedFailed.Add(ctx, 1, metric.WithAttributes(executorAttr(executor)))
}
