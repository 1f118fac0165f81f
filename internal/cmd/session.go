package cmd

import (
	"context"

	"github.com/kbukum/fifokit/component"
	"github.com/kbukum/fifokit/fifo"
	"github.com/kbukum/fifokit/logger"
	"github.com/kbukum/fifokit/observability"
)

// session owns the components one command runs: telemetry and the
// executor it drives.
type session struct {
	cfg      *AppConfig
	registry *component.Registry
	log      *logger.Logger
}

func startSession(ctx context.Context, cfg *AppConfig) (*session, error) {
	s := &session{
		cfg:      cfg,
		registry: component.NewRegistry(),
		log:      logger.Get("cli"),
	}
	if err := s.registry.Register(observability.NewTelemetry(cfg.Metrics, cfg.Tracing)); err != nil {
		return nil, err
	}
	if err := s.registry.StartAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newSessionExecutor builds an executor from the session config, wires
// metrics and tracing, and registers it so Close stops it.
func newSessionExecutor[T any](ctx context.Context, s *session, exec fifoOverrides) (*fifo.Executor[T], error) {
	cfg := s.cfg.Executor
	exec.apply(&cfg)

	metrics, err := observability.NewExecutorMetrics(observability.Meter(serviceName))
	if err != nil {
		return nil, err
	}

	e, err := fifo.NewFromConfig[T](cfg,
		fifo.WithContext(ctx),
		fifo.WithMetrics(metrics),
		fifo.WithTracer(observability.Tracer()),
	)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Register(e); err != nil {
		return nil, err
	}
	return e, s.registry.StartAll(ctx)
}

// Close stops every component in reverse order and logs final health.
// It still flushes telemetry when ctx is already cancelled.
func (s *session) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	err := s.registry.StopAll(ctx)
	for _, h := range s.registry.HealthAll(ctx) {
		s.log.Debug("component stopped", logger.Fields(logger.FieldComponent, h.Name, logger.FieldState, string(h.Status)))
	}
	return err
}

// fifoOverrides are executor settings given on the command line.
type fifoOverrides struct {
	concurrency    int
	concurrencySet bool
	workerPool     bool
}

func (o fifoOverrides) apply(cfg *fifo.Config) {
	if o.concurrencySet {
		cfg.MaxConcurrency = o.concurrency
	}
	if o.workerPool {
		cfg.WorkerPool = true
	}
}
