// Package observability wires executor metrics and tracing to
// OpenTelemetry.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg.Metrics)
//	defer mp.Shutdown(ctx)
//
//	m, err := observability.NewExecutorMetrics(observability.Meter("fifokit"))
//	exec, err := fifo.New[Result](8, fifo.WithMetrics(m))
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, cfg.Tracing)
//	defer tp.Shutdown(ctx)
//
//	exec, err := fifo.New[Result](8, fifo.WithTracer(observability.Tracer()))
//
// Telemetry bundles both providers as a component.Component.
package observability
