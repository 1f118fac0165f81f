package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/fifokit/component"
)

// Telemetry owns the meter and tracer providers installed by Start and
// flushes them on Stop. Either config may be disabled.
type Telemetry struct {
	meterCfg  MeterConfig
	tracerCfg TracerConfig

	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider
}

var (
	_ component.Component   = (*Telemetry)(nil)
	_ component.Describable = (*Telemetry)(nil)
)

// NewTelemetry creates the telemetry component.
func NewTelemetry(meterCfg MeterConfig, tracerCfg TracerConfig) *Telemetry {
	return &Telemetry{meterCfg: meterCfg, tracerCfg: tracerCfg}
}

func (t *Telemetry) Name() string { return "telemetry" }

func (t *Telemetry) Start(ctx context.Context) error {
	if t.meterCfg.Enabled {
		mp, err := InitMeter(ctx, &t.meterCfg)
		if err != nil {
			return err
		}
		t.mp = mp
	}
	if t.tracerCfg.Enabled {
		tp, err := InitTracer(ctx, t.tracerCfg)
		if err != nil {
			return err
		}
		t.tp = tp
	}
	return nil
}

func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		if err := t.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if t.mp != nil {
		if err := t.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) Health(context.Context) component.Health {
	h := component.Health{Name: t.Name(), Status: component.StatusHealthy}
	if !t.meterCfg.Enabled && !t.tracerCfg.Enabled {
		h.Message = "export disabled"
	}
	return h
}

func (t *Telemetry) Describe() component.Description {
	return component.Description{
		Name:    "OpenTelemetry",
		Type:    "telemetry",
		Details: fmt.Sprintf("metrics=%t tracing=%t endpoint=%s", t.meterCfg.Enabled, t.tracerCfg.Enabled, t.meterCfg.Endpoint),
	}
}
