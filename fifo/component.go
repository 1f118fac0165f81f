package fifo

import (
	"context"
	"fmt"

	"github.com/kbukum/fifokit/component"
	"github.com/kbukum/fifokit/logger"
)

var (
	_ component.Component   = (*Executor[any])(nil)
	_ component.Describable = (*Executor[any])(nil)
)

// Name returns the executor name.
func (e *Executor[T]) Name() string { return e.name }

// Start is a no-op for a running executor; an executor cannot be restarted
// after Shutdown.
func (e *Executor[T]) Start(context.Context) error {
	if e.State() != StateRunning {
		return ErrShutdown
	}
	e.log.Info("executor started", logger.Fields(logger.FieldMaxConcurrency, e.maxConcurrency))
	return nil
}

// Stop shuts the executor down and waits for it to drain within ctx.
func (e *Executor[T]) Stop(ctx context.Context) error {
	e.Shutdown()
	return e.Wait(ctx)
}

// Health maps the lifecycle state to a component health.
func (e *Executor[T]) Health(context.Context) component.Health {
	h := component.Health{Name: e.name}
	switch state := e.State(); state {
	case StateRunning:
		h.Status = component.StatusHealthy
		s := e.Stats()
		h.Message = fmt.Sprintf("in_flight=%d/%d buffered=%d frontier=%d", s.InFlight, e.maxConcurrency, s.Buffered, s.Frontier)
	case StateShuttingDown:
		h.Status = component.StatusDegraded
		h.Message = "draining"
	default:
		h.Status = component.StatusUnhealthy
		h.Message = state.String()
	}
	return h
}

// Describe reports how the executor is configured.
func (e *Executor[T]) Describe() component.Description {
	return component.Description{
		Name:    "Ordered executor",
		Type:    "executor",
		Details: fmt.Sprintf("max_concurrency=%d spawner=%s", e.maxConcurrency, spawnerName(e.spawner)),
	}
}

func spawnerName(s Spawner) string {
	switch s.(type) {
	case *WorkerPool:
		return "pool"
	case GoroutineSpawner:
		return "goroutine"
	default:
		return "custom"
	}
}
