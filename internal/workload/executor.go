package workload

import (
	"context"

	"github.com/kbukum/fifokit/fifo"
)

// Executor is the part of *fifo.Executor a workload drives. Workloads
// submit everything, shut the executor down, then wait for it.
type Executor[T any] interface {
	Submit(ctx context.Context, task fifo.Task[T]) error
	Shutdown()
	Wait(ctx context.Context) error
}

var _ Executor[Outcome] = (*fifo.Executor[Outcome])(nil)

// drain shuts exec down and waits, returning submitErr first if set.
func drain[T any](ctx context.Context, exec Executor[T], submitErr error) error {
	exec.Shutdown()
	if err := exec.Wait(ctx); err != nil {
		return err
	}
	return submitErr
}
