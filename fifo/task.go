package fifo

import "context"

// Task is a unit of work with a parallel phase and an ordered phase.
// Exactly one of RunSequential or OnError is called, after RunParallel
// returns.
type Task[T any] interface {
	// RunParallel does the concurrent part of the work.
	RunParallel(ctx context.Context) (T, error)
	// RunSequential receives the outcome, in submission order.
	RunSequential(outcome T)
	// OnError receives the failure of RunParallel, in submission order.
	OnError(err error)
}

// TaskFuncs adapts plain functions to Task. Nil Sequential and Error
// funcs are no-ops; a nil Parallel returns the zero value.
type TaskFuncs[T any] struct {
	Parallel   func(ctx context.Context) (T, error)
	Sequential func(outcome T)
	Error      func(err error)
}

func (f TaskFuncs[T]) RunParallel(ctx context.Context) (T, error) {
	if f.Parallel == nil {
		var zero T
		return zero, nil
	}
	return f.Parallel(ctx)
}

func (f TaskFuncs[T]) RunSequential(outcome T) {
	if f.Sequential != nil {
		f.Sequential(outcome)
	}
}

func (f TaskFuncs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
