package fifo

import (
	apperrors "github.com/kbukum/fifokit/errors"
)

// Executor errors. Match them with errors.Is; returned errors are copies
// carrying a cause and details such as the task sequence.
var (
	ErrInvalidConcurrency = apperrors.New(apperrors.ErrCodeInvalidConfig, "max concurrency must not be negative")
	ErrNilTask            = apperrors.New(apperrors.ErrCodeNilTask, "nil task")
	ErrShutdown           = apperrors.New(apperrors.ErrCodeExecutorShutdown, "executor is shut down")
	ErrNotShutdown        = apperrors.New(apperrors.ErrCodeExecutorRunning, "executor has not been shut down")
	ErrAdmissionCancelled = apperrors.New(apperrors.ErrCodeAdmissionCancelled, "submission cancelled while waiting for a worker slot")
	ErrTaskPanic          = apperrors.New(apperrors.ErrCodeTaskPanic, "task panicked in parallel phase")
	ErrOrderedPhase       = apperrors.New(apperrors.ErrCodeOrderedPhaseFailed, "ordered phase failed")
)
