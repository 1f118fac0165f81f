package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates a constructor or config value was rejected.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeMissingField indicates a required config field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Submission errors
const (
	// ErrCodeNilTask indicates a nil task was submitted.
	ErrCodeNilTask ErrorCode = "NIL_TASK"
	// ErrCodeExecutorShutdown indicates a submission after shutdown.
	ErrCodeExecutorShutdown ErrorCode = "EXECUTOR_SHUTDOWN"
	// ErrCodeExecutorRunning indicates an operation that requires a prior shutdown.
	ErrCodeExecutorRunning ErrorCode = "EXECUTOR_RUNNING"
	// ErrCodeAdmissionCancelled indicates the submitter gave up waiting for a slot.
	ErrCodeAdmissionCancelled ErrorCode = "ADMISSION_CANCELLED"
	// ErrCodeCapacityExhausted indicates no concurrency slot was available.
	ErrCodeCapacityExhausted ErrorCode = "CAPACITY_EXHAUSTED"
	// ErrCodeTimeout indicates a bounded wait elapsed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Task errors
const (
	// ErrCodeTaskPanic indicates a task phase panicked.
	ErrCodeTaskPanic ErrorCode = "TASK_PANIC"
	// ErrCodeOrderedPhaseFailed indicates RunSequential or OnError failed.
	ErrCodeOrderedPhaseFailed ErrorCode = "ORDERED_PHASE_FAILED"
)

// Workload errors
const (
	// ErrCodeOrderViolation indicates ordered phases ran out of submission order.
	ErrCodeOrderViolation ErrorCode = "ORDER_VIOLATION"
	// ErrCodeInjectedFailure marks a failure produced on purpose by a workload.
	ErrCodeInjectedFailure ErrorCode = "INJECTED_FAILURE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// taskCodes are the codes that belong to a single task and never affect
// sibling tasks or the executor.
var taskCodes = map[ErrorCode]bool{
	ErrCodeAdmissionCancelled: true,
	ErrCodeTaskPanic:          true,
	ErrCodeOrderedPhaseFailed: true,
}

// IsTaskCode returns true if the code describes a failure scoped to one task.
func IsTaskCode(code ErrorCode) bool {
	return taskCodes[code]
}
