// Package errors provides the structured error type shared by fifokit
// packages. Every error carries a machine-readable ErrorCode so callers can
// match failures with errors.Is regardless of the wrapped cause.
package errors
