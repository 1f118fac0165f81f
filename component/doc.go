// Package component defines the lifecycle interface shared by the
// long-running parts of fifokit: executors and telemetry providers.
//
// A Registry starts components in registration order and stops them in
// reverse, so an executor registered after the telemetry it reports to is
// drained before that telemetry is flushed.
package component
