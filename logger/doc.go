// Package logger provides structured logging for fifokit using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers with structured fields.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("fifo")
//	log.Info("executor started", logger.Fields("max_concurrency", 8))
package logger
