// Package log provides a structured logging interface for the training job.
//
// The interface is slog-shaped (key/value field pairs, With chaining, level
// checks) and is backed by zerolog in production. Components receive a Logger
// explicitly instead of reaching for a global, which keeps tests able to
// capture output with TestLogger.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ModelNameKey, "ElasticNet",
//	    log.ComponentKey, "linear",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1199,
//	    log.FeaturesKey, 11,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. An error value stored under the
// ErrAttrKey key is rendered with its stack trace when one is attached.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	//
	// Example:
	//   logger.Error("Tracking run failed", log.ErrAttrKey, err, log.RunIDKey, id)
	Error(msg string, fields ...any)

	// With returns a new Logger that includes the given fields in every record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
