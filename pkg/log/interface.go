// Package log provides the structured logging interface used across censusml.
//
// The Logger interface is slog-shaped: a message followed by alternating
// key/value fields. The default implementation is backed by zerolog and
// is obtained through GetLogger or GetLoggerWithName.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("shap.kernel").With(
//	    log.ModelNameKey, "KernelExplainer",
//	)
//	logger.Info("Explaining rows",
//	    log.OperationKey, log.OperationExplain,
//	    log.SamplesKey, 20,
//	    log.FeaturesKey, 12,
//	)

package log

import (
	"context"
)

// Logger is a structured logger compatible in shape with log/slog.
//
// If the first field passed to Error (or any level) is an error value it
// is recorded as the error field rather than as a key.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs a condition that does not stop execution.
	Warn(msg string, fields ...any)

	// Error logs an error condition.
	//
	//	logger.Error("Fit failed", err, log.SamplesKey, 1000)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level. Values match slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
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

// LoggerProvider creates loggers. TestLoggerProvider implements it for tests.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
