package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	mlerrors "github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger writes JSON lines to w at or above level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// NewConsoleLogger writes human-readable lines to w at or above level.
func NewConsoleLogger(w io.Writer, level Level) *ZerologLogger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	zl := zerolog.New(cw).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

func (l *ZerologLogger) Debug(msg string, fields ...any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...any) { l.emit(l.zl.Error(), msg, fields) }

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	if len(fields) == 0 {
		return l
	}
	return &ZerologLogger{zl: l.zl.With().Fields(pairs(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

// Zerolog exposes the underlying logger for callers that need events directly.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.zl
}

// emit tolerates a nil event, which zerolog returns for disabled levels.
func (l *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = e.Err(err)
			if st := extractStacktrace(err); st != "" {
				e = e.Str(StacktraceKey, st)
			}
			var m zerolog.LogObjectMarshaler
			if errors.As(err, &m) {
				e = e.Object("error_detail", m)
			}
			fields = fields[1:]
		}
	}
	if len(fields) > 0 {
		e = e.Fields(pairs(fields))
	}
	e.Msg(msg)
}

// pairs normalizes alternating key/value fields for zerolog. Keys are
// stringified and a trailing key without a value is dropped.
func pairs(fields []any) []any {
	out := make([]any, 0, len(fields)&^1)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		v := fields[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		out = append(out, key, v)
	}
	return out
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ParseLevel maps a level name ("debug", "info", "warn", "error") to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, mlerrors.NewValidationError("log_level", "must be one of debug, info, warn, error", name)
	}
}

// ===========================================================================
// Default provider
// ===========================================================================

var (
	providerMu    sync.RWMutex
	providerOut   io.Writer = os.Stderr
	providerLevel           = LevelInfo
	console                 = false
	root          Logger
)

func init() {
	mlerrors.SetZerologWarnFunc(func(w error) {
		l, ok := GetLoggerWithName("warnings").(*ZerologLogger)
		if !ok {
			GetLoggerWithName("warnings").Warn(w.Error())
			return
		}
		ev := l.zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(w.Error())
	})
}

func rebuild() {
	if console {
		root = NewConsoleLogger(providerOut, providerLevel)
		return
	}
	root = NewZerologLogger(providerOut, providerLevel)
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	providerMu.RLock()
	l := root
	providerMu.RUnlock()
	if l != nil {
		return l
	}

	providerMu.Lock()
	defer providerMu.Unlock()
	if root == nil {
		rebuild()
	}
	return root
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLevel changes the minimum level of the process-wide logger.
func SetLevel(level Level) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerLevel = level
	rebuild()
}

// Configure sets output, level and format of the process-wide logger.
// useConsole selects zerolog's ConsoleWriter instead of JSON lines.
func Configure(w io.Writer, level Level, useConsole bool) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerOut = w
	providerLevel = level
	console = useConsole
	rebuild()
}

// SetLogger replaces the process-wide logger. Passing nil restores the default.
func SetLogger(l Logger) {
	providerMu.Lock()
	defer providerMu.Unlock()
	root = l
}
