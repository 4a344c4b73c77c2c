package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stack"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewLogger(os.Stderr, LevelWarn, false)
)

func init() {
	zerolog.ErrorStackMarshaler = ErrorStack
	zerolog.ErrorStackFieldName = StacktraceAttrKey
	zerolog.TimeFieldFormat = time.RFC3339
}

// zerologLogger implements Logger on top of zerolog.
type zerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewLogger returns a Logger writing to w. console selects zerolog's
// human-readable writer instead of JSON lines.
func NewLogger(w io.Writer, level Level, console bool) Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl, level: level}
}

// SetupLogger configures the process-wide default logger and routes
// pkg/errors warnings (ConvergenceWarning and friends) through it.
func SetupLogger(loglevel string, format string) error {
	level, err := ParseLevel(loglevel)
	if err != nil {
		return err
	}
	logger := NewLogger(os.Stderr, level, format == "console")
	SetLogger(logger)
	return nil
}

// SetLogger replaces the process-wide default logger.
func SetLogger(logger Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	errors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), "warning", w)
	})
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// ParseLevel converts a level name into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValueError("log.ParseLevel", fmt.Sprintf("invalid log level: %s", level))
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	rest := make([]any, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		if err, ok := fields[i+1].(error); ok && fmt.Sprint(fields[i]) == ErrAttrKey {
			ctx = ctx.Stack().Err(err)
			continue
		}
		rest = append(rest, fields[i], fields[i+1])
	}
	if len(rest) > 0 {
		ctx = ctx.Fields(rest)
	}
	return &zerologLogger{zl: ctx.Logger(), level: l.level}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.level
}

// emit attaches fields to ev and sends it. A nil event means the level is
// disabled.
func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	rest := make([]any, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			if key == ErrAttrKey {
				ev = ev.Stack().Err(v)
				continue
			}
			if m, ok := v.(zerolog.LogObjectMarshaler); ok {
				ev = ev.Object(key, m)
				continue
			}
			rest = append(rest, key, v.Error())
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		default:
			rest = append(rest, key, v)
		}
	}
	if len(rest) > 0 {
		ev = ev.Fields(rest)
	}
	ev.Msg(msg)
}
