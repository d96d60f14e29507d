package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	perrors "github.com/YuminosukeSato/attrisk/pkg/errors"
)

var (
	globalMu sync.RWMutex
	global   Logger = NewZerologLogger(os.Stderr, LevelInfo, false)
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.ErrorStackMarshaler = extractStacktrace
}

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a Logger writing to w. With console set, output is
// human-readable instead of JSON lines.
func NewZerologLogger(w io.Writer, level Level, console bool) *ZerologLogger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.zl.Info().Fields(fields).Msg(msg)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

// Error implements Logger.Error. A leading error argument is attached with its
// stack trace; the remaining arguments are key-value pairs.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	ev := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Stack().Err(err)
			if obj, ok := asLogObject(err); ok {
				ev = ev.Object("error.detail", obj)
			}
			fields = fields[1:]
		}
	}
	ev.Fields(fields).Msg(msg)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(fields).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// SetupLogger installs the process logger and routes library warnings
// (convergence, undefined metrics) into it.
func SetupLogger(level string, w io.Writer, console bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logger := NewZerologLogger(w, lvl, console)

	globalMu.Lock()
	global = logger
	globalMu.Unlock()

	perrors.SetZerologWarnFunc(func(warning error) {
		ev := logger.zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
	return nil
}

// GetLogger returns the process logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, perrors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
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

func asLogObject(err error) (zerolog.LogObjectMarshaler, bool) {
	var obj zerolog.LogObjectMarshaler
	if errors.As(err, &obj) {
		return obj, true
	}
	return nil, false
}

// extractStacktrace returns the first stack recorded by cockroachdb/errors.
func extractStacktrace(err error) interface{} {
	for _, details := range errors.GetAllSafeDetails(err) {
		if len(details.SafeDetails) > 0 {
			return details.SafeDetails[0]
		}
	}
	return nil
}

// LevelNames lists the accepted level names, for flag help text.
func LevelNames() string {
	return fmt.Sprintf("%s|%s|%s|%s", zerolog.DebugLevel, zerolog.InfoLevel, zerolog.WarnLevel, zerolog.ErrorLevel)
}
