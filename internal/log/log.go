package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Format selects how log lines are rendered.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

var (
	mu       sync.RWMutex
	out      io.Writer = os.Stderr
	format             = FormatConsole
	minLevel           = LevelInfo
	logger             = build()
)

// ParseLevel accepts level names case-insensitively. An empty name is INFO.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case "":
		return LevelInfo, nil
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// ParseFormat accepts "console" or "json". An empty name is console.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatConsole, nil
	case FormatConsole, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
	logger = build()
}

func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	format = f
	logger = build()
}

// SetOutput redirects all log lines to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger = build()
}

// build must be called with mu held.
func build() zerolog.Logger {
	w := out
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(zerologLevel(minLevel)).With().Timestamp().Logger()
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	l := current()
	emit(l.Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	l := current()
	emit(l.Info(), msg, kv)
}

func Warn(msg string, kv ...any) {
	l := current()
	emit(l.Warn(), msg, kv)
}

func Error(msg string, err error, kv ...any) {
	l := current()
	emit(l.Error().Err(err), msg, kv)
}

func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	// Expect kv as pairs; a trailing key without value is dropped.
	if len(kv)%2 == 1 {
		kv = kv[:len(kv)-1]
	}
	if len(kv) > 0 {
		ev = ev.Fields(kv)
	}
	ev.Msg(msg)
}

// CronLogger adapts the package logger to the scheduler's logging interface.
// Routine scheduler chatter is logged at debug level.
type CronLogger struct{}

func (CronLogger) Info(msg string, keysAndValues ...interface{}) {
	Debug("cron: "+msg, keysAndValues...)
}

func (CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	Error("cron: "+msg, err, keysAndValues...)
}
