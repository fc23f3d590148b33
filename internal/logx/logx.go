// Package logx wraps zerolog behind a small structured-logging facade
// so the rest of the codebase does not depend on a logger type
// directly.
package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Field appends one structured field to a log event.
type Field func(e *zerolog.Event)

func String(key, val string) Field { return func(e *zerolog.Event) { e.Str(key, val) } }

func Int(key string, val int) Field { return func(e *zerolog.Event) { e.Int(key, val) } }

func Bool(key string, val bool) Field { return func(e *zerolog.Event) { e.Bool(key, val) } }

func Err(err error) Field { return func(e *zerolog.Event) { e.Err(err) } }

func Duration(key string, d time.Duration) Field {
	return func(e *zerolog.Event) { e.Dur(key, d) }
}

// Logger is a value wrapper around a zerolog.Logger. Copies are cheap
// and safe to hand out.
type Logger struct {
	zl zerolog.Logger
}

// Options configure the root logger.
type Options struct {
	Level   string    // debug, info, warn, error
	Console bool      // human-readable console output instead of JSON
	Writer  io.Writer // defaults to stderr
}

// New builds the root logger.
func New(opts Options) Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	zl := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return Logger{zl: zl}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() Logger { return Logger{zl: zerolog.Nop()} }

// ParseLevel maps a config string onto a zerolog level. Unknown values
// fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a child logger tagged with a component name.
func (l Logger) With(component string) Logger {
	return Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// Level returns a copy of the logger at the given level.
func (l Logger) Level(s string) Logger {
	return Logger{zl: l.zl.Level(ParseLevel(s))}
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }

func (l Logger) Info(msg string, fields ...Field) { l.emit(l.zl.Info(), msg, fields) }

func (l Logger) Warn(msg string, fields ...Field) { l.emit(l.zl.Warn(), msg, fields) }

func (l Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }

func (l Logger) emit(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f(e)
	}
	e.Msg(msg)
}
