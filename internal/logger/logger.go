package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

var (
	level = new(slog.LevelVar)

	mu       sync.RWMutex
	format   = "text"
	output   io.Writer = os.Stdout
	useColor           = true
	closer   io.Closer
	slogger  *slog.Logger
)

func init() {
	level.Set(slog.LevelInfo)
	useColor = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild swaps the handler after an output or format change. Level changes
// go through the shared LevelVar and need no rebuild.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = NewColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(h)
}

// Init configures the global logger. Output can be "stdout", "stderr", or a
// file path opened in append mode.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var (
			w     io.Writer
			color bool
			c     io.Closer
		)
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			w, color = os.Stdout, isTerminal(os.Stdout.Fd())
		case "stderr":
			w, color = os.Stderr, isTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
			}
			w, c = f, f
		}

		mu.Lock()
		if closer != nil {
			_ = closer.Close()
		}
		output, useColor, closer = w, color, c
		mu.Unlock()
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

// InitWithWriter points the logger at w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, enableColor bool) {
	mu.Lock()
	output = w
	useColor = enableColor
	mu.Unlock()

	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
	rebuild()
}

// ParseLevel maps a level name to its slog level. Unknown names report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// SetLevel sets the minimum level; invalid names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat switches between text and json; invalid names are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != "text" && name != "json" {
		return
	}
	mu.Lock()
	changed := format != name
	format = name
	mu.Unlock()
	if changed {
		rebuild()
	}
}

// IsTerminal reports whether f is attached to a terminal. The CLI uses it
// to decide on colored output.
func IsTerminal(f *os.File) bool {
	return isTerminal(f.Fd())
}

// Logger returns the current global slog logger, for components that take an
// injected *slog.Logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// DebugCtx logs at debug level, prefixing the LogContext fields found in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	if !Logger().Enabled(ctx, slog.LevelDebug) {
		return
	}
	Logger().DebugContext(ctx, msg, withContextFields(ctx, args)...)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, withContextFields(ctx, args)...)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, withContextFields(ctx, args)...)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, withContextFields(ctx, args)...)
}

func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	return append(lc.args(), args...)
}

// With returns a logger with pre-bound attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Duration returns the time since start in milliseconds.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
