// Package logger is the process-wide slog logger with printf-style helpers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level   slog.LevelVar
	current atomic.Pointer[slog.Logger]
	asJSON  atomic.Bool
)

func init() {
	level.Set(slog.LevelInfo)
	SetOutput(os.Stdout)
}

// SetOutput swaps the destination of every subsequent log line.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: &level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if asJSON.Load() {
		h = slog.NewJSONHandler(w, opts)
	}
	current.Store(slog.New(h))
}

// SetFormat selects "json" or "text" (default) and rebuilds the handler on w.
func SetFormat(format string, w io.Writer) {
	asJSON.Store(strings.EqualFold(strings.TrimSpace(format), "json"))
	SetOutput(w)
}

// SetLevel accepts debug, info, warn(ing) and error; anything else means info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v) }

func logf(lvl slog.Level, format string, v []any) {
	l := current.Load()
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	l.Log(context.Background(), lvl, fmt.Sprintf(format, v...))
}
