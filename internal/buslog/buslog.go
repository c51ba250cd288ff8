// Package buslog centralizes slog logger construction so every
// component of a bus attachment logs with a consistent "component"
// attribute, following internal/config/logging.go's level handling.
package buslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelTrace is a custom level below Debug, used for wire-level dumps
// of marshalled messages (spec.md §9 "pedantic" checks and traffic
// logging).
const LevelTrace = slog.Level(-8)

// ParseLevel converts a string to a slog.Level. Supported values:
// trace, debug, info, warn, error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
}

func replaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

var (
	mu   sync.Mutex
	root *slog.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// Init installs the process-wide root logger at the given level,
// writing text-formatted records to stderr.
func Init(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}))
}

// For returns a logger scoped to the named component, e.g.
// buslog.For("dispatch") or buslog.For("observer").
func For(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.With(slog.String("component", component))
}

// Trace logs at LevelTrace, the bus equivalent of wire-level packet
// tracing.
func Trace(ctx context.Context, l *slog.Logger, msg string, args ...any) {
	l.Log(ctx, LevelTrace, msg, args...)
}
