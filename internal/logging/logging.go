// Package logging sets up the process logger and carries request-scoped
// loggers through a context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// Options selects the logger output.
type Options struct {
	Format string // pretty (default), json or text
	Level  string // debug, info (default), warn or error
	Out    io.Writer
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// New builds a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", FormatPretty:
		return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{SlogOpts: handlerOpts})), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(out, &handlerOpts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(out, &handlerOpts)), nil
	}
	return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
}

// contextKey is how we find [*slog.Logger] in a [context.Context].
type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if v, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return v
		}
	}
	return slog.Default()
}
