// Package logging builds the process logger and carries it through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// Options selects the logger's level and output format ("text" or "json").
type Options struct {
	Level  string
	Format string
}

// New creates a logger writing to stderr.
func New(opts Options) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
		level = l
	}

	switch opts.Format {
	case "", "json":
	case "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// WithContext returns a copy of ctx carrying log.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}
