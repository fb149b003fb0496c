package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Key constants for structured log fields.
const (
	KeyComponent  = "component"
	KeyHost       = "host"
	KeyPatchID    = "patchId"
	KeyPath       = "path"
	KeyRows       = "rows"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
)

type contextKey struct{}

// Options describes where and how a run logs.
type Options struct {
	Format     string // "json" or "text" (default "text")
	Level      string // "debug", "info", "warn", "error" (default "info")
	File       string // optional log file, tee'd with Console
	MaxSizeMB  int
	MaxBackups int
	Console    io.Writer // nil = os.Stderr
}

// New builds a logger writing to output.
// format: "json" or "text" (default "text")
// level: "debug", "info", "warn", "error" (default "info")
// output: writer to log to (nil = os.Stderr)
func New(format, level string, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// Open builds a logger from opts. When opts.File is set the returned closer
// owns the rotating log file; otherwise it is a no-op.
func Open(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if opts.File == "" {
		return New(opts.Format, opts.Level, console), nopCloser{}, nil
	}

	rw, err := NewRotatingWriter(opts.File, opts.MaxSizeMB, opts.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	return New(opts.Format, opts.Level, io.MultiWriter(console, rw)), rw, nil
}

// Component returns a child logger tagged with the given component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String(KeyComponent, name))
}

// NewContext returns a new context carrying the given logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from context, falling back to slog's default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
