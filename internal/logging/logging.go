// Package logging builds the process slog.Logger: a stderr handler plus
// optional daily log files with an errors-only mirror.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Options configures New.
type Options struct {
	Level  slog.Level
	Format string // "text" | "json"

	// Stderr receives console output. Nil discards it.
	Stderr io.Writer

	// Dir enables <Dir>/log_YYYY-MM-DD.txt and
	// <Dir>/errors/error_YYYY-MM-DD.txt when set.
	Dir string

	// Now picks the file date. Defaults to time.Now.
	Now func() time.Time
}

// Logger owns the files behind a logger.
type Logger struct {
	*slog.Logger
	files []*os.File
}

// Close flushes and closes any log files.
func (l *Logger) Close() error {
	var errs []error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.files = nil
	return errors.Join(errs...)
}

// New creates a logger from opts.
func New(opts Options) (*Logger, error) {
	l := &Logger{}
	var handlers []slog.Handler

	if opts.Stderr != nil {
		handlers = append(handlers, newHandler(opts.Stderr, opts.Format, opts.Level))
	}

	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		day := now().Format("2006-01-02")

		all, err := openAppend(filepath.Join(opts.Dir, "log_"+day+".txt"))
		if err != nil {
			return nil, err
		}
		l.files = append(l.files, all)

		errFile, err := openAppend(filepath.Join(opts.Dir, "errors", "error_"+day+".txt"))
		if err != nil {
			l.Close()
			return nil, err
		}
		l.files = append(l.files, errFile)

		handlers = append(handlers,
			newHandler(all, "text", opts.Level),
			newHandler(errFile, "text", slog.LevelError),
		)
	}

	switch len(handlers) {
	case 0:
		l.Logger = slog.New(slog.DiscardHandler)
	case 1:
		l.Logger = slog.New(handlers[0])
	default:
		l.Logger = slog.New(Fanout(handlers...))
	}
	return l, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

// Fanout returns a handler that duplicates records to handlers.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
