// Package logger builds the structured logger shared by the CLI and the
// case runner.
//
// Records fan out to a console handler (stderr unless redirected) and,
// optionally, to a log file. Either sink may be switched off; with both
// off the logger discards everything.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Formats accepted by WithFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	debug   bool
	format  string
	console io.Writer
	writer  io.Writer
	quiet   bool
}

type Option func(*Config)

// WithDebug sets the level of the logger to debug.
func WithDebug() Option {
	return func(o *Config) {
		o.debug = true
	}
}

// WithFormat sets the format of the logger (text or json).
func WithFormat(format string) Option {
	return func(o *Config) {
		o.format = format
	}
}

// WithConsole replaces stderr as the console sink.
func WithConsole(w io.Writer) Option {
	return func(o *Config) {
		o.console = w
	}
}

// WithWriter sets the file to write logs to.
func WithWriter(w io.Writer) Option {
	return func(o *Config) {
		o.writer = w
	}
}

// WithQuiet suppresses console output.
func WithQuiet() Option {
	return func(o *Config) {
		o.quiet = true
	}
}

// New builds a logger from opts. The level is Info unless WithDebug is
// given, in which case records also carry their source location.
func New(opts ...Option) *slog.Logger {
	cfg := &Config{format: FormatText}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.debug,
	}

	var handlers []slog.Handler
	if !cfg.quiet {
		console := cfg.console
		if console == nil {
			console = os.Stderr
		}
		handlers = append(handlers, newHandler(console, cfg.format, handlerOpts))
	}
	if cfg.writer != nil {
		handlers = append(handlers, newGuardedHandler(newHandler(cfg.writer, cfg.format, handlerOpts)))
	}

	if len(handlers) == 0 {
		return Discard()
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ValidFormat reports whether format is accepted by WithFormat.
func ValidFormat(format string) bool {
	return format == FormatText || format == FormatJSON
}

// OpenFile opens path for appending, creating it and its parent
// directories as needed. The caller closes the file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

var _ slog.Handler = (*guardedHandler)(nil)

// guardedHandler serializes writes to a shared file so records from loggers
// derived with With never interleave.
type guardedHandler struct {
	handler slog.Handler
	mu      *sync.Mutex
}

func newGuardedHandler(handler slog.Handler) *guardedHandler {
	return &guardedHandler{handler: handler, mu: &sync.Mutex{}}
}

// Enabled implements slog.Handler.
func (s *guardedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (s *guardedHandler) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (s *guardedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &guardedHandler{handler: s.handler.WithAttrs(attrs), mu: s.mu}
}

// WithGroup implements slog.Handler.
func (s *guardedHandler) WithGroup(name string) slog.Handler {
	return &guardedHandler{handler: s.handler.WithGroup(name), mu: s.mu}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
