package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures the logger from the environment.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type settings struct {
	level        slog.Level
	format       Format
	output       io.Writer
	attrs        []slog.Attr
	setAsDefault bool
}

// Option configures logger construction.
type Option func(*settings)

// WithLevel sets the minimum level to log.
func WithLevel(level slog.Level) Option {
	return func(s *settings) { s.level = level }
}

// WithFormat sets the output encoding.
func WithFormat(format Format) Option {
	return func(s *settings) { s.format = format }
}

// WithOutput redirects log output. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(s *settings) { s.output = w }
}

// WithAttr attaches attributes to every record the logger emits.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// SetAsDefault installs the constructed logger as slog's process default.
func SetAsDefault() Option {
	return func(s *settings) { s.setAsDefault = true }
}

// New constructs a slog.Logger. Without options it logs JSON at info level
// to stdout.
func New(opts ...Option) *slog.Logger {
	s := settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}

	var handler slog.Handler
	switch s.format {
	case FormatText:
		handler = slog.NewTextHandler(s.output, handlerOpts)
	default:
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	}

	if len(s.attrs) > 0 {
		handler = handler.WithAttrs(s.attrs)
	}

	log := slog.New(handler)
	if s.setAsDefault {
		slog.SetDefault(log)
	}
	return log
}

// NewFromConfig constructs a logger from an environment-derived Config.
// Unknown level or format values fall back to the defaults.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	base := []Option{
		WithLevel(ParseLevel(cfg.Level)),
		WithFormat(parseFormat(cfg.Format)),
	}
	return New(append(base, opts...)...)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func parseFormat(format string) Format {
	if strings.EqualFold(strings.TrimSpace(format), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}
