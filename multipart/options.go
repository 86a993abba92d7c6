package multipart

import "log/slog"

// Limits bounds a single request's multipart payload. A zero value means
// unbounded. Limits are immutable per request.
type Limits struct {
	// Parts caps the total number of parts (files plus fields).
	Parts int64

	// Files caps the number of file parts.
	Files int64

	// Fields caps the number of non-file parts.
	Fields int64

	// FileSize caps each file part's byte size. A file hitting the cap is
	// truncated and the parse fails with ErrTruncatedFile.
	FileSize int64

	// FieldSize caps each field value's byte size.
	FieldSize int64
}

type options struct {
	limits           Limits
	bubbleLateErrors bool
	consumerDone     <-chan struct{}
	logger           *slog.Logger
	buffer           int
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
	}
}

// Option configures a Decoder.
type Option func(*options)

// WithLimits sets the per-request payload limits.
func WithLimits(l Limits) Option {
	return func(o *options) { o.limits = l }
}

// WithLogger sets the logger used for decode lifecycle events. Defaults to
// slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithConsumerDone attaches the consumer completion signal. Once the channel
// is closed, parse errors are swallowed instead of surfaced, unless
// WithBubbleLateErrors is also set. The interceptor closes this channel when
// the application handler's response terminates.
func WithConsumerDone(done <-chan struct{}) Option {
	return func(o *options) { o.consumerDone = done }
}

// WithBubbleLateErrors surfaces parse errors even after the consumer
// completion signal fired. By default late errors are swallowed: they concern
// trailing data the application no longer cares about.
func WithBubbleLateErrors() Option {
	return func(o *options) { o.bubbleLateErrors = true }
}

// WithBuffer sets the subscriber channel buffer size for the file and field
// streams. Defaults to unbuffered.
func WithBuffer(n int) Option {
	return func(o *options) { o.buffer = max(n, 0) }
}

// Config is the env-taggable configuration surface for the decoder, loadable
// with pkg/config.
type Config struct {
	MaxParts         int64 `env:"UPLOAD_MAX_PARTS" envDefault:"0"`          // MaxParts caps total parts per request, 0 = unbounded.
	MaxFiles         int64 `env:"UPLOAD_MAX_FILES" envDefault:"0"`          // MaxFiles caps file parts per request, 0 = unbounded.
	MaxFields        int64 `env:"UPLOAD_MAX_FIELDS" envDefault:"0"`         // MaxFields caps field parts per request, 0 = unbounded.
	MaxFileSize      int64 `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"0"`      // MaxFileSize caps each file's bytes, 0 = unbounded.
	MaxFieldSize     int64 `env:"UPLOAD_MAX_FIELD_SIZE" envDefault:"0"`     // MaxFieldSize caps each field value's bytes, 0 = unbounded.
	BubbleLateErrors bool  `env:"UPLOAD_BUBBLE_LATE_ERRORS" envDefault:"false"` // BubbleLateErrors surfaces parse errors after consumer completion.
	AutoDrain        bool  `env:"UPLOAD_AUTO_DRAIN" envDefault:"true"`      // AutoDrain consumes unclaimed file parts after the handler responds.
}

// FromConfig converts a Config into decoder options. Additional options are
// appended after the config-derived ones.
func FromConfig(cfg Config, opts ...Option) []Option {
	out := []Option{
		WithLimits(Limits{
			Parts:     cfg.MaxParts,
			Files:     cfg.MaxFiles,
			Fields:    cfg.MaxFields,
			FileSize:  cfg.MaxFileSize,
			FieldSize: cfg.MaxFieldSize,
		}),
	}
	if cfg.BubbleLateErrors {
		out = append(out, WithBubbleLateErrors())
	}
	return append(out, opts...)
}
