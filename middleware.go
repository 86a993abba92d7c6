package partstream

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/partstream/partstream/multipart"
	"github.com/partstream/partstream/pkg/async"
)

// ErrorHandler renders a multipart failure to the client. It is only invoked
// when the handler has not yet written a response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type config struct {
	decoderOpts  []multipart.Option
	logger       *slog.Logger
	autoDrain    bool
	errorHandler ErrorHandler
}

// Option configures the interceptor middleware.
type Option func(*config)

// WithDecoderOptions passes options through to each request's decoder.
func WithDecoderOptions(opts ...multipart.Option) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, opts...)
	}
}

// WithConfig applies an env-loaded decoder configuration, including the
// auto-drain toggle.
func WithConfig(cfg multipart.Config) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, multipart.FromConfig(cfg)...)
		c.autoDrain = cfg.AutoDrain
	}
}

// WithLogger sets the logger for interceptor and decoder lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithoutAutoDrain disables the automatic draining of file parts the handler
// never claimed. The application must then guarantee full consumption
// itself; unconsumed parts cause the parse to be torn down when the handler
// returns.
func WithoutAutoDrain() Option {
	return func(c *config) { c.autoDrain = false }
}

// WithErrorHandler overrides how pre-response multipart failures are
// rendered. The default writes the error text with the status from
// multipart.StatusFor.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), multipart.StatusFor(err))
}

// Middleware returns the request interceptor. For each multipart request it
// starts a decoder, exposes the decoded streams on the request context for
// Files, Fields and BufferedForm, and manages the three-phase lifecycle:
//
// Parsing: the decoder's run loop is started but reads no body bytes until
// the handler subscribes through Files, Fields or BufferedForm. Handling: the
// wrapped handler executes with the form on its context. Draining: begins the
// moment the handler starts writing its response and runs concurrently with
// the rest of the handler body, consuming file parts no reader claimed. A
// part counts as claimed on its first Read, Drain or Save: a handler that
// still intends to read a received part must start reading it before writing
// any response bytes, or the drain pass may consume it first. When the
// handler returns, the consumer-done signal flips the decoder into late-error
// swallowing and lets it consume whatever is still unread.
//
// Non-multipart requests pass through untouched.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		logger:       slog.Default(),
		autoDrain:    true,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
				next.ServeHTTP(w, r)
				return
			}

			done := make(chan struct{})
			decOpts := append([]multipart.Option{}, cfg.decoderOpts...)
			decOpts = append(decOpts,
				multipart.WithConsumerDone(done),
				multipart.WithLogger(cfg.logger),
			)
			dec, err := multipart.NewDecoder(r.Body, r.Header, decOpts...)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			defer func() { _ = dec.Close() }()

			form := dec.Form()

			runCtx, cancelRun := context.WithCancel(r.Context())
			defer cancelRun()

			runFut := async.Async(runCtx, dec, runDecoder)
			dr := &drainer{ctx: runCtx, form: form, enabled: cfg.autoDrain}

			// Handler subscriptions live on this derived context so that a
			// subscription the handler abandoned mid-stream is released when
			// the handler returns, instead of blocking the decoder forever.
			handlerCtx, cancelHandler := context.WithCancel(r.Context())
			defer cancelHandler()

			tw := &triggerWriter{ResponseWriter: w, hook: dr.ensure}
			next.ServeHTTP(tw, r.WithContext(withForm(handlerCtx, form)))

			close(done)
			cancelHandler()

			if !cfg.autoDrain {
				// Without draining the decoder may be stalled on an
				// unconsumed part; tear the parse down instead of leaking it.
				cancelRun()
			}

			_, runErr := runFut.Await()
			dr.wait()

			if runErr != nil && !tw.wroteHeader() {
				cfg.errorHandler(w, r, runErr)
			}
		})
	}
}

func runDecoder(ctx context.Context, d *multipart.Decoder) (struct{}, error) {
	return struct{}{}, d.Run(ctx)
}

// drainer consumes file parts on the handler's behalf once the Draining phase
// begins. Its subscription is what unblocks the decoder when the handler
// started responding without ever subscribing; parts already claimed by a
// reader are left alone. The claim check happens when the drainer receives
// the part, so a handler holding an unread part past its first response
// write loses it to the drain.
type drainer struct {
	ctx     context.Context
	form    *multipart.Form
	enabled bool

	once sync.Once
	wg   sync.WaitGroup
}

// ensure attaches the draining subscription. Idempotent; a no-op when auto
// draining is disabled.
func (d *drainer) ensure() {
	if !d.enabled {
		return
	}
	d.once.Do(func() {
		sub := d.form.Files.Subscribe(d.ctx)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for p := range sub.C() {
				if !p.Claimed() {
					_ = p.Drain()
				}
			}
		}()
	})
}

// wait blocks until any drain work finished.
func (d *drainer) wait() {
	d.wg.Wait()
}

// triggerWriter fires hook once, on the first response byte or header the
// handler writes. That moment marks the transition from Handling to
// Draining.
type triggerWriter struct {
	http.ResponseWriter
	hook  func()
	once  sync.Once
	wrote bool
	mu    sync.Mutex
}

func (t *triggerWriter) WriteHeader(status int) {
	t.mark()
	t.ResponseWriter.WriteHeader(status)
}

func (t *triggerWriter) Write(b []byte) (int, error) {
	t.mark()
	return t.ResponseWriter.Write(b)
}

// Unwrap supports http.ResponseController.
func (t *triggerWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

func (t *triggerWriter) mark() {
	t.mu.Lock()
	t.wrote = true
	t.mu.Unlock()
	t.once.Do(t.hook)
}

func (t *triggerWriter) wroteHeader() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wrote
}
