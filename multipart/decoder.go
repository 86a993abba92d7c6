package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	mp "mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/partstream/partstream/stream"
)

// Form is the pair of typed event streams a request body decodes into. File
// and field events are published in body order; no ordering holds between
// the two streams.
type Form struct {
	Files  *stream.Channel[*FilePart]
	Fields *stream.Channel[FieldPart]
}

// Decoder incrementally decodes one multipart request body onto a Form. The
// low-level boundary tokenizer is mime/multipart.Reader; the decoder drives
// it, enforces limits, and owns the request byte source for the duration of
// the parse.
type Decoder struct {
	reader *mp.Reader
	form   *Form
	opts   options
	log    *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// errHalt marks a failure that was swallowed because the consumer already
// completed; the parse stops but Run reports success.
var errHalt = errors.New("multipart: halt")

// NewDecoder validates the request headers and prepares a decoder over body.
// No body bytes are read until Run observes the first subscriber. A missing
// or malformed multipart Content-Type returns an error wrapping
// ErrNotMultipart.
func NewDecoder(body io.Reader, header http.Header, opts ...Option) (*Decoder, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ct := header.Get("Content-Type")
	if ct == "" {
		return nil, fmt.Errorf("%w: missing Content-Type", ErrNotMultipart)
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("%w: %s", ErrNotMultipart, mediaType)
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return nil, fmt.Errorf("%w: missing boundary", ErrNotMultipart)
	}

	return &Decoder{
		reader: mp.NewReader(body, boundary),
		form: &Form{
			Files:  stream.New[*FilePart](o.buffer),
			Fields: stream.New[FieldPart](o.buffer),
		},
		opts:   o,
		log:    o.logger,
		closed: make(chan struct{}),
	}, nil
}

// Form returns the decoder's output streams. The pair is available before
// Run starts; events flow only while Run is driving the tokenizer.
func (d *Decoder) Form() *Form {
	return d.form
}

// Run drives the tokenizer until the body is exhausted, a limit or
// truncation fails the parse, or the decoder is torn down. It blocks before
// the first body read until a subscriber attaches to either stream, then
// publishes every part in body order, waiting at each file part for its
// bytes to be consumed before advancing.
//
// On failure both streams and the returned error observe the same error
// exactly once — unless the consumer-done signal has fired and late-error
// bubbling is off, in which case the failure is swallowed and both streams
// complete cleanly.
func (d *Decoder) Run(ctx context.Context) error {
	// The consumer-done signal also opens the gate: a consumer that finished
	// without ever subscribing will never observe events, but the body still
	// has to be consumed for the connection to be reusable.
	select {
	case <-d.form.Files.Subscribed():
	case <-d.form.Fields.Subscribed():
	case <-d.opts.consumerDone:
	case <-ctx.Done():
		return d.finish(d.fail(ctx, ctx.Err()))
	case <-d.closed:
		return d.finish(d.fail(ctx, ErrDecoderClosed))
	}

	var parts, files, fields int64
	for {
		select {
		case <-ctx.Done():
			return d.finish(d.fail(ctx, ctx.Err()))
		case <-d.closed:
			return d.finish(d.fail(ctx, ErrDecoderClosed))
		default:
		}

		part, err := d.reader.NextPart()
		if errors.Is(err, io.EOF) {
			d.form.Files.Close()
			d.form.Fields.Close()
			d.log.DebugContext(ctx, "multipart parse finished",
				slog.Int64("parts", parts), slog.Int64("files", files), slog.Int64("fields", fields))
			return nil
		}
		if err != nil {
			return d.finish(d.fail(ctx, fmt.Errorf("%w: %v", ErrUpstreamStream, err)))
		}

		parts++
		if l := d.opts.limits.Parts; l > 0 && parts > l {
			return d.finish(d.fail(ctx, fmt.Errorf("%w: limit %d", ErrPartsLimit, l)))
		}

		if part.FileName() != "" {
			files++
			if l := d.opts.limits.Files; l > 0 && files > l {
				return d.finish(d.fail(ctx, fmt.Errorf("%w: limit %d", ErrFilesLimit, l)))
			}
			if err := d.handleFile(ctx, part); err != nil {
				return d.finish(err)
			}
			continue
		}

		fields++
		if l := d.opts.limits.Fields; l > 0 && fields > l {
			return d.finish(d.fail(ctx, fmt.Errorf("%w: limit %d", ErrFieldsLimit, l)))
		}
		if err := d.handleField(ctx, part); err != nil {
			return d.finish(err)
		}
	}
}

// finish normalizes swallowed failures to a clean result.
func (d *Decoder) finish(err error) error {
	if errors.Is(err, errHalt) {
		return nil
	}
	return err
}

// handleFile wraps one tokenizer part into a FilePart, publishes it, and
// waits for its end-of-stream before letting the tokenizer advance.
func (d *Decoder) handleFile(ctx context.Context, part *mp.Part) error {
	mediaType, _ := partMediaType(part.Header, "application/octet-stream")
	fp := newFilePart(part, part.FormName(), part.FileName(),
		transferEncoding(part.Header), mediaType, d.opts.limits.FileSize)

	delivered, err := d.form.Files.Publish(ctx, fp)
	if err != nil {
		fp.abort(err)
		return d.fail(ctx, err)
	}
	if delivered == 0 {
		// Nobody observed the part and nobody ever will; consume it here so
		// the parse can proceed.
		if derr := fp.Drain(); derr != nil {
			return d.fail(ctx, derr)
		}
	}

	// The tokenizer cannot proceed past a part whose bytes are unread: block
	// until some consumer (or the drain pass) exhausts it. Once the consumer
	// completed, no reader will ever finish the part, so consume it here.
	select {
	case <-fp.eos:
	case <-d.opts.consumerDone:
		if derr := fp.Drain(); derr != nil {
			return d.fail(ctx, derr)
		}
	case <-ctx.Done():
		fp.abort(ctx.Err())
		return d.fail(ctx, ctx.Err())
	case <-d.closed:
		fp.abort(ErrDecoderClosed)
		return d.fail(ctx, ErrDecoderClosed)
	}

	if fp.Truncated() {
		return d.fail(ctx, fmt.Errorf("%w: field %q", ErrTruncatedFile, fp.FieldName))
	}
	if terr := fp.terminalErr(); terr != nil {
		return d.fail(ctx, terr)
	}
	return nil
}

// handleField materializes one field part and publishes it. Values hitting
// the field size limit fail the parse; the field is not published.
func (d *Decoder) handleField(ctx context.Context, part *mp.Part) error {
	var r io.Reader = part
	limit := d.opts.limits.FieldSize
	if limit > 0 {
		r = io.LimitReader(part, limit+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return d.fail(ctx, fmt.Errorf("%w: %v", ErrUpstreamStream, err))
	}
	if limit > 0 && int64(len(raw)) > limit {
		return d.fail(ctx, fmt.Errorf("%w: field %q", ErrTruncatedField, part.FormName()))
	}

	mediaType, charset := partMediaType(part.Header, "text/plain")
	field := FieldPart{
		Name:     part.FormName(),
		Value:    decodeCharset(raw, charset),
		Encoding: transferEncoding(part.Header),
		MIMEType: mediaType,
	}
	if _, err := d.form.Fields.Publish(ctx, field); err != nil && !errors.Is(err, stream.ErrClosed) {
		return d.fail(ctx, err)
	}
	return nil
}

// fail routes an error through the decoder's fail path: both streams and the
// caller observe it exactly once. After the consumer-done signal it is
// swallowed instead, unless late-error bubbling is configured.
func (d *Decoder) fail(ctx context.Context, err error) error {
	if d.consumerDone() && !d.opts.bubbleLateErrors {
		d.log.DebugContext(ctx, "multipart error after consumer completion swallowed",
			slog.Any("error", err))
		d.form.Files.Close()
		d.form.Fields.Close()
		return errHalt
	}

	d.form.Files.Fail(err)
	d.form.Fields.Fail(err)
	return err
}

func (d *Decoder) consumerDone() bool {
	if d.opts.consumerDone == nil {
		return false
	}
	select {
	case <-d.opts.consumerDone:
		return true
	default:
		return false
	}
}

// Close tears the decoder down: Run stops at the next suspension point and
// detaches from the byte source. Idempotent and safe to call before Run and
// after Run returned.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func transferEncoding(h textproto.MIMEHeader) string {
	if v := h.Get("Content-Transfer-Encoding"); v != "" {
		return v
	}
	return "7bit"
}

// partMediaType parses a part's Content-Type, falling back to def, and
// returns the media type together with any declared charset.
func partMediaType(h textproto.MIMEHeader, def string) (mediaType, charset string) {
	ct := h.Get("Content-Type")
	if ct == "" {
		return def, ""
	}
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return def, ""
	}
	return mt, params["charset"]
}
