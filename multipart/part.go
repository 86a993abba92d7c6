package multipart

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// FilePart is the streaming handle for one uploaded file. It owns the
// underlying tokenizer part and forwards reads to it; metadata fields are
// immutable after construction and safe to read concurrently.
//
// A FilePart is exclusively consumed by whichever single reader first calls
// Read, Drain, or a storage sink's Save. Concurrent readers are a caller
// error. The decoder does not advance past a part until it has been read to
// end-of-stream or drained.
type FilePart struct {
	// FieldName is the form field the file was uploaded under.
	FieldName string

	// FileName is the client-provided file name.
	FileName string

	// Encoding is the part's Content-Transfer-Encoding ("7bit" if absent).
	Encoding string

	// MIMEType is the part's media type ("application/octet-stream" if absent).
	MIMEType string

	src       io.Reader
	limited   bool
	remaining int64

	claimed atomic.Bool

	mu        sync.Mutex
	truncated bool
	rerr      error

	eos     chan struct{}
	eosOnce sync.Once
}

func newFilePart(src io.Reader, fieldName, fileName, encoding, mimeType string, sizeLimit int64) *FilePart {
	return &FilePart{
		FieldName: fieldName,
		FileName:  fileName,
		Encoding:  encoding,
		MIMEType:  mimeType,
		src:       src,
		limited:   sizeLimit > 0,
		remaining: sizeLimit,
		eos:       make(chan struct{}),
	}
}

// Read streams the file's bytes in arrival order. At the size limit it
// returns an error wrapping ErrTruncatedFile; at the natural end of the part
// it returns io.EOF. The first call claims the part.
func (p *FilePart) Read(b []byte) (int, error) {
	p.claimed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rerr != nil {
		return 0, p.rerr
	}

	if p.limited {
		if p.remaining == 0 {
			// A single probe byte distinguishes a part that ends exactly at
			// the limit from one that was cut off by it.
			var probe [1]byte
			n, err := p.src.Read(probe[:])
			if n > 0 {
				p.truncated = true
				return 0, p.finishLocked(fmt.Errorf("%w: field %q", ErrTruncatedFile, p.FieldName))
			}
			if err != nil && err != io.EOF {
				return 0, p.finishLocked(fmt.Errorf("%w: %v", ErrUpstreamStream, err))
			}
			return 0, p.finishLocked(io.EOF)
		}
		if int64(len(b)) > p.remaining {
			b = b[:p.remaining]
		}
	}

	n, err := p.src.Read(b)
	if p.limited {
		p.remaining -= int64(n)
	}
	switch {
	case err == io.EOF:
		return n, p.finishLocked(io.EOF)
	case err != nil:
		return n, p.finishLocked(fmt.Errorf("%w: %v", ErrUpstreamStream, err))
	}
	return n, nil
}

// finishLocked records the sticky terminal read result and signals
// end-of-stream. Callers must hold p.mu.
func (p *FilePart) finishLocked(err error) error {
	p.rerr = err
	p.eosOnce.Do(func() { close(p.eos) })
	return err
}

// Drain consumes and discards the remainder of the part so the tokenizer can
// advance. It claims the part and returns the terminal read error, if any.
func (p *FilePart) Drain() error {
	buf := make([]byte, 32*1024)
	for {
		_, err := p.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// abort installs err as the sticky read error for any future reader and
// signals end-of-stream. Used by decoder teardown; idempotent, keeps the
// first error.
func (p *FilePart) abort(err error) {
	p.mu.Lock()
	if p.rerr == nil {
		p.rerr = err
	}
	p.mu.Unlock()
	p.eosOnce.Do(func() { close(p.eos) })
}

// terminalErr reports the sticky read error, with io.EOF normalized to nil.
func (p *FilePart) terminalErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rerr == io.EOF {
		return nil
	}
	return p.rerr
}

// Truncated reports whether the part hit the file size limit. It is only
// meaningful once the part reached end-of-stream.
func (p *FilePart) Truncated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.truncated
}

// Claimed reports whether any reader has started consuming the part.
func (p *FilePart) Claimed() bool {
	return p.claimed.Load()
}

// Consumed reports whether the part reached end-of-stream (fully read,
// drained, errored, or aborted).
func (p *FilePart) Consumed() bool {
	select {
	case <-p.eos:
		return true
	default:
		return false
	}
}

// FieldPart is one decoded non-file form field, fully materialized since
// field values are bounded by the configured field size limit.
type FieldPart struct {
	// Name is the form field name as sent by the client.
	Name string

	// Value is the decoded field value.
	Value string

	// Encoding is the part's Content-Transfer-Encoding ("7bit" if absent).
	Encoding string

	// MIMEType is the part's media type ("text/plain" if absent).
	MIMEType string

	basename     string
	associations []string
	associative  bool
}

// IsAssociative reports whether the field name was recognized as bracket
// notation by Associative.
func (f FieldPart) IsAssociative() bool { return f.associative }

// Basename returns the prefix before the first bracket group of an
// associative field, or the empty string for a non-associative one.
func (f FieldPart) Basename() string { return f.basename }

// Associations returns the bracket group contents of an associative field
// name, in order.
func (f FieldPart) Associations() []string { return f.associations }

// FileBuffer is a fully buffered file part with the same metadata as the
// FilePart it was read from.
type FileBuffer struct {
	FieldName string
	FileName  string
	Encoding  string
	MIMEType  string
	Content   []byte
}
