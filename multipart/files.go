package multipart

import (
	"context"
	"io"

	"github.com/partstream/partstream/stream"
)

// FilterFiles passes through file parts whose field name is one of names,
// matched exactly. Every part outside the set is drained before being
// dropped — an undrained part stalls the tokenizer indefinitely, since it
// cannot advance past bytes nobody reads.
func FilterFiles(ctx context.Context, in stream.Source[*FilePart], names ...string) stream.Source[*FilePart] {
	selectors := make([]Selector, len(names))
	for i, n := range names {
		selectors[i] = Exact(n)
	}
	return SelectFiles(ctx, in, selectors...)
}

// SelectFiles passes through file parts matching any of the selectors and
// drains the rest. Unlike FilterFiles it honors selector semantics directly,
// so All passes every part instead of matching the empty field name.
func SelectFiles(ctx context.Context, in stream.Source[*FilePart], selectors ...Selector) stream.Source[*FilePart] {
	out := stream.NewPipe[*FilePart](0)
	go func() {
		dead := false
		for p := range in.C() {
			if dead || !anyMatches(selectors, p.FieldName) {
				_ = p.Drain()
				continue
			}
			if err := out.Send(ctx, p); err != nil {
				// Consumer is gone; keep draining so the parse can finish.
				dead = true
				_ = p.Drain()
			}
		}
		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		out.Close()
	}()
	return out
}

// RequireFiles passes every part through unchanged while tracking which
// required selectors have been observed. If the upstream completes with
// required selectors still unmatched, the stream fails with a
// MissingFilesError listing them; an upstream error is forwarded untouched
// and never masked by validation.
func RequireFiles(ctx context.Context, in stream.Source[*FilePart], selectors ...Selector) stream.Source[*FilePart] {
	out := stream.NewPipe[*FilePart](0)
	go func() {
		matched := make([]bool, len(selectors))
		for p := range in.C() {
			for i, sel := range selectors {
				if sel.Matches(p.FieldName) {
					matched[i] = true
				}
			}
			if err := out.Send(ctx, p); err != nil {
				_ = p.Drain()
			}
		}

		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		if missing := unsatisfied(selectors, matched); len(missing) > 0 {
			out.Fail(&MissingFilesError{Names: missing})
			return
		}
		out.Close()
	}()
	return out
}

// BufferFiles fully reads each file part into a FileBuffer carrying the same
// metadata. It removes backpressure entirely, so it is intended only for
// files known to be small (or bounded by Limits.FileSize).
func BufferFiles(ctx context.Context, in stream.Source[*FilePart]) stream.Source[*FileBuffer] {
	out := stream.NewPipe[*FileBuffer](0)
	go func() {
		for p := range in.C() {
			content, err := io.ReadAll(p)
			if err != nil {
				out.Fail(err)
				drainRemaining(in)
				return
			}
			buf := &FileBuffer{
				FieldName: p.FieldName,
				FileName:  p.FileName,
				Encoding:  p.Encoding,
				MIMEType:  p.MIMEType,
				Content:   content,
			}
			if err := out.Send(ctx, buf); err != nil {
				drainRemaining(in)
				return
			}
		}
		if err := in.Err(); err != nil {
			out.Fail(err)
			return
		}
		out.Close()
	}()
	return out
}

// drainRemaining exhausts leftover parts after a consumer-side failure so
// the tokenizer never stalls on them.
func drainRemaining(in stream.Source[*FilePart]) {
	for p := range in.C() {
		_ = p.Drain()
	}
}

// unsatisfied returns the string forms of required selectors that never
// matched, in declaration order.
func unsatisfied(selectors []Selector, matched []bool) []string {
	var missing []string
	for i, sel := range selectors {
		if sel.Required() && !matched[i] {
			missing = append(missing, sel.String())
		}
	}
	return missing
}
