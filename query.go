package partstream

import (
	"context"
	"errors"

	"github.com/partstream/partstream/multipart"
	"github.com/partstream/partstream/stream"
)

// ErrNoForm is the terminal error of streams requested from a context that
// carries no intercepted multipart form.
var ErrNoForm = errors.New("no multipart form on request context")

// Files returns the request's file stream, narrowed by the given selectors.
// With no selectors every file passes and nothing is validated. With
// selectors, parts matching none of them are drained and dropped, and each
// required selector that never matched raises a MissingFilesError at stream
// completion. Each selector matches by its own semantics: All passes every
// file, Exact matches one field name.
//
//	parts := partstream.Files(ctx, multipart.Exact("avatar"),
//		multipart.Exact("cover").Optional())
func Files(ctx context.Context, selectors ...multipart.Selector) stream.Source[*multipart.FilePart] {
	form := FormFromContext(ctx)
	if form == nil {
		return failedSource[*multipart.FilePart](ErrNoForm)
	}

	sub := form.Files.Subscribe(ctx)
	if len(selectors) == 0 {
		return sub
	}

	filtered := multipart.SelectFiles(ctx, sub, selectors...)
	return multipart.RequireFiles(ctx, filtered, selectors...)
}

// Fields returns the request's field stream, narrowed by the given
// selectors. Selectors may be exact names or prefixes (multipart.Prefix);
// required selectors that match nothing raise a MissingFieldsError at
// completion.
func Fields(ctx context.Context, selectors ...multipart.Selector) stream.Source[multipart.FieldPart] {
	form := FormFromContext(ctx)
	if form == nil {
		return failedSource[multipart.FieldPart](ErrNoForm)
	}

	sub := form.Fields.Subscribe(ctx)
	if len(selectors) == 0 {
		return sub
	}

	filtered := multipart.SelectFields(ctx, sub, selectors...)
	return multipart.RequireFields(ctx, filtered, selectors...)
}

// BufferedForm materializes the request's whole form into memory. Intended
// for small payloads, typically combined with multipart.Bind.
func BufferedForm(ctx context.Context) (*multipart.BufferedForm, error) {
	form := FormFromContext(ctx)
	if form == nil {
		return nil, ErrNoForm
	}
	return multipart.Buffer(ctx, form)
}

func failedSource[T any](err error) stream.Source[T] {
	p := stream.NewPipe[T](0)
	p.Fail(err)
	return p
}
