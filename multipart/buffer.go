package multipart

import (
	"context"

	"github.com/partstream/partstream/pkg/async"
	"github.com/partstream/partstream/stream"
)

// BufferedForm is a fully materialized multipart form: every file read into
// memory and every field collected, keyed by field name. Use only when the
// payload is known to be small or bounded by Limits.
type BufferedForm struct {
	Files  map[string][]*FileBuffer
	Fields map[string][]string
}

// FieldValue returns the first value for the named field, or the empty
// string.
func (f *BufferedForm) FieldValue(name string) string {
	if vs := f.Fields[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// File returns the first buffered file for the named field, or nil.
func (f *BufferedForm) File(name string) *FileBuffer {
	if fs := f.Files[name]; len(fs) > 0 {
		return fs[0]
	}
	return nil
}

// Buffer collects a Form into a BufferedForm. It attaches to both streams
// atomically with respect to the decoder's subscription gate, then reads them
// concurrently, since file and field events interleave in body order and
// consuming them sequentially would stall the decoder. Call it before the
// decoder starts publishing or earlier events are missed.
func Buffer(ctx context.Context, form *Form) (*BufferedForm, error) {
	filesSub, fieldsSub := stream.SubscribePair(ctx, form.Files, form.Fields)

	fieldsFut := async.Async(ctx, fieldsSub, collectFields)

	files := make(map[string][]*FileBuffer)
	buffered := BufferFiles(ctx, filesSub)
	for fb := range buffered.C() {
		files[fb.FieldName] = append(files[fb.FieldName], fb)
	}
	filesErr := buffered.Err()

	fields, fieldsErr := fieldsFut.Await()
	if filesErr != nil {
		return nil, filesErr
	}
	if fieldsErr != nil {
		return nil, fieldsErr
	}

	return &BufferedForm{Files: files, Fields: fields}, nil
}

func collectFields(_ context.Context, sub *stream.Subscription[FieldPart]) (map[string][]string, error) {
	fields := make(map[string][]string)
	for f := range sub.C() {
		fields[f.Name] = append(fields[f.Name], f.Value)
	}
	if err := sub.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}
