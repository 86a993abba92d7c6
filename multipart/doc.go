// Package multipart incrementally decodes a multipart/form-data request body
// into two concurrent typed event streams: one of streaming file parts, one
// of materialized fields.
//
// The Decoder drives the standard library's boundary tokenizer
// (mime/multipart.Reader) and publishes each part, in body order, onto the
// Form's Files and Fields streams. It enforces per-request count and size
// limits, detects truncation, and guarantees forward progress: the tokenizer
// never advances past a file part whose bytes have not been consumed, and a
// part nobody subscribed to is drained rather than left to stall the parse.
//
// Basic usage:
//
//	dec, err := multipart.NewDecoder(r.Body, r.Header,
//		multipart.WithLimits(multipart.Limits{FileSize: 10 << 20}),
//	)
//	if err != nil {
//		http.Error(w, err.Error(), multipart.StatusFor(err))
//		return
//	}
//	form := dec.Form()
//	files := form.Files.Subscribe(r.Context())
//	go func() {
//		for part := range files.C() {
//			saveSomewhere(part) // reading the part lets the decoder advance
//		}
//	}()
//	if err := dec.Run(r.Context()); err != nil {
//		http.Error(w, err.Error(), multipart.StatusFor(err))
//	}
//
// Operators derive filtered and validated views of the streams: FilterFiles
// drains and drops parts outside a field name set, RequireFiles and
// RequireFields raise missing-item errors at stream completion, BufferFiles
// and Buffer materialize small payloads, and Bind populates tagged structs
// from a buffered form. Field names in bracket notation ("user[address][city]")
// are parsed by ParseAssociative.
//
// Failure semantics: limit, truncation and upstream errors fan out to the
// file stream, the field stream and Run's return value exactly once; a file
// part being actively read additionally observes the error on its own Read
// path. Errors map to HTTP status codes via StatusFor.
package multipart
