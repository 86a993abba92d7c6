// Package partstream turns multipart/form-data request bodies into
// concurrent typed streams of uploaded files and form fields, decoded
// incrementally while the body is still arriving.
//
// The Middleware intercepts multipart requests, attaches the decoded streams
// to the request context, and guarantees that every uploaded byte is
// eventually consumed — file parts the handler never subscribes to are
// drained automatically so the underlying parser can always finish. Handlers
// retrieve their slice of the request with Files, Fields or BufferedForm:
//
//	mux.Handle("POST /upload", partstream.Middleware(
//		partstream.WithDecoderOptions(multipart.WithLimits(multipart.Limits{
//			FileSize: 25 << 20,
//			Files:    3,
//		})),
//	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//		files := partstream.Files(r.Context(), multipart.Exact("document"))
//		for part := range files.C() {
//			if _, err := storage.Save(r.Context(), part, part.FileName); err != nil {
//				http.Error(w, "save failed", http.StatusInternalServerError)
//				return
//			}
//		}
//		if err := files.Err(); err != nil {
//			http.Error(w, err.Error(), multipart.StatusFor(err))
//			return
//		}
//		w.WriteHeader(http.StatusCreated)
//	})))
//
// See the multipart package for the decoder, limits, operators and error
// taxonomy, and the storage package for streaming sinks.
package partstream
