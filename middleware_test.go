package partstream_test

import (
	"bytes"
	"context"
	"io"
	mp "mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstream/partstream"
	"github.com/partstream/partstream/multipart"
)

type bodyPart struct {
	field, filename, content string // filename empty means a plain field
}

func multipartRequest(t *testing.T, parts ...bodyPart) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := mp.NewWriter(&buf)
	for _, p := range parts {
		if p.filename != "" {
			fw, err := w.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte(p.content))
			require.NoError(t, err)
			continue
		}
		require.NoError(t, w.WriteField(p.field, p.content))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMiddlewarePassesThroughNonMultipart(t *testing.T) {
	t.Parallel()

	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, partstream.FormFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareHandlerReadsFile(t *testing.T) {
	t.Parallel()

	var gotContent string
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := partstream.Files(r.Context(), multipart.Exact("document"))
		for p := range files.C() {
			content, err := io.ReadAll(p)
			require.NoError(t, err)
			gotContent = string(content)
		}
		require.NoError(t, files.Err())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "document", filename: "test.txt", content: "hello world"},
	))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello world", gotContent)
}

func TestMiddlewareHandlerReadsFields(t *testing.T) {
	t.Parallel()

	got := map[string]string{}
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := partstream.Fields(r.Context())
		for f := range fields.C() {
			got[f.Name] = f.Value
		}
		require.NoError(t, fields.Err())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "name", content: "John Doe"},
		bodyPart{field: "city", content: "Zurich"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"name": "John Doe", "city": "Zurich"}, got)
}

func TestMiddlewareFilesAllSelector(t *testing.T) {
	t.Parallel()

	var got []string
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := partstream.Files(r.Context(), multipart.All())
		for p := range files.C() {
			content, err := io.ReadAll(p)
			require.NoError(t, err)
			got = append(got, string(content))
		}
		require.NoError(t, files.Err())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "avatar", filename: "me.png", content: "png"},
		bodyPart{field: "attachment", filename: "x.bin", content: "bytes"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"png", "bytes"}, got)
}

func TestMiddlewareFieldsAllSelector(t *testing.T) {
	t.Parallel()

	got := map[string]string{}
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := partstream.Fields(r.Context(), multipart.All())
		for f := range fields.C() {
			got[f.Name] = f.Value
		}
		require.NoError(t, fields.Err())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "name", content: "Ada"},
		bodyPart{field: "city", content: "Paris"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"name": "Ada", "city": "Paris"}, got)
}

func TestMiddlewareAutoDrainsIgnoredFiles(t *testing.T) {
	t.Parallel()

	// The handler never touches the form; every file part must still be
	// consumed so the request completes instead of stalling.
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "a", filename: "a.bin", content: "bytes the handler ignores"},
		bodyPart{field: "b", filename: "b.bin", content: "more ignored bytes"},
	))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMiddlewareReportsErrorBeforeResponse(t *testing.T) {
	t.Parallel()

	handler := partstream.Middleware(
		partstream.WithDecoderOptions(multipart.WithLimits(multipart.Limits{Files: 1})),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := partstream.Files(r.Context())
		for p := range files.C() {
			_, _ = io.ReadAll(p)
		}
		// The limit failure arrives on the stream; return without writing so
		// the interceptor renders it.
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "a", filename: "a.bin", content: "1"},
		bodyPart{field: "b", filename: "b.bin", content: "2"},
	))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMiddlewareSwallowsErrorsAfterResponse(t *testing.T) {
	t.Parallel()

	// The handler responds without reading anything. The oversized file is
	// only discovered during the post-response drain, where the failure no
	// longer concerns the handler and must not override its response.
	handler := partstream.Middleware(
		partstream.WithDecoderOptions(multipart.WithLimits(multipart.Limits{FileSize: 4})),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "big", filename: "big.bin", content: "far beyond the limit"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMalformedMultipart(t *testing.T) {
	t.Parallel()

	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for an invalid multipart request")
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data") // no boundary

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddlewareCustomErrorHandler(t *testing.T) {
	t.Parallel()

	handler := partstream.Middleware(
		partstream.WithDecoderOptions(multipart.WithLimits(multipart.Limits{Fields: 1})),
		partstream.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			w.WriteHeader(http.StatusTeapot)
		}),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := partstream.Fields(r.Context())
		for range fields.C() {
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "a", content: "1"},
		bodyPart{field: "b", content: "2"},
	))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareBufferedFormAndBind(t *testing.T) {
	t.Parallel()

	type uploadRequest struct {
		Title  string                `form:"title"`
		Avatar *multipart.FileBuffer `file:"avatar"`
	}

	var got uploadRequest
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form, err := partstream.BufferedForm(r.Context())
		require.NoError(t, err)
		require.NoError(t, multipart.Bind(form, &got))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "title", content: "profile"},
		bodyPart{field: "avatar", filename: "me.png", content: "png bytes"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "profile", got.Title)
	require.NotNil(t, got.Avatar)
	assert.Equal(t, "png bytes", string(got.Avatar.Content))
}

func TestMiddlewareRequiredFileMissing(t *testing.T) {
	t.Parallel()

	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := partstream.Files(r.Context(), multipart.Exact("avatar"))
		for p := range files.C() {
			_, _ = io.ReadAll(p)
		}
		if err := files.Err(); err != nil {
			http.Error(w, err.Error(), multipart.StatusFor(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "other", filename: "x.bin", content: "bytes"},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "avatar")
}

func TestMiddlewareAbandonedSubscriptionDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	// The handler subscribes, reads one part, and returns mid-stream. The
	// interceptor must release the abandoned subscription and drain the rest.
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		files := partstream.Files(r.Context())
		p, ok := <-files.C()
		require.True(t, ok)
		_, _ = io.ReadAll(p)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, multipartRequest(t,
		bodyPart{field: "a", filename: "a.bin", content: "first"},
		bodyPart{field: "b", filename: "b.bin", content: "second, never received"},
		bodyPart{field: "c", filename: "c.bin", content: "third, never received"},
	))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareClientAbortDuringDrain(t *testing.T) {
	t.Parallel()

	req := multipartRequest(t,
		bodyPart{field: "a", filename: "a.bin", content: "first"},
		bodyPart{field: "b", filename: "b.bin", content: "second"},
		bodyPart{field: "c", filename: "c.bin", content: "third"},
	)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	// The handler responds without reading, starting the drain pass, and the
	// client connection then goes away mid-drain. The request goroutine must
	// still run to completion.
	handler := partstream.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		cancel()
	}))

	rec := httptest.NewRecorder()
	finished := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("request goroutine hung after client abort during drain")
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFilesWithoutFormOnContext(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	files := partstream.Files(req.Context())
	for range files.C() {
	}
	assert.ErrorIs(t, files.Err(), partstream.ErrNoForm)

	fields := partstream.Fields(req.Context())
	for range fields.C() {
	}
	assert.ErrorIs(t, fields.Err(), partstream.ErrNoForm)

	_, err := partstream.BufferedForm(req.Context())
	assert.ErrorIs(t, err, partstream.ErrNoForm)
}
