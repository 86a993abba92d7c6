package storage_test

import (
	"bytes"
	"context"
	mp "mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstream/partstream/multipart"
	"github.com/partstream/partstream/storage"
)

// decodeSingleFile runs a decoder over a one-file form and hands back the
// live file part. The returned cleanup drains leftovers and waits for the
// parse to finish.
func decodeSingleFile(t *testing.T, filename, content string, limits multipart.Limits) (*multipart.FilePart, func() error) {
	t.Helper()

	var buf bytes.Buffer
	w := mp.NewWriter(&buf)
	fw, err := w.CreateFormFile("doc", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	header := http.Header{}
	header.Set("Content-Type", w.FormDataContentType())

	dec, err := multipart.NewDecoder(&buf, header, multipart.WithLimits(limits))
	require.NoError(t, err)

	ctx := context.Background()
	sub := dec.Form().Files.Subscribe(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- dec.Run(ctx) }()

	part, ok := <-sub.C()
	require.True(t, ok)

	return part, func() error {
		for p := range sub.C() {
			_ = p.Drain()
		}
		return <-runErr
	}
}

func TestLocalStorageSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "/files")
	require.NoError(t, err)

	part, finish := decodeSingleFile(t, "report.txt", "quarterly numbers", multipart.Limits{})

	file, err := store.Save(context.Background(), part, "docs/report.txt")
	require.NoError(t, err)
	require.NoError(t, finish())

	assert.Equal(t, "report.txt", file.Filename)
	assert.Equal(t, int64(len("quarterly numbers")), file.Size)
	assert.Equal(t, ".txt", file.Extension)
	assert.Equal(t, filepath.Join("docs", "report.txt"), file.Path)

	onDisk, err := os.ReadFile(filepath.Join(dir, "docs", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(onDisk))

	assert.True(t, store.Exists(context.Background(), "docs/report.txt"))
	assert.Equal(t, "/files/docs/report.txt", store.URL("docs/report.txt"))
}

func TestLocalStorageSaveTruncatedPartRemovesPartialFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "")
	require.NoError(t, err)

	part, finish := decodeSingleFile(t, "big.bin",
		"well beyond the four byte limit", multipart.Limits{FileSize: 4})

	_, err = store.Save(context.Background(), part, "big.bin")
	assert.ErrorIs(t, err, multipart.ErrTruncatedFile)
	assert.ErrorIs(t, finish(), multipart.ErrTruncatedFile)

	_, statErr := os.Stat(filepath.Join(dir, "big.bin"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(dir, "root"), "")
	require.NoError(t, err)

	part, finish := decodeSingleFile(t, "evil.txt", "payload", multipart.Limits{})
	defer func() {
		_ = part.Drain()
		_ = finish()
	}()

	_, err = store.Save(context.Background(), part, "../escape.txt")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestLocalStorageDelete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "")
	require.NoError(t, err)

	part, finish := decodeSingleFile(t, "gone.txt", "bytes", multipart.Limits{})
	_, err = store.Save(context.Background(), part, "gone.txt")
	require.NoError(t, err)
	require.NoError(t, finish())

	require.NoError(t, store.Delete(context.Background(), "gone.txt"))
	assert.False(t, store.Exists(context.Background(), "gone.txt"))
	assert.ErrorIs(t, store.Delete(context.Background(), "gone.txt"), storage.ErrFileNotFound)
}

func TestLocalStorageNilPart(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Save(context.Background(), nil, "x")
	assert.ErrorIs(t, err, storage.ErrNilPart)
}

func TestLocalStorageSaveDerivesFilenameFromPart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir, "")
	require.NoError(t, err)

	part, finish := decodeSingleFile(t, "upload.bin", "data", multipart.Limits{})

	// A directory-only path takes the sanitized client filename.
	file, err := store.Save(context.Background(), part, "incoming/")
	require.NoError(t, err)
	require.NoError(t, finish())

	assert.Equal(t, "upload.bin", file.Filename)
	onDisk, err := os.ReadFile(filepath.Join(dir, "incoming", "upload.bin"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(onDisk))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"report.txt":            "report.txt",
		"../../etc/passwd":      "passwd",
		"..\\..\\windows\\sys":  "sys",
		"nul\x00byte.txt":       "nulbyte.txt",
		"":                      "unnamed",
		".":                     "unnamed",
		"..":                    "unnamed",
		"/":                     "unnamed",
		"dir/inner/name.png":    "name.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, storage.SanitizeFilename(in), "input %q", in)
	}
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	part, finish := decodeSingleFile(t, "photo.jpg", "jpeg", multipart.Limits{})
	defer func() {
		_ = part.Drain()
		_ = finish()
	}()

	key := storage.ObjectKey("uploads", part)
	assert.True(t, len(key) > len("uploads/")+len("-photo.jpg"))
	assert.Contains(t, key, "uploads/")
	assert.Contains(t, key, "-photo.jpg")

	bare := storage.ObjectKey("", part)
	assert.NotContains(t, bare, "/")
	assert.Contains(t, bare, "-photo.jpg")

	// Keys embed a random component, so repeated calls differ.
	assert.NotEqual(t, storage.ObjectKey("", part), storage.ObjectKey("", part))
}
