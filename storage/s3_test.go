package storage_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstream/partstream/multipart"
	"github.com/partstream/partstream/storage"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	lastPut *s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, errors.New("not found")
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newS3Store(t *testing.T, client storage.S3Client, baseURL string) *storage.S3Storage {
	t.Helper()
	store, err := storage.NewS3Storage(context.Background(),
		storage.S3Config{Bucket: "uploads", BaseURL: baseURL},
		storage.WithS3Client(client))
	require.NoError(t, err)
	return store
}

func TestS3StorageRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := storage.NewS3Storage(context.Background(), storage.S3Config{},
		storage.WithS3Client(newFakeS3()))
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
}

func TestS3StorageSave(t *testing.T) {
	t.Parallel()

	client := newFakeS3()
	store := newS3Store(t, client, "")

	part, finish := decodeSingleFile(t, "report.pdf", "pdf bytes", multipart.Limits{})

	file, err := store.Save(context.Background(), part, "/docs/report.pdf")
	require.NoError(t, err)
	require.NoError(t, finish())

	assert.Equal(t, "report.pdf", file.Filename)
	assert.Equal(t, int64(len("pdf bytes")), file.Size)
	assert.Equal(t, "docs/report.pdf", file.Path)
	assert.Equal(t, "pdf bytes", string(client.objects["docs/report.pdf"]))
	assert.Equal(t, int64(len("pdf bytes")), aws.ToInt64(client.lastPut.ContentLength))
	assert.Equal(t, "uploads", aws.ToString(client.lastPut.Bucket))

	assert.True(t, store.Exists(context.Background(), "docs/report.pdf"))
	assert.False(t, store.Exists(context.Background(), "missing"))

	require.NoError(t, store.Delete(context.Background(), "docs/report.pdf"))
	assert.False(t, store.Exists(context.Background(), "docs/report.pdf"))
}

func TestS3StorageSaveTruncatedPart(t *testing.T) {
	t.Parallel()

	client := newFakeS3()
	store := newS3Store(t, client, "")

	part, finish := decodeSingleFile(t, "big.bin",
		"contents larger than limit", multipart.Limits{FileSize: 4})

	_, err := store.Save(context.Background(), part, "big.bin")
	assert.ErrorIs(t, err, multipart.ErrTruncatedFile)
	assert.ErrorIs(t, finish(), multipart.ErrTruncatedFile)
	assert.Empty(t, client.objects, "no object may be stored for a truncated upload")
}

func TestS3StoragePutFailure(t *testing.T) {
	t.Parallel()

	client := newFakeS3()
	client.putErr = errors.New("service unavailable")
	store := newS3Store(t, client, "")

	part, finish := decodeSingleFile(t, "x.txt", "abc", multipart.Limits{})

	_, err := store.Save(context.Background(), part, "x.txt")
	assert.ErrorIs(t, err, storage.ErrFailedToWriteFile)
	require.NoError(t, finish())
}

func TestS3StorageURL(t *testing.T) {
	t.Parallel()

	withBase := newS3Store(t, newFakeS3(), "https://cdn.example.com")
	assert.Equal(t, "https://cdn.example.com/a/b.png", withBase.URL("/a/b.png"))

	bare := newS3Store(t, newFakeS3(), "")
	assert.Equal(t, "https://uploads.s3.amazonaws.com/a/b.png", bare.URL("a/b.png"))
}
