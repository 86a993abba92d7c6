package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/partstream/partstream/multipart"
)

// LocalStorage stores uploads on the local filesystem. All operations are
// confined to the base directory. It is safe for concurrent use.
type LocalStorage struct {
	baseDir string
	baseURL string
}

// NewLocalStorage creates a local filesystem backend rooted at baseDir.
// baseURL is used for generating public URLs (e.g. "/files").
func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if err := os.MkdirAll(absBaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &LocalStorage{baseDir: absBaseDir, baseURL: baseURL}, nil
}

// Save streams the part to disk under path. A partially written file is
// removed on failure, including truncation of the upload itself.
func (s *LocalStorage) Save(ctx context.Context, part *multipart.FilePart, path string) (*File, error) {
	if part == nil {
		return nil, ErrNilPart
	}

	filename := SanitizeFilename(part.FileName)
	if base := filepath.Base(path); base == "." || base == "" || strings.HasSuffix(path, "/") {
		path = filepath.Join(filepath.Dir(path), filename)
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	dst, err := os.OpenFile(absPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	written, err := copyPart(ctx, dst, part)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", ErrFailedToWriteFile, cerr)
	}
	if err != nil {
		_ = os.Remove(absPath)
		return nil, err
	}

	relPath, rerr := filepath.Rel(s.baseDir, absPath)
	if rerr != nil {
		relPath = path
	}

	return &File{
		Filename:  filename,
		Size:      written,
		MIMEType:  part.MIMEType,
		Extension: filepath.Ext(filename),
		Path:      relPath,
	}, nil
}

// copyPart streams the part to dst, checking cancellation between chunks.
// Truncation errors from the part are returned as-is so callers can map
// them; other read failures are wrapped as ErrFailedToReadPart.
func copyPart(ctx context.Context, dst io.Writer, part *multipart.FilePart) (int64, error) {
	var written int64
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, rerr := part.Read(buf)
		if n > 0 {
			nw, werr := dst.Write(buf[:n])
			if werr != nil {
				return written, fmt.Errorf("%w: %v", ErrFailedToWriteFile, werr)
			}
			written += int64(nw)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if errors.Is(rerr, multipart.ErrTruncatedFile) {
				return written, rerr
			}
			return written, fmt.Errorf("%w: %v", ErrFailedToReadPart, rerr)
		}
	}
}

// Delete removes a stored file.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}
	return nil
}

// Exists reports whether a file exists at path.
func (s *LocalStorage) Exists(ctx context.Context, path string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	absPath, err := s.resolvePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(absPath)
	return err == nil
}

// URL returns the public URL for a stored file.
func (s *LocalStorage) URL(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if strings.HasPrefix(path, "/") {
		return path
	}
	return s.baseURL + path
}

// resolvePath confines path to the base directory.
func (s *LocalStorage) resolvePath(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, filepath.Clean(path)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if absPath != s.baseDir && !strings.HasPrefix(absPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return absPath, nil
}
