// Package storage provides streaming sinks for decoded multipart file
// parts: a path-traversal-safe local filesystem backend and an S3 backend.
// Saving a part consumes its byte stream, which lets the decoder advance to
// the next part.
package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/partstream/partstream/multipart"
)

// File describes a stored upload.
type File struct {
	// Filename is the sanitized client-provided name.
	Filename string

	// Size is the number of bytes written.
	Size int64

	// MIMEType is the part's declared media type.
	MIMEType string

	// Extension is the file extension including the dot.
	Extension string

	// Path is the backend-relative location of the stored object.
	Path string
}

// Storage is a sink for uploaded file parts.
type Storage interface {
	// Save streams the part's remaining bytes to the backend under path and
	// returns metadata. It claims the part; the part must not have another
	// concurrent reader. A truncated part yields the part's truncation error
	// and no stored object.
	Save(ctx context.Context, part *multipart.FilePart, path string) (*File, error)

	// Delete removes a stored object.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) bool

	// URL returns the public URL for a stored object.
	URL(path string) string
}

// SanitizeFilename strips path components and NUL bytes from a client
// filename to prevent traversal attacks. Empty or directory-like names
// become "unnamed".
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = strings.ReplaceAll(filename, "\x00", "")

	if filename == "." || filename == ".." || filename == "" || filename == "/" {
		filename = "unnamed"
	}

	return filename
}

// ObjectKey builds a collision-free storage path for a part: a random UUID
// joined with the part's sanitized filename, optionally under a prefix.
func ObjectKey(prefix string, part *multipart.FilePart) string {
	name := uuid.NewString() + "-" + SanitizeFilename(part.FileName)
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
