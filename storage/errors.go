package storage

import "errors"

var (
	// ErrInvalidConfig is returned when a backend is constructed with
	// missing or contradictory settings.
	ErrInvalidConfig = errors.New("invalid storage configuration")

	// ErrNilPart is returned when a nil file part is passed to Save.
	ErrNilPart = errors.New("file part is nil")

	// ErrInvalidPath is returned when a path escapes the storage root or
	// contains traversal attempts.
	ErrInvalidPath = errors.New("invalid path")

	// ErrFileNotFound is returned when a stored object does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFailedToWriteFile is returned when object bytes cannot be written.
	ErrFailedToWriteFile = errors.New("failed to write file")

	// ErrFailedToReadPart is returned when the upload's byte stream fails
	// for a reason other than truncation.
	ErrFailedToReadPart = errors.New("failed to read file part")

	// ErrFailedToCreateDirectory is returned when a directory cannot be
	// created.
	ErrFailedToCreateDirectory = errors.New("failed to create directory")

	// ErrFailedToDeleteFile is returned when a stored object cannot be
	// deleted.
	ErrFailedToDeleteFile = errors.New("failed to delete file")
)
