package config

import "errors"

var (
	// ErrParsingConfig indicates that environment variables could not be
	// parsed into the target struct.
	ErrParsingConfig = errors.New("failed to parse configuration")

	// ErrNilPointer is returned when MustLoad or Load receives a nil target.
	ErrNilPointer = errors.New("nil pointer passed as configuration target")
)
