package multipart

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for every failure class the decoder and operators can
// produce. Wrapped causes are attached with fmt.Errorf("%w: ...") so callers
// can match with errors.Is.
var (
	// ErrNotMultipart is returned by NewDecoder when the Content-Type header
	// is missing, malformed, or not multipart with a boundary parameter.
	ErrNotMultipart = errors.New("request is not multipart form data")

	// ErrPartsLimit is raised when the configured total part count is exceeded.
	ErrPartsLimit = errors.New("too many parts")

	// ErrFilesLimit is raised when the configured file part count is exceeded.
	ErrFilesLimit = errors.New("too many files")

	// ErrFieldsLimit is raised when the configured field part count is exceeded.
	ErrFieldsLimit = errors.New("too many fields")

	// ErrTruncatedFile is raised when a file part exceeds the file size limit.
	ErrTruncatedFile = errors.New("file exceeds size limit")

	// ErrTruncatedField is raised when a field value exceeds the field size limit.
	ErrTruncatedField = errors.New("field exceeds size limit")

	// ErrMissingFiles is raised at stream completion when required file field
	// names were never observed.
	ErrMissingFiles = errors.New("required files missing")

	// ErrMissingFields is raised at stream completion when required field
	// patterns were never matched.
	ErrMissingFields = errors.New("required fields missing")

	// ErrUpstreamStream is raised when the request byte source itself fails.
	ErrUpstreamStream = errors.New("request stream failed")

	// ErrDecoderClosed is returned by Run when the decoder was torn down
	// before parsing finished.
	ErrDecoderClosed = errors.New("decoder closed")
)

// MissingFilesError lists the required file field names that were never
// observed by stream completion. It unwraps to ErrMissingFiles.
type MissingFilesError struct {
	Names []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("required files missing: %s", strings.Join(e.Names, ", "))
}

func (e *MissingFilesError) Unwrap() error { return ErrMissingFiles }

// MissingFieldsError lists the required field patterns that never matched.
// Patterns are reported verbatim since no concrete field name exists for a
// pattern with zero matches. It unwraps to ErrMissingFields.
type MissingFieldsError struct {
	Patterns []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required fields missing: %s", strings.Join(e.Patterns, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// StatusFor maps a decoder or operator error to the HTTP status code the
// host framework should respond with. Count limit violations map to 413,
// truncation and missing-required violations to 400, and anything else to
// 500.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPartsLimit),
		errors.Is(err, ErrFilesLimit),
		errors.Is(err, ErrFieldsLimit):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrTruncatedFile),
		errors.Is(err, ErrTruncatedField),
		errors.Is(err, ErrMissingFiles),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrNotMultipart):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
