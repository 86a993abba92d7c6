package stream

import "errors"

// ErrClosed is returned by Publish and Send after the stream terminated.
var ErrClosed = errors.New("stream: closed")
