package core

import "errors"

// Sentinel errors stage handlers wrap so the subscriber loop can pick the
// right acknowledgement. Malformed and unsupported inputs are dropped
// (acked); transient I/O failures are nacked so the broker redelivers.
var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnsupported = errors.New("unsupported message type")
	ErrTransient   = errors.New("transient failure")
)
