package instance

import (
	"errors"
	"fmt"
)

// ErrBindConflict means another process owns the instance endpoint.
var ErrBindConflict = errors.New("instance endpoint is owned by another process")

// ErrNotPrimary is returned by operations only a primary may perform.
var ErrNotPrimary = errors.New("operation requires the primary instance")

// ListenError reports that a primary could not start accepting connections.
// The primary keeps its lock and runs degraded.
type ListenError struct {
	Socket string
	Err    error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("listen on %s: %v", e.Socket, e.Err)
}

func (e *ListenError) Unwrap() error { return e.Err }

// SendError reports that an argument batch could not reach the primary.
type SendError struct {
	Socket string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("forward to %s: %v", e.Socket, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
