package osal

import "errors"

var (
	// ErrTimeout indicates that a Wait did not succeed within its timeout.
	ErrTimeout = errors.New("osal: wait timed out")

	// ErrClosed indicates that the Mutex or Event was closed.
	ErrClosed = errors.New("osal: object closed")

	// ErrNotOwner indicates a Release by a caller that does not hold the mutex.
	ErrNotOwner = errors.New("osal: mutex not held by caller")

	// ErrUnsupported indicates a primitive the platform cannot provide.
	ErrUnsupported = errors.New("osal: not supported on this platform")
)
