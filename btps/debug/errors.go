package debug

import "errors"

var (
	// ErrEmptyDump indicates a Dump of zero bytes.
	ErrEmptyDump = errors.New("debug: nothing to dump")

	// ErrNoPlatform indicates a Config without a Platform.
	ErrNoPlatform = errors.New("debug: platform required")
)
