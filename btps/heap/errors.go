package heap

import "errors"

var (
	// ErrNoSpace indicates that no Free fragment large enough was found after a full walk.
	ErrNoSpace = errors.New("heap: no free fragment large enough")

	// ErrZeroSize indicates an allocation request for zero bytes.
	ErrZeroSize = errors.New("heap: requested size must be greater than zero")

	// ErrBadRef indicates a nil, out-of-range or stale fragment reference.
	ErrBadRef = errors.New("heap: bad fragment reference")

	// ErrNotInUse indicates an attempt to free a fragment that is already Free.
	ErrNotInUse = errors.New("heap: fragment is not in use")

	// ErrCorrupt indicates that the fragment list links are inconsistent.
	// The heap is left untouched when this is returned.
	ErrCorrupt = errors.New("heap: fragment list corrupt")

	// ErrConfig indicates an unusable Config.
	ErrConfig = errors.New("heap: invalid configuration")
)
