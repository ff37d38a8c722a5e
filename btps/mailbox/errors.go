package mailbox

import "errors"

var (
	// ErrFull indicates a Post to a mailbox with every slot occupied.
	ErrFull = errors.New("mailbox: full")

	// ErrEmpty indicates a non-blocking Wait on an empty mailbox.
	ErrEmpty = errors.New("mailbox: empty")

	// ErrClosed indicates use of a destroyed mailbox.
	ErrClosed = errors.New("mailbox: destroyed")

	// ErrBadGeometry indicates a non-positive slot count or slot size.
	ErrBadGeometry = errors.New("mailbox: slot count and size must be positive and fit in memory")

	// ErrShortBuffer indicates a Wait buffer smaller than one slot.
	ErrShortBuffer = errors.New("mailbox: buffer smaller than slot size")

	// ErrTooLarge indicates a Post of more bytes than one slot holds.
	ErrTooLarge = errors.New("mailbox: message larger than slot size")
)
