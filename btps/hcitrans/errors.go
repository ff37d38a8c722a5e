package hcitrans

import (
	"errors"
	"fmt"
)

// Error is a transport status code. Values are negative, matching the codes
// the Bluetooth stack expects from a transport driver.
type Error int

const (
	ErrUnableToOpenTransport Error = -1
	ErrReadingFromPort       Error = -2
	ErrWritingToPort         Error = -3
)

func (e Error) Error() string {
	switch e {
	case ErrUnableToOpenTransport:
		return "hcitrans: unable to open transport"
	case ErrReadingFromPort:
		return "hcitrans: error reading from port"
	case ErrWritingToPort:
		return "hcitrans: error writing to port"
	default:
		return fmt.Sprintf("hcitrans: error %d", int(e))
	}
}

// Code returns the numeric status.
func (e Error) Code() int { return int(e) }

var (
	// ErrNotOpen indicates an operation on a closed transport or a wrong
	// transport ID.
	ErrNotOpen = errors.New("hcitrans: transport not open")

	// ErrAlreadyOpen indicates Open on an open transport.
	ErrAlreadyOpen = errors.New("hcitrans: transport already open")

	// ErrInvalidParameter indicates a missing handler, zero baud rate or
	// empty write.
	ErrInvalidParameter = errors.New("hcitrans: invalid parameter")

	// ErrTooLarge indicates a write larger than the TX ring.
	ErrTooLarge = errors.New("hcitrans: write larger than transmit buffer")

	// ErrConfig indicates inconsistent ring sizes or watermarks.
	ErrConfig = errors.New("hcitrans: invalid configuration")
)

// fail joins a status code with its cause so both match errors.Is.
func fail(code Error, cause error) error {
	if cause == nil {
		return code
	}
	return fmt.Errorf("%w: %w", code, cause)
}
