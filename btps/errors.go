package btps

import "errors"

var (
	// ErrClosed indicates use of a kernel after Close.
	ErrClosed = errors.New("btps: kernel closed")
)
