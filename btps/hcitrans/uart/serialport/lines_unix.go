//go:build linux || darwin

package serialport

import (
	"io"

	"golang.org/x/sys/unix"
)

const (
	lineRTS = unix.TIOCM_RTS
	lineDTR = unix.TIOCM_DTR
)

type fder interface{ Fd() uintptr }

// setModemLine raises or lowers a modem-control line.
func setModemLine(rwc io.ReadWriteCloser, bit int, on bool) error {
	f, ok := rwc.(fder)
	if !ok {
		return ErrUnsupported
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetPointerInt(int(f.Fd()), req, bit)
}
