//go:build linux && (amd64 || arm64 || arm || 386 || riscv64)

package serialport

import (
	"io"

	"golang.org/x/sys/unix"
)

// setBaud changes the speed of an open port using the termios2 interface,
// which accepts arbitrary rates.
func setBaud(rwc io.ReadWriteCloser, baud uint32) error {
	f, ok := rwc.(fder)
	if !ok {
		return ErrUnsupported
	}
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS2)
	if err != nil {
		return err
	}
	t.Cflag &^= unix.CBAUD
	t.Cflag |= unix.BOTHER
	t.Ispeed = baud
	t.Ospeed = baud
	return unix.IoctlSetTermios(fd, unix.TCSETS2, t)
}
