//go:build !linux && !darwin

package serialport

import "io"

const (
	lineRTS = 1
	lineDTR = 2
)

func setModemLine(io.ReadWriteCloser, int, bool) error { return ErrUnsupported }
