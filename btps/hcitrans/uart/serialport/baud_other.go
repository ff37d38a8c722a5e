//go:build !linux || !(amd64 || arm64 || arm || 386 || riscv64)

package serialport

import "io"

func setBaud(io.ReadWriteCloser, uint32) error { return ErrUnsupported }
