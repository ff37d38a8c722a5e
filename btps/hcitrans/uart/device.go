package uart

import "strings"

// Interrupt is a bitmask of UART interrupt sources.
type Interrupt uint8

const (
	IntRX Interrupt = 1 << iota // RX FIFO reached its trigger level
	IntRT                       // RX timeout: data waiting below the trigger level
	IntTX                       // TX FIFO has room
)

func (i Interrupt) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&IntRX != 0 {
		parts = append(parts, "rx")
	}
	if i&IntRT != 0 {
		parts = append(parts, "rt")
	}
	if i&IntTX != 0 {
		parts = append(parts, "tx")
	}
	return strings.Join(parts, "|")
}

// Parity selects the parity bit.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// Frame is the character format.
type Frame struct {
	DataBits uint8
	StopBits uint8
	Parity   Parity
}

// Frame8N1 is eight data bits, no parity, one stop bit.
var Frame8N1 = Frame{DataBits: 8, StopBits: 1, Parity: ParityNone}

// Device is a UART with hardware FIFOs, an RTS output and a reset line to the
// attached controller.
type Device interface {
	// Setup performs one-time bring-up: pin muxing, clocks and, when
	// flowControl is set, hardware CTS handling.
	Setup(flowControl bool) error

	// SetConfig programs the baud rate and character format. It may be
	// called while the line is active.
	SetConfig(baud uint32, frame Frame) error

	// Attach installs the interrupt handler. nil detaches it.
	Attach(h func(pending Interrupt))

	EnableInterrupts(m Interrupt)
	DisableInterrupts(m Interrupt)
	EnabledInterrupts() Interrupt

	// Receive moves up to len(p) bytes out of the RX FIFO.
	Receive(p []byte) int

	// RxReady reports whether the RX FIFO holds data.
	RxReady() bool

	// Transmit moves up to len(p) bytes into the TX FIFO and returns how
	// many fit.
	Transmit(p []byte) int

	// SetRTS asserts (ready) or deasserts RTS toward the controller.
	SetRTS(ready bool)

	// SetReset drives the controller's reset line; released brings the
	// controller out of reset.
	SetReset(released bool)
}
