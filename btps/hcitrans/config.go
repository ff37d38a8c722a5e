package hcitrans

import (
	"fmt"
	"time"

	"github.com/joshuapare/btpskit/btps/osal"
)

// TransportID identifies the single UART transport.
const TransportID = 1

const (
	DefaultRxBufferSize = 1024
	DefaultTxBufferSize = 512

	// DefaultXOFF is the RX free-byte count at which RTS is deasserted.
	DefaultXOFF = 128

	// DefaultXON is the RX free-byte count above which RTS is reasserted.
	DefaultXON = 512

	// DefaultCloseGrace is how long Close waits for the RX thread to exit.
	DefaultCloseGrace = 5 * time.Millisecond

	// DefaultWritePoll is the sleep between TX space checks in Write.
	DefaultWritePoll osal.Timeout = 10
)

// Config sizes the rings and sets the flow-control marks. Zero fields take
// the defaults.
type Config struct {
	RxBufferSize  int
	TxBufferSize  int
	XOFF          int
	XON           int
	NoFlowControl bool // Skip hardware CTS handling in Device.Setup
	CloseGrace    time.Duration
	WritePoll     osal.Timeout
}

func (c Config) withDefaults() Config {
	if c.RxBufferSize == 0 {
		c.RxBufferSize = DefaultRxBufferSize
	}
	if c.TxBufferSize == 0 {
		c.TxBufferSize = DefaultTxBufferSize
	}
	if c.XOFF == 0 {
		c.XOFF = DefaultXOFF
	}
	if c.XON == 0 {
		c.XON = DefaultXON
	}
	if c.CloseGrace == 0 {
		c.CloseGrace = DefaultCloseGrace
	}
	if c.WritePoll == 0 {
		c.WritePoll = DefaultWritePoll
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.RxBufferSize <= 0 || c.TxBufferSize <= 0:
		return fmt.Errorf("%w: ring sizes must be positive", ErrConfig)
	case c.XOFF <= 0 || c.XON <= c.XOFF || c.XON >= c.RxBufferSize:
		return fmt.Errorf("%w: need 0 < XOFF(%d) < XON(%d) < RX size(%d)",
			ErrConfig, c.XOFF, c.XON, c.RxBufferSize)
	}
	return nil
}

// DriverInfo is the per-open line configuration.
type DriverInfo struct {
	BaudRate uint32

	// InitializationDelay is slept after the controller leaves reset.
	InitializationDelay osal.Timeout
}

// ReconfigureCommand selects what Reconfigure changes.
type ReconfigureCommand int

const (
	// ChangeParameters changes the baud rate of the open line.
	ChangeParameters ReconfigureCommand = iota
)

// ReconfigureData is the argument to Reconfigure.
type ReconfigureData struct {
	Command  ReconfigureCommand
	BaudRate uint32
}

// DataHandler receives bytes from the controller. A nil data slice marks the
// end of the stream. The slice is only valid for the duration of the call.
// HandleData must not call Close.
type DataHandler interface {
	HandleData(id int, data []byte)
}

// HandlerFunc adapts a function to DataHandler.
type HandlerFunc func(id int, data []byte)

func (f HandlerFunc) HandleData(id int, data []byte) { f(id, data) }
