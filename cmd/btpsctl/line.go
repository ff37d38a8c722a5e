package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joshuapare/btpskit/btps"
	"github.com/joshuapare/btpskit/btps/hcitrans"
	"github.com/joshuapare/btpskit/btps/hcitrans/uart"
	"github.com/joshuapare/btpskit/btps/hcitrans/uart/serialport"
	"github.com/joshuapare/btpskit/btps/osal"
)

// simPort selects an in-memory UART with no controller attached.
const simPort = "sim"

// hciReset is the HCI_Reset command packet.
var hciReset = []byte{0x01, 0x03, 0x0c, 0x00}

type lineFlags struct {
	port      string
	baud      uint32
	initDelay uint32
	xoff      int
	xon       int
	rxSize    int
	txSize    int
}

func addLineFlags(cmd *cobra.Command, f *lineFlags) {
	cmd.Flags().StringVarP(&f.port, "port", "p", "", `Serial port of the controller, or "sim"`)
	cmd.Flags().Uint32VarP(&f.baud, "baud", "b", 115200, "Baud rate")
	cmd.Flags().Uint32Var(&f.initDelay, "init-delay", 0, "Milliseconds to wait after releasing reset")
	cmd.Flags().IntVar(&f.xoff, "xoff", 0, "RX free bytes at which RTS drops (default 128)")
	cmd.Flags().IntVar(&f.xon, "xon", 0, "RX free bytes above which RTS rises (default 512)")
	cmd.Flags().IntVar(&f.rxSize, "rx-size", 0, "RX ring size (default 1024)")
	cmd.Flags().IntVar(&f.txSize, "tx-size", 0, "TX ring size (default 512)")
	_ = cmd.MarkFlagRequired("port")
}

// line is an open kernel plus transport.
type line struct {
	kernel   *btps.Kernel
	tr       *hcitrans.Transport
	closeDev func()
}

// openLine starts a kernel writing console output to out, then opens the
// transport with the handler newHandler builds for that kernel.
func openLine(f lineFlags, out io.Writer, newHandler func(*btps.Kernel) hcitrans.DataHandler) (*line, error) {
	k, err := btps.New(btps.Config{Platform: osal.RTOS(osal.NewSystemClock()), Output: out})
	if err != nil {
		return nil, fmt.Errorf("failed to start kernel: %w", err)
	}

	var dev uart.Device
	var closeDev func()
	if f.port == simPort {
		sim := uart.NewSim(uart.SimConfig{AutoDrain: true})
		dev, closeDev = sim, sim.Close
	} else {
		p, err := serialport.New(serialport.Config{PortName: f.port})
		if err != nil {
			_ = k.Close()
			return nil, err
		}
		dev, closeDev = p, func() { _ = p.Close() }
	}

	tr, err := hcitrans.New(dev, k.Platform(), hcitrans.Config{
		RxBufferSize: f.rxSize,
		TxBufferSize: f.txSize,
		XOFF:         f.xoff,
		XON:          f.xon,
	})
	if err == nil {
		printVerbose("Opening %s at %d baud\n", f.port, f.baud)
		_, err = tr.Open(hcitrans.DriverInfo{
			BaudRate:            f.baud,
			InitializationDelay: osal.Timeout(f.initDelay),
		}, newHandler(k))
	}
	if err != nil {
		closeDev()
		_ = k.Close()
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}
	return &line{kernel: k, tr: tr, closeDev: closeDev}, nil
}

func (l *line) Close() error {
	err := l.tr.Close(hcitrans.TransportID)
	l.closeDev()
	if kerr := l.kernel.Close(); err == nil {
		err = kerr
	}
	return err
}
