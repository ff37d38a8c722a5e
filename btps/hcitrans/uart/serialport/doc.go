// Package serialport is a uart.Device backed by a host serial port, for
// driving a real Bluetooth controller from Linux or macOS.
//
// # Model
//
// The host has no UART registers, so Port emulates them. A reader goroutine
// fills a software RX FIFO from the port and raises the interrupt line; a
// writer goroutine drains the TX FIFO into the port and raises TX room. The
// transport sees the same level-triggered behaviour as on hardware.
//
// While RTS is deasserted the reader stops pulling from the port. With
// RTS/CTS enabled the kernel then deasserts the physical line once its own
// buffer fills. When hardware flow control is off, RTS is also driven
// directly with modem-control ioctls.
//
// # Lines
//
// DTR is used as the controller reset line, which matches common USB-serial
// Bluetooth boards.
//
// # Baud Changes
//
// On Linux the baud rate of an open port is changed in place with TCSETS2.
// Elsewhere, or if that fails, the port is reopened.
package serialport
