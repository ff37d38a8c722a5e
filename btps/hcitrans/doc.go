// Package hcitrans is the HCI UART transport: an interrupt-driven byte pipe
// between the Bluetooth stack and a controller on a UART with RTS/CTS flow
// control.
//
// # Overview
//
// One Transport drives one uart.Device and is identified by TransportID.
// Received bytes flow:
//
//	UART RX FIFO -> rx interrupt -> RX ring -> RX thread -> DataHandler
//
// and transmitted bytes flow:
//
//	Write -> TX ring -> tx interrupt -> UART TX FIFO
//
// The rings are shared between interrupt context and threads. Their indices
// and free counts are only touched with interrupts "disabled", modelled by
// the transport's interrupt lock, which the interrupt handler holds for its
// whole run.
//
// # Flow Control
//
// RTS is deasserted when the RX ring's free space falls to the XOFF mark and
// reasserted once the RX thread has freed more than the XON mark. Bytes the
// controller sends after RTS drops land in the space below XOFF. If the ring
// fills completely the rx interrupt is disabled and an overrun is recorded;
// the RX thread re-enables it after it frees space. Nothing is dropped by the
// transport itself.
//
// # Delivery
//
// The RX thread hands the handler the longest contiguous run in the ring, so
// a burst that wraps the ring arrives in two calls. Byte order is preserved.
// After Close returns, the handler has received exactly one final call with a
// nil slice and will never be called again.
//
// # Writing
//
// Write never writes partially. It polls, sleeping between checks, until the
// TX ring can take the whole buffer, then copies it in and primes the tx
// interrupt if it was idle. The context bounds the wait.
package hcitrans
