// Package uart defines the register-level UART interface the HCI transport
// drives, a level-triggered interrupt line shared by device implementations,
// and Sim, an in-memory UART with a bounded FIFO and an RTS line.
//
// # Interrupt Model
//
// A Device raises interrupts through an IRQ. The IRQ runs the attached handler
// on its own goroutine, one call at a time, for as long as the device reports
// a pending condition:
//
//   - IntRX / IntRT: enabled and the RX FIFO holds data
//   - IntTX: enabled and the TX FIFO has room
//
// Conditions are levels, not edges. A handler that leaves a condition in place
// is called again, so handlers either service the FIFO or disable the
// interrupt.
package uart
