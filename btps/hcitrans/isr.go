package hcitrans

import (
	"context"

	"github.com/joshuapare/btpskit/btps/hcitrans/uart"
	"github.com/joshuapare/btpskit/btps/osal"
)

// interrupt is the UART interrupt handler.
func (t *Transport) interrupt(p uart.Interrupt) {
	t.irq.Lock()
	defer t.irq.Unlock()

	if p&(uart.IntRX|uart.IntRT) != 0 {
		t.rxInterrupt()
	}
	if p&uart.IntTX != 0 {
		t.txInterrupt()
	}
}

// rxInterrupt drains the RX FIFO into the RX ring and wakes the RX thread.
// Reads stop at the XOFF mark while RTS is asserted; once it is deasserted
// the space below the mark absorbs bytes already in flight. A ring with no
// space disables RX interrupts and records an overrun. Called with irq held.
func (t *Transport) rxInterrupt() {
	for {
		avail := t.rx.free - t.cfg.XOFF
		if avail <= 0 {
			avail = t.rx.free
		}
		if avail == 0 {
			t.markOverrun()
			break
		}

		dst := t.rx.writable()
		dst = dst[:min(len(dst), avail)]
		n := t.dev.Receive(dst)
		if n == 0 {
			break
		}
		t.rx.produced(n)
		t.stats.RxBytes += uint64(n)

		if t.flowOn && t.rx.free <= t.cfg.XOFF {
			t.dev.SetRTS(false)
			t.flowOn = false
			t.stats.FlowOffs++
			if t.dev.RxReady() {
				t.markOverrun()
			}
			break
		}
		if n < len(dst) {
			break
		}
	}

	if t.sess != nil {
		t.sess.event.Set()
	}
}

func (t *Transport) markOverrun() {
	if !t.overrun {
		t.overrun = true
		t.stats.Overruns++
	}
	t.dev.DisableInterrupts(uart.IntRX | uart.IntRT)
}

// txInterrupt moves TX ring bytes into the TX FIFO until either is
// exhausted, and disables TX interrupts once the ring is empty. Called with
// irq held.
func (t *Transport) txInterrupt() {
	for t.tx.used() > 0 {
		n := t.dev.Transmit(t.tx.readable())
		if n == 0 {
			break
		}
		t.tx.consumed(n)
		t.stats.TxBytes += uint64(n)
	}
	if t.tx.used() == 0 {
		t.dev.DisableInterrupts(uart.IntTX)
	}
}

// rxThread returns the RX thread body for s. It delivers contiguous runs of
// the RX ring to the handler, credits the space back, and undoes overrun and
// flow-off once enough room is free.
func (t *Transport) rxThread(s *session) func(ctx context.Context) {
	return func(ctx context.Context) {
		for !s.stop.Load() {
			t.irq.Lock()
			if t.sess != s {
				t.irq.Unlock()
				break
			}
			data := t.rx.readable()
			t.irq.Unlock()

			if len(data) == 0 {
				// The event is reset after waking and the ring re-checked, so a
				// Set between the two is never lost.
				_ = s.event.Wait(ctx, osal.Infinite)
				if s.stop.Load() {
					break
				}
				s.event.Reset()
				continue
			}

			t.deliver(s, data)

			t.irq.Lock()
			if t.sess != s {
				// Closed while the handler ran; the rings may belong to a
				// newer session already.
				t.irq.Unlock()
				break
			}
			t.rx.consumed(len(data))
			t.stats.Deliveries++
			if t.overrun {
				t.overrun = false
				t.dev.EnableInterrupts(uart.IntRX | uart.IntRT)
			}
			if !t.flowOn && t.rx.free > t.cfg.XON {
				t.dev.SetRTS(true)
				t.flowOn = true
				t.stats.FlowOns++
			}
			t.irq.Unlock()
		}
	}
}

func (t *Transport) deliver(s *session, data []byte) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()
	if s.stop.Load() || t.handler == nil {
		return
	}
	t.handler.HandleData(TransportID, data)
}
