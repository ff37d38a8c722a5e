package uart

import (
	"context"
	"sync"
	"time"
)

// DefaultFIFODepth matches the 16-byte hardware FIFOs of the target UART.
const DefaultFIFODepth = 16

// SimConfig configures a Sim.
type SimConfig struct {
	FIFODepth int  // RX and TX FIFO depth; default DefaultFIFODepth
	AutoDrain bool // TX bytes go straight to Sent instead of waiting for DrainTX
}

// Sim is an in-memory Device. The test side plays the controller: Inject and
// Feed push bytes into the RX FIFO, DrainTX and Sent collect what the host
// transmitted.
type Sim struct {
	depth     int
	autoDrain bool
	irq       *IRQ

	mu         sync.Mutex
	rx         []byte
	tx         []byte
	sent       []byte
	enabled    Interrupt
	rts        bool
	released   bool
	baud       uint32
	frame      Frame
	flow       bool
	setupCalls int
	flowOff    int
	flowOn     int
	lost       int

	changed chan struct{}
}

var _ Device = (*Sim)(nil)

// NewSim returns a simulated UART with its interrupt line running. Call Close
// when done.
func NewSim(cfg SimConfig) *Sim {
	if cfg.FIFODepth <= 0 {
		cfg.FIFODepth = DefaultFIFODepth
	}
	s := &Sim{
		depth:     cfg.FIFODepth,
		autoDrain: cfg.AutoDrain,
		changed:   make(chan struct{}, 1),
	}
	s.irq = NewIRQ(s.pending)
	return s
}

// Close stops the interrupt line.
func (s *Sim) Close() { s.irq.Stop() }

func (s *Sim) pending() Interrupt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p Interrupt
	if len(s.rx) > 0 {
		p |= s.enabled & (IntRX | IntRT)
	}
	if s.enabled&IntTX != 0 && len(s.tx) < s.depth {
		p |= IntTX
	}
	return p
}

func (s *Sim) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Sim) Setup(flowControl bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setupCalls++
	s.flow = flowControl
	return nil
}

func (s *Sim) SetConfig(baud uint32, frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baud = baud
	s.frame = frame
	return nil
}

func (s *Sim) Attach(h func(Interrupt)) { s.irq.Attach(h) }

func (s *Sim) EnableInterrupts(m Interrupt) {
	s.mu.Lock()
	s.enabled |= m
	s.mu.Unlock()
	s.irq.Raise()
}

func (s *Sim) DisableInterrupts(m Interrupt) {
	s.mu.Lock()
	s.enabled &^= m
	s.mu.Unlock()
}

func (s *Sim) EnabledInterrupts() Interrupt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sim) Receive(p []byte) int {
	s.mu.Lock()
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	s.mu.Unlock()
	if n > 0 {
		s.notify()
	}
	return n
}

func (s *Sim) RxReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx) > 0
}

func (s *Sim) Transmit(p []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(len(p), s.depth-len(s.tx))
	if s.autoDrain {
		s.sent = append(s.sent, p[:n]...)
	} else {
		s.tx = append(s.tx, p[:n]...)
	}
	return n
}

func (s *Sim) SetRTS(ready bool) {
	s.mu.Lock()
	if ready != s.rts {
		s.rts = ready
		if ready {
			s.flowOn++
		} else {
			s.flowOff++
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Sim) SetReset(released bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = released
}

// Inject pushes bytes into the RX FIFO regardless of RTS, as a controller
// ignoring flow control would. Bytes beyond the FIFO depth are lost and
// counted; the number accepted is returned.
func (s *Sim) Inject(p []byte) int {
	s.mu.Lock()
	n := min(len(p), s.depth-len(s.rx))
	s.rx = append(s.rx, p[:n]...)
	s.lost += len(p) - n
	s.mu.Unlock()
	if n > 0 {
		s.irq.Raise()
	}
	return n
}

// Feed pushes all of p into the RX FIFO while RTS is asserted and the FIFO
// has room, pausing otherwise. It returns when p is delivered or ctx is done.
func (s *Sim) Feed(ctx context.Context, p []byte) error {
	for len(p) > 0 {
		s.mu.Lock()
		n := 0
		if s.rts {
			n = min(len(p), s.depth-len(s.rx))
			s.rx = append(s.rx, p[:n]...)
		}
		s.mu.Unlock()

		if n > 0 {
			p = p[n:]
			s.irq.Raise()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changed:
		case <-time.After(time.Millisecond):
		}
	}
	return nil
}

// DrainTX empties the TX FIFO into Sent and signals TX room.
func (s *Sim) DrainTX() int {
	s.mu.Lock()
	n := len(s.tx)
	s.sent = append(s.sent, s.tx...)
	s.tx = s.tx[:0]
	s.mu.Unlock()
	if n > 0 {
		s.irq.Raise()
	}
	return n
}

// Sent returns a copy of every byte that left the TX FIFO.
func (s *Sim) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.sent...)
}

// RTS reports the current RTS level.
func (s *Sim) RTS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rts
}

// FlowOffCount returns how many times RTS went from asserted to deasserted.
func (s *Sim) FlowOffCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowOff
}

// FlowOnCount returns how many times RTS went from deasserted to asserted.
func (s *Sim) FlowOnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowOn
}

// ResetReleased reports whether the controller is out of reset.
func (s *Sim) ResetReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Baud returns the last programmed baud rate.
func (s *Sim) Baud() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baud
}

// Frame returns the last programmed character format.
func (s *Sim) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// SetupCalls returns how many times Setup ran.
func (s *Sim) SetupCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setupCalls
}

// FlowControl reports whether Setup enabled hardware flow control.
func (s *Sim) FlowControl() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow
}

// Lost returns the number of injected bytes dropped on a full FIFO.
func (s *Sim) Lost() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// RxLevel returns the bytes waiting in the RX FIFO.
func (s *Sim) RxLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}
