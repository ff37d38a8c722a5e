package hcitrans

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/btpskit/btps/hcitrans/uart"
	"github.com/joshuapare/btpskit/btps/osal"
	"github.com/joshuapare/btpskit/internal/logger"
)

// Stats counts transport activity since New.
type Stats struct {
	RxBytes    uint64
	TxBytes    uint64
	Deliveries uint64
	Overruns   uint64
	FlowOffs   uint64
	FlowOns    uint64
}

// session is the per-open receive machinery.
type session struct {
	event  osal.Event
	thread *osal.Thread
	stop   atomic.Bool
}

// Transport is an HCI UART transport over one uart.Device.
type Transport struct {
	dev  uart.Device
	plat osal.Platform
	cfg  Config

	mu        sync.Mutex // serializes Open, Close and Reconfigure
	writeMu   sync.Mutex // serializes writers
	open      atomic.Bool
	setupDone bool

	// irq is held by the interrupt handler and by threads touching ring
	// indices, free counts or flow state.
	irq     sync.Mutex
	rx      ring
	tx      ring
	flowOn  bool
	overrun bool
	sess    *session
	stats   Stats

	deliverMu sync.Mutex
	handler   DataHandler
}

// New returns a closed transport on dev. Receiving needs a preemptive
// platform; Open fails on one that cannot create threads.
func New(dev uart.Device, plat osal.Platform, cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if dev == nil || plat == nil {
		return nil, fmt.Errorf("%w: device and platform are required", ErrConfig)
	}
	return &Transport{
		dev:  dev,
		plat: plat,
		cfg:  cfg,
		rx:   newRing(cfg.RxBufferSize),
		tx:   newRing(cfg.TxBufferSize),
	}, nil
}

// Config returns the effective configuration.
func (t *Transport) Config() Config { return t.cfg }

// IsOpen reports whether the transport is open.
func (t *Transport) IsOpen() bool { return t.open.Load() }

// Stats returns a snapshot of the counters.
func (t *Transport) Stats() Stats {
	t.irq.Lock()
	defer t.irq.Unlock()
	return t.stats
}

// Open brings the line up and starts delivering received bytes to h. It
// returns TransportID.
//
// Algorithm:
//  1. Reject a second open, a nil handler or a zero baud rate.
//  2. Empty both rings and clear flow state.
//  3. Run the device's one-time Setup on the first open only.
//  4. Program the baud rate and 8N1 framing.
//  5. Create the RX event and thread for this session.
//  6. Attach the interrupt handler, discard stale RX FIFO bytes, enable RX
//     interrupts and assert RTS.
//  7. Release the controller from reset and sleep the initialization delay.
func (t *Transport) Open(info DriverInfo, h DataHandler) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.open.Load():
		return 0, fail(ErrUnableToOpenTransport, ErrAlreadyOpen)
	case h == nil || info.BaudRate == 0:
		return 0, fail(ErrUnableToOpenTransport, ErrInvalidParameter)
	}

	t.writeMu.Lock()
	t.irq.Lock()
	t.rx.reset()
	t.tx.reset()
	t.flowOn = false
	t.overrun = false
	t.irq.Unlock()
	t.writeMu.Unlock()

	if !t.setupDone {
		if err := t.dev.Setup(!t.cfg.NoFlowControl); err != nil {
			return 0, fail(ErrUnableToOpenTransport, err)
		}
		t.setupDone = true
	}

	if err := t.dev.SetConfig(info.BaudRate, uart.Frame8N1); err != nil {
		return 0, fail(ErrUnableToOpenTransport, err)
	}

	ev, err := t.plat.NewEvent(false)
	if err != nil {
		return 0, fail(ErrUnableToOpenTransport, err)
	}
	s := &session{event: ev}

	t.deliverMu.Lock()
	t.handler = h
	t.deliverMu.Unlock()

	// The RX thread runs only while its session is current.
	t.irq.Lock()
	t.sess = s
	t.irq.Unlock()

	s.thread, err = t.plat.CreateThread("hcitrans-rx", t.rxThread(s))
	if err != nil {
		t.irq.Lock()
		t.sess = nil
		t.irq.Unlock()
		t.deliverMu.Lock()
		t.handler = nil
		t.deliverMu.Unlock()
		ev.Close()
		return 0, fail(ErrUnableToOpenTransport, err)
	}

	t.irq.Lock()
	t.dev.Attach(t.interrupt)
	scratch := make([]byte, 16)
	for t.dev.RxReady() {
		if t.dev.Receive(scratch) == 0 {
			break
		}
	}
	t.dev.EnableInterrupts(uart.IntRX | uart.IntRT)
	t.flowOn = true
	t.dev.SetRTS(true)
	t.irq.Unlock()

	t.open.Store(true)
	t.dev.SetReset(true)
	if info.InitializationDelay > 0 {
		t.plat.Delay(info.InitializationDelay)
	}

	logger.Info("hcitrans: open", "baud", info.BaudRate, "platform", t.plat.Name())
	return TransportID, nil
}

// Close shuts the line down. The handler receives one final call with nil
// data before Close returns and none after.
//
// Algorithm:
//  1. Disable UART interrupts, detach the handler and hold the controller in
//     reset.
//  2. Tell the RX thread to exit and wake it.
//  3. Wait up to the close grace period for the thread to finish.
//  4. Deliver the end-of-stream call and forget the handler.
func (t *Transport) Close(id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id != TransportID || !t.open.Load() {
		return ErrNotOpen
	}
	t.open.Store(false)

	t.irq.Lock()
	t.dev.DisableInterrupts(uart.IntRX | uart.IntRT | uart.IntTX)
	s := t.sess
	t.sess = nil
	t.irq.Unlock()
	t.dev.Attach(nil)
	t.dev.SetReset(false)

	t.stopSession(s)
	logger.Info("hcitrans: closed")
	return nil
}

func (t *Transport) stopSession(s *session) {
	s.stop.Store(true)
	s.event.Set()

	select {
	case <-s.thread.Done():
	case <-time.After(t.cfg.CloseGrace):
		logger.Warn("hcitrans: rx thread still running after close grace",
			"grace", t.cfg.CloseGrace)
	}

	t.deliverMu.Lock()
	if h := t.handler; h != nil {
		t.handler = nil
		h.HandleData(TransportID, nil)
	}
	t.deliverMu.Unlock()

	s.event.Close()
}

// Reconfigure changes the baud rate of the open line.
func (t *Transport) Reconfigure(id int, data ReconfigureData) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id != TransportID || !t.open.Load() {
		return ErrNotOpen
	}
	if data.Command != ChangeParameters || data.BaudRate == 0 {
		return ErrInvalidParameter
	}

	t.irq.Lock()
	defer t.irq.Unlock()
	if err := t.dev.SetConfig(data.BaudRate, uart.Frame8N1); err != nil {
		return err
	}
	logger.Debug("hcitrans: baud changed", "baud", data.BaudRate)
	return nil
}

// Write queues data for transmission. It waits, polling every WritePoll
// milliseconds, until the whole buffer fits in the TX ring; it never writes
// partially. ctx bounds the wait.
func (t *Transport) Write(ctx context.Context, id int, data []byte) error {
	switch {
	case id != TransportID || !t.open.Load():
		return fail(ErrWritingToPort, ErrNotOpen)
	case len(data) == 0:
		return fail(ErrWritingToPort, ErrInvalidParameter)
	case len(data) > t.tx.size():
		return fail(ErrWritingToPort, ErrTooLarge)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	for {
		t.irq.Lock()
		free := t.tx.free
		t.irq.Unlock()
		if free >= len(data) {
			break
		}
		if err := ctx.Err(); err != nil {
			return fail(ErrWritingToPort, err)
		}
		t.plat.Delay(t.cfg.WritePoll)
		if !t.open.Load() {
			return fail(ErrWritingToPort, ErrNotOpen)
		}
	}

	// Only writers move in, so the copy can run with interrupts enabled.
	in := t.tx.in
	n := copy(t.tx.buf[in:], data)
	copy(t.tx.buf, data[n:])

	t.irq.Lock()
	defer t.irq.Unlock()
	t.tx.produced(len(data))
	if t.dev.EnabledInterrupts()&uart.IntTX == 0 {
		t.dev.EnableInterrupts(uart.IntTX)
		t.txInterrupt()
	}
	return nil
}
