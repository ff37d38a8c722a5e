package osal

import (
	"context"
	"runtime"
	"sync/atomic"
)

type noos struct {
	clock Clock
}

// NoOS returns the cooperative platform. Nothing it hands out ever blocks.
func NoOS(clock Clock) Platform {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &noos{clock: clock}
}

func (p *noos) Name() string { return "noos" }

func (p *noos) Kind() Kind { return Cooperative }

func (p *noos) TickCount() uint32 { return p.clock.Now() }

// Delay spins on the tick source. The unsigned difference keeps the loop
// correct across a counter wrap.
func (p *noos) Delay(d Timeout) {
	start := p.clock.Now()
	for d == Infinite || p.clock.Now()-start < uint32(d) {
		runtime.Gosched()
	}
}

func (p *noos) NewMutex(_ context.Context, owned bool) (Mutex, error) {
	m := &pollMutex{}
	if owned {
		m.count.Store(1)
	}
	return m, nil
}

func (p *noos) NewEvent(signaled bool) (Event, error) {
	e := &pollEvent{}
	e.set.Store(signaled)
	return e, nil
}

func (p *noos) CreateThread(string, func(context.Context)) (*Thread, error) {
	return nil, ErrUnsupported
}

// pollMutex only counts acquisitions. With one thread of control there is
// never a contender.
type pollMutex struct {
	count  atomic.Int32
	closed atomic.Bool
}

func (m *pollMutex) Wait(context.Context, Timeout) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.count.Add(1)
	return nil
}

func (m *pollMutex) Release(context.Context) error {
	for {
		n := m.count.Load()
		if n == 0 {
			return ErrNotOwner
		}
		if m.count.CompareAndSwap(n, n-1) {
			return nil
		}
	}
}

func (m *pollMutex) Close() { m.closed.Store(true) }

// pollEvent reports its state without waiting. Wait on a clear event fails
// with ErrTimeout whatever the timeout.
type pollEvent struct {
	set    atomic.Bool
	closed atomic.Bool
}

func (e *pollEvent) Set() {
	if !e.closed.Load() {
		e.set.Store(true)
	}
}

func (e *pollEvent) Reset() { e.set.Store(false) }

func (e *pollEvent) Wait(context.Context, Timeout) error {
	switch {
	case e.closed.Load():
		return ErrClosed
	case e.set.Load():
		return nil
	default:
		return ErrTimeout
	}
}

func (e *pollEvent) Close() { e.closed.Store(true) }
