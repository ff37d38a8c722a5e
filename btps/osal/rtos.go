package osal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshuapare/btpskit/internal/logger"
)

type rtos struct {
	clock Clock
}

// RTOS returns a preemptive platform backed by goroutines. The clock only
// supplies TickCount; Delay and Wait timeouts use wall time.
func RTOS(clock Clock) Platform {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &rtos{clock: clock}
}

func (p *rtos) Name() string { return "rtos" }

func (p *rtos) Kind() Kind { return Preemptive }

func (p *rtos) TickCount() uint32 { return p.clock.Now() }

func (p *rtos) Delay(d Timeout) {
	if d != Infinite {
		time.Sleep(d.Duration())
		return
	}
	select {}
}

func (p *rtos) NewMutex(ctx context.Context, owned bool) (Mutex, error) {
	m := &rtosMutex{
		sem:    make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	if owned {
		m.sem <- struct{}{}
		m.owner.Store(ThreadFrom(ctx))
		m.count.Store(1)
	}
	return m, nil
}

func (p *rtos) NewEvent(signaled bool) (Event, error) {
	e := &rtosEvent{
		signal: make(chan struct{}),
		closed: make(chan struct{}),
	}
	if signaled {
		e.Set()
	}
	return e, nil
}

func (p *rtos) CreateThread(name string, fn func(ctx context.Context)) (*Thread, error) {
	t := NewThread(name)
	logger.Debug("osal: thread start", "name", name, "id", t.id)
	go func() {
		defer close(t.done)
		fn(WithThread(context.Background(), t))
		logger.Debug("osal: thread exit", "name", name, "id", t.id)
	}()
	return t, nil
}

// rtosMutex is a recursive mutex. Holding the single token in sem means the
// mutex is locked; owner and count are only changed by the holder.
type rtosMutex struct {
	sem       chan struct{}
	owner     atomic.Pointer[Thread]
	count     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
}

func (m *rtosMutex) Wait(ctx context.Context, timeout Timeout) error {
	self := ThreadFrom(ctx)
	if self != nil && m.owner.Load() == self {
		m.count.Add(1)
		return nil
	}

	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	if timeout == 0 {
		select {
		case m.sem <- struct{}{}:
		default:
			return ErrTimeout
		}
	} else {
		expired, stop := timeout.timer()
		defer stop()
		select {
		case m.sem <- struct{}{}:
		case <-m.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			return ErrTimeout
		}
	}

	m.owner.Store(self)
	m.count.Store(1)
	return nil
}

func (m *rtosMutex) Release(ctx context.Context) error {
	if len(m.sem) == 0 || m.owner.Load() != ThreadFrom(ctx) {
		return ErrNotOwner
	}
	if m.count.Add(-1) > 0 {
		return nil
	}
	m.owner.Store(nil)
	<-m.sem
	return nil
}

func (m *rtosMutex) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

// rtosEvent is a manual-reset event. signal is closed while the event is set
// and replaced on Reset.
type rtosEvent struct {
	mu       sync.Mutex
	set      bool
	signal   chan struct{}
	closed   chan struct{}
	isClosed bool
}

func (e *rtosEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isClosed || e.set {
		return
	}
	e.set = true
	close(e.signal)
}

func (e *rtosEvent) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return
	}
	e.set = false
	e.signal = make(chan struct{})
}

func (e *rtosEvent) Wait(ctx context.Context, timeout Timeout) error {
	e.mu.Lock()
	if e.isClosed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.set {
		e.mu.Unlock()
		return nil
	}
	signal := e.signal
	e.mu.Unlock()

	if timeout == 0 {
		return ErrTimeout
	}

	expired, stop := timeout.timer()
	defer stop()
	select {
	case <-signal:
		return nil
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrTimeout
	}
}

func (e *rtosEvent) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isClosed {
		return
	}
	e.isClosed = true
	close(e.closed)
}
