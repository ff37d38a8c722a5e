package osal

import (
	"context"
	"time"
)

// Kind tells callers whether a platform can block.
type Kind int

const (
	// Cooperative platforms have one thread of control and never block.
	Cooperative Kind = iota

	// Preemptive platforms run real threads and block in Wait and Delay.
	Preemptive
)

func (k Kind) String() string {
	switch k {
	case Cooperative:
		return "cooperative"
	case Preemptive:
		return "preemptive"
	default:
		return "unknown"
	}
}

// Timeout is a wait duration in milliseconds.
type Timeout uint32

// Infinite waits forever.
const Infinite Timeout = 0xFFFFFFFF

// Duration converts t to a time.Duration. Infinite has no duration and
// returns -1.
func (t Timeout) Duration() time.Duration {
	if t == Infinite {
		return -1
	}
	return time.Duration(t) * time.Millisecond
}

// timer returns a channel that fires after t, and its stop function.
// Infinite yields a nil channel that never fires.
func (t Timeout) timer() (<-chan time.Time, func()) {
	if t == Infinite {
		return nil, func() {}
	}
	tm := time.NewTimer(t.Duration())
	return tm.C, func() { tm.Stop() }
}

// Mutex is a recursive mutual exclusion lock. The owner may Wait again without
// deadlocking and must Release once per successful Wait.
//
// Ownership is checked against the Thread in ctx. All anonymous callers share
// one identity, so any anonymous caller may Release a hold taken by another
// anonymous caller. Code that needs release checking must attach a Thread.
type Mutex interface {
	Wait(ctx context.Context, timeout Timeout) error
	Release(ctx context.Context) error
	Close()
}

// Event is a manual-reset binary signal. Set wakes every waiter and stays
// signaled until Reset. Set is safe to call from interrupt context.
type Event interface {
	Set()
	Reset()
	Wait(ctx context.Context, timeout Timeout) error
	Close()
}

// Platform is the host a kernel runs on.
type Platform interface {
	// Name identifies the platform in logs.
	Name() string

	// Kind reports whether the platform can block.
	Kind() Kind

	// TickCount returns milliseconds since an arbitrary epoch. It wraps at 2^32.
	TickCount() uint32

	// Delay suspends the caller for d milliseconds. Infinite never returns.
	Delay(d Timeout)

	// NewMutex creates a mutex. If owned is true the caller identified by ctx
	// holds it once on return.
	NewMutex(ctx context.Context, owned bool) (Mutex, error)

	// NewEvent creates a manual-reset event in the given initial state.
	NewEvent(signaled bool) (Event, error)

	// CreateThread starts fn on a new thread. fn receives a context carrying
	// the returned Thread. Threads cannot be killed; fn must return on its own.
	CreateThread(name string, fn func(ctx context.Context)) (*Thread, error)
}
