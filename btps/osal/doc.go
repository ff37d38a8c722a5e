// Package osal is the operating-system abstraction underneath the BTPS kernel.
//
// # Overview
//
// The Bluetooth stack needs a small set of primitives from its host: a
// millisecond tick source, a delay, recursive mutexes, manual-reset events and
// threads. Two hosts are supported and both implement Platform:
//
//   - NoOS: a single cooperative thread of control. Mutexes never block,
//     events can only be polled, Delay busy-waits on the tick source and
//     CreateThread reports ErrUnsupported.
//   - RTOS: true preemptive threads (goroutines). Mutexes and events block
//     with optional timeouts and Delay sleeps.
//
// The implementation is picked when the kernel is composed:
//
//	p := osal.RTOS(osal.NewSystemClock())
//	k, err := btps.New(btps.Config{Platform: p})
//
// # Thread Identity
//
// Mutexes are recursive by owner. The owner is the *Thread carried in the
// context passed to Wait and Release. CreateThread hands every thread function
// a context that carries its own Thread; other callers may attach one with
// WithThread. A caller without a Thread is anonymous and is never treated as
// re-entrant, so a second Wait from an anonymous caller blocks like any other
// contender. Anonymous callers are also indistinguishable on Release: one
// may release a hold taken by another, while a caller with a Thread may not.
//
// # Timeouts
//
// Blocking calls take a Timeout in milliseconds. Zero polls, Infinite waits
// forever. A closed Mutex or Event makes every current and future Wait return
// ErrClosed; this is the only way to cancel a blocked waiter besides its
// context.
package osal
