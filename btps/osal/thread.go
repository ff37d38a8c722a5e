package osal

import (
	"context"
	"sync/atomic"
)

var threadSeq atomic.Uint64

// Thread identifies a thread started by a Platform, or a caller that attached
// an identity with WithThread.
type Thread struct {
	name string
	id   uint64
	done chan struct{}
}

// NewThread returns an identity for a caller that was not started through
// CreateThread, such as a test goroutine or the program's main loop.
func NewThread(name string) *Thread {
	return &Thread{name: name, id: threadSeq.Add(1), done: make(chan struct{})}
}

// Name returns the name given at creation.
func (t *Thread) Name() string { return t.name }

// ID returns a process-unique thread number.
func (t *Thread) ID() uint64 { return t.id }

// Done is closed when the thread function returns. It never closes for
// identities made with NewThread.
func (t *Thread) Done() <-chan struct{} { return t.done }

type threadKey struct{}

// WithThread returns a context identifying t as the caller.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// ThreadFrom returns the caller identity in ctx, or nil for anonymous callers.
func ThreadFrom(ctx context.Context) *Thread {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(threadKey{}).(*Thread)
	return t
}
