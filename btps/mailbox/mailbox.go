package mailbox

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/joshuapare/btpskit/btps/heap"
	"github.com/joshuapare/btpskit/btps/osal"
	"github.com/joshuapare/btpskit/internal/logger"
)

// headerSize is the bookkeeping charged to the heap ahead of the slots:
// head, tail, occupied, slot count, slot size, event, mutex and buffer words.
const headerSize = 32

// Allocator is the heap interface a mailbox draws its storage from.
type Allocator interface {
	Alloc(n int) (heap.Ref, []byte, error)
	Free(r heap.Ref) error
}

// Mailbox is a fixed-capacity FIFO of equal-sized messages.
type Mailbox struct {
	alloc    Allocator
	ref      heap.Ref
	slots    []byte
	numSlots int
	slotSize int
	blocking bool

	mu    osal.Mutex
	ready osal.Event

	// Guarded by mu.
	head     int
	tail     int
	occupied int
	closed   bool
}

// New creates a mailbox of numSlots slots of slotSize bytes each.
func New(alloc Allocator, p osal.Platform, numSlots, slotSize int) (*Mailbox, error) {
	if numSlots <= 0 || slotSize <= 0 || numSlots > (math.MaxInt-headerSize)/slotSize {
		return nil, ErrBadGeometry
	}

	n := headerSize + numSlots*slotSize
	ref, buf, err := alloc.Alloc(n)
	if err != nil {
		return nil, fmt.Errorf("mailbox: allocate %d bytes: %w", n, err)
	}

	mu, err := p.NewMutex(context.Background(), false)
	if err != nil {
		_ = alloc.Free(ref)
		return nil, fmt.Errorf("mailbox: create mutex: %w", err)
	}
	ready, err := p.NewEvent(false)
	if err != nil {
		mu.Close()
		_ = alloc.Free(ref)
		return nil, fmt.Errorf("mailbox: create event: %w", err)
	}

	return &Mailbox{
		alloc:    alloc,
		ref:      ref,
		slots:    buf[headerSize:n],
		numSlots: numSlots,
		slotSize: slotSize,
		blocking: p.Kind() == osal.Preemptive,
		mu:       mu,
		ready:    ready,
	}, nil
}

// SlotSize returns the size of one message.
func (m *Mailbox) SlotSize() int { return m.slotSize }

// Slots returns the capacity in messages.
func (m *Mailbox) Slots() int { return m.numSlots }

func (m *Mailbox) slot(i int) []byte {
	return m.slots[i*m.slotSize : (i+1)*m.slotSize]
}

func (m *Mailbox) lock(ctx context.Context) error {
	if err := m.mu.Wait(ctx, osal.Infinite); err != nil {
		if errors.Is(err, osal.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

func (m *Mailbox) unlock(ctx context.Context) {
	_ = m.mu.Release(ctx)
}

// Post copies data into the next free slot without blocking. Messages shorter
// than a slot are zero-padded. A full mailbox is left unchanged and ErrFull
// is returned.
func (m *Mailbox) Post(data []byte) error {
	if len(data) > m.slotSize {
		return ErrTooLarge
	}
	ctx := context.Background()
	if err := m.lock(ctx); err != nil {
		return err
	}
	defer m.unlock(ctx)

	if m.closed {
		return ErrClosed
	}
	if m.occupied == m.numSlots {
		return ErrFull
	}

	s := m.slot(m.head)
	clear(s[copy(s, data):])
	m.head = (m.head + 1) % m.numSlots
	m.occupied++
	m.ready.Set()
	return nil
}

// Wait copies the oldest message into out and frees its slot.
//
// On preemptive platforms Wait blocks until a message is available, the
// mailbox is destroyed (ErrClosed) or ctx is done. On cooperative platforms
// it returns ErrEmpty when nothing is queued.
func (m *Mailbox) Wait(ctx context.Context, out []byte) error {
	if len(out) < m.slotSize {
		return ErrShortBuffer
	}

	for {
		if m.blocking {
			if err := m.ready.Wait(ctx, osal.Infinite); err != nil {
				if errors.Is(err, osal.ErrClosed) {
					return ErrClosed
				}
				return err
			}
		}

		if err := m.lock(ctx); err != nil {
			return err
		}
		if m.closed {
			m.unlock(ctx)
			return ErrClosed
		}
		if m.occupied > 0 {
			copy(out, m.slot(m.tail))
			m.tail = (m.tail + 1) % m.numSlots
			m.occupied--
			if m.occupied == 0 {
				m.ready.Reset()
			}
			m.unlock(ctx)
			return nil
		}
		m.unlock(ctx)

		if !m.blocking {
			return ErrEmpty
		}
		// Another waiter took the message between the event and the lock.
	}
}

// Query reports whether at least one message is queued.
func (m *Mailbox) Query() bool {
	ctx := context.Background()
	if m.lock(ctx) != nil {
		return false
	}
	defer m.unlock(ctx)
	return !m.closed && m.occupied > 0
}

// Destroy tears the mailbox down. If drain is non-nil it is called with each
// queued message in FIFO order; the slice is only valid during the call. A
// panic in drain is logged and the remaining messages are still drained.
// Blocked and future Waits return ErrClosed. Destroying twice returns
// ErrClosed.
func (m *Mailbox) Destroy(drain func(msg []byte)) error {
	ctx := context.Background()
	if err := m.lock(ctx); err != nil {
		return err
	}
	if m.closed {
		m.unlock(ctx)
		return ErrClosed
	}
	m.closed = true

	if drain != nil {
		for ; m.occupied > 0; m.occupied-- {
			deliver(drain, m.slot(m.tail))
			m.tail = (m.tail + 1) % m.numSlots
		}
	}
	m.occupied = 0
	m.ready.Close()
	m.unlock(ctx)

	m.mu.Close()
	if err := m.alloc.Free(m.ref); err != nil {
		return fmt.Errorf("mailbox: release storage: %w", err)
	}
	m.slots = nil
	return nil
}

func deliver(drain func([]byte), msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("mailbox: drain callback panicked", "panic", r)
		}
	}()
	drain(msg)
}
