package heap

import (
	"os"

	"github.com/joshuapare/btpskit/internal/logger"
)

// Runtime trace flag for allocation logging, controlled by BTPS_LOG_HEAP.
var logHeap = os.Getenv("BTPS_LOG_HEAP") != ""

// State is the allocation state of a fragment.
type State uint8

const (
	Free State = iota
	InUse
)

func (s State) String() string {
	if s == InUse {
		return "in-use"
	}
	return "free"
}

// Ref is an opaque handle to an allocated fragment. The zero Ref is nil.
//
// Layout: generation in the high 32 bits, slot index + 1 in the low 32 bits.
type Ref uint64

func makeRef(idx int, gen uint32) Ref {
	return Ref(uint64(gen)<<32 | uint64(idx+1))
}

func (r Ref) index() int  { return int(uint32(r)) - 1 }
func (r Ref) gen() uint32 { return uint32(r >> 32) }

// fragment is one node of the circular list. Slots in Heap.frags are reused;
// gen changes every time a slot's fragment is freed or the slot is released,
// so outstanding Refs to it go stale.
type fragment struct {
	off   int // arena offset of the header
	size  int // payload bytes, header excluded
	state State
	prev  int
	next  int
	gen   uint32
	live  bool
}

// heapStats holds allocator counters.
type heapStats struct {
	AllocCalls   int // Total Alloc() calls
	AllocFailed  int // Alloc() calls that found no fragment
	FreeCalls    int // Total Free() calls
	FreeRejected int // Free() calls refused (bad ref, double free, corrupt links)
	SplitSmall   int // Splits keeping the front of the fragment
	SplitLarge   int // Splits taking the tail of the fragment
	CoalescePrev int // Merges into a Free predecessor
	CoalesceNext int // Merges of a Free successor
	LiveBytes    int // Payload bytes currently InUse
	PeakBytes    int // High-water mark of LiveBytes
}

// Heap is a fixed-arena allocator. The zero value is not usable; call New.
type Heap struct {
	cfg   Config
	arena []byte

	frags []fragment
	spare []int // released slot indices
	head  int   // slot of the fragment at arena offset 0; never moves
	ready bool

	stats heapStats
}

// New returns a heap with the given geometry. The arena is not allocated
// until the first Alloc.
func New(cfg Config) (*Heap, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Heap{cfg: cfg}, nil
}

// Config returns the resolved configuration.
func (h *Heap) Config() Config { return h.cfg }

// init lays the whole arena out as one Free fragment.
func (h *Heap) init() {
	h.arena = make([]byte, h.cfg.Size)
	h.frags = append(h.frags[:0], fragment{
		off:   0,
		size:  h.cfg.Size - h.cfg.HeaderSize,
		state: Free,
		live:  true,
	})
	h.spare = h.spare[:0]
	h.head = 0
	h.ready = true
}

// Alloc reserves at least n bytes and returns a handle plus the payload slice.
//
// The slice has length n and capacity equal to the fragment payload, which is
// n rounded up to the alignment and possibly larger when the fragment was not
// worth splitting.
//
// Algorithm:
//  1. Round n up to Config.Alignment.
//  2. Starting at the first fragment, walk forward for small requests or
//     backward for large ones, stopping at the first Free fragment that fits.
//  3. Split the fragment if the leftover can hold a header plus
//     Config.MinFragment bytes, otherwise hand out the whole fragment.
//
// Returns ErrZeroSize for n <= 0, and ErrNoSpace for a request larger than the
// arena or after a full walk without a fit.
func (h *Heap) Alloc(n int) (Ref, []byte, error) {
	h.stats.AllocCalls++
	if n <= 0 {
		return 0, nil, ErrZeroSize
	}
	if n > h.cfg.Size-h.cfg.HeaderSize {
		h.stats.AllocFailed++
		return 0, nil, ErrNoSpace
	}
	if !h.ready {
		h.init()
	}

	size := h.cfg.align(n)
	large := size >= h.cfg.LargeSize

	idx := h.head
	for {
		f := &h.frags[idx]
		if f.state == Free && f.size >= size {
			idx = h.take(idx, size, large)
			break
		}
		if large {
			idx = f.prev
		} else {
			idx = f.next
		}
		if idx == h.head {
			h.stats.AllocFailed++
			if logHeap {
				logger.Debug("heap: alloc failed", "need", n, "aligned", size)
			}
			return 0, nil, ErrNoSpace
		}
	}

	f := &h.frags[idx]
	h.stats.LiveBytes += f.size
	h.stats.PeakBytes = max(h.stats.PeakBytes, h.stats.LiveBytes)
	if logHeap {
		logger.Debug("heap: alloc", "need", n, "off", f.off, "size", f.size, "large", large)
	}

	p := f.off + h.cfg.HeaderSize
	return makeRef(idx, f.gen), h.arena[p : p+n : p+f.size], nil
}

// take marks part or all of the Free fragment at idx InUse and returns the
// slot of the InUse piece.
func (h *Heap) take(idx, size int, large bool) int {
	hdr := h.cfg.HeaderSize
	cand := h.frags[idx]

	if cand.size <= size+hdr+h.cfg.MinFragment {
		h.frags[idx].state = InUse
		return idx
	}

	if !large {
		// Front stays with the candidate, remainder follows it.
		rest := h.newFragment(cand.off+hdr+size, cand.size-size-hdr, Free)
		h.linkAfter(idx, rest)
		h.frags[idx].size = size
		h.frags[idx].state = InUse
		h.stats.SplitSmall++
		return idx
	}

	// Tail is carved off; the candidate keeps the front and stays Free.
	remaining := cand.size - (hdr + size)
	tail := h.newFragment(cand.off+hdr+remaining, size, InUse)
	h.linkAfter(idx, tail)
	h.frags[idx].size = remaining
	h.stats.SplitLarge++
	return tail
}

// Free releases the fragment behind r.
//
// Algorithm:
//  1. Validate r: in range, live slot, matching generation, state InUse.
//  2. Verify prev.next and next.prev both point back at the fragment.
//  3. Mark it Free and merge it into a Free predecessor (never across the
//     first fragment).
//  4. Merge a Free successor into the result (never wrapping to the first
//     fragment).
//
// On ErrCorrupt nothing is modified; the fragment is not reclaimed.
func (h *Heap) Free(r Ref) error {
	h.stats.FreeCalls++

	idx := r.index()
	if r == 0 || !h.ready || idx < 0 || idx >= len(h.frags) {
		h.stats.FreeRejected++
		return ErrBadRef
	}
	f := &h.frags[idx]
	if !f.live || f.gen != r.gen() {
		h.stats.FreeRejected++
		return ErrBadRef
	}
	if f.state != InUse {
		h.stats.FreeRejected++
		return ErrNotInUse
	}
	if !h.linked(idx) {
		h.stats.FreeRejected++
		logger.Warn("heap: fragment links corrupt, free dropped", "off", f.off, "size", f.size)
		return ErrCorrupt
	}

	h.stats.LiveBytes -= f.size
	f.state = Free
	f.gen++
	if logHeap {
		logger.Debug("heap: free", "off", f.off, "size", f.size)
	}

	if prev := f.prev; idx != h.head && h.frags[prev].state == Free {
		h.absorb(prev, idx)
		h.stats.CoalescePrev++
		idx = prev
	}
	if next := h.frags[idx].next; next != h.head && h.frags[next].state == Free {
		h.absorb(idx, next)
		h.stats.CoalesceNext++
	}
	return nil
}

// linked reports whether both neighbours of idx point back at it.
func (h *Heap) linked(idx int) bool {
	f := h.frags[idx]
	if f.prev < 0 || f.prev >= len(h.frags) || f.next < 0 || f.next >= len(h.frags) {
		return false
	}
	return h.frags[f.prev].next == idx && h.frags[f.next].prev == idx
}

// absorb merges fragment b into its predecessor a and releases b's slot.
func (h *Heap) absorb(a, b int) {
	h.frags[a].size += h.cfg.HeaderSize + h.frags[b].size
	h.unlink(b)
	h.release(b)
}

func (h *Heap) newFragment(off, size int, state State) int {
	var idx int
	if n := len(h.spare); n > 0 {
		idx = h.spare[n-1]
		h.spare = h.spare[:n-1]
	} else {
		h.frags = append(h.frags, fragment{})
		idx = len(h.frags) - 1
	}
	f := &h.frags[idx]
	f.off, f.size, f.state, f.live = off, size, state, true
	f.prev, f.next = idx, idx
	return idx
}

func (h *Heap) release(idx int) {
	f := &h.frags[idx]
	f.live = false
	f.gen++
	h.spare = append(h.spare, idx)
}

// linkAfter inserts n directly after a.
func (h *Heap) linkAfter(a, n int) {
	next := h.frags[a].next
	h.frags[n].prev = a
	h.frags[n].next = next
	h.frags[next].prev = n
	h.frags[a].next = n
}

func (h *Heap) unlink(idx int) {
	f := h.frags[idx]
	h.frags[f.prev].next = f.next
	h.frags[f.next].prev = f.prev
}
