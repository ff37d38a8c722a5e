package heap

import "fmt"

// FragmentInfo describes one fragment as seen by Fragments.
type FragmentInfo struct {
	Offset int   // Arena offset of the header
	Size   int   // Payload bytes
	State  State // Free or InUse
}

// Stats is a snapshot of heap usage.
type Stats struct {
	ArenaSize    int // Total arena bytes, headers included
	Fragments    int // Number of fragments in the list
	LiveAllocs   int // InUse fragments
	LiveBytes    int // Payload bytes InUse
	FreeBytes    int // Payload bytes Free
	LargestFree  int // Largest Free payload
	PeakBytes    int // High-water mark of LiveBytes
	AllocCalls   int
	AllocFailed  int
	FreeCalls    int
	FreeRejected int
	Splits       int
	Coalesces    int
}

// Fragments returns the fragment list in arena order. An untouched heap
// reports the single Free fragment it will start with.
func (h *Heap) Fragments() []FragmentInfo {
	if !h.ready {
		return []FragmentInfo{{Offset: 0, Size: h.cfg.Size - h.cfg.HeaderSize, State: Free}}
	}
	var out []FragmentInfo
	idx := h.head
	for {
		f := h.frags[idx]
		out = append(out, FragmentInfo{Offset: f.off, Size: f.size, State: f.state})
		idx = f.next
		if idx == h.head || len(out) > len(h.frags) {
			return out
		}
	}
}

// Stats walks the fragment list and returns usage counters.
func (h *Heap) Stats() Stats {
	s := Stats{
		ArenaSize:    h.cfg.Size,
		PeakBytes:    h.stats.PeakBytes,
		AllocCalls:   h.stats.AllocCalls,
		AllocFailed:  h.stats.AllocFailed,
		FreeCalls:    h.stats.FreeCalls,
		FreeRejected: h.stats.FreeRejected,
		Splits:       h.stats.SplitSmall + h.stats.SplitLarge,
		Coalesces:    h.stats.CoalescePrev + h.stats.CoalesceNext,
	}
	for _, f := range h.Fragments() {
		s.Fragments++
		if f.State == InUse {
			s.LiveAllocs++
			s.LiveBytes += f.Size
			continue
		}
		s.FreeBytes += f.Size
		s.LargestFree = max(s.LargestFree, f.Size)
	}
	return s
}

// Check verifies the fragment list invariants:
//   - every fragment's neighbours link back to it
//   - fragments are contiguous from offset 0 and cover the whole arena
//   - no two arena-adjacent fragments are both Free
//   - every live slot is on the list exactly once
//
// It returns an error wrapping ErrCorrupt describing the first violation.
func (h *Heap) Check() error {
	if !h.ready {
		return nil
	}

	hdr := h.cfg.HeaderSize
	live := 0
	for _, f := range h.frags {
		if f.live {
			live++
		}
	}

	seen := make(map[int]bool, live)
	idx, want := h.head, 0
	var prevState State = InUse
	for {
		if idx < 0 || idx >= len(h.frags) || !h.frags[idx].live {
			return fmt.Errorf("%w: dangling link to slot %d", ErrCorrupt, idx)
		}
		if seen[idx] {
			return fmt.Errorf("%w: slot %d visited twice", ErrCorrupt, idx)
		}
		seen[idx] = true

		f := h.frags[idx]
		if !h.linked(idx) {
			return fmt.Errorf("%w: fragment at %#x has inconsistent links", ErrCorrupt, f.off)
		}
		if f.off != want {
			return fmt.Errorf("%w: fragment at %#x, expected %#x", ErrCorrupt, f.off, want)
		}
		if f.state == Free && prevState == Free {
			return fmt.Errorf("%w: adjacent free fragments at %#x", ErrCorrupt, f.off)
		}
		prevState = f.state
		want = f.off + hdr + f.size

		idx = f.next
		if idx == h.head {
			break
		}
	}

	if want != h.cfg.Size {
		return fmt.Errorf("%w: fragments cover %d of %d bytes", ErrCorrupt, want, h.cfg.Size)
	}
	if len(seen) != live {
		return fmt.Errorf("%w: %d live slots, %d on list", ErrCorrupt, live, len(seen))
	}
	return nil
}
