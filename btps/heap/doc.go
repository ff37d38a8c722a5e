// Package heap provides the fixed-arena memory allocator used by the BTPS kernel.
//
// # Overview
//
// The heap manages one statically sized byte arena. Every byte of the arena
// belongs to exactly one fragment; fragments form a circular doubly linked list
// ordered by arena offset:
//
//	[hdr|payload][hdr|payload][hdr|payload] ... back to the first fragment
//
// Each fragment is either Free or InUse. The whole arena starts as a single
// Free fragment and the heap is initialized lazily on the first Alloc.
//
// # Allocation Policy
//
//   - Sizes are rounded up to Config.Alignment.
//   - Small requests (< Config.LargeSize) walk forward from the first fragment,
//     so they are packed at the start of the arena.
//   - Large requests (>= Config.LargeSize) walk backward, so long-lived large
//     buffers collect at the end of the arena.
//   - A Free fragment that is larger than needed is split only when the
//     remainder can hold a header plus Config.MinFragment bytes. Small requests
//     keep the front of the fragment, large requests take its tail.
//
// # Fragment References
//
// Callers never see a header. Alloc returns an opaque Ref (fragment index plus a
// generation counter) and the payload slice:
//
//	ref, buf, err := h.Alloc(64)
//	if err != nil {
//	    return err
//	}
//	copy(buf, payload)
//	...
//	err = h.Free(ref)
//
// A Ref becomes stale as soon as it is freed; a second Free of the same Ref
// reports ErrBadRef or ErrNotInUse instead of touching another allocation.
//
// # Freeing and Coalescing
//
// Free verifies that the fragment is InUse and that its neighbours still link
// back to it, then merges with a Free predecessor and afterwards with a Free
// successor. Two Free fragments are never left adjacent, so draining every
// allocation always restores a single Free fragment spanning the arena.
//
// # Thread Safety
//
// Heap instances are not thread-safe. The kernel wraps every call with its
// heap mutex on preemptive platforms; cooperative builds rely on the absence of
// preemption.
package heap
