package heap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHeap(t *testing.T, cfg Config) *Heap {
	t.Helper()
	h, err := New(cfg)
	require.NoError(t, err)
	return h
}

func Test_New_Config(t *testing.T) {
	h := newTestHeap(t, Config{})
	require.Equal(t, DefaultConfig, h.Config())

	_, err := New(Config{Alignment: 3})
	require.ErrorIs(t, err, ErrConfig)

	_, err = New(Config{Size: 16, HeaderSize: 16})
	require.ErrorIs(t, err, ErrConfig)
}

func Test_Heap_LazyInit(t *testing.T) {
	h := newTestHeap(t, Config{})
	require.False(t, h.ready)
	require.Equal(t, []FragmentInfo{{Offset: 0, Size: DefaultSize - DefaultHeaderSize, State: Free}}, h.Fragments())

	_, _, err := h.Alloc(1)
	require.NoError(t, err)
	require.True(t, h.ready)
}

func Test_Alloc_ZeroSize(t *testing.T) {
	h := newTestHeap(t, Config{})
	_, _, err := h.Alloc(0)
	require.ErrorIs(t, err, ErrZeroSize)
	_, _, err = h.Alloc(-4)
	require.ErrorIs(t, err, ErrZeroSize)
}

func Test_Alloc_RoundsToAlignment(t *testing.T) {
	h := newTestHeap(t, Config{})
	_, buf, err := h.Alloc(10)
	require.NoError(t, err)
	require.Len(t, buf, 10)
	require.Equal(t, 12, cap(buf))

	frags := h.Fragments()
	require.Equal(t, FragmentInfo{Offset: 0, Size: 12, State: InUse}, frags[0])
	require.Equal(t, FragmentInfo{Offset: 28, Size: DefaultSize - 28 - DefaultHeaderSize, State: Free}, frags[1])
	require.NoError(t, h.Check())
}

func Test_Alloc_LargeFromTail(t *testing.T) {
	h := newTestHeap(t, Config{})

	_, _, err := h.Alloc(10)
	require.NoError(t, err)
	_, big, err := h.Alloc(2000)
	require.NoError(t, err)
	require.Equal(t, 2000, cap(big))

	require.Equal(t, []FragmentInfo{
		{Offset: 0, Size: 12, State: InUse},
		{Offset: 28, Size: 22516, State: Free},
		{Offset: 22560, Size: 2000, State: InUse},
	}, h.Fragments())
	require.NoError(t, h.Check())

	// Small requests keep packing at the front.
	_, _, err = h.Alloc(8)
	require.NoError(t, err)
	frags := h.Fragments()
	require.Equal(t, FragmentInfo{Offset: 28, Size: 8, State: InUse}, frags[1])
	require.Equal(t, FragmentInfo{Offset: 22560, Size: 2000, State: InUse}, frags[len(frags)-1])
}

func Test_Alloc_LargeThresholdIsInclusive(t *testing.T) {
	h := newTestHeap(t, Config{})
	_, _, err := h.Alloc(DefaultLargeSize)
	require.NoError(t, err)

	frags := h.Fragments()
	require.Len(t, frags, 2)
	require.Equal(t, Free, frags[0].State)
	require.Equal(t, FragmentInfo{Offset: DefaultSize - DefaultHeaderSize - DefaultLargeSize, Size: DefaultLargeSize, State: InUse}, frags[1])
}

func Test_Alloc_NoSplitWhenRemainderTooSmall(t *testing.T) {
	h := newTestHeap(t, Config{Size: 256})

	// 240 free; 212 + header + min fragment = 244 leaves nothing worth splitting.
	_, buf, err := h.Alloc(212)
	require.NoError(t, err)
	require.Len(t, buf, 212)
	require.Equal(t, 240, cap(buf))
	require.Len(t, h.Fragments(), 1)

	_, _, err = h.Alloc(4)
	require.ErrorIs(t, err, ErrNoSpace)
	require.Equal(t, 1, h.Stats().AllocFailed)
}

func Test_Alloc_SplitBoundary(t *testing.T) {
	h := newTestHeap(t, Config{Size: 256})

	// 240 > 200 + 16 + 16, so a 24 byte Free remainder is split off.
	_, _, err := h.Alloc(200)
	require.NoError(t, err)
	require.Equal(t, []FragmentInfo{
		{Offset: 0, Size: 200, State: InUse},
		{Offset: 216, Size: 24, State: Free},
	}, h.Fragments())
}

func Test_Alloc_NoSpace(t *testing.T) {
	h := newTestHeap(t, Config{Size: 1024})
	_, _, err := h.Alloc(1024)
	require.ErrorIs(t, err, ErrNoSpace)
	require.NoError(t, h.Check())
}

func Test_Alloc_Oversize(t *testing.T) {
	h := newTestHeap(t, Config{Size: 1024})
	for _, n := range []int{1024 - DefaultHeaderSize + 1, math.MaxInt / 2, math.MaxInt - 1, math.MaxInt} {
		_, _, err := h.Alloc(n)
		require.ErrorIs(t, err, ErrNoSpace, "n=%d", n)
	}
	require.NoError(t, h.Check())
	require.Equal(t, 4, h.Stats().AllocFailed)

	_, b, err := h.Alloc(1024 - DefaultHeaderSize)
	require.NoError(t, err, "a request filling the arena still succeeds")
	require.Len(t, b, 1024-DefaultHeaderSize)
}

func Test_Free_CoalescesBothSides(t *testing.T) {
	h := newTestHeap(t, Config{})

	a, _, err := h.Alloc(32)
	require.NoError(t, err)
	b, _, err := h.Alloc(32)
	require.NoError(t, err)
	c, _, err := h.Alloc(32)
	require.NoError(t, err)
	require.Len(t, h.Fragments(), 4)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c)) // merges with the trailing remainder
	require.Len(t, h.Fragments(), 3)
	require.NoError(t, h.Check())

	require.NoError(t, h.Free(b)) // merges prev, then next
	require.Equal(t, []FragmentInfo{{Offset: 0, Size: DefaultSize - DefaultHeaderSize, State: Free}}, h.Fragments())

	s := h.Stats()
	require.Equal(t, 3, s.Coalesces) // c+rest, b into a, then a+c
	require.Zero(t, s.LiveBytes)
}

func Test_Free_DoubleFree(t *testing.T) {
	h := newTestHeap(t, Config{})

	a, _, err := h.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, h.Free(a))
	require.ErrorIs(t, h.Free(a), ErrBadRef)
	require.NoError(t, h.Check())
}

func Test_Free_StaleRefAfterReuse(t *testing.T) {
	h := newTestHeap(t, Config{})

	a, _, err := h.Alloc(64)
	require.NoError(t, err)
	keep, _, err := h.Alloc(64)
	require.NoError(t, err)
	require.NoError(t, h.Free(a))

	b, _, err := h.Alloc(64)
	require.NoError(t, err)
	require.Equal(t, a.index(), b.index(), "slot reused")
	require.NotEqual(t, a, b)

	require.ErrorIs(t, h.Free(a), ErrBadRef)
	require.NoError(t, h.Free(b))
	require.NoError(t, h.Free(keep))
	require.Len(t, h.Fragments(), 1)
}

func Test_Free_BadRef(t *testing.T) {
	h := newTestHeap(t, Config{})
	require.ErrorIs(t, h.Free(0), ErrBadRef)

	_, _, err := h.Alloc(8)
	require.NoError(t, err)
	require.ErrorIs(t, h.Free(makeRef(99, 0)), ErrBadRef)
	require.Equal(t, 2, h.Stats().FreeRejected)
}

func Test_Free_NotInUse(t *testing.T) {
	h := newTestHeap(t, Config{})
	a, _, err := h.Alloc(8)
	require.NoError(t, err)

	h.frags[a.index()].state = Free
	require.ErrorIs(t, h.Free(a), ErrNotInUse)
}

func Test_Free_CorruptLinksLeaveHeapUntouched(t *testing.T) {
	h := newTestHeap(t, Config{})
	a, _, err := h.Alloc(8)
	require.NoError(t, err)
	_, _, err = h.Alloc(8)
	require.NoError(t, err)

	idx := a.index()
	next := h.frags[idx].next
	h.frags[next].prev = next // break the back link

	before := h.Fragments()
	require.ErrorIs(t, h.Free(a), ErrCorrupt)
	require.Equal(t, before, h.Fragments())
	require.Equal(t, InUse, h.frags[idx].state)
	require.ErrorIs(t, h.Check(), ErrCorrupt)
}

func Test_Check_DetectsAdjacentFree(t *testing.T) {
	h := newTestHeap(t, Config{})
	a, _, err := h.Alloc(8)
	require.NoError(t, err)
	_, _, err = h.Alloc(8)
	require.NoError(t, err)

	h.frags[a.index()].state = Free
	// a is Free and followed by an InUse fragment; still valid.
	require.NoError(t, h.Check())

	h.frags[h.frags[a.index()].next].state = Free
	require.ErrorIs(t, h.Check(), ErrCorrupt)
}

func Test_Stats(t *testing.T) {
	h := newTestHeap(t, Config{})
	a, _, err := h.Alloc(100)
	require.NoError(t, err)
	_, _, err = h.Alloc(4000)
	require.NoError(t, err)

	s := h.Stats()
	require.Equal(t, DefaultSize, s.ArenaSize)
	require.Equal(t, 3, s.Fragments)
	require.Equal(t, 2, s.LiveAllocs)
	require.Equal(t, 4100, s.LiveBytes)
	require.Equal(t, DefaultSize-3*DefaultHeaderSize-4100, s.FreeBytes)
	require.Equal(t, s.FreeBytes, s.LargestFree)
	require.Equal(t, 2, s.Splits)

	require.NoError(t, h.Free(a))
	s = h.Stats()
	require.Equal(t, 4100, s.PeakBytes)
	require.Equal(t, 4000, s.LiveBytes)
}
