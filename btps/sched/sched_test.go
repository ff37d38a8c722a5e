package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/btpskit/btps/osal"
)

type counter struct {
	name string
	hits *int
	log  *[]string
}

func (c counter) Run() {
	*c.hits++
	if c.log != nil {
		*c.log = append(*c.log, c.name)
	}
}

func newCounter(name string, log *[]string) counter {
	return counter{name: name, hits: new(int), log: log}
}

func Test_Scheduler_Periodicity(t *testing.T) {
	clock := osal.NewManualClock(100)
	s := New(Config{Clock: clock})

	periods := []uint32{1, 3, 7, 10}
	tasks := make([]counter, len(periods))
	for i, p := range periods {
		tasks[i] = newCounter("", nil)
		require.NoError(t, s.Add(tasks[i], p))
	}

	const ticks = 100
	for range ticks {
		clock.Advance(1)
		require.NoError(t, s.ProcessOnce())
	}

	for i, p := range periods {
		require.Equal(t, int(ticks/p), *tasks[i].hits, "period %d", p)
	}
}

func Test_Scheduler_LargeStepFiresOnce(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})
	c := newCounter("c", nil)
	require.NoError(t, s.Add(c, 5))

	clock.Advance(23)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, 1, *c.hits, "accumulator resets to zero after firing")

	clock.Advance(4)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, 1, *c.hits)

	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, 2, *c.hits)
}

func Test_Scheduler_RegistrationOrder(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})

	var log []string
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.Add(newCounter(name, &log), 2))
	}

	clock.Advance(2)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"a", "b", "c"}, log)
}

func Test_Scheduler_NoElapsedNoWork(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})
	c := newCounter("c", nil)
	require.NoError(t, s.Add(c, 1))

	for range 10 {
		require.NoError(t, s.ProcessOnce())
	}
	require.Zero(t, *c.hits)
}

func Test_Scheduler_Resolution(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock, Resolution: 4})
	c := newCounter("c", nil)
	require.NoError(t, s.Add(c, 0))

	for range 12 {
		clock.Advance(1)
		require.NoError(t, s.ProcessOnce())
	}
	require.Equal(t, 3, *c.hits)
}

func Test_Scheduler_Capacity(t *testing.T) {
	s := New(Config{Clock: osal.NewManualClock(0)})
	for i := range DefaultCapacity {
		require.NoError(t, s.Add(newCounter("", nil), uint32(i+1)))
	}
	require.ErrorIs(t, s.Add(newCounter("", nil), 1), ErrFull)
	require.ErrorIs(t, s.Add(nil, 1), ErrNilTask)
	require.Equal(t, DefaultCapacity, s.Len())
}

// remover drops target from the table the first time it runs.
type remover struct {
	name   string
	s      *Scheduler
	target Task
	log    *[]string
}

func (r *remover) Run() {
	*r.log = append(*r.log, r.name)
	if r.target != nil {
		r.s.Remove(r.target)
		r.target = nil
	}
}

func Test_Scheduler_TaskRemovesItself(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})
	var log []string

	a := &remover{name: "a", s: s, log: &log}
	a.target = a
	b := newCounter("b", &log)
	c := newCounter("c", &log)
	require.NoError(t, s.Add(a, 1))
	require.NoError(t, s.Add(b, 1))
	require.NoError(t, s.Add(c, 1))

	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"a", "b", "c"}, log)
	require.Equal(t, 2, s.Len())

	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"a", "b", "c", "b", "c"}, log)
}

func Test_Scheduler_TaskRemovesEarlierEntry(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})
	var log []string

	a := newCounter("a", &log)
	b := newCounter("b", &log)
	c := &remover{name: "c", s: s, target: a, log: &log}
	d := newCounter("d", &log)
	require.NoError(t, s.Add(a, 1))
	require.NoError(t, s.Add(b, 1))
	require.NoError(t, s.Add(c, 2))
	require.NoError(t, s.Add(d, 2))

	clock.Advance(2)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"a", "b", "c", "d"}, log, "d still runs after the table shifts")
	require.Equal(t, 3, s.Len())

	// c and d were reset after firing; one tick is not enough for either.
	log = log[:0]
	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"b"}, log)

	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"b", "b", "c", "d"}, log)
}

func Test_Scheduler_RemoveCompacts(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})

	var log []string
	a, b, c := newCounter("a", &log), newCounter("b", &log), newCounter("c", &log)
	require.NoError(t, s.Add(a, 1))
	require.NoError(t, s.Add(b, 1))
	require.NoError(t, s.Add(c, 1))

	require.True(t, s.Remove(b))
	require.False(t, s.Remove(b), "already removed")
	require.False(t, s.Remove(newCounter("a", &log)), "different hit counter is a different task")
	require.Equal(t, 2, s.Len())

	clock.Advance(1)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, []string{"a", "c"}, log)

	// Freed slot is usable again.
	require.NoError(t, s.Add(b, 1))
	require.Equal(t, 3, s.Len())
}

func Test_Scheduler_RemoveFuncIsNoop(t *testing.T) {
	s := New(Config{Clock: osal.NewManualClock(0)})
	f := TaskFunc(func() {})
	require.NoError(t, s.Add(f, 1))
	require.False(t, s.Remove(f))
	require.Equal(t, 1, s.Len())
}

func Test_Scheduler_ZeroValue(t *testing.T) {
	var s Scheduler
	require.ErrorIs(t, s.Add(TaskFunc(func() {}), 1), ErrNotInitialized)
	require.ErrorIs(t, s.ProcessOnce(), ErrNotInitialized)
	require.ErrorIs(t, s.Run(context.Background()), ErrNotInitialized)
}

func Test_Scheduler_AcrossWrap(t *testing.T) {
	clock := osal.NewManualClock(0xFFFFFFF0)
	s := New(Config{Clock: clock})
	c := newCounter("c", nil)
	require.NoError(t, s.Add(c, 0x20))

	clock.Set(0x10)
	require.NoError(t, s.ProcessOnce())
	require.Equal(t, 1, *c.hits)
}

func Test_Elapsed(t *testing.T) {
	require.Equal(t, uint32(0x20), Elapsed(0xFFFFFFF0, 0x00000010))
	require.Equal(t, uint32(5), Elapsed(10, 15))
	require.Equal(t, uint32(1), Elapsed(0xFFFFFFFF, 0))
	require.Equal(t, uint32(0), Elapsed(42, 42))
}

func Test_Scheduler_Run(t *testing.T) {
	clock := osal.NewManualClock(0)
	s := New(Config{Clock: clock})
	c := newCounter("c", nil)
	require.NoError(t, s.Add(c, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
