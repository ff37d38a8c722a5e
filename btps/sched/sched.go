package sched

import (
	"context"
	"reflect"
	"runtime"

	"github.com/joshuapare/btpskit/btps/osal"
)

const (
	// DefaultCapacity is the number of task entries.
	DefaultCapacity = 8

	// DefaultResolution is the smallest period, in ticks, a task may have.
	DefaultResolution = 1
)

// Task is a periodic callback.
type Task interface {
	Run()
}

// TaskFunc adapts a function to Task. Function values are not comparable, so a
// TaskFunc cannot be removed; register a comparable Task to use Remove.
type TaskFunc func()

func (f TaskFunc) Run() { f() }

// Config configures a Scheduler. Zero fields take the defaults.
type Config struct {
	Clock      osal.Clock // Tick source; default osal.NewSystemClock()
	Capacity   int        // Table size; default DefaultCapacity
	Resolution uint32     // Minimum period; default DefaultResolution
}

type entry struct {
	id     uint64
	count  uint32
	expiry uint32
	task   Task
}

// Scheduler runs Tasks on fixed periods. The zero value reports
// ErrNotInitialized; use New.
type Scheduler struct {
	clock      osal.Clock
	resolution uint32
	entries    []entry
	previous   uint32
	nextID     uint64
}

// New returns an initialized scheduler. The elapsed-time reference starts at
// the clock's current reading.
func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = osal.NewSystemClock()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = DefaultResolution
	}
	return &Scheduler{
		clock:      cfg.Clock,
		resolution: cfg.Resolution,
		entries:    make([]entry, 0, cfg.Capacity),
		previous:   cfg.Clock.Now(),
	}
}

// Add registers t to run every period ticks. Periods below the scheduler
// resolution are raised to it.
func (s *Scheduler) Add(t Task, period uint32) error {
	if s.clock == nil {
		return ErrNotInitialized
	}
	if t == nil {
		return ErrNilTask
	}
	if len(s.entries) == cap(s.entries) {
		return ErrFull
	}
	s.nextID++
	s.entries = append(s.entries, entry{id: s.nextID, expiry: max(period, s.resolution), task: t})
	return nil
}

// Remove unregisters the first entry equal to t and shifts the entries after
// it down one place. It reports whether an entry was removed.
func (s *Scheduler) Remove(t Task) bool {
	if t == nil || !reflect.TypeOf(t).Comparable() {
		return false
	}
	for i, e := range s.entries {
		if e.task == t {
			copy(s.entries[i:], s.entries[i+1:])
			s.entries[len(s.entries)-1] = entry{}
			s.entries = s.entries[:len(s.entries)-1]
			return true
		}
	}
	return false
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.entries) }

// ProcessOnce advances every entry by the ticks elapsed since the previous
// call and runs the entries that expired, in registration order.
func (s *Scheduler) ProcessOnce() error {
	if s.clock == nil {
		return ErrNotInitialized
	}

	now := s.clock.Now()
	elapsed := Elapsed(s.previous, now)
	s.previous = now
	if elapsed == 0 {
		return nil
	}

	// Tasks may Add or Remove from inside Run. Entry ids grow in table order,
	// so the pass resumes at the first id after the one that just ran.
	for i := 0; i < len(s.entries); {
		e := &s.entries[i]
		e.count += elapsed
		if e.count < e.expiry {
			i++
			continue
		}
		id := e.id
		e.task.Run()

		i = s.after(id)
		if i > 0 && s.entries[i-1].id == id {
			s.entries[i-1].count = 0
		}
	}
	return nil
}

// after returns the index of the first entry whose id is greater than id.
func (s *Scheduler) after(id uint64) int {
	for i, e := range s.entries {
		if e.id > id {
			return i
		}
	}
	return len(s.entries)
}

// Run calls ProcessOnce until ctx is done, yielding between passes.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.clock == nil {
		return ErrNotInitialized
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.ProcessOnce(); err != nil {
			return err
		}
		runtime.Gosched()
	}
}

// Elapsed returns the ticks from prev to cur on a 32-bit counter that may
// have wrapped in between. Unsigned subtraction is exact modulo 2^32.
func Elapsed(prev, cur uint32) uint32 {
	return cur - prev
}
