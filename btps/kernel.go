package btps

import (
	"context"
	"sync/atomic"

	"github.com/joshuapare/btpskit/btps/debug"
	"github.com/joshuapare/btpskit/btps/heap"
	"github.com/joshuapare/btpskit/btps/mailbox"
	"github.com/joshuapare/btpskit/btps/osal"
	"github.com/joshuapare/btpskit/btps/sched"
	"github.com/joshuapare/btpskit/internal/logger"
)

// Kernel is one instance of the kernel services.
type Kernel struct {
	plat    osal.Platform
	heap    *heap.Heap
	heapMu  osal.Mutex
	console *debug.Console
	sched   *sched.Scheduler

	idle     *osal.Thread
	idleStop atomic.Bool
	closed   atomic.Bool
}

// New builds a kernel on cfg.Platform. On preemptive platforms it starts the
// idle thread that drains buffered console output.
func New(cfg Config) (*Kernel, error) {
	cfg = cfg.withDefaults()

	h, err := heap.New(cfg.Heap)
	if err != nil {
		return nil, err
	}
	mu, err := cfg.Platform.NewMutex(context.Background(), false)
	if err != nil {
		return nil, err
	}
	con, err := debug.New(debug.Config{
		Platform: cfg.Platform,
		Output:   cfg.Output,
		Zones:    cfg.DebugZones,
		RingSize: cfg.DebugRingSize,
	})
	if err != nil {
		mu.Close()
		return nil, err
	}

	k := &Kernel{
		plat:    cfg.Platform,
		heap:    h,
		heapMu:  mu,
		console: con,
		sched:   sched.New(cfg.Scheduler),
	}

	if con.Buffered() {
		k.idle, err = cfg.Platform.CreateThread("btps-idle", k.idleLoop)
		if err != nil {
			mu.Close()
			return nil, err
		}
	}

	logger.Info("btps: kernel started",
		"platform", cfg.Platform.Name(), "heap", h.Config().Size, "buffered", con.Buffered())
	return k, nil
}

func (k *Kernel) idleLoop(context.Context) {
	for !k.idleStop.Load() {
		if !k.console.IdleHook() {
			k.plat.Delay(1)
		}
	}
}

// Close stops the idle thread and flushes the console. Allocations still
// live are logged as leaks.
func (k *Kernel) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if k.idle != nil {
		k.idleStop.Store(true)
		<-k.idle.Done()
	}
	err := k.console.Flush()

	if s := k.HeapStats(); s.LiveAllocs > 0 {
		logger.Warn("btps: heap allocations leaked at close",
			"allocs", s.LiveAllocs, "bytes", s.LiveBytes)
	}
	k.heapMu.Close()
	return err
}

// Platform returns the platform the kernel runs on.
func (k *Kernel) Platform() osal.Platform { return k.plat }

// Alloc allocates n bytes from the kernel heap. A failure is also reported
// on the Kernel debug zone.
func (k *Kernel) Alloc(n int) (heap.Ref, []byte, error) {
	ctx := context.Background()
	if err := k.heapMu.Wait(ctx, osal.Infinite); err != nil {
		return 0, nil, err
	}
	r, b, err := k.heap.Alloc(n)
	_ = k.heapMu.Release(ctx)

	if err != nil {
		_ = k.console.Msg(debug.ZoneKernel, "Alloc Failed: %d", n)
	}
	return r, b, err
}

// Free returns an allocation to the kernel heap.
func (k *Kernel) Free(r heap.Ref) error {
	ctx := context.Background()
	if err := k.heapMu.Wait(ctx, osal.Infinite); err != nil {
		return err
	}
	defer k.heapMu.Release(ctx)
	return k.heap.Free(r)
}

// HeapStats returns heap counters.
func (k *Kernel) HeapStats() heap.Stats {
	ctx := context.Background()
	if err := k.heapMu.Wait(ctx, osal.Infinite); err != nil {
		return heap.Stats{}
	}
	defer k.heapMu.Release(ctx)
	return k.heap.Stats()
}

// HeapFragments returns the heap layout in address order.
func (k *Kernel) HeapFragments() []heap.FragmentInfo {
	ctx := context.Background()
	if err := k.heapMu.Wait(ctx, osal.Infinite); err != nil {
		return nil
	}
	defer k.heapMu.Release(ctx)
	return k.heap.Fragments()
}

// CheckHeap verifies the heap's fragment list.
func (k *Kernel) CheckHeap() error {
	ctx := context.Background()
	if err := k.heapMu.Wait(ctx, osal.Infinite); err != nil {
		return err
	}
	defer k.heapMu.Release(ctx)
	return k.heap.Check()
}

// CreateMailbox returns a mailbox whose storage comes from the kernel heap.
func (k *Kernel) CreateMailbox(slots, slotSize int) (*mailbox.Mailbox, error) {
	return mailbox.New(k, k.plat, slots, slotSize)
}

// Scheduler returns the kernel's periodic scheduler.
func (k *Kernel) Scheduler() *sched.Scheduler { return k.sched }

// AddFunction registers t to run every period milliseconds.
func (k *Kernel) AddFunction(t sched.Task, period uint32) error {
	return k.sched.Add(t, period)
}

// RemoveFunction unregisters t.
func (k *Kernel) RemoveFunction(t sched.Task) bool { return k.sched.Remove(t) }

// ProcessScheduler runs one scheduler pass.
func (k *Kernel) ProcessScheduler() error { return k.sched.ProcessOnce() }

// RunScheduler drives the scheduler until ctx is done.
func (k *Kernel) RunScheduler(ctx context.Context) error { return k.sched.Run(ctx) }

// Console returns the debug console.
func (k *Kernel) Console() *debug.Console { return k.console }

// OutputMessage writes a formatted debug line regardless of the zone mask.
func (k *Kernel) OutputMessage(format string, args ...any) error {
	return k.console.Printf(format, args...)
}

// DebugMsg writes a formatted debug line if zone is enabled.
func (k *Kernel) DebugMsg(zone debug.Zone, format string, args ...any) error {
	return k.console.Msg(zone, format, args...)
}

// DumpData writes a hex and ASCII dump of data.
func (k *Kernel) DumpData(data []byte) error { return k.console.Dump(data) }

// SetDebugMask replaces the zone mask.
func (k *Kernel) SetDebugMask(z debug.Zone) { k.console.SetZones(z) }

// TestDebugZone reports whether any bit of z is enabled.
func (k *Kernel) TestDebugZone(z debug.Zone) bool { return k.console.Enabled(z) }

// IdleHook drains one buffered console byte. Preemptive kernels call it from
// their own idle thread; it is exported for hosts with their own idle loop.
func (k *Kernel) IdleHook() bool { return k.console.IdleHook() }

// TickCount returns the platform millisecond tick.
func (k *Kernel) TickCount() uint32 { return k.plat.TickCount() }

// Delay suspends the caller for d milliseconds.
func (k *Kernel) Delay(d osal.Timeout) { k.plat.Delay(d) }

// CreateMutex creates a recursive mutex, optionally held by the caller in ctx.
func (k *Kernel) CreateMutex(ctx context.Context, owned bool) (osal.Mutex, error) {
	return k.plat.NewMutex(ctx, owned)
}

// CreateEvent creates a manual-reset event.
func (k *Kernel) CreateEvent(signaled bool) (osal.Event, error) {
	return k.plat.NewEvent(signaled)
}

// CreateThread starts fn on a new platform thread.
func (k *Kernel) CreateThread(name string, fn func(ctx context.Context)) (*osal.Thread, error) {
	return k.plat.CreateThread(name, fn)
}
