package btps

import (
	"io"

	"github.com/joshuapare/btpskit/btps/debug"
	"github.com/joshuapare/btpskit/btps/heap"
	"github.com/joshuapare/btpskit/btps/osal"
	"github.com/joshuapare/btpskit/btps/sched"
)

// Config configures a Kernel. Zero fields take platform-appropriate defaults.
type Config struct {
	// Platform defaults to osal.RTOS on the system clock.
	Platform osal.Platform

	// Heap geometry. A zero Size selects heap.DefaultSize on preemptive
	// platforms and heap.DefaultCooperativeSize on cooperative ones.
	Heap heap.Config

	// Output receives debug console text. nil discards it.
	Output io.Writer

	DebugZones    debug.Zone
	DebugRingSize int

	// Scheduler settings. A nil Clock uses the platform tick count.
	Scheduler sched.Config
}

func (c Config) withDefaults() Config {
	if c.Platform == nil {
		c.Platform = osal.RTOS(osal.NewSystemClock())
	}
	if c.Heap.Size == 0 {
		if c.Platform.Kind() == osal.Cooperative {
			c.Heap.Size = heap.DefaultCooperativeSize
		} else {
			c.Heap.Size = heap.DefaultSize
		}
	}
	if c.Scheduler.Clock == nil {
		c.Scheduler.Clock = tickClock{c.Platform}
	}
	return c
}

// tickClock reads the platform tick count.
type tickClock struct{ p osal.Platform }

func (c tickClock) Now() uint32 { return c.p.TickCount() }
