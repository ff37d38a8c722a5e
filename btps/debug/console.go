package debug

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/joshuapare/btpskit/btps/osal"
)

const (
	// MaxMessage is the formatting buffer size; messages keep at most
	// MaxMessage-1 bytes.
	MaxMessage = 128

	// DefaultRingSize is the buffered-mode ring capacity.
	DefaultRingSize = 512

	// minRingSize fits one full message plus its line ending.
	minRingSize = MaxMessage + 2
)

// Config configures a Console.
type Config struct {
	Platform osal.Platform // Selects direct or buffered mode; required
	Output   io.Writer     // Destination; nil discards everything
	Zones    Zone          // Initial mask; zero means DefaultZones
	RingSize int           // Buffered-mode ring size; default DefaultRingSize
}

// Console writes debug text for the kernel.
type Console struct {
	out      io.Writer
	outMu    sync.Mutex
	zones    atomic.Uint32
	plat     osal.Platform
	buffered bool

	// Buffered mode only.
	ioMu osal.Mutex
	ring *ringbuffer.RingBuffer
}

// New returns a console for cfg.Platform.
func New(cfg Config) (*Console, error) {
	if cfg.Platform == nil {
		return nil, ErrNoPlatform
	}
	if cfg.Zones == 0 {
		cfg.Zones = DefaultZones
	}

	c := &Console{
		out:      cfg.Output,
		plat:     cfg.Platform,
		buffered: cfg.Platform.Kind() == osal.Preemptive,
	}
	c.zones.Store(uint32(cfg.Zones))

	if c.buffered {
		size := cfg.RingSize
		if size == 0 {
			size = DefaultRingSize
		}
		size = max(size, minRingSize)

		mu, err := cfg.Platform.NewMutex(context.Background(), false)
		if err != nil {
			return nil, fmt.Errorf("debug: create io mutex: %w", err)
		}
		c.ioMu = mu
		c.ring = ringbuffer.New(size)
	}
	return c, nil
}

// Buffered reports whether output waits for IdleHook or Flush.
func (c *Console) Buffered() bool { return c.buffered }

// SetZones replaces the zone mask.
func (c *Console) SetZones(z Zone) { c.zones.Store(uint32(z)) }

// Zones returns the zone mask.
func (c *Console) Zones() Zone { return Zone(c.zones.Load()) }

// Enabled reports whether any bit of z is in the mask.
func (c *Console) Enabled(z Zone) bool {
	return Zone(c.zones.Load())&z != 0
}

// Printf formats a message and writes it with the mode's line ending.
func (c *Console) Printf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > MaxMessage-1 {
		msg = msg[:MaxMessage-1]
	}
	return c.write(msg)
}

// Msg is Printf gated on zone.
func (c *Console) Msg(zone Zone, format string, args ...any) error {
	if !zonesCompiled || !c.Enabled(zone) {
		return nil
	}
	return c.Printf(format, args...)
}

func (c *Console) write(msg string) error {
	if c.out == nil || msg == "" {
		return nil
	}
	if c.buffered {
		return c.enqueue(msg)
	}

	last := msg[len(msg)-1]
	line := make([]byte, 0, len(msg)+2)
	for i := 0; i < len(msg); i++ {
		if msg[i] != '\f' {
			line = append(line, msg[i])
		}
	}
	switch last {
	case '\n':
		line = append(line, '\r')
	case '\f':
	default:
		line = append(line, '\n', '\r')
	}

	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, err := c.out.Write(line)
	return err
}

// enqueue appends msg to the ring, waiting for the drain to make room.
func (c *Console) enqueue(msg string) error {
	ctx := context.Background()
	if err := c.ioMu.Wait(ctx, osal.Infinite); err != nil {
		return err
	}
	defer c.ioMu.Release(ctx)

	last := msg[len(msg)-1]
	line := []byte(msg)
	if last == '\f' {
		line = line[:len(line)-1]
	} else {
		line = append(line, '\r')
		if last != '\n' {
			line = append(line, '\n')
		}
	}

	for c.ring.Free() < len(line) {
		c.plat.Delay(1)
	}
	_, err := c.ring.Write(line)
	return err
}

// IdleHook moves at most one buffered byte to the output and reports whether
// it did. It is a no-op in direct mode.
func (c *Console) IdleHook() bool {
	if !c.buffered || c.out == nil {
		return false
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()

	b, err := c.ring.ReadByte()
	if err != nil {
		return false
	}
	_, _ = c.out.Write([]byte{b})
	return true
}

// Flush writes everything buffered so far.
func (c *Console) Flush() error {
	if !c.buffered || c.out == nil {
		return nil
	}
	c.outMu.Lock()
	defer c.outMu.Unlock()

	buf := make([]byte, c.ring.Capacity())
	for {
		n, err := c.ring.Read(buf)
		if n == 0 || err != nil {
			return nil
		}
		if _, err := c.out.Write(buf[:n]); err != nil {
			return err
		}
	}
}

// Pending returns the number of buffered bytes not yet written.
func (c *Console) Pending() int {
	if !c.buffered {
		return 0
	}
	return c.ring.Length()
}
