package heap

import "fmt"

const (
	// DefaultSize is the arena size used by preemptive kernel builds.
	DefaultSize = 24 * 1024

	// DefaultCooperativeSize is the arena size used by cooperative kernel builds.
	DefaultCooperativeSize = 15 * 1024

	// DefaultAlignment is the request rounding granularity (one machine word).
	DefaultAlignment = 4

	// DefaultHeaderSize is the per-fragment bookkeeping overhead charged
	// against the arena (prev, next, state and size words).
	DefaultHeaderSize = 16

	// DefaultLargeSize is the threshold at and above which requests are
	// served from the end of the arena.
	DefaultLargeSize = 1024

	// DefaultMinFragment is the smallest payload worth splitting off.
	DefaultMinFragment = 16
)

// Config describes the arena geometry and the split policy.
// Zero fields take the Default* values.
type Config struct {
	Size        int // Arena size in bytes, headers included
	Alignment   int // Requests are rounded up to a multiple of this
	HeaderSize  int // Bytes charged per fragment for bookkeeping
	LargeSize   int // Requests >= LargeSize are taken from the arena end
	MinFragment int // Minimum payload of a split-off remainder
}

// DefaultConfig is used when New receives a zero Config.
var DefaultConfig = Config{
	Size:        DefaultSize,
	Alignment:   DefaultAlignment,
	HeaderSize:  DefaultHeaderSize,
	LargeSize:   DefaultLargeSize,
	MinFragment: DefaultMinFragment,
}

func (c Config) withDefaults() Config {
	if c.Size == 0 {
		c.Size = DefaultConfig.Size
	}
	if c.Alignment == 0 {
		c.Alignment = DefaultConfig.Alignment
	}
	if c.HeaderSize == 0 {
		c.HeaderSize = DefaultConfig.HeaderSize
	}
	if c.LargeSize == 0 {
		c.LargeSize = DefaultConfig.LargeSize
	}
	if c.MinFragment == 0 {
		c.MinFragment = DefaultConfig.MinFragment
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Alignment < 1 || c.Alignment&(c.Alignment-1) != 0:
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrConfig, c.Alignment)
	case c.HeaderSize < 0 || c.MinFragment < 0 || c.LargeSize < 0:
		return fmt.Errorf("%w: negative size parameter", ErrConfig)
	case c.Size <= c.HeaderSize:
		return fmt.Errorf("%w: arena of %d bytes cannot hold a %d byte header",
			ErrConfig, c.Size, c.HeaderSize)
	}
	return nil
}

// align rounds n up to the configured alignment.
func (c Config) align(n int) int {
	return (n + c.Alignment - 1) &^ (c.Alignment - 1)
}
