package heap

import (
	"time"
)

// Config holds the tunable knobs of the heap. The global heap copies
// Default once, when it is first created (see Global in heap.go); changes
// made to Default after that have no effect, matching the C original's own
// "set before first use" contract.
type Config struct {
	// PageSize is the byte size of a page, including its leading
	// backpointer word. Must be a power of two, at least one machine
	// word and at most 64KiB. Default 4096 (the common OS page size, so
	// mmap already returns aligned memory).
	PageSize uintptr
	// PagesPerBlock is the number of data pages grouped into one OS
	// allocation unit.
	PagesPerBlock int
	// MaxTypeNumber is not enforced: type descriptors are kept in a map
	// with no fixed capacity, and nothing reads this value.
	MaxTypeNumber int
	// AtomicDeletionDelayMsec is the time an Atomic handle's referent
	// lingers in a decaying reachable state after the handle stops
	// pointing at it, giving concurrent compare-and-swap participants a
	// grace window.
	AtomicDeletionDelayMsec int64
	// MaxSleepSec bounds how long the collector goroutine sleeps between
	// cycles when the heap is quiet.
	MaxSleepSec int64
	// TriggerPercentage is the fraction of live objects that must be
	// newly allocated or removed since the last cycle to wake the
	// collector early.
	TriggerPercentage int
}

// Default holds the process-wide configuration. It is safe to mutate before
// the first handle is constructed; it is not safe to mutate concurrently
// with live mutators.
var Default = Config{
	PageSize:                4096,
	PagesPerBlock:           15,
	MaxTypeNumber:           1 << 16,
	AtomicDeletionDelayMsec: 100,
	MaxSleepSec:             30,
	TriggerPercentage:       25,
}

// decayStep is the interval between decay steps. All decaying slots age in
// lockstep, so a slot's first step can come right after its promotion; the
// delay is therefore split over one step fewer than decayStepCount, which
// keeps the full descent to Reachable at least AtomicDeletionDelayMsec long.
func (c *Config) decayStep() time.Duration {
	return time.Duration(c.AtomicDeletionDelayMsec) * time.Millisecond / time.Duration(decayStepCount-1)
}

func (c *Config) dataSize() uintptr {
	return c.PageSize - wordSize
}

func (c *Config) blockBytes() int {
	return int(c.PageSize) * c.PagesPerBlock
}
