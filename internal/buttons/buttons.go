// Package buttons provides the three-button input surface with hardware
// abstraction. The real implementation uses the Linux GPIO character device;
// a keyboard implementation stands in during desk runs; the fake allows
// testing without hardware.
package buttons

import (
	"sync"
	"time"
)

// Event is one logical button press.
type Event int

const (
	// EventDecreaseBand narrows the hysteresis band by one step.
	EventDecreaseBand Event = iota
	// EventIncreaseBand widens the hysteresis band by one step.
	EventIncreaseBand
	// EventForceReport requests an unconditional report this cycle.
	EventForceReport
)

func (e Event) String() string {
	switch e {
	case EventDecreaseBand:
		return "decrease band"
	case EventIncreaseBand:
		return "increase band"
	case EventForceReport:
		return "force report"
	default:
		return "unknown"
	}
}

// Source delivers button presses. Implementations keep delivering across
// sleep phases; presses are never gated on device state.
type Source interface {
	// Events returns the press channel. Implementations may drop presses
	// when the channel is full rather than block the edge handler.
	Events() <-chan Event

	// Close releases input resources.
	Close() error
}

// Pin definitions (BCM numbering). Buttons are wired active-low to ground.
const (
	PinDecrease = 5
	PinIncrease = 6
	PinForce    = 13
)

// Debounce is the minimum spacing between presses on one line. Edges closer
// together than this are contact bounce.
const Debounce = 300 * time.Millisecond

// Pins selects the GPIO lines for the three buttons.
type Pins struct {
	Decrease int
	Increase int
	Force    int
}

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{Decrease: PinDecrease, Increase: PinIncrease, Force: PinForce}
}

// debouncer suppresses contact bounce per line. Safe for concurrent use:
// edge handlers run on the gpiocdev event goroutine.
type debouncer struct {
	mu     sync.Mutex
	period time.Duration
	last   map[int]time.Duration
}

func newDebouncer(period time.Duration) *debouncer {
	return &debouncer{period: period, last: make(map[int]time.Duration)}
}

// allow reports whether an edge at ts (kernel monotonic timestamp) on the
// given line is a real press rather than bounce.
func (d *debouncer) allow(offset int, ts time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, seen := d.last[offset]
	if seen && ts-last < d.period {
		return false
	}
	d.last[offset] = ts
	return true
}
