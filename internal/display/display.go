// Package display renders the device status view after each cycle and
// during the awake countdown. Layouts are free to differ per backend; the
// Snapshot is the contract.
package display

import (
	"time"

	"github.com/tyeth/tank-sensor/internal/tank"
)

// Snapshot is a point-in-time view of the device for rendering.
// It is a value type, safe to hold after the cycle moves on.
type Snapshot struct {
	Fill      tank.FillEstimate
	Percent   float64
	History   []float64 // recent fills in cm, most recent first
	Band      uint      // hysteresis band, mm
	Countdown time.Duration
	SensorOK  bool
	Outcome   string // last cycle's outcome, e.g. "reported (band exceeded)"
}

// Renderer draws snapshots.
type Renderer interface {
	// Render draws one snapshot. Render failures must not stop a cycle.
	Render(snap Snapshot) error

	// Blank clears the display before deep sleep.
	Blank() error

	// Close releases display resources.
	Close() error
}
