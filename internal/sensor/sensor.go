// Package sensor provides distance acquisition with hardware abstraction.
// The real implementation reads a serial rangefinder; the sim implementation
// models a slowly draining tank; the fake implementation allows testing
// without hardware.
package sensor

import (
	"context"
	"errors"
	"fmt"
)

// Distance is a single range reading in millimetres.
type Distance int

// Millimeters returns the reading as an int.
func (d Distance) Millimeters() int { return int(d) }

// Centimeters returns the reading in centimetres.
func (d Distance) Centimeters() float64 { return float64(d) / 10 }

func (d Distance) String() string {
	return fmt.Sprintf("%.1fcm", d.Centimeters())
}

// Error kinds. Readers wrap these so callers can classify with errors.Is.
var (
	// ErrOutOfRange marks a reading outside the sensor's usable range.
	// Out-of-range readings are reported as errors, never clamped.
	ErrOutOfRange = errors.New("sensor: reading out of range")

	// ErrTimeout marks a read that did not complete within its budget.
	ErrTimeout = errors.New("sensor: read timed out")

	// ErrHardware marks a fault in the sensor or its transport.
	ErrHardware = errors.New("sensor: hardware fault")
)

// Range is the usable measurement window of a sensor, inclusive.
type Range struct {
	Min Distance
	Max Distance
}

// Check validates a reading against the range.
func (r Range) Check(d Distance) error {
	if d < r.Min || d > r.Max {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrOutOfRange, d, r.Min, r.Max)
	}
	return nil
}

// Reader reads distance measurements.
type Reader interface {
	// ReadDistance returns one validated reading. The context bounds the
	// read; implementations return an error wrapping ErrOutOfRange,
	// ErrTimeout or ErrHardware on failure.
	ReadDistance(ctx context.Context) (Distance, error)

	// Close releases sensor resources.
	Close() error
}
