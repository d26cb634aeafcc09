// Package tank converts sensor distances into fill estimates using the
// tank's measured geometry.
package tank

import (
	"fmt"

	"github.com/tyeth/tank-sensor/internal/sensor"
)

// FillEstimate is the computed depth of liquid in the tank, in millimetres.
type FillEstimate int

// Millimeters returns the estimate as an int.
func (f FillEstimate) Millimeters() int { return int(f) }

// Centimeters returns the estimate in centimetres.
func (f FillEstimate) Centimeters() float64 { return float64(f) / 10 }

func (f FillEstimate) String() string {
	return fmt.Sprintf("%.1fcm", f.Centimeters())
}

// Geometry describes the installation: how deep the tank is and how far the
// sensor face sits above the full mark.
type Geometry struct {
	DepthMM     int // inside depth of the tank
	SensorGapMM int // distance from sensor face to the full level
}

// Estimate converts a distance reading to a fill depth. The estimate is
// clamped to [0, DepthMM]: readings that imply an overfull or overdrained
// tank come from mounting slack, not liquid, and would otherwise leak
// negative fills into reports.
func (g Geometry) Estimate(d sensor.Distance) FillEstimate {
	fill := g.DepthMM - (d.Millimeters() - g.SensorGapMM)
	if fill < 0 {
		fill = 0
	}
	if fill > g.DepthMM {
		fill = g.DepthMM
	}
	return FillEstimate(fill)
}

// Percent returns the fill as a percentage of tank depth.
func (g Geometry) Percent(f FillEstimate) float64 {
	if g.DepthMM <= 0 {
		return 0
	}
	return float64(f) / float64(g.DepthMM) * 100
}
