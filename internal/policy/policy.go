// Package policy decides whether a wake cycle is worth radio time. The rules
// are pure functions over the previous persisted state and the current
// reading, so every decision is reproducible in tests.
package policy

import (
	"time"

	"github.com/tyeth/tank-sensor/internal/tank"
)

// Reason explains a decision.
type Reason int

const (
	// ReasonWithinBand means the level moved less than the hysteresis
	// band since the last report.
	ReasonWithinBand Reason = iota
	// ReasonBandExceeded means the level moved by at least the band.
	ReasonBandExceeded
	// ReasonFirstReading means there is no previous report to compare
	// against.
	ReasonFirstReading
	// ReasonManualOverride means the user pressed the force-report button.
	ReasonManualOverride
	// ReasonHeartbeat means too long has passed since the last report.
	ReasonHeartbeat
)

func (r Reason) String() string {
	switch r {
	case ReasonWithinBand:
		return "within band"
	case ReasonBandExceeded:
		return "band exceeded"
	case ReasonFirstReading:
		return "first reading"
	case ReasonManualOverride:
		return "manual override"
	case ReasonHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one wake cycle's evaluation.
type Decision struct {
	Report bool
	Reason Reason
}

// Decide determines whether the current fill estimate should be reported.
// Priority order: a manual override always reports, a first-ever reading
// always reports, otherwise the absolute change since the last report must
// meet or exceed the band. Equality counts as exceeding; a band of zero
// reports every cycle.
func Decide(prev *tank.FillEstimate, cur tank.FillEstimate, band uint, manualOverride bool) Decision {
	if manualOverride {
		return Decision{Report: true, Reason: ReasonManualOverride}
	}
	if prev == nil {
		return Decision{Report: true, Reason: ReasonFirstReading}
	}

	delta := int(cur) - int(*prev)
	if delta < 0 {
		delta = -delta
	}
	if uint(delta) >= band {
		return Decision{Report: true, Reason: ReasonBandExceeded}
	}
	return Decision{Report: false, Reason: ReasonWithinBand}
}

// AdjustBand applies a signed delta to the band and clamps the result to
// [min, max]. Adjusting past a rail is a no-op, not an error, so holding a
// button at the limit stays harmless.
func AdjustBand(cur uint, delta int, min, max uint) uint {
	n := int(cur) + delta
	if n < int(min) {
		return min
	}
	if n > int(max) {
		return max
	}
	return uint(n)
}

// Heartbeat reports whether the last report is old enough that the level
// should be re-sent even if unchanged, so the feed never looks dead. A zero
// max disables the heartbeat; a zero lastReport means nothing has been
// reported yet and the first-reading rule applies instead.
func Heartbeat(lastReport, now time.Time, max time.Duration) bool {
	if max <= 0 || lastReport.IsZero() {
		return false
	}
	return now.Sub(lastReport) >= max
}
