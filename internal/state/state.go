// Package state persists the few values that must survive deep sleep. Deep
// sleep loses RAM, so every wake is a cold start: the whole record is loaded
// at the top of each cycle and flushed before power-down.
package state

import (
	"time"

	"github.com/tyeth/tank-sensor/internal/tank"
)

// State is the persisted record. Field names match the on-disk JSON so the
// file stays hand-readable in the field.
type State struct {
	DeviceID       string             `json:"device_id"`
	LastReported   *tank.FillEstimate `json:"last_reported"`
	HysteresisBand uint               `json:"hysteresis_band"`
	LastReportTime time.Time          `json:"last_report_time"`
	ReportCount    uint64             `json:"report_count"`
	FailedCycles   uint64             `json:"failed_cycles"`
	Readings       []float64          `json:"readings"`
}

// RecordReport marks a publish attempt as the new baseline. The three fields
// move together: a torn update here would make the next cycle compare
// against a baseline that was never attempted.
func (s *State) RecordReport(f tank.FillEstimate, at time.Time) {
	v := f
	s.LastReported = &v
	s.LastReportTime = at
	s.ReportCount++
}

// AddReading prepends a fill reading (in centimetres) to the history,
// dropping the oldest entry beyond max.
func (s *State) AddReading(cm float64, max int) {
	s.Readings = append([]float64{cm}, s.Readings...)
	if max > 0 && len(s.Readings) > max {
		s.Readings = s.Readings[:max]
	}
}
