// Package scheduler drives one wake cycle: load state, sample, decide,
// maybe report, persist. Deep sleep loses RAM, so each cycle starts from the
// persisted record and flushes it before handing control back to the power
// controller.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tyeth/tank-sensor/internal/buttons"
	"github.com/tyeth/tank-sensor/internal/display"
	"github.com/tyeth/tank-sensor/internal/log"
	"github.com/tyeth/tank-sensor/internal/policy"
	"github.com/tyeth/tank-sensor/internal/publish"
	"github.com/tyeth/tank-sensor/internal/sensor"
	"github.com/tyeth/tank-sensor/internal/state"
	"github.com/tyeth/tank-sensor/internal/tank"
)

// WakeKind classifies what ended the last sleep.
type WakeKind int

const (
	// WakeColdBoot is first power-on or a reset.
	WakeColdBoot WakeKind = iota
	// WakeTimer is the scheduled report-interval alarm.
	WakeTimer
	// WakeButton is a user press.
	WakeButton
)

func (k WakeKind) String() string {
	switch k {
	case WakeColdBoot:
		return "cold boot"
	case WakeTimer:
		return "timer"
	case WakeButton:
		return "button"
	default:
		return "unknown"
	}
}

// WakeSource is the cause of the current cycle. Constructed fresh each wake,
// never persisted.
type WakeSource struct {
	Kind   WakeKind
	Button buttons.Event // valid only when Kind is WakeButton
}

// ColdBoot is the wake source for first power-on.
func ColdBoot() WakeSource { return WakeSource{Kind: WakeColdBoot} }

// TimerWake is the wake source for the interval alarm.
func TimerWake() WakeSource { return WakeSource{Kind: WakeTimer} }

// ButtonWake is the wake source for a user press.
func ButtonWake(ev buttons.Event) WakeSource {
	return WakeSource{Kind: WakeButton, Button: ev}
}

func (w WakeSource) String() string {
	if w.Kind == WakeButton {
		return fmt.Sprintf("button (%v)", w.Button)
	}
	return w.Kind.String()
}

// Result summarizes one completed cycle. Snapshot is what the display
// showed; the power controller re-renders it with a live countdown while
// dozing.
type Result struct {
	Wake      WakeSource
	SensorOK  bool
	Fill      tank.FillEstimate
	Decision  policy.Decision
	Published bool
	Outcome   string
	Snapshot  display.Snapshot
}

// Scheduler owns the decision cycle. All dependencies are injected; tests
// run whole cycles against fakes.
type Scheduler struct {
	Reader    sensor.Reader
	Burst     sensor.BurstOptions
	Geometry  tank.Geometry
	Publisher publish.Publisher
	Renderer  display.Renderer
	Store     *state.Store

	BandStep          uint
	PublishRetries    int           // total publish attempts per report
	MaxReportInterval time.Duration // heartbeat: re-report after this long, 0 disables

	Now func() time.Time // nil means time.Now
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Cycle runs one wake: Sampling, Deciding, Reporting or Skipping, then
// Persisting. Every wake source takes the same path and always reaches the
// persist step, so the cycle cannot wedge between states.
func (s *Scheduler) Cycle(ctx context.Context, wake WakeSource) Result {
	st := s.Store.Load()
	log.Debugf("wake: %v (band=%dmm)", wake, st.HysteresisBand)

	manualOverride := false
	if wake.Kind == WakeButton {
		switch wake.Button {
		case buttons.EventDecreaseBand:
			st.HysteresisBand = policy.AdjustBand(st.HysteresisBand, -int(s.BandStep), s.Store.MinBand, s.Store.MaxBand)
			log.Infof("band decreased to %dmm", st.HysteresisBand)
		case buttons.EventIncreaseBand:
			st.HysteresisBand = policy.AdjustBand(st.HysteresisBand, int(s.BandStep), s.Store.MinBand, s.Store.MaxBand)
			log.Infof("band increased to %dmm", st.HysteresisBand)
		case buttons.EventForceReport:
			manualOverride = true
			log.Infof("manual report requested")
		}
	}

	d, err := sensor.Sample(ctx, s.Reader, s.Burst)
	if err != nil {
		return s.failCycle(ctx, wake, st, err)
	}

	fill := s.Geometry.Estimate(d)
	st.AddReading(fill.Centimeters(), s.Store.MaxReadings)
	log.Infof("distance %v, fill %v (%.1f%%)", d, fill, s.Geometry.Percent(fill))

	dec := policy.Decide(st.LastReported, fill, st.HysteresisBand, manualOverride)
	if !dec.Report && policy.Heartbeat(st.LastReportTime, s.now(), s.MaxReportInterval) {
		dec = policy.Decision{Report: true, Reason: policy.ReasonHeartbeat}
	}

	published := false
	if dec.Report {
		published = s.report(ctx, &st, fill, dec)
	} else {
		log.Infof("within band (%dmm), skipping report", st.HysteresisBand)
	}

	s.persist(st)

	res := Result{
		Wake:      wake,
		SensorOK:  true,
		Fill:      fill,
		Decision:  dec,
		Published: published,
		Outcome:   outcome(dec, published),
	}
	res.Snapshot = s.render(st, res)
	return res
}

// report publishes with a bounded attempt budget, then moves the baseline
// whether or not delivery succeeded. Re-deciding the same delta every wake
// until the network returns would cost more battery than one lost report.
func (s *Scheduler) report(ctx context.Context, st *state.State, fill tank.FillEstimate, dec policy.Decision) bool {
	now := s.now()
	r := publish.Report{
		DeviceID:  st.DeviceID,
		Fill:      fill,
		Percent:   s.Geometry.Percent(fill),
		Reason:    dec.Reason.String(),
		Timestamp: now,
	}

	attempts := s.PublishRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.Publisher.Publish(ctx, r)
		if err == nil {
			break
		}
		if !errors.Is(err, publish.ErrNetwork) {
			// Auth and rejection failures will not heal within a cycle.
			break
		}
		if attempt < attempts {
			log.Warnf("publish attempt %d/%d failed: %v", attempt, attempts, err)
		}
	}

	st.RecordReport(fill, now)

	if err != nil {
		log.Errorf("report lost after %d attempts: %v", attempts, err)
		s.publishFault(ctx, fmt.Sprintf("publish failed: %v", err))
		return false
	}
	log.Infof("reported %v (%s)", fill, dec.Reason)
	return true
}

// failCycle handles a cycle whose sensor never produced a reading: count it,
// surface it on the error feed, persist, and hand back a skip-shaped result.
// The baseline stays untouched so the next good reading decides normally.
func (s *Scheduler) failCycle(ctx context.Context, wake WakeSource, st state.State, err error) Result {
	st.FailedCycles++
	log.Errorf("sensor failure: %v", err)
	s.publishFault(ctx, fmt.Sprintf("sensor failure: %v", err))
	s.persist(st)

	res := Result{Wake: wake, SensorOK: false, Outcome: "sensor failure"}
	res.Snapshot = s.render(st, res)
	return res
}

// publishFault is best effort: the error feed exists for remote visibility,
// not correctness.
func (s *Scheduler) publishFault(ctx context.Context, msg string) {
	if err := s.Publisher.PublishError(ctx, msg); err != nil {
		log.Debugf("error feed publish failed: %v", err)
	}
}

// persist saves with one retry and proceeds either way. A cycle that cannot
// persist re-reports after the next wake, which is the cheaper failure.
func (s *Scheduler) persist(st state.State) {
	if err := s.Store.Save(st); err != nil {
		log.Warnf("state save failed, retrying once: %v", err)
		if err := s.Store.Save(st); err != nil {
			log.Errorf("state save failed twice, proceeding without persistence: %v", err)
		}
	}
}

func (s *Scheduler) render(st state.State, res Result) display.Snapshot {
	snap := display.Snapshot{
		Fill:     res.Fill,
		Percent:  s.Geometry.Percent(res.Fill),
		History:  st.Readings,
		Band:     st.HysteresisBand,
		SensorOK: res.SensorOK,
		Outcome:  res.Outcome,
	}
	if err := s.Renderer.Render(snap); err != nil {
		log.Warnf("render failed: %v", err)
	}
	return snap
}

func outcome(dec policy.Decision, published bool) string {
	if !dec.Report {
		return fmt.Sprintf("skipped (%s)", dec.Reason)
	}
	if published {
		return fmt.Sprintf("reported (%s)", dec.Reason)
	}
	return fmt.Sprintf("report lost (%s)", dec.Reason)
}
