package internal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tyeth/tank-sensor/internal/buttons"
	"github.com/tyeth/tank-sensor/internal/display"
	"github.com/tyeth/tank-sensor/internal/publish"
	"github.com/tyeth/tank-sensor/internal/scheduler"
	"github.com/tyeth/tank-sensor/internal/sensor"
	"github.com/tyeth/tank-sensor/internal/state"
	"github.com/tyeth/tank-sensor/internal/tank"
)

// harness wires the full pipeline over fakes: scripted sensor, real policy
// and state, fake publisher and renderer. Tests drive it one wake at a time.
// With Samples=1 each scripted distance is exactly one cycle.
type harness struct {
	sch   *scheduler.Scheduler
	store *state.Store
	pub   *publish.FakePublisher
	rend  *display.FakeRenderer
	path  string
	now   time.Time
}

func newHarness(t *testing.T, reader sensor.Reader) *harness {
	t.Helper()

	h := &harness{
		path: filepath.Join(t.TempDir(), "state.json"),
		pub:  publish.NewFakePublisher(),
		rend: display.NewFakeRenderer(),
		now:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	h.store = &state.Store{
		Path:        h.path,
		DefaultBand: 20,
		MinBand:     5,
		MaxBand:     100,
		MaxReadings: 5,
	}
	h.sch = &scheduler.Scheduler{
		Reader:         reader,
		Burst:          sensor.BurstOptions{Samples: 1, Retries: 2},
		Geometry:       tank.Geometry{DepthMM: 1200, SensorGapMM: 100},
		Publisher:      h.pub,
		Renderer:       h.rend,
		Store:          h.store,
		BandStep:       5,
		PublishRetries: 2,
		Now:            func() time.Time { return h.now },
	}
	return h
}

func (h *harness) cycle(wake scheduler.WakeSource) scheduler.Result {
	return h.sch.Cycle(context.Background(), wake)
}

// TestIntegrationFullFlow walks the pipeline from scripted distances to feed
// values: first reading reports, small drifts stay quiet, a real drop
// reports against the baseline of the last report, not the last sample.
func TestIntegrationFullFlow(t *testing.T) {
	// Distances with geometry 1200/100: fill = 1300 - distance.
	reader := sensor.FakeOf(
		1000, // fill 300mm - first reading, reports
		1000, // unchanged - skip
		985,  // fill 315mm, drift 15 < 20 - skip
		970,  // fill 330mm, 30 >= 20 vs baseline 300 - reports
	)
	h := newHarness(t, reader)

	h.cycle(scheduler.ColdBoot())
	h.cycle(scheduler.TimerWake())
	h.cycle(scheduler.TimerWake())
	h.cycle(scheduler.TimerWake())

	if len(h.pub.Values) != 2 {
		t.Fatalf("published values: got %v, want 2", h.pub.Values)
	}
	if h.pub.Values[0] != "30.0" || h.pub.Values[1] != "33.0" {
		t.Errorf("values: got %v, want [30.0 33.0]", h.pub.Values)
	}
	if h.pub.Reports[0].Reason != "first reading" {
		t.Errorf("report 0 reason: got %q", h.pub.Reports[0].Reason)
	}
	if h.pub.Reports[1].Reason != "band exceeded" {
		t.Errorf("report 1 reason: got %q", h.pub.Reports[1].Reason)
	}

	st := h.store.Load()
	if st.LastReported == nil || *st.LastReported != 330 {
		t.Errorf("persisted baseline: got %v, want 330", st.LastReported)
	}
	if st.ReportCount != 2 {
		t.Errorf("report count: got %d, want 2", st.ReportCount)
	}
	want := []float64{33.0, 31.5, 30.0, 30.0}
	if len(st.Readings) != len(want) {
		t.Fatalf("readings: got %v, want %v", st.Readings, want)
	}
	for i := range want {
		if st.Readings[i] != want[i] {
			t.Errorf("readings[%d]: got %v, want %v", i, st.Readings[i], want[i])
		}
	}
}

// TestIntegrationButtonAdjustChangesOutcome verifies a band press changes
// what the very next cycles do, and that the setting sticks across wakes.
func TestIntegrationButtonAdjustChangesOutcome(t *testing.T) {
	reader := sensor.FakeOf(
		1000, // fill 300mm - first reading
		978,  // fill 322mm, drift 22
		978,
		978,
	)
	h := newHarness(t, reader)

	h.cycle(scheduler.ColdBoot())
	h.pub.Reset()

	// Widen 20 -> 25: a 22mm drift that would have reported now stays quiet.
	res := h.cycle(scheduler.ButtonWake(buttons.EventIncreaseBand))
	if res.Decision.Report {
		t.Error("22mm drift reported despite widened 25mm band")
	}
	if got := h.store.Load().HysteresisBand; got != 25 {
		t.Errorf("persisted band after widen: got %d, want 25", got)
	}

	// The widened band holds on a plain timer wake too.
	res = h.cycle(scheduler.TimerWake())
	if res.Decision.Report {
		t.Error("band widening did not survive the next wake")
	}

	// Narrow back 25 -> 20: the same drift now crosses the threshold.
	res = h.cycle(scheduler.ButtonWake(buttons.EventDecreaseBand))
	if !res.Published {
		t.Error("22mm drift not reported after narrowing to 20mm")
	}

	if len(h.pub.Values) != 1 || h.pub.Values[0] != "32.2" {
		t.Errorf("values since boot: got %v, want [32.2]", h.pub.Values)
	}
	if got := h.store.Load().HysteresisBand; got != 20 {
		t.Errorf("persisted band after narrow: got %d, want 20", got)
	}
}

// TestIntegrationForceReportWithinBand verifies the force button reports a
// within-band level and moves the baseline with it.
func TestIntegrationForceReportWithinBand(t *testing.T) {
	reader := sensor.FakeOf(1000, 995, 995)
	h := newHarness(t, reader)

	h.cycle(scheduler.ColdBoot())

	res := h.cycle(scheduler.ButtonWake(buttons.EventForceReport))
	if !res.Published {
		t.Fatal("forced report was not published")
	}
	if h.pub.Reports[1].Reason != "manual override" {
		t.Errorf("reason: got %q, want %q", h.pub.Reports[1].Reason, "manual override")
	}

	// The forced report is the new baseline; the same level skips next wake.
	res = h.cycle(scheduler.TimerWake())
	if res.Decision.Report {
		t.Error("level unchanged since forced report, expected skip")
	}

	st := h.store.Load()
	if st.LastReported == nil || *st.LastReported != 305 {
		t.Errorf("baseline: got %v, want 305", st.LastReported)
	}
}

// TestIntegrationSensorFaultKeepsBaseline verifies a dead-sensor cycle is
// counted and surfaced but leaves the comparison baseline alone, so the next
// good reading decides exactly as if the fault never happened.
func TestIntegrationSensorFaultKeepsBaseline(t *testing.T) {
	reader := &sensor.FakeReader{Script: []sensor.FakeRead{
		{D: 1000},                // fill 300mm - first reading
		{Err: sensor.ErrTimeout}, // burst 1 of the failed cycle
		{Err: sensor.ErrTimeout}, // burst 2, retries exhausted
		{D: 1000},                // recovery, unchanged - skip
		{D: 960},                 // fill 340mm, 40 >= 20 - reports
	}}
	h := newHarness(t, reader)

	h.cycle(scheduler.ColdBoot())

	res := h.cycle(scheduler.TimerWake())
	if res.SensorOK {
		t.Fatal("expected a sensor failure cycle")
	}
	st := h.store.Load()
	if st.FailedCycles != 1 {
		t.Errorf("failed cycles: got %d, want 1", st.FailedCycles)
	}
	if st.LastReported == nil || *st.LastReported != 300 {
		t.Errorf("baseline after fault: got %v, want 300 untouched", st.LastReported)
	}
	if len(h.pub.ErrorMessages) != 1 {
		t.Fatalf("error feed: got %v, want 1 message", h.pub.ErrorMessages)
	}

	res = h.cycle(scheduler.TimerWake())
	if res.Decision.Report {
		t.Error("unchanged level after recovery should skip")
	}
	res = h.cycle(scheduler.TimerWake())
	if !res.Published {
		t.Error("40mm drop after recovery should report")
	}

	if len(h.pub.Values) != 2 || h.pub.Values[1] != "34.0" {
		t.Errorf("values: got %v, want [30.0 34.0]", h.pub.Values)
	}
}

// TestIntegrationPublishOutage verifies an undeliverable report still moves
// the baseline: once the network heals the level is not re-reported, the
// delta is simply lost. Retrying a stale delta every wake would cost more
// battery than the one data point is worth.
func TestIntegrationPublishOutage(t *testing.T) {
	reader := sensor.FakeOf(
		1000, // fill 300mm - first reading, delivered
		940,  // fill 360mm, 60 >= 20 - report lost to the outage
		940,  // unchanged vs moved baseline - skip
	)
	h := newHarness(t, reader)

	h.cycle(scheduler.ColdBoot())

	h.pub.FailFirst = 2 // both attempts of the next report
	res := h.cycle(scheduler.TimerWake())
	if res.Published {
		t.Fatal("report delivered despite scripted outage")
	}
	if res.Outcome != "report lost (band exceeded)" {
		t.Errorf("outcome: got %q", res.Outcome)
	}

	res = h.cycle(scheduler.TimerWake())
	if res.Decision.Report {
		t.Error("level unchanged since lost report, expected skip")
	}

	if len(h.pub.Values) != 1 {
		t.Errorf("delivered values: got %v, want just the first", h.pub.Values)
	}
	st := h.store.Load()
	if st.LastReported == nil || *st.LastReported != 360 {
		t.Errorf("baseline: got %v, want 360 (moved by the lost report)", st.LastReported)
	}
	if st.ReportCount != 2 {
		t.Errorf("report count: got %d, want 2 (attempts, not deliveries)", st.ReportCount)
	}
	if h.pub.Attempts != 3 {
		t.Errorf("publish attempts: got %d, want 3", h.pub.Attempts)
	}
}

// TestIntegrationPowerCycle rebuilds the whole stack against the same state
// file, as a battery swap would, and verifies the new instance compares
// against the old baseline instead of re-reporting an unchanged level.
func TestIntegrationPowerCycle(t *testing.T) {
	h := newHarness(t, sensor.FakeOf(1000))
	h.cycle(scheduler.ColdBoot())
	firstID := h.store.Load().DeviceID

	// Power cut: everything in RAM is gone, only the file remains.
	h2 := newHarness(t, sensor.FakeOf(1005, 950))
	h2.path = h.path
	h2.store.Path = h.path

	res := h2.cycle(scheduler.ColdBoot())
	if res.Decision.Report {
		t.Error("5mm drift after reboot reported; baseline did not survive")
	}
	res = h2.cycle(scheduler.TimerWake())
	if !res.Published {
		t.Error("50mm drop after reboot should report")
	}

	st := h2.store.Load()
	if st.DeviceID != firstID {
		t.Errorf("device id changed across power cycle: %q -> %q", firstID, st.DeviceID)
	}
	if st.ReportCount != 2 {
		t.Errorf("report count: got %d, want 2 across both boots", st.ReportCount)
	}
	if len(h2.pub.Values) != 1 || h2.pub.Values[0] != "35.0" {
		t.Errorf("second boot values: got %v, want [35.0]", h2.pub.Values)
	}
}

// TestIntegrationHeartbeat verifies a long-stable level is re-reported once
// the maximum quiet interval elapses.
func TestIntegrationHeartbeat(t *testing.T) {
	reader := sensor.FakeOf(1000, 1000, 1000)
	h := newHarness(t, reader)
	h.sch.MaxReportInterval = 24 * time.Hour

	h.cycle(scheduler.ColdBoot())

	// Stable an hour later: quiet.
	h.now = h.now.Add(time.Hour)
	res := h.cycle(scheduler.TimerWake())
	if res.Decision.Report {
		t.Error("stable level reported before the max interval")
	}

	// Stable past the max interval: the heartbeat speaks up.
	h.now = h.now.Add(25 * time.Hour)
	res = h.cycle(scheduler.TimerWake())
	if !res.Published {
		t.Fatal("heartbeat did not report")
	}
	if h.pub.Reports[1].Reason != "heartbeat" {
		t.Errorf("reason: got %q, want %q", h.pub.Reports[1].Reason, "heartbeat")
	}
	if got := h.store.Load().LastReportTime; !got.Equal(h.now) {
		t.Errorf("last report time: got %v, want %v", got, h.now)
	}
}

// TestIntegrationStateFileFormat pins the on-disk JSON: these keys are what
// a person finds when they cat the file off the SD card, and what older
// deployments already contain.
func TestIntegrationStateFileFormat(t *testing.T) {
	h := newHarness(t, sensor.FakeOf(1000))
	h.cycle(scheduler.ColdBoot())

	data, err := os.ReadFile(h.path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}

	id, ok := doc["device_id"].(string)
	if !ok || id == "" {
		t.Errorf("device_id: got %v, want non-empty string", doc["device_id"])
	}
	if got := doc["last_reported"]; got != float64(300) {
		t.Errorf("last_reported: got %v, want 300", got)
	}
	if got := doc["hysteresis_band"]; got != float64(20) {
		t.Errorf("hysteresis_band: got %v, want 20", got)
	}
	if got := doc["report_count"]; got != float64(1) {
		t.Errorf("report_count: got %v, want 1", got)
	}
	if got := doc["failed_cycles"]; got != float64(0) {
		t.Errorf("failed_cycles: got %v, want 0", got)
	}
	readings, ok := doc["readings"].([]interface{})
	if !ok || len(readings) != 1 || readings[0] != float64(30) {
		t.Errorf("readings: got %v, want [30]", doc["readings"])
	}
	ts, ok := doc["last_report_time"].(string)
	if !ok {
		t.Fatalf("last_report_time: got %v, want RFC3339 string", doc["last_report_time"])
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("last_report_time %q does not parse: %v", ts, err)
	}
}
