package buttons

import (
	"strings"
	"testing"
	"time"
)

func TestKeyboardSourceMapsKeys(t *testing.T) {
	src := NewKeyboardSource(strings.NewReader("-\n+\nr\nx\n\n=\nf\n"))

	want := []Event{
		EventDecreaseBand,
		EventIncreaseBand,
		EventForceReport,
		EventIncreaseBand,
		EventForceReport,
	}

	var got []Event
	for ev := range src.Events() {
		got = append(got, ev)
	}

	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestDebouncerSuppressesBounce(t *testing.T) {
	d := newDebouncer(300 * time.Millisecond)

	if !d.allow(5, 1*time.Second) {
		t.Error("first edge suppressed")
	}
	if d.allow(5, 1200*time.Millisecond) {
		t.Error("bounce 200ms after press not suppressed")
	}
	if !d.allow(5, 1310*time.Millisecond) {
		t.Error("press 310ms after previous suppressed")
	}
}

func TestDebouncerTracksLinesIndependently(t *testing.T) {
	d := newDebouncer(300 * time.Millisecond)

	if !d.allow(5, 1*time.Second) {
		t.Error("line 5 first edge suppressed")
	}
	if !d.allow(6, 1010*time.Millisecond) {
		t.Error("line 6 suppressed by line 5's press")
	}
}

func TestFakeSource(t *testing.T) {
	f := NewFakeSource()
	f.Press(EventForceReport)

	select {
	case ev := <-f.Events():
		if ev != EventForceReport {
			t.Errorf("event = %v, want force report", ev)
		}
	default:
		t.Fatal("no event queued")
	}

	if err := f.Close(); err != nil || !f.Closed {
		t.Errorf("Close = %v, Closed = %v", err, f.Closed)
	}
}

func TestEventString(t *testing.T) {
	cases := map[Event]string{
		EventDecreaseBand: "decrease band",
		EventIncreaseBand: "increase band",
		EventForceReport:  "force report",
		Event(99):         "unknown",
	}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", ev, got, want)
		}
	}
}
