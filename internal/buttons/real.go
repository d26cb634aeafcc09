//go:build linux

package buttons

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/tyeth/tank-sensor/internal/log"
)

// GPIOSource reads button presses from actual hardware using the Linux GPIO
// character device.
type GPIOSource struct {
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
	events   chan Event
	debounce *debouncer
}

// NewGPIOSource requests the three button lines as pulled-up inputs and
// watches for falling edges (press pulls the line to ground).
func NewGPIOSource(pins Pins) (*GPIOSource, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &GPIOSource{
		chip:     chip,
		events:   make(chan Event, 8),
		debounce: newDebouncer(Debounce),
	}

	wiring := []struct {
		pin int
		ev  Event
	}{
		{pins.Decrease, EventDecreaseBand},
		{pins.Increase, EventIncreaseBand},
		{pins.Force, EventForceReport},
	}
	for _, w := range wiring {
		ev := w.ev
		line, err := chip.RequestLine(w.pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithEventHandler(func(le gpiocdev.LineEvent) {
				s.handle(ev, le)
			}),
		)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request %v pin %d: %w", ev, w.pin, err)
		}
		s.lines = append(s.lines, line)
	}

	return s, nil
}

func (s *GPIOSource) handle(ev Event, le gpiocdev.LineEvent) {
	if !s.debounce.allow(le.Offset, le.Timestamp) {
		return
	}

	select {
	case s.events <- ev:
	default:
		log.Warnf("dropping %v press, queue full", ev)
	}
}

// Events returns the press channel.
func (s *GPIOSource) Events() <-chan Event {
	return s.events
}

// Close releases the lines and the chip.
func (s *GPIOSource) Close() error {
	var errs []error
	for _, line := range s.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
