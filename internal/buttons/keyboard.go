package buttons

import (
	"bufio"
	"io"
	"strings"

	"github.com/tyeth/tank-sensor/internal/log"
)

// KeyboardSource maps typed lines to button presses for desk runs without
// wired buttons: '-' narrows the band, '+' widens it, 'r' forces a report.
type KeyboardSource struct {
	events chan Event
}

// NewKeyboardSource starts reading the input, usually os.Stdin. The channel
// closes when the input reaches EOF.
func NewKeyboardSource(r io.Reader) *KeyboardSource {
	s := &KeyboardSource{events: make(chan Event, 8)}
	go s.scan(r)
	return s
}

func (s *KeyboardSource) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var ev Event
		switch line[0] {
		case '-':
			ev = EventDecreaseBand
		case '+', '=':
			ev = EventIncreaseBand
		case 'r', 'R', 'f', 'F':
			ev = EventForceReport
		default:
			log.Debugf("ignoring key %q", line)
			continue
		}

		select {
		case s.events <- ev:
		default:
			log.Warnf("dropping %v press, queue full", ev)
		}
	}
	close(s.events)
}

// Events returns the press channel.
func (s *KeyboardSource) Events() <-chan Event {
	return s.events
}

// Close is a no-op: stdin is not ours to close.
func (s *KeyboardSource) Close() error {
	return nil
}
