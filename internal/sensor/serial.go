package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	serial "github.com/tarm/goserial"

	"github.com/tyeth/tank-sensor/internal/log"
)

// DefaultBaud is the usual rate for ASCII-streaming ultrasonic rangefinders.
const DefaultBaud = 9600

// readDeadline bounds one frame wait. The rangefinder streams several frames
// a second; a quiet port this long means the sensor is gone, not slow.
const readDeadline = 2 * time.Second

// SerialReader reads a rangefinder that streams ASCII frames of the form
// "Rxxxx\r" (millimetres) over a serial port, e.g. the Maxbotix MB73xx
// family. Frames arrive continuously; ReadDistance returns the freshest one.
type SerialReader struct {
	port   io.ReadWriteCloser
	rng    Range
	frames chan Distance
	errs   chan error
}

// NewSerialReader opens the serial device and starts the frame pump.
func NewSerialReader(device string, baud int, rng Range) (*SerialReader, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	sc := &serial.Config{Name: device, Baud: baud}
	port, err := serial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}

	s := &SerialReader{
		port:   port,
		rng:    rng,
		frames: make(chan Distance, 1),
		errs:   make(chan error, 1),
	}
	go s.pump()
	return s, nil
}

// pump reads frames off the port and keeps only the most recent one in the
// channel, so a consumer that was asleep between cycles never sees stale
// readings.
func (s *SerialReader) pump() {
	r := bufio.NewReader(s.port)
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			select {
			case s.errs <- fmt.Errorf("%w: serial read: %v", ErrHardware, err):
			default:
			}
			return
		}

		d, ok := parseFrame(line)
		if !ok {
			log.Debugf("skipping malformed frame %q", line)
			continue
		}

		select {
		case s.frames <- d:
		default:
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- d:
			default:
			}
		}
	}
}

// ReadDistance returns the next frame from the sensor, validated against the
// configured range. The wait is bounded by the context and by readDeadline,
// whichever ends first.
func (s *SerialReader) ReadDistance(ctx context.Context) (Distance, error) {
	deadline := time.NewTimer(readDeadline)
	defer deadline.Stop()

	select {
	case d := <-s.frames:
		if err := s.rng.Check(d); err != nil {
			return 0, err
		}
		return d, nil
	case err := <-s.errs:
		return 0, err
	case <-deadline.C:
		return 0, fmt.Errorf("%w: no frame within %v", ErrTimeout, readDeadline)
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// Close releases the serial port. The pump goroutine exits on its next read.
func (s *SerialReader) Close() error {
	return s.port.Close()
}

// parseFrame extracts millimetres from one "Rxxxx\r" frame.
func parseFrame(line string) (Distance, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "R") {
		return 0, false
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return Distance(n), true
}
