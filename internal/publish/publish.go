// Package publish delivers fill reports to Adafruit IO with transport
// abstraction for testing. Two real transports exist: MQTT (the usual one)
// and the REST API (for networks that block MQTT).
package publish

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tyeth/tank-sensor/internal/tank"
)

// Error kinds. Transports wrap these so the scheduler can classify failures
// with errors.Is without knowing the transport.
var (
	// ErrNetwork marks an unreachable broker or server.
	ErrNetwork = errors.New("publish: network unavailable")

	// ErrAuth marks rejected credentials.
	ErrAuth = errors.New("publish: authentication failed")

	// ErrRejected marks a report the service refused.
	ErrRejected = errors.New("publish: server rejected report")
)

// Report is one fill measurement ready for the feed.
type Report struct {
	DeviceID  string
	Fill      tank.FillEstimate
	Percent   float64
	Reason    string
	Timestamp time.Time
}

// Publisher sends reports to the feed service.
type Publisher interface {
	// Publish sends one fill report. Returns a wrapped error kind on
	// failure; it must not crash the process.
	Publish(ctx context.Context, r Report) error

	// PublishError sends a fault description to the error feed, so a
	// flaky sensor is visible remotely even when no data flows.
	PublishError(ctx context.Context, msg string) error

	// Close disconnects from the service.
	Close() error
}

// Topic returns the Adafruit IO MQTT topic for a feed.
func Topic(user, feed string) string {
	return user + "/feeds/" + feed
}

// FormatValue renders the feed value: fill depth in centimetres with one
// decimal, matching what the dashboards already chart.
func FormatValue(r Report) string {
	return strconv.FormatFloat(r.Fill.Centimeters(), 'f', 1, 64)
}

// clip keeps error-feed values inside Adafruit IO's size limit.
func clip(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max]
}

// ctxErr maps a cancelled context to the network error kind.
func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return nil
}
