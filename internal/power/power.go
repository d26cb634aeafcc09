// Package power times the gap between cycles. After a cycle the device
// dozes lightly, re-rendering the countdown every second while a user might
// be watching, then drops into deep sleep until the next alarm. Buttons stay
// armed through both phases and always win an ambiguous wake.
package power

import (
	"context"
	"time"

	"github.com/tyeth/tank-sensor/internal/buttons"
	"github.com/tyeth/tank-sensor/internal/display"
	"github.com/tyeth/tank-sensor/internal/log"
	"github.com/tyeth/tank-sensor/internal/scheduler"
)

// Controller plans and executes the sleep between cycles.
type Controller struct {
	Buttons  buttons.Source
	Renderer display.Renderer

	ReportInterval time.Duration
	IdleThreshold  time.Duration // light-doze length before deep sleep

	Now   func() time.Time                     // nil means time.Now
	After func(time.Duration) <-chan time.Time // nil means time.After
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) after(d time.Duration) <-chan time.Time {
	if c.After != nil {
		return c.After(d)
	}
	return time.After(d)
}

// Plan returns how long to sleep after a cycle that started at cycleStart.
// Slow cycles eat into the interval rather than push the cadence later; a
// cycle longer than the interval wakes again immediately.
func (c *Controller) Plan(cycleStart, now time.Time) time.Duration {
	delay := c.ReportInterval - now.Sub(cycleStart)
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Await sleeps for delay and reports what ended it. The snapshot is the last
// cycle's view; its countdown field is refreshed on every doze render. Deep
// sleep is entered only once the doze outlasts IdleThreshold, and only when
// no press is already queued.
func (c *Controller) Await(ctx context.Context, snap display.Snapshot, delay time.Duration) (scheduler.WakeSource, error) {
	events := c.Buttons.Events()

	// A press queued during the cycle wakes us before any sleeping starts.
	select {
	case ev, ok := <-events:
		if ok {
			return scheduler.ButtonWake(ev), nil
		}
		events = nil
	default:
	}

	now := c.now()
	deadline := now.Add(delay)

	lightEnd := deadline
	if c.IdleThreshold < delay {
		lightEnd = now.Add(c.IdleThreshold)
	}

	// Light doze: keep the panel live for whoever just pressed a button or
	// is standing at the tank.
	for {
		if err := ctx.Err(); err != nil {
			return scheduler.WakeSource{}, err
		}

		now = c.now()
		if !now.Before(deadline) {
			return c.timerWake(events)
		}
		if !now.Before(lightEnd) {
			break
		}

		snap.Countdown = deadline.Sub(now)
		if err := c.Renderer.Render(snap); err != nil {
			log.Warnf("countdown render failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return scheduler.WakeSource{}, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			return scheduler.ButtonWake(ev), nil
		case <-c.after(time.Second):
		}
	}

	// Deep sleep: blank the panel and hold until the alarm. On the target
	// hardware RAM is lost here; nothing after the wake may rely on values
	// from this cycle.
	if err := c.Renderer.Blank(); err != nil {
		log.Warnf("blank failed: %v", err)
	}
	remaining := deadline.Sub(c.now())
	log.Debugf("deep sleep for %v", remaining)

	select {
	case <-ctx.Done():
		return scheduler.WakeSource{}, ctx.Err()
	case ev, ok := <-events:
		if !ok {
			select {
			case <-ctx.Done():
				return scheduler.WakeSource{}, ctx.Err()
			case <-c.after(deadline.Sub(c.now())):
				return scheduler.TimerWake(), nil
			}
		}
		return scheduler.ButtonWake(ev), nil
	case <-c.after(remaining):
		return c.timerWake(events)
	}
}

// timerWake resolves an expired alarm, giving any simultaneous press the
// win: the user pressed it, the user gets it.
func (c *Controller) timerWake(events <-chan buttons.Event) (scheduler.WakeSource, error) {
	select {
	case ev, ok := <-events:
		if ok {
			return scheduler.ButtonWake(ev), nil
		}
	default:
	}
	return scheduler.TimerWake(), nil
}
