package sensor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tyeth/tank-sensor/internal/log"
)

// BurstOptions controls how Sample turns raw reads into one measurement.
type BurstOptions struct {
	Samples int           // reads per burst
	Retries int           // whole-burst attempts before giving up
	Pause   time.Duration // delay between reads within a burst
}

// Sample takes a burst of reads and reduces it to a single measurement: the
// median of the valid readings. Individual read failures inside a burst are
// skipped; a burst with no valid reading at all is retried up to Retries
// times. The retry budget is fixed, so a dead sensor costs a bounded amount
// of awake time per cycle, never a tight loop.
func Sample(ctx context.Context, r Reader, opts BurstOptions) (Distance, error) {
	if opts.Samples < 1 {
		opts.Samples = 1
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		d, err := burst(ctx, r, opts)
		if err == nil {
			return d, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < opts.Retries {
			log.Warnf("sensor burst %d/%d failed: %v", attempt, opts.Retries, err)
		}
	}
	return 0, fmt.Errorf("no valid reading after %d bursts: %w", opts.Retries, lastErr)
}

func burst(ctx context.Context, r Reader, opts BurstOptions) (Distance, error) {
	valid := make([]float64, 0, opts.Samples)
	var lastErr error

	for i := 0; i < opts.Samples; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			break
		}

		d, err := r.ReadDistance(ctx)
		if err != nil {
			lastErr = err
			log.Debugf("discarding read %d/%d: %v", i+1, opts.Samples, err)
		} else {
			valid = append(valid, float64(d))
		}

		if opts.Pause > 0 && i < opts.Samples-1 {
			time.Sleep(opts.Pause)
		}
	}

	if len(valid) == 0 {
		if lastErr == nil {
			lastErr = ErrHardware
		}
		return 0, lastErr
	}

	sort.Float64s(valid)
	med := stat.Quantile(0.5, stat.Empirical, valid, nil)
	return Distance(med), nil
}
