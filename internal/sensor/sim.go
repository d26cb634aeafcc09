package sensor

import (
	"context"
	"math/rand"
)

// SimReader fabricates plausible rangefinder data without hardware: a slow
// random walk away from the sensor, as if the tank were draining, plus a
// little per-read jitter. Useful on a desk and in demos.
type SimReader struct {
	rnd *rand.Rand
	rng Range
	cur float64
}

// NewSimReader starts the walk in the middle of the valid range. The seed
// makes runs reproducible.
func NewSimReader(rng Range, seed int64) *SimReader {
	return &SimReader{
		rnd: rand.New(rand.NewSource(seed)),
		rng: rng,
		cur: float64(rng.Min+rng.Max) / 2,
	}
}

// ReadDistance returns the next simulated reading. It never fails.
func (s *SimReader) ReadDistance(_ context.Context) (Distance, error) {
	// Drift away from the sensor with occasional small refills.
	s.cur += s.rnd.Float64()*3 - 0.5
	if s.cur > float64(s.rng.Max) {
		s.cur = float64(s.rng.Max)
	}
	if s.cur < float64(s.rng.Min) {
		s.cur = float64(s.rng.Min)
	}

	jitter := s.rnd.Float64()*4 - 2
	d := Distance(s.cur + jitter)
	if d > s.rng.Max {
		d = s.rng.Max
	}
	if d < s.rng.Min {
		d = s.rng.Min
	}
	return d, nil
}

// Close is a no-op; there is no hardware to release.
func (s *SimReader) Close() error { return nil }
