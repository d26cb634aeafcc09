package sensor

import (
	"context"
	"sync"
)

// FakeRead is one scripted result.
type FakeRead struct {
	D   Distance
	Err error
}

// FakeReader is a scripted Reader for tests. Each call consumes the next
// entry; the final entry repeats once the script runs out.
type FakeReader struct {
	mu     sync.Mutex
	Script []FakeRead
	idx    int
	Reads  int
	Closed bool
}

// FakeOf builds a FakeReader that returns the given distances in order.
func FakeOf(ds ...Distance) *FakeReader {
	f := &FakeReader{}
	for _, d := range ds {
		f.Script = append(f.Script, FakeRead{D: d})
	}
	return f
}

func (f *FakeReader) ReadDistance(_ context.Context) (Distance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if len(f.Script) == 0 {
		return 0, ErrHardware
	}
	r := f.Script[f.idx]
	if f.idx < len(f.Script)-1 {
		f.idx++
	}
	return r.D, r.Err
}

func (f *FakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
