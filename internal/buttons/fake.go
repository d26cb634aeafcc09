package buttons

// FakeSource feeds scripted presses to tests.
type FakeSource struct {
	events chan Event

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSource creates a FakeSource with room for queued presses.
func NewFakeSource() *FakeSource {
	return &FakeSource{events: make(chan Event, 16)}
}

// Press queues one button press.
func (f *FakeSource) Press(ev Event) {
	f.events <- ev
}

// Events returns the press channel.
func (f *FakeSource) Events() <-chan Event {
	return f.events
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
