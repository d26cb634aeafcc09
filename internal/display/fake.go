package display

// FakeRenderer records snapshots for test assertions.
type FakeRenderer struct {
	// Snapshots contains everything rendered, in order.
	Snapshots []Snapshot

	// Blanks counts Blank calls.
	Blanks int

	// RenderErr, if set, is returned by Render.
	RenderErr error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeRenderer creates a FakeRenderer for testing.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{}
}

// Render records the snapshot.
func (f *FakeRenderer) Render(snap Snapshot) error {
	if f.RenderErr != nil {
		return f.RenderErr
	}
	f.Snapshots = append(f.Snapshots, snap)
	return nil
}

// Blank counts the call.
func (f *FakeRenderer) Blank() error {
	f.Blanks++
	return nil
}

// Close marks the renderer as closed.
func (f *FakeRenderer) Close() error {
	f.Closed = true
	return nil
}
