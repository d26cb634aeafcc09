//go:build !linux

package buttons

import "errors"

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(Pins) (*GPIOSource, error) {
	return nil, errors.New("buttons: gpio not supported on this platform (requires Linux)")
}

// Events is not implemented on non-Linux platforms.
func (s *GPIOSource) Events() <-chan Event {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSource) Close() error {
	return nil
}
