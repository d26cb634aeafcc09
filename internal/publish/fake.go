package publish

import "context"

// FakePublisher records published reports for test assertions.
type FakePublisher struct {
	// Reports contains all fill reports that were published.
	Reports []Report

	// Values contains the formatted feed values that were published.
	Values []string

	// ErrorMessages contains everything sent to the error feed.
	ErrorMessages []string

	// PublishErr, if set, is returned by Publish.
	PublishErr error

	// FailFirst makes the first n Publish calls fail with PublishErr
	// (or ErrNetwork if unset) before succeeding, for retry tests.
	FailFirst int

	// ErrorFeedErr, if set, is returned by PublishError.
	ErrorFeedErr error

	// Attempts counts Publish calls, including failed ones.
	Attempts int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the report.
func (f *FakePublisher) Publish(_ context.Context, r Report) error {
	f.Attempts++

	if f.FailFirst > 0 {
		f.FailFirst--
		if f.PublishErr != nil {
			return f.PublishErr
		}
		return ErrNetwork
	}
	if f.PublishErr != nil {
		return f.PublishErr
	}

	f.Reports = append(f.Reports, r)
	f.Values = append(f.Values, FormatValue(r))
	return nil
}

// PublishError records the error-feed message.
func (f *FakePublisher) PublishError(_ context.Context, msg string) error {
	if f.ErrorFeedErr != nil {
		return f.ErrorFeedErr
	}
	f.ErrorMessages = append(f.ErrorMessages, msg)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded reports.
func (f *FakePublisher) Reset() {
	f.Reports = nil
	f.Values = nil
	f.ErrorMessages = nil
	f.PublishErr = nil
	f.FailFirst = 0
	f.ErrorFeedErr = nil
	f.Attempts = 0
	f.Closed = false
}
