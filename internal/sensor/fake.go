package sensor

import (
	"errors"
	"time"
)

// FakeSource is a test double that delivers scripted cumulative counts.
type FakeSource struct {
	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// BatchDelay records the maxBatchDelay passed to Subscribe.
	BatchDelay time.Duration

	// Closed tracks if Close was called.
	Closed bool

	onReading func(float64)
	done      chan error
}

// NewFakeSource creates a FakeSource for testing.
func NewFakeSource() *FakeSource {
	return &FakeSource{done: make(chan error, 1)}
}

// Subscribe stores the callback for later Deliver calls.
func (f *FakeSource) Subscribe(onReading func(total float64), maxBatchDelay time.Duration) error {
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.onReading = onReading
	f.BatchDelay = maxBatchDelay
	return nil
}

// Deliver pushes one cumulative count to the subscriber.
func (f *FakeSource) Deliver(total float64) error {
	if f.onReading == nil {
		return errors.New("no subscriber")
	}
	f.onReading(total)
	return nil
}

// Terminate simulates abnormal termination of delivery.
func (f *FakeSource) Terminate(err error) {
	f.done <- err
}

// Done yields errors injected via Terminate.
func (f *FakeSource) Done() <-chan error {
	return f.done
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}
