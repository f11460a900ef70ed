package notify

import (
	"time"

	"github.com/sweeney/step-tracker/internal/logic"
)

// FakePublisher records published updates for test assertions.
type FakePublisher struct {
	// Renders contains all progress updates that were rendered.
	Renders []logic.Update

	// StatePayloads contains the JSON payloads for rendered updates.
	StatePayloads [][]byte

	// WidgetRefreshes counts RequestRefresh calls.
	WidgetRefreshes int

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// RenderError, if set, will be returned by Render.
	RenderError error

	// RefreshError, if set, will be returned by RequestRefresh.
	RefreshError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Render records the progress update.
func (f *FakePublisher) Render(u logic.Update, now time.Time) error {
	if f.RenderError != nil {
		return f.RenderError
	}
	f.Renders = append(f.Renders, u)

	payload, err := FormatStatePayload(u, now)
	if err != nil {
		return err
	}
	f.StatePayloads = append(f.StatePayloads, payload)
	return nil
}

// RequestRefresh counts the refresh trigger.
func (f *FakePublisher) RequestRefresh(now time.Time) error {
	if f.RefreshError != nil {
		return f.RefreshError
	}
	f.WidgetRefreshes++
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Renders = nil
	f.StatePayloads = nil
	f.WidgetRefreshes = 0
	f.SystemEvents = nil
	f.RenderError = nil
	f.RefreshError = nil
	f.PublishSystemError = nil
	f.Closed = false
	f.Connected = false
}
