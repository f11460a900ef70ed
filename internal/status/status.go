// Package status provides a thread-safe status tracker for the
// step-tracker daemon. It is read by the HTTP handlers and feeds the
// system lifecycle event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/step-tracker/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker       string
	HTTPAddr     string
	DBPath       string
	Goal         int64
	BatchDelayMs int64
	Pin          int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	TodaySteps         int64
	TotalSinceBoot     int64
	Goal               int64
	Paused             bool
	HasReading         bool
	LastPersistTime    time.Time
	LastPersistedSteps int64
	Counts             logic.Counts
	StartTime          time.Time
	Now                time.Time
	MQTTConnected      bool
	Config             Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// GoalReached reports whether today's count meets the configured goal.
func (s Snapshot) GoalReached() bool {
	return s.HasReading && s.TodaySteps >= s.Goal
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Goal:      cfg.Goal,
			Config:    cfg,
		},
	}
}

// Apply folds a core snapshot into the tracked state.
// Called from the run loop after every handled event.
func (t *Tracker) Apply(s logic.Snapshot) {
	t.mu.Lock()
	t.snap.TodaySteps = s.Update.TodaySteps
	t.snap.TotalSinceBoot = s.State.TotalSinceBoot
	t.snap.Paused = s.Paused
	t.snap.HasReading = s.Update.HasReading
	t.snap.LastPersistTime = s.State.LastPersistTime
	t.snap.LastPersistedSteps = s.State.LastPersistedSteps
	t.snap.Counts = s.Counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
