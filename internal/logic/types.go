// Package logic contains the pure decision core of the step tracker:
// reading validation, the update-threshold policy, day-boundary bookkeeping
// and the pause/resume accounting state machine.
// This package has NO external dependencies (no MQTT, GPIO, SQL, or
// time.Now inside the decision paths). Time is always injectable via
// time.Time parameters; persistence goes through the Gateway interface.
package logic

import (
	"errors"
	"math"
	"time"
)

const (
	// ThresholdSteps is the maximum step drift allowed before a persist.
	ThresholdSteps = 1000
	// ThresholdAge is the maximum staleness allowed before a persist.
	ThresholdAge = time.Hour
	// MaxReading is the largest raw sensor value accepted by ValidateReading.
	MaxReading = math.MaxInt32
)

// ErrNoEntry is returned by Gateway.GetSteps when no ledger row exists
// for the requested date.
var ErrNoEntry = errors.New("no ledger entry for date")

// Gateway is the durable store the tracker persists through.
// Implementations must guarantee upsert-by-key semantics for InsertNewDay
// so that concurrent callers cannot race-create duplicate day rows.
type Gateway interface {
	// GetSteps returns the signed day-start offset for date, such that
	// offset + totalSinceBoot yields steps walked since local midnight.
	// Returns ErrNoEntry if no row exists for date.
	GetSteps(date string) (int64, error)

	// InsertNewDay creates the ledger row for date. dayStart is the
	// cumulative counter value attributed to local midnight.
	InsertNewDay(date string, dayStart int64) error

	// SaveCurrentSteps durably records the last raw counter value.
	SaveCurrentSteps(total int64) error

	// AddToLastEntry adjusts the most recent ledger row by delta steps.
	AddToLastEntry(delta int64) error

	// GetCurrentSteps returns the last value passed to SaveCurrentSteps,
	// or 0 if none was ever saved.
	GetCurrentSteps() (int64, error)
}

// StepState holds the process-wide counters. TotalSinceBoot of zero is
// the "no reading received yet" sentinel, not a real count.
type StepState struct {
	TotalSinceBoot     int64
	LastPersistTime    time.Time
	LastPersistedSteps int64
}

// NeedsUpdate reports whether the state warrants a persist-and-notify
// cycle: more than ThresholdSteps walked since the last persist, or the
// last persist older than ThresholdAge.
func (s StepState) NeedsUpdate(now time.Time) bool {
	return s.TotalSinceBoot-s.LastPersistedSteps > ThresholdSteps ||
		now.Sub(s.LastPersistTime) > ThresholdAge
}

// PauseRecord exists iff tracking is paused. BaselineSteps is the
// cumulative counter value captured when the pause began.
type PauseRecord struct {
	BaselineSteps int64
}

// ValidateReading filters a raw sensor sample to a usable cumulative
// count. Values that are non-finite, <= 0 or above MaxReading signal a
// malformed hardware event and are rejected.
func ValidateReading(raw float64) (int64, bool) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	if raw <= 0 || raw > MaxReading {
		return 0, false
	}
	return int64(raw), true
}

// Counts tracks how often each outcome occurred since startup.
type Counts struct {
	Persists        int
	PersistFailures int
	InvalidReadings int
	Pauses          int
	Resumes         int
}

// Update is the presentation-facing result of a tracker operation.
type Update struct {
	// TodaySteps is the user-visible step count since local midnight.
	TodaySteps int64
	// Goal is the configured daily step goal.
	Goal int64
	// Paused reports whether tracking is currently paused.
	Paused bool
	// HasReading is false while no counter value is known at all
	// ("no data yet").
	HasReading bool
}

// GoalReached reports whether today's count meets the goal.
func (u Update) GoalReached() bool {
	return u.HasReading && u.TodaySteps >= u.Goal
}

// Snapshot is a point-in-time copy of the tracker's internals, consumed
// by the status tracker.
type Snapshot struct {
	State  StepState
	Paused bool
	Counts Counts
	Update Update
}

// DayKey formats t as the calendar-day ledger key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
