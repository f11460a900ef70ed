package logic

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Tracker owns the StepState/PauseRecord pair and drives the
// validate→evaluate→persist sequence for each sensor event. One mutex
// spans the full handling of every event, so sensor readings and
// asynchronous pause/resume commands are serialized against each other.
type Tracker struct {
	mu     sync.Mutex
	store  Gateway
	goal   int64
	state  StepState
	pause  *PauseRecord
	counts Counts

	// dayKey maps an instant to its ledger key. Overridable in tests.
	dayKey func(time.Time) string
}

// NewTracker creates a Tracker persisting through store, with the given
// daily step goal. LastPersistTime starts at zero so the first accepted
// reading persists immediately.
func NewTracker(store Gateway, goal int64) *Tracker {
	return &Tracker{
		store:  store,
		goal:   goal,
		dayKey: DayKey,
	}
}

// HandleReading validates a raw sensor sample, updates the cumulative
// counter and, when the update threshold is crossed, runs the persist
// cycle. The returned bool reports whether a persist happened (and the
// Update should be rendered). A store failure is returned to the caller;
// the persist marks are left unadvanced so the next reading retries.
func (t *Tracker) HandleReading(raw float64, now time.Time) (Update, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := ValidateReading(raw)
	if !ok {
		t.counts.InvalidReadings++
		return Update{}, false, nil
	}

	// The hardware counter is authoritative within one boot session.
	t.state.TotalSinceBoot = v

	if !t.state.NeedsUpdate(now) {
		return Update{}, false, nil
	}
	if err := t.persistLocked(now); err != nil {
		return Update{}, false, err
	}
	return t.updateLocked(now), true, nil
}

// ForceUpdate runs the persist cycle iff steps were walked since the
// last persist. Calling it twice without an intervening reading triggers
// at most one write.
func (t *Tracker) ForceUpdate(now time.Time) (Update, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.TotalSinceBoot <= t.state.LastPersistedSteps {
		return Update{}, false, nil
	}
	if err := t.persistLocked(now); err != nil {
		return Update{}, false, err
	}
	return t.updateLocked(now), true, nil
}

// TogglePause flips between Active and Paused. Pausing with no reading
// received yet falls back to the last persisted scratch value as the
// working total. Resuming compensates the current day's ledger row by
// the steps walked during the pause.
func (t *Tracker) TogglePause(now time.Time) (Update, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pause != nil {
		if err := t.resumeLocked(); err != nil {
			return Update{}, err
		}
		return t.updateLocked(now), nil
	}

	if t.state.TotalSinceBoot == 0 {
		cur, err := t.store.GetCurrentSteps()
		if err != nil {
			return Update{}, fmt.Errorf("read current steps: %w", err)
		}
		t.state.TotalSinceBoot = cur
	}
	t.pause = &PauseRecord{BaselineSteps: t.state.TotalSinceBoot}
	t.counts.Pauses++
	return t.updateLocked(now), nil
}

// Resume ends a pause. Resuming while not paused is a no-op, not an
// error.
func (t *Tracker) Resume(now time.Time) (Update, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pause == nil {
		return Update{}, false, nil
	}
	if err := t.resumeLocked(); err != nil {
		return Update{}, false, err
	}
	return t.updateLocked(now), true, nil
}

// resumeLocked applies the pause compensation and clears the record.
// On store failure the record is kept so a later attempt can retry.
func (t *Tracker) resumeLocked() error {
	difference := t.state.TotalSinceBoot - t.pause.BaselineSteps
	if err := t.store.AddToLastEntry(-difference); err != nil {
		return fmt.Errorf("compensate paused steps: %w", err)
	}
	t.pause = nil
	t.counts.Resumes++
	return nil
}

// Progress returns the current presentation state without touching the
// counters. Used for notification re-renders.
func (t *Tracker) Progress(now time.Time) Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updateLocked(now)
}

// MarkStale zeroes the last-persist timestamp so the next accepted
// reading persists immediately.
func (t *Tracker) MarkStale() {
	t.mu.Lock()
	t.state.LastPersistTime = time.Time{}
	t.mu.Unlock()
}

// Paused reports whether tracking is currently paused. The flag is
// derived solely from PauseRecord presence.
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pause != nil
}

// Snapshot returns a copy of the tracker internals for status reporting.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:  t.state,
		Paused: t.pause != nil,
		Counts: t.counts,
		Update: t.updateLocked(now),
	}
}

// persistLocked runs the persist cycle: lazily create today's ledger row
// via the day-boundary resolver, write the scratch counter, then advance
// the persist marks. The marks move only after every write succeeded, so
// a failure leaves the evaluator armed for the next event.
func (t *Tracker) persistLocked(now time.Time) error {
	total := t.state.TotalSinceBoot
	date := t.dayKey(now)

	_, err := t.store.GetSteps(date)
	switch {
	case errors.Is(err, ErrNoEntry):
		dayStart, advance := t.resolveDayStartLocked(total)
		if err := t.store.InsertNewDay(date, dayStart); err != nil {
			t.counts.PersistFailures++
			return fmt.Errorf("insert day %s: %w", date, err)
		}
		if advance {
			// The paused interval up to now is already excluded from
			// the new day's offset; move the baseline so resume does
			// not subtract the same steps again.
			t.pause.BaselineSteps = total
		}
	case err != nil:
		t.counts.PersistFailures++
		return fmt.Errorf("read day %s: %w", date, err)
	}

	if err := t.store.SaveCurrentSteps(total); err != nil {
		t.counts.PersistFailures++
		return fmt.Errorf("save current steps: %w", err)
	}

	t.state.LastPersistedSteps = total
	t.state.LastPersistTime = now
	t.counts.Persists++
	return nil
}

// resolveDayStartLocked computes the counter value attributed to the
// start of a new day. If tracking was already paused when the day rolled
// over, the steps accrued since the pause began are excluded so they are
// not attributed to the new day; the caller then advances the baseline.
func (t *Tracker) resolveDayStartLocked(total int64) (dayStart int64, advance bool) {
	var pauseDifference int64
	if t.pause != nil {
		pauseDifference = total - t.pause.BaselineSteps
	}
	return total - pauseDifference, pauseDifference > 0
}

// updateLocked derives the presentation state. With no live reading the
// last persisted scratch value stands in; with no data at all the update
// reports HasReading=false so the presenter can render "no data yet".
func (t *Tracker) updateLocked(now time.Time) Update {
	total := t.state.TotalSinceBoot
	if total == 0 {
		if cur, err := t.store.GetCurrentSteps(); err == nil && cur > 0 {
			total = cur
			t.state.TotalSinceBoot = cur
		}
	}

	u := Update{Goal: t.goal, Paused: t.pause != nil}
	if total > 0 {
		u.HasReading = true
		offset, err := t.store.GetSteps(t.dayKey(now))
		if err != nil {
			// No row yet (or unreadable): today starts at the current
			// counter value, showing zero steps.
			offset = -total
		}
		u.TodaySteps = offset + total
	}
	return u
}
