package logic

import (
	"errors"
	"math"
	"testing"
	"time"
)

// memStore is this package's minimal in-memory Gateway. The richer fake
// lives in internal/store; logic keeps its own to stay dependency-free.
type memStore struct {
	days     map[string]int64 // date -> stored (negated) day-start offset
	lastDate string
	current  int64

	inserted    []int64
	adjustments []int64
	saves       int

	getStepsErr error
	insertErr   error
	saveErr     error
	adjustErr   error
	currentErr  error
}

func newMemStore() *memStore {
	return &memStore{days: make(map[string]int64)}
}

func (m *memStore) GetSteps(date string) (int64, error) {
	if m.getStepsErr != nil {
		return 0, m.getStepsErr
	}
	offset, ok := m.days[date]
	if !ok {
		return 0, ErrNoEntry
	}
	return offset, nil
}

func (m *memStore) InsertNewDay(date string, dayStart int64) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, dayStart)
	if _, ok := m.days[date]; !ok {
		m.days[date] = -dayStart
		if date > m.lastDate {
			m.lastDate = date
		}
	}
	return nil
}

func (m *memStore) SaveCurrentSteps(total int64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.current = total
	m.saves++
	return nil
}

func (m *memStore) AddToLastEntry(delta int64) error {
	if m.adjustErr != nil {
		return m.adjustErr
	}
	m.adjustments = append(m.adjustments, delta)
	if m.lastDate != "" {
		m.days[m.lastDate] += delta
	}
	return nil
}

func (m *memStore) GetCurrentSteps() (int64, error) {
	if m.currentErr != nil {
		return 0, m.currentErr
	}
	return m.current, nil
}

func TestValidateReading(t *testing.T) {
	cases := []struct {
		raw  float64
		want int64
		ok   bool
	}{
		{raw: 1, want: 1, ok: true},
		{raw: 12345.0, want: 12345, ok: true},
		{raw: MaxReading, want: MaxReading, ok: true},
		{raw: 0, ok: false},
		{raw: -5, ok: false},
		{raw: MaxReading + 1, ok: false},
		{raw: math.NaN(), ok: false},
		{raw: math.Inf(1), ok: false},
	}
	for _, c := range cases {
		got, ok := ValidateReading(c.raw)
		if ok != c.ok {
			t.Errorf("ValidateReading(%v): ok=%v, want %v", c.raw, ok, c.ok)
		}
		if ok && got != c.want {
			t.Errorf("ValidateReading(%v): got %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		total   int64
		last    int64
		elapsed time.Duration
		want    bool
	}{
		{"under both thresholds", 5999, 5000, 10 * time.Minute, false},
		{"exactly 1000 steps", 6000, 5000, 10 * time.Minute, false},
		{"over step threshold", 6001, 5000, 10 * time.Minute, true},
		{"exactly one hour", 5000, 5000, time.Hour, false},
		{"over age threshold", 5000, 5000, time.Hour + time.Millisecond, true},
		{"both over", 9999, 5000, 2 * time.Hour, true},
	}
	for _, c := range cases {
		s := StepState{
			TotalSinceBoot:     c.total,
			LastPersistedSteps: c.last,
			LastPersistTime:    base,
		}
		if got := s.NeedsUpdate(base.Add(c.elapsed)); got != c.want {
			t.Errorf("%s: NeedsUpdate=%v, want %v", c.name, got, c.want)
		}
	}
}

func TestFirstReadingPersistsImmediately(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	u, persisted, err := trk.HandleReading(500, now)
	if err != nil {
		t.Fatalf("HandleReading: %v", err)
	}
	if !persisted {
		t.Fatal("expected the first reading to persist (zero last-persist time)")
	}
	if st.saves != 1 || st.current != 500 {
		t.Errorf("scratch: saves=%d current=%d, want 1/500", st.saves, st.current)
	}
	if len(st.inserted) != 1 || st.inserted[0] != 500 {
		t.Errorf("inserted day starts: %v, want [500]", st.inserted)
	}
	if u.TodaySteps != 0 {
		t.Errorf("TodaySteps: got %d, want 0 (day just started)", u.TodaySteps)
	}
	if !u.HasReading {
		t.Error("expected HasReading=true")
	}
}

func TestNoPersistUnderThresholds(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(5000, now)

	_, persisted, err := trk.HandleReading(5999, now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("HandleReading: %v", err)
	}
	if persisted {
		t.Error("999 steps in 10 minutes should not persist")
	}

	_, persisted, err = trk.HandleReading(6001, now.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("HandleReading: %v", err)
	}
	if !persisted {
		t.Error("1001 steps since last persist should persist")
	}
	if st.current != 6001 {
		t.Errorf("scratch: got %d, want 6001", st.current)
	}
}

func TestStalenessTriggersPersist(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(5000, now)

	_, persisted, _ := trk.HandleReading(5001, now.Add(time.Hour+time.Second))
	if !persisted {
		t.Error("reading after more than an hour should persist regardless of drift")
	}
}

func TestInvalidReadingDiscarded(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	for _, raw := range []float64{-5, 0, MaxReading + 1} {
		_, persisted, err := trk.HandleReading(raw, now)
		if err != nil {
			t.Errorf("HandleReading(%v): unexpected error %v", raw, err)
		}
		if persisted {
			t.Errorf("HandleReading(%v): should not persist", raw)
		}
	}

	snap := trk.Snapshot(now)
	if snap.State.TotalSinceBoot != 0 {
		t.Errorf("TotalSinceBoot: got %d, want 0 (unchanged)", snap.State.TotalSinceBoot)
	}
	if st.saves != 0 {
		t.Errorf("expected no persistence, got %d saves", st.saves)
	}
	if snap.Counts.InvalidReadings != 3 {
		t.Errorf("InvalidReadings: got %d, want 3", snap.Counts.InvalidReadings)
	}
}

func TestPauseThenImmediateResume(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(8000, now)

	u, err := trk.TogglePause(now)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !u.Paused {
		t.Error("expected Paused=true after pause")
	}

	u, err = trk.TogglePause(now)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if u.Paused {
		t.Error("expected Paused=false after resume")
	}
	if len(st.adjustments) != 1 || st.adjustments[0] != 0 {
		t.Errorf("adjustments: %v, want [0]", st.adjustments)
	}
	if st.days["2026-01-01"] != -8000 {
		t.Errorf("ledger unchanged: got %d, want -8000", st.days["2026-01-01"])
	}
}

func TestPauseResumeCompensatesLedger(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(8000, now)

	if _, err := trk.TogglePause(now); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Steps keep arriving while paused; no thresholds crossed.
	_, persisted, _ := trk.HandleReading(8300, now.Add(10*time.Minute))
	if persisted {
		t.Error("unexpected persist while paused under thresholds")
	}

	u, err := trk.TogglePause(now.Add(10 * time.Minute))
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(st.adjustments) != 1 || st.adjustments[0] != -300 {
		t.Errorf("adjustments: %v, want [-300]", st.adjustments)
	}
	if u.Paused {
		t.Error("expected Paused=false after resume")
	}
	// 8000 at day start, 300 paused steps compensated out.
	if u.TodaySteps != 0 {
		t.Errorf("TodaySteps after resume: got %d, want 0", u.TodaySteps)
	}
}

func TestDayRolloverWhilePaused(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	dayD := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)

	trk.HandleReading(9000, dayD)
	if _, err := trk.TogglePause(dayD); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// First reading on day D+1, still paused, staleness forces a persist.
	dayD1 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	_, persisted, err := trk.HandleReading(9050, dayD1)
	if err != nil {
		t.Fatalf("HandleReading: %v", err)
	}
	if !persisted {
		t.Fatal("expected stale state to persist on day rollover")
	}

	// The 50 paused steps are excluded from the new day's start.
	if len(st.inserted) != 2 || st.inserted[1] != 9000 {
		t.Fatalf("inserted day starts: %v, want second entry 9000", st.inserted)
	}

	// Baseline advanced to 9050: resuming right away compensates nothing.
	u, err := trk.TogglePause(dayD1)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if last := st.adjustments[len(st.adjustments)-1]; last != 0 {
		t.Errorf("resume adjustment: got %d, want 0", last)
	}
	if u.Paused {
		t.Error("expected Paused=false after resume")
	}
}

func TestDayRolloverInsertFailureKeepsBaseline(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	dayD := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)

	trk.HandleReading(9000, dayD)
	trk.TogglePause(dayD)

	st.insertErr = errors.New("disk full")
	dayD1 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	_, persisted, err := trk.HandleReading(9050, dayD1)
	if err == nil {
		t.Fatal("expected persist error")
	}
	if persisted {
		t.Error("failed persist must not report success")
	}

	// Baseline must not advance on a failed insert: a later resume still
	// compensates the full paused interval.
	st.insertErr = nil
	u, err := trk.TogglePause(dayD1)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if last := st.adjustments[len(st.adjustments)-1]; last != -50 {
		t.Errorf("resume adjustment: got %d, want -50", last)
	}
	if u.Paused {
		t.Error("expected Paused=false after resume")
	}
}

func TestPauseFallsBackToScratchValue(t *testing.T) {
	st := newMemStore()
	st.current = 4200
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	u, err := trk.TogglePause(now)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !u.Paused {
		t.Error("expected Paused=true")
	}

	snap := trk.Snapshot(now)
	if snap.State.TotalSinceBoot != 4200 {
		t.Errorf("TotalSinceBoot: got %d, want 4200 (scratch fallback)", snap.State.TotalSinceBoot)
	}

	// Resume with no readings in between compensates nothing.
	trk.TogglePause(now)
	if len(st.adjustments) != 1 || st.adjustments[0] != 0 {
		t.Errorf("adjustments: %v, want [0]", st.adjustments)
	}
}

func TestResumeWhileActiveIsNoop(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	_, resumed, err := trk.Resume(now)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed {
		t.Error("resuming while active must be a no-op")
	}
	if len(st.adjustments) != 0 {
		t.Errorf("unexpected ledger adjustments: %v", st.adjustments)
	}
}

func TestResumeFailureKeepsPaused(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(8000, now)
	trk.TogglePause(now)
	trk.HandleReading(8100, now.Add(time.Minute))

	st.adjustErr = errors.New("disk full")
	if _, err := trk.TogglePause(now.Add(2 * time.Minute)); err == nil {
		t.Fatal("expected resume error")
	}
	if !trk.Paused() {
		t.Error("failed resume must keep the pause record for retry")
	}

	st.adjustErr = nil
	if _, err := trk.TogglePause(now.Add(3 * time.Minute)); err != nil {
		t.Fatalf("retry resume: %v", err)
	}
	if last := st.adjustments[len(st.adjustments)-1]; last != -100 {
		t.Errorf("resume adjustment: got %d, want -100", last)
	}
}

func TestForceUpdateIdempotent(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(5000, now)
	trk.HandleReading(5500, now.Add(time.Minute)) // under thresholds, no persist

	_, persisted, err := trk.ForceUpdate(now.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	if !persisted {
		t.Fatal("expected force update to persist walked steps")
	}

	_, persisted, err = trk.ForceUpdate(now.Add(3 * time.Minute))
	if err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	if persisted {
		t.Error("second force update without a new reading must not persist")
	}
	if st.saves != 2 {
		t.Errorf("saves: got %d, want 2", st.saves)
	}
}

func TestForceUpdateWithoutReadingIsNoop(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	_, persisted, err := trk.ForceUpdate(now)
	if err != nil {
		t.Fatalf("ForceUpdate: %v", err)
	}
	if persisted || st.saves != 0 {
		t.Error("force update with no reading must not persist")
	}
}

func TestPersistFailureLeavesMarksForRetry(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	st.saveErr = errors.New("disk full")
	_, persisted, err := trk.HandleReading(2000, now)
	if err == nil {
		t.Fatal("expected persist error")
	}
	if persisted {
		t.Error("failed persist must not report success")
	}

	snap := trk.Snapshot(now)
	if snap.State.LastPersistedSteps != 0 || !snap.State.LastPersistTime.IsZero() {
		t.Error("persist marks must not advance on failure")
	}
	if snap.Counts.PersistFailures != 1 {
		t.Errorf("PersistFailures: got %d, want 1", snap.Counts.PersistFailures)
	}

	// The very next reading naturally re-triggers the evaluator.
	st.saveErr = nil
	_, persisted, err = trk.HandleReading(2001, now.Add(time.Second))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !persisted {
		t.Error("expected retry to persist")
	}
	if st.current != 2001 {
		t.Errorf("scratch: got %d, want 2001", st.current)
	}
}

func TestProgressWithNoDataAtAll(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	u := trk.Progress(now)
	if u.HasReading {
		t.Error("expected HasReading=false with no reading and empty scratch")
	}
	if u.TodaySteps != 0 {
		t.Errorf("TodaySteps: got %d, want 0", u.TodaySteps)
	}
	if u.GoalReached() {
		t.Error("no data must not report the goal as reached")
	}
}

func TestProgressFallsBackToScratch(t *testing.T) {
	st := newMemStore()
	st.current = 7000
	st.days["2026-01-01"] = -6500
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	u := trk.Progress(now)
	if !u.HasReading {
		t.Error("expected HasReading=true via scratch fallback")
	}
	if u.TodaySteps != 500 {
		t.Errorf("TodaySteps: got %d, want 500", u.TodaySteps)
	}
}

func TestGoalReached(t *testing.T) {
	u := Update{TodaySteps: 10000, Goal: 10000, HasReading: true}
	if !u.GoalReached() {
		t.Error("10000/10000 should reach the goal")
	}
	u.TodaySteps = 9999
	if u.GoalReached() {
		t.Error("9999/10000 should not reach the goal")
	}
}

func TestMarkStale(t *testing.T) {
	st := newMemStore()
	trk := NewTracker(st, 10000)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	trk.HandleReading(5000, now)
	if st.saves != 1 {
		t.Fatalf("saves: got %d, want 1", st.saves)
	}

	trk.MarkStale()
	_, persisted, _ := trk.HandleReading(5001, now.Add(time.Second))
	if !persisted {
		t.Error("expected persist right after MarkStale")
	}
}

func TestDayKey(t *testing.T) {
	got := DayKey(time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC))
	if got != "2026-03-07" {
		t.Errorf("DayKey: got %q, want 2026-03-07", got)
	}
}
