package store

import "github.com/sweeney/step-tracker/internal/logic"

// InsertedDay records one InsertNewDay call for test assertions.
type InsertedDay struct {
	Date     string
	DayStart int64
}

// Fake is an in-memory gateway that records calls for test assertions.
type Fake struct {
	// days maps date key to the stored (negated) day-start offset.
	days     map[string]int64
	lastDate string

	// CurrentSteps is the scratch counter value.
	CurrentSteps int64

	// Inserted contains all InsertNewDay calls in order.
	Inserted []InsertedDay

	// Adjustments contains all AddToLastEntry deltas in order.
	Adjustments []int64

	// Saves counts SaveCurrentSteps calls.
	Saves int

	// Error injection. Each, if set, is returned by the matching method.
	GetStepsError        error
	InsertNewDayError    error
	SaveCurrentError     error
	AddToLastEntryError  error
	GetCurrentStepsError error
}

// NewFake creates an empty in-memory gateway.
func NewFake() *Fake {
	return &Fake{days: make(map[string]int64)}
}

// GetSteps returns the stored offset for date, or logic.ErrNoEntry.
func (f *Fake) GetSteps(date string) (int64, error) {
	if f.GetStepsError != nil {
		return 0, f.GetStepsError
	}
	offset, ok := f.days[date]
	if !ok {
		return 0, logic.ErrNoEntry
	}
	return offset, nil
}

// InsertNewDay stores the negated day-start offset, existing row wins.
func (f *Fake) InsertNewDay(date string, dayStart int64) error {
	if f.InsertNewDayError != nil {
		return f.InsertNewDayError
	}
	f.Inserted = append(f.Inserted, InsertedDay{Date: date, DayStart: dayStart})
	if _, ok := f.days[date]; ok {
		return nil
	}
	f.days[date] = -dayStart
	if date > f.lastDate {
		f.lastDate = date
	}
	return nil
}

// SaveCurrentSteps records the scratch counter.
func (f *Fake) SaveCurrentSteps(total int64) error {
	if f.SaveCurrentError != nil {
		return f.SaveCurrentError
	}
	f.CurrentSteps = total
	f.Saves++
	return nil
}

// AddToLastEntry adjusts the most recently keyed day row.
func (f *Fake) AddToLastEntry(delta int64) error {
	if f.AddToLastEntryError != nil {
		return f.AddToLastEntryError
	}
	f.Adjustments = append(f.Adjustments, delta)
	if f.lastDate != "" {
		f.days[f.lastDate] += delta
	}
	return nil
}

// GetCurrentSteps returns the scratch counter.
func (f *Fake) GetCurrentSteps() (int64, error) {
	if f.GetCurrentStepsError != nil {
		return 0, f.GetCurrentStepsError
	}
	return f.CurrentSteps, nil
}

// Offset returns the stored offset for date and whether a row exists.
// Test helper, not part of the gateway contract.
func (f *Fake) Offset(date string) (int64, bool) {
	offset, ok := f.days[date]
	return offset, ok
}
