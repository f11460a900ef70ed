package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sweeney/step-tracker/internal/logic"
)

const scratchKeyCurrentSteps = "current_steps"

// SQLite persists the daily ledger and the scratch counter in a local
// SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// One writer at a time; the tracker serializes all access anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS days (
	date  TEXT PRIMARY KEY,
	steps INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS app_state (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// GetSteps returns the signed day-start offset for date, or
// logic.ErrNoEntry if no row exists.
func (s *SQLite) GetSteps(date string) (int64, error) {
	var offset int64
	err := s.db.QueryRow(`SELECT steps FROM days WHERE date = ?`, date).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, logic.ErrNoEntry
	}
	if err != nil {
		return 0, fmt.Errorf("get steps for %s: %w", date, err)
	}
	return offset, nil
}

// InsertNewDay creates the ledger row for date. The day-start counter is
// stored negated so that stored + total = steps today. An existing row
// wins: concurrent callers seeing the same day key cannot race-create
// duplicates.
func (s *SQLite) InsertNewDay(date string, dayStart int64) error {
	_, err := s.db.Exec(
		`INSERT INTO days (date, steps) VALUES (?, ?) ON CONFLICT(date) DO NOTHING`,
		date, -dayStart)
	if err != nil {
		return fmt.Errorf("insert day %s: %w", date, err)
	}
	return nil
}

// SaveCurrentSteps durably records the last raw counter value.
func (s *SQLite) SaveCurrentSteps(total int64) error {
	_, err := s.db.Exec(
		`INSERT INTO app_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		scratchKeyCurrentSteps, total)
	if err != nil {
		return fmt.Errorf("save current steps: %w", err)
	}
	return nil
}

// AddToLastEntry adjusts the most recent ledger row by delta steps.
func (s *SQLite) AddToLastEntry(delta int64) error {
	_, err := s.db.Exec(
		`UPDATE days SET steps = steps + ?
		 WHERE date = (SELECT MAX(date) FROM days)`, delta)
	if err != nil {
		return fmt.Errorf("adjust last entry: %w", err)
	}
	return nil
}

// GetCurrentSteps returns the last persisted scratch value, or 0 if none
// was ever saved.
func (s *SQLite) GetCurrentSteps() (int64, error) {
	var v int64
	err := s.db.QueryRow(
		`SELECT value FROM app_state WHERE key = ?`, scratchKeyCurrentSteps).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get current steps: %w", err)
	}
	return v, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
