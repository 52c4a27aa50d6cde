package models

import (
	"errors"
	"time"
)

// ScanRun summarises one scanner invocation.
type ScanRun struct {
	ID                int64          `json:"id"`
	Sport             string         `json:"sport"`
	ScanDate          time.Time      `json:"scan_date"`
	Analyzed          int            `json:"analyzed"`
	Skipped           int            `json:"skipped"`
	SkipReasons       map[string]int `json:"skip_reasons"`
	Opportunities     int            `json:"opportunities"`
	RequestsRemaining *int           `json:"requests_remaining,omitempty"`
	GamesScheduled    int            `json:"games_scheduled"`
	GamesWithProps    int            `json:"games_with_props"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// Validate checks the run summary before persistence.
func (r *ScanRun) Validate() error {
	if r.Sport == "" {
		return errors.New("run sport must not be empty")
	}
	if r.ScanDate.IsZero() {
		return errors.New("run scan date must be set")
	}
	if r.Analyzed < 0 || r.Skipped < 0 {
		return errors.New("run tallies must not be negative")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return errors.New("finished at must be >= started at")
	}
	return nil
}

// PickResult is the graded outcome of a stored pick.
type PickResult string

const (
	ResultUnscored PickResult = ""
	ResultHit      PickResult = "hit"
	ResultMiss     PickResult = "miss"
)

// Pick is a persisted opportunity plus its grading state.
type Pick struct {
	Opportunity
	RunID       int64      `json:"run_id"`
	Sport       string     `json:"sport"`
	ScanDate    time.Time  `json:"scan_date"`
	ActualValue *float64   `json:"actual_value,omitempty"`
	Result      PickResult `json:"result,omitempty"`
}

// CalendarDay returns t's calendar date in loc as midnight UTC, the form
// scan dates are stored and compared in. A nil loc means time.Local.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
