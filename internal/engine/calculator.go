// Package engine implements floor/ceiling value detection.
//
// The engine is made of pure functions over in-memory values:
//
//	Compute        series → floor, ceiling, average over the most recent N games
//	Match          floor/ceiling + single posted line → OVER/UNDER opportunities
//	SelectBestLine floor/ceiling + alternate lines → the line closest to the bound
//
// Nothing here reads the clock, performs I/O or keeps state, so every function
// is safe to call concurrently and returns bit-identical results for identical
// input. Expected outcomes (not enough games, no value) are reported as
// ErrInsufficientData and ErrNoValue; malformed input as *ValidationError.
package engine

import (
	"math"
	"sort"
	"time"

	"github.com/flooorgang/floorline/internal/models"
)

// Result is the floor/ceiling summary of a windowed series.
type Result struct {
	Entity     string
	Kind       models.EntityKind
	Statistic  string
	Floor      float64
	Ceiling    float64
	Average    float64
	SampleSize int
	RawValues  []float64   // windowed values, most recent first
	Dates      []time.Time // dates matching RawValues
}

// Compute selects the most recent min(windowSize, len(series)) games and
// returns their minimum, maximum and mean. Records are ordered by date
// descending with a stable sort, so games on the same date keep provider order.
func Compute(series models.Series, windowSize, minSamples int) (Result, error) {
	if windowSize < 1 {
		return Result{}, invalid("window_size", "must be at least 1, got %d", windowSize)
	}
	if minSamples < 1 {
		return Result{}, invalid("min_samples", "must be at least 1, got %d", minSamples)
	}
	if series.Statistic == "" {
		return Result{}, invalid("statistic", "missing statistic for %q", series.Entity)
	}

	records := make([]models.HistoricalRecord, len(series.Records))
	copy(records, series.Records)
	for _, r := range records {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return Result{}, invalid("value", "non-finite %s value on %s", series.Statistic, r.Date.Format("2006-01-02"))
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})

	n := windowSize
	if len(records) < n {
		n = len(records)
	}
	if n < minSamples {
		return Result{}, &InsufficientDataError{Have: n, Need: minSamples}
	}

	window := records[:n]
	result := Result{
		Entity:     series.Entity,
		Kind:       series.Kind,
		Statistic:  series.Statistic,
		Floor:      window[0].Value,
		Ceiling:    window[0].Value,
		SampleSize: n,
		RawValues:  make([]float64, n),
		Dates:      make([]time.Time, n),
	}

	var sum float64
	for i, r := range window {
		result.RawValues[i] = r.Value
		result.Dates[i] = r.Date
		if r.Value < result.Floor {
			result.Floor = r.Value
		}
		if r.Value > result.Ceiling {
			result.Ceiling = r.Value
		}
		sum += r.Value
	}
	result.Average = sum / float64(n)

	return result, nil
}

// FilterCompleted drops records dated after asOf's calendar day, leaving only
// games that have been played. Dates are compared as calendar dates: a
// record's date is read in its own location and asOf's in its location, so
// date-only records stored at UTC midnight compare correctly against a local
// clock. The input is not modified.
func FilterCompleted(series models.Series, asOf time.Time) models.Series {
	limit := dayOf(asOf)

	out := series
	out.Records = make([]models.HistoricalRecord, 0, len(series.Records))
	for _, r := range series.Records {
		if !dayOf(r.Date).After(limit) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HitRate returns the share of values that would have cashed a bet on side at
// line: strictly above for OVER, strictly below for UNDER.
func HitRate(values []float64, line float64, side models.Side) float64 {
	if len(values) == 0 {
		return 0
	}
	hits := 0
	for _, v := range values {
		if (side == models.SideUnder && v < line) || (side != models.SideUnder && v > line) {
			hits++
		}
	}
	return float64(hits) / float64(len(values))
}
