// Package models defines the domain records shared across floorline.
//
// Terminology:
//   - Entity: a player or a team that a sportsbook posts lines for.
//   - Series: the per-game history of one statistic for one entity.
//   - Line: a posted threshold for an entity/statistic.
//   - Opportunity: a line judged to sit inside the tolerance band of the
//     entity's recent floor (OVER) or ceiling (UNDER).
//
// Records are plain values with built-in validation so malformed provider data
// is rejected before it reaches the engine.
package models

import (
	"errors"
	"math"
	"time"
)

// EntityKind distinguishes player props from team markets.
type EntityKind string

const (
	KindPlayer EntityKind = "player"
	KindTeam   EntityKind = "team"
)

// HistoricalRecord is one played game.
type HistoricalRecord struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is the game history of a single statistic for a single entity.
// Providers return records most-recent-first; the engine re-sorts stably
// so equal dates keep provider order.
type Series struct {
	Entity    string             `json:"entity"`
	Kind      EntityKind         `json:"kind"`
	Statistic string             `json:"statistic"`
	Records   []HistoricalRecord `json:"records"`
}

// Len returns the number of records in the series.
func (s Series) Len() int {
	return len(s.Records)
}

// Values returns the record values in their current order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Records))
	for i, r := range s.Records {
		values[i] = r.Value
	}
	return values
}

// Validate checks that the series is usable for floor/ceiling computation.
func (s *Series) Validate() error {
	if s.Entity == "" {
		return errors.New("series entity must not be empty")
	}
	if s.Statistic == "" {
		return errors.New("series statistic must not be empty")
	}
	for _, r := range s.Records {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return errors.New("series values must be finite")
		}
		if r.Date.IsZero() {
			return errors.New("series record date must be set")
		}
	}
	return nil
}
