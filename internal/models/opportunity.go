package models

import (
	"errors"
	"time"
)

// ConfidenceTier labels how strongly an opportunity is supported. Only
// TierHigh is produced today; the type stays an open string enum so new
// tiers do not change the record shape.
type ConfidenceTier string

const (
	TierHigh ConfidenceTier = "HIGH"
)

// Opportunity is a flagged (entity, statistic, line, side) combination.
type Opportunity struct {
	ID               string         `json:"id"`
	Entity           string         `json:"entity"`
	Kind             EntityKind     `json:"kind"`
	Statistic        string         `json:"statistic"`
	Side             Side           `json:"side"` // OVER or UNDER, never BOTH
	LineValue        float64        `json:"line"`
	Odds             *int           `json:"odds,omitempty"`
	ReferenceValue   float64        `json:"reference_value"` // floor for OVER, ceiling for UNDER
	Floor            float64        `json:"floor"`
	Ceiling          float64        `json:"ceiling"`
	Average          float64        `json:"average"`
	SampleSize       int            `json:"sample_size"`
	ConfidenceTier   ConfidenceTier `json:"confidence"`
	LowerBound       float64        `json:"lower_bound"`
	UpperBound       float64        `json:"upper_bound"`
	HitRate          float64        `json:"hit_rate"` // share of windowed games that would have cashed
	SupportingSeries []float64      `json:"supporting_series"`
	DetectedAt       time.Time      `json:"detected_at"`
}

// Validate checks that all opportunity fields are consistent.
func (o *Opportunity) Validate() error {
	if o.ID == "" {
		return errors.New("opportunity ID must not be empty")
	}
	if o.Entity == "" {
		return errors.New("opportunity entity must not be empty")
	}
	if o.Statistic == "" {
		return errors.New("opportunity statistic must not be empty")
	}
	if o.Side != SideOver && o.Side != SideUnder {
		return errors.New("opportunity side must be OVER or UNDER")
	}
	if o.ConfidenceTier == "" {
		return errors.New("opportunity confidence tier must not be empty")
	}
	if o.LineValue <= 0 {
		return errors.New("opportunity line must be positive")
	}
	if o.Floor > o.Ceiling {
		return errors.New("opportunity floor must be <= ceiling")
	}
	if o.SampleSize != len(o.SupportingSeries) {
		return errors.New("sample size must equal len(supporting_series)")
	}
	if o.HitRate < 0 || o.HitRate > 1 {
		return errors.New("hit rate must be between 0.0 and 1.0")
	}
	if o.DetectedAt.After(time.Now()) {
		return errors.New("detected at must not be in the future")
	}
	return nil
}

// IsTeam reports whether the opportunity is on a team market.
func (o *Opportunity) IsTeam() bool {
	return o.Kind == KindTeam
}
