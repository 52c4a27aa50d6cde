package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Side is the direction of a bet. The zero value is treated as OVER because
// player props are OVER-only.
type Side string

const (
	SideOver  Side = "OVER"
	SideUnder Side = "UNDER"
	// SideBoth marks a two-sided market (team totals) that is evaluated for
	// both OVER and UNDER independently.
	SideBoth Side = "BOTH"
)

// ParseSide normalises a provider outcome name ("Over", "under") into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OVER":
		return SideOver, nil
	case "UNDER":
		return SideUnder, nil
	case "BOTH":
		return SideBoth, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// IncludesOver reports whether an OVER evaluation applies.
func (s Side) IncludesOver() bool {
	return s == "" || s == SideOver || s == SideBoth
}

// IncludesUnder reports whether an UNDER evaluation applies.
func (s Side) IncludesUnder() bool {
	return s == SideUnder || s == SideBoth
}

// Line is a single posted threshold for an entity/statistic.
type Line struct {
	Entity    string     `json:"entity"`
	Kind      EntityKind `json:"kind"`
	Statistic string     `json:"statistic"`
	Value     float64    `json:"value"`
	Odds      *int       `json:"odds,omitempty"` // American odds, optional
	Side      Side       `json:"side,omitempty"`
}

// Validate checks that the line can be matched against a floor/ceiling.
func (l *Line) Validate() error {
	if l.Entity == "" {
		return errors.New("line entity must not be empty")
	}
	if l.Statistic == "" {
		return errors.New("line statistic must not be empty")
	}
	if math.IsNaN(l.Value) || math.IsInf(l.Value, 0) {
		return errors.New("line value must be finite")
	}
	if l.Value <= 0 {
		return errors.New("line value must be positive")
	}
	switch l.Side {
	case "", SideOver, SideUnder, SideBoth:
	default:
		return fmt.Errorf("line side %q is not supported", l.Side)
	}
	if l.Odds != nil && *l.Odds > -100 && *l.Odds < 100 {
		return errors.New("line odds must be American format (<= -100 or >= +100)")
	}
	return nil
}

// AltLine is one alternate threshold with its own price.
type AltLine struct {
	Value float64 `json:"line"`
	Odds  int     `json:"odds"`
}

// AltMarket groups the alternate lines posted for one entity/statistic/side.
type AltMarket struct {
	Entity    string     `json:"entity"`
	Kind      EntityKind `json:"kind"`
	Statistic string     `json:"statistic"`
	Side      Side       `json:"side"`
	Lines     []AltLine  `json:"lines"`
}

// FormatOdds renders American odds with an explicit sign.
func FormatOdds(odds int) string {
	if odds > 0 {
		return fmt.Sprintf("+%d", odds)
	}
	return fmt.Sprintf("%d", odds)
}
