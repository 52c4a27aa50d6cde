package scanner

import (
	"errors"
	"fmt"

	"github.com/flooorgang/floorline/internal/engine"
	"github.com/flooorgang/floorline/internal/stats"
)

// SkipReason labels why an entity or line produced no opportunity.
type SkipReason string

const (
	ReasonInsufficientData SkipReason = "insufficient_data"
	ReasonNoValue          SkipReason = "no_value"
	ReasonInvalidInput     SkipReason = "invalid_input"
	ReasonNotFound         SkipReason = "not_found"
	ReasonNoGames          SkipReason = "no_games"
	ReasonError            SkipReason = "error"
)

// Classify maps any per-entity error to a skip reason.
func Classify(err error) SkipReason {
	switch {
	case errors.Is(err, engine.ErrInsufficientData):
		return ReasonInsufficientData
	case errors.Is(err, engine.ErrNoValue):
		return ReasonNoValue
	case engine.IsValidation(err), errors.Is(err, stats.ErrUnsupportedStatistic):
		return ReasonInvalidInput
	case errors.Is(err, stats.ErrEntityNotFound):
		return ReasonNotFound
	case errors.Is(err, stats.ErrNoGamesPlayed):
		return ReasonNoGames
	default:
		return ReasonError
	}
}

// entityLevel reports whether the reason applies to every statistic of the
// entity, so its remaining lines need not be fetched.
func (r SkipReason) entityLevel() bool {
	return r == ReasonNotFound || r == ReasonNoGames || r == ReasonError
}

// EntityError is a non-fatal per-entity failure collected during a scan
type EntityError struct {
	Entity    string
	Statistic string
	Reason    SkipReason
	Err       error
}

func (e EntityError) Error() string {
	if e.Statistic == "" {
		return fmt.Sprintf("%s skipped (%s): %v", e.Entity, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s skipped (%s): %v", e.Entity, e.Statistic, e.Reason, e.Err)
}

func (e EntityError) Unwrap() error {
	return e.Err
}
