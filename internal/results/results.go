// Package results grades stored picks against the box score of the day
// they were made for.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/models"
	"github.com/flooorgang/floorline/internal/stats"
)

// Grade reports whether a pick cashed. A push (actual equal to the line)
// is a miss.
func Grade(pick models.Opportunity, actual float64) models.PickResult {
	switch pick.Side {
	case models.SideUnder:
		if actual < pick.LineValue {
			return models.ResultHit
		}
	default:
		if actual > pick.LineValue {
			return models.ResultHit
		}
	}
	return models.ResultMiss
}

// PickStore loads and grades persisted picks.
type PickStore interface {
	PicksByDate(ctx context.Context, date time.Time, unscoredOnly bool) ([]models.Pick, error)
	GradePick(ctx context.Context, id string, actual float64, result models.PickResult) error
}

// LogProvider returns an entity's game log for a season.
type LogProvider interface {
	GameLog(ctx context.Context, kind models.EntityKind, entity string, season int) (stats.GameLog, error)
}

// Summary tallies one scoring pass.
type Summary struct {
	Date   time.Time
	Total  int
	Hits   int
	Misses int
	NoGame int
	Errors []error
}

// Graded is the number of picks that received a result.
func (s Summary) Graded() int {
	return s.Hits + s.Misses
}

// HitRate is hits over graded picks, zero when nothing was graded.
func (s Summary) HitRate() float64 {
	if s.Graded() == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Graded())
}

// Tracker grades picks day by day.
type Tracker struct {
	store  PickStore
	logs   LogProvider
	season int
}

// NewTracker creates a Tracker
func NewTracker(store PickStore, logs LogProvider, season int) *Tracker {
	return &Tracker{store: store, logs: logs, season: season}
}

// ScoreDate grades the picks of a scan date. Picks whose entity did not
// play that day stay unscored and are counted as NoGame. A failure on one
// pick is collected and does not stop the pass.
func (t *Tracker) ScoreDate(ctx context.Context, date time.Time, unscoredOnly bool) (Summary, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	summary := Summary{Date: day}

	picks, err := t.store.PicksByDate(ctx, day, unscoredOnly)
	if err != nil {
		return summary, fmt.Errorf("failed to load picks: %w", err)
	}
	summary.Total = len(picks)

	logs := make(map[string]stats.GameLog)
	for _, p := range picks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		key := string(p.Kind) + "|" + p.Entity
		log, ok := logs[key]
		if !ok {
			log, err = t.logs.GameLog(ctx, p.Kind, p.Entity, t.season)
			if err != nil && !errors.Is(err, stats.ErrNoGamesPlayed) && !errors.Is(err, stats.ErrEntityNotFound) {
				summary.Errors = append(summary.Errors, fmt.Errorf("%s: %w", p.Entity, err))
				continue
			}
			logs[key] = log
		}

		actual, ok := log.ValueOn(p.Statistic, day)
		if !ok {
			logger.Debug("No %s game for %s on %s", p.Statistic, p.Entity, day.Format("2006-01-02"))
			summary.NoGame++
			continue
		}

		result := Grade(p.Opportunity, actual)
		if err := t.store.GradePick(ctx, p.ID, actual, result); err != nil {
			summary.Errors = append(summary.Errors, err)
			continue
		}
		if result == models.ResultHit {
			summary.Hits++
		} else {
			summary.Misses++
		}
		logger.Debug("%s %s %s %.1f: actual %.1f -> %s", p.Entity, p.Statistic, p.Side, p.LineValue, actual, result)
	}

	logger.Info("Scored %s: %d hits, %d misses, %d without a game, %d errors",
		day.Format("2006-01-02"), summary.Hits, summary.Misses, summary.NoGame, len(summary.Errors))
	return summary, nil
}
