// Package stats fetches per-game box-score history for players and teams
// and turns it into the series the engine consumes.
package stats

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flooorgang/floorline/internal/models"
)

var (
	// ErrEntityNotFound means the provider has no player or team by that name.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrNoGamesPlayed means the entity exists but has no completed games this season.
	ErrNoGamesPlayed = errors.New("no games played")
	// ErrUnsupportedStatistic means the statistic is not tracked for this entity kind.
	ErrUnsupportedStatistic = errors.New("unsupported statistic")
)

// Statistic columns, keyed by the names lines are quoted in.
var playerStatFields = map[string]string{
	"PTS":              "pts",
	"REB":              "reb",
	"AST":              "ast",
	"FG3M":             "fg3m",
	"STL":              "stl",
	"BLK":              "blk",
	"TOV":              "turnover",
	"PASS_YDS":         "passing_yards",
	"PASS_TDS":         "passing_touchdowns",
	"PASS_COMPLETIONS": "passing_completions",
	"PASS_ATTEMPTS":    "passing_attempts",
	"RUSH_YDS":         "rushing_yards",
	"REC_YDS":          "receiving_yards",
	"RECEPTIONS":       "receptions",
}

// Game is one completed game with every tracked statistic.
type Game struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

// GameLog is an entity's completed games for one season.
type GameLog struct {
	Entity string            `json:"entity"`
	Kind   models.EntityKind `json:"kind"`
	Season int               `json:"season"`
	Games  []Game            `json:"games"`
}

// Series extracts one statistic, most recent game first. Games where the
// statistic was not recorded are left out.
func (l GameLog) Series(statistic string) (models.Series, error) {
	statistic = strings.ToUpper(statistic)
	if !supported(l.Kind, statistic) {
		return models.Series{}, fmt.Errorf("%w: %s for %s", ErrUnsupportedStatistic, statistic, l.Kind)
	}

	series := models.Series{
		Entity:    l.Entity,
		Kind:      l.Kind,
		Statistic: statistic,
		Records:   make([]models.HistoricalRecord, 0, len(l.Games)),
	}
	for _, g := range l.Games {
		v, ok := g.Values[statistic]
		if !ok {
			continue
		}
		series.Records = append(series.Records, models.HistoricalRecord{Date: g.Date, Value: v})
	}
	sort.SliceStable(series.Records, func(i, j int) bool {
		return series.Records[i].Date.After(series.Records[j].Date)
	})
	return series, nil
}

// ValueOn returns the statistic recorded on the given calendar day, if any.
func (l GameLog) ValueOn(statistic string, day time.Time) (float64, bool) {
	y, m, d := day.Date()
	for _, g := range l.Games {
		gy, gm, gd := g.Date.Date()
		if gy == y && gm == m && gd == d {
			v, ok := g.Values[strings.ToUpper(statistic)]
			return v, ok
		}
	}
	return 0, false
}

func supported(kind models.EntityKind, statistic string) bool {
	if kind == models.KindTeam {
		return statistic == "PTS" || statistic == "OPP_PTS"
	}
	_, ok := playerStatFields[statistic]
	return ok
}
