package results

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flooorgang/floorline/internal/models"
	"github.com/flooorgang/floorline/internal/stats"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name   string
		side   models.Side
		line   float64
		actual float64
		want   models.PickResult
	}{
		{"over hit", models.SideOver, 19.5, 22, models.ResultHit},
		{"over miss", models.SideOver, 19.5, 18, models.ResultMiss},
		{"over push", models.SideOver, 20, 20, models.ResultMiss},
		{"unset side grades as over", "", 5.5, 6, models.ResultHit},
		{"under hit", models.SideUnder, 118.5, 110, models.ResultHit},
		{"under miss", models.SideUnder, 118.5, 121, models.ResultMiss},
		{"under push", models.SideUnder, 118, 118, models.ResultMiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pick := models.Opportunity{Side: tt.side, LineValue: tt.line}
			if got := Grade(pick, tt.actual); got != tt.want {
				t.Errorf("Grade() = %q, want %q", got, tt.want)
			}
		})
	}
}

type gradeCall struct {
	actual float64
	result models.PickResult
}

type fakeStore struct {
	picks  []models.Pick
	graded map[string]gradeCall
	failID string
}

func (f *fakeStore) PicksByDate(_ context.Context, _ time.Time, _ bool) ([]models.Pick, error) {
	return f.picks, nil
}

func (f *fakeStore) GradePick(_ context.Context, id string, actual float64, result models.PickResult) error {
	if id == f.failID {
		return errors.New("disk full")
	}
	f.graded[id] = gradeCall{actual, result}
	return nil
}

type fakeLogs struct {
	logs  map[string]stats.GameLog
	errs  map[string]error
	calls int
}

func (f *fakeLogs) GameLog(_ context.Context, _ models.EntityKind, entity string, _ int) (stats.GameLog, error) {
	f.calls++
	if err, ok := f.errs[entity]; ok {
		return stats.GameLog{}, err
	}
	return f.logs[entity], nil
}

func pick(id, entity, stat string, side models.Side, line float64) models.Pick {
	return models.Pick{Opportunity: models.Opportunity{
		ID: id, Entity: entity, Kind: models.KindPlayer, Statistic: stat, Side: side, LineValue: line,
	}}
}

func TestTracker_ScoreDate(t *testing.T) {
	day := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		graded: make(map[string]gradeCall),
		picks: []models.Pick{
			pick("a", "Jalen Brunson", "PTS", models.SideOver, 19.5),
			pick("b", "Jalen Brunson", "AST", models.SideOver, 5.5),
			pick("c", "Josh Hart", "REB", models.SideOver, 7.5),
			pick("d", "Injured Guy", "PTS", models.SideOver, 10.5),
			pick("e", "Nobody", "PTS", models.SideOver, 10.5),
			pick("f", "Flaky", "PTS", models.SideOver, 10.5),
		},
	}
	logs := &fakeLogs{
		logs: map[string]stats.GameLog{
			"Jalen Brunson": {Games: []stats.Game{
				{Date: day.AddDate(0, 0, -2), Values: map[string]float64{"PTS": 40, "AST": 9}},
				{Date: day, Values: map[string]float64{"PTS": 27, "AST": 4}},
			}},
			"Josh Hart": {Games: []stats.Game{
				{Date: day, Values: map[string]float64{"REB": 11}},
			}},
			"Injured Guy": {Games: []stats.Game{
				{Date: day.AddDate(0, 0, -1), Values: map[string]float64{"PTS": 12}},
			}},
		},
		errs: map[string]error{
			"Nobody": stats.ErrEntityNotFound,
			"Flaky":  errors.New("upstream 503"),
		},
	}

	tracker := NewTracker(store, logs, 2025)
	summary, err := tracker.ScoreDate(context.Background(), time.Date(2025, 11, 20, 23, 0, 0, 0, time.UTC), true)
	if err != nil {
		t.Fatalf("ScoreDate() error = %v", err)
	}

	if summary.Total != 6 || summary.Hits != 2 || summary.Misses != 1 || summary.NoGame != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", summary.Errors)
	}
	if logs.calls != 5 {
		t.Errorf("expected one log fetch per entity (5), got %d", logs.calls)
	}
	if got := store.graded["a"]; got.result != models.ResultHit || got.actual != 27 {
		t.Errorf("pick a graded %+v", got)
	}
	if got := store.graded["b"]; got.result != models.ResultMiss {
		t.Errorf("pick b graded %+v", got)
	}
	if _, ok := store.graded["d"]; ok {
		t.Error("pick without a game must stay unscored")
	}
	if rate := summary.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("HitRate() = %v", rate)
	}
}

func TestTracker_ScoreDateCollectsGradeErrors(t *testing.T) {
	day := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		graded: make(map[string]gradeCall),
		failID: "a",
		picks:  []models.Pick{pick("a", "Josh Hart", "REB", models.SideOver, 7.5)},
	}
	logs := &fakeLogs{logs: map[string]stats.GameLog{
		"Josh Hart": {Games: []stats.Game{{Date: day, Values: map[string]float64{"REB": 11}}}},
	}}

	summary, err := NewTracker(store, logs, 2025).ScoreDate(context.Background(), day, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Errors) != 1 || summary.Graded() != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestSummary_HitRateEmpty(t *testing.T) {
	if (Summary{}).HitRate() != 0 {
		t.Error("empty summary should have zero hit rate")
	}
}
