package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/flooorgang/floorline/internal/models"
)

func resultWith(floor, ceiling float64) Result {
	return Result{
		Entity:     "Test",
		Statistic:  "PTS",
		Floor:      floor,
		Ceiling:    ceiling,
		Average:    (floor + ceiling) / 2,
		SampleSize: 2,
		RawValues:  []float64{ceiling, floor},
	}
}

func intPtr(i int) *int { return &i }

func TestMatch_OverOpportunities(t *testing.T) {
	tests := []struct {
		name      string
		floor     float64
		line      float64
		wantOpp   bool
		wantLower float64
	}{
		{"floor equals line", 25, 25.0, true, 22.5},
		{"floor well below band", 18, 25.0, false, 22.5},
		{"floor exactly at lower bound", 22.5, 25.0, true, 22.5},
		{"floor far above line still reported", 40, 25.0, true, 22.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := models.Line{Entity: "Test", Statistic: "PTS", Value: tt.line}
			opps, err := Match(resultWith(tt.floor, tt.floor+10), line, DefaultTolerance)

			if !tt.wantOpp {
				if !errors.Is(err, ErrNoValue) {
					t.Fatalf("Expected ErrNoValue, got %v (%d opps)", err, len(opps))
				}
				return
			}
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if len(opps) != 1 {
				t.Fatalf("Expected 1 opportunity, got %d", len(opps))
			}
			opp := opps[0]
			if opp.Side != models.SideOver {
				t.Errorf("Expected OVER, got %s", opp.Side)
			}
			if math.Abs(opp.LowerBound-tt.wantLower) > 1e-9 {
				t.Errorf("Expected lower bound %v, got %v", tt.wantLower, opp.LowerBound)
			}
			if opp.ReferenceValue != tt.floor {
				t.Errorf("Expected reference value %v (floor), got %v", tt.floor, opp.ReferenceValue)
			}
			if opp.ConfidenceTier != models.TierHigh {
				t.Errorf("Expected HIGH tier, got %s", opp.ConfidenceTier)
			}
		})
	}
}

func TestMatch_PlayerPropsNeverUnder(t *testing.T) {
	line := models.Line{Entity: "Test", Statistic: "PTS", Value: 25}
	_, err := Match(resultWith(10, 20), line, DefaultTolerance)
	if !errors.Is(err, ErrNoValue) {
		t.Errorf("OVER-only line with low ceiling must not produce UNDER, got %v", err)
	}
}

func TestMatch_UnderOpportunity(t *testing.T) {
	line := models.Line{Entity: "Test Team", Kind: models.KindTeam, Statistic: "PTS", Value: 112.5, Side: models.SideUnder}
	opps, err := Match(resultWith(95, 110), line, DefaultTolerance)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(opps) != 1 || opps[0].Side != models.SideUnder {
		t.Fatalf("Expected a single UNDER opportunity, got %+v", opps)
	}
	if math.Abs(opps[0].UpperBound-123.75) > 1e-9 {
		t.Errorf("Expected upper bound 123.75, got %v", opps[0].UpperBound)
	}
	if opps[0].ReferenceValue != 110 {
		t.Errorf("Expected reference value 110 (ceiling), got %v", opps[0].ReferenceValue)
	}
	if opps[0].Kind != models.KindTeam {
		t.Errorf("Expected team kind, got %s", opps[0].Kind)
	}
}

func TestMatch_TwoSidedEmitsBoth(t *testing.T) {
	line := models.Line{Entity: "Test Team", Statistic: "PTS", Value: 110, Side: models.SideBoth, Odds: intPtr(-110)}
	opps, err := Match(resultWith(105, 115), line, DefaultTolerance)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(opps) != 2 {
		t.Fatalf("Expected OVER and UNDER, got %d opportunities", len(opps))
	}
	if opps[0].Side != models.SideOver || opps[1].Side != models.SideUnder {
		t.Errorf("Expected [OVER UNDER], got [%s %s]", opps[0].Side, opps[1].Side)
	}
	if opps[0].Odds == nil || *opps[0].Odds != -110 {
		t.Error("Expected odds to be carried onto the opportunity")
	}
}

func TestMatch_ValidationErrors(t *testing.T) {
	good := models.Line{Entity: "Test", Statistic: "PTS", Value: 20}

	tests := []struct {
		name      string
		result    Result
		line      models.Line
		tolerance float64
	}{
		{"negative tolerance", resultWith(20, 30), good, -0.1},
		{"tolerance of one", resultWith(20, 30), good, 1},
		{"zero line", resultWith(20, 30), models.Line{Entity: "Test", Statistic: "PTS"}, 0.1},
		{"missing statistic", resultWith(20, 30), models.Line{Entity: "Test", Value: 20}, 0.1},
		{"missing entity", resultWith(20, 30), models.Line{Statistic: "PTS", Value: 20}, 0.1},
		{"NaN line", resultWith(20, 30), models.Line{Entity: "Test", Statistic: "PTS", Value: math.NaN()}, 0.1},
		{"statistic mismatch", resultWith(20, 30), models.Line{Entity: "Test", Statistic: "REB", Value: 20}, 0.1},
		{"empty result", Result{Statistic: "PTS"}, good, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Match(tt.result, tt.line, tt.tolerance)
			if !IsValidation(err) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestMatch_IsDeterministic(t *testing.T) {
	line := models.Line{Entity: "Test", Statistic: "PTS", Value: 20}
	a, _ := Match(resultWith(21, 30), line, DefaultTolerance)
	b, _ := Match(resultWith(21, 30), line, DefaultTolerance)
	if a[0].ID != "" || !a[0].DetectedAt.IsZero() {
		t.Error("Match must not stamp IDs or times")
	}
	if a[0].LowerBound != b[0].LowerBound || a[0].HitRate != b[0].HitRate {
		t.Error("Match results differ between identical calls")
	}
}
