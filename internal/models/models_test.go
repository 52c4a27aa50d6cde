package models

import (
	"math"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestSeriesValidate(t *testing.T) {
	day := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		series  Series
		wantErr bool
	}{
		{
			name: "valid series",
			series: Series{
				Entity:    "Nikola Jokic",
				Kind:      KindPlayer,
				Statistic: "PTS",
				Records:   []HistoricalRecord{{Date: day, Value: 31}, {Date: day.AddDate(0, 0, -2), Value: 28}},
			},
			wantErr: false,
		},
		{
			name:    "empty series is valid",
			series:  Series{Entity: "Denver Nuggets", Kind: KindTeam, Statistic: "PTS"},
			wantErr: false,
		},
		{
			name:    "missing entity",
			series:  Series{Statistic: "PTS"},
			wantErr: true,
		},
		{
			name:    "missing statistic",
			series:  Series{Entity: "Nikola Jokic"},
			wantErr: true,
		},
		{
			name: "NaN value",
			series: Series{
				Entity:    "Nikola Jokic",
				Statistic: "PTS",
				Records:   []HistoricalRecord{{Date: day, Value: math.NaN()}},
			},
			wantErr: true,
		},
		{
			name: "zero date",
			series: Series{
				Entity:    "Nikola Jokic",
				Statistic: "PTS",
				Records:   []HistoricalRecord{{Value: 12}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.series.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeriesValues(t *testing.T) {
	s := Series{Records: []HistoricalRecord{{Value: 3}, {Value: 1}, {Value: 2}}}
	got := s.Values()
	if s.Len() != 3 || len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Errorf("Values() = %v, Len() = %d", got, s.Len())
	}
}

func TestLineValidate(t *testing.T) {
	tests := []struct {
		name    string
		line    Line
		wantErr bool
	}{
		{name: "valid player prop", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: 25.5}, wantErr: false},
		{name: "valid with odds", line: Line{Entity: "Luka Doncic", Statistic: "AST", Value: 8.5, Odds: intPtr(-115)}, wantErr: false},
		{name: "valid team total", line: Line{Entity: "Boston Celtics", Kind: KindTeam, Statistic: "PTS", Value: 112.5, Side: SideBoth}, wantErr: false},
		{name: "missing entity", line: Line{Statistic: "PTS", Value: 25.5}, wantErr: true},
		{name: "missing statistic", line: Line{Entity: "Luka Doncic", Value: 25.5}, wantErr: true},
		{name: "zero line", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: 0}, wantErr: true},
		{name: "negative line", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: -3}, wantErr: true},
		{name: "infinite line", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: math.Inf(1)}, wantErr: true},
		{name: "unknown side", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: 25.5, Side: "PUSH"}, wantErr: true},
		{name: "odds inside dead zone", line: Line{Entity: "Luka Doncic", Statistic: "PTS", Value: 25.5, Odds: intPtr(50)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"over", SideOver, false},
		{"UNDER", SideUnder, false},
		{"Both", SideBoth, false},
		{"push", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSide(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSideIncludes(t *testing.T) {
	if !Side("").IncludesOver() || Side("").IncludesUnder() {
		t.Error("unset side should mean OVER only")
	}
	if SideUnder.IncludesOver() || !SideUnder.IncludesUnder() {
		t.Error("UNDER should include only under")
	}
	if !SideBoth.IncludesOver() || !SideBoth.IncludesUnder() {
		t.Error("BOTH should include both sides")
	}
}

func TestFormatOdds(t *testing.T) {
	if got := FormatOdds(120); got != "+120" {
		t.Errorf("FormatOdds(120) = %s", got)
	}
	if got := FormatOdds(-150); got != "-150" {
		t.Errorf("FormatOdds(-150) = %s", got)
	}
}

func TestOpportunityValidate(t *testing.T) {
	valid := func() Opportunity {
		return Opportunity{
			ID:               "opp-1",
			Entity:           "Jayson Tatum",
			Kind:             KindPlayer,
			Statistic:        "PTS",
			Side:             SideOver,
			LineValue:        24.5,
			ReferenceValue:   23,
			Floor:            23,
			Ceiling:          38,
			Average:          29.2,
			SampleSize:       3,
			ConfidenceTier:   TierHigh,
			LowerBound:       22.05,
			UpperBound:       26.95,
			HitRate:          1,
			SupportingSeries: []float64{38, 23, 26.5},
			DetectedAt:       time.Now().Add(-time.Minute),
		}
	}

	tests := []struct {
		name    string
		mutate  func(o *Opportunity)
		wantErr bool
	}{
		{name: "valid", mutate: func(o *Opportunity) {}, wantErr: false},
		{name: "empty ID", mutate: func(o *Opportunity) { o.ID = "" }, wantErr: true},
		{name: "two-sided", mutate: func(o *Opportunity) { o.Side = SideBoth }, wantErr: true},
		{name: "floor above ceiling", mutate: func(o *Opportunity) { o.Floor = 40 }, wantErr: true},
		{name: "sample size mismatch", mutate: func(o *Opportunity) { o.SampleSize = 5 }, wantErr: true},
		{name: "hit rate out of range", mutate: func(o *Opportunity) { o.HitRate = 1.2 }, wantErr: true},
		{name: "missing tier", mutate: func(o *Opportunity) { o.ConfidenceTier = "" }, wantErr: true},
		{name: "future detection", mutate: func(o *Opportunity) { o.DetectedAt = time.Now().Add(time.Hour) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			err := o.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScanRunValidate(t *testing.T) {
	start := time.Date(2025, 11, 20, 15, 0, 0, 0, time.UTC)
	run := ScanRun{Sport: "nba", ScanDate: start, StartedAt: start, FinishedAt: start.Add(time.Minute)}
	if err := run.Validate(); err != nil {
		t.Fatalf("valid run rejected: %v", err)
	}

	run.FinishedAt = start.Add(-time.Second)
	if err := run.Validate(); err == nil {
		t.Error("expected error when finished before started")
	}
}

func TestCalendarDay(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 03:00 UTC on the 21st is still the 20th in New York
	got := CalendarDay(time.Date(2025, 11, 21, 3, 0, 0, 0, time.UTC), est)
	if want := time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("CalendarDay = %v, want %v", got, want)
	}
}
