package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/flooorgang/floorline/internal/models"
)

var day0 = time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)

// seriesOf builds a most-recent-first series, one game per day going back.
func seriesOf(values ...float64) models.Series {
	s := models.Series{Entity: "Test Player", Kind: models.KindPlayer, Statistic: "PTS"}
	for i, v := range values {
		s.Records = append(s.Records, models.HistoricalRecord{Date: day0.AddDate(0, 0, -i), Value: v})
	}
	return s
}

func TestCompute_WindowOfFive(t *testing.T) {
	series := seriesOf(30, 22, 18, 25, 19, 21, 17, 24)

	result, err := Compute(series, 5, 4)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if want := []float64{30, 22, 18, 25, 19}; !reflect.DeepEqual(result.RawValues, want) {
		t.Errorf("RawValues = %v, want %v", result.RawValues, want)
	}
	if result.Floor != 18 {
		t.Errorf("Expected floor 18, got %v", result.Floor)
	}
	if result.Ceiling != 30 {
		t.Errorf("Expected ceiling 30, got %v", result.Ceiling)
	}
	if math.Abs(result.Average-22.8) > 1e-9 {
		t.Errorf("Expected average 22.8, got %v", result.Average)
	}
	if result.SampleSize != 5 {
		t.Errorf("Expected sample size 5, got %d", result.SampleSize)
	}
}

func TestCompute_ShortSeriesUsesAllGames(t *testing.T) {
	result, err := Compute(seriesOf(12, 9, 15), 20, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if result.SampleSize != 3 || result.Floor != 9 || result.Ceiling != 15 {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestCompute_InsufficientData(t *testing.T) {
	tests := []struct {
		name       string
		series     models.Series
		window     int
		minSamples int
	}{
		{"empty series", seriesOf(), 20, 1},
		{"fewer games than minimum", seriesOf(10, 11, 12), 20, 6},
		{"window smaller than minimum", seriesOf(10, 11, 12, 13, 14, 15), 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.series, tt.window, tt.minSamples)
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("Expected ErrInsufficientData, got %v", err)
			}
			var ide *InsufficientDataError
			if !errors.As(err, &ide) || ide.Need != tt.minSamples {
				t.Errorf("Expected InsufficientDataError with need=%d, got %v", tt.minSamples, err)
			}
		})
	}
}

func TestCompute_ValidationErrors(t *testing.T) {
	noStat := seriesOf(10, 11)
	noStat.Statistic = ""

	tests := []struct {
		name       string
		series     models.Series
		window     int
		minSamples int
	}{
		{"zero window", seriesOf(10, 11), 0, 1},
		{"zero min samples", seriesOf(10, 11), 5, 0},
		{"missing statistic", noStat, 5, 1},
		{"NaN value", seriesOf(10, math.NaN(), 12), 5, 1},
		{"infinite value", seriesOf(10, math.Inf(1)), 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.series, tt.window, tt.minSamples)
			if !IsValidation(err) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
			if errors.Is(err, ErrInsufficientData) {
				t.Error("Validation failure must be distinguishable from insufficient data")
			}
		})
	}
}

func TestCompute_SortsMostRecentFirstStably(t *testing.T) {
	series := models.Series{
		Entity:    "Test Team",
		Statistic: "PTS",
		Records: []models.HistoricalRecord{
			{Date: day0.AddDate(0, 0, -3), Value: 100},
			{Date: day0, Value: 120},
			{Date: day0.AddDate(0, 0, -1), Value: 101},
			{Date: day0.AddDate(0, 0, -1), Value: 102},
		},
	}

	result, err := Compute(series, 3, 1)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	want := []float64{120, 101, 102}
	if !reflect.DeepEqual(result.RawValues, want) {
		t.Errorf("RawValues = %v, want %v", result.RawValues, want)
	}
	if series.Records[0].Value != 100 {
		t.Error("Compute must not reorder the caller's series")
	}
}

func TestCompute_BoundsAndIdempotence(t *testing.T) {
	series := seriesOf(7, 3, 9, 4, 4, 11, 2, 8, 6, 5, 10, 1)

	for window := 1; window <= 15; window++ {
		first, err := Compute(series, window, 1)
		if err != nil {
			t.Fatalf("window %d: %v", window, err)
		}
		for _, v := range first.RawValues {
			if first.Floor > v {
				t.Errorf("window %d: floor %v above value %v", window, first.Floor, v)
			}
			if first.Ceiling < v {
				t.Errorf("window %d: ceiling %v below value %v", window, first.Ceiling, v)
			}
		}

		second, _ := Compute(series, window, 1)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("window %d: results differ between identical calls", window)
		}
	}
}

func TestFilterCompleted(t *testing.T) {
	series := models.Series{
		Entity:    "Test Player",
		Statistic: "PTS",
		Records: []models.HistoricalRecord{
			{Date: day0.AddDate(0, 0, 2), Value: 0},
			{Date: day0.Add(20 * time.Hour), Value: 31},
			{Date: day0.AddDate(0, 0, -1), Value: 28},
		},
	}

	filtered := FilterCompleted(series, day0.Add(9*time.Hour))

	if filtered.Len() != 2 {
		t.Fatalf("Expected 2 completed games, got %d", filtered.Len())
	}
	if filtered.Records[0].Value != 31 {
		t.Errorf("Expected same-day game to be kept, got %v", filtered.Records[0].Value)
	}
	if series.Len() != 3 {
		t.Error("FilterCompleted must not modify its input")
	}
}

func TestFilterCompleted_LocalClockAgainstUTCDates(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}

	series := models.Series{
		Entity:    "Test Player",
		Statistic: "PTS",
		Records: []models.HistoricalRecord{
			{Date: time.Date(2025, 11, 21, 0, 0, 0, 0, time.UTC), Value: 0},
			{Date: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), Value: 27},
			{Date: time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC), Value: 22},
		},
	}

	tests := []struct {
		name string
		asOf time.Time
		want int
	}{
		{"morning west of UTC", time.Date(2025, 11, 20, 9, 0, 0, 0, la), 2},
		{"late evening west of UTC", time.Date(2025, 11, 20, 23, 30, 0, 0, la), 2},
		{"just after midnight east of UTC", time.Date(2025, 11, 20, 0, 30, 0, 0, time.FixedZone("CET", 3600)), 2},
		{"day before", time.Date(2025, 11, 19, 23, 0, 0, 0, la), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered := FilterCompleted(series, tt.asOf)
			if filtered.Len() != tt.want {
				t.Fatalf("kept %d records, want %d", filtered.Len(), tt.want)
			}
			for _, r := range filtered.Records {
				if r.Date.After(time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC)) {
					t.Errorf("record dated %s survived", r.Date.Format("2006-01-02"))
				}
			}
		})
	}
}

func TestHitRate(t *testing.T) {
	values := []float64{30, 22, 18, 25, 19}

	tests := []struct {
		line float64
		side models.Side
		want float64
	}{
		{20.5, models.SideOver, 0.6},
		{17.5, models.SideOver, 1.0},
		{25, models.SideOver, 0.2},
		{25, models.SideUnder, 0.6},
		{30.5, models.SideUnder, 1.0},
	}

	for _, tt := range tests {
		if got := HitRate(values, tt.line, tt.side); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HitRate(%v, %s) = %v, want %v", tt.line, tt.side, got, tt.want)
		}
	}
	if got := HitRate(nil, 10, models.SideOver); got != 0 {
		t.Errorf("HitRate on empty values = %v, want 0", got)
	}
}
