package engine

import (
	"math"

	"github.com/flooorgang/floorline/internal/models"
)

// DefaultTolerance is the proportional slack between a floor/ceiling and the
// posted line in the default rule set.
const DefaultTolerance = 0.10

// Match compares a floor/ceiling summary with a posted line.
//
// OVER is emitted iff floor >= line*(1-tolerance). There is no upper check: a
// floor far above the line is still reported. UNDER (two-sided markets only)
// is emitted iff ceiling <= line*(1+tolerance). A BOTH line can yield two
// opportunities when the whole recent range sits inside the band.
//
// Returned opportunities carry no ID or detection time; callers stamp those.
// ErrNoValue is returned when neither side qualifies.
func Match(result Result, line models.Line, tolerance float64) ([]models.Opportunity, error) {
	if err := validateMatchInput(result, line, tolerance); err != nil {
		return nil, err
	}

	lower := line.Value * (1 - tolerance)
	upper := line.Value * (1 + tolerance)

	var opps []models.Opportunity
	if line.Side.IncludesOver() && result.Floor >= lower {
		opps = append(opps, newOpportunity(result, line, models.SideOver, result.Floor, lower, upper))
	}
	if line.Side.IncludesUnder() && result.Ceiling <= upper {
		opps = append(opps, newOpportunity(result, line, models.SideUnder, result.Ceiling, lower, upper))
	}

	if len(opps) == 0 {
		return nil, ErrNoValue
	}
	return opps, nil
}

func validateMatchInput(result Result, line models.Line, tolerance float64) error {
	if math.IsNaN(tolerance) || tolerance < 0 || tolerance >= 1 {
		return invalid("tolerance", "must be in [0, 1), got %v", tolerance)
	}
	if err := line.Validate(); err != nil {
		return invalid("line", "%v", err)
	}
	if result.SampleSize < 1 || len(result.RawValues) != result.SampleSize {
		return invalid("result", "empty or inconsistent floor/ceiling for %q", line.Entity)
	}
	if result.Statistic != "" && result.Statistic != line.Statistic {
		return invalid("statistic", "line is %s but history is %s", line.Statistic, result.Statistic)
	}
	return nil
}

func newOpportunity(result Result, line models.Line, side models.Side, reference, lower, upper float64) models.Opportunity {
	kind := line.Kind
	if kind == "" {
		kind = result.Kind
	}

	supporting := make([]float64, len(result.RawValues))
	copy(supporting, result.RawValues)

	var odds *int
	if line.Odds != nil {
		o := *line.Odds
		odds = &o
	}

	return models.Opportunity{
		Entity:           line.Entity,
		Kind:             kind,
		Statistic:        line.Statistic,
		Side:             side,
		LineValue:        line.Value,
		Odds:             odds,
		ReferenceValue:   reference,
		Floor:            result.Floor,
		Ceiling:          result.Ceiling,
		Average:          result.Average,
		SampleSize:       result.SampleSize,
		ConfidenceTier:   models.TierHigh,
		LowerBound:       lower,
		UpperBound:       upper,
		HitRate:          HitRate(result.RawValues, line.Value, side),
		SupportingSeries: supporting,
	}
}
