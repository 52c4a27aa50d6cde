package engine

import (
	"github.com/flooorgang/floorline/internal/models"
)

// DefaultOddsCutoff discards alternate lines priced shorter than -500.
const DefaultOddsCutoff = -500

// SelectBestLine picks the alternate line closest to the guaranteed bound.
//
// OVER considers lines strictly below the floor and takes the highest; UNDER
// considers lines strictly above the ceiling and takes the lowest. Ties keep
// the first line in input order. The pick is then dropped if its price is
// shorter than oddsCutoff, since very short prices pay too little on an
// already safe bet.
func SelectBestLine(result Result, side models.Side, lines []models.AltLine, oddsCutoff int) (models.AltLine, error) {
	if side != models.SideOver && side != models.SideUnder {
		return models.AltLine{}, invalid("side", "alternate selection needs OVER or UNDER, got %q", side)
	}
	if result.SampleSize < 1 {
		return models.AltLine{}, invalid("result", "empty floor/ceiling for %q", result.Entity)
	}

	var best models.AltLine
	found := false
	for _, l := range lines {
		switch side {
		case models.SideOver:
			if l.Value < result.Floor && (!found || l.Value > best.Value) {
				best, found = l, true
			}
		case models.SideUnder:
			if l.Value > result.Ceiling && (!found || l.Value < best.Value) {
				best, found = l, true
			}
		}
	}

	if !found || best.Odds < oddsCutoff {
		return models.AltLine{}, ErrNoValue
	}
	return best, nil
}

// MatchAlternate runs best-line selection on an alternate market and turns the
// pick into an opportunity. Alternate markets apply the strict floor/ceiling
// principle, so both tolerance bounds equal the selected line.
func MatchAlternate(result Result, market models.AltMarket, oddsCutoff int) (models.Opportunity, error) {
	if market.Entity == "" {
		return models.Opportunity{}, invalid("entity", "alternate market without entity")
	}
	if result.Statistic != "" && market.Statistic != result.Statistic {
		return models.Opportunity{}, invalid("statistic", "market is %s but history is %s", market.Statistic, result.Statistic)
	}

	best, err := SelectBestLine(result, market.Side, market.Lines, oddsCutoff)
	if err != nil {
		return models.Opportunity{}, err
	}

	odds := best.Odds
	line := models.Line{
		Entity:    market.Entity,
		Kind:      market.Kind,
		Statistic: market.Statistic,
		Value:     best.Value,
		Odds:      &odds,
		Side:      market.Side,
	}
	reference := result.Floor
	if market.Side == models.SideUnder {
		reference = result.Ceiling
	}
	return newOpportunity(result, line, market.Side, reference, best.Value, best.Value), nil
}
