// Package report renders scan output for people: a console summary and an
// xlsx workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/flooorgang/floorline/internal/models"
)

var rule = strings.Repeat("=", 60)

// Text writes the opportunities grouped by confidence tier, sorted by
// entity within each tier.
func Text(w io.Writer, opps []models.Opportunity) error {
	p := &printer{w: w}
	if len(opps) == 0 {
		p.printf("\nNo value opportunities found\n")
		p.printf("Lines may be tight today, or floors are below ranges\n")
		return p.err
	}

	sorted := make([]models.Opportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity < sorted[j].Entity
		}
		return sorted[i].Statistic < sorted[j].Statistic
	})

	tiers, byTier := groupByTier(sorted)

	p.printf("\n%s\nVALUE OPPORTUNITIES REPORT\n%s\n", rule, rule)
	for _, tier := range tiers {
		group := byTier[tier]
		p.printf("\n%s CONFIDENCE (%d picks)\n%s\n", tier, len(group), rule)
		for _, o := range group {
			writeOpportunity(p, o)
		}
	}
	p.printf("\n%s\nTOTAL: %d value opportunities\n%s\n", rule, len(opps), rule)
	return p.err
}

func writeOpportunity(p *printer, o models.Opportunity) {
	p.printf("\n%s\n", o.Entity)
	p.printf("  %s: %s %s", o.Statistic, o.Side, formatLine(o.LineValue))
	if o.Odds != nil {
		p.printf(" (%s)", models.FormatOdds(*o.Odds))
	}
	p.printf("\n")

	switch {
	case o.IsTeam() && o.Side == models.SideUnder:
		p.printf("  Team Ceiling: %.0f (avg: %.1f)\n", o.Ceiling, o.Average)
	case o.IsTeam():
		p.printf("  Team Floor: %.0f (avg: %.1f)\n", o.Floor, o.Average)
	default:
		p.printf("  Floor: %.0f (avg: %.1f)\n", o.Floor, o.Average)
	}
	p.printf("  Range: %.1f - %.1f, hit rate %.0f%% over %d games\n",
		o.LowerBound, o.UpperBound, o.HitRate*100, o.SampleSize)
}

// groupByTier keeps tiers in order of first appearance, HIGH first.
func groupByTier(opps []models.Opportunity) ([]models.ConfidenceTier, map[models.ConfidenceTier][]models.Opportunity) {
	byTier := make(map[models.ConfidenceTier][]models.Opportunity)
	var tiers []models.ConfidenceTier
	for _, o := range opps {
		if _, ok := byTier[o.ConfidenceTier]; !ok {
			tiers = append(tiers, o.ConfidenceTier)
		}
		byTier[o.ConfidenceTier] = append(byTier[o.ConfidenceTier], o)
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i] == models.TierHigh && tiers[j] != models.TierHigh
	})
	return tiers, byTier
}

func formatLine(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
