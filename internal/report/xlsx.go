package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/flooorgang/floorline/internal/models"
)

const (
	picksSheet   = "Picks"
	summarySheet = "Summary"
)

var pickColumns = []interface{}{
	"Entity", "Kind", "Statistic", "Side", "Line", "Odds", "Floor", "Ceiling",
	"Average", "Games", "Hit Rate", "Lower Bound", "Upper Bound", "Confidence",
}

// WriteXLSX saves the run and its opportunities to a workbook with a Picks
// sheet and a Summary sheet. Parent directories are created as needed.
func WriteXLSX(path string, run *models.ScanRun, opps []models.Opportunity) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", picksSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writePicks(f, opps); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	if err := writeSummary(f, run, len(opps)); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// FileName is the workbook name used for a run.
func FileName(run *models.ScanRun) string {
	return fmt.Sprintf("floorline-%s-%s.xlsx", run.Sport, run.ScanDate.Format("2006-01-02"))
}

func writePicks(f *excelize.File, opps []models.Opportunity) error {
	if err := f.SetSheetRow(picksSheet, "A1", &pickColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(pickColumns), 1)
	if err := f.SetCellStyle(picksSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	sorted := make([]models.Opportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Entity < sorted[j].Entity
	})

	for i, o := range sorted {
		var odds interface{} = ""
		if o.Odds != nil {
			odds = models.FormatOdds(*o.Odds)
		}
		row := []interface{}{
			o.Entity, string(o.Kind), o.Statistic, string(o.Side), o.LineValue, odds,
			o.Floor, o.Ceiling, o.Average, o.SampleSize, o.HitRate,
			o.LowerBound, o.UpperBound, string(o.ConfidenceTier),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(picksSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write pick row %d: %w", i+2, err)
		}
	}
	return f.SetColWidth(picksSheet, "A", "A", 26)
}

func writeSummary(f *excelize.File, run *models.ScanRun, opportunities int) error {
	rows := [][]interface{}{
		{"Sport", run.Sport},
		{"Scan Date", run.ScanDate.Format("2006-01-02")},
		{"Analyzed", run.Analyzed},
		{"Skipped", run.Skipped},
		{"Opportunities", opportunities},
		{"Games Scheduled", run.GamesScheduled},
		{"Games With Props", run.GamesWithProps},
	}
	if run.RequestsRemaining != nil {
		rows = append(rows, []interface{}{"API Requests Remaining", *run.RequestsRemaining})
	}

	reasons := make([]string, 0, len(run.SkipReasons))
	for r := range run.SkipReasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		rows = append(rows, []interface{}{"Skipped: " + r, run.SkipReasons[r]})
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}
