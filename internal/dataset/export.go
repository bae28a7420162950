package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"call-analytics-go/internal/types"
)

var dimensionLabels = map[types.Dimension]string{
	types.DimensionTone:            "Tone",
	types.DimensionProfessionalism: "Professionalism",
	types.DimensionResolution:      "Resolution",
	types.DimensionResponse:        "Response",
}

const (
	sheetRankings = "Agent Rankings"
	sheetReview   = "Manual Review"
)

// ExportReport writes agent rankings and the manual review queue to an .xlsx
// workbook at path.
func ExportReport(path string, rankings []types.AgentPerformance, review []types.IndexEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetRankings); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetReview); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	rankHeader := []any{"Rank", "Agent", "Eligible Calls", "Average"}
	for _, d := range types.Dimensions {
		rankHeader = append(rankHeader, dimensionLabels[d])
	}
	rankHeader = append(rankHeader, "Last Updated")
	if err := writeRow(f, sheetRankings, 1, rankHeader); err != nil {
		return err
	}
	for i, p := range rankings {
		row := []any{i + 1, p.AgentName, p.TotalCalls, round2(p.AverageOverall)}
		for _, d := range types.Dimensions {
			if v, ok := p.Averages[d]; ok {
				row = append(row, round2(v))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, p.LastUpdated.Format(time.RFC3339))
		if err := writeRow(f, sheetRankings, i+2, row); err != nil {
			return err
		}
	}

	if err := writeRow(f, sheetReview, 1, []any{"Call ID", "Record Key", "Agent", "Status", "Reasons", "Flagged Categories", "Recorded At"}); err != nil {
		return err
	}
	for i, e := range review {
		row := []any{e.CallID, e.RecordKey, e.AgentName, e.Status, e.ReviewReasons.String(),
			strings.Join(e.FlaggedCategories, ","), e.RecordedAt.Format(time.RFC3339)}
		if err := writeRow(f, sheetReview, i+2, row); err != nil {
			return err
		}
	}

	for _, sheet := range []string{sheetRankings, sheetReview} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
