package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"carboncore/internal/carbon"
	"carboncore/internal/results"
	"carboncore/internal/units"
)

const (
	sheetBudget = "Budget"
	sheetPlots  = "Plots"
	sheetRoots  = "Roots"
	sheetSoil   = "Soil"
)

// RenderWorkbook builds the full-run XLSX workbook: the labeled budget
// table plus the per-plot, root, and soil-horizon densities behind it.
func RenderWorkbook(run results.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetBudget); err != nil {
		return nil, fmt.Errorf("rename budget sheet: %w", err)
	}
	for _, name := range []string{sheetPlots, sheetRoots, sheetSoil} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	sheets := map[string][][]any{
		sheetBudget: budgetRows(run),
		sheetPlots:  plotRows(run),
		sheetRoots:  rootRows(run),
		sheetSoil:   soilRows(run.Soil),
	}
	for name, rows := range sheets {
		if err := writeRows(f, name, rows); err != nil {
			return nil, err
		}
		if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return nil, fmt.Errorf("style sheet %s: %w", name, err)
		}
	}
	if err := f.SetColWidth(sheetBudget, "A", "B", 28); err != nil {
		return nil, fmt.Errorf("set budget column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func budgetRows(run results.Run) [][]any {
	rows := [][]any{
		{"component", "kilogramsCarbonPerSquareMeter"},
	}
	for _, component := range carbon.Components() {
		rows = append(rows, []any{string(component), cellNumber(run.Budget.Value(component))})
	}
	rows = append(rows,
		[]any{},
		[]any{"site", run.Site},
		[]any{"year", run.Budget.Year},
		[]any{"run", run.ID},
	)
	return rows
}

func plotRows(run results.Run) [][]any {
	rows := [][]any{
		{"component", "plot", "year", "kilogramsCarbonPerSquareMeter"},
	}
	appendDensities := func(component carbon.Component, densities []carbon.Density) {
		for _, d := range densities {
			rows = append(rows, []any{string(component), d.Plot, cellYear(d.Year), cellNumber(d.Carbon)})
		}
	}
	appendDensities(carbon.ComponentLiveTrees, run.LiveTrees)
	appendDensities(carbon.ComponentStandingDead, run.StandingDead)
	appendDensities(carbon.ComponentDownedWood, run.DownedWood)
	return rows
}

func rootRows(run results.Run) [][]any {
	rows := [][]any{
		{"plot", "year", "live", "dead", "unclassified"},
	}
	for _, d := range run.Roots {
		rows = append(rows, []any{d.Plot, d.Year, cellNumber(d.Live), cellNumber(d.Dead), cellNumber(d.Unknown)})
	}
	rows = append(rows,
		[]any{},
		[]any{"transfer ratio", cellNumber(run.RootRatio)},
	)
	return rows
}

func soilRows(profile carbon.SoilProfile) [][]any {
	rows := [][]any{
		{"horizon", "topDepthCM", "bottomDepthCM", "kilogramsCarbonPerSquareMeter"},
	}
	for _, h := range profile.Horizons {
		rows = append(rows, []any{h.ID, h.TopDepthCM, h.BottomDepthCM, cellNumber(h.Carbon)})
	}
	rows = append(rows, []any{"total", "", "", cellNumber(profile.Total)})
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("cell name %s[%d,%d]: %w", sheet, i, j, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// cellNumber keeps missing values visible as NA rather than zero.
func cellNumber(n units.Number) any {
	if !n.Valid {
		return "NA"
	}
	return n.Value
}

// cellYear renders the pooled-sample year as blank.
func cellYear(year int) any {
	if year == 0 {
		return ""
	}
	return year
}
