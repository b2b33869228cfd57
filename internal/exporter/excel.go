package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"forecastcli/internal/simulation"
)

// Workbook sheet names
const (
	SheetStatistics  = "Statistics"
	SheetSensitivity = "Sensitivity"
	SheetTrials      = "Trials"
)

// WorkbookWriter writes the result tables into a single Excel workbook
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger.With(slog.String("component", "workbook_writer"))}
}

// Write saves statistics, sensitivity and the full trial table to path.
// A nil table skips the Trials sheet.
func (w *WorkbookWriter) Write(path string, stats []simulation.SummaryRow, ranking []simulation.SensitivityRow, t *simulation.TrialTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetStatistics); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, SheetStatistics, headerStyle, StatisticsHeaders, statisticsCells(stats)); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSensitivity); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetSensitivity, err)
	}
	if err := writeSheet(f, SheetSensitivity, headerStyle, SensitivityHeaders, sensitivityCells(ranking)); err != nil {
		return err
	}

	if t != nil {
		if _, err := f.NewSheet(SheetTrials); err != nil {
			return fmt.Errorf("create sheet %s: %w", SheetTrials, err)
		}
		if err := streamTrials(f, headerStyle, t); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info("Writing Excel workbook",
		slog.String("path", path),
		slog.Int("statistics_rows", len(stats)),
		slog.Int("sensitivity_rows", len(ranking)))
	return nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]interface{}) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header %s!%s: %w", sheet, cell, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style header %s: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", last, 16); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// streamTrials uses the excelize stream writer since the table can hold
// hundreds of thousands of rows
func streamTrials(f *excelize.File, headerStyle int, t *simulation.TrialTable) error {
	sw, err := f.NewStreamWriter(SheetTrials)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	columns := t.Columns()
	header := make([]interface{}, 0, len(columns)+1)
	header = append(header, excelize.Cell{StyleID: headerStyle, Value: "trial"})
	for _, c := range columns {
		header = append(header, excelize.Cell{StyleID: headerStyle, Value: c})
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write trials header: %w", err)
	}

	for i := 0; i < t.Trials(); i++ {
		values := t.Row(i)
		row := make([]interface{}, 0, len(values)+1)
		row = append(row, i)
		for _, v := range values {
			row = append(row, cellValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write trial %d: %w", i, err)
		}
	}

	return sw.Flush()
}

func statisticsCells(rows []simulation.SummaryRow) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, []interface{}{
			r.Metric, r.Label,
			cellValue(r.Mean), cellValue(r.Median), cellValue(r.StdDev),
			cellValue(r.P5), cellValue(r.P25), cellValue(r.P75), cellValue(r.P95),
			cellValue(r.Min), cellValue(r.Max),
			r.Valid, r.Excluded,
		})
	}
	return out
}

func sensitivityCells(rows []simulation.SensitivityRow) [][]interface{} {
	out := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		out = append(out, []interface{}{
			r.Factor, r.Label, cellValue(r.Correlation), cellValue(r.ImpactScore), string(r.Importance),
		})
	}
	return out
}

// cellValue leaves non-finite values as empty cells; excelize cannot
// serialize NaN or Inf
func cellValue(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
