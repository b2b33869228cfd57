package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"forecastcli/internal/simulation"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runTable(t *testing.T, params simulation.Parameters, trials int) *simulation.TrialTable {
	t.Helper()
	table, err := simulation.Run(context.Background(), params, trials, 7, simulation.WithLogger(quietLogger()))
	require.NoError(t, err)
	return table
}

func zeroCostParams() simulation.Parameters {
	p := simulation.DefaultParameters()
	p.InfrastructureMonthly = simulation.R(0, 0)
	p.DataAcquisition = simulation.R(0, 0)
	p.PersonnelAllocation = simulation.R(0, 0)
	p.MarketingMonthly = simulation.R(0, 0)
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"float", formatFloat(1.23456, 2), "1.23"},
		{"float shortest", formatFloat(0.1, -1), "0.1"},
		{"nan", formatFloat(math.NaN(), 2), ""},
		{"inf", formatFloat(math.Inf(1), 2), "inf"},
		{"neg inf", formatFloat(math.Inf(-1), 2), "-inf"},
		{"money", formatMoney(1234567.891), "$1,234,567.89"},
		{"money small", formatMoney(12.5), "$12.50"},
		{"money negative", formatMoney(-4500), "-$4,500.00"},
		{"money nan", formatMoney(math.NaN()), "n/a"},
		{"percent", formatPercent(0.1234), "12.3%"},
		{"percent inf", formatPercent(math.Inf(1)), "n/a"},
		{"group short", groupThousands("999"), "999"},
		{"group exact", groupThousands("100000"), "100,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestWriteTrialTable(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 50)
	dir := t.TempDir()

	path, err := NewCSVWriter(dir, quietLogger()).WriteTrialTable("trials.csv", table)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "trials.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, 51)
	assert.Equal(t, append([]string{"trial"}, table.Columns()...), records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "49", records[50][0])

	var buf bytes.Buffer
	require.NoError(t, WriteTrialTableTo(&buf, table))
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(written), buf.String())
}

func TestWriteTrialTableNonFinite(t *testing.T) {
	table := runTable(t, zeroCostParams(), 10)
	dir := t.TempDir()

	path, err := NewCSVWriter(dir, quietLogger()).WriteTrialTable("trials.csv", table)
	require.NoError(t, err)

	records := readCSV(t, path)
	col := -1
	for i, h := range records[0] {
		if h == simulation.ColROIPercent {
			col = i
		}
	}
	require.NotEqual(t, -1, col)
	for _, rec := range records[1:] {
		assert.Contains(t, []string{"inf", "-inf", ""}, rec[col])
	}
}

func TestWriteTrialTableNil(t *testing.T) {
	_, err := NewCSVWriter(t.TempDir(), nil).WriteTrialTable("x.csv", nil)
	var stateErr *simulation.EngineStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestWriteStatisticsAndSensitivity(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 200)
	stats, err := simulation.Statistics(table, nil)
	require.NoError(t, err)
	ranking, err := simulation.Sensitivity(table, nil, "")
	require.NoError(t, err)

	w := NewCSVWriter(t.TempDir(), quietLogger())

	statsPath, err := w.WriteStatistics("stats.csv", stats)
	require.NoError(t, err)
	records := readCSV(t, statsPath)
	require.Len(t, records, len(stats)+1)
	assert.Equal(t, StatisticsHeaders, records[0])
	assert.Equal(t, simulation.ColMonthlyValue, records[1][0])
	assert.Equal(t, "200", records[1][11])

	sensPath, err := w.WriteSensitivity("sens.csv", ranking)
	require.NoError(t, err)
	records = readCSV(t, sensPath)
	require.Len(t, records, len(ranking)+1)
	assert.Equal(t, SensitivityHeaders, records[0])
	assert.Contains(t, []string{"High", "Medium", "Low"}, records[1][4])
}

func TestWriteCSVWithBOM(t *testing.T) {
	w := NewCSVWriter(t.TempDir(), quietLogger())
	path, err := w.WriteCSV("nested/out.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "2"}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
	assert.Equal(t, "a,b\n1,2\n", string(data[3:]))
}

func TestWriteReport(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 500)
	ranking, err := simulation.Sensitivity(table, nil, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	generated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteReport(&buf, ReportInput{Table: table, Sensitivity: ranking, Generated: generated}))

	report := buf.String()
	for _, section := range []string{
		"EXECUTIVE SUMMARY",
		"REVENUE BREAKDOWN",
		"COST STRUCTURE",
		"PROFITABILITY METRICS",
		"RISK ANALYSIS",
		"SENSITIVITY ANALYSIS",
		"KEY INSIGHTS",
	} {
		assert.Contains(t, report, section)
	}
	assert.Contains(t, report, "Generated: 2025-03-01 12:00:00 UTC")
	assert.Contains(t, report, "Simulations: 500")
	assert.Contains(t, report, "Probability of Profit > $20,000:")
	assert.Contains(t, report, ranking[0].Label)
	assert.Regexp(t, `Automation savings averaging \d+\.\d%`, report)
	assert.NotContains(t, report, "personnel cost")
	assert.NotContains(t, report, "DATA QUALITY")
}

func TestWriteReportZeroCosts(t *testing.T) {
	table := runTable(t, zeroCostParams(), 100)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, ReportInput{Table: table}))

	report := buf.String()
	assert.Contains(t, report, "Expected ROI:           n/a")
	assert.Contains(t, report, "ROI excluded trials:    100")
	assert.Contains(t, report, "DATA QUALITY")
	assert.NotContains(t, report, "SENSITIVITY ANALYSIS")
}

func TestWriteReportNilTable(t *testing.T) {
	var stateErr *simulation.EngineStateError
	assert.ErrorAs(t, WriteReport(io.Discard, ReportInput{}), &stateErr)
}

func TestPrintTables(t *testing.T) {
	table := runTable(t, zeroCostParams(), 100)
	stats, err := simulation.Statistics(table, []string{simulation.ColMonthlyValue, simulation.ColROIPercent})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PrintStatistics(&buf, stats))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Monthly Value")
	assert.Contains(t, lines[2], "n/a")

	buf.Reset()
	require.NoError(t, PrintSensitivity(&buf, []simulation.SensitivityRow{
		{Factor: "api_revenue", Label: "Api Revenue", Correlation: 0.5, ImpactScore: math.NaN(), Importance: simulation.ImportanceHigh},
	}))
	assert.Contains(t, buf.String(), "Api Revenue")
	assert.Contains(t, buf.String(), "0.5000")
	assert.Contains(t, buf.String(), "n/a")
}

func TestWriteBundle(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 100)
	stats, err := simulation.Statistics(table, nil)
	require.NoError(t, err)
	ranking, err := simulation.Sensitivity(table, nil, "")
	require.NoError(t, err)

	dir := t.TempDir()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	bundle, err := WriteBundle(context.Background(), BundleOptions{
		Dir:    dir,
		Excel:  true,
		Now:    now,
		Logger: quietLogger(),
	}, table, stats, ranking)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "forecast_results_20250102_030405.csv"), bundle.Results)
	assert.Equal(t, filepath.Join(dir, "forecast_statistics_20250102_030405.csv"), bundle.Statistics)
	assert.Equal(t, filepath.Join(dir, "forecast_sensitivity_20250102_030405.csv"), bundle.Sensitivity)
	assert.Equal(t, filepath.Join(dir, "forecast_report_20250102_030405.txt"), bundle.Report)
	assert.Equal(t, filepath.Join(dir, "forecast_workbook_20250102_030405.xlsx"), bundle.Workbook)

	for _, p := range bundle.Paths() {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}

	f, err := excelize.OpenFile(bundle.Workbook)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetStatistics, SheetSensitivity, SheetTrials}, f.GetSheetList())

	header, err := f.GetCellValue(SheetStatistics, "A1")
	require.NoError(t, err)
	assert.Equal(t, "metric", header)

	metric, err := f.GetCellValue(SheetStatistics, "A2")
	require.NoError(t, err)
	assert.Equal(t, simulation.ColMonthlyValue, metric)

	rows, err := f.GetRows(SheetTrials)
	require.NoError(t, err)
	assert.Len(t, rows, 101)
}

func TestWriteBundleWithoutExcel(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 20)

	bundle, err := WriteBundle(context.Background(), BundleOptions{Dir: t.TempDir(), Logger: quietLogger()}, table, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, bundle.Workbook)
	assert.Len(t, bundle.Paths(), 4)
}

func TestWriteBundleCancelled(t *testing.T) {
	table := runTable(t, simulation.DefaultParameters(), 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WriteBundle(ctx, BundleOptions{Dir: t.TempDir(), Logger: quietLogger()}, table, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
