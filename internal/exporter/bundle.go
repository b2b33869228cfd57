package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"forecastcli/internal/simulation"
)

// TimestampLayout is used in bundle file names
const TimestampLayout = "20060102_150405"

// BundleOptions configures WriteBundle
type BundleOptions struct {
	Dir    string
	Prefix string
	Excel  bool
	// Now fixes the bundle timestamp; zero means time.Now
	Now    time.Time
	Logger *slog.Logger
}

// Bundle lists the files written for one run
type Bundle struct {
	Results     string `json:"results"`
	Statistics  string `json:"statistics"`
	Sensitivity string `json:"sensitivity"`
	Report      string `json:"report"`
	Workbook    string `json:"workbook,omitempty"`
}

// Paths returns the written file paths in write order
func (b Bundle) Paths() []string {
	paths := []string{b.Results, b.Statistics, b.Sensitivity, b.Report}
	if b.Workbook != "" {
		paths = append(paths, b.Workbook)
	}
	return paths
}

// WriteBundle writes the trial CSV, statistics CSV, sensitivity CSV, text
// report and optionally an Excel workbook, all sharing one timestamp
func WriteBundle(ctx context.Context, opts BundleOptions, t *simulation.TrialTable, stats []simulation.SummaryRow, ranking []simulation.SensitivityRow) (Bundle, error) {
	if t == nil {
		return Bundle{}, &simulation.EngineStateError{Operation: "report bundle"}
	}
	if opts.Prefix == "" {
		opts.Prefix = "forecast"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With(slog.String("component", "exporter"))

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return Bundle{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := opts.Now.Format(TimestampLayout)
	name := func(kind, ext string) string {
		return fmt.Sprintf("%s_%s_%s.%s", opts.Prefix, kind, ts, ext)
	}

	csvWriter := NewCSVWriter(opts.Dir, opts.Logger)
	var b Bundle
	var err error

	if b.Results, err = csvWriter.WriteTrialTable(name("results", "csv"), t); err != nil {
		return b, fmt.Errorf("write results: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return b, err
	}
	if b.Statistics, err = csvWriter.WriteStatistics(name("statistics", "csv"), stats); err != nil {
		return b, fmt.Errorf("write statistics: %w", err)
	}
	if b.Sensitivity, err = csvWriter.WriteSensitivity(name("sensitivity", "csv"), ranking); err != nil {
		return b, fmt.Errorf("write sensitivity: %w", err)
	}

	b.Report = filepath.Join(opts.Dir, name("report", "txt"))
	if err := writeReportFile(b.Report, ReportInput{Table: t, Sensitivity: ranking, Generated: opts.Now}); err != nil {
		return b, fmt.Errorf("write report: %w", err)
	}

	if opts.Excel {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		b.Workbook = filepath.Join(opts.Dir, name("workbook", "xlsx"))
		if err := NewWorkbookWriter(opts.Logger).Write(b.Workbook, stats, ranking, t); err != nil {
			return b, fmt.Errorf("write workbook: %w", err)
		}
	}

	logger.InfoContext(ctx, "Report bundle written",
		slog.String("dir", opts.Dir),
		slog.Int("files", len(b.Paths())),
		slog.Int("trials", t.Trials()))
	return b, nil
}

func writeReportFile(path string, in ReportInput) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteReport(f, in); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
