package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"forecastcli/internal/simulation"
)

// CSVWriter writes simulation tables as CSV files below a base directory
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a new CSV writer rooted at baseDir
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "csv_writer")),
	}
}

// WriteOptions configures CSV writing
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// WriteCSV writes headers and records to filename below the base directory
func (w *CSVWriter) WriteCSV(filename string, opts WriteOptions) (string, error) {
	path := filepath.Join(w.baseDir, filename)

	sw, err := w.NewStreamWriter(filename, opts.Headers, opts.BOMPrefix)
	if err != nil {
		return "", err
	}

	for _, record := range opts.Records {
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return "", err
		}
	}

	if err := sw.Close(); err != nil {
		return "", err
	}

	w.logger.Info("Writing CSV file",
		slog.String("path", path),
		slog.Int("records", len(opts.Records)))
	return path, nil
}

// WriteTrialTable streams every row of the trial table, one trial per line,
// prefixed with the trial index
func (w *CSVWriter) WriteTrialTable(filename string, t *simulation.TrialTable) (string, error) {
	if t == nil {
		return "", &simulation.EngineStateError{Operation: "trial export"}
	}

	headers := append([]string{"trial"}, t.Columns()...)
	sw, err := w.NewStreamWriter(filename, headers, false)
	if err != nil {
		return "", err
	}

	if err := writeTrialRows(sw, t); err != nil {
		sw.Close()
		return "", err
	}
	if err := sw.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(w.baseDir, filename)
	w.logger.Info("Writing CSV file",
		slog.String("path", path),
		slog.Int("records", t.Trials()),
		slog.Int("columns", len(headers)))
	return path, nil
}

// WriteTrialTableTo writes the trial table CSV to an arbitrary writer
func WriteTrialTableTo(out io.Writer, t *simulation.TrialTable) error {
	if t == nil {
		return &simulation.EngineStateError{Operation: "trial export"}
	}
	sw := &StreamWriter{writer: csv.NewWriter(out)}
	if err := sw.WriteRecord(append([]string{"trial"}, t.Columns()...)); err != nil {
		return err
	}
	if err := writeTrialRows(sw, t); err != nil {
		return err
	}
	sw.writer.Flush()
	return sw.writer.Error()
}

func writeTrialRows(sw *StreamWriter, t *simulation.TrialTable) error {
	for i := 0; i < t.Trials(); i++ {
		row := t.Row(i)
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.Itoa(i))
		for _, v := range row {
			record = append(record, formatFloat(v, -1))
		}
		if err := sw.WriteRecord(record); err != nil {
			return fmt.Errorf("write trial %d: %w", i, err)
		}
	}
	return nil
}

// StatisticsHeaders are the columns of the statistics CSV
var StatisticsHeaders = []string{
	"metric", "label", "mean", "median", "std_dev",
	"p5", "p25", "p75", "p95", "min", "max", "valid", "excluded",
}

// WriteStatistics writes the statistics summary table
func (w *CSVWriter) WriteStatistics(filename string, rows []simulation.SummaryRow) (string, error) {
	return w.WriteCSV(filename, WriteOptions{
		Headers: StatisticsHeaders,
		Records: statisticsRecords(rows),
	})
}

func statisticsRecords(rows []simulation.SummaryRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Metric,
			r.Label,
			formatFloat(r.Mean, 2),
			formatFloat(r.Median, 2),
			formatFloat(r.StdDev, 2),
			formatFloat(r.P5, 2),
			formatFloat(r.P25, 2),
			formatFloat(r.P75, 2),
			formatFloat(r.P95, 2),
			formatFloat(r.Min, 2),
			formatFloat(r.Max, 2),
			strconv.Itoa(r.Valid),
			strconv.Itoa(r.Excluded),
		})
	}
	return records
}

// SensitivityHeaders are the columns of the sensitivity CSV
var SensitivityHeaders = []string{"factor", "label", "correlation", "impact_score", "importance"}

// WriteSensitivity writes the sensitivity ranking table
func (w *CSVWriter) WriteSensitivity(filename string, rows []simulation.SensitivityRow) (string, error) {
	return w.WriteCSV(filename, WriteOptions{
		Headers: SensitivityHeaders,
		Records: sensitivityRecords(rows),
	})
}

func sensitivityRecords(rows []simulation.SensitivityRow) [][]string {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Factor,
			r.Label,
			formatFloat(r.Correlation, 4),
			formatFloat(r.ImpactScore, 4),
			string(r.Importance),
		})
	}
	return records
}

// StreamWriter writes CSV records one at a time
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewStreamWriter creates the file, writes the optional BOM and the headers
func (w *CSVWriter) NewStreamWriter(filename string, headers []string, bom bool) (*StreamWriter, error) {
	path := filepath.Join(w.baseDir, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	sw := &StreamWriter{file: file, writer: csv.NewWriter(file)}
	if len(headers) > 0 {
		if err := sw.WriteRecord(headers); err != nil {
			file.Close()
			return nil, err
		}
	}
	return sw, nil
}

// WriteRecord writes a single record
func (sw *StreamWriter) WriteRecord(record []string) error {
	if err := sw.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes and closes the stream writer
func (sw *StreamWriter) Close() error {
	sw.writer.Flush()
	if err := sw.writer.Error(); err != nil {
		if sw.file != nil {
			sw.file.Close()
		}
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	if sw.file == nil {
		return nil
	}
	return sw.file.Close()
}
