// Package exporter writes simulation results to disk.
//
// CSVWriter streams the trial table and writes the statistics and
// sensitivity tables. WorkbookWriter produces the same three tables as an
// Excel workbook. WriteReport renders the human-readable text report, and
// WriteBundle ties them together into one timestamped set of files:
//
//	bundle, err := exporter.WriteBundle(ctx, exporter.BundleOptions{
//	    Dir:   "reports",
//	    Excel: true,
//	}, table, stats, ranking)
//
// Non-finite trial values are written as "inf", "-inf" or an empty field in
// CSV files and as empty cells in workbooks.
package exporter
