package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"forecastcli/internal/simulation"
)

// PrintStatistics writes the statistics table in aligned columns
func PrintStatistics(w io.Writer, rows []simulation.SummaryRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Metric\tMean\tMedian\tStd Dev\tP5\tP25\tP75\tP95\tExcluded\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			r.Label,
			displayFloat(r.Mean), displayFloat(r.Median), displayFloat(r.StdDev),
			displayFloat(r.P5), displayFloat(r.P25), displayFloat(r.P75), displayFloat(r.P95),
			r.Excluded)
	}
	return tw.Flush()
}

// PrintSensitivity writes the sensitivity ranking in aligned columns
func PrintSensitivity(w io.Writer, rows []simulation.SensitivityRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Factor\tCorrelation\tImpact Score\tImportance")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Label, displayFloat4(r.Correlation), displayFloat4(r.ImpactScore), r.Importance)
	}
	return tw.Flush()
}

func displayFloat(v float64) string {
	s := formatFloat(v, 2)
	if s == "" {
		return "n/a"
	}
	return groupThousands(s)
}

func displayFloat4(v float64) string {
	s := formatFloat(v, 4)
	if s == "" {
		return "n/a"
	}
	return s
}
