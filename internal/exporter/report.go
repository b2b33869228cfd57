package exporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"forecastcli/internal/simulation"
)

// RiskThresholds are the monthly value levels the risk section reports
// exceedance probabilities for
var RiskThresholds = []float64{5000, 10000, 15000, 20000}

// reportColumns are the trial table columns the report summarizes
var reportColumns = []string{
	simulation.ColMonthlyValue,
	simulation.ColROIPercent,
	simulation.ColSubscriptionRevenue,
	simulation.ColAPIRevenue,
	simulation.ColProjectRevenue,
	simulation.ColLicensingRevenue,
	simulation.ColGrossRevenue,
	simulation.ColAdjustedRevenue,
	simulation.ColInfrastructureCost,
	simulation.ColDataCost,
	simulation.ColPersonnelCost,
	simulation.ColMarketingCost,
	simulation.ColTotalCosts,
	simulation.ColAutomationSavings,
	simulation.ColGrossProfit,
	simulation.ColProfitMargin,
	simulation.ColHoursSaved,
}

const (
	ruleHeavy = "================================================================================"
	ruleLight = "--------------------------------------------------------------------------------"
)

// ReportInput holds everything the text report renders
type ReportInput struct {
	Title       string
	Table       *simulation.TrialTable
	Sensitivity []simulation.SensitivityRow
	Generated   time.Time
}

// WriteReport renders the text report for a completed run
func WriteReport(w io.Writer, in ReportInput) error {
	if in.Table == nil {
		return &simulation.EngineStateError{Operation: "report"}
	}
	if in.Title == "" {
		in.Title = "MONTE CARLO REVENUE & ROI FORECAST"
	}
	if in.Generated.IsZero() {
		in.Generated = time.Now()
	}

	rows, err := simulation.Statistics(in.Table, reportColumns)
	if err != nil {
		return fmt.Errorf("summarize report columns: %w", err)
	}
	stats := make(map[string]simulation.SummaryRow, len(rows))
	for _, r := range rows {
		stats[r.Metric] = r
	}
	mean := func(col string) float64 { return stats[col].Mean }
	value := stats[simulation.ColMonthlyValue]
	roi := stats[simulation.ColROIPercent]

	p := &reportPrinter{w: w}

	p.line(ruleHeavy)
	p.line(in.Title)
	p.line(ruleHeavy)
	p.printf("Generated: %s\n", in.Generated.Format("2006-01-02 15:04:05 MST"))
	p.printf("Simulations: %s\n", groupThousands(fmt.Sprint(in.Table.Trials())))
	p.printf("Seed: %d\n", in.Table.Seed())

	p.section("EXECUTIVE SUMMARY")
	p.printf("Expected Monthly Value: %s\n", formatMoney(value.Mean))
	p.printf("Median Monthly Value:   %s\n", formatMoney(value.Median))
	p.printf("90%% Range (P5-P95):     %s - %s\n", formatMoney(value.P5), formatMoney(value.P95))
	p.line("")
	p.printf("Expected ROI:           %s\n", formatPercent(roi.Mean/100))
	p.printf("Median ROI:             %s\n", formatPercent(roi.Median/100))
	if roi.Excluded > 0 {
		p.printf("ROI excluded trials:    %d\n", roi.Excluded)
	}

	p.section("REVENUE BREAKDOWN (Monthly Averages)")
	p.printf("Subscription Revenue:   %s\n", formatMoney(mean(simulation.ColSubscriptionRevenue)))
	p.printf("API Revenue:            %s\n", formatMoney(mean(simulation.ColAPIRevenue)))
	p.printf("Project Revenue:        %s\n", formatMoney(mean(simulation.ColProjectRevenue)))
	p.printf("Licensing Revenue:      %s\n", formatMoney(mean(simulation.ColLicensingRevenue)))
	p.line(ruleLight)
	p.printf("Total Gross Revenue:    %s\n", formatMoney(mean(simulation.ColGrossRevenue)))
	p.printf("Market-Adjusted Rev:    %s\n", formatMoney(mean(simulation.ColAdjustedRevenue)))

	p.section("COST STRUCTURE (Monthly Averages)")
	p.printf("Infrastructure:         %s\n", formatMoney(mean(simulation.ColInfrastructureCost)))
	p.printf("Data Acquisition:       %s\n", formatMoney(mean(simulation.ColDataCost)))
	p.printf("Personnel:              %s\n", formatMoney(mean(simulation.ColPersonnelCost)))
	p.printf("Marketing:              %s\n", formatMoney(mean(simulation.ColMarketingCost)))
	p.line(ruleLight)
	p.printf("Total Costs:            %s\n", formatMoney(mean(simulation.ColTotalCosts)))
	p.printf("Automation Savings:     %s\n", formatPercent(mean(simulation.ColAutomationSavings)))

	p.section("PROFITABILITY METRICS")
	p.printf("Gross Profit:           %s\n", formatMoney(mean(simulation.ColGrossProfit)))
	p.printf("Profit Margin:          %s\n", formatPercent(mean(simulation.ColProfitMargin)))
	p.printf("Hours Saved Monthly:    %s hours\n", groupThousands(formatFloat(mean(simulation.ColHoursSaved), 0)))

	p.section("RISK ANALYSIS")
	for _, threshold := range RiskThresholds {
		prob, err := simulation.ProbabilityAbove(in.Table, simulation.ColMonthlyValue, threshold)
		if err != nil {
			return err
		}
		label := fmt.Sprintf("Probability of Profit > %s:", strings.TrimSuffix(formatMoney(threshold), ".00"))
		p.printf("%-34s%s\n", label, formatPercent(prob))
	}

	if len(in.Sensitivity) > 0 {
		p.section("SENSITIVITY ANALYSIS")
		p.sensitivityTable(in.Sensitivity)

		p.section("KEY INSIGHTS")
		top := in.Sensitivity[0]
		p.printf("1. %s is the strongest driver of monthly value (correlation %s, %s impact).\n",
			top.Label, formatFloat(top.Correlation, 3), strings.ToLower(string(top.Importance)))
		p.printf("2. Automation savings averaging %s give the platform operating leverage.\n",
			formatPercent(mean(simulation.ColAutomationSavings)))
		p.printf("3. Top quartile outcomes exceed %s/month.\n",
			strings.TrimSuffix(formatMoney(value.P75), ".00"))
		p.printf("4. The bottom 5%% of trials fall below %s/month.\n", formatMoney(value.P5))
	}

	if warnings := in.Table.Warnings(); len(warnings) > 0 {
		p.section("DATA QUALITY")
		for _, warn := range warnings {
			p.line(warn.String())
		}
	}

	p.line("")
	p.line(ruleHeavy)
	return p.err
}

// reportPrinter keeps the first write error so sections can be emitted
// without checking each line
type reportPrinter struct {
	w   io.Writer
	err error
}

func (p *reportPrinter) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *reportPrinter) line(s string) {
	p.printf("%s\n", s)
}

func (p *reportPrinter) section(title string) {
	p.line("")
	p.line(title)
	p.line(ruleLight)
}

func (p *reportPrinter) sensitivityTable(rows []simulation.SensitivityRow) {
	if p.err != nil {
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Factor\tCorrelation\tImpact Score\tImportance")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.Label, formatFloat(r.Correlation, 4), formatFloat(r.ImpactScore, 4), r.Importance)
	}
	p.err = tw.Flush()
}
