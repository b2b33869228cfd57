package simulation

// Trial table column names
const (
	// Revenue streams
	ColSubscriptionRevenue = "subscription_revenue"
	ColAPIRevenue          = "api_revenue"
	ColProjectRevenue      = "project_revenue"
	ColLicensingRevenue    = "licensing_revenue"

	// Costs
	ColTotalCosts         = "total_costs"
	ColInfrastructureCost = "infrastructure_cost"
	ColDataCost           = "data_cost"
	ColPersonnelCost      = "personnel_cost"
	ColMarketingCost      = "marketing_cost"

	// Profitability
	ColGrossRevenue    = "gross_revenue"
	ColAdjustedRevenue = "adjusted_revenue"
	ColGrossProfit     = "gross_profit"
	ColProfitMargin    = "profit_margin"
	ColROIPercent      = "roi_percent"
	ColMonthlyValue    = "monthly_value"
	ColHoursSaved      = "hours_saved"

	// Operational metrics
	ColTotalSubscribers  = "total_subscribers"
	ColAPICalls          = "api_calls"
	ColProjectCount      = "project_count"
	ColAutomationSavings = "automation_savings"

	// Breakdown columns
	ColBasicRevenue      = "basic_revenue"
	ColProRevenue        = "pro_revenue"
	ColEnterpriseRevenue = "enterprise_revenue"
	ColMarketFactor      = "market_factor"
)

// HourlyValue converts monthly profit into hours of work it is worth
const HourlyValue = 55.0

// StreamResults bundles the outputs of every stream simulator for one run
type StreamResults struct {
	Subscription SubscriptionRevenue
	API          APIRevenue
	Projects     ProjectRevenue
	Licensing    LicensingRevenue
	Costs        OperatingCosts
	Market       MarketFactors
}

// Aggregate folds the stream outputs into the final trial table.
//
// Trials with a zero adjusted revenue or zero total cost get a non-finite
// margin or ROI. Those values stay in the table and are counted per column
// in the table's warnings; the run itself never fails because of them.
func Aggregate(r StreamResults, trials int, seed uint64) *TrialTable {
	gross := Sum(r.Subscription.Total, r.API.Total, r.Projects.Total, r.Licensing.Monthly)
	adjusted := r.Market.Apply(gross)

	profit := adjusted.Sub(r.Costs.Total)
	margin := profit.Div(adjusted)
	roi := profit.Div(r.Costs.Total).Scale(100)
	hours := profit.Map(func(v float64) float64 { return v / HourlyValue })

	t := newTrialTable(trials, seed)

	t.set(ColSubscriptionRevenue, r.Subscription.Total)
	t.set(ColAPIRevenue, r.API.Total)
	t.set(ColProjectRevenue, r.Projects.Total)
	t.set(ColLicensingRevenue, r.Licensing.Monthly)

	t.set(ColTotalCosts, r.Costs.Total)
	t.set(ColInfrastructureCost, r.Costs.Infrastructure)
	t.set(ColDataCost, r.Costs.DataAcquisition)
	t.set(ColPersonnelCost, r.Costs.Personnel)
	t.set(ColMarketingCost, r.Costs.Marketing)

	t.set(ColGrossRevenue, gross)
	t.set(ColAdjustedRevenue, adjusted)
	t.set(ColGrossProfit, profit)
	t.set(ColProfitMargin, margin)
	t.set(ColROIPercent, roi)
	t.set(ColMonthlyValue, profit.Clone())
	t.set(ColHoursSaved, hours)

	t.set(ColTotalSubscribers, r.Subscription.Subscribers)
	t.set(ColAPICalls, r.API.Calls)
	t.set(ColProjectCount, r.Projects.Count)
	t.set(ColAutomationSavings, r.Costs.Automation)

	t.set(ColBasicRevenue, r.Subscription.Basic)
	t.set(ColProRevenue, r.Subscription.Pro)
	t.set(ColEnterpriseRevenue, r.Subscription.Enterprise)
	t.set(ColMarketFactor, r.Market.Combined)

	for _, name := range t.order {
		if n := t.columns[name].NonFinite(); n > 0 {
			t.warnings = append(t.warnings, NonFiniteTrialWarning{Column: name, Count: n})
		}
	}

	return t
}
