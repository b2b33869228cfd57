package simulation

const (
	// projectValueSkew biases project values toward the upper bound
	projectValueSkew = 0.2

	// monthsPerYear amortizes annual licensing deals to a monthly figure
	monthsPerYear = 12

	// Share of automation savings applied to each cost category
	infrastructureAutomationShare = 0.5
	dataAutomationShare           = 0.3
	personnelAutomationShare      = 0.2
)

// SubscriptionRevenue holds the tiered subscription populations
type SubscriptionRevenue struct {
	Basic      Population
	Pro        Population
	Enterprise Population
	Total      Population

	// Subscribers is the churn-scaled subscriber count
	Subscribers Population
	// RawSubscribers is the subscriber count before churn
	RawSubscribers Population
}

// SimulateSubscription draws tier counts, tier prices and one churn rate per
// trial. The same retention factor scales all three tiers of a trial.
func SimulateSubscription(s *Sampler, p Parameters) SubscriptionRevenue {
	basicSubs := s.Integer(p.BasicSubscribers)
	proSubs := s.Integer(p.ProSubscribers)
	enterpriseSubs := s.Integer(p.EnterpriseSubscribers)

	basicPrice := s.Uniform(p.BasicPrice)
	proPrice := s.Uniform(p.ProPrice)
	enterprisePrice := s.Uniform(p.EnterprisePrice)

	churn := s.Uniform(p.ChurnRate)
	retention := churn.Map(func(c float64) float64 { return 1 - c })

	basic := basicSubs.Mul(basicPrice).Mul(retention)
	pro := proSubs.Mul(proPrice).Mul(retention)
	enterprise := enterpriseSubs.Mul(enterprisePrice).Mul(retention)
	raw := Sum(basicSubs, proSubs, enterpriseSubs)

	return SubscriptionRevenue{
		Basic:          basic,
		Pro:            pro,
		Enterprise:     enterprise,
		Total:          Sum(basic, pro, enterprise),
		Subscribers:    raw.Mul(retention),
		RawSubscribers: raw,
	}
}

// APIRevenue holds the API base fee and usage populations
type APIRevenue struct {
	Base  Population
	Usage Population
	Total Population
	Calls Population
}

// SimulateAPI draws a monthly base fee plus call volume times per-call rate
func SimulateAPI(s *Sampler, p Parameters) APIRevenue {
	base := s.Uniform(p.APIMonthlyBase)
	perCall := s.Uniform(p.APIPerCallRevenue)
	calls := s.Integer(p.MonthlyAPICalls)

	usage := calls.Mul(perCall)
	return APIRevenue{
		Base:  base,
		Usage: usage,
		Total: base.Add(usage),
		Calls: calls,
	}
}

// ProjectRevenue holds the custom analytics project populations
type ProjectRevenue struct {
	Count        Population
	AverageValue Population
	Total        Population
}

// SimulateProjects draws a project count and a skewed per-project value
func SimulateProjects(s *Sampler, p Parameters) ProjectRevenue {
	count := s.Integer(p.ProjectsPerMonth)
	value := s.BoundedNormal(p.ProjectValue, projectValueSkew)

	return ProjectRevenue{
		Count:        count,
		AverageValue: value,
		Total:        count.Mul(value),
	}
}

// LicensingRevenue holds the data licensing populations
type LicensingRevenue struct {
	Deals     Population
	DealValue Population
	Monthly   Population
}

// SimulateLicensing draws annual deals and deal values and amortizes the
// annual total over twelve months
func SimulateLicensing(s *Sampler, p Parameters) LicensingRevenue {
	deals := s.Integer(p.AnnualLicensingDeals)
	value := s.BoundedNormal(p.LicensingValue, 0)

	return LicensingRevenue{
		Deals:     deals,
		DealValue: value,
		Monthly:   deals.Mul(value).Map(func(v float64) float64 { return v / monthsPerYear }),
	}
}

// OperatingCosts holds the post-automation cost populations
type OperatingCosts struct {
	Infrastructure  Population
	DataAcquisition Population
	Personnel       Population
	Marketing       Population
	Total           Population
	Automation      Population
}

// SimulateCosts draws the four cost categories and an automation savings
// rate, then reduces infrastructure, data and personnel by fixed shares of
// that rate. Marketing is unaffected by automation.
func SimulateCosts(s *Sampler, p Parameters) OperatingCosts {
	infrastructure := s.Uniform(p.InfrastructureMonthly)
	data := s.BoundedNormal(p.DataAcquisition, 0)
	personnel := s.BoundedNormal(p.PersonnelAllocation, 0)
	marketing := s.Uniform(p.MarketingMonthly)

	automation := s.Uniform(p.AutomationSavings)

	infrastructure = infrastructure.Mul(savingsFactor(automation, infrastructureAutomationShare))
	data = data.Mul(savingsFactor(automation, dataAutomationShare))
	personnel = personnel.Mul(savingsFactor(automation, personnelAutomationShare))

	return OperatingCosts{
		Infrastructure:  infrastructure,
		DataAcquisition: data,
		Personnel:       personnel,
		Marketing:       marketing,
		Total:           Sum(infrastructure, data, personnel, marketing),
		Automation:      automation,
	}
}

// savingsFactor returns 1 - share*automation for every trial
func savingsFactor(automation Population, share float64) Population {
	return automation.Map(func(a float64) float64 { return 1 - a*share })
}
