package simulation

// MarketFactors holds the per-trial market multipliers
type MarketFactors struct {
	Seasonality Population
	Growth      Population
	Efficiency  Population
	// Sports is the weighted composite of the sport impacts
	Sports Population
	// Combined is the product of all four multipliers
	Combined Population
}

// SimulateMarket draws seasonality, growth, platform efficiency and one
// impact per sport. Sports are drawn independently of each other and
// combined linearly with their weights; no correlation between sports is
// modeled.
func SimulateMarket(s *Sampler, p Parameters) MarketFactors {
	seasonality := s.Uniform(p.SeasonalityFactor)
	growth := s.Uniform(p.MarketGrowthRate)
	efficiency := s.Uniform(p.PlatformEfficiency)
	sports := SportComposite(s, p.SportImpacts)

	return MarketFactors{
		Seasonality: seasonality,
		Growth:      growth,
		Efficiency:  efficiency,
		Sports:      sports,
		Combined:    seasonality.Mul(growth).Mul(efficiency).Mul(sports),
	}
}

// SportComposite returns sum(weight_i * impact_i) over independent draws of
// each sport's impact range
func SportComposite(s *Sampler, impacts []SportImpact) Population {
	composite := Fill(s.N(), 0)
	for _, sport := range impacts {
		composite = composite.Add(s.Uniform(sport.Impact).Scale(sport.Weight))
	}
	return composite
}

// Apply returns revenue multiplied by every market factor, trial by trial
func (m MarketFactors) Apply(revenue Population) Population {
	return revenue.Mul(m.Seasonality).Mul(m.Growth).Mul(m.Efficiency).Mul(m.Sports)
}
