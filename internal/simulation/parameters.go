package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"
)

// weightTolerance bounds the floating point slack allowed when checking that
// sport-impact weights sum to one.
const weightTolerance = 1e-9

// maxIntegerBound is the largest magnitude an integer factor bound may have.
// Every integer up to 2^53 is exact as a float64, and the inclusive span of
// two such bounds still fits in an int64.
const maxIntegerBound = 1 << 53

// Range is a closed interval [Low, High] of plausible values for one factor.
// It encodes as a two-element sequence in both YAML and JSON.
type Range struct {
	Low  float64
	High float64
}

// R is shorthand for constructing a Range
func R(low, high float64) Range {
	return Range{Low: low, High: high}
}

// Width returns High - Low
func (r Range) Width() float64 {
	return r.High - r.Low
}

// Midpoint returns the center of the range
func (r Range) Midpoint() float64 {
	return (r.Low + r.High) / 2
}

// Contains reports whether v lies inside the closed range
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Clamp limits v to the range. NaN is returned unchanged.
func (r Range) Clamp(v float64) float64 {
	if v < r.Low {
		return r.Low
	}
	if v > r.High {
		return r.High
	}
	return v
}

func (r Range) validate(name string) error {
	if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
		return configErrorf(name, "bounds must be finite, got [%g, %g]", r.Low, r.High)
	}
	if r.Low > r.High {
		return configErrorf(name, "low %g exceeds high %g", r.Low, r.High)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (r Range) MarshalYAML() (interface{}, error) {
	return []float64{r.Low, r.High}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (r *Range) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pair []float64
	if err := unmarshal(&pair); err != nil {
		return fmt.Errorf("range must be a [low, high] sequence: %w", err)
	}
	return r.fromPair(pair)
}

// MarshalJSON implements json.Marshaler
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Low, r.High})
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("range must be a [low, high] array: %w", err)
	}
	return r.fromPair(pair)
}

func (r *Range) fromPair(pair []float64) error {
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 bounds, got %d", len(pair))
	}
	r.Low, r.High = pair[0], pair[1]
	return nil
}

// SportImpact is one sport's revenue multiplier range and its weight in the
// market composite.
type SportImpact struct {
	Name   string  `yaml:"name" json:"name"`
	Impact Range   `yaml:"impact" json:"impact"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// FactorName returns the parameter name used for this sport's impact range
func (s SportImpact) FactorName() string {
	return s.Name + "_impact"
}

// Parameters is the full set of factor ranges for one simulated month.
// Counts are sampled as integers, so their bounds must be integral.
type Parameters struct {
	// Subscription tiers (monthly prices)
	BasicPrice      Range `yaml:"basic_price" json:"basic_price"`
	ProPrice        Range `yaml:"pro_price" json:"pro_price"`
	EnterprisePrice Range `yaml:"enterprise_price" json:"enterprise_price"`

	// Subscriber counts
	BasicSubscribers      Range `yaml:"basic_subscribers" json:"basic_subscribers"`
	ProSubscribers        Range `yaml:"pro_subscribers" json:"pro_subscribers"`
	EnterpriseSubscribers Range `yaml:"enterprise_subscribers" json:"enterprise_subscribers"`

	// API & data revenue
	APIMonthlyBase    Range `yaml:"api_monthly_base" json:"api_monthly_base"`
	APIPerCallRevenue Range `yaml:"api_per_call_revenue" json:"api_per_call_revenue"`
	MonthlyAPICalls   Range `yaml:"monthly_api_calls" json:"monthly_api_calls"`

	// Custom analytics projects
	ProjectsPerMonth Range `yaml:"projects_per_month" json:"projects_per_month"`
	ProjectValue     Range `yaml:"project_value" json:"project_value"`

	// Data licensing (annual deal values)
	AnnualLicensingDeals Range `yaml:"annual_licensing_deals" json:"annual_licensing_deals"`
	LicensingValue       Range `yaml:"licensing_value" json:"licensing_value"`

	// Operating costs
	InfrastructureMonthly Range `yaml:"infrastructure_monthly" json:"infrastructure_monthly"`
	DataAcquisition       Range `yaml:"data_acquisition" json:"data_acquisition"`
	PersonnelAllocation   Range `yaml:"personnel_allocation" json:"personnel_allocation"`
	MarketingMonthly      Range `yaml:"marketing_monthly" json:"marketing_monthly"`

	// Market factors
	SeasonalityFactor Range `yaml:"seasonality_factor" json:"seasonality_factor"`
	MarketGrowthRate  Range `yaml:"market_growth_rate" json:"market_growth_rate"`
	ChurnRate         Range `yaml:"churn_rate" json:"churn_rate"`

	// Efficiency factors
	AutomationSavings  Range `yaml:"automation_savings" json:"automation_savings"`
	PlatformEfficiency Range `yaml:"platform_efficiency" json:"platform_efficiency"`

	// Sport-specific impacts, combined as a weighted sum of independent draws
	SportImpacts []SportImpact `yaml:"sport_impacts" json:"sport_impacts"`
}

// DefaultSportImpacts returns the default sport composite. Weights sum to 1.
func DefaultSportImpacts() []SportImpact {
	return []SportImpact{
		{Name: "baseball", Impact: R(0.9, 1.4), Weight: 0.35},
		{Name: "football", Impact: R(0.8, 1.3), Weight: 0.30},
		{Name: "basketball", Impact: R(0.7, 1.2), Weight: 0.25},
		{Name: "track_field", Impact: R(0.5, 0.9), Weight: 0.10},
	}
}

// DefaultParameters returns the calibrated default parameter set
func DefaultParameters() Parameters {
	return Parameters{
		BasicPrice:      R(29, 49),
		ProPrice:        R(99, 149),
		EnterprisePrice: R(499, 999),

		BasicSubscribers:      R(50, 300),
		ProSubscribers:        R(20, 100),
		EnterpriseSubscribers: R(5, 25),

		APIMonthlyBase:    R(500, 2000),
		APIPerCallRevenue: R(0.001, 0.01),
		MonthlyAPICalls:   R(100000, 1000000),

		ProjectsPerMonth: R(1, 5),
		ProjectValue:     R(2000, 15000),

		AnnualLicensingDeals: R(2, 8),
		LicensingValue:       R(10000, 50000),

		InfrastructureMonthly: R(500, 1500),
		DataAcquisition:       R(1000, 3000),
		PersonnelAllocation:   R(2000, 5000),
		MarketingMonthly:      R(500, 2000),

		SeasonalityFactor: R(0.7, 1.3),
		MarketGrowthRate:  R(0.98, 1.15),
		ChurnRate:         R(0.02, 0.08),

		AutomationSavings:  R(0.1, 0.3),
		PlatformEfficiency: R(1.0, 1.5),

		SportImpacts: DefaultSportImpacts(),
	}
}

// Factor describes one named range and the strategy used to sample it
type Factor struct {
	Name     string   `json:"name"`
	Range    Range    `json:"range"`
	Strategy Strategy `json:"strategy"`
}

// Factors lists every sampled factor in declaration order
func (p Parameters) Factors() []Factor {
	factors := []Factor{
		{"basic_price", p.BasicPrice, Uniform},
		{"pro_price", p.ProPrice, Uniform},
		{"enterprise_price", p.EnterprisePrice, Uniform},
		{"basic_subscribers", p.BasicSubscribers, UniformInteger},
		{"pro_subscribers", p.ProSubscribers, UniformInteger},
		{"enterprise_subscribers", p.EnterpriseSubscribers, UniformInteger},
		{"api_monthly_base", p.APIMonthlyBase, Uniform},
		{"api_per_call_revenue", p.APIPerCallRevenue, Uniform},
		{"monthly_api_calls", p.MonthlyAPICalls, UniformInteger},
		{"projects_per_month", p.ProjectsPerMonth, UniformInteger},
		{"project_value", p.ProjectValue, BoundedNormal},
		{"annual_licensing_deals", p.AnnualLicensingDeals, UniformInteger},
		{"licensing_value", p.LicensingValue, BoundedNormal},
		{"infrastructure_monthly", p.InfrastructureMonthly, Uniform},
		{"data_acquisition", p.DataAcquisition, BoundedNormal},
		{"personnel_allocation", p.PersonnelAllocation, BoundedNormal},
		{"marketing_monthly", p.MarketingMonthly, Uniform},
		{"seasonality_factor", p.SeasonalityFactor, Uniform},
		{"market_growth_rate", p.MarketGrowthRate, Uniform},
		{"churn_rate", p.ChurnRate, Uniform},
		{"automation_savings", p.AutomationSavings, Uniform},
		{"platform_efficiency", p.PlatformEfficiency, Uniform},
	}
	for _, s := range p.SportImpacts {
		factors = append(factors, Factor{s.FactorName(), s.Impact, Uniform})
	}
	return factors
}

// Validate checks every range and the sport composite. All violations are
// reported, joined, each as a *ConfigurationError.
func (p Parameters) Validate() error {
	var errs []error

	for _, f := range p.Factors() {
		if err := f.Range.validate(f.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		if f.Strategy != UniformInteger {
			continue
		}
		if f.Range.Low != math.Trunc(f.Range.Low) || f.Range.High != math.Trunc(f.Range.High) {
			errs = append(errs, configErrorf(f.Name, "integer factor needs integral bounds, got [%g, %g]", f.Range.Low, f.Range.High))
			continue
		}
		if math.Abs(f.Range.Low) > maxIntegerBound || math.Abs(f.Range.High) > maxIntegerBound {
			errs = append(errs, configErrorf(f.Name, "integer factor bounds must lie within ±2^53, got [%g, %g]", f.Range.Low, f.Range.High))
		}
	}

	// Retention (1 - churn) must stay within [0, 1]
	if p.ChurnRate.Low < 0 || p.ChurnRate.High > 1 {
		errs = append(errs, configErrorf("churn_rate", "must lie within [0, 1], got [%g, %g]", p.ChurnRate.Low, p.ChurnRate.High))
	}

	errs = append(errs, validateSportImpacts(p.SportImpacts)...)

	return errors.Join(errs...)
}

func validateSportImpacts(impacts []SportImpact) []error {
	if len(impacts) == 0 {
		return []error{configErrorf("sport_impacts", "at least one sport is required")}
	}

	var errs []error
	seen := make(map[string]bool, len(impacts))
	sum := 0.0
	for _, s := range impacts {
		if s.Name == "" {
			errs = append(errs, configErrorf("sport_impacts", "sport name must not be empty"))
		}
		if seen[s.Name] {
			errs = append(errs, configErrorf(s.FactorName(), "duplicate sport"))
		}
		seen[s.Name] = true

		if s.Weight < 0 || math.IsNaN(s.Weight) {
			errs = append(errs, configErrorf(s.FactorName(), "weight must be non-negative, got %g", s.Weight))
		}
		sum += s.Weight
	}

	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, configErrorf("sport_impacts", "weights must sum to 1, got %.12g", sum))
	}
	return errs
}

// LoadParameters reads a YAML parameter file. Ranges missing from the file
// keep their default values; a sport_impacts list replaces the default list.
func LoadParameters(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("read parameter file: %w", err)
	}
	return ParseParameters(data)
}

// ParseParameters decodes YAML parameter data over the defaults and validates the result
func ParseParameters(data []byte) (Parameters, error) {
	params := DefaultParameters()
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Parameters{}, fmt.Errorf("parse parameter file: %w", err)
	}
	if err := params.Validate(); err != nil {
		return Parameters{}, err
	}
	return params, nil
}
