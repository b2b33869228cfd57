package simulation

import (
	"encoding/json"
	"math"
	"sort"
)

// Importance is a coarse label for the strength of a factor's correlation
// with the outcome
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceMedium Importance = "Medium"
	ImportanceLow    Importance = "Low"
)

// Correlation thresholds for the importance labels
const (
	highImportanceThreshold   = 0.3
	mediumImportanceThreshold = 0.1
)

// DefaultSensitivityFactors are the input stream columns ranked when no
// factors are requested
var DefaultSensitivityFactors = []string{
	ColSubscriptionRevenue,
	ColAPIRevenue,
	ColProjectRevenue,
	ColLicensingRevenue,
	ColTotalCosts,
	ColAutomationSavings,
}

// SensitivityRow pairs one input column with its correlation against the
// outcome column
type SensitivityRow struct {
	Factor      string
	Label       string
	Correlation float64
	// ImpactScore is (stddev/mean) of the factor times |Correlation|
	ImpactScore float64
	Importance  Importance
}

// MarshalJSON encodes non-finite values as null
func (r SensitivityRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Factor      string     `json:"factor"`
		Label       string     `json:"label"`
		Correlation *float64   `json:"correlation"`
		ImpactScore *float64   `json:"impact_score"`
		Importance  Importance `json:"importance"`
	}{
		Factor:      r.Factor,
		Label:       r.Label,
		Correlation: finiteOrNil(r.Correlation),
		ImpactScore: finiteOrNil(r.ImpactScore),
		Importance:  r.Importance,
	})
}

// Sensitivity ranks factor columns by how strongly they move the outcome
// column. Rows are ordered by descending impact score; ties keep the order
// of factors. Nil factors select DefaultSensitivityFactors and an empty
// outcome selects ColMonthlyValue.
//
// A factor or outcome with zero variance over the pairwise finite trials
// fails with UndefinedCorrelationError.
func Sensitivity(t *TrialTable, factors []string, outcome string) ([]SensitivityRow, error) {
	if t == nil {
		return nil, &EngineStateError{Operation: "sensitivity analysis"}
	}
	if len(factors) == 0 {
		factors = DefaultSensitivityFactors
	}
	if outcome == "" {
		outcome = ColMonthlyValue
	}

	target, err := t.column(outcome)
	if err != nil {
		return nil, err
	}

	rows := make([]SensitivityRow, 0, len(factors))
	for _, name := range factors {
		values, err := t.column(name)
		if err != nil {
			return nil, err
		}

		corr, err := correlation(values, target, name, outcome)
		if err != nil {
			return nil, err
		}

		finite := values.Finite()
		m := mean(finite)
		impact := sampleStdDev(finite, m) / m * math.Abs(corr)

		rows = append(rows, SensitivityRow{
			Factor:      name,
			Label:       Label(name),
			Correlation: corr,
			ImpactScore: impact,
			Importance:  classify(corr),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return impactGreater(rows[i].ImpactScore, rows[j].ImpactScore)
	})
	return rows, nil
}

// correlation returns the Pearson coefficient of x and y over trials where
// both values are finite
func correlation(x, y Population, xName, yName string) (float64, error) {
	var xs, ys []float64
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < 2 {
		return 0, &UndefinedCorrelationError{Column: xName, Outcome: yName}
	}

	meanX := mean(xs)
	meanY := mean(ys)

	var sumXY, sumXX, sumYY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sumXY += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}

	// a constant such as 0.1 leaves ulp-sized deviations around its mean
	if sumXX == 0 || isConstant(xs) {
		return 0, &UndefinedCorrelationError{Column: xName, Outcome: yName, Constant: xName}
	}
	if sumYY == 0 || isConstant(ys) {
		return 0, &UndefinedCorrelationError{Column: xName, Outcome: yName, Constant: yName}
	}

	r := sumXY / math.Sqrt(sumXX*sumYY)
	// rounding can push |r| a hair past 1
	return math.Max(-1, math.Min(1, r)), nil
}

// isConstant reports whether every value equals the first
func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func classify(corr float64) Importance {
	switch a := math.Abs(corr); {
	case a > highImportanceThreshold:
		return ImportanceHigh
	case a > mediumImportanceThreshold:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

// impactGreater orders NaN scores last
func impactGreater(a, b float64) bool {
	if math.IsNaN(b) {
		return !math.IsNaN(a)
	}
	if math.IsNaN(a) {
		return false
	}
	return a > b
}
