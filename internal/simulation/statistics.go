package simulation

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"
)

// DefaultStatisticsColumns are the outcome columns summarized when no
// columns are requested
var DefaultStatisticsColumns = []string{
	ColMonthlyValue,
	ColAdjustedRevenue,
	ColGrossProfit,
	ColROIPercent,
	ColHoursSaved,
	ColTotalSubscribers,
}

// SummaryRow holds the distribution statistics of one outcome column.
// Only finite trial values participate; Excluded counts the others.
type SummaryRow struct {
	Metric   string
	Label    string
	Mean     float64
	Median   float64
	StdDev   float64
	P5       float64
	P25      float64
	P75      float64
	P95      float64
	Min      float64
	Max      float64
	Valid    int
	Excluded int
}

// MarshalJSON encodes non-finite statistics as null
func (r SummaryRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Metric   string   `json:"metric"`
		Label    string   `json:"label"`
		Mean     *float64 `json:"mean"`
		Median   *float64 `json:"median"`
		StdDev   *float64 `json:"std_dev"`
		P5       *float64 `json:"p5"`
		P25      *float64 `json:"p25"`
		P75      *float64 `json:"p75"`
		P95      *float64 `json:"p95"`
		Min      *float64 `json:"min"`
		Max      *float64 `json:"max"`
		Valid    int      `json:"valid"`
		Excluded int      `json:"excluded"`
	}{
		Metric:   r.Metric,
		Label:    r.Label,
		Mean:     finiteOrNil(r.Mean),
		Median:   finiteOrNil(r.Median),
		StdDev:   finiteOrNil(r.StdDev),
		P5:       finiteOrNil(r.P5),
		P25:      finiteOrNil(r.P25),
		P75:      finiteOrNil(r.P75),
		P95:      finiteOrNil(r.P95),
		Min:      finiteOrNil(r.Min),
		Max:      finiteOrNil(r.Max),
		Valid:    r.Valid,
		Excluded: r.Excluded,
	})
}

// Statistics summarizes the requested columns of a trial table. A nil or
// empty column list selects DefaultStatisticsColumns.
func Statistics(t *TrialTable, columns []string) ([]SummaryRow, error) {
	if t == nil {
		return nil, &EngineStateError{Operation: "statistics"}
	}
	if len(columns) == 0 {
		columns = DefaultStatisticsColumns
	}

	rows := make([]SummaryRow, 0, len(columns))
	for _, name := range columns {
		values, err := t.column(name)
		if err != nil {
			return nil, err
		}
		rows = append(rows, summarize(name, values))
	}
	return rows, nil
}

func summarize(name string, values Population) SummaryRow {
	finite := values.Finite()
	row := SummaryRow{
		Metric:   name,
		Label:    Label(name),
		Valid:    len(finite),
		Excluded: len(values) - len(finite),
	}

	if len(finite) == 0 {
		nan := math.NaN()
		row.Mean, row.Median, row.StdDev = nan, nan, nan
		row.P5, row.P25, row.P75, row.P95 = nan, nan, nan, nan
		row.Min, row.Max = nan, nan
		return row
	}

	sort.Float64s(finite)

	row.Mean = mean(finite)
	row.StdDev = sampleStdDev(finite, row.Mean)
	row.Median = percentile(finite, 0.50)
	row.P5 = percentile(finite, 0.05)
	row.P25 = percentile(finite, 0.25)
	row.P75 = percentile(finite, 0.75)
	row.P95 = percentile(finite, 0.95)
	row.Min = finite[0]
	row.Max = finite[len(finite)-1]
	return row
}

// percentile returns the value at fraction q of sorted data, interpolating
// linearly between the closest ranks
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	index := q * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses the n-1 denominator. A single value has no spread
// estimate and yields NaN.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// ProbabilityAbove returns the share of finite trials in column whose value
// exceeds threshold
func ProbabilityAbove(t *TrialTable, column string, threshold float64) (float64, error) {
	if t == nil {
		return 0, &EngineStateError{Operation: "probability"}
	}
	values, err := t.column(column)
	if err != nil {
		return 0, err
	}
	finite := values.Finite()
	if len(finite) == 0 {
		return math.NaN(), nil
	}
	above := 0
	for _, v := range finite {
		if v > threshold {
			above++
		}
	}
	return float64(above) / float64(len(finite)), nil
}

// Label turns a column name into a display title, e.g. "roi_percent" becomes
// "Roi Percent"
func Label(column string) string {
	words := strings.Split(column, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func finiteOrNil(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}
