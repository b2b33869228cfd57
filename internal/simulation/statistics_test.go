package simulation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableOf builds a table directly from columns for summarizer tests
func tableOf(t *testing.T, columns map[string]Population, order ...string) *TrialTable {
	t.Helper()
	require.NotEmpty(t, order)
	table := newTrialTable(len(columns[order[0]]), 0)
	for _, name := range order {
		table.set(name, columns[name])
	}
	return table
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name     string
		q        float64
		expected float64
	}{
		{"minimum", 0, 1},
		{"p5 interpolates", 0.05, 1.2},
		{"p25 on a rank", 0.25, 2},
		{"median", 0.5, 3},
		{"p95 interpolates", 0.95, 4.8},
		{"maximum", 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, percentile(sorted, tt.q), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(percentile(nil, 0.5)))
}

func TestStatisticsSummary(t *testing.T) {
	table := tableOf(t, map[string]Population{
		"value": {5, 1, 4, 2, 3},
	}, "value")

	rows, err := Statistics(table, []string{"value"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "value", row.Metric)
	assert.Equal(t, "Value", row.Label)
	assert.Equal(t, 3.0, row.Mean)
	assert.Equal(t, 3.0, row.Median)
	assert.InDelta(t, math.Sqrt(2.5), row.StdDev, 1e-12)
	assert.Equal(t, 1.0, row.Min)
	assert.Equal(t, 5.0, row.Max)
	assert.InDelta(t, 1.2, row.P5, 1e-12)
	assert.InDelta(t, 4.8, row.P95, 1e-12)
	assert.Equal(t, 5, row.Valid)
	assert.Equal(t, 0, row.Excluded)
}

func TestStatisticsIdempotent(t *testing.T) {
	table := runTable(t, DefaultParameters(), 1000, 11)

	first, err := Statistics(table, nil)
	require.NoError(t, err)
	second, err := Statistics(table, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, table.Equal(runTable(t, DefaultParameters(), 1000, 11)), "statistics must not reorder the table")
}

func TestStatisticsExcludesNonFinite(t *testing.T) {
	table := tableOf(t, map[string]Population{
		"ratio": {1, math.Inf(1), 3, math.NaN()},
		"empty": {math.NaN(), math.Inf(-1), math.NaN(), math.NaN()},
	}, "ratio", "empty")

	rows, err := Statistics(table, []string{"ratio", "empty"})
	require.NoError(t, err)

	assert.Equal(t, 2.0, rows[0].Mean)
	assert.Equal(t, 2, rows[0].Valid)
	assert.Equal(t, 2, rows[0].Excluded)

	assert.Equal(t, 0, rows[1].Valid)
	assert.Equal(t, 4, rows[1].Excluded)
	assert.True(t, math.IsNaN(rows[1].Mean))
	assert.True(t, math.IsNaN(rows[1].P95))

	data, err := json.Marshal(rows[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mean":null`)
	assert.Contains(t, string(data), `"excluded":4`)
}

func TestStatisticsErrors(t *testing.T) {
	_, err := Statistics(nil, nil)
	var stateErr *EngineStateError
	assert.True(t, errors.As(err, &stateErr))

	table := tableOf(t, map[string]Population{"a": {1, 2}}, "a")
	_, err = Statistics(table, []string{"missing"})
	var colErr *UnknownColumnError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, "missing", colErr.Column)
}

func TestProbabilityAbove(t *testing.T) {
	table := tableOf(t, map[string]Population{
		"profit": {1000, 6000, 12000, math.NaN(), 25000},
	}, "profit")

	p, err := ProbabilityAbove(table, "profit", 5000)
	require.NoError(t, err)
	assert.Equal(t, 0.75, p)

	p, err = ProbabilityAbove(table, "profit", 30000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Roi Percent", Label("roi_percent"))
	assert.Equal(t, "Monthly Value", Label("monthly_value"))
	assert.Equal(t, "Api Calls", Label("api_calls"))
}
