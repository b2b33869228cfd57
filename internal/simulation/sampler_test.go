package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategyString(t *testing.T) {
	tests := []struct {
		strategy Strategy
		expected string
	}{
		{Uniform, "uniform"},
		{UniformInteger, "uniform_integer"},
		{BoundedNormal, "bounded_normal"},
		{Strategy(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.String())
		})
	}
}

// TestSamplesStayInRange draws every default factor with its own strategy
// and checks that no value escapes the declared range.
func TestSamplesStayInRange(t *testing.T) {
	s := NewSampler(7, 1, 5000)

	for _, f := range DefaultParameters().Factors() {
		t.Run(f.Name, func(t *testing.T) {
			values := s.Draw(f.Strategy, f.Range)
			require.Len(t, values, 5000)
			for i, v := range values {
				if !f.Range.Contains(v) {
					t.Fatalf("trial %d: %g outside [%g, %g]", i, v, f.Range.Low, f.Range.High)
				}
			}
		})
	}
}

func TestSkewedSamplesStayInRange(t *testing.T) {
	r := R(2000, 15000)
	values := NewSampler(3, 9, 5000).BoundedNormal(r, projectValueSkew)
	for _, v := range values {
		require.True(t, r.Contains(v), "%g outside range", v)
	}
}

func TestSkewShiftsMeanUpward(t *testing.T) {
	r := R(0, 100)
	plain := mean(NewSampler(11, 1, 20000).BoundedNormal(r, 0))
	skewed := mean(NewSampler(11, 1, 20000).BoundedNormal(r, 0.2))
	assert.Greater(t, skewed, plain)
}

func TestIntegerSamples(t *testing.T) {
	values := NewSampler(5, 2, 2000).Integer(R(1, 5))

	seen := make(map[float64]bool)
	for _, v := range values {
		assert.Equal(t, math.Trunc(v), v)
		seen[v] = true
	}
	// both bounds are inclusive
	for v := 1.0; v <= 5; v++ {
		assert.True(t, seen[v], "value %g never drawn", v)
	}
}

func TestDegenerateRanges(t *testing.T) {
	s := NewSampler(1, 1, 100)

	assert.Equal(t, Fill(100, 3), s.Uniform(R(3, 3)))
	assert.Equal(t, Fill(100, 0), s.Integer(R(0, 0)))
	assert.Equal(t, Fill(100, 7.5), s.BoundedNormal(R(7.5, 7.5), 0.2))
}

func TestSamplerDeterminism(t *testing.T) {
	a := NewSampler(42, 3, 1000)
	b := NewSampler(42, 3, 1000)
	assert.Equal(t, a.Uniform(R(0, 1)), b.Uniform(R(0, 1)))
	assert.Equal(t, a.BoundedNormal(R(0, 1), 0), b.BoundedNormal(R(0, 1), 0))

	other := NewSampler(42, 4, 1000)
	assert.NotEqual(t, NewSampler(42, 3, 1000).Uniform(R(0, 1)), other.Uniform(R(0, 1)))
}

func TestSportCompositeBounds(t *testing.T) {
	impacts := DefaultSportImpacts()
	low, high := 0.0, 0.0
	for _, s := range impacts {
		low += s.Weight * s.Impact.Low
		high += s.Weight * s.Impact.High
	}

	composite := SportComposite(NewSampler(8, 6, 5000), impacts)
	for _, v := range composite {
		require.GreaterOrEqual(t, v, low-1e-12)
		require.LessOrEqual(t, v, high+1e-12)
	}
}

func TestPopulationArithmetic(t *testing.T) {
	p := Population{1, 2, 3}
	q := Population{4, 0, -3}

	assert.Equal(t, Population{5, 2, 0}, p.Add(q))
	assert.Equal(t, Population{-3, 2, 6}, p.Sub(q))
	assert.Equal(t, Population{4, 0, -9}, p.Mul(q))
	assert.Equal(t, Population{2, 4, 6}, p.Scale(2))
	assert.Equal(t, Population{6, 4, 3}, Sum(p, q, Population{1, 2, 3}))

	div := p.Div(q)
	assert.Equal(t, 0.25, div[0])
	assert.True(t, math.IsInf(div[1], 1))
	assert.Equal(t, -1.0, div[2])
	assert.Equal(t, 1, div.NonFinite())
	assert.Equal(t, []float64{0.25, -1}, div.Finite())

	// operands are untouched
	assert.Equal(t, Population{1, 2, 3}, p)

	assert.Panics(t, func() { p.Add(Population{1}) })
}
