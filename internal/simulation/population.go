package simulation

import (
	"fmt"
	"math"
)

// Population holds one value per trial. Index i of every population built
// during a run refers to the same simulated month. Operations never modify
// their receiver or arguments; each returns a new Population.
//
// Binary operations panic when lengths differ: populations of one run always
// share the trial count, so a mismatch is a programming error.
type Population []float64

// Fill returns a population of n copies of v
func Fill(n int, v float64) Population {
	out := make(Population, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Len returns the number of trials
func (p Population) Len() int {
	return len(p)
}

// Clone returns an independent copy
func (p Population) Clone() Population {
	out := make(Population, len(p))
	copy(out, p)
	return out
}

// Add returns p + q element-wise
func (p Population) Add(q Population) Population {
	return p.zip(q, func(a, b float64) float64 { return a + b })
}

// Sub returns p - q element-wise
func (p Population) Sub(q Population) Population {
	return p.zip(q, func(a, b float64) float64 { return a - b })
}

// Mul returns p * q element-wise
func (p Population) Mul(q Population) Population {
	return p.zip(q, func(a, b float64) float64 { return a * b })
}

// Div returns p / q element-wise. Zero denominators follow IEEE 754 and
// produce ±Inf or NaN for the affected trials only.
func (p Population) Div(q Population) Population {
	return p.zip(q, func(a, b float64) float64 { return a / b })
}

// Scale returns p * k
func (p Population) Scale(k float64) Population {
	return p.Map(func(v float64) float64 { return v * k })
}

// Map applies f to every trial
func (p Population) Map(f func(float64) float64) Population {
	out := make(Population, len(p))
	for i, v := range p {
		out[i] = f(v)
	}
	return out
}

// NonFinite counts the NaN and infinite values
func (p Population) NonFinite() int {
	count := 0
	for _, v := range p {
		if !isFinite(v) {
			count++
		}
	}
	return count
}

// Finite returns the finite values in trial order
func (p Population) Finite() []float64 {
	out := make([]float64, 0, len(p))
	for _, v := range p {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func (p Population) zip(q Population, f func(a, b float64) float64) Population {
	if len(p) != len(q) {
		panic(fmt.Sprintf("simulation: population length mismatch %d != %d", len(p), len(q)))
	}
	out := make(Population, len(p))
	for i := range p {
		out[i] = f(p[i], q[i])
	}
	return out
}

// Sum returns the element-wise sum of the given populations
func Sum(first Population, rest ...Population) Population {
	out := first.Clone()
	for _, p := range rest {
		out = out.Add(p)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
