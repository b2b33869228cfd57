package simulation

import (
	"fmt"
	"math/rand/v2"
)

// Strategy selects how a factor's range is sampled
type Strategy int

const (
	// Uniform draws every value in [low, high] with equal likelihood
	Uniform Strategy = iota
	// UniformInteger draws integers uniformly from the inclusive range
	UniformInteger
	// BoundedNormal draws around the midpoint with std = width/4, clamped to the range
	BoundedNormal
)

// String returns the strategy name
func (s Strategy) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case UniformInteger:
		return "uniform_integer"
	case BoundedNormal:
		return "bounded_normal"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sampler draws fixed-size populations from a seeded PCG generator.
// A Sampler is not safe for concurrent use; give each goroutine its own.
type Sampler struct {
	rng *rand.Rand
	n   int
}

// NewSampler creates a sampler producing populations of n values. The seed
// and stream pair fully determines the sequence of draws.
func NewSampler(seed, stream uint64, n int) *Sampler {
	return &Sampler{
		rng: rand.New(rand.NewPCG(seed, stream)),
		n:   n,
	}
}

// N returns the population size
func (s *Sampler) N() int {
	return s.n
}

// Draw samples r with the given strategy and no skew
func (s *Sampler) Draw(strategy Strategy, r Range) Population {
	switch strategy {
	case UniformInteger:
		return s.Integer(r)
	case BoundedNormal:
		return s.BoundedNormal(r, 0)
	default:
		return s.Uniform(r)
	}
}

// Uniform draws n values uniformly from [low, high]
func (s *Sampler) Uniform(r Range) Population {
	out := make(Population, s.n)
	width := r.Width()
	for i := range out {
		out[i] = r.Clamp(r.Low + width*s.rng.Float64())
	}
	return out
}

// Integer draws n integers uniformly from the inclusive range. Bounds are
// truncated toward zero; Parameters.Validate rejects non-integral bounds.
func (s *Sampler) Integer(r Range) Population {
	low, high := int64(r.Low), int64(r.High)
	if high < low {
		panic(fmt.Sprintf("simulation: invalid integer range [%d, %d]", low, high))
	}
	span := high - low + 1

	out := make(Population, s.n)
	for i := range out {
		out[i] = float64(low + s.rng.Int64N(span))
	}
	return out
}

// BoundedNormal draws n values from a normal distribution centered on the
// range midpoint with standard deviation width/4. A non-zero skew applies
// x + skew*(x-mean)^2/std, which pushes the population toward the upper bound
// for positive skew. Values are clamped into the range afterwards and never
// renormalized, so the realized mean and spread drift from the nominal ones.
func (s *Sampler) BoundedNormal(r Range, skew float64) Population {
	mean := r.Midpoint()
	std := r.Width() / 4

	// Degenerate range: every draw collapses to the single allowed value
	if std == 0 {
		return Fill(s.n, r.Low)
	}

	out := make(Population, s.n)
	for i := range out {
		x := mean + std*s.rng.NormFloat64()
		if skew != 0 {
			d := x - mean
			x += skew * d * d / std
		}
		out[i] = r.Clamp(x)
	}
	return out
}
