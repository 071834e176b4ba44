// Package fragility evaluates fragility functions and turns them into damage
// state fractions.
//
// A fragility set holds one function per limit state, ordered from the
// least to the most severe. Given a ground-motion value the set yields the
// probability of exceeding each limit state; the damage state fractions are
// the differences between consecutive exceedance probabilities, with an
// implicit "no damage" state in front.
package fragility

import (
	"fmt"
	"math"
	"sort"

	"github.com/xtxerr/tremor/internal/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// Function gives the probability of exceeding one limit state.
type Function interface {
	LimitState() string
	PoE(iml float64) float64
}

// Continuous is a lognormal fragility function parameterized by the mean
// and standard deviation of the intensity measure level.
type Continuous struct {
	limitState    string
	noDamageLimit float64
	dist          distuv.LogNormal
}

// NewContinuous creates a lognormal function. mean and stddev are given in
// IML units and converted to the parameters of the underlying normal.
func NewContinuous(limitState string, mean, stddev, noDamageLimit float64) (*Continuous, error) {
	if mean <= 0 {
		return nil, errors.NewInvalidValue(limitState+".mean", mean, "must be positive")
	}
	if stddev < 0 {
		return nil, errors.NewInvalidValue(limitState+".stddev", stddev, "must not be negative")
	}

	variance := stddev * stddev
	sigma := math.Sqrt(math.Log(variance/(mean*mean) + 1))
	mu := math.Log(mean * mean / math.Sqrt(variance+mean*mean))

	return &Continuous{
		limitState:    limitState,
		noDamageLimit: noDamageLimit,
		dist:          distuv.LogNormal{Mu: mu, Sigma: sigma},
	}, nil
}

// LimitState returns the limit state name.
func (c *Continuous) LimitState() string { return c.limitState }

// PoE returns the probability of exceeding the limit state at iml.
func (c *Continuous) PoE(iml float64) float64 {
	if iml <= 0 || iml < c.noDamageLimit {
		return 0
	}
	if c.dist.Sigma == 0 {
		// degenerate: a step at the median
		if iml >= math.Exp(c.dist.Mu) {
			return 1
		}
		return 0
	}
	return c.dist.CDF(iml)
}

// Median returns the median IML of the function.
func (c *Continuous) Median() float64 {
	return math.Exp(c.dist.Mu)
}

// Discrete is a fragility function given as PoEs at a set of IMLs.
type Discrete struct {
	limitState    string
	noDamageLimit float64
	imls          []float64
	poes          []float64
}

// NewDiscrete creates a discrete function. imls must be strictly increasing
// and poes must lie in [0, 1].
func NewDiscrete(limitState string, imls, poes []float64, noDamageLimit float64) (*Discrete, error) {
	if len(imls) == 0 {
		return nil, errors.NewMissingField(limitState + ".imls")
	}
	if len(imls) != len(poes) {
		return nil, fmt.Errorf("%s: %d imls for %d poes: %w",
			limitState, len(imls), len(poes), errors.ErrLengthMismatch)
	}
	if !sort.SliceIsSorted(imls, func(i, j int) bool { return imls[i] < imls[j] }) {
		return nil, errors.NewInvalidValue(limitState+".imls", imls, "must be increasing")
	}
	for i := 1; i < len(imls); i++ {
		if imls[i] == imls[i-1] {
			return nil, errors.NewInvalidValue(limitState+".imls", imls, "must be strictly increasing")
		}
	}
	for _, p := range poes {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return nil, errors.NewInvalidValue(limitState+".poes", poes, "must be within [0, 1]")
		}
	}

	return &Discrete{
		limitState:    limitState,
		noDamageLimit: noDamageLimit,
		imls:          append([]float64(nil), imls...),
		poes:          append([]float64(nil), poes...),
	}, nil
}

// LimitState returns the limit state name.
func (d *Discrete) LimitState() string { return d.limitState }

// PoE linearly interpolates the probability of exceedance at iml. Above the
// highest IML the last PoE holds; below the lowest IML, or below the no
// damage limit, the PoE is 0. A NaN iml yields NaN.
func (d *Discrete) PoE(iml float64) float64 {
	if math.IsNaN(iml) {
		return math.NaN()
	}
	n := len(d.imls)
	if iml < d.noDamageLimit || iml < d.imls[0] {
		return 0
	}
	if iml >= d.imls[n-1] {
		return d.poes[n-1]
	}

	i := sort.SearchFloat64s(d.imls, iml)
	if d.imls[i] == iml {
		return d.poes[i]
	}
	x0, x1 := d.imls[i-1], d.imls[i]
	y0, y1 := d.poes[i-1], d.poes[i]
	return y0 + (y1-y0)*(iml-x0)/(x1-x0)
}

// Fractions returns the D = len(fns)+1 damage state fractions at gmv. The
// fractions are the pairwise differences of [1, poe_1, ..., poe_n, 0].
func Fractions(fns []Function, gmv float64) []float64 {
	out := make([]float64, len(fns)+1)
	FractionsInto(out, fns, gmv)
	return out
}

// FractionsInto writes the fractions at gmv into dst, which must have
// length len(fns)+1.
func FractionsInto(dst []float64, fns []Function, gmv float64) {
	prev := 1.0
	for i, fn := range fns {
		poe := fn.PoE(gmv)
		dst[i] = prev - poe
		prev = poe
	}
	dst[len(fns)] = prev
}
