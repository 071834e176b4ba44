// Package stats computes descriptive statistics over damage matrices.
//
// Damage matrices have one row per ground-motion realization and one column
// per damage state (R x D). Every statistic here is taken along the
// realization axis, producing one value per damage state.
package stats

import (
	"fmt"
	"math"

	"github.com/xtxerr/tremor/internal/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the column-wise sample mean and sample standard deviation
// (n-1 denominator) of m. With fewer than two rows the stddev is 0.
func MeanStd(m mat.Matrix) (means, stds []float64, err error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil, fmt.Errorf("mean/std of %dx%d matrix: %w", rows, cols, errors.ErrEmptyInput)
	}

	means = make([]float64, cols)
	stds = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		means[j], stds[j] = MeanStdVector(col)
	}
	return means, stds, nil
}

// MeanStdVector returns the sample mean and standard deviation of xs.
func MeanStdVector(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return xs[0], 0
	}
	mean, std = stat.MeanStdDev(xs, nil)
	return mean, std
}

// RMSEP is the root mean square of the relative error of obs with respect to
// ref. Only the entries where ref exceeds minValue are considered; when none
// do the result is 0.
func RMSEP(ref, obs []float64, minValue float64) (float64, error) {
	if len(ref) != len(obs) {
		return 0, fmt.Errorf("rmsep: %d reference values, %d observed: %w",
			len(ref), len(obs), errors.ErrLengthMismatch)
	}

	var sum float64
	var n int
	for i, r := range ref {
		if r <= minValue {
			continue
		}
		d := 1 - obs[i]/r
		sum += d * d
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return math.Sqrt(sum / float64(n)), nil
}

// SumRows adds b into a in place. Both must share the same shape.
func SumRows(a *mat.Dense, b mat.Matrix) error {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return errors.NewShapeMismatch("sum", ar, ac, br, bc)
	}
	a.Add(a, b)
	return nil
}
