package stats

import (
	"fmt"
	"sort"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/tremor/internal/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultAccuracy is the relative accuracy of quantile sketches (1%).
const DefaultAccuracy = 0.01

// Percentiles holds the reported quantiles of one damage state.
type Percentiles struct {
	P50 float64 `yaml:"p50"`
	P90 float64 `yaml:"p90"`
	P95 float64 `yaml:"p95"`
	P99 float64 `yaml:"p99"`
}

var reported = [4]float64{0.50, 0.90, 0.95, 0.99}

// ColumnQuantiles returns the exact p50, p90, p95 and p99 of every column
// of m, interpolating linearly between order statistics.
func ColumnQuantiles(m mat.Matrix) ([]Percentiles, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("quantiles of %dx%d matrix: %w", rows, cols, errors.ErrEmptyInput)
	}

	out := make([]Percentiles, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		sort.Float64s(col)
		var v [4]float64
		for k, p := range reported {
			v[k] = stat.Quantile(p, stat.LinInterp, col, nil)
		}
		out[j] = Percentiles{P50: v[0], P90: v[1], P95: v[2], P99: v[3]}
	}
	return out, nil
}

// QuantileSketch tracks an approximate distribution with a DDSketch.
// Sketches of disjoint samples can be merged, so they summarize values too
// numerous to keep, such as one value per asset of a portfolio.
type QuantileSketch struct {
	sketch *ddsketch.DDSketch
	count  int
}

// NewQuantileSketch creates a sketch with the given relative accuracy.
func NewQuantileSketch(accuracy float64) (*QuantileSketch, error) {
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		return nil, fmt.Errorf("create sketch: %w", err)
	}
	return &QuantileSketch{sketch: sketch}, nil
}

// Add records one value.
func (q *QuantileSketch) Add(value float64) error {
	if err := q.sketch.Add(value); err != nil {
		return err
	}
	q.count++
	return nil
}

// Merge combines another sketch into this one.
func (q *QuantileSketch) Merge(other *QuantileSketch) error {
	if other == nil || other.count == 0 {
		return nil
	}
	if err := q.sketch.MergeWith(other.sketch); err != nil {
		return err
	}
	q.count += other.count
	return nil
}

// Count returns the number of values added.
func (q *QuantileSketch) Count() int {
	return q.count
}

// Percentiles returns p50, p90, p95 and p99. The sketch must not be empty.
func (q *QuantileSketch) Percentiles() (Percentiles, error) {
	if q.count == 0 {
		return Percentiles{}, fmt.Errorf("percentiles of empty sketch: %w", errors.ErrEmptyInput)
	}
	vals, err := q.sketch.GetValuesAtQuantiles(reported[:])
	if err != nil {
		return Percentiles{}, err
	}
	return Percentiles{P50: vals[0], P90: vals[1], P95: vals[2], P99: vals[3]}, nil
}
