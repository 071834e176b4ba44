package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xtxerr/tremor/internal/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestMeanStd(t *testing.T) {
	// 4 realizations x 3 damage states
	m := mat.NewDense(4, 3, []float64{
		1, 2, 7,
		2, 2, 6,
		3, 2, 5,
		4, 2, 4,
	})

	means, stds, err := MeanStd(m)
	if err != nil {
		t.Fatalf("MeanStd: %v", err)
	}

	wantMeans := []float64{2.5, 2, 5.5}
	// sample stddev of 1,2,3,4 is sqrt(5/3)
	wantStds := []float64{math.Sqrt(5.0 / 3.0), 0, math.Sqrt(5.0 / 3.0)}

	if !floats.EqualApprox(means, wantMeans, 1e-12) {
		t.Errorf("means: expected %v, got %v", wantMeans, means)
	}
	if !floats.EqualApprox(stds, wantStds, 1e-12) {
		t.Errorf("stds: expected %v, got %v", wantStds, stds)
	}
}

func TestMeanStdSingleRealization(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{0.3, 0.7})

	means, stds, err := MeanStd(m)
	if err != nil {
		t.Fatalf("MeanStd: %v", err)
	}
	if !floats.Equal(means, []float64{0.3, 0.7}) {
		t.Errorf("unexpected means %v", means)
	}
	if !floats.Equal(stds, []float64{0, 0}) {
		t.Errorf("expected zero stddev with one realization, got %v", stds)
	}
}

func TestMeanStdEmpty(t *testing.T) {
	_, _, err := MeanStd(&mat.Dense{})
	if !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestRMSEP(t *testing.T) {
	ref := []float64{1, 2, 0.001, 4}
	obs := []float64{1.1, 1.8, 5, 4}

	got, err := RMSEP(ref, obs, 0.01)
	if err != nil {
		t.Fatalf("RMSEP: %v", err)
	}

	// third entry ignored: relative errors -0.1, 0.1, 0
	want := math.Sqrt((0.01 + 0.01 + 0) / 3)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %f, got %f", want, got)
	}

	if _, err := RMSEP([]float64{1}, []float64{1, 2}, 0); !errors.Is(err, errors.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}

	zero, err := RMSEP([]float64{0, 0}, []float64{1, 1}, 0.01)
	if err != nil || zero != 0 {
		t.Errorf("expected 0 with no reference values above threshold, got %f (%v)", zero, err)
	}
}

func TestSumRows(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{10, 20, 30, 40})

	if err := SumRows(a, b); err != nil {
		t.Fatalf("SumRows: %v", err)
	}
	if !mat.Equal(a, mat.NewDense(2, 2, []float64{11, 22, 33, 44})) {
		t.Errorf("unexpected sum %v", mat.Formatted(a))
	}

	err := SumRows(a, mat.NewDense(3, 2, nil))
	if !errors.Is(err, errors.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestColumnQuantiles(t *testing.T) {
	// 100 realizations, column 0 = 1..100, column 1 constant
	data := make([]float64, 0, 200)
	for i := 1; i <= 100; i++ {
		data = append(data, float64(i), 5)
	}

	tests := []struct {
		name string
		m    *mat.Dense
		want []Percentiles
	}{
		{
			name: "many realizations",
			m:    mat.NewDense(100, 2, data),
			want: []Percentiles{{P50: 50, P90: 90, P95: 95, P99: 99}, {P50: 5, P90: 5, P95: 5, P99: 5}},
		},
		{
			// the tail interpolates towards the maximum
			name: "three realizations",
			m:    mat.NewDense(3, 1, []float64{10, 6, 2}),
			want: []Percentiles{{P50: 4, P90: 8.8, P95: 9.4, P99: 9.88}},
		},
		{
			name: "single realization",
			m:    mat.NewDense(1, 2, []float64{3, 7}),
			want: []Percentiles{{P50: 3, P90: 3, P95: 3, P99: 3}, {P50: 7, P90: 7, P95: 7, P99: 7}},
		},
	}

	opt := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < 1e-9 })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ColumnQuantiles(tt.m)
			if err != nil {
				t.Fatalf("ColumnQuantiles: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, opt); diff != "" {
				t.Errorf("quantiles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuantileSketchMerge(t *testing.T) {
	a, _ := NewQuantileSketch(DefaultAccuracy)
	b, _ := NewQuantileSketch(DefaultAccuracy)

	for i := 1; i <= 50; i++ {
		a.Add(float64(i))
		b.Add(float64(i + 50))
	}

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if a.Count() != 100 {
		t.Errorf("expected count 100, got %d", a.Count())
	}

	p, err := a.Percentiles()
	if err != nil {
		t.Fatalf("Percentiles: %v", err)
	}
	// DDSketch guarantees relative accuracy; allow 3%
	for _, c := range []struct {
		name      string
		got, want float64
	}{{"p50", p.P50, 50}, {"p99", p.P99, 99}} {
		if math.Abs(c.got-c.want)/c.want > 0.03 {
			t.Errorf("%s: expected ~%f, got %f", c.name, c.want, c.got)
		}
	}

	if _, err := (&QuantileSketch{}).Percentiles(); !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for empty sketch, got %v", err)
	}
	if _, err := ColumnQuantiles(&mat.Dense{}); !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for empty matrix, got %v", err)
	}
}
