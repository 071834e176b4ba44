package damage

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xtxerr/tremor/internal/aggregate"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-9

var states = []string{"no_damage", "moderate", "collapse"}

// testAccumulator holds three realizations of two assets of different
// taxonomies under a single GSIM.
func testAccumulator(t *testing.T) *aggregate.Accumulator {
	t.Helper()
	acc := aggregate.New()

	a1 := risk.Asset{ID: "a1", Taxonomy: "RC", Number: 10, Location: risk.Location{Lon: 1, Lat: 2}}
	d1 := mat.NewDense(3, 3, []float64{
		6, 3, 1,
		4, 4, 2,
		2, 5, 3,
	})
	a2 := risk.Asset{ID: "a2", Taxonomy: "W", Number: 4, Location: risk.Location{Lon: 3, Lat: 4}}
	d2 := mat.NewDense(3, 3, []float64{
		4, 0, 0,
		2, 2, 0,
		0, 2, 2,
	})

	for _, add := range []struct {
		a risk.Asset
		d *mat.Dense
	}{{a1, d1}, {a2, d2}} {
		if err := acc.AddAsset("g", add.a, add.d); err != nil {
			t.Fatal(err)
		}
		if err := acc.AddTaxonomy("g", add.a.Taxonomy, add.d); err != nil {
			t.Fatal(err)
		}
	}
	return acc
}

func TestBuild(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(r.PerAsset) != 6 {
		t.Fatalf("expected 6 per-asset rows, got %d", len(r.PerAsset))
	}
	first := r.PerAsset[0]
	if first.AssetID != "a1" || first.DamageState.Name != "no_damage" {
		t.Errorf("unexpected first row %+v", first)
	}
	if math.Abs(first.Mean-4) > tol || math.Abs(first.Stddev-2) > tol {
		t.Errorf("a1 no_damage: expected 4±2, got %g±%g", first.Mean, first.Stddev)
	}

	if len(r.PerTaxonomy) != 6 {
		t.Fatalf("expected 6 per-taxonomy rows, got %d", len(r.PerTaxonomy))
	}
	w := r.PerTaxonomy[5]
	if w.Taxonomy != "W" || w.DamageState.Index != 2 {
		t.Errorf("unexpected last taxonomy row %+v", w)
	}
	if math.Abs(w.Mean-2.0/3) > tol {
		t.Errorf("W collapse mean: expected 2/3, got %g", w.Mean)
	}
	if w.Quantiles != nil {
		t.Error("quantiles should be off by default")
	}
}

func TestBuild_TotalsColumnWise(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	total, ok := r.Totals("g")
	if !ok {
		t.Fatal("missing totals for g")
	}
	want := []float64{
		10, 3, 1,
		6, 6, 2,
		2, 7, 5,
	}
	if !floats.Equal(total.RawMatrix().Data, want) {
		t.Errorf("unexpected totals %v", total.RawMatrix().Data)
	}

	// one row per damage state, statistics along realizations
	if len(r.Total) != len(states) {
		t.Fatalf("expected %d total rows, got %d", len(states), len(r.Total))
	}
	wantMeans := []float64{6, 16.0 / 3, 8.0 / 3}
	wantStds := []float64{4, math.Sqrt(13.0 / 3), math.Sqrt(13.0 / 3)}
	for i, row := range r.Total {
		if row.DamageState.Name != states[i] {
			t.Errorf("row %d: expected state %s, got %s", i, states[i], row.DamageState.Name)
		}
		if math.Abs(row.Mean-wantMeans[i]) > tol {
			t.Errorf("%s: expected mean %g, got %g", states[i], wantMeans[i], row.Mean)
		}
		if math.Abs(row.Stddev-wantStds[i]) > tol {
			t.Errorf("%s: expected stddev %g, got %g", states[i], wantStds[i], row.Stddev)
		}
	}

	var sum float64
	for _, row := range r.Total {
		sum += row.Mean
	}
	if math.Abs(sum-14) > tol {
		t.Errorf("total means should add up to the 14 units, got %g", sum)
	}
}

func TestBuild_CollapseMap(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []CollapseMap{
		{GSIM: "g", AssetID: "a1", Site: risk.Location{Lon: 1, Lat: 2}, Mean: 2, Stddev: 1},
		{GSIM: "g", AssetID: "a2", Site: risk.Location{Lon: 3, Lat: 4}, Mean: 2.0 / 3, Stddev: math.Sqrt(4.0 / 3)},
	}
	opt := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < tol })
	if diff := cmp.Diff(want, r.CollapseMap, opt); diff != "" {
		t.Errorf("collapse map mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Quantiles(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{Quantiles: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for _, row := range r.Total {
		if row.Quantiles == nil {
			t.Fatalf("%s: missing quantiles", row.DamageState.Name)
		}
		q := row.Quantiles
		if q.P50 > q.P90 || q.P90 > q.P95 || q.P95 > q.P99 {
			t.Errorf("%s: quantiles not ordered: %+v", row.DamageState.Name, *q)
		}
	}
	// no_damage totals are 10, 6, 2
	want := stats.Percentiles{P50: 4, P90: 8.8, P95: 9.4, P99: 9.88}
	opt := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < tol })
	if diff := cmp.Diff(want, *r.Total[0].Quantiles, opt); diff != "" {
		t.Errorf("no_damage quantiles mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_CollapseSpread(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.CollapseSpread) != 0 {
		t.Errorf("expected no collapse spread without quantiles, got %+v", r.CollapseSpread)
	}

	r, err = Build(testAccumulator(t), states, Options{Quantiles: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.CollapseSpread) != 1 {
		t.Fatalf("expected one collapse spread, got %d", len(r.CollapseSpread))
	}
	cs := r.CollapseSpread[0]
	if cs.GSIM != "g" || cs.Assets != 2 {
		t.Errorf("unexpected spread %+v", cs)
	}
	// collapse means are 2 (a1) and 2/3 (a2), sketched with 1% accuracy
	lo, hi := 2.0/3, 2.0
	for _, v := range []float64{cs.Quantiles.P50, cs.Quantiles.P99} {
		if v < lo*0.98 || v > hi*1.02 {
			t.Errorf("spread quantile %g outside [%g, %g]", v, lo, hi)
		}
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(aggregate.New(), states, Options{}); !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := Build(testAccumulator(t), states[:2], Options{}); !errors.Is(err, errors.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestBuild_SingleRealization(t *testing.T) {
	acc := aggregate.New()
	a := risk.Asset{ID: "a", Taxonomy: "RC", Number: 1}
	d := mat.NewDense(1, 2, []float64{0.3, 0.7})
	acc.AddAsset("g", a, d)
	acc.AddTaxonomy("g", "RC", d)

	r, err := Build(acc, []string{"no_damage", "collapse"}, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, row := range r.Total {
		if row.Stddev != 0 {
			t.Errorf("expected zero stddev with one realization, got %g", row.Stddev)
		}
	}
}

func TestRankRealizations(t *testing.T) {
	r, err := Build(testAccumulator(t), states, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ranked, err := r.RankRealizations("g", 0.01)
	if err != nil {
		t.Fatalf("RankRealizations: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 realizations, got %d", len(ranked))
	}
	// rlz 1 (6, 6, 2) is the closest to the mean (6, 5.33, 2.67)
	if ranked[0].Rlz != 1 {
		t.Errorf("expected rlz 1 first, got %+v", ranked)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].RMSEP < ranked[i-1].RMSEP {
			t.Errorf("ranking not sorted: %+v", ranked)
		}
	}

	if _, err := r.RankRealizations("missing", 0.01); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
