// Package damage shapes accumulated damage matrices into damage
// distributions per asset, per taxonomy and in total, plus the collapse
// map.
package damage

import (
	"fmt"
	"sort"

	"github.com/xtxerr/tremor/internal/aggregate"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/stats"
	"gonum.org/v1/gonum/mat"
)

// DmgDistPerAsset is the damage distribution of one asset in one damage
// state.
type DmgDistPerAsset struct {
	GSIM        string
	AssetID     string
	Site        risk.Location
	DamageState risk.DamageState
	Mean        float64
	Stddev      float64
}

// DmgDistPerTaxonomy is the damage distribution of one taxonomy in one
// damage state.
type DmgDistPerTaxonomy struct {
	GSIM        string
	Taxonomy    string
	DamageState risk.DamageState
	Mean        float64
	Stddev      float64
	Quantiles   *stats.Percentiles
}

// DmgDistTotal is the damage distribution of the whole portfolio in one
// damage state.
type DmgDistTotal struct {
	GSIM        string
	DamageState risk.DamageState
	Mean        float64
	Stddev      float64
	Quantiles   *stats.Percentiles
}

// CollapseMap is the damage of an asset in the most severe damage state.
type CollapseMap struct {
	GSIM    string
	AssetID string
	Site    risk.Location
	Mean    float64
	Stddev  float64
}

// CollapseSpread summarizes, across the assets of a GSIM, the mean damage
// in the most severe damage state.
type CollapseSpread struct {
	GSIM      string
	Assets    int
	Quantiles stats.Percentiles
}

// Options configures Build.
type Options struct {
	// Quantiles adds p50/p90/p95/p99 to taxonomy and total distributions
	// and computes the collapse spread.
	Quantiles bool

	// Accuracy is the relative accuracy of the collapse spread sketches.
	Accuracy float64
}

// Report holds every damage distribution of a calculation.
type Report struct {
	DamageStates []risk.DamageState
	PerAsset     []DmgDistPerAsset
	PerTaxonomy  []DmgDistPerTaxonomy
	Total        []DmgDistTotal
	CollapseMap  []CollapseMap

	// CollapseSpread is empty unless quantiles were requested.
	CollapseSpread []CollapseSpread

	// totals[gsim] is the R x D sum of the taxonomy matrices
	totals map[string]*mat.Dense
}

// Build computes the damage distributions from an accumulator. The total
// damage of each GSIM is the sum of its taxonomy matrices; mean and stddev
// are always taken along the realization axis, one value per damage state.
func Build(acc *aggregate.Accumulator, damageStates []string, opts Options) (*Report, error) {
	if acc.IsEmpty() {
		return nil, fmt.Errorf("damage report: %w", errors.ErrEmptyInput)
	}
	rows, cols := acc.Shape()
	if cols != len(damageStates) {
		return nil, fmt.Errorf("damage report: %d damage states for %d columns: %w",
			len(damageStates), cols, errors.ErrShapeMismatch)
	}
	if opts.Accuracy <= 0 {
		opts.Accuracy = stats.DefaultAccuracy
	}

	r := &Report{
		DamageStates: risk.DamageStates(damageStates),
		totals:       make(map[string]*mat.Dense),
	}

	if err := r.buildPerAsset(acc, opts); err != nil {
		return nil, err
	}

	for _, key := range acc.TaxonomyKeys() {
		m, _ := acc.Taxonomy(key)

		total, ok := r.totals[key.GSIM]
		if !ok {
			total = mat.NewDense(rows, cols, nil)
			r.totals[key.GSIM] = total
		}
		if err := stats.SumRows(total, m); err != nil {
			return nil, err
		}

		means, stds, err := stats.MeanStd(m)
		if err != nil {
			return nil, err
		}
		qs, err := quantiles(m, opts)
		if err != nil {
			return nil, fmt.Errorf("taxonomy %s: %w", key.Taxonomy, err)
		}
		for i, ds := range r.DamageStates {
			r.PerTaxonomy = append(r.PerTaxonomy, DmgDistPerTaxonomy{
				GSIM:        key.GSIM,
				Taxonomy:    key.Taxonomy,
				DamageState: ds,
				Mean:        means[i],
				Stddev:      stds[i],
				Quantiles:   pick(qs, i),
			})
		}
	}

	for _, gsim := range r.GSIMs() {
		total := r.totals[gsim]
		means, stds, err := stats.MeanStd(total)
		if err != nil {
			return nil, err
		}
		qs, err := quantiles(total, opts)
		if err != nil {
			return nil, fmt.Errorf("total %s: %w", gsim, err)
		}
		for i, ds := range r.DamageStates {
			r.Total = append(r.Total, DmgDistTotal{
				GSIM:        gsim,
				DamageState: ds,
				Mean:        means[i],
				Stddev:      stds[i],
				Quantiles:   pick(qs, i),
			})
		}
	}

	return r, nil
}

func (r *Report) buildPerAsset(acc *aggregate.Accumulator, opts Options) error {
	collapse := len(r.DamageStates) - 1

	var sketches map[aggregate.TaxonomyKey]*stats.QuantileSketch
	if opts.Quantiles {
		sketches = make(map[aggregate.TaxonomyKey]*stats.QuantileSketch)
	}

	for _, key := range acc.AssetKeys() {
		e, _ := acc.Asset(key)
		means, stds, err := stats.MeanStd(e.Damages)
		if err != nil {
			return fmt.Errorf("asset %s: %w", key.AssetID, err)
		}
		for i, ds := range r.DamageStates {
			r.PerAsset = append(r.PerAsset, DmgDistPerAsset{
				GSIM:        key.GSIM,
				AssetID:     key.AssetID,
				Site:        e.Asset.Location,
				DamageState: ds,
				Mean:        means[i],
				Stddev:      stds[i],
			})
		}
		r.CollapseMap = append(r.CollapseMap, CollapseMap{
			GSIM:    key.GSIM,
			AssetID: key.AssetID,
			Site:    e.Asset.Location,
			Mean:    means[collapse],
			Stddev:  stds[collapse],
		})

		if sketches == nil {
			continue
		}
		tk := aggregate.TaxonomyKey{GSIM: key.GSIM, Taxonomy: e.Asset.Taxonomy}
		sk, ok := sketches[tk]
		if !ok {
			if sk, err = stats.NewQuantileSketch(opts.Accuracy); err != nil {
				return err
			}
			sketches[tk] = sk
		}
		if err := sk.Add(means[collapse]); err != nil {
			return fmt.Errorf("asset %s: %w", key.AssetID, err)
		}
	}

	return r.buildCollapseSpread(sketches, opts.Accuracy)
}

// buildCollapseSpread merges the per-taxonomy sketches of each GSIM.
func (r *Report) buildCollapseSpread(sketches map[aggregate.TaxonomyKey]*stats.QuantileSketch, accuracy float64) error {
	if len(sketches) == 0 {
		return nil
	}

	keys := make([]aggregate.TaxonomyKey, 0, len(sketches))
	for k := range sketches {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].GSIM != keys[j].GSIM {
			return keys[i].GSIM < keys[j].GSIM
		}
		return keys[i].Taxonomy < keys[j].Taxonomy
	})

	var merged *stats.QuantileSketch
	flush := func(gsim string) error {
		p, err := merged.Percentiles()
		if err != nil {
			return fmt.Errorf("collapse spread %s: %w", gsim, err)
		}
		r.CollapseSpread = append(r.CollapseSpread, CollapseSpread{GSIM: gsim, Assets: merged.Count(), Quantiles: p})
		return nil
	}

	for i, k := range keys {
		if i == 0 || keys[i-1].GSIM != k.GSIM {
			if i > 0 {
				if err := flush(keys[i-1].GSIM); err != nil {
					return err
				}
			}
			var err error
			if merged, err = stats.NewQuantileSketch(accuracy); err != nil {
				return err
			}
		}
		if err := merged.Merge(sketches[k]); err != nil {
			return fmt.Errorf("collapse spread %s/%s: %w", k.GSIM, k.Taxonomy, err)
		}
	}
	return flush(keys[len(keys)-1].GSIM)
}

func quantiles(m mat.Matrix, opts Options) ([]stats.Percentiles, error) {
	if !opts.Quantiles {
		return nil, nil
	}
	return stats.ColumnQuantiles(m)
}

func pick(qs []stats.Percentiles, i int) *stats.Percentiles {
	if qs == nil {
		return nil
	}
	p := qs[i]
	return &p
}

// GSIMs returns the sorted GSIMs with total damage.
func (r *Report) GSIMs() []string {
	out := make([]string, 0, len(r.totals))
	for g := range r.totals {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Totals returns a copy of the R x D total damage matrix of gsim.
func (r *Report) Totals(gsim string) (*mat.Dense, bool) {
	m, ok := r.totals[gsim]
	if !ok {
		return nil, false
	}
	return mat.DenseCopyOf(m), true
}

// RlzDistance is the distance of one realization from the mean.
type RlzDistance struct {
	Rlz   int
	RMSEP float64
}

// RankRealizations orders the realizations of gsim by the RMSEP distance
// of their total damage from the mean total damage. Damage states whose
// mean does not exceed minValue are ignored.
func (r *Report) RankRealizations(gsim string, minValue float64) ([]RlzDistance, error) {
	total, ok := r.totals[gsim]
	if !ok {
		return nil, errors.NewNotFound("gsim", gsim)
	}

	means, _, err := stats.MeanStd(total)
	if err != nil {
		return nil, err
	}

	rows, _ := total.Dims()
	out := make([]RlzDistance, rows)
	for i := 0; i < rows; i++ {
		d, err := stats.RMSEP(means, total.RawRowView(i), minValue)
		if err != nil {
			return nil, err
		}
		out[i] = RlzDistance{Rlz: i, RMSEP: d}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RMSEP < out[j].RMSEP
	})
	return out, nil
}
