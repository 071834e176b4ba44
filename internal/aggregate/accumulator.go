// Package aggregate accumulates the damage distributions of a scenario
// damage calculation.
//
// Results are keyed by GSIM realization and either asset or taxonomy. Adding
// to an existing key sums the R x D damage matrices element-wise, so partial
// accumulators computed over disjoint blocks of risk inputs can be merged in
// any order.
package aggregate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/stats"
	"gonum.org/v1/gonum/mat"
)

// AssetKey identifies the damage of one asset under one GSIM.
type AssetKey struct {
	GSIM    string
	AssetID string
}

// TaxonomyKey identifies the damage of one taxonomy under one GSIM.
type TaxonomyKey struct {
	GSIM     string
	Taxonomy string
}

// AssetEntry holds the R x D damage counts of one asset.
type AssetEntry struct {
	Asset   risk.Asset
	Damages *mat.Dense
}

// Stats holds counters for an accumulator.
type Stats struct {
	Outputs    int64
	AssetAdds  int64
	Assets     int64
	Taxonomies int64
	Merges     int64
}

// Accumulator is a concurrency-safe keyed sum of damage matrices.
type Accumulator struct {
	mu sync.Mutex

	// shape shared by every matrix, zero until the first add
	rows, cols int

	assets     map[AssetKey]*AssetEntry
	taxonomies map[TaxonomyKey]*mat.Dense

	stats Stats
}

// New creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{
		assets:     make(map[AssetKey]*AssetEntry),
		taxonomies: make(map[TaxonomyKey]*mat.Dense),
	}
}

// checkShape must be called with a.mu held.
func (a *Accumulator) checkShape(what string, m mat.Matrix) error {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("%s: %w", what, errors.ErrEmptyInput)
	}
	if a.rows == 0 {
		a.rows, a.cols = r, c
		return nil
	}
	if r != a.rows || c != a.cols {
		return errors.NewShapeMismatch(what, a.rows, a.cols, r, c)
	}
	return nil
}

// AddAsset adds the damage counts of an asset.
func (a *Accumulator) AddAsset(gsim string, asset risk.Asset, damages mat.Matrix) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addAsset(gsim, asset, damages)
}

func (a *Accumulator) addAsset(gsim string, asset risk.Asset, damages mat.Matrix) error {
	if err := a.checkShape("asset "+asset.ID, damages); err != nil {
		return err
	}

	key := AssetKey{GSIM: gsim, AssetID: asset.ID}
	a.stats.AssetAdds++
	if e, ok := a.assets[key]; ok {
		e.Damages.Add(e.Damages, damages)
		return nil
	}
	a.assets[key] = &AssetEntry{Asset: asset, Damages: mat.DenseCopyOf(damages)}
	a.stats.Assets++
	return nil
}

// AddTaxonomy adds damage counts to a taxonomy.
func (a *Accumulator) AddTaxonomy(gsim, taxonomy string, damages mat.Matrix) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addTaxonomy(gsim, taxonomy, damages)
}

func (a *Accumulator) addTaxonomy(gsim, taxonomy string, damages mat.Matrix) error {
	if err := a.checkShape("taxonomy "+taxonomy, damages); err != nil {
		return err
	}

	key := TaxonomyKey{GSIM: gsim, Taxonomy: taxonomy}
	if m, ok := a.taxonomies[key]; ok {
		return stats.SumRows(m, damages)
	}
	a.taxonomies[key] = mat.DenseCopyOf(damages)
	a.stats.Taxonomies++
	return nil
}

// Merge adds every entry of other into a. Shapes must agree.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil || other == a {
		return nil
	}

	// snapshot other first so the two locks are never held together
	other.mu.Lock()
	assetKeys := sortedAssetKeys(other.assets)
	assets := make([]AssetEntry, len(assetKeys))
	for i, key := range assetKeys {
		e := other.assets[key]
		assets[i] = AssetEntry{Asset: e.Asset, Damages: mat.DenseCopyOf(e.Damages)}
	}
	taxKeys := sortedTaxonomyKeys(other.taxonomies)
	taxonomies := make([]*mat.Dense, len(taxKeys))
	for i, key := range taxKeys {
		taxonomies[i] = mat.DenseCopyOf(other.taxonomies[key])
	}
	outputs := other.stats.Outputs
	other.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	for i, key := range assetKeys {
		if err := a.addAsset(key.GSIM, assets[i].Asset, assets[i].Damages); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
	}
	for i, key := range taxKeys {
		if err := a.addTaxonomy(key.GSIM, key.Taxonomy, taxonomies[i]); err != nil {
			return fmt.Errorf("merge: %w", err)
		}
	}

	a.stats.Outputs += outputs
	a.stats.Merges++
	return nil
}

// Shape returns the R x D shape of the accumulated matrices, or zeros when
// nothing was added.
func (a *Accumulator) Shape() (rows, cols int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rows, a.cols
}

// IsEmpty reports whether nothing has been accumulated.
func (a *Accumulator) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.assets) == 0 && len(a.taxonomies) == 0
}

// Stats returns a copy of the counters.
func (a *Accumulator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Accumulator) countOutput() {
	a.mu.Lock()
	a.stats.Outputs++
	a.mu.Unlock()
}

// GSIMs returns the sorted GSIMs with accumulated results.
func (a *Accumulator) GSIMs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	add := func(g string) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for k := range a.assets {
		add(k.GSIM)
	}
	for k := range a.taxonomies {
		add(k.GSIM)
	}
	sort.Strings(out)
	return out
}

// AssetKeys returns the asset keys sorted by GSIM and asset id.
func (a *Accumulator) AssetKeys() []AssetKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedAssetKeys(a.assets)
}

// Asset returns a copy of the entry for key.
func (a *Accumulator) Asset(key AssetKey) (AssetEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.assets[key]
	if !ok {
		return AssetEntry{}, false
	}
	return AssetEntry{Asset: e.Asset, Damages: mat.DenseCopyOf(e.Damages)}, true
}

// AssetMeanStd returns the mean and stddev per damage state of the damage
// counts of an asset.
func (a *Accumulator) AssetMeanStd(key AssetKey) (means, stds []float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.assets[key]
	if !ok {
		return nil, nil, fmt.Errorf("%s/%s: %w", key.GSIM, key.AssetID, errors.ErrAssetNotFound)
	}
	return stats.MeanStd(e.Damages)
}

// TaxonomyKeys returns the taxonomy keys sorted by GSIM and taxonomy.
func (a *Accumulator) TaxonomyKeys() []TaxonomyKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedTaxonomyKeys(a.taxonomies)
}

// Taxonomy returns a copy of the damage matrix of key.
func (a *Accumulator) Taxonomy(key TaxonomyKey) (*mat.Dense, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	m, ok := a.taxonomies[key]
	if !ok {
		return nil, false
	}
	return mat.DenseCopyOf(m), true
}

func sortedAssetKeys(m map[AssetKey]*AssetEntry) []AssetKey {
	keys := make([]AssetKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].GSIM != keys[j].GSIM {
			return keys[i].GSIM < keys[j].GSIM
		}
		return keys[i].AssetID < keys[j].AssetID
	})
	return keys
}

func sortedTaxonomyKeys(m map[TaxonomyKey]*mat.Dense) []TaxonomyKey {
	keys := make([]TaxonomyKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].GSIM != keys[j].GSIM {
			return keys[i].GSIM < keys[j].GSIM
		}
		return keys[i].Taxonomy < keys[j].Taxonomy
	})
	return keys
}
