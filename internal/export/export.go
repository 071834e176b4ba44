// Package export writes damage reports as Parquet files, one file per
// output, together with a manifest describing the calculation.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xtxerr/tremor/internal/damage"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/format"
	"github.com/xtxerr/tremor/internal/stats"
	"github.com/xtxerr/tremor/internal/storage/parquet"
)

// Output keys.
const (
	KeyDmgDistPerAsset    = "dmg_dist_per_asset"
	KeyDmgDistPerTaxonomy = "dmg_dist_per_taxonomy"
	KeyDmgDistTotal       = "dmg_dist_total"
	KeyCollapseMap        = "collapse_map"
)

// ManifestFile is the name of the manifest in an export directory.
const ManifestFile = "manifest.yaml"

// Keys lists the output keys in export order.
var Keys = []string{KeyDmgDistPerAsset, KeyDmgDistPerTaxonomy, KeyDmgDistTotal, KeyCollapseMap}

// FileName returns the file name of an output key.
func FileName(key string) string {
	return key + ".parquet"
}

// AssetRow is a row of dmg_dist_per_asset.
type AssetRow struct {
	GSIM        string  `parquet:"gsim,dict"`
	AssetID     string  `parquet:"asset_id"`
	Lon         float64 `parquet:"lon"`
	Lat         float64 `parquet:"lat"`
	DamageState string  `parquet:"damage_state,dict"`
	LSI         int32   `parquet:"lsi"`
	Mean        float64 `parquet:"mean"`
	Stddev      float64 `parquet:"stddev"`
}

// TaxonomyRow is a row of dmg_dist_per_taxonomy.
type TaxonomyRow struct {
	GSIM        string   `parquet:"gsim,dict"`
	Taxonomy    string   `parquet:"taxonomy,dict"`
	DamageState string   `parquet:"damage_state,dict"`
	LSI         int32    `parquet:"lsi"`
	Mean        float64  `parquet:"mean"`
	Stddev      float64  `parquet:"stddev"`
	P50         *float64 `parquet:"p50,optional"`
	P90         *float64 `parquet:"p90,optional"`
	P95         *float64 `parquet:"p95,optional"`
	P99         *float64 `parquet:"p99,optional"`
}

// TotalRow is a row of dmg_dist_total.
type TotalRow struct {
	GSIM        string   `parquet:"gsim,dict"`
	DamageState string   `parquet:"damage_state,dict"`
	LSI         int32    `parquet:"lsi"`
	Mean        float64  `parquet:"mean"`
	Stddev      float64  `parquet:"stddev"`
	P50         *float64 `parquet:"p50,optional"`
	P90         *float64 `parquet:"p90,optional"`
	P95         *float64 `parquet:"p95,optional"`
	P99         *float64 `parquet:"p99,optional"`
}

// CollapseRow is a row of collapse_map.
type CollapseRow struct {
	GSIM    string  `parquet:"gsim,dict"`
	AssetID string  `parquet:"asset_id"`
	Lon     float64 `parquet:"lon"`
	Lat     float64 `parquet:"lat"`
	Mean    float64 `parquet:"mean"`
	Stddev  float64 `parquet:"stddev"`
}

// Manifest describes an export directory.
type Manifest struct {
	CalcID          string            `yaml:"calc_id"`
	Description     string            `yaml:"description,omitempty"`
	CreatedAt       time.Time         `yaml:"created_at"`
	DamageStates    []string          `yaml:"damage_states"`
	GSIMs           []string          `yaml:"gsims"`
	NumRealizations int               `yaml:"num_realizations"`
	Compression     string            `yaml:"compression"`
	Outputs         map[string]string `yaml:"outputs"`
	CollapseSpread  []SpreadEntry     `yaml:"collapse_spread,omitempty"`
}

// SpreadEntry is the collapse spread of one GSIM across its assets.
type SpreadEntry struct {
	GSIM              string `yaml:"gsim"`
	Assets            int    `yaml:"assets"`
	stats.Percentiles `yaml:",inline"`
}

// Meta is the calculation metadata recorded in the manifest.
type Meta struct {
	CalcID      string
	Description string
}

// WriteReport writes every output of the report into dir and returns the
// path of each file by output key.
func WriteReport(dir string, meta Meta, r *damage.Report, opts parquet.Options) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	paths := make(map[string]string, len(Keys))
	write := func(key string, fn func(path string) error) error {
		path := filepath.Join(dir, FileName(key))
		if err := fn(path); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
		paths[key] = path
		return nil
	}

	steps := []struct {
		key string
		fn  func(string) error
	}{
		{KeyDmgDistPerAsset, func(p string) error { return parquet.WriteFile(p, AssetRows(r), opts) }},
		{KeyDmgDistPerTaxonomy, func(p string) error { return parquet.WriteFile(p, TaxonomyRows(r), opts) }},
		{KeyDmgDistTotal, func(p string) error { return parquet.WriteFile(p, TotalRows(r), opts) }},
		{KeyCollapseMap, func(p string) error { return parquet.WriteFile(p, CollapseRows(r), opts) }},
	}
	for _, s := range steps {
		if err := write(s.key, s.fn); err != nil {
			return nil, err
		}
	}

	m := Manifest{
		CalcID:       meta.CalcID,
		Description:  meta.Description,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		DamageStates: make([]string, len(r.DamageStates)),
		GSIMs:        r.GSIMs(),
		Compression:  opts.Compression.String(),
		Outputs:      make(map[string]string, len(paths)),
	}
	for i, ds := range r.DamageStates {
		m.DamageStates[i] = ds.Name
	}
	if len(m.GSIMs) > 0 {
		if total, ok := r.Totals(m.GSIMs[0]); ok {
			m.NumRealizations, _ = total.Dims()
		}
	}
	for k, p := range paths {
		m.Outputs[k] = filepath.Base(p)
	}
	for _, cs := range r.CollapseSpread {
		m.CollapseSpread = append(m.CollapseSpread, SpreadEntry{GSIM: cs.GSIM, Assets: cs.Assets, Percentiles: cs.Quantiles})
	}
	if err := format.EncodeFile(filepath.Join(dir, ManifestFile), m); err != nil {
		return nil, err
	}

	return paths, nil
}

// ReadManifest reads the manifest of an export directory.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("manifest", path)
		}
		return nil, err
	}

	var m Manifest
	if err := format.DecodeFile(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Path returns the path of an output in dir, as listed by the manifest.
func (m *Manifest) Path(dir, key string) (string, error) {
	name, ok := m.Outputs[key]
	if !ok {
		return "", errors.NewNotFound("output", key)
	}
	return filepath.Join(dir, name), nil
}

// AssetRows converts the per-asset distributions.
func AssetRows(r *damage.Report) []AssetRow {
	rows := make([]AssetRow, len(r.PerAsset))
	for i, d := range r.PerAsset {
		rows[i] = AssetRow{
			GSIM:        d.GSIM,
			AssetID:     d.AssetID,
			Lon:         d.Site.Lon,
			Lat:         d.Site.Lat,
			DamageState: d.DamageState.Name,
			LSI:         int32(d.DamageState.Index),
			Mean:        d.Mean,
			Stddev:      d.Stddev,
		}
	}
	return rows
}

// TaxonomyRows converts the per-taxonomy distributions.
func TaxonomyRows(r *damage.Report) []TaxonomyRow {
	rows := make([]TaxonomyRow, len(r.PerTaxonomy))
	for i, d := range r.PerTaxonomy {
		rows[i] = TaxonomyRow{
			GSIM:        d.GSIM,
			Taxonomy:    d.Taxonomy,
			DamageState: d.DamageState.Name,
			LSI:         int32(d.DamageState.Index),
			Mean:        d.Mean,
			Stddev:      d.Stddev,
		}
		if q := d.Quantiles; q != nil {
			rows[i].P50, rows[i].P90, rows[i].P95, rows[i].P99 = ptr(q.P50), ptr(q.P90), ptr(q.P95), ptr(q.P99)
		}
	}
	return rows
}

// TotalRows converts the total distributions.
func TotalRows(r *damage.Report) []TotalRow {
	rows := make([]TotalRow, len(r.Total))
	for i, d := range r.Total {
		rows[i] = TotalRow{
			GSIM:        d.GSIM,
			DamageState: d.DamageState.Name,
			LSI:         int32(d.DamageState.Index),
			Mean:        d.Mean,
			Stddev:      d.Stddev,
		}
		if q := d.Quantiles; q != nil {
			rows[i].P50, rows[i].P90, rows[i].P95, rows[i].P99 = ptr(q.P50), ptr(q.P90), ptr(q.P95), ptr(q.P99)
		}
	}
	return rows
}

// CollapseRows converts the collapse map.
func CollapseRows(r *damage.Report) []CollapseRow {
	rows := make([]CollapseRow, len(r.CollapseMap))
	for i, c := range r.CollapseMap {
		rows[i] = CollapseRow{
			GSIM:    c.GSIM,
			AssetID: c.AssetID,
			Lon:     c.Site.Lon,
			Lat:     c.Site.Lat,
			Mean:    c.Mean,
			Stddev:  c.Stddev,
		}
	}
	return rows
}

func ptr(v float64) *float64 { return &v }

// ReadTotals reads the dmg_dist_total output of dir.
func ReadTotals(dir string) ([]TotalRow, error) {
	return parquet.ReadFile[TotalRow](filepath.Join(dir, FileName(KeyDmgDistTotal)))
}

// ReadTaxonomies reads the dmg_dist_per_taxonomy output of dir.
func ReadTaxonomies(dir string) ([]TaxonomyRow, error) {
	return parquet.ReadFile[TaxonomyRow](filepath.Join(dir, FileName(KeyDmgDistPerTaxonomy)))
}

// ReadAssets reads the dmg_dist_per_asset output of dir.
func ReadAssets(dir string) ([]AssetRow, error) {
	return parquet.ReadFile[AssetRow](filepath.Join(dir, FileName(KeyDmgDistPerAsset)))
}

// ReadCollapseMap reads the collapse_map output of dir.
func ReadCollapseMap(dir string) ([]CollapseRow, error) {
	return parquet.ReadFile[CollapseRow](filepath.Join(dir, FileName(KeyCollapseMap)))
}
