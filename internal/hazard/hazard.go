// Package hazard holds the ground-motion fields a scenario damage
// calculation consumes: for each site, IMT and GSIM, one ground-motion
// value per realization.
//
// Fields are read from Parquet (one row per value) or from YAML/TOML
// documents, and can be converted between the two.
package hazard

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/format"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/storage/parquet"
	"github.com/xtxerr/tremor/internal/validation"
)

// Row is one ground-motion value in Parquet form.
type Row struct {
	SiteID int64   `parquet:"site_id"`
	Lon    float64 `parquet:"lon"`
	Lat    float64 `parquet:"lat"`
	IMT    string  `parquet:"imt,dict"`
	GSIM   string  `parquet:"gsim,dict"`
	Rlz    int32   `parquet:"rlz"`
	GMV    float64 `parquet:"gmv"`
}

// GMFs is a complete set of ground-motion fields.
type GMFs struct {
	Sites           []risk.Site
	IMTs            []string
	GSIMs           []string
	NumRealizations int

	// byIMT[imt][i] is the hazard at Sites[i].
	byIMT map[string][]risk.Hazard
}

// HazardsByIMT returns, for each IMT, the hazard of every site in site
// order.
func (g *GMFs) HazardsByIMT() map[string][]risk.Hazard {
	return g.byIMT
}

// Hazard returns the hazard at the i-th site for imt.
func (g *GMFs) Hazard(imt string, i int) (risk.Hazard, error) {
	hz, ok := g.byIMT[imt]
	if !ok {
		return nil, errors.NewNotFound("imt", imt)
	}
	if i < 0 || i >= len(hz) {
		return nil, fmt.Errorf("site index %d: %w", i, errors.ErrSiteNotFound)
	}
	return hz[i], nil
}

// Subset returns the fields restricted to the sites at the given indices,
// in that order.
func (g *GMFs) Subset(indices []int) *GMFs {
	out := &GMFs{
		Sites:           make([]risk.Site, len(indices)),
		IMTs:            g.IMTs,
		GSIMs:           g.GSIMs,
		NumRealizations: g.NumRealizations,
		byIMT:           make(map[string][]risk.Hazard, len(g.byIMT)),
	}
	for j, i := range indices {
		out.Sites[j] = g.Sites[i]
	}
	for imt, hz := range g.byIMT {
		sub := make([]risk.Hazard, len(indices))
		for j, i := range indices {
			sub[j] = hz[i]
		}
		out.byIMT[imt] = sub
	}
	return out
}

// Rows flattens the fields into Parquet rows ordered by site, IMT, GSIM
// and realization.
func (g *GMFs) Rows() []Row {
	rows := make([]Row, 0, len(g.Sites)*len(g.IMTs)*len(g.GSIMs)*g.NumRealizations)
	for i, site := range g.Sites {
		for _, imt := range g.IMTs {
			hz := g.byIMT[imt][i]
			for _, gsim := range g.GSIMs {
				for r, v := range hz[gsim] {
					rows = append(rows, Row{
						SiteID: int64(site.ID),
						Lon:    site.Location.Lon,
						Lat:    site.Location.Lat,
						IMT:    imt,
						GSIM:   gsim,
						Rlz:    int32(r),
						GMV:    v,
					})
				}
			}
		}
	}
	return rows
}

type valueKey struct {
	site int64
	imt  string
	gsim string
}

// FromRows assembles and validates fields from Parquet rows. Every (site,
// IMT, GSIM) combination must be present with realizations 0..R-1, and
// ground-motion values must be finite and not negative.
func FromRows(rows []Row) (*GMFs, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("ground motion fields: %w", errors.ErrEmptyInput)
	}

	sites := make(map[int64]risk.Site)
	imts := make(map[string]bool)
	gsims := make(map[string]bool)
	values := make(map[valueKey]map[int32]float64)
	maxRlz := int32(-1)

	for _, row := range rows {
		imt, err := validation.CanonicalIMT(row.IMT)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(row.GMV) || math.IsInf(row.GMV, 0) {
			return nil, errors.NewInvalidValue("gmv", row.GMV, "must be finite")
		}
		if row.GMV < 0 {
			return nil, errors.NewInvalidValue("gmv", row.GMV, "must not be negative")
		}
		if !(row.Lon >= -180 && row.Lon <= 180 && row.Lat >= -90 && row.Lat <= 90) {
			return nil, errors.NewInvalidValue("site", row.SiteID, "location out of range")
		}
		if row.Rlz < 0 {
			return nil, errors.NewInvalidValue("rlz", row.Rlz, "must not be negative")
		}

		loc := risk.Location{Lon: row.Lon, Lat: row.Lat}
		if s, ok := sites[row.SiteID]; ok && s.Location != loc {
			return nil, errors.NewInvalidValue("site", row.SiteID, "has two locations")
		}
		sites[row.SiteID] = risk.Site{ID: int(row.SiteID), Location: loc}
		imts[imt] = true
		gsims[row.GSIM] = true

		k := valueKey{site: row.SiteID, imt: imt, gsim: row.GSIM}
		if values[k] == nil {
			values[k] = make(map[int32]float64)
		}
		if _, dup := values[k][row.Rlz]; dup {
			return nil, errors.NewDuplicate("ground motion value",
				fmt.Sprintf("site=%d imt=%s gsim=%s rlz=%d", row.SiteID, imt, row.GSIM, row.Rlz))
		}
		values[k][row.Rlz] = row.GMV
		if row.Rlz > maxRlz {
			maxRlz = row.Rlz
		}
	}

	g := &GMFs{
		IMTs:            sortedKeys(imts),
		GSIMs:           sortedKeys(gsims),
		NumRealizations: int(maxRlz) + 1,
		byIMT:           make(map[string][]risk.Hazard, len(imts)),
	}

	ids := make([]int64, 0, len(sites))
	for id := range sites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, imt := range g.IMTs {
		g.byIMT[imt] = make([]risk.Hazard, len(ids))
	}
	for i, id := range ids {
		g.Sites = append(g.Sites, sites[id])
		for _, imt := range g.IMTs {
			hz := make(risk.Hazard, len(g.GSIMs))
			for _, gsim := range g.GSIMs {
				byRlz := values[valueKey{site: id, imt: imt, gsim: gsim}]
				if len(byRlz) != g.NumRealizations {
					return nil, fmt.Errorf("site %d %s %s: %d of %d realizations: %w",
						id, imt, gsim, len(byRlz), g.NumRealizations, errors.ErrShapeMismatch)
				}
				gmvs := make([]float64, g.NumRealizations)
				for r, v := range byRlz {
					gmvs[r] = v
				}
				hz[gsim] = gmvs
			}
			g.byIMT[imt][i] = hz
		}
	}

	return g, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load reads ground-motion fields from a Parquet, YAML or TOML file.
func Load(path string) (*GMFs, error) {
	if isParquet(path) {
		rows, err := parquet.ReadFile[Row](path)
		if err != nil {
			return nil, fmt.Errorf("read gmfs %s: %w", path, err)
		}
		g, err := FromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("gmfs %s: %w", path, err)
		}
		return g, nil
	}

	var doc Document
	if err := format.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	g, err := doc.GMFs()
	if err != nil {
		return nil, fmt.Errorf("gmfs %s: %w", path, err)
	}
	return g, nil
}

// Save writes the fields to path, choosing the encoding from the extension.
func Save(path string, g *GMFs, opts parquet.Options) error {
	if isParquet(path) {
		return WriteParquet(path, g, opts)
	}
	return format.EncodeFile(path, g.Document())
}

// WriteParquet writes the fields as Parquet rows.
func WriteParquet(path string, g *GMFs, opts parquet.Options) error {
	if err := parquet.WriteFile(path, g.Rows(), opts); err != nil {
		return fmt.Errorf("write gmfs %s: %w", path, err)
	}
	return nil
}

func isParquet(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".parquet")
}
