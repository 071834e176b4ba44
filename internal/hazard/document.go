package hazard

import (
	"fmt"
	"sort"

	"github.com/xtxerr/tremor/internal/errors"
)

// Document is the YAML/TOML form of a set of ground-motion fields.
//
//	sites:
//	  - id: 0
//	    lon: 15.48
//	    lat: 38.09
//	    gmvs:
//	      PGA:
//	        AkkarBommer2010: [0.21, 0.35]
type Document struct {
	Sites []SiteDoc `yaml:"sites" toml:"sites"`
}

// SiteDoc holds the values of one site, keyed by IMT and then GSIM.
type SiteDoc struct {
	ID   int                             `yaml:"id" toml:"id"`
	Lon  float64                         `yaml:"lon" toml:"lon"`
	Lat  float64                         `yaml:"lat" toml:"lat"`
	GMVs map[string]map[string][]float64 `yaml:"gmvs" toml:"gmvs"`
}

// GMFs converts the document, applying the same checks as FromRows.
func (d *Document) GMFs() (*GMFs, error) {
	if len(d.Sites) == 0 {
		return nil, errors.NewMissingField("sites")
	}

	var rows []Row
	for _, s := range d.Sites {
		imts := make([]string, 0, len(s.GMVs))
		for imt := range s.GMVs {
			imts = append(imts, imt)
		}
		sort.Strings(imts)

		for _, imt := range imts {
			for gsim, gmvs := range s.GMVs[imt] {
				if len(gmvs) == 0 {
					return nil, fmt.Errorf("site %d %s %s: %w", s.ID, imt, gsim, errors.ErrEmptyInput)
				}
				for r, v := range gmvs {
					rows = append(rows, Row{
						SiteID: int64(s.ID),
						Lon:    s.Lon,
						Lat:    s.Lat,
						IMT:    imt,
						GSIM:   gsim,
						Rlz:    int32(r),
						GMV:    v,
					})
				}
			}
		}
	}
	return FromRows(rows)
}

// Document converts the fields to their document form.
func (g *GMFs) Document() *Document {
	doc := &Document{Sites: make([]SiteDoc, len(g.Sites))}
	for i, site := range g.Sites {
		sd := SiteDoc{
			ID:   site.ID,
			Lon:  site.Location.Lon,
			Lat:  site.Location.Lat,
			GMVs: make(map[string]map[string][]float64, len(g.IMTs)),
		}
		for _, imt := range g.IMTs {
			hz := g.byIMT[imt][i]
			byGSIM := make(map[string][]float64, len(hz))
			for gsim, v := range hz {
				byGSIM[gsim] = v
			}
			sd.GMVs[imt] = byGSIM
		}
		doc.Sites[i] = sd
	}
	return doc
}
