// Package exposure loads the assets of a portfolio and associates them with
// the sites where ground motion is known.
package exposure

import (
	"fmt"
	"math"
	"sort"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/format"
	"github.com/xtxerr/tremor/internal/logging"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/validation"
)

// Document is the YAML/TOML form of an exposure model.
type Document struct {
	Description string     `yaml:"description,omitempty" toml:"description,omitempty"`
	Assets      []AssetDoc `yaml:"assets" toml:"assets"`
}

// AssetDoc is one asset entry.
type AssetDoc struct {
	ID       string  `yaml:"id" toml:"id"`
	Taxonomy string  `yaml:"taxonomy" toml:"taxonomy"`
	Number   float64 `yaml:"number" toml:"number"`
	Lon      float64 `yaml:"lon" toml:"lon"`
	Lat      float64 `yaml:"lat" toml:"lat"`
}

// Exposure is a validated list of assets.
type Exposure struct {
	Description string
	Assets      []risk.Asset
}

// Load reads and validates an exposure file.
func Load(path string) (*Exposure, error) {
	var doc Document
	if err := format.DecodeFile(path, &doc); err != nil {
		return nil, err
	}
	e, err := doc.Exposure()
	if err != nil {
		return nil, fmt.Errorf("exposure %s: %w", path, err)
	}
	return e, nil
}

// Exposure validates the document. Asset ids must be unique and valid,
// taxonomies valid, numbers not negative and locations on the globe.
func (d *Document) Exposure() (*Exposure, error) {
	if len(d.Assets) == 0 {
		return nil, errors.NewMissingField("assets")
	}

	verrs := errors.NewValidationErrors()
	seen := make(map[string]bool, len(d.Assets))
	assets := make([]risk.Asset, 0, len(d.Assets))

	for _, a := range d.Assets {
		if err := validation.ValidateAssetID(a.ID); err != nil {
			verrs.Add(err)
			continue
		}
		if seen[a.ID] {
			verrs.Add(errors.NewDuplicate("asset", a.ID))
			continue
		}
		seen[a.ID] = true

		if a.Taxonomy == "" {
			verrs.AddMissing(a.ID + ".taxonomy")
		} else if err := validation.ValidateTaxonomy(a.Taxonomy); err != nil {
			verrs.Add(fmt.Errorf("asset %s: %w", a.ID, err))
		}
		if math.IsNaN(a.Number) || math.IsInf(a.Number, 0) || a.Number < 0 {
			verrs.Add(errors.NewInvalidValue(a.ID+".number", a.Number, "must be finite and not negative"))
		}
		if !(a.Lon >= -180 && a.Lon <= 180 && a.Lat >= -90 && a.Lat <= 90) {
			verrs.Add(errors.NewInvalidValue(a.ID+".location", fmt.Sprintf("%g,%g", a.Lon, a.Lat), "out of range"))
		}

		assets = append(assets, risk.Asset{
			ID:       a.ID,
			Taxonomy: a.Taxonomy,
			Number:   a.Number,
			Location: risk.Location{Lon: a.Lon, Lat: a.Lat},
		})
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	return &Exposure{Description: d.Description, Assets: assets}, nil
}

// Taxonomies returns the sorted distinct taxonomies of the exposure.
func (e *Exposure) Taxonomies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range e.Assets {
		if !seen[a.Taxonomy] {
			seen[a.Taxonomy] = true
			out = append(out, a.Taxonomy)
		}
	}
	sort.Strings(out)
	return out
}

// Association is the result of assigning assets to hazard sites.
type Association struct {
	// SiteIndices are the indices, in the input site list, of the sites
	// that received at least one asset. Sorted.
	SiteIndices []int

	// Sites are the sites at SiteIndices.
	Sites []risk.Site

	// AssetsBySite is parallel to Sites.
	AssetsBySite [][]risk.Asset

	// Discarded are the assets with no site within the distance.
	Discarded []risk.Asset
}

// NumAssets returns the number of associated assets.
func (a *Association) NumAssets() int {
	n := 0
	for _, assets := range a.AssetsBySite {
		n += len(assets)
	}
	return n
}

// Associate assigns every asset to its closest site within maxDistanceKm.
// Assets farther than that from every site are discarded and logged.
func Associate(sites []risk.Site, assets []risk.Asset, maxDistanceKm float64) (*Association, error) {
	if len(sites) == 0 {
		return nil, fmt.Errorf("associate assets: no sites: %w", errors.ErrEmptyInput)
	}

	log := logging.Component("exposure")
	bySite := make(map[int][]risk.Asset)
	out := &Association{}

	for _, a := range assets {
		best, bestDist := -1, 0.0
		for i, s := range sites {
			d := a.Location.DistanceKm(s.Location)
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if bestDist > maxDistanceKm {
			out.Discarded = append(out.Discarded, a)
			continue
		}
		bySite[best] = append(bySite[best], a)
	}

	for i := range bySite {
		out.SiteIndices = append(out.SiteIndices, i)
	}
	sort.Ints(out.SiteIndices)
	for _, i := range out.SiteIndices {
		out.Sites = append(out.Sites, sites[i])
		out.AssetsBySite = append(out.AssetsBySite, bySite[i])
	}

	if len(out.Discarded) > 0 {
		log.Warn("discarded assets far from any hazard site",
			"count", len(out.Discarded),
			"max_distance_km", maxDistanceKm,
			"first", out.Discarded[0].ID)
	}
	if len(out.Sites) == 0 {
		return nil, fmt.Errorf("no asset within %g km of a hazard site: %w", maxDistanceKm, errors.ErrEmptyInput)
	}

	log.Debug("associated assets", "assets", out.NumAssets(), "sites", len(out.Sites))
	return out, nil
}
