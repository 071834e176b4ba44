package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xtxerr/tremor/internal/errors"
)

// RiskInput contains the assets and hazard values associated with one IMT
// for a group of sites.
type RiskInput struct {
	IMT string

	// Taxonomies present among the assets, sorted.
	Taxonomies []string

	// Hazards and AssetsBySite are indexed by site.
	Hazards      []Hazard
	AssetsBySite [][]Asset

	// Weight is the number of assets, used to balance blocks.
	Weight int
}

// NewRiskInput builds a risk input for imt. Only assets whose taxonomy is in
// served are kept.
func NewRiskInput(imt string, served []string, hazards []Hazard, assetsBySite [][]Asset) (*RiskInput, error) {
	if len(hazards) != len(assetsBySite) {
		return nil, fmt.Errorf("risk input %s: %d hazards for %d sites: %w",
			imt, len(hazards), len(assetsBySite), errors.ErrLengthMismatch)
	}

	keep := make(map[string]bool, len(served))
	for _, t := range served {
		keep[t] = true
	}

	ri := &RiskInput{
		IMT:          imt,
		Hazards:      hazards,
		AssetsBySite: make([][]Asset, len(assetsBySite)),
	}

	present := make(map[string]bool)
	for i, assets := range assetsBySite {
		for _, a := range assets {
			if !keep[a.Taxonomy] {
				continue
			}
			ri.AssetsBySite[i] = append(ri.AssetsBySite[i], a)
			present[a.Taxonomy] = true
			ri.Weight++
		}
	}

	ri.Taxonomies = make([]string, 0, len(present))
	for t := range present {
		ri.Taxonomies = append(ri.Taxonomies, t)
	}
	sort.Strings(ri.Taxonomies)

	return ri, nil
}

// All flattens the input into parallel slices of assets and the hazard of
// the site each asset belongs to.
func (ri *RiskInput) All() ([]Asset, []Hazard) {
	assets := make([]Asset, 0, ri.Weight)
	hazards := make([]Hazard, 0, ri.Weight)
	for i, site := range ri.AssetsBySite {
		for _, a := range site {
			assets = append(assets, a)
			hazards = append(hazards, ri.Hazards[i])
		}
	}
	return assets, hazards
}

// String returns a short description for logs.
func (ri *RiskInput) String() string {
	return fmt.Sprintf("<RiskInput IMT=%s, taxonomy=%s, weight=%d>",
		ri.IMT, strings.Join(ri.Taxonomies, ", "), ri.Weight)
}

// SplitInBlocks groups consecutive indices of weights into at most n blocks
// of roughly equal total weight. Zero weights travel with their neighbors.
func SplitInBlocks(weights []int, n int) [][]int {
	if len(weights) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}

	total := 0
	for _, w := range weights {
		total += w
	}
	target := (total + n - 1) / n
	if target < 1 {
		target = 1
	}

	var blocks [][]int
	var cur []int
	acc := 0
	for i, w := range weights {
		cur = append(cur, i)
		acc += w
		if acc >= target && len(blocks) < n-1 {
			blocks = append(blocks, cur)
			cur = nil
			acc = 0
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}
