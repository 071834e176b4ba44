package risk

import (
	"fmt"
	"sort"

	"github.com/xtxerr/tremor/internal/errors"
)

// RlzsAssoc associates GSIMs with realization ordinals. A scenario has no
// logic tree: each GSIM used to compute the ground motion is a realization
// of its own, numbered in sorted GSIM order.
type RlzsAssoc struct {
	gsims []string
	index map[string]int
}

// NewRlzsAssoc creates an association from the given GSIM names.
// Duplicates are collapsed.
func NewRlzsAssoc(gsims []string) *RlzsAssoc {
	index := make(map[string]int, len(gsims))
	sorted := make([]string, 0, len(gsims))
	for _, g := range gsims {
		if _, ok := index[g]; ok {
			continue
		}
		index[g] = 0
		sorted = append(sorted, g)
	}
	sort.Strings(sorted)
	for i, g := range sorted {
		index[g] = i
	}
	return &RlzsAssoc{gsims: sorted, index: index}
}

// GSIMs returns the GSIM names in realization order.
func (a *RlzsAssoc) GSIMs() []string {
	return a.gsims
}

// Len returns the number of realizations.
func (a *RlzsAssoc) Len() int {
	return len(a.gsims)
}

// Ordinal returns the realization ordinal of gsim.
func (a *RlzsAssoc) Ordinal(gsim string) (int, bool) {
	i, ok := a.index[gsim]
	return i, ok
}

// Collect extracts the ground-motion values of gsim from each hazard.
func (a *RlzsAssoc) Collect(hazards []Hazard, gsim string) ([][]float64, error) {
	if _, ok := a.index[gsim]; !ok {
		return nil, errors.NewNotFound("gsim", gsim)
	}
	out := make([][]float64, len(hazards))
	for i, h := range hazards {
		gmvs, ok := h[gsim]
		if !ok {
			return nil, fmt.Errorf("hazard %d has no values for %s: %w", i, gsim, errors.ErrGSIMNotFound)
		}
		out[i] = gmvs
	}
	return out, nil
}
