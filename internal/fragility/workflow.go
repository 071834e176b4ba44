package fragility

import (
	"fmt"
	"math"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/risk"
	"gonum.org/v1/gonum/mat"
)

// Damage is the workflow of a scenario damage calculation: it converts the
// ground-motion values at the site of each asset into damage state
// fractions using one fragility set.
type Damage struct {
	IMT       string
	Taxonomy  string
	Functions []Function
}

// NewDamage creates a damage workflow for (imt, taxonomy).
func NewDamage(imt, taxonomy string, fns []Function) (*Damage, error) {
	if len(fns) == 0 {
		return nil, fmt.Errorf("%s/%s: no fragility functions: %w", imt, taxonomy, errors.ErrInvalidFragility)
	}
	return &Damage{IMT: imt, Taxonomy: taxonomy, Functions: fns}, nil
}

// LossTypes returns the single loss type "damage".
func (d *Damage) LossTypes() []string {
	return []string{risk.LossTypeDamage}
}

// NumDamageStates returns D, the number of damage states including the
// no damage state.
func (d *Damage) NumDamageStates() int {
	return len(d.Functions) + 1
}

// Apply returns one R x D fraction matrix per asset.
func (d *Damage) Apply(lossType string, assets []risk.Asset, gmvs [][]float64) ([]*mat.Dense, error) {
	if lossType != risk.LossTypeDamage {
		return nil, fmt.Errorf("loss type %q: %w", lossType, errors.ErrNotFound)
	}
	if len(assets) != len(gmvs) {
		return nil, fmt.Errorf("%d assets for %d ground motions: %w",
			len(assets), len(gmvs), errors.ErrLengthMismatch)
	}

	numDS := d.NumDamageStates()
	out := make([]*mat.Dense, len(assets))
	for i, values := range gmvs {
		if len(values) == 0 {
			return nil, fmt.Errorf("asset %s: %w", assets[i].ID, errors.ErrEmptyInput)
		}
		m := mat.NewDense(len(values), numDS, nil)
		for r, gmv := range values {
			if math.IsNaN(gmv) || math.IsInf(gmv, 0) {
				return nil, fmt.Errorf("asset %s rlz %d: %w", assets[i].ID, r,
					errors.NewInvalidValue("gmv", gmv, "must be finite"))
			}
			FractionsInto(m.RawRowView(r), d.Functions, gmv)
		}
		out[i] = m
	}
	return out, nil
}
