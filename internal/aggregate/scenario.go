package aggregate

import (
	"context"
	"fmt"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/logging"
	"github.com/xtxerr/tremor/internal/risk"
	"gonum.org/v1/gonum/mat"
)

// ScenarioDamage is the core of a scenario damage calculation. For every
// workflow output it scales the damage fractions of each asset by the
// number of units of the asset, records the damage counts of the asset and
// adds them to the total of its taxonomy. Outputs of loss types other than
// damage are ignored.
func ScenarioDamage(ctx context.Context, inputs []*risk.RiskInput, model *risk.Model, assoc *risk.RlzsAssoc) (*Accumulator, error) {
	weight := 0
	for _, ri := range inputs {
		weight += ri.Weight
	}
	logging.WithContext(ctx).Info("considering risk inputs",
		"inputs", len(inputs),
		"weight", weight)

	acc := New()
	err := model.GenOutputs(ctx, inputs, assoc, func(out risk.Output) error {
		if out.LossType != risk.LossTypeDamage {
			return nil
		}
		acc.countOutput()
		return addOutput(acc, out)
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func addOutput(acc *Accumulator, out risk.Output) error {
	if len(out.Assets) != len(out.Fractions) {
		return fmt.Errorf("%s: %d fraction matrices for %d assets: %w",
			out.Taxonomy, len(out.Fractions), len(out.Assets), errors.ErrLengthMismatch)
	}

	var damages mat.Dense
	for i, asset := range out.Assets {
		damages.Scale(asset.Number, out.Fractions[i])
		if err := acc.AddAsset(out.GSIM, asset, &damages); err != nil {
			return err
		}
		if err := acc.AddTaxonomy(out.GSIM, asset.Taxonomy, &damages); err != nil {
			return err
		}
		damages.Reset()
	}
	return nil
}
