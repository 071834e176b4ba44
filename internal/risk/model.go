package risk

import (
	"context"
	"fmt"
	"sort"

	"github.com/xtxerr/tremor/internal/errors"
	"gonum.org/v1/gonum/mat"
)

// Workflow evaluates the risk functions of one (IMT, taxonomy) pair.
type Workflow interface {
	// LossTypes lists the loss types the workflow can compute.
	LossTypes() []string

	// Apply computes, for each asset, an R x D matrix of damage fractions.
	// gmvs holds the R ground-motion values of the site of each asset.
	Apply(lossType string, assets []Asset, gmvs [][]float64) ([]*mat.Dense, error)
}

// Key identifies a workflow.
type Key struct {
	IMT      string
	Taxonomy string
}

// IMTTaxonomies pairs an IMT with the taxonomies it serves.
type IMTTaxonomies struct {
	IMT        string
	Taxonomies []string
}

// Output is the result of one workflow call.
type Output struct {
	Taxonomy string
	LossType string
	GSIM     string
	Assets   []Asset
	// Fractions holds one R x D matrix per asset.
	Fractions []*mat.Dense
}

// Model is a container (IMT, taxonomy) -> Workflow together with the
// damage states produced by its workflows.
type Model struct {
	damageStates []string
	workflows    map[Key]Workflow
	keys         []Key
}

// NewModel creates a model. A taxonomy may only be served by a single IMT.
func NewModel(workflows map[Key]Workflow, damageStates []string) (*Model, error) {
	if len(workflows) == 0 {
		return nil, fmt.Errorf("risk model without workflows: %w", errors.ErrEmptyInput)
	}

	byTaxonomy := make(map[string]string, len(workflows))
	keys := make([]Key, 0, len(workflows))
	for k := range workflows {
		if imt, ok := byTaxonomy[k.Taxonomy]; ok {
			return nil, fmt.Errorf("taxonomy %s served by %s and %s: %w",
				k.Taxonomy, imt, k.IMT, errors.ErrDuplicateWorkflow)
		}
		byTaxonomy[k.Taxonomy] = k.IMT
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].IMT != keys[j].IMT {
			return keys[i].IMT < keys[j].IMT
		}
		return keys[i].Taxonomy < keys[j].Taxonomy
	})

	return &Model{
		damageStates: append([]string(nil), damageStates...),
		workflows:    workflows,
		keys:         keys,
	}, nil
}

// DamageStates returns the ordered damage state names.
func (m *Model) DamageStates() []string {
	return append([]string(nil), m.damageStates...)
}

// Len returns the number of workflows.
func (m *Model) Len() int {
	return len(m.keys)
}

// Workflow returns the workflow for (imt, taxonomy).
func (m *Model) Workflow(imt, taxonomy string) (Workflow, bool) {
	w, ok := m.workflows[Key{IMT: imt, Taxonomy: taxonomy}]
	return w, ok
}

// Taxonomies returns the sorted taxonomies of the model. If imt is not
// empty only the taxonomies served by that IMT are returned.
func (m *Model) Taxonomies(imt string) []string {
	var out []string
	for _, k := range m.keys {
		if imt == "" || k.IMT == imt {
			out = append(out, k.Taxonomy)
		}
	}
	sort.Strings(out)
	return out
}

// IMTs returns the sorted IMTs of the model. If taxonomy is not empty only
// the IMT serving it is returned.
func (m *Model) IMTs(taxonomy string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range m.keys {
		if taxonomy != "" && k.Taxonomy != taxonomy {
			continue
		}
		if !seen[k.IMT] {
			seen[k.IMT] = true
			out = append(out, k.IMT)
		}
	}
	return out
}

// IMTTaxonomies yields, for each IMT, the taxonomies associated to it.
func (m *Model) IMTTaxonomies() []IMTTaxonomies {
	var out []IMTTaxonomies
	for _, k := range m.keys {
		if n := len(out); n > 0 && out[n-1].IMT == k.IMT {
			out[n-1].Taxonomies = append(out[n-1].Taxonomies, k.Taxonomy)
			continue
		}
		out = append(out, IMTTaxonomies{IMT: k.IMT, Taxonomies: []string{k.Taxonomy}})
	}
	return out
}

// LossTypes returns the sorted loss types of all workflows.
func (m *Model) LossTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range m.keys {
		for _, lt := range m.workflows[k].LossTypes() {
			if !seen[lt] {
				seen[lt] = true
				out = append(out, lt)
			}
		}
	}
	sort.Strings(out)
	return out
}

// BuildInput builds the risk input of imt for the given sites.
func (m *Model) BuildInput(imt string, hazards []Hazard, assetsBySite [][]Asset) (*RiskInput, error) {
	return NewRiskInput(imt, m.Taxonomies(imt), hazards, assetsBySite)
}

// BuildInputs builds the risk inputs of every IMT of the model, splitting
// the sites into at most blocks groups per IMT. Empty inputs are skipped.
// hazardsByIMT holds, for each IMT, one Hazard per site.
func (m *Model) BuildInputs(hazardsByIMT map[string][]Hazard, assetsBySite [][]Asset, blocks int) ([]*RiskInput, error) {
	var out []*RiskInput
	for _, it := range m.IMTTaxonomies() {
		hazards, ok := hazardsByIMT[it.IMT]
		if !ok {
			return nil, fmt.Errorf("ground motion for %s: %w", it.IMT, errors.ErrIMTNotFound)
		}

		full, err := m.BuildInput(it.IMT, hazards, assetsBySite)
		if err != nil {
			return nil, err
		}
		if full.Weight == 0 {
			continue
		}

		weights := make([]int, len(full.AssetsBySite))
		for i, a := range full.AssetsBySite {
			weights[i] = len(a)
		}
		for _, block := range SplitInBlocks(weights, blocks) {
			hz := make([]Hazard, len(block))
			as := make([][]Asset, len(block))
			for j, idx := range block {
				hz[j] = full.Hazards[idx]
				as[j] = full.AssetsBySite[idx]
			}
			ri, err := NewRiskInput(it.IMT, it.Taxonomies, hz, as)
			if err != nil {
				return nil, err
			}
			if ri.Weight > 0 {
				out = append(out, ri)
			}
		}
	}
	return out, nil
}

// GenOutputs calls fn with the output of every workflow, loss type and GSIM
// for each risk input. Outputs of one input are produced in taxonomy, loss
// type, GSIM order.
func (m *Model) GenOutputs(ctx context.Context, inputs []*RiskInput, assoc *RlzsAssoc, fn func(Output) error) error {
	for _, ri := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.genOutput(ri, assoc, fn); err != nil {
			return fmt.Errorf("%s: %w", ri, err)
		}
	}
	return nil
}

func (m *Model) genOutput(ri *RiskInput, assoc *RlzsAssoc, fn func(Output) error) error {
	allAssets, allHazards := ri.All()

	for _, taxonomy := range ri.Taxonomies {
		workflow, ok := m.Workflow(ri.IMT, taxonomy)
		if !ok {
			return fmt.Errorf("%s/%s: %w", ri.IMT, taxonomy, errors.ErrUnknownTaxonomy)
		}

		var assets []Asset
		var hazards []Hazard
		for i, a := range allAssets {
			if a.Taxonomy == taxonomy {
				assets = append(assets, a)
				hazards = append(hazards, allHazards[i])
			}
		}
		if len(assets) == 0 {
			continue
		}

		for _, lossType := range workflow.LossTypes() {
			for _, gsim := range assoc.GSIMs() {
				gmvs, err := assoc.Collect(hazards, gsim)
				if err != nil {
					return err
				}
				fractions, err := workflow.Apply(lossType, assets, gmvs)
				if err != nil {
					return fmt.Errorf("%s/%s %s: %w", ri.IMT, taxonomy, lossType, err)
				}
				out := Output{
					Taxonomy:  taxonomy,
					LossType:  lossType,
					GSIM:      gsim,
					Assets:    assets,
					Fractions: fractions,
				}
				if err := fn(out); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
