package fragility

import (
	"fmt"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/format"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/validation"
)

// NoDamageState is the name of the implicit first damage state.
const NoDamageState = "no_damage"

// Function formats.
const (
	FormatContinuous = "continuous"
	FormatDiscrete   = "discrete"
)

// File is the on-disk fragility model.
type File struct {
	// LimitStates are ordered from the least to the most severe.
	LimitStates []string `yaml:"limit_states" toml:"limit_states"`

	// NoDamageLimit is the IML below which no damage occurs. A set may
	// override it.
	NoDamageLimit float64 `yaml:"no_damage_limit,omitempty" toml:"no_damage_limit,omitempty"`

	Sets []SetSpec `yaml:"fragility_sets" toml:"fragility_sets"`
}

// SetSpec describes the functions of one taxonomy.
type SetSpec struct {
	Taxonomy      string   `yaml:"taxonomy" toml:"taxonomy"`
	IMT           string   `yaml:"imt" toml:"imt"`
	Format        string   `yaml:"format" toml:"format"`
	NoDamageLimit *float64 `yaml:"no_damage_limit,omitempty" toml:"no_damage_limit,omitempty"`

	// IMLs are shared by all limit states of a discrete set.
	IMLs []float64 `yaml:"imls,omitempty" toml:"imls,omitempty"`

	// PoEs holds one row per limit state for a discrete set.
	PoEs [][]float64 `yaml:"poes,omitempty" toml:"poes,omitempty"`

	// Params holds one entry per limit state for a continuous set.
	Params []Params `yaml:"params,omitempty" toml:"params,omitempty"`
}

// Params are the moments of a continuous function.
type Params struct {
	Mean   float64 `yaml:"mean" toml:"mean"`
	Stddev float64 `yaml:"stddev" toml:"stddev"`
}

// DamageStates returns "no_damage" followed by the limit states.
func (f *File) DamageStates() []string {
	return append([]string{NoDamageState}, f.LimitStates...)
}

// LoadModel reads a fragility model file and builds the risk model.
func LoadModel(path string) (*risk.Model, error) {
	var f File
	if err := format.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	m, err := f.Model()
	if err != nil {
		return nil, fmt.Errorf("fragility model %s: %w", path, err)
	}
	return m, nil
}

// Model validates the file and builds one Damage workflow per set.
func (f *File) Model() (*risk.Model, error) {
	if err := validation.ValidateDamageStates(f.DamageStates()); err != nil {
		return nil, err
	}
	if len(f.Sets) == 0 {
		return nil, errors.NewMissingField("fragility_sets")
	}

	verrs := errors.NewValidationErrors()
	workflows := make(map[risk.Key]risk.Workflow, len(f.Sets))
	seen := make(map[string]bool, len(f.Sets))

	for i := range f.Sets {
		spec := &f.Sets[i]
		if seen[spec.Taxonomy] {
			verrs.Add(errors.NewDuplicate("taxonomy", spec.Taxonomy))
			continue
		}
		seen[spec.Taxonomy] = true

		wf, err := f.buildSet(spec)
		if err != nil {
			verrs.Add(fmt.Errorf("set %d (%s): %w", i, spec.Taxonomy, err))
			continue
		}
		workflows[risk.Key{IMT: wf.IMT, Taxonomy: wf.Taxonomy}] = wf
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	return risk.NewModel(workflows, f.DamageStates())
}

func (f *File) buildSet(spec *SetSpec) (*Damage, error) {
	if err := validation.ValidateTaxonomy(spec.Taxonomy); err != nil {
		return nil, err
	}
	imt, err := validation.CanonicalIMT(spec.IMT)
	if err != nil {
		return nil, err
	}

	ndl := f.NoDamageLimit
	if spec.NoDamageLimit != nil {
		ndl = *spec.NoDamageLimit
	}
	if ndl < 0 {
		return nil, errors.NewInvalidValue("no_damage_limit", ndl, "must not be negative")
	}

	fns := make([]Function, 0, len(f.LimitStates))
	switch spec.Format {
	case FormatContinuous, "":
		if len(spec.Params) != len(f.LimitStates) {
			return nil, fmt.Errorf("%d params for %d limit states: %w",
				len(spec.Params), len(f.LimitStates), errors.ErrInvalidFragility)
		}
		prevMean := 0.0
		for j, ls := range f.LimitStates {
			p := spec.Params[j]
			if p.Mean < prevMean {
				return nil, fmt.Errorf("limit state %s: mean %g below previous %g: %w",
					ls, p.Mean, prevMean, errors.ErrInvalidFragility)
			}
			prevMean = p.Mean
			fn, err := NewContinuous(ls, p.Mean, p.Stddev, ndl)
			if err != nil {
				return nil, err
			}
			fns = append(fns, fn)
		}

	case FormatDiscrete:
		if len(spec.PoEs) != len(f.LimitStates) {
			return nil, fmt.Errorf("%d poe rows for %d limit states: %w",
				len(spec.PoEs), len(f.LimitStates), errors.ErrInvalidFragility)
		}
		for j, ls := range f.LimitStates {
			if j > 0 {
				for k := range spec.PoEs[j] {
					if k < len(spec.PoEs[j-1]) && spec.PoEs[j][k] > spec.PoEs[j-1][k] {
						return nil, fmt.Errorf("limit state %s: poe at iml %d exceeds %s: %w",
							ls, k, f.LimitStates[j-1], errors.ErrInvalidFragility)
					}
				}
			}
			fn, err := NewDiscrete(ls, spec.IMLs, spec.PoEs[j], ndl)
			if err != nil {
				return nil, err
			}
			fns = append(fns, fn)
		}

	default:
		return nil, errors.NewInvalidValue("format", spec.Format, "must be continuous or discrete")
	}

	return NewDamage(imt, spec.Taxonomy, fns)
}
