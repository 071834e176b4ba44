// Package calc runs a scenario damage calculation end to end.
//
// A run has three phases. PreExecute loads the exposure, fragility model and
// ground-motion fields, associates assets with hazard sites and splits the
// risk inputs into blocks. Execute computes the damage of every block in
// parallel and merges the partial accumulators, spooling each one when
// configured. PostExecute derives the damage distributions and writes the
// export files.
package calc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xtxerr/tremor/internal/aggregate"
	"github.com/xtxerr/tremor/internal/damage"
	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/export"
	"github.com/xtxerr/tremor/internal/exposure"
	"github.com/xtxerr/tremor/internal/fragility"
	"github.com/xtxerr/tremor/internal/hazard"
	"github.com/xtxerr/tremor/internal/job"
	"github.com/xtxerr/tremor/internal/logging"
	"github.com/xtxerr/tremor/internal/risk"
	"github.com/xtxerr/tremor/internal/storage/parquet"
	"github.com/xtxerr/tremor/internal/wire"
	"golang.org/x/sync/errgroup"
)

// Result summarizes a finished calculation.
type Result struct {
	CalcID    string
	ExportDir string
	Outputs   map[string]string
	Report    *damage.Report
	Stats     aggregate.Stats

	// Blocks is the number of blocks computed or read from the spool.
	Blocks int

	// Discarded is the number of assets without a hazard site.
	Discarded int

	Duration time.Duration
}

// Calculator holds the state of one calculation.
type Calculator struct {
	cfg    *job.Config
	calcID string
	log    *slog.Logger

	exposure    *exposure.Exposure
	model       *risk.Model
	gmfs        *hazard.GMFs
	association *exposure.Association
	assoc       *risk.RlzsAssoc
	inputs      []*risk.RiskInput
}

// New creates a calculator for cfg with a fresh calculation id.
func New(cfg *job.Config) *Calculator {
	id := uuid.NewString()
	return &Calculator{
		cfg:    cfg,
		calcID: id,
		log:    logging.Component("calc").With("calc_id", id),
	}
}

// PreExecute loads the inputs and builds the risk inputs.
func (c *Calculator) PreExecute(ctx context.Context) error {
	start := time.Now()

	model, err := fragility.LoadModel(c.cfg.FragilityPath())
	if err != nil {
		return fmt.Errorf("fragility model: %w", err)
	}
	c.model = model

	exp, err := exposure.Load(c.cfg.ExposurePath())
	if err != nil {
		return fmt.Errorf("exposure: %w", err)
	}
	if err := checkTaxonomies(exp, model); err != nil {
		return err
	}
	c.exposure = exp

	gmfs, err := hazard.Load(c.cfg.GMFsPath())
	if err != nil {
		return fmt.Errorf("ground motion fields: %w", err)
	}
	c.gmfs = gmfs

	if err := ctx.Err(); err != nil {
		return err
	}

	association, err := exposure.Associate(gmfs.Sites, exp.Assets, c.cfg.Calculation.AssetHazardDistanceKm)
	if err != nil {
		return err
	}
	c.association = association

	c.assoc = risk.NewRlzsAssoc(gmfs.GSIMs)
	hazards := gmfs.Subset(association.SiteIndices).HazardsByIMT()
	inputs, err := model.BuildInputs(hazards, association.AssetsBySite, c.cfg.Calculation.ConcurrentTasks)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no risk inputs: %w", errors.ErrEmptyInput)
	}
	c.inputs = inputs

	c.log.Info("pre-execute complete",
		"assets", association.NumAssets(),
		"discarded", len(association.Discarded),
		"sites", len(association.Sites),
		"gsims", c.assoc.Len(),
		"realizations", gmfs.NumRealizations,
		"blocks", len(inputs),
		"duration", time.Since(start))
	return nil
}

// checkTaxonomies reports exposure taxonomies the model cannot evaluate.
func checkTaxonomies(exp *exposure.Exposure, model *risk.Model) error {
	served := make(map[string]bool)
	for _, t := range model.Taxonomies("") {
		served[t] = true
	}
	var missing []string
	for _, t := range exp.Taxonomies() {
		if !served[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(missing, ", "), errors.ErrUnknownTaxonomy)
	}
	return nil
}

// Execute computes every block and returns the merged accumulator.
func (c *Calculator) Execute(ctx context.Context) (*aggregate.Accumulator, int, error) {
	if c.model == nil {
		return nil, 0, fmt.Errorf("execute before pre-execute: %w", errors.ErrInternal)
	}
	ctx = logging.ContextWithCalcID(ctx, c.calcID)
	start := time.Now()

	spool, finishSpool, err := c.openSpool()
	if err != nil {
		return nil, 0, err
	}

	workers := c.cfg.Calculation.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	total := aggregate.New()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ri := range c.inputs {
		g.Go(func() error {
			bctx := logging.ContextWithBlock(gctx, i)
			acc, err := aggregate.ScenarioDamage(bctx, []*risk.RiskInput{ri}, c.model, c.assoc)
			if err != nil {
				return fmt.Errorf("block %d: %w", i, err)
			}
			if spool != nil {
				if err := spool.WriteAccumulator(i, len(c.inputs), acc); err != nil {
					return fmt.Errorf("spool: %w", err)
				}
			}
			return total.Merge(acc)
		})
	}

	err = g.Wait()
	if ferr := finishSpool(err); err == nil {
		err = ferr
	}
	if err != nil {
		return nil, 0, err
	}

	st := total.Stats()
	c.log.Info("execute complete",
		"blocks", len(c.inputs),
		"workers", workers,
		"outputs", st.Outputs,
		"assets", st.Assets,
		"duration", time.Since(start))
	return total, len(c.inputs), nil
}

// openSpool writes the spool under a temporary name and removes any spool
// left by an earlier run. The returned finish function publishes the spool
// when runErr is nil and discards it otherwise.
func (c *Calculator) openSpool() (*wire.Writer, func(runErr error) error, error) {
	path := c.cfg.SpoolPath()
	if path == "" {
		return nil, func(error) error { return nil }, nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("remove old spool: %w", err)
	}

	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, nil, fmt.Errorf("create spool: %w", err)
	}
	return wire.NewWriter(f), func(runErr error) error {
		cerr := f.Close()
		if runErr != nil || cerr != nil {
			os.Remove(tmp)
			if cerr != nil {
				return fmt.Errorf("close spool: %w", cerr)
			}
			c.log.Warn("discarded spool of failed run", "path", path)
			return nil
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("publish spool: %w", err)
		}
		return nil
	}, nil
}

// PostExecute builds the damage distributions from acc and exports them.
func (c *Calculator) PostExecute(ctx context.Context, acc *aggregate.Accumulator) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.model == nil {
		return nil, fmt.Errorf("post-execute without a model: %w", errors.ErrInternal)
	}

	report, err := damage.Build(acc, c.model.DamageStates(), damage.Options{
		Quantiles: c.cfg.Statistics.Quantiles,
		Accuracy:  c.cfg.Statistics.QuantileAccuracy,
	})
	if err != nil {
		return nil, err
	}

	dir := c.cfg.ExportDir()
	opts := parquet.DefaultOptions()
	opts.Compression = parquet.ParseCompressionType(c.cfg.Export.Compression)
	opts.RowGroupSize = c.cfg.Export.RowGroupSize

	outputs, err := export.WriteReport(dir, export.Meta{
		CalcID:      c.calcID,
		Description: c.cfg.Description,
	}, report, opts)
	if err != nil {
		return nil, err
	}

	c.log.Info("exported outputs", "dir", dir, "files", len(outputs))
	res := &Result{
		CalcID:    c.calcID,
		ExportDir: dir,
		Outputs:   outputs,
		Report:    report,
		Stats:     acc.Stats(),
	}
	if c.association != nil {
		res.Discarded = len(c.association.Discarded)
	}
	return res, nil
}

// Run executes all phases.
func (c *Calculator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	c.log.Info("starting calculation", "description", c.cfg.Description)

	if err := c.PreExecute(ctx); err != nil {
		return nil, err
	}
	acc, blocks, err := c.Execute(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.PostExecute(ctx, acc)
	if err != nil {
		return nil, err
	}
	res.Blocks = blocks
	res.Duration = time.Since(start)

	c.log.Info("calculation complete", "duration", res.Duration)
	return res, nil
}

// Resume rebuilds the accumulator from a spool written by a previous run and
// exports it again. Only the fragility model is loaded, for its damage
// states.
func (c *Calculator) Resume(ctx context.Context, spoolPath string) (*Result, error) {
	start := time.Now()

	model, err := fragility.LoadModel(c.cfg.FragilityPath())
	if err != nil {
		return nil, fmt.Errorf("fragility model: %w", err)
	}
	c.model = model

	acc, blocks, err := wire.ReadSpool(spoolPath)
	if err != nil {
		return nil, err
	}
	c.log.Info("read spool", "path", spoolPath, "blocks", blocks)

	res, err := c.PostExecute(ctx, acc)
	if err != nil {
		return nil, err
	}
	res.Blocks = blocks
	res.Duration = time.Since(start)
	return res, nil
}

// Realizations returns the accumulated damage of a run without exporting
// it, for ranking realizations.
func (c *Calculator) Realizations(ctx context.Context) (*damage.Report, error) {
	if err := c.PreExecute(ctx); err != nil {
		return nil, err
	}
	acc, _, err := c.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return damage.Build(acc, c.model.DamageStates(), damage.Options{})
}
