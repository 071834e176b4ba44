package calc

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/xtxerr/tremor/internal/errors"
	"github.com/xtxerr/tremor/internal/export"
	"github.com/xtxerr/tremor/internal/job"
	"github.com/xtxerr/tremor/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

func setup(t *testing.T, exposure string) *job.Config {
	t.Helper()
	s := testutil.WriteScenario(t, exposure)
	cfg, err := job.Load(s.Job)
	if err != nil {
		t.Fatalf("job.Load: %v", err)
	}
	return cfg
}

func TestRun(t *testing.T) {
	cfg := setup(t, "")
	cfg.Statistics.Quantiles = true

	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Discarded != 1 {
		t.Errorf("expected 1 discarded asset, got %d", res.Discarded)
	}
	if res.Blocks < 1 {
		t.Errorf("expected at least one block, got %d", res.Blocks)
	}
	for _, key := range export.Keys {
		path, ok := res.Outputs[key]
		if !ok {
			t.Errorf("missing output %s", key)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output %s: %v", key, err)
		}
	}

	// every realization distributes all 17 units over the damage states
	sums := make(map[string]float64)
	for _, d := range res.Report.Total {
		sums[d.GSIM] += d.Mean
		if d.Quantiles == nil {
			t.Errorf("expected quantiles for %s/%s", d.GSIM, d.DamageState.Name)
		}
	}
	for _, gsim := range []string{"g1", "g2"} {
		if math.Abs(sums[gsim]-17) > 1e-9 {
			t.Errorf("%s: expected total 17, got %f", gsim, sums[gsim])
		}
	}

	// collapse map holds one entry per asset and gsim
	if len(res.Report.CollapseMap) != 6 {
		t.Errorf("expected 6 collapse entries, got %d", len(res.Report.CollapseMap))
	}

	m, err := export.ReadManifest(res.ExportDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.CalcID != res.CalcID || m.Description != "test scenario" {
		t.Errorf("unexpected manifest %+v", m)
	}
}

func TestRun_SingleSiteDamage(t *testing.T) {
	cfg := setup(t, `
assets:
  - {id: a1, taxonomy: RC, number: 10, lon: 15.50, lat: 38.10}
`)
	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// g1 at site 1 is 0.3 in every realization: fractions [0.4, 0.3, 0.3]
	want := []float64{4, 3, 3}
	for _, d := range res.Report.PerAsset {
		if d.GSIM != "g1" {
			continue
		}
		if math.Abs(d.Mean-want[d.DamageState.Index]) > 1e-9 {
			t.Errorf("%s: expected mean %f, got %f", d.DamageState.Name, want[d.DamageState.Index], d.Mean)
		}
		if math.Abs(d.Stddev) > 1e-9 {
			t.Errorf("%s: expected zero stddev, got %f", d.DamageState.Name, d.Stddev)
		}
	}
}

func TestResume(t *testing.T) {
	cfg := setup(t, "")
	cfg.Export.Spool = "calc.spool"

	first, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	cfg.Export.Dir = "resumed"
	second, err := New(cfg).Resume(context.Background(), cfg.SpoolPath())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if second.Blocks != first.Blocks {
		t.Errorf("expected %d blocks, got %d", first.Blocks, second.Blocks)
	}

	for _, gsim := range first.Report.GSIMs() {
		a, _ := first.Report.Totals(gsim)
		b, ok := second.Report.Totals(gsim)
		if !ok {
			t.Fatalf("missing totals for %s", gsim)
		}
		if !mat.EqualApprox(a, b, 1e-9) {
			t.Errorf("%s totals differ after resume", gsim)
		}
	}
}

func TestPreExecute_UnknownTaxonomy(t *testing.T) {
	cfg := setup(t, `
assets:
  - {id: a1, taxonomy: ADOBE, number: 1, lon: 15.48, lat: 38.09}
`)
	err := New(cfg).PreExecute(context.Background())
	if !errors.Is(err, errors.ErrUnknownTaxonomy) {
		t.Errorf("expected ErrUnknownTaxonomy, got %v", err)
	}
}

func TestPreExecute_NoAssetNearSites(t *testing.T) {
	cfg := setup(t, `
assets:
  - {id: a1, taxonomy: RC, number: 1, lon: 0.0, lat: 0.0}
`)
	err := New(cfg).PreExecute(context.Background())
	if !errors.Is(err, errors.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestExecute_BeforePreExecute(t *testing.T) {
	cfg := setup(t, "")
	if _, _, err := New(cfg).Execute(context.Background()); !errors.Is(err, errors.ErrInternal) {
		t.Errorf("expected ErrInternal, got %v", err)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	cfg := setup(t, "")
	c := New(cfg)
	if err := c.PreExecute(context.Background()); err != nil {
		t.Fatalf("PreExecute: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExecute_FailedRunDiscardsSpool(t *testing.T) {
	cfg := setup(t, "")
	cfg.Export.Spool = "calc.spool"

	if _, err := New(cfg).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(cfg.SpoolPath()); err != nil {
		t.Fatalf("expected spool after a successful run: %v", err)
	}

	c := New(cfg)
	if err := c.PreExecute(context.Background()); err != nil {
		t.Fatalf("PreExecute: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Execute(ctx); err == nil {
		t.Fatal("expected cancelled run to fail")
	}

	for _, p := range []string{cfg.SpoolPath(), cfg.SpoolPath() + ".partial"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, got %v", p, err)
		}
	}
	if _, err := New(cfg).Resume(context.Background(), cfg.SpoolPath()); !errors.IsNotFound(err) {
		t.Errorf("expected no spool to resume from, got %v", err)
	}
}

func TestRun_CompressionNameIgnoresCase(t *testing.T) {
	cfg := setup(t, "")
	cfg.Export.Compression = "SNAPPY"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	res, err := New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m, err := export.ReadManifest(res.ExportDir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.Compression != "snappy" {
		t.Errorf("expected snappy compression, got %s", m.Compression)
	}
}
