package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Calculation.Exposure = "exposure.yaml"
	cfg.Calculation.Fragility = "fragility.yaml"
	cfg.Calculation.GMFs = "gmfs.parquet"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Calculation.ConcurrentTasks != config.DefaultConcurrentTasks {
		t.Errorf("expected %d concurrent tasks, got %d", config.DefaultConcurrentTasks, cfg.Calculation.ConcurrentTasks)
	}
	if cfg.Export.Compression != config.DefaultCompression {
		t.Errorf("expected %s compression, got %s", config.DefaultCompression, cfg.Export.Compression)
	}
	if cfg.Statistics.Quantiles {
		t.Error("expected quantiles disabled by default")
	}

	// inputs are required
	if err := cfg.Validate(); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero distance", func(c *Config) { c.Calculation.AssetHazardDistanceKm = 0 }},
		{"no tasks", func(c *Config) { c.Calculation.ConcurrentTasks = 0 }},
		{"negative workers", func(c *Config) { c.Calculation.Workers = -1 }},
		{"accuracy too large", func(c *Config) { c.Statistics.QuantileAccuracy = 1 }},
		{"unknown compression", func(c *Config) { c.Export.Compression = "brotli" }},
		{"empty export dir", func(c *Config) { c.Export.Dir = "" }},
		{"zero row groups", func(c *Config) { c.Export.RowGroupSize = 0 }},
		{"negative threads", func(c *Config) { c.Query.Threads = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsValidation(err) {
				t.Errorf("expected validation category, got %v", err)
			}
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.yaml", `
description: Scenario damage Messina
calculation:
  exposure: exposure.yaml
  fragility: fragility.toml
  gmfs: /data/gmfs.parquet
  concurrent_tasks: 4
statistics:
  quantiles: true
export:
  dir: out
  compression: snappy
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Description != "Scenario damage Messina" {
		t.Errorf("unexpected description %q", cfg.Description)
	}
	if cfg.Calculation.ConcurrentTasks != 4 {
		t.Errorf("expected 4 tasks, got %d", cfg.Calculation.ConcurrentTasks)
	}
	if cfg.Calculation.AssetHazardDistanceKm != config.DefaultMaxSiteDistanceKm {
		t.Errorf("default distance lost: %f", cfg.Calculation.AssetHazardDistanceKm)
	}
	if !cfg.Statistics.Quantiles {
		t.Error("expected quantiles enabled")
	}

	abs, _ := filepath.Abs(dir)
	if got := cfg.ExposurePath(); got != filepath.Join(abs, "exposure.yaml") {
		t.Errorf("exposure path not resolved: %s", got)
	}
	if got := cfg.GMFsPath(); got != "/data/gmfs.parquet" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := cfg.ExportDir(); got != filepath.Join(abs, "out") {
		t.Errorf("export dir not resolved: %s", got)
	}
	if cfg.SpoolPath() != "" {
		t.Errorf("expected spooling off, got %s", cfg.SpoolPath())
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "job.toml", `
description = "toml job"

[calculation]
exposure = "exposure.yaml"
fragility = "fragility.yaml"
gmfs = "gmfs.yaml"
workers = 2

[export]
spool = "calc.spool"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calculation.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Calculation.Workers)
	}
	if filepath.Base(cfg.SpoolPath()) != "calc.spool" {
		t.Errorf("unexpected spool path %s", cfg.SpoolPath())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "job.yaml", `
calculation:
  exposure: exposure.yaml
  fragility: fragility.yaml
  gmfs: gmfs.yaml
  workers: 2
`)
	t.Setenv("TREMOR_CALCULATION_WORKERS", "6")
	t.Setenv("TREMOR_EXPORT_COMPRESSION", "lz4")
	t.Setenv("TREMOR_STATISTICS_QUANTILES", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calculation.Workers != 6 {
		t.Errorf("expected env override 6, got %d", cfg.Calculation.Workers)
	}
	if cfg.Export.Compression != "lz4" {
		t.Errorf("expected lz4, got %s", cfg.Export.Compression)
	}
	if !cfg.Statistics.Quantiles {
		t.Error("expected quantiles from env")
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	unknown := writeFile(t, dir, "unknown.yaml", "calculation:\n  bogus: 1\n")
	if _, err := Load(unknown); err == nil {
		t.Error("expected error for unknown field")
	}

	if _, err := Load(writeFile(t, dir, "job.json", "{}")); !errors.Is(err, errors.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	invalid := writeFile(t, dir, "invalid.yaml", "calculation:\n  exposure: e.yaml\n")
	if _, err := Load(invalid); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
