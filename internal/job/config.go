// Package job loads the configuration of a scenario damage calculation.
//
// A job file is YAML or TOML, chosen by extension. Every setting can be
// overridden with a TREMOR_* environment variable, for example
// TREMOR_CALCULATION_WORKERS=8. Relative paths are resolved against the
// directory of the job file.
package job

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/format"
)

// EnvPrefix prefixes the environment overrides.
const EnvPrefix = "TREMOR_"

// Config represents a complete job.
type Config struct {
	// Description is a free text title copied to the export manifest.
	Description string `yaml:"description" toml:"description" env:"DESCRIPTION"`

	// Calculation configures inputs and parallelism.
	Calculation CalculationConfig `yaml:"calculation" toml:"calculation" envPrefix:"CALCULATION_"`

	// Statistics configures quantiles and realization ranking.
	Statistics StatisticsConfig `yaml:"statistics" toml:"statistics" envPrefix:"STATISTICS_"`

	// Export configures the output files.
	Export ExportConfig `yaml:"export" toml:"export" envPrefix:"EXPORT_"`

	// Query configures DuckDB for queries over exported files.
	Query QueryConfig `yaml:"query" toml:"query" envPrefix:"QUERY_"`

	// dir is the directory of the job file.
	dir string
}

// CalculationConfig configures inputs and parallelism.
type CalculationConfig struct {
	// Exposure is the exposure model file.
	Exposure string `yaml:"exposure" toml:"exposure" env:"EXPOSURE"`

	// Fragility is the fragility model file.
	Fragility string `yaml:"fragility" toml:"fragility" env:"FRAGILITY"`

	// GMFs is the ground-motion field file (.parquet, .yaml or .toml).
	GMFs string `yaml:"gmfs" toml:"gmfs" env:"GMFS"`

	// AssetHazardDistanceKm is the maximum distance between an asset and
	// its hazard site.
	AssetHazardDistanceKm float64 `yaml:"asset_hazard_distance_km" toml:"asset_hazard_distance_km" env:"ASSET_HAZARD_DISTANCE_KM"`

	// ConcurrentTasks is the number of blocks per IMT.
	ConcurrentTasks int `yaml:"concurrent_tasks" toml:"concurrent_tasks" env:"CONCURRENT_TASKS"`

	// Workers limits the blocks processed at the same time. 0 means one
	// per CPU.
	Workers int `yaml:"workers" toml:"workers" env:"WORKERS"`
}

// StatisticsConfig configures quantiles.
type StatisticsConfig struct {
	// Quantiles enables p50/p90/p95/p99 for taxonomy and total outputs.
	Quantiles bool `yaml:"quantiles" toml:"quantiles" env:"QUANTILES"`

	// QuantileAccuracy is the relative accuracy (0.01 = 1% error).
	QuantileAccuracy float64 `yaml:"quantile_accuracy" toml:"quantile_accuracy" env:"QUANTILE_ACCURACY"`
}

// ExportConfig configures the output files.
type ExportConfig struct {
	// Dir is the export directory.
	Dir string `yaml:"dir" toml:"dir" env:"DIR"`

	// Compression is the Parquet codec: none, snappy, zstd, lz4, gzip.
	Compression string `yaml:"compression" toml:"compression" env:"COMPRESSION"`

	// RowGroupSize is the maximum number of rows per row group.
	RowGroupSize int `yaml:"row_group_size" toml:"row_group_size" env:"ROW_GROUP_SIZE"`

	// Spool, when set, receives every partial accumulator so a run can be
	// post-processed again with `tremor merge`.
	Spool string `yaml:"spool" toml:"spool" env:"SPOOL"`
}

// QueryConfig configures the query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit" toml:"memory_limit" env:"MEMORY_LIMIT"`

	// Threads is the number of DuckDB threads. 0 keeps the DuckDB default.
	Threads int `yaml:"threads" toml:"threads" env:"THREADS"`
}

// Load loads a job file, applies environment overrides and validates the
// result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := format.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve job path: %w", err)
	}
	cfg.dir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate job: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TREMOR_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Calculation: CalculationConfig{
			AssetHazardDistanceKm: config.DefaultMaxSiteDistanceKm,
			ConcurrentTasks:       config.DefaultConcurrentTasks,
			Workers:               config.DefaultWorkers,
		},
		Statistics: StatisticsConfig{
			Quantiles:        false,
			QuantileAccuracy: config.DefaultQuantileAccuracy,
		},
		Export: ExportConfig{
			Dir:          config.DefaultExportDir,
			Compression:  config.DefaultCompression,
			RowGroupSize: config.DefaultRowGroupSize,
		},
		Query: QueryConfig{
			MemoryLimit: config.DefaultQueryMemoryLimit,
		},
	}
}

// Resolve returns p relative to the job file directory, or p itself when
// it is absolute or the job was not loaded from a file.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ExposurePath returns the resolved exposure path.
func (c *Config) ExposurePath() string { return c.Resolve(c.Calculation.Exposure) }

// FragilityPath returns the resolved fragility model path.
func (c *Config) FragilityPath() string { return c.Resolve(c.Calculation.Fragility) }

// GMFsPath returns the resolved ground-motion field path.
func (c *Config) GMFsPath() string { return c.Resolve(c.Calculation.GMFs) }

// ExportDir returns the resolved export directory.
func (c *Config) ExportDir() string { return c.Resolve(c.Export.Dir) }

// SpoolPath returns the resolved spool path, empty when spooling is off.
func (c *Config) SpoolPath() string { return c.Resolve(c.Export.Spool) }
