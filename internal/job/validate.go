package job

import (
	"errors"
	"fmt"
	"strings"

	tremorerrors "github.com/xtxerr/tremor/internal/errors"
)

var compressions = map[string]bool{
	"none": true, "snappy": true, "zstd": true, "lz4": true, "gzip": true,
}

// Validate checks the configuration for errors. All problems are reported
// at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Calculation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("calculation: %w", err))
	}
	if err := c.Statistics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("statistics: %w", err))
	}
	if err := c.Export.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("export: %w", err))
	}
	if c.Query.Threads < 0 {
		errs = append(errs, fmt.Errorf("query: %w", tremorerrors.NewInvalidValue("threads", c.Query.Threads, "must not be negative")))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the calculation configuration.
func (c *CalculationConfig) Validate() error {
	var errs []error

	if c.Exposure == "" {
		errs = append(errs, tremorerrors.NewMissingField("exposure"))
	}
	if c.Fragility == "" {
		errs = append(errs, tremorerrors.NewMissingField("fragility"))
	}
	if c.GMFs == "" {
		errs = append(errs, tremorerrors.NewMissingField("gmfs"))
	}
	if c.AssetHazardDistanceKm <= 0 {
		errs = append(errs, tremorerrors.NewInvalidValue("asset_hazard_distance_km", c.AssetHazardDistanceKm, "must be positive"))
	}
	if c.ConcurrentTasks < 1 {
		errs = append(errs, tremorerrors.NewInvalidValue("concurrent_tasks", c.ConcurrentTasks, "must be at least 1"))
	}
	if c.Workers < 0 {
		errs = append(errs, tremorerrors.NewInvalidValue("workers", c.Workers, "must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the statistics configuration.
func (c *StatisticsConfig) Validate() error {
	if c.QuantileAccuracy <= 0 || c.QuantileAccuracy >= 1 {
		return tremorerrors.NewInvalidValue("quantile_accuracy", c.QuantileAccuracy, "must be in (0, 1)")
	}
	return nil
}

// Validate checks the export configuration.
func (c *ExportConfig) Validate() error {
	var errs []error

	if c.Dir == "" {
		errs = append(errs, tremorerrors.NewMissingField("dir"))
	}
	if !compressions[strings.ToLower(strings.TrimSpace(c.Compression))] {
		errs = append(errs, tremorerrors.NewInvalidValue("compression", c.Compression, "expected none, snappy, zstd, lz4 or gzip"))
	}
	if c.RowGroupSize < 1 {
		errs = append(errs, tremorerrors.NewInvalidValue("row_group_size", c.RowGroupSize, "must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
