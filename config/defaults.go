// Package config provides configuration defaults for tremor.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values in the job file or via TREMOR_*
// environment variables.
package config

// =============================================================================
// Calculation Defaults
// =============================================================================

const (
	// DefaultMaxSiteDistanceKm is the largest distance between an asset and
	// the hazard site it is associated with. Assets farther away from every
	// site are discarded.
	// Override via job: calculation.asset_hazard_distance_km
	DefaultMaxSiteDistanceKm = 5.0

	// DefaultConcurrentTasks is the number of blocks the risk inputs of one
	// IMT are split into.
	// Override via job: calculation.concurrent_tasks
	DefaultConcurrentTasks = 16

	// DefaultWorkers is the number of blocks processed at the same time.
	// Zero means one per CPU.
	// Override via job: calculation.workers
	DefaultWorkers = 0
)

// =============================================================================
// Statistics Defaults
// =============================================================================

const (
	// DefaultQuantileAccuracy is the relative accuracy of DDSketch quantiles
	// reported for taxonomy and total damage distributions.
	// Range: 0.001-0.1
	// Override via job: statistics.quantile_accuracy
	DefaultQuantileAccuracy = 0.01

	// DefaultPickRlzsMinValue is the threshold below which mean damage values
	// are ignored when ranking realizations by RMSEP.
	// Override via flag: pick-rlzs --min-value
	DefaultPickRlzsMinValue = 0.01
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportDir is where outputs are written, relative to the job
	// file directory when not absolute.
	// Override via job: export.dir
	DefaultExportDir = "output"

	// DefaultCompression is the Parquet compression codec of exported files.
	// Values: none, snappy, zstd, lz4, gzip
	// Override via job: export.compression
	DefaultCompression = "zstd"

	// DefaultRowGroupSize is the maximum number of rows per Parquet row group.
	// Override via job: export.row_group_size
	DefaultRowGroupSize = 100000
)

// =============================================================================
// Spool Defaults
// =============================================================================

const (
	// DefaultMaxFrameSize limits the size of one spooled frame to prevent
	// OOM when resuming from a corrupted spool.
	// 64 MiB holds the damage matrices of several thousand assets.
	DefaultMaxFrameSize = 64 * 1024 * 1024

	// SpoolVersion is the version written in spool headers.
	SpoolVersion = 1
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultQueryMemoryLimit is the DuckDB memory limit for queries over
	// exported files.
	// Override via job: query.memory_limit
	DefaultQueryMemoryLimit = "1GB"

	// DefaultShellHistorySize is the number of statements kept by the
	// interactive query shell.
	DefaultShellHistorySize = 100
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the log level when neither --log-level nor
	// TREMOR_LOG_LEVEL is set.
	DefaultLogLevel = "info"
)
