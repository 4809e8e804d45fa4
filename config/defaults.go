// Package config provides configuration defaults and utilities
// for the etos query engine.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Dataset Defaults
// =============================================================================

const (
	// DefaultDataDir is the directory relative dataset roots resolve against.
	// Override via config: data_dir
	DefaultDataDir = "/var/lib/etos"

	// DefaultSalesDataset is the logical name of the transaction dataset.
	// The query facade always reads this dataset.
	DefaultSalesDataset = "sales"

	// DefaultSalesRoot is the directory holding the partitioned sales files.
	// Override via config: datasets.sales
	DefaultSalesRoot = "sales"

	// DefaultStoreMappingPath is the store id to display number table.
	// Override via config: store_mapping.path
	DefaultStoreMappingPath = "stores.parquet"
)

// DefaultPartitionKeys is the hive partition layout, outermost first.
// Override via config: layout.keys
var DefaultPartitionKeys = []string{"custStoreId", "year"}

// =============================================================================
// Scan Defaults
// =============================================================================

const (
	// DefaultScanEngine selects the scanner implementation: native or duckdb.
	// Override via config: scan.engine
	DefaultScanEngine = "native"

	// DefaultScanWorkers is the number of partition files scanned concurrently.
	// Override via config: scan.workers
	DefaultScanWorkers = 8

	// DefaultScanTimeout bounds a single scan. Exceeding it yields ScanTimeout.
	// Override via config: scan.timeout
	DefaultScanTimeout = 30 * time.Second

	// DefaultReadBufferSize is the buffered read size used per partition file.
	// Override via config: scan.read_buffer_size
	DefaultReadBufferSize = 1024 * 1024

	// DefaultSkipCorrupt keeps strict mode: a bad partition fails the query.
	// Override via config: scan.skip_corrupt
	DefaultSkipCorrupt = false
)

// =============================================================================
// DuckDB Defaults
// =============================================================================

const (
	// DefaultQueryMemoryLimit is the DuckDB memory limit for the duckdb engine.
	// Override via config: query.memory_limit
	DefaultQueryMemoryLimit = "2GB"

	// DefaultQueryThreads is the DuckDB thread count. 0 lets DuckDB decide.
	// Override via config: query.threads
	DefaultQueryThreads = 0
)

// =============================================================================
// Feature Defaults
// =============================================================================

const (
	// DefaultSeriesStatsEnabled attaches summary statistics to every series.
	// Override via config: features.series_stats.enabled
	DefaultSeriesStatsEnabled = true

	// DefaultSeriesStatsAccuracy is the DDSketch relative accuracy (0.01 = 1%).
	// Override via config: features.series_stats.accuracy
	DefaultSeriesStatsAccuracy = 0.01
)

// =============================================================================
// Calendar Defaults
// =============================================================================

const (
	// YearSourceColumn keys series by the stored year column.
	YearSourceColumn = "column"

	// YearSourceISO keys series by the ISO week-year of the booking date.
	YearSourceISO = "iso"

	// DefaultYearSource matches how the dataset is labelled upstream.
	// Override via config: calendar.year_source
	DefaultYearSource = YearSourceColumn
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the minimum level written.
	// Override via config: logging.level
	DefaultLogLevel = "info"
)
