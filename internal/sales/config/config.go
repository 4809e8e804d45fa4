package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	defaults "github.com/xtxerr/etos/config"
	etoserrors "github.com/xtxerr/etos/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete query engine configuration.
type Config struct {
	// DataDir is the directory relative paths resolve against.
	DataDir string `yaml:"data_dir"`

	// Datasets maps a logical dataset name to its root directory.
	Datasets map[string]string `yaml:"datasets"`

	// Layout describes the partition directory convention.
	Layout LayoutConfig `yaml:"layout"`

	// StoreMapping locates the store id to display number table.
	StoreMapping StoreMappingConfig `yaml:"store_mapping"`

	// Stores configures the cross-store universe.
	Stores StoresConfig `yaml:"stores"`

	// Calendar configures week and year derivation.
	Calendar CalendarConfig `yaml:"calendar"`

	// Scan configures the filtered scanner.
	Scan ScanConfig `yaml:"scan"`

	// Query configures the DuckDB engine.
	Query QueryConfig `yaml:"query"`

	// Features configures optional features.
	Features FeaturesConfig `yaml:"features"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// LayoutConfig describes the hive partition layout.
type LayoutConfig struct {
	// Keys are the key=value directory segments, outermost first.
	Keys []string `yaml:"keys"`
}

// StoreMappingConfig locates the store mapping table.
type StoreMappingConfig struct {
	// Path is a Parquet (long or wide layout) or YAML file.
	Path string `yaml:"path"`
}

// StoresConfig configures the store universe of the cross-store query.
type StoresConfig struct {
	// Universe is the fixed set of internal store ids compared by the
	// cross-store query. Empty means every store in the mapping table.
	Universe []int64 `yaml:"universe"`
}

// CalendarConfig configures calendar derivation.
type CalendarConfig struct {
	// YearSource is "column" (stored year) or "iso" (ISO week-year).
	YearSource string `yaml:"year_source"`
}

// ScanConfig configures the filtered scanner.
type ScanConfig struct {
	// Engine is "native" (parquet-go) or "duckdb".
	Engine string `yaml:"engine"`

	// Workers is the number of partition files scanned concurrently.
	Workers int `yaml:"workers"`

	// Timeout bounds a single scan.
	Timeout time.Duration `yaml:"timeout"`

	// SkipCorrupt skips unreadable partitions instead of failing the query.
	// Skipped partitions are reported in the result.
	SkipCorrupt bool `yaml:"skip_corrupt"`

	// ReadBufferSize is the read buffer size per partition file.
	ReadBufferSize int `yaml:"read_buffer_size"`
}

// QueryConfig configures the DuckDB engine.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Threads is the DuckDB worker thread count (0 = DuckDB default).
	Threads int `yaml:"threads"`
}

// FeaturesConfig configures optional features.
type FeaturesConfig struct {
	// SeriesStats configures per-series summary statistics.
	SeriesStats SeriesStatsConfig `yaml:"series_stats"`
}

// SeriesStatsConfig configures per-series summary statistics.
type SeriesStatsConfig struct {
	// Enabled attaches stats to every series.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the DDSketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// JSON switches to JSON output.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, etoserrors.Wrapf(err, "read config file %s", path)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, etoserrors.Wrapf(err, "parse config file %s", path)
	}

	if err := config.Validate(); err != nil {
		return nil, etoserrors.Wrap(err, "validate config")
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaults.DefaultDataDir,
		Datasets: map[string]string{
			defaults.DefaultSalesDataset: defaults.DefaultSalesRoot,
		},
		Layout: LayoutConfig{
			Keys: slices.Clone(defaults.DefaultPartitionKeys),
		},
		StoreMapping: StoreMappingConfig{
			Path: defaults.DefaultStoreMappingPath,
		},
		Calendar: CalendarConfig{
			YearSource: defaults.DefaultYearSource,
		},
		Scan: ScanConfig{
			Engine:         defaults.DefaultScanEngine,
			Workers:        defaults.DefaultScanWorkers,
			Timeout:        defaults.DefaultScanTimeout,
			SkipCorrupt:    defaults.DefaultSkipCorrupt,
			ReadBufferSize: defaults.DefaultReadBufferSize,
		},
		Query: QueryConfig{
			MemoryLimit: defaults.DefaultQueryMemoryLimit,
			Threads:     defaults.DefaultQueryThreads,
		},
		Features: FeaturesConfig{
			SeriesStats: SeriesStatsConfig{
				Enabled:  defaults.DefaultSeriesStatsEnabled,
				Accuracy: defaults.DefaultSeriesStatsAccuracy,
			},
		},
		Logging: LoggingConfig{
			Level: defaults.DefaultLogLevel,
		},
	}
}

// Resolve returns path made absolute against DataDir.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// DatasetRoot returns the resolved root directory of a dataset.
func (c *Config) DatasetRoot(name string) (string, bool) {
	root, ok := c.Datasets[name]
	if !ok {
		return "", false
	}
	return c.Resolve(root), true
}

// StoreMappingPath returns the resolved store mapping path.
func (c *Config) StoreMappingPath() string {
	return c.Resolve(c.StoreMapping.Path)
}
