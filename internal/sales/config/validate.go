package config

import (
	"errors"
	"fmt"
	"strings"

	defaults "github.com/xtxerr/etos/config"
	etoserrors "github.com/xtxerr/etos/internal/errors"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	errs := etoserrors.NewValidationErrors()

	if c.DataDir == "" {
		errs.Add(errors.New("data_dir is required"))
	}

	if root, ok := c.Datasets[defaults.DefaultSalesDataset]; !ok || root == "" {
		errs.Add(fmt.Errorf("datasets.%s is required", defaults.DefaultSalesDataset))
	}

	if err := c.Layout.Validate(); err != nil {
		errs.Add(fmt.Errorf("layout: %w", err))
	}

	if c.StoreMapping.Path == "" {
		errs.Add(errors.New("store_mapping.path is required"))
	}

	if err := c.Stores.Validate(); err != nil {
		errs.Add(fmt.Errorf("stores: %w", err))
	}

	if err := c.Calendar.Validate(); err != nil {
		errs.Add(fmt.Errorf("calendar: %w", err))
	}

	if err := c.Scan.Validate(); err != nil {
		errs.Add(fmt.Errorf("scan: %w", err))
	}

	if err := c.Query.Validate(); err != nil {
		errs.Add(fmt.Errorf("query: %w", err))
	}

	if err := c.Features.Validate(); err != nil {
		errs.Add(fmt.Errorf("features: %w", err))
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", etoserrors.ErrInvalidConfig, errs)
	}
	return nil
}

// Validate checks the partition layout.
func (c *LayoutConfig) Validate() error {
	var errs []error

	if len(c.Keys) == 0 {
		errs = append(errs, errors.New("at least one partition key is required"))
	}

	seen := make(map[string]bool, len(c.Keys))
	for _, k := range c.Keys {
		switch {
		case k == "":
			errs = append(errs, errors.New("partition key must not be empty"))
		case strings.ContainsAny(k, "=/\\"):
			errs = append(errs, fmt.Errorf("partition key %q contains a reserved character", k))
		case seen[k]:
			errs = append(errs, fmt.Errorf("duplicate partition key %q", k))
		}
		seen[k] = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the store universe.
func (c *StoresConfig) Validate() error {
	seen := make(map[int64]bool, len(c.Universe))
	for _, id := range c.Universe {
		if seen[id] {
			return fmt.Errorf("duplicate store %d in universe", id)
		}
		seen[id] = true
	}
	return nil
}

// Validate checks the calendar configuration.
func (c *CalendarConfig) Validate() error {
	switch c.YearSource {
	case defaults.YearSourceColumn, defaults.YearSourceISO:
		return nil
	default:
		return fmt.Errorf("year_source must be one of: %s, %s", defaults.YearSourceColumn, defaults.YearSourceISO)
	}
}

// Validate checks the scan configuration.
func (c *ScanConfig) Validate() error {
	var errs []error

	validEngines := map[string]bool{
		"native": true,
		"duckdb": true,
	}
	if !validEngines[c.Engine] {
		errs = append(errs, errors.New("engine must be one of: native, duckdb"))
	}

	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.ReadBufferSize < 0 {
		errs = append(errs, errors.New("read_buffer_size must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the DuckDB configuration.
func (c *QueryConfig) Validate() error {
	if c.Threads < 0 {
		return errors.New("threads must not be negative")
	}
	if strings.ContainsAny(c.MemoryLimit, "'\";") {
		return errors.New("memory_limit contains invalid characters")
	}
	return nil
}

// Validate checks the features configuration.
func (c *FeaturesConfig) Validate() error {
	if c.SeriesStats.Enabled {
		if c.SeriesStats.Accuracy <= 0 || c.SeriesStats.Accuracy >= 1 {
			return errors.New("series_stats.accuracy must be between 0 and 1")
		}
	}
	return nil
}
