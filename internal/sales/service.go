package sales

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	defaults "github.com/xtxerr/etos/config"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/logging"
	"github.com/xtxerr/etos/internal/sales/aggregate"
	"github.com/xtxerr/etos/internal/sales/config"
	"github.com/xtxerr/etos/internal/sales/dataset"
	"github.com/xtxerr/etos/internal/sales/mapping"
	"github.com/xtxerr/etos/internal/sales/metrics"
	"github.com/xtxerr/etos/internal/sales/query"
	"github.com/xtxerr/etos/internal/sales/scan"
	"github.com/xtxerr/etos/internal/sales/types"
	etossync "github.com/xtxerr/etos/internal/sync"
)

// Options holds dependencies that do not come from the configuration.
type Options struct {
	// Registerer receives the engine metrics. Nil uses the default registry.
	Registerer prometheus.Registerer

	// Scanner replaces the scanner selected by scan.engine.
	Scanner scan.Scanner
}

// Service is the query engine. It owns the scanner and the reference data
// and hands out the query facade.
type Service struct {
	config  *config.Config
	locator *dataset.Locator
	scanner scan.Scanner
	metrics *metrics.Metrics
	query   *query.Service
	log     *slog.Logger

	reference etossync.Lazy[*mapping.Reference]
	articles  etossync.Lazy[[]int64]

	closed    atomic.Bool
	startTime time.Time
}

// New creates the engine. The dataset and the store mapping are not touched
// until the first query.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	roots := make(map[string]string, len(cfg.Datasets))
	for name := range cfg.Datasets {
		root, _ := cfg.DatasetRoot(name)
		roots[name] = root
	}
	locator := dataset.NewLocator(roots, dataset.Layout{Keys: cfg.Layout.Keys})

	scanner := opts.Scanner
	if scanner == nil {
		var err error
		scanner, err = scan.New(cfg.Scan.Engine, locator, scan.OptionsFromConfig(cfg))
		if err != nil {
			return nil, errors.Wrap(err, "create scanner")
		}
	}

	s := &Service{
		config:    cfg,
		locator:   locator,
		scanner:   scanner,
		metrics:   metrics.New(opts.Registerer),
		log:       logging.Component("engine"),
		startTime: time.Now(),
	}

	s.query = query.New(scanner, s, query.Options{
		Dataset: defaults.DefaultSalesDataset,
		Aggregate: aggregate.Options{
			Stats:    cfg.Features.SeriesStats.Enabled,
			Accuracy: cfg.Features.SeriesStats.Accuracy,
		},
	}, s.metrics)

	return s, nil
}

// Query returns the query facade.
func (s *Service) Query() *query.Service {
	return s.query
}

// Config returns the configuration the engine was built from.
func (s *Service) Config() *config.Config {
	return s.config
}

// Reference returns the store reference data, loading it on first use. It
// reads the store mapping file only; the dataset is not touched.
func (s *Service) Reference(ctx context.Context) (*mapping.Reference, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("engine closed")
	}
	return s.reference.Get(s.loadReference)
}

// Articles returns every article with at least one non-negative booking,
// ascending. The list takes a scan of the whole dataset and is computed on
// first use.
func (s *Service) Articles(ctx context.Context) ([]int64, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("engine closed")
	}
	return s.articles.Get(func() ([]int64, error) {
		return s.loadArticles(ctx)
	})
}

// Reload discards the reference data and the article list. The next query
// loads them again, which picks up a changed store mapping or newly added
// articles.
func (s *Service) Reload() {
	s.reference.Reset()
	s.articles.Reset()
	s.log.Info("reference data reset")
}

// Close releases the scanner.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.scanner.Close(); err != nil {
		return errors.Wrap(err, "close scanner")
	}
	return nil
}

// loadReference reads the store mapping and resolves the store universe.
func (s *Service) loadReference() (*mapping.Reference, error) {
	universe := s.config.Stores.Universe

	tbl, err := mapping.Load(s.config.StoreMappingPath())
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrMappingNotFound) && len(universe) > 0:
		// The cross-store query still works with a configured universe;
		// every row just lacks its display number.
		s.log.Warn("store mapping not found, display numbers unavailable",
			"path", s.config.StoreMappingPath())
		tbl = nil
	default:
		return nil, errors.Wrap(err, "load store mapping")
	}

	ref := mapping.NewReference(tbl, universe)

	mapped := 0
	if tbl != nil {
		mapped = tbl.Len()
	}
	s.log.Info("reference data loaded",
		"stores", len(ref.Universe()),
		"mapped", mapped)

	return ref, nil
}

// loadArticles runs a distinct scan over the whole dataset. Rows are
// deduplicated per file while scanning, so memory follows the number of
// articles rather than the number of rows.
func (s *Service) loadArticles(ctx context.Context) ([]int64, error) {
	start := time.Now()

	articles, err := query.Distinct(ctx, s.scanner, s.metrics, scan.Request{
		Dataset:  defaults.DefaultSalesDataset,
		Distinct: types.ColumnArticle,
	})
	if err != nil {
		return nil, errors.Wrap(err, "load article universe")
	}

	s.log.Info("article universe loaded",
		"articles", len(articles),
		"duration", time.Since(start))

	return articles, nil
}

// Stats returns engine statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Engine:          s.config.Scan.Engine,
		Uptime:          time.Since(s.startTime),
		ReferenceLoaded: s.reference.Loaded(),
		ArticlesLoaded:  s.articles.Loaded(),
		Closed:          s.closed.Load(),
	}
}

// ServiceStats holds engine statistics.
type ServiceStats struct {
	Engine          string
	Uptime          time.Duration
	ReferenceLoaded bool
	ArticlesLoaded  bool
	Closed          bool
}
