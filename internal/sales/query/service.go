// Package query implements the query facade: the three series queries of the
// dashboard and the option lists that feed its selectors.
//
// Every operation validates its parameters before touching the dataset,
// runs at most one scan, and returns a Result the caller owns. Identical
// concurrent calls share one scan. Calls made through a slot view (InSlot)
// cancel the previous call of the same slot.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/logging"
	"github.com/xtxerr/etos/internal/sales/aggregate"
	"github.com/xtxerr/etos/internal/sales/mapping"
	"github.com/xtxerr/etos/internal/sales/metrics"
	"github.com/xtxerr/etos/internal/sales/scan"
	"github.com/xtxerr/etos/internal/sales/types"
	etossync "github.com/xtxerr/etos/internal/sync"
)

// Operation names used in logs and metrics.
const (
	OpDetailByArticle        = "detail_by_article"
	OpDetailByArticleAndSize = "detail_by_article_and_size"
	OpCrossStoreByArticle    = "cross_store_by_article"
	OpListArticles           = "list_articles"
	OpListSizes              = "list_sizes"
	OpListAllArticles        = "list_all_articles"
	OpListStores             = "list_stores"
)

// References provides the reference data. Reference is the store side and
// never reads the dataset; Articles is the article universe, which takes a
// scan and is only needed by ListAllArticles.
type References interface {
	Reference(ctx context.Context) (*mapping.Reference, error)
	Articles(ctx context.Context) ([]int64, error)
}

// StaticReferences serves fixed reference data.
type StaticReferences struct {
	Ref         *mapping.Reference
	AllArticles []int64
}

// Reference returns the fixed reference.
func (s StaticReferences) Reference(context.Context) (*mapping.Reference, error) {
	return s.Ref, nil
}

// Articles returns the fixed article universe.
func (s StaticReferences) Articles(context.Context) ([]int64, error) {
	return s.AllArticles, nil
}

// Options configures the facade.
type Options struct {
	// Dataset is the logical name of the transaction dataset.
	Dataset string

	// Aggregate configures the aggregator.
	Aggregate aggregate.Options
}

// Service is the query facade.
type Service struct {
	scanner scan.Scanner
	refs    References
	agg     *aggregate.Aggregator
	dataset string
	metrics *metrics.Metrics
	log     *slog.Logger

	flights *flights
	slots   *etossync.Slots
	seq     *atomic.Uint64

	// slot is empty for the root service.
	slot string
}

// New creates a query facade. m may be nil.
func New(scanner scan.Scanner, refs References, opts Options, m *metrics.Metrics) *Service {
	return &Service{
		scanner: scanner,
		refs:    refs,
		agg:     aggregate.New(opts.Aggregate),
		dataset: opts.Dataset,
		metrics: m,
		log:     logging.Component("query"),
		flights: newFlights(),
		slots:   etossync.NewSlots(),
		seq:     new(atomic.Uint64),
	}
}

// InSlot returns a view of the service whose calls supersede each other:
// starting a call cancels the previous, still running call of the same slot,
// which then fails with ErrSuperseded. Views share scans and metrics with the
// service they came from.
func (s *Service) InSlot(slot string) *Service {
	view := *s
	view.slot = slot
	return &view
}

// Slot returns the slot of the view, or "" for the root service.
func (s *Service) Slot() string {
	return s.slot
}

// =============================================================================
// Series queries
// =============================================================================

// DetailByArticle returns the weekly sales of one article at one store, one
// series per year.
func (s *Service) DetailByArticle(ctx context.Context, store, article *int64) (*types.Result, error) {
	return s.series(ctx, OpDetailByArticle, func(context.Context) (plan, error) {
		if err := require("store", store, "article", article); err != nil {
			return plan{}, err
		}
		return plan{
			filter: types.Filter{ArticleID: types.Int64(*article), Stores: []int64{*store}},
			shape:  types.ShapeArticle,
		}, nil
	})
}

// DetailByArticleAndSize returns the weekly sales of one article in one size
// at one store, one series per year.
func (s *Service) DetailByArticleAndSize(ctx context.Context, store, article, size *int64) (*types.Result, error) {
	return s.series(ctx, OpDetailByArticleAndSize, func(context.Context) (plan, error) {
		if err := require("store", store, "article", article, "size", size); err != nil {
			return plan{}, err
		}
		return plan{
			filter: types.Filter{
				ArticleID: types.Int64(*article),
				SizeID:    types.Int64(*size),
				Stores:    []int64{*store},
			},
			shape: types.ShapeArticleSize,
		}, nil
	})
}

// CrossStoreByArticle returns the weekly sales of one article in every store
// of the configured universe, with display store numbers joined on.
func (s *Service) CrossStoreByArticle(ctx context.Context, article *int64) (*types.Result, error) {
	return s.series(ctx, OpCrossStoreByArticle, func(ctx context.Context) (plan, error) {
		if err := require("article", article); err != nil {
			return plan{}, err
		}
		ref, err := s.refs.Reference(ctx)
		if err != nil {
			return plan{}, err
		}
		universe := ref.Universe()
		if len(universe) == 0 {
			return plan{}, errors.NewValidation("stores.universe", "no stores configured or mapped")
		}
		return plan{
			filter:  types.Filter{ArticleID: types.Int64(*article), Stores: universe},
			shape:   types.ShapeArticle,
			mapping: ref.Mapping(),
			join:    true,
		}, nil
	})
}

// Request selects a single-store series query the way the dashboard toggle
// does: with SizeFilter set the size-level query runs, otherwise the
// article-level one.
type Request struct {
	Store      *int64
	Article    *int64
	Size       *int64
	SizeFilter bool
}

// Series dispatches req to DetailByArticleAndSize or DetailByArticle.
func (s *Service) Series(ctx context.Context, req Request) (*types.Result, error) {
	if req.SizeFilter {
		return s.DetailByArticleAndSize(ctx, req.Store, req.Article, req.Size)
	}
	return s.DetailByArticle(ctx, req.Store, req.Article)
}

// plan is a validated series query.
type plan struct {
	filter  types.Filter
	shape   types.Shape
	mapping *mapping.Table
	join    bool
}

func (p *plan) key(op string) string {
	return op + "|" + p.shape.String() + "|" + p.filter.Key()
}

// series runs a series query: validate, scan, aggregate and, for the cross
// store query, join.
func (s *Service) series(ctx context.Context, op string, prepare func(context.Context) (plan, error)) (*types.Result, error) {
	return run(s, ctx, op, func(ctx context.Context) (*types.Result, bool, error) {
		p, err := prepare(ctx)
		if err != nil {
			return nil, false, err
		}

		v, shared, err := s.flights.do(ctx, p.key(op), func(fctx context.Context) (any, error) {
			return s.execute(fctx, &p)
		})
		if err != nil {
			return nil, false, err
		}
		if shared {
			s.metrics.ObserveShared(op)
		}
		return v.(*types.Result).Clone(), shared, nil
	}, func(r *types.Result) bool { return r.IsEmpty() })
}

func (s *Service) execute(ctx context.Context, p *plan) (*types.Result, error) {
	out, err := s.scan(ctx, scan.Request{
		Dataset:  s.dataset,
		Filter:   p.filter,
		Calendar: true,
	})
	if err != nil {
		return nil, err
	}

	series := s.agg.Aggregate(out.Rows, p.shape)
	if p.join {
		series = mapping.Join(series, p.mapping)
	}

	return &types.Result{Series: series, Skipped: out.Skipped}, nil
}

func (s *Service) scan(ctx context.Context, req scan.Request) (*scan.Output, error) {
	out, err := s.scanner.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveScan(out.FilesScanned, out.FilesPruned, len(out.Skipped), out.RowGroupsPruned, len(out.Rows))
	return out, nil
}

// =============================================================================
// Call wrapper
// =============================================================================

// run wraps one facade call with query id, slot supersession, logging and
// metrics. empty classifies a successful result for the outcome label.
func run[T any](s *Service, ctx context.Context, op string, fn func(context.Context) (T, bool, error), empty func(T) bool) (T, error) {
	start := time.Now()

	ctx = logging.ContextWithQueryID(ctx, s.seq.Add(1))
	ctx = logging.ContextWithOperation(ctx, op)
	if s.slot != "" {
		var release func()
		ctx, release = s.slots.Enter(ctx, s.slot)
		defer release()
		ctx = logging.ContextWithSlot(ctx, s.slot)
	}

	v, shared, err := fn(ctx)
	err = etossync.Err(ctx, err)

	outcome := metrics.Classify(err)
	if err == nil && empty != nil && empty(v) {
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.ObserveQuery(op, outcome, time.Since(start))

	log := logging.WithContext(ctx)
	switch {
	case err == nil:
		log.Debug("query finished", "outcome", outcome, "shared", shared, "duration", time.Since(start))
	case outcome == metrics.OutcomeSuperseded, outcome == metrics.OutcomeCanceled:
		log.Debug("query aborted", "outcome", outcome, "error", err)
	case errors.IsValidation(err):
		log.Debug("query rejected", "outcome", outcome, "error", err)
	case errors.IsFatal(err):
		log.Error("query failed", "outcome", outcome, "error", err, "duration", time.Since(start))
	default:
		log.Warn("query failed", "outcome", outcome, "error", err)
	}

	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// require checks name/value pairs and reports every nil value as a missing
// parameter.
func require(pairs ...any) error {
	errs := errors.NewValidationErrors()
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		v, _ := pairs[i+1].(*int64)
		if v == nil {
			errs.AddMissing(name)
		}
	}
	return errs.Err()
}

// String describes the view for logs.
func (s *Service) String() string {
	if s.slot == "" {
		return fmt.Sprintf("query.Service(%s)", s.dataset)
	}
	return fmt.Sprintf("query.Service(%s, slot=%s)", s.dataset, s.slot)
}
