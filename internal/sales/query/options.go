package query

import (
	"context"
	"slices"

	"github.com/xtxerr/etos/internal/sales/metrics"
	"github.com/xtxerr/etos/internal/sales/scan"
	"github.com/xtxerr/etos/internal/sales/types"
)

// ListArticles returns the articles sold at store, ascending. Returns are
// ignored the same way the series queries ignore them, so every listed
// article yields a non-empty series.
func (s *Service) ListArticles(ctx context.Context, store *int64) ([]int64, error) {
	return run(s, ctx, OpListArticles, func(ctx context.Context) ([]int64, bool, error) {
		if err := require("store", store); err != nil {
			return nil, false, err
		}
		filter := types.Filter{Stores: []int64{*store}}
		return s.distinct(ctx, OpListArticles, filter, types.ColumnArticle)
	}, isEmpty)
}

// ListSizes returns the sizes of article sold at store, ascending.
func (s *Service) ListSizes(ctx context.Context, store, article *int64) ([]int64, error) {
	return run(s, ctx, OpListSizes, func(ctx context.Context) ([]int64, bool, error) {
		if err := require("store", store, "article", article); err != nil {
			return nil, false, err
		}
		filter := types.Filter{ArticleID: types.Int64(*article), Stores: []int64{*store}}
		return s.distinct(ctx, OpListSizes, filter, types.ColumnSize)
	}, isEmpty)
}

// ListAllArticles returns every article of the dataset with at least one
// non-negative booking, ascending. The list is computed on first use and
// kept until the reference data is reloaded.
func (s *Service) ListAllArticles(ctx context.Context) ([]int64, error) {
	return run(s, ctx, OpListAllArticles, func(ctx context.Context) ([]int64, bool, error) {
		articles, err := s.refs.Articles(ctx)
		if err != nil {
			return nil, false, err
		}
		return slices.Clone(articles), false, nil
	}, isEmpty)
}

// ListStores returns the internal ids of the store universe, ascending.
func (s *Service) ListStores(ctx context.Context) ([]int64, error) {
	return run(s, ctx, OpListStores, func(ctx context.Context) ([]int64, bool, error) {
		ref, err := s.refs.Reference(ctx)
		if err != nil {
			return nil, false, err
		}
		return ref.Universe(), false, nil
	}, isEmpty)
}

// distinct scans with filter and returns the sorted distinct values of col.
func (s *Service) distinct(ctx context.Context, op string, filter types.Filter, col string) ([]int64, bool, error) {
	key := op + "|" + filter.Key()

	v, shared, err := s.flights.do(ctx, key, func(fctx context.Context) (any, error) {
		return Distinct(fctx, s.scanner, s.metrics, scan.Request{
			Dataset:  s.dataset,
			Filter:   filter,
			Distinct: col,
		})
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		s.metrics.ObserveShared(op)
	}
	return slices.Clone(v.([]int64)), shared, nil
}

// Distinct runs a distinct scan and returns the values of req.Distinct,
// ascending. m may be nil.
func Distinct(ctx context.Context, scanner scan.Scanner, m *metrics.Metrics, req scan.Request) ([]int64, error) {
	out, err := scanner.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	m.ObserveScan(out.FilesScanned, out.FilesPruned, len(out.Skipped), out.RowGroupsPruned, len(out.Rows))

	values := make([]int64, 0, len(out.Rows))
	for i := range out.Rows {
		if req.Distinct == types.ColumnSize {
			values = append(values, out.Rows[i].SizeID)
		} else {
			values = append(values, out.Rows[i].ArticleID)
		}
	}
	slices.Sort(values)
	return slices.Compact(values), nil
}

func isEmpty(v []int64) bool {
	return len(v) == 0
}
