// Package aggregate groups scanned rows into weekly sums and splits them into
// one series per year.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/etos/internal/sales/types"
)

// Options configures the aggregator.
type Options struct {
	// Stats attaches SeriesStats to every series.
	Stats bool

	// Accuracy is the DDSketch relative accuracy used for the percentiles.
	Accuracy float64
}

// Aggregator sums scanned rows per grouping key.
type Aggregator struct {
	opts Options
}

// New creates an aggregator.
func New(opts Options) *Aggregator {
	if opts.Accuracy <= 0 || opts.Accuracy >= 1 {
		opts.Accuracy = 0.01
	}
	return &Aggregator{opts: opts}
}

type groupKey struct {
	article int64
	size    int64
	year    int64
	week    int64
	store   int64
}

// Aggregate sums quantity per group and returns one series per year in
// ascending order. Rows inside a series are ordered by week, then store, then
// size. The input order does not affect the result.
func (a *Aggregator) Aggregate(rows []types.ScannedRow, shape types.Shape) []types.Series {
	if len(rows) == 0 {
		return nil
	}

	sums := make(map[groupKey]int64, len(rows)/4+1)
	for i := range rows {
		r := &rows[i]
		k := groupKey{
			article: r.ArticleID,
			year:    r.Year,
			week:    r.Week,
			store:   r.StoreID,
		}
		if shape == types.ShapeArticleSize {
			k.size = r.SizeID
		}
		sums[k] += r.Quantity
	}

	byYear := make(map[int64][]types.AggregateRow)
	for k, sum := range sums {
		byYear[k.year] = append(byYear[k.year], types.AggregateRow{
			ArticleID:   k.article,
			SizeID:      k.size,
			Week:        k.week,
			Year:        k.year,
			StoreID:     k.store,
			QuantitySum: sum,
		})
	}

	years := make([]int64, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)

	series := make([]types.Series, 0, len(years))
	for _, y := range years {
		group := byYear[y]
		slices.SortFunc(group, compareRows)

		s := types.NewSeries(y, group)
		if a.opts.Stats {
			s.Stats = a.stats(group)
		}
		series = append(series, s)
	}

	return series
}

func compareRows(x, y types.AggregateRow) int {
	return cmp.Or(
		cmp.Compare(x.Week, y.Week),
		cmp.Compare(x.StoreID, y.StoreID),
		cmp.Compare(x.SizeID, y.SizeID),
		cmp.Compare(x.ArticleID, y.ArticleID),
	)
}

// stats summarises the weekly sums of one series. Percentiles come from a
// DDSketch and carry its relative error.
func (a *Aggregator) stats(rows []types.AggregateRow) *types.SeriesStats {
	st := &types.SeriesStats{Rows: int64(len(rows))}

	sketch, err := ddsketch.NewDefaultDDSketch(a.opts.Accuracy)
	for i, r := range rows {
		// Rows are ordered by week first.
		if i == 0 || r.Week != rows[i-1].Week {
			st.Weeks++
		}
		st.Total += r.QuantitySum
		if i == 0 || r.QuantitySum > st.Max {
			st.Max = r.QuantitySum
		}
		if err == nil {
			sketch.Add(float64(r.QuantitySum))
		}
	}

	if st.Rows > 0 {
		st.Mean = float64(st.Total) / float64(st.Rows)
	}
	if err == nil && st.Rows > 0 {
		if v, qerr := sketch.GetValueAtQuantile(0.5); qerr == nil {
			st.P50 = v
		}
		if v, qerr := sketch.GetValueAtQuantile(0.9); qerr == nil {
			st.P90 = v
		}
	}

	return st
}
