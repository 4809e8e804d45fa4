package types

import "strconv"

// AggregateRow is the summed quantity for one grouping key.
type AggregateRow struct {
	ArticleID int64
	SizeID    int64 // only meaningful for ShapeArticleSize
	Week      int64
	Year      int64
	StoreID   int64

	// QuantitySum is the 64-bit sum of quantity over the group.
	QuantitySum int64

	// DisplayStore is the externally shown store number. Only the cross-store
	// query fills it; nil means the store is absent from the mapping table.
	DisplayStore *int64
}

// HasDisplayStore returns true if the row was matched by the store mapping.
func (r *AggregateRow) HasDisplayStore() bool {
	return r.DisplayStore != nil
}

// SeriesStats summarises the weekly sums of a series. A cross-store series
// has one weekly sum per (week, store), so Rows can exceed Weeks.
type SeriesStats struct {
	Rows  int64   // Number of weekly sums
	Weeks int64   // Distinct weeks with sales
	Total int64   // Sum of all weekly sums
	Max   int64   // Largest weekly sum
	Mean  float64 // Total / Rows
	P50   float64 // Median weekly sum (DDSketch estimate)
	P90   float64 // 90th percentile weekly sum (DDSketch estimate)
}

// Series is the ordered set of aggregate rows for one year.
type Series struct {
	Year  int64
	Label string
	Rows  []AggregateRow
	Stats *SeriesStats
}

// NewSeries creates a series for year with the given rows.
func NewSeries(year int64, rows []AggregateRow) Series {
	return Series{
		Year:  year,
		Label: strconv.FormatInt(year, 10),
		Rows:  rows,
	}
}

// Len returns the number of rows in the series.
func (s *Series) Len() int {
	return len(s.Rows)
}

// Clone returns a deep copy of the series.
func (s *Series) Clone() Series {
	out := *s
	out.Rows = make([]AggregateRow, len(s.Rows))
	for i, r := range s.Rows {
		if r.DisplayStore != nil {
			v := *r.DisplayStore
			r.DisplayStore = &v
		}
		out.Rows[i] = r
	}
	if s.Stats != nil {
		st := *s.Stats
		out.Stats = &st
	}
	return out
}

// SkippedPartition records a partition file left out in skip-and-continue mode.
type SkippedPartition struct {
	Path   string
	Reason string
}

// Result is what a query facade operation returns.
type Result struct {
	// Series holds one entry per year present in the data, ascending by year.
	// Empty when no rows matched; that is a valid result, not an error.
	Series []Series

	// Skipped lists partitions skipped because they could not be read.
	// Always empty in strict mode.
	Skipped []SkippedPartition
}

// IsEmpty returns true if no rows matched.
func (r *Result) IsEmpty() bool {
	return len(r.Series) == 0
}

// Years returns the series years in order.
func (r *Result) Years() []int64 {
	years := make([]int64, len(r.Series))
	for i := range r.Series {
		years[i] = r.Series[i].Year
	}
	return years
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	out := &Result{
		Series:  make([]Series, len(r.Series)),
		Skipped: append([]SkippedPartition(nil), r.Skipped...),
	}
	for i := range r.Series {
		out.Series[i] = r.Series[i].Clone()
	}
	return out
}
