package parquet

import (
	"github.com/parquet-go/parquet-go"
	"github.com/xtxerr/etos/internal/sales/types"
)

// pageBounds is the part of a column index that pruning needs.
type pageBounds interface {
	NumPages() int
	NullPage(int) bool
	MinValue(int) parquet.Value
	MaxValue(int) parquet.Value
}

// rowGroupMayMatch reports whether the page statistics of a row group leave
// room for a row that passes the filter. Missing statistics never prune.
func rowGroupMayMatch(rg parquet.RowGroup, f *types.Filter, article, quantity, size, store column) bool {
	chunks := rg.ColumnChunks()

	if quantity.inFile && !chunkMayMatch(chunks[quantity.index], func(_, hi int64) bool { return hi >= 0 }) {
		return false
	}

	if f.ArticleID != nil && article.inFile && !chunkMayMatch(chunks[article.index], within(*f.ArticleID)) {
		return false
	}

	if f.SizeID != nil && size.inFile && !chunkMayMatch(chunks[size.index], within(*f.SizeID)) {
		return false
	}

	if len(f.Stores) > 0 && store.inFile && !chunkMayMatch(chunks[store.index], anyWithin(f.Stores)) {
		return false
	}

	return true
}

func chunkMayMatch(chunk parquet.ColumnChunk, pred func(min, max int64) bool) bool {
	idx, err := chunk.ColumnIndex()
	if err != nil || idx == nil {
		return true
	}
	return boundsMayMatch(idx, pred)
}

// boundsMayMatch reports whether any non-null page satisfies pred. Pages whose
// bounds cannot be read as integers are assumed to match.
func boundsMayMatch(b pageBounds, pred func(min, max int64) bool) bool {
	n := b.NumPages()
	if n == 0 {
		return true
	}

	for i := 0; i < n; i++ {
		if b.NullPage(i) {
			continue
		}
		lo, ok := asInt64(b.MinValue(i))
		if !ok {
			return true
		}
		hi, ok := asInt64(b.MaxValue(i))
		if !ok {
			return true
		}
		if pred(lo, hi) {
			return true
		}
	}
	return false
}

func within(v int64) func(min, max int64) bool {
	return func(lo, hi int64) bool {
		return lo <= v && v <= hi
	}
}

func anyWithin(vs []int64) func(min, max int64) bool {
	return func(lo, hi int64) bool {
		for _, v := range vs {
			if lo <= v && v <= hi {
				return true
			}
		}
		return false
	}
}
