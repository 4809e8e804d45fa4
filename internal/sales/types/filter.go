package types

import (
	"fmt"
	"slices"
	"strings"
)

// Shape selects the grouping key used by the aggregator.
type Shape int

const (
	// ShapeArticle groups by {article, week, year, store}.
	ShapeArticle Shape = iota
	// ShapeArticleSize groups by {article, size, week, year, store}.
	ShapeArticleSize
)

// String returns a human-readable representation of the Shape.
func (s Shape) String() string {
	switch s {
	case ShapeArticle:
		return "article"
	case ShapeArticleSize:
		return "article_size"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Filter holds the row predicates of a scan. Quantity >= 0 is always applied
// and is therefore not represented.
type Filter struct {
	// ArticleID must equal custArtId. Nil matches every article, which is only
	// used to build option lists.
	ArticleID *int64

	// SizeID, if set, must equal custSizeId.
	SizeID *int64

	// Stores, if non-empty, is the allowed set of custStoreId values.
	Stores []int64
}

// Matches evaluates the filter against a fully materialised transaction.
// Scanners evaluate the same predicates column by column; this is the reference.
func (f *Filter) Matches(t *Transaction) bool {
	if t.Quantity < 0 {
		return false
	}
	if f.ArticleID != nil && t.ArticleID != *f.ArticleID {
		return false
	}
	if f.SizeID != nil && t.SizeID != *f.SizeID {
		return false
	}
	return f.AllowsStore(t.StoreID)
}

// AllowsStore reports whether the store passes the membership predicate.
func (f *Filter) AllowsStore(id int64) bool {
	if len(f.Stores) == 0 {
		return true
	}
	return slices.Contains(f.Stores, id)
}

// Key returns a canonical string for the filter, used to collapse identical
// in-flight queries.
func (f *Filter) Key() string {
	var b strings.Builder
	b.WriteString("a=")
	if f.ArticleID != nil {
		fmt.Fprintf(&b, "%d", *f.ArticleID)
	}
	b.WriteString("/s=")
	if f.SizeID != nil {
		fmt.Fprintf(&b, "%d", *f.SizeID)
	}
	b.WriteString("/st=")
	stores := slices.Clone(f.Stores)
	slices.Sort(stores)
	for i, s := range stores {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", s)
	}
	return b.String()
}

// Int64 returns a pointer to v. Handy for building filters and requests.
func Int64(v int64) *int64 {
	return &v
}
