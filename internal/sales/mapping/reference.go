package mapping

import "slices"

// Reference is the store reference data: the store mapping and the store
// universe of the cross-store query. It comes from the mapping file and the
// configuration only and is never modified afterwards.
type Reference struct {
	mapping  *Table
	universe []int64
}

// NewReference creates the reference data. An empty universe falls back to
// every store in the mapping table.
func NewReference(t *Table, universe []int64) *Reference {
	if len(universe) == 0 && t != nil {
		universe = t.InternalIDs()
	}

	u := slices.Clone(universe)
	slices.Sort(u)
	u = slices.Compact(u)

	return &Reference{
		mapping:  t,
		universe: u,
	}
}

// Mapping returns the store mapping table.
func (r *Reference) Mapping() *Table {
	return r.mapping
}

// Universe returns the internal ids of the stores compared by the cross-store
// query, ascending.
func (r *Reference) Universe() []int64 {
	return slices.Clone(r.universe)
}
