package types

import "testing"

func TestFilterMatches(t *testing.T) {
	tx := Transaction{ArticleID: 7, SizeID: 3, StoreID: 10, BookingDate: "20230102", Quantity: 5, Year: 2023}

	tests := []struct {
		name   string
		filter Filter
		tx     Transaction
		want   bool
	}{
		{"article only", Filter{ArticleID: Int64(7)}, tx, true},
		{"wrong article", Filter{ArticleID: Int64(8)}, tx, false},
		{"size match", Filter{ArticleID: Int64(7), SizeID: Int64(3)}, tx, true},
		{"size mismatch", Filter{ArticleID: Int64(7), SizeID: Int64(4)}, tx, false},
		{"store in set", Filter{ArticleID: Int64(7), Stores: []int64{9, 10}}, tx, true},
		{"store not in set", Filter{ArticleID: Int64(7), Stores: []int64{9}}, tx, false},
		{"zero quantity", Filter{ArticleID: Int64(7)}, Transaction{ArticleID: 7, Quantity: 0}, true},
		{"negative quantity", Filter{ArticleID: Int64(7)}, Transaction{ArticleID: 7, Quantity: -1}, false},
		{"no article filter", Filter{}, tx, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(&tt.tx); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterKeyCanonical(t *testing.T) {
	a := Filter{ArticleID: Int64(7), Stores: []int64{12, 10, 11}}
	b := Filter{ArticleID: Int64(7), Stores: []int64{10, 11, 12}}

	if a.Key() != b.Key() {
		t.Errorf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}

	c := Filter{ArticleID: Int64(7), SizeID: Int64(3), Stores: []int64{10, 11, 12}}
	if a.Key() == c.Key() {
		t.Error("size filter should change the key")
	}

	// Key must not reorder the caller's slice.
	if a.Stores[0] != 12 {
		t.Error("Key() mutated Stores")
	}
}

func TestCalendarKeyString(t *testing.T) {
	b := CalendarKey{Year: 2023, Week: 1}
	if b.String() != "2023-W01" {
		t.Errorf("expected 2023-W01, got %s", b.String())
	}
}

func TestResultClone(t *testing.T) {
	display := int64(301)
	r := &Result{
		Series: []Series{
			NewSeries(2023, []AggregateRow{{ArticleID: 7, Week: 1, Year: 2023, StoreID: 10, QuantitySum: 8, DisplayStore: &display}}),
		},
	}

	c := r.Clone()
	*c.Series[0].Rows[0].DisplayStore = 999
	c.Series[0].Rows[0].QuantitySum = 1

	if *r.Series[0].Rows[0].DisplayStore != 301 {
		t.Error("clone shares DisplayStore pointer")
	}
	if r.Series[0].Rows[0].QuantitySum != 8 {
		t.Error("clone shares rows")
	}
	if r.Series[0].Label != "2023" {
		t.Errorf("expected label 2023, got %q", r.Series[0].Label)
	}
}
