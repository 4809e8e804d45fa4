package mapping

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xtxerr/etos/internal/errors"
	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
)

var sampleRows = []types.StoreMapping{
	{InternalStoreID: 10, DisplayStoreNumber: 101},
	{InternalStoreID: 11, DisplayStoreNumber: 205},
}

func TestLoadLayouts(t *testing.T) {
	dir := t.TempDir()

	long := filepath.Join(dir, "long.parquet")
	if err := pq.WriteMappingLong(long, sampleRows); err != nil {
		t.Fatalf("WriteMappingLong: %v", err)
	}
	wide := filepath.Join(dir, "wide.parquet")
	if err := pq.WriteMappingWide(wide, sampleRows); err != nil {
		t.Fatalf("WriteMappingWide: %v", err)
	}
	yml := filepath.Join(dir, "stores.yaml")
	data := "stores:\n  - internal: 10\n    display: 101\n  - internal: 11\n    display: 205\n"
	if err := os.WriteFile(yml, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, path := range []string{long, wide, yml} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			tbl, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tbl.Len() != 2 {
				t.Errorf("Len = %d, want 2", tbl.Len())
			}
			if n, ok := tbl.Lookup(11); !ok || n != 205 {
				t.Errorf("Lookup(11) = %d, %v", n, ok)
			}
			if _, ok := tbl.Lookup(99); ok {
				t.Error("Lookup(99) should miss")
			}
			if ids := tbl.InternalIDs(); !reflect.DeepEqual(ids, []int64{10, 11}) {
				t.Errorf("InternalIDs = %v", ids)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.parquet"))
	if !errors.Is(err, errors.ErrMappingNotFound) {
		t.Errorf("expected ErrMappingNotFound, got %v", err)
	}
}

func TestNewTableConflict(t *testing.T) {
	_, err := NewTable([]types.StoreMapping{
		{InternalStoreID: 10, DisplayStoreNumber: 101},
		{InternalStoreID: 10, DisplayStoreNumber: 102},
	})
	if err == nil {
		t.Error("expected conflict error")
	}

	tbl, err := NewTable([]types.StoreMapping{
		{InternalStoreID: 10, DisplayStoreNumber: 101},
		{InternalStoreID: 10, DisplayStoreNumber: 101},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if tbl.Len() != 1 {
		t.Errorf("Len = %d, want 1", tbl.Len())
	}
}

func TestJoinLeft(t *testing.T) {
	tbl, err := NewTable(sampleRows)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	in := []types.Series{
		types.NewSeries(2023, []types.AggregateRow{
			{ArticleID: 7, Week: 1, Year: 2023, StoreID: 10, QuantitySum: 8},
			{ArticleID: 7, Week: 1, Year: 2023, StoreID: 12, QuantitySum: 2},
		}),
	}

	out := Join(in, tbl)

	if len(out) != 1 || out[0].Len() != 2 {
		t.Fatalf("join dropped rows: %+v", out)
	}
	if !out[0].Rows[0].HasDisplayStore() || *out[0].Rows[0].DisplayStore != 101 {
		t.Errorf("store 10 not joined: %+v", out[0].Rows[0])
	}
	if out[0].Rows[1].HasDisplayStore() {
		t.Errorf("store 12 should have no display number: %+v", out[0].Rows[1])
	}
	if out[0].Rows[1].StoreID != 12 || out[0].Rows[1].QuantitySum != 2 {
		t.Errorf("unmatched row changed: %+v", out[0].Rows[1])
	}

	if in[0].Rows[0].DisplayStore != nil {
		t.Error("input series was modified")
	}
}

func TestReference(t *testing.T) {
	tbl, err := NewTable(sampleRows)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	ref := NewReference(tbl, nil)
	if got := ref.Universe(); !reflect.DeepEqual(got, []int64{10, 11}) {
		t.Errorf("Universe = %v, want mapping ids", got)
	}

	ref = NewReference(tbl, []int64{12, 10, 12})
	if got := ref.Universe(); !reflect.DeepEqual(got, []int64{10, 12}) {
		t.Errorf("Universe = %v, want configured ids", got)
	}

	u := ref.Universe()
	u[0] = 99
	if ref.Universe()[0] != 10 {
		t.Error("Universe exposed internal slice")
	}

	if got := NewReference(nil, nil).Universe(); len(got) != 0 {
		t.Errorf("Universe without mapping = %v, want empty", got)
	}
}
