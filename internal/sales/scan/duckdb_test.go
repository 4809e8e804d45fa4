package scan

import (
	"context"
	"strings"
	"testing"
	"time"

	defaults "github.com/xtxerr/etos/config"
	"github.com/xtxerr/etos/internal/errors"
	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
	testutil "github.com/xtxerr/etos/internal/testing"
)

func TestQuoteList(t *testing.T) {
	got := quoteList([]string{"/data/a.parquet", "/data/o'neil.parquet"})
	want := "['/data/a.parquet', '/data/o''neil.parquet']"
	if got != want {
		t.Errorf("quoteList = %s, want %s", got, want)
	}
}

func TestBuildQuery(t *testing.T) {
	req := &Request{
		Filter: types.Filter{
			ArticleID: types.Int64(7),
			SizeID:    types.Int64(2),
			Stores:    []int64{10, 11},
		},
		Calendar: true,
	}

	query, args := buildQuery([]string{"/data/a.parquet"}, req, false)

	for _, part := range []string{
		"quantity >= 0",
		"custArtId = ?",
		"custSizeId = ?",
		"IN (?, ?)",
		"hive_partitioning = true",
		"weekofyear(d)",
		"'%Y%m%d'",
	} {
		if !strings.Contains(query, part) {
			t.Errorf("query missing %q:\n%s", part, query)
		}
	}
	if len(args) != 4 {
		t.Errorf("expected 4 args, got %v", args)
	}

	query, _ = buildQuery([]string{"/data/a.parquet"}, &Request{Distinct: types.ColumnSize}, true)
	if !strings.Contains(query, "SELECT DISTINCT CAST(custSizeId AS BIGINT)") {
		t.Errorf("distinct query should select sizes:\n%s", query)
	}

	query, args = buildQuery([]string{"/data/a.parquet"}, &Request{}, true)
	if strings.Contains(query, "weekofyear") {
		t.Errorf("option query should not derive weeks:\n%s", query)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestDuckDBMatchesNative(t *testing.T) {
	opts := pq.DefaultOptions()
	opts.OmitColumns = []string{types.ColumnStore, types.ColumnYear}
	locator, _ := fixture(t, opts)

	sopts := nativeOptions()
	sopts.MemoryLimit = defaults.DefaultQueryMemoryLimit

	duck, err := NewDuckDB(locator, sopts)
	if err != nil {
		t.Fatalf("NewDuckDB: %v", err)
	}
	defer duck.Close()

	native := NewNative(locator, sopts)

	req := Request{
		Dataset:  "sales",
		Filter:   types.Filter{ArticleID: types.Int64(7), Stores: []int64{10, 11}},
		Calendar: true,
	}

	want, err := native.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("native Scan: %v", err)
	}
	got, err := duck.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("duckdb Scan: %v", err)
	}

	wantSums, gotSums := sumRows(want.Rows), sumRows(got.Rows)
	if len(gotSums) != len(wantSums) {
		t.Fatalf("duckdb %v, native %v", gotSums, wantSums)
	}
	for k, v := range wantSums {
		if gotSums[k] != v {
			t.Errorf("%+v: duckdb %d, native %d", k, gotSums[k], v)
		}
	}
	if got.FilesPruned != want.FilesPruned {
		t.Errorf("FilesPruned: duckdb %d, native %d", got.FilesPruned, want.FilesPruned)
	}
}

func TestDuckDBSkipCorrupt(t *testing.T) {
	opts := pq.DefaultOptions()
	opts.OmitColumns = []string{types.ColumnStore, types.ColumnYear}
	locator, root := fixture(t, opts)
	testutil.WriteCorruptPartition(t, root, 14, 2023)

	sopts := nativeOptions()
	sopts.SkipCorrupt = true

	duck, err := NewDuckDB(locator, sopts)
	if err != nil {
		t.Fatalf("NewDuckDB: %v", err)
	}
	defer duck.Close()

	out, err := duck.Scan(context.Background(), Request{
		Dataset:  "sales",
		Filter:   types.Filter{ArticleID: types.Int64(7)},
		Calendar: true,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out.Skipped) != 1 || out.Skipped[0].Path != testutil.PartitionPath(root, 14, 2023) {
		t.Errorf("unexpected skipped partitions %v", out.Skipped)
	}
	if len(out.Rows) == 0 {
		t.Error("expected rows from readable partitions")
	}

	sopts.SkipCorrupt = false
	strict, err := NewDuckDB(locator, sopts)
	if err != nil {
		t.Fatalf("NewDuckDB: %v", err)
	}
	defer strict.Close()

	_, err = strict.Scan(context.Background(), Request{Dataset: "sales", Calendar: true})
	if !errors.Is(err, errors.ErrCorruptFile) {
		t.Errorf("strict: expected ErrCorruptFile, got %v", err)
	}
}

func TestDuckDBDistinct(t *testing.T) {
	opts := pq.DefaultOptions()
	opts.OmitColumns = []string{types.ColumnStore, types.ColumnYear}
	locator, _ := fixture(t, opts)

	duck, err := NewDuckDB(locator, nativeOptions())
	if err != nil {
		t.Fatalf("NewDuckDB: %v", err)
	}
	defer duck.Close()

	out, err := duck.Scan(context.Background(), Request{Dataset: "sales", Distinct: types.ColumnArticle})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []int64
	for _, r := range out.Rows {
		got = append(got, r.ArticleID)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 7 || got[2] != 9 {
		t.Errorf("articles = %v, want [3 7 9]", got)
	}
}

func TestDuckDBTimeout(t *testing.T) {
	opts := pq.DefaultOptions()
	opts.OmitColumns = []string{types.ColumnStore, types.ColumnYear}
	locator, _ := fixture(t, opts)

	sopts := nativeOptions()
	sopts.Timeout = time.Nanosecond

	duck, err := NewDuckDB(locator, sopts)
	if err != nil {
		t.Fatalf("NewDuckDB: %v", err)
	}
	defer duck.Close()

	_, err = duck.Scan(context.Background(), Request{Dataset: "sales", Calendar: true})
	if !errors.Is(err, errors.ErrScanTimeout) {
		t.Errorf("expected ErrScanTimeout, got %v", err)
	}
}
