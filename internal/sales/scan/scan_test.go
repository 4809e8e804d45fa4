package scan

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	defaults "github.com/xtxerr/etos/config"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales/dataset"
	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
	testutil "github.com/xtxerr/etos/internal/testing"
)

type rowKey struct {
	article, size, store, year, week int64
}

func sumRows(rows []types.ScannedRow) map[rowKey]int64 {
	out := make(map[rowKey]int64)
	for _, r := range rows {
		out[rowKey{r.ArticleID, r.SizeID, r.StoreID, r.Year, r.Week}] += r.Quantity
	}
	return out
}

func fixture(t *testing.T, opts pq.Options) (*dataset.Locator, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "sales")
	testutil.WriteDataset(t, root, []types.Transaction{
		testutil.Tx(7, 1, 10, "20230102", 5),
		testutil.Tx(7, 1, 10, "20230105", 3),
		testutil.Tx(7, 2, 10, "20230110", 4),
		testutil.Tx(7, 1, 10, "20230111", -6),
		testutil.Tx(9, 1, 10, "20230102", 1),
		testutil.Tx(7, 1, 11, "20230103", 2),
		testutil.Tx(3, 1, 12, "20230103", 8),
		testutil.Tx(7, 1, 10, "20240101", 1),
	}, opts)

	locator := dataset.NewLocator(
		map[string]string{"sales": root},
		dataset.Layout{Keys: []string{types.ColumnStore, types.ColumnYear}},
	)
	return locator, root
}

func nativeOptions() Options {
	return Options{
		Workers:    2,
		Timeout:    10 * time.Second,
		YearSource: defaults.YearSourceColumn,
	}
}

func TestNativeScanFilter(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())
	s := NewNative(locator, nativeOptions())
	defer s.Close()

	out, err := s.Scan(context.Background(), Request{
		Dataset:  "sales",
		Filter:   types.Filter{ArticleID: types.Int64(7), Stores: []int64{10}},
		Calendar: true,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got := sumRows(out.Rows)
	want := map[rowKey]int64{
		{7, 1, 10, 2023, 1}: 8,
		{7, 2, 10, 2023, 2}: 4,
		{7, 1, 10, 2024, 1}: 1,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%+v: got %d, want %d", k, got[k], v)
		}
	}

	// Stores 11 and 12 are pruned by directory.
	if out.FilesPruned != 2 {
		t.Errorf("FilesPruned = %d, want 2", out.FilesPruned)
	}
	if out.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", out.FilesScanned)
	}
}

func TestNativeScanWithoutCalendar(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())
	s := NewNative(locator, nativeOptions())

	out, err := s.Scan(context.Background(), Request{Dataset: "sales"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out.Rows) != 7 {
		t.Errorf("expected 7 non-negative rows, got %d", len(out.Rows))
	}
	for _, r := range out.Rows {
		if r.Week != 0 || r.Year != 0 {
			t.Errorf("calendar should not be derived: %+v", r)
		}
	}
}

func TestNativeDistinct(t *testing.T) {
	locator, root := fixture(t, pq.DefaultOptions())
	s := NewNative(locator, nativeOptions())

	tests := []struct {
		name string
		req  Request
		want []int64
	}{
		{
			name: "articles",
			req:  Request{Dataset: "sales", Distinct: types.ColumnArticle},
			want: []int64{3, 7, 9},
		},
		{
			name: "sizes",
			req: Request{
				Dataset:  "sales",
				Filter:   types.Filter{ArticleID: types.Int64(7), Stores: []int64{10}},
				Distinct: types.ColumnSize,
			},
			want: []int64{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Scan(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			got := make([]int64, len(out.Rows))
			for i := range out.Rows {
				got[i] = distinctValue(&out.Rows[i], tt.req.Distinct)
			}
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	// Stores outside the filter are pruned before any file is opened.
	testutil.WriteCorruptPartition(t, root, 14, 2023)
	out, err := s.Scan(context.Background(), Request{
		Dataset:  "sales",
		Filter:   types.Filter{Stores: []int64{10, 12}},
		Distinct: types.ColumnArticle,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out.Rows) != 3 {
		t.Errorf("expected 3 distinct articles, got %v", out.Rows)
	}
}

func TestDedupe(t *testing.T) {
	rows := []types.ScannedRow{
		{ArticleID: 7, SizeID: 1},
		{ArticleID: 9, SizeID: 1},
		{ArticleID: 7, SizeID: 2},
	}
	if got := dedupe(slices.Clone(rows), types.ColumnArticle); len(got) != 2 || got[0].ArticleID != 7 || got[1].ArticleID != 9 {
		t.Errorf("articles: %v", got)
	}
	if got := dedupe(slices.Clone(rows), types.ColumnSize); len(got) != 2 || got[0].SizeID != 1 || got[1].SizeID != 2 {
		t.Errorf("sizes: %v", got)
	}
}

func TestNativeYearSource(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sales")
	// 2023-01-01 is a Sunday and belongs to ISO week 52 of 2022.
	testutil.WriteDataset(t, root, []types.Transaction{
		testutil.Tx(7, 1, 10, "20230101", 5),
	}, pq.DefaultOptions())
	locator := dataset.NewLocator(map[string]string{"sales": root}, dataset.Layout{Keys: []string{types.ColumnStore, types.ColumnYear}})

	tests := []struct {
		source string
		want   rowKey
	}{
		{defaults.YearSourceColumn, rowKey{7, 1, 10, 2023, 52}},
		{defaults.YearSourceISO, rowKey{7, 1, 10, 2022, 52}},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			opts := nativeOptions()
			opts.YearSource = tt.source
			s := NewNative(locator, opts)

			out, err := s.Scan(context.Background(), Request{
				Dataset:  "sales",
				Filter:   types.Filter{ArticleID: types.Int64(7)},
				Calendar: true,
			})
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			got := sumRows(out.Rows)
			if got[tt.want] != 5 || len(got) != 1 {
				t.Errorf("got %v, want %+v: 5", got, tt.want)
			}
		})
	}
}

func TestNativeInvalidDate(t *testing.T) {
	locator, root := fixture(t, pq.DefaultOptions())
	testutil.WriteDataset(t, root, []types.Transaction{
		testutil.Tx(7, 1, 13, "20230230", 1),
	}, pq.DefaultOptions())

	s := NewNative(locator, nativeOptions())
	req := Request{
		Dataset:  "sales",
		Filter:   types.Filter{ArticleID: types.Int64(7)},
		Calendar: true,
	}

	_, err := s.Scan(context.Background(), req)
	if !errors.Is(err, errors.ErrInvalidDateCode) {
		t.Fatalf("strict: expected ErrInvalidDateCode, got %v", err)
	}

	opts := nativeOptions()
	opts.SkipCorrupt = true
	s = NewNative(locator, opts)

	out, err := s.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("skip: Scan: %v", err)
	}
	if len(out.Skipped) != 1 {
		t.Fatalf("expected 1 skipped partition, got %v", out.Skipped)
	}
	if out.Skipped[0].Path != testutil.PartitionPath(root, 13, 2023) {
		t.Errorf("skipped %s", out.Skipped[0].Path)
	}
	if len(out.Rows) == 0 {
		t.Error("expected rows from the readable partitions")
	}
}

func TestNativeCorruptPartition(t *testing.T) {
	locator, root := fixture(t, pq.DefaultOptions())
	testutil.WriteCorruptPartition(t, root, 14, 2023)

	s := NewNative(locator, nativeOptions())
	req := Request{Dataset: "sales", Filter: types.Filter{ArticleID: types.Int64(7)}, Calendar: true}

	_, err := s.Scan(context.Background(), req)
	if !errors.Is(err, errors.ErrCorruptFile) {
		t.Fatalf("strict: expected ErrCorruptFile, got %v", err)
	}

	// The corrupt partition is pruned when its store is not requested.
	req.Filter.Stores = []int64{10}
	if _, err := s.Scan(context.Background(), req); err != nil {
		t.Fatalf("pruned: Scan: %v", err)
	}

	opts := nativeOptions()
	opts.SkipCorrupt = true
	s = NewNative(locator, opts)
	req.Filter.Stores = nil

	out, err := s.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("skip: Scan: %v", err)
	}
	if len(out.Skipped) != 1 {
		t.Errorf("expected 1 skipped partition, got %v", out.Skipped)
	}
}

func TestNativeDatasetNotFound(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())
	s := NewNative(locator, nativeOptions())

	_, err := s.Scan(context.Background(), Request{Dataset: "returns"})
	if !errors.Is(err, errors.ErrDatasetNotFound) {
		t.Errorf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestNativeTimeout(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())

	opts := nativeOptions()
	opts.Timeout = time.Nanosecond
	s := NewNative(locator, opts)

	_, err := s.Scan(context.Background(), Request{Dataset: "sales", Calendar: true})
	if !errors.Is(err, errors.ErrScanTimeout) {
		t.Errorf("expected ErrScanTimeout, got %v", err)
	}
}

func TestNativeCanceled(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())
	s := NewNative(locator, nativeOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, Request{Dataset: "sales", Calendar: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScanError(t *testing.T) {
	parent := context.Background()

	expired, cancel := context.WithTimeout(parent, -time.Second)
	defer cancel()

	err := scanError(parent, expired, context.DeadlineExceeded, "sales", 3)
	if !errors.Is(err, errors.ErrScanTimeout) {
		t.Errorf("expected ErrScanTimeout, got %v", err)
	}

	canceled, cancel2 := context.WithCancel(parent)
	cancel2()
	err = scanError(canceled, canceled, context.Canceled, "sales", 3)
	if !errors.Is(err, context.Canceled) || errors.Is(err, errors.ErrScanTimeout) {
		t.Errorf("expected plain context.Canceled, got %v", err)
	}

	boom := errors.NewCorruptFile("x.parquet", nil)
	if got := scanError(parent, parent, boom, "sales", 3); got != boom {
		t.Errorf("expected error passed through, got %v", got)
	}
}

func TestNew(t *testing.T) {
	locator, _ := fixture(t, pq.DefaultOptions())

	s, err := New(EngineNative, locator, nativeOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*Native); !ok {
		t.Errorf("expected *Native, got %T", s)
	}

	if _, err := New("spark", locator, nativeOptions()); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
