package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
)

// =============================================================================
// Dataset Fixtures
// =============================================================================

// Tx builds a transaction. The year column is taken from the first four
// characters of date, which is how the dataset is labelled upstream.
func Tx(article, size, store int64, date string, quantity int64) types.Transaction {
	var year int64
	if len(date) >= 4 {
		year, _ = strconv.ParseInt(date[:4], 10, 64)
	}
	return types.Transaction{
		ArticleID:   article,
		SizeID:      size,
		StoreID:     store,
		BookingDate: date,
		Quantity:    quantity,
		Year:        year,
	}
}

// PartitionPath returns the file path of the (store, year) partition below root.
func PartitionPath(root string, store, year int64) string {
	return filepath.Join(root,
		fmt.Sprintf("%s=%d", types.ColumnStore, store),
		fmt.Sprintf("%s=%d", types.ColumnYear, year),
		"part-0.parquet")
}

// WriteDataset writes txs below root as a dataset partitioned by store and
// year and returns the written file paths in sorted order.
func WriteDataset(t testing.TB, root string, txs []types.Transaction, opts pq.Options) []string {
	t.Helper()

	type key struct{ store, year int64 }
	groups := make(map[key][]types.Transaction)
	for _, tx := range txs {
		k := key{tx.StoreID, tx.Year}
		groups[k] = append(groups[k], tx)
	}

	var paths []string
	for k, group := range groups {
		path := PartitionPath(root, k.store, k.year)

		w, err := pq.NewTransactionWriter(path, opts)
		if err != nil {
			t.Fatalf("NewTransactionWriter: %v", err)
		}
		if err := w.Write(group); err != nil {
			w.Close()
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		paths = append(paths, path)
	}

	slices.Sort(paths)
	return paths
}

// WriteCorruptPartition writes a file that is not Parquet into the (store,
// year) partition below root.
func WriteCorruptPartition(t testing.TB, root string, store, year int64) string {
	t.Helper()

	path := PartitionPath(root, store, year)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("PAR1 truncated"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// WriteMapping writes a long-layout store mapping table.
func WriteMapping(t testing.TB, path string, mapping map[int64]int64) {
	t.Helper()

	var rows []types.StoreMapping
	for id, num := range mapping {
		rows = append(rows, types.StoreMapping{InternalStoreID: id, DisplayStoreNumber: num})
	}
	slices.SortFunc(rows, func(a, b types.StoreMapping) int {
		return int(a.InternalStoreID - b.InternalStoreID)
	})

	if err := pq.WriteMappingLong(path, rows); err != nil {
		t.Fatalf("WriteMappingLong: %v", err)
	}
}
