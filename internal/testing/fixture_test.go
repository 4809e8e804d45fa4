package testing

import (
	"path/filepath"
	"strings"
	"testing"

	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
)

func TestTx(t *testing.T) {
	tx := Tx(7, 1, 10, "20230102", 5)
	if tx.Year != 2023 {
		t.Errorf("Year = %d, want 2023", tx.Year)
	}
	if tx.BookingDate != "20230102" || tx.Quantity != 5 {
		t.Errorf("unexpected transaction %+v", tx)
	}
}

func TestWriteDatasetPartitions(t *testing.T) {
	root := t.TempDir()

	txs := []types.Transaction{
		Tx(7, 1, 10, "20230102", 5),
		Tx(7, 1, 10, "20230105", 3),
		Tx(7, 1, 11, "20230105", 1),
		Tx(7, 1, 10, "20240105", 2),
	}

	paths := WriteDataset(t, root, txs, pq.DefaultOptions())
	if len(paths) != 3 {
		t.Fatalf("expected 3 partitions, got %d: %v", len(paths), paths)
	}

	want := PartitionPath(root, 10, 2023)
	if paths[0] != want {
		t.Errorf("paths[0] = %s, want %s", paths[0], want)
	}
	if !strings.Contains(paths[0], filepath.Join("custStoreId=10", "year=2023")) {
		t.Errorf("unexpected layout: %s", paths[0])
	}

	r, err := pq.OpenTransactionReader(paths[0], pq.ReadOptions{})
	if err != nil {
		t.Fatalf("OpenTransactionReader: %v", err)
	}
	defer r.Close()
	if n := r.NumRows(); n != 2 {
		t.Errorf("NumRows = %d, want 2", n)
	}
}
