package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/xtxerr/etos/internal/sales/types"
)

// Options configures the Parquet writers.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// DateAsText stores bookingDate as a UTF-8 string instead of INT64.
	DateAsText bool

	// OmitColumns leaves columns out of the file, e.g. partition columns that
	// are encoded in the directory path only.
	OmitColumns []string
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// TransactionSchema builds the dataset schema for the given options.
func TransactionSchema(opts Options) *parquet.Schema {
	date := parquet.Node(parquet.Int(64))
	if opts.DateAsText {
		date = parquet.String()
	}

	group := parquet.Group{
		types.ColumnArticle:     parquet.Int(64),
		types.ColumnSize:        parquet.Int(64),
		types.ColumnStore:       parquet.Int(64),
		types.ColumnBookingDate: date,
		types.ColumnQuantity:    parquet.Int(64),
		types.ColumnYear:        parquet.Int(64),
		types.ColumnCustomer:    parquet.Int(64),
	}
	for _, name := range opts.OmitColumns {
		delete(group, name)
	}

	return parquet.NewSchema("transaction", group)
}

// TransactionWriter writes transactions to a Parquet file.
type TransactionWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.Writer
	schema   *parquet.Schema
	opts     Options
	rowCount int64
	closed   bool
}

// NewTransactionWriter creates a new transaction Parquet writer.
func NewTransactionWriter(path string, opts Options) (*TransactionWriter, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	schema := TransactionSchema(opts)
	writer := parquet.NewWriter(f, schema, parquet.Compression(getCompression(opts.Compression)))

	return &TransactionWriter{
		path:   path,
		file:   f,
		writer: writer,
		schema: schema,
		opts:   opts,
	}, nil
}

// Write writes transactions to the current row group.
func (w *TransactionWriter) Write(txs []types.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]parquet.Row, len(txs))
	for i := range txs {
		row, err := w.transactionToRow(&txs[i])
		if err != nil {
			return err
		}
		rows[i] = row
	}

	n, err := w.writer.WriteRows(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Flush closes the current row group. The next Write starts a new one.
func (w *TransactionWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush row group: %w", err)
	}
	return nil
}

// transactionToRow converts a Transaction to a parquet.Row in schema column order.
func (w *TransactionWriter) transactionToRow(t *types.Transaction) (parquet.Row, error) {
	values := map[string]parquet.Value{
		types.ColumnArticle:  parquet.Int64Value(t.ArticleID),
		types.ColumnSize:     parquet.Int64Value(t.SizeID),
		types.ColumnStore:    parquet.Int64Value(t.StoreID),
		types.ColumnQuantity: parquet.Int64Value(t.Quantity),
		types.ColumnYear:     parquet.Int64Value(t.Year),
		types.ColumnCustomer: parquet.Int64Value(t.CustomerID),
	}
	if w.opts.DateAsText {
		values[types.ColumnBookingDate] = parquet.ByteArrayValue([]byte(t.BookingDate))
	} else {
		d, err := strconv.ParseInt(t.BookingDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("booking date %q is not an integer: %w", t.BookingDate, err)
		}
		values[types.ColumnBookingDate] = parquet.Int64Value(d)
	}

	return buildRow(w.schema, values), nil
}

// Close closes the writer.
func (w *TransactionWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *TransactionWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *TransactionWriter) Path() string {
	return w.path
}

// WriteMappingLong writes a store mapping table with one row per store and the
// columns internalStoreId and displayStoreNumber.
func WriteMappingLong(path string, mappings []types.StoreMapping) error {
	schema := parquet.NewSchema("store_mapping", parquet.Group{
		ColumnInternalStoreID:    parquet.Int(64),
		ColumnDisplayStoreNumber: parquet.Int(64),
	})

	rows := make([]parquet.Row, len(mappings))
	for i, m := range mappings {
		rows[i] = buildRow(schema, map[string]parquet.Value{
			ColumnInternalStoreID:    parquet.Int64Value(m.InternalStoreID),
			ColumnDisplayStoreNumber: parquet.Int64Value(m.DisplayStoreNumber),
		})
	}

	return writeRows(path, schema, rows)
}

// WriteMappingWide writes a store mapping table in the one-row layout where
// every column is named after an internal store id and holds its display number.
func WriteMappingWide(path string, mappings []types.StoreMapping) error {
	group := parquet.Group{}
	values := make(map[string]parquet.Value, len(mappings))
	for _, m := range mappings {
		name := strconv.FormatInt(m.InternalStoreID, 10)
		group[name] = parquet.Int(64)
		values[name] = parquet.Int64Value(m.DisplayStoreNumber)
	}
	schema := parquet.NewSchema("store_mapping", group)

	return writeRows(path, schema, []parquet.Row{buildRow(schema, values)})
}

func writeRows(path string, schema *parquet.Schema, rows []parquet.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewWriter(f, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		f.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}

// buildRow places values at the leaf column index the schema assigns to each
// name. Group fields are ordered by name, not by insertion.
func buildRow(schema *parquet.Schema, values map[string]parquet.Value) parquet.Row {
	names := make([]string, 0, len(values))
	for name := range values {
		if _, ok := schema.Lookup(name); ok {
			names = append(names, name)
		}
	}

	row := make(parquet.Row, 0, len(names))
	for _, name := range names {
		leaf, _ := schema.Lookup(name)
		row = append(row, values[name].Level(0, 0, leaf.ColumnIndex))
	}
	sort.Slice(row, func(i, j int) bool {
		return row[i].Column() < row[j].Column()
	})
	return row
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
