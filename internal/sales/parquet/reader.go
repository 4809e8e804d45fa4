package parquet

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales/types"
)

// Column names of the long store mapping layout.
const (
	ColumnInternalStoreID    = "internalStoreId"
	ColumnDisplayStoreNumber = "displayStoreNumber"
)

// ReadOptions configures a TransactionReader.
type ReadOptions struct {
	// ReadBufferSize is the buffered read size for the file (0 = library default).
	ReadBufferSize int

	// Partition holds the directory-encoded values of the file. They stand in
	// for columns that are not stored in the file itself.
	Partition map[string]string
}

// Projection selects the optional columns a scan returns. Article, store and
// quantity are always returned.
type Projection struct {
	Size bool
	Year bool
	Date bool
}

// Batch holds the rows of one row group that passed all predicates, column by
// column. Optional columns are nil unless projected.
type Batch struct {
	RowGroup int
	Article  []int64
	Store    []int64
	Quantity []int64
	Size     []int64
	Year     []int64
	Dates    []string
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Article)
}

// ScanStats holds per-file scan statistics.
type ScanStats struct {
	RowGroups       int
	RowGroupsPruned int
	RowsRead        int64
	RowsMatched     int64
}

// column describes where a logical column comes from: a leaf of the file
// schema or a constant taken from the partition path.
type column struct {
	name     string
	inFile   bool
	index    int
	kind     parquet.Kind
	constant int64
}

// TransactionReader reads a single partition file of the sales dataset.
type TransactionReader struct {
	file      *os.File
	pf        *parquet.File
	path      string
	partition map[string]string
}

// OpenTransactionReader opens a partition file. Failures to open or to parse
// the footer are reported as ErrCorruptFile.
func OpenTransactionReader(path string, opts ReadOptions) (*TransactionReader, error) {
	f, pf, err := openFile(path, opts.ReadBufferSize)
	if err != nil {
		return nil, err
	}

	return &TransactionReader{
		file:      f,
		pf:        pf,
		path:      path,
		partition: opts.Partition,
	}, nil
}

func openFile(path string, readBufferSize int) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewCorruptFile(path, fmt.Errorf("open file: %w", err))
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.NewCorruptFile(path, fmt.Errorf("stat file: %w", err))
	}

	var fileOpts []parquet.FileOption
	if readBufferSize > 0 {
		fileOpts = append(fileOpts, parquet.ReadBufferSize(readBufferSize))
	}

	pf, err := parquet.OpenFile(f, stat.Size(), fileOpts...)
	if err != nil {
		f.Close()
		return nil, nil, errors.NewCorruptFile(path, fmt.Errorf("open parquet: %w", err))
	}

	return f, pf, nil
}

// NumRows returns the total number of rows in the file.
func (r *TransactionReader) NumRows() int64 {
	return r.pf.NumRows()
}

// Close closes the reader.
func (r *TransactionReader) Close() error {
	return r.file.Close()
}

// resolve locates a logical column. Columns missing from the file fall back
// to the partition value of the same name.
func (r *TransactionReader) resolve(name string, required bool) (column, bool, error) {
	if leaf, ok := r.pf.Schema().Lookup(name); ok {
		return column{
			name:   name,
			inFile: true,
			index:  leaf.ColumnIndex,
			kind:   leaf.Node.Type().Kind(),
		}, true, nil
	}

	if raw, ok := r.partition[name]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return column{}, false, errors.NewCorruptFile(r.path,
				fmt.Errorf("partition value %s=%q is not an integer", name, raw))
		}
		return column{name: name, constant: v}, true, nil
	}

	if required {
		return column{}, false, errors.NewCorruptFile(r.path, fmt.Errorf("column %s not found", name))
	}
	return column{}, false, nil
}

// Scan evaluates the filter against every row group and calls fn with the
// matching rows of each group. Row groups whose page statistics rule out a
// match are skipped without reading data pages, and data columns are only
// read for row groups where at least one row survived the predicates.
func (r *TransactionReader) Scan(ctx context.Context, filter *types.Filter, proj Projection, fn func(*Batch) error) (ScanStats, error) {
	var stats ScanStats

	article, _, err := r.resolve(types.ColumnArticle, true)
	if err != nil {
		return stats, err
	}
	quantity, _, err := r.resolve(types.ColumnQuantity, true)
	if err != nil {
		return stats, err
	}
	store, _, err := r.resolve(types.ColumnStore, true)
	if err != nil {
		return stats, err
	}
	size, _, err := r.resolve(types.ColumnSize, proj.Size || filter.SizeID != nil)
	if err != nil {
		return stats, err
	}
	year, _, err := r.resolve(types.ColumnYear, proj.Year)
	if err != nil {
		return stats, err
	}
	var date column
	if proj.Date {
		date, _, err = r.resolve(types.ColumnBookingDate, true)
		if err != nil {
			return stats, err
		}
		if !date.inFile {
			return stats, errors.NewCorruptFile(r.path, fmt.Errorf("column %s must be stored in the file", types.ColumnBookingDate))
		}
	}

	rowGroups := r.pf.RowGroups()
	stats.RowGroups = len(rowGroups)

	// A constant store that is not allowed rules out the whole file.
	if !store.inFile && !filter.AllowsStore(store.constant) {
		stats.RowGroupsPruned = len(rowGroups)
		return stats, nil
	}

	for i, rg := range rowGroups {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if !rowGroupMayMatch(rg, filter, article, quantity, size, store) {
			stats.RowGroupsPruned++
			continue
		}

		n := int(rg.NumRows())
		stats.RowsRead += int64(n)
		sel := make([]bool, n)
		for j := range sel {
			sel[j] = true
		}

		// Predicate columns first, cheapest rejection first.
		qty, err := r.readInts(ctx, rg, quantity, n)
		if err != nil {
			return stats, err
		}
		remaining := restrict(sel, qty, func(v int64) bool { return v >= 0 })

		var art nullableInts
		if remaining > 0 {
			art, err = r.readInts(ctx, rg, article, n)
			if err != nil {
				return stats, err
			}
			if filter.ArticleID != nil {
				want := *filter.ArticleID
				remaining = restrict(sel, art, func(v int64) bool { return v == want })
			} else {
				remaining = restrict(sel, art, func(int64) bool { return true })
			}
		}

		var sz nullableInts
		if remaining > 0 && (filter.SizeID != nil || proj.Size) {
			sz, err = r.readInts(ctx, rg, size, n)
			if err != nil {
				return stats, err
			}
			if filter.SizeID != nil {
				want := *filter.SizeID
				remaining = restrict(sel, sz, func(v int64) bool { return v == want })
			}
		}

		var st nullableInts
		if remaining > 0 {
			st, err = r.readInts(ctx, rg, store, n)
			if err != nil {
				return stats, err
			}
			remaining = restrict(sel, st, filter.AllowsStore)
		}

		if remaining == 0 {
			continue
		}

		batch := &Batch{
			RowGroup: i,
			Article:  make([]int64, 0, remaining),
			Store:    make([]int64, 0, remaining),
			Quantity: make([]int64, 0, remaining),
		}

		var yr nullableInts
		if proj.Year {
			yr, err = r.readInts(ctx, rg, year, n)
			if err != nil {
				return stats, err
			}
			batch.Year = make([]int64, 0, remaining)
		}

		var dates []string
		if proj.Date {
			dates, err = r.readDates(ctx, rg, date, n, sel)
			if err != nil {
				return stats, err
			}
			batch.Dates = make([]string, 0, remaining)
		}

		if proj.Size {
			batch.Size = make([]int64, 0, remaining)
		}

		for j := 0; j < n; j++ {
			if !sel[j] {
				continue
			}
			batch.Article = append(batch.Article, art.values[j])
			batch.Store = append(batch.Store, st.values[j])
			batch.Quantity = append(batch.Quantity, qty.values[j])
			if proj.Size {
				batch.Size = append(batch.Size, sz.values[j])
			}
			if proj.Year {
				if !yr.valid[j] {
					return stats, errors.NewCorruptFile(r.path, fmt.Errorf("null %s in row group %d", types.ColumnYear, i))
				}
				batch.Year = append(batch.Year, yr.values[j])
			}
			if proj.Date {
				batch.Dates = append(batch.Dates, dates[j])
			}
		}

		stats.RowsMatched += int64(batch.Len())
		if err := fn(batch); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// nullableInts is a decoded integer column with a validity mask.
type nullableInts struct {
	values []int64
	valid  []bool
}

// restrict clears selected rows whose value is null or fails keep, and returns
// the number of rows still selected.
func restrict(sel []bool, col nullableInts, keep func(int64) bool) int {
	remaining := 0
	for j := range sel {
		if !sel[j] {
			continue
		}
		if !col.valid[j] || !keep(col.values[j]) {
			sel[j] = false
			continue
		}
		remaining++
	}
	return remaining
}

func (r *TransactionReader) readInts(ctx context.Context, rg parquet.RowGroup, col column, n int) (nullableInts, error) {
	out := nullableInts{
		values: make([]int64, n),
		valid:  make([]bool, n),
	}

	if !col.inFile {
		for j := 0; j < n; j++ {
			out.values[j] = col.constant
			out.valid[j] = true
		}
		return out, nil
	}

	err := readColumn(ctx, rg.ColumnChunks()[col.index], n, func(j int, v parquet.Value) error {
		if v.IsNull() {
			return nil
		}
		x, ok := asInt64(v)
		if !ok {
			return fmt.Errorf("column %s: unsupported physical type %v", col.name, v.Kind())
		}
		out.values[j] = x
		out.valid[j] = true
		return nil
	})
	if err != nil {
		return out, r.wrapReadErr(err)
	}
	return out, nil
}

// readDates decodes the booking date of the selected rows to its text form.
// Integer dates are rendered in decimal; validation is left to the caller.
func (r *TransactionReader) readDates(ctx context.Context, rg parquet.RowGroup, col column, n int, sel []bool) ([]string, error) {
	out := make([]string, n)

	err := readColumn(ctx, rg.ColumnChunks()[col.index], n, func(j int, v parquet.Value) error {
		if !sel[j] || v.IsNull() {
			return nil
		}
		switch v.Kind() {
		case parquet.ByteArray, parquet.FixedLenByteArray:
			out[j] = string(v.ByteArray())
		default:
			x, ok := asInt64(v)
			if !ok {
				return fmt.Errorf("column %s: unsupported physical type %v", col.name, v.Kind())
			}
			out[j] = strconv.FormatInt(x, 10)
		}
		return nil
	})
	if err != nil {
		return nil, r.wrapReadErr(err)
	}
	return out, nil
}

func (r *TransactionReader) wrapReadErr(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewCorruptFile(r.path, err)
}

// readColumn streams the values of a flat column chunk, calling fn with the
// row index of each value. It fails if the chunk does not hold exactly n values.
func readColumn(ctx context.Context, chunk parquet.ColumnChunk, n int, fn func(row int, v parquet.Value) error) error {
	pages := chunk.Pages()
	defer pages.Close()

	buf := make([]parquet.Value, 4096)
	row := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := pages.ReadPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read page: %w", err)
		}

		values := page.Values()
		for {
			k, err := values.ReadValues(buf)
			for _, v := range buf[:k] {
				if row >= n {
					return fmt.Errorf("column has more values than the %d rows of its row group", n)
				}
				if ferr := fn(row, v); ferr != nil {
					return ferr
				}
				row++
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("read values: %w", err)
			}
			if k == 0 {
				break
			}
		}
	}

	if row != n {
		return fmt.Errorf("column has %d values, row group has %d rows", row, n)
	}
	return nil
}

// asInt64 converts an integer value of either width.
func asInt64(v parquet.Value) (int64, bool) {
	switch v.Kind() {
	case parquet.Int32:
		return int64(v.Int32()), true
	case parquet.Int64:
		return v.Int64(), true
	default:
		return 0, false
	}
}

// ReadMapping reads a store mapping table. The long layout has one row per
// store with the columns internalStoreId and displayStoreNumber; the wide
// layout has a single row where every column is named after an internal store
// id and holds the display number.
func ReadMapping(path string) ([]types.StoreMapping, error) {
	f, pf, err := openFile(path, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, ok := pf.Schema().Lookup(ColumnInternalStoreID); ok {
		return readMappingLong(path, pf)
	}
	return readMappingWide(path, pf)
}

func readMappingLong(path string, pf *parquet.File) ([]types.StoreMapping, error) {
	idLeaf, _ := pf.Schema().Lookup(ColumnInternalStoreID)
	numLeaf, ok := pf.Schema().Lookup(ColumnDisplayStoreNumber)
	if !ok {
		return nil, errors.NewCorruptFile(path, fmt.Errorf("column %s not found", ColumnDisplayStoreNumber))
	}

	r := &TransactionReader{path: path, pf: pf}
	ctx := context.Background()

	var out []types.StoreMapping
	for _, rg := range pf.RowGroups() {
		n := int(rg.NumRows())
		ids, err := r.readInts(ctx, rg, column{name: ColumnInternalStoreID, inFile: true, index: idLeaf.ColumnIndex}, n)
		if err != nil {
			return nil, err
		}
		nums, err := r.readInts(ctx, rg, column{name: ColumnDisplayStoreNumber, inFile: true, index: numLeaf.ColumnIndex}, n)
		if err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			if !ids.valid[j] || !nums.valid[j] {
				return nil, errors.NewCorruptFile(path, fmt.Errorf("null store mapping value in row %d", j))
			}
			out = append(out, types.StoreMapping{
				InternalStoreID:    ids.values[j],
				DisplayStoreNumber: nums.values[j],
			})
		}
	}
	return out, nil
}

var errStop = stderrors.New("stop")

func readMappingWide(path string, pf *parquet.File) ([]types.StoreMapping, error) {
	var first parquet.RowGroup
	for _, rg := range pf.RowGroups() {
		if rg.NumRows() > 0 {
			first = rg
			break
		}
	}
	if first == nil {
		return nil, nil
	}

	ctx := context.Background()
	var out []types.StoreMapping

	for _, field := range pf.Schema().Fields() {
		name := field.Name()
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return nil, errors.NewCorruptFile(path, fmt.Errorf("column %q is not a store id", name))
		}
		leaf, ok := pf.Schema().Lookup(name)
		if !ok {
			return nil, errors.NewCorruptFile(path, fmt.Errorf("column %q is not a leaf column", name))
		}

		var value parquet.Value
		err = readColumn(ctx, first.ColumnChunks()[leaf.ColumnIndex], int(first.NumRows()), func(row int, v parquet.Value) error {
			value = v
			return errStop
		})
		if err != nil && !stderrors.Is(err, errStop) {
			return nil, errors.NewCorruptFile(path, err)
		}
		if value.IsNull() {
			continue
		}
		num, ok := asInt64(value)
		if !ok {
			return nil, errors.NewCorruptFile(path, fmt.Errorf("column %q: unsupported physical type %v", name, value.Kind()))
		}

		out = append(out, types.StoreMapping{InternalStoreID: id, DisplayStoreNumber: num})
	}
	return out, nil
}
