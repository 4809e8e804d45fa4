// Package scan implements the filtered scanner: it reads the partition files
// of a dataset, applies the row predicates and returns the surviving rows
// with their calendar week attached.
//
// Two engines are available. The native engine reads Parquet directly with
// parquet-go, pruning partitions by directory value and row groups by page
// statistics. The duckdb engine pushes the same predicates into DuckDB's
// read_parquet and pre-aggregates by week.
package scan

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	defaults "github.com/xtxerr/etos/config"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales/config"
	"github.com/xtxerr/etos/internal/sales/dataset"
	"github.com/xtxerr/etos/internal/sales/types"
)

// Engine names accepted by New.
const (
	EngineNative = "native"
	EngineDuckDB = "duckdb"
)

// Request describes one scan.
type Request struct {
	// Dataset is the logical dataset name.
	Dataset string

	// Filter holds the row predicates. Quantity >= 0 is always applied.
	Filter types.Filter

	// Calendar derives year and week for every row. Option lists leave it
	// off and never look at the booking date.
	Calendar bool

	// Distinct, if set to types.ColumnArticle or types.ColumnSize, returns
	// one row per distinct value of that column instead of every matching
	// row. Only that column is meaningful in the returned rows, and
	// Calendar is ignored.
	Distinct string
}

// distinctValue returns the value of the column named by col.
func distinctValue(r *types.ScannedRow, col string) int64 {
	if col == types.ColumnSize {
		return r.SizeID
	}
	return r.ArticleID
}

// dedupe keeps the first row of every distinct value of col, in order.
func dedupe(rows []types.ScannedRow, col string) []types.ScannedRow {
	seen := make(map[int64]struct{}, len(rows))
	kept := rows[:0]
	for i := range rows {
		v := distinctValue(&rows[i], col)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		kept = append(kept, rows[i])
	}
	return kept
}

// Output is the result of a scan.
type Output struct {
	// Rows are the rows that passed all predicates. An engine may return
	// partially summed rows; summing them again yields the same totals.
	Rows []types.ScannedRow

	// Skipped lists partitions that could not be read in skip mode.
	Skipped []types.SkippedPartition

	FilesScanned    int
	FilesPruned     int
	RowGroupsPruned int
	RowsRead        int64
}

// Scanner reads a dataset and applies a filter.
type Scanner interface {
	Scan(ctx context.Context, req Request) (*Output, error)
	Close() error
}

// Options configures a scanner.
type Options struct {
	Workers        int
	Timeout        time.Duration
	SkipCorrupt    bool
	ReadBufferSize int
	YearSource     string

	// DuckDB only.
	MemoryLimit string
	Threads     int
}

// OptionsFromConfig extracts scanner options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:        cfg.Scan.Workers,
		Timeout:        cfg.Scan.Timeout,
		SkipCorrupt:    cfg.Scan.SkipCorrupt,
		ReadBufferSize: cfg.Scan.ReadBufferSize,
		YearSource:     cfg.Calendar.YearSource,
		MemoryLimit:    cfg.Query.MemoryLimit,
		Threads:        cfg.Query.Threads,
	}
}

// New creates the scanner selected by engine.
func New(engine string, locator *dataset.Locator, opts Options) (Scanner, error) {
	switch engine {
	case EngineNative, "":
		return NewNative(locator, opts), nil
	case EngineDuckDB:
		return NewDuckDB(locator, opts)
	default:
		return nil, errors.NewValidation("scan.engine", fmt.Sprintf("unknown engine %q", engine))
	}
}

func (o Options) isoYear() bool {
	return o.YearSource == defaults.YearSourceISO
}

// skippable reports whether err is a per-partition data error that skip mode
// tolerates.
func skippable(err error) bool {
	return errors.IsDataError(err)
}

// withTimeout applies the scan timeout when one is configured.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// scanError maps a failed scan to the error reported to callers. Caller
// cancellation is returned as is; running out of time becomes ErrScanTimeout.
func scanError(parent, scanCtx context.Context, err error, name string, files int) error {
	if perr := parent.Err(); perr != nil && stderrors.Is(perr, context.Canceled) {
		return perr
	}
	if scanCtx.Err() == context.DeadlineExceeded || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewScanTimeout(name, files, context.DeadlineExceeded)
	}
	return err
}
