package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xtxerr/etos/internal/logging"
	"github.com/xtxerr/etos/internal/sales/calendar"
	"github.com/xtxerr/etos/internal/sales/dataset"
	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
	"golang.org/x/sync/errgroup"
)

// Native scans partition files with parquet-go.
type Native struct {
	locator *dataset.Locator
	opts    Options
	log     *slog.Logger
}

// NewNative creates a native scanner.
func NewNative(locator *dataset.Locator, opts Options) *Native {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Native{
		locator: locator,
		opts:    opts,
		log:     logging.Component("scan"),
	}
}

// fileResult is the outcome of scanning one partition.
type fileResult struct {
	rows    []types.ScannedRow
	stats   pq.ScanStats
	skipped *types.SkippedPartition
}

// Scan locates the dataset, prunes partitions by store and scans the rest
// concurrently. In strict mode the first failing partition aborts the scan;
// with SkipCorrupt it is recorded in Output.Skipped instead.
func (s *Native) Scan(ctx context.Context, req Request) (*Output, error) {
	if req.Distinct != "" {
		req.Calendar = false
	}

	scanCtx, cancel := withTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ds, err := s.locator.Locate(scanCtx, req.Dataset)
	if err != nil {
		return nil, scanError(ctx, scanCtx, err, req.Dataset, 0)
	}

	parts, pruned := ds.Prune(types.ColumnStore, req.Filter.Stores)
	out := &Output{FilesPruned: pruned}

	results := make([]fileResult, len(parts))

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(s.opts.Workers)

	for i := range parts {
		p := &parts[i]
		g.Go(func() error {
			res, err := s.scanFile(gctx, p, &req)
			if err != nil {
				if s.opts.SkipCorrupt && skippable(err) {
					s.log.Warn("partition skipped", "path", p.Path, "error", err)
					results[i] = fileResult{skipped: &types.SkippedPartition{Path: p.Path, Reason: err.Error()}}
					return nil
				}
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, scanError(ctx, scanCtx, err, req.Dataset, len(parts))
	}

	for i := range results {
		r := &results[i]
		if r.skipped != nil {
			out.Skipped = append(out.Skipped, *r.skipped)
			continue
		}
		out.FilesScanned++
		out.Rows = append(out.Rows, r.rows...)
		out.RowGroupsPruned += r.stats.RowGroupsPruned
		out.RowsRead += r.stats.RowsRead
	}
	if req.Distinct != "" {
		out.Rows = dedupe(out.Rows, req.Distinct)
	}

	s.log.Debug("scan finished",
		"dataset", req.Dataset,
		"files", out.FilesScanned,
		"files_pruned", out.FilesPruned,
		"row_groups_pruned", out.RowGroupsPruned,
		"rows", len(out.Rows),
		"skipped", len(out.Skipped))

	return out, nil
}

func (s *Native) scanFile(ctx context.Context, p *dataset.Partition, req *Request) (fileResult, error) {
	var res fileResult

	r, err := pq.OpenTransactionReader(p.Path, pq.ReadOptions{
		ReadBufferSize: s.opts.ReadBufferSize,
		Partition:      p.Values,
	})
	if err != nil {
		return res, err
	}
	defer r.Close()

	if r.NumRows() == 0 {
		return res, nil
	}

	proj := pq.Projection{
		Size: true,
		Year: req.Calendar && !s.opts.isoYear(),
		Date: req.Calendar,
	}

	// Distinct scans keep one row per value and file.
	var seen map[int64]struct{}
	if req.Distinct != "" {
		seen = make(map[int64]struct{})
	}

	res.stats, err = r.Scan(ctx, &req.Filter, proj, func(b *pq.Batch) error {
		for i := 0; i < b.Len(); i++ {
			if seen != nil {
				v := b.Article[i]
				if req.Distinct == types.ColumnSize {
					v = b.Size[i]
				}
				if _, ok := seen[v]; ok {
					continue
				}
				seen[v] = struct{}{}
			}
			row := types.ScannedRow{
				ArticleID: b.Article[i],
				SizeID:    b.Size[i],
				StoreID:   b.Store[i],
				Quantity:  b.Quantity[i],
			}
			if req.Calendar {
				key, err := calendar.Derive(b.Dates[i])
				if err != nil {
					return fmt.Errorf("%s: %w", p.Path, err)
				}
				row.Week = int64(key.Week)
				if s.opts.isoYear() {
					row.Year = int64(key.Year)
				} else {
					row.Year = b.Year[i]
				}
			}
			res.rows = append(res.rows, row)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	return res, nil
}

// Close releases scanner resources.
func (s *Native) Close() error {
	return nil
}
