package scan

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/logging"
	"github.com/xtxerr/etos/internal/sales/calendar"
	"github.com/xtxerr/etos/internal/sales/dataset"
	"github.com/xtxerr/etos/internal/sales/types"
)

// DuckDB scans partition files with DuckDB's read_parquet. Predicates are
// pushed into the query and rows come back summed per (article, size, store,
// year, week).
type DuckDB struct {
	locator *dataset.Locator
	opts    Options
	db      *sql.DB
	log     *slog.Logger
}

// NewDuckDB opens an in-memory DuckDB database for scanning.
func NewDuckDB(locator *dataset.Locator, opts Options) (*DuckDB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if opts.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", opts.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}
	if opts.Threads > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads=%d", opts.Threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	return &DuckDB{
		locator: locator,
		opts:    opts,
		db:      db,
		log:     logging.Component("scan.duckdb"),
	}, nil
}

// Close closes the database.
func (s *DuckDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Scan runs the filtered scan. Strict mode issues one query over all admitted
// files; skip mode queries file by file so that a bad file can be set aside.
func (s *DuckDB) Scan(ctx context.Context, req Request) (*Output, error) {
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
	if len(parts) == 0 {
		return out, nil
	}

	paths := make([]string, len(parts))
	for i := range parts {
		paths[i] = parts[i].Path
	}

	if !s.opts.SkipCorrupt {
		rows, err := s.query(scanCtx, paths, &req, ds.Root)
		if err != nil {
			return nil, scanError(ctx, scanCtx, err, req.Dataset, len(paths))
		}
		out.Rows = rows
		out.FilesScanned = len(paths)
		return out, nil
	}

	for _, path := range paths {
		rows, err := s.query(scanCtx, []string{path}, &req, path)
		if err != nil {
			if scanCtx.Err() == nil && skippable(err) {
				s.log.Warn("partition skipped", "path", path, "error", err)
				out.Skipped = append(out.Skipped, types.SkippedPartition{Path: path, Reason: err.Error()})
				continue
			}
			return nil, scanError(ctx, scanCtx, err, req.Dataset, len(paths))
		}
		out.Rows = append(out.Rows, rows...)
		out.FilesScanned++
	}
	if req.Distinct != "" {
		out.Rows = dedupe(out.Rows, req.Distinct)
	}

	return out, nil
}

// query runs one grouped scan over files. label names the source in errors.
func (s *DuckDB) query(ctx context.Context, files []string, req *Request, label string) ([]types.ScannedRow, error) {
	query, args := buildQuery(files, req, s.opts.isoYear())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewCorruptFile(label, err)
	}
	defer rows.Close()

	var out []types.ScannedRow
	for rows.Next() {
		if req.Distinct != "" {
			var (
				r types.ScannedRow
				v int64
			)
			if err := rows.Scan(&v); err != nil {
				return nil, errors.NewCorruptFile(label, fmt.Errorf("scan row: %w", err))
			}
			if req.Distinct == types.ColumnSize {
				r.SizeID = v
			} else {
				r.ArticleID = v
			}
			out = append(out, r)
			continue
		}

		var (
			r          types.ScannedRow
			year, week sql.NullInt64
			badCode    sql.NullString
		)
		if err := rows.Scan(&r.ArticleID, &r.SizeID, &r.StoreID, &year, &week, &r.Quantity, &badCode); err != nil {
			return nil, errors.NewCorruptFile(label, fmt.Errorf("scan row: %w", err))
		}

		if req.Calendar {
			if !week.Valid {
				code := badCode.String
				if _, err := calendar.Derive(code); err != nil {
					return nil, fmt.Errorf("%s: %w", label, err)
				}
				return nil, fmt.Errorf("%s: %w", label, errors.NewInvalidDateCode(code, "not a calendar date"))
			}
			r.Year = year.Int64
			r.Week = week.Int64
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewCorruptFile(label, err)
	}
	return out, nil
}

// buildQuery renders the grouped scan. File paths are inlined as a quoted list
// because read_parquet takes its source as a constant; filter values are bound.
func buildQuery(files []string, req *Request, isoYear bool) (string, []any) {
	var where []string
	var args []any

	where = append(where, "quantity >= 0")
	if req.Filter.ArticleID != nil {
		where = append(where, types.ColumnArticle+" = ?")
		args = append(args, *req.Filter.ArticleID)
	}
	if req.Filter.SizeID != nil {
		where = append(where, types.ColumnSize+" = ?")
		args = append(args, *req.Filter.SizeID)
	}
	if len(req.Filter.Stores) > 0 {
		marks := make([]string, len(req.Filter.Stores))
		for i, id := range req.Filter.Stores {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("CAST(%s AS BIGINT) IN (%s)", types.ColumnStore, strings.Join(marks, ", ")))
	}

	source := fmt.Sprintf("read_parquet(%s, hive_partitioning = true)", quoteList(files))

	if req.Distinct != "" {
		col := types.ColumnArticle
		if req.Distinct == types.ColumnSize {
			col = types.ColumnSize
		}
		return fmt.Sprintf(`
		SELECT DISTINCT CAST(%s AS BIGINT) AS v
		FROM %s
		WHERE %s
		ORDER BY 1
	`, col, source, strings.Join(where, " AND ")), args
	}

	if !req.Calendar {
		return fmt.Sprintf(`
		SELECT
			CAST(%s AS BIGINT) AS article,
			CAST(%s AS BIGINT) AS size,
			CAST(%s AS BIGINT) AS store,
			NULL::BIGINT AS yr,
			NULL::BIGINT AS wk,
			CAST(SUM(quantity) AS BIGINT) AS qty,
			NULL::VARCHAR AS bad_code
		FROM %s
		WHERE %s
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3
	`, types.ColumnArticle, types.ColumnSize, types.ColumnStore, source, strings.Join(where, " AND ")), args
	}

	yearExpr := "isoyear(d)"
	if !isoYear {
		yearExpr = "yr_col"
	}
	yearCol := "NULL::BIGINT"
	if !isoYear {
		yearCol = fmt.Sprintf("CAST(%s AS BIGINT)", types.ColumnYear)
	}

	return fmt.Sprintf(`
		SELECT
			article, size, store,
			%s AS yr,
			weekofyear(d) AS wk,
			CAST(SUM(qty) AS BIGINT) AS qty,
			MIN(CASE WHEN d IS NULL THEN code END) AS bad_code
		FROM (
			SELECT
				CAST(%s AS BIGINT) AS article,
				CAST(%s AS BIGINT) AS size,
				CAST(%s AS BIGINT) AS store,
				%s AS yr_col,
				quantity AS qty,
				CAST(%s AS VARCHAR) AS code,
				CASE WHEN length(CAST(%s AS VARCHAR)) = 8
					THEN try_strptime(CAST(%s AS VARCHAR), '%%Y%%m%%d')
				END AS d
			FROM %s
			WHERE %s
		) src
		GROUP BY 1, 2, 3, 4, 5
		ORDER BY 1, 2, 3, 4, 5
	`, yearExpr,
		types.ColumnArticle, types.ColumnSize, types.ColumnStore, yearCol,
		types.ColumnBookingDate, types.ColumnBookingDate, types.ColumnBookingDate,
		source, strings.Join(where, " AND ")), args
}

// quoteList renders paths as a DuckDB list of string literals.
func quoteList(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
