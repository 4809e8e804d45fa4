package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/xtxerr/etos/internal/sales/types"
	"golang.org/x/term"
)

// printer writes query results as an aligned table on a terminal and as
// tab-separated values otherwise.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	table bool
}

func newPrinter(f *os.File, format string) (*printer, error) {
	switch format {
	case "table":
		return &printer{w: f, table: true}, nil
	case "tsv":
		return &printer{w: f}, nil
	case "auto", "":
		return &printer{w: f, table: term.IsTerminal(int(f.Fd()))}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func (p *printer) result(res *types.Result, shape types.Shape, display bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sp := range res.Skipped {
		fmt.Fprintf(os.Stderr, "warning: skipped %s: %s\n", sp.Path, sp.Reason)
	}
	if res.IsEmpty() {
		fmt.Fprintln(os.Stderr, "no data")
		return nil
	}

	header := []string{"year", "week", "store"}
	if display {
		header = append(header, "display")
	}
	header = append(header, "article")
	if shape == types.ShapeArticleSize {
		header = append(header, "size")
	}
	header = append(header, "quantity")

	var rows [][]string
	for _, s := range res.Series {
		for _, r := range s.Rows {
			row := []string{s.Label, itoa(r.Week), itoa(r.StoreID)}
			if display {
				d := "-"
				if r.DisplayStore != nil {
					d = itoa(*r.DisplayStore)
				}
				row = append(row, d)
			}
			row = append(row, itoa(r.ArticleID))
			if shape == types.ShapeArticleSize {
				row = append(row, itoa(r.SizeID))
			}
			row = append(row, itoa(r.QuantitySum))
			rows = append(rows, row)
		}
	}

	if err := p.write(header, rows); err != nil {
		return err
	}

	if p.table {
		for _, s := range res.Series {
			if s.Stats == nil {
				continue
			}
			fmt.Fprintf(p.w, "%s: %d weeks, %d rows, total %d, max %d, mean %.1f, p50 %.1f, p90 %.1f\n",
				s.Label, s.Stats.Weeks, s.Stats.Rows, s.Stats.Total, s.Stats.Max, s.Stats.Mean, s.Stats.P50, s.Stats.P90)
		}
	}
	return nil
}

func (p *printer) ids(name string, ids []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no data")
		return nil
	}

	rows := make([][]string, len(ids))
	for i, id := range ids {
		rows[i] = []string{itoa(id)}
	}
	return p.write([]string{name}, rows)
}

func (p *printer) write(header []string, rows [][]string) error {
	if !p.table {
		if _, err := fmt.Fprintln(p.w, strings.Join(header, "\t")); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := fmt.Fprintln(p.w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}

	table := tablewriter.NewWriter(p.w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
