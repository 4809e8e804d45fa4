package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xtxerr/etos/internal/errors"
	"github.com/xtxerr/etos/internal/sales/query"
	"github.com/xtxerr/etos/internal/sales/types"
)

// command is one query the CLI and the shell can run. Missing positional
// arguments are passed as nil so the facade reports them.
type command struct {
	name string
	args []string
	help string
	run  func(ctx context.Context, q *query.Service, out *printer, args []*int64) error
}

func (c *command) usage() string {
	if len(c.args) == 0 {
		return c.name
	}
	return c.name + " <" + strings.Join(c.args, "> <") + ">"
}

var commands = []*command{
	{
		name: "detail",
		args: []string{"store", "article"},
		help: "weekly sales of an article at one store",
		run: func(ctx context.Context, q *query.Service, out *printer, a []*int64) error {
			res, err := q.DetailByArticle(ctx, a[0], a[1])
			if err != nil {
				return err
			}
			return out.result(res, types.ShapeArticle, false)
		},
	},
	{
		name: "detail-size",
		args: []string{"store", "article", "size"},
		help: "weekly sales of an article in one size at one store",
		run: func(ctx context.Context, q *query.Service, out *printer, a []*int64) error {
			res, err := q.DetailByArticleAndSize(ctx, a[0], a[1], a[2])
			if err != nil {
				return err
			}
			return out.result(res, types.ShapeArticleSize, false)
		},
	},
	{
		name: "cross",
		args: []string{"article"},
		help: "weekly sales of an article across all stores",
		run: func(ctx context.Context, q *query.Service, out *printer, a []*int64) error {
			res, err := q.CrossStoreByArticle(ctx, a[0])
			if err != nil {
				return err
			}
			return out.result(res, types.ShapeArticle, true)
		},
	},
	{
		name: "articles",
		args: []string{"store"},
		help: "articles sold at a store",
		run: func(ctx context.Context, q *query.Service, out *printer, a []*int64) error {
			ids, err := q.ListArticles(ctx, a[0])
			if err != nil {
				return err
			}
			return out.ids("article", ids)
		},
	},
	{
		name: "sizes",
		args: []string{"store", "article"},
		help: "sizes of an article sold at a store",
		run: func(ctx context.Context, q *query.Service, out *printer, a []*int64) error {
			ids, err := q.ListSizes(ctx, a[0], a[1])
			if err != nil {
				return err
			}
			return out.ids("size", ids)
		},
	},
	{
		name: "all-articles",
		help: "every article in the dataset",
		run: func(ctx context.Context, q *query.Service, out *printer, _ []*int64) error {
			ids, err := q.ListAllArticles(ctx)
			if err != nil {
				return err
			}
			return out.ids("article", ids)
		},
	},
	{
		name: "stores",
		help: "stores compared by the cross-store query",
		run: func(ctx context.Context, q *query.Service, out *printer, _ []*int64) error {
			ids, err := q.ListStores(ctx)
			if err != nil {
				return err
			}
			return out.ids("store", ids)
		},
	},
}

func lookupCommand(name string) (*command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// execute runs the named command with raw positional arguments.
func execute(ctx context.Context, q *query.Service, out *printer, name string, raw []string) error {
	c, ok := lookupCommand(name)
	if !ok {
		return errors.NewValidation("command", fmt.Sprintf("unknown command %q", name))
	}
	args, err := parseArgs(c.args, raw)
	if err != nil {
		return err
	}
	return c.run(ctx, q, out, args)
}

// parseArgs converts positional arguments to ids. Absent arguments and "-"
// stay nil.
func parseArgs(names, raw []string) ([]*int64, error) {
	if len(raw) > len(names) {
		return nil, errors.NewValidation("args", fmt.Sprintf("expected at most %d arguments, got %d", len(names), len(raw)))
	}

	args := make([]*int64, len(names))
	for i, s := range raw {
		if s == "-" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.NewValidation(names[i], fmt.Sprintf("%q is not an integer id", s))
		}
		args[i] = types.Int64(v)
	}
	return args, nil
}
