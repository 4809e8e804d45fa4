// Package dataset resolves logical dataset names to the partition files that
// belong to them.
//
// A dataset is a directory tree in hive layout: every directory level below
// the root is a key=value segment, in the order given by the Layout, and the
// leaves are Parquet files:
//
//	sales/custStoreId=10/year=2023/part-0.parquet
//	sales/custStoreId=10/year=2024/part-0.parquet
//	sales/custStoreId=11/year=2023/part-0.parquet
//
// Membership is decided from directory listings only; no file is opened.
package dataset

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/etos/internal/errors"
)

// FileExt is the extension of partition files.
const FileExt = ".parquet"

// Layout is the ordered list of partition keys, outermost first.
type Layout struct {
	Keys []string
}

// Depth returns the number of directory levels between the root and a file.
func (l Layout) Depth() int {
	return len(l.Keys)
}

// Has returns true if key is a partition key of the layout.
func (l Layout) Has(key string) bool {
	return slices.Contains(l.Keys, key)
}

// Partition is one file of a dataset together with its directory-encoded values.
type Partition struct {
	Path    string
	Values  map[string]string
	Size    int64
	ModTime time.Time
}

// Value returns the directory-encoded value for key.
func (p *Partition) Value(key string) (string, bool) {
	v, ok := p.Values[key]
	return v, ok
}

// Admits reports whether the partition can contain rows whose key column is in
// allowed. A partition without that key, or with a non-integer value, is always
// admitted; only a definite mismatch prunes it.
func (p *Partition) Admits(key string, allowed []int64) bool {
	if len(allowed) == 0 {
		return true
	}
	raw, ok := p.Value(key)
	if !ok {
		return true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true
	}
	return slices.Contains(allowed, v)
}

// Dataset is the enumerated file set of a logical dataset.
type Dataset struct {
	Name       string
	Root       string
	Layout     Layout
	Partitions []Partition
}

// Len returns the number of partition files.
func (d *Dataset) Len() int {
	return len(d.Partitions)
}

// Prune returns the partitions admitted for key and the number pruned. A key
// that is not part of the layout prunes nothing.
func (d *Dataset) Prune(key string, allowed []int64) ([]Partition, int) {
	if len(allowed) == 0 || !d.Layout.Has(key) {
		return d.Partitions, 0
	}
	kept := make([]Partition, 0, len(d.Partitions))
	for _, p := range d.Partitions {
		if p.Admits(key, allowed) {
			kept = append(kept, p)
		}
	}
	return kept, len(d.Partitions) - len(kept)
}

// Locator resolves dataset names to their partition files.
type Locator struct {
	roots  map[string]string
	layout Layout
}

// NewLocator creates a locator for the given name to root directory mapping.
func NewLocator(roots map[string]string, layout Layout) *Locator {
	r := make(map[string]string, len(roots))
	for k, v := range roots {
		r[k] = v
	}
	return &Locator{
		roots:  r,
		layout: Layout{Keys: slices.Clone(layout.Keys)},
	}
}

// Layout returns the partition layout used by the locator.
func (l *Locator) Layout() Layout {
	return l.layout
}

// Locate enumerates the files of the named dataset, sorted by path.
// It fails with ErrDatasetNotFound if the name is unknown, the root does not
// exist, or no file matches the layout.
func (l *Locator) Locate(ctx context.Context, name string) (*Dataset, error) {
	root, ok := l.roots[name]
	if !ok {
		return nil, errors.NewDatasetNotFound(name, "no root configured")
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewDatasetNotFound(name, "root "+root+" is not accessible: "+err.Error())
	}
	if !info.IsDir() {
		return nil, errors.NewDatasetNotFound(name, "root "+root+" is not a directory")
	}

	ds := &Dataset{
		Name:   name,
		Root:   root,
		Layout: l.layout,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")

		if d.IsDir() {
			// Stop descending into directories that cannot hold members.
			if len(segments) > l.layout.Depth() || !l.matchSegments(segments) {
				return fs.SkipDir
			}
			return nil
		}

		if len(segments) != l.layout.Depth()+1 || filepath.Ext(path) != FileExt {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") {
			return nil
		}

		values, ok := l.parseSegments(segments[:len(segments)-1])
		if !ok {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		ds.Partitions = append(ds.Partitions, Partition{
			Path:    path,
			Values:  values,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewDatasetNotFound(name, "walk "+root+": "+err.Error())
	}

	if len(ds.Partitions) == 0 {
		return nil, errors.NewDatasetNotFound(name, "no partition files under "+root)
	}

	// WalkDir visits in lexical order already; keep the guarantee explicit.
	slices.SortFunc(ds.Partitions, func(a, b Partition) int {
		return strings.Compare(a.Path, b.Path)
	})

	return ds, nil
}

// matchSegments checks directory segments against the layout prefix.
func (l *Locator) matchSegments(segments []string) bool {
	_, ok := l.parseSegments(segments)
	return ok
}

// parseSegments parses key=value segments in layout order.
func (l *Locator) parseSegments(segments []string) (map[string]string, bool) {
	values := make(map[string]string, len(segments))
	for i, seg := range segments {
		if i >= len(l.layout.Keys) {
			return nil, false
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok || key != l.layout.Keys[i] || value == "" {
			return nil, false
		}
		values[key] = value
	}
	return values, true
}
