// Package mapping loads the store mapping table and joins display store
// numbers onto aggregate rows.
package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xtxerr/etos/internal/errors"
	pq "github.com/xtxerr/etos/internal/sales/parquet"
	"github.com/xtxerr/etos/internal/sales/types"
	"gopkg.in/yaml.v3"
)

// Table maps internal store ids to display store numbers. It is immutable
// after construction.
type Table struct {
	numbers map[int64]int64
	ids     []int64
}

// NewTable builds a table from mapping rows. An id listed twice with
// different display numbers is rejected.
func NewTable(rows []types.StoreMapping) (*Table, error) {
	t := &Table{numbers: make(map[int64]int64, len(rows))}
	for _, r := range rows {
		if prev, ok := t.numbers[r.InternalStoreID]; ok {
			if prev != r.DisplayStoreNumber {
				return nil, fmt.Errorf("store %d maps to both %d and %d", r.InternalStoreID, prev, r.DisplayStoreNumber)
			}
			continue
		}
		t.numbers[r.InternalStoreID] = r.DisplayStoreNumber
		t.ids = append(t.ids, r.InternalStoreID)
	}
	slices.Sort(t.ids)
	return t, nil
}

// yamlFile is the YAML layout of the mapping table.
type yamlFile struct {
	Stores []struct {
		Internal int64 `yaml:"internal"`
		Display  int64 `yaml:"display"`
	} `yaml:"stores"`
}

// Load reads the mapping table from path. Parquet files may use the long or
// the wide layout; files ending in .yaml or .yml are read as YAML.
func Load(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store mapping %s: %w: %w", path, errors.ErrMappingNotFound, err)
	}

	var (
		rows []types.StoreMapping
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rows, err = loadYAML(path)
	default:
		rows, err = pq.ReadMapping(path)
	}
	if err != nil {
		return nil, err
	}

	t, err := NewTable(rows)
	if err != nil {
		return nil, errors.NewCorruptFile(path, err)
	}
	return t, nil
}

func loadYAML(path string) ([]types.StoreMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewCorruptFile(path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewCorruptFile(path, fmt.Errorf("parse yaml: %w", err))
	}

	rows := make([]types.StoreMapping, len(f.Stores))
	for i, s := range f.Stores {
		rows[i] = types.StoreMapping{InternalStoreID: s.Internal, DisplayStoreNumber: s.Display}
	}
	return rows, nil
}

// Lookup returns the display number of an internal store id.
func (t *Table) Lookup(id int64) (int64, bool) {
	n, ok := t.numbers[id]
	return n, ok
}

// InternalIDs returns all internal store ids in ascending order.
func (t *Table) InternalIDs() []int64 {
	return slices.Clone(t.ids)
}

// Len returns the number of mapped stores.
func (t *Table) Len() int {
	return len(t.ids)
}

// Join attaches display store numbers to every row as a left join: rows whose
// store is not in the table are kept with a nil DisplayStore. The input series
// are not modified.
func Join(series []types.Series, t *Table) []types.Series {
	out := make([]types.Series, len(series))
	for i := range series {
		s := series[i].Clone()
		for j := range s.Rows {
			s.Rows[j].DisplayStore = nil
			if t == nil {
				continue
			}
			if n, ok := t.Lookup(s.Rows[j].StoreID); ok {
				s.Rows[j].DisplayStore = types.Int64(n)
			}
		}
		out[i] = s
	}
	return out
}
