// Package series groups flat sheet rows into per-ticker value tuples.
package series

import (
	"fmt"

	"github.com/minyeamer/gspread/internal/grid"
)

// Entry is one tuple of projected cells, e.g. [date, open, high, low, close].
type Entry []grid.Value

// Grouped maps a key cell to its entries. Keys compare type-sensitively and
// keep first-seen order; entries keep source order.
type Grouped struct {
	keys    []grid.Value
	entries map[string][]Entry
}

func NewGrouped() *Grouped {
	return &Grouped{entries: make(map[string][]Entry)}
}

func (g *Grouped) Add(key grid.Value, e Entry) {
	k := key.Key()
	if _, ok := g.entries[k]; !ok {
		g.keys = append(g.keys, key)
	}
	g.entries[k] = append(g.entries[k], e)
}

// Get returns the entries for key and whether the key is present.
func (g *Grouped) Get(key grid.Value) ([]Entry, bool) {
	if g == nil || key.IsEmpty() {
		return nil, false
	}
	e, ok := g.entries[key.Key()]
	return e, ok
}

func (g *Grouped) Keys() []grid.Value {
	if g == nil {
		return nil
	}
	return append([]grid.Value(nil), g.keys...)
}

func (g *Grouped) Len() int {
	if g == nil {
		return 0
	}
	return len(g.keys)
}

// GroupBy partitions rows by the cell at keyCol, projecting valueCols of each row.
// Indices are 0-based and checked once against the row width. Rows with an
// empty key are skipped.
func GroupBy(rows [][]grid.Value, keyCol int, valueCols []int) (*Grouped, error) {
	width := -1
	if len(rows) > 0 {
		width = len(rows[0])
	}
	check := func(what string, i int) error {
		if i < 0 || (width >= 0 && i >= width) {
			return fmt.Errorf("%s column %d out of range [0,%d)", what, i, width)
		}
		return nil
	}
	if err := check("key", keyCol); err != nil {
		return nil, err
	}
	if len(valueCols) == 0 {
		return nil, fmt.Errorf("at least one value column is required")
	}
	for _, c := range valueCols {
		if err := check("value", c); err != nil {
			return nil, err
		}
	}

	g := NewGrouped()
	for _, row := range rows {
		key := cellAt(row, keyCol)
		if key.IsEmpty() {
			continue
		}
		entry := make(Entry, len(valueCols))
		for i, c := range valueCols {
			entry[i] = cellAt(row, c)
		}
		g.Add(key, entry)
	}
	return g, nil
}

func cellAt(row []grid.Value, i int) grid.Value {
	if i < len(row) {
		return row[i]
	}
	return grid.Empty
}

// Window takes the limit newest entries of a newest-first list and returns
// them oldest-first. limit <= 0 keeps everything. The input is not modified.
func Window(entries []Entry, limit int) []Entry {
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = entries[n-1-i]
	}
	return out
}
