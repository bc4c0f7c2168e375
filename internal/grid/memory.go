package grid

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type cellKey struct{ row, col int }

type memSheet struct {
	cells map[cellKey]Value
}

func (s *memSheet) extents() (lastRow, lastCol int) {
	for k := range s.cells {
		if k.row > lastRow {
			lastRow = k.row
		}
		if k.col > lastCol {
			lastCol = k.col
		}
	}
	return lastRow, lastCol
}

// MemoryStore keeps sheets in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string]*memSheet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string]*memSheet)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) sheet(name string) (*memSheet, error) {
	sh, ok := m.sheets[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, name)
	}
	return sh, nil
}

func (m *MemoryStore) Read(_ context.Context, sheet string, r Range) ([][]Value, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sh, err := m.sheet(sheet)
	if err != nil {
		return nil, err
	}
	lastRow, lastCol := sh.extents()
	r = r.resolve(lastRow, lastCol)
	if r.EndRow < r.Row || r.EndCol < r.Col {
		return nil, nil
	}
	out := make([][]Value, 0, r.EndRow-r.Row+1)
	for row := r.Row; row <= r.EndRow; row++ {
		line := make([]Value, r.EndCol-r.Col+1)
		for col := r.Col; col <= r.EndCol; col++ {
			line[col-r.Col] = sh.cells[cellKey{row, col}]
		}
		out = append(out, line)
	}
	return out, nil
}

func (m *MemoryStore) Write(_ context.Context, sheet string, row, col int, values [][]Value) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("write origin must be >= 1, got row=%d col=%d", row, col)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sh := m.ensure(sheet)
	for i, line := range values {
		for j, v := range line {
			k := cellKey{row + i, col + j}
			if v.IsEmpty() {
				delete(sh.cells, k)
				continue
			}
			sh.cells[k] = v
		}
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, sheet string, r Range) error {
	if err := r.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	lastRow, lastCol := sh.extents()
	r = r.resolve(lastRow, lastCol)
	for k := range sh.cells {
		if k.row >= r.Row && k.row <= r.EndRow && k.col >= r.Col && k.col <= r.EndCol {
			delete(sh.cells, k)
		}
	}
	return nil
}

func (m *MemoryStore) LastRow(_ context.Context, sheet string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sh, err := m.sheet(sheet)
	if err != nil {
		return 0, err
	}
	row, _ := sh.extents()
	return row, nil
}

func (m *MemoryStore) LastColumn(_ context.Context, sheet string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sh, err := m.sheet(sheet)
	if err != nil {
		return 0, err
	}
	_, col := sh.extents()
	return col, nil
}

func (m *MemoryStore) EnsureSheet(_ context.Context, sheet string) error {
	if strings.TrimSpace(sheet) == "" {
		return fmt.Errorf("sheet name cannot be empty")
	}
	m.mu.Lock()
	m.ensure(sheet)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ensure(name string) *memSheet {
	name = strings.TrimSpace(name)
	sh, ok := m.sheets[name]
	if !ok {
		sh = &memSheet{cells: make(map[cellKey]Value)}
		m.sheets[name] = sh
	}
	return sh
}

func (m *MemoryStore) DeleteSheet(_ context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.sheet(sheet); err != nil {
		return err
	}
	delete(m.sheets, strings.TrimSpace(sheet))
	return nil
}

// Sheets lists sheet names; used by tests and the startup summary.
func (m *MemoryStore) Sheets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sheets))
	for name := range m.sheets {
		out = append(out, name)
	}
	return out
}

func (m *MemoryStore) Close() error { return nil }
