package grid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrSheetNotFound = errors.New("sheet not found")

// Range is a 1-indexed inclusive block. EndRow/EndCol of 0 means
// "through the last populated row/column", like the open A1 form "A2:A".
type Range struct {
	Row    int
	Col    int
	EndRow int
	EndCol int
}

// Cell returns the single-cell range at (row, col).
func Cell(row, col int) Range { return Range{Row: row, Col: col, EndRow: row, EndCol: col} }

// Column returns rows [from, to] of one column.
func Column(col, from, to int) Range { return Range{Row: from, Col: col, EndRow: to, EndCol: col} }

func (r Range) Width() int {
	if r.EndCol == 0 {
		return 0
	}
	return r.EndCol - r.Col + 1
}

func (r Range) validate() error {
	if r.Row < 1 || r.Col < 1 {
		return fmt.Errorf("range origin must be >= 1, got row=%d col=%d", r.Row, r.Col)
	}
	if r.EndRow != 0 && r.EndRow < r.Row {
		return fmt.Errorf("range end row %d before start row %d", r.EndRow, r.Row)
	}
	if r.EndCol != 0 && r.EndCol < r.Col {
		return fmt.Errorf("range end column %d before start column %d", r.EndCol, r.Col)
	}
	return nil
}

// resolve fills open ends from the sheet extents.
func (r Range) resolve(lastRow, lastCol int) Range {
	if r.EndRow == 0 {
		r.EndRow = lastRow
	}
	if r.EndCol == 0 {
		r.EndCol = lastCol
	}
	return r
}

func (r Range) String() string {
	out := ColumnName(r.Col) + strconv.Itoa(r.Row)
	if r.EndRow == r.Row && r.EndCol == r.Col {
		return out
	}
	end := ColumnName(r.EndCol)
	if r.EndCol == 0 {
		end = ColumnName(r.Col)
	}
	if r.EndRow > 0 {
		end += strconv.Itoa(r.EndRow)
	}
	return out + ":" + end
}

// ParseA1 parses "B2", "A2:F" and "E2:E10" style references.
func ParseA1(ref string) (Range, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return Range{}, fmt.Errorf("empty A1 reference")
	}
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}
	start, end, hasEnd := strings.Cut(ref, ":")
	col, row, err := parseCellRef(start)
	if err != nil {
		return Range{}, err
	}
	if row == 0 {
		row = 1
	}
	r := Range{Row: row, Col: col, EndRow: row, EndCol: col}
	if hasEnd {
		endCol, endRow, err := parseCellRef(end)
		if err != nil {
			return Range{}, err
		}
		r.EndCol = endCol
		r.EndRow = endRow
	}
	if err := r.validate(); err != nil {
		return Range{}, fmt.Errorf("A1 %q: %w", ref, err)
	}
	return r, nil
}

// ParseRef splits "Ohlc(US)!A2:F" into its sheet name and range.
func ParseRef(ref string) (string, Range, error) {
	sheet, a1, ok := strings.Cut(strings.TrimSpace(ref), "!")
	if !ok || strings.TrimSpace(sheet) == "" {
		return "", Range{}, fmt.Errorf("reference %q has no sheet name", ref)
	}
	r, err := ParseA1(a1)
	if err != nil {
		return "", Range{}, err
	}
	return strings.Trim(strings.TrimSpace(sheet), "'"), r, nil
}

func parseCellRef(s string) (col, row int, err error) {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("A1 %q: missing column letters", s)
	}
	if i < len(s) {
		row, err = strconv.Atoi(s[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("A1 %q: invalid row", s)
		}
	}
	return col, row, nil
}

// ColumnName converts 1 -> "A", 27 -> "AA".
func ColumnName(col int) string {
	if col <= 0 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// Store is the spreadsheet collaborator: sheets of 1-indexed cells.
type Store interface {
	// Read returns the block as rows; open ends resolve to the sheet extents.
	Read(ctx context.Context, sheet string, r Range) ([][]Value, error)
	// Write overwrites cells starting at (row, col); empty values blank the cell.
	Write(ctx context.Context, sheet string, row, col int, values [][]Value) error
	Clear(ctx context.Context, sheet string, r Range) error
	// LastRow is the last row holding any non-empty cell, 0 for an empty sheet.
	LastRow(ctx context.Context, sheet string) (int, error)
	LastColumn(ctx context.Context, sheet string) (int, error)
	EnsureSheet(ctx context.Context, sheet string) error
	DeleteSheet(ctx context.Context, sheet string) error
	Close() error
}

// Get reads one cell.
func Get(ctx context.Context, s Store, sheet string, row, col int) (Value, error) {
	rows, err := s.Read(ctx, sheet, Cell(row, col))
	if err != nil {
		return Empty, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Empty, nil
	}
	return rows[0][0], nil
}

// Set writes one cell.
func Set(ctx context.Context, s Store, sheet string, row, col int, v Value) error {
	return s.Write(ctx, sheet, row, col, [][]Value{{v}})
}
