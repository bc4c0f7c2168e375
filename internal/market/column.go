package market

import (
	"strings"

	"github.com/minyeamer/gspread/internal/grid"
)

// Column names a field of the download CSV, plus the synthetic Ticker column.
type Column string

const (
	ColTicker    Column = "Ticker"
	ColDate      Column = "Date"
	ColOpen      Column = "Open"
	ColHigh      Column = "High"
	ColLow       Column = "Low"
	ColClose     Column = "Close"
	ColAdjClose  Column = "Adj Close"
	ColVolume    Column = "Volume"
	ColDividends Column = "Dividends"
	ColSplits    Column = "Stock Splits"
)

// Header returns the full column set for an events mode, in source order.
func Header(events EventKind) []Column {
	switch events {
	case EventsDividends:
		return []Column{ColTicker, ColDate, ColDividends}
	case EventsSplits:
		return []Column{ColTicker, ColDate, ColSplits}
	default:
		return []Column{ColTicker, ColDate, ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}
	}
}

var columnAliases = map[string]Column{
	"adjclose":  ColAdjClose,
	"adj_close": ColAdjClose,
	"dividend":  ColDividends,
	"split":     ColSplits,
	"splits":    ColSplits,
}

// ParseColumn matches a header name case-insensitively.
func ParseColumn(name string) (Column, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	for _, c := range []Column{ColTicker, ColDate, ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume, ColDividends, ColSplits} {
		if strings.ToLower(string(c)) == key {
			return c, true
		}
	}
	c, ok := columnAliases[key]
	return c, ok
}

// Projection is an ordered column selection validated against a header once.
type Projection struct {
	cols []Column
}

// NewProjection keeps the requested columns present in header, in requested order.
// Unknown or absent names are dropped; an empty request selects the whole header.
func NewProjection(requested []string, header []Column) Projection {
	if len(requested) == 0 {
		return Projection{cols: append([]Column(nil), header...)}
	}
	present := make(map[Column]struct{}, len(header))
	for _, c := range header {
		present[c] = struct{}{}
	}
	cols := make([]Column, 0, len(requested))
	for _, name := range requested {
		c, ok := ParseColumn(name)
		if !ok {
			continue
		}
		if _, ok := present[c]; ok {
			cols = append(cols, c)
		}
	}
	return Projection{cols: cols}
}

func (p Projection) Columns() []Column { return append([]Column(nil), p.cols...) }

func (p Projection) Len() int { return len(p.cols) }

func (p Projection) Apply(r PriceRow) []grid.Value {
	out := make([]grid.Value, len(p.cols))
	for i, c := range p.cols {
		out[i] = r.Cell(c)
	}
	return out
}

// HeaderRow renders the column names as a grid row.
func (p Projection) HeaderRow() []grid.Value {
	out := make([]grid.Value, len(p.cols))
	for i, c := range p.cols {
		out[i] = grid.String(string(c))
	}
	return out
}
