package market

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/minyeamer/gspread/internal/grid"
)

// PriceRow is one daily bar (or one dividend/split event) for a ticker.
// Ticker holds the display symbol, not the query symbol.
type PriceRow struct {
	Ticker   string
	Date     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.NullDecimal
	Volume   decimal.Decimal

	// events mode only
	Dividend decimal.NullDecimal
	Split    string
}

// Truncated rounds Open/High/Low/Close to digits and Volume to whole units.
// AdjClose and event fields are left as fetched.
func (r PriceRow) Truncated(digits int) PriceRow {
	r.Open = Truncate(r.Open, digits)
	r.High = Truncate(r.High, digits)
	r.Low = Truncate(r.Low, digits)
	r.Close = Truncate(r.Close, digits)
	r.Volume = Truncate(r.Volume, 0)
	return r
}

// Cell renders one column of the row as a grid value.
func (r PriceRow) Cell(col Column) grid.Value {
	switch col {
	case ColTicker:
		return grid.String(r.Ticker)
	case ColDate:
		return grid.Time(r.Date)
	case ColOpen:
		return grid.Number(r.Open)
	case ColHigh:
		return grid.Number(r.High)
	case ColLow:
		return grid.Number(r.Low)
	case ColClose:
		return grid.Number(r.Close)
	case ColAdjClose:
		return nullable(r.AdjClose)
	case ColVolume:
		return grid.Number(r.Volume)
	case ColDividends:
		return nullable(r.Dividend)
	case ColSplits:
		return grid.String(r.Split)
	default:
		return grid.Empty
	}
}

func nullable(d decimal.NullDecimal) grid.Value {
	if !d.Valid {
		return grid.Empty
	}
	return grid.Number(d.Decimal)
}

// Table projects rows into grid rows, without a header line.
func Table(rows []PriceRow, proj Projection) [][]grid.Value {
	out := make([][]grid.Value, 0, len(rows))
	for _, r := range rows {
		out = append(out, proj.Apply(r))
	}
	return out
}
