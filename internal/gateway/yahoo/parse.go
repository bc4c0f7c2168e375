package yahoo

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minyeamer/gspread/internal/market"
)

// parseCSV decodes a download body. Header: Date,Open,High,Low,Close,Adj Close,Volume
// for history; Date,Dividends or Date,Stock Splits for events.
func parseCSV(body io.Reader, ticker string, events market.EventKind, digits int) ([]market.PriceRow, error) {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, NewValidationError("empty response body")
	}
	if err != nil {
		return nil, NewValidationError("read csv header: %v", err)
	}
	index := make(map[market.Column]int, len(header))
	for i, name := range header {
		if c, ok := market.ParseColumn(strings.TrimPrefix(name, "\ufeff")); ok {
			index[c] = i
		}
	}
	if _, ok := index[market.ColDate]; !ok {
		return nil, NewValidationError("csv header has no Date column: %v", header)
	}
	if events == market.EventsHistory {
		if _, ok := index[market.ColClose]; !ok {
			return nil, NewValidationError("csv header has no Close column: %v", header)
		}
	}

	var rows []market.PriceRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewValidationError("read csv line %d: %v", line, err)
		}
		field := func(c market.Column) string {
			i, ok := index[c]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		date, err := time.Parse(time.DateOnly, field(market.ColDate))
		if err != nil {
			return nil, NewValidationError("line %d: invalid date %q", line, field(market.ColDate))
		}
		row := market.PriceRow{Ticker: ticker, Date: date}

		switch events {
		case market.EventsDividends:
			row.Dividend = optionalDecimal(field(market.ColDividends))
		case market.EventsSplits:
			row.Split = field(market.ColSplits)
		default:
			closePrice, err := decimal.NewFromString(field(market.ColClose))
			if err != nil {
				// non-trading days come back as "null"
				continue
			}
			row.Close = closePrice
			for _, target := range []struct {
				col market.Column
				dst *decimal.Decimal
			}{
				{market.ColOpen, &row.Open},
				{market.ColHigh, &row.High},
				{market.ColLow, &row.Low},
				{market.ColVolume, &row.Volume},
			} {
				raw := field(target.col)
				if raw == "" {
					continue
				}
				v, err := decimal.NewFromString(raw)
				if err != nil {
					return nil, NewValidationError("line %d: invalid %s %q", line, target.col, raw)
				}
				*target.dst = v
			}
			row.AdjClose = optionalDecimal(field(market.ColAdjClose))
			row = row.Truncated(digits)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func optionalDecimal(raw string) decimal.NullDecimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
