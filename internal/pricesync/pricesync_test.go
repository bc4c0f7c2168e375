package pricesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/market"
)

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, req market.FetchRequest) ([]market.PriceRow, error) {
	args := m.Called(ctx, req.Ticker)
	rows, _ := args.Get(0).([]market.PriceRow)
	return rows, args.Error(1)
}

var columns = []string{"Ticker", "Open", "High", "Low", "Close", "Date"}

func bars(ticker string, closes ...float64) []market.PriceRow {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.PriceRow, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		out[i] = market.PriceRow{Ticker: ticker, Date: day.AddDate(0, 0, i), Open: d, High: d, Low: d, Close: d}
	}
	return out
}

func seed(t *testing.T, tickers ...string) *grid.MemoryStore {
	t.Helper()
	g := grid.NewMemoryStore()
	rows := [][]grid.Value{{grid.String("Ticker")}}
	for _, tk := range tickers {
		rows = append(rows, []grid.Value{grid.String(tk)})
	}
	require.NoError(t, g.Write(context.Background(), "Chart(US)", 1, 1, rows))
	return g
}

func TestSyncReplacesReturnRangeNewestFirst(t *testing.T) {
	g := seed(t, "AAPL", " ", "MSFT")
	require.NoError(t, g.Write(context.Background(), "Ohlc(US)", 2, 1, [][]grid.Value{
		{grid.String("OLD")}, {grid.String("OLD")}, {grid.String("OLD")}, {grid.String("OLD")}, {grid.String("OLD")},
	}))
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAPL").Return(bars("AAPL", 1, 2, 3), nil)
	f.On("Fetch", mock.Anything, "MSFT").Return(bars("MSFT", 10, 20), nil)

	s := New(f, g, Options{Concurrency: 2, Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }})
	res, err := s.Sync(context.Background(), Request{
		Query:   "Chart(US)!A2:A",
		Return:  "Ohlc(US)!A2:F",
		Columns: columns,
		Limit:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Tickers: 2, Rows: 4}, res)

	out, err := g.Read(context.Background(), "Ohlc(US)", grid.Range{Row: 2, Col: 1, EndCol: 6})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "AAPL", out[0][0].String())
	assert.Equal(t, "3", out[0][4].String())
	assert.Equal(t, "2", out[1][4].String())
	assert.Equal(t, "MSFT", out[2][0].String())
	assert.Equal(t, "20", out[2][4].String())
	day, ok := out[3][5].Time()
	require.True(t, ok)
	assert.Equal(t, 1, day.Day())

	last, err := g.LastRow(context.Background(), "Ohlc(US)")
	require.NoError(t, err)
	assert.Equal(t, 5, last)
}

func TestSyncFetchErrorLeavesGridUntouched(t *testing.T) {
	g := seed(t, "AAPL", "BAD")
	require.NoError(t, grid.Set(context.Background(), g, "Ohlc(US)", 2, 1, grid.String("OLD")))
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAPL").Return(bars("AAPL", 1), nil).Maybe()
	f.On("Fetch", mock.Anything, "BAD").Return(nil, errors.New("404"))

	_, err := New(f, g, Options{}).Sync(context.Background(), Request{Query: "Chart(US)!A2:A", Return: "Ohlc(US)!A2:F", Columns: columns})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch BAD")

	v, err := grid.Get(context.Background(), g, "Ohlc(US)", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "OLD", v.String())
}

func TestSyncEmptyDataWritesNothing(t *testing.T) {
	g := seed(t, "AAPL")
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "AAPL").Return([]market.PriceRow{}, nil)

	res, err := New(f, g, Options{}).Sync(context.Background(), Request{Query: "Chart(US)!A2:A", Return: "Ohlc(US)!A2:F"})
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.NotContains(t, g.Sheets(), "Ohlc(US)")
}

func TestSyncRejectsBadReferences(t *testing.T) {
	s := New(&mockFetcher{}, grid.NewMemoryStore(), Options{})
	_, err := s.Sync(context.Background(), Request{Query: "A2:A", Return: "Ohlc(US)!A2:F"})
	assert.Error(t, err)
	_, err = s.Sync(context.Background(), Request{Query: "Chart(US)!A2:A", Return: "Ohlc(US)!A2:F", Limit: -1})
	assert.Error(t, err)
}

type eventsFetcher struct{ got market.EventKind }

func (e *eventsFetcher) Fetch(_ context.Context, req market.FetchRequest) ([]market.PriceRow, error) {
	e.got = req.Events
	return []market.PriceRow{{
		Ticker:   req.Ticker,
		Date:     time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC),
		Dividend: decimal.NewNullDecimal(decimal.RequireFromString("0.24")),
	}}, nil
}

func TestSyncDividendsUsesEventHeader(t *testing.T) {
	g := seed(t, "AAPL")
	f := &eventsFetcher{}
	s := New(f, g, Options{Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }})
	res, err := s.Sync(context.Background(), Request{
		Query:  "Chart(US)!A2:A",
		Return: "Div(US)!A2:C",
		Events: market.EventsDividends,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, market.EventsDividends, f.got)

	out, err := g.Read(context.Background(), "Div(US)", grid.Range{Row: 2, Col: 1, EndRow: 2, EndCol: 3})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out[0][0].String())
	assert.Equal(t, "0.24", out[0][2].String())
}
