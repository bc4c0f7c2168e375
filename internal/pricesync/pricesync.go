// Package pricesync fills a return range with a year of daily prices for the
// tickers listed in a query range.
package pricesync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/pkg/symbol"
)

const DefaultConcurrency = 4

// Request 描述一次价格同步。
type Request struct {
	// Query is a reference like "Chart(US)!A2:A" holding the tickers.
	Query string
	// Return is a reference like "Ohlc(US)!A2:F" replaced with the rows.
	Return  string
	Columns []string
	// Limit keeps the newest N rows per ticker, 0 keeps all.
	Limit      int
	Truncation *int
	// Events selects dividends or splits instead of daily history.
	Events market.EventKind
}

type Result struct {
	Tickers int
	Rows    int
}

type Syncer struct {
	fetcher     market.Fetcher
	grid        grid.Store
	concurrency int
	now         func() time.Time
}

type Options struct {
	Concurrency int
	Now         func() time.Time
}

func New(f market.Fetcher, g grid.Store, opts Options) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{fetcher: f, grid: g, concurrency: opts.Concurrency, now: opts.Now}
}

// Sync fetches every ticker, keeps each ticker's newest Limit rows newest
// first, and replaces the return range. Nothing is written when no rows come
// back. Any fetch error cancels the batch before the grid is touched.
func (s *Syncer) Sync(ctx context.Context, req Request) (Result, error) {
	querySheet, queryRange, err := grid.ParseRef(req.Query)
	if err != nil {
		return Result{}, fmt.Errorf("query range: %w", err)
	}
	returnSheet, returnRange, err := grid.ParseRef(req.Return)
	if err != nil {
		return Result{}, fmt.Errorf("return range: %w", err)
	}
	if req.Limit < 0 {
		return Result{}, fmt.Errorf("limit must be >= 0, got %d", req.Limit)
	}

	cells, err := s.grid.Read(ctx, querySheet, queryRange)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", req.Query, err)
	}
	raw := grid.Flatten(cells)
	names := make([]string, len(raw))
	for i, v := range raw {
		names[i] = v.String()
	}
	tickers := symbol.Clean(names)
	if len(tickers) == 0 {
		logger.Infof("pricesync: no tickers in %s", req.Query)
		return Result{}, nil
	}

	events := req.Events
	if events == "" {
		events = market.EventsHistory
	}
	proj := market.NewProjection(req.Columns, market.Header(events))
	if proj.Len() == 0 {
		return Result{}, fmt.Errorf("no known columns in %v", req.Columns)
	}
	start, end := market.LastYear(s.now())

	tables := make([][][]grid.Value, len(tickers))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, ticker := range tickers {
		eg.Go(func() error {
			rows, err := s.fetcher.Fetch(egCtx, market.FetchRequest{
				Ticker:     ticker,
				Start:      start,
				End:        end,
				Columns:    req.Columns,
				Truncation: req.Truncation,
				Events:     events,
			})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", ticker, err)
			}
			tables[i] = newestFirst(market.Table(rows, proj), req.Limit)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	width := returnRange.Width()
	if width <= 0 {
		width = proj.Len()
	}
	var data [][]grid.Value
	for _, t := range tables {
		for _, row := range t {
			data = append(data, fit(row, width))
		}
	}
	if len(data) == 0 {
		logger.Warnf("pricesync: %s returned no rows, %s left as is", strings.Join(tickers, ","), req.Return)
		return Result{Tickers: len(tickers)}, nil
	}

	if err := s.grid.EnsureSheet(ctx, returnSheet); err != nil {
		return Result{}, err
	}
	if err := s.grid.Clear(ctx, returnSheet, returnRange); err != nil {
		return Result{}, fmt.Errorf("clear %s: %w", req.Return, err)
	}
	if err := s.grid.Write(ctx, returnSheet, returnRange.Row, returnRange.Col, data); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", req.Return, err)
	}
	logger.Infof("pricesync: %d tickers -> %d rows in %s", len(tickers), len(data), req.Return)
	return Result{Tickers: len(tickers), Rows: len(data)}, nil
}

// newestFirst reverses source order and keeps at most limit rows.
func newestFirst(rows [][]grid.Value, limit int) [][]grid.Value {
	n := len(rows)
	out := make([][]grid.Value, 0, n)
	for i := n - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i])
	}
	return out
}

func fit(row []grid.Value, width int) []grid.Value {
	out := make([]grid.Value, width)
	copy(out, row)
	return out
}
