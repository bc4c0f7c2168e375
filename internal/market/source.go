package market

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EventKind selects the download series: daily history or corporate events.
type EventKind string

const (
	EventsHistory   EventKind = "history"
	EventsDividends EventKind = "div"
	EventsSplits    EventKind = "split"
)

func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "history":
		return EventsHistory, nil
	case "div", "dividend", "dividends":
		return EventsDividends, nil
	case "split", "splits":
		return EventsSplits, nil
	default:
		return "", fmt.Errorf("unknown events kind %q", s)
	}
}

// DefaultTruncation is the digit count used when a request leaves it unset.
const DefaultTruncation = 2

type FetchRequest struct {
	Ticker string
	Start  time.Time
	End    time.Time
	// Columns to project; empty selects all.
	Columns []string
	// Truncation is the OHLC digit count; nil means DefaultTruncation.
	Truncation *int
	Events     EventKind
}

func (r FetchRequest) Digits() int {
	if r.Truncation == nil {
		return DefaultTruncation
	}
	return *r.Truncation
}

func (r FetchRequest) Validate() error {
	if strings.TrimSpace(r.Ticker) == "" {
		return fmt.Errorf("ticker is required")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("fetch window end %s must be after start %s", r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	if r.Truncation != nil && *r.Truncation < 0 {
		return fmt.Errorf("truncation must be >= 0, got %d", *r.Truncation)
	}
	return nil
}

// Fetcher retrieves rows for one ticker, oldest first as the source returns them.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]PriceRow, error)
}

// LastYear builds the one-year window ending at now.
func LastYear(now time.Time) (time.Time, time.Time) {
	return now.Add(-365 * 24 * time.Hour), now
}
