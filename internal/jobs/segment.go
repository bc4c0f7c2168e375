package jobs

import (
	"fmt"
	"strings"
)

// Segment 是一个市场分区的默认参数。
type Segment struct {
	Name string
	// Query holds the tickers to fetch, Data receives the prices.
	Query   string
	Data    string
	Columns []string
	Limit   int
	// Truncation is the OHLC digit count.
	Truncation int

	ChartSheet   string
	CandleFolder string
	SparkFolder  string
	Rising       string
	Falling      string
}

// DataColumns is the Data layout PriceSync writes: A..F.
var DataColumns = []string{"Ticker", "Open", "High", "Low", "Close", "Date"}

// Value columns of the Data sheet (0-based) grouped by ticker.
var (
	candleValueColumns = []int{5, 1, 2, 3, 4}
	sparkValueColumns  = []int{5, 4}
)

var (
	SegmentUS = Segment{
		Name:         "us",
		Query:        "Chart(US)!A2:A",
		Data:         "Ohlc(US)!A2:F",
		Columns:      DataColumns,
		Limit:        200,
		Truncation:   2,
		ChartSheet:   "Chart(US)",
		CandleFolder: "Candlestick(US)",
		SparkFolder:  "Sparkline(US)",
		Rising:       "green",
		Falling:      "red",
	}
	SegmentKR = Segment{
		Name:         "kr",
		Query:        "Chart(KR)!E2:E",
		Data:         "Ohlc(KR)!A2:F",
		Columns:      DataColumns,
		Limit:        240,
		Truncation:   0,
		ChartSheet:   "Chart(KR)",
		CandleFolder: "Candlestick(KR)",
		SparkFolder:  "Sparkline(KR)",
		Rising:       "red",
		Falling:      "blue",
	}
)

func SegmentByName(name string) (Segment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "us":
		return SegmentUS, nil
	case "kr":
		return SegmentKR, nil
	default:
		return Segment{}, fmt.Errorf("unknown market segment %q (want us|kr)", name)
	}
}
