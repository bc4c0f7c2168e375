package symbol

import (
	"strings"
)

type Format string

const (
	FormatSheet   Format = "sheet"
	FormatYahoo   Format = "yahoo"
	FormatDisplay Format = "display"
)

// Converter maps the ticker as typed in the sheet to a source-specific form and back.
type Converter interface {
	ToSource(ticker string) string

	FromSource(raw string) string

	Format() Format
}

// Korean listings keep their exchange suffix in queries.
var exchangeSuffixes = []string{".KS", ".KQ"}

func exchangeSuffix(ticker string) string {
	for _, suffix := range exchangeSuffixes {
		if strings.HasSuffix(ticker, suffix) {
			return suffix
		}
	}
	return ""
}

// IsKorean reports whether the ticker is a KOSPI/KOSDAQ listing.
func IsKorean(ticker string) bool {
	return exchangeSuffix(strings.TrimSpace(ticker)) != ""
}

// Query is the form sent to the market-data source:
// "005930.KS" stays as is, "BRK.B" becomes "BRK-B". Only the first dot is
// rewritten.
func Query(ticker string) string {
	t := strings.TrimSpace(ticker)
	if exchangeSuffix(t) != "" {
		return t
	}
	return strings.Replace(t, ".", "-", 1)
}

// Display is the form written back to the sheet: "005930.KS" -> "005930".
func Display(ticker string) string {
	t := strings.TrimSpace(ticker)
	if suffix := exchangeSuffix(t); suffix != "" {
		return strings.TrimSuffix(t, suffix)
	}
	return t
}

// Clean trims each ticker and drops blanks, keeping order and duplicates.
func Clean(tickers []string) []string {
	if len(tickers) == 0 {
		return nil
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
