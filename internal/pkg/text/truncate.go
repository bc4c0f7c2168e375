// Package text shortens upstream payloads for errors and logs.
package text

import (
	"strings"
	"unicode/utf8"
)

// Truncate collapses whitespace runs to single spaces and cuts s to at most
// max runes, marking the cut with "...". max <= 0 only collapses.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
