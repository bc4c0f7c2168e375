// Package jobs names the runnable entry points (prices-us, candles-kr, ...)
// and runs them against the grid, the market source and the asset store.
package jobs

import (
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindPrices     Kind = "prices"
	KindCandles    Kind = "candles"
	KindSparklines Kind = "sparklines"
	KindPurgeTrash Kind = "purge_trash"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPrices, KindCandles, KindSparklines, KindPurgeTrash:
		return k, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", s)
	}
}

// Definition is one named job. Params override the segment defaults.
type Definition struct {
	Name     string         `json:"name"`
	Kind     Kind           `json:"kind"`
	Segment  string         `json:"segment,omitempty"`
	Schedule string         `json:"schedule,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("job name is required")
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return fmt.Errorf("job %s: %w", d.Name, err)
	}
	if d.Kind != KindPurgeTrash {
		if _, err := SegmentByName(d.Segment); err != nil {
			return fmt.Errorf("job %s: %w", d.Name, err)
		}
	}
	return nil
}

// Defaults are the built-in jobs used when no jobs file is configured.
func Defaults() []Definition {
	out := make([]Definition, 0, 7)
	for _, seg := range []string{"us", "kr"} {
		for _, kind := range []Kind{KindPrices, KindCandles, KindSparklines} {
			out = append(out, Definition{
				Name:    fmt.Sprintf("%s-%s", kind, seg),
				Kind:    kind,
				Segment: seg,
			})
		}
	}
	return append(out, Definition{Name: "purge-trash", Kind: KindPurgeTrash})
}

func sortedNames(defs map[string]Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
