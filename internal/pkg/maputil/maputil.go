// Package maputil reads loosely typed values out of decoded YAML/JSON maps.
package maputil

import (
	"fmt"
	"strconv"
	"strings"
)

func Has(params map[string]any, key string) bool {
	if params == nil {
		return false
	}
	v, ok := params[key]
	return ok && v != nil
}

func String(params map[string]any, key string) string {
	if !Has(params, key) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", params[key]))
}

// Int returns the value at key and whether it was present and numeric.
func Int(params map[string]any, key string) (int, bool) {
	if !Has(params, key) {
		return 0, false
	}
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprintf("%v", v)))
		return n, err == nil
	}
}

func Bool(params map[string]any, key string) (bool, bool) {
	if !Has(params, key) {
		return false, false
	}
	switch v := params[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

// StringSlice accepts a list or a comma separated string.
func StringSlice(params map[string]any, key string) []string {
	if !Has(params, key) {
		return nil
	}
	var parts []string
	switch val := params[key].(type) {
	case []string:
		parts = val
	case []any:
		parts = make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprintf("%v", item)
		}
	default:
		parts = strings.Split(fmt.Sprintf("%v", val), ",")
	}
	out := make([]string, 0, len(parts))
	for _, item := range parts {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Merge returns a new map with layers applied left to right.
func Merge(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
