package jobs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/pipeline"
	"github.com/minyeamer/gspread/internal/pkg/maputil"
)

// ParamKeys lists every key a job definition or a trigger may set.
var ParamKeys = []string{
	"query", "data", "columns", "limit", "truncation", "events",
	"sheet", "folder", "if_exists", "on_error", "start", "end", "clear",
	"width", "height", "rising", "falling", "line_width", "axis_mode",
}

var knownParams = func() map[string]struct{} {
	m := make(map[string]struct{}, len(ParamKeys))
	for _, k := range ParamKeys {
		m[k] = struct{}{}
	}
	return m
}()

// ParseOverrides reads a trigger body such as {"start": 5, "clear": true}.
// An empty body means no overrides.
func ParseOverrides(raw []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("overrides must be valid JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("overrides must be a JSON object")
	}
	out := make(map[string]any)
	var unknown []string
	parsed.ForEach(func(key, value gjson.Result) bool {
		k := strings.ToLower(strings.TrimSpace(key.String()))
		if _, ok := knownParams[k]; !ok {
			unknown = append(unknown, key.String())
			return true
		}
		if value.Type == gjson.Null {
			return true
		}
		out[k] = value.Value()
		return true
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown override keys: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// settings is a definition resolved against its segment and the overrides.
type settings struct {
	Query      string
	Data       string
	Columns    []string
	Limit      int
	Truncation int
	Events     market.EventKind

	Sheet    string
	Folder   string
	IfExists asset.IfExists
	OnError  pipeline.OnError
	Range    pipeline.Range
	Chart    chart.Options
}

func resolve(def Definition, params map[string]any, base chart.Options) (settings, error) {
	seg, err := SegmentByName(def.Segment)
	if err != nil {
		return settings{}, err
	}
	s := settings{
		Query:      seg.Query,
		Data:       seg.Data,
		Columns:    append([]string(nil), seg.Columns...),
		Limit:      seg.Limit,
		Truncation: seg.Truncation,
		Sheet:      seg.ChartSheet,
		Folder:     seg.CandleFolder,
		Chart:      base,
	}
	if def.Kind == KindSparklines {
		s.Folder = seg.SparkFolder
	}
	s.Chart.Rising, s.Chart.Falling = seg.Rising, seg.Falling

	setString(params, "query", &s.Query)
	setString(params, "data", &s.Data)
	setString(params, "sheet", &s.Sheet)
	setString(params, "folder", &s.Folder)
	setString(params, "rising", &s.Chart.Rising)
	setString(params, "falling", &s.Chart.Falling)
	if cols := maputil.StringSlice(params, "columns"); len(cols) > 0 {
		s.Columns = cols
	}

	// lenient row bounds fall back to the range default when not numeric.
	ints := []struct {
		key     string
		dst     *int
		lenient bool
	}{
		{"limit", &s.Limit, false},
		{"truncation", &s.Truncation, false},
		{"start", &s.Range.Start, true},
		{"end", &s.Range.End, true},
		{"width", &s.Chart.Width, false},
		{"height", &s.Chart.Height, false},
		{"line_width", &s.Chart.LineWidth, false},
	}
	for _, f := range ints {
		if !maputil.Has(params, f.key) {
			continue
		}
		n, ok := maputil.Int(params, f.key)
		if !ok && f.lenient {
			*f.dst = 0
			continue
		}
		if !ok || n < 0 {
			return settings{}, fmt.Errorf("%s must be a non-negative integer, got %v", f.key, params[f.key])
		}
		*f.dst = n
	}
	s.Range.Limit = s.Limit

	if maputil.Has(params, "clear") {
		on, ok := maputil.Bool(params, "clear")
		if !ok {
			return settings{}, fmt.Errorf("clear must be a boolean, got %v", params["clear"])
		}
		s.Range.Clear = on
	}
	if s.Events, err = market.ParseEventKind(maputil.String(params, "events")); err != nil {
		return settings{}, err
	}
	if s.IfExists, err = asset.ParseIfExists(maputil.String(params, "if_exists")); err != nil {
		return settings{}, err
	}
	if s.OnError, err = pipeline.ParseOnError(maputil.String(params, "on_error")); err != nil {
		return settings{}, err
	}
	if maputil.Has(params, "axis_mode") {
		if s.Chart.AxisMode, err = chart.ParseAxisMode(maputil.String(params, "axis_mode")); err != nil {
			return settings{}, err
		}
	}
	return s, nil
}

func setString(params map[string]any, key string, dst *string) {
	if v := maputil.String(params, key); v != "" {
		*dst = v
	}
}
