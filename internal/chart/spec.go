package chart

import (
	"fmt"
	"math"
	"time"

	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/series"
)

// Candle is one bar in echarts order.
type Candle struct {
	Open, Close, Low, High float64
}

// Spec is the computed visual contract handed to the page builder.
type Spec struct {
	Width      int
	Height     int
	Background string
	// Color is the trend color: Rising when the last value beats the first.
	Color   string
	Rising  string
	Falling string
	Stroke  string
	YMin    float64
	YMax    float64
	Labels  []string

	Candles   []Candle
	Points    []float64
	LineWidth int
}

// Trend picks rising when last > first, falling otherwise (ties fall).
func Trend(first, last float64, rising, falling string) string {
	if last > first {
		return rising
	}
	return falling
}

// BuildCandleSpec expects rows of [date, open, high, low, close], oldest first.
func BuildCandleSpec(rows []series.Entry, o Options) (Spec, error) {
	o = o.withDefaults()
	if len(rows) == 0 {
		return Spec{}, &RenderError{Chart: "candlestick", Reason: "empty series"}
	}
	spec := Spec{
		Width:      o.Width,
		Height:     o.Height,
		Background: "white",
		Rising:     o.Rising,
		Falling:    o.Falling,
		Stroke:     o.Stroke,
		Labels:     make([]string, len(rows)),
		Candles:    make([]Candle, len(rows)),
		YMin:       math.Inf(1),
		YMax:       math.Inf(-1),
	}
	for i, row := range rows {
		if len(row) < 5 {
			return Spec{}, &RenderError{Chart: "candlestick", Reason: fmt.Sprintf("row %d has %d cells, want 5", i, len(row))}
		}
		var vals [4]float64
		for j := 0; j < 4; j++ {
			v, ok := row[j+1].Float()
			if !ok {
				return Spec{}, &RenderError{Chart: "candlestick", Reason: fmt.Sprintf("row %d column %d is not numeric: %q", i, j+1, row[j+1].String())}
			}
			vals[j] = v
		}
		c := Candle{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}
		spec.Candles[i] = c
		spec.Labels[i] = dateLabel(row[0])

		lo, hi := c.Open, c.Close
		if o.AxisMode == AxisHighLow {
			lo, hi = c.Low, c.High
		}
		spec.YMin = math.Min(spec.YMin, lo)
		spec.YMax = math.Max(spec.YMax, hi)
	}
	first, last := spec.Candles[0].Close, spec.Candles[len(rows)-1].Close
	spec.Color = Trend(first, last, o.Rising, o.Falling)
	return spec, nil
}

// BuildSparkSpec expects rows of [date, metric], oldest first.
func BuildSparkSpec(rows []series.Entry, o Options) (Spec, error) {
	o = o.withDefaults()
	if len(rows) == 0 {
		return Spec{}, &RenderError{Chart: "sparkline", Reason: "empty series"}
	}
	spec := Spec{
		Width:      o.Width,
		Height:     o.Height,
		Background: "transparent",
		Rising:     o.Rising,
		Falling:    o.Falling,
		LineWidth:  o.LineWidth,
		Labels:     make([]string, len(rows)),
		Points:     make([]float64, len(rows)),
		YMin:       math.Inf(1),
		YMax:       math.Inf(-1),
	}
	for i, row := range rows {
		if len(row) < 2 {
			return Spec{}, &RenderError{Chart: "sparkline", Reason: fmt.Sprintf("row %d has %d cells, want 2", i, len(row))}
		}
		v, ok := row[1].Float()
		if !ok {
			return Spec{}, &RenderError{Chart: "sparkline", Reason: fmt.Sprintf("row %d metric is not numeric: %q", i, row[1].String())}
		}
		spec.Points[i] = v
		spec.Labels[i] = dateLabel(row[0])
		spec.YMin = math.Min(spec.YMin, v)
		spec.YMax = math.Max(spec.YMax, v)
	}
	spec.Color = Trend(spec.Points[0], spec.Points[len(rows)-1], o.Rising, o.Falling)
	return spec, nil
}

// Ticks are the only y-axis ticks a sparkline shows.
func (s Spec) Ticks() []float64 { return []float64{s.YMin, s.YMax} }

// flatAxisPad is the fraction added on each side of a flat series.
const flatAxisPad = 0.005

// AxisBounds is the y-axis range handed to the page. A flat series
// (YMin == YMax) is widened so the axis never collapses to a point.
func (s Spec) AxisBounds() (lo, hi float64) {
	if s.YMin != s.YMax {
		return s.YMin, s.YMax
	}
	pad := math.Abs(s.YMin) * flatAxisPad
	if pad == 0 {
		pad = 1
	}
	return s.YMin - pad, s.YMax + pad
}

func dateLabel(v grid.Value) string {
	if t, ok := v.Time(); ok {
		return t.Format(time.DateOnly)
	}
	return v.String()
}
