// Package chart turns a ticker's oldest-first series into a small PNG:
// a candlestick for OHLC rows or a sparkline for a single metric.
//
// The visual contract (trend color, axis bounds, size) is computed in Go as a
// Spec; go-echarts renders it to an HTML page and a Rasterizer captures it.
package chart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minyeamer/gspread/internal/series"
)

const (
	DefaultWidth     = 500
	DefaultHeight    = 100
	DefaultRising    = "green"
	DefaultFalling   = "red"
	DefaultStroke    = "black"
	DefaultLineWidth = 1
	DefaultSettle    = 1500 * time.Millisecond

	MimePNG = "image/png"
)

// Image is one rendered chart. FileName is assigned by the caller.
type Image struct {
	Bytes    []byte
	MimeType string
	FileName string
}

// Renderer is implemented by Candlestick and Sparkline.
type Renderer interface {
	Render(ctx context.Context, rows []series.Entry) (Image, error)
}

// AxisMode picks the candlestick y-axis bounds.
type AxisMode string

const (
	// AxisOpenClose bounds the axis by min(open) and max(close).
	AxisOpenClose AxisMode = "open_close"
	// AxisHighLow bounds the axis by min(low) and max(high).
	AxisHighLow AxisMode = "high_low"
)

func ParseAxisMode(s string) (AxisMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(AxisOpenClose):
		return AxisOpenClose, nil
	case string(AxisHighLow):
		return AxisHighLow, nil
	default:
		return "", fmt.Errorf("unknown axis mode %q", s)
	}
}

type Options struct {
	Width   int
	Height  int
	Rising  string
	Falling string
	// Stroke is the candle border color.
	Stroke    string
	LineWidth int
	AxisMode  AxisMode
	// AssetsHost overrides where the page loads echarts.min.js from.
	AssetsHost string
	// Settle is how long the rasterizer waits for the chart to draw.
	Settle time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if strings.TrimSpace(o.Rising) == "" {
		o.Rising = DefaultRising
	}
	if strings.TrimSpace(o.Falling) == "" {
		o.Falling = DefaultFalling
	}
	if strings.TrimSpace(o.Stroke) == "" {
		o.Stroke = DefaultStroke
	}
	if o.LineWidth <= 0 {
		o.LineWidth = DefaultLineWidth
	}
	if o.AxisMode == "" {
		o.AxisMode = AxisOpenClose
	}
	if o.Settle < 0 {
		o.Settle = 0
	} else if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	return o
}

// RenderError reports an empty or malformed series, or a failed capture.
type RenderError struct {
	Chart  string
	Reason string
	Cause  error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render %s: %s: %v", e.Chart, e.Reason, e.Cause)
	}
	return fmt.Sprintf("render %s: %s", e.Chart, e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// FileName builds "<ticker>_<YYYYMMDD_HHmmss>.<ext>" at the given location.
func FileName(ticker string, at time.Time, loc *time.Location, ext string) string {
	if loc == nil {
		loc = time.UTC
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%s_%s.%s", strings.TrimSpace(ticker), at.In(loc).Format("20060102_150405"), ext)
}
