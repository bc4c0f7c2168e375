package chart

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartID           = "gspread_chart"
	candleStrokeWidth = 3
)

func initOpts(s Spec, assetsHost string) opts.Initialization {
	init := opts.Initialization{
		PageTitle:       "chart",
		ChartID:         chartID,
		Width:           fmt.Sprintf("%dpx", s.Width),
		Height:          fmt.Sprintf("%dpx", s.Height),
		BackgroundColor: s.Background,
	}
	if assetsHost != "" {
		init.AssetsHost = assetsHost
	}
	return init
}

// Axis labels, lines and gridlines are all hidden; the chart fills the canvas.
func bareGlobals(s Spec, assetsHost string) []charts.GlobalOpts {
	hidden := opts.Bool(false)
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(initOpts(s, assetsHost)),
		charts.WithLegendOpts(opts.Legend{Show: hidden}),
		charts.WithTooltipOpts(opts.Tooltip{Show: hidden}),
		charts.WithGridOpts(opts.Grid{Left: "0", Right: "0", Top: "0", Bottom: "0"}),
		charts.WithColorsOpts(opts.Colors{s.Color}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Show: hidden},
			AxisLine:  &opts.AxisLine{Show: hidden},
			SplitLine: &opts.SplitLine{Show: hidden},
		}),
	}
}

func candlePage(s Spec, assetsHost string) ([]byte, error) {
	kline := charts.NewKLine()
	lo, hi := s.AxisBounds()
	globals := append(bareGlobals(s, assetsHost),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			Min:       lo,
			Max:       hi,
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)},
			AxisLine:  &opts.AxisLine{Show: opts.Bool(false)},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
	)
	kline.SetGlobalOptions(globals...)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        s.Rising,
			Color0:       s.Falling,
			BorderColor:  s.Stroke,
			BorderColor0: s.Stroke,
			BorderWidth:  candleStrokeWidth,
		}),
	)
	data := make([]opts.KlineData, len(s.Candles))
	for i, c := range s.Candles {
		data[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
	}
	kline.SetXAxis(s.Labels)
	kline.AddSeries("ohlc", data)

	var buf bytes.Buffer
	if err := kline.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sparkPage(s Spec, assetsHost string) ([]byte, error) {
	line := charts.NewLine()
	lo, hi := s.AxisBounds()
	globals := append(bareGlobals(s, assetsHost),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:       opts.Bool(true),
			Min:         lo,
			Max:         hi,
			SplitNumber: 1,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
			AxisLine:    &opts.AxisLine{Show: opts.Bool(false)},
			SplitLine:   &opts.SplitLine{Show: opts.Bool(false)},
		}),
	)
	line.SetGlobalOptions(globals...)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color, Width: float32(s.LineWidth)}),
	)
	data := make([]opts.LineData, len(s.Points))
	for i, v := range s.Points {
		data[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(s.Labels)
	line.AddSeries("metric", data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
