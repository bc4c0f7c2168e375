package chart

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/series"
)

type fakeRasterizer struct {
	pages []Page
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, p Page) ([]byte, error) {
	f.pages = append(f.pages, p)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("\x89PNG fake"), nil
}

func day(d int) grid.Value {
	return grid.Time(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC))
}

func ohlc(d int, o, h, l, c float64) series.Entry {
	return series.Entry{day(d), grid.Float(o), grid.Float(h), grid.Float(l), grid.Float(c)}
}

func TestCandleSpecRisingAndOpenCloseBounds(t *testing.T) {
	rows := []series.Entry{
		ohlc(1, 10, 15, 8, 11),
		ohlc(2, 11, 14, 9, 12),
		ohlc(3, 12, 20, 5, 13),
	}
	spec, err := BuildCandleSpec(rows, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRising, spec.Color)
	assert.Equal(t, 10.0, spec.YMin)
	assert.Equal(t, 13.0, spec.YMax)
	assert.Equal(t, 500, spec.Width)
	assert.Equal(t, 100, spec.Height)
	assert.Equal(t, "2024-01-01", spec.Labels[0])
	assert.Equal(t, Candle{Open: 10, Close: 11, Low: 8, High: 15}, spec.Candles[0])

	hl, err := BuildCandleSpec(rows, Options{AxisMode: AxisHighLow})
	require.NoError(t, err)
	assert.Equal(t, 5.0, hl.YMin)
	assert.Equal(t, 20.0, hl.YMax)
}

func TestCandleSpecFallingOnTie(t *testing.T) {
	rows := []series.Entry{ohlc(1, 10, 11, 9, 10), ohlc(2, 10, 11, 9, 10)}
	spec, err := BuildCandleSpec(rows, Options{Rising: "red", Falling: "blue"})
	require.NoError(t, err)
	assert.Equal(t, "blue", spec.Color)
}

func TestSingleRowIsValid(t *testing.T) {
	spec, err := BuildCandleSpec([]series.Entry{ohlc(1, 10, 11, 9, 10.5)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultFalling, spec.Color)

	spark, err := BuildSparkSpec([]series.Entry{{day(1), grid.Float(3)}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3}, spark.Ticks())
}

func TestFlatSeriesAxisIsPadded(t *testing.T) {
	spec, err := BuildCandleSpec([]series.Entry{ohlc(1, 200, 210, 190, 200)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 200.0, spec.YMin)
	assert.Equal(t, 200.0, spec.YMax)
	lo, hi := spec.AxisBounds()
	assert.InDelta(t, 199.0, lo, 1e-9)
	assert.InDelta(t, 201.0, hi, 1e-9)

	spark, err := BuildSparkSpec([]series.Entry{{day(1), grid.Float(0)}, {day(2), grid.Float(0)}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, spark.Ticks())
	lo, hi = spark.AxisBounds()
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 1.0, hi)

	spread, err := BuildSparkSpec([]series.Entry{{day(1), grid.Float(2)}, {day(2), grid.Float(9)}}, Options{})
	require.NoError(t, err)
	lo, hi = spread.AxisBounds()
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 9.0, hi)
}

func TestEmptyAndMalformedSeries(t *testing.T) {
	var re *RenderError
	_, err := BuildCandleSpec(nil, Options{})
	assert.True(t, errors.As(err, &re))

	_, err = BuildSparkSpec(nil, Options{})
	assert.True(t, errors.As(err, &re))

	_, err = BuildCandleSpec([]series.Entry{{day(1), grid.String("x"), grid.Float(1), grid.Float(1), grid.Float(1)}}, Options{})
	assert.True(t, errors.As(err, &re))

	_, err = BuildCandleSpec([]series.Entry{{day(1), grid.Float(1)}}, Options{})
	assert.True(t, errors.As(err, &re))
}

func TestSparkSpecTicksAndColor(t *testing.T) {
	rows := []series.Entry{
		{day(1), grid.Float(5)},
		{day(2), grid.Float(2)},
		{day(3), grid.Float(9)},
		{day(4), grid.Float(4)},
	}
	spec, err := BuildSparkSpec(rows, Options{LineWidth: 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 9}, spec.Ticks())
	assert.Equal(t, DefaultFalling, spec.Color)
	assert.Equal(t, "transparent", spec.Background)
	assert.Equal(t, 2, spec.LineWidth)
}

func TestCandlestickRenderBuildsPage(t *testing.T) {
	raster := &fakeRasterizer{}
	r := NewCandlestick(Options{Rising: "#00aa00", Falling: "#cc0000", Settle: -1}, raster)
	img, err := r.Render(context.Background(), []series.Entry{ohlc(1, 10, 12, 9, 11), ohlc(2, 11, 13, 10, 12)})
	require.NoError(t, err)
	assert.Equal(t, MimePNG, img.MimeType)
	assert.NotEmpty(t, img.Bytes)

	require.Len(t, raster.pages, 1)
	page := raster.pages[0]
	assert.Equal(t, 500, page.Width)
	assert.Equal(t, 100, page.Height)
	assert.False(t, page.Transparent)
	assert.Equal(t, time.Duration(0), page.Settle)
	html := string(page.HTML)
	assert.Contains(t, html, chartID)
	assert.Contains(t, html, "candlestick")
	assert.Contains(t, html, "#00aa00")
	assert.Contains(t, html, "#cc0000")
}

func TestSparklineRenderIsTransparent(t *testing.T) {
	raster := &fakeRasterizer{}
	r := NewSparkline(Options{Width: 300, Height: 60}, raster)
	_, err := r.Render(context.Background(), []series.Entry{{day(1), grid.Float(1)}, {day(2), grid.Float(2)}})
	require.NoError(t, err)
	require.Len(t, raster.pages, 1)
	assert.True(t, raster.pages[0].Transparent)
	assert.Equal(t, 300, raster.pages[0].Width)
	assert.True(t, strings.Contains(string(raster.pages[0].HTML), "300px"))
}

func TestRasterizeFailureIsRenderError(t *testing.T) {
	boom := errors.New("chrome gone")
	r := NewSparkline(Options{}, &fakeRasterizer{err: boom})
	_, err := r.Render(context.Background(), []series.Entry{{day(1), grid.Float(1)}})
	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, boom)
}

func TestFileName(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	at := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "AAPL_20240302_000405.png", FileName("AAPL", at, seoul, "png"))
	assert.Equal(t, "005930_20240301_150405.png", FileName("005930", at, nil, ".png"))
}

func TestParseAxisMode(t *testing.T) {
	m, err := ParseAxisMode("")
	require.NoError(t, err)
	assert.Equal(t, AxisOpenClose, m)
	m, err = ParseAxisMode("HIGH_LOW")
	require.NoError(t, err)
	assert.Equal(t, AxisHighLow, m)
	_, err = ParseAxisMode("wide")
	assert.Error(t, err)
}
