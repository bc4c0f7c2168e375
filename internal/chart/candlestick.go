package chart

import (
	"context"

	"github.com/minyeamer/gspread/internal/series"
)

// Candlestick renders [date, open, high, low, close] rows on a white canvas.
type Candlestick struct {
	opts   Options
	raster Rasterizer
}

var _ Renderer = (*Candlestick)(nil)

func NewCandlestick(o Options, r Rasterizer) *Candlestick {
	return &Candlestick{opts: o.withDefaults(), raster: r}
}

func (c *Candlestick) Options() Options { return c.opts }

func (c *Candlestick) Render(ctx context.Context, rows []series.Entry) (Image, error) {
	spec, err := BuildCandleSpec(rows, c.opts)
	if err != nil {
		return Image{}, err
	}
	html, err := candlePage(spec, c.opts.AssetsHost)
	if err != nil {
		return Image{}, &RenderError{Chart: "candlestick", Reason: "build page", Cause: err}
	}
	png, err := c.raster.Rasterize(ctx, Page{
		HTML:   html,
		Width:  spec.Width,
		Height: spec.Height,
		Settle: c.opts.Settle,
	})
	if err != nil {
		return Image{}, &RenderError{Chart: "candlestick", Reason: "rasterize", Cause: err}
	}
	return Image{Bytes: png, MimeType: MimePNG}, nil
}
