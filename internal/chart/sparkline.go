package chart

import (
	"context"

	"github.com/minyeamer/gspread/internal/series"
)

// Sparkline renders [date, metric] rows as a bare line on a transparent canvas.
type Sparkline struct {
	opts   Options
	raster Rasterizer
}

var _ Renderer = (*Sparkline)(nil)

func NewSparkline(o Options, r Rasterizer) *Sparkline {
	return &Sparkline{opts: o.withDefaults(), raster: r}
}

func (s *Sparkline) Options() Options { return s.opts }

func (s *Sparkline) Render(ctx context.Context, rows []series.Entry) (Image, error) {
	spec, err := BuildSparkSpec(rows, s.opts)
	if err != nil {
		return Image{}, err
	}
	html, err := sparkPage(spec, s.opts.AssetsHost)
	if err != nil {
		return Image{}, &RenderError{Chart: "sparkline", Reason: "build page", Cause: err}
	}
	png, err := s.raster.Rasterize(ctx, Page{
		HTML:        html,
		Width:       spec.Width,
		Height:      spec.Height,
		Transparent: true,
		Settle:      s.opts.Settle,
	})
	if err != nil {
		return Image{}, &RenderError{Chart: "sparkline", Reason: "rasterize", Cause: err}
	}
	return Image{Bytes: png, MimeType: MimePNG}, nil
}
