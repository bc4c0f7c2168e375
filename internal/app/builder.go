package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/config"
	cfgloader "github.com/minyeamer/gspread/internal/config/loader"
	"github.com/minyeamer/gspread/internal/gateway/yahoo"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/recorder"
	"github.com/minyeamer/gspread/internal/scheduler"
	apihttp "github.com/minyeamer/gspread/internal/transport/http/api"
)

// AppBuilder 按配置装配各组件；每个构造步骤都可以通过 Option 替换。
type AppBuilder struct {
	cfg *config.Config

	gridFn       func(config.GridConfig) (grid.Store, error)
	assetsFn     func(config.AssetConfig) (asset.Store, error)
	fetcherFn    func(config.MarketConfig) market.Fetcher
	rasterizerFn func(config.ChartConfig) chart.Rasterizer
	recorderFn   func(config.RecorderConfig) (recorder.Recorder, error)
	now          func() time.Time
	// watchJobs turns on jobs file hot reload; one-shot runs read it once.
	watchJobs bool
}

type AppBuilderOption func(*AppBuilder)

func WithGridStore(g grid.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gridFn = func(config.GridConfig) (grid.Store, error) { return g, nil }
	}
}

func WithAssetStore(s asset.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.assetsFn = func(config.AssetConfig) (asset.Store, error) { return s, nil }
	}
}

func WithFetcher(f market.Fetcher) AppBuilderOption {
	return func(b *AppBuilder) {
		b.fetcherFn = func(config.MarketConfig) market.Fetcher { return f }
	}
}

func WithRasterizer(r chart.Rasterizer) AppBuilderOption {
	return func(b *AppBuilder) {
		b.rasterizerFn = func(config.ChartConfig) chart.Rasterizer { return r }
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.now = now }
}

// WithJobsWatch enables hot reload of the jobs file.
func WithJobsWatch(on bool) AppBuilderOption {
	return func(b *AppBuilder) { b.watchJobs = on }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:          cfg,
		gridFn:       buildGridStore,
		assetsFn:     buildAssetStore,
		fetcherFn:    buildFetcher,
		rasterizerFn: buildRasterizer,
		recorderFn:   buildRecorder,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build 装配应用；任何一步失败都会关闭已打开的资源。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	a := &App{cfg: cfg}
	built := false
	defer func() {
		if !built {
			_ = a.Close()
		}
	}()

	gridStore, err := b.gridFn(cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("grid store: %w", err)
	}
	a.grid = gridStore
	a.closers = append(a.closers, gridStore.Close)

	assets, err := b.assetsFn(cfg.Asset)
	if err != nil {
		return nil, fmt.Errorf("asset store: %w", err)
	}
	a.assets = assets
	a.closers = append(a.closers, assets.Close)

	raster := b.rasterizerFn(cfg.Chart)
	if c, ok := raster.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	rec, err := b.recorderFn(cfg.Recorder)
	if err != nil {
		return nil, fmt.Errorf("run recorder: %w", err)
	}
	a.closers = append(a.closers, rec.Close)

	defs, err := b.loadJobs(a)
	if err != nil {
		return nil, err
	}

	loc := cfg.App.Location()
	runner, err := jobs.NewRunner(jobs.Deps{
		Grid:       gridStore,
		Assets:     assets,
		Fetcher:    b.fetcherFn(cfg.Market),
		Rasterizer: raster,
		Recorder:   rec,
		Chart: chart.Options{
			AssetsHost: cfg.Chart.AssetsHost,
			Settle:     cfg.Chart.Settle(),
		},
		Concurrency: cfg.Market.Concurrency,
		Location:    loc,
		Now:         b.now,
	}, defs)
	if err != nil {
		return nil, err
	}
	a.runner = runner

	schedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelSched = cancel
	a.sched = scheduler.New(schedCtx, func(ctx context.Context, name string) error {
		_, err := runner.Run(ctx, name, nil)
		return err
	}, loc)
	if err := a.sched.Sync(defs); err != nil {
		return nil, err
	}
	if a.loader != nil {
		a.loader.Subscribe(a.applyJobs)
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Jobs:     runner,
		Assets:   assets,
		Grid:     gridStore,
		Schedule: a.sched,
	})
	if err != nil {
		return nil, err
	}
	a.http = server
	a.Summary = newStartupSummary(cfg, runner.Definitions())
	built = true
	return a, nil
}

func (b *AppBuilder) loadJobs(a *App) ([]jobs.Definition, error) {
	path := strings.TrimSpace(b.cfg.JobsPath)
	if path == "" {
		logger.Infof("jobs_path not set, using built-in jobs")
		return jobs.Defaults(), nil
	}
	if !b.watchJobs {
		defs, err := cfgloader.ReadJobs(path)
		if err != nil {
			return nil, fmt.Errorf("jobs file: %w", err)
		}
		return defs, nil
	}
	l, err := cfgloader.NewJobLoader(path)
	if err != nil {
		return nil, fmt.Errorf("jobs file: %w", err)
	}
	a.loader = l
	return l.Snapshot().Jobs, nil
}

func buildGridStore(cfg config.GridConfig) (grid.Store, error) {
	switch cfg.Driver {
	case config.GridDriverMemory:
		logger.Warnf("grid: memory driver, cells are lost on exit")
		return grid.NewMemoryStore(), nil
	default:
		return grid.NewSQLiteStore(cfg.Path)
	}
}

func buildAssetStore(cfg config.AssetConfig) (asset.Store, error) {
	return asset.NewDiskStore(asset.DiskOptions{
		Root:       cfg.Root,
		IndexPath:  cfg.IndexPath,
		PublicHost: cfg.PublicHost,
	})
}

func buildFetcher(cfg config.MarketConfig) market.Fetcher {
	return yahoo.New(yahoo.Options{
		BaseURL:          cfg.BaseURL,
		Timeout:          cfg.Timeout(),
		RetryCount:       cfg.RetryCount,
		RatePerSecond:    cfg.RatePerSecond,
		UserAgent:        cfg.UserAgent,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown(),
	})
}

func buildRasterizer(cfg config.ChartConfig) chart.Rasterizer {
	return chart.NewHeadlessRasterizer(cfg.ChromePath, cfg.CaptureTimeout())
}

func buildRecorder(cfg config.RecorderConfig) (recorder.Recorder, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		logger.Infof("recorder: disabled")
		return recorder.NewNoopRecorder(), nil
	}
	return recorder.NewGormRecorder(cfg.Path)
}
