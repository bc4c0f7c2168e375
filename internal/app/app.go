package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/config"
	cfgloader "github.com/minyeamer/gspread/internal/config/loader"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/recorder"
	"github.com/minyeamer/gspread/internal/scheduler"
	apihttp "github.com/minyeamer/gspread/internal/transport/http/api"
)

const schedulerStopTimeout = 30 * time.Second

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 与定时任务。
type App struct {
	cfg    *config.Config
	grid   grid.Store
	assets asset.Store
	runner *jobs.Runner
	sched  *scheduler.Scheduler
	http   *apihttp.Server
	loader *cfgloader.JobLoader

	cancelSched context.CancelFunc
	closers     []func() error
	closeOnce   sync.Once
	closeErr    error

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(ctx context.Context, cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg, opts...).Build(ctx)
}

// Run serves HTTP and fires scheduled jobs until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.runner == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	a.sched.Start()
	group.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		defer cancel()
		a.cancelSched()
		a.sched.Stop(stopCtx)
		return nil
	})
	return group.Wait()
}

// RunJob runs one named job to completion.
func (a *App) RunJob(ctx context.Context, name string, overrides map[string]any) (recorder.Run, error) {
	if a == nil || a.runner == nil {
		return recorder.Run{}, fmt.Errorf("app not initialized")
	}
	return a.runner.Run(ctx, name, overrides)
}

// applyJobs swaps in a reloaded job set; a bad set keeps the current one.
func (a *App) applyJobs(snap cfgloader.Snapshot) {
	if err := a.runner.Replace(snap.Jobs); err != nil {
		logger.Errorf("jobs reload v%d rejected: %v", snap.Version, err)
		return
	}
	if err := a.sched.Sync(snap.Jobs); err != nil {
		logger.Errorf("jobs reload v%d schedules rejected: %v", snap.Version, err)
		return
	}
	logger.Infof("jobs reload v%d applied (%d jobs)", snap.Version, len(snap.Jobs))
}

// Close releases stores and the browser in reverse order of creation.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	a.closeOnce.Do(func() {
		if a.cancelSched != nil {
			a.cancelSched()
		}
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
