package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/pipeline"
	"github.com/minyeamer/gspread/internal/pkg/maputil"
	"github.com/minyeamer/gspread/internal/pricesync"
	"github.com/minyeamer/gspread/internal/recorder"
	"github.com/minyeamer/gspread/internal/series"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job already running")
)

// Deps are the collaborators shared by every job.
type Deps struct {
	Grid       grid.Store
	Assets     asset.Store
	Fetcher    market.Fetcher
	Rasterizer chart.Rasterizer
	Recorder   recorder.Recorder
	// Chart carries the process-wide chart options (assets host, settle).
	Chart       chart.Options
	Concurrency int
	Location    *time.Location
	Now         func() time.Time
}

// Runner 持有当前的 job 注册表，并负责执行与记录。
type Runner struct {
	deps   Deps
	prices *pricesync.Syncer

	mu      sync.RWMutex
	defs    map[string]Definition
	running map[string]struct{}
}

func NewRunner(deps Deps, defs []Definition) (*Runner, error) {
	if deps.Grid == nil {
		return nil, fmt.Errorf("jobs: grid store is required")
	}
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	if deps.Location == nil {
		deps.Location = pipeline.DefaultLocation
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Runner{
		deps:    deps,
		running: make(map[string]struct{}),
	}
	if deps.Fetcher != nil {
		r.prices = pricesync.New(deps.Fetcher, deps.Grid, pricesync.Options{Concurrency: deps.Concurrency, Now: deps.Now})
	}
	if err := r.Replace(defs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps the registry; invalid definitions reject the whole set.
func (r *Runner) Replace(defs []Definition) error {
	next := make(map[string]Definition, len(defs))
	for _, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		if err := def.Validate(); err != nil {
			return err
		}
		if _, dup := next[def.Name]; dup {
			return fmt.Errorf("duplicate job %q", def.Name)
		}
		next[def.Name] = def
	}
	r.mu.Lock()
	r.defs = next
	r.mu.Unlock()
	logger.Infof("jobs: registry holds %d jobs", len(next))
	return nil
}

// Definitions returns the registry sorted by name.
func (r *Runner) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, name := range sortedNames(r.defs) {
		out = append(out, r.defs[name])
	}
	return out
}

func (r *Runner) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.TrimSpace(name)]
	return def, ok
}

// Recent lists recorded runs, newest first.
func (r *Runner) Recent(ctx context.Context, job string, limit int) ([]recorder.Run, error) {
	return r.deps.Recorder.Recent(ctx, job, limit)
}

// Run executes one job with optional overrides layered over its params.
// The returned run is also what the recorder holds.
func (r *Runner) Run(ctx context.Context, name string, overrides map[string]any) (recorder.Run, error) {
	def, ok := r.Definition(name)
	if !ok {
		return recorder.Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !r.acquire(def.Name) {
		return recorder.Run{}, fmt.Errorf("%w: %s", ErrJobRunning, def.Name)
	}
	defer r.release(def.Name)

	params := maputil.Merge(def.Params, overrides)
	run := recorder.Run{
		ID:        uuid.NewString(),
		Job:       def.Name,
		Kind:      string(def.Kind),
		Status:    recorder.StatusRunning,
		StartedAt: r.deps.Now(),
		Options:   params,
	}
	r.record(ctx, run)
	log := logger.With("job", def.Name, "run", run.ID)
	log.Info("jobs: started", "kind", run.Kind)

	err := r.execute(ctx, def, params, &run)
	run.FinishedAt = r.deps.Now()
	run.Status = recorder.StatusSucceeded
	took := run.FinishedAt.Sub(run.StartedAt)
	if err != nil {
		run.Status = recorder.StatusFailed
		run.Error = err.Error()
		log.Error("jobs: failed", "took", took, "err", err)
	} else {
		log.Info("jobs: done", "took", took, "written", run.Written, "skipped", run.Skipped, "failed", run.Failed)
	}
	r.record(ctx, run)
	return run, err
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

func (r *Runner) record(ctx context.Context, run recorder.Run) {
	// A cancelled run still gets its final record.
	if err := r.deps.Recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warnf("jobs: record run %s: %v", run.ID, err)
	}
}

func (r *Runner) execute(ctx context.Context, def Definition, params map[string]any, run *recorder.Run) error {
	if def.Kind == KindPurgeTrash {
		if r.deps.Assets == nil {
			return fmt.Errorf("purge trash: no asset store configured")
		}
		asset.PurgeTrashQuietly(ctx, r.deps.Assets)
		return nil
	}
	s, err := resolve(def, params, r.deps.Chart)
	if err != nil {
		return err
	}
	switch def.Kind {
	case KindPrices:
		return r.syncPrices(ctx, s, run)
	case KindCandles:
		return r.updateCharts(ctx, def, s, run)
	case KindSparklines:
		return r.updateCharts(ctx, def, s, run)
	default:
		return fmt.Errorf("job %s: unsupported kind %q", def.Name, def.Kind)
	}
}

func (r *Runner) syncPrices(ctx context.Context, s settings, run *recorder.Run) error {
	if r.prices == nil {
		return fmt.Errorf("prices: no market source configured")
	}
	digits := s.Truncation
	res, err := r.prices.Sync(ctx, pricesync.Request{
		Query:      s.Query,
		Return:     s.Data,
		Columns:    s.Columns,
		Limit:      s.Limit,
		Truncation: &digits,
		Events:     s.Events,
	})
	run.Written = res.Rows
	return err
}

func (r *Runner) updateCharts(ctx context.Context, def Definition, s settings, run *recorder.Run) error {
	if r.deps.Assets == nil || r.deps.Rasterizer == nil {
		return fmt.Errorf("%s: asset store and rasterizer are required", def.Kind)
	}
	sheet, rng, err := grid.ParseRef(s.Data)
	if err != nil {
		return fmt.Errorf("data range: %w", err)
	}
	rows, err := r.deps.Grid.Read(ctx, sheet, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Data, err)
	}

	cfg := pipeline.Config{
		Name:     def.Name,
		Sheet:    s.Sheet,
		Folder:   s.Folder,
		IfExists: s.IfExists,
		OnError:  s.OnError,
		Location: r.deps.Location,
		Now:      r.deps.Now,
	}
	var (
		valueCols []int
		renderer  chart.Renderer
	)
	if def.Kind == KindCandles {
		valueCols = candleValueColumns
		renderer = chart.NewCandlestick(s.Chart, r.deps.Rasterizer)
		cfg.TargetColumn = pipeline.CandleColumn
		cfg.Staging = true
	} else {
		valueCols = sparkValueColumns
		renderer = chart.NewSparkline(s.Chart, r.deps.Rasterizer)
		cfg.TargetColumn = pipeline.SparkColumn
	}

	grouped := series.NewGrouped()
	if len(rows) > 0 {
		if grouped, err = series.GroupBy(rows, 0, valueCols); err != nil {
			return fmt.Errorf("group %s: %w", s.Data, err)
		}
	}
	p, err := pipeline.New(cfg, r.deps.Grid, renderer, r.deps.Assets)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx, grouped, s.Range)
	run.RangeStart, run.RangeEnd = report.Start, report.End
	run.Written, run.Skipped, run.Failed = report.Written, report.Skipped, report.Failed
	return err
}
