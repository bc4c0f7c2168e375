// Package pipeline renders a chart per ticker row and writes the asset link
// back into the row's target cell. A non-empty target cell means the row is
// done; a rerun over the same range only fills the gaps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/pkg/symbol"
	"github.com/minyeamer/gspread/internal/series"
)

const (
	DefaultStartRow  = 2
	DefaultKeyColumn = 1

	CandleColumn = 2
	SparkColumn  = 3
)

// DefaultLocation is the fixed +09:00 offset used for file timestamps.
var DefaultLocation = time.FixedZone("KST", 9*60*60)

// State 描述一行在一次运行中的进度。
type State string

const (
	StatePending  State = "pending"
	StateRendered State = "rendered"
	StateStored   State = "stored"
	StateWritten  State = "written"
	StateSkipped  State = "skipped"
	StateFailed   State = "failed"
)

// OnError decides whether a failed row stops the run.
type OnError string

const (
	OnErrorAbort    OnError = "abort"
	OnErrorContinue OnError = "continue"
)

func ParseOnError(s string) (OnError, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OnErrorAbort):
		return OnErrorAbort, nil
	case string(OnErrorContinue):
		return OnErrorContinue, nil
	default:
		return "", fmt.Errorf("unknown on_error policy %q (want abort|continue)", s)
	}
}

// Range bounds one run. Start and End are inclusive sheet rows; zero picks
// the defaults (row 2 and the last populated row). Limit caps the history
// points per chart, 0 keeps all of them.
type Range struct {
	Start int
	End   int
	Limit int
	// Clear blanks the target column over the range before iterating.
	Clear bool
}

type Config struct {
	// Name labels log lines, e.g. "candles-us".
	Name         string
	Sheet        string
	KeyColumn    int
	TargetColumn int
	Folder       string
	IfExists     asset.IfExists
	OnError      OnError
	// Staging copies each window to a Temp<start> sheet and renders from it.
	Staging  bool
	Location *time.Location
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = c.Sheet
	}
	if c.KeyColumn <= 0 {
		c.KeyColumn = DefaultKeyColumn
	}
	if c.IfExists == "" {
		c.IfExists = asset.IfExistsIgnore
	}
	if c.OnError == "" {
		c.OnError = OnErrorAbort
	}
	if c.Location == nil {
		c.Location = DefaultLocation
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Sheet) == "" {
		return fmt.Errorf("pipeline sheet is required")
	}
	if c.TargetColumn <= 0 {
		return fmt.Errorf("pipeline target column must be >= 1")
	}
	if c.TargetColumn == c.KeyColumn {
		return fmt.Errorf("pipeline target column %d overlaps the key column", c.TargetColumn)
	}
	if strings.TrimSpace(c.Folder) == "" {
		return fmt.Errorf("pipeline asset folder is required")
	}
	return nil
}

type RowResult struct {
	Row    int
	Ticker string
	State  State
	URL    string
	Err    error
}

// Report summarizes one run. Rows lists every row in the resolved range.
type Report struct {
	Sheet   string
	Start   int
	End     int
	Rows    []RowResult
	Written int
	Skipped int
	Failed  int
}

func (r *Report) add(res RowResult) {
	r.Rows = append(r.Rows, res)
	switch res.State {
	case StateWritten:
		r.Written++
	case StateSkipped:
		r.Skipped++
	case StateFailed:
		r.Failed++
	}
}

type Pipeline struct {
	cfg      Config
	grid     grid.Store
	renderer chart.Renderer
	assets   asset.Store
}

func New(cfg Config, g grid.Store, r chart.Renderer, a asset.Store) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if g == nil || r == nil || a == nil {
		return nil, fmt.Errorf("pipeline %s: grid, renderer and asset store are required", cfg.Name)
	}
	return &Pipeline{cfg: cfg, grid: g, renderer: r, assets: a}, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// Run 按行处理 [Start, End]，每行完成后才处理下一行。
func (p *Pipeline) Run(ctx context.Context, grouped *series.Grouped, rng Range) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start, end, err := p.resolve(ctx, rng)
	if err != nil {
		return Report{Sheet: p.cfg.Sheet}, err
	}
	report := Report{Sheet: p.cfg.Sheet, Start: start, End: end}
	if end < start {
		logger.Infof("[pipeline] %s: nothing to do in %s rows %d..%d", p.cfg.Name, p.cfg.Sheet, start, end)
		return report, nil
	}

	if rng.Clear {
		if err := p.grid.Clear(ctx, p.cfg.Sheet, grid.Column(p.cfg.TargetColumn, start, end)); err != nil {
			return report, fmt.Errorf("clear %s target column: %w", p.cfg.Sheet, err)
		}
	}

	keys, err := p.grid.Read(ctx, p.cfg.Sheet, grid.Column(p.cfg.KeyColumn, start, end))
	if err != nil {
		return report, fmt.Errorf("read %s tickers: %w", p.cfg.Sheet, err)
	}

	run := &rowRunner{p: p, limit: rng.Limit}
	if p.cfg.Staging {
		run.staging = fmt.Sprintf("Temp%d", start)
		defer run.dropStaging()
	}

	for row := start; row <= end; row++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		key := grid.Empty
		if i := row - start; i < len(keys) && len(keys[i]) > 0 {
			key = keys[i][0]
		}
		res := run.process(ctx, grouped, row, key)
		report.add(res)
		if res.State != StateFailed {
			continue
		}
		if p.cfg.OnError == OnErrorAbort {
			return report, res.Err
		}
		logger.Warnf("[pipeline] %s: %v", p.cfg.Name, res.Err)
	}
	logger.Infof("[pipeline] %s: rows %d..%d written=%d skipped=%d failed=%d",
		p.cfg.Name, start, end, report.Written, report.Skipped, report.Failed)
	return report, nil
}

func (p *Pipeline) resolve(ctx context.Context, rng Range) (int, int, error) {
	if rng.Start < 0 || rng.End < 0 || rng.Limit < 0 {
		return 0, 0, fmt.Errorf("range values cannot be negative: %+v", rng)
	}
	start := rng.Start
	if start == 0 {
		start = DefaultStartRow
	}
	end := rng.End
	if end == 0 {
		last, err := p.grid.LastRow(ctx, p.cfg.Sheet)
		if err != nil {
			return 0, 0, fmt.Errorf("resolve last row of %s: %w", p.cfg.Sheet, err)
		}
		end = last
	}
	return start, end, nil
}

// rowRunner holds the per-run state shared by rows: the lazily ensured
// folder and the staging sheet.
type rowRunner struct {
	p       *Pipeline
	limit   int
	folder  *asset.Folder
	staging string
	staged  bool
}

func (r *rowRunner) process(ctx context.Context, grouped *series.Grouped, row int, key grid.Value) RowResult {
	cfg := r.p.cfg
	res := RowResult{Row: row, Ticker: key.String(), State: StatePending}
	entries, ok := grouped.Get(key)
	if !ok {
		res.State = StateSkipped
		return res
	}
	current, err := grid.Get(ctx, r.p.grid, cfg.Sheet, row, cfg.TargetColumn)
	if err != nil {
		return r.fail(res, fmt.Errorf("read target cell: %w", err))
	}
	if !current.IsEmpty() {
		logger.Debugf("[pipeline] %s: row %d (%s) already has %q", cfg.Name, row, res.Ticker, current.String())
		res.State = StateSkipped
		return res
	}

	window := series.Window(entries, r.limit)
	if r.staging != "" {
		if window, err = r.stage(ctx, window); err != nil {
			return r.fail(res, err)
		}
	}

	img, err := r.p.renderer.Render(ctx, window)
	if err != nil {
		return r.fail(res, err)
	}
	res.State = StateRendered

	folder, err := r.ensureFolder(ctx)
	if err != nil {
		return r.fail(res, err)
	}
	mime := img.MimeType
	if mime == "" {
		mime = chart.MimePNG
	}
	name := chart.FileName(symbol.Display(res.Ticker), cfg.Now(), cfg.Location, "png")
	ref, err := r.p.assets.Save(ctx, folder, asset.Blob{Name: name, MimeType: mime, Bytes: img.Bytes})
	if err != nil {
		return r.fail(res, err)
	}
	res.State = StateStored
	res.URL = ref.URL

	if err := grid.Set(ctx, r.p.grid, cfg.Sheet, row, cfg.TargetColumn, grid.String(ref.URL)); err != nil {
		return r.fail(res, fmt.Errorf("write reference: %w", err))
	}
	res.State = StateWritten
	return res
}

func (r *rowRunner) fail(res RowResult, err error) RowResult {
	res.Err = &RowError{Row: res.Row, Ticker: res.Ticker, Stage: res.State, Err: err}
	res.State = StateFailed
	return res
}

func (r *rowRunner) ensureFolder(ctx context.Context) (asset.Folder, error) {
	if r.folder != nil {
		return *r.folder, nil
	}
	f, err := r.p.assets.EnsureFolder(ctx, r.p.cfg.Folder, r.p.cfg.IfExists)
	if err != nil {
		return asset.Folder{}, err
	}
	r.folder = &f
	return f, nil
}

// stage writes the window to the staging sheet with ISO date text and reads
// it back, so the chart is drawn from exactly what the sheet holds.
func (r *rowRunner) stage(ctx context.Context, window []series.Entry) ([]series.Entry, error) {
	if !r.staged {
		if err := r.p.grid.EnsureSheet(ctx, r.staging); err != nil {
			return nil, fmt.Errorf("create staging sheet %s: %w", r.staging, err)
		}
		r.staged = true
	}
	if err := r.p.grid.Clear(ctx, r.staging, grid.Range{Row: 1, Col: 1}); err != nil {
		return nil, fmt.Errorf("clear staging sheet %s: %w", r.staging, err)
	}
	if len(window) == 0 {
		return window, nil
	}
	rows := make([][]grid.Value, len(window))
	for i, e := range window {
		row := make([]grid.Value, len(e))
		copy(row, e)
		if len(row) > 0 {
			if t, ok := row[0].Time(); ok {
				row[0] = grid.String(t.Format(time.DateOnly))
			}
		}
		rows[i] = row
	}
	if err := r.p.grid.Write(ctx, r.staging, 1, 1, rows); err != nil {
		return nil, fmt.Errorf("write staging sheet %s: %w", r.staging, err)
	}
	back, err := r.p.grid.Read(ctx, r.staging, grid.Range{Row: 1, Col: 1, EndRow: len(rows), EndCol: len(window[0])})
	if err != nil {
		return nil, fmt.Errorf("read staging sheet %s: %w", r.staging, err)
	}
	out := make([]series.Entry, len(back))
	for i, row := range back {
		out[i] = series.Entry(row)
	}
	return out, nil
}

func (r *rowRunner) dropStaging() {
	if !r.staged {
		return
	}
	// The run context may already be cancelled; the sheet still has to go.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.p.grid.DeleteSheet(ctx, r.staging); err != nil && !errors.Is(err, grid.ErrSheetNotFound) {
		logger.Warnf("[pipeline] %s: drop staging sheet %s: %v", r.p.cfg.Name, r.staging, err)
	}
}
