package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/config"
	cfgloader "github.com/minyeamer/gspread/internal/config/loader"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/market"
	"github.com/minyeamer/gspread/internal/recorder"
)

type flatFetcher struct{}

func (flatFetcher) Fetch(_ context.Context, req market.FetchRequest) ([]market.PriceRow, error) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.PriceRow, 2)
	for i := range out {
		p := decimal.NewFromInt(int64(50 + i))
		out[i] = market.PriceRow{Ticker: req.Ticker, Date: day.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p}
	}
	return out, nil
}

type pngRasterizer struct{}

func (pngRasterizer) Rasterize(context.Context, chart.Page) ([]byte, error) {
	return []byte("\x89PNG\r\n"), nil
}

const testJobs = `
jobs:
  prices-us:
    kind: prices
    segment: us
    schedule: "0 0 7 * * 2-6"
  candles-us:
    kind: candles
    segment: us
`

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	jobsPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(jobsPath, []byte(testJobs), 0o644))
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
app:
  http_addr: 127.0.0.1:0
grid:
  driver: memory
asset:
  root: `+filepath.Join(dir, "assets")+`
  public_host: drive.test
recorder:
  path: `+filepath.Join(dir, "runs.db")+`
jobs_path: `+jobsPath+`
`), 0o644))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := NewApp(context.Background(), cfg,
		WithFetcher(flatFetcher{}),
		WithRasterizer(pngRasterizer{}),
		WithClock(func() time.Time { return time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAppRunsJobsAndServesCharts(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.grid.Write(ctx, "Chart(US)", 2, 1, [][]grid.Value{{grid.String("AAPL")}}))

	run, err := a.RunJob(ctx, "prices-us", nil)
	require.NoError(t, err)
	assert.Equal(t, recorder.StatusSucceeded, run.Status)

	run, err = a.RunJob(ctx, "candles-us", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Written)

	link, err := grid.Get(ctx, a.grid, "Chart(US)", 2, 2)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.String(), "https://drive.test/uc?id="))
	id := strings.TrimPrefix(link.String(), "https://drive.test/uc?id=")

	ts := httptest.NewServer(a.http.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/uc?id=" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "\x89PNG\r\n", string(body))

	_, err = a.RunJob(ctx, "sparklines-us", nil)
	assert.ErrorIs(t, err, jobs.ErrUnknownJob)
}

func TestApplyJobsKeepsCurrentSetOnError(t *testing.T) {
	a := newTestApp(t)
	before := a.runner.Definitions()

	a.applyJobs(cfgloader.Snapshot{Version: 2, Jobs: []jobs.Definition{
		{Name: "dup", Kind: jobs.KindPurgeTrash},
		{Name: "dup", Kind: jobs.KindPurgeTrash},
	}})
	assert.Equal(t, before, a.runner.Definitions())

	a.applyJobs(cfgloader.Snapshot{Version: 3, Jobs: []jobs.Definition{
		{Name: "purge-trash", Kind: jobs.KindPurgeTrash, Schedule: "1d"},
	}})
	require.Len(t, a.runner.Definitions(), 1)
	next := a.sched.Next()
	require.Len(t, next, 1)
	assert.Equal(t, "purge-trash", next[0].Name)
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestApp(t)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestRunStopsOnCancel(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
