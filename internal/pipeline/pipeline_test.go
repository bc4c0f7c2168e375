package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/chart"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/series"
)

type mockRenderer struct{ mock.Mock }

func (m *mockRenderer) Render(ctx context.Context, rows []series.Entry) (chart.Image, error) {
	args := m.Called(ctx, rows)
	return args.Get(0).(chart.Image), args.Error(1)
}

type fakeAssets struct {
	folders int
	saved   []asset.Blob
	saveErr error
}

func (f *fakeAssets) EnsureFolder(_ context.Context, name string, _ asset.IfExists) (asset.Folder, error) {
	f.folders++
	return asset.Folder{ID: "folder-1", Name: name, Shared: true}, nil
}

func (f *fakeAssets) Save(_ context.Context, _ asset.Folder, blob asset.Blob) (asset.Reference, error) {
	if f.saveErr != nil {
		return asset.Reference{}, f.saveErr
	}
	f.saved = append(f.saved, blob)
	id := fmt.Sprintf("file-%d", len(f.saved))
	return asset.Reference{FileID: id, URL: asset.ReferenceURL("drive.test", id)}, nil
}

func (f *fakeAssets) Clear(context.Context, asset.Folder) error { return nil }
func (f *fakeAssets) PurgeTrash(context.Context) error          { return nil }
func (f *fakeAssets) Open(context.Context, string) (asset.File, io.ReadCloser, error) {
	return asset.File{}, nil, asset.ErrNotFound
}
func (f *fakeAssets) Close() error { return nil }

var fixedNow = time.Date(2024, 6, 1, 0, 30, 0, 0, time.UTC)

func sheetWith(t *testing.T, tickers ...string) *grid.MemoryStore {
	t.Helper()
	g := grid.NewMemoryStore()
	rows := [][]grid.Value{{grid.String("Ticker"), grid.String("Candle"), grid.String("Spark")}}
	for _, tk := range tickers {
		rows = append(rows, []grid.Value{grid.String(tk)})
	}
	require.NoError(t, g.Write(context.Background(), "Chart(US)", 1, 1, rows))
	return g
}

func entry(date string, vals ...float64) series.Entry {
	e := series.Entry{grid.String(date)}
	for _, v := range vals {
		e = append(e, grid.Float(v))
	}
	return e
}

// newest first, as fetched
func groupedFixture() *series.Grouped {
	g := series.NewGrouped()
	g.Add(grid.String("AAPL"), entry("2024-01-03", 3))
	g.Add(grid.String("AAPL"), entry("2024-01-02", 2))
	g.Add(grid.String("AAPL"), entry("2024-01-01", 1))
	g.Add(grid.String("MSFT"), entry("2024-01-03", 30))
	g.Add(grid.String("MSFT"), entry("2024-01-02", 20))
	g.Add(grid.String("005930.KS"), entry("2024-01-03", 7))
	return g
}

func newPipeline(t *testing.T, g grid.Store, r chart.Renderer, a asset.Store, mutate func(*Config)) *Pipeline {
	t.Helper()
	cfg := Config{
		Name:         "sparklines-us",
		Sheet:        "Chart(US)",
		TargetColumn: SparkColumn,
		Folder:       "Sparkline(US)",
		Now:          func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg, g, r, a)
	require.NoError(t, err)
	return p
}

func cell(t *testing.T, g grid.Store, row, col int) string {
	t.Helper()
	v, err := grid.Get(context.Background(), g, "Chart(US)", row, col)
	require.NoError(t, err)
	return v.String()
}

func TestRunIsIdempotent(t *testing.T) {
	g := sheetWith(t, "AAPL", "MSFT", "ZZZ")
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).Return(chart.Image{Bytes: []byte("png"), MimeType: chart.MimePNG}, nil)
	a := &fakeAssets{}
	p := newPipeline(t, g, r, a, nil)

	report, err := p.Run(context.Background(), groupedFixture(), Range{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Start)
	assert.Equal(t, 4, report.End)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "https://drive.test/uc?id=file-1", cell(t, g, 2, SparkColumn))
	assert.Equal(t, "https://drive.test/uc?id=file-2", cell(t, g, 3, SparkColumn))
	assert.Empty(t, cell(t, g, 4, SparkColumn))

	// limit 2 keeps the two newest points, oldest first
	first := r.Calls[0].Arguments.Get(1).([]series.Entry)
	require.Len(t, first, 2)
	assert.Equal(t, "2024-01-02", first[0][0].String())
	assert.Equal(t, "2024-01-03", first[1][0].String())

	require.Len(t, a.saved, 2)
	assert.Equal(t, "AAPL_20240601_093000.png", a.saved[0].Name)
	assert.Equal(t, 1, a.folders)

	again, err := p.Run(context.Background(), groupedFixture(), Range{Limit: 2})
	require.NoError(t, err)
	assert.Zero(t, again.Written)
	assert.Equal(t, 3, again.Skipped)
	r.AssertNumberOfCalls(t, "Render", 2)
	assert.Len(t, a.saved, 2)
}

func TestRunLeavesPrepopulatedRow(t *testing.T) {
	g := sheetWith(t, "AAPL", "MSFT", "ZZZ", "005930.KS")
	require.NoError(t, grid.Set(context.Background(), g, "Chart(US)", 5, SparkColumn, grid.String("keep")))
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).Return(chart.Image{Bytes: []byte("png")}, nil)
	a := &fakeAssets{}
	p := newPipeline(t, g, r, a, nil)

	report, err := p.Run(context.Background(), groupedFixture(), Range{Start: 5, End: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "keep", cell(t, g, 5, SparkColumn))
	r.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
	assert.Empty(t, a.saved)
	assert.Zero(t, a.folders)
}

func TestRunClearRewritesRange(t *testing.T) {
	g := sheetWith(t, "AAPL", "005930.KS")
	require.NoError(t, grid.Set(context.Background(), g, "Chart(US)", 3, SparkColumn, grid.String("stale")))
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).Return(chart.Image{Bytes: []byte("png")}, nil)
	a := &fakeAssets{}
	p := newPipeline(t, g, r, a, nil)

	report, err := p.Run(context.Background(), groupedFixture(), Range{Clear: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, "https://drive.test/uc?id=file-2", cell(t, g, 3, SparkColumn))
	assert.Equal(t, "005930_20240601_093000.png", a.saved[1].Name)
}

func TestRunAbortStopsAtFirstFailure(t *testing.T) {
	g := sheetWith(t, "AAPL", "MSFT")
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).
		Return(chart.Image{}, &chart.RenderError{Chart: "sparkline", Reason: "empty series"}).Once()
	a := &fakeAssets{}
	p := newPipeline(t, g, r, a, nil)

	report, err := p.Run(context.Background(), groupedFixture(), Range{})
	require.Error(t, err)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "AAPL", rowErr.Ticker)
	assert.Equal(t, StatePending, rowErr.Stage)
	var renderErr *chart.RenderError
	assert.True(t, errors.As(err, &renderErr))
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Rows, 1)
	assert.Empty(t, cell(t, g, 3, SparkColumn))
}

func TestRunContinueRecordsFailures(t *testing.T) {
	g := sheetWith(t, "AAPL", "MSFT")
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).Return(chart.Image{Bytes: []byte("png")}, nil)
	a := &fakeAssets{saveErr: &asset.StoreError{Op: "write blob", Cause: errors.New("disk full")}}
	p := newPipeline(t, g, r, a, func(c *Config) { c.OnError = OnErrorContinue })

	report, err := p.Run(context.Background(), groupedFixture(), Range{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, StateFailed, report.Rows[1].State)
	var rowErr *RowError
	require.True(t, errors.As(report.Rows[1].Err, &rowErr))
	assert.Equal(t, StateRendered, rowErr.Stage)
}

func TestRunStagesWindowAndDropsSheet(t *testing.T) {
	g := sheetWith(t, "AAPL")
	r := &mockRenderer{}
	r.On("Render", mock.Anything, mock.Anything).Return(chart.Image{Bytes: []byte("png")}, nil)
	p := newPipeline(t, g, r, &fakeAssets{}, func(c *Config) {
		c.TargetColumn = CandleColumn
		c.Staging = true
	})

	grouped := series.NewGrouped()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	grouped.Add(grid.String("AAPL"), series.Entry{grid.Time(day), grid.Float(1), grid.Float(2), grid.Float(0.5), grid.Float(1.5)})

	_, err := p.Run(context.Background(), grouped, Range{})
	require.NoError(t, err)
	rows := r.Calls[0].Arguments.Get(1).([]series.Entry)
	require.Len(t, rows, 1)
	assert.Equal(t, grid.KindString, rows[0][0].Kind())
	assert.Equal(t, "2024-01-02", rows[0][0].String())
	assert.NotContains(t, g.Sheets(), "Temp2")
}

func TestRunEmptyRangeIsNoop(t *testing.T) {
	g := sheetWith(t)
	r := &mockRenderer{}
	p := newPipeline(t, g, r, &fakeAssets{}, nil)
	report, err := p.Run(context.Background(), groupedFixture(), Range{})
	require.NoError(t, err)
	assert.Empty(t, report.Rows)

	_, err = p.Run(context.Background(), groupedFixture(), Range{Start: -1})
	assert.Error(t, err)
}

func TestNewValidatesConfig(t *testing.T) {
	g := grid.NewMemoryStore()
	_, err := New(Config{Sheet: "S", TargetColumn: 1, Folder: "F"}, g, &mockRenderer{}, &fakeAssets{})
	assert.Error(t, err)
	_, err = New(Config{Sheet: "S", TargetColumn: 2}, g, &mockRenderer{}, &fakeAssets{})
	assert.Error(t, err)
	_, err = New(Config{Sheet: "S", TargetColumn: 2, Folder: "F"}, nil, &mockRenderer{}, &fakeAssets{})
	assert.Error(t, err)
	_, err = ParseOnError("retry")
	assert.Error(t, err)
}
