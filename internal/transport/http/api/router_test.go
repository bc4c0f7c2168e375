package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/recorder"
	"github.com/minyeamer/gspread/internal/scheduler"
)

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Definitions() []jobs.Definition {
	return m.Called().Get(0).([]jobs.Definition)
}

func (m *mockJobs) Run(ctx context.Context, name string, overrides map[string]any) (recorder.Run, error) {
	args := m.Called(name, overrides)
	return args.Get(0).(recorder.Run), args.Error(1)
}

func (m *mockJobs) Recent(ctx context.Context, job string, limit int) ([]recorder.Run, error) {
	args := m.Called(job, limit)
	return args.Get(0).([]recorder.Run), args.Error(1)
}

type fixedSchedule []scheduler.Entry

func (f fixedSchedule) Next() []scheduler.Entry { return f }

func newTestServer(t *testing.T, js JobService, assets asset.Store, g grid.Store) *httptest.Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Jobs:   js,
		Assets: assets,
		Grid:   g,
		Schedule: fixedSchedule{{
			Name: "prices-us",
			Next: time.Date(2024, 3, 5, 7, 0, 0, 0, time.UTC),
		}},
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newDiskStore(t *testing.T) *asset.DiskStore {
	t.Helper()
	dir := t.TempDir()
	s, err := asset.NewDiskStore(asset.DiskOptions{
		Root:       filepath.Join(dir, "assets"),
		PublicHost: "drive.test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAssetRoute(t *testing.T) {
	store := newDiskStore(t)
	ctx := context.Background()
	folder, err := store.EnsureFolder(ctx, "Candlestick(US)", asset.IfExistsIgnore)
	require.NoError(t, err)
	ref, err := store.Save(ctx, folder, asset.Blob{Name: "AAPL.png", MimeType: "image/png", Bytes: []byte("png-bytes")})
	require.NoError(t, err)

	ts := newTestServer(t, new(mockJobs), store, nil)

	resp, err := http.Get(ts.URL + "/uc?id=" + ref.FileID)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "png-bytes", string(body))

	for query, want := range map[string]int{
		"":         http.StatusBadRequest,
		"?id=nope": http.StatusNotFound,
		"?id=6f1c0b4e-0000-4000-8000-000000000000": http.StatusNotFound,
	} {
		resp, err := http.Get(ts.URL + "/uc" + query)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, query)
	}
}

func TestJobsRoute(t *testing.T) {
	js := new(mockJobs)
	js.On("Definitions").Return([]jobs.Definition{
		{Name: "candles-us", Kind: jobs.KindCandles, Segment: "us"},
		{Name: "prices-us", Kind: jobs.KindPrices, Segment: "us", Schedule: "0 0 7 * * 2-6"},
	})
	ts := newTestServer(t, js, newDiskStore(t), nil)

	resp, err := http.Get(ts.URL + "/api/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Jobs []struct {
			Name string  `json:"name"`
			Next *string `json:"next"`
		} `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Jobs, 2)
	assert.Nil(t, out.Jobs[0].Next)
	require.NotNil(t, out.Jobs[1].Next)
	assert.Equal(t, "2024-03-05T07:00:00Z", *out.Jobs[1].Next)
}

func TestRunJobRoute(t *testing.T) {
	js := new(mockJobs)
	js.On("Run", "candles-us", map[string]any{"start": float64(5), "clear": true}).
		Return(recorder.Run{ID: "r1", Job: "candles-us", Status: recorder.StatusSucceeded, Written: 3}, nil)
	js.On("Run", "missing", mock.Anything).Return(recorder.Run{}, fmt.Errorf("%w: missing", jobs.ErrUnknownJob))
	js.On("Run", "prices-us", mock.Anything).Return(recorder.Run{}, fmt.Errorf("%w: prices-us", jobs.ErrJobRunning))
	js.On("Run", "sparklines-us", mock.Anything).
		Return(recorder.Run{ID: "r2", Status: recorder.StatusFailed, Error: "boom"}, fmt.Errorf("boom"))
	ts := newTestServer(t, js, newDiskStore(t), nil)

	post := func(name, body string) (*http.Response, map[string]any) {
		resp, err := http.Post(ts.URL+"/api/jobs/"+name+"/run", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp, out
	}

	resp, out := post("candles-us", `{"start": 5, "clear": true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "r1", out["run"].(map[string]any)["id"])

	resp, _ = post("missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = post("prices-us", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, out = post("sparklines-us", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "boom", out["error"])

	resp, _ = post("candles-us", `{"color": "red"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	js.AssertNumberOfCalls(t, "Run", 4)
}

func TestRunsRoute(t *testing.T) {
	js := new(mockJobs)
	js.On("Recent", "candles-us", maxRunLimit).Return([]recorder.Run{{ID: "r1"}}, nil)
	js.On("Recent", "", defaultRunLimit).Return([]recorder.Run{}, nil)
	ts := newTestServer(t, js, newDiskStore(t), nil)

	resp, err := http.Get(ts.URL + "/api/runs?job=candles-us&limit=5000")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	js.AssertExpectations(t)
}

func TestSheetRoutes(t *testing.T) {
	g := grid.NewMemoryStore()
	ts := newTestServer(t, new(mockJobs), newDiskStore(t), g)

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/sheets",
		strings.NewReader(`{"ref": "Chart(US)!A2", "values": [["AAPL", 1.50], ["MSFT", null, true]]}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v, err := grid.Get(context.Background(), g, "Chart(US)", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, grid.KindNumber, v.Kind())

	resp, err = http.Get(ts.URL + "/api/sheets?ref=" + "Chart(US)!A2:A")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Values [][]string `json:"values"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, [][]string{{"AAPL"}, {"MSFT"}}, out.Values)

	resp, err = http.Get(ts.URL + "/api/sheets?ref=Missing!A1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/sheets", strings.NewReader(`{"ref": "A2", "values": []}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
