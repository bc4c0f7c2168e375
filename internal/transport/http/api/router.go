package apihttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/minyeamer/gspread/internal/asset"
	"github.com/minyeamer/gspread/internal/grid"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/recorder"
	"github.com/minyeamer/gspread/internal/scheduler"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
	maxBodyBytes    = 1 << 20
)

// JobService is implemented by *jobs.Runner.
type JobService interface {
	Definitions() []jobs.Definition
	Run(ctx context.Context, name string, overrides map[string]any) (recorder.Run, error)
	Recent(ctx context.Context, job string, limit int) ([]recorder.Run, error)
}

// ScheduleView is implemented by *scheduler.Scheduler.
type ScheduleView interface {
	Next() []scheduler.Entry
}

type Router struct {
	jobs     JobService
	assets   asset.Store
	grid     grid.Store
	schedule ScheduleView
}

func NewRouter(js JobService, assets asset.Store, g grid.Store, schedule ScheduleView) *Router {
	return &Router{jobs: js, assets: assets, grid: g, schedule: schedule}
}

// Register 将 /api 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/jobs", r.handleJobs)
	group.POST("/jobs/:name/run", r.handleRunJob)
	group.GET("/runs", r.handleRuns)
	if r.grid != nil {
		group.GET("/sheets", r.handleReadSheet)
		group.PUT("/sheets", r.handleWriteSheet)
	}
}

// handleAsset streams a stored chart the way a shared-file link would.
func (r *Router) handleAsset(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	file, body, err := r.assets.Open(c.Request.Context(), id)
	if errors.Is(err, asset.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		logger.Errorf("asset open %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open failed"})
		return
	}
	defer body.Close()
	c.Header("Content-Disposition", `inline; filename="`+file.Name+`"`)
	c.DataFromReader(http.StatusOK, file.Size, file.MimeType, body, nil)
}

type jobView struct {
	jobs.Definition
	Next *string `json:"next,omitempty"`
}

func (r *Router) handleJobs(c *gin.Context) {
	next := make(map[string]string)
	if r.schedule != nil {
		for _, e := range r.schedule.Next() {
			if !e.Next.IsZero() {
				next[e.Name] = e.Next.Format("2006-01-02T15:04:05Z07:00")
			}
		}
	}
	defs := r.jobs.Definitions()
	out := make([]jobView, 0, len(defs))
	for _, def := range defs {
		v := jobView{Definition: def}
		if at, ok := next[def.Name]; ok {
			v.Next = &at
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func (r *Router) handleRunJob(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}
	overrides, err := jobs.ParseOverrides(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := r.jobs.Run(c.Request.Context(), name, overrides)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrJobRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil && run.ID == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run": run})
	default:
		c.JSON(http.StatusOK, gin.H{"run": run})
	}
}

func (r *Router) handleRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunLimit)))
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}
	runs, err := r.jobs.Recent(c.Request.Context(), strings.TrimSpace(c.Query("job")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleReadSheet returns ?ref=Ohlc(US)!A2:F as display text.
func (r *Router) handleReadSheet(c *gin.Context) {
	sheet, rng, err := grid.ParseRef(c.Query("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rows, err := r.grid.Read(c.Request.Context(), sheet, rng)
	if errors.Is(err, grid.ErrSheetNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	values := make([][]string, len(rows))
	for i, row := range rows {
		values[i] = make([]string, len(row))
		for j, v := range row {
			values[i][j] = v.String()
		}
	}
	c.JSON(http.StatusOK, gin.H{"sheet": sheet, "values": values})
}

// handleWriteSheet writes {"ref": "Chart(US)!A2", "values": [["AAPL"], ...]}.
// JSON numbers become number cells, strings stay text.
func (r *Router) handleWriteSheet(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil || !gjson.ValidBytes(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be valid JSON"})
		return
	}
	body := gjson.ParseBytes(raw)
	sheet, rng, err := grid.ParseRef(body.Get("ref").String())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	values, err := cellsFromJSON(body.Get("values"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := r.grid.EnsureSheet(ctx, sheet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := r.grid.Write(ctx, sheet, rng.Row, rng.Col, values); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sheet": sheet, "rows": len(values)})
}

func cellsFromJSON(res gjson.Result) ([][]grid.Value, error) {
	if !res.IsArray() {
		return nil, errors.New("values must be an array of rows")
	}
	var (
		out    [][]grid.Value
		badRow bool
		badVal error
	)
	res.ForEach(func(_, row gjson.Result) bool {
		if !row.IsArray() {
			badRow = true
			return false
		}
		var cells []grid.Value
		row.ForEach(func(_, cell gjson.Result) bool {
			v, err := cellFromJSON(cell)
			if err != nil {
				badVal = err
				return false
			}
			cells = append(cells, v)
			return true
		})
		out = append(out, cells)
		return badVal == nil
	})
	if badRow {
		return nil, errors.New("every row must be an array")
	}
	if badVal != nil {
		return nil, badVal
	}
	return out, nil
}

func cellFromJSON(cell gjson.Result) (grid.Value, error) {
	switch cell.Type {
	case gjson.Null:
		return grid.Empty, nil
	case gjson.String:
		return grid.String(cell.Str), nil
	case gjson.True, gjson.False:
		return grid.Bool(cell.Bool()), nil
	case gjson.Number:
		d, err := decimal.NewFromString(cell.Raw)
		if err != nil {
			return grid.Empty, err
		}
		return grid.Number(d), nil
	default:
		return grid.Empty, fmt.Errorf("unsupported cell %s", cell.Raw)
	}
}
