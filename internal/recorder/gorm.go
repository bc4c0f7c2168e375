package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minyeamer/gspread/internal/logger"
	"github.com/minyeamer/gspread/internal/store/gormstore"
)

const defaultRecentLimit = 20

type runModel struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Job        string         `gorm:"column:job;index"`
	Kind       string         `gorm:"column:kind"`
	Status     string         `gorm:"column:status"`
	StartedAt  time.Time      `gorm:"column:started_at;index"`
	FinishedAt *time.Time     `gorm:"column:finished_at"`
	RangeStart int            `gorm:"column:range_start"`
	RangeEnd   int            `gorm:"column:range_end"`
	Written    int            `gorm:"column:written"`
	Skipped    int            `gorm:"column:skipped"`
	Failed     int            `gorm:"column:failed"`
	Error      string         `gorm:"column:error"`
	Options    datatypes.JSON `gorm:"column:options"`
}

func (runModel) TableName() string { return "job_runs" }

// GormRecorder stores runs in SQLite through gorm.
type GormRecorder struct {
	db *gorm.DB
}

var _ Recorder = (*GormRecorder)(nil)

func NewGormRecorder(path string) (*GormRecorder, error) {
	db, err := gormstore.Open(path, &runModel{})
	if err != nil {
		return nil, err
	}
	return &GormRecorder{db: db}, nil
}

func (r *GormRecorder) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	m := runModel{
		ID:         run.ID,
		Job:        run.Job,
		Kind:       run.Kind,
		Status:     string(run.Status),
		StartedAt:  run.StartedAt,
		RangeStart: run.RangeStart,
		RangeEnd:   run.RangeEnd,
		Written:    run.Written,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		Error:      run.Error,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		m.FinishedAt = &finished
	}
	if len(run.Options) > 0 {
		raw, err := json.Marshal(run.Options)
		if err != nil {
			return fmt.Errorf("encode run options: %w", err)
		}
		m.Options = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

func (r *GormRecorder) Recent(ctx context.Context, job string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit)
	if job = strings.TrimSpace(job); job != "" {
		q = q.Where("job = ?", job)
	}
	var rows []runModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(rows))
	for _, m := range rows {
		run := Run{
			ID:         m.ID,
			Job:        m.Job,
			Kind:       m.Kind,
			Status:     Status(m.Status),
			StartedAt:  m.StartedAt,
			RangeStart: m.RangeStart,
			RangeEnd:   m.RangeEnd,
			Written:    m.Written,
			Skipped:    m.Skipped,
			Failed:     m.Failed,
			Error:      m.Error,
		}
		if m.FinishedAt != nil {
			run.FinishedAt = *m.FinishedAt
		}
		if len(m.Options) > 0 {
			if err := json.Unmarshal(m.Options, &run.Options); err != nil {
				logger.Warnf("recorder: run %s has unreadable options: %v", m.ID, err)
			}
		}
		out = append(out, run)
	}
	return out, nil
}

func (r *GormRecorder) Close() error {
	if r == nil {
		return nil
	}
	return gormstore.Close(r.db)
}
