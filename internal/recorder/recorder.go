// Package recorder keeps a history of job runs.
package recorder

import (
	"context"
	"time"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one execution of a named job.
type Run struct {
	ID         string         `json:"id"`
	Job        string         `json:"job"`
	Kind       string         `json:"kind"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	RangeStart int            `json:"range_start,omitempty"`
	RangeEnd   int            `json:"range_end,omitempty"`
	Written    int            `json:"written"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Error      string         `json:"error,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

type Recorder interface {
	// Record inserts or replaces the run with the same ID.
	Record(ctx context.Context, run Run) error
	// Recent lists the newest runs, optionally for one job.
	Recent(ctx context.Context, job string, limit int) ([]Run, error)
	Close() error
}

// NoopRecorder is used when no recorder path is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(context.Context, Run) error { return nil }
func (n *NoopRecorder) Recent(context.Context, string, int) ([]Run, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
