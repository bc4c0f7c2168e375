// Package scheduler runs named jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
)

// RunFunc executes one job by name.
type RunFunc func(ctx context.Context, name string) error

// Scheduler manages the cron entries of the current job set.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	run  RunFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New builds a scheduler whose specs are read at loc. Specs take a leading
// seconds field ("0 0 7 * * 2-6"), a descriptor ("@daily"), or an interval
// shorthand ("6h", "1d").
func New(ctx context.Context, run RunFunc, loc *time.Location) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:     ctx,
		run:     run,
		entries: make(map[string]cron.EntryID),
	}
}

// Sync replaces every entry with the scheduled, enabled jobs of defs.
// A bad spec leaves the previous entries in place.
func (s *Scheduler) Sync(defs []jobs.Definition) error {
	type planned struct {
		name  string
		sched cron.Schedule
	}
	var plan []planned
	for _, def := range defs {
		spec := strings.TrimSpace(def.Schedule)
		if spec == "" || def.Disabled {
			continue
		}
		sched, err := parseSchedule(spec)
		if err != nil {
			return fmt.Errorf("job %s schedule %q: %w", def.Name, spec, err)
		}
		plan = append(plan, planned{name: def.Name, sched: sched})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	for _, p := range plan {
		name := p.name
		s.entries[name] = s.cron.Schedule(p.sched, cron.FuncJob(func() { s.fire(name) }))
	}
	logger.Infof("scheduler: %d scheduled jobs", len(plan))
	return nil
}

func (s *Scheduler) fire(name string) {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.run(s.ctx, name); err != nil {
		logger.Errorf("scheduler: %s: %v", name, err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Infof("scheduler: started")
}

// Stop halts new firings and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warnf("scheduler: stop timed out with jobs still running")
	}
	logger.Infof("scheduler: stopped")
}

// Next reports the next fire time per scheduled job, sorted by name.
func (s *Scheduler) Next() []Entry {
	s.mu.Lock()
	ids := make(map[string]cron.EntryID, len(s.entries))
	for name, id := range s.entries {
		ids[name] = id
	}
	s.mu.Unlock()
	out := make([]Entry, 0, len(ids))
	for name, id := range ids {
		out = append(out, Entry{Name: name, Next: s.cron.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type Entry struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
}

var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func parseSchedule(spec string) (cron.Schedule, error) {
	if d, ok := intervalOf(spec); ok {
		return cron.Every(d), nil
	}
	return specParser.Parse(spec)
}

var intervalUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// intervalOf reads a single-unit shorthand such as "6h" or "1d".
func intervalOf(spec string) (time.Duration, bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	if len(spec) < 2 {
		return 0, false
	}
	unit, ok := intervalUnits[spec[len(spec)-1]]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
