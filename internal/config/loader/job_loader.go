// Package loader reads the job definitions file and reloads it on change.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
)

//go:embed jobs.schema.json
var jobsSchema string

var compiledSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("jobs.schema.json", strings.NewReader(jobsSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("jobs.schema.json")
}()

// JobEntry 是 jobs 文件中单个 job 的配置。
type JobEntry struct {
	Kind     string         `yaml:"kind"`
	Segment  string         `yaml:"segment"`
	Schedule string         `yaml:"schedule"`
	Disabled bool           `yaml:"disabled"`
	Params   map[string]any `yaml:"params"`
}

// FileConfig 是完整的 jobs 配置文件结构。
type FileConfig struct {
	Jobs map[string]JobEntry `yaml:"jobs"`
}

// Snapshot is a read-only view of the last good load.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Jobs     []jobs.Definition
}

type ChangeListener func(Snapshot)

// JobLoader 负责从 YAML 文件中加载 job 定义，并监听热更新。
// A reload that fails keeps the previous snapshot.
type JobLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewJobLoader reads path and starts watching it.
func NewJobLoader(path string) (*JobLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("job loader requires path")
	}
	l := &JobLoader{path: path, v: viper.New()}
	if err := l.reload(); err != nil {
		return nil, err
	}
	l.v.SetConfigFile(path)
	l.v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("jobs reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	l.v.WatchConfig()
	return l, nil
}

// ReadJobs loads path once without watching.
func ReadJobs(path string) ([]jobs.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file failed: %w", err)
	}
	return ParseJobs(raw)
}

// ParseJobs decodes, schema-checks and normalizes a jobs document.
func ParseJobs(raw []byte) ([]jobs.Definition, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse jobs file failed: %w", err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfg.Jobs))
	for name := range cfg.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]jobs.Definition, 0, len(names))
	for _, name := range names {
		def, err := normalizeEntry(name, cfg.Jobs[name])
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// validateDocument checks the file against the embedded schema. The YAML
// tree goes through JSON so numbers arrive the way the validator expects.
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("jobs file is not representable as JSON: %w", err)
	}
	var generic any
	if err := json.Unmarshal(buf, &generic); err != nil {
		return err
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return fmt.Errorf("jobs file failed schema validation: %w", err)
	}
	return nil
}

func normalizeEntry(name string, e JobEntry) (jobs.Definition, error) {
	kind, err := jobs.ParseKind(e.Kind)
	if err != nil {
		return jobs.Definition{}, fmt.Errorf("job %s: %w", name, err)
	}
	def := jobs.Definition{
		Name:     strings.TrimSpace(name),
		Kind:     kind,
		Segment:  strings.ToLower(strings.TrimSpace(e.Segment)),
		Schedule: strings.TrimSpace(e.Schedule),
		Disabled: e.Disabled,
		Params:   cloneParams(e.Params),
	}
	if err := def.Validate(); err != nil {
		return jobs.Definition{}, err
	}
	return def, nil
}

// Snapshot 返回当前配置快照（深拷贝）。
func (l *JobLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *JobLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go deliver(fn, snap)
}

func (l *JobLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go deliver(fn, snap)
	}
}

func deliver(fn ChangeListener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("jobs listener panic: %v", r)
		}
	}()
	fn(snap)
}

func (l *JobLoader) reload() error {
	defs, err := ReadJobs(l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Jobs:     defs,
	}
	l.mu.Unlock()
	logger.Infof("Job loader reloaded %d jobs from %s", len(defs), filepath.Base(l.path))
	return nil
}

func cloneParams(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{Version: src.Version, LoadedAt: src.LoadedAt}
	dst.Jobs = make([]jobs.Definition, len(src.Jobs))
	for i, def := range src.Jobs {
		def.Params = cloneParams(def.Params)
		dst.Jobs[i] = def
	}
	return dst
}
