package app

import (
	"fmt"
	"strings"

	"github.com/minyeamer/gspread/internal/config"
	"github.com/minyeamer/gspread/internal/jobs"
)

type StartupSummary struct {
	Env      string
	HTTPAddr string
	Timezone string
	Grid     string
	Assets   string
	Recorder string
	JobsFile string
	Jobs     []JobSummary
}

type JobSummary struct {
	Name     string
	Kind     string
	Segment  string
	Schedule string
	Disabled bool
}

func newStartupSummary(cfg *config.Config, defs []jobs.Definition) *StartupSummary {
	s := &StartupSummary{
		Env:      cfg.App.Env,
		HTTPAddr: cfg.App.HTTPAddr,
		Timezone: cfg.App.Location().String(),
		Grid:     cfg.Grid.Driver,
		Assets:   cfg.Asset.Root,
		Recorder: cfg.Recorder.Path,
		JobsFile: cfg.JobsPath,
	}
	if cfg.Grid.Driver != config.GridDriverMemory {
		s.Grid += " (" + cfg.Grid.Path + ")"
	}
	for _, def := range defs {
		s.Jobs = append(s.Jobs, JobSummary{
			Name:     def.Name,
			Kind:     string(def.Kind),
			Segment:  def.Segment,
			Schedule: def.Schedule,
			Disabled: def.Disabled,
		})
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[运行环境 (RUNTIME)]")
	fmt.Printf("  环境: %s\n", s.Env)
	fmt.Printf("  HTTP: %s\n", s.HTTPAddr)
	fmt.Printf("  时区: %s\n", s.Timezone)
	fmt.Println()

	fmt.Println("[存储 (STORAGE)]")
	fmt.Printf("  表格: %s\n", s.Grid)
	fmt.Printf("  图片: %s\n", s.Assets)
	fmt.Printf("  运行记录: %s\n", orDash(s.Recorder))
	fmt.Println()

	fmt.Printf("[作业 (JOBS)] %s\n", orDash(s.JobsFile))
	if len(s.Jobs) == 0 {
		fmt.Println("  (无配置)")
	}
	for _, j := range s.Jobs {
		state := orDash(j.Schedule)
		if j.Disabled {
			state += " (disabled)"
		}
		fmt.Printf("  > %-16s %-11s %-3s %s\n", j.Name, j.Kind, orDash(j.Segment), state)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
