package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/minyeamer/gspread/internal/app"
	"github.com/minyeamer/gspread/internal/config"
	"github.com/minyeamer/gspread/internal/jobs"
	"github.com/minyeamer/gspread/internal/logger"
)

func main() {
	cfgFlag := flag.String("config", "", "config file (default $GSPREAD_CONFIG or configs/config.yaml)")
	overrides := flag.String("set", "", `JSON overrides for a one-shot job, e.g. '{"start": 5, "clear": true}'`)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: gspread [-config path] [-set json] [job]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "With a job name the job runs once and the process exits.\nWithout one, the HTTP server and job schedules run until interrupted.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ResolvePath(*cfgFlag))
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, out, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetFormat(cfg.App.LogFormat, out)
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，jobs=%s）", cfg.App.Env, cfg.JobsPath)

	if name := strings.TrimSpace(flag.Arg(0)); name != "" {
		code := runOnce(ctx, cfg, name, *overrides)
		stop()
		if logFile != nil {
			_ = logFile.Close()
		}
		os.Exit(code)
	}

	a, err := app.NewApp(ctx, cfg, app.WithJobsWatch(true))
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func runOnce(ctx context.Context, cfg *config.Config, name, rawOverrides string) int {
	params, err := jobs.ParseOverrides([]byte(rawOverrides))
	if err != nil {
		logger.Errorf("invalid -set: %v", err)
		return 2
	}
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		logger.Errorf("初始化应用失败: %v", err)
		return 1
	}
	defer a.Close()
	run, err := a.RunJob(ctx, name, params)
	if err != nil {
		logger.Errorf("%s: %v", name, err)
		return 1
	}
	fmt.Printf("%s %s rows %d-%d written=%d skipped=%d failed=%d\n",
		run.Job, run.Status, run.RangeStart, run.RangeEnd, run.Written, run.Skipped, run.Failed)
	return 0
}

// setupLogOutput tees the log into path when one is configured.
func setupLogOutput(path string) (*os.File, io.Writer, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, os.Stdout, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	return file, mw, nil
}
