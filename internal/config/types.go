package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 gspread 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Market   MarketConfig   `toml:"market"`
	Grid     GridConfig     `toml:"grid"`
	Asset    AssetConfig    `toml:"asset"`
	Chart    ChartConfig    `toml:"chart"`
	Recorder RecorderConfig `toml:"recorder"`
	// JobsPath points at the job definitions file; empty uses the built-in jobs.
	JobsPath string `toml:"jobs_path"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	// TimezoneOffsetHours fixes the clock used for file names and schedules.
	TimezoneOffsetHours int `toml:"timezone_offset_hours"`
}

// Location is the fixed-offset zone of the app clock.
func (a AppConfig) Location() *time.Location {
	h := a.TimezoneOffsetHours
	name := fmt.Sprintf("UTC%+d", h)
	if h == 0 {
		name = "UTC"
	}
	return time.FixedZone(name, h*60*60)
}

type MarketConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RetryCount     int     `toml:"retry_count"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Concurrency    int     `toml:"concurrency"`
	UserAgent      string  `toml:"user_agent"`
	// BreakerThreshold of 0 disables the circuit breaker.
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

func (m MarketConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MarketConfig) BreakerCooldown() time.Duration {
	return time.Duration(m.BreakerCooldownSeconds) * time.Second
}

const (
	GridDriverMemory = "memory"
	GridDriverSQLite = "sqlite"
)

type GridConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

func (g GridConfig) normalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(g.Driver))
}

type AssetConfig struct {
	Root       string `toml:"root"`
	IndexPath  string `toml:"index_path"`
	PublicHost string `toml:"public_host"`
}

type ChartConfig struct {
	// ChromePath is optional; chromedp finds a browser on PATH otherwise.
	ChromePath            string `toml:"chrome_path"`
	CaptureTimeoutSeconds int    `toml:"capture_timeout_seconds"`
	SettleMillis          int    `toml:"settle_millis"`
	AssetsHost            string `toml:"assets_host"`
}

func (c ChartConfig) CaptureTimeout() time.Duration {
	return time.Duration(c.CaptureTimeoutSeconds) * time.Second
}

// Settle is -1 when settle_millis is 0, so the renderer does not wait.
func (c ChartConfig) Settle() time.Duration {
	if c.SettleMillis == 0 {
		return -1
	}
	return time.Duration(c.SettleMillis) * time.Millisecond
}

type RecorderConfig struct {
	// Path of the run history database; empty disables recording.
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
