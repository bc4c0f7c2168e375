package config

import (
	"strings"

	"github.com/minyeamer/gspread/internal/gateway/yahoo"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9991"
	defaultAppLogPath        = "data/logs/gspread.log"
	defaultTimezoneOffset    = 9
	defaultMarketTimeout     = 15
	defaultMarketRate        = 2
	defaultMarketConcurrency = 4
	defaultBreakerCooldown   = 60
	defaultGridDriver        = GridDriverSQLite
	defaultGridPath          = "data/grid.db"
	defaultAssetRoot         = "data/assets"
	defaultAssetHost         = "localhost:9991"
	defaultCaptureTimeout    = 20
	defaultSettleMillis      = 1500
	defaultRecorderPath      = "data/runs.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Grid.applyDefaults(keys)
	c.Asset.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
	applyFieldDefaults(keys, stringFieldDefault("recorder.path", &c.Recorder.Path, defaultRecorderPath))
	c.JobsPath = strings.TrimSpace(c.JobsPath)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		intFieldDefault("app.timezone_offset_hours", &a.TimezoneOffsetHours, defaultTimezoneOffset),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.base_url", &m.BaseURL, yahoo.DefaultBaseURL),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
		intFieldDefault("market.concurrency", &m.Concurrency, defaultMarketConcurrency),
		intFieldDefault("market.breaker_cooldown_seconds", &m.BreakerCooldownSeconds, defaultBreakerCooldown),
		fieldDefault{
			key:   "market.rate_per_second",
			need:  func() bool { return m.RatePerSecond <= 0 },
			apply: func() { m.RatePerSecond = defaultMarketRate },
		},
	)
	m.BaseURL = strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
}

func (g *GridConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("grid.driver", &g.Driver, defaultGridDriver),
		stringFieldDefault("grid.path", &g.Path, defaultGridPath),
	)
	g.Driver = g.normalizedDriver()
}

func (a *AssetConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("asset.root", &a.Root, defaultAssetRoot),
		stringFieldDefault("asset.public_host", &a.PublicHost, defaultAssetHost),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("chart.capture_timeout_seconds", &c.CaptureTimeoutSeconds, defaultCaptureTimeout),
		intFieldDefault("chart.settle_millis", &c.SettleMillis, defaultSettleMillis),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

// intFieldDefault applies only when the key is absent, so an explicit 0 stays 0.
func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}
