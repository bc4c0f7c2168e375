package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Grid.validate(); err != nil {
		return err
	}
	if err := c.Asset.validate(); err != nil {
		return err
	}
	if c.Chart.CaptureTimeoutSeconds <= 0 {
		return fmt.Errorf("chart.capture_timeout_seconds must be > 0")
	}
	if c.Chart.SettleMillis < 0 {
		return fmt.Errorf("chart.settle_millis must be >= 0")
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("app.log_level %q is not one of debug|info|warn|error", a.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format %q is not one of text|json", a.LogFormat)
	}
	if a.TimezoneOffsetHours < -12 || a.TimezoneOffsetHours > 14 {
		return fmt.Errorf("app.timezone_offset_hours must be within [-12, 14], got %d", a.TimezoneOffsetHours)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if !strings.HasPrefix(m.BaseURL, "http://") && !strings.HasPrefix(m.BaseURL, "https://") {
		return fmt.Errorf("market.base_url must be an http(s) URL, got %q", m.BaseURL)
	}
	if m.TimeoutSeconds <= 0 {
		return fmt.Errorf("market.timeout_seconds must be > 0")
	}
	if m.RetryCount < 0 {
		return fmt.Errorf("market.retry_count must be >= 0")
	}
	if m.Concurrency <= 0 {
		return fmt.Errorf("market.concurrency must be > 0")
	}
	if m.BreakerThreshold < 0 || m.BreakerCooldownSeconds < 0 {
		return fmt.Errorf("market breaker settings must be >= 0")
	}
	return nil
}

func (g *GridConfig) validate() error {
	switch g.Driver {
	case GridDriverMemory:
		return nil
	case GridDriverSQLite:
		if strings.TrimSpace(g.Path) == "" {
			return fmt.Errorf("grid.path is required for the sqlite driver")
		}
		return nil
	default:
		return fmt.Errorf("grid.driver %q is not one of memory|sqlite", g.Driver)
	}
}

func (a *AssetConfig) validate() error {
	if strings.TrimSpace(a.Root) == "" {
		return fmt.Errorf("asset.root cannot be empty")
	}
	if strings.Contains(a.PublicHost, "/uc") {
		return fmt.Errorf("asset.public_host should be a host, not a link: %q", a.PublicHost)
	}
	return nil
}
