package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath names the variable that points at the config file.
	EnvConfigPath     = "GSPREAD_CONFIG"
	DefaultConfigPath = "configs/config.yaml"
)

// ResolvePath picks the explicit path, then $GSPREAD_CONFIG, then the default.
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads path and its include: files (included first, path last wins),
// fills defaults for keys the files leave unset and validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &includeWalker{done: make(map[string]bool), open: make(map[string]bool)}
	if err := w.walk(abs); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for _, layer := range w.layers {
		if err := v.MergeConfigMap(layer.settings); err != nil {
			return nil, fmt.Errorf("merging config file failed (%s): %w", layer.path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	flattenConfigKeys("", v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type configLayer struct {
	path     string
	settings map[string]any
}

// includeWalker reads each file once and orders layers depth first,
// so a file always follows everything it includes.
type includeWalker struct {
	done   map[string]bool
	open   map[string]bool
	layers []configLayer
}

func (w *includeWalker) walk(path string) error {
	path = filepath.Clean(path)
	if w.open[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if w.done[path] {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	includes, err := includeList(v.Get("include"))
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}

	w.open[path] = true
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := w.walk(inc); err != nil {
			return err
		}
	}
	delete(w.open, path)
	w.done[path] = true

	settings := v.AllSettings()
	delete(settings, "include")
	w.layers = append(w.layers, configLayer{path: path, settings: settings})
	return nil
}

// includeList accepts `include: base.yaml` or a list of paths.
func includeList(raw any) ([]string, error) {
	var items []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		items = []string{val}
	case []string:
		items = val
	case []any:
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("include only supports strings")
			}
			items = append(items, str)
		}
	default:
		return nil, fmt.Errorf("include must be a string or a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// flattenConfigKeys marks every leaf path ("market.retry_count") the files set.
func flattenConfigKeys(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		dest.mark(prefix)
		return
	}
	for k, v := range m {
		next := strings.ToLower(strings.TrimSpace(k))
		if next == "" || next == "include" {
			continue
		}
		if prefix != "" {
			next = prefix + "." + next
		}
		flattenConfigKeys(next, v, dest)
	}
}
