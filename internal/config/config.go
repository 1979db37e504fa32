// Package config loads pdfmerge settings from a YAML file, PDFMERGE_*
// environment variables and built-in defaults, in increasing order of
// precedence below command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
	Log     struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	Render struct {
		Concurrency     int           `mapstructure:"concurrency"`
		RowTimeout      time.Duration `mapstructure:"row_timeout"`
		ResourceTimeout time.Duration `mapstructure:"resource_timeout"`
		// ResourceRate limits remote resource fetches per second; 0 is unlimited.
		ResourceRate float64 `mapstructure:"resource_rate"`
		// ResourceDir is the base directory for local image paths.
		ResourceDir    string `mapstructure:"resource_dir"`
		Backend        string `mapstructure:"backend"`
		ChromePath     string `mapstructure:"chrome_path"`
		Quality        int    `mapstructure:"quality"`
		PageMode       string `mapstructure:"page_mode"`
		Strict         bool   `mapstructure:"strict"`
		Vector         bool   `mapstructure:"vector"`
		MaxRows        int    `mapstructure:"max_rows"`
		MaxMarkupBytes int    `mapstructure:"max_markup_bytes"`
		MaxHeight      int    `mapstructure:"max_height"`
	} `mapstructure:"render"`
}

// Backends understood by Render.Backend.
const (
	BackendText   = "text"
	BackendChrome = "chrome"
)

// EnvPrefix prefixes every environment override, e.g. PDFMERGE_RENDER_CONCURRENCY.
const EnvPrefix = "PDFMERGE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("render.concurrency", 4)
	v.SetDefault("render.row_timeout", "60s")
	v.SetDefault("render.resource_timeout", "15s")
	v.SetDefault("render.resource_rate", 0)
	v.SetDefault("render.resource_dir", "")
	v.SetDefault("render.backend", BackendText)
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.quality", 92)
	v.SetDefault("render.page_mode", "single")
	v.SetDefault("render.strict", false)
	v.SetDefault("render.vector", false)
	v.SetDefault("render.max_rows", 10000)
	v.SetDefault("render.max_markup_bytes", 5<<20)
	v.SetDefault("render.max_height", 30000)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pdfmerge"
	}
	return filepath.Join(home, ".pdfmerge")
}

// FlagKeys maps command line flag names to the settings they override.
var FlagKeys = map[string]string{
	"data-dir":    "data_dir",
	"log-level":   "log.level",
	"concurrency": "render.concurrency",
	"backend":     "render.backend",
	"page-mode":   "render.page_mode",
	"strict":      "render.strict",
	"vector":      "render.vector",
}

// Load reads the configuration. An explicit path must exist; otherwise
// pdfmerge.yaml is looked up in the working directory and ~/.pdfmerge and
// may be absent.
func Load(path string) (*Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is Load with the flags named in FlagKeys taking precedence
// over every other source when they were set.
func LoadWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: binding --%s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pdfmerge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pdfmerge"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", describe(v, path), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func describe(v *viper.Viper, path string) string {
	if used := v.ConfigFileUsed(); used != "" {
		return used
	}
	if path != "" {
		return path
	}
	return "pdfmerge.yaml"
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	r := c.Render
	switch {
	case r.Concurrency < 1:
		return fmt.Errorf("config: render.concurrency must be at least 1, got %d", r.Concurrency)
	case r.Backend != BackendText && r.Backend != BackendChrome:
		return fmt.Errorf("config: render.backend must be %q or %q, got %q", BackendText, BackendChrome, r.Backend)
	case r.PageMode != "single" && r.PageMode != "paginate":
		return fmt.Errorf("config: render.page_mode must be \"single\" or \"paginate\", got %q", r.PageMode)
	case r.Quality < 1 || r.Quality > 100:
		return fmt.Errorf("config: render.quality must be between 1 and 100, got %d", r.Quality)
	case r.RowTimeout < 0 || r.ResourceTimeout < 0:
		return errors.New("config: timeouts must not be negative")
	}
	return nil
}
