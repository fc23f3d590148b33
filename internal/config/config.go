// Package config loads, saves, and watches the Tempora configuration
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkornelli/tempora/internal/schedule"
)

// BusyWindow is a recurring weekly busy span in the availability
// template. End is exclusive; "24:00" means through the end of the day.
type BusyWindow struct {
	Day   string `yaml:"day"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Label string `yaml:"label,omitempty"`
}

// Config is the on-disk configuration.
type Config struct {
	Listen          string       `yaml:"listen"`
	DataDir         string       `yaml:"data_dir"`
	ScriptsDir      string       `yaml:"scripts_dir"`
	LogLevel        string       `yaml:"log_level"`
	IntervalMinutes int          `yaml:"interval_minutes"`
	Shell           string       `yaml:"shell,omitempty"`
	MaxConcurrent   int          `yaml:"max_concurrent"`
	PollPerSecond   int          `yaml:"poll_per_second"`
	KeepRuns        int          `yaml:"keep_runs"`
	Busy            []BusyWindow `yaml:"busy,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:7466",
		DataDir:         "~/.tempora",
		ScriptsDir:      "~/.tempora/scripts",
		LogLevel:        "info",
		IntervalMinutes: schedule.DefaultIntervalMinutes,
		MaxConcurrent:   4,
		PollPerSecond:   10,
		KeepRuns:        200,
	}
}

// DefaultPath returns ~/.tempora/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".tempora", "config.yaml")
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize fills zero values with defaults and expands ~ in paths.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = def.ScriptsDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = def.IntervalMinutes
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.PollPerSecond <= 0 {
		c.PollPerSecond = def.PollPerSecond
	}
	if c.KeepRuns <= 0 {
		c.KeepRuns = def.KeepRuns
	}
	c.DataDir = expandHome(c.DataDir)
	c.ScriptsDir = expandHome(c.ScriptsDir)
}

// Validate checks the interval and every busy window. Building the
// week exercises exactly the same paths the daemon uses at startup.
func (c *Config) Validate() error {
	if _, err := c.Week(); err != nil {
		return err
	}
	return nil
}

// Week builds the availability template: a fresh week with every
// configured busy window applied.
func (c *Config) Week() (*schedule.Week, error) {
	iv, err := schedule.NewInterval(c.IntervalMinutes)
	if err != nil {
		return nil, err
	}

	week := schedule.NewWeek(iv)
	for _, w := range c.Busy {
		day, err := schedule.ParseWeekday(w.Day)
		if err != nil {
			return nil, fmt.Errorf("busy window %s: %w", w.describe(), err)
		}
		from, err := schedule.ParseTimeOfDay(w.Start)
		if err != nil {
			return nil, fmt.Errorf("busy window %s: %w", w.describe(), err)
		}
		toIdx, err := iv.EndIndex(w.End)
		if err != nil {
			return nil, fmt.Errorf("busy window %s: %w", w.describe(), err)
		}
		if err := week.Day(day).SetIndexRange(iv.IndexOf(from), toIdx, schedule.StatusBusy); err != nil {
			return nil, fmt.Errorf("busy window %s: %w", w.describe(), err)
		}
	}
	return week, nil
}

func (w BusyWindow) describe() string {
	if w.Label != "" {
		return fmt.Sprintf("%q (%s %s-%s)", w.Label, w.Day, w.Start, w.End)
	}
	return fmt.Sprintf("%s %s-%s", w.Day, w.Start, w.End)
}

// --- Derived paths ---

// DBPath is the SQLite file under the data directory.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "tempora.db") }

// RunsDir holds the per-run output sinks.
func (c *Config) RunsDir() string { return filepath.Join(c.DataDir, "runs") }

// RegistryPath is the script registry file.
func (c *Config) RegistryPath() string { return filepath.Join(c.DataDir, "scripts.yaml") }

// DaemonFile records the live daemon's address and token.
func (c *Config) DaemonFile() string { return filepath.Join(c.DataDir, "daemon.json") }

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
