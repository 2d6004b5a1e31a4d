package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	storeFileName  = "queryinsight.db"
)

const (
	DefaultThresholdMs   = 10.0
	DefaultCollectLimit  = 20
	DefaultWorkers       = 4
	DefaultRecentHours   = 24
	DefaultBaselineHours = 168
	DefaultSchedule      = "@every 15m"
)

var configDirFunc = configDir

var errNoProfiles = errors.New("no profiles configured")

type Config struct {
	Default  string         `yaml:"default,omitempty"`
	Profiles []Profile      `yaml:"profiles"`
	Store    string         `yaml:"store,omitempty"`
	Collect  CollectConfig  `yaml:"collect,omitempty"`
	Analysis AnalysisConfig `yaml:"analysis,omitempty"`
	Trends   TrendsConfig   `yaml:"trends,omitempty"`
	Watch    WatchConfig    `yaml:"watch,omitempty"`
}

type CollectConfig struct {
	ThresholdMs float64 `yaml:"threshold_ms,omitempty"`
	Limit       int     `yaml:"limit,omitempty"`
}

type AnalysisConfig struct {
	Workers int `yaml:"workers,omitempty"`
	// Nil means enabled.
	ExplainAnalyze *bool `yaml:"explain_analyze,omitempty"`
}

func (a AnalysisConfig) UseAnalyze() bool {
	return a.ExplainAnalyze == nil || *a.ExplainAnalyze
}

type TrendsConfig struct {
	RecentHours   int `yaml:"recent_hours,omitempty"`
	BaselineHours int `yaml:"baseline_hours,omitempty"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule,omitempty"`
}

// Load reads the config file and fills unset values with defaults. A
// missing file yields the defaults.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Store == "" {
		dir, err := configDirFunc()
		if err != nil {
			return err
		}
		c.Store = filepath.Join(dir, storeFileName)
	}
	if c.Collect.ThresholdMs == 0 {
		c.Collect.ThresholdMs = DefaultThresholdMs
	}
	if c.Collect.Limit == 0 {
		c.Collect.Limit = DefaultCollectLimit
	}
	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = DefaultWorkers
	}
	if c.Trends.RecentHours == 0 {
		c.Trends.RecentHours = DefaultRecentHours
	}
	if c.Trends.BaselineHours == 0 {
		c.Trends.BaselineHours = DefaultBaselineHours
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = DefaultSchedule
	}
	return nil
}

func (c *Config) validate() error {
	if c.Collect.ThresholdMs < 0 {
		return fmt.Errorf("collect.threshold_ms must not be negative")
	}
	if c.Collect.Limit < 0 {
		return fmt.Errorf("collect.limit must not be negative")
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative")
	}
	if c.Trends.RecentHours < 0 {
		return fmt.Errorf("trends.recent_hours must not be negative")
	}
	if c.Trends.BaselineHours <= c.Trends.RecentHours {
		return fmt.Errorf("trends.baseline_hours (%d) must be greater than trends.recent_hours (%d)",
			c.Trends.BaselineHours, c.Trends.RecentHours)
	}
	return nil
}

const initHeader = `# queryinsight configuration
#
# profiles: named PostgreSQL connection strings (manage with "queryinsight profile")
# store: local SQLite database for collected queries and recommendations
# collect: pg_stat_statements sampling, mean time threshold in ms and max queries
# analysis: parallel workers and whether plain SELECTs use EXPLAIN ANALYZE
# trends: recent and baseline window sizes in hours
# watch: cron schedule for "queryinsight watch"

`

// Init writes a config file populated with defaults and returns its path.
// An existing file is only replaced when force is set; its profiles survive.
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}

	existing, err := load()
	switch {
	case err == nil && !force:
		return "", fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	case err != nil && !os.IsNotExist(err) && !force:
		return "", err
	}

	cfg := &Config{}
	if existing != nil {
		cfg.Default = existing.Default
		cfg.Profiles = existing.Profiles
	}
	if err := cfg.applyDefaults(); err != nil {
		return "", err
	}
	enabled := true
	cfg.Analysis.ExplainAnalyze = &enabled

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	if err := write(path, append([]byte(initHeader), data...)); err != nil {
		return "", err
	}
	return path, nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &cfg, nil
}

func save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return write(path, data)
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(base, "queryinsight"), nil
}
