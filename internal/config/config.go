package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/mostviewed/config.yaml"

// Config holds all mostviewed configuration.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Retention RetentionConfig `yaml:"retention"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Categories maps category (template) names to ids.
	Categories map[string]int64 `yaml:"categories"`
}

// TrackingConfig drives the exclusion policy applied when recording views.
type TrackingConfig struct {
	AutoCounting        bool     `yaml:"auto_counting"`
	ExcludeCrawlers     bool     `yaml:"exclude_crawlers"`
	CrawlerSignatures   []string `yaml:"crawler_signatures"`
	CrawlerPatterns     []string `yaml:"crawler_patterns"`
	NotFoundID          int64    `yaml:"not_found_id"`
	GuestRole           string   `yaml:"guest_role"`
	CountedRoles        []string `yaml:"counted_roles"`
	CountableCategories []string `yaml:"countable_categories"`
	ExcludedSubjects    []int64  `yaml:"excluded_subjects"`
	ExcludedBranches    []int64  `yaml:"excluded_branches"`
	ExcludedIPs         []string `yaml:"excluded_ips"`
}

// RankingConfig holds the window ladder (minutes) and default list sizes.
type RankingConfig struct {
	ViewRange1    int `yaml:"view_range_1"`
	ViewRange2    int `yaml:"view_range_2"`
	ViewRange3    int `yaml:"view_range_3"`
	FrontendLimit int `yaml:"frontend_limit"`
	BackendLimit  int `yaml:"backend_limit"`
}

type RetentionConfig struct {
	Days int `yaml:"days"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
}

type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPassword string `yaml:"redis_password"`
	Prefix        string `yaml:"prefix"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the counters in Prometheus text format
	// after every command (node_exporter textfile collector).
	Textfile string `yaml:"textfile"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Categories == nil {
		cfg.Categories = map[string]int64{}
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// DatabasePath returns the resolved SQLite file location.
func (c *Config) DatabasePath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
