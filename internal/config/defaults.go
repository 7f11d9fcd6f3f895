package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			AutoCounting:        false,
			ExcludeCrawlers:     false,
			CrawlerSignatures:   DefaultCrawlerSignatures(),
			CrawlerPatterns:     []string{},
			NotFoundID:          27,
			GuestRole:           "guest",
			CountedRoles:        []string{},
			CountableCategories: []string{},
			ExcludedSubjects:    []int64{},
			ExcludedBranches:    []int64{},
			ExcludedIPs:         []string{},
		},
		Ranking: RankingConfig{
			ViewRange1:    1440,
			ViewRange2:    2880,
			ViewRange3:    4320,
			FrontendLimit: 6,
			BackendLimit:  25,
		},
		Retention: RetentionConfig{
			Days: 90,
		},
		Storage: StorageConfig{
			Path:              "~/.config/mostviewed",
			SQLiteFile:        "mostviewed.db",
			SQLiteJournalMode: "wal",
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
		},
		Cache: CacheConfig{
			Enabled:    false,
			RedisAddr:  "127.0.0.1:6379",
			RedisDB:    0,
			Prefix:     "mostviewed:rank:",
			TTLSeconds: 60,
		},
		Metrics:    MetricsConfig{},
		Categories: map[string]int64{},
	}
}

// DefaultCrawlerSignatures returns user agent fragments that identify
// crawlers, fetch libraries and link preview bots. Matching is
// case-insensitive.
func DefaultCrawlerSignatures() []string {
	return []string{
		"bot",
		"slurp",
		"crawler",
		"spider",
		"curl",
		"facebook",
		"fetch",
	}
}
