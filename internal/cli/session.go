package cli

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/runnerr0/mostviewed/internal/config"
	"github.com/runnerr0/mostviewed/internal/logging"
	"github.com/runnerr0/mostviewed/internal/rankcache"
	"github.com/runnerr0/mostviewed/internal/storage"
	"github.com/runnerr0/mostviewed/internal/tracker"
)

// session is everything a subcommand needs: config, logger, the migrated
// store and the collaborators handed to the tracker.
type session struct {
	cfg      *config.Config
	logger   slog.Logger
	db       *sql.DB
	dbPath   string
	store    *storage.SQLiteStore
	clock    quartz.Clock
	registry *prometheus.Registry
	metrics  *tracker.Metrics
	cache    tracker.RankCache
	closers  []func()
}

// loadConfig loads --config, or the default path, creating defaults on first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if globals != nil && globals.Config != "" {
		path, perr := config.ExpandPath(globals.Config)
		if perr != nil {
			return nil, perr
		}
		cfg, err = config.LoadOrCreateAt(path)
	} else {
		cfg, err = config.LoadOrCreate()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openSession loads the config, builds the logger, opens and migrates the
// database, and connects the rank cache when enabled.
func openSession(globals *GlobalFlags) (*session, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		Verbose:    globals != nil && globals.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		closeLog()
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		closeLog()
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open database: %w", err)
	}

	sess, err := newSession(cfg, logger, db)
	if err != nil {
		db.Close()
		closeLog()
		return nil, err
	}
	sess.dbPath = dbPath
	sess.closers = append(sess.closers, func() { db.Close() }, closeLog)

	if cfg.Cache.Enabled {
		sess.connectCache(context.Background())
	}
	return sess, nil
}

// newSession migrates db and wraps it; tests call it with an in-memory db.
func newSession(cfg *config.Config, logger slog.Logger, db *sql.DB) (*session, error) {
	runner := storage.NewMigrationRunner(db, cfg.Storage.SQLiteJournalMode)
	if err := runner.Run(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	registry := prometheus.NewRegistry()
	return &session{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		clock:    quartz.NewReal(),
		registry: registry,
		metrics:  tracker.NewMetrics(registry),
		closers:  []func(){func() { store.Close() }},
	}, nil
}

// connectCache dials Redis. On failure the session carries on without a
// cache.
func (s *session) connectCache(ctx context.Context) {
	c := s.cfg.Cache
	client, err := rankcache.Dial(ctx, c.RedisAddr, c.RedisDB, c.RedisPassword)
	if err != nil {
		s.logger.Warn(ctx, "rank cache unavailable", slog.F("addr", c.RedisAddr), slog.Error(err))
		return
	}
	ttl := time.Duration(c.TTLSeconds) * time.Second
	s.cache = rankcache.New(client, c.Prefix, ttl, s.logger.Named("rankcache"))
	s.closers = append(s.closers, func() { client.Close() })
}

// tracker builds a Tracker over the session's collaborators. hierarchy may
// be nil.
func (s *session) tracker(hierarchy tracker.Hierarchy) *tracker.Tracker {
	return tracker.New(tracker.Options{
		Store:      s.store,
		NotFoundID: s.cfg.Tracking.NotFoundID,
		Clock:      s.clock,
		Logger:     s.logger.Named("tracker"),
		Hierarchy:  hierarchy,
		Categories: s.cfg.CategoryResolver(),
		Metrics:    s.metrics,
		Cache:      s.cache,
	})
}

// Close flushes metrics and releases resources in reverse order of
// acquisition.
func (s *session) Close() {
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := writeMetrics(path, s.registry); err != nil {
			s.logger.Warn(context.Background(), "write metrics textfile", slog.F("path", path), slog.Error(err))
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func writeMetrics(path string, registry *prometheus.Registry) error {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(expanded, registry)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	var unit time.Duration
	switch suffix {
	case 'd':
		unit = 24 * time.Hour
	case 'h':
		unit = time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	case 'm':
		unit = time.Minute
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}

	limit := int64(math.MaxInt64 / unit)
	if int64(n) > limit || int64(n) < -limit {
		return 0, fmt.Errorf("invalid duration: %q is out of range", s)
	}
	return time.Duration(n) * unit, nil
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 && d%(24*time.Hour) == 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 && d%time.Hour == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
