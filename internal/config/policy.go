package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/runnerr0/mostviewed/internal/tracker"
)

var (
	journalModes = map[string]bool{"": true, "wal": true, "delete": true, "truncate": true, "persist": true, "memory": true, "off": true}
	logLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	for i, minutes := range []int{c.Ranking.ViewRange1, c.Ranking.ViewRange2, c.Ranking.ViewRange3} {
		if minutes <= 0 {
			result = multierror.Append(result, fmt.Errorf("ranking.view_range_%d must be positive, got %d", i+1, minutes))
		}
	}
	if c.Ranking.FrontendLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("ranking.frontend_limit must be positive, got %d", c.Ranking.FrontendLimit))
	}
	if c.Ranking.BackendLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("ranking.backend_limit must be positive, got %d", c.Ranking.BackendLimit))
	}
	if c.Retention.Days < 0 {
		result = multierror.Append(result, fmt.Errorf("retention.days must not be negative, got %d", c.Retention.Days))
	}
	if c.Tracking.NotFoundID < 0 {
		result = multierror.Append(result, fmt.Errorf("tracking.not_found_id must not be negative, got %d", c.Tracking.NotFoundID))
	}
	if _, err := tracker.NewCrawlerMatcher(nil, c.Tracking.CrawlerPatterns); err != nil {
		result = multierror.Append(result, fmt.Errorf("tracking.crawler_patterns: %w", err))
	}
	if !journalModes[strings.ToLower(c.Storage.SQLiteJournalMode)] {
		result = multierror.Append(result, fmt.Errorf("storage.sqlite_journal_mode %q is not supported", c.Storage.SQLiteJournalMode))
	}
	if c.Storage.SQLiteFile == "" {
		result = multierror.Append(result, fmt.Errorf("storage.sqlite_file must be set"))
	}
	if !logLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		result = multierror.Append(result, fmt.Errorf("cache.redis_addr must be set when the cache is enabled"))
	}
	if c.Cache.TTLSeconds < 0 {
		result = multierror.Append(result, fmt.Errorf("cache.ttl_seconds must not be negative, got %d", c.Cache.TTLSeconds))
	}
	for name, id := range c.Categories {
		if id <= 0 {
			result = multierror.Append(result, fmt.Errorf("categories.%s must be a positive id, got %d", name, id))
		}
	}

	return result.ErrorOrNil()
}

// Ladder returns the configured window ladder.
func (c *Config) Ladder() tracker.Ladder {
	return tracker.LadderFromMinutes(c.Ranking.ViewRange1, c.Ranking.ViewRange2, c.Ranking.ViewRange3)
}

// CategoryResolver resolves category names from the categories table.
func (c *Config) CategoryResolver() tracker.CategoryMap {
	m := make(tracker.CategoryMap, len(c.Categories))
	for name, id := range c.Categories {
		m[name] = id
	}
	return m
}

// Policy builds the exclusion policy. Countable categories may be given as
// names or ids; names missing from the categories table are dropped.
func (c *Config) Policy() (tracker.ExclusionPolicy, error) {
	t := c.Tracking

	crawlers, err := tracker.NewCrawlerMatcher(t.CrawlerSignatures, t.CrawlerPatterns)
	if err != nil {
		return tracker.ExclusionPolicy{}, err
	}

	resolver := c.CategoryResolver()
	countable := tracker.IDSet{}
	for _, entry := range t.CountableCategories {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if id, err := strconv.ParseInt(entry, 10, 64); err == nil {
			countable[id] = struct{}{}
			continue
		}
		if id, ok := resolver.ResolveCategory(context.Background(), entry); ok {
			countable[id] = struct{}{}
		}
	}

	guest := strings.TrimSpace(t.GuestRole)
	if guest == "" {
		guest = tracker.DefaultGuestRole
	}

	return tracker.ExclusionPolicy{
		ExcludeCrawlers:     t.ExcludeCrawlers,
		Crawlers:            crawlers,
		GuestRole:           guest,
		CountedRoles:        tracker.NewRoleSet(t.CountedRoles...),
		ExcludedIPs:         tracker.NewIPSet(t.ExcludedIPs...),
		ExcludedSubjects:    tracker.NewIDSet(t.ExcludedSubjects...),
		ExcludedBranches:    tracker.NewIDSet(t.ExcludedBranches...),
		CountableCategories: countable,
	}, nil
}
