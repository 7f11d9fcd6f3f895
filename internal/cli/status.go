package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/mostviewed/internal/storage"
	"github.com/runnerr0/mostviewed/internal/tracker"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string              `json:"version"`
	DatabasePath      string              `json:"database_path"`
	DatabaseSizeBytes int64               `json:"database_size_bytes"`
	TotalViews        int64               `json:"total_views"`
	DistinctPages     int64               `json:"distinct_pages"`
	OldestView        string              `json:"oldest_view,omitempty"`
	NewestView        string              `json:"newest_view,omitempty"`
	RetentionDays     int                 `json:"retention_days"`
	TopCategories     []categoryCountJSON `json:"top_categories"`
	LadderMinutes     []int64             `json:"ladder_minutes"`
	FrontendLimit     int                 `json:"frontend_limit"`
	BackendLimit      int                 `json:"backend_limit"`
	Policy            policyJSON          `json:"policy"`
	CacheEnabled      bool                `json:"cache_enabled"`
}

type categoryCountJSON struct {
	CategoryID int64 `json:"category_id"`
	Count      int64 `json:"count"`
}

type policyJSON struct {
	AutoCounting        bool     `json:"auto_counting"`
	NotFoundID          int64    `json:"not_found_id"`
	ExcludeCrawlers     bool     `json:"exclude_crawlers"`
	CrawlerSignatures   []string `json:"crawler_signatures"`
	GuestRole           string   `json:"guest_role"`
	CountedRoles        []string `json:"counted_roles"`
	ExcludedIPs         []string `json:"excluded_ips"`
	ExcludedPages       []int64  `json:"excluded_pages"`
	ExcludedBranches    []int64  `json:"excluded_branches"`
	CountableCategories []int64  `json:"countable_categories"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// executeWithSession runs status against a provided session (for testing).
func (c *StatusCommand) executeWithSession(ctx context.Context, sess *session) error {
	stats, err := sess.store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	policy, err := sess.cfg.Policy()
	if err != nil {
		return fmt.Errorf("build exclusion policy: %w", err)
	}

	if sess.dbPath != "" {
		if info, err := os.Stat(sess.dbPath); err == nil {
			stats.DatabaseSize = info.Size()
		}
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(sess, stats, policy)
	}
	return c.printStatusHuman(sess, stats, policy)
}

func (c *StatusCommand) printStatusHuman(sess *session, stats *storage.Stats, policy tracker.ExclusionPolicy) error {
	cfg := sess.cfg

	fmt.Println("MostViewed Status")
	fmt.Println("=================")
	fmt.Printf("Version:       %s\n", c.version)
	dbPath := sess.dbPath
	if dbPath == "" {
		dbPath = "(in memory)"
	}
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(stats.DatabaseSize))
	fmt.Printf("Views:         %s\n", formatNumber(stats.TotalViews))
	fmt.Printf("Pages:         %s\n", formatNumber(stats.DistinctSubjects))

	if stats.TotalViews > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestView.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Newest:        %s\n", stats.NewestView.Local().Format("2006-01-02 15:04"))
	}

	fmt.Printf("Retention:     %d days\n", cfg.Retention.Days)

	if len(stats.TopCategories) > 0 {
		fmt.Println()
		fmt.Println("Top Templates:")
		for _, tc := range stats.TopCategories {
			fmt.Printf("  %-20d %s\n", tc.CategoryID, formatNumber(tc.Count))
		}
	}

	fmt.Println()
	windows := make([]string, 0, 3)
	for _, w := range cfg.Ladder().Rungs() {
		windows = append(windows, windowTitle(w))
	}
	fmt.Printf("Windows:       %s\n", strings.Join(windows, ", "))
	fmt.Printf("Limits:        frontend %d, backend %d\n", cfg.Ranking.FrontendLimit, cfg.Ranking.BackendLimit)

	fmt.Println()
	fmt.Printf("Auto counting: %s\n", onOff(cfg.Tracking.AutoCounting))
	fmt.Printf("Crawlers:      %s\n", excludedOrCounted(policy.ExcludeCrawlers))
	fmt.Printf("Roles:         %s\n", strings.Join(countedRoles(policy), ", "))
	fmt.Printf("Templates:     %s\n", listOrAll(idStrings(policy.CountableCategories.Sorted())))
	fmt.Printf("Excluded IPs:  %s\n", listOrNone(policy.ExcludedIPs.Entries()))
	fmt.Printf("Excluded:      %s\n", listOrNone(idStrings(policy.ExcludedSubjects.Sorted())))
	fmt.Printf("Branches:      %s\n", listOrNone(idStrings(policy.ExcludedBranches.Sorted())))
	fmt.Printf("Cache:         %s\n", onOff(sess.cache != nil))

	return nil
}

func (c *StatusCommand) printStatusJSON(sess *session, stats *storage.Stats, policy tracker.ExclusionPolicy) error {
	cfg := sess.cfg
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      sess.dbPath,
		DatabaseSizeBytes: stats.DatabaseSize,
		TotalViews:        stats.TotalViews,
		DistinctPages:     stats.DistinctSubjects,
		RetentionDays:     cfg.Retention.Days,
		TopCategories:     make([]categoryCountJSON, len(stats.TopCategories)),
		FrontendLimit:     cfg.Ranking.FrontendLimit,
		BackendLimit:      cfg.Ranking.BackendLimit,
		Policy: policyJSON{
			AutoCounting:        cfg.Tracking.AutoCounting,
			NotFoundID:          cfg.Tracking.NotFoundID,
			ExcludeCrawlers:     policy.ExcludeCrawlers,
			CrawlerSignatures:   policy.Crawlers.Signatures(),
			GuestRole:           policy.Guest(),
			CountedRoles:        policy.CountedRoles.Sorted(),
			ExcludedIPs:         policy.ExcludedIPs.Entries(),
			ExcludedPages:       policy.ExcludedSubjects.Sorted(),
			ExcludedBranches:    policy.ExcludedBranches.Sorted(),
			CountableCategories: policy.CountableCategories.Sorted(),
		},
		CacheEnabled: sess.cache != nil,
	}

	if stats.TotalViews > 0 {
		out.OldestView = stats.OldestView.UTC().Format(time.RFC3339)
		out.NewestView = stats.NewestView.UTC().Format(time.RFC3339)
	}

	for i, tc := range stats.TopCategories {
		out.TopCategories[i] = categoryCountJSON{CategoryID: tc.CategoryID, Count: tc.Count}
	}
	for _, w := range cfg.Ladder().Rungs() {
		out.LadderMinutes = append(out.LadderMinutes, int64(w/time.Minute))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func excludedOrCounted(exclude bool) string {
	if exclude {
		return "excluded"
	}
	return "counted"
}

// countedRoles lists the guest role first, then any other counted roles.
func countedRoles(policy tracker.ExclusionPolicy) []string {
	guest := policy.Guest()
	roles := []string{guest}
	for _, r := range policy.CountedRoles.Sorted() {
		if r != guest {
			roles = append(roles, r)
		}
	}
	return roles
}

func listOrAll(items []string) string {
	if len(items) == 0 {
		return "all"
	}
	return strings.Join(items, ", ")
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func idStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%d", id)
	}
	return out
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
