package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/mostviewed/internal/storage"
	"github.com/runnerr0/mostviewed/internal/tracker"
)

type reportSectionJSON struct {
	Title         string              `json:"title"`
	WindowMinutes int64               `json:"window_minutes"`
	Rows          []storage.RankedRow `json:"rows"`
}

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// executeWithSession builds the report against a provided session (for testing).
func (c *ReportCommand) executeWithSession(ctx context.Context, sess *session) error {
	limit := c.Limit
	if limit == 0 {
		limit = sess.cfg.Ranking.BackendLimit
	}

	ladder := sess.cfg.Ladder()
	sections, err := sess.tracker(nil).Report(ctx, ladder, limit, c.Category)
	if err != nil {
		if tracker.IsKind(err, tracker.KindInvalidArgument) {
			return fmt.Errorf("build report: %w", err)
		}
		// Read failures show as empty tables.
		sess.logger.Error(ctx, "build report", slog.Error(err))
		sections = make([]tracker.ReportSection, 0, 3)
		for _, w := range ladder.Rungs() {
			sections = append(sections, tracker.ReportSection{Window: w, Rows: []storage.RankedRow{}})
		}
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]reportSectionJSON, len(sections))
		for i, s := range sections {
			out[i] = reportSectionJSON{
				Title:         windowTitle(s.Window),
				WindowMinutes: int64(s.Window / time.Minute),
				Rows:          s.Rows,
			}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, s := range sections {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(windowTitle(s.Window))
		printRanking(s.Rows)
	}
	return nil
}

// windowTitle names a window the way the admin page does: "last 24 hours".
func windowTitle(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int64(d / time.Hour)
		if hours == 1 {
			return "last hour"
		}
		return fmt.Sprintf("last %d hours", hours)
	}
	return fmt.Sprintf("last %d minutes", int64(d/time.Minute))
}
