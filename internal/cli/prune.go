package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type pruneJSON struct {
	Days   int   `json:"days"`
	Views  int64 `json:"views"`
	DryRun bool  `json:"dry_run"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// retentionDays returns --older-than in days, or the configured retention.
func (c *PruneCommand) retentionDays(sess *session) (int, error) {
	if c.OlderThan == "" {
		return sess.cfg.Retention.Days, nil
	}
	d, err := parseDuration(c.OlderThan)
	if err != nil {
		return 0, fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
	}
	if d%(24*time.Hour) != 0 {
		return 0, fmt.Errorf("invalid --older-than value %q: must be whole days", c.OlderThan)
	}
	return int(d / (24 * time.Hour)), nil
}

// executeWithSession prunes against a provided session (for testing).
func (c *PruneCommand) executeWithSession(ctx context.Context, sess *session) error {
	days, err := c.retentionDays(sess)
	if err != nil {
		return err
	}

	t := sess.tracker(nil)

	var n int64
	if c.DryRun {
		n, err = t.CountOlderThan(ctx, days)
	} else {
		n, err = t.PurgeOlderThan(ctx, days)
	}
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pruneJSON{Days: days, Views: n, DryRun: c.DryRun})
	}

	age := formatDurationHuman(time.Duration(days) * 24 * time.Hour)
	if days == 0 {
		age = "0 days"
	}
	if c.DryRun {
		fmt.Printf("Dry run: would prune %s views older than %s.\n", formatNumber(n), age)
		return nil
	}
	fmt.Printf("Pruned %s views older than %s.\n", formatNumber(n), age)
	return nil
}
