package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/mostviewed/internal/storage"
	"github.com/runnerr0/mostviewed/internal/tracker"
)

type topJSON struct {
	Mode  string              `json:"mode"`
	Limit int                 `json:"limit"`
	Rows  []storage.RankedRow `json:"rows"`
}

// Execute implements the go-flags Commander interface for TopCommand.
func (c *TopCommand) Execute(args []string) error {
	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// query turns the flags into a tracker query using config defaults.
func (c *TopCommand) query(sess *session) (tracker.Query, error) {
	q := tracker.Query{
		Ladder:     sess.cfg.Ladder(),
		Limit:      c.Limit,
		Categories: c.Category,
		Mode:       tracker.Exhaustive,
	}

	if q.Limit == 0 {
		q.Limit = sess.cfg.Ranking.FrontendLimit
		if c.Backend {
			q.Limit = sess.cfg.Ranking.BackendLimit
		}
	}
	if c.FirstPass || c.Backend {
		q.Mode = tracker.FirstPass
	}

	if c.Lookback != "" {
		d, err := parseDuration(c.Lookback)
		if err != nil {
			return q, fmt.Errorf("invalid --lookback value %q: %w", c.Lookback, err)
		}
		q.Lookback = d
	}
	return q, nil
}

// executeWithSession runs the ranked query against a provided session (for testing).
func (c *TopCommand) executeWithSession(ctx context.Context, sess *session) error {
	q, err := c.query(sess)
	if err != nil {
		return err
	}

	rows, err := sess.tracker(nil).MostViewed(ctx, q)
	if err != nil {
		if tracker.IsKind(err, tracker.KindInvalidArgument) {
			return err
		}
		// Read failures show as an empty listing.
		sess.logger.Error(ctx, "most viewed query", slog.Error(err))
		rows = []storage.RankedRow{}
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(topJSON{Mode: q.Mode.String(), Limit: q.Limit, Rows: rows})
	}

	printRanking(rows)
	return nil
}

// printRanking prints rows as a numbered table, or "no data".
func printRanking(rows []storage.RankedRow) {
	if len(rows) == 0 {
		fmt.Println("no data")
		return
	}
	fmt.Printf("  %-4s %-10s %s\n", "#", "PAGE", "VIEWS")
	for i, r := range rows {
		fmt.Printf("  %-4d %-10d %s\n", i+1, r.SubjectID, formatNumber(r.Count))
	}
}
