package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/mostviewed/internal/tracker"
)

type recordJSON struct {
	SubjectID  int64  `json:"subject_id"`
	CategoryID int64  `json:"category_id"`
	Recorded   bool   `json:"recorded"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	if c.Subject == 0 {
		return fmt.Errorf("--subject is required for record command")
	}

	sess, err := openSession(c.globals)
	if err != nil {
		return c.degrade(err)
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// executeWithSession records the view against a provided session (for testing).
func (c *RecordCommand) executeWithSession(ctx context.Context, sess *session) error {
	policy, err := sess.cfg.Policy()
	if err != nil {
		return fmt.Errorf("build exclusion policy: %w", err)
	}

	var hierarchy tracker.Hierarchy
	if len(c.Ancestor) > 0 {
		hierarchy = tracker.StaticHierarchy{c.Subject: c.Ancestor}
	}

	roles := tracker.NewRoleSet(c.Role...)
	if len(roles) == 0 {
		roles = tracker.NewRoleSet(policy.Guest())
	}

	view := tracker.CandidateView{
		SubjectID:   c.Subject,
		CategoryID:  c.Category,
		RequesterIP: c.IP,
		UserAgent:   c.UserAgent,
		RequestedAt: sess.clock.Now(),
	}

	decision, err := sess.tracker(hierarchy).RecordView(ctx, view, policy, roles, sess.cfg.Tracking.AutoCounting)
	if err != nil {
		if tracker.IsKind(err, tracker.KindInvalidArgument) {
			return err
		}
		sess.logger.Error(ctx, "record view", slog.F("subject_id", c.Subject), slog.Error(err))
		return c.degrade(err)
	}

	if c.globals != nil && c.globals.JSON {
		out := recordJSON{
			SubjectID:  c.Subject,
			CategoryID: c.Category,
			Recorded:   decision.Recorded,
			Reason:     string(decision.Reason),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if decision.Recorded {
		fmt.Printf("Recorded view of page %d.\n", c.Subject)
	} else {
		fmt.Printf("Skipped view of page %d (%s).\n", c.Subject, decision.Reason)
	}
	return nil
}

// degrade reports err as a warning and succeeds, unless --strict is set.
func (c *RecordCommand) degrade(err error) error {
	if c.Strict {
		return err
	}
	fmt.Fprintf(os.Stderr, "warning: view not recorded: %v\n", err)
	if c.globals != nil && c.globals.JSON {
		out := recordJSON{SubjectID: c.Subject, CategoryID: c.Category, Error: err.Error()}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return nil
}
