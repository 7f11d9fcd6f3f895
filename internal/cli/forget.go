package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Execute implements the go-flags Commander interface for ForgetCommand.
func (c *ForgetCommand) Execute(args []string) error {
	if c.Subject == 0 {
		return fmt.Errorf("--subject is required for forget command")
	}

	sess, err := openSession(c.globals)
	if err != nil {
		return err
	}
	defer sess.Close()

	return c.executeWithSession(context.Background(), sess)
}

// executeWithSession deletes the page's views against a provided session (for testing).
func (c *ForgetCommand) executeWithSession(ctx context.Context, sess *session) error {
	n, err := sess.tracker(nil).PurgeForSubject(ctx, c.Subject)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"subject_id": c.Subject,
			"deleted":    n,
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	fmt.Printf("Deleted %s views of page %d.\n", formatNumber(n), c.Subject)
	return nil
}
