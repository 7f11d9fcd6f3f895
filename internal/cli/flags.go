package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RecordCommand runs one view through the exclusion policy.
type RecordCommand struct {
	Subject   int64    `long:"subject" description:"Page id that was viewed (required)"`
	Category  int64    `long:"category" description:"Template id of the page" default:"0"`
	IP        string   `long:"ip" description:"Requester IP address"`
	UserAgent string   `long:"user-agent" description:"Requester user agent"`
	Role      []string `long:"role" description:"Role of the requesting user (repeatable; default: guest)"`
	Ancestor  []int64  `long:"ancestor" description:"Ancestor page id, nearest first (repeatable)"`
	Strict    bool     `long:"strict" description:"Fail on storage errors instead of warning"`

	globals *GlobalFlags
	version string
}

// TopCommand lists the most viewed pages, widening the window as needed.
type TopCommand struct {
	Limit     int      `long:"limit" description:"Maximum pages (default: ranking.frontend_limit or ranking.backend_limit with --backend)"`
	Lookback  string   `long:"lookback" description:"Replace the first window (e.g., 90m, 6h, 2d)"`
	Category  []string `long:"category" description:"Template name or id filter (repeatable, comma separated)"`
	FirstPass bool     `long:"first-pass" description:"Only query the first window"`
	Backend   bool     `long:"backend" description:"Admin listing: backend limit, first window only"`

	globals *GlobalFlags
	version string
}

// ReportCommand shows one first-pass ranking per ladder rung.
type ReportCommand struct {
	Limit    int      `long:"limit" description:"Maximum pages per window (default: ranking.backend_limit)"`
	Category []string `long:"category" description:"Template name or id filter (repeatable, comma separated)"`

	globals *GlobalFlags
	version string
}

// PruneCommand applies retention pruning to remove old views.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period in whole days (e.g., 30d, 2w)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// ForgetCommand deletes every view of one page.
type ForgetCommand struct {
	Subject int64 `long:"subject" description:"Page id whose views should be deleted (required)"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes ALL views with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	in      io.Reader // injectable for testing; nil means os.Stdin
}

// StatusCommand shows view log statistics, policy and ladder.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}
