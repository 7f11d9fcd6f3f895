package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Record *RecordCommand
	Top    *TopCommand
	Report *ReportCommand
	Prune  *PruneCommand
	Forget *ForgetCommand
	Purge  *PurgeCommand
	Status *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "mostviewed"
	parser.LongDescription = "Record page views and list the most viewed pages over escalating time windows."

	cmds := &commands{
		Record: &RecordCommand{globals: &globals, version: version},
		Top:    &TopCommand{globals: &globals, version: version},
		Report: &ReportCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Forget: &ForgetCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("record", "Record one page view", "Run a page view through the exclusion policy and append it to the view log.", cmds.Record)
	parser.AddCommand("top", "List the most viewed pages", "List the most viewed pages, widening the time window until enough pages are found.", cmds.Top)
	parser.AddCommand("report", "Show one ranking per time window", "Show the most viewed pages for each configured time window side by side.", cmds.Report)
	parser.AddCommand("prune", "Delete views older than the retention period", "Delete views older than the retention period (or --older-than).", cmds.Prune)
	parser.AddCommand("forget", "Delete all views of one page", "Delete all views of one page, e.g. after the page was deleted or trashed.", cmds.Forget)
	parser.AddCommand("purge", "Delete ALL recorded views", "Delete ALL recorded views. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("status", "Show view log statistics and policy", "Show view log statistics, the exclusion policy, and the window ladder.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the mostviewed CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("mostviewed %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
