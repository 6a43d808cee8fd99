package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"trb/internal/bridge"
	"trb/internal/cli"
	"trb/internal/session"
	"trb/internal/ui"
)

// RunCommand handles the run command.
type RunCommand struct {
	flags     *cli.Flags
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand.
func NewRunCommand(flags *cli.Flags, formatter *ui.Formatter) *RunCommand {
	return &RunCommand{flags: flags, formatter: formatter}
}

// Execute runs the command.
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	s, cfg, err := openSession(rc.flags)
	if err != nil {
		return err
	}
	// Runner diagnostics pass through untouched.
	s.Bridge().OnStderr = func(line string) { fmt.Fprintln(os.Stderr, line) }

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	locations := args
	if rc.flags.Filter != "" {
		files, err := s.FindTestFiles(cfg, rc.flags.Filter)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			rc.formatter.Warn("no test files match %q", rc.flags.Filter)
			return nil
		}
		locations = append(locations, files...)
	}

	grep := rc.flags.Grep
	if len(rc.flags.Titles) > 0 {
		// Exact titles need their regexp metacharacters escaped.
		grep = bridge.GrepForTitle(rc.flags.Titles...)
	}

	req := session.RunRequest{
		Locations:  locations,
		Projects:   rc.flags.Projects,
		Grep:       grep,
		OnlyFailed: rc.flags.Failed,
	}
	output, err := s.Run(ctx, cfg, req, ui.NewRunPrinter())
	if err != nil {
		return err
	}

	rc.formatter.PrintFailures(output)
	rc.formatter.PrintRunSummary(output)
	return nil
}
