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

// DebugCommand handles the debug command.
type DebugCommand struct {
	flags     *cli.Flags
	formatter *ui.Formatter
}

// NewDebugCommand creates a new DebugCommand.
func NewDebugCommand(flags *cli.Flags, formatter *ui.Formatter) *DebugCommand {
	return &DebugCommand{flags: flags, formatter: formatter}
}

// Execute runs the command.
func (dc *DebugCommand) Execute(cmd *cobra.Command, args []string) error {
	s, cfg, err := openSession(dc.flags)
	if err != nil {
		return err
	}
	s.Bridge().OnStderr = func(line string) { fmt.Fprintln(os.Stderr, line) }

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	grep := dc.flags.Grep
	if len(dc.flags.Titles) > 0 {
		grep = bridge.GrepForTitle(dc.flags.Titles...)
	}

	req := session.RunRequest{
		Locations: args,
		Projects:  dc.flags.Projects,
		Grep:      grep,
	}
	output, err := s.Debug(ctx, cfg, req, ui.NewRunPrinter())
	if err != nil {
		return err
	}

	dc.formatter.PrintFailures(output)
	dc.formatter.PrintRunSummary(output)
	return nil
}
