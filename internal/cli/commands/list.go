package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trb/internal/cli"
	"trb/internal/ui"
)

// ListCommand handles the list command.
type ListCommand struct {
	flags     *cli.Flags
	formatter *ui.Formatter
}

// NewListCommand creates a new ListCommand.
func NewListCommand(flags *cli.Flags, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{flags: flags, formatter: formatter}
}

// Execute runs the command.
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	s, cfg, err := openSession(lc.flags)
	if err != nil {
		return err
	}

	if _, err := s.List(cmd.Context(), cfg); err != nil {
		return err
	}

	root := s.Tree()
	if len(root.Children) == 0 {
		color.Yellow("No tests found")
		return nil
	}
	lc.formatter.PrintTree(root)
	return nil
}
