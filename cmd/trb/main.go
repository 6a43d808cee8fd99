package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trb/internal/cli"
	"trb/internal/cli/commands"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "trb",
		Short:   "Test runner bridge",
		Long:    `Integrates an external test runner into an interactive host: discovers tests, runs or debugs them over a framed reporter channel, and keeps a live test tree in sync with the workspace.`,
		Version: version,
	}

	var flags cli.Flags
	cmds := commands.NewCommands(&flags)
	cmds.Register(rootCmd, &flags)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
