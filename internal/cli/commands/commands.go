package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"trb/internal/cli"
	"trb/internal/config"
	"trb/internal/session"
	"trb/internal/ui"
)

// Commands holds all CLI commands.
type Commands struct {
	Run   *RunCommand
	List  *ListCommand
	Debug *DebugCommand
	Watch *WatchCommand
}

// NewCommands creates all commands with dependencies.
func NewCommands(flags *cli.Flags) *Commands {
	formatter := ui.NewFormatter()
	return &Commands{
		Run:   NewRunCommand(flags, formatter),
		List:  NewListCommand(flags, formatter),
		Debug: NewDebugCommand(flags, formatter),
		Watch: NewWatchCommand(flags, formatter),
	}
}

// Register registers all commands with cobra.
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	rootCmd.PersistentFlags().StringVarP(&flags.Workspace, "workspace", "w", ".", "Workspace root to operate in")
	rootCmd.PersistentFlags().StringVarP(&flags.Config, "config", "c", "", "Runner config file to use (default: first discovered)")

	runCmd := &cobra.Command{
		Use:   "run [location ...]",
		Short: "Run tests and stream live results",
		Long:  "Spawn the external test runner, stream per-test results over its reporter channel, and record outcomes. Locations are files or file:line targets; none means all.",
		RunE:  c.Run.Execute,
	}
	runCmd.Flags().StringSliceVarP(&flags.Projects, "project", "p", nil, "Limit the run to the named project(s)")
	runCmd.Flags().StringVarP(&flags.Grep, "grep", "g", "", "Only run tests whose title matches the pattern")
	runCmd.Flags().StringSliceVar(&flags.Titles, "title", nil, "Select one test by its exact title path (repeat per ancestor title)")
	runCmd.Flags().StringVarP(&flags.Filter, "filter", "f", "", "Only run test files whose name matches the wildcard pattern")
	runCmd.Flags().BoolVar(&flags.Failed, "failed", false, "Run only tests that failed in the last run")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests as a tree",
		Long:  "Spawn the runner in list mode and print the reconciled suite/test tree without executing anything.",
		RunE:  c.List.Execute,
	}
	rootCmd.AddCommand(listCmd)

	debugCmd := &cobra.Command{
		Use:   "debug [location ...]",
		Short: "Run tests under the debugger harness",
		Long:  "Launch the runner headed with a single worker and no timeouts; the reporter connects back over a local socket.",
		RunE:  c.Debug.Execute,
	}
	debugCmd.Flags().StringSliceVarP(&flags.Projects, "project", "p", nil, "Limit the run to the named project(s)")
	debugCmd.Flags().StringVarP(&flags.Grep, "grep", "g", "", "Only run tests whose title matches the pattern")
	debugCmd.Flags().StringSliceVar(&flags.Titles, "title", nil, "Select one test by its exact title path (repeat per ancestor title)")
	rootCmd.AddCommand(debugCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run affected tests on file changes",
		Long:  "Watch the workspace, map changed files to affected test files via the runner, and re-run the watches they hit until interrupted.",
		RunE:  c.Watch.Execute,
	}
	watchCmd.Flags().StringSliceVarP(&flags.Projects, "project", "p", nil, "Limit watching to the named project(s)")
	watchCmd.Flags().IntVar(&flags.Debounce, "debounce", 0, "Debounce window in milliseconds (default 150)")
	rootCmd.AddCommand(watchCmd)
}

// openSession builds a session for the workspace flag and selects the config
// to operate on.
func openSession(flags *cli.Flags) (*session.Session, *config.Config, error) {
	s, err := session.New(flags.Workspace)
	if err != nil {
		return nil, nil, err
	}
	configs := s.Configs()
	if len(configs) == 0 {
		return nil, nil, fmt.Errorf("no runner config found under %s", flags.Workspace)
	}
	if flags.Config == "" {
		return s, configs[0], nil
	}
	for _, cfg := range configs {
		if cfg.ConfigFile == flags.Config || cfg.Base() == flags.Config {
			return s, cfg, nil
		}
	}
	return nil, nil, fmt.Errorf("config %s not found in workspace", flags.Config)
}
