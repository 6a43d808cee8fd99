package commands

import (
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"trb/internal/cli"
	"trb/internal/session"
	"trb/internal/ui"
	"trb/internal/watch"
)

// WatchCommand handles the watch command.
type WatchCommand struct {
	flags     *cli.Flags
	formatter *ui.Formatter
}

// NewWatchCommand creates a new WatchCommand.
func NewWatchCommand(flags *cli.Flags, formatter *ui.Formatter) *WatchCommand {
	return &WatchCommand{flags: flags, formatter: formatter}
}

// Execute runs the command.
func (wc *WatchCommand) Execute(cmd *cobra.Command, args []string) error {
	s, cfg, err := openSession(wc.flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Seed the tree from disk so the watch session starts with the
	// workspace's test files without a runner round trip.
	if _, err := s.Seed(cfg); err != nil {
		wc.formatter.Warn("seed from disk: %v", err)
	}

	// Triggered watches of one window arrive together; coalesce them into
	// one run per config/project pairing.
	onTrigger := func(triggers []watch.Trigger) {
		type pairing struct {
			cfgFile string
			project string
		}
		grouped := make(map[pairing][]string)
		for _, t := range triggers {
			key := pairing{t.Watch.Config.ConfigFile, t.Watch.Project}
			grouped[key] = append(grouped[key], t.Files...)
		}
		for key, files := range grouped {
			color.Cyan("Changes affect %d file(s), re-running...", len(files))
			req := session.RunRequest{Locations: files}
			if key.project != "" {
				req.Projects = []string{key.project}
			}
			output, err := s.Run(ctx, cfg, req, ui.NewRunPrinter())
			if err != nil {
				wc.formatter.Warn("re-run failed: %v", err)
				continue
			}
			wc.formatter.PrintFailures(output)
			wc.formatter.PrintRunSummary(output)
		}
	}

	var opts []watch.AggregatorOption
	if wc.flags.Debounce > 0 {
		opts = append(opts, watch.WithDebounce(time.Duration(wc.flags.Debounce)*time.Millisecond))
	}
	watching, err := s.StartWatching(onTrigger, opts...)
	if err != nil {
		return err
	}
	defer watching.Close()

	// One watch per selected project, scoped to its test directory.
	projects := cfg.Projects
	if len(wc.flags.Projects) > 0 {
		projects = nil
		for _, name := range wc.flags.Projects {
			if p := cfg.ProjectByName(name); p != nil {
				projects = append(projects, p)
			}
		}
	}
	for _, p := range projects {
		watching.Registry.Add(cfg, p.Name, []string{p.TestDir})
	}

	color.Cyan("Watching %s for changes (ctrl-c to stop)", wc.flags.Workspace)
	<-ctx.Done()
	return nil
}
