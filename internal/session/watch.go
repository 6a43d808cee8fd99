package session

import (
	"context"
	"path/filepath"

	"trb/internal/config"
	"trb/internal/watch"
)

// Watching is an active workspace watch: file events flow through the
// debounce aggregator into the caller's trigger callback until Close.
type Watching struct {
	Registry *watch.Registry

	aggregator *watch.Aggregator
	watcher    *watch.Watcher
}

// Close stops the file watcher and flushes any pending change.
func (w *Watching) Close() error {
	err := w.watcher.Close()
	w.aggregator.Flush()
	return err
}

// StartWatching observes the workspace and dispatches batched re-run
// triggers. Config file edits additionally invalidate caches and bump the
// generation via Rebuild.
func (s *Session) StartWatching(onTrigger func([]watch.Trigger), opts ...watch.AggregatorOption) (*Watching, error) {
	registry := watch.NewRegistry()
	aggregator := watch.NewAggregator(
		registry,
		func(ctx context.Context, cfg *config.Config, files []string) ([]string, error) {
			return s.related(ctx, cfg, files)
		},
		onTrigger,
		append([]watch.AggregatorOption{watch.WithChangeCallback(s.handleWorkspaceChange)}, opts...)...,
	)

	watcher, err := watch.NewWatcher(s.workspaceRoot, aggregator)
	if err != nil {
		return nil, err
	}

	return &Watching{
		Registry:   registry,
		aggregator: aggregator,
		watcher:    watcher,
	}, nil
}

// handleWorkspaceChange reacts to config file edits before triggers are
// computed: they invalidate the resolver cache and force a full rebuild.
func (s *Session) handleWorkspaceChange(change watch.WorkspaceChange) {
	for _, set := range []map[string]struct{}{change.Created, change.Changed, change.Deleted} {
		for path := range set {
			if isConfigFile(path) {
				s.Rebuild()
				return
			}
		}
	}
}

func isConfigFile(path string) bool {
	name := filepath.Base(path)
	if name == config.DefaultConfigName {
		return true
	}
	ok, err := filepath.Match(config.DefaultConfigPattern, name)
	return err == nil && ok
}
