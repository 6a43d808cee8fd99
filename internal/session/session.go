// Package session ties the bridge, reporter, model and tree together into
// the operations a host invokes: list, run, debug, and watch-driven re-runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"trb/internal/bridge"
	"trb/internal/config"
	"trb/internal/discovery"
	"trb/internal/domain"
	"trb/internal/model"
	"trb/internal/reporter"
	"trb/internal/storage"
	"trb/internal/transport"
	"trb/internal/tree"
)

// ErrRunInProgress rejects a run or debug request while another is in
// flight. Requests are rejected at the entry point, never queued.
var ErrRunInProgress = errors.New("a test run is already in progress")

// startFunc abstracts process launching so tests can drive a session with a
// scripted transport.
type startFunc func(ctx context.Context, mode bridge.Mode, req bridge.Request, h transport.Handler) (transport.Transport, error)

// Session owns the discovered configs, the entry model and the persistent UI
// tree for one workspace.
type Session struct {
	workspaceRoot string
	configs       []*config.Config
	model         *model.Model
	root          *tree.Node
	rec           *tree.Reconciler
	store         storage.Storage
	bridge        *bridge.Bridge
	cache         *bridge.Cache
	env           map[string]string
	grace         time.Duration

	start   startFunc
	related RelatedFilesFunc

	runGate chan struct{}
}

// RelatedFilesFunc mirrors the bridge's related-test-files query.
type RelatedFilesFunc func(ctx context.Context, cfg *config.Config, files []string) ([]string, error)

// Option configures a Session.
type Option func(*Session)

// WithGracePeriod sets the cancellation grace period for runs.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Session) { s.grace = d }
}

// WithStorage overrides the results store.
func WithStorage(st storage.Storage) Option {
	return func(s *Session) { s.store = st }
}

// New creates a session for a workspace root, discovering its configs.
func New(workspaceRoot string, opts ...Option) (*Session, error) {
	configs, err := config.Discover([]string{workspaceRoot})
	if err != nil {
		return nil, fmt.Errorf("discover configs: %w", err)
	}

	cache := bridge.NewCache()
	b := bridge.New(cache)

	s := &Session{
		workspaceRoot: workspaceRoot,
		configs:       configs,
		model:         model.New(),
		root:          tree.NewRoot(),
		rec:           tree.NewReconciler(),
		store:         storage.NewJSONStorage(workspaceRoot),
		bridge:        b,
		cache:         cache,
		env:           config.LoadEnv(workspaceRoot),
		grace:         reporter.DefaultGracePeriod,
		runGate:       make(chan struct{}, 1),
	}
	s.start = func(ctx context.Context, mode bridge.Mode, req bridge.Request, h transport.Handler) (transport.Transport, error) {
		run, err := b.Start(ctx, mode, req, h)
		if err != nil {
			return nil, err
		}
		return run.Transport, nil
	}
	s.related = b.RelatedTestFiles

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Configs returns the discovered configs.
func (s *Session) Configs() []*config.Config {
	return s.configs
}

// Tree returns the persistent UI tree root. It is mutated only by
// reconciliation passes, which run on the calling goroutine of List/Run.
func (s *Session) Tree() *tree.Node {
	return s.root
}

// Bridge exposes the underlying process bridge (for output stream sinks).
func (s *Session) Bridge() *bridge.Bridge {
	return s.bridge
}

// InvalidateCache drops memoized runner paths and versions, e.g. after a
// config file save.
func (s *Session) InvalidateCache() {
	s.cache.Invalidate()
}

// Rebuild bumps the generation and re-discovers configs. Called on workspace
// folder changes and config edits; the next listings repopulate the model.
func (s *Session) Rebuild() error {
	configs, err := config.Discover([]string{s.workspaceRoot})
	if err != nil {
		return fmt.Errorf("discover configs: %w", err)
	}

	known := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		known[cfg.ConfigFile] = true
	}
	for _, old := range s.configs {
		if !known[old.ConfigFile] {
			s.model.DropConfig(old.ConfigFile)
		}
	}

	s.configs = configs
	s.cache.Invalidate()
	s.model.Bump()
	return nil
}

// Seed populates the model with file-level suite entries found by scanning
// each project's test directory, without spawning the runner. Projects that
// already hold listed entries keep them. Returns the tree deltas.
func (s *Session) Seed(cfg *config.Config) ([]tree.Delta, error) {
	scanner := discovery.NewScanner(config.DefaultSkipDirs)
	for _, project := range cfg.Projects {
		if s.model.Entries(cfg.ConfigFile, project.Name) != nil {
			continue
		}
		files, err := scanner.Scan(project.TestDir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", project.TestDir, err)
		}
		entries := make([]*model.Entry, 0, len(files))
		for _, file := range files {
			file = model.NormalizePath(file)
			rel, err := filepath.Rel(project.TestDir, file)
			if err != nil {
				rel = filepath.Base(file)
			}
			entries = append(entries, &model.Entry{
				Kind:     model.KindSuite,
				Title:    filepath.ToSlash(rel),
				Location: model.Location{File: file},
				ID:       model.EntryID(file, 0),
			})
		}
		s.model.SetEntries(cfg.ConfigFile, project.Name, entries)
	}
	return s.reconcile(), nil
}

// FindTestFiles scans the config's test directories and filters the result
// by a base-name wildcard pattern.
func (s *Session) FindTestFiles(cfg *config.Config, pattern string) ([]string, error) {
	scanner := discovery.NewScanner(config.DefaultSkipDirs)
	filter := discovery.NewFilter()

	var all []string
	seen := make(map[string]bool)
	for _, project := range cfg.Projects {
		files, err := scanner.Scan(project.TestDir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", project.TestDir, err)
		}
		for _, file := range filter.FilterByName(files, pattern) {
			file = model.NormalizePath(file)
			if !seen[file] {
				seen[file] = true
				all = append(all, file)
			}
		}
	}
	sort.Strings(all)
	return all, nil
}

// List spawns the runner in list mode for one config, refreshes the model
// and reconciles the tree. Returns the structural deltas of the pass.
func (s *Session) List(ctx context.Context, cfg *config.Config) ([]tree.Delta, error) {
	collector := newListCollector()
	rep := reporter.New(collector, reporter.WithGracePeriod(s.grace))

	req := bridge.Request{Config: cfg, Env: s.env, Grace: s.grace}
	tr, err := s.start(ctx, bridge.ModeList, req, rep)
	if err != nil {
		return nil, err
	}
	rep.Attach(ctx, tr)
	<-rep.Done()

	s.updateModel(cfg, collector.entries)
	return s.reconcile(), nil
}

// RunRequest selects what to run.
type RunRequest struct {
	Locations  []string
	Projects   []string
	Grep       string
	OnlyFailed bool
}

// Run executes tests for one config, streaming events to listener (which may
// be nil) and recording outcomes. A second run while one is active is
// rejected with ErrRunInProgress.
func (s *Session) Run(ctx context.Context, cfg *config.Config, req RunRequest, listener reporter.TestListener) (*domain.RunOutput, error) {
	return s.execute(ctx, bridge.ModeRun, cfg, req, listener)
}

// Debug is Run with the runner launched in its debug shape: headed, no
// timeouts, a single worker, and the transport accepted over a local socket.
func (s *Session) Debug(ctx context.Context, cfg *config.Config, req RunRequest, listener reporter.TestListener) (*domain.RunOutput, error) {
	return s.execute(ctx, bridge.ModeDebug, cfg, req, listener)
}

func (s *Session) execute(ctx context.Context, mode bridge.Mode, cfg *config.Config, req RunRequest, listener reporter.TestListener) (*domain.RunOutput, error) {
	select {
	case s.runGate <- struct{}{}:
	default:
		return nil, ErrRunInProgress
	}
	defer func() { <-s.runGate }()

	locations := req.Locations
	if req.OnlyFailed {
		failed, err := s.failedLocations()
		if err != nil {
			return nil, err
		}
		if len(failed) == 0 {
			return &domain.RunOutput{Meta: domain.RunMeta{Timestamp: time.Now().Format(time.RFC3339)}}, nil
		}
		locations = failed
	}

	started := time.Now()
	collector := newRunCollector(listener)
	rep := reporter.New(collector, reporter.WithGracePeriod(s.grace))

	breq := bridge.Request{
		Config:    cfg,
		Locations: locations,
		Projects:  req.Projects,
		Grep:      req.Grep,
		Env:       s.env,
		Grace:     s.grace,
	}
	tr, err := s.start(ctx, mode, breq, rep)
	if err != nil {
		return nil, err
	}
	rep.Attach(ctx, tr)
	<-rep.Done()

	output := collector.output(time.Since(started))
	output.Meta.Interrupted = rep.State() != reporter.StateCompleted

	if s.store != nil {
		if err := s.store.Save(output); err != nil {
			return output, fmt.Errorf("save run results: %w", err)
		}
	}
	return output, nil
}

// failedLocations loads the previous run and returns file:line targets for
// every test that did not pass.
func (s *Session) failedLocations() ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	previous, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load previous results: %w", err)
	}
	var locations []string
	for _, outcome := range previous.Outcomes {
		if !outcome.Ok && outcome.File != "" {
			locations = append(locations, model.EntryID(outcome.File, outcome.Line))
		}
	}
	sort.Strings(locations)
	return locations, nil
}

// updateModel stores the listed entries per project. Entries are attributed
// to every project whose test directory contains their file; entries outside
// all workspace roots are silently excluded.
func (s *Session) updateModel(cfg *config.Config, entries []*model.Entry) {
	inWorkspace := make([]*model.Entry, 0, len(entries))
	for _, e := range entries {
		if e.File == "" || model.Within(cfg.WorkspaceRoot, e.File) {
			inWorkspace = append(inWorkspace, e)
		}
	}

	fallback := cfg.DefaultProject()
	for _, project := range cfg.Projects {
		var owned []*model.Entry
		for _, e := range inWorkspace {
			switch {
			case e.File != "" && model.Within(project.TestDir, e.File):
				owned = append(owned, e)
			case project == fallback && (e.File == "" || !s.ownedByAny(cfg, e.File)):
				owned = append(owned, e)
			}
		}
		s.model.SetEntries(cfg.ConfigFile, project.Name, owned)
	}
}

func (s *Session) ownedByAny(cfg *config.Config, file string) bool {
	for _, p := range cfg.Projects {
		if model.Within(p.TestDir, file) {
			return true
		}
	}
	return false
}

// reconcile projects the whole model onto the UI tree: one synthetic group
// entry per config project, with the project's file entries underneath.
// A project that disappeared between rebuilds loses its subtree here.
func (s *Session) reconcile() []tree.Delta {
	generation := s.model.Generation()

	var forest []*model.Entry
	for _, cfg := range s.configs {
		for _, project := range cfg.Projects {
			entries := s.model.Entries(cfg.ConfigFile, project.Name)
			if entries == nil {
				continue
			}
			title := project.Name
			if title == "" {
				title = cfg.Base()
			}
			forest = append(forest, &model.Entry{
				Kind:     model.KindSuite,
				Title:    title,
				ID:       fmt.Sprintf("project:%s/%s", cfg.ConfigFile, project.Name),
				Children: entries,
			})
		}
	}

	deltas := s.rec.Reconcile(s.root, forest, generation)
	// A pass interrupted before it refreshed every config leaves nodes from
	// the previous generation behind; sweep them now.
	deltas = append(deltas, s.rec.PruneStale(s.root, generation)...)
	return deltas
}
