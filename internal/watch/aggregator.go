package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"trb/internal/config"
	"trb/internal/model"
)

// Op classifies a single file notification.
type Op int

const (
	OpCreated Op = iota
	OpChanged
	OpDeleted
)

// WorkspaceChange is one debounce window's worth of file events, delivered
// atomically: three sets of absolute paths.
type WorkspaceChange struct {
	Created map[string]struct{}
	Changed map[string]struct{}
	Deleted map[string]struct{}
}

func newWorkspaceChange() *WorkspaceChange {
	return &WorkspaceChange{
		Created: make(map[string]struct{}),
		Changed: make(map[string]struct{}),
		Deleted: make(map[string]struct{}),
	}
}

// Empty reports whether the change carries no paths.
func (c *WorkspaceChange) Empty() bool {
	return len(c.Created) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Trigger pairs a watch with the affected files inside its scope.
type Trigger struct {
	Watch *Watch
	Files []string
}

// RelatedFunc answers the runner's related-test-files query: which test
// files must be considered affected by edits to the given source files.
type RelatedFunc func(ctx context.Context, cfg *config.Config, files []string) ([]string, error)

// DefaultDebounce is the window during which successive file events coalesce
// into one WorkspaceChange.
const DefaultDebounce = 150 * time.Millisecond

// Aggregator buffers file events and dispatches batched triggers. All
// triggered watches of one window are reported together in a single callback
// so the caller can coalesce them into one run per config/project pairing.
type Aggregator struct {
	registry  *Registry
	related   RelatedFunc
	onTrigger func([]Trigger)
	onChange  func(WorkspaceChange)
	delay     time.Duration

	mu      sync.Mutex
	pending *WorkspaceChange
	timer   *time.Timer
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.delay = d }
}

// WithChangeCallback also surfaces each raw WorkspaceChange, e.g. so config
// file edits can trigger a full rebuild.
func WithChangeCallback(fn func(WorkspaceChange)) AggregatorOption {
	return func(a *Aggregator) { a.onChange = fn }
}

// NewAggregator creates an aggregator dispatching to onTrigger.
func NewAggregator(registry *Registry, related RelatedFunc, onTrigger func([]Trigger), opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		registry:  registry,
		related:   related,
		onTrigger: onTrigger,
		delay:     DefaultDebounce,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Notify records one file event and restarts the debounce timer. The
// accumulated record is delivered once, when the timer fires with no further
// events arriving inside the window.
func (a *Aggregator) Notify(op Op, path string) {
	path = model.NormalizePath(path)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		a.pending = newWorkspaceChange()
	}
	switch op {
	case OpCreated:
		a.pending.Created[path] = struct{}{}
	case OpChanged:
		a.pending.Changed[path] = struct{}{}
	case OpDeleted:
		a.pending.Deleted[path] = struct{}{}
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.flush)
}

// Flush delivers any pending change immediately. Used on shutdown and in
// tests.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.flush()
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	change := a.pending
	a.pending = nil
	a.timer = nil
	a.mu.Unlock()

	if change == nil || change.Empty() {
		return
	}
	if a.onChange != nil {
		a.onChange(*change)
	}
	a.dispatch(*change)
}

// dispatch maps one WorkspaceChange to triggered watches. Per distinct
// config, one related-files query translates arbitrary source edits into the
// affected test files; each watch then intersects those with its scope.
func (a *Aggregator) dispatch(change WorkspaceChange) {
	watches := collapse(a.registry.Snapshot())
	if len(watches) == 0 {
		return
	}

	byConfig := make(map[*config.Config][]*Watch)
	for _, w := range watches {
		byConfig[w.Config] = append(byConfig[w.Config], w)
	}

	var triggers []Trigger
	for cfg, cfgWatches := range byConfig {
		affected := a.affectedFiles(cfg, change)
		for _, w := range cfgWatches {
			var matched []string
			for _, f := range affected {
				if w.coversPath(f) {
					matched = append(matched, f)
				}
			}
			if len(matched) > 0 {
				sort.Strings(matched)
				triggers = append(triggers, Trigger{Watch: w, Files: matched})
			}
		}
	}

	if len(triggers) > 0 && a.onTrigger != nil {
		a.onTrigger(triggers)
	}
}

func (a *Aggregator) affectedFiles(cfg *config.Config, change WorkspaceChange) []string {
	edited := make([]string, 0, len(change.Changed)+len(change.Deleted))
	for f := range change.Changed {
		edited = append(edited, f)
	}
	for f := range change.Deleted {
		edited = append(edited, f)
	}

	affected := make(map[string]struct{})
	if len(edited) > 0 && a.related != nil {
		related, err := a.related(context.Background(), cfg, edited)
		if err != nil {
			// Degrade to the raw edit set: direct test file edits
			// still trigger even when the query fails.
			for _, f := range edited {
				affected[f] = struct{}{}
			}
		} else {
			for _, f := range related {
				affected[f] = struct{}{}
			}
		}
	}
	// Newly created files are affected as-is; the runner cannot know about
	// them yet.
	for f := range change.Created {
		affected[f] = struct{}{}
	}

	files := make([]string, 0, len(affected))
	for f := range affected {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
