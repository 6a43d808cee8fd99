// Package watch turns a storm of file-system notifications into batched,
// watch-scoped re-run triggers: events are debounced into one atomic change
// record, mapped to affected test files through the runner's related-files
// query, and delivered to the registered watches in a single callback.
package watch

import (
	"sync"

	"github.com/google/uuid"

	"trb/internal/config"
	"trb/internal/model"
)

// Watch is a registration of interest in re-running the tests under a scope
// (a test directory, a folder, a file, or a specific node's file) for one
// config/project pair. Cancel deregisters it.
type Watch struct {
	ID      uuid.UUID
	Config  *config.Config
	Project string
	Paths   []string

	cancel func()
}

// Cancel removes the watch from its registry.
func (w *Watch) Cancel() {
	if w.cancel != nil {
		w.cancel()
	}
}

// covers reports whether every path of other lies inside this watch's scope.
// Only watches on the same config and project can subsume each other.
func (w *Watch) covers(other *Watch) bool {
	if w.Config != other.Config || w.Project != other.Project {
		return false
	}
	for _, p := range other.Paths {
		if !w.coversPath(p) {
			return false
		}
	}
	return len(other.Paths) > 0
}

func (w *Watch) coversPath(path string) bool {
	for _, scope := range w.Paths {
		if model.Within(scope, path) {
			return true
		}
	}
	return false
}

// Registry holds the active watches. Ancestor watches subsume descendants:
// registering a watch deletes any existing watch whose scope it contains,
// and a new watch already covered by an existing one is dropped in favor of
// the ancestor.
type Registry struct {
	mu      sync.Mutex
	watches map[uuid.UUID]*Watch
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{watches: make(map[uuid.UUID]*Watch)}
}

// Add registers a watch over the given scope paths and returns the watch
// that is actually active for that scope afterwards.
func (r *Registry) Add(cfg *config.Config, project string, paths []string) *Watch {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized = append(normalized, model.NormalizePath(p))
	}

	w := &Watch{
		ID:      uuid.New(),
		Config:  cfg,
		Project: project,
		Paths:   normalized,
	}
	w.cancel = func() { r.Remove(w.ID) }

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.watches {
		if existing.covers(w) {
			return existing
		}
		if w.covers(existing) {
			delete(r.watches, id)
		}
	}
	r.watches[w.ID] = w
	return w
}

// Remove deletes a watch by id.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watches, id)
}

// Snapshot returns the currently active watches.
func (r *Registry) Snapshot() []*Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	watches := make([]*Watch, 0, len(r.watches))
	for _, w := range r.watches {
		watches = append(watches, w)
	}
	return watches
}

// collapse drops watches covered by another watch in the same set, keeping
// only the outermost interested scopes.
func collapse(watches []*Watch) []*Watch {
	kept := make([]*Watch, 0, len(watches))
	for i, w := range watches {
		covered := false
		for j, other := range watches {
			if i == j {
				continue
			}
			if other.covers(w) && !(w.covers(other) && i < j) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, w)
		}
	}
	return kept
}
