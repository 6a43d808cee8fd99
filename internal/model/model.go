package model

import "sync"

// Model holds the discovered entry forest per config file and project, along
// with the generation counter bumped on every full rebuild. Node ids in the
// UI tree are prefixed with the generation so stale nodes from a previous
// generation can be identified and pruned even if a reconciliation pass was
// interrupted.
type Model struct {
	mu         sync.Mutex
	generation int
	entries    map[modelKey][]*Entry
}

type modelKey struct {
	configFile string
	project    string
}

// New creates an empty model at generation 1.
func New() *Model {
	return &Model{
		generation: 1,
		entries:    make(map[modelKey][]*Entry),
	}
}

// Generation returns the current generation.
func (m *Model) Generation() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Bump advances the generation. Called on full rebuilds: workspace folder
// changes and config edits.
func (m *Model) Bump() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.entries = make(map[modelKey][]*Entry)
	return m.generation
}

// SetEntries replaces the entry forest for one config/project pair.
func (m *Model) SetEntries(configFile, project string, entries []*Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[modelKey{configFile, project}] = entries
}

// Entries returns the entry forest for one config/project pair.
func (m *Model) Entries(configFile, project string) []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[modelKey{configFile, project}]
}

// DropConfig removes all entries belonging to a config that disappeared.
func (m *Model) DropConfig(configFile string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.configFile == configFile {
			delete(m.entries, k)
		}
	}
}

// Projects lists the project names currently holding entries for a config.
func (m *Model) Projects(configFile string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for k := range m.entries {
		if k.configFile == configFile {
			names = append(names, k.project)
		}
	}
	return names
}
