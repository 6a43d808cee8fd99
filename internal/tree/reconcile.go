package tree

import (
	"sort"
	"strings"

	"trb/internal/model"
)

// DeltaKind classifies one structural change produced by a pass.
type DeltaKind int

const (
	DeltaAdded DeltaKind = iota
	DeltaRemoved
	DeltaUpdated
)

// Delta records one mutation applied to the tree. EntryID is the
// generation-stripped identity of the affected node.
type Delta struct {
	Kind    DeltaKind
	EntryID string
	Node    *Node
}

// Reconciler diffs freshly computed entry forests against the persistent
// tree. Reconciliation metadata lives in a side table keyed by entry id, not
// on the nodes themselves, so the node representation stays inspectable on
// its own.
type Reconciler struct {
	meta map[string]*nodeMeta
}

type nodeMeta struct {
	generation int
	signature  string
}

// entrySignature identifies an entry independent of its line: kind, file and
// full title path. A pure line shift leaves it unchanged, so the node it
// belongs to can be recognized and kept.
func entrySignature(e *model.Entry) string {
	parts := make([]string, 0, len(e.TitlePath)+3)
	parts = append(parts, string(e.Kind), e.File)
	parts = append(parts, e.TitlePath...)
	parts = append(parts, e.Title)
	return strings.Join(parts, "\x00")
}

// NewReconciler creates a reconciler with an empty side table.
func NewReconciler() *Reconciler {
	return &Reconciler{meta: make(map[string]*nodeMeta)}
}

// Reconcile updates parent's children to mirror entries, with minimal
// mutation: nodes present in both keep their object and id, nodes absent
// from entries are removed, new entries get new nodes. A pass always runs to
// completion once started and returns the structural deltas it applied.
// Reconciling the same entries twice yields no deltas on the second pass.
func (r *Reconciler) Reconcile(parent *Node, entries []*model.Entry, generation int) []Delta {
	var deltas []Delta
	r.reconcile(parent, entries, generation, &deltas)
	return deltas
}

func (r *Reconciler) reconcile(parent *Node, entries []*model.Entry, generation int, deltas *[]Delta) {
	existing := make(map[string]*Node, len(parent.Children))
	for _, child := range parent.Children {
		existing[nodeKey(child)] = child
	}

	wanted := make(map[string]bool, len(entries))
	for _, e := range entries {
		wanted[e.ID] = true
	}

	// Children whose id vanished are relocation candidates first and
	// removals only if nothing claims them.
	var leftovers []*Node
	for _, child := range parent.Children {
		if !wanted[nodeKey(child)] {
			leftovers = append(leftovers, child)
		}
	}

	children := make([]*Node, 0, len(entries))
	for _, e := range entries {
		node, ok := existing[e.ID]
		switch {
		case ok:
			if r.update(node, e, generation) {
				*deltas = append(*deltas, Delta{Kind: DeltaUpdated, EntryID: e.ID, Node: node})
			}
		default:
			if moved := r.adopt(leftovers, e); moved != nil {
				// Same test, new line: the node and its id survive.
				node = moved
				r.update(node, e, generation)
				*deltas = append(*deltas, Delta{Kind: DeltaUpdated, EntryID: e.ID, Node: node})
			} else {
				node = r.create(e, generation)
				*deltas = append(*deltas, Delta{Kind: DeltaAdded, EntryID: e.ID, Node: node})
			}
		}
		children = append(children, node)
		r.reconcile(node, e.Children, generation, deltas)
	}

	for _, child := range leftovers {
		if child != nil {
			r.forget(child)
			*deltas = append(*deltas, Delta{Kind: DeltaRemoved, EntryID: nodeKey(child), Node: child})
		}
	}
	parent.Children = children
}

// adopt claims a leftover child whose signature matches the entry, re-keying
// it to the entry's new id. nil when no leftover is the same test.
func (r *Reconciler) adopt(leftovers []*Node, e *model.Entry) *Node {
	sig := entrySignature(e)
	for i, child := range leftovers {
		if child == nil {
			continue
		}
		m, ok := r.meta[nodeKey(child)]
		if !ok || m.signature != sig {
			continue
		}
		leftovers[i] = nil
		delete(r.meta, nodeKey(child))
		child.EntryID = e.ID
		return child
	}
	return nil
}

func (r *Reconciler) create(e *model.Entry, generation int) *Node {
	node := &Node{
		ID:      NodeID(generation, e.ID),
		Title:   e.Title,
		Kind:    KindTest,
		Tags:    append([]string(nil), e.Tags...),
		EntryID: e.ID,
	}
	if e.Kind == model.KindSuite {
		node.Kind = KindGroup
		// Group nodes fetch children lazily in the consuming UI.
		node.CanResolveChildren = true
	}
	if e.Line > 0 {
		node.Range = &Range{Line: e.Line, Column: e.Column}
	}
	r.meta[e.ID] = &nodeMeta{generation: generation, signature: entrySignature(e)}
	return node
}

// update refreshes a kept node's observable projections and reports whether
// anything changed. Tags compare as unordered sets so a reordered tag list
// does not churn the UI.
func (r *Reconciler) update(node *Node, e *model.Entry, generation int) bool {
	if m, ok := r.meta[e.ID]; ok {
		m.generation = generation
		m.signature = entrySignature(e)
	} else {
		r.meta[e.ID] = &nodeMeta{generation: generation, signature: entrySignature(e)}
	}

	changed := false
	if node.Title != e.Title {
		node.Title = e.Title
		changed = true
	}
	if e.Line > 0 {
		if node.Range == nil || node.Range.Line != e.Line || node.Range.Column != e.Column {
			node.Range = &Range{Line: e.Line, Column: e.Column}
			changed = true
		}
	} else if node.Range != nil {
		node.Range = nil
		changed = true
	}
	if !sameTagSet(node.Tags, e.Tags) {
		node.Tags = append([]string(nil), e.Tags...)
		changed = true
	}
	return changed
}

// forget drops side-table state for a removed subtree.
func (r *Reconciler) forget(node *Node) {
	delete(r.meta, nodeKey(node))
	for _, c := range node.Children {
		r.forget(c)
	}
}

// PruneStale removes any node left over from a generation older than current,
// e.g. after an interrupted rebuild. Returns the removal deltas.
func (r *Reconciler) PruneStale(parent *Node, current int) []Delta {
	var deltas []Delta
	kept := parent.Children[:0]
	for _, child := range parent.Children {
		id := nodeKey(child)
		if m, ok := r.meta[id]; ok && m.generation < current {
			r.forget(child)
			deltas = append(deltas, Delta{Kind: DeltaRemoved, EntryID: id, Node: child})
			continue
		}
		kept = append(kept, child)
		deltas = append(deltas, r.PruneStale(child, current)...)
	}
	parent.Children = kept
	return deltas
}

func sameTagSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
