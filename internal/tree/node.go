// Package tree maintains the persistent UI-facing projection of the
// discovered entry forest. Nodes keep stable identity across reconciliation
// passes so a consuming UI does not lose expansion or selection state.
package tree

import (
	"fmt"
	"strings"
)

// NodeKind distinguishes group nodes (files, suites, projects) from runnable
// test nodes.
type NodeKind int

const (
	KindGroup NodeKind = iota
	KindTest
)

// Range is the source position a node points at.
type Range struct {
	Line   int
	Column int
}

// Node is the externally visible projection of an entry (or of a synthetic
// grouping such as a project). Its ID is generation-prefixed; EntryID is the
// back-reference into the model. Callers must not hold a Node across a
// reconciliation pass without checking it was not removed.
type Node struct {
	ID                 string
	Title              string
	Kind               NodeKind
	Range              *Range
	Tags               []string
	EntryID            string
	CanResolveChildren bool
	Children           []*Node
}

// NewRoot returns an empty forest root. The root itself is never surfaced.
func NewRoot() *Node {
	return &Node{ID: "root", Kind: KindGroup}
}

// NodeID builds a generation-prefixed node id.
func NodeID(generation int, entryID string) string {
	return fmt.Sprintf("%d:%s", generation, entryID)
}

// StripGeneration removes the generation prefix, recovering the entry id
// used for identity matching across passes.
func StripGeneration(id string) string {
	if i := strings.Index(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// nodeKey is the entry id a node currently answers to. A node adopted across
// a line shift keeps its original ID but is re-keyed through EntryID.
func nodeKey(n *Node) string {
	if n.EntryID != "" {
		return n.EntryID
	}
	return StripGeneration(n.ID)
}

// Find walks the subtree for the node with the given entry id.
func (n *Node) Find(entryID string) *Node {
	if nodeKey(n) == entryID {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(entryID); found != nil {
			return found
		}
	}
	return nil
}
