// Package outline builds the section tree of a document snapshot.
//
// Sections live in an arena indexed by NodeID. Records arrive in document order
// and are appended as they are accepted, so NodeID order is pre-order traversal
// order. Parents and children refer to each other by index only.
package outline

import (
	"fmt"

	"docxref/internal/corpus"
)

// NodeID indexes a section in its tree.
type NodeID int

// NoParent is the parent of a topic (level-1) section.
const NoParent NodeID = -1

// Section is one heading and everything filed under it.
type Section struct {
	ID       NodeID
	Level    int
	Title    string // Normalized title
	Slug     string // Assigned once by the anchor registry
	Parent   NodeID
	Children []NodeID
	Entries  []Entry
	Record   int // Index of the source record in the snapshot
}

// Entry is an entry owned by exactly one section.
type Entry struct {
	Title      string
	Body       string
	CodeBlocks []corpus.CodeBlock
	References []string // Raw targets, classified later by the resolver
}

// Tree is a read-only section tree once slugs are assigned.
type Tree struct {
	nodes  []Section
	roots  []NodeID
	sealed bool
}

// Len returns the number of sections.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Roots returns the topic sections in document order.
func (t *Tree) Roots() []NodeID {
	return t.roots
}

// Node returns the section with the given id. The section must not be modified.
func (t *Tree) Node(id NodeID) *Section {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Walk visits sections in document (pre-order) order until fn returns false.
func (t *Tree) Walk(fn func(s *Section) bool) {
	for i := range t.nodes {
		if !fn(&t.nodes[i]) {
			return
		}
	}
}

// Path returns the titles from the topic down to id.
func (t *Tree) Path(id NodeID) []string {
	var depth int
	for cur := id; cur != NoParent; cur = t.nodes[cur].Parent {
		depth++
	}
	path := make([]string, depth)
	for cur := id; cur != NoParent; cur = t.nodes[cur].Parent {
		depth--
		path[depth] = t.nodes[cur].Title
	}
	return path
}

// AssignSlugs sets every section's slug by calling fn in document order, then
// seals the tree. It can run only once.
func (t *Tree) AssignSlugs(fn func(s *Section) string) error {
	if t.sealed {
		return fmt.Errorf("outline: slugs already assigned")
	}
	for i := range t.nodes {
		t.nodes[i].Slug = fn(&t.nodes[i])
	}
	t.sealed = true
	return nil
}

// Sealed reports whether slugs have been assigned.
func (t *Tree) Sealed() bool {
	return t.sealed
}

func (t *Tree) add(s Section) NodeID {
	s.ID = NodeID(len(t.nodes))
	t.nodes = append(t.nodes, s)
	if s.Parent == NoParent {
		t.roots = append(t.roots, s.ID)
	} else {
		parent := &t.nodes[s.Parent]
		parent.Children = append(parent.Children, s.ID)
	}
	return s.ID
}
