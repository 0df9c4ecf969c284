package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawProcess is a process element as returned by the process source.
type RawProcess struct {
	ID         string
	Attributes map[string]any
	ChildIDs   []string
}

// ProcessNode is one element of the process hierarchy. Nodes are created
// from fetched attributes and never change afterwards; parent and child
// links are assigned by NewProcessTree.
type ProcessNode struct {
	SourceID   string
	Attributes Attributes
	ChildIDs   []string

	parent   *ProcessNode
	children []*ProcessNode
}

// NewProcessNode builds a node from a fetched element.
func NewProcessNode(raw RawProcess) *ProcessNode {
	childIDs := make([]string, len(raw.ChildIDs))
	copy(childIDs, raw.ChildIDs)
	return &ProcessNode{
		SourceID:   raw.ID,
		Attributes: AttributesFromMap(raw.Attributes),
		ChildIDs:   childIDs,
	}
}

// Key is the tree key of the node: its hierarchical ID, or the source ID
// for elements without a number (typically the root container).
func (n *ProcessNode) Key() string {
	if id := n.Attributes.HierarchicalID(); id != "" {
		return id
	}
	return n.SourceID
}

func (n *ProcessNode) HierarchicalID() string { return n.Attributes.HierarchicalID() }

func (n *ProcessNode) Name() string { return n.Attributes.Name }

func (n *ProcessNode) DiagramID() string { return n.Attributes.DiagramID }

func (n *ProcessNode) Parent() *ProcessNode { return n.parent }

func (n *ProcessNode) Children() []*ProcessNode { return n.children }

// DotCount is the nesting level encoded in the hierarchical ID.
func (n *ProcessNode) DotCount() int {
	return strings.Count(n.HierarchicalID(), ".")
}

// IsMainProcess reports whether the node is a top-level numbered process ("7").
func (n *ProcessNode) IsMainProcess() bool {
	id := n.HierarchicalID()
	return id != "" && !strings.Contains(id, ".")
}

// TopLevelID returns the first segment of the hierarchical ID ("7.2.1" -> "7").
func (n *ProcessNode) TopLevelID() string {
	id := n.HierarchicalID()
	if i := strings.Index(id, "."); i >= 0 {
		return id[:i]
	}
	return id
}

// Edge links a parent key to a child key.
type Edge struct {
	Parent string
	Child  string
}

// ProcessTree maps tree keys to nodes. It is read-only once built.
type ProcessTree struct {
	// RootID is the source ID the tree was built from, not the root's key.
	RootID  string
	BuiltAt time.Time

	nodes map[string]*ProcessNode
	order []string
}

// NewProcessTree indexes nodes by key and wires the parent/child links
// described by edges. Nodes keep their discovery order.
func NewProcessTree(rootID string, nodes []*ProcessNode, edges []Edge) (*ProcessTree, error) {
	t := &ProcessTree{
		RootID:  rootID,
		BuiltAt: time.Now().UTC(),
		nodes:   make(map[string]*ProcessNode, len(nodes)),
		order:   make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		key := n.Key()
		if _, dup := t.nodes[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidTree, key)
		}
		n.parent = nil
		n.children = nil
		t.nodes[key] = n
		t.order = append(t.order, key)
	}
	for _, e := range edges {
		parent, ok := t.nodes[e.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: edge %s -> %s references unknown parent", ErrInvalidTree, e.Parent, e.Child)
		}
		child, ok := t.nodes[e.Child]
		if !ok {
			return nil, fmt.Errorf("%w: edge %s -> %s references unknown child", ErrInvalidTree, e.Parent, e.Child)
		}
		if child.parent != nil {
			return nil, fmt.Errorf("%w: node %q has two parents", ErrInvalidTree, e.Child)
		}
		child.parent = parent
		parent.children = append(parent.children, child)
	}
	return t, nil
}

// Get returns the node stored under key.
func (t *ProcessTree) Get(key string) (*ProcessNode, bool) {
	n, ok := t.nodes[key]
	return n, ok
}

// Contains reports whether key is part of the tree.
func (t *ProcessTree) Contains(key string) bool {
	_, ok := t.nodes[key]
	return ok
}

func (t *ProcessTree) Len() int { return len(t.nodes) }

// Keys returns all keys in discovery order.
func (t *ProcessTree) Keys() []string {
	keys := make([]string, len(t.order))
	copy(keys, t.order)
	return keys
}

// Roots returns every node without a parent, in discovery order.
func (t *ProcessTree) Roots() []*ProcessNode {
	var roots []*ProcessNode
	for _, key := range t.order {
		if n := t.nodes[key]; n.parent == nil {
			roots = append(roots, n)
		}
	}
	return roots
}

type treeSnapshot struct {
	RootID  string         `json:"root_id"`
	BuiltAt time.Time      `json:"built_at"`
	Nodes   []nodeSnapshot `json:"nodes"`
}

type nodeSnapshot struct {
	Key        string     `json:"key"`
	SourceID   string     `json:"source_id"`
	Parent     string     `json:"parent,omitempty"`
	ChildIDs   []string   `json:"child_ids,omitempty"`
	Attributes Attributes `json:"attributes"`
}

// MarshalJSON encodes the tree as a flat node list with parent keys.
func (t *ProcessTree) MarshalJSON() ([]byte, error) {
	snap := treeSnapshot{RootID: t.RootID, BuiltAt: t.BuiltAt, Nodes: make([]nodeSnapshot, 0, len(t.order))}
	for _, key := range t.order {
		n := t.nodes[key]
		ns := nodeSnapshot{Key: key, SourceID: n.SourceID, ChildIDs: n.ChildIDs, Attributes: n.Attributes}
		if n.parent != nil {
			ns.Parent = n.parent.Key()
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	return json.Marshal(snap)
}

// UnmarshalJSON restores a tree written by MarshalJSON.
func (t *ProcessTree) UnmarshalJSON(data []byte) error {
	var snap treeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	nodes := make([]*ProcessNode, 0, len(snap.Nodes))
	var edges []Edge
	for _, ns := range snap.Nodes {
		n := &ProcessNode{SourceID: ns.SourceID, Attributes: ns.Attributes, ChildIDs: ns.ChildIDs}
		if n.Key() != ns.Key {
			return fmt.Errorf("%w: node key %q does not match attributes (%q)", ErrInvalidTree, ns.Key, n.Key())
		}
		nodes = append(nodes, n)
		if ns.Parent != "" {
			edges = append(edges, Edge{Parent: ns.Parent, Child: ns.Key})
		}
	}
	restored, err := NewProcessTree(snap.RootID, nodes, edges)
	if err != nil {
		return err
	}
	restored.BuiltAt = snap.BuiltAt
	*t = *restored
	return nil
}
