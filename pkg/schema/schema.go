// Package schema provides the read-only schema model used to interpret
// configuration trees.
//
// A Model is an arena of nodes addressed by NodeID. Nodes never hold pointers
// to each other; parent and child relations are expressed through IDs, and
// every data node is reachable by its slash-delimited schema path
// (e.g. "/interfaces/interface/name"). Models are built once by Compile and
// are immutable afterwards, so they can be shared between transactions.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPath is returned when a path does not name a declared data node.
var ErrUnknownPath = errors.New("unknown schema path")

// Kind identifies the type of a schema node.
type Kind int

const (
	KindModule Kind = iota
	KindContainer
	KindLeaf
	KindList
	KindLeafList
	KindChoice
	KindAnyXML
	KindGrouping
	KindImport
	KindAugment
)

var kindNames = map[Kind]string{
	KindModule:    "module",
	KindContainer: "container",
	KindLeaf:      "leaf",
	KindList:      "list",
	KindLeafList:  "leaf-list",
	KindChoice:    "choice",
	KindAnyXML:    "anyxml",
	KindGrouping:  "grouping",
	KindImport:    "import",
	KindAugment:   "augment",
}

// String returns the YANG keyword for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a YANG keyword into a Kind.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if name == normalized {
			return kind, nil
		}
	}
	// "leaflist" is accepted for convenience in hand-written definitions
	if normalized == "leaflist" {
		return KindLeafList, nil
	}
	return 0, fmt.Errorf("unsupported schema node kind %q", s)
}

// IsData reports whether nodes of this kind appear as elements in a configuration tree.
func (k Kind) IsData() bool {
	switch k {
	case KindContainer, KindLeaf, KindList, KindLeafList, KindAnyXML:
		return true
	default:
		return false
	}
}

// IsTransparent reports whether the kind contributes no path segment of its
// own. Children of transparent nodes are addressed as children of the
// enclosing data node.
func (k Kind) IsTransparent() bool {
	return k == KindChoice || k == KindAugment
}

// NodeID addresses a node inside a Model.
type NodeID int

// NoNode is the parent ID of the module root.
const NoNode NodeID = -1

// Node is a single schema node.
type Node struct {
	ID        NodeID
	Kind      Kind
	Name      string
	Namespace string

	// Keys lists the key leaf names of a list, in declaration order.
	Keys []string

	// OrderedByUser is true for lists and leaf-lists whose instance order is significant.
	OrderedByUser bool

	Parent   NodeID
	Children []NodeID

	// Path is the schema path of the node. Transparent nodes share the path
	// of their enclosing data node.
	Path string

	// data holds the data children with choice/augment nodes flattened and
	// grouping/import nodes dropped.
	data []NodeID
}

// KeyCount returns the number of list keys.
func (n *Node) KeyCount() int {
	return len(n.Keys)
}

// IsKey reports whether name is one of the list keys.
func (n *Node) IsKey(name string) bool {
	for _, k := range n.Keys {
		if k == name {
			return true
		}
	}
	return false
}

// Model is an immutable schema tree of a single module.
type Model struct {
	nodes []Node
	paths map[string]NodeID
}

// Name returns the module name.
func (m *Model) Name() string {
	return m.nodes[0].Name
}

// Namespace returns the module namespace URI.
func (m *Model) Namespace() string {
	return m.nodes[0].Namespace
}

// Root returns the module node.
func (m *Model) Root() *Node {
	return &m.nodes[0]
}

// Len returns the total number of nodes in the model.
func (m *Model) Len() int {
	return len(m.nodes)
}

// Node returns the node with the given ID, or nil if the ID is out of range.
func (m *Model) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(m.nodes) {
		return nil
	}
	return &m.nodes[id]
}

// Lookup returns the data node declared at path.
func (m *Model) Lookup(path string) (*Node, bool) {
	id, ok := m.paths[path]
	if !ok {
		return nil, false
	}
	return &m.nodes[id], true
}

// Resolve is like Lookup but returns an error wrapping ErrUnknownPath when
// the path is not declared.
func (m *Model) Resolve(path string) (*Node, error) {
	node, ok := m.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s (module %s)", ErrUnknownPath, path, m.Name())
	}
	return node, nil
}

// Paths returns all addressable data node paths in depth-first schema order.
func (m *Model) Paths() []string {
	var paths []string
	var visit func(id NodeID)
	visit = func(id NodeID) {
		for _, child := range m.nodes[id].data {
			paths = append(paths, m.nodes[child].Path)
			visit(child)
		}
	}
	visit(0)
	return paths
}

// Walk visits every node depth-first in schema declaration order, parents
// before children. Walking stops at the first error returned by fn.
func (m *Model) Walk(fn func(*Node) error) error {
	return m.walk(0, fn)
}

func (m *Model) walk(id NodeID, fn func(*Node) error) error {
	node := &m.nodes[id]
	if err := fn(node); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := m.walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// DataChildren returns the data children of a node in schema order, with
// choice and augment nodes flattened into their parent.
func (m *Model) DataChildren(id NodeID) []*Node {
	node := m.Node(id)
	if node == nil {
		return nil
	}
	children := make([]*Node, 0, len(node.data))
	for _, child := range node.data {
		children = append(children, &m.nodes[child])
	}
	return children
}

// MatchChild finds the data child of parent that an element with the given
// local name and namespace instantiates. An empty namespace matches any
// child with the right name.
func (m *Model) MatchChild(parent NodeID, name, namespace string) (*Node, bool) {
	node := m.Node(parent)
	if node == nil {
		return nil, false
	}
	for _, id := range node.data {
		child := &m.nodes[id]
		if child.Name != name {
			continue
		}
		if namespace == "" || namespace == child.Namespace {
			return child, true
		}
	}
	return nil, false
}
