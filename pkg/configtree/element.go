// Package configtree holds the configuration trees handed to a transaction.
//
// A Tree is an ordered forest of elements scoped to one module. Trees are
// supplied by the datastore and treated as read-only by the differ and the
// dispatch engine.
package configtree

import (
	"encoding/xml"
	"sort"
	"strings"
)

// Element is a single node of a configuration tree.
type Element struct {
	Name     xml.Name
	Text     string
	Attrs    []xml.Attr
	Children []*Element
}

// NewElement creates an element with the given namespace and local name.
func NewElement(namespace, local string) *Element {
	return &Element{Name: xml.Name{Space: namespace, Local: local}}
}

// NewLeaf creates an element carrying a text value.
func NewLeaf(namespace, local, value string) *Element {
	return &Element{Name: xml.Name{Space: namespace, Local: local}, Text: value}
}

// Append adds children and returns the element for chaining.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Value returns the canonical textual value of the element: its text with
// surrounding whitespace removed.
func (e *Element) Value() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text)
}

// Child returns the first child with the given local name.
func (e *Element) Child(local string) *Element {
	if e == nil {
		return nil
	}
	for _, child := range e.Children {
		if child.Name.Local == local {
			return child
		}
	}
	return nil
}

// ChildrenNamed returns all children with the given local name in document order.
func (e *Element) ChildrenNamed(local string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, child := range e.Children {
		if child.Name.Local == local {
			out = append(out, child)
		}
	}
	return out
}

// Canonical renders the element subtree in a normalized form used for
// comparing opaque content. Text is trimmed, attributes are sorted and
// whitespace-only text between child elements is ignored.
func (e *Element) Canonical() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	e.writeCanonical(&b)
	return b.String()
}

func (e *Element) writeCanonical(b *strings.Builder) {
	b.WriteByte('<')
	writeName(b, e.Name)

	attrs := append([]xml.Attr(nil), e.Attrs...)
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Name.Space != attrs[j].Name.Space {
			return attrs[i].Name.Space < attrs[j].Name.Space
		}
		return attrs[i].Name.Local < attrs[j].Name.Local
	})
	for _, attr := range attrs {
		b.WriteByte(' ')
		writeName(b, attr.Name)
		b.WriteString(`="`)
		_ = xml.EscapeText(b, []byte(attr.Value))
		b.WriteByte('"')
	}
	b.WriteByte('>')

	_ = xml.EscapeText(b, []byte(e.Value()))
	for _, child := range e.Children {
		child.writeCanonical(b)
	}

	b.WriteString("</")
	writeName(b, e.Name)
	b.WriteByte('>')
}

func writeName(b *strings.Builder, name xml.Name) {
	if name.Space != "" {
		b.WriteByte('{')
		b.WriteString(name.Space)
		b.WriteByte('}')
	}
	b.WriteString(name.Local)
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{
		Name:  e.Name,
		Text:  e.Text,
		Attrs: append([]xml.Attr(nil), e.Attrs...),
	}
	for _, child := range e.Children {
		out.Children = append(out.Children, child.Clone())
	}
	return out
}

// Tree is the configuration of one module: an ordered list of top-level elements.
type Tree struct {
	Roots []*Element
}

// New creates a tree from top-level elements.
func New(roots ...*Element) *Tree {
	return &Tree{Roots: roots}
}

// IsEmpty reports whether the tree holds no elements. A nil tree is empty.
func (t *Tree) IsEmpty() bool {
	return t == nil || len(t.Roots) == 0
}

// Elements returns the top-level elements. It is safe to call on a nil tree.
func (t *Tree) Elements() []*Element {
	if t == nil {
		return nil
	}
	return t.Roots
}
