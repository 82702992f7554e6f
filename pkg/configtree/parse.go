package configtree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BaseNamespace is the namespace of the <config> and <data> wrapper elements.
const BaseNamespace = "urn:ietf:params:xml:ns:netconf:base:1.0"

// Parse decodes an XML document into a Tree.
//
// The input may hold several top-level elements. A single <config> or <data>
// wrapper in the base namespace is unwrapped. Empty input yields an empty tree.
func Parse(r io.Reader) (*Tree, error) {
	decoder := xml.NewDecoder(r)

	var (
		roots []*Element
		stack []*Element
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode configuration XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			elem := &Element{Name: t.Name}
			for _, attr := range t.Attr {
				// namespace declarations are already resolved into element names
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				elem.Attrs = append(elem.Attrs, attr)
			}
			if len(stack) == 0 {
				roots = append(roots, elem)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, elem)
			}
			stack = append(stack, elem)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if strings.TrimSpace(string(t)) != "" {
					return nil, fmt.Errorf("unexpected text outside of elements: %q", strings.TrimSpace(string(t)))
				}
				continue
			}
			stack[len(stack)-1].Text += string(t)
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated element <%s>", stack[len(stack)-1].Name.Local)
	}

	for _, elem := range roots {
		if len(elem.Children) > 0 {
			// mixed content: only text of leaves is significant
			elem.Text = dropWhitespace(elem.Text)
		}
		normalize(elem)
	}

	if len(roots) == 1 && isWrapper(roots[0]) {
		roots = roots[0].Children
	}

	return &Tree{Roots: roots}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Tree, error) {
	return Parse(strings.NewReader(s))
}

// LoadFile reads a configuration tree from disk. Files ending in .yaml or
// .yml are decoded with ParseYAML using namespace; everything else is
// treated as XML.
func LoadFile(path, namespace string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var tree *Tree
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		tree, err = ParseYAML(data, namespace)
	default:
		tree, err = Parse(strings.NewReader(string(data)))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

func isWrapper(e *Element) bool {
	return e.Name.Space == BaseNamespace && (e.Name.Local == "config" || e.Name.Local == "data")
}

func normalize(e *Element) {
	for _, child := range e.Children {
		if len(child.Children) > 0 {
			child.Text = dropWhitespace(child.Text)
		}
		normalize(child)
	}
}

func dropWhitespace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
