package configtree

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML document into a Tree whose elements all carry
// namespace.
//
// Mappings become elements with children in document order, sequences become
// repeated sibling elements of the same name, scalars become leaf text and
// null values become empty elements:
//
//	interfaces:
//	  interface:
//	    - name: eth0
//	      mtu: 1500
//	    - name: eth1
func ParseYAML(data []byte, namespace string) (*Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration YAML: %w", err)
	}

	tree := &Tree{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree, nil
	}

	root := doc.Content[0]
	if root.Tag == "!!null" {
		return tree, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: configuration document must be a mapping", root.Line)
	}

	roots, err := decodeMapping(root, namespace)
	if err != nil {
		return nil, err
	}
	tree.Roots = roots
	return tree, nil
}

func decodeMapping(node *yaml.Node, namespace string) ([]*Element, error) {
	var out []*Element
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}

		elems, err := decodeValue(key.Value, value, namespace)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

func decodeValue(name string, node *yaml.Node, namespace string) ([]*Element, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeValue(name, node.Alias, namespace)

	case yaml.ScalarNode:
		elem := NewElement(namespace, name)
		if node.Tag != "!!null" {
			elem.Text = node.Value
		}
		return []*Element{elem}, nil

	case yaml.MappingNode:
		elem := NewElement(namespace, name)
		children, err := decodeMapping(node, namespace)
		if err != nil {
			return nil, err
		}
		elem.Children = children
		return []*Element{elem}, nil

	case yaml.SequenceNode:
		var out []*Element
		for _, item := range node.Content {
			if item.Kind == yaml.SequenceNode {
				return nil, fmt.Errorf("line %d: nested sequences are not supported for %q", item.Line, name)
			}
			elems, err := decodeValue(name, item, namespace)
			if err != nil {
				return nil, err
			}
			out = append(out, elems...)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node for %q", node.Line, name)
	}
}
