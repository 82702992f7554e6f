package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the serializable form of a schema tree, as produced by a
// schema-loading collaborator.
//
// Example (YAML):
//
//	kind: module
//	name: example
//	namespace: urn:example
//	children:
//	  - kind: container
//	    name: interfaces
//	    children:
//	      - kind: list
//	        name: interface
//	        keys: [name]
//	        children:
//	          - {kind: leaf, name: name}
//	          - {kind: leaf, name: mtu}
type Definition struct {
	Kind      string       `yaml:"kind"`
	Name      string       `yaml:"name"`
	Namespace string       `yaml:"namespace,omitempty"`
	Keys      []string     `yaml:"keys,omitempty"`
	OrderedBy string       `yaml:"ordered_by,omitempty"`
	Children  []Definition `yaml:"children,omitempty"`
}

// Load parses a YAML schema definition and compiles it.
func Load(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("schema definition is empty")
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema YAML: %w", err)
	}

	return Compile(def)
}

// LoadFile reads and compiles a YAML schema definition from disk.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	model, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

// Compile validates a definition and builds the immutable Model.
//
// The root must be a module with a namespace. List keys must name direct
// leaf children of the list, and no two data nodes may share a path.
func Compile(def Definition) (*Model, error) {
	kind, err := ParseKind(def.Kind)
	if err != nil {
		return nil, err
	}
	if kind != KindModule {
		return nil, fmt.Errorf("schema root must be a module, got %s", kind)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("module name cannot be empty")
	}
	if def.Namespace == "" {
		return nil, fmt.Errorf("module %q: namespace cannot be empty", def.Name)
	}

	c := &compiler{
		model: &Model{paths: make(map[string]NodeID)},
	}
	c.model.nodes = append(c.model.nodes, Node{
		ID:        0,
		Kind:      KindModule,
		Name:      def.Name,
		Namespace: def.Namespace,
		Parent:    NoNode,
		Path:      "/",
	})

	for i := range def.Children {
		if _, err := c.compile(&def.Children[i], 0, 0, "", true); err != nil {
			return nil, fmt.Errorf("module %q: %w", def.Name, err)
		}
	}

	return c.model, nil
}

type compiler struct {
	model *Model
}

// compile adds def below parent. dataParent is the closest enclosing data
// node (or the module), prefix its path. Nodes inside groupings and imports
// are kept in the arena but are not addressable by path.
func (c *compiler) compile(def *Definition, parent, dataParent NodeID, prefix string, addressable bool) (NodeID, error) {
	kind, err := ParseKind(def.Kind)
	if err != nil {
		return NoNode, err
	}
	if kind == KindModule {
		return NoNode, fmt.Errorf("nested module %q is not allowed", def.Name)
	}
	if def.Name == "" {
		return NoNode, fmt.Errorf("%s below %q has no name", kind, c.model.nodes[parent].Path)
	}

	namespace := def.Namespace
	if namespace == "" {
		namespace = c.model.nodes[parent].Namespace
	}

	path := prefix
	if kind.IsData() {
		path = prefix + "/" + def.Name
	}
	if kind.IsTransparent() && prefix == "" {
		path = "/"
	}

	if err := validateDefinition(def, kind, path); err != nil {
		return NoNode, err
	}

	id := NodeID(len(c.model.nodes))
	c.model.nodes = append(c.model.nodes, Node{
		ID:            id,
		Kind:          kind,
		Name:          def.Name,
		Namespace:     namespace,
		Keys:          append([]string(nil), def.Keys...),
		OrderedByUser: def.OrderedBy != "system",
		Parent:        parent,
		Path:          path,
	})
	c.model.nodes[parent].Children = append(c.model.nodes[parent].Children, id)

	if kind == KindGrouping || kind == KindImport {
		addressable = false
	}

	if addressable && kind.IsData() {
		if _, exists := c.model.paths[path]; exists {
			return NoNode, fmt.Errorf("duplicate schema node %s", path)
		}
		c.model.paths[path] = id
		c.model.nodes[dataParent].data = append(c.model.nodes[dataParent].data, id)
	}

	childDataParent := dataParent
	childPrefix := prefix
	if kind.IsData() {
		childDataParent = id
		childPrefix = path
	}

	for i := range def.Children {
		if _, err := c.compile(&def.Children[i], id, childDataParent, childPrefix, addressable); err != nil {
			return NoNode, err
		}
	}

	return id, nil
}

func validateDefinition(def *Definition, kind Kind, path string) error {
	switch def.OrderedBy {
	case "", "user", "system":
	default:
		return fmt.Errorf("%s: ordered_by must be \"user\" or \"system\", got %q", path, def.OrderedBy)
	}

	if len(def.Keys) > 0 && kind != KindList {
		return fmt.Errorf("%s: only lists can declare keys", path)
	}

	switch kind {
	case KindLeaf, KindLeafList, KindAnyXML, KindImport:
		if len(def.Children) > 0 {
			return fmt.Errorf("%s: %s cannot have children", path, kind)
		}
	case KindList:
		return validateListKeys(def, path)
	}

	return nil
}

func validateListKeys(def *Definition, path string) error {
	if len(def.Keys) == 0 {
		return fmt.Errorf("%s: list must declare at least one key", path)
	}

	seen := make(map[string]bool, len(def.Keys))
	for _, key := range def.Keys {
		if seen[key] {
			return fmt.Errorf("%s: duplicate key %q", path, key)
		}
		seen[key] = true

		found := false
		for _, child := range def.Children {
			if child.Name == key {
				childKind, err := ParseKind(child.Kind)
				if err != nil {
					return err
				}
				if childKind != KindLeaf {
					return fmt.Errorf("%s: key %q must be a leaf, got %s", path, key, childKind)
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: key %q is not a direct child leaf", path, key)
		}
	}
	return nil
}
