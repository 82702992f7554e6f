package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interfacesSchema = `
kind: module
name: example-interfaces
namespace: urn:example:interfaces
children:
  - kind: container
    name: interfaces
    children:
      - kind: list
        name: interface
        keys: [name]
        children:
          - {kind: leaf, name: name}
          - {kind: leaf, name: mtu}
          - kind: choice
            name: address-type
            children:
              - {kind: leaf, name: dhcp}
              - {kind: leaf-list, name: address}
      - kind: grouping
        name: unused
        children:
          - {kind: leaf, name: hidden}
  - kind: augment
    name: vendor
    namespace: urn:example:vendor
    children:
      - {kind: anyxml, name: extra}
`

func loadInterfaces(t *testing.T) *Model {
	t.Helper()
	model, err := Load([]byte(interfacesSchema))
	require.NoError(t, err)
	return model
}

func TestLoad_Interfaces(t *testing.T) {
	model := loadInterfaces(t)

	assert.Equal(t, "example-interfaces", model.Name())
	assert.Equal(t, "urn:example:interfaces", model.Namespace())
	assert.Equal(t, KindModule, model.Root().Kind)

	list, ok := model.Lookup("/interfaces/interface")
	require.True(t, ok)
	assert.Equal(t, KindList, list.Kind)
	assert.Equal(t, []string{"name"}, list.Keys)
	assert.Equal(t, 1, list.KeyCount())
	assert.True(t, list.IsKey("name"))
	assert.False(t, list.IsKey("mtu"))
	assert.True(t, list.OrderedByUser)
}

func TestModel_ChoiceIsTransparent(t *testing.T) {
	model := loadInterfaces(t)

	dhcp, ok := model.Lookup("/interfaces/interface/dhcp")
	require.True(t, ok)
	assert.Equal(t, KindLeaf, dhcp.Kind)

	_, ok = model.Lookup("/interfaces/interface/address-type")
	assert.False(t, ok, "choice must not contribute a path segment")

	list, _ := model.Lookup("/interfaces/interface")
	var names []string
	for _, child := range model.DataChildren(list.ID) {
		names = append(names, child.Name)
	}
	assert.Equal(t, []string{"name", "mtu", "dhcp", "address"}, names)
}

func TestModel_GroupingIsNotAddressable(t *testing.T) {
	model := loadInterfaces(t)

	_, ok := model.Lookup("/interfaces/hidden")
	assert.False(t, ok)
	_, ok = model.Lookup("/interfaces/unused/hidden")
	assert.False(t, ok)
}

func TestModel_AugmentNamespace(t *testing.T) {
	model := loadInterfaces(t)

	extra, ok := model.Lookup("/extra")
	require.True(t, ok)
	assert.Equal(t, KindAnyXML, extra.Kind)
	assert.Equal(t, "urn:example:vendor", extra.Namespace)

	_, ok = model.MatchChild(model.Root().ID, "extra", "urn:example:vendor")
	assert.True(t, ok)
	_, ok = model.MatchChild(model.Root().ID, "extra", "urn:example:interfaces")
	assert.False(t, ok)
	_, ok = model.MatchChild(model.Root().ID, "extra", "")
	assert.True(t, ok, "elements without namespace match by name")
}

func TestModel_Resolve(t *testing.T) {
	model := loadInterfaces(t)

	node, err := model.Resolve("/interfaces/interface/mtu")
	require.NoError(t, err)
	assert.Equal(t, "mtu", node.Name)

	_, err = model.Resolve("/interfaces/bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPath))
}

func TestModel_WalkSchemaOrder(t *testing.T) {
	model := loadInterfaces(t)

	assert.Equal(t, []string{
		"/interfaces",
		"/interfaces/interface",
		"/interfaces/interface/name",
		"/interfaces/interface/mtu",
		"/interfaces/interface/dhcp",
		"/interfaces/interface/address",
		"/extra",
	}, model.Paths())

	visited := 0
	stop := errors.New("stop")
	err := model.Walk(func(n *Node) error {
		visited++
		if n.Name == "interface" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, visited)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{
			name: "root is not a module",
			def:  Definition{Kind: "container", Name: "x"},
			want: "schema root must be a module",
		},
		{
			name: "missing namespace",
			def:  Definition{Kind: "module", Name: "m"},
			want: "namespace cannot be empty",
		},
		{
			name: "list without keys",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "list", Name: "l", Children: []Definition{{Kind: "leaf", Name: "id"}}},
			}},
			want: "at least one key",
		},
		{
			name: "key is not a direct child",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "list", Name: "l", Keys: []string{"id"}, Children: []Definition{
					{Kind: "container", Name: "c", Children: []Definition{{Kind: "leaf", Name: "id"}}},
				}},
			}},
			want: "not a direct child leaf",
		},
		{
			name: "leaf with children",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "leaf", Name: "x", Children: []Definition{{Kind: "leaf", Name: "y"}}},
			}},
			want: "cannot have children",
		},
		{
			name: "duplicate path through choice",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "leaf", Name: "x"},
				{Kind: "choice", Name: "c", Children: []Definition{{Kind: "leaf", Name: "x"}}},
			}},
			want: "duplicate schema node /x",
		},
		{
			name: "unknown kind",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "rpc", Name: "x"},
			}},
			want: "unsupported schema node kind",
		},
		{
			name: "bad ordered_by",
			def: Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
				{Kind: "leaf-list", Name: "x", OrderedBy: "random"},
			}},
			want: "ordered_by",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_OrderedBySystem(t *testing.T) {
	model, err := Compile(Definition{Kind: "module", Name: "m", Namespace: "urn:m", Children: []Definition{
		{Kind: "leaf-list", Name: "tags", OrderedBy: "system"},
	}})
	require.NoError(t, err)

	tags, ok := model.Lookup("/tags")
	require.True(t, ok)
	assert.False(t, tags.OrderedByUser)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Leaf-List")
	require.NoError(t, err)
	assert.Equal(t, KindLeafList, kind)

	kind, err = ParseKind("leaflist")
	require.NoError(t, err)
	assert.Equal(t, KindLeafList, kind)

	_, err = ParseKind("notification")
	assert.Error(t, err)

	assert.Equal(t, "anyxml", KindAnyXML.String())
	assert.True(t, KindContainer.IsData())
	assert.False(t, KindChoice.IsData())
	assert.True(t, KindAugment.IsTransparent())
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(nil)
	assert.Error(t, err)
}
