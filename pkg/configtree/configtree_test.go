package configtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_UnwrapsConfig(t *testing.T) {
	tree, err := ParseString(`
<config xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <a xmlns="urn:example">
    <b> 10 </b>
  </a>
  <c xmlns="urn:example">x</c>
</config>`)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 2)

	a := tree.Roots[0]
	assert.Equal(t, "urn:example", a.Name.Space)
	assert.Equal(t, "a", a.Name.Local)
	assert.Empty(t, a.Text, "whitespace between children is dropped")
	require.Len(t, a.Children, 1)
	assert.Equal(t, "10", a.Child("b").Value())
	assert.Equal(t, " 10 ", a.Child("b").Text)
	assert.Equal(t, "x", tree.Roots[1].Value())
}

func TestParse_ForeignWrapperIsKept(t *testing.T) {
	tree, err := ParseString(`<config xmlns="urn:other"><a/></config>`)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "config", tree.Roots[0].Name.Local)
}

func TestParse_Empty(t *testing.T) {
	tree, err := ParseString("")
	require.NoError(t, err)
	assert.True(t, tree.IsEmpty())
}

func TestParse_Errors(t *testing.T) {
	_, err := ParseString("<a><b></a>")
	assert.Error(t, err)

	_, err = ParseString("<a>")
	assert.Error(t, err)

	_, err = ParseString("stray <a/>")
	assert.Error(t, err)
}

func TestParse_AttributesWithoutNamespaceDeclarations(t *testing.T) {
	tree, err := ParseString(`<a xmlns="urn:x" xmlns:p="urn:p" p:op="merge" id="1"/>`)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Len(t, tree.Roots[0].Attrs, 2)
}

func TestCanonical(t *testing.T) {
	left, err := ParseString(`<x xmlns="urn:x" b="2" a="1"><y> v </y></x>`)
	require.NoError(t, err)
	right, err := ParseString(`<x xmlns="urn:x" a="1" b="2">
	  <y>v</y>
	</x>`)
	require.NoError(t, err)

	assert.Equal(t, left.Roots[0].Canonical(), right.Roots[0].Canonical())
	assert.Equal(t, `<{urn:x}x a="1" b="2"><{urn:x}y>v</{urn:x}y></{urn:x}x>`, left.Roots[0].Canonical())

	other, err := ParseString(`<x xmlns="urn:x" a="1" b="2"><y>w</y></x>`)
	require.NoError(t, err)
	assert.NotEqual(t, left.Roots[0].Canonical(), other.Roots[0].Canonical())
}

func TestParseYAML(t *testing.T) {
	tree, err := ParseYAML([]byte(`
interfaces:
  interface:
    - name: eth0
      mtu: 1500
    - name: eth1
      enabled:
  address: [10.0.0.1, 10.0.0.2]
`), "urn:example")
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)

	interfaces := tree.Roots[0]
	assert.Equal(t, "urn:example", interfaces.Name.Space)

	instances := interfaces.ChildrenNamed("interface")
	require.Len(t, instances, 2)
	assert.Equal(t, "eth0", instances[0].Child("name").Value())
	assert.Equal(t, "1500", instances[0].Child("mtu").Value())
	require.NotNil(t, instances[1].Child("enabled"))
	assert.Empty(t, instances[1].Child("enabled").Text)

	addresses := interfaces.ChildrenNamed("address")
	require.Len(t, addresses, 2)
	assert.Equal(t, "10.0.0.2", addresses[1].Value())
}

func TestParseYAML_EmptyAndInvalid(t *testing.T) {
	tree, err := ParseYAML(nil, "urn:x")
	require.NoError(t, err)
	assert.True(t, tree.IsEmpty())

	_, err = ParseYAML([]byte("- a\n- b\n"), "urn:x")
	assert.Error(t, err)

	_, err = ParseYAML([]byte("a: [[1]]\n"), "urn:x")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	xmlPath := filepath.Join(dir, "cfg.xml")
	require.NoError(t, os.WriteFile(xmlPath, []byte(`<a xmlns="urn:x"><b>1</b></a>`), 0o600))
	tree, err := LoadFile(xmlPath, "urn:x")
	require.NoError(t, err)
	assert.Equal(t, "1", tree.Roots[0].Child("b").Value())

	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("a:\n  b: 1\n"), 0o600))
	tree, err = LoadFile(yamlPath, "urn:x")
	require.NoError(t, err)
	assert.Equal(t, "urn:x", tree.Roots[0].Name.Space)

	_, err = LoadFile(filepath.Join(dir, "missing.xml"), "urn:x")
	assert.Error(t, err)
}

func TestElementHelpers(t *testing.T) {
	elem := NewElement("urn:x", "a").Append(NewLeaf("urn:x", "b", "1"), NewLeaf("urn:x", "b", "2"))
	clone := elem.Clone()
	clone.Children[0].Text = "changed"

	assert.Equal(t, "1", elem.Child("b").Value())
	assert.Len(t, elem.ChildrenNamed("b"), 2)
	assert.Nil(t, elem.Child("missing"))

	var nilTree *Tree
	assert.True(t, nilTree.IsEmpty())
	assert.Nil(t, nilTree.Elements())
}
