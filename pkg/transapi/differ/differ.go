// Package differ computes the changes between two configuration trees of a
// module.
//
// The differ walks both trees depth-first in schema-declared order. List
// instances are matched by their key leaves, never by position, and leaf-lists
// are compared as multisets. Containers that only changed below are recorded
// as chain entries so that order-sensitive dispatch still visits them.
package differ

import (
	"slices"
	"strconv"
	"strings"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/schema"
)

// Differ compares configuration trees against a schema model.
type Differ struct {
	model *schema.Model
}

// New creates a Differ for the given schema model.
func New(model *schema.Model) *Differ {
	return &Differ{model: model}
}

// Diff computes the changes needed to go from oldTree to newTree.
//
// A nil tree is treated as empty. Diff fails with a *ScopeError when either
// tree holds an element the schema does not declare, and with a
// *MalformedError when a tree contradicts the schema (missing or duplicate
// list keys, repeated leaves). No partial result is returned on error.
func (d *Differ) Diff(oldTree, newTree *configtree.Tree) (*Result, error) {
	w := &walker{model: d.model, result: &Result{}}

	root := d.model.Root()
	if err := w.diffChildren(root.ID, "", NoParent, oldTree.Elements(), newTree.Elements()); err != nil {
		return nil, err
	}

	for _, e := range w.result.Entries {
		w.result.Summary.record(e.Op)
	}
	return w.result, nil
}

type walker struct {
	model  *schema.Model
	result *Result
}

// emit records an entry below parent and returns its ID.
func (w *walker) emit(parent int, e *Entry) int {
	e.ID = len(w.result.Entries)
	e.Parent = parent
	w.result.Entries = append(w.result.Entries, e)
	if parent == NoParent {
		w.result.Roots = append(w.result.Roots, e.ID)
	} else {
		p := w.result.Entries[parent]
		p.Children = append(p.Children, e.ID)
	}
	return e.ID
}

// retract removes the most recently emitted entry, which must have no children.
func (w *walker) retract(id int) {
	e := w.result.Entries[id]
	w.result.Entries = w.result.Entries[:id]
	if e.Parent == NoParent {
		w.result.Roots = w.result.Roots[:len(w.result.Roots)-1]
	} else {
		p := w.result.Entries[e.Parent]
		p.Children = p.Children[:len(p.Children)-1]
	}
}

// group assigns elements to the data children of a schema node, keeping
// document order within each group.
func (w *walker) group(schemaParent schema.NodeID, path string, elems []*configtree.Element) (map[schema.NodeID][]*configtree.Element, error) {
	groups := make(map[schema.NodeID][]*configtree.Element)
	for _, elem := range elems {
		node, ok := w.model.MatchChild(schemaParent, elem.Name.Local, elem.Name.Space)
		if !ok {
			return nil, w.scopeError(path, elem)
		}
		groups[node.ID] = append(groups[node.ID], elem)
	}
	return groups, nil
}

func (w *walker) scopeError(path string, elem *configtree.Element) error {
	return &ScopeError{
		Entry: &Entry{
			ID:     -1,
			Path:   path + "/" + elem.Name.Local,
			Op:     OpError,
			Parent: NoParent,
			New:    elem,
		},
		Module: w.model.Name(),
	}
}

func (w *walker) diffChildren(schemaParent schema.NodeID, path string, parent int, oldElems, newElems []*configtree.Element) error {
	oldGroups, err := w.group(schemaParent, path, oldElems)
	if err != nil {
		return err
	}
	newGroups, err := w.group(schemaParent, path, newElems)
	if err != nil {
		return err
	}

	for _, node := range w.model.DataChildren(schemaParent) {
		olds, news := oldGroups[node.ID], newGroups[node.ID]
		if len(olds) == 0 && len(news) == 0 {
			continue
		}

		switch node.Kind {
		case schema.KindLeaf, schema.KindAnyXML:
			err = w.diffLeaf(node, path, parent, olds, news)
		case schema.KindContainer:
			err = w.diffContainer(node, path, parent, olds, news)
		case schema.KindList:
			err = w.diffList(node, path, parent, olds, news)
		case schema.KindLeafList:
			err = w.diffLeafList(node, path, parent, olds, news)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) diffLeaf(node *schema.Node, path string, parent int, olds, news []*configtree.Element) error {
	instancePath := path + "/" + node.Name
	if len(olds) > 1 || len(news) > 1 {
		return &MalformedError{Path: instancePath, Reason: "leaf appears more than once"}
	}
	oldElem, newElem := first(olds), first(news)
	for _, elem := range []*configtree.Element{oldElem, newElem} {
		if err := w.validate(node, instancePath, elem); err != nil {
			return err
		}
	}

	var op Operation
	switch {
	case oldElem == nil:
		op = OpAdd
	case newElem == nil:
		op = OpRemove
	case !sameValue(node, oldElem, newElem):
		op = OpModify
	default:
		return nil
	}

	w.emit(parent, &Entry{Path: instancePath, SchemaPath: node.Path, Node: node, Op: op, Old: oldElem, New: newElem})
	return nil
}

func (w *walker) diffContainer(node *schema.Node, path string, parent int, olds, news []*configtree.Element) error {
	instancePath := path + "/" + node.Name
	if len(olds) > 1 || len(news) > 1 {
		return &MalformedError{Path: instancePath, Reason: "container appears more than once"}
	}
	return w.diffInstance(node, instancePath, parent, first(olds), first(news))
}

// diffInstance compares one container or list instance. A side that is
// absent produces a single add or remove entry for the whole subtree.
func (w *walker) diffInstance(node *schema.Node, instancePath string, parent int, oldElem, newElem *configtree.Element) error {
	switch {
	case oldElem == nil:
		if err := w.validate(node, instancePath, newElem); err != nil {
			return err
		}
		w.emit(parent, &Entry{Path: instancePath, SchemaPath: node.Path, Node: node, Op: OpAdd, New: newElem})
		return nil
	case newElem == nil:
		if err := w.validate(node, instancePath, oldElem); err != nil {
			return err
		}
		w.emit(parent, &Entry{Path: instancePath, SchemaPath: node.Path, Node: node, Op: OpRemove, Old: oldElem})
		return nil
	}

	id := w.emit(parent, &Entry{Path: instancePath, SchemaPath: node.Path, Node: node, Op: OpChain, Old: oldElem, New: newElem})
	if err := w.diffChildren(node.ID, instancePath, id, oldElem.Children, newElem.Children); err != nil {
		return err
	}
	if len(w.result.Entries[id].Children) == 0 {
		w.retract(id)
	}
	return nil
}

// instance is one keyed list entry. id is the encoded key tuple used for
// matching, predicate the rendered path segment.
type instance struct {
	id        string
	predicate string
	elem      *configtree.Element
}

func (w *walker) diffList(node *schema.Node, path string, parent int, olds, news []*configtree.Element) error {
	listPath := path + "/" + node.Name

	oldInstances, err := keyInstances(node, listPath, olds)
	if err != nil {
		return err
	}
	newInstances, err := keyInstances(node, listPath, news)
	if err != nil {
		return err
	}

	oldByKey := indexInstances(oldInstances)
	newByKey := indexInstances(newInstances)

	var matchedOld, matchedNew []string

	for _, inst := range oldInstances {
		if _, ok := newByKey[inst.id]; ok {
			matchedOld = append(matchedOld, inst.predicate)
			continue
		}
		if err := w.diffInstance(node, listPath+inst.predicate, parent, inst.elem, nil); err != nil {
			return err
		}
	}

	for _, inst := range newInstances {
		oldElem, ok := oldByKey[inst.id]
		if ok {
			matchedNew = append(matchedNew, inst.predicate)
		}
		if err := w.diffInstance(node, listPath+inst.predicate, parent, oldElem, inst.elem); err != nil {
			return err
		}
	}

	w.emitReorder(node, listPath, parent, matchedOld, matchedNew)
	return nil
}

func (w *walker) diffLeafList(node *schema.Node, path string, parent int, olds, news []*configtree.Element) error {
	listPath := path + "/" + node.Name
	for _, elem := range append(append([]*configtree.Element(nil), olds...), news...) {
		if err := w.validate(node, listPath, elem); err != nil {
			return err
		}
	}

	remaining := make(map[string]int)
	for _, elem := range news {
		remaining[elem.Value()]++
	}

	var matchedOld, matchedNew []string
	for _, elem := range olds {
		value := elem.Value()
		if remaining[value] > 0 {
			remaining[value]--
			matchedOld = append(matchedOld, value)
			continue
		}
		w.emit(parent, &Entry{Path: listPath + valuePredicate(value), SchemaPath: node.Path, Node: node, Op: OpRemove, Old: elem})
	}

	remaining = make(map[string]int)
	for _, elem := range olds {
		remaining[elem.Value()]++
	}
	for _, elem := range news {
		value := elem.Value()
		if remaining[value] > 0 {
			remaining[value]--
			matchedNew = append(matchedNew, value)
			continue
		}
		w.emit(parent, &Entry{Path: listPath + valuePredicate(value), SchemaPath: node.Path, Node: node, Op: OpAdd, New: elem})
	}

	w.emitReorder(node, listPath, parent, matchedOld, matchedNew)
	return nil
}

// emitReorder records a single reorder entry for a list node when the
// relative order of its matched instances changed. System-ordered nodes
// never report reorders.
func (w *walker) emitReorder(node *schema.Node, listPath string, parent int, oldOrder, newOrder []string) {
	if !node.OrderedByUser || slices.Equal(oldOrder, newOrder) {
		return
	}
	w.emit(parent, &Entry{
		Path:       listPath,
		SchemaPath: node.Path,
		Node:       node,
		Op:         OpReorder,
		Reorder:    &Reorder{Old: oldOrder, New: newOrder},
	})
}

// validate checks that an element subtree which is added or removed as a
// whole stays within the schema.
func (w *walker) validate(node *schema.Node, path string, elem *configtree.Element) error {
	if elem == nil {
		return nil
	}
	switch node.Kind {
	case schema.KindAnyXML:
		return nil
	case schema.KindLeaf, schema.KindLeafList:
		if len(elem.Children) > 0 {
			return &MalformedError{Path: path, Reason: node.Kind.String() + " cannot contain elements"}
		}
		return nil
	}

	for _, child := range elem.Children {
		childNode, ok := w.model.MatchChild(node.ID, child.Name.Local, child.Name.Space)
		if !ok {
			return w.scopeError(path, child)
		}
		if err := w.validate(childNode, path+"/"+child.Name.Local, child); err != nil {
			return err
		}
	}
	return nil
}

// keyInstances identifies every list instance by its ordered key tuple and
// rejects instances that lack a key or repeat one.
func keyInstances(node *schema.Node, listPath string, elems []*configtree.Element) ([]instance, error) {
	out := make([]instance, 0, len(elems))
	seen := make(map[string]bool, len(elems))
	for _, elem := range elems {
		var id, predicate strings.Builder
		for _, key := range node.Keys {
			keyElems := elem.ChildrenNamed(key)
			if len(keyElems) != 1 {
				return nil, &MalformedError{Path: listPath, Reason: "list instance must have exactly one key leaf " + key}
			}
			value := keyElems[0].Value()
			// length prefix keeps the encoding unambiguous for any value
			id.WriteString(strconv.Itoa(len(value)) + ":" + value)
			predicate.WriteString("[" + key + "=" + quote(value) + "]")
		}
		inst := instance{id: id.String(), predicate: predicate.String(), elem: elem}
		if seen[inst.id] {
			return nil, &MalformedError{Path: listPath + inst.predicate, Reason: "duplicate list instance"}
		}
		seen[inst.id] = true
		out = append(out, inst)
	}
	return out, nil
}

func indexInstances(instances []instance) map[string]*configtree.Element {
	index := make(map[string]*configtree.Element, len(instances))
	for _, inst := range instances {
		index[inst.id] = inst.elem
	}
	return index
}

func sameValue(node *schema.Node, a, b *configtree.Element) bool {
	if node.Kind == schema.KindAnyXML {
		return canonicalContent(a) == canonicalContent(b)
	}
	return a.Value() == b.Value()
}

// canonicalContent compares anyxml bodies without the wrapper element name.
func canonicalContent(e *configtree.Element) string {
	var b strings.Builder
	b.WriteString(e.Value())
	for _, child := range e.Children {
		b.WriteString(child.Canonical())
	}
	return b.String()
}

func valuePredicate(value string) string {
	return "[.=" + quote(value) + "]"
}

// quote renders s as an XPath string literal. Values holding both quote
// characters are built with concat().
func quote(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, 2*len(parts)-1)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

func first(elems []*configtree.Element) *configtree.Element {
	if len(elems) == 0 {
		return nil
	}
	return elems[0]
}
