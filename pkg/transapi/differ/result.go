package differ

import (
	"fmt"
	"strings"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/schema"
)

// NoParent is the Parent value of top-level entries.
const NoParent = -1

// Reorder describes the order of matched instances before and after a
// sibling reorder. Instances are identified by their key predicate
// (e.g. "[id='1']") or, for leaf-lists, their value.
type Reorder struct {
	Old []string
	New []string
}

// Entry is one recorded difference between the old and new configuration.
type Entry struct {
	// ID is the index of the entry in Result.Entries.
	ID int

	// Path is the instance path, including list key predicates.
	Path string

	// SchemaPath is the path of the schema node the entry affects. Callbacks
	// are resolved by this path.
	SchemaPath string

	Node *schema.Node
	Op   Operation

	// Old and New are the affected elements. Old is nil for additions, New
	// is nil for removals. Reorder entries reference no element.
	Old *configtree.Element
	New *configtree.Element

	Reorder *Reorder

	Parent   int
	Children []int
}

// String returns a short human-readable form of the entry.
func (e *Entry) String() string {
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

// Result is the ordered output of a diff.
type Result struct {
	// Entries holds every entry in depth-first, schema-declared order.
	// Parents precede their children.
	Entries []*Entry

	// Roots lists the IDs of top-level entries in order.
	Roots []int

	Summary Summary
}

// IsEmpty reports whether the diff recorded no change.
func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Entries) == 0
}

// Entry returns the entry with the given ID, or nil.
func (r *Result) Entry(id int) *Entry {
	if r == nil || id < 0 || id >= len(r.Entries) {
		return nil
	}
	return r.Entries[id]
}

// Paths returns the instance paths of all entries in order.
func (r *Result) Paths() []string {
	if r == nil {
		return nil
	}
	paths := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		paths = append(paths, e.Path)
	}
	return paths
}

// String renders the diff one entry per line, indented by depth.
func (r *Result) String() string {
	if r.IsEmpty() {
		return "no changes"
	}
	var b strings.Builder
	var write func(id, depth int)
	write = func(id, depth int) {
		e := r.Entries[id]
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), e)
		for _, child := range e.Children {
			write(child, depth+1)
		}
	}
	for _, id := range r.Roots {
		write(id, 0)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Summary counts diff entries per operation.
type Summary struct {
	Added     int
	Removed   int
	Modified  int
	Chained   int
	Reordered int
}

func (s *Summary) record(op Operation) {
	switch op {
	case OpAdd:
		s.Added++
	case OpRemove:
		s.Removed++
	case OpModify:
		s.Modified++
	case OpChain:
		s.Chained++
	case OpReorder:
		s.Reordered++
	}
}

// Count returns the number of entries with the given operation.
func (s Summary) Count(op Operation) int {
	switch op {
	case OpAdd:
		return s.Added
	case OpRemove:
		return s.Removed
	case OpModify:
		return s.Modified
	case OpChain:
		return s.Chained
	case OpReorder:
		return s.Reordered
	default:
		return 0
	}
}

// Total returns the number of entries.
func (s Summary) Total() int {
	return s.Added + s.Removed + s.Modified + s.Chained + s.Reordered
}

// HasChanges reports whether any entry was recorded.
func (s Summary) HasChanges() bool {
	return s.Total() > 0
}

// String returns a human-readable summary of the diff.
func (s Summary) String() string {
	if !s.HasChanges() {
		return "No changes"
	}

	var parts []string
	if s.Added > 0 {
		parts = append(parts, fmt.Sprintf("+%d added", s.Added))
	}
	if s.Removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d removed", s.Removed))
	}
	if s.Modified > 0 {
		parts = append(parts, fmt.Sprintf("~%d modified", s.Modified))
	}
	if s.Reordered > 0 {
		parts = append(parts, fmt.Sprintf("%d reordered", s.Reordered))
	}
	if s.Chained > 0 {
		parts = append(parts, fmt.Sprintf("%d chained", s.Chained))
	}

	return strings.Join(parts, ", ")
}
