package differ

import "fmt"

// ScopeError is returned when a tree contains an element that no schema node
// of the module declares at that position.
type ScopeError struct {
	// Entry is the error entry recorded for the element.
	Entry  *Entry
	Module string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("element %s is outside the scope of module %s", e.Entry.Path, e.Module)
}

// MalformedError is returned when a tree is inconsistent with its schema,
// for example a list instance without its key leaf.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed configuration at %s: %s", e.Path, e.Reason)
}
