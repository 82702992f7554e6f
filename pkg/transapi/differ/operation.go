package differ

import "fmt"

// Operation is the kind of change recorded by a diff entry.
type Operation int

const (
	OpNone Operation = iota
	OpAdd
	OpRemove
	OpModify
	// OpChain marks a node that is unchanged itself but has changed descendants.
	OpChain
	// OpReorder marks a list or leaf-list whose matched instances changed order.
	OpReorder
	// OpError marks an element that cannot be interpreted by the schema.
	OpError
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpModify:
		return "modify"
	case OpChain:
		return "chain"
	case OpReorder:
		return "sibling-reorder"
	case OpError:
		return "error"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Reverse returns the operation that undoes o. Add and remove swap; every
// other operation is its own inverse once old and new values are exchanged.
func (o Operation) Reverse() Operation {
	switch o {
	case OpAdd:
		return OpRemove
	case OpRemove:
		return OpAdd
	default:
		return o
	}
}
