// Package dispatch invokes data callbacks for the entries of a diff.
//
// The engine walks the diff tree in the module's traversal order, resolves
// the callback of each entry by schema path, tracks completion per entry and
// applies the module's error option when a callback fails.
package dispatch

import (
	"fmt"
	"strings"
)

// Order is the traversal order of data callbacks.
type Order string

const (
	// OrderDefault resolves to OrderLeafToRoot.
	OrderDefault Order = "default"

	// OrderLeafToRoot invokes the callbacks of children before their ancestor.
	OrderLeafToRoot Order = "leaf-to-root"

	// OrderRootToLeaf invokes the callback of an ancestor before its children.
	OrderRootToLeaf Order = "root-to-leaf"
)

// String returns the string representation of the order.
func (o Order) String() string {
	return string(o)
}

// Resolve maps OrderDefault (and the empty order) to the concrete order used
// for traversal.
func (o Order) Resolve() Order {
	if o == OrderRootToLeaf {
		return OrderRootToLeaf
	}
	return OrderLeafToRoot
}

// ParseOrder converts a configuration value into an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderDefault:
		return OrderDefault, nil
	case OrderLeafToRoot:
		return OrderLeafToRoot, nil
	case OrderRootToLeaf:
		return OrderRootToLeaf, nil
	default:
		return "", fmt.Errorf("invalid callbacks order %q (must be one of: default, leaf-to-root, root-to-leaf)", s)
	}
}

// ErrorOption selects how dispatch reacts to a failing callback.
type ErrorOption string

const (
	// ErrorStop halts dispatch at the first failure. Applied changes stay applied.
	ErrorStop ErrorOption = "stop"

	// ErrorContinue records failures and dispatches every remaining entry.
	ErrorContinue ErrorOption = "continue"

	// ErrorRollback halts at the first failure and then reverts every
	// applied change in reverse invocation order.
	ErrorRollback ErrorOption = "rollback"
)

// String returns the string representation of the error option.
func (e ErrorOption) String() string {
	return string(e)
}

// Halts reports whether the first failure stops dispatch.
func (e ErrorOption) Halts() bool {
	return e != ErrorContinue
}

// ParseErrorOption converts a configuration value into an ErrorOption. The
// protocol spellings ("stop-on-error", "continue-on-error",
// "rollback-on-error") are accepted as well.
func ParseErrorOption(s string) (ErrorOption, error) {
	normalized := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-on-error")
	switch ErrorOption(normalized) {
	case "", ErrorStop:
		return ErrorStop, nil
	case ErrorContinue:
		return ErrorContinue, nil
	case ErrorRollback:
		return ErrorRollback, nil
	default:
		return "", fmt.Errorf("invalid error option %q (must be one of: stop, continue, rollback)", s)
	}
}

// Options configures a dispatch run.
type Options struct {
	Order       Order
	ErrorOption ErrorOption
}

// DefaultOptions returns leaf-to-root traversal with the stop error option.
func DefaultOptions() Options {
	return Options{
		Order:       OrderDefault,
		ErrorOption: ErrorStop,
	}
}
