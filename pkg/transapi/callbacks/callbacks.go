// Package callbacks provides the per-module registry of data and RPC
// callbacks.
//
// A Registry is assembled with a Builder when a module is registered and is
// immutable afterwards. Data callbacks are keyed by schema path, RPC callbacks
// by operation name. Both kinds are represented by the same Callback type and
// invoked through Callback.Invoke.
package callbacks

import (
	"context"
	"errors"
	"fmt"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/transapi/differ"
)

// MaxRPCArgs is the maximum number of arguments an RPC callback may declare.
const MaxRPCArgs = 64

var (
	// ErrDuplicate is returned when a path or RPC name is registered twice.
	ErrDuplicate = errors.New("duplicate callback registration")

	// ErrUnknownRPC is returned when invoking an RPC that has no callback.
	ErrUnknownRPC = errors.New("unknown RPC")
)

// Kind distinguishes data callbacks from RPC callbacks.
type Kind int

const (
	KindData Kind = iota
	KindRPC
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindRPC:
		return "rpc"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Change is the change handed to a data callback.
type Change struct {
	Op         differ.Operation
	Path       string
	SchemaPath string

	// Old and New are the affected elements before and after the change.
	Old *configtree.Element
	New *configtree.Element

	// Reorder is set for sibling-reorder changes.
	Reorder *differ.Reorder

	// Reversal is true when the change undoes an earlier change during rollback.
	Reversal bool
}

// Reversed returns the change that undoes c.
func (c Change) Reversed() Change {
	out := Change{
		Op:         c.Op.Reverse(),
		Path:       c.Path,
		SchemaPath: c.SchemaPath,
		Old:        c.New,
		New:        c.Old,
		Reversal:   true,
	}
	if c.Reorder != nil {
		out.Reorder = &differ.Reorder{Old: c.Reorder.New, New: c.Reorder.Old}
	}
	return out
}

// DataFunc applies a configuration change to the system a module manages.
// state is the opaque value supplied at registration.
type DataFunc func(ctx context.Context, state any, change Change) error

// RPCFunc executes an RPC. args holds one element per declared argument, in
// declaration order; arguments missing from the request are nil.
type RPCFunc func(ctx context.Context, args []*configtree.Element) (*configtree.Element, error)

// Request carries the input of a single invocation. Change is used by data
// callbacks, Input by RPC callbacks.
type Request struct {
	Change *Change
	Input  *configtree.Element
}

// Callback is a registered data or RPC handler.
type Callback struct {
	kind     Kind
	name     string
	priority int

	state any
	data  DataFunc

	rpc  RPCFunc
	args []string
}

// Kind returns whether the callback handles data changes or an RPC.
func (c *Callback) Kind() Kind { return c.kind }

// Name returns the schema path of a data callback or the RPC name.
func (c *Callback) Name() string { return c.name }

// Priority returns the registration index of a data callback. Lower values
// are dispatched first among siblings.
func (c *Callback) Priority() int { return c.priority }

// Args returns the declared RPC argument names.
func (c *Callback) Args() []string { return append([]string(nil), c.args...) }

// Invoke runs the callback. Data callbacks return a nil element.
func (c *Callback) Invoke(ctx context.Context, req Request) (*configtree.Element, error) {
	switch c.kind {
	case KindData:
		if req.Change == nil {
			return nil, fmt.Errorf("data callback %s invoked without a change", c.name)
		}
		return nil, c.data(ctx, c.state, *req.Change)
	case KindRPC:
		args, err := c.bind(req.Input)
		if err != nil {
			return nil, err
		}
		return c.rpc(ctx, args)
	default:
		return nil, fmt.Errorf("callback %s has unsupported kind %s", c.name, c.kind)
	}
}

// bind maps the children of an RPC input element to the declared arguments
// by local name.
func (c *Callback) bind(input *configtree.Element) ([]*configtree.Element, error) {
	args := make([]*configtree.Element, len(c.args))
	if input == nil {
		return args, nil
	}

	index := make(map[string]int, len(c.args))
	for i, name := range c.args {
		index[name] = i
	}

	for _, child := range input.Children {
		i, ok := index[child.Name.Local]
		if !ok {
			return nil, fmt.Errorf("rpc %s: unexpected argument %q", c.name, child.Name.Local)
		}
		if args[i] != nil {
			return nil, fmt.Errorf("rpc %s: argument %q given more than once", c.name, child.Name.Local)
		}
		args[i] = child
	}
	return args, nil
}
