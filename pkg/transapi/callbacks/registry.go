package callbacks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/schema"
)

// RegistrationError describes a rejected registration.
type RegistrationError struct {
	Kind   Kind
	Name   string
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	msg := fmt.Sprintf("cannot register %s callback %q", e.Kind, e.Name)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Builder collects registrations for one module.
type Builder struct {
	model *schema.Model
	data  map[string]*Callback
	rpcs  map[string]*Callback
	errs  []error
	next  int
	built bool
}

// NewBuilder creates a Builder that validates data paths against model.
func NewBuilder(model *schema.Model) *Builder {
	return &Builder{
		model: model,
		data:  make(map[string]*Callback),
		rpcs:  make(map[string]*Callback),
	}
}

// RegisterData registers fn for changes at the given schema path. state is
// passed to every invocation. Callbacks registered earlier are dispatched
// first among siblings.
func (b *Builder) RegisterData(path string, fn DataFunc, state any) error {
	if err := b.checkData(path, fn); err != nil {
		b.errs = append(b.errs, err)
		return err
	}

	b.data[path] = &Callback{
		kind:     KindData,
		name:     path,
		priority: b.next,
		state:    state,
		data:     fn,
	}
	b.next++
	return nil
}

func (b *Builder) checkData(path string, fn DataFunc) error {
	reject := func(reason string, err error) error {
		return &RegistrationError{Kind: KindData, Name: path, Reason: reason, Err: err}
	}

	switch {
	case b.built:
		return reject("registry already built", nil)
	case fn == nil:
		return reject("handler is nil", nil)
	case !strings.HasPrefix(path, "/") || path == "/":
		return reject("path must be absolute and name a node", nil)
	case strings.HasSuffix(path, "/") || strings.Contains(path, "//"):
		return reject("path has an empty segment", nil)
	case strings.ContainsAny(path, "[]"):
		return reject("path must be a schema path without predicates", nil)
	}

	if _, err := b.model.Resolve(path); err != nil {
		return reject("", err)
	}
	if _, exists := b.data[path]; exists {
		return reject("", ErrDuplicate)
	}
	return nil
}

// RegisterRPC registers fn for the named RPC. args lists the argument names
// in the order fn receives them.
func (b *Builder) RegisterRPC(name string, fn RPCFunc, args ...string) error {
	if err := b.checkRPC(name, fn, args); err != nil {
		b.errs = append(b.errs, err)
		return err
	}

	b.rpcs[name] = &Callback{
		kind: KindRPC,
		name: name,
		rpc:  fn,
		args: append([]string(nil), args...),
	}
	return nil
}

func (b *Builder) checkRPC(name string, fn RPCFunc, args []string) error {
	reject := func(reason string, err error) error {
		return &RegistrationError{Kind: KindRPC, Name: name, Reason: reason, Err: err}
	}

	switch {
	case b.built:
		return reject("registry already built", nil)
	case strings.TrimSpace(name) == "":
		return reject("name cannot be empty", nil)
	case fn == nil:
		return reject("handler is nil", nil)
	case len(args) > MaxRPCArgs:
		return reject(fmt.Sprintf("%d arguments exceed the limit of %d", len(args), MaxRPCArgs), nil)
	}

	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		if arg == "" {
			return reject("argument name cannot be empty", nil)
		}
		if seen[arg] {
			return reject(fmt.Sprintf("argument %q declared twice", arg), nil)
		}
		seen[arg] = true
	}

	if _, exists := b.rpcs[name]; exists {
		return reject("", ErrDuplicate)
	}
	return nil
}

// Build returns the immutable registry. It fails if any registration was
// rejected, so callers may register without checking each error.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	b.built = true
	return &Registry{model: b.model, data: b.data, rpcs: b.rpcs}, nil
}

// Registry is the immutable set of callbacks of a module.
type Registry struct {
	model *schema.Model
	data  map[string]*Callback
	rpcs  map[string]*Callback
}

// Model returns the schema model the registry was validated against.
func (r *Registry) Model() *schema.Model {
	return r.model
}

// Resolve returns the data callback registered at a schema path, or nil.
func (r *Registry) Resolve(path string) *Callback {
	if r == nil {
		return nil
	}
	return r.data[path]
}

// RPC returns the callback registered for an RPC name, or nil.
func (r *Registry) RPC(name string) *Callback {
	if r == nil {
		return nil
	}
	return r.rpcs[name]
}

// DataPaths returns the registered schema paths in priority order.
func (r *Registry) DataPaths() []string {
	callbacks := make([]*Callback, 0, len(r.data))
	for _, cb := range r.data {
		callbacks = append(callbacks, cb)
	}
	sort.Slice(callbacks, func(i, j int) bool {
		return callbacks[i].priority < callbacks[j].priority
	})

	paths := make([]string, len(callbacks))
	for i, cb := range callbacks {
		paths[i] = cb.name
	}
	return paths
}

// RPCNames returns the registered RPC names sorted alphabetically.
func (r *Registry) RPCNames() []string {
	names := make([]string, 0, len(r.rpcs))
	for name := range r.rpcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InvokeRPC runs the RPC callback registered for name with the children of
// input bound to its declared arguments.
func (r *Registry) InvokeRPC(ctx context.Context, name string, input *configtree.Element) (*configtree.Element, error) {
	cb := r.RPC(name)
	if cb == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRPC, name)
	}
	return cb.Invoke(ctx, Request{Input: input})
}
