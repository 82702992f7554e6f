// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package introspection serves debug variables of a running process as JSON.
//
// Variables are published on an instance-scoped Registry rather than the
// process-wide expvar registry, so every run owns its own set:
//
//	registry := introspection.NewRegistry()
//	registry.Publish("modules", introspection.Func(func() (any, error) {
//	    return describeModules(modules), nil
//	}))
//
//	server := introspection.NewServer(":6060", registry)
//	g.Go(func() error { return server.Start(ctx) })
//
//	// GET /debug/vars          - list variable paths
//	// GET /debug/vars/all      - all variables
//	// GET /debug/vars/modules  - one variable
package introspection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for paths no variable is published at.
var ErrNotFound = errors.New("variable not found")

// Var is a debug variable. Get must be safe for concurrent use and return a
// JSON-serializable value.
type Var interface {
	Get() (any, error)
}

// Func is a Var computed on every query.
type Func func() (any, error)

// Get implements Var.
func (f Func) Get() (any, error) {
	return f()
}

// Registry is a thread-safe set of variables addressed by path.
type Registry struct {
	mu   sync.RWMutex
	vars map[string]Var
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		vars: make(map[string]Var),
	}
}

// Publish registers v at path, replacing any variable already there. Paths
// may be hierarchical, like "modules/system".
func (r *Registry) Publish(path string, v Var) {
	if path == "" {
		panic("introspection: empty path not allowed")
	}
	if v == nil {
		panic("introspection: nil Var not allowed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[path] = v
}

// Get returns the current value of the variable at path.
func (r *Registry) Get(path string) (any, error) {
	r.mu.RLock()
	v, ok := r.vars[path]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return v.Get()
}

// All returns the values of all variables keyed by path.
func (r *Registry) All() (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]any, len(r.vars))
	for path, v := range r.vars {
		value, err := v.Get()
		if err != nil {
			return nil, fmt.Errorf("failed to get variable %q: %w", path, err)
		}
		result[path] = value
	}
	return result, nil
}

// Paths returns the sorted paths of all variables.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.vars))
	for path := range r.vars {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of variables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.vars)
}
