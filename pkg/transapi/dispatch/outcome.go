package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"netconf-transapi/pkg/transapi/completion"
	"netconf-transapi/pkg/transapi/differ"
)

// CallbackError wraps the error returned by a data callback.
type CallbackError struct {
	Path     string
	Op       differ.Operation
	Reversal bool
	Err      error
}

func (e *CallbackError) Error() string {
	verb := "apply"
	if e.Reversal {
		verb = "revert"
	}
	return fmt.Sprintf("callback failed to %s %s at %s: %v", verb, e.Op, e.Path, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// DivergenceError is reported when rollback could not revert every applied
// change. The module state no longer matches any consistent configuration.
type DivergenceError struct {
	Failures []Failure
}

func (e *DivergenceError) Error() string {
	paths := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		paths[i] = f.Path
	}
	return fmt.Sprintf("rollback failed for %d change(s), module state diverged: %s",
		len(e.Failures), strings.Join(paths, ", "))
}

func (e *DivergenceError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Failure records one failed callback invocation.
type Failure struct {
	EntryID    int
	Path       string
	SchemaPath string
	Op         differ.Operation
	Err        error
}

// Outcome is the result of a dispatch run.
type Outcome struct {
	// States holds the completion state of every diff entry, indexed by entry ID.
	States []completion.State

	// Applied lists the entries whose callback succeeded, in invocation order.
	Applied []int

	// Skipped lists the visited entries that have no registered callback.
	Skipped []int

	// Invoked counts callback invocations, including failed ones and reversals.
	Invoked int

	// Failures lists failed callbacks in invocation order.
	Failures []Failure

	// Halted is true when dispatch stopped before visiting every entry.
	Halted bool

	// RolledBack is true when applied changes were reverted.
	RolledBack bool

	// ReversalFailures lists reverts that failed during rollback.
	ReversalFailures []Failure
}

// Failed reports whether any callback failed.
func (o *Outcome) Failed() bool {
	return len(o.Failures) > 0
}

// Diverged reports whether rollback left the module in an unknown state.
func (o *Outcome) Diverged() bool {
	return len(o.ReversalFailures) > 0
}

// FailedPaths returns the paths of failed entries in invocation order.
func (o *Outcome) FailedPaths() []string {
	paths := make([]string, len(o.Failures))
	for i, f := range o.Failures {
		paths[i] = f.Path
	}
	return paths
}

// Modified reports whether the run left any change in effect. Entries without
// a callback count as applied. A complete rollback leaves nothing in effect.
func (o *Outcome) Modified() bool {
	if o.RolledBack && !o.Diverged() {
		return false
	}
	return len(o.Applied) > 0 || len(o.Skipped) > 0
}

// Err returns nil when every callback succeeded, a *DivergenceError when
// rollback failed, and the joined callback errors otherwise.
func (o *Outcome) Err() error {
	if o.Diverged() {
		return &DivergenceError{Failures: o.ReversalFailures}
	}
	if !o.Failed() {
		return nil
	}
	errs := make([]error, len(o.Failures))
	for i, f := range o.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}
