package transapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/transapi/differ"
	"netconf-transapi/pkg/transapi/dispatch"
)

// Status is the verdict of a transaction.
type Status string

const (
	// StatusSuccess means every change was applied.
	StatusSuccess Status = "success"

	// StatusPartial means at least one callback failed. Depending on the
	// error option, applied changes stayed in effect or were rolled back.
	StatusPartial Status = "partial"

	// StatusFatal means rollback failed and the module state diverged.
	StatusFatal Status = "fatal"
)

// Failure describes one failing path reported to the protocol layer.
type Failure struct {
	Path   string
	Detail string
}

// Result represents the outcome of a transaction.
type Result struct {
	// ID uniquely identifies the transaction in logs and events.
	ID string

	// Module is the name of the module the transaction was applied to.
	Module string

	Status Status

	// Options are the dispatch options the transaction ran with.
	Options dispatch.Options

	// Diff contains the configuration differences that were applied. It is
	// nil when the trees were identical.
	Diff *differ.Result

	// Outcome is the raw dispatch outcome, nil when nothing was dispatched.
	Outcome *dispatch.Outcome

	// Failures lists failing paths in invocation order.
	Failures []Failure

	// Divergence describes the failed reversals of a fatal result.
	Divergence string

	// RolledBack is true when applied changes were reverted.
	RolledBack bool

	// ConfigModified is true when the transaction left changes in effect.
	ConfigModified bool

	// State is the operational state returned by the get_state hook, if it
	// was requested.
	State *configtree.Element

	Duration time.Duration

	// Message provides additional context about the result
	Message string
}

// Success reports whether every change was applied.
func (r *Result) Success() bool {
	return r.Status == StatusSuccess
}

// HasChanges returns true if the transaction saw configuration changes.
func (r *Result) HasChanges() bool {
	return r.Diff != nil && r.Diff.Summary.HasChanges()
}

// HasFailures returns true if any callback failed.
func (r *Result) HasFailures() bool {
	return len(r.Failures) > 0
}

// FailedPaths returns the failing paths in invocation order.
func (r *Result) FailedPaths() []string {
	paths := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		paths[i] = f.Path
	}
	return paths
}

// Err converts a non-successful verdict into an error. A fatal result wraps
// a *dispatch.DivergenceError.
func (r *Result) Err() error {
	if r.Success() || r.Outcome == nil {
		return nil
	}
	return newDispatchError(r.Module, r.Outcome)
}

// String returns a human-readable summary of the transaction result.
func (r *Result) String() string {
	var parts []string

	parts = append(parts,
		fmt.Sprintf("Status: %s", strings.ToUpper(string(r.Status))),
		fmt.Sprintf("Module: %s (transaction %s)", r.Module, r.ID),
		fmt.Sprintf("Options: order=%s error-option=%s", r.Options.Order, r.Options.ErrorOption),
		fmt.Sprintf("Duration: %s", r.Duration),
	)

	if r.Diff != nil {
		parts = append(parts, fmt.Sprintf("\nChanges: %s", r.Diff.Summary.String()))
	}

	if r.Outcome != nil {
		parts = append(parts, fmt.Sprintf("Applied: %d entries (%d callback invocations)",
			len(r.Outcome.Applied), r.Outcome.Invoked))
	}

	if r.HasFailures() {
		parts = append(parts, fmt.Sprintf("\nFailed: %d paths", len(r.Failures)))
		for _, f := range r.Failures {
			parts = append(parts, fmt.Sprintf("  - %s: %s", f.Path, f.Detail))
		}
	}

	if r.RolledBack {
		parts = append(parts, "Rollback: performed")
	}
	if r.Divergence != "" {
		parts = append(parts, fmt.Sprintf("Divergence: %s", r.Divergence))
	}

	if r.Message != "" {
		parts = append(parts, fmt.Sprintf("\nMessage: %s", r.Message))
	}

	return strings.Join(parts, "\n")
}

func newNoChangesResult(id, module string, opts dispatch.Options, duration time.Duration) *Result {
	return &Result{
		ID:       id,
		Module:   module,
		Status:   StatusSuccess,
		Options:  opts,
		Duration: duration,
		Message:  "No configuration changes detected",
	}
}

func newDispatchResult(id, module string, opts dispatch.Options, diff *differ.Result, outcome *dispatch.Outcome, duration time.Duration) *Result {
	r := &Result{
		ID:             id,
		Module:         module,
		Status:         StatusSuccess,
		Options:        opts,
		Diff:           diff,
		Outcome:        outcome,
		RolledBack:     outcome.RolledBack,
		ConfigModified: outcome.Modified(),
		Duration:       duration,
	}

	for _, f := range outcome.Failures {
		r.Failures = append(r.Failures, Failure{Path: f.Path, Detail: failureDetail(f)})
	}

	switch {
	case outcome.Diverged():
		r.Status = StatusFatal
		r.Divergence = outcome.Err().Error()
		r.Message = "Rollback failed, module state diverged"
	case outcome.Failed() && outcome.RolledBack:
		r.Status = StatusPartial
		r.Message = fmt.Sprintf("Callback failed at %s, applied changes were rolled back", r.Failures[0].Path)
	case outcome.Failed() && outcome.Halted:
		r.Status = StatusPartial
		r.Message = fmt.Sprintf("Callback failed at %s, dispatch stopped", r.Failures[0].Path)
	case outcome.Failed():
		r.Status = StatusPartial
		r.Message = fmt.Sprintf("%d callback(s) failed", len(r.Failures))
	default:
		r.Message = "Transaction applied successfully"
	}

	return r
}

// failureDetail strips the path prefix of a callback error, the path is
// reported separately.
func failureDetail(f dispatch.Failure) string {
	var cbErr *dispatch.CallbackError
	if errors.As(f.Err, &cbErr) && cbErr.Err != nil {
		return cbErr.Err.Error()
	}
	return f.Err.Error()
}
