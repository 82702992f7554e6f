package transapi

import (
	"errors"
	"fmt"

	"netconf-transapi/pkg/transapi/differ"
	"netconf-transapi/pkg/transapi/dispatch"
)

// ErrModuleClosed is returned when a transaction targets a closed module.
var ErrModuleClosed = errors.New("module is closed")

// Stage identifies the step of a transaction that failed.
type Stage string

const (
	StageInit     Stage = "init"
	StageDiff     Stage = "diff"
	StageRegistry Stage = "registry"
	StageDispatch Stage = "dispatch"
	StageRollback Stage = "rollback"
)

// Error represents a transaction failure with actionable context.
type Error struct {
	// Stage indicates where the failure occurred.
	Stage Stage

	// Module is the name of the module the transaction targeted.
	Module string

	// Message provides a detailed error description
	Message string

	// Cause is the underlying error that caused the failure
	Cause error

	// Hints provides actionable suggestions for fixing the problem
	Hints []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s stage failed", e.Stage)
	if e.Module != "" {
		msg += fmt.Sprintf(" for module %s", e.Module)
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsDivergence reports whether err marks a module whose state could not be
// restored by rollback.
func IsDivergence(err error) bool {
	var div *dispatch.DivergenceError
	return errors.As(err, &div)
}

func newInitError(module string, cause error) *Error {
	if errors.Is(cause, ErrModuleClosed) {
		return &Error{
			Stage:   StageInit,
			Module:  module,
			Message: "module is not available",
			Cause:   cause,
		}
	}
	return &Error{
		Stage:   StageInit,
		Module:  module,
		Message: "module initialization failed",
		Cause:   cause,
		Hints: []string{
			"The init hook runs once per module lifetime; the module refuses transactions until it is recreated",
			"Check that the backing system of the module is reachable",
		},
	}
}

func newDiffError(module string, cause error) *Error {
	e := &Error{
		Stage:   StageDiff,
		Module:  module,
		Message: "failed to compute configuration diff",
		Cause:   cause,
	}

	var scope *differ.ScopeError
	var malformed *differ.MalformedError
	switch {
	case errors.As(cause, &scope):
		e.Hints = []string{
			"Verify the element namespaces match the module schema",
			"Configuration of other modules must be applied through their own transaction",
		}
	case errors.As(cause, &malformed):
		e.Hints = []string{
			"Check that every list instance carries all of its key leaves",
			"Leaves and leaf-lists must not contain child elements",
		}
	}
	return e
}

func newDispatchError(module string, outcome *dispatch.Outcome) *Error {
	if outcome.Diverged() {
		return &Error{
			Stage:   StageRollback,
			Module:  module,
			Message: "rollback could not restore the previous configuration",
			Cause:   outcome.Err(),
			Hints: []string{
				"The module state no longer matches the running configuration",
				"Inspect the backing system and re-apply a known configuration",
			},
		}
	}

	msg := fmt.Sprintf("%d callback(s) failed", len(outcome.Failures))
	if outcome.RolledBack {
		msg += ", applied changes were rolled back"
	}
	return &Error{
		Stage:   StageDispatch,
		Module:  module,
		Message: msg,
		Cause:   outcome.Err(),
	}
}
