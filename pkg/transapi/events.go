package transapi

import (
	"time"

	"netconf-transapi/pkg/transapi/differ"
)

// Transaction lifecycle event types published on the event bus.
const (
	EventTypeTransactionStarted   = "transaction.started"
	EventTypeDiffComputed         = "diff.computed"
	EventTypeCallbackInvoked      = "callback.invoked"
	EventTypeRollbackPerformed    = "rollback.performed"
	EventTypeTransactionCompleted = "transaction.completed"
)

// TransactionStartedEvent is published before a transaction computes its diff.
type TransactionStartedEvent struct {
	TransactionID string
	Module        string
	timestamp     time.Time
}

// NewTransactionStartedEvent creates a new TransactionStartedEvent.
func NewTransactionStartedEvent(id, module string) *TransactionStartedEvent {
	return &TransactionStartedEvent{
		TransactionID: id,
		Module:        module,
		timestamp:     time.Now(),
	}
}

func (e *TransactionStartedEvent) EventType() string    { return EventTypeTransactionStarted }
func (e *TransactionStartedEvent) Timestamp() time.Time { return e.timestamp }

// DiffComputedEvent carries the diff of a transaction. Consumers must not
// modify the diff.
type DiffComputedEvent struct {
	TransactionID string
	Module        string
	Diff          *differ.Result
	timestamp     time.Time
}

// NewDiffComputedEvent creates a new DiffComputedEvent.
func NewDiffComputedEvent(id, module string, diff *differ.Result) *DiffComputedEvent {
	return &DiffComputedEvent{
		TransactionID: id,
		Module:        module,
		Diff:          diff,
		timestamp:     time.Now(),
	}
}

func (e *DiffComputedEvent) EventType() string    { return EventTypeDiffComputed }
func (e *DiffComputedEvent) Timestamp() time.Time { return e.timestamp }

// CallbackInvokedEvent is published after every data callback invocation,
// reversals included.
type CallbackInvokedEvent struct {
	TransactionID string
	Module        string
	Path          string
	Operation     differ.Operation
	Reversal      bool

	// Error is the failure message, empty on success.
	Error      string
	DurationMs int64
	timestamp  time.Time
}

// NewCallbackInvokedEvent creates a new CallbackInvokedEvent.
func NewCallbackInvokedEvent(id, module, path string, op differ.Operation, reversal bool, err error, durationMs int64) *CallbackInvokedEvent {
	evt := &CallbackInvokedEvent{
		TransactionID: id,
		Module:        module,
		Path:          path,
		Operation:     op,
		Reversal:      reversal,
		DurationMs:    durationMs,
		timestamp:     time.Now(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

func (e *CallbackInvokedEvent) EventType() string    { return EventTypeCallbackInvoked }
func (e *CallbackInvokedEvent) Timestamp() time.Time { return e.timestamp }

// RollbackPerformedEvent is published after a rollback finished.
type RollbackPerformedEvent struct {
	TransactionID string
	Module        string
	Reverted      int

	// FailedPaths lists the reversals that failed. A non-empty list means the
	// module state diverged.
	FailedPaths []string
	timestamp   time.Time
}

// NewRollbackPerformedEvent creates a new RollbackPerformedEvent.
func NewRollbackPerformedEvent(id, module string, reverted int, failedPaths []string) *RollbackPerformedEvent {
	var paths []string
	if len(failedPaths) > 0 {
		paths = make([]string, len(failedPaths))
		copy(paths, failedPaths)
	}
	return &RollbackPerformedEvent{
		TransactionID: id,
		Module:        module,
		Reverted:      reverted,
		FailedPaths:   paths,
		timestamp:     time.Now(),
	}
}

func (e *RollbackPerformedEvent) EventType() string    { return EventTypeRollbackPerformed }
func (e *RollbackPerformedEvent) Timestamp() time.Time { return e.timestamp }

// Diverged reports whether any reversal failed.
func (e *RollbackPerformedEvent) Diverged() bool { return len(e.FailedPaths) > 0 }

// TransactionCompletedEvent is published once per transaction, including
// transactions that failed before dispatch. Result is nil in that case and
// Error holds the failure.
type TransactionCompletedEvent struct {
	TransactionID string
	Module        string
	Result        *Result
	Error         string
	DurationMs    int64
	timestamp     time.Time
}

// NewTransactionCompletedEvent creates a new TransactionCompletedEvent.
func NewTransactionCompletedEvent(id, module string, result *Result, err error, durationMs int64) *TransactionCompletedEvent {
	evt := &TransactionCompletedEvent{
		TransactionID: id,
		Module:        module,
		Result:        result,
		DurationMs:    durationMs,
		timestamp:     time.Now(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

func (e *TransactionCompletedEvent) EventType() string    { return EventTypeTransactionCompleted }
func (e *TransactionCompletedEvent) Timestamp() time.Time { return e.timestamp }

// Status returns the verdict of the transaction, or "error" when it failed
// before dispatch.
func (e *TransactionCompletedEvent) Status() string {
	if e.Result == nil {
		return "error"
	}
	return string(e.Result.Status)
}
