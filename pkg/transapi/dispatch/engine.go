package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"netconf-transapi/pkg/transapi/callbacks"
	"netconf-transapi/pkg/transapi/completion"
	"netconf-transapi/pkg/transapi/differ"
)

// Invocation describes a finished callback invocation. It is passed to the
// observer registered with WithObserver.
type Invocation struct {
	Entry    *differ.Entry
	Change   callbacks.Change
	Err      error
	Duration time.Duration
}

// Engine dispatches the entries of a diff to the callbacks of one module.
type Engine struct {
	registry *callbacks.Registry
	opts     Options
	logger   *slog.Logger
	observer func(Invocation)
}

// New creates an Engine for the given registry.
//
// Example:
//
//	engine := dispatch.New(registry, dispatch.Options{
//	    Order:       dispatch.OrderRootToLeaf,
//	    ErrorOption: dispatch.ErrorRollback,
//	})
//	outcome := engine.Run(ctx, diff)
//	if outcome.Diverged() {
//	    // module state is inconsistent
//	}
func New(registry *callbacks.Registry, opts Options) *Engine {
	if opts.ErrorOption == "" {
		opts.ErrorOption = ErrorStop
	}
	if opts.Order == "" {
		opts.Order = OrderDefault
	}
	return &Engine{
		registry: registry,
		opts:     opts,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets a custom logger for the engine.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithObserver registers fn to be called after every callback invocation,
// reversals included.
func (e *Engine) WithObserver(fn func(Invocation)) *Engine {
	e.observer = fn
	return e
}

// Options returns the options the engine was created with.
func (e *Engine) Options() Options {
	return e.opts
}

// Run dispatches every entry of diff.
//
// Callbacks run synchronously, one at a time. ctx is handed to every callback
// but is not checked between invocations: once started, a run only ends early
// because of a callback failure under the stop or rollback error options.
func (e *Engine) Run(ctx context.Context, diff *differ.Result) *Outcome {
	r := &run{
		engine:  e,
		ctx:     ctx,
		diff:    diff,
		order:   e.opts.Order.Resolve(),
		tracker: completion.NewTracker(len(diff.Entries)),
		outcome: &Outcome{},
	}
	r.computePriorities()

	e.logger.Debug("Dispatching diff",
		"entries", len(diff.Entries),
		"order", r.order,
		"error_option", e.opts.ErrorOption,
	)

	r.visitAll(diff.Roots)
	r.outcome.Halted = r.halted

	if e.opts.ErrorOption == ErrorRollback && r.outcome.Failed() {
		r.rollback()
	}

	r.outcome.States = r.tracker.States()
	return r.outcome
}

// applied is a change whose callback succeeded and may have to be reverted.
type applied struct {
	entry    *differ.Entry
	callback *callbacks.Callback
	change   callbacks.Change
}

type run struct {
	engine  *Engine
	ctx     context.Context
	diff    *differ.Result
	order   Order
	tracker *completion.Tracker
	outcome *Outcome

	// priority holds the lowest callback priority within each entry's
	// subtree, math.MaxInt when the subtree has no callback.
	priority []int

	applied []applied
	halted  bool
}

// computePriorities derives subtree priorities bottom-up. Entries are stored
// parents first, so a reverse scan sees every child before its parent.
func (r *run) computePriorities() {
	r.priority = make([]int, len(r.diff.Entries))
	for id := len(r.diff.Entries) - 1; id >= 0; id-- {
		entry := r.diff.Entries[id]
		p := math.MaxInt
		if cb := r.engine.registry.Resolve(entry.SchemaPath); cb != nil {
			p = cb.Priority()
		}
		for _, child := range entry.Children {
			p = min(p, r.priority[child])
		}
		r.priority[id] = p
	}
}

// siblings orders entries by subtree priority. Entries without any callback
// keep their document order after the prioritized ones.
func (r *run) siblings(ids []int) []int {
	ordered := append([]int(nil), ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return r.priority[ordered[i]] < r.priority[ordered[j]]
	})
	return ordered
}

func (r *run) visitAll(ids []int) {
	for _, id := range r.siblings(ids) {
		if r.halted {
			return
		}
		if r.order == OrderRootToLeaf {
			r.visitRootToLeaf(id)
		} else {
			r.visitLeafToRoot(id)
		}
	}
}

func (r *run) visitLeafToRoot(id int) {
	entry := r.diff.Entries[id]
	if len(entry.Children) == 0 {
		r.fire(id, r.invoke(entry))
		return
	}

	r.fire(id, completion.EventBeginChildren)
	r.visitAll(entry.Children)
	state := r.fire(id, r.rollUp(entry))

	if state.Final() {
		return
	}
	if r.halted {
		r.fire(id, completion.EventFinalize)
		return
	}
	r.fire(id, r.invoke(entry))
}

func (r *run) visitRootToLeaf(id int) {
	entry := r.diff.Entries[id]
	state := r.fire(id, r.invoke(entry))
	if len(entry.Children) == 0 || state == completion.StateAppliedError {
		return
	}

	r.fire(id, completion.EventBeginChildren)
	r.visitAll(entry.Children)
	if state = r.fire(id, r.rollUp(entry)); !state.Final() {
		r.fire(id, completion.EventFinalize)
	}
}

// rollUp summarizes the children of an entry once they have been visited.
func (r *run) rollUp(entry *differ.Entry) completion.Event {
	states := make([]completion.State, len(entry.Children))
	missed := false
	for i, child := range entry.Children {
		states[i] = r.tracker.State(child)
		if states[i] == completion.StateNone {
			missed = true
		}
	}
	return completion.RollUp(states, missed)
}

func (r *run) fire(id int, ev completion.Event) completion.State {
	state, err := r.tracker.Fire(id, ev)
	if err != nil {
		r.engine.logger.Error("Completion state machine rejected event",
			"path", r.diff.Entries[id].Path,
			"error", err,
		)
	}
	return state
}

// invoke runs the callback of entry and returns the completion event.
func (r *run) invoke(entry *differ.Entry) completion.Event {
	cb := r.engine.registry.Resolve(entry.SchemaPath)
	if cb == nil || entry.Op == differ.OpNone {
		r.engine.logger.Debug("No callback registered, skipping",
			"path", entry.Path,
			"op", entry.Op,
		)
		r.outcome.Skipped = append(r.outcome.Skipped, entry.ID)
		return completion.EventCallbackSkipped
	}

	change := callbacks.Change{
		Op:         entry.Op,
		Path:       entry.Path,
		SchemaPath: entry.SchemaPath,
		Old:        entry.Old,
		New:        entry.New,
		Reorder:    entry.Reorder,
	}

	if err := r.call(entry, cb, change); err != nil {
		r.outcome.Failures = append(r.outcome.Failures, Failure{
			EntryID:    entry.ID,
			Path:       entry.Path,
			SchemaPath: entry.SchemaPath,
			Op:         entry.Op,
			Err:        err,
		})

		r.engine.logger.Warn("Callback failed",
			"path", entry.Path,
			"op", entry.Op,
			"error", err,
			"error_option", r.engine.opts.ErrorOption,
		)

		if r.engine.opts.ErrorOption.Halts() {
			r.halted = true
		}
		return completion.EventCallbackFailed
	}

	r.applied = append(r.applied, applied{entry: entry, callback: cb, change: change})
	r.outcome.Applied = append(r.outcome.Applied, entry.ID)
	return completion.EventCallbackSucceeded
}

// call invokes cb, converting panics into errors, and notifies the observer.
func (r *run) call(entry *differ.Entry, cb *callbacks.Callback, change callbacks.Change) (err error) {
	start := time.Now()
	r.outcome.Invoked++

	r.engine.logger.Debug("Invoking callback",
		"path", change.Path,
		"op", change.Op,
		"reversal", change.Reversal,
	)

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("callback panicked: %v", rec)
			}
		}()
		_, err = cb.Invoke(r.ctx, callbacks.Request{Change: &change})
	}()

	if err != nil {
		err = &CallbackError{Path: change.Path, Op: change.Op, Reversal: change.Reversal, Err: err}
	}

	if r.engine.observer != nil {
		r.engine.observer(Invocation{
			Entry:    entry,
			Change:   change,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return err
}

// rollback reverts applied changes in reverse invocation order. Every
// reversal is attempted once; failures are collected and never retried.
func (r *run) rollback() {
	r.engine.logger.Info("Rolling back applied changes",
		"changes", len(r.applied),
		"first_failure", r.outcome.Failures[0].Path,
	)

	for i := len(r.applied) - 1; i >= 0; i-- {
		a := r.applied[i]
		reversed := a.change.Reversed()
		if err := r.call(a.entry, a.callback, reversed); err != nil {
			r.engine.logger.Error("Rollback of change failed",
				"path", reversed.Path,
				"op", reversed.Op,
				"error", err,
			)
			r.outcome.ReversalFailures = append(r.outcome.ReversalFailures, Failure{
				EntryID:    a.entry.ID,
				Path:       reversed.Path,
				SchemaPath: reversed.SchemaPath,
				Op:         reversed.Op,
				Err:        err,
			})
		}
	}

	r.outcome.RolledBack = true
}
