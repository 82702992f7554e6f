// Package transapi applies configuration transactions to modules.
//
// A transaction compares the previous and the proposed configuration of one
// module, dispatches the resulting changes to the module's data callbacks and
// reports a verdict: success, partial failure or fatal divergence.
package transapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"netconf-transapi/pkg/configtree"
	"netconf-transapi/pkg/events"
	"netconf-transapi/pkg/transapi/differ"
	"netconf-transapi/pkg/transapi/dispatch"
)

// Coordinator runs transactions. It holds no per-module state, one
// coordinator can serve any number of modules.
type Coordinator struct {
	logger  *slog.Logger
	bus     *events.EventBus
	metrics *Metrics
}

// New creates a new Coordinator.
//
// Example:
//
//	coordinator := transapi.New().WithLogger(logger)
//	result, err := coordinator.Apply(ctx, module, running, candidate)
//	if err != nil {
//	    // the transaction did not reach dispatch
//	}
//	if !result.Success() {
//	    reply(result.Failures)
//	}
func New() *Coordinator {
	return &Coordinator{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets a custom logger for the coordinator.
func (c *Coordinator) WithLogger(logger *slog.Logger) *Coordinator {
	c.logger = logger
	return c
}

// WithEventBus publishes transaction lifecycle events on bus.
func (c *Coordinator) WithEventBus(bus *events.EventBus) *Coordinator {
	c.bus = bus
	return c
}

// WithMetrics records transaction metrics.
func (c *Coordinator) WithMetrics(metrics *Metrics) *Coordinator {
	c.metrics = metrics
	return c
}

func (c *Coordinator) publish(evt events.Event) {
	if c.bus != nil {
		c.bus.Publish(evt)
	}
}

// Diff computes the changes between two trees of a module without invoking
// any callback.
func (c *Coordinator) Diff(ctx context.Context, m *Module, oldTree, newTree *configtree.Tree) (*differ.Result, error) {
	diff, err := m.differ.Diff(oldTree, newTree)
	if err != nil {
		return nil, newDiffError(m.Name(), err)
	}

	c.logger.Info("Dry-run mode: Changes detected but not applied",
		"module", m.Name(),
		"entries", len(diff.Entries),
		"summary", diff.Summary.String(),
	)
	for _, e := range diff.Entries {
		c.logger.Debug("Would dispatch entry",
			"path", e.Path,
			"op", e.Op,
			"callback", m.registry.Resolve(e.SchemaPath) != nil,
		)
	}
	return diff, nil
}

// Apply moves module m from oldTree to newTree.
//
// The transaction:
//  1. Runs the init hook if this is the first use of the module
//  2. Computes the diff of both trees
//  3. Returns success immediately when nothing changed
//  4. Dispatches the diff under the module's order and error option
//  5. Sets the config_modified flag when changes stayed in effect
//  6. Refreshes operational state if the module asks for it
//
// A non-nil error means the transaction never reached dispatch: the module
// is closed, init failed, or the diff was rejected. Callback failures are
// reported through the Result status instead.
func (c *Coordinator) Apply(ctx context.Context, m *Module, oldTree, newTree *configtree.Tree) (*Result, error) {
	startTime := time.Now()
	id := uuid.NewString()
	opts := m.config.Options()
	logger := c.logger.With("module", m.Name(), "transaction_id", id)

	m.mu.Lock()
	defer m.mu.Unlock()

	logger.Info("Starting transaction",
		"order", opts.Order,
		"error_option", opts.ErrorOption,
	)
	c.publish(NewTransactionStartedEvent(id, m.Name()))

	if err := m.ensureInit(ctx); err != nil {
		return nil, c.abort(logger, id, m.Name(), startTime, newInitError(m.Name(), err))
	}

	diff, err := m.differ.Diff(oldTree, newTree)
	if err != nil {
		return nil, c.abort(logger, id, m.Name(), startTime, newDiffError(m.Name(), err))
	}
	c.metrics.RecordDiff(m.Name(), diff.Summary)
	c.publish(NewDiffComputedEvent(id, m.Name(), diff))

	if diff.IsEmpty() {
		logger.Info("No configuration changes detected")
		result := newNoChangesResult(id, m.Name(), opts, time.Since(startTime))
		c.complete(logger, result)
		return result, nil
	}

	logger.Info("Configuration changes detected",
		"entries", len(diff.Entries),
		"added", diff.Summary.Added,
		"removed", diff.Summary.Removed,
		"modified", diff.Summary.Modified,
		"reordered", diff.Summary.Reordered,
	)

	engine := dispatch.New(m.registry, opts).
		WithLogger(logger).
		WithObserver(func(inv dispatch.Invocation) {
			c.metrics.RecordCallback(m.Name(), inv)
			c.publish(NewCallbackInvokedEvent(id, m.Name(), inv.Change.Path, inv.Change.Op,
				inv.Change.Reversal, inv.Err, inv.Duration.Milliseconds()))
		})
	outcome := engine.Run(ctx, diff)

	if outcome.RolledBack {
		failed := make([]string, len(outcome.ReversalFailures))
		for i, f := range outcome.ReversalFailures {
			failed[i] = f.Path
		}
		c.metrics.RecordRollback(m.Name(), outcome.Diverged())
		c.publish(NewRollbackPerformedEvent(id, m.Name(), len(outcome.Applied), failed))
	}

	result := newDispatchResult(id, m.Name(), opts, diff, outcome, 0)
	if result.ConfigModified {
		m.configModified.Store(true)
	}
	c.metrics.SetConfigModified(m.Name(), m.configModified.Load())

	if m.config.RefreshState && result.ConfigModified {
		state, err := m.State(ctx)
		if err != nil {
			logger.Warn("Failed to refresh operational state", "error", err)
		}
		result.State = state
	}

	result.Duration = time.Since(startTime)
	c.complete(logger, result)
	return result, nil
}

func (c *Coordinator) complete(logger *slog.Logger, result *Result) {
	switch result.Status {
	case StatusSuccess:
		logger.Info("Transaction completed successfully",
			"config_modified", result.ConfigModified,
			"duration", result.Duration,
		)
	case StatusPartial:
		logger.Warn("Transaction completed with failures",
			"failed_paths", result.FailedPaths(),
			"rolled_back", result.RolledBack,
			"duration", result.Duration,
		)
	case StatusFatal:
		logger.Error("Transaction left module in divergent state",
			"failed_paths", result.FailedPaths(),
			"divergence", result.Divergence,
			"duration", result.Duration,
		)
	}

	c.metrics.RecordTransaction(result.Module, string(result.Status), result.Duration.Seconds())
	c.publish(NewTransactionCompletedEvent(result.ID, result.Module, result, nil, result.Duration.Milliseconds()))
}

// abort reports a transaction that failed before dispatch and returns err.
func (c *Coordinator) abort(logger *slog.Logger, id, module string, startTime time.Time, err *Error) error {
	duration := time.Since(startTime)
	logger.Error("Transaction failed", "stage", err.Stage, "error", err)

	c.metrics.RecordTransaction(module, "error", duration.Seconds())
	c.publish(NewTransactionCompletedEvent(id, module, nil, err, duration.Milliseconds()))
	return err
}
