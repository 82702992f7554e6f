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

// Package audit records transaction lifecycle events and logs them with
// context correlated from recent history.
//
// The recorder is the only consumer that turns bus events into log lines,
// which keeps logging out of the dispatch hot path.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"netconf-transapi/pkg/events"
	"netconf-transapi/pkg/events/ringbuffer"
	"netconf-transapi/pkg/transapi"
)

// DefaultHistorySize is the number of events kept for correlation.
const DefaultHistorySize = 1000

// Recorder subscribes to the event bus, keeps recent events in a ring buffer
// and logs each event with domain insights.
type Recorder struct {
	bus     *events.EventBus
	logger  *slog.Logger
	history *ringbuffer.RingBuffer[events.Event]
	eventCh <-chan events.Event

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRecorder creates a recorder and subscribes it to bus right away, so no
// event published after this call is missed. Call it before bus.Start to see
// buffered events as well.
func NewRecorder(bus *events.EventBus, logger *slog.Logger, historySize int) *Recorder {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Recorder{
		bus:     bus,
		logger:  logger,
		history: ringbuffer.New[events.Event](historySize),
		eventCh: bus.Subscribe(200),
		stopCh:  make(chan struct{}),
	}
}

// Start processes events until ctx is cancelled or Stop is called. It
// always returns nil so it can run inside an errgroup.
//
// Example:
//
//	g.Go(func() error { return recorder.Start(gCtx) })
func (r *Recorder) Start(ctx context.Context) error {
	r.logger.Debug("Audit recorder started", "history_capacity", r.history.Cap())
	defer r.bus.Unsubscribe(r.eventCh)

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.logger.Debug("Audit recorder stopped", "reason", ctx.Err())
			return nil
		case <-r.stopCh:
			r.drain()
			r.logger.Debug("Audit recorder stopped")
			return nil
		case event := <-r.eventCh:
			r.processEvent(event)
		}
	}
}

// drain processes events that were already delivered when the recorder was
// asked to stop.
func (r *Recorder) drain() {
	for {
		select {
		case event := <-r.eventCh:
			r.processEvent(event)
		default:
			return
		}
	}
}

// Stop stops a running recorder. It is safe to call more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Recorder) processEvent(event events.Event) {
	// Add to history first so the insight can correlate with it.
	r.history.Add(event)

	message, attrs := r.generateInsight(event)
	r.logger.Log(context.Background(), r.determineLogLevel(event), message, attrs...)
}

// determineLogLevel maps events to log levels. Failures are logged louder
// than routine progress.
func (r *Recorder) determineLogLevel(event events.Event) slog.Level {
	switch e := event.(type) {
	case *transapi.TransactionCompletedEvent:
		switch e.Status() {
		case string(transapi.StatusSuccess):
			return slog.LevelInfo
		case string(transapi.StatusPartial):
			return slog.LevelWarn
		default:
			return slog.LevelError
		}
	case *transapi.RollbackPerformedEvent:
		if e.Diverged() {
			return slog.LevelError
		}
		return slog.LevelWarn
	case *transapi.CallbackInvokedEvent:
		if e.Error != "" {
			return slog.LevelWarn
		}
		return slog.LevelDebug
	default:
		return slog.LevelDebug
	}
}

// generateInsight creates a contextual message and structured attributes for
// the event, using the history for correlation.
func (r *Recorder) generateInsight(event events.Event) (insight string, args []any) {
	attrs := []any{
		"event_type", event.EventType(),
		"timestamp", event.Timestamp(),
	}

	switch e := event.(type) {
	case *transapi.TransactionStartedEvent:
		return fmt.Sprintf("Transaction started on module %s", e.Module),
			append(attrs, "transaction_id", e.TransactionID, "module", e.Module)

	case *transapi.DiffComputedEvent:
		return fmt.Sprintf("Diff computed: %s", e.Diff.Summary.String()),
			append(attrs, "transaction_id", e.TransactionID, "module", e.Module, "entries", len(e.Diff.Entries))

	case *transapi.CallbackInvokedEvent:
		attrs = append(attrs,
			"transaction_id", e.TransactionID,
			"path", e.Path,
			"op", e.Operation.String(),
			"duration_ms", e.DurationMs,
		)
		switch {
		case e.Error != "" && e.Reversal:
			return fmt.Sprintf("Callback failed to revert %s at %s", e.Operation, e.Path),
				append(attrs, "error", e.Error)
		case e.Error != "":
			return fmt.Sprintf("Callback failed to apply %s at %s", e.Operation, e.Path),
				append(attrs, "error", e.Error)
		case e.Reversal:
			return fmt.Sprintf("Callback reverted %s at %s", e.Operation, e.Path), attrs
		default:
			return fmt.Sprintf("Callback applied %s at %s", e.Operation, e.Path), attrs
		}

	case *transapi.RollbackPerformedEvent:
		attrs = append(attrs, "transaction_id", e.TransactionID, "module", e.Module, "reverted", e.Reverted)
		cause := r.firstFailure(e.TransactionID)
		if cause != "" {
			attrs = append(attrs, "caused_by", cause)
		}
		if e.Diverged() {
			return fmt.Sprintf("Rollback failed for %s, module %s diverged",
					strings.Join(e.FailedPaths, ", "), e.Module),
				append(attrs, "failed_paths", e.FailedPaths)
		}
		return fmt.Sprintf("Rolled back %d change(s) on module %s", e.Reverted, e.Module), attrs

	case *transapi.TransactionCompletedEvent:
		attrs = append(attrs,
			"transaction_id", e.TransactionID,
			"module", e.Module,
			"status", e.Status(),
			"duration_ms", e.DurationMs,
			"callbacks", r.countCallbacks(e.TransactionID),
		)
		if e.Result == nil {
			return fmt.Sprintf("Transaction on module %s failed before dispatch", e.Module),
				append(attrs, "error", e.Error)
		}
		switch e.Result.Status {
		case transapi.StatusSuccess:
			if !e.Result.HasChanges() {
				return fmt.Sprintf("Transaction on module %s completed, no changes", e.Module), attrs
			}
			return fmt.Sprintf("Transaction on module %s completed (%s)", e.Module, e.Result.Diff.Summary.String()),
				append(attrs, "config_modified", e.Result.ConfigModified)
		case transapi.StatusPartial:
			return fmt.Sprintf("Transaction on module %s failed at %d path(s)", e.Module, len(e.Result.Failures)),
				append(attrs, "failed_paths", e.Result.FailedPaths(), "rolled_back", e.Result.RolledBack)
		default:
			return fmt.Sprintf("Transaction on module %s left divergent state", e.Module),
				append(attrs, "divergence", e.Result.Divergence)
		}

	default:
		return fmt.Sprintf("Event: %s", event.EventType()), attrs
	}
}

// firstFailure returns the path of the first failed forward callback of a
// transaction.
func (r *Recorder) firstFailure(transactionID string) string {
	// Filter returns newest first; the last match is the earliest failure.
	matches := r.history.Filter(func(evt events.Event) bool {
		cb, ok := evt.(*transapi.CallbackInvokedEvent)
		return ok && cb.TransactionID == transactionID && cb.Error != "" && !cb.Reversal
	})
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1].(*transapi.CallbackInvokedEvent).Path
}

func (r *Recorder) countCallbacks(transactionID string) int {
	return len(r.history.Filter(func(evt events.Event) bool {
		cb, ok := evt.(*transapi.CallbackInvokedEvent)
		return ok && cb.TransactionID == transactionID
	}))
}

// Transactions returns up to n recently completed transactions, newest first.
func (r *Recorder) Transactions(n int) []*transapi.TransactionCompletedEvent {
	var out []*transapi.TransactionCompletedEvent
	for _, evt := range r.history.Filter(func(evt events.Event) bool {
		_, ok := evt.(*transapi.TransactionCompletedEvent)
		return ok
	}) {
		if len(out) == n {
			break
		}
		out = append(out, evt.(*transapi.TransactionCompletedEvent))
	}
	return out
}

// TransactionSummary is the JSON view of a completed transaction.
type TransactionSummary struct {
	ID             string   `json:"id"`
	Module         string   `json:"module"`
	Status         string   `json:"status"`
	Changes        string   `json:"changes,omitempty"`
	FailedPaths    []string `json:"failed_paths,omitempty"`
	RolledBack     bool     `json:"rolled_back,omitempty"`
	Divergence     string   `json:"divergence,omitempty"`
	ConfigModified bool     `json:"config_modified"`
	Error          string   `json:"error,omitempty"`
	Callbacks      int      `json:"callbacks"`
	DurationMs     int64    `json:"duration_ms"`
}

// Summaries returns up to n recently completed transactions, newest first.
func (r *Recorder) Summaries(n int) []TransactionSummary {
	completed := r.Transactions(n)
	out := make([]TransactionSummary, 0, len(completed))
	for _, e := range completed {
		summary := TransactionSummary{
			ID:         e.TransactionID,
			Module:     e.Module,
			Status:     e.Status(),
			Error:      e.Error,
			Callbacks:  r.countCallbacks(e.TransactionID),
			DurationMs: e.DurationMs,
		}
		if res := e.Result; res != nil {
			if res.Diff != nil {
				summary.Changes = res.Diff.Summary.String()
			}
			summary.FailedPaths = res.FailedPaths()
			summary.RolledBack = res.RolledBack
			summary.Divergence = res.Divergence
			summary.ConfigModified = res.ConfigModified
		}
		out = append(out, summary)
	}
	return out
}

// History returns the recorded events of one transaction, oldest first.
func (r *Recorder) History(transactionID string) []events.Event {
	var out []events.Event
	for _, evt := range r.history.GetAll() {
		if TransactionID(evt) == transactionID {
			out = append(out, evt)
		}
	}
	return out
}

// TransactionID returns the transaction an event belongs to, or "".
func TransactionID(event events.Event) string {
	switch e := event.(type) {
	case *transapi.TransactionStartedEvent:
		return e.TransactionID
	case *transapi.DiffComputedEvent:
		return e.TransactionID
	case *transapi.CallbackInvokedEvent:
		return e.TransactionID
	case *transapi.RollbackPerformedEvent:
		return e.TransactionID
	case *transapi.TransactionCompletedEvent:
		return e.TransactionID
	default:
		return ""
	}
}
