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

package transapi

import (
	"github.com/prometheus/client_golang/prometheus"

	pkgmetrics "netconf-transapi/pkg/metrics"
	"netconf-transapi/pkg/transapi/differ"
	"netconf-transapi/pkg/transapi/dispatch"
)

// Metrics holds the Prometheus metrics of the transaction coordinator.
//
// Create one instance per registry. All Record methods are no-ops on a nil
// *Metrics so the coordinator can run without metrics.
type Metrics struct {
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec

	DiffEntries *prometheus.CounterVec

	CallbacksTotal   *prometheus.CounterVec
	CallbackDuration *prometheus.HistogramVec

	RollbacksTotal *prometheus.CounterVec

	ConfigModified *prometheus.GaugeVec
}

// NewMetrics creates the coordinator metrics and registers them with the
// provided registry.
//
// Pass an instance-based registry (prometheus.NewRegistry()), not
// prometheus.DefaultRegisterer.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	coordinator := transapi.New().WithMetrics(transapi.NewMetrics(registry))
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		TransactionsTotal: pkgmetrics.NewCounterVec(
			registry,
			"transapi_transactions_total",
			"Total number of transactions by module and status",
			[]string{"module", "status"},
		),
		TransactionDuration: pkgmetrics.NewHistogramVec(
			registry,
			"transapi_transaction_duration_seconds",
			"Time spent applying transactions",
			pkgmetrics.DurationBuckets(),
			[]string{"module"},
		),
		DiffEntries: pkgmetrics.NewCounterVec(
			registry,
			"transapi_diff_entries_total",
			"Total number of diff entries by operation",
			[]string{"module", "op"},
		),
		CallbacksTotal: pkgmetrics.NewCounterVec(
			registry,
			"transapi_callbacks_total",
			"Total number of data callback invocations by result",
			[]string{"module", "result"},
		),
		CallbackDuration: pkgmetrics.NewHistogramVec(
			registry,
			"transapi_callback_duration_seconds",
			"Time spent in data callbacks",
			pkgmetrics.CallbackBuckets(),
			[]string{"module"},
		),
		RollbacksTotal: pkgmetrics.NewCounterVec(
			registry,
			"transapi_rollbacks_total",
			"Total number of rollbacks by outcome",
			[]string{"module", "outcome"},
		),
		ConfigModified: pkgmetrics.NewGaugeVec(
			registry,
			"transapi_config_modified",
			"Whether the module has unsaved configuration changes (1) or not (0)",
			[]string{"module"},
		),
	}
}

// RecordTransaction records a finished transaction. status is the result
// status, or "error" when the transaction failed before dispatch.
func (m *Metrics) RecordTransaction(module, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(module, status).Inc()
	m.TransactionDuration.WithLabelValues(module).Observe(durationSeconds)
}

// RecordDiff adds the per-operation counts of a diff.
func (m *Metrics) RecordDiff(module string, summary differ.Summary) {
	if m == nil {
		return
	}
	for _, op := range []differ.Operation{
		differ.OpAdd, differ.OpRemove, differ.OpModify, differ.OpChain, differ.OpReorder,
	} {
		if n := summary.Count(op); n > 0 {
			m.DiffEntries.WithLabelValues(module, op.String()).Add(float64(n))
		}
	}
}

// RecordCallback records a data callback invocation.
func (m *Metrics) RecordCallback(module string, inv dispatch.Invocation) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case inv.Change.Reversal && inv.Err != nil:
		result = "revert_error"
	case inv.Change.Reversal:
		result = "reverted"
	case inv.Err != nil:
		result = "error"
	}
	m.CallbacksTotal.WithLabelValues(module, result).Inc()
	m.CallbackDuration.WithLabelValues(module).Observe(inv.Duration.Seconds())
}

// RecordRollback records a rollback. A diverged rollback left the module in
// an inconsistent state.
func (m *Metrics) RecordRollback(module string, diverged bool) {
	if m == nil {
		return
	}
	outcome := "clean"
	if diverged {
		outcome = "diverged"
	}
	m.RollbacksTotal.WithLabelValues(module, outcome).Inc()
}

// SetConfigModified mirrors the config_modified flag of a module.
func (m *Metrics) SetConfigModified(module string, modified bool) {
	if m == nil {
		return
	}
	v := 0.0
	if modified {
		v = 1
	}
	m.ConfigModified.WithLabelValues(module).Set(v)
}
