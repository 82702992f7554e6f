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

// Package metrics provides constructors for Prometheus metrics bound to an
// explicit registry, and an HTTP server exposing that registry.
//
// Every constructor takes a prometheus.Registerer. Never pass
// prometheus.DefaultRegisterer: metrics belong to the registry of the
// process run that created them and are collected together with it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewCounter creates and registers a counter.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	applied := metrics.NewCounter(registry, "changes_applied_total", "Applied changes")
//	applied.Inc()
func NewCounter(registry prometheus.Registerer, name, help string) prometheus.Counter {
	return promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

// NewCounterVec creates and registers a counter partitioned by labels.
//
// Example:
//
//	transactions := metrics.NewCounterVec(registry,
//	    "transactions_total", "Transactions by status", []string{"module", "status"})
//	transactions.WithLabelValues("interfaces", "success").Inc()
func NewCounterVec(registry prometheus.Registerer, name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)
}

// NewGauge creates and registers a gauge.
func NewGauge(registry prometheus.Registerer, name, help string) prometheus.Gauge {
	return promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

// NewGaugeVec creates and registers a gauge partitioned by labels.
func NewGaugeVec(registry prometheus.Registerer, name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels)
}

// NewHistogram creates and registers a histogram with the given buckets.
// A nil buckets slice selects prometheus.DefBuckets.
func NewHistogram(registry prometheus.Registerer, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	})
}

// NewHistogramVec creates and registers a histogram partitioned by labels.
//
// Example:
//
//	duration := metrics.NewHistogramVec(registry,
//	    "transaction_duration_seconds", "Transaction duration",
//	    metrics.DurationBuckets(), []string{"module"})
//	duration.WithLabelValues("interfaces").Observe(time.Since(start).Seconds())
func NewHistogramVec(registry prometheus.Registerer, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
	}, labels)
}

// DurationBuckets returns buckets in seconds for whole transactions, from
// 10ms to 10s.
func DurationBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
}

// CallbackBuckets returns buckets in seconds for single callback
// invocations, from 100µs to 1s.
func CallbackBuckets() []float64 {
	return []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}
}
