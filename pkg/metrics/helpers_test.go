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

package metrics

import (
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounterVec(t *testing.T) {
	registry := prometheus.NewRegistry()
	transactions := NewCounterVec(registry, "test_transactions_total", "Transactions", []string{"module", "status"})

	transactions.WithLabelValues("interfaces", "success").Inc()
	transactions.WithLabelValues("interfaces", "success").Inc()
	transactions.WithLabelValues("interfaces", "partial").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(transactions.WithLabelValues("interfaces", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(transactions.WithLabelValues("interfaces", "partial")))
	assert.Equal(t, 2, testutil.CollectAndCount(transactions))
}

func TestNewGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := NewGauge(registry, "test_subscribers", "Subscribers")
	vec := NewGaugeVec(registry, "test_config_modified", "Modified flag", []string{"module"})

	gauge.Set(3)
	vec.WithLabelValues("system").Set(1)

	assert.Equal(t, 3.0, testutil.ToFloat64(gauge))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("system")))
}

func TestNewHistogramVec(t *testing.T) {
	registry := prometheus.NewRegistry()
	duration := NewHistogramVec(registry, "test_duration_seconds", "Duration", DurationBuckets(), []string{"module"})

	duration.WithLabelValues("system").Observe(0.2)
	duration.WithLabelValues("system").Observe(3)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	h := families[0].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 3.2, h.GetSampleSum(), 1e-9)
	assert.Len(t, h.GetBucket(), len(DurationBuckets()))
}

func TestNewHistogram_DefaultBuckets(t *testing.T) {
	registry := prometheus.NewRegistry()
	h := NewHistogram(registry, "test_latency_seconds", "Latency", nil)
	h.Observe(0.5)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families[0].GetMetric()[0].GetHistogram().GetBucket(), len(prometheus.DefBuckets))
}

func TestBuckets_AreSorted(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"duration": DurationBuckets(),
		"callback": CallbackBuckets(),
	} {
		assert.True(t, sort.Float64sAreSorted(buckets), name)
		assert.NotEmpty(t, buckets, name)
	}
	assert.Less(t, CallbackBuckets()[0], DurationBuckets()[0])
}

func TestRegistriesAreIndependent(t *testing.T) {
	first := prometheus.NewRegistry()
	second := prometheus.NewRegistry()

	c1 := NewCounter(first, "test_counter_total", "Counter")
	c2 := NewCounter(second, "test_counter_total", "Counter")
	c1.Add(5)

	assert.Equal(t, 5.0, testutil.ToFloat64(c1))
	assert.Equal(t, 0.0, testutil.ToFloat64(c2))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewCounter(registry, "test_dup_total", "Counter")

	assert.Panics(t, func() {
		NewCounter(registry, "test_dup_total", "Counter")
	})
}
