package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCartMetrics_Record(t *testing.T) {
	m := NewCartMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordMutation("add")
	m.RecordMutation("add")
	m.RecordMutation("decrement")
	m.RecordPersistFailure()
	m.RecordLoadSkipped()
	m.SetProducts(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("decrement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loadSkipped))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.products))
}

func TestCartMetrics_ReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewCartMetricsWithRegisterer(registry)
	second := NewCartMetricsWithRegisterer(registry)

	first.RecordPersistFailure()
	second.RecordPersistFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.persistFailures))
}

func TestCartMetrics_NilIsNoop(t *testing.T) {
	var m *CartMetrics
	assert.NotPanics(t, func() {
		m.RecordMutation("add")
		m.RecordPersistFailure()
		m.RecordLoadSkipped()
		m.SetProducts(1)
	})
}
