// Package metrics exposes Prometheus counters for the cart store. Nothing here serves them:
// a long-running host process mounts promhttp on the registry it passes in.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics holds the cart store's counters. A nil *CartMetrics is valid and records nothing.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	persistFailures prometheus.Counter
	loadSkipped     prometheus.Counter
	products        prometheus.Gauge
}

// NewCartMetrics registers the counters with the default registerer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "gomarket_cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		}, []string{"op"}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "gomarket_cart_persist_failures_total",
			Help: "Total number of cart writes that failed to reach storage",
		}),
		loadSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "gomarket_cart_load_skipped_total",
			Help: "Total number of stored records skipped while loading the cart",
		}),
		products: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "gomarket_cart_products",
			Help: "Number of distinct products currently in the cart",
		}),
	}
}

func (m *CartMetrics) RecordMutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}

func (m *CartMetrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *CartMetrics) RecordLoadSkipped() {
	if m == nil {
		return
	}
	m.loadSkipped.Inc()
}

func (m *CartMetrics) SetProducts(n int) {
	if m == nil {
		return
	}
	m.products.Set(float64(n))
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	counter := prometheus.NewCounter(opts)
	if err := registerer.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return counter
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	gauge := prometheus.NewGauge(opts)
	if err := registerer.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
		panic(err)
	}
	return gauge
}
