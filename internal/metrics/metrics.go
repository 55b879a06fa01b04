// Package metrics exposes Prometheus collectors for the history index,
// the key store and the RPC server.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the ledger's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	historyEntries  *prometheus.CounterVec
	rollbackEntries prometheus.Counter
	tipHeight       prometheus.Gauge
	keys            prometheus.Gauge
	rpcRequests     *prometheus.CounterVec
	rpcLatency      *prometheus.HistogramVec
}

var (
	defaultOnce sync.Once
	defaultReg  *Metrics
)

// Default returns the process-wide metrics, created on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultReg = New()
	})
	return defaultReg
}

// New creates a fresh set of collectors on their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		historyEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "history",
			Name:      "entries_total",
			Help:      "History entries committed, by index (account or burn).",
		}, []string{"index"}),
		rollbackEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "history",
			Name:      "rollback_entries_total",
			Help:      "History entries removed by rollback.",
		}),
		tipHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "history",
			Name:      "tip_height",
			Help:      "Height of the last block committed to the history index.",
		}),
		keys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "keystore",
			Name:      "keys",
			Help:      "Distinct keys held by the key store.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and outcome.",
		}, []string{"method", "outcome"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	m.registry.MustRegister(
		m.historyEntries,
		m.rollbackEntries,
		m.tipHeight,
		m.keys,
		m.rpcRequests,
		m.rpcLatency,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCommit records a committed block's entry counts and the new tip.
func (m *Metrics) ObserveCommit(height uint64, accountEntries, burnEntries int) {
	if m == nil {
		return
	}
	m.historyEntries.WithLabelValues("account").Add(float64(accountEntries))
	m.historyEntries.WithLabelValues("burn").Add(float64(burnEntries))
	m.tipHeight.Set(float64(height))
}

// ObserveRollback records entries removed and the new tip.
func (m *Metrics) ObserveRollback(tip uint64, removed int) {
	if m == nil {
		return
	}
	m.rollbackEntries.Add(float64(removed))
	m.tipHeight.Set(float64(tip))
}

// SetKeys records the number of keys held.
func (m *Metrics) SetKeys(n int) {
	if m == nil {
		return
	}
	m.keys.Set(float64(n))
}

// ObserveRPC records one handled request.
func (m *Metrics) ObserveRPC(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(seconds)
}
