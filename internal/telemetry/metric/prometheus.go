package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meshbus"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Connection pool
	PoolAcquireTotal    *prometheus.CounterVec
	PoolAcquireDuration prometheus.Histogram
	PoolDialsTotal      *prometheus.CounterVec
	PoolHealthChecks    *prometheus.CounterVec
	PoolEvictionsTotal  prometheus.Counter

	// Cache store
	CacheOpsTotal   *prometheus.CounterVec
	CacheOpDuration *prometheus.HistogramVec

	// Messenger
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
}

// NewRegistry creates a registry with all meshbus metric families and the
// Go runtime collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		PoolAcquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "acquire_total",
			Help: "Connection acquisitions by result (ok, timeout, closed, error).",
		}, []string{"result"}),
		PoolAcquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "pool", Name: "acquire_duration_seconds",
			Help:    "Time spent waiting for a pooled connection.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}),
		PoolDialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "dials_total",
			Help: "Connections opened to the store by result.",
		}, []string{"result"}),
		PoolHealthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "health_checks_total",
			Help: "Liveness checks by trigger (borrow, return, idle) and result.",
		}, []string{"trigger", "result"}),
		PoolEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "evictions_total",
			Help: "Idle connections closed by the evictor.",
		}),
		CacheOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operations_total",
			Help: "Cache operations by name and result (ok, miss, unavailable, error).",
		}, []string{"op", "result"}),
		CacheOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operation_duration_seconds",
			Help:    "Cache operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messenger", Name: "sent_total",
			Help: "Published envelopes by channel and result.",
		}, []string{"channel", "result"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "messenger", Name: "received_total",
			Help: "Received envelopes by channel and outcome (dispatched, self, unhandled, malformed, failed).",
		}, []string{"channel", "outcome"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "messenger", Name: "handler_duration_seconds",
			Help:    "Handler execution time by message type.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"type"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.PoolAcquireTotal,
		r.PoolAcquireDuration,
		r.PoolDialsTotal,
		r.PoolHealthChecks,
		r.PoolEvictionsTotal,
		r.CacheOpsTotal,
		r.CacheOpDuration,
		r.MessagesSent,
		r.MessagesReceived,
		r.HandlerDuration,
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Register adds an extra collector, e.g. the worker pool metrics.
func (r *Registry) Register(c prometheus.Collector) error {
	if r == nil {
		return nil
	}
	return r.registry.Register(c)
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) ObserveAcquire(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.PoolAcquireTotal.WithLabelValues(result).Inc()
	r.PoolAcquireDuration.Observe(d.Seconds())
}

func (r *Registry) ObserveDial(err error) {
	if r == nil {
		return
	}
	r.PoolDialsTotal.WithLabelValues(resultOf(err)).Inc()
}

func (r *Registry) ObserveHealthCheck(trigger string, healthy bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !healthy {
		result = "failed"
	}
	r.PoolHealthChecks.WithLabelValues(trigger, result).Inc()
}

func (r *Registry) ObserveEviction() {
	if r == nil {
		return
	}
	r.PoolEvictionsTotal.Inc()
}

func (r *Registry) ObserveCacheOp(op, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.CacheOpsTotal.WithLabelValues(op, result).Inc()
	r.CacheOpDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Registry) ObserveSend(channel string, err error) {
	if r == nil {
		return
	}
	r.MessagesSent.WithLabelValues(channel, resultOf(err)).Inc()
}

func (r *Registry) ObserveReceive(channel, outcome string) {
	if r == nil {
		return
	}
	r.MessagesReceived.WithLabelValues(channel, outcome).Inc()
}

func (r *Registry) ObserveHandler(msgType string, d time.Duration) {
	if r == nil {
		return
	}
	r.HandlerDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
