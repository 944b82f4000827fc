// Package metric provides Prometheus metrics for meshbus.
//
//   - prometheus.go: the Registry, its metric families and the HTTP handler
//   - collector.go: a scrape-time collector for connection pool gauges
//
// All recording helpers are nil-safe so components can run without metrics.
// Metrics are exposed at /metrics in Prometheus text format.
package metric
