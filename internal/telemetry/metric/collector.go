package metric

import "github.com/prometheus/client_golang/prometheus"

// PoolSnapshot is a point-in-time view of a connection pool.
type PoolSnapshot struct {
	Active  int
	Idle    int
	Waiting int
	Max     int
}

// PoolSource is implemented by anything that can report pool occupancy.
type PoolSource interface {
	Snapshot() PoolSnapshot
}

// PoolSourceFunc adapts a function to PoolSource.
type PoolSourceFunc func() PoolSnapshot

func (f PoolSourceFunc) Snapshot() PoolSnapshot { return f() }

// Collector reads pool gauges at scrape time.
type Collector struct {
	source PoolSource

	active  *prometheus.Desc
	idle    *prometheus.Desc
	waiting *prometheus.Desc
	max     *prometheus.Desc
}

// NewCollector creates a collector for the given pool.
func NewCollector(source PoolSource) *Collector {
	fq := func(name string) string {
		return prometheus.BuildFQName(namespace, "pool", name)
	}
	return &Collector{
		source:  source,
		active:  prometheus.NewDesc(fq("active_connections"), "Connections currently borrowed.", nil, nil),
		idle:    prometheus.NewDesc(fq("idle_connections"), "Connections parked in the pool.", nil, nil),
		waiting: prometheus.NewDesc(fq("waiting_acquires"), "Callers blocked waiting for a connection.", nil, nil),
		max:     prometheus.NewDesc(fq("max_connections"), "Configured maximum total connections.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.active
	ch <- c.idle
	ch <- c.waiting
	ch <- c.max
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(s.Active))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(s.Waiting))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
}
