package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Pool processes items of type T on a fixed number of goroutines.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	metrics  *poolMetrics
	wg       sync.WaitGroup
	cancel   context.CancelFunc

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64

	registry *metric.Registry
	name     string
}

type poolMetrics struct {
	queueDepth     prometheus.GaugeFunc
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers the pool's metrics under meshbus_worker_<name>_*.
func WithMetrics[T any](registry *metric.Registry, name string) Option[T] {
	return func(p *Pool[T]) {
		p.registry = registry
		p.name = name
	}
}

// NewPool creates a pool. Non-positive sizes fall back to the defaults.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.registry != nil && p.name != "" {
		p.initMetrics()
	}
	return p
}

func (p *Pool[T]) initMetrics() {
	sub := "worker_" + p.name
	m := &poolMetrics{
		queueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "queue_depth",
			Help: "Current worker pool queue depth.",
		}, func() float64 { return float64(len(p.workChan)) }),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "submitted_total",
			Help: "Total work items submitted.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "processed_total",
			Help: "Total work items processed.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "failed_total",
			Help: "Total work items that returned an error or panicked.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "dropped_total",
			Help: "Total work items rejected because the queue was full.",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meshbus", Subsystem: sub, Name: "processing_duration_seconds",
			Help:    "Time spent processing work items.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{m.queueDepth, m.submitted, m.processed, m.failed, m.dropped, m.processingTime} {
		// A second pool with the same name keeps running without metrics.
		if err := p.registry.Register(c); err != nil {
			return
		}
	}
	p.metrics = m
}

// Submit enqueues work without blocking.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.workChan <- work:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// Start launches the workers. Work runs under a context derived from ctx
// that is cancelled when Stop times out.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued work to drain.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-timer.C:
		p.cancel()
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
		Panicked:   p.panicked.Load(),
	}
}

// PoolStats represents worker pool statistics.
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
	Panicked   int64 `json:"panicked"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for work := range p.workChan {
		start := time.Now()
		err := p.process(ctx, work)
		duration := time.Since(start)

		p.processed.Add(1)
		if err != nil {
			p.failed.Add(1)
		}

		if p.metrics != nil {
			p.metrics.processed.Inc()
			status := "success"
			if err != nil {
				p.metrics.failed.Inc()
				status = "error"
			}
			p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
		}
	}
}

// process runs the processor and turns a panic into an error so one bad
// item cannot take a worker down.
func (p *Pool[T]) process(ctx context.Context, work T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			err = &PanicError{Value: r}
		}
	}()
	return p.processor(ctx, work)
}
