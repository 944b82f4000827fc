package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yndnr/meshbus-go/internal/core/domain"
	"github.com/yndnr/meshbus-go/internal/resp"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
)

// recheckInterval spaces out the pings Available makes while the store is
// marked down.
const recheckInterval = time.Second

// Pool is a bounded pool of store connections.
type Pool struct {
	cfg     Config
	dial    DialFunc
	log     logger.Logger
	metrics *metric.Registry

	// leases bounds leased connections to MaxTotal.
	leases *semaphore.Weighted

	mu      sync.Mutex
	idle    []*Conn // oldest first
	active  int
	pending int // dials in flight for the evictor top-up
	closed  bool

	waiting     atomic.Int32
	connected   atomic.Bool
	lastRecheck atomic.Int64 // unix nanos of the last Available ping
	dials       atomic.Int64
	evictions   atomic.Int64

	closeCtx    context.Context
	closeCancel context.CancelFunc
	evictorDone chan struct{}
}

// Option configures optional Pool collaborators.
type Option func(*Pool)

func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

func WithMetrics(r *metric.Registry) Option {
	return func(p *Pool) { p.metrics = r }
}

// Stats is a snapshot of pool occupancy and counters.
type Stats struct {
	Active    int   `json:"active"`
	Idle      int   `json:"idle"`
	Waiting   int   `json:"waiting"`
	MaxTotal  int   `json:"max_total"`
	Dials     int64 `json:"dials"`
	Evictions int64 `json:"evictions"`
	Connected bool  `json:"connected"`
	Closed    bool  `json:"closed"`
}

// New creates a pool and starts its evictor. It does not dial; call Ping or
// Prefill to establish connections.
func New(cfg Config, dial DialFunc, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		return nil, domain.ErrInvalidConfig.WithDetails("dial function is required")
	}

	p := &Pool{
		cfg:         cfg,
		dial:        dial,
		leases:      semaphore.NewWeighted(int64(cfg.MaxTotal)),
		evictorDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrDefault(p.log).With("component", "pool")
	p.closeCtx, p.closeCancel = context.WithCancel(context.Background())

	if cfg.EvictionInterval > 0 {
		go p.runEvictor()
	} else {
		close(p.evictorDone)
	}
	return p, nil
}

// Acquire leases a connection, blocking while the pool is exhausted.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	return p.acquire(ctx, false)
}

// AcquireDedicated leases a connection for long-lived use such as a
// subscription. It counts against MaxTotal but is closed instead of being
// returned to the idle set.
func (p *Pool) AcquireDedicated(ctx context.Context) (*Conn, error) {
	return p.acquire(ctx, true)
}

func (p *Pool) acquire(ctx context.Context, dedicated bool) (*Conn, error) {
	start := time.Now()

	if p.isClosed() {
		p.metrics.ObserveAcquire("closed", time.Since(start))
		return nil, domain.ErrPoolClosed
	}

	if err := p.waitLease(ctx); err != nil {
		p.metrics.ObserveAcquire(acquireResult(err), time.Since(start))
		return nil, err
	}

	c, err := p.takeOrOpen(ctx, dedicated)
	if err != nil {
		p.leases.Release(1)
		p.metrics.ObserveAcquire(acquireResult(err), time.Since(start))
		return nil, err
	}

	c.dedicated = dedicated
	c.leased.Store(true)
	p.metrics.ObserveAcquire("ok", time.Since(start))
	return c, nil
}

// waitLease takes one lease permit, honouring MaxWait, ctx and Close.
func (p *Pool) waitLease(ctx context.Context) error {
	if p.leases.TryAcquire(1) {
		return nil
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if p.cfg.MaxWait > 0 {
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeout(waitCtx, p.cfg.MaxWait)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(p.closeCtx, cancel)
	defer stop()

	p.waiting.Add(1)
	err := p.leases.Acquire(waitCtx, 1)
	p.waiting.Add(-1)
	if err == nil {
		return nil
	}

	switch {
	case p.isClosed():
		return domain.ErrPoolClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return domain.ErrPoolExhausted.WithDetails(p.cfg.MaxWait.String())
	}
}

// takeOrOpen pops a healthy idle connection or dials a new one. The caller
// already holds a lease permit.
func (p *Pool) takeOrOpen(ctx context.Context, dedicated bool) (*Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, domain.ErrPoolClosed
		}
		var c *Conn
		if n := len(p.idle); n > 0 && !dedicated {
			c = p.idle[n-1]
			p.idle[n-1] = nil
			p.idle = p.idle[:n-1]
		}
		p.active++
		p.mu.Unlock()

		if c == nil {
			nc, err := p.open(ctx)
			p.metrics.ObserveDial(err)
			p.dials.Add(1)
			if err != nil {
				p.decActive()
				if ctx.Err() == nil {
					p.setConnected(false, err)
				}
				return nil, err
			}
			p.setConnected(true, nil)
			return nc, nil
		}

		if !p.cfg.TestOnBorrow {
			return c, nil
		}
		ok := c.ping(ctx)
		p.metrics.ObserveHealthCheck("borrow", ok)
		if ok {
			p.setConnected(true, nil)
			return c, nil
		}
		p.log.Debug("discarding idle connection that failed borrow check")
		_ = c.Close()
		p.decActive()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Release returns a leased connection. Dedicated and broken connections are
// closed; healthy ones are parked unless MaxIdle is reached.
func (p *Pool) Release(c *Conn) {
	if c == nil || !c.leased.CompareAndSwap(true, false) {
		return
	}
	defer p.leases.Release(1)

	if c.dedicated || c.broken.Load() {
		p.closeLeased(c)
		return
	}

	if p.cfg.TestOnReturn {
		ctx, cancel := context.WithTimeout(context.Background(), p.checkTimeout())
		ok := c.ping(ctx)
		cancel()
		p.metrics.ObserveHealthCheck("return", ok)
		if !ok {
			p.closeLeased(c)
			return
		}
	}

	p.mu.Lock()
	p.active--
	if p.closed || len(p.idle) >= p.cfg.MaxIdle {
		p.mu.Unlock()
		_ = c.Close()
		return
	}
	c.lastUsed = time.Now()
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Discard closes a leased connection instead of returning it.
func (p *Pool) Discard(c *Conn) {
	if c == nil || !c.leased.CompareAndSwap(true, false) {
		return
	}
	p.closeLeased(c)
	p.leases.Release(1)
}

func (p *Pool) closeLeased(c *Conn) {
	_ = c.Close()
	p.decActive()
}

func (p *Pool) decActive() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
}

// Do runs one command on a pooled connection. A broken connection is
// discarded and the command is retried once on a fresh lease. Error replies
// come back as domain.ErrOperationFailure. When ctx ends first its error is
// returned and the connected flag is left alone.
func (p *Pool) Do(ctx context.Context, args ...string) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, domain.ErrOperationFailure.WithDetails("empty command")
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		c, err := p.Acquire(ctx)
		if err != nil {
			return resp.Value{}, err
		}

		v, err := c.Do(ctx, args...)
		if err != nil {
			p.Discard(c)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return resp.Value{}, ctxErr
			}
			lastErr = err
			if !isNetworkError(err) {
				break
			}
			p.log.Debug("retrying command on fresh connection", "command", args[0], "error", err)
			continue
		}
		p.Release(c)
		p.setConnected(true, nil)

		if v.Kind == resp.KindError {
			return v, domain.ErrOperationFailure.WithDetails(args[0]).WithCause(v.Err())
		}
		return v, nil
	}

	p.setConnected(false, lastErr)
	return resp.Value{}, domain.ErrConnectionUnavailable.WithCause(lastErr)
}

// Ping runs a liveness check on a pooled connection and updates the
// connected flag.
func (p *Pool) Ping(ctx context.Context) error {
	v, err := p.Do(ctx, "PING")
	if err != nil {
		if ctx.Err() == nil {
			p.setConnected(false, err)
		}
		return err
	}
	if v.Kind != resp.KindSimpleString || v.Str != "PONG" {
		err := domain.ErrHealthCheckFailed.WithCause(
			domain.ErrUnexpectedReply.WithDetails("reply " + v.Kind.String() + " " + v.Str))
		p.setConnected(false, err)
		return err
	}
	p.setConnected(true, nil)
	return nil
}

// Available reports whether an operation is worth attempting. While the
// pool is marked disconnected it pings the store at most once per
// recheckInterval, so the first caller after a recovery brings the flag
// back without waiting for the evictor.
func (p *Pool) Available(ctx context.Context) bool {
	if p.isClosed() {
		return false
	}
	if p.connected.Load() {
		return true
	}
	now := time.Now().UnixNano()
	last := p.lastRecheck.Load()
	if last != 0 && now-last < int64(recheckInterval) {
		return false
	}
	if !p.lastRecheck.CompareAndSwap(last, now) {
		return false
	}
	return p.Ping(ctx) == nil
}

// IsConnected reports the last known reachability of the store. It is
// advisory: the next operation may still fail.
func (p *Pool) IsConnected() bool {
	return p.connected.Load() && !p.isClosed()
}

func (p *Pool) setConnected(ok bool, err error) {
	prev := p.connected.Swap(ok)
	switch {
	case prev && !ok:
		p.log.Warn("store connection lost", "error", err)
	case !prev && ok:
		p.log.Info("store connection established")
	}
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	active, idle, closed := p.active, len(p.idle), p.closed
	p.mu.Unlock()

	return Stats{
		Active:    active,
		Idle:      idle,
		Waiting:   int(p.waiting.Load()),
		MaxTotal:  p.cfg.MaxTotal,
		Dials:     p.dials.Load(),
		Evictions: p.evictions.Load(),
		Connected: p.connected.Load() && !closed,
		Closed:    closed,
	}
}

// Snapshot implements metric.PoolSource.
func (p *Pool) Snapshot() metric.PoolSnapshot {
	s := p.Stats()
	return metric.PoolSnapshot{Active: s.Active, Idle: s.Idle, Waiting: s.Waiting, Max: s.MaxTotal}
}

// Close stops the evictor, closes idle connections and fails every pending
// and future Acquire with ErrPoolClosed. Leased connections are closed when
// they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	p.closeCancel()
	<-p.evictorDone

	var errs []error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.connected.Store(false)
	p.log.Info("pool closed", "closed_idle", len(idle))
	return errors.Join(errs...)
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) checkTimeout() time.Duration {
	if p.cfg.ReadTimeout > 0 {
		return p.cfg.ReadTimeout
	}
	return 2 * time.Second
}

func acquireResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrPoolClosed):
		return "closed"
	case errors.Is(err, domain.ErrPoolExhausted),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
