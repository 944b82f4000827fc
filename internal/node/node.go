package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/meshbus-go/internal/cache"
	"github.com/yndnr/meshbus-go/internal/infra/tlsroots"
	"github.com/yndnr/meshbus-go/internal/messenger"
	"github.com/yndnr/meshbus-go/internal/node/config"
	"github.com/yndnr/meshbus-go/internal/pool"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
	"github.com/yndnr/meshbus-go/internal/worker"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("node: already started")

// Node is the coordination layer of one process.
type Node struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry

	mu        sync.Mutex
	started   bool
	stopped   bool
	pool      *pool.Pool
	exec      *worker.Pool[worker.Task]
	cache     *cache.Store
	messenger *messenger.Messenger
	keyPair   *tlsroots.KeyPair
}

// New creates a node. Nothing is dialed until Start. metrics may be nil.
func New(cfg *config.Config, log logger.Logger, metrics *metric.Registry) *Node {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Node{
		cfg:     cfg,
		log:     logger.OrDefault(log).With("component", "node"),
		metrics: metrics,
	}
}

// Start connects to the store and builds the cache and the messenger. It
// returns an error only for invalid configuration; an unreachable store
// leaves the node running without them.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true

	rc := n.cfg.Redis
	if !rc.Enabled {
		n.log.Info("coordination layer disabled by configuration")
		return nil
	}
	if err := config.Verify(n.cfg); err != nil {
		return err
	}

	tlsCfg, kp, err := tlsroots.ClientConfig(rc.TLS)
	if err != nil {
		return err
	}

	p, err := pool.New(rc.PoolConfig(), pool.TCPDialer(rc.Host, rc.Port, tlsCfg),
		pool.WithLogger(n.log), pool.WithMetrics(n.metrics))
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, rc.Timeout)
	err = p.Ping(pingCtx)
	cancel()
	if err != nil {
		n.log.Error("store connection test failed, running without cache and messenger",
			"host", rc.Host, "port", rc.Port, "error", err)
		_ = p.Close()
		return nil
	}
	n.log.Info("connected to store", "host", rc.Host, "port", rc.Port, "database", rc.Database, "tls", tlsCfg != nil)

	exec := worker.NewPool(n.cfg.Messenger.Workers, n.cfg.Messenger.QueueSize, worker.RunTask,
		worker.WithMetrics[worker.Task](n.metrics, "tasks"))
	if err := exec.Start(context.Background()); err != nil {
		_ = p.Close()
		return err
	}

	if n.metrics != nil {
		if err := n.metrics.Register(metric.NewCollector(p)); err != nil {
			n.log.Warn("pool collector not registered", "error", err)
		}
	}

	n.pool = p
	n.exec = exec
	n.keyPair = kp
	n.cache = cache.New(p, cache.WithExecutor(exec), cache.WithLogger(n.log), cache.WithMetrics(n.metrics))
	n.messenger = messenger.New(p, exec,
		messenger.WithLogger(n.log), messenger.WithMetrics(n.metrics), messenger.WithDebug(n.cfg.Debug))

	waitCtx, cancel := context.WithTimeout(ctx, rc.Timeout)
	defer cancel()
	if err := n.messenger.WaitActive(waitCtx); err != nil {
		n.log.Warn("messenger subscription not confirmed", "error", err)
	}

	n.log.Info("node started", "node_id", n.messenger.Identity())
	return nil
}

// Cache returns the cache store, or nil when the node runs without a store.
func (n *Node) Cache() *cache.Store {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cache
}

// Messenger returns the messenger, or nil when the node runs without a
// store.
func (n *Node) Messenger() *messenger.Messenger {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messenger
}

// Pool returns the connection pool, or nil when the node runs without a
// store.
func (n *Node) Pool() *pool.Pool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool
}

// Enabled reports whether Start built the cache and the messenger.
func (n *Node) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool != nil
}

// IsConnected reports the last known reachability of the store.
func (n *Node) IsConnected() bool {
	p := n.Pool()
	return p != nil && p.IsConnected()
}

// Health is a point-in-time view of the node for health endpoints.
type Health struct {
	Enabled   bool        `json:"enabled"`
	Connected bool        `json:"connected"`
	NodeID    string      `json:"node_id,omitempty"`
	Messenger string      `json:"messenger,omitempty"`
	Handlers  []string    `json:"handlers,omitempty"`
	Pool      *pool.Stats `json:"pool,omitempty"`
}

// Healthy reports whether a node that should be coordinating is. A node
// whose store is disabled by configuration counts as healthy.
func (h Health) Healthy() bool {
	if !h.Enabled {
		return true
	}
	return h.Connected && h.Messenger == messenger.StateActive.String()
}

// Health reports the node state.
func (n *Node) Health() Health {
	n.mu.Lock()
	p, m, enabled := n.pool, n.messenger, n.cfg.Redis.Enabled
	n.mu.Unlock()

	h := Health{Enabled: enabled}
	if p != nil {
		stats := p.Stats()
		h.Pool = &stats
		h.Connected = p.IsConnected()
	}
	if m != nil {
		h.NodeID = m.Identity()
		h.Messenger = m.State().String()
		h.Handlers = m.HandlerTypes()
	}
	return h
}

// SetDebug toggles envelope logging at runtime.
func (n *Node) SetDebug(enabled bool) {
	n.mu.Lock()
	n.cfg.Debug = enabled
	m := n.messenger
	n.mu.Unlock()
	if m != nil {
		m.SetDebug(enabled)
	}
}

// ReloadTLS re-reads the client certificate, if one is configured. New
// connections use it; open ones keep theirs.
func (n *Node) ReloadTLS() error {
	n.mu.Lock()
	kp := n.keyPair
	n.mu.Unlock()
	if kp == nil {
		return nil
	}
	if err := kp.Reload(); err != nil {
		return err
	}
	n.log.Info("client certificate reloaded", "not_after", kp.NotAfter())
	return nil
}

// TLSFiles returns the client certificate and key paths, if configured.
func (n *Node) TLSFiles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.keyPair == nil {
		return nil
	}
	cert, key := n.keyPair.Files()
	return []string{cert, key}
}

// Stop closes the messenger, drains the worker pool and closes the
// connection pool. It is safe to call more than once.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	m, exec, p := n.messenger, n.exec, n.pool
	n.mu.Unlock()

	var errs []error
	if m != nil {
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if exec != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := exec.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if p != nil {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	n.log.Info("node stopped")
	return errors.Join(errs...)
}
