package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/meshbus-go/internal/cache"
	"github.com/yndnr/meshbus-go/internal/infra/tlsroots"
	"github.com/yndnr/meshbus-go/internal/messenger"
	"github.com/yndnr/meshbus-go/internal/pool"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

// Options describe the store to connect to.
type Options struct {
	Host     string
	Port     int
	Password string
	Database int
	Timeout  time.Duration
	TLS      tlsroots.Config
}

// DefaultOptions targets a local store.
func DefaultOptions() Options {
	return Options{Host: "localhost", Port: 6379, Timeout: 2 * time.Second}
}

// Addr returns host:port.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Client bundles the pool and the facades built on it. A CLI invocation
// needs only a couple of connections, so the pool is small and runs no
// evictor.
type Client struct {
	opts  Options
	log   logger.Logger
	Pool  *pool.Pool
	Cache *cache.Store

	mu        sync.Mutex
	messenger *messenger.Messenger
}

// Dial connects and pings the store.
func Dial(ctx context.Context, opts Options, log logger.Logger) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	log = logger.OrDefault(log)

	tlsCfg, _, err := tlsroots.ClientConfig(opts.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	cfg := pool.DefaultConfig()
	cfg.Password = opts.Password
	cfg.Database = opts.Database
	cfg.MaxTotal = 4
	cfg.MaxIdle = 2
	cfg.MinIdle = 0
	cfg.ConnectTimeout = opts.Timeout
	cfg.ReadTimeout = opts.Timeout
	cfg.WriteTimeout = opts.Timeout
	cfg.MaxWait = opts.Timeout
	cfg.EvictionInterval = 0

	p, err := pool.New(cfg, pool.TCPDialer(opts.Host, opts.Port, tlsCfg), pool.WithLogger(log))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("connect %s: %w", opts.Addr(), err)
	}

	return &Client{
		opts:  opts,
		log:   log,
		Pool:  p,
		Cache: cache.New(p, cache.WithLogger(log)),
	}, nil
}

// Addr returns the store address.
func (c *Client) Addr() string { return c.opts.Addr() }

// Messenger returns the client's messenger, subscribing on first use and
// waiting until both channels are confirmed.
func (c *Client) Messenger(ctx context.Context) (*messenger.Messenger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messenger == nil {
		c.messenger = messenger.New(c.Pool, nil, messenger.WithLogger(c.log))
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	if err := c.messenger.WaitActive(waitCtx); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return c.messenger, nil
}

// Close stops the messenger, if any, and closes the pool.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	m := c.messenger
	c.mu.Unlock()

	var errs []error
	if m != nil {
		errs = append(errs, m.Close(ctx))
	}
	errs = append(errs, c.Pool.Close())
	return errors.Join(errs...)
}
