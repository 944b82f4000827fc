package pool

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/yndnr/meshbus-go/internal/resp"
)

// Conn is a leased store connection. It is not safe for concurrent use.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader
	w  *bufio.Writer

	readTimeout  time.Duration
	writeTimeout time.Duration

	createdAt time.Time
	lastUsed  time.Time

	dedicated bool
	broken    atomic.Bool
	leased    atomic.Bool
}

func newConn(nc net.Conn, cfg Config) *Conn {
	now := time.Now()
	return &Conn{
		nc:           nc,
		r:            bufio.NewReader(nc),
		w:            bufio.NewWriter(nc),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		createdAt:    now,
		lastUsed:     now,
	}
}

// Do sends one command and reads its reply. An error reply from the store is
// returned as a Value of KindError with a nil error; I/O failures mark the
// connection broken.
func (c *Conn) Do(ctx context.Context, args ...string) (resp.Value, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := c.send(ctx, args...); err != nil {
		return resp.Value{}, err
	}

	if err := c.nc.SetReadDeadline(deadline(ctx, c.readTimeout)); err != nil {
		c.broken.Store(true)
		return resp.Value{}, err
	}
	v, err := resp.ReadValue(c.r)
	if err != nil {
		c.broken.Store(true)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resp.Value{}, ctxErr
		}
		return resp.Value{}, err
	}
	c.lastUsed = time.Now()
	return v, nil
}

// Send writes a command without waiting for a reply. Used for SUBSCRIBE.
func (c *Conn) Send(args ...string) error {
	return c.send(context.Background(), args...)
}

func (c *Conn) send(ctx context.Context, args ...string) error {
	if c.broken.Load() {
		return errBroken
	}
	if err := c.nc.SetWriteDeadline(deadline(ctx, c.writeTimeout)); err != nil {
		c.broken.Store(true)
		return err
	}
	if err := resp.WriteCommand(c.w, args...); err != nil {
		c.broken.Store(true)
		return err
	}
	if err := c.w.Flush(); err != nil {
		c.broken.Store(true)
		return err
	}
	return nil
}

// Receive blocks until the next reply arrives. It clears the read deadline
// and is meant for subscription connections; closing the connection
// unblocks it.
func (c *Conn) Receive() (resp.Value, error) {
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		c.broken.Store(true)
		return resp.Value{}, err
	}
	v, err := resp.ReadValue(c.r)
	if err != nil {
		c.broken.Store(true)
		return resp.Value{}, err
	}
	c.lastUsed = time.Now()
	return v, nil
}

// Broken reports whether an I/O error has been seen on this connection.
func (c *Conn) Broken() bool { return c.broken.Load() }

// Dedicated reports whether the connection was leased with AcquireDedicated.
func (c *Conn) Dedicated() bool { return c.dedicated }

// RemoteAddr returns the store address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Close closes the socket. It does not return the lease; callers holding a
// lease use Pool.Discard instead.
func (c *Conn) Close() error {
	c.broken.Store(true)
	return c.nc.Close()
}

// ping performs the liveness check.
func (c *Conn) ping(ctx context.Context) bool {
	v, err := c.Do(ctx, "PING")
	return err == nil && v.Kind == resp.KindSimpleString && v.Str == "PONG"
}

var errBroken = errors.New("pool: connection is broken")

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

// isNetworkError reports whether err means the connection is unusable, as
// opposed to an error reply or a pool-level failure.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errBroken) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, resp.ErrProtocol) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
