package pool

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/yndnr/meshbus-go/internal/core/domain"
	"github.com/yndnr/meshbus-go/internal/resp"
)

// DialFunc opens a raw transport connection to the store.
type DialFunc func(ctx context.Context) (net.Conn, error)

// TCPDialer dials host:port, wrapping the connection in TLS when tlsConfig
// is non-nil.
func TCPDialer(host string, port int, tlsConfig *tls.Config) DialFunc {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return func(ctx context.Context) (net.Conn, error) {
		d := &net.Dialer{KeepAlive: 30 * time.Second}
		if tlsConfig != nil {
			td := &tls.Dialer{NetDialer: d, Config: tlsConfig}
			return td.DialContext(ctx, "tcp", addr)
		}
		return d.DialContext(ctx, "tcp", addr)
	}
}

// open dials and prepares a connection: AUTH when a password is set and
// SELECT when a non-default database is configured.
func (p *Pool) open(ctx context.Context) (*Conn, error) {
	if p.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()
	}

	nc, err := p.dial(ctx)
	if err != nil {
		return nil, domain.ErrConnectionUnavailable.WithCause(err)
	}
	c := newConn(nc, p.cfg)

	if p.cfg.Password != "" {
		v, err := c.Do(ctx, "AUTH", p.cfg.Password)
		if err != nil {
			_ = c.Close()
			return nil, domain.ErrConnectionUnavailable.WithCause(err)
		}
		if v.Kind == resp.KindError {
			_ = c.Close()
			return nil, domain.ErrAuthFailed.WithCause(v.Err())
		}
	}

	if p.cfg.Database != 0 {
		v, err := c.Do(ctx, "SELECT", strconv.Itoa(p.cfg.Database))
		if err != nil {
			_ = c.Close()
			return nil, domain.ErrConnectionUnavailable.WithCause(err)
		}
		if v.Kind == resp.KindError {
			_ = c.Close()
			return nil, domain.ErrOperationFailure.
				WithDetails(fmt.Sprintf("SELECT %d", p.cfg.Database)).
				WithCause(v.Err())
		}
	}

	return c, nil
}
