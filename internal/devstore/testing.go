package devstore

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

// StartForTest runs a server on an ephemeral loopback port and shuts it down
// when the test ends.
func StartForTest(tb testing.TB, opts ...func(*Config)) *Server {
	tb.Helper()

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.SweepInterval = 50 * time.Millisecond
	for _, opt := range opts {
		opt(&cfg)
	}

	s := New(cfg, logger.Nop())
	if err := s.Start(context.Background()); err != nil {
		tb.Fatalf("devstore: start: %v", err)
	}
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

// HostPort splits Addr into host and numeric port.
func (s *Server) HostPort() (string, int) {
	host, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		return "", 0
	}
	n, _ := strconv.Atoi(port)
	return host, n
}
