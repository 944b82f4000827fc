package devstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/meshbus-go/internal/resp"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

// Config holds the development store configuration.
type Config struct {
	// Address to listen on; use "127.0.0.1:0" for an ephemeral port.
	Address string `koanf:"address"`
	// Password enables AUTH when non-empty.
	Password string `koanf:"password"`
	// Databases is the number of SELECT-able databases.
	Databases int `koanf:"databases"`
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout bounds flushing one reply.
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// IdleTimeout closes connections that send nothing. Subscribed
	// connections are exempt.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
	// RateLimit is the number of commands per second allowed on a single
	// connection. Zero disables limiting.
	RateLimit int `koanf:"rate_limit"`
	// SweepInterval is how often expired keys are purged.
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// SnapshotFile, when set, is loaded on Start and written by SAVE and
	// on Shutdown.
	SnapshotFile string `koanf:"snapshot_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:       "127.0.0.1:6379",
		Databases:     16,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   5 * time.Minute,
		SweepInterval: time.Second,
	}
}

// Server is the RESP2 development store.
type Server struct {
	cfg     Config
	ks      *Keyspace
	hub     *Hub
	handler *commandHandler
	log     logger.Logger

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
	stop    chan struct{}

	connsMu sync.Mutex
	conns   map[*Conn]struct{}
}

// Conn is one client connection.
type Conn struct {
	netConn net.Conn
	br      *bufio.Reader

	// wmu serialises replies and pushed pub/sub messages.
	wmu sync.Mutex
	bw  *bufio.Writer

	authenticated bool
	db            int
	subs          map[string]func()
	outbox        chan Message
	limiter       *rate.Limiter

	closed atomic.Bool
	done   chan struct{}
}

func newConn(c net.Conn, cfg Config) *Conn {
	conn := &Conn{
		netConn:       c,
		br:            bufio.NewReader(c),
		bw:            bufio.NewWriter(c),
		authenticated: cfg.Password == "",
		subs:          make(map[string]func()),
		done:          make(chan struct{}),
	}
	if cfg.RateLimit > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	return conn
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	return c.netConn.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}

// New creates a server. A nil logger uses the package default.
func New(cfg Config, log logger.Logger) *Server {
	if cfg.Databases <= 0 {
		cfg.Databases = 16
	}
	s := &Server{
		cfg:   cfg,
		ks:    NewKeyspace(),
		hub:   NewHub(),
		log:   logger.OrDefault(log).With("component", "devstore"),
		stop:  make(chan struct{}),
		conns: make(map[*Conn]struct{}),
	}
	s.handler = &commandHandler{srv: s}
	return s
}

// Keyspace exposes the data for inspection in tests.
func (s *Server) Keyspace() *Keyspace { return s.ks }

// Hub exposes the pub/sub hub.
func (s *Server) Hub() *Hub { return s.hub }

// Addr returns the listening address once Start succeeded.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.SnapshotFile != "" {
		info, err := s.ks.LoadSnapshot(s.cfg.SnapshotFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return fmt.Errorf("load snapshot: %w", err)
		default:
			s.log.Info("snapshot loaded", "path", info.Path, "keys", info.KeyCount)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.ln = ln
	s.running.Store(true)
	s.log.Info("devstore listening", "address", ln.Addr().String(), "auth", s.cfg.Password != "")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx); err != nil && s.running.Load() {
			s.log.Error("accept loop failed", "error", err)
		}
	}()

	if s.cfg.SweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return nil
}

// Shutdown closes the listener and every client connection.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stop)

	var firstErr error
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.cfg.SnapshotFile != "" {
		if _, err := s.Save(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Save writes the keyspace to the configured snapshot file.
func (s *Server) Save() (*SnapshotInfo, error) {
	if s.cfg.SnapshotFile == "" {
		return nil, errors.New("snapshot file not configured")
	}
	info, err := s.ks.SaveSnapshot(s.cfg.SnapshotFile)
	if err != nil {
		return nil, err
	}
	s.log.Info("snapshot saved", "path", info.Path, "keys", info.KeyCount, "bytes", info.Size)
	return info, nil
}

func (s *Server) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.ks.Sweep(); n > 0 {
				s.log.Debug("expired keys swept", "count", n)
			}
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		c := newConn(nc, s.cfg)
		s.connsMu.Lock()
		s.conns[c] = struct{}{}
		s.connsMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.connsMu.Lock()
				delete(s.conns, c)
				s.connsMu.Unlock()
			}()
			s.serveConn(c)
		}()
	}
}

func (s *Server) timeouts() (read, write, idle time.Duration) {
	read, write, idle = s.cfg.ReadTimeout, s.cfg.WriteTimeout, s.cfg.IdleTimeout
	if read == 0 {
		read = 30 * time.Second
	}
	if write == 0 {
		write = 30 * time.Second
	}
	if idle == 0 {
		idle = 5 * time.Minute
	}
	return read, write, idle
}

func (s *Server) serveConn(c *Conn) {
	defer func() {
		for _, cancel := range c.subs {
			cancel()
		}
		_ = c.Close()
	}()
	readTimeout, writeTimeout, idleTimeout := s.timeouts()

	for {
		// Subscribers may stay silent indefinitely.
		var idleDeadline time.Time
		if len(c.subs) == 0 {
			idleDeadline = time.Now().Add(idleTimeout)
		}
		if err := c.netConn.SetReadDeadline(idleDeadline); err != nil {
			return
		}
		if _, err := c.br.Peek(1); err != nil {
			s.logReadError(c, err)
			return
		}

		if err := c.netConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}
		args, err := resp.ReadCommand(c.br)
		if err != nil {
			s.logReadError(c, err)
			msg := "ERR protocol error: " + err.Error()
			if errors.Is(err, resp.ErrLimitExceeded) {
				msg = "ERR protocol limit exceeded"
			}
			if !errors.Is(err, io.EOF) {
				s.reply(c, writeTimeout, func(w *bufio.Writer) { _ = resp.WriteError(w, msg) })
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		var quit bool
		s.reply(c, writeTimeout, func(w *bufio.Writer) {
			quit = s.handler.handle(c, w, args)
		})
		if quit || c.closed.Load() {
			return
		}
	}
}

// reply runs write under the connection's write lock and flushes.
func (s *Server) reply(c *Conn, timeout time.Duration, write func(w *bufio.Writer)) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	write(c.bw)
	if err := c.netConn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return
	}
	if err := c.bw.Flush(); err != nil {
		_ = c.netConn.Close()
	}
}

func (s *Server) logReadError(c *Conn, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.log.Debug("connection timed out", "remote", c.RemoteAddr().String())
		return
	}
	s.log.Debug("connection read error", "remote", c.RemoteAddr().String(), "error", err)
}

// pushLoop writes pub/sub messages to a subscribed connection.
func (s *Server) pushLoop(c *Conn) {
	defer s.wg.Done()
	_, writeTimeout, _ := s.timeouts()
	for {
		select {
		case <-c.done:
			return
		case m := <-c.outbox:
			s.reply(c, writeTimeout, func(w *bufio.Writer) {
				_ = resp.WriteArrayHeader(w, 3)
				_ = resp.WriteBulkString(w, "message")
				_ = resp.WriteBulkString(w, m.Channel)
				_ = resp.WriteBulkString(w, m.Payload)
			})
		}
	}
}
