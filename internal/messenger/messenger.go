package messenger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/meshbus-go/internal/core/domain"
	"github.com/yndnr/meshbus-go/internal/pool"
	"github.com/yndnr/meshbus-go/internal/resp"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
	"github.com/yndnr/meshbus-go/internal/worker"
	"github.com/yndnr/meshbus-go/pkg/cmap"
)

const (
	// MainChannel carries direct messages.
	MainChannel = "grvutils:main"
	// BroadcastChannel carries messages for every node.
	BroadcastChannel = "grvutils:broadcast"

	identityPrefix = "node-"
)

// ErrStopped is returned by operations on a closed messenger.
var ErrStopped = errors.New("messenger: stopped")

// State is the lifecycle state of a Messenger.
type State int32

const (
	StateConstructed State = iota
	StateSubscribing
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Messenger publishes envelopes and dispatches inbound ones to handlers.
type Messenger struct {
	pool     *pool.Pool
	exec     *worker.Pool[worker.Task]
	log      logger.Logger
	metrics  *metric.Registry
	identity string
	handlers *cmap.Map[string, Handler]
	debug    atomic.Bool
	state    atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	active chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	conn     *pool.Conn
	stopping bool
	err      error
}

// Option configures a Messenger.
type Option func(*Messenger)

func WithLogger(l logger.Logger) Option {
	return func(m *Messenger) { m.log = l }
}

func WithMetrics(r *metric.Registry) Option {
	return func(m *Messenger) { m.metrics = r }
}

// WithDebug logs every envelope sent and received.
func WithDebug(enabled bool) Option {
	return func(m *Messenger) { m.debug.Store(enabled) }
}

// NewIdentity returns a fresh node identity.
func NewIdentity() string {
	return identityPrefix + strings.ToLower(ulid.Make().String())
}

// New creates a messenger with a fresh identity and starts subscribing to
// both channels in the background. Publishing runs on exec; a nil exec
// runs each publish on its own goroutine.
func New(p *pool.Pool, exec *worker.Pool[worker.Task], opts ...Option) *Messenger {
	m := &Messenger{
		pool:     p,
		exec:     exec,
		identity: NewIdentity(),
		handlers: cmap.New[string, Handler](),
		active:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	base := logger.OrDefault(m.log).With("component", "messenger")
	m.log = base.With("node_id", m.identity)

	// Handlers get the logger through logger.L, which adds node_id and
	// msg_type from the context.
	ctx := logger.WithNodeID(logger.WithLogger(context.Background(), base), m.identity)
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.state.Store(int32(StateSubscribing))
	go m.run()
	return m
}

// Identity returns the node identity stamped on outgoing envelopes.
func (m *Messenger) Identity() string { return m.identity }

// State returns the current lifecycle state.
func (m *Messenger) State() State { return State(m.state.Load()) }

// SetDebug toggles envelope logging.
func (m *Messenger) SetDebug(enabled bool) { m.debug.Store(enabled) }

// RegisterHandler installs h for msgType, replacing any previous handler.
func (m *Messenger) RegisterHandler(msgType string, h Handler) {
	if _, replaced := m.handlers.Get(msgType); replaced {
		m.log.Info("replacing message handler", "type", msgType)
	}
	m.handlers.Set(msgType, h)
}

func (m *Messenger) RegisterHandlerFunc(msgType string, fn func(ctx context.Context, env *Envelope) error) {
	m.RegisterHandler(msgType, HandlerFunc(fn))
}

// UnregisterHandler removes the handler for msgType.
func (m *Messenger) UnregisterHandler(msgType string) {
	m.handlers.Delete(msgType)
}

// HandlerTypes returns the message types with a registered handler, sorted.
func (m *Messenger) HandlerTypes() []string {
	types := m.handlers.Keys()
	slices.Sort(types)
	return types
}

// WaitActive blocks until both subscriptions are confirmed. It returns the
// subscription error if the messenger stopped first.
func (m *Messenger) WaitActive(ctx context.Context) error {
	select {
	case <-m.active:
		return nil
	case <-m.done:
		m.mu.Lock()
		err := m.err
		m.mu.Unlock()
		if err == nil {
			err = ErrStopped
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send publishes an envelope on the direct channel. It never blocks; the
// returned channel yields the outcome and may be ignored.
func (m *Messenger) Send(msgType, content string, data map[string]any) <-chan error {
	return m.publish(MainChannel, NewEnvelope(msgType, content, data))
}

// Broadcast publishes an envelope on the broadcast channel.
func (m *Messenger) Broadcast(msgType, content string, data map[string]any) <-chan error {
	return m.publish(BroadcastChannel, NewEnvelope(msgType, content, data))
}

func (m *Messenger) publish(channel string, env *Envelope) <-chan error {
	errc := make(chan error, 1)
	if m.State() == StateStopped {
		m.log.Warn("messenger stopped, dropping outbound message", "type", env.Type, "channel", channel)
		errc <- ErrStopped
		return errc
	}

	env.Sender = m.identity
	env.Timestamp = time.Now().UnixMilli()

	task := func(ctx context.Context) error {
		err := m.publishNow(ctx, channel, env)
		errc <- err
		return err
	}
	if m.exec == nil {
		go func() { _ = task(m.ctx) }()
		return errc
	}
	if err := m.exec.Submit(task); err != nil {
		m.log.Warn("executor rejected outbound message", "type", env.Type, "channel", channel, "error", err)
		m.metrics.ObserveSend(channel, err)
		errc <- err
	}
	return errc
}

func (m *Messenger) publishNow(ctx context.Context, channel string, env *Envelope) error {
	payload, err := encodeEnvelope(env)
	if err != nil {
		m.log.Error("cannot encode outbound message", "type", env.Type, "error", err)
		m.metrics.ObserveSend(channel, err)
		return err
	}

	if !m.pool.Available(ctx) {
		err = domain.ErrConnectionUnavailable.WithDetails("publish " + channel)
	} else {
		_, err = m.pool.Do(ctx, "PUBLISH", channel, payload)
	}
	m.metrics.ObserveSend(channel, err)
	if err != nil {
		m.log.Error("failed to publish message", "type", env.Type, "channel", channel, "error", err)
		return err
	}

	if m.debug.Load() {
		m.log.Info("sent message", "type", env.Type, "channel", channel, "payload", payload)
	}
	return nil
}

// Close unsubscribes from both channels and waits for the subscription
// goroutine to exit. When ctx ends first the subscription connection is
// closed outright.
func (m *Messenger) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		<-m.done
		return nil
	}
	m.stopping = true
	conn := m.conn
	m.mu.Unlock()

	m.state.Store(int32(StateStopped))

	if conn == nil {
		m.cancel()
		<-m.done
		return nil
	}

	if err := conn.Send("UNSUBSCRIBE", MainChannel, BroadcastChannel); err != nil {
		m.pool.Discard(conn)
	}

	var err error
	select {
	case <-m.done:
	case <-ctx.Done():
		err = ctx.Err()
		m.pool.Discard(conn)
		<-m.done
	}
	m.cancel()
	m.log.Info("messenger stopped")
	return err
}

// run owns the subscription connection.
func (m *Messenger) run() {
	defer close(m.done)
	defer m.state.Store(int32(StateStopped))

	conn, err := m.pool.AcquireDedicated(m.ctx)
	if err != nil {
		m.fail("cannot acquire subscription connection", err)
		return
	}
	defer m.pool.Discard(conn)

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.conn = conn
	err = conn.Send("SUBSCRIBE", MainChannel, BroadcastChannel)
	m.mu.Unlock()
	if err != nil {
		m.fail("cannot subscribe", err)
		return
	}

	pending := map[string]bool{MainChannel: true, BroadcastChannel: true}
	for {
		v, err := conn.Receive()
		if err != nil {
			if m.isStopping() {
				return
			}
			m.fail("subscription connection lost", err)
			return
		}
		if m.handlePush(v, pending) {
			return
		}
	}
}

// handlePush processes one pushed reply. It returns true once the last
// subscription has been dropped.
func (m *Messenger) handlePush(v resp.Value, pending map[string]bool) bool {
	if v.Kind != resp.KindArray || len(v.Array) < 3 {
		m.log.Warn("unexpected reply on subscription connection", "kind", v.Kind.String())
		return false
	}

	kind := strings.ToLower(v.Array[0].Str)
	channel := v.Array[1].Str
	switch kind {
	case "subscribe":
		m.log.Info("subscribed", "channel", channel, "subscriptions", v.Array[2].Int)
		delete(pending, channel)
		if len(pending) == 0 && m.state.CompareAndSwap(int32(StateSubscribing), int32(StateActive)) {
			close(m.active)
		}
	case "unsubscribe":
		m.log.Info("unsubscribed", "channel", channel, "subscriptions", v.Array[2].Int)
		return v.Array[2].Int == 0 && m.isStopping()
	case "message":
		m.deliver(channel, v.Array[2].Str)
	default:
		m.log.Debug("ignoring push", "kind", kind)
	}
	return false
}

// deliver decodes and dispatches one inbound payload.
func (m *Messenger) deliver(channel, payload string) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		m.log.Warn("dropping malformed message", "channel", channel, "error", err)
		m.metrics.ObserveReceive(channel, "malformed")
		return
	}
	if env.Sender == m.identity {
		m.metrics.ObserveReceive(channel, "self")
		return
	}
	if m.debug.Load() {
		m.log.Info("received message", "type", env.Type, "channel", channel, "sender", env.Sender, "payload", payload)
	}

	h, ok := m.handlers.Get(env.Type)
	if !ok {
		m.log.Debug("no handler for message type", "type", env.Type, "sender", env.Sender)
		m.metrics.ObserveReceive(channel, "unhandled")
		return
	}

	ctx := logger.WithMessageType(m.ctx, env.Type)
	start := time.Now()
	err = invoke(ctx, h, env)
	m.metrics.ObserveHandler(env.Type, time.Since(start))
	if err != nil {
		m.log.Error("message handler failed", "type", env.Type, "sender", env.Sender, "error", err)
		m.metrics.ObserveReceive(channel, "failed")
		return
	}
	m.metrics.ObserveReceive(channel, "dispatched")
}

func invoke(ctx context.Context, h Handler, env *Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &worker.PanicError{Value: r}
		}
	}()
	return h.Handle(ctx, env)
}

func (m *Messenger) isStopping() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopping
}

func (m *Messenger) fail(msg string, err error) {
	if m.isStopping() {
		return
	}
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.log.Error(msg, "error", err)
}
