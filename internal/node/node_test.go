package node

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/meshbus-go/internal/core/domain"
	"github.com/yndnr/meshbus-go/internal/devstore"
	"github.com/yndnr/meshbus-go/internal/messenger"
	"github.com/yndnr/meshbus-go/internal/node/config"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
)

func testConfig(srv *devstore.Server) *config.Config {
	cfg := config.Default()
	host, port := srv.HostPort()
	cfg.Redis.Host = host
	cfg.Redis.Port = port
	cfg.Redis.Pool.EvictionInterval = 0
	return cfg
}

func startNode(t *testing.T, cfg *config.Config, reg *metric.Registry) *Node {
	t.Helper()
	n := New(cfg, logger.Nop(), reg)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	return n
}

func TestNode_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = false
	n := startNode(t, cfg, nil)

	assert.False(t, n.Enabled())
	assert.False(t, n.IsConnected())
	assert.Nil(t, n.Cache())
	assert.Nil(t, n.Messenger())
	assert.NoError(t, n.Stop(context.Background()))
}

func TestNode_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := config.Default()
	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = port
	cfg.Redis.Timeout = 200 * time.Millisecond
	n := startNode(t, cfg, nil)

	assert.False(t, n.Enabled(), "node keeps running without a store")
	assert.Nil(t, n.Cache())
	assert.Nil(t, n.Messenger())
}

func TestNode_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Pool.MaxIdle = 100

	n := New(cfg, logger.Nop(), nil)
	err := n.Start(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrInvalidConfig.Code))
}

func TestNode_StartTwice(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = false
	n := startNode(t, cfg, nil)
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)
}

func TestNode_Connected(t *testing.T) {
	srv := devstore.StartForTest(t)
	reg := metric.NewRegistry()
	n := startNode(t, testConfig(srv), reg)

	require.True(t, n.Enabled())
	assert.True(t, n.IsConnected())
	require.NotNil(t, n.Cache())
	require.NotNil(t, n.Messenger())
	assert.Equal(t, messenger.StateActive, n.Messenger().State())

	ctx := context.Background()
	require.True(t, n.Cache().SetInt(ctx, "score", 42, 0))
	got, ok := n.Cache().GetInt(ctx, "score")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	count, err := testutil.GatherAndCount(reg.Gatherer(), "meshbus_pool_max_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "pool collector registered")
}

func TestNode_TwoNodesExchangeMessages(t *testing.T) {
	srv := devstore.StartForTest(t)
	a := startNode(t, testConfig(srv), nil)
	b := startNode(t, testConfig(srv), nil)

	received := make(chan *messenger.Envelope, 1)
	b.Messenger().RegisterHandlerFunc("sync_data", func(_ context.Context, env *messenger.Envelope) error {
		received <- env
		return nil
	})

	require.NoError(t, <-a.Messenger().Broadcast("sync_data", "inventory", map[string]any{"slot": 3}))

	select {
	case env := <-received:
		assert.Equal(t, a.Messenger().Identity(), env.Sender)
		slot, ok := env.DataInt("slot")
		assert.True(t, ok)
		assert.Equal(t, int64(3), slot)
	case <-time.After(3 * time.Second):
		t.Fatal("message not delivered")
	}

	// Both nodes share one cache namespace.
	ctx := context.Background()
	require.True(t, a.Cache().Set(ctx, "shared", "v", time.Minute))
	v, ok := b.Cache().GetString(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestNode_Stop(t *testing.T) {
	srv := devstore.StartForTest(t)
	n := startNode(t, testConfig(srv), nil)
	m := n.Messenger()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, n.Stop(ctx))
	require.NoError(t, n.Stop(ctx))

	assert.False(t, n.IsConnected())
	assert.Equal(t, messenger.StateStopped, m.State())
	_, ok := n.Cache().GetString(ctx, "anything")
	assert.False(t, ok, "cache fails open after stop")
}

func TestNode_SetDebugAndTLSReload(t *testing.T) {
	srv := devstore.StartForTest(t)
	n := startNode(t, testConfig(srv), nil)

	n.SetDebug(true)
	assert.True(t, n.cfg.Debug)
	assert.NoError(t, n.ReloadTLS(), "no client certificate configured")
	assert.Nil(t, n.TLSFiles())
}

func TestNode_Health(t *testing.T) {
	disabled := config.Default()
	disabled.Redis.Enabled = false
	h := startNode(t, disabled, nil).Health()
	assert.False(t, h.Enabled)
	assert.True(t, h.Healthy())
	assert.Nil(t, h.Pool)

	srv := devstore.StartForTest(t)
	n := startNode(t, testConfig(srv), nil)
	n.Messenger().RegisterHandlerFunc("sync_data", func(context.Context, *messenger.Envelope) error { return nil })

	h = n.Health()
	assert.True(t, h.Enabled)
	assert.True(t, h.Connected)
	assert.Equal(t, "active", h.Messenger)
	assert.Equal(t, n.Messenger().Identity(), h.NodeID)
	assert.Equal(t, []string{"sync_data"}, h.Handlers)
	require.NotNil(t, h.Pool)
	assert.True(t, h.Healthy())

	require.NoError(t, n.Pool().Close())
	h = n.Health()
	assert.False(t, h.Connected)
	assert.False(t, h.Healthy())
}
