package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.PoolAcquireTotal == nil || r.CacheOpsTotal == nil || r.MessagesReceived == nil {
		t.Error("metric families not initialised")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveCacheOp("get", "miss", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `meshbus_cache_operations_total{op="get",result="miss"} 1`) {
		t.Errorf("cache counter missing from output:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector missing from output")
	}
}

func TestObserveHelpers(t *testing.T) {
	r := NewRegistry()

	r.ObserveAcquire("ok", time.Millisecond)
	r.ObserveDial(nil)
	r.ObserveDial(errors.New("refused"))
	r.ObserveHealthCheck("borrow", false)
	r.ObserveEviction()
	r.ObserveSend("grvutils:main", nil)
	r.ObserveReceive("grvutils:broadcast", "self")
	r.ObserveHandler("player_message", time.Millisecond)

	if got := testutil.ToFloat64(r.PoolAcquireTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("acquire ok = %v", got)
	}
	if got := testutil.ToFloat64(r.PoolDialsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("dial error = %v", got)
	}
	if got := testutil.ToFloat64(r.PoolHealthChecks.WithLabelValues("borrow", "failed")); got != 1 {
		t.Errorf("health failed = %v", got)
	}
	if got := testutil.ToFloat64(r.PoolEvictionsTotal); got != 1 {
		t.Errorf("evictions = %v", got)
	}
	if got := testutil.ToFloat64(r.MessagesReceived.WithLabelValues("grvutils:broadcast", "self")); got != 1 {
		t.Errorf("received self = %v", got)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	r.ObserveAcquire("ok", time.Second)
	r.ObserveDial(nil)
	r.ObserveHealthCheck("idle", true)
	r.ObserveEviction()
	r.ObserveCacheOp("set", "ok", time.Second)
	r.ObserveSend("c", nil)
	r.ObserveReceive("c", "dispatched")
	r.ObserveHandler("t", time.Second)
	if err := r.Register(nil); err != nil {
		t.Errorf("Register on nil registry = %v", err)
	}
}

func TestCollector(t *testing.T) {
	r := NewRegistry()
	c := NewCollector(PoolSourceFunc(func() PoolSnapshot {
		return PoolSnapshot{Active: 3, Idle: 2, Waiting: 1, Max: 20}
	}))
	if err := r.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if n := testutil.CollectAndCount(c); n != 4 {
		t.Errorf("CollectAndCount = %d, want 4", n)
	}

	expected := `
# HELP meshbus_pool_active_connections Connections currently borrowed.
# TYPE meshbus_pool_active_connections gauge
meshbus_pool_active_connections 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "meshbus_pool_active_connections"); err != nil {
		t.Error(err)
	}
}
