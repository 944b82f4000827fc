package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/meshbus-go/internal/cache"
	"github.com/yndnr/meshbus-go/internal/devstore"
	"github.com/yndnr/meshbus-go/internal/pool"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/worker"
)

// ValueSizes defines the payload sizes in bytes used by the benchmarks.
var ValueSizes = []int{64, 1024, 16 * 1024}

// fixture bundles a running store with a pool, executor and cache on top.
type fixture struct {
	srv   *devstore.Server
	pool  *pool.Pool
	exec  *worker.Pool[worker.Task]
	cache *cache.Store
}

// newFixture starts a store and connects a pool of maxTotal connections.
func newFixture(b *testing.B, maxTotal int) *fixture {
	b.Helper()

	srv := devstore.StartForTest(b)
	host, port := srv.HostPort()

	cfg := pool.DefaultConfig()
	cfg.MaxTotal = maxTotal
	cfg.MaxIdle = maxTotal
	cfg.MinIdle = 0
	cfg.EvictionInterval = 0
	p, err := pool.New(cfg, pool.TCPDialer(host, port, nil), pool.WithLogger(logger.Nop()))
	if err != nil {
		b.Fatalf("new pool: %v", err)
	}
	b.Cleanup(func() { _ = p.Close() })
	if err := p.Ping(context.Background()); err != nil {
		b.Fatalf("ping: %v", err)
	}

	exec := worker.NewPool(4, 1024, worker.RunTask)
	if err := exec.Start(context.Background()); err != nil {
		b.Fatalf("start executor: %v", err)
	}
	b.Cleanup(func() { _ = exec.Stop(5 * time.Second) })

	return &fixture{
		srv:   srv,
		pool:  p,
		exec:  exec,
		cache: cache.New(p, cache.WithExecutor(exec), cache.WithLogger(logger.Nop())),
	}
}

// payload returns a value of the given size.
func payload(size int) string {
	return strings.Repeat("x", size)
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithValueSizes runs a benchmark function with various payload sizes.
func runWithValueSizes(b *testing.B, sizes []int, benchFn func(b *testing.B, size int)) {
	for _, size := range sizes {
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			benchFn(b, size)
		})
	}
}
