package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/yndnr/meshbus-go/internal/core/domain"
	"github.com/yndnr/meshbus-go/internal/resp"
	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
	"github.com/yndnr/meshbus-go/internal/telemetry/metric"
	"github.com/yndnr/meshbus-go/internal/worker"
)

// Prefix namespaces every cache key in the store.
const Prefix = "grvutils:cache:"

// NoExpiry is returned by TTL for keys that never expire.
const NoExpiry time.Duration = -1

// ErrMiss resolves asynchronous reads that found nothing usable.
var ErrMiss = errors.New("cache: miss")

// Backend is the transport the store runs commands on. *pool.Pool
// implements it.
type Backend interface {
	Do(ctx context.Context, args ...string) (resp.Value, error)
	Available(ctx context.Context) bool
}

// Store is the cache. It is safe for concurrent use.
type Store struct {
	backend Backend
	exec    *worker.Pool[worker.Task]
	log     logger.Logger
	metrics *metric.Registry
}

// Option configures a Store.
type Option func(*Store)

// WithExecutor sets the worker pool that runs the *Async operations.
// Without one, each async call runs on its own goroutine.
func WithExecutor(p *worker.Pool[worker.Task]) Option {
	return func(s *Store) { s.exec = p }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithMetrics(r *metric.Registry) Option {
	return func(s *Store) { s.metrics = r }
}

// New creates a cache store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrDefault(s.log).With("component", "cache")
	return s
}

// Key returns the namespaced store key for a logical key.
func Key(key string) string { return Prefix + key }

// do runs one command against the namespaced key, recording metrics. It
// returns false when the store is unavailable or answered with an error.
func (s *Store) do(ctx context.Context, op string, args ...string) (resp.Value, bool) {
	start := time.Now()
	if !s.backend.Available(ctx) {
		s.metrics.ObserveCacheOp(op, "unavailable", time.Since(start))
		s.log.Debug("store unavailable, skipping", "op", op)
		return resp.Value{}, false
	}

	v, err := s.backend.Do(ctx, args...)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrConnectionUnavailable) || errors.Is(err, domain.ErrPoolClosed) ||
			errors.Is(err, domain.ErrPoolExhausted) {
			result = "unavailable"
		}
		s.metrics.ObserveCacheOp(op, result, time.Since(start))
		s.log.Error("cache operation failed", "op", op, "error", err)
		return resp.Value{}, false
	}

	result := "ok"
	if v.IsNull() {
		result = "miss"
	}
	s.metrics.ObserveCacheOp(op, result, time.Since(start))
	return v, true
}

// ttlSeconds converts a TTL to whole seconds, rounding up, minimum one.
func ttlSeconds(ttl time.Duration) string {
	secs := int64((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}

// Set stores value under key. ttl <= 0 stores it without expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	if ttl > 0 {
		_, ok := s.do(ctx, "set", "SETEX", Key(key), ttlSeconds(ttl), value)
		return ok
	}
	_, ok := s.do(ctx, "set", "SET", Key(key), value)
	return ok
}

// GetString returns the raw text stored under key.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	v, ok := s.do(ctx, "get", "GET", Key(key))
	if !ok || v.Kind != resp.KindBulk {
		return "", false
	}
	return v.Str, true
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) bool {
	v, ok := s.do(ctx, "exists", "EXISTS", Key(key))
	return ok && v.Int > 0
}

// Delete removes key and reports whether it existed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	v, ok := s.do(ctx, "delete", "DEL", Key(key))
	return ok && v.Int > 0
}

// Expire sets a new TTL on an existing key. ttl <= 0 deletes the key, as
// EXPIRE does with a non-positive timeout.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	secs := "0"
	if ttl > 0 {
		secs = ttlSeconds(ttl)
	}
	v, ok := s.do(ctx, "expire", "EXPIRE", Key(key), secs)
	return ok && v.Int == 1
}

// TTL returns the remaining lifetime of key, or NoExpiry for a persistent
// key. ok is false when the key is missing or the store is unavailable.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, bool) {
	v, ok := s.do(ctx, "ttl", "TTL", Key(key))
	if !ok || v.Kind != resp.KindInteger || v.Int == -2 {
		return 0, false
	}
	if v.Int == -1 {
		return NoExpiry, true
	}
	return time.Duration(v.Int) * time.Second, true
}

// HSet sets one field of the hash stored under key.
func (s *Store) HSet(ctx context.Context, key, field, value string) bool {
	_, ok := s.do(ctx, "hset", "HSET", Key(key), field, value)
	return ok
}

// HGet returns one field of the hash stored under key.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool) {
	v, ok := s.do(ctx, "hget", "HGET", Key(key), field)
	if !ok || v.Kind != resp.KindBulk {
		return "", false
	}
	return v.Str, true
}

// HDel removes fields from the hash stored under key and returns how many
// were removed.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) int {
	if len(fields) == 0 {
		return 0
	}
	args := append([]string{"HDEL", Key(key)}, fields...)
	v, ok := s.do(ctx, "hdel", args...)
	if !ok {
		return 0
	}
	return int(v.Int)
}
