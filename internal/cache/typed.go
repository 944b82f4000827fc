package cache

import (
	"context"
	"time"

	"github.com/yndnr/meshbus-go/internal/codec"
)

// SetObject stores v as JSON.
func (s *Store) SetObject(ctx context.Context, key string, v any, ttl time.Duration) bool {
	text, err := codec.Encode(v)
	if err != nil {
		s.log.Error("cannot encode cache value", "key", key, "error", err)
		return false
	}
	return s.Set(ctx, key, text, ttl)
}

// GetObject decodes the JSON stored under key into a T. A value that does
// not decode is logged and reported absent.
func GetObject[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var zero T
	text, ok := s.GetString(ctx, key)
	if !ok {
		return zero, false
	}
	v, err := codec.Decode[T](text)
	if err != nil {
		s.log.Warn("cached value does not match requested type", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

func SetList[T any](ctx context.Context, s *Store, key string, list []T, ttl time.Duration) bool {
	return s.SetObject(ctx, key, list, ttl)
}

func GetList[T any](ctx context.Context, s *Store, key string) ([]T, bool) {
	return GetObject[[]T](ctx, s, key)
}

func SetMap[K comparable, V any](ctx context.Context, s *Store, key string, m map[K]V, ttl time.Duration) bool {
	return s.SetObject(ctx, key, m, ttl)
}

func GetMap[K comparable, V any](ctx context.Context, s *Store, key string) (map[K]V, bool) {
	return GetObject[map[K]V](ctx, s, key)
}

func SetSet[T comparable](ctx context.Context, s *Store, key string, set codec.Set[T], ttl time.Duration) bool {
	return s.SetObject(ctx, key, set, ttl)
}

func GetSet[T comparable](ctx context.Context, s *Store, key string) (codec.Set[T], bool) {
	return GetObject[codec.Set[T]](ctx, s, key)
}

func (s *Store) SetInt(ctx context.Context, key string, v int, ttl time.Duration) bool {
	return s.Set(ctx, key, codec.FormatInt(int64(v)), ttl)
}

// GetInt returns the integer under key. Text that is not an integer, or does
// not fit an int, is reported absent.
func (s *Store) GetInt(ctx context.Context, key string) (int, bool) {
	n, ok := s.GetInt64(ctx, key)
	if !ok || int64(int(n)) != n {
		return 0, false
	}
	return int(n), true
}

func (s *Store) SetInt64(ctx context.Context, key string, v int64, ttl time.Duration) bool {
	return s.Set(ctx, key, codec.FormatInt(v), ttl)
}

func (s *Store) GetInt64(ctx context.Context, key string) (int64, bool) {
	text, ok := s.GetString(ctx, key)
	if !ok {
		return 0, false
	}
	n, err := codec.ParseInt(text)
	if err != nil {
		s.log.Warn("cached value is not an integer", "key", key, "error", err)
		return 0, false
	}
	return n, true
}

func (s *Store) SetBool(ctx context.Context, key string, v bool, ttl time.Duration) bool {
	return s.Set(ctx, key, codec.FormatBool(v), ttl)
}

func (s *Store) GetBool(ctx context.Context, key string) (bool, bool) {
	text, ok := s.GetString(ctx, key)
	if !ok {
		return false, false
	}
	b, err := codec.ParseBool(text)
	if err != nil {
		s.log.Warn("cached value is not a boolean", "key", key, "error", err)
		return false, false
	}
	return b, true
}

func (s *Store) SetFloat(ctx context.Context, key string, v float64, ttl time.Duration) bool {
	return s.Set(ctx, key, codec.FormatFloat(v), ttl)
}

func (s *Store) GetFloat(ctx context.Context, key string) (float64, bool) {
	text, ok := s.GetString(ctx, key)
	if !ok {
		return 0, false
	}
	f, err := codec.ParseFloat(text)
	if err != nil {
		s.log.Warn("cached value is not a number", "key", key, "error", err)
		return 0, false
	}
	return f, true
}
