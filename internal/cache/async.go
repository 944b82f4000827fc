package cache

import (
	"context"
	"time"

	"github.com/yndnr/meshbus-go/internal/worker"
)

// Asynchronous variants run on the store's executor. Boolean results resolve
// with a nil error; reads that find nothing resolve with ErrMiss.

func (s *Store) SetAsync(key, value string, ttl time.Duration) *worker.Future[bool] {
	return worker.Go(s.exec, func(ctx context.Context) (bool, error) {
		return s.Set(ctx, key, value, ttl), nil
	})
}

func (s *Store) SetObjectAsync(key string, v any, ttl time.Duration) *worker.Future[bool] {
	return worker.Go(s.exec, func(ctx context.Context) (bool, error) {
		return s.SetObject(ctx, key, v, ttl), nil
	})
}

func (s *Store) GetStringAsync(key string) *worker.Future[string] {
	return worker.Go(s.exec, func(ctx context.Context) (string, error) {
		v, ok := s.GetString(ctx, key)
		if !ok {
			return "", ErrMiss
		}
		return v, nil
	})
}

// GetObjectAsync is the asynchronous form of GetObject.
func GetObjectAsync[T any](s *Store, key string) *worker.Future[T] {
	return worker.Go(s.exec, func(ctx context.Context) (T, error) {
		v, ok := GetObject[T](ctx, s, key)
		if !ok {
			return v, ErrMiss
		}
		return v, nil
	})
}

func (s *Store) ExistsAsync(key string) *worker.Future[bool] {
	return worker.Go(s.exec, func(ctx context.Context) (bool, error) {
		return s.Exists(ctx, key), nil
	})
}

func (s *Store) DeleteAsync(key string) *worker.Future[bool] {
	return worker.Go(s.exec, func(ctx context.Context) (bool, error) {
		return s.Delete(ctx, key), nil
	})
}

func (s *Store) ExpireAsync(key string, ttl time.Duration) *worker.Future[bool] {
	return worker.Go(s.exec, func(ctx context.Context) (bool, error) {
		return s.Expire(ctx, key, ttl), nil
	})
}
