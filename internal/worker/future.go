package worker

import (
	"context"
	"fmt"
	"sync"
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker: task panicked: %v", e.Value)
}

// Future is the eventual result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](val T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Complete(val, err)
	return f
}

// Complete resolves the future. Only the first call has an effect.
func (f *Future[T]) Complete(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Get blocks until the result is available.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Task is a unit of work for a Pool[Task].
type Task func(ctx context.Context) error

// RunTask is the processor for a Pool[Task].
func RunTask(ctx context.Context, t Task) error {
	return t(ctx)
}

// Go schedules fn on pool and returns its future. When the pool rejects the
// task the future resolves with the rejection error and fn never runs. A
// nil pool runs fn on its own goroutine.
func Go[T any](pool *Pool[Task], fn func(ctx context.Context) (T, error)) *Future[T] {
	f := NewFuture[T]()
	task := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				err = &PanicError{Value: r}
				f.Complete(zero, err)
			}
		}()
		v, err := fn(ctx)
		f.Complete(v, err)
		return err
	}

	if pool == nil {
		go func() { _ = task(context.Background()) }()
		return f
	}
	if err := pool.Submit(task); err != nil {
		var zero T
		f.Complete(zero, err)
	}
	return f
}
