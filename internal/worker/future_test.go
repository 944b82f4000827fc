package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_CompleteOnce(t *testing.T) {
	f := NewFuture[string]()
	f.Complete("first", nil)
	f.Complete("second", errors.New("ignored"))

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	select {
	case <-f.Done():
	default:
		t.Fatal("Done() not closed after Complete")
	}
}

func TestFuture_WaitContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolved(t *testing.T) {
	v, err := Resolved(7, nil).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGo_OnPool(t *testing.T) {
	p := NewPool(2, 8, RunTask)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	f := Go(p, func(context.Context) (bool, error) { return true, nil })
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, v)
}

func TestGo_RejectedResolvesWithError(t *testing.T) {
	p := NewPool(1, 1, RunTask)
	ran := make(chan struct{}, 1)
	f := Go(p, func(context.Context) (int, error) {
		ran <- struct{}{}
		return 42, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, ErrPoolNotStarted)

	select {
	case <-ran:
		t.Fatal("rejected work must not run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGo_NilPoolRunsOnGoroutine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := Go[int](nil, func(context.Context) (int, error) { return 7, nil }).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = Go[int](nil, func(context.Context) (int, error) { return 1, errors.New("bad") }).Wait(ctx)
	assert.EqualError(t, err, "bad")
}

func TestGo_ConcurrencyBoundedByPool(t *testing.T) {
	p := NewPool(1, 1, RunTask)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(time.Second)

	release := make(chan struct{})
	var running, peak atomic.Int32
	futures := make([]*Future[bool], 50)
	for i := range futures {
		futures[i] = Go(p, func(context.Context) (bool, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return true, nil
		})
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var done, rejected int
	for _, f := range futures {
		_, err := f.Wait(ctx)
		switch {
		case err == nil:
			done++
		case errors.Is(err, ErrQueueFull):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, int32(1), peak.Load(), "one worker runs one task at a time")
	assert.LessOrEqual(t, done, 2, "one running plus one queued")
	assert.Equal(t, 50, done+rejected)
}

func TestGo_Panic(t *testing.T) {
	f := Go[int](nil, func(context.Context) (int, error) { panic("oops") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := f.Wait(ctx)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "oops", pe.Value)
}
