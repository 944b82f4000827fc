package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/yndnr/meshbus-go/internal/telemetry/logger"
)

func recordHooks(h *Handler, n int) func() []int {
	var mu sync.Mutex
	var order []int
	for i := 1; i <= n; i++ {
		i := i
		h.OnShutdown("hook", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	return func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), order...)
	}
}

func waitResult(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
		return nil
	}
}

func TestHandler_DoneNotClosedInitially(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_TriggerRunsHooksInReverse(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	order := recordHooks(h, 3)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()
	h.Trigger()
	h.Trigger()

	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	got := order()
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", got)
	}
	<-h.Done()
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	order := recordHooks(h, 1)

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if len(order()) != 1 {
		t.Error("hook not called")
	}
}

func TestHandler_ContextCancel(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	order := recordHooks(h, 2)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(ctx) }()
	cancel()

	if err := waitResult(t, errCh); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
	if len(order()) != 2 {
		t.Errorf("hooks called = %v", order())
	}
}

func TestHandler_ErrorsAreJoined(t *testing.T) {
	h := NewHandler(time.Second, logger.Nop())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	var ranAfterFailure bool

	h.OnShutdown("last", func(context.Context) error {
		ranAfterFailure = true
		return nil
	})
	h.OnShutdown("b", func(context.Context) error { return errB })
	h.OnShutdown("a", func(context.Context) error { return errA })

	err := h.Run()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Run() error = %v, want both failures", err)
	}
	if !ranAfterFailure {
		t.Error("a failing hook must not stop later hooks")
	}
	if again := h.Run(); again != err {
		t.Errorf("second Run() = %v, want %v", again, err)
	}
}

func TestHandler_HooksShareDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, logger.Nop())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := h.Run()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("hook deadline not applied")
	}
}
