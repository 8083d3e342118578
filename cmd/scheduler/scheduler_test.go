package scheduler

import (
	"context"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

func TestReleaseOnDone_StopsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan struct{})
	go releaseOnDone(ctx, func() { close(released) })

	select {
	case <-released:
		t.Fatal("stop called before the context was done")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("stop not called after the context was done")
	}
}

func TestReleaseOnDone_WithNotifyContext(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := signal.NotifyContext(parent, syscall.SIGUSR1)
	defer stop()

	done := make(chan struct{})
	go func() {
		releaseOnDone(ctx, stop)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("releaseOnDone did not return")
	}
	if ctx.Err() == nil {
		t.Error("expected the signal context to be done")
	}
}
