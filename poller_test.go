package findly

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestPollerTicks(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(10 * time.Millisecond)
	p.Start(func(ctx context.Context) { calls.Add(1) })
	defer p.Stop()

	waitFor(t, time.Second, func() bool { return calls.Load() >= 2 })
}

func TestPollerStopIsSynchronous(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var calls atomic.Int64

	p := NewPoller(10 * time.Millisecond)
	p.Start(func(ctx context.Context) {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
			<-release
			finished.Store(true)
		default:
		}
	})

	<-entered
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(release)
	}()
	p.Stop()

	if !finished.Load() {
		t.Error("Stop returned while a refresh was still running")
	}

	// Nothing fires after Stop.
	settled := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != settled {
		t.Errorf("refresh fired after Stop: %d calls, had %d", calls.Load(), settled)
	}
	if p.Active() {
		t.Error("poller still active after Stop")
	}
}

func TestPollerStopBeforeFirstTick(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller(100 * time.Millisecond)
	p.Start(func(ctx context.Context) { calls.Add(1) })
	p.Stop()

	time.Sleep(250 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("refresh fired %d times after immediate Stop", calls.Load())
	}
}

func TestPollerStopIdleIsNoop(t *testing.T) {
	p := NewPoller(time.Second)
	p.Stop()
	p.Stop()
	if p.Active() {
		t.Error("idle poller reports active")
	}
}

func TestPollerRefreshesNeverOverlap(t *testing.T) {
	var inFlight atomic.Int64
	var overlapped atomic.Bool
	var calls atomic.Int64

	p := NewPoller(5 * time.Millisecond)
	p.Start(func(ctx context.Context) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	})

	waitFor(t, time.Second, func() bool { return calls.Load() >= 3 })
	p.Stop()

	if overlapped.Load() {
		t.Error("two refreshes ran concurrently")
	}
}

func TestPollerRebindCancelsPreviousTarget(t *testing.T) {
	var first, second atomic.Int64

	p := NewPoller(10 * time.Millisecond)
	p.Start(func(ctx context.Context) { first.Add(1) })
	waitFor(t, time.Second, func() bool { return first.Load() >= 1 })

	p.Start(func(ctx context.Context) { second.Add(1) })
	settled := first.Load()
	waitFor(t, time.Second, func() bool { return second.Load() >= 2 })
	p.Stop()

	if first.Load() != settled {
		t.Errorf("previous callback fired after rebind: %d calls, had %d", first.Load(), settled)
	}
}

func TestPollerStopCancelsRefreshContext(t *testing.T) {
	entered := make(chan struct{})
	var cancelled atomic.Bool

	p := NewPoller(10 * time.Millisecond)
	p.Start(func(ctx context.Context) {
		select {
		case entered <- struct{}{}:
			<-ctx.Done()
			cancelled.Store(true)
		default:
		}
	})

	<-entered
	p.Stop()

	if !cancelled.Load() {
		t.Error("refresh context not cancelled by Stop")
	}
}
