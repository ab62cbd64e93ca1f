package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolSubmitRunsAllWork(t *testing.T) {
	p := NewPool(4, nil)
	defer p.Close()

	var count atomic.Int64
	for range 50 {
		p.Submit(func() { count.Add(1) })
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.WaitForRequests(ctx); err != nil {
		t.Fatalf("WaitForRequests: %v", err)
	}
	// Give the last stolen/queued items a moment to finish executing.
	deadline := time.Now().Add(time.Second)
	for count.Load() != 50 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := count.Load(); got != 50 {
		t.Fatalf("got %d completions, want 50", got)
	}
}

func TestPoolQueueWorkSeesFactoryState(t *testing.T) {
	type scratch struct{ n int }
	p := NewPool(2, func() State { return &scratch{} })
	defer p.Close()

	done := make(chan bool, 1)
	p.QueueWork(func(s State) {
		sc, ok := s.(*scratch)
		done <- ok && sc != nil
	})

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected factory-produced *scratch state")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for queued work")
	}
}

func TestFenceIsSignaled(t *testing.T) {
	f := &Fence{}
	f.Queue(10)
	if f.IsSignaled(9) {
		t.Fatal("expected not signaled at tick 9")
	}
	if !f.IsSignaled(10) {
		t.Fatal("expected signaled at tick 10")
	}
}

func TestStubFenceAlwaysSignaled(t *testing.T) {
	s := NewStubFence()
	if !s.IsSignaled(0) {
		t.Fatal("expected StubFence to always report signaled")
	}
	if err := s.Wait(context.Background(), func() uint64 { return 0 }); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
