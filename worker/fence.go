package worker

import (
	"context"
	"sync/atomic"
)

// Fence is a GPU-completion marker: a render thread records the tick it
// expects the device to have retired work through, and a background
// poller advances Address as completions land. IsSignaled lets a caller
// check "has the device retired at least this far" without blocking.
type Fence struct {
	PayloadValue uint64
	Address      *uint64
}

// Queue stamps the fence with the tick value it should be considered
// signaled at once the device retires it.
func (f *Fence) Queue(tick uint64) {
	f.PayloadValue = tick
}

// IsSignaled reports whether the device has retired work through at
// least f.PayloadValue, given the highest tick known complete so far.
func (f *Fence) IsSignaled(freeThroughTick uint64) bool {
	return freeThroughTick >= f.PayloadValue
}

// Wait blocks until IsSignaled would return true against poll()'s
// result, or ctx is canceled. poll typically reads *Address
// atomically; Wait does not assume atomic.Uint64 itself since some
// callers (StubFence) have no backing address at all.
func (f *Fence) Wait(ctx context.Context, poll func() uint64) error {
	for {
		if f.IsSignaled(poll()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// StubFence always reports signaled, for callers (tests, headless
// builds) that never submit real GPU work.
type StubFence struct {
	signaled atomic.Bool
}

// NewStubFence returns a Fence already in the signaled state.
func NewStubFence() *StubFence {
	s := &StubFence{}
	s.signaled.Store(true)
	return s
}

// IsSignaled always reports true.
func (s *StubFence) IsSignaled(uint64) bool { return s.signaled.Load() }

// Wait returns immediately.
func (s *StubFence) Wait(ctx context.Context, poll func() uint64) error { return nil }
