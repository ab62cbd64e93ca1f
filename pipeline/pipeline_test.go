package pipeline

import (
	"testing"
	"time"
)

func TestGraphicsPipelineBuildAndWait(t *testing.T) {
	p := NewGraphicsPipeline(GraphicsKey{UniqueHashes: [5]uint64{1}})
	if p.IsBuilt() {
		t.Fatal("expected a fresh pipeline to be unbuilt")
	}

	done := make(chan struct{})
	go func() {
		p.WaitBuilt()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	p.MarkBuilt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitBuilt did not wake after MarkBuilt")
	}
	if !p.IsBuilt() {
		t.Fatal("expected IsBuilt true after MarkBuilt")
	}
}

func TestGraphicsPipelineTransitions(t *testing.T) {
	a := NewGraphicsPipeline(GraphicsKey{UniqueHashes: [5]uint64{1}})
	b := NewGraphicsPipeline(GraphicsKey{UniqueHashes: [5]uint64{2}})
	key := GraphicsKey{UniqueHashes: [5]uint64{2}}

	if _, ok := a.FindTransition(key); ok {
		t.Fatal("expected no transition before one is added")
	}
	a.AddTransition(key, b)
	next, ok := a.FindTransition(key)
	if !ok || next != b {
		t.Fatalf("expected transition to resolve to b, got %v, %v", next, ok)
	}
}

func TestComputePipelineBuildAndWait(t *testing.T) {
	p := NewComputePipeline(ComputeKey{UniqueHash: 42})
	done := make(chan struct{})
	go func() {
		p.WaitBuilt()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	p.MarkBuilt()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitBuilt did not wake after MarkBuilt")
	}
}
