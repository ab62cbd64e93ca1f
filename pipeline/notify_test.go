package pipeline

import (
	"testing"
	"time"
)

func TestShaderNotifyTracksInFlight(t *testing.T) {
	n := NewShaderNotify()
	if n.ShadersBuilding() != 0 {
		t.Fatal("expected a fresh notifier to report zero builds")
	}

	n.MarkBuildStarted()
	n.MarkBuildStarted()
	if got := n.ShadersBuilding(); got != 2 {
		t.Fatalf("got %d in-flight, want 2", got)
	}
	if got := n.NumWorkersInFlight(); got != 2 {
		t.Fatalf("got peak %d, want 2", got)
	}

	n.MarkBuildComplete()
	n.MarkBuildComplete()
	if got := n.ShadersBuilding(); got != 0 {
		t.Fatalf("got %d in-flight, want 0", got)
	}
	if got := n.NumWorkersInFlight(); got != 2 {
		t.Fatalf("expected peak to survive until idle decay, got %d", got)
	}
}

func TestShaderNotifyDecaysAfterIdle(t *testing.T) {
	n := NewShaderNotify()
	n.MarkBuildStarted()
	n.MarkBuildComplete()

	restore := timeNow
	defer func() { timeNow = restore }()
	future := time.Now().Add(idleDecay + time.Second)
	timeNow = func() time.Time { return future }

	if got := n.NumWorkersInFlight(); got != 0 {
		t.Fatalf("expected peak to decay to 0 after idle window, got %d", got)
	}
}
