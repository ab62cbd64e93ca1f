package pipeline

import "testing"

func TestFixedPipelineStateSizeTruncatesByDynamicState(t *testing.T) {
	var s FixedPipelineState
	full := s.Size()

	s.DynamicState = DynamicStateExtended
	withoutExtended := s.Size()
	if withoutExtended >= full {
		t.Fatalf("expected extended-dynamic-state truncation to shrink size: full=%d, truncated=%d", full, withoutExtended)
	}

	s.DynamicState = DynamicStateExtendedPlusVertexInput
	withoutVertexInput := s.Size()
	if withoutVertexInput >= withoutExtended {
		t.Fatalf("expected vertex-input truncation to shrink further: extended=%d, plusVertexInput=%d", withoutExtended, withoutVertexInput)
	}
}

func TestFixedPipelineStateEqualIgnoresTruncatedTail(t *testing.T) {
	a := FixedPipelineState{DynamicState: DynamicStateExtendedPlusVertexInput, Topology: 3}
	b := FixedPipelineState{DynamicState: DynamicStateExtendedPlusVertexInput, Topology: 3, CullMode: 7}
	if !a.Equal(&b) {
		t.Fatal("expected states differing only in a truncated field to compare equal")
	}
	b.Topology = 4
	if a.Equal(&b) {
		t.Fatal("expected states differing in a hashed field to compare unequal")
	}
}

func TestFixedPipelineStateHashStable(t *testing.T) {
	s := FixedPipelineState{Topology: 1, DepthTestEnable: true}
	if s.Hash() != s.Hash() {
		t.Fatal("expected Hash to be deterministic")
	}
}

func TestHashGuestCodeDeterministic(t *testing.T) {
	code := []byte{1, 2, 3, 4}
	if HashGuestCode(code) != HashGuestCode(code) {
		t.Fatal("expected HashGuestCode to be deterministic")
	}
	if HashGuestCode(code) == HashGuestCode([]byte{1, 2, 3, 5}) {
		t.Fatal("expected different code to hash differently")
	}
}
