package ir

import (
	"testing"

	"github.com/kentjhall/shadercore/decode"
)

func TestLowerFADDProducesAssign(t *testing.T) {
	prog := &Program{}
	ctx := NewLoweringContext(prog)

	di := DecodedInstr{
		PC:    0x1000,
		Word:  0,
		Match: decode.Matcher{Name: "FADD", ID: decode.OpFADD, Family: decode.FamilyArithmetic},
	}
	blocks := map[uint64][]DecodedInstr{0x1000: {di}}

	out, err := Lower(ctx, blocks)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	nb, ok := out[0x1000]
	if !ok || len(nb) == 0 {
		t.Fatal("expected a lowered node block")
	}
	assignNode := prog.Nodes[nb[0]]
	if assignNode.Op != OpAssign {
		t.Fatalf("expected top-level Assign, got %v", assignNode.Op)
	}
}

func TestTrackCbufFollowsAssignChain(t *testing.T) {
	prog := &Program{}
	ctx := NewLoweringContext(prog)

	cbufRead := ctx.Program.Cbuf(1, 0x40)
	gpr := ctx.Program.Gpr(4)
	assignNode := assign(ctx, gpr, cbufRead)

	code := NodeBlock{assignNode}
	targetGpr := ctx.Program.Gpr(4)

	index, offset, ok := TrackCbuf(prog, targetGpr, code, len(code)-1)
	if !ok {
		t.Fatal("expected TrackCbuf to resolve through the assign chain")
	}
	if index != 1 || offset != 0x40 {
		t.Fatalf("got (cbuf=%d, offset=%#x), want (1, 0x40)", index, offset)
	}
}

func TestInferIndexedSamplerSizes(t *testing.T) {
	prog := &Program{}
	ctx := NewLoweringContext(prog)
	ctx.GetSampler(0, 0x20, false)
	ctx.GetSampler(0, 0x30, false)
	ctx.MarkCbuf(0, 0x38)

	sizes := ctx.InferIndexedSamplerSizes()
	if sizes[0x20] != 0x10 {
		t.Errorf("sampler at 0x20: got size %d, want 0x10", sizes[0x20])
	}
}
