package emit

import (
	"strings"
	"testing"

	"github.com/kentjhall/shadercore/ir"
)

func TestPrintModuleIncludesCbufBinding(t *testing.T) {
	prog := &ir.Program{}
	ctx := ir.NewLoweringContext(prog)
	ctx.MarkCbuf(1, 0x40)
	dest := prog.Gpr(4)
	prog.Op2(ir.OpAssign, dest, prog.Cbuf(1, 0x40), ir.MetaArithmetic{})
	info := ir.BuildShaderInfo(ctx)

	src := printModule(prog, info, DefaultProfile(), nil)
	if !strings.Contains(src, "@binding(0)") {
		t.Fatalf("expected a binding declaration, got:\n%s", src)
	}
	if !strings.Contains(src, "reg4 = cbuf1[4];") {
		t.Fatalf("expected a cbuf-read assignment statement, got:\n%s", src)
	}
}

func TestMergeVertexABShiftsOperands(t *testing.T) {
	a := &ir.Program{}
	a.Gpr(0)
	a.Op1(ir.OpFNegate, 0, ir.MetaArithmetic{})

	b := &ir.Program{}
	bGpr := b.Gpr(1)
	b.Op1(ir.OpFNegate, bGpr, ir.MetaArithmetic{})

	merged, err := MergeVertexAB(a, b)
	if err != nil {
		t.Fatalf("MergeVertexAB: %v", err)
	}
	if len(merged.Nodes) != len(a.Nodes)+len(b.Nodes) {
		t.Fatalf("got %d merged nodes, want %d", len(merged.Nodes), len(a.Nodes)+len(b.Nodes))
	}
	shiftedNegate := merged.Nodes[len(a.Nodes)+1]
	if int(shiftedNegate.Operands[0]) != len(a.Nodes) {
		t.Fatalf("expected b's operand shifted by len(a.Nodes)=%d, got %d", len(a.Nodes), shiftedNegate.Operands[0])
	}
}

func TestBindingsMonotonic(t *testing.T) {
	var b Bindings
	if b.Next() != 0 || b.Next() != 1 || b.Next() != 2 {
		t.Fatal("expected Next() to return 0, 1, 2")
	}
	b.Reset()
	if b.Next() != 0 {
		t.Fatal("expected Reset to rewind the counter to 0")
	}
}
