package ast

import "testing"

// TestExprSimplification exercises the boolean-constant folding rules
// ported from expr.cpp's MakeExprNot/And/Or.
func TestExprSimplification(t *testing.T) {
	var e Exprs
	tru := e.Boolean(true)
	fals := e.Boolean(false)
	p0 := e.Predicate(0)

	if got := e.And(tru, p0); got != p0 {
		t.Errorf("And(true, p0) should fold to p0")
	}
	if got := e.And(fals, p0); got != fals {
		t.Errorf("And(false, p0) should fold to false")
	}
	if got := e.Or(tru, p0); got != tru {
		t.Errorf("Or(true, p0) should fold to true")
	}
	if got := e.Or(fals, p0); got != p0 {
		t.Errorf("Or(false, p0) should fold to p0")
	}

	notP0 := e.Not(p0)
	if !e.AreOpposite(p0, notP0) {
		t.Error("p0 and Not(p0) should be opposite")
	}
	if got := e.Not(notP0); got != p0 {
		t.Error("Not(Not(p0)) should fold back to p0")
	}
}

// TestDeclareLabelIdempotent checks that declaring the same address twice
// does not allocate a second label slot.
func TestDeclareLabelIdempotent(t *testing.T) {
	tree := NewTree(true, false)
	tree.DeclareLabel(0x100)
	tree.DeclareLabel(0x100)
	if len(tree.labels) != 1 {
		t.Fatalf("expected 1 label slot, got %d", len(tree.labels))
	}
}

// TestInsertBlockReturnProgramStructure builds a single straight-line
// program (one block, unconditional return) and checks the program node
// holds exactly that block and return in order.
func TestInsertBlockReturnProgramStructure(t *testing.T) {
	tree := NewTree(true, false)
	tree.InsertBlock(0x1000, 0x1008)
	tree.InsertReturn(tree.Exprs.Boolean(true), false)
	tree.Decompile()

	first := tree.First(tree.Program())
	if tree.Kind(first) != KindBlockEncoded {
		t.Fatalf("expected first node to be a block, got kind %v", tree.Kind(first))
	}
	second := tree.Next(first)
	if tree.Kind(second) != KindReturn {
		t.Fatalf("expected second node to be a return, got kind %v", tree.Kind(second))
	}
}

// TestDecompileBackwardGotoBecomesDoWhile builds label -> block -> goto
// label (a tight loop) and checks Decompile encloses it in a DoWhile
// rather than leaving a dangling goto.
func TestDecompileBackwardGotoBecomesDoWhile(t *testing.T) {
	tree := NewTree(true, false)
	tree.DeclareLabel(0x2000)
	tree.InsertLabel(0x2000)
	tree.InsertBlock(0x2000, 0x2008)
	tree.InsertGoto(tree.Exprs.Boolean(true), 0x2000)
	tree.Decompile()

	if !tree.IsFullyDecompiled() {
		t.Fatal("expected full decompile to eliminate the backward goto")
	}

	found := false
	for n := tree.First(tree.Program()); n != NoNode; n = tree.Next(n) {
		if tree.Kind(n) == KindDoWhile {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a DoWhile node enclosing the loop")
	}
}
