package ast

import (
	"github.com/kentjhall/shadercore/decode"
	"github.com/kentjhall/shadercore/flow"
)

// Options configures how Structurize runs the decompile algorithm.
type Options struct {
	// FullDecompile requires every goto to be eliminated. When false,
	// only backward jumps (loops) are structured; forward jumps survive
	// as labeled gotos for the emitter to lower as flat branches.
	FullDecompile bool
	// DisableElseDerivation stops Decompile from folding an If-enclosed
	// goto into the Else branch of an immediately preceding If with the
	// same guard condition.
	DisableElseDerivation bool
}

func conditionExpr(t *Tree, c flow.Condition) ExprIx {
	var result ExprIx = NoExpr
	if c.CC != decode.CondCodeT {
		result = t.Exprs.CondCode(c.CC)
	}
	if c.Predicate != decode.PredUnusedIndex {
		extra := t.Exprs.Predicate(uint32(c.Predicate))
		if c.Negate {
			extra = t.Exprs.Not(extra)
		}
		if result != NoExpr {
			return t.Exprs.And(extra, result)
		}
		return extra
	}
	if result != NoExpr {
		return result
	}
	return t.Exprs.Boolean(true)
}

// Structurize builds a goto-based Tree from a reconstructed block graph
// and runs Decompile on it, mirroring the yuzu recompiler's
// DecompileShader: declare every label, emit one Label/Block/Goto-or-
// Return run per basic block, then eliminate gotos.
func Structurize(program *flow.Program, opts Options) *Tree {
	t := NewTree(opts.FullDecompile, opts.DisableElseDerivation)

	for label := range program.Labels {
		t.DeclareLabel(label)
	}

	for _, block := range program.Blocks {
		if _, isLabel := program.Labels[block.Start]; isLabel {
			t.InsertLabel(block.Start)
		}

		switch b := block.Branch.(type) {
		case flow.SingleBranch:
			if b.Ignore {
				t.InsertBlock(block.Start, block.End+1)
				continue
			}
			t.InsertBlock(block.Start, block.End)
			switch {
			case b.Target == flow.TargetExit:
				t.InsertReturn(conditionExpr(t, b.Condition), b.Kill)
			case b.IsSync, b.IsBrk:
				// Resolved structurally by the flow reconstructor's stack
				// tracking; no explicit goto needed once flow-stack mode
				// is off, since the corresponding SSY/PBK already folded
				// the fallthrough/pop edges into ordinary block links.
			default:
				t.InsertGoto(conditionExpr(t, b.Condition), b.Target)
			}

		case flow.MultiBranch:
			t.InsertBlock(block.Start, block.End)
			for _, c := range b.Cases {
				t.InsertGoto(t.Exprs.GprEqual(uint32(b.Gpr), c.Value), c.Target)
			}

		default:
			t.InsertBlock(block.Start, block.End)
		}
	}

	t.Decompile()
	return t
}
