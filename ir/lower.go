package ir

import (
	"math"

	"github.com/kentjhall/shadercore/decode"
)

// DecodedInstr pairs a guest instruction word with its matched opcode,
// the unit package flow's block ranges get re-decoded into before
// lowering.
type DecodedInstr struct {
	PC    uint64
	Word  decode.Instruction
	Match decode.Matcher
}

// Lower walks each block's decoded instruction stream and emits IR,
// implementing spec.md §4.D's operand-fetch / predication / saturate /
// condition-code-update pipeline for a representative slice of the
// guest ISA. Unrecognized opcodes lower to a Comment node rather than
// failing the whole program, so a shader exercising not-yet-modeled
// instructions still produces a structurally valid (if behaviorally
// incomplete) IR program.
//
// nb accumulates every node lowered so far in the current block; it is
// threaded into lowerTexture/lowerMemory so they can back-track through
// ir/track.go's TrackCbuf/TrackBindlessSampler to resolve a bindless
// handle or a global-memory base address to the cbuf read that feeds
// it, matching the guest recompiler's own backward-scan resolution.
func Lower(ctx *LoweringContext, blocks map[uint64][]DecodedInstr) (map[uint64]NodeBlock, error) {
	out := make(map[uint64]NodeBlock, len(blocks))
	for start, instrs := range blocks {
		var nb NodeBlock
		for _, di := range instrs {
			nodes := lowerOne(ctx, di, nb)
			nb = append(nb, nodes...)
		}
		out[start] = nb
	}
	return out, nil
}

func lowerOne(ctx *LoweringContext, di DecodedInstr, nb NodeBlock) []NodeIx {
	switch di.Match.Family {
	case decode.FamilyArithmetic:
		return lowerArith(ctx, di)
	case decode.FamilyMemory:
		return lowerMemory(ctx, di, nb)
	case decode.FamilyTexture:
		return lowerTexture(ctx, di, nb)
	case decode.FamilyImage:
		return lowerImage(ctx, di)
	case decode.FamilyFlow:
		return lowerFlow(ctx, di)
	case decode.FamilyMove:
		return lowerMove(ctx, di)
	case decode.FamilyPredicate:
		return lowerPredicate(ctx, di)
	case decode.FamilyConversion:
		return lowerConversion(ctx, di)
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}

func destGpr(ctx *LoweringContext, di DecodedInstr) NodeIx {
	idx := di.Word.GprDest()
	ctx.MarkRegister(idx)
	return ctx.Program.Gpr(idx)
}

func srcA(ctx *LoweringContext, di DecodedInstr) NodeIx {
	idx := di.Word.Gpr8()
	ctx.MarkRegister(idx)
	return ctx.Program.Gpr(idx)
}

func srcB(ctx *LoweringContext, di DecodedInstr) NodeIx {
	idx := di.Word.Gpr20()
	ctx.MarkRegister(idx)
	return ctx.Program.Gpr(idx)
}

// thirdGpr returns the real operand-C register of a three-source
// instruction (FFMA/IADD3/HFMA2), bits [39:46] of the instruction word.
// It is a distinct field from the destination register at bits [0:7];
// the two must never be conflated.
func thirdGpr(ctx *LoweringContext, di DecodedInstr) NodeIx {
	idx := di.Word.Gpr39()
	ctx.MarkRegister(idx)
	return ctx.Program.Gpr(idx)
}

func assign(ctx *LoweringContext, dest, value NodeIx) NodeIx {
	return ctx.Program.Op2(OpAssign, dest, value, MetaArithmetic{})
}

// lowerArith implements the representative float/int family rules named
// in spec.md §4.D: MUFU's transcendental dispatch, IADD3's three-operand
// sum, LOP3's boolean LUT and SHF's funnel shift are each given their own
// case rather than collapsed into a generic binary op, matching the
// semantic decisions the spec calls out explicitly.
func lowerArith(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	dest := destGpr(ctx, di)
	a := srcA(ctx, di)
	b := srcB(ctx, di)

	switch di.Match.ID {
	case decode.OpMUFU:
		return lowerMufu(ctx, di, dest, a)
	case decode.OpLOP3:
		return lowerLop3(ctx, di, dest, a, b)
	case decode.OpIADD3:
		return lowerIAdd3(ctx, di, dest, a, b)
	case decode.OpSHF, decode.OpSHFLeft:
		return lowerShf(ctx, di, dest, a, b)
	}

	var op Op
	var operands []NodeIx
	switch di.Match.ID {
	case decode.OpFADD, decode.OpFADD32I:
		op, operands = OpFAdd, []NodeIx{a, b}
	case decode.OpFMUL, decode.OpFMUL32I:
		op, operands = OpFMul, []NodeIx{a, b}
	case decode.OpFFMA:
		op, operands = OpFFma, []NodeIx{a, b, thirdGpr(ctx, di)}
	case decode.OpIADD, decode.OpIADD32I:
		op, operands = OpIAdd, []NodeIx{a, b}
	case decode.OpIMUL:
		op, operands = OpIMul, []NodeIx{a, b}
	case decode.OpIMNMX:
		op, operands = OpIMin, []NodeIx{a, b}
	case decode.OpLOP:
		op, operands = OpIBitwiseAnd, []NodeIx{a, b}
	case decode.OpSHL:
		op, operands = OpILogicalShiftLeft, []NodeIx{a, b}
	case decode.OpSHR:
		op, operands = OpILogicalShiftRight, []NodeIx{a, b}
	case decode.OpBFE:
		op, operands = OpIBitfieldExtract, []NodeIx{a, b}
	case decode.OpBFI:
		op, operands = OpIBitfieldInsert, []NodeIx{a, b}
	case decode.OpHADD2:
		op, operands = OpHAdd, []NodeIx{a, b}
	case decode.OpHMUL2:
		op, operands = OpHMul, []NodeIx{a, b}
	case decode.OpHFMA2:
		op, operands = OpHFma, []NodeIx{a, b, thirdGpr(ctx, di)}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}

	var value NodeIx
	switch len(operands) {
	case 1:
		value = ctx.Program.Op1(op, operands[0], MetaArithmetic{})
	case 2:
		value = ctx.Program.Op2(op, operands[0], operands[1], MetaArithmetic{})
	default:
		value = ctx.Program.Op3(op, operands[0], operands[1], operands[2], MetaArithmetic{})
	}
	return []NodeIx{assign(ctx, dest, value)}
}

// lowerMufu dispatches MUFU's transcendental sub-opcode (guest ISA's
// SubOp enum) rather than treating every MUFU the same way. Rcp has no
// dedicated IR op; it is synthesized as 1/x over OpFDiv, matching the
// guest recompiler's own expansion.
func lowerMufu(ctx *LoweringContext, di DecodedInstr, dest, a NodeIx) []NodeIx {
	var value NodeIx
	switch di.Word.MufuSubOp() {
	case decode.MufuCos:
		value = ctx.Program.Op1(OpFCos, a, MetaArithmetic{})
	case decode.MufuSin:
		value = ctx.Program.Op1(OpFSin, a, MetaArithmetic{})
	case decode.MufuEx2:
		value = ctx.Program.Op1(OpFExp2, a, MetaArithmetic{})
	case decode.MufuLg2:
		value = ctx.Program.Op1(OpFLog2, a, MetaArithmetic{})
	case decode.MufuRcp:
		one := ctx.Program.Immediate(math.Float32bits(1.0))
		value = ctx.Program.Op2(OpFDiv, one, a, MetaArithmetic{})
	case decode.MufuRsq:
		value = ctx.Program.Op1(OpFInverseSqrt, a, MetaArithmetic{})
	case decode.MufuSqrt:
		value = ctx.Program.Op1(OpFSqrt, a, MetaArithmetic{})
	default:
		value = ctx.Program.Op1(OpFCastInteger, a, MetaArithmetic{})
	}
	return []NodeIx{assign(ctx, dest, value)}
}

// lowerLop3 expands LOP3's 8-bit three-input truth table into an
// explicit sum-of-products tree, one AND-of-three term per set LUT bit,
// OR-accumulated together. This mirrors WriteLop3Instruction's minterm
// enumeration: term m is included when bit m of the LUT is set, and
// each operand in that term is negated unless its own bit (4 for a, 2
// for b, 1 for c) is set within m.
func lowerLop3(ctx *LoweringContext, di DecodedInstr, dest, a, b NodeIx) []NodeIx {
	c := thirdGpr(ctx, di)
	lut := di.Word.Lop3Lut()

	var result NodeIx
	has := false
	for m := 0; m < 8; m++ {
		if lut&(1<<uint(m)) == 0 {
			continue
		}
		term := lop3Term(ctx, m, a, b, c)
		if !has {
			result, has = term, true
			continue
		}
		result = ctx.Program.Op2(OpIBitwiseOr, result, term, MetaArithmetic{})
	}
	if !has {
		result = ctx.Program.Immediate(0)
	}
	return []NodeIx{assign(ctx, dest, result)}
}

func lop3Term(ctx *LoweringContext, minterm int, a, b, c NodeIx) NodeIx {
	pick := func(set bool, v NodeIx) NodeIx {
		if set {
			return v
		}
		return ctx.Program.Op1(OpIBitwiseNot, v, MetaArithmetic{})
	}
	ta := pick(minterm&4 != 0, a)
	tb := pick(minterm&2 != 0, b)
	tc := pick(minterm&1 != 0, c)
	ab := ctx.Program.Op2(OpIBitwiseAnd, ta, tb, MetaArithmetic{})
	return ctx.Program.Op2(OpIBitwiseAnd, ab, tc, MetaArithmetic{})
}

// lowerIAdd3 applies IADD3's three independent per-operand Height
// half-word extracts (None/LowerHalfWord/UpperHalfWord) before the
// three-way sum, matching ApplyHeight.
func lowerIAdd3(ctx *LoweringContext, di DecodedInstr, dest, a, b NodeIx) []NodeIx {
	c := thirdGpr(ctx, di)
	a = iadd3Height(ctx, a, di.Word.IAdd3HeightA())
	b = iadd3Height(ctx, b, di.Word.IAdd3HeightB())
	c = iadd3Height(ctx, c, di.Word.IAdd3HeightC())
	value := ctx.Program.Op3(OpIAdd3, a, b, c, MetaArithmetic{})
	return []NodeIx{assign(ctx, dest, value)}
}

func iadd3Height(ctx *LoweringContext, v NodeIx, h decode.IAdd3Height) NodeIx {
	switch h {
	case decode.IAdd3HeightLower:
		return ctx.Program.Op3(OpIBitfieldExtract, v, ctx.Program.Immediate(0), ctx.Program.Immediate(16), MetaArithmetic{})
	case decode.IAdd3HeightUpper:
		return ctx.Program.Op3(OpIBitfieldExtract, v, ctx.Program.Immediate(16), ctx.Program.Immediate(16), MetaArithmetic{})
	default:
		return v
	}
}

// lowerShf implements SHF's 32-bit funnel shift: direction comes from
// the matched opcode identity (OpSHF is the _R/_IMM right-shift rows,
// OpSHFLeft the left-shift rows), not a bitfield, matching shift.cpp's
// DecodeShift dispatch. The result is low/high merged across the shift
// boundary, with the full-shift (shift==32) edge case selected
// separately since a native shift by the operand width is undefined.
func lowerShf(ctx *LoweringContext, di DecodedInstr, dest, low, shift NodeIx) []NodeIx {
	isRight := di.Match.ID == decode.OpSHF
	high := thirdGpr(ctx, di)

	thirtyTwo := ctx.Program.Immediate(32)
	invShift := ctx.Program.Op2(OpIAdd, thirtyTwo, ctx.Program.Op1(OpINegate, shift, MetaArithmetic{}), MetaArithmetic{})

	var less NodeIx
	var fullVal NodeIx
	if isRight {
		lowPart := ctx.Program.Op2(OpILogicalShiftRight, low, shift, MetaArithmetic{})
		highPart := ctx.Program.Op2(OpILogicalShiftLeft, high, invShift, MetaArithmetic{})
		less = ctx.Program.Op2(OpIBitwiseOr, lowPart, highPart, MetaArithmetic{})
		fullVal = high
	} else {
		highPart := ctx.Program.Op2(OpILogicalShiftLeft, high, shift, MetaArithmetic{})
		lowPart := ctx.Program.Op2(OpILogicalShiftRight, low, invShift, MetaArithmetic{})
		less = ctx.Program.Op2(OpIBitwiseOr, highPart, lowPart, MetaArithmetic{})
		fullVal = low
	}

	isFull := ctx.Program.Op2(OpLogicalIEqual, shift, thirtyTwo, MetaArithmetic{})
	value := ctx.Program.Op3(OpSelect, isFull, fullVal, less, MetaArithmetic{})
	return []NodeIx{assign(ctx, dest, value)}
}

// lowerMemory handles LDC/LD/ST and global/local/shared memory variants.
func lowerMemory(ctx *LoweringContext, di DecodedInstr, nb NodeBlock) []NodeIx {
	dest := destGpr(ctx, di)
	switch di.Match.ID {
	case decode.OpLDC:
		index := di.Word.CbufIndex34()
		offset := di.Word.CbufOffset34()
		ctx.MarkCbuf(index, offset)
		return []NodeIx{assign(ctx, dest, ctx.Program.Cbuf(index, int(offset)))}
	case decode.OpLDG:
		base := srcA(ctx, di)
		if desc, ok := resolveGmemDescriptor(ctx, base, nb); ok {
			ctx.MarkGlobalMemory(desc, true, false, false)
		}
		return []NodeIx{assign(ctx, dest, ctx.Program.Op1(OpIAdd, base, MetaArithmetic{}))}
	case decode.OpLD:
		base := srcA(ctx, di)
		return []NodeIx{assign(ctx, dest, ctx.Program.Op1(OpIAdd, base, MetaArithmetic{}))}
	case decode.OpSTG:
		base := srcA(ctx, di)
		value := srcB(ctx, di)
		if desc, ok := resolveGmemDescriptor(ctx, base, nb); ok {
			ctx.MarkGlobalMemory(desc, false, true, false)
		}
		return []NodeIx{ctx.Program.Op2(OpAssign, ctx.Program.Leaf(OpGmem), value, MetaArithmetic{})}
	case decode.OpST:
		value := srcB(ctx, di)
		return []NodeIx{ctx.Program.Op2(OpAssign, ctx.Program.Leaf(OpGmem), value, MetaArithmetic{})}
	case decode.OpATOM, decode.OpATOMS, decode.OpRED:
		value := srcB(ctx, di)
		return []NodeIx{ctx.Program.Op2(OpAtomicAdd, dest, value, MetaArithmetic{})}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}

// resolveGmemDescriptor back-tracks a global-memory base-address
// register to the pair of cbuf reads that bind it, the same way the
// guest recompiler resolves LDG/STG's bindless base address. Only
// global memory (LDG/STG) has a GmemDescriptor; local/shared (LD/ST)
// address a flat per-invocation/per-workgroup space with no cbuf
// binding to recover.
func resolveGmemDescriptor(ctx *LoweringContext, base NodeIx, nb NodeBlock) (GmemDescriptor, bool) {
	if len(nb) == 0 {
		return GmemDescriptor{}, false
	}
	index, offset, ok := TrackCbuf(ctx.Program, base, nb, len(nb)-1)
	if !ok {
		return GmemDescriptor{}, false
	}
	return GmemDescriptor{CbufIndex: index, BaseOffset: offset}, true
}

// lowerTexture resolves a TEX instruction's sampler either through the
// statically-bound cbuf slot the instruction word names directly, or,
// when the texture handle was computed at runtime (a bindless or
// indexed sampler array access), by back-tracking the handle register
// through nb to the cbuf read that ultimately feeds it.
func lowerTexture(ctx *LoweringContext, di DecodedInstr, nb NodeBlock) []NodeIx {
	handle := srcA(ctx, di)
	dest := destGpr(ctx, di)

	var sampler *Sampler
	var indexed bool
	if cbuf, off, idx, ok := TrackBindlessSampler(ctx.Program, handle, nb, len(nb)-1); ok {
		sampler = ctx.GetSampler(cbuf, off, true)
		indexed = idx
	} else {
		index := di.Word.CbufIndex34()
		offset := int(di.Word.CbufOffset34())
		sampler = ctx.GetSampler(index, offset, false)
	}

	samplerIndex := -1
	for i, s := range ctx.Samplers {
		if s == sampler {
			samplerIndex = i
			break
		}
	}

	node := Node{
		Op:         OpTextureSample,
		Operands:   []NodeIx{handle},
		Tex:        MetaTexture{SamplerIndex: samplerIndex, IsIndexed: indexed},
		AmendIndex: -1,
	}
	if indexed {
		node.AmendIndex = ctx.Program.DeclareAmend("let sampler_index = clamp(index, 0, array_size - 1);")
	}
	nodeIx := ctx.Program.push(node)
	return []NodeIx{assign(ctx, dest, nodeIx)}
}

func lowerImage(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	index := di.Word.CbufIndex34()
	offset := int(di.Word.CbufOffset34())
	img := ctx.GetImage(index, offset, false)
	switch di.Match.ID {
	case decode.OpSULD:
		img.MarkRead()
		dest := destGpr(ctx, di)
		node := ctx.Program.push(Node{Op: OpImageLoad, Operands: []NodeIx{srcA(ctx, di)}, Img: MetaImage{ImageIndex: len(ctx.Images) - 1}, AmendIndex: -1})
		return []NodeIx{assign(ctx, dest, node)}
	case decode.OpSUST:
		img.MarkWrite()
		value := srcB(ctx, di)
		return []NodeIx{ctx.Program.push(Node{Op: OpImageStore, Operands: []NodeIx{srcA(ctx, di), value}, Img: MetaImage{ImageIndex: len(ctx.Images) - 1}, AmendIndex: -1})}
	case decode.OpSUATOM:
		img.MarkAtomic()
		value := srcB(ctx, di)
		dest := destGpr(ctx, di)
		node := ctx.Program.push(Node{Op: OpImageAtomicAdd, Operands: []NodeIx{srcA(ctx, di), value}, Img: MetaImage{ImageIndex: len(ctx.Images) - 1}, AmendIndex: -1})
		return []NodeIx{assign(ctx, dest, node)}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}

func lowerFlow(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	switch di.Match.ID {
	case decode.OpEXIT:
		return []NodeIx{ctx.Program.Leaf(OpExit)}
	case decode.OpKIL:
		return []NodeIx{ctx.Program.Leaf(OpDiscard)}
	default:
		return nil // SSY/PBK/SYNC/BRK/BRA/BRX are structural, resolved entirely in package flow/ast.
	}
}

func lowerMove(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	dest := destGpr(ctx, di)
	switch di.Match.ID {
	case decode.OpMOV:
		return []NodeIx{assign(ctx, dest, srcA(ctx, di))}
	case decode.OpMOV32I:
		return []NodeIx{assign(ctx, dest, ctx.Program.Immediate(uint32(di.Word.Imm19())))}
	case decode.OpSEL:
		cond := ctx.Program.Predicate(0)
		return []NodeIx{assign(ctx, dest, ctx.Program.Op3(OpSelect, cond, srcA(ctx, di), srcB(ctx, di), MetaArithmetic{}))}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}

func lowerPredicate(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	idx, _ := di.Word.Pred()
	ctx.MarkPredicate(idx)
	switch di.Match.ID {
	case decode.OpFSETP, decode.OpISETP:
		return []NodeIx{ctx.Program.Op2(OpLogicalAssign, ctx.Program.Predicate(idx), ctx.Program.Op2(OpLogicalFLessThan, srcA(ctx, di), srcB(ctx, di), MetaArithmetic{}), MetaArithmetic{})}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}

func lowerConversion(ctx *LoweringContext, di DecodedInstr) []NodeIx {
	dest := destGpr(ctx, di)
	switch di.Match.ID {
	case decode.OpI2F:
		return []NodeIx{assign(ctx, dest, ctx.Program.Op1(OpFCastInteger, srcA(ctx, di), MetaArithmetic{}))}
	case decode.OpF2I:
		return []NodeIx{assign(ctx, dest, ctx.Program.Op1(OpICastFloat, srcA(ctx, di), MetaArithmetic{}))}
	default:
		return []NodeIx{ctx.Program.Comment(di.Match.Name)}
	}
}
