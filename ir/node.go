// Package ir lowers a structured ast.Tree into a typed shader IR: an
// arena of Nodes over a representative slice of the guest ISA's ~250
// operation codes, plus the resource-tracking side tables (samplers,
// images, global memory, constant-buffer usage) that package emit and
// package descriptor consume.
package ir

// NodeIx indexes into a Program's node arena.
type NodeIx int32

// NoNode is the sentinel for an absent operand.
const NoNode NodeIx = -1

// Op identifies the operation a Node performs.
type Op int

// Leaf operations: these carry no operands, only the payload fields on
// Node itself.
const (
	OpGpr Op = iota
	OpCustomVar
	OpImmediate
	OpInternalFlag
	OpPredicate
	OpAbuf
	OpPatch
	OpCbuf
	OpLmem
	OpSmem
	OpGmem
	OpComment
)

// Arithmetic and control operations. The set is representative of the
// ~250-opcode guest vocabulary (float/int/uint/half/logical/texture/
// image/atomic/control/system-value/warp families), not exhaustive: each
// family has enough members to exercise every lowering and emission path
// package emit needs.
const (
	OpAssign Op = iota + 100
	OpSelect

	OpFAdd
	OpFMul
	OpFFma
	OpFNegate
	OpFAbsolute
	OpFClamp
	OpFMin
	OpFMax
	OpFCastInteger
	OpFCastUInteger
	OpICastFloat

	OpIAdd
	OpIAdd3
	OpIMul
	OpIMin
	OpIMax
	OpIBitfieldInsert
	OpIBitfieldExtract
	OpILogicalShiftLeft
	OpILogicalShiftRight
	OpIBitwiseAnd
	OpIBitwiseOr
	OpIBitwiseXor

	OpUAdd
	OpUMul
	OpUMin
	OpUMax

	OpHAdd
	OpHMul
	OpHFma
	OpHMergeF32

	OpLogicalAssign
	OpLogicalAnd
	OpLogicalOr
	OpLogicalNegate
	OpLogicalFLessThan
	OpLogicalFEqual
	OpLogicalILessThan
	OpLogicalIEqual

	OpTextureSample
	OpTextureGather
	OpTextureQueryDimensions
	OpTextureQueryLod

	OpImageLoad
	OpImageStore
	OpImageAtomicAdd

	OpAtomicAdd
	OpAtomicExchange

	OpBranch
	OpBranchIndirect
	OpPushFlowStack
	OpPopFlowStack
	OpExit
	OpDiscard

	OpYNegate
	OpWorkGroupId
	OpLocalInvocationId
	OpLocalInvocationIdX
	OpInvocationId

	OpShuffleIndexed
	OpVoteAll
	OpVoteAny

	OpFCos
	OpFSin
	OpFExp2
	OpFLog2
	OpFDiv
	OpFInverseSqrt
	OpFSqrt

	OpIBitwiseNot
	OpINegate
	OpUDiv
)

// MetaArithmetic is attached to arithmetic ops that can be flagged
// precise to suppress host reassociation.
type MetaArithmetic struct {
	Precise bool
}

// MetaTexture carries the texture-sample metadata a lowering produces:
// which sampler/array/shadow/bias/lod/offset operands are present.
type MetaTexture struct {
	SamplerIndex   int
	IsArray        bool
	IsShadow       bool
	HasBias        bool
	HasLodClamp    bool
	AoffiCount     int
	IsIndexed      bool
}

// MetaImage carries the bound-image index and format for an image op.
type MetaImage struct {
	ImageIndex int
}

// HalfType selects which half2 packing convention a half-precision op
// reads its operand under.
type HalfType int

const (
	HalfTypeH0H1 HalfType = iota
	HalfTypeF32
	HalfTypeH0H0
	HalfTypeH1H1
)

// AmendCode is a side-table entry of a prelude snippet a composite node
// must emit before itself (spec.md's "amend code": e.g. a shared-memory
// barrier preceding an atomic).
type AmendCode struct {
	Snippet string
}

// Node is one arena-indexed IR instruction or leaf value.
type Node struct {
	Op       Op
	Operands []NodeIx

	// Leaf payloads.
	Index    int  // Gpr/CustomVar/Predicate/Abuf/Patch/Cbuf index
	Offset   int  // Cbuf byte offset, Gmem/Lmem/Smem address operand index
	Value    uint32 // Immediate
	Text     string // Comment

	Arith MetaArithmetic
	Tex   MetaTexture
	Img   MetaImage
	Half  HalfType

	AmendIndex int32 // -1 when absent
}

// NodeBlock is the lowered instruction sequence for one structured-tree
// leaf (an ast.KindBlockEncoded run).
type NodeBlock []NodeIx

// Program is the arena of every Node produced by Lower, plus the global
// amend-code table it indexes into.
type Program struct {
	Nodes      []Node
	AmendTable []AmendCode
}

func (p *Program) push(n Node) NodeIx {
	p.Nodes = append(p.Nodes, n)
	return NodeIx(len(p.Nodes) - 1)
}

// Leaf returns a new operand-less node with the given payload.
func (p *Program) Leaf(op Op) NodeIx { return p.push(Node{Op: op, AmendIndex: -1}) }

// Gpr returns the leaf referencing guest general-purpose register index.
func (p *Program) Gpr(index int) NodeIx {
	return p.push(Node{Op: OpGpr, Index: index, AmendIndex: -1})
}

// Immediate returns the leaf wrapping a constant 32-bit value.
func (p *Program) Immediate(v uint32) NodeIx {
	return p.push(Node{Op: OpImmediate, Value: v, AmendIndex: -1})
}

// Cbuf returns the leaf referencing a constant-buffer read at (index, offset).
func (p *Program) Cbuf(index, offset int) NodeIx {
	return p.push(Node{Op: OpCbuf, Index: index, Offset: offset, AmendIndex: -1})
}

// Predicate returns the leaf referencing a guest predicate register.
func (p *Program) Predicate(index int) NodeIx {
	return p.push(Node{Op: OpPredicate, Index: index, AmendIndex: -1})
}

// Op2 builds a two-operand node (most arithmetic ops).
func (p *Program) Op2(op Op, a, b NodeIx, meta MetaArithmetic) NodeIx {
	return p.push(Node{Op: op, Operands: []NodeIx{a, b}, Arith: meta, AmendIndex: -1})
}

// Op3 builds a three-operand node (fma/clamp/bitfield-style ops).
func (p *Program) Op3(op Op, a, b, c NodeIx, meta MetaArithmetic) NodeIx {
	return p.push(Node{Op: op, Operands: []NodeIx{a, b, c}, Arith: meta, AmendIndex: -1})
}

// Op1 builds a single-operand node (negate/absolute/cast-style ops).
func (p *Program) Op1(op Op, a NodeIx, meta MetaArithmetic) NodeIx {
	return p.push(Node{Op: op, Operands: []NodeIx{a}, Arith: meta, AmendIndex: -1})
}

// Comment inserts a no-op debug annotation, mirroring the teacher's
// practice of keeping debug-only nodes distinct from real operations.
func (p *Program) Comment(text string) NodeIx {
	return p.push(Node{Op: OpComment, Text: text, AmendIndex: -1})
}

// DeclareAmend appends a prelude snippet to the program's amend-code
// table (e.g. an indexed-sampler-array bounds clamp that must run
// before a bindless texture read) and returns its index for a node's
// AmendIndex field.
func (p *Program) DeclareAmend(snippet string) int32 {
	p.AmendTable = append(p.AmendTable, AmendCode{Snippet: snippet})
	return int32(len(p.AmendTable) - 1)
}
