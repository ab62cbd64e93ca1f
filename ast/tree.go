package ast

// NodeIx indexes into a Tree's node arena. NoNode marks the absence of a
// node (the root's parent, an empty zipper, and so on).
type NodeIx int32

// NoNode is the zero-value sentinel for an absent node.
const NoNode NodeIx = -1

// ZipperIx indexes into a Tree's zipper arena. NoZipper marks a node that
// is not currently linked into any sibling list.
type ZipperIx int32

// NoZipper is the zero-value sentinel for an absent zipper.
const NoZipper ZipperIx = -1

// Kind identifies which structured-control-flow construct a node holds.
type Kind int

const (
	KindProgram Kind = iota
	KindIfThen
	KindIfElse
	KindBlockEncoded
	KindBlockDecoded
	KindVarSet
	KindLabel
	KindGoto
	KindDoWhile
	KindReturn
	KindBreak
)

// zipperState is a doubly-linked sibling list's endpoints; membership and
// ordering for its nodes live on the nodes themselves (next/prev/manager).
type zipperState struct {
	first, last NodeIx
}

type astNode struct {
	kind    Kind
	parent  NodeIx
	next    NodeIx
	prev    NodeIx
	manager ZipperIx // the zipper this node is currently linked into
	sub     ZipperIx // child zipper, for Program/IfThen/IfElse/DoWhile

	condition ExprIx // IfThen / VarSet / Goto / DoWhile / Return / Break

	start, end uint64 // BlockEncoded: guest PC range still needing lowering
	decoded    []int32 // BlockDecoded: ir.NodeIx values, stored as int32 to avoid an ast->ir import of NodeIx's underlying type

	varIndex uint32 // VarSet
	label    uint32 // Label / Goto
	unused   bool   // Label
	kills    bool   // Return
}

// Tree is an arena-based structured-control-flow graph plus the manager
// state (declared labels, pending gotos, synthesized variable counter)
// needed to run Decompile.
type Tree struct {
	nodes   []astNode
	zippers []zipperState
	Exprs   Exprs

	labelsMap map[uint64]uint32
	labels    []NodeIx
	gotos     []NodeIx
	variables uint32

	main          NodeIx
	falseCond     ExprIx
	fullDecompile bool
	noElse        bool
}

// NewTree creates an empty tree. fullDecompile requires every goto to be
// eliminated; when false only backward jumps (loops) are structured and
// forward jumps are left as labeled gotos. noElse disables folding a
// goto's enclosing If into an Else of the preceding If.
func NewTree(fullDecompile, noElse bool) *Tree {
	t := &Tree{
		labelsMap:     make(map[uint64]uint32),
		fullDecompile: fullDecompile,
		noElse:        noElse,
	}
	t.falseCond = t.Exprs.Boolean(false)
	t.main = t.newNode(KindProgram)
	t.nodes[t.main].parent = NoNode
	t.nodes[t.main].sub = t.newZipper()
	return t
}

// Program returns the root node.
func (t *Tree) Program() NodeIx { return t.main }

func (t *Tree) newNode(k Kind) NodeIx {
	t.nodes = append(t.nodes, astNode{kind: k, parent: NoNode, next: NoNode, prev: NoNode, manager: NoZipper, sub: NoZipper, condition: NoExpr})
	return NodeIx(len(t.nodes) - 1)
}

func (t *Tree) newZipper() ZipperIx {
	t.zippers = append(t.zippers, zipperState{first: NoNode, last: NoNode})
	return ZipperIx(len(t.zippers) - 1)
}

func (t *Tree) node(n NodeIx) *astNode { return &t.nodes[n] }

func (t *Tree) subZipper(n NodeIx) ZipperIx {
	k := t.node(n).kind
	if k == KindProgram || k == KindIfThen || k == KindIfElse || k == KindDoWhile {
		return t.node(n).sub
	}
	return NoZipper
}

// level counts the number of ancestors above n.
func (t *Tree) level(n NodeIx) int {
	level := 0
	for p := t.node(n).parent; p != NoNode; p = t.node(p).parent {
		level++
	}
	return level
}

func (t *Tree) parentOf(n NodeIx) NodeIx { return t.node(n).parent }

// -- zipper primitives, ported from ASTZipper --

func (t *Tree) initZipper(z ZipperIx, first, parent NodeIx) {
	zs := &t.zippers[z]
	zs.first = first
	zs.last = first
	for cur := first; cur != NoNode; cur = t.node(cur).next {
		t.node(cur).manager = z
		t.node(cur).parent = parent
		zs.last = cur
	}
}

func (t *Tree) pushBack(z ZipperIx, n NodeIx) {
	zs := &t.zippers[z]
	t.node(n).prev = zs.last
	if zs.last != NoNode {
		t.node(zs.last).next = n
	}
	t.node(n).next = NoNode
	zs.last = n
	if zs.first == NoNode {
		zs.first = n
	}
	t.node(n).manager = z
}

func (t *Tree) pushFront(z ZipperIx, n NodeIx) {
	zs := &t.zippers[z]
	t.node(n).prev = NoNode
	t.node(n).next = zs.first
	if zs.first != NoNode {
		t.node(zs.first).prev = n
	}
	if zs.last == zs.first {
		zs.last = n
	}
	zs.first = n
	t.node(n).manager = z
}

func (t *Tree) insertAfter(z ZipperIx, n, at NodeIx) {
	if at == NoNode {
		t.pushFront(z, n)
		return
	}
	zs := &t.zippers[z]
	next := t.node(at).next
	if next != NoNode {
		t.node(next).prev = n
	}
	t.node(n).prev = at
	if at == zs.last {
		zs.last = n
	}
	t.node(n).next = next
	t.node(at).next = n
	t.node(n).manager = z
}

func (t *Tree) insertBefore(z ZipperIx, n, at NodeIx) {
	if at == NoNode {
		t.pushBack(z, n)
		return
	}
	zs := &t.zippers[z]
	prev := t.node(at).prev
	if prev != NoNode {
		t.node(prev).next = n
	}
	t.node(n).next = at
	if at == zs.first {
		zs.first = n
	}
	t.node(n).prev = prev
	t.node(at).prev = n
	t.node(n).manager = z
}

// detachTail removes node and every node after it from its zipper,
// clearing manager/parent on the detached run.
func (t *Tree) detachTail(z ZipperIx, n NodeIx) {
	zs := &t.zippers[z]
	if n == zs.first {
		zs.first = NoNode
		zs.last = NoNode
	} else {
		prev := t.node(n).prev
		zs.last = prev
		t.node(prev).next = NoNode
		t.node(n).prev = NoNode
	}

	for cur := n; cur != NoNode; cur = t.node(cur).next {
		t.node(cur).manager = NoZipper
		t.node(cur).parent = NoNode
	}
}

// detachSegment removes the [start, end] run (inclusive) from its zipper.
func (t *Tree) detachSegment(z ZipperIx, start, end NodeIx) {
	if start == end {
		t.detachSingle(z, start)
		return
	}
	zs := &t.zippers[z]
	prev := t.node(start).prev
	post := t.node(end).next
	if prev == NoNode {
		zs.first = post
	} else {
		t.node(prev).next = post
	}
	if post == NoNode {
		zs.last = prev
	} else {
		t.node(post).prev = prev
	}
	t.node(start).prev = NoNode
	t.node(end).next = NoNode
	for cur := start; cur != NoNode; cur = t.node(cur).next {
		t.node(cur).manager = NoZipper
		t.node(cur).parent = NoNode
		if cur == end {
			break
		}
	}
}

func (t *Tree) detachSingle(z ZipperIx, n NodeIx) {
	zs := &t.zippers[z]
	prev := t.node(n).prev
	post := t.node(n).next
	t.node(n).prev = NoNode
	t.node(n).next = NoNode
	if prev == NoNode {
		zs.first = post
	} else {
		t.node(prev).next = post
	}
	if post == NoNode {
		zs.last = prev
	} else {
		t.node(post).prev = prev
	}
	t.node(n).manager = NoZipper
	t.node(n).parent = NoNode
}

func (t *Tree) remove(z ZipperIx, n NodeIx) {
	zs := &t.zippers[z]
	next := t.node(n).next
	prev := t.node(n).prev
	if prev != NoNode {
		t.node(prev).next = next
	}
	if next != NoNode {
		t.node(next).prev = prev
	}
	t.node(n).parent = NoNode
	t.node(n).manager = NoZipper
	if n == zs.last {
		zs.last = prev
	}
	if n == zs.first {
		zs.first = next
	}
}

// First returns the first child of a container node's sub-zipper.
func (t *Tree) First(n NodeIx) NodeIx {
	z := t.subZipper(n)
	if z == NoZipper {
		return NoNode
	}
	return t.zippers[z].first
}

// Next returns n's next sibling within its current zipper.
func (t *Tree) Next(n NodeIx) NodeIx { return t.node(n).next }

// Kind returns n's tag.
func (t *Tree) Kind(n NodeIx) Kind { return t.node(n).kind }

// Condition returns the guard expression carried by n, or NoExpr.
func (t *Tree) Condition(n NodeIx) ExprIx { return t.node(n).condition }

// BlockRange returns the guest PC range of a KindBlockEncoded node.
func (t *Tree) BlockRange(n NodeIx) (start, end uint64) {
	nd := t.node(n)
	return nd.start, nd.end
}

// VarIndex returns the synthesized variable index of a KindVarSet node.
func (t *Tree) VarIndex(n NodeIx) uint32 { return t.node(n).varIndex }

// LabelIndex returns the label index of a KindLabel/KindGoto node.
func (t *Tree) LabelIndex(n NodeIx) uint32 { return t.node(n).label }

// Kills reports whether a KindReturn node represents a discard (true) or
// a plain shader exit (false).
func (t *Tree) Kills(n NodeIx) bool { return t.node(n).kills }

// SetDecoded replaces a KindBlockEncoded node's guest PC range with a
// lowered IR node sequence, turning it into a KindBlockDecoded leaf.
// nodes holds ir.NodeIx values, passed as int32 to keep this package free
// of an import on package ir.
func (t *Tree) SetDecoded(n NodeIx, nodes []int32) {
	nd := t.node(n)
	nd.kind = KindBlockDecoded
	nd.decoded = nodes
}

// Decoded returns the lowered IR node sequence of a KindBlockDecoded node.
func (t *Tree) Decoded(n NodeIx) []int32 { return t.node(n).decoded }
