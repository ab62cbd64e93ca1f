// Package ast turns a reconstructed flow.Program into a goto-free
// structured tree (If/Else/DoWhile) following Erosa & Hendren's "Taming
// control flow" (1994): gotos are moved outward one structured level at a
// time until they sit next to the label they target, then enclosed in an
// If or a DoWhile. Nodes live in a flat arena indexed by NodeIx rather
// than behind refcounted pointers.
package ast

import "github.com/kentjhall/shadercore/decode"

// ExprIx indexes into an Exprs arena. NoExpr marks the absence of an
// expression.
type ExprIx int32

// NoExpr is the sentinel for an absent expression.
const NoExpr ExprIx = -1

type exprKind int

const (
	exprVar exprKind = iota
	exprCondCode
	exprPredicate
	exprNot
	exprOr
	exprAnd
	exprBoolean
	exprGprEqual
)

type exprNode struct {
	kind exprKind
	a, b ExprIx

	varIndex uint32
	cc       decode.ConditionCode
	pred     uint32
	boolean  bool
	gpr      uint32
	gprValue uint32
}

// Exprs is an arena of the boolean guard expressions attached to Goto,
// VarSet, Return and Break nodes.
type Exprs struct {
	nodes []exprNode
}

func (e *Exprs) push(n exprNode) ExprIx {
	e.nodes = append(e.nodes, n)
	return ExprIx(len(e.nodes) - 1)
}

func (e *Exprs) at(ix ExprIx) exprNode { return e.nodes[ix] }

// Var returns a new expression referencing a compiler-introduced boolean
// variable, used to carry a goto's condition outward across structured
// levels it doesn't directly relate to. Every call adds a node, even for
// an index that is already referenced.
func (e *Exprs) Var(index uint32) ExprIx { return e.push(exprNode{kind: exprVar, varIndex: index}) }

// CondCode wraps a guest condition-code selector as a leaf expression.
func (e *Exprs) CondCode(cc decode.ConditionCode) ExprIx {
	return e.push(exprNode{kind: exprCondCode, cc: cc})
}

// Predicate wraps a guest predicate register as a leaf expression.
func (e *Exprs) Predicate(p uint32) ExprIx {
	return e.push(exprNode{kind: exprPredicate, pred: p})
}

// Boolean returns a constant-valued leaf expression.
func (e *Exprs) Boolean(v bool) ExprIx { return e.push(exprNode{kind: exprBoolean, boolean: v}) }

// GprEqual represents a BRX case guard: the jump-index register observed
// equal to a specific value.
func (e *Exprs) GprEqual(gpr, value uint32) ExprIx {
	return e.push(exprNode{kind: exprGprEqual, gpr: gpr, gprValue: value})
}

// Not builds the negation of a, collapsing Not(Not(x)) to x.
func (e *Exprs) Not(a ExprIx) ExprIx {
	if e.at(a).kind == exprNot {
		return e.at(a).a
	}
	return e.push(exprNode{kind: exprNot, a: a})
}

// And builds a conjunction, folding away a constant-boolean operand.
func (e *Exprs) And(a, b ExprIx) ExprIx {
	if e.at(a).kind == exprBoolean {
		if e.at(a).boolean {
			return b
		}
		return a
	}
	if e.at(b).kind == exprBoolean {
		if e.at(b).boolean {
			return a
		}
		return b
	}
	return e.push(exprNode{kind: exprAnd, a: a, b: b})
}

// Or builds a disjunction, folding away a constant-boolean operand.
func (e *Exprs) Or(a, b ExprIx) ExprIx {
	if e.at(a).kind == exprBoolean {
		if e.at(a).boolean {
			return a
		}
		return b
	}
	if e.at(b).kind == exprBoolean {
		if e.at(b).boolean {
			return b
		}
		return a
	}
	return e.push(exprNode{kind: exprOr, a: a, b: b})
}

// AreEqual reports structural equality between two expressions.
func (e *Exprs) AreEqual(first, second ExprIx) bool {
	a, b := e.at(first), e.at(second)
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case exprVar:
		return a.varIndex == b.varIndex
	case exprCondCode:
		return a.cc == b.cc
	case exprPredicate:
		return a.pred == b.pred
	case exprBoolean:
		return a.boolean == b.boolean
	case exprGprEqual:
		return a.gpr == b.gpr && a.gprValue == b.gprValue
	case exprNot:
		return e.AreEqual(a.a, b.a)
	case exprAnd, exprOr:
		return e.AreEqual(a.a, b.a) && e.AreEqual(a.b, b.b)
	default:
		return false
	}
}

// AreOpposite reports whether one expression is the logical negation of
// the other, looking through a single layer of Not.
func (e *Exprs) AreOpposite(first, second ExprIx) bool {
	if e.at(first).kind == exprNot {
		return e.AreEqual(e.at(first).a, second)
	}
	if e.at(second).kind == exprNot {
		return e.AreEqual(e.at(second).a, first)
	}
	return false
}

// IsTrue reports whether expr is the constant "true".
func (e *Exprs) IsTrue(expr ExprIx) bool {
	n := e.at(expr)
	return n.kind == exprBoolean && n.boolean
}
