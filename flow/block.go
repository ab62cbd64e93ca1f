// Package flow reconstructs a guest shader program's control-flow graph:
// it walks the program from an entry point, splits basic blocks, resolves
// indirect (BRX) jump tables via data-flow back-tracking, and computes the
// per-block SSY/PBK flow-stack snapshots needed to later eliminate the
// flow stack entirely in package ast.
package flow

import "github.com/kentjhall/shadercore/decode"

// Sentinel branch targets.
const (
	TargetExit       = ^uint64(0)
	TargetUnassigned = ^uint64(0) - 1
)

// Condition pairs a guarding predicate with a condition-code selector, the
// two independent gating mechanisms a flow instruction can carry.
type Condition struct {
	Predicate int
	Negate    bool
	CC        decode.ConditionCode
}

// Unconditional reports whether this condition never actually guards
// execution (unused predicate and an always-true condition code).
func (c Condition) Unconditional() bool {
	return c.Predicate == decode.PredUnusedIndex && c.CC == decode.CondCodeT
}

// Branch is the tagged union terminating a Block: either a single
// (possibly conditional) target, or a BRX-style multi-way jump table.
type Branch interface {
	isBranch()
}

// SingleBranch is a direct or conditional branch to one target.
type SingleBranch struct {
	Condition Condition
	Target    uint64
	Kill      bool
	IsSync    bool
	IsBrk     bool
	Ignore    bool
}

func (SingleBranch) isBranch() {}

// Case is one entry of a BRX jump table: the guest-observed register value
// paired with its target address.
type Case struct {
	Value  uint32
	Target uint64
}

// MultiBranch is a BRX indirect branch resolved against a data-flow
// back-trace of its index register.
type MultiBranch struct {
	Gpr   int
	Cases []Case
}

func (MultiBranch) isBranch() {}

// Block is a maximal run of instructions sharing one entry and one exit.
// Blocks of a single program partition the covered PC range: end+1 equals
// the next block's start whenever control falls through with no
// intervening label.
type Block struct {
	Start, End uint64
	Visited    bool
	Branch     Branch
}

// StackState is the per-block snapshot of the guest SSY/PBK flow-stack
// contents observed on block entry.
type StackState struct {
	SSY []uint64
	PBK []uint64
}

// clone returns an independent copy so queued propagations cannot alias
// mutations made by a sibling branch of the worklist.
func (s StackState) clone() StackState {
	out := StackState{
		SSY: append([]uint64(nil), s.SSY...),
		PBK: append([]uint64(nil), s.PBK...),
	}
	return out
}

func (s StackState) equal(o StackState) bool {
	if len(s.SSY) != len(o.SSY) || len(s.PBK) != len(o.PBK) {
		return false
	}
	for i := range s.SSY {
		if s.SSY[i] != o.SSY[i] {
			return false
		}
	}
	for i := range s.PBK {
		if s.PBK[i] != o.PBK[i] {
			return false
		}
	}
	return true
}

func (s StackState) popSSY() (uint64, StackState, bool) {
	if len(s.SSY) == 0 {
		return 0, s, false
	}
	top := s.SSY[len(s.SSY)-1]
	next := s.clone()
	next.SSY = next.SSY[:len(next.SSY)-1]
	return top, next, true
}

func (s StackState) popPBK() (uint64, StackState, bool) {
	if len(s.PBK) == 0 {
		return 0, s, false
	}
	top := s.PBK[len(s.PBK)-1]
	next := s.clone()
	next.PBK = next.PBK[:len(next.PBK)-1]
	return top, next, true
}

// Program is the reconstructor's output: a PC-sorted block list plus the
// label set consumed by package ast to seed Label/Goto nodes.
type Program struct {
	Blocks []*Block
	Labels map[uint64]struct{}
	Start  uint64
	End    uint64

	// FlowStackMode is set when reconstruction fell back to retaining
	// BRX/backward gotos without the full structurizer (spec.md §4.B).
	FlowStackMode bool
}
