package flow

import (
	"errors"
	"sort"

	"github.com/kentjhall/shadercore"
	"github.com/kentjhall/shadercore/decode"
)

// ErrAbnormalFlow is returned when a BRX jump table (or other unresolvable
// flow construct) cannot be pattern-matched at compile time. The caller
// must drop to brute-force mode (spec.md §4.B/§7).
var ErrAbnormalFlow = errors.New("flow: abnormal control flow")

// ErrStackMismatch is returned when two visits to the same block disagree
// on the SSY/PBK stack snapshot. The caller must drop to no-flow-stack
// mode (spec.md §4.B/§7).
var ErrStackMismatch = errors.New("flow: ssy/pbk stack mismatch between visits")

// Registry resolves compile-time-constant constant-buffer reads, used to
// materialize BRX jump tables. obtain_key in spec.md §4.B.
type Registry interface {
	ObtainKey(cbuf int, offset uint32) (uint32, bool)
}

// query is a pending stack-state propagation in the second reconstruction
// phase.
type query struct {
	pc    uint64
	stack StackState
}

type reconstructor struct {
	code       []byte
	entry      uint64
	registry   Registry

	blocks     []*Block
	registered map[uint64]int // block start PC -> index into blocks
	labels     map[uint64]struct{}
	ssyLabels  map[uint64]uint64 // source PC -> SSY target
	pbkLabels  map[uint64]uint64 // source PC -> PBK target

	inspect []uint64
	queries []query
	stacks  map[uint64]StackState
}

// Reconstruct walks program from entry, splitting basic blocks and
// resolving BRX jump tables against registry, and returns the PC-sorted
// block graph. It returns ErrAbnormalFlow or ErrStackMismatch when the
// caller must fall back (spec.md §4.B).
func Reconstruct(program []byte, entry uint64, registry Registry) (*Program, error) {
	r := &reconstructor{
		code:       program,
		entry:      entry,
		registry:   registry,
		registered: make(map[uint64]int),
		labels:     map[uint64]struct{}{entry: {}},
		ssyLabels:  make(map[uint64]uint64),
		pbkLabels:  make(map[uint64]uint64),
		stacks:     make(map[uint64]StackState),
	}
	r.inspect = append(r.inspect, entry)

	if err := r.runInspect(); err != nil {
		return nil, err
	}
	if err := r.runQuery(); err != nil {
		return nil, err
	}

	sort.Slice(r.blocks, func(i, j int) bool { return r.blocks[i].Start < r.blocks[j].Start })

	var end uint64
	for _, b := range r.blocks {
		if b.End > end {
			end = b.End
		}
	}
	return &Program{Blocks: r.blocks, Labels: r.labels, Start: entry, End: end}, nil
}

// word reads the 64-bit instruction at pc.
func (r *reconstructor) word(pc uint64) decode.Instruction {
	off := pc - r.entry
	var w uint64
	for i := 0; i < 8; i++ {
		idx := int(off) + i
		if idx < 0 || idx >= len(r.code) {
			continue
		}
		w |= uint64(r.code[idx]) << (8 * i)
	}
	return decode.Instruction(w)
}

// runInspect implements spec.md §4.B phase 1: parse blocks, splitting an
// existing block when a newly queried PC lands inside it.
func (r *reconstructor) runInspect() error {
	for len(r.inspect) > 0 {
		pc := r.inspect[len(r.inspect)-1]
		r.inspect = r.inspect[:len(r.inspect)-1]

		if _, ok := r.registered[pc]; ok {
			continue
		}
		if idx, owner := r.findContaining(pc); owner != nil {
			r.splitBlock(idx, pc)
			continue
		}

		block, targets, err := r.parseBlock(pc)
		if err != nil {
			return err
		}
		r.blocks = append(r.blocks, block)
		r.registered[pc] = len(r.blocks) - 1
		for _, t := range targets {
			r.labels[t] = struct{}{}
			r.inspect = append(r.inspect, t)
		}
	}
	return nil
}

func (r *reconstructor) findContaining(pc uint64) (int, *Block) {
	for i, b := range r.blocks {
		if pc > b.Start && pc <= b.End {
			return i, b
		}
	}
	return -1, nil
}

// splitBlock divides a block at pc: the tail becomes a new block and the
// original forwards to it via an ignored single branch, per spec.md §4.B.
func (r *reconstructor) splitBlock(idx int, pc uint64) {
	orig := r.blocks[idx]
	tail := &Block{Start: pc, End: orig.End, Branch: orig.Branch}
	orig.End = pc - 8
	orig.Branch = SingleBranch{Target: pc, Ignore: true}
	r.blocks = append(r.blocks, tail)
	r.registered[pc] = len(r.blocks) - 1
	r.labels[pc] = struct{}{}
}

// parseBlock walks forward from pc until a terminating instruction,
// returning the new block and any newly discovered branch targets.
// Running past the end of the program without one is ErrAbnormalFlow.
func (r *reconstructor) parseBlock(pc uint64) (*Block, []uint64, error) {
	start := pc
	var targets []uint64

	for {
		if pc-r.entry >= uint64(len(r.code)) {
			return nil, nil, ErrAbnormalFlow
		}
		if decode.IsSched(pc, r.entry) {
			pc += 8
			continue
		}
		inst := r.word(pc)
		m, ok := decode.Decode(inst)
		if !ok {
			pc += 8
			continue
		}

		idx, negate := inst.Pred()
		cond := Condition{Predicate: idx, Negate: negate, CC: inst.CC()}
		if idx == decode.PredNeverExecute || cond.CC == decode.CondCodeF {
			pc += 8
			continue
		}

		switch m.ID {
		case decode.OpEXIT, decode.OpKIL:
			return &Block{Start: start, End: pc, Branch: SingleBranch{
				Condition: cond, Target: TargetExit, Kill: m.ID == decode.OpKIL,
			}}, targets, nil

		case decode.OpBRA:
			target := pc + 8 + uint64(inst.BranchOffset())
			targets = append(targets, target)
			return &Block{Start: start, End: pc, Branch: SingleBranch{
				Condition: cond, Target: target,
			}}, targets, nil

		case decode.OpSSY:
			target := pc + 8 + uint64(inst.BranchOffset())
			r.ssyLabels[pc] = target
			targets = append(targets, target)
			pc += 8
			continue

		case decode.OpPBK:
			target := pc + 8 + uint64(inst.BranchOffset())
			r.pbkLabels[pc] = target
			targets = append(targets, target)
			pc += 8
			continue

		case decode.OpSYNC:
			return &Block{Start: start, End: pc, Branch: SingleBranch{
				Condition: cond, Target: TargetUnassigned, IsSync: true,
			}}, targets, nil

		case decode.OpBRK:
			return &Block{Start: start, End: pc, Branch: SingleBranch{
				Condition: cond, Target: TargetUnassigned, IsBrk: true,
			}}, targets, nil

		case decode.OpBRX:
			cases, err := r.resolveBRX(pc, inst)
			if err != nil {
				shadercore.Logger().Debug("flow: BRX unresolvable, abnormal flow", "pc", pc)
				return nil, nil, ErrAbnormalFlow
			}
			for _, c := range cases {
				targets = append(targets, c.Target)
			}
			return &Block{Start: start, End: pc, Branch: MultiBranch{
				Gpr: inst.Gpr8(), Cases: cases,
			}}, targets, nil
		}

		pc += 8
	}
}

// runQuery implements spec.md §4.B phase 2: propagate SSY/PBK stack
// snapshots across the block graph, detecting revisits that disagree.
func (r *reconstructor) runQuery() error {
	r.queries = append(r.queries, query{pc: r.entry, stack: StackState{}})

	for len(r.queries) > 0 {
		q := r.queries[len(r.queries)-1]
		r.queries = r.queries[:len(r.queries)-1]

		idx, ok := r.registered[q.pc]
		if !ok {
			continue
		}
		block := r.blocks[idx]

		if prev, seen := r.stacks[block.Start]; seen {
			if !prev.equal(q.stack) {
				return ErrStackMismatch
			}
			continue
		}
		r.stacks[block.Start] = q.stack
		block.Visited = true

		stack := q.stack
		for src, target := range r.ssyLabels {
			if src >= block.Start && src <= block.End {
				stack = stack.clone()
				stack.SSY = append(stack.SSY, target)
			}
		}
		for src, target := range r.pbkLabels {
			if src >= block.Start && src <= block.End {
				stack = stack.clone()
				stack.PBK = append(stack.PBK, target)
			}
		}

		switch b := block.Branch.(type) {
		case SingleBranch:
			if !b.Condition.Unconditional() {
				r.queries = append(r.queries, query{pc: block.End + 8, stack: stack})
			}
			switch {
			case b.IsSync:
				if top, next, ok := stack.popSSY(); ok {
					r.queries = append(r.queries, query{pc: top, stack: next})
				}
			case b.IsBrk:
				if top, next, ok := stack.popPBK(); ok {
					r.queries = append(r.queries, query{pc: top, stack: next})
				}
			case b.Target != TargetExit && b.Target != TargetUnassigned:
				r.queries = append(r.queries, query{pc: b.Target, stack: stack})
			}
		case MultiBranch:
			for _, c := range b.Cases {
				r.queries = append(r.queries, query{pc: c.Target, stack: stack})
			}
		}
	}
	return nil
}

// BruteForce produces the last-resort fallback of spec.md §4.B: every PC
// becomes its own one-instruction block, with flow-stack mode retained
// for whatever branches can still be read directly (not BRX, since that
// is precisely what triggered the fallback).
func BruteForce(program []byte, entry uint64) *Program {
	r := &reconstructor{code: program, entry: entry}
	var blocks []*Block
	labels := map[uint64]struct{}{entry: {}}

	for off := uint64(0); off+8 <= uint64(len(program)); off += 8 {
		pc := entry + off
		if decode.IsSched(pc, entry) {
			continue
		}
		inst := r.word(pc)
		branch := Branch(SingleBranch{Target: pc + 8})
		if m, ok := decode.Decode(inst); ok {
			switch m.ID {
			case decode.OpEXIT, decode.OpKIL:
				branch = SingleBranch{Target: TargetExit, Kill: m.ID == decode.OpKIL}
			case decode.OpBRA:
				t := pc + 8 + uint64(inst.BranchOffset())
				branch = SingleBranch{Target: t}
				labels[t] = struct{}{}
			}
		}
		blocks = append(blocks, &Block{Start: pc, End: pc, Branch: branch})
	}

	return &Program{
		Blocks:        blocks,
		Labels:        labels,
		Start:         entry,
		End:           entry + uint64(len(program)),
		FlowStackMode: true,
	}
}
