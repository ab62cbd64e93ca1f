package flow

import "github.com/kentjhall/shadercore/decode"

// brxTableStride is the byte stride between consecutive jump-table entries
// in the constant buffer, matching the guest compiler's convention of
// packing one 32-bit branch delta per entry.
const brxTableStride = 4

// resolveBRX backward-tracks the data flow feeding a BRX instruction to
// recover its jump table, mirroring the yuzu recompiler's
// TrackBranchIndirectInfo: BRX's index register must trace back through an
// SHL_IMM and an IMNMX_IMM (giving the table's entry count) to an LDC load
// from a constant buffer (giving the table's base address). Each entry is
// then resolved through registry, which stands in for reading the guest's
// constant buffer contents at compile time.
func (r *reconstructor) resolveBRX(pc uint64, inst decode.Instruction) ([]Case, error) {
	if r.registry == nil {
		return nil, ErrAbnormalFlow
	}

	brxReg := inst.Gpr8()
	relPos := int64(inst.BranchOffset())

	cbufIndex, cbufOffset, ldcReg, ok := r.trackLDC(pc, brxReg)
	if !ok {
		return nil, ErrAbnormalFlow
	}
	shlReg, ok := r.trackSHL(pc, ldcReg)
	if !ok {
		return nil, ErrAbnormalFlow
	}
	count, ok := r.trackIMNMX(pc, shlReg)
	if !ok {
		return nil, ErrAbnormalFlow
	}

	base := pc + 8 + uint64(relPos)
	cases := make([]Case, 0, count)
	for i := uint32(0); i < count; i++ {
		offset := cbufOffset + i*brxTableStride
		delta, ok := r.registry.ObtainKey(cbufIndex, offset)
		if !ok {
			return nil, ErrAbnormalFlow
		}
		cases = append(cases, Case{Value: i, Target: base + uint64(delta)})
	}
	return cases, nil
}

// trackBackward walks instructions preceding pc (excluding pc itself),
// skipping scheduler slots, until test matches or the program start is
// reached.
func (r *reconstructor) trackBackward(pc uint64, test func(decode.Instruction, decode.Matcher) bool) (decode.Instruction, bool) {
	for cur := pc - 8; cur >= r.entry && cur < pc; cur -= 8 {
		if decode.IsSched(cur, r.entry) {
			continue
		}
		inst := r.word(cur)
		m, ok := decode.Decode(inst)
		if !ok {
			continue
		}
		if test(inst, m) {
			return inst, true
		}
	}
	return 0, false
}

func (r *reconstructor) trackLDC(pc uint64, targetReg int) (index int, offset uint32, destReg int, ok bool) {
	inst, found := r.trackBackward(pc, func(i decode.Instruction, m decode.Matcher) bool {
		return m.ID == decode.OpLDC && i.GprDest() == targetReg
	})
	if !found {
		return 0, 0, 0, false
	}
	return inst.CbufIndex34(), inst.CbufOffset34(), inst.Gpr8(), true
}

func (r *reconstructor) trackSHL(pc uint64, targetReg int) (destReg int, ok bool) {
	inst, found := r.trackBackward(pc, func(i decode.Instruction, m decode.Matcher) bool {
		return m.ID == decode.OpSHL && i.GprDest() == targetReg
	})
	if !found {
		return 0, false
	}
	return inst.Gpr8(), true
}

func (r *reconstructor) trackIMNMX(pc uint64, targetReg int) (count uint32, ok bool) {
	inst, found := r.trackBackward(pc, func(i decode.Instruction, m decode.Matcher) bool {
		return m.ID == decode.OpIMNMX && i.GprDest() == targetReg
	})
	if !found {
		return 0, false
	}
	return uint32(inst.Imm19()) + 1, true
}
