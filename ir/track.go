package ir

// textureHandlerSize is the guest driver's fixed byte stride between
// consecutive bindless-texture-handle slots; an indexed sampler access
// divides a base-relative register by this constant before using it as
// an array index, the UDiv(gpr, texture_handler_size) pattern
// TrackBindlessSampler recognizes below.
const textureHandlerSize = 4

// TrackCbuf performs a recursive-descent back-track over code, starting
// at cursor, looking for the constant-buffer read that ultimately
// defines the value held in tracked. It mirrors the guest recompiler's
// TrackCbuf: walk backward through Assign nodes until tracked resolves
// to an OpCbuf leaf, or the search is exhausted.
//
// ok=false does not fail the lowering. resolveGmemDescriptor then leaves
// the access unregistered; no zero immediate is substituted.
func TrackCbuf(prog *Program, tracked NodeIx, code NodeBlock, cursor int) (index, offset int, ok bool) {
	node := &prog.Nodes[tracked]
	if node.Op == OpCbuf {
		return node.Index, node.Offset, true
	}
	if node.Op != OpGpr {
		return 0, 0, false
	}
	source, newCursor, found := trackRegister(prog, node.Index, code, cursor)
	if !found {
		return 0, 0, false
	}
	return TrackCbuf(prog, source, code, newCursor)
}

// TrackImmediate back-tracks tracked to a compile-time-constant
// Immediate leaf, following the same Assign-chain walk as TrackCbuf.
func TrackImmediate(prog *Program, tracked NodeIx, code NodeBlock, cursor int) (value uint32, ok bool) {
	node := &prog.Nodes[tracked]
	if node.Op == OpImmediate {
		return node.Value, true
	}
	if node.Op != OpGpr {
		return 0, false
	}
	source, newCursor, found := trackRegister(prog, node.Index, code, cursor)
	if !found {
		return 0, false
	}
	return TrackImmediate(prog, source, code, newCursor)
}

// TrackBindlessSampler back-tracks tracked to the constant-buffer read
// feeding a bindless texture handle, reporting the (cbuf, offset) pair a
// Sampler should be deduped on. Unlike TrackCbuf this accepts a cbuf
// read whose offset is itself a register (an indexed/array access),
// returning ok=false only when neither an immediate nor a register
// offset can be resolved.
func TrackBindlessSampler(prog *Program, tracked NodeIx, code NodeBlock, cursor int) (index, offset int, indexed bool, ok bool) {
	node := &prog.Nodes[tracked]
	if node.Op == OpCbuf {
		return node.Index, node.Offset, false, true
	}
	if node.Op == OpUDiv && len(node.Operands) == 2 {
		if divisor := &prog.Nodes[node.Operands[1]]; divisor.Op == OpImmediate && divisor.Value == textureHandlerSize {
			index, offset, _, ok := TrackBindlessSampler(prog, node.Operands[0], code, cursor)
			return index, offset, true, ok
		}
	}
	if node.Op != OpGpr {
		return 0, 0, false, false
	}
	if cursor-1 < 0 {
		return 0, 0, false, false
	}
	source, newCursor, found := trackRegister(prog, node.Index, code, cursor-1)
	if !found {
		return 0, 0, false, false
	}
	return TrackBindlessSampler(prog, source, code, newCursor)
}

// trackRegister scans code backward from cursor for the most recent
// Assign whose destination is the given guest register, returning the
// value operand and the cursor position to resume backward search from.
func trackRegister(prog *Program, gpr int, code NodeBlock, cursor int) (NodeIx, int, bool) {
	for i := cursor; i >= 0; i-- {
		n := &prog.Nodes[code[i]]
		if n.Op != OpAssign || len(n.Operands) != 2 {
			continue
		}
		dest := &prog.Nodes[n.Operands[0]]
		if dest.Op == OpGpr && dest.Index == gpr {
			return n.Operands[1], i - 1, true
		}
	}
	return NoNode, -1, false
}
