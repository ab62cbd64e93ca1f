package pipeline

import (
	"fmt"

	"github.com/kentjhall/shadercore/ast"
	"github.com/kentjhall/shadercore/decode"
	"github.com/kentjhall/shadercore/emit"
	"github.com/kentjhall/shadercore/flow"
	"github.com/kentjhall/shadercore/ir"
)

// Environment is the lazy guest-program reader a pipeline build reads
// one stage through: spec.md §4.G calls for an abstraction that "can
// read the guest program lazily and report its start_address() and
// cached size" rather than requiring the whole program resident up
// front. Registry may return nil when the caller has no compile-time
// constant-buffer-read resolution available, in which case BRX
// indirect-jump resolution falls back to flow.ErrAbnormalFlow and the
// stage compiles via flow.BruteForce instead.
type Environment interface {
	StartAddress() uint64
	Code() []byte
	Registry() flow.Registry
}

// Profile and RuntimeInfo are re-exported from package emit so callers
// building a pipeline don't need a separate import for them.
type (
	Profile     = emit.Profile
	RuntimeInfo = emit.RuntimeInfo
)

// DefaultProfile returns the baseline SPIR-V 1.3 profile emit.Emit uses
// when a caller has no host-capability query results yet.
func DefaultProfile() *Profile { return emit.DefaultProfile() }

// compiledStage is one stage's output from the full
// decode→flow→ast→ir→emit pipeline: the emitted SPIR-V words plus the
// reflection info package descriptor needs to place it in a layout.
type compiledStage struct {
	Words []uint32
	Info  *ir.ShaderInfo
	Hash  uint64
}

// compileStage runs env's guest program through every stage of the
// recompiler (spec.md §4.B–F) and returns the emitted module plus its
// resource-usage reflection.
func compileStage(env Environment, profile *Profile, rt *RuntimeInfo) (*compiledStage, error) {
	code := env.Code()
	entry := env.StartAddress()

	flowProg, err := flow.Reconstruct(code, entry, env.Registry())
	if err != nil {
		flowProg = flow.BruteForce(code, entry)
	}

	tree := ast.Structurize(flowProg, ast.Options{FullDecompile: true})

	lowerCtx := ir.NewLoweringContext(&ir.Program{})
	if err := decodeAndLowerBlocks(tree, code, entry, lowerCtx); err != nil {
		return nil, err
	}

	info := ir.BuildShaderInfo(lowerCtx)
	words, err := emit.Emit(lowerCtx.Program, info, profile, rt)
	if err != nil {
		return nil, fmt.Errorf("pipeline: emit stage: %w", err)
	}

	return &compiledStage{Words: words, Info: info, Hash: HashGuestCode(code)}, nil
}

// decodeAndLowerBlocks walks every KindBlockEncoded leaf of tree,
// decodes its guest instruction range, lowers it through ir.Lower, and
// rewrites the leaf into a KindBlockDecoded node carrying the resulting
// ir.NodeBlock.
func decodeAndLowerBlocks(tree *ast.Tree, code []byte, entry uint64, ctx *ir.LoweringContext) error {
	var walk func(n ast.NodeIx)
	var firstErr error
	walk = func(n ast.NodeIx) {
		if n == ast.NoNode || firstErr != nil {
			return
		}
		if tree.Kind(n) == ast.KindBlockEncoded {
			start, end := tree.BlockRange(n)
			instrs, err := decodeRange(code, entry, start, end)
			if err != nil {
				firstErr = err
				return
			}
			blocks := map[uint64][]ir.DecodedInstr{start: instrs}
			lowered, err := ir.Lower(ctx, blocks)
			if err != nil {
				firstErr = err
				return
			}
			nb := lowered[start]
			decoded := make([]int32, len(nb))
			for i, ix := range nb {
				decoded[i] = int32(ix)
			}
			tree.SetDecoded(n, decoded)
		}
		for c := tree.First(n); c != ast.NoNode; c = tree.Next(c) {
			walk(c)
		}
	}
	walk(tree.Program())
	return firstErr
}

// decodeRange re-decodes the guest words in [start, end), skipping
// scheduler slots, into the DecodedInstr stream ir.Lower consumes.
func decodeRange(code []byte, entry, start, end uint64) ([]ir.DecodedInstr, error) {
	var out []ir.DecodedInstr
	for pc := start; pc < end; pc += 8 {
		if decode.IsSched(pc, entry) {
			continue
		}
		offset := pc - entry
		if offset+8 > uint64(len(code)) {
			break
		}
		var word uint64
		for i := 0; i < 8; i++ {
			word |= uint64(code[offset+uint64(i)]) << (8 * i)
		}
		inst := decode.Instruction(word)
		matcher, ok := decode.Decode(inst)
		if !ok {
			continue
		}
		out = append(out, ir.DecodedInstr{PC: pc, Word: inst, Match: matcher})
	}
	return out, nil
}
