// Package decode matches 64-bit Tegra guest shader instructions against a
// masked bit-pattern table, exposing typed field accessors.
//
// Matching is total: the table is sorted once, at package init, by
// descending mask specificity (popcount of the mask) so that two matchers
// capable of matching the same word always agree on a winner. Decode never
// panics on guest content; an unrecognized opcode yields (Matcher{}, false).
package decode

import "math/bits"

// Instruction is a raw 64-bit guest shader instruction word.
type Instruction uint64

// Bits extracts the inclusive bit range [lo, hi] (0 = LSB) as an unsigned value.
func (i Instruction) Bits(lo, hi int) uint64 {
	width := hi - lo + 1
	mask := uint64(1)<<width - 1
	return (uint64(i) >> lo) & mask
}

// Signed extracts the inclusive bit range [lo, hi] and sign-extends it.
func (i Instruction) Signed(lo, hi int) int64 {
	width := hi - lo + 1
	raw := i.Bits(lo, hi)
	shift := 64 - width
	return int64(raw<<shift) >> shift
}

// Gpr8 returns the source-A general purpose register field at bits [8:15].
func (i Instruction) Gpr8() int { return int(i.Bits(8, 15)) }

// Gpr20 returns the source-B general purpose register field at bits [20:27].
func (i Instruction) Gpr20() int { return int(i.Bits(20, 27)) }

// GprDest returns the destination register field at bits [0:7].
func (i Instruction) GprDest() int { return int(i.Bits(0, 7)) }

// Imm19 returns a 19-bit signed immediate at bits [20:38].
func (i Instruction) Imm19() int32 { return int32(i.Signed(20, 38)) }

// CbufIndex34 returns the constant-buffer index field of a cbuf[] operand.
func (i Instruction) CbufIndex34() int { return int(i.Bits(34, 38)) }

// CbufOffset34 returns the constant-buffer byte offset field of a cbuf[] operand.
func (i Instruction) CbufOffset34() uint32 { return uint32(i.Bits(20, 33)) << 2 }

// Pred returns the guarding predicate index (bits [16:18]) and whether it is negated (bit 19).
func (i Instruction) Pred() (idx int, negate bool) {
	return int(i.Bits(16, 18)), i.Bits(19, 19) != 0
}

// ConditionCode is the Tegra condition-code selector carried by flow instructions.
type ConditionCode uint8

// Condition codes relevant to flow control.
const (
	CondCodeF  ConditionCode = iota // never taken
	CondCodeLT
	CondCodeEQ
	CondCodeLE
	CondCodeGT
	CondCodeNE
	CondCodeGE
	CondCodeT // always taken
)

// CC returns the flow instruction's condition-code field at bits [0:3].
func (i Instruction) CC() ConditionCode { return ConditionCode(i.Bits(0, 3)) }

// BranchOffset reads the signed 24-bit PC-relative delta carried by
// BRA/BRX/SSY/PBK, counted in 8-byte instructions, and returns it in bytes.
func (i Instruction) BranchOffset() int64 {
	return i.Signed(20, 43) * 8
}

// Gpr39 returns the third source-operand general purpose register field
// at bits [39:46], the real op_c used by three-source instructions
// (FFMA/IADD3/HFMA2) rather than the destination register.
func (i Instruction) Gpr39() int { return int(i.Bits(39, 46)) }

// MufuSubOp returns MUFU's transcendental sub-opcode selector at bits
// [20:23], matching the guest ISA's SubOp enum.
func (i Instruction) MufuSubOp() int { return int(i.Bits(20, 23)) }

// MUFU sub-opcode values (video_core/engines/shader_bytecode.h's SubOp).
const (
	MufuCos  = 0x0
	MufuSin  = 0x1
	MufuEx2  = 0x2
	MufuLg2  = 0x3
	MufuRcp  = 0x4
	MufuRsq  = 0x5
	MufuSqrt = 0x8
)

// Lop3Lut returns LOP3's 8-bit three-input boolean truth table at bits
// [28:35] (the register-source-C encoding; the immediate-source-C form
// instead packs the table at bits [48:55], not distinguished by this
// representative decoder).
func (i Instruction) Lop3Lut() uint32 { return uint32(i.Bits(28, 35)) }

// IAdd3Height is the half-word slice one of IADD3's three operands is
// put through before the three-way sum, matching the guest ISA's
// IAdd3Height enum.
type IAdd3Height uint8

// IAdd3Height values.
const (
	IAdd3HeightNone IAdd3Height = iota
	IAdd3HeightLower
	IAdd3HeightUpper
)

// IAdd3HeightA, IAdd3HeightB and IAdd3HeightC return IADD3's three
// independent per-operand height selectors at bits [35:36], [33:34] and
// [31:32].
func (i Instruction) IAdd3HeightA() IAdd3Height { return IAdd3Height(i.Bits(35, 36)) }
func (i Instruction) IAdd3HeightB() IAdd3Height { return IAdd3Height(i.Bits(33, 34)) }
func (i Instruction) IAdd3HeightC() IAdd3Height { return IAdd3Height(i.Bits(31, 32)) }

// ShfType selects SHF's operand width and signedness, matching the
// guest ISA's ShfType enum.
type ShfType uint8

// ShfType values.
const (
	ShfBits32 ShfType = 0
	ShfU64    ShfType = 2
	ShfS64    ShfType = 3
)

// ShfTypeField returns SHF's width/signedness field at bits [37:38].
func (i Instruction) ShfTypeField() ShfType { return ShfType(i.Bits(37, 38)) }

// ShfShiftImm returns SHF's 6-bit immediate shift amount at bits
// [20:25], used when source B is an immediate rather than a register.
func (i Instruction) ShfShiftImm() uint32 { return uint32(i.Bits(20, 25)) }

// PredUnusedIndex marks a predicate field as "always true" (no predication).
const PredUnusedIndex = 7

// PredNeverExecute marks a predicate field as "always false".
const PredNeverExecute = 7 | 0x8 // out-of-band sentinel distinct from UnusedIndex use site

// Family is a coarse classification of an opcode, used for dispatch and
// for the Type field of spec.md's data model.
type Family int

// Opcode families.
const (
	FamilyArithmetic Family = iota
	FamilyMemory
	FamilyTexture
	FamilyImage
	FamilyFlow
	FamilyMove
	FamilyPredicate
	FamilyConversion
	FamilyOther
)

func (f Family) String() string {
	switch f {
	case FamilyArithmetic:
		return "arithmetic"
	case FamilyMemory:
		return "memory"
	case FamilyTexture:
		return "texture"
	case FamilyImage:
		return "image"
	case FamilyFlow:
		return "flow"
	case FamilyMove:
		return "move"
	case FamilyPredicate:
		return "predicate"
	case FamilyConversion:
		return "conversion"
	default:
		return "other"
	}
}

// OpCode identifies a decoded guest instruction variant.
type OpCode int

// Matcher is one entry of the decode table: a (mask, expected) bit pattern
// paired with the OpCode/Family/Name it resolves to.
type Matcher struct {
	Name     string
	Mask     uint64
	Expected uint64
	ID       OpCode
	Family   Family
}

// matches reports whether word satisfies this matcher's bit pattern.
func (m Matcher) matches(word Instruction) bool {
	return uint64(word)&m.Mask == m.Expected
}

// table is the sorted decode table, built once in init from the entries
// registered by table.go. Sorting by descending mask popcount ensures a
// more specific matcher always shadows a more general one that would also
// match the same word (testable property: decoder determinism).
var table []Matcher

func init() {
	table = append(table, baseMatchers()...)
	sortByCoverage(table)
	for _, m := range table {
		if m.Expected&^m.Mask != 0 {
			// A build-time-only invariant violation: the decode table
			// itself is malformed, not the guest program. Per spec.md §7
			// this is the one case worth failing loudly and early.
			panic("decode: matcher " + m.Name + " has expected bits outside its mask")
		}
	}
}

func sortByCoverage(m []Matcher) {
	// Insertion sort is sufficient: the table is small (tens of entries)
	// and built exactly once at init.
	for i := 1; i < len(m); i++ {
		j := i
		for j > 0 && bits.OnesCount64(m[j].Mask) > bits.OnesCount64(m[j-1].Mask) {
			m[j], m[j-1] = m[j-1], m[j]
			j--
		}
	}
}

// Decode matches word against the table and returns the first (most
// specific) matcher, or ok=false if no matcher applies.
func Decode(word Instruction) (Matcher, bool) {
	for _, m := range table {
		if m.matches(word) {
			return m, true
		}
	}
	return Matcher{}, false
}

// Table returns the sorted decode table. Exposed for property-based tests
// and for tools that want to enumerate every recognized opcode.
func Table() []Matcher {
	out := make([]Matcher, len(table))
	copy(out, table)
	return out
}

// IsSched reports whether the instruction at pc is a scheduler-hint slot
// that every consumer must skip transparently: every 4th instruction slot
// (32 bytes) starting at the program's entry point is reserved for
// scheduling control words injected by the guest compiler, not real
// instructions.
func IsSched(pc, entry uint64) bool {
	const schedPeriodInstrs = 4
	const instrSize = 8
	slot := (pc - entry) / instrSize
	return slot%schedPeriodInstrs == 0
}
