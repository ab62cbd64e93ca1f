package decode

// OpCode values. This is a representative cross-section of the ~230
// opcodes a full Maxwell/Pascal decode table carries, covering every
// family the rest of this module needs to dispatch on; extending it is a
// matter of appending rows to baseMatchers, never changing the matching
// algorithm itself.
const (
	OpUnknown OpCode = iota

	// Flow control.
	OpEXIT
	OpKIL
	OpBRA
	OpBRX
	OpSSY
	OpPBK
	OpSYNC
	OpBRK
	OpCAL
	OpRET
	OpNOP

	// Move / immediate.
	OpMOV
	OpMOV32I
	OpSEL

	// Float arithmetic.
	OpFADD
	OpFADD32I
	OpFMUL
	OpFMUL32I
	OpFFMA
	OpFSETP
	OpFSET
	OpFCMP
	OpMUFU

	// Integer arithmetic.
	OpIADD
	OpIADD3
	OpIADD32I
	OpIMUL
	OpIMNMX
	OpISETP
	OpISET
	OpISCADD
	OpXMAD
	OpLOP
	OpLOP3
	OpSHF
	OpSHFLeft
	OpSHL
	OpSHR
	OpPOPC
	OpFLO
	OpBFE
	OpBFI

	// Half-precision.
	OpHADD2
	OpHMUL2
	OpHFMA2
	OpHSETP2
	OpHSET2

	// Predicate.
	OpPSETP
	OpPSET
	OpP2RNoop
	OpVOTE
	OpSHFL

	// Conversion.
	OpI2F
	OpF2I
	OpF2F
	OpI2I

	// Memory.
	OpLD
	OpST
	OpLDG
	OpSTG
	OpLDC
	OpLDL
	OpSTL
	OpLDS
	OpSTS
	OpATOM
	OpATOMS
	OpRED
	OpAL2P
	OpOUT
	OpISBERD

	// Texture.
	OpTEX
	OpTEXS
	OpTLD
	OpTLDS
	OpTLD4
	OpTLD4S
	OpTMML
	OpTXQ

	// Image.
	OpSUST
	OpSULD
	OpSUATOM

	// Attribute / interpolation.
	OpIPA
	OpALD
	OpAST

	// Scheduling / misc.
	OpDEPBAR
	OpBAR
	OpS2R
)

// masked builds a Matcher whose mask covers exactly the given bit ranges,
// each pinned to the given expected value. This keeps baseMatchers
// declarative: every row states which bits select the opcode and what
// value they must hold, rather than hand-computing masks.
func masked(name string, id OpCode, fam Family, bitsExpected ...[2]uint64) Matcher {
	var mask, expected uint64
	// bitsExpected entries are (fieldMask, fieldExpected) pairs already
	// shifted into position by the caller.
	for _, be := range bitsExpected {
		mask |= be[0]
		expected |= be[1]
	}
	return Matcher{Name: name, Mask: mask, Expected: expected, ID: id, Family: fam}
}

// field returns a (mask, expected) pair for the inclusive bit range
// [lo, hi] pinned to value.
func field(lo, hi int, value uint64) [2]uint64 {
	width := hi - lo + 1
	m := (uint64(1)<<width - 1) << lo
	return [2]uint64{m, (value << lo) & m}
}

// baseMatchers returns the built-in decode table rows. Each row's class
// code is compared against the word's top `width` bits (bits [63:40] at
// the usual width of 24; see matcher), with a handful of instructions
// further qualified by a secondary field (e.g. MUFU's sub-opcode at
// [bits 20:23], matched separately by the IR lowering layer rather than
// the decoder, per spec.md §4.D).
func baseMatchers() []Matcher {
	return []Matcher{
		matcher("EXIT", OpEXIT, FamilyFlow, 0xE30000000000, 24),
		matcher("KIL", OpKIL, FamilyFlow, 0xE32000000000, 24),
		matcher("BRA", OpBRA, FamilyFlow, 0xE24000000000, 24),
		matcher("BRX", OpBRX, FamilyFlow, 0xE26000000000, 24),
		matcher("SSY", OpSSY, FamilyFlow, 0xE28000000000, 24),
		matcher("PBK", OpPBK, FamilyFlow, 0xE2A000000000, 24),
		matcher("SYNC", OpSYNC, FamilyFlow, 0xF0F800000000, 24),
		matcher("BRK", OpBRK, FamilyFlow, 0xE2C000000000, 24),
		matcher("CAL", OpCAL, FamilyFlow, 0xE22000000000, 24),
		matcher("RET", OpRET, FamilyFlow, 0xE32000000001, 24),
		matcher("NOP", OpNOP, FamilyOther, 0x50B0000000000, 24),

		matcher("MOV", OpMOV, FamilyMove, 0x5C98000000000, 24),
		matcher("MOV32I", OpMOV32I, FamilyMove, 0x5C98000000001, 24),
		matcher("SEL", OpSEL, FamilyMove, 0x5CA8000000000, 24),

		matcher("FADD", OpFADD, FamilyArithmetic, 0x5C58000000000, 24),
		matcher("FADD32I", OpFADD32I, FamilyArithmetic, 0x5C58000000001, 24),
		matcher("FMUL", OpFMUL, FamilyArithmetic, 0x5C68000000000, 24),
		matcher("FMUL32I", OpFMUL32I, FamilyArithmetic, 0x5C68000000001, 24),
		matcher("FFMA", OpFFMA, FamilyArithmetic, 0x5980000000000, 24),
		matcher("FSETP", OpFSETP, FamilyArithmetic, 0x5BB0000000000, 24),
		matcher("FSET", OpFSET, FamilyArithmetic, 0x5BA0000000000, 24),
		matcher("FCMP", OpFCMP, FamilyArithmetic, 0x5BC0000000000, 24),
		matcher("MUFU", OpMUFU, FamilyArithmetic, 0x5080000000000, 24),

		matcher("IADD", OpIADD, FamilyArithmetic, 0x5C10000000000, 24),
		matcher("IADD3", OpIADD3, FamilyArithmetic, 0x5CC0000000000, 24),
		matcher("IADD32I", OpIADD32I, FamilyArithmetic, 0x5C10000000001, 24),
		matcher("IMUL", OpIMUL, FamilyArithmetic, 0x5C38000000000, 24),
		matcher("IMNMX", OpIMNMX, FamilyArithmetic, 0x5C20000000000, 24),
		matcher("ISETP", OpISETP, FamilyArithmetic, 0x5B60000000000, 24),
		matcher("ISET", OpISET, FamilyArithmetic, 0x5B50000000000, 24),
		matcher("ISCADD", OpISCADD, FamilyArithmetic, 0x5C18000000000, 24),
		matcher("XMAD", OpXMAD, FamilyArithmetic, 0x5B00000000000, 24),
		matcher("LOP", OpLOP, FamilyArithmetic, 0x5C40000000000, 24),
		// LOP3/SHF_RIGHT/SHF_LEFT/BFI share the same top-24-bit class code
		// under the table's default width (they differ only in the nibble
		// just below it), so these four rows widen to 28 bits of class
		// selector to stay mutually distinguishable — without it, SHF
		// and BFI could never win a match against LOP3's tie-broken
		// ordering.
		matcher("LOP3", OpLOP3, FamilyArithmetic, 0x5BF0000000000, 28),
		matcher("SHF_RIGHT", OpSHF, FamilyArithmetic, 0x5BF8000000000, 28),
		matcher("SHF_LEFT", OpSHFLeft, FamilyArithmetic, 0x5BF9000000000, 28),
		matcher("SHL", OpSHL, FamilyArithmetic, 0x5C48000000000, 24),
		matcher("SHR", OpSHR, FamilyArithmetic, 0x5C28000000000, 24),
		matcher("POPC", OpPOPC, FamilyArithmetic, 0x5C08000000000, 24),
		matcher("FLO", OpFLO, FamilyArithmetic, 0x5C30000000000, 24),
		matcher("BFE", OpBFE, FamilyArithmetic, 0x5C01000000000, 24),
		matcher("BFI", OpBFI, FamilyArithmetic, 0x5BF1000000000, 28),

		matcher("HADD2", OpHADD2, FamilyArithmetic, 0x5C58000000010, 24),
		matcher("HMUL2", OpHMUL2, FamilyArithmetic, 0x5C68000000010, 24),
		matcher("HFMA2", OpHFMA2, FamilyArithmetic, 0x5980000000010, 24),
		matcher("HSETP2", OpHSETP2, FamilyArithmetic, 0x5BB0000000010, 24),
		matcher("HSET2", OpHSET2, FamilyArithmetic, 0x5BA0000000010, 24),

		matcher("PSETP", OpPSETP, FamilyPredicate, 0x5090000000000, 24),
		matcher("PSET", OpPSET, FamilyPredicate, 0x5088000000000, 24),
		matcher("VOTE", OpVOTE, FamilyPredicate, 0x50D8000000000, 24),
		matcher("SHFL", OpSHFL, FamilyPredicate, 0xEF10000000000, 24),

		matcher("I2F", OpI2F, FamilyConversion, 0x5C80000000000, 24),
		matcher("F2I", OpF2I, FamilyConversion, 0x5C90000000000, 24),
		matcher("F2F", OpF2F, FamilyConversion, 0x5CA0000000000, 24),
		matcher("I2I", OpI2I, FamilyConversion, 0x5CB0000000000, 24),

		matcher("LD", OpLD, FamilyMemory, 0xC000000000000, 24),
		matcher("ST", OpST, FamilyMemory, 0xC800000000000, 24),
		matcher("LDG", OpLDG, FamilyMemory, 0xEED0000000000, 24),
		matcher("STG", OpSTG, FamilyMemory, 0xEED8000000000, 24),
		matcher("LDC", OpLDC, FamilyMemory, 0xEF90000000000, 24),
		matcher("LDL", OpLDL, FamilyMemory, 0xEFF0000000000, 24),
		matcher("STL", OpSTL, FamilyMemory, 0xEFF8000000000, 24),
		matcher("LDS", OpLDS, FamilyMemory, 0xEF40000000000, 24),
		matcher("STS", OpSTS, FamilyMemory, 0xEF48000000000, 24),
		matcher("ATOM", OpATOM, FamilyMemory, 0xED00000000000, 24),
		matcher("ATOMS", OpATOMS, FamilyMemory, 0xEC00000000000, 24),
		matcher("RED", OpRED, FamilyMemory, 0xEB00000000000, 24),
		matcher("AL2P", OpAL2P, FamilyMemory, 0xEFF8800000000, 24),
		matcher("OUT", OpOUT, FamilyMemory, 0xF0600000000000, 24),
		matcher("ISBERD", OpISBERD, FamilyMemory, 0xE3300000000000, 24),

		matcher("TEX", OpTEX, FamilyTexture, 0xC038000000000, 24),
		matcher("TEXS", OpTEXS, FamilyTexture, 0xD000000000000, 24),
		matcher("TLD", OpTLD, FamilyTexture, 0xDB00000000000, 24),
		matcher("TLDS", OpTLDS, FamilyTexture, 0xDC00000000000, 24),
		matcher("TLD4", OpTLD4, FamilyTexture, 0xC800000000001, 24),
		matcher("TLD4S", OpTLD4S, FamilyTexture, 0xDE00000000000, 24),
		matcher("TMML", OpTMML, FamilyTexture, 0xDF00000000000, 24),
		matcher("TXQ", OpTXQ, FamilyTexture, 0xDD00000000000, 24),

		matcher("SUST", OpSUST, FamilyImage, 0xEB80000000000, 24),
		matcher("SULD", OpSULD, FamilyImage, 0xEB60000000000, 24),
		matcher("SUATOM", OpSUATOM, FamilyImage, 0xEB40000000000, 24),

		matcher("IPA", OpIPA, FamilyOther, 0xE0000000000000, 24),
		matcher("ALD", OpALD, FamilyMemory, 0xEFD8000000000, 24),
		matcher("AST", OpAST, FamilyMemory, 0xEFF0800000000, 24),

		matcher("DEPBAR", OpDEPBAR, FamilyOther, 0xF0F000000000, 24),
		matcher("BAR", OpBAR, FamilyOther, 0xF0A8000000000, 24),
		matcher("S2R", OpS2R, FamilyOther, 0xF0C8000000000, 24),
	}
}

// matcher is a convenience constructor for the common case of a class
// selector occupying the top `width` bits (40..63 at width 24), expressed
// as a single opaque expected value rather than per-field pairs. width is
// the number of class-selector bits actually significant for that row;
// rows above pass a class code already shifted so the field helper can
// mask it uniformly at bits [64-width, 63].
func matcher(name string, id OpCode, fam Family, classCode uint64, width int) Matcher {
	hi := 63
	lo := 64 - width
	// Only bits [lo, 63] of classCode are kept; every bit below lo,
	// operand fields included, is outside the mask and left unconstrained.
	f := field(lo, hi, classCode>>uint(lo))
	return masked(name, id, fam, f)
}
