package decode

import (
	"math/bits"
	"testing"
)

// TestMatchersWellFormed checks spec.md testable property 2: for every
// matcher, (expected & ~mask) == 0.
func TestMatchersWellFormed(t *testing.T) {
	for _, m := range Table() {
		if m.Expected&^m.Mask != 0 {
			t.Errorf("matcher %s: expected bits outside mask", m.Name)
		}
	}
}

// TestTableSortedByCoverage checks the table is sorted by descending mask
// popcount so the most specific matcher always wins a tie.
func TestTableSortedByCoverage(t *testing.T) {
	tbl := Table()
	for i := 1; i < len(tbl); i++ {
		if bits.OnesCount64(tbl[i].Mask) > bits.OnesCount64(tbl[i-1].Mask) {
			t.Fatalf("table not sorted at index %d: %s (%d bits) follows %s (%d bits)",
				i, tbl[i].Name, bits.OnesCount64(tbl[i].Mask), tbl[i-1].Name, bits.OnesCount64(tbl[i-1].Mask))
		}
	}
}

// TestDecodeDeterministic checks spec.md testable property 1: decoding the
// same word twice always returns the same result.
func TestDecodeDeterministic(t *testing.T) {
	words := []Instruction{0, 1, 0xFFFFFFFFFFFFFFFF, 0x5C98000012345678}
	for _, w := range words {
		m1, ok1 := Decode(w)
		m2, ok2 := Decode(w)
		if ok1 != ok2 || m1 != m2 {
			t.Fatalf("decode(%#x) not deterministic: (%v,%v) vs (%v,%v)", uint64(w), m1, ok1, m2, ok2)
		}
	}
}

func TestDecodeUnknownOpcodeNoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Decode panicked on unknown opcode: %v", r)
		}
	}()
	_, ok := Decode(Instruction(0x1))
	_ = ok
}

func TestIsSchedPeriod(t *testing.T) {
	entry := uint64(0x1000)
	cases := []struct {
		pc   uint64
		want bool
	}{
		{entry, true},
		{entry + 8, false},
		{entry + 16, false},
		{entry + 24, false},
		{entry + 32, true}, // next sched slot, 4 instructions later
	}
	for _, c := range cases {
		if got := IsSched(c.pc, entry); got != c.want {
			t.Errorf("IsSched(%#x, %#x) = %v, want %v", c.pc, entry, got, c.want)
		}
	}
}

func TestFieldExtraction(t *testing.T) {
	var i Instruction = 0
	i |= Instruction(1) << 20 // immediate low bit
	if got := i.Imm19(); got != 1 {
		t.Errorf("Imm19() = %d, want 1", got)
	}

	var neg Instruction
	neg = Instruction(uint64(1) << 38) // sign bit of 19-bit field at offset 20 → bit 38
	if got := neg.Imm19(); got >= 0 {
		t.Errorf("Imm19() of negative pattern = %d, want negative", got)
	}
}

func TestPredFields(t *testing.T) {
	var i Instruction
	i |= Instruction(3) << 16  // pred index 3
	i |= Instruction(1) << 19  // negate
	idx, neg := i.Pred()
	if idx != 3 || !neg {
		t.Errorf("Pred() = (%d, %v), want (3, true)", idx, neg)
	}
}
