package ltacir

import "testing"

func TestFloatBitsRoundTrip(t *testing.T) {
	if got := Float32Bits(1.5); got != "1069547520" {
		t.Errorf("Float32Bits(1.5) = %s, want 1069547520", got)
	}
	if got := Float64Bits(1.5); got != "4609434218613702656" {
		t.Errorf("Float64Bits(1.5) = %s, want 4609434218613702656", got)
	}
}

func TestImmStringSignedVsUnsigned(t *testing.T) {
	neg := NewI32(-1)
	if neg.String() != "$-1" {
		t.Errorf("signed Imm.String() = %s, want $-1", neg.String())
	}
	pos := NewU32(4294967295)
	if pos.String() != "$4294967295" {
		t.Errorf("unsigned Imm.String() = %s, want $4294967295", pos.String())
	}
}

func TestIsMemoryOrImm(t *testing.T) {
	memOperands := []Operand{Mem{Offset: 4}, MemOffsetImm{BaseOffset: 4, Imm: 8}, MemOffsetMem{BaseOffset: 4, IdxOffset: 8, Scale: 4}, Ptr{Offset: 4}, NewI32(1)}
	for _, op := range memOperands {
		if !IsMemoryOrImm(op) {
			t.Errorf("IsMemoryOrImm(%T) = false, want true", op)
		}
	}
	nonMem := []Operand{Reg32(0), RetReg{Kind: RetRegI32}, FloatRef{Width: 4, Symbol: "FLT0"}}
	for _, op := range nonMem {
		if IsMemoryOrImm(op) {
			t.Errorf("IsMemoryOrImm(%T) = true, want false", op)
		}
	}
}

func TestIsMemoryExcludesImm(t *testing.T) {
	if IsMemory(NewI32(1)) {
		t.Error("IsMemory must not treat an immediate as memory")
	}
	if !IsMemory(Mem{Offset: 4}) {
		t.Error("IsMemory must treat Mem as memory")
	}
}

func TestRegBankSeparation(t *testing.T) {
	ir := Reg32(0)
	fl := FltReg(0)
	if ir.Class != RegInt || fl.Class != RegFloat {
		t.Fatal("Reg32/FltReg must draw from distinct register banks")
	}
	if ir.String() == fl.String() {
		t.Error("integer and float register 0 must render distinctly")
	}
}

func TestFuncFrameSize(t *testing.T) {
	fn := &Instr{Kind: KFunc, Arg1Val: 32}
	if fn.FuncFrameSize() != 32 {
		t.Errorf("FuncFrameSize() = %d, want 32", fn.FuncFrameSize())
	}
	other := &Instr{Kind: KRet, Arg1Val: 32}
	if other.FuncFrameSize() != 0 {
		t.Error("FuncFrameSize() on a non-Func instruction must be 0")
	}
}

func TestInstrClassification(t *testing.T) {
	br := &Instr{Kind: KBe}
	if !br.IsBranch() {
		t.Error("KBe must be a branch")
	}
	cmp := &Instr{Kind: KI32Cmp}
	if !cmp.IsCmp() {
		t.Error("KI32Cmp must be a comparison")
	}
	add := &Instr{Kind: KAdd}
	if !add.IsBinaryArith() {
		t.Error("KAdd must be a binary arithmetic instruction")
	}
	mov := &Instr{Kind: KMov}
	if mov.IsBranch() || mov.IsCmp() || mov.IsBinaryArith() {
		t.Error("KMov must not classify as branch, cmp, or binary arith")
	}
}

func TestFileEmitPreservesOrder(t *testing.T) {
	f := NewFile("test")
	f.AddData(DataEntry{Kind: StringLiteral, Symbol: "STR0", Payload: "hi"})
	first := f.Emit(&Instr{Kind: KFunc, Symbol: "main"})
	second := f.Emit(&Instr{Kind: KRet})
	if len(f.Instructions) != 2 || f.Instructions[0] != first || f.Instructions[1] != second {
		t.Fatal("Emit must append in call order")
	}
	if len(f.Data) != 1 || f.Data[0].Symbol != "STR0" {
		t.Fatal("AddData must append in call order")
	}
}
