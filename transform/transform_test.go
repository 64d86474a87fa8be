package transform

import (
	"testing"

	"ltac/ltacir"
	"ltac/target"
)

func buildFile(instrs ...*ltacir.Instr) *ltacir.File {
	f := ltacir.NewFile("t")
	for _, in := range instrs {
		f.Emit(in)
	}
	return f
}

func TestExpandExitLibc(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KExit, Arg1: ltacir.NewI32(0)})
	out := Run(f, target.Flags{Arch: target.AMD64, UseLibc: true})

	if len(out.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(out.Instructions))
	}
	if out.Instructions[0].Kind != ltacir.KPushArg {
		t.Error("libc exit must push its status code as a call argument")
	}
	if out.Instructions[1].Kind != ltacir.KCall || out.Instructions[1].Symbol != "exit" {
		t.Error("libc exit must call \"exit\"")
	}
}

func TestExpandExitSyscallPerArch(t *testing.T) {
	cases := []struct {
		arch target.Arch
		num  int32
	}{
		{target.AMD64, 60},
		{target.AArch64, 93},
		{target.RISCV64, 93},
	}
	for _, c := range cases {
		f := buildFile(&ltacir.Instr{Kind: ltacir.KExit, Arg1: ltacir.NewI32(7)})
		out := Run(f, target.Flags{Arch: c.arch, UseLibc: false})

		last := out.Instructions[len(out.Instructions)-1]
		if last.Kind != ltacir.KSyscall {
			t.Fatalf("arch %v: last instruction must be KSyscall, got %v", c.arch, last.Kind)
		}
		numPush := out.Instructions[0]
		imm, ok := numPush.Arg1.(ltacir.Imm)
		if !ok || int32(imm.Value) != c.num {
			t.Errorf("arch %v: syscall number = %v, want %d", c.arch, numPush.Arg1, c.num)
		}
	}
}

func TestMallocFreeSyscallSizeRoundTrips(t *testing.T) {
	// KMalloc(256) followed by the Mov that captures the pointer into a
	// stack slot, then a KFree reading the same slot: munmap's length
	// must equal the size recorded at the malloc site (spec.md §4.4).
	f := buildFile(
		&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "main"},
		&ltacir.Instr{Kind: ltacir.KMalloc, Arg1: ltacir.NewI32(256)},
		&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.RetReg{Kind: ltacir.RetRegI64}, Arg2: ltacir.Mem{Offset: 8}},
		&ltacir.Instr{Kind: ltacir.KFree, Arg1: ltacir.Mem{Offset: 8}},
	)
	out := Run(f, target.Flags{Arch: target.AMD64, UseLibc: false})

	var freeSize int64 = -1
	for _, in := range out.Instructions {
		if in.Kind == ltacir.KKPushArg && in.Arg1Val == 3 {
			if imm, ok := in.Arg1.(ltacir.Imm); ok {
				freeSize = imm.Value
			}
		}
	}
	if freeSize != 256 {
		t.Errorf("munmap length = %d, want 256", freeSize)
	}
}

func TestMallocFreeLibcPath(t *testing.T) {
	f := buildFile(
		&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "main"},
		&ltacir.Instr{Kind: ltacir.KMalloc, Arg1: ltacir.NewI32(64)},
		&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.RetReg{Kind: ltacir.RetRegI64}, Arg2: ltacir.Mem{Offset: 8}},
		&ltacir.Instr{Kind: ltacir.KFree, Arg1: ltacir.Mem{Offset: 8}},
	)
	out := Run(f, target.Flags{Arch: target.AMD64, UseLibc: true})

	var sawMallocCall, sawFreeCall bool
	for _, in := range out.Instructions {
		if in.Kind == ltacir.KCall && in.Symbol == "malloc" {
			sawMallocCall = true
		}
		if in.Kind == ltacir.KCall && in.Symbol == "free" {
			sawFreeCall = true
		}
		if in.Kind == ltacir.KSyscall {
			t.Error("libc path must not emit a raw syscall")
		}
	}
	if !sawMallocCall || !sawFreeCall {
		t.Error("libc path must call malloc and free by name")
	}
}

func TestLegalizeMovMemImmSplitsThroughScratch(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.NewI32(42), Arg2: ltacir.Mem{Offset: 4}})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(out.Instructions))
	}
	movToScratch := out.Instructions[0]
	if movToScratch.Kind != ltacir.KMov {
		t.Error("first split instruction must still be a Mov into the scratch register")
	}
	scratch, ok := movToScratch.Arg2.(ltacir.Reg)
	if !ok || scratch.Index != 2 {
		t.Errorf("Mov(Mem,Imm) must materialize through register 2, got %v", movToScratch.Arg2)
	}
	str := out.Instructions[1]
	if str.Kind != ltacir.KStrI32 {
		t.Errorf("second split instruction kind = %v, want KStrI32", str.Kind)
	}
	if str.Arg1 != scratch {
		t.Error("the Str must read back the same scratch register the Mov wrote")
	}
}

func TestLegalizeMovRegFromMemBecomesLd(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.Mem{Offset: 4}, Arg2: ltacir.Reg32(0)})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 1 || out.Instructions[0].Kind != ltacir.KLdI32 {
		t.Fatalf("Mov(Reg,Mem) must legalize to a single KLdI32, got %+v", out.Instructions)
	}
}

func TestLegalizeMovRegToMemBecomesStr(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.Reg32(0), Arg2: ltacir.Mem{Offset: 4}})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 1 || out.Instructions[0].Kind != ltacir.KStrI32 {
		t.Fatalf("Mov(Mem,Reg) must legalize to a single KStrI32, got %+v", out.Instructions)
	}
}

func TestLegalizeMovRegToRegUntouched(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.Reg32(1), Arg2: ltacir.Reg32(0)})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 1 || out.Instructions[0].Kind != ltacir.KMov {
		t.Fatalf("Mov(Reg,Reg) must pass through unchanged, got %+v", out.Instructions)
	}
}

func TestLegalizeArithMaterializesMemOperand(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KAdd, Arg1: ltacir.Mem{Offset: 4}, Arg2: ltacir.Reg32(0)})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(out.Instructions))
	}
	if out.Instructions[0].Kind != ltacir.KLdI32 {
		t.Errorf("materializing load kind = %v, want KLdI32", out.Instructions[0].Kind)
	}
	reg1, ok := out.Instructions[0].Arg2.(ltacir.Reg)
	if !ok || reg1.Index != 1 {
		t.Errorf("arithmetic operand must materialize into register 1, got %v", out.Instructions[0].Arg2)
	}
	if out.Instructions[1].Kind != ltacir.KAdd || out.Instructions[1].Arg1 != ltacir.Reg(reg1) {
		t.Error("the Add must read back register 1 after materializing its memory operand")
	}
}

func TestLegalizeArithLeavesRegRegUntouched(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KAdd, Arg1: ltacir.Reg32(1), Arg2: ltacir.Reg32(0)})
	out := Run(f, target.Flags{Arch: target.AArch64})

	if len(out.Instructions) != 1 {
		t.Fatalf("register-only arithmetic must not be split, got %+v", out.Instructions)
	}
}

func TestRunOnAMD64SkipsLegalization(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.NewI32(1), Arg2: ltacir.Mem{Offset: 4}})
	out := Run(f, target.Flags{Arch: target.AMD64})

	if len(out.Instructions) != 1 || out.Instructions[0].Kind != ltacir.KMov {
		t.Error("AMD64 is CISC-legal and must not run RISC legalization")
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	f := buildFile(&ltacir.Instr{Kind: ltacir.KExit, Arg1: ltacir.NewI32(0)})
	originalLen := len(f.Instructions)
	_ = Run(f, target.Flags{Arch: target.AMD64, UseLibc: true})
	if len(f.Instructions) != originalLen {
		t.Error("Run must not mutate its input File")
	}
}
