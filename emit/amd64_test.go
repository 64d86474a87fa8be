package emit

import (
	"strings"
	"testing"

	"ltac/ltacir"
	"ltac/target"
)

func TestAMD64EmitPrologueEpilogueAndFrameSize(t *testing.T) {
	f := ltacir.NewFile("t")
	funcInstr := f.Emit(&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "main"})
	funcInstr.Arg1Val = 32
	f.Emit(&ltacir.Instr{Kind: ltacir.KRet})

	out := NewAMD64(target.Flags{Arch: target.AMD64}).Emit(f)

	for _, want := range []string{"main:", "push %rbp", "mov %rsp, %rbp", "sub $32, %rsp", "leave", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAMD64EmitZeroFrameSkipsSub(t *testing.T) {
	f := ltacir.NewFile("t")
	f.Emit(&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "noop"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KRet})

	out := NewAMD64(target.Flags{Arch: target.AMD64}).Emit(f)
	if strings.Contains(out, "sub $0, %rsp") {
		t.Error("a zero frame size must not emit a stack-pointer adjustment")
	}
}

func TestAMD64EmitDataSection(t *testing.T) {
	f := ltacir.NewFile("t")
	f.AddData(ltacir.DataEntry{Kind: ltacir.StringLiteral, Symbol: "STR0", Payload: "hi"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "main"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KRet})

	out := NewAMD64(target.Flags{Arch: target.AMD64}).Emit(f)
	if !strings.Contains(out, ".data") || !strings.Contains(out, "STR0:") {
		t.Errorf("output missing data section:\n%s", out)
	}
}

func TestAMD64EmitArithAndBranch(t *testing.T) {
	f := ltacir.NewFile("t")
	f.Emit(&ltacir.Instr{Kind: ltacir.KFunc, Symbol: "main"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KAdd, Arg1: ltacir.Reg32(1), Arg2: ltacir.Reg32(0)})
	f.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: "L0"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: "L0"})
	f.Emit(&ltacir.Instr{Kind: ltacir.KRet})

	out := NewAMD64(target.Flags{Arch: target.AMD64}).Emit(f)
	if !strings.Contains(out, "jmp L0") && !strings.Contains(out, "L0") {
		t.Errorf("output missing unconditional branch/label:\n%s", out)
	}
	if !strings.Contains(out, "L0:") {
		t.Errorf("output missing L0 label definition:\n%s", out)
	}
}
