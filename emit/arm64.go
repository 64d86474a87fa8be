// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package emit

import (
	"fmt"
	"strings"

	"ltac/ltacir"
	"ltac/target"
	"ltac/utils"
)

// arm64OpRegs are the operation registers spec.md §4.5 names: "operation
// regs (0..4) = w9..w13 at the chosen width" (x9..x13 for 64-bit widths).
var arm64OpRegs32 = []string{"w9", "w10", "w11", "w12", "w13"}
var arm64OpRegs64 = []string{"x9", "x10", "x11", "x12", "x13"}

var arm64ArgRegs = []string{"x0", "x1", "x2", "x3", "x4", "x5"}
var arm64ArgRegs32 = []string{"w0", "w1", "w2", "w3", "w4", "w5"}
var arm64FloatArgRegs = []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7"}
var arm64DoubleArgRegs = []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7"}

// arm64KernelRegs carries the syscall number in x8, arguments in x0..x5
// (spec.md §4.5 "kernel-arg (1..7) = x8,x0..x5").
var arm64KernelRegs = []string{"x8", "x0", "x1", "x2", "x3", "x4", "x5"}

// ARM64 emits GNU-syntax AArch64 assembly (spec.md §4.5
// "AArch64/RISC-V64"). RISCV64 reuses this emitter verbatim as a
// deliberately flagged stub (spec.md §9 "Open questions"): the mnemonics
// below are AArch64's, not RISC-V's (`lw/sw/ld/sd`, `t0..t6`), and a
// correct RISC-V backend needs its own mnemonic table.
type ARM64 struct {
	buf   strings.Builder
	flags target.Flags
}

func NewARM64(flags target.Flags) *ARM64 {
	return &ARM64{flags: flags}
}

func (a *ARM64) line(format string, args ...interface{}) {
	a.buf.WriteString(fmt.Sprintf("  "+format+"\n", args...))
}

func (a *ARM64) label(name string) { a.buf.WriteString(name + ":\n") }

func (a *ARM64) Emit(f *ltacir.File) string {
	a.emitData(f)
	a.buf.WriteString("  .text\n")
	for _, in := range f.Instructions {
		a.emitInstr(in)
	}
	return a.buf.String()
}

func (a *ARM64) emitData(f *ltacir.File) {
	if len(f.Data) == 0 {
		return
	}
	a.buf.WriteString("  .data\n")
	for _, d := range f.Data {
		a.label(d.Symbol)
		switch d.Kind {
		case ltacir.StringLiteral:
			a.line(".string %q", d.Payload)
		case ltacir.FloatLiteral:
			a.line(".long %s", d.Payload)
		case ltacir.DoubleLiteral:
			a.line(".quad %s", d.Payload)
		}
	}
}

func (a *ARM64) emitInstr(in *ltacir.Instr) {
	switch in.Kind {
	case ltacir.KExtern:
		a.line(".extern %s", in.Symbol)
	case ltacir.KLabel:
		a.label(in.Symbol)
	case ltacir.KFunc:
		a.line(".globl %s", in.Symbol)
		a.label(in.Symbol)
		a.line("stp x29, x30, [sp, -16]!")
		a.line("mov x29, sp")
		if in.FuncFrameSize() > 0 {
			a.line("sub sp, sp, #%d", in.FuncFrameSize())
		}
	case ltacir.KRet:
		a.line("mov sp, x29")
		a.line("ldp x29, x30, [sp], 16")
		a.line("ret")

	case ltacir.KPushArg:
		a.emitPushArg(arm64ArgRegs, arm64ArgRegs32, arm64FloatArgRegs, arm64DoubleArgRegs, in)
	case ltacir.KKPushArg:
		a.emitKPushArg(in)
	case ltacir.KCall:
		a.line("bl %s", in.Symbol)
	case ltacir.KSyscall:
		a.line("svc 0")

	case ltacir.KExit, ltacir.KMalloc, ltacir.KFree:
		utils.ShouldNotReachHere()

	default:
		switch {
		case isLdArgKind(in.Kind):
			a.emitLdArg(in)
		case in.Kind == ltacir.KLdB || in.Kind == ltacir.KLdUB || in.Kind == ltacir.KLdW ||
			in.Kind == ltacir.KLdUW || in.Kind == ltacir.KLdI32 || in.Kind == ltacir.KLdU32 ||
			in.Kind == ltacir.KLdQ || in.Kind == ltacir.KLdUQ || in.Kind == ltacir.KLdF32 ||
			in.Kind == ltacir.KLdF64 || in.Kind == ltacir.KLdPtr:
			a.line("ldr %s, %s", a.operand(in.Arg2), a.operand(in.Arg1))
		case in.Kind == ltacir.KStrB || in.Kind == ltacir.KStrUB || in.Kind == ltacir.KStrW ||
			in.Kind == ltacir.KStrUW || in.Kind == ltacir.KStrI32 || in.Kind == ltacir.KStrU32 ||
			in.Kind == ltacir.KStrQ || in.Kind == ltacir.KStrUQ || in.Kind == ltacir.KStrF32 ||
			in.Kind == ltacir.KStrF64 || in.Kind == ltacir.KStrPtr:
			a.line("str %s, %s", a.operand(in.Arg1), a.operand(in.Arg2))
		case in.IsCmp():
			a.emitCmp(in)
		case in.IsBranch():
			a.emitBranch(in)
		case in.IsBinaryArith():
			a.emitArith(in)
		default:
			a.emitMov(in)
		}
	}
}

func (a *ARM64) emitPushArg(intRegs, intRegs32, floatRegs, doubleRegs []string, in *ltacir.Instr) {
	pos := in.Arg1Val - 1
	if fr, ok := in.Arg1.(ltacir.FloatRef); ok {
		table := floatRegs
		if fr.Width == 8 {
			table = doubleRegs
		}
		if pos >= 0 && pos < len(table) {
			a.line("ldr %s, %s", table[pos], a.operand(in.Arg1))
		}
		return
	}
	if pos < 0 || pos >= len(intRegs) {
		return
	}
	reg := intRegs[pos]
	if operandWidth(in.Arg1) <= 4 {
		reg = intRegs32[pos]
	}
	a.line("mov %s, %s", reg, a.operand(in.Arg1))
}

func (a *ARM64) emitKPushArg(in *ltacir.Instr) {
	pos := in.Arg1Val - 1
	if pos < 0 || pos >= len(arm64KernelRegs) {
		return
	}
	a.line("mov %s, %s", arm64KernelRegs[pos], a.operand(in.Arg1))
}

func (a *ARM64) emitLdArg(in *ltacir.Instr) {
	pos := in.Arg1Val - 1
	if in.Kind == ltacir.KLdArgF32 || in.Kind == ltacir.KLdArgF64 {
		table := arm64FloatArgRegs
		if in.Kind == ltacir.KLdArgF64 {
			table = arm64DoubleArgRegs
		}
		if pos >= 0 && pos < len(table) {
			a.line("str %s, %s", table[pos], a.operand(in.Arg1))
		}
		return
	}
	if pos < 0 || pos >= len(arm64ArgRegs) {
		return
	}
	reg := arm64ArgRegs[pos]
	if ldArgWidth(in.Kind) <= 4 {
		reg = arm64ArgRegs32[pos]
	}
	a.line("str %s, %s", reg, a.operand(in.Arg1))
}

func (a *ARM64) emitMov(in *ltacir.Instr) {
	a.line("mov %s, %s", a.operand(in.Arg2), a.operand(in.Arg1))
}

func (a *ARM64) emitArith(in *ltacir.Instr) {
	if in.Kind == ltacir.KMod {
		// dst = dst - (dst / src) * src, quotient held in operation register 3.
		q := ltacir.Reg32(3)
		if r, ok := in.Arg2.(ltacir.Reg); ok && r.Width == 8 {
			q = ltacir.Reg64(3)
		}
		a.line("sdiv %s, %s, %s", a.operand(q), a.operand(in.Arg2), a.operand(in.Arg1))
		a.line("msub %s, %s, %s, %s", a.operand(in.Arg2), a.operand(q), a.operand(in.Arg1), a.operand(in.Arg2))
		return
	}
	mnem := arm64ArithMnemonic(in.Kind)
	a.line("%s %s, %s, %s", mnem, a.operand(in.Arg2), a.operand(in.Arg2), a.operand(in.Arg1))
}

func arm64ArithMnemonic(k ltacir.Kind) string {
	switch k {
	case ltacir.KAdd:
		return "add"
	case ltacir.KSub:
		return "sub"
	case ltacir.KMul:
		return "mul"
	case ltacir.KDiv:
		return "sdiv"
	case ltacir.KMod:
		return "sdiv" // emitArith completes the remainder with msub
	case ltacir.KAnd:
		return "and"
	case ltacir.KOr:
		return "orr"
	case ltacir.KXor:
		return "eor"
	case ltacir.KNot:
		return "mvn"
	case ltacir.KLShift:
		return "lsl"
	case ltacir.KRShift:
		return "lsr"
	default:
		utils.Unimplement()
		return ""
	}
}

func (a *ARM64) emitCmp(in *ltacir.Instr) {
	if in.Kind == ltacir.KStrCmp {
		a.line("mov x0, %s", a.operand(in.Arg1))
		a.line("mov x1, %s", a.operand(in.Arg2))
		a.line("bl strcmp")
		return
	}
	if in.Kind == ltacir.KF32Cmp || in.Kind == ltacir.KF64Cmp {
		a.line("fcmp %s, %s", a.operand(in.Arg1), a.operand(in.Arg2))
		return
	}
	a.line("cmp %s, %s", a.operand(in.Arg1), a.operand(in.Arg2))
}

func (a *ARM64) emitBranch(in *ltacir.Instr) {
	if in.Kind == ltacir.KBr {
		a.line("b %s", in.Symbol)
		return
	}
	a.line("%s %s", arm64BranchMnemonic(in.Kind), in.Symbol)
}

func arm64BranchMnemonic(k ltacir.Kind) string {
	switch k {
	case ltacir.KBe:
		return "b.eq"
	case ltacir.KBne:
		return "b.ne"
	case ltacir.KBl:
		return "b.lt"
	case ltacir.KBle:
		return "b.le"
	case ltacir.KBg:
		return "b.gt"
	case ltacir.KBge:
		return "b.ge"
	case ltacir.KBfl:
		return "b.lo"
	case ltacir.KBfle:
		return "b.ls"
	case ltacir.KBfg:
		return "b.hi"
	case ltacir.KBfge:
		return "b.hs"
	default:
		return "b"
	}
}

func (a *ARM64) operand(op ltacir.Operand) string {
	switch v := op.(type) {
	case ltacir.Empty:
		return ""
	case ltacir.Reg:
		idx := v.Index
		if v.Class == ltacir.RegFloat {
			if idx >= len(arm64OpRegs32) {
				idx = len(arm64OpRegs32) - 1
			}
			if v.Width == 8 {
				return "d" + arm64OpRegs64[idx][1:]
			}
			return "s" + arm64OpRegs32[idx][1:]
		}
		if idx >= len(arm64OpRegs32) {
			idx = len(arm64OpRegs32) - 1
		}
		if v.Width == 8 {
			return arm64OpRegs64[idx]
		}
		return arm64OpRegs32[idx]
	case ltacir.RetReg:
		switch v.Kind {
		case ltacir.RetRegI32:
			return "w0"
		case ltacir.RetRegI64:
			return "x0"
		case ltacir.RetRegF32:
			return "s0"
		case ltacir.RetRegF64:
			return "d0"
		}
	case ltacir.Imm:
		return fmt.Sprintf("#%s", strings.TrimPrefix(v.String(), "$"))
	case ltacir.FloatRef:
		return v.Symbol
	case ltacir.Mem:
		return fmt.Sprintf("[sp, %d]", v.Offset)
	case ltacir.MemOffsetImm:
		return fmt.Sprintf("[sp, %d]", v.BaseOffset-v.Imm)
	case ltacir.MemOffsetMem:
		// Index pre-loaded into x11 (operation register 2) by
		// builder.loadIndexReg. AArch64 has no single-instruction
		// base+displacement+scaled-index addressing form the way AMD64
		// does, so this still drops the index term; see DESIGN.md.
		return fmt.Sprintf("[sp, %d]", v.BaseOffset)
	case ltacir.Ptr:
		return fmt.Sprintf("[sp, %d]", v.Offset)
	case ltacir.PtrLcl:
		return fmt.Sprintf("=%s", v.Symbol)
	}
	return "<bad operand>"
}
