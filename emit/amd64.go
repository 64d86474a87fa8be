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

// Package emit prints the post-transform LTAC sequence as GNU-syntax
// assembly (spec.md §4.5). amd64.go follows the teacher's Assembler shape
// (compile/codegen/asm_x86.go): a growing text buffer written through
// comment/line/label helpers. Mnemonics carry no width suffix; an operand's
// width shows only in the register name chosen for it.
package emit

import (
	"fmt"
	"strings"

	"ltac/ltacir"
	"ltac/target"
	"ltac/utils"
)

// amd64OpRegs maps an operation-register index to its name at each width,
// per spec.md §4.5 "operation registers (0..2) = rbx, rdx, r10". Register
// 2 also holds a runtime array index (builder.loadIndexReg), which is why
// MemOffsetMem operands render with %r10.
var amd64OpRegs = [][4]string{
	// {byte, word, dword, qword}
	{"bl", "bx", "ebx", "rbx"},
	{"dl", "dx", "edx", "rdx"},
	{"r10b", "r10w", "r10d", "r10"},
}

var amd64ArgRegs = [][4]string{
	{"dil", "di", "edi", "rdi"},
	{"sil", "si", "esi", "rsi"},
	{"dl", "dx", "edx", "rdx"},
	{"cl", "cx", "ecx", "rcx"},
	{"r8b", "r8w", "r8d", "r8"},
	{"r9b", "r9w", "r9d", "r9"},
}

// amd64KernelRegs is the syscall argument register file: rax carries the
// syscall number, rdi/rsi/rdx/r10/r8/r9 the arguments (spec.md §4.5 lists
// rax, rdi, rsi, rdx for the four-argument case this language needs; mmap's
// six arguments borrow the remaining syscall-ABI registers, which differ
// from the C ABI's rcx/r8 in position 4 by convention).
var amd64KernelRegs = [][4]string{
	{"al", "ax", "eax", "rax"},
	{"dil", "di", "edi", "rdi"},
	{"sil", "si", "esi", "rsi"},
	{"dl", "dx", "edx", "rdx"},
	{"r10b", "r10w", "r10d", "r10"},
	{"r8b", "r8w", "r8d", "r8"},
	{"r9b", "r9w", "r9d", "r9"},
}

var amd64FloatArgRegs = []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"}

// AMD64 emits GNU/AT&T-syntax x86-64 assembly (spec.md §4.5 "AMD64").
type AMD64 struct {
	buf       strings.Builder
	flags     target.Flags
	funcIndex int
}

func NewAMD64(flags target.Flags) *AMD64 {
	return &AMD64{flags: flags}
}

func (a *AMD64) comment(s string) { a.buf.WriteString(fmt.Sprintf("  # %s\n", s)) }

func (a *AMD64) line(format string, args ...interface{}) {
	a.buf.WriteString(fmt.Sprintf("  "+format+"\n", args...))
}

func (a *AMD64) label(name string) { a.buf.WriteString(name + ":\n") }

// Emit renders f as a complete .s file (spec.md §4.5 "Data section").
func (a *AMD64) Emit(f *ltacir.File) string {
	a.emitData(f)
	a.buf.WriteString("  .text\n")
	for _, in := range f.Instructions {
		a.emitInstr(in)
	}
	return a.buf.String()
}

func (a *AMD64) emitData(f *ltacir.File) {
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

func (a *AMD64) emitInstr(in *ltacir.Instr) {
	switch in.Kind {
	case ltacir.KExtern:
		a.line(".extern %s", in.Symbol)
	case ltacir.KLabel:
		a.label(in.Symbol)
	case ltacir.KFunc:
		a.funcIndex++
		if a.flags.IsPIC {
			a.line(".type %s, @function", in.Symbol)
		}
		a.line(".globl %s", in.Symbol)
		a.label(in.Symbol)
		a.comment("prologue")
		a.line("push %%rbp")
		a.line("mov %%rsp, %%rbp")
		if in.FuncFrameSize() > 0 {
			a.line("sub $%d, %%rsp", in.FuncFrameSize())
		}
	case ltacir.KRet:
		a.comment("epilogue")
		a.line("leave")
		a.line("ret")

	case ltacir.KPushArg:
		a.emitPushArg(amd64ArgRegs, amd64FloatArgRegs, in)
	case ltacir.KKPushArg:
		a.emitPushArg(amd64KernelRegs, nil, in)
	case ltacir.KCall:
		a.line("call %s", in.Symbol)
	case ltacir.KSyscall:
		a.line("syscall")

	case ltacir.KExit, ltacir.KMalloc, ltacir.KFree:
		utils.ShouldNotReachHere() // expanded away by the transform pass

	default:
		switch {
		case isLdArgKind(in.Kind):
			a.emitLdArg(in)
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

func (a *AMD64) emitPushArg(intTable [][4]string, floatTable []string, in *ltacir.Instr) {
	pos := in.Arg1Val - 1
	if floatTable != nil {
		if _, ok := in.Arg1.(ltacir.FloatRef); ok && pos < len(floatTable) {
			a.line("movss %s(%%rip), %%%s", a.operand(in.Arg1), floatTable[pos])
			return
		}
	}
	if pos < 0 || pos >= len(intTable) {
		a.comment(fmt.Sprintf("arg position %d out of range", in.Arg1Val))
		return
	}
	dst := intTable[pos][widthIndex(operandWidth(in.Arg1))]
	a.line("mov %s, %%%s", a.operand(in.Arg1), dst)
}

func isLdArgKind(k ltacir.Kind) bool {
	switch k {
	case ltacir.KLdArgI8, ltacir.KLdArgU8, ltacir.KLdArgI16, ltacir.KLdArgU16,
		ltacir.KLdArgI32, ltacir.KLdArgU32, ltacir.KLdArgI64, ltacir.KLdArgU64,
		ltacir.KLdArgF32, ltacir.KLdArgF64, ltacir.KLdArgPtr:
		return true
	default:
		return false
	}
}

func (a *AMD64) emitLdArg(in *ltacir.Instr) {
	pos := in.Arg1Val - 1
	if in.Kind == ltacir.KLdArgF32 || in.Kind == ltacir.KLdArgF64 {
		if pos >= 0 && pos < len(amd64FloatArgRegs) {
			mnem := "movss"
			if in.Kind == ltacir.KLdArgF64 {
				mnem = "movsd"
			}
			a.line("%s %%%s, %s", mnem, amd64FloatArgRegs[pos], a.operand(in.Arg1))
		}
		return
	}
	if pos < 0 || pos >= len(amd64ArgRegs) {
		return
	}
	w := ldArgWidth(in.Kind)
	a.line("mov %%%s, %s", amd64ArgRegs[pos][widthIndex(w)], a.operand(in.Arg1))
}

func ldArgWidth(k ltacir.Kind) int {
	switch k {
	case ltacir.KLdArgI8, ltacir.KLdArgU8:
		return 1
	case ltacir.KLdArgI16, ltacir.KLdArgU16:
		return 2
	case ltacir.KLdArgI64, ltacir.KLdArgU64, ltacir.KLdArgPtr:
		return 8
	default:
		return 4
	}
}

func (a *AMD64) emitMov(in *ltacir.Instr) {
	mnem := "mov"
	if in.Kind == ltacir.KMovF32 {
		mnem = "movss"
	} else if in.Kind == ltacir.KMovF64 {
		mnem = "movsd"
	}
	a.line("%s %s, %s", mnem, a.operand(in.Arg1), a.operand(in.Arg2))
}

func (a *AMD64) emitArith(in *ltacir.Instr) {
	mnem := arithMnemonic(in.Kind)
	a.line("%s %s, %s", mnem, a.operand(in.Arg1), a.operand(in.Arg2))
}

func arithMnemonic(k ltacir.Kind) string {
	switch k {
	case ltacir.KAdd:
		return "add"
	case ltacir.KSub:
		return "sub"
	case ltacir.KMul:
		return "imul"
	case ltacir.KDiv:
		return "idiv"
	case ltacir.KMod:
		return "idiv" // quotient in rax, remainder in rdx; driver-level convention
	case ltacir.KAnd:
		return "and"
	case ltacir.KOr:
		return "or"
	case ltacir.KXor:
		return "xor"
	case ltacir.KNot:
		return "not"
	case ltacir.KLShift:
		return "shl"
	case ltacir.KRShift:
		return "shr"
	default:
		utils.Unimplement()
		return ""
	}
}

func (a *AMD64) emitCmp(in *ltacir.Instr) {
	if in.Kind == ltacir.KStrCmp {
		a.line("mov %s, %%rdi", a.operand(in.Arg1))
		a.line("mov %s, %%rsi", a.operand(in.Arg2))
		a.line("call strcmp")
		return
	}
	if in.Kind == ltacir.KF32Cmp || in.Kind == ltacir.KF64Cmp {
		mnem := "ucomiss"
		if in.Kind == ltacir.KF64Cmp {
			mnem = "ucomisd"
		}
		a.line("%s %s, %s", mnem, a.operand(in.Arg2), a.operand(in.Arg1))
		return
	}
	a.line("cmp %s, %s", a.operand(in.Arg2), a.operand(in.Arg1))
}

func (a *AMD64) emitBranch(in *ltacir.Instr) {
	mnem := branchMnemonic(in.Kind)
	if in.Kind == ltacir.KBr {
		a.line("jmp %s", in.Symbol)
		return
	}
	a.line("%s %s", mnem, in.Symbol)
}

func branchMnemonic(k ltacir.Kind) string {
	switch k {
	case ltacir.KBe:
		return "je"
	case ltacir.KBne:
		return "jne"
	case ltacir.KBl:
		return "jl"
	case ltacir.KBle:
		return "jle"
	case ltacir.KBg:
		return "jg"
	case ltacir.KBge:
		return "jge"
	case ltacir.KBfl:
		return "jb"
	case ltacir.KBfle:
		return "jbe"
	case ltacir.KBfg:
		return "ja"
	case ltacir.KBfge:
		return "jae"
	default:
		return "jmp"
	}
}

func widthIndex(w int) int {
	switch w {
	case 1:
		return 0
	case 2:
		return 1
	case 8:
		return 3
	default:
		return 2
	}
}

func operandWidth(op ltacir.Operand) int {
	switch v := op.(type) {
	case ltacir.Reg:
		return v.Width
	case ltacir.Imm:
		switch v.Width {
		case ltacir.ImmByte, ltacir.ImmUByte:
			return 1
		case ltacir.ImmI16, ltacir.ImmU16:
			return 2
		case ltacir.ImmI64, ltacir.ImmU64:
			return 8
		default:
			return 4
		}
	default:
		return 4
	}
}

// operand renders an ltacir.Operand in AT&T syntax.
func (a *AMD64) operand(op ltacir.Operand) string {
	switch v := op.(type) {
	case ltacir.Empty:
		return ""
	case ltacir.Reg:
		idx := v.Index
		if idx >= len(amd64OpRegs) {
			idx = len(amd64OpRegs) - 1
		}
		if v.Class == ltacir.RegFloat {
			return fmt.Sprintf("%%xmm%d", idx+8)
		}
		return "%" + amd64OpRegs[idx][widthIndex(v.Width)]
	case ltacir.RetReg:
		switch v.Kind {
		case ltacir.RetRegI32:
			return "%eax"
		case ltacir.RetRegI64:
			return "%rax"
		case ltacir.RetRegF32, ltacir.RetRegF64:
			return "%xmm0"
		}
	case ltacir.Imm:
		return v.String()
	case ltacir.FloatRef:
		return v.Symbol + "(%rip)"
	case ltacir.Mem:
		return fmt.Sprintf("-%d(%%rbp)", v.Offset)
	case ltacir.MemOffsetImm:
		return fmt.Sprintf("-%d(%%rbp)", v.BaseOffset-v.Imm)
	case ltacir.MemOffsetMem:
		// Index pre-loaded into r10 (operation register 2) by
		// builder.loadIndexReg before this operand is ever rendered.
		return fmt.Sprintf("-%d(%%rbp,%%r10,%d)", v.BaseOffset, v.Scale)
	case ltacir.Ptr:
		return fmt.Sprintf("-%d(%%rbp)", v.Offset)
	case ltacir.PtrLcl:
		return fmt.Sprintf("$%s", v.Symbol)
	}
	return "<bad operand>"
}
