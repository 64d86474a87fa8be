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

// Package transform runs the target-aware rewrite pass between the builder
// and the emitter (spec.md §4.4): primitive expansion of Exit/Malloc/Free
// into libc calls or raw syscalls, and RISC legalization of memory/
// immediate operands. It is infallible on well-typed IR (spec.md §7): it
// returns no error and does not validate its input.
package transform

import (
	"ltac/ltacir"
	"ltac/target"
)

// Syscall numbers for the primitives the transform pass expands, per
// target (spec.md §4.4).
const (
	sysExitX86, sysExitARM     = 60, 93
	sysMmapX86, sysMmapARM     = 9, 222
	sysMunmapX86, sysMunmapARM = 11, 215

	mmapProt  = 3
	mmapFlags = 34
	mmapFd    = -1
	mmapOff   = 0
)

// Run applies primitive expansion and (for RISC targets) legalization to f,
// returning a new File; f itself is left untouched, matching the teacher's
// "each stage receives an immutable input and produces a fresh output"
// resource model (spec.md §5).
func Run(f *ltacir.File, flags target.Flags) *ltacir.File {
	out := expandPrimitives(f, flags)
	if flags.Arch.IsRISC() {
		out = legalizeRISC(out)
	}
	return out
}

// mmSlot is the side table spec.md §4.4/§9 calls for: a transient,
// per-function map from the pointer's stack slot to the allocation size
// captured at the matching malloc site, so a later free can supply
// munmap's length argument. Builder emits a KMalloc immediately followed
// by the Mov/Str that captures its result, and a KFree whose own operand
// already names the pointer's slot — so the table is keyed directly off
// operand offsets rather than by scanning neighboring instructions for a
// foreign back-reference (a Go-idiomatic adaptation of the original
// index-peeking scheme; see DESIGN.md).
type mmSlot map[int]int

func expandPrimitives(f *ltacir.File, flags target.Flags) *ltacir.File {
	out := &ltacir.File{Name: f.Name, Data: f.Data}
	mm := mmSlot{}

	for i := 0; i < len(f.Instructions); i++ {
		in := f.Instructions[i]
		switch in.Kind {
		case ltacir.KFunc:
			mm = mmSlot{} // scoped per function (spec.md §5)
			out.Instructions = append(out.Instructions, in)
		case ltacir.KExit:
			expandExit(out, in, flags)
		case ltacir.KMalloc:
			expandMalloc(out, in, flags, mm, f.Instructions, i)
		case ltacir.KFree:
			expandFree(out, in, flags, mm)
		default:
			out.Instructions = append(out.Instructions, in)
		}
	}
	return out
}

func expandExit(out *ltacir.File, in *ltacir.Instr, flags target.Flags) {
	if flags.UseLibc {
		out.Instructions = append(out.Instructions,
			&ltacir.Instr{Kind: ltacir.KPushArg, Arg1: in.Arg1, Arg1Val: 1},
			&ltacir.Instr{Kind: ltacir.KCall, Symbol: "exit"},
		)
		return
	}
	num := sysExitX86
	if flags.Arch == target.AArch64 || flags.Arch == target.RISCV64 {
		num = sysExitARM
	}
	out.Instructions = append(out.Instructions,
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(int32(num)), Arg1Val: 1},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: in.Arg1, Arg1Val: 2},
		&ltacir.Instr{Kind: ltacir.KSyscall},
	)
}

// expandMalloc expands a KMalloc in place. On the syscall path it also
// records the destination slot's size in mm, peeking one instruction ahead
// at the Mov/Str that captures the returned pointer (the builder always
// emits that capture as the very next instruction).
func expandMalloc(out *ltacir.File, in *ltacir.Instr, flags target.Flags, mm mmSlot, all []*ltacir.Instr, idx int) {
	if flags.UseLibc {
		out.Instructions = append(out.Instructions,
			&ltacir.Instr{Kind: ltacir.KPushArg, Arg1: in.Arg1, Arg1Val: 1},
			&ltacir.Instr{Kind: ltacir.KCall, Symbol: "malloc"},
		)
		return
	}

	size := 0
	if imm, ok := in.Arg1.(ltacir.Imm); ok {
		size = int(imm.Value)
	}
	if idx+1 < len(all) {
		if dst, ok := destSlot(all[idx+1]); ok {
			mm[dst] = size
		}
	}

	num := sysMmapX86
	if flags.Arch == target.AArch64 || flags.Arch == target.RISCV64 {
		num = sysMmapARM
	}
	out.Instructions = append(out.Instructions,
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(int32(num)), Arg1Val: 1},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(0), Arg1Val: 2},      // addr
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(int32(size)), Arg1Val: 3}, // length
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(mmapProt), Arg1Val: 4},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(mmapFlags), Arg1Val: 5},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(mmapFd), Arg1Val: 6},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(mmapOff), Arg1Val: 7},
		&ltacir.Instr{Kind: ltacir.KSyscall},
	)
}

func expandFree(out *ltacir.File, in *ltacir.Instr, flags target.Flags, mm mmSlot) {
	if flags.UseLibc {
		out.Instructions = append(out.Instructions,
			&ltacir.Instr{Kind: ltacir.KPushArg, Arg1: in.Arg1, Arg1Val: 1},
			&ltacir.Instr{Kind: ltacir.KCall, Symbol: "free"},
		)
		return
	}

	size := 0
	if off, ok := operandOffset(in.Arg1); ok {
		size = mm[off]
	}
	num := sysMunmapX86
	if flags.Arch == target.AArch64 || flags.Arch == target.RISCV64 {
		num = sysMunmapARM
	}
	out.Instructions = append(out.Instructions,
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(int32(num)), Arg1Val: 1},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: in.Arg1, Arg1Val: 2},
		&ltacir.Instr{Kind: ltacir.KKPushArg, Arg1: ltacir.NewI32(int32(size)), Arg1Val: 3},
		&ltacir.Instr{Kind: ltacir.KSyscall},
	)
}

// destSlot extracts the stack offset a Mov/Str instruction writes to, if
// any: the pointer-capture half of a malloc-then-store pair.
func destSlot(in *ltacir.Instr) (int, bool) {
	return operandOffset(in.Arg2)
}

func operandOffset(op ltacir.Operand) (int, bool) {
	switch v := op.(type) {
	case ltacir.Mem:
		return v.Offset, true
	case ltacir.Ptr:
		return v.Offset, true
	default:
		return 0, false
	}
}

// legalizeRISC splits every CISC-legal Mov/arithmetic form that a RISC
// target cannot address directly, per spec.md §4.4. Register 2 is reserved
// for these intermediate moves so it never collides with the reg0/reg1
// pair an arithmetic instruction's operands occupy.
func legalizeRISC(f *ltacir.File) *ltacir.File {
	out := &ltacir.File{Name: f.Name, Data: f.Data}
	for _, in := range f.Instructions {
		switch {
		case isMovKind(in.Kind):
			out.Instructions = append(out.Instructions, legalizeMov(in)...)
		case in.IsBinaryArith():
			out.Instructions = append(out.Instructions, legalizeArith(in)...)
		default:
			out.Instructions = append(out.Instructions, in)
		}
	}
	return out
}

func isMovKind(k ltacir.Kind) bool {
	switch k {
	case ltacir.KMovB, ltacir.KMovUB, ltacir.KMovW, ltacir.KMovUW,
		ltacir.KMov, ltacir.KMovU, ltacir.KMovQ, ltacir.KMovUQ,
		ltacir.KMovF32, ltacir.KMovF64:
		return true
	default:
		return false
	}
}

// ldKindFor maps a CISC Mov kind to its RISC-only Ld counterpart.
func ldKindFor(k ltacir.Kind) ltacir.Kind {
	switch k {
	case ltacir.KMovB:
		return ltacir.KLdB
	case ltacir.KMovUB:
		return ltacir.KLdUB
	case ltacir.KMovW:
		return ltacir.KLdW
	case ltacir.KMovUW:
		return ltacir.KLdUW
	case ltacir.KMov:
		return ltacir.KLdI32
	case ltacir.KMovU:
		return ltacir.KLdU32
	case ltacir.KMovQ:
		return ltacir.KLdQ
	case ltacir.KMovUQ:
		return ltacir.KLdUQ
	case ltacir.KMovF32:
		return ltacir.KLdF32
	case ltacir.KMovF64:
		return ltacir.KLdF64
	default:
		return ltacir.KLdI32
	}
}

func strKindFor(k ltacir.Kind) ltacir.Kind {
	switch k {
	case ltacir.KMovB:
		return ltacir.KStrB
	case ltacir.KMovUB:
		return ltacir.KStrUB
	case ltacir.KMovW:
		return ltacir.KStrW
	case ltacir.KMovUW:
		return ltacir.KStrUW
	case ltacir.KMov:
		return ltacir.KStrI32
	case ltacir.KMovU:
		return ltacir.KStrU32
	case ltacir.KMovQ:
		return ltacir.KStrQ
	case ltacir.KMovUQ:
		return ltacir.KStrUQ
	case ltacir.KMovF32:
		return ltacir.KStrF32
	case ltacir.KMovF64:
		return ltacir.KStrF64
	default:
		return ltacir.KStrI32
	}
}

// legalizeMov splits one CISC Mov per spec.md §4.4 (Arg1 is always the
// source operand and Arg2 the destination in this IR's Mov convention):
//
//	Mov(dst=Mem, src=Imm)      -> Mov(dst=Reg=scratch2, src=Imm); Str(dst=Mem, src=Reg=scratch2)
//	Mov(dst=Reg, src=Mem)      -> Ld(dst=Reg, src=Mem)
//	Mov(dst=Mem, src=Reg|Ret)  -> Str(dst=Mem, src=Reg)
func legalizeMov(in *ltacir.Instr) []*ltacir.Instr {
	dstIsMem := ltacir.IsMemory(in.Arg2)
	srcIsMem := ltacir.IsMemory(in.Arg1)
	_, srcIsImm := in.Arg1.(ltacir.Imm)

	switch {
	case dstIsMem && srcIsImm:
		scratch := scratchRegFor(in.Kind)
		return []*ltacir.Instr{
			{Kind: in.Kind, Arg1: in.Arg1, Arg2: scratch, Comment: in.Comment},
			{Kind: strKindFor(in.Kind), Arg1: scratch, Arg2: in.Arg2, Comment: in.Comment},
		}
	case dstIsMem:
		return []*ltacir.Instr{{Kind: strKindFor(in.Kind), Arg1: in.Arg1, Arg2: in.Arg2, Comment: in.Comment}}
	case srcIsMem:
		return []*ltacir.Instr{{Kind: ldKindFor(in.Kind), Arg1: in.Arg1, Arg2: in.Arg2, Comment: in.Comment}}
	default:
		return []*ltacir.Instr{in}
	}
}

// legalizeArith materializes a binary arithmetic/bitwise instruction's
// second operand into reg1 first when it is memory or an immediate
// (spec.md §4.4, invariant 6): registers 0 and 1 are the math pair.
func legalizeArith(in *ltacir.Instr) []*ltacir.Instr {
	if !ltacir.IsMemoryOrImm(in.Arg1) {
		return []*ltacir.Instr{in}
	}
	reg1 := operationReg1For(in.Arg1)
	var materialize *ltacir.Instr
	if ltacir.IsMemory(in.Arg1) {
		materialize = &ltacir.Instr{Kind: ldKindFor(movKindForOperand(in.Arg1)), Arg1: in.Arg1, Arg2: reg1}
	} else {
		materialize = &ltacir.Instr{Kind: movKindForOperand(in.Arg1), Arg1: in.Arg1, Arg2: reg1}
	}
	return []*ltacir.Instr{materialize, {Kind: in.Kind, Arg1: reg1, Arg2: in.Arg2, Comment: in.Comment}}
}

// scratchRegFor picks the width-matched scratch register (index 2,
// reserved for moves per spec.md §4.4) for a Mov kind's immediate operand.
func scratchRegFor(k ltacir.Kind) ltacir.Reg {
	switch k {
	case ltacir.KMovB, ltacir.KMovUB:
		return ltacir.Reg8(2)
	case ltacir.KMovW, ltacir.KMovUW:
		return ltacir.Reg16(2)
	case ltacir.KMovQ, ltacir.KMovUQ:
		return ltacir.Reg64(2)
	case ltacir.KMovF32:
		return ltacir.FltReg(2)
	case ltacir.KMovF64:
		return ltacir.FltReg64(2)
	default:
		return ltacir.Reg32(2)
	}
}

// operationReg1For picks the width-matched operation register 1 (the math
// pair's second slot) for an operand being materialized.
func operationReg1For(op ltacir.Operand) ltacir.Reg {
	switch v := op.(type) {
	case ltacir.Imm:
		switch v.Width {
		case ltacir.ImmByte, ltacir.ImmUByte:
			return ltacir.Reg8(1)
		case ltacir.ImmI16, ltacir.ImmU16:
			return ltacir.Reg16(1)
		case ltacir.ImmI64, ltacir.ImmU64:
			return ltacir.Reg64(1)
		default:
			return ltacir.Reg32(1)
		}
	default:
		return ltacir.Reg32(1)
	}
}

// movKindForOperand infers the CISC move kind matching an operand's own
// width, used only to select the matching Ld/Mov-immediate form when
// materializing an arithmetic operand (the instruction being legalized
// carries no width of its own; spec.md §4.4).
func movKindForOperand(op ltacir.Operand) ltacir.Kind {
	switch v := op.(type) {
	case ltacir.Imm:
		switch v.Width {
		case ltacir.ImmByte, ltacir.ImmUByte:
			return ltacir.KMovB
		case ltacir.ImmI16, ltacir.ImmU16:
			return ltacir.KMovW
		case ltacir.ImmI64, ltacir.ImmU64:
			return ltacir.KMovQ
		default:
			return ltacir.KMov
		}
	case ltacir.Mem, ltacir.MemOffsetImm, ltacir.MemOffsetMem, ltacir.Ptr:
		return ltacir.KMov
	default:
		return ltacir.KMov
	}
}
