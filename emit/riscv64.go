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

import "ltac/target"

// RISCV64 is an open correctness issue (spec.md §9): it reuses ARM64's
// mnemonics (ldr/str, w9..w13) rather than RISC-V's own (lw/sw/ld/sd,
// t0..t6). Do not trust this emitter's output against a real RISC-V
// assembler without substituting the correct instruction table first.
type RISCV64 struct {
	*ARM64
}

func NewRISCV64(flags target.Flags) *RISCV64 {
	return &RISCV64{ARM64: NewARM64(flags)}
}
