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
package ltacir

import (
	"fmt"
	"math"
)

// DataEntryKind tags a data-section entry (spec.md §3.1).
type DataEntryKind int

const (
	StringLiteral DataEntryKind = iota
	FloatLiteral
	DoubleLiteral
)

// DataEntry is one pooled literal. Payload holds the string verbatim for
// StringLiteral (the emitter adds quoting), or the IEEE-754 bit pattern
// printed as an unsigned decimal integer for Float/DoubleLiteral so the
// assembler's .long/.quad directives round-trip exactly (spec.md §3.1,
// testable property 3).
type DataEntry struct {
	Kind    DataEntryKind
	Symbol  string
	Payload string
}

// Float32Bits renders f's IEEE-754 bit pattern as an unsigned decimal
// integer, the payload format FloatLiteral entries use.
func Float32Bits(f float32) string {
	return fmt.Sprintf("%d", math.Float32bits(f))
}

// Float64Bits renders d's IEEE-754 bit pattern as an unsigned decimal
// integer, the payload format DoubleLiteral entries use.
func Float64Bits(d float64) string {
	return fmt.Sprintf("%d", math.Float64bits(d))
}

// File is one LTAC translation unit: an ordered data section and an
// ordered instruction stream (spec.md §3.1). Ordering is emission order for
// both slices — determinism (spec.md §5) depends on it.
type File struct {
	Name         string
	Data         []DataEntry
	Instructions []*Instr
}

func NewFile(name string) *File {
	return &File{Name: name}
}

func (f *File) AddData(e DataEntry) {
	f.Data = append(f.Data, e)
}

func (f *File) Emit(instr *Instr) *Instr {
	f.Instructions = append(f.Instructions, instr)
	return instr
}

// FuncFrameSize reads back the frame size patched onto a Func instruction,
// used by tests asserting the frame-alignment invariant (spec.md §8.1).
func (i *Instr) FuncFrameSize() int {
	if i.Kind != KFunc {
		return 0
	}
	return i.Arg1Val
}
