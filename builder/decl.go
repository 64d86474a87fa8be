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
package builder

import (
	"ltac/ast"
	"ltac/diag"
	"ltac/ltacir"
)

// ldArgKindFor returns the width-specific KLdArg* instruction kind for a
// scalar type (spec.md §4.1 "Parameter ABI lowering").
func ldArgKindFor(t *ast.DataType) ltacir.Kind {
	switch t.Kind {
	case ast.Byte:
		return ltacir.KLdArgI8
	case ast.UByte, ast.Char:
		return ltacir.KLdArgU8
	case ast.Short:
		return ltacir.KLdArgI16
	case ast.UShort:
		return ltacir.KLdArgU16
	case ast.Int, ast.EnumT:
		return ltacir.KLdArgI32
	case ast.UInt:
		return ltacir.KLdArgU32
	case ast.Int64:
		return ltacir.KLdArgI64
	case ast.UInt64:
		return ltacir.KLdArgU64
	case ast.Float:
		return ltacir.KLdArgF32
	case ast.Double:
		return ltacir.KLdArgF64
	case ast.Str, ast.Ptr:
		return ltacir.KLdArgPtr
	default:
		return ltacir.KLdArgI32
	}
}

// allocVar reserves a stack slot for a scalar/string/pointer declaration
// and records it in the symbol table.
func (c *Context) allocVar(name string, t *ast.DataType, sub *ast.DataType, isParam bool) *varInfo {
	offset := c.allocSlot(t.Width())
	info := &varInfo{Offset: offset, Type: t, SubType: sub, IsParam: isParam}
	c.Vars[name] = info
	return info
}

// allocArrayVar reserves the 12-byte (pointer, length) slot arrays use
// (spec.md §3.2): the pointer lives at the declared offset, the length 8
// bytes shallower (offset-8).
func (c *Context) allocArrayVar(name string, elem *ast.DataType, isParam bool) *varInfo {
	offset := c.allocSlot(ast.ArraySlotSize)
	info := &varInfo{Offset: offset, Type: ast.ArrayOf(elem), SubType: elem, IsParam: isParam}
	c.Vars[name] = info
	return info
}

func (v *varInfo) lengthOffset() int { return v.Offset - 8 }

// lowerParams traverses parameters in declaration order, loading each from
// the ABI register file into its stack slot (spec.md §4.1 "Parameter ABI
// lowering"). Two cursors are maintained: intArgPos starts at 1 for
// integer/pointer/string parameters, fltArgPos starts at 1 for float/double
// parameters — independently, as required by testable property 4.
func (c *Context) lowerParams(fn *ast.FuncDecl) {
	for _, p := range fn.Args {
		if p.Type.IsPtr() && p.Type.Sub != nil {
			// Array parameter: pointer + length, two adjacent integer
			// ABI positions (spec.md §4.1).
			info := c.allocArrayVar(p.Name, p.Type.Sub, true)
			c.File.Emit(&ltacir.Instr{
				Kind: ltacir.KLdArgPtr,
				Arg1: ltacir.Ptr{Offset: info.Offset},
				Arg1Val: c.intArgPos,
				Comment: "load array pointer param " + p.Name,
			})
			c.intArgPos++
			c.File.Emit(&ltacir.Instr{
				Kind: ltacir.KLdArgI32,
				Arg1: ltacir.Mem{Offset: info.lengthOffset()},
				Arg1Val: c.intArgPos,
				Comment: "load array length param " + p.Name,
			})
			c.intArgPos++
			continue
		}

		info := c.allocVar(p.Name, p.Type, nil, true)
		switch {
		case p.Type.IsFloat():
			c.File.Emit(&ltacir.Instr{
				Kind: ltacir.KLdArgF32, Arg1: ltacir.Mem{Offset: info.Offset},
				Arg1Val: c.fltArgPos, Comment: "load float param " + p.Name,
			})
			c.fltArgPos++
		case p.Type.IsDouble():
			c.File.Emit(&ltacir.Instr{
				Kind: ltacir.KLdArgF64, Arg1: ltacir.Mem{Offset: info.Offset},
				Arg1Val: c.fltArgPos, Comment: "load double param " + p.Name,
			})
			c.fltArgPos++
		default:
			c.File.Emit(&ltacir.Instr{
				Kind: ldArgKindFor(p.Type), Arg1: ltacir.Mem{Offset: info.Offset},
				Arg1Val: c.intArgPos, Comment: "load param " + p.Name,
			})
			c.intArgPos++
		}
	}
}

// movKindFor returns the width-specific CISC-legal move instruction for a
// scalar type (spec.md §3.1 "typed moves").
func movKindFor(t *ast.DataType) ltacir.Kind {
	switch t.Kind {
	case ast.Byte:
		return ltacir.KMovB
	case ast.UByte, ast.Char:
		return ltacir.KMovUB
	case ast.Short:
		return ltacir.KMovW
	case ast.UShort:
		return ltacir.KMovUW
	case ast.Int, ast.EnumT:
		return ltacir.KMov
	case ast.UInt:
		return ltacir.KMovU
	case ast.Int64:
		return ltacir.KMovQ
	case ast.UInt64:
		return ltacir.KMovUQ
	case ast.Float:
		return ltacir.KMovF32
	case ast.Double:
		return ltacir.KMovF64
	case ast.Str, ast.Ptr:
		return ltacir.KMovQ
	default:
		return ltacir.KMov
	}
}

// lowerVarDecl allocates a stack slot for a local `var x : T [:= expr]` and,
// if initialized, lowers the initializer and stores it (spec.md §4.1).
func (c *Context) lowerVarDecl(s *ast.Stmt) {
	if s.Type.IsPtr() && s.Type.Sub != nil {
		info := c.allocArrayVar(s.Name, s.Type.Sub, false)
		_ = info
		// Bare array declarations with no initializer leave the backing
		// storage undefined, matching the richer builder variant (spec.md
		// §9 "Open questions": parameter-aware build_var_dec is
		// authoritative).
		return
	}

	info := c.allocVar(s.Name, s.Type, nil, false)
	if len(s.Args) == 0 {
		return
	}
	init := s.Args[0]
	if s.Type.IsStr() && init.Kind != ast.ExprStrLit && init.Kind != ast.ExprIdent {
		c.Diag.Report(diag.Error, s.Line, "cannot assign non-string expression to string variable %q", s.Name)
		return
	}
	val := c.lowerExpr(init)
	c.File.Emit(&ltacir.Instr{
		Kind: movKindFor(s.Type), Arg1: val, Arg2: ltacir.Mem{Offset: info.Offset},
		Comment: "init " + s.Name,
	})
}

// lowerAssign lowers `x := expr` and `a[i] := expr`.
func (c *Context) lowerAssign(s *ast.Stmt) {
	if len(s.Args) == 0 {
		return
	}
	rhs := s.Args[0]

	if len(s.SubArgs) > 0 {
		// Array element assignment: a[i] := expr.
		c.lowerArrayStore(s.Name, s.SubArgs[0], rhs)
		return
	}

	info, ok := c.Vars[s.Name]
	if !ok {
		if _, ok := c.GlobalConsts[s.Name]; ok {
			c.Diag.Report(diag.Error, s.Line, "cannot assign to constant %q", s.Name)
			return
		}
		c.Diag.Report(diag.Error, s.Line, "unknown identifier %q", s.Name)
		return
	}
	if info.Type.IsStr() && rhs.Kind != ast.ExprStrLit && rhs.Kind != ast.ExprIdent {
		c.Diag.Report(diag.Error, s.Line, "cannot assign non-string expression to string variable %q", s.Name)
		return
	}
	val := c.lowerExpr(rhs)
	c.File.Emit(&ltacir.Instr{
		Kind: movKindFor(info.Type), Arg1: val, Arg2: ltacir.Mem{Offset: info.Offset},
		Comment: "assign " + s.Name,
	})
}
