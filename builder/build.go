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
	"ltac/utils"
)

// Build lowers a type-checked ast.AstTree into an ltacir.File (spec.md
// §4.1). Pass one populates the whole-program function and constant
// tables so a call or reference to a not-yet-lowered function/constant
// resolves correctly regardless of declaration order; pass two lowers each
// function body in turn, resetting all per-function state between them
// (spec.md §9 decision: global builder state is an explicit Context, never
// a package-level variable).
func Build(tree *ast.AstTree, fileName string) (*ltacir.File, error) {
	c := NewContext(fileName)

	for _, fn := range tree.Functions {
		c.Functions[fn.Name] = fn.ReturnType
		if fn.IsExtern {
			c.File.Emit(&ltacir.Instr{Kind: ltacir.KExtern, Symbol: fn.Name})
		}
	}
	for _, k := range tree.Consts {
		c.GlobalConsts[k.Name] = c.lowerConst(k)
	}

	for _, fn := range tree.Functions {
		if fn.IsExtern {
			continue
		}
		c.lowerFunc(fn)
		if c.Diag.Failed() {
			return c.File, c.Diag.Err()
		}
	}
	return c.File, c.Diag.Err()
}

// lowerConst converts a front-end-folded global constant value into its
// LTAC operand (spec.md §4.1 "Constants and literals"), pooling string and
// float/double values into the data section exactly like an inline literal
// would be.
func (c *Context) lowerConst(k *ast.ConstDecl) ltacir.Operand {
	switch v := k.Value.(type) {
	case int64:
		return intOperandFor(k.Type, v)
	case uint64:
		return ltacir.NewU64(v)
	case float32:
		name := utils.FltSymbol(c.fltPoolCounter)
		c.fltPoolCounter++
		c.File.AddData(ltacir.DataEntry{Kind: ltacir.FloatLiteral, Symbol: name, Payload: ltacir.Float32Bits(v)})
		return ltacir.FloatRef{Width: 4, Symbol: name}
	case float64:
		name := utils.FltSymbol(c.fltPoolCounter)
		c.fltPoolCounter++
		c.File.AddData(ltacir.DataEntry{Kind: ltacir.DoubleLiteral, Symbol: name, Payload: ltacir.Float64Bits(v)})
		return ltacir.FloatRef{Width: 8, Symbol: name}
	case string:
		name := utils.StrSymbol(c.strPoolCounter)
		c.strPoolCounter++
		c.File.AddData(ltacir.DataEntry{Kind: ltacir.StringLiteral, Symbol: name, Payload: v})
		return ltacir.PtrLcl{Symbol: name}
	default:
		return ltacir.Empty{}
	}
}

func intOperandFor(t *ast.DataType, v int64) ltacir.Operand {
	switch t.Kind {
	case ast.Byte:
		return ltacir.NewByte(int8(v))
	case ast.UByte:
		return ltacir.NewUByte(uint8(v))
	case ast.Short:
		return ltacir.NewI16(int16(v))
	case ast.UShort:
		return ltacir.NewU16(uint16(v))
	case ast.UInt:
		return ltacir.NewU32(uint32(v))
	case ast.Int64:
		return ltacir.NewI64(v)
	default:
		return ltacir.NewI32(int32(v))
	}
}

// lowerFunc lowers one function declaration end to end (spec.md §4.1):
// reset per-function state, emit the Func marker with a placeholder frame
// size, lower parameters then the body, and finally patch the frame size
// now that the watermark is final. A void function whose lowered body does
// not already end in Ret gets a trailing Ret, so control never falls past
// the function's end.
func (c *Context) lowerFunc(fn *ast.FuncDecl) {
	c.resetFunction(fn)

	funcInstr := c.File.Emit(&ltacir.Instr{Kind: ltacir.KFunc, Symbol: fn.Name})
	c.lowerParams(fn)

	for _, s := range fn.Statements {
		c.lowerStmt(s)
		if c.Diag.Failed() {
			break
		}
	}
	if fn.ReturnType.IsVoid() {
		if last := c.File.Instructions[len(c.File.Instructions)-1]; last.Kind != ltacir.KRet {
			c.File.Emit(&ltacir.Instr{Kind: ltacir.KRet})
		}
	}

	if c.Watermark == 0 {
		funcInstr.Arg1Val = 0
	} else {
		funcInstr.Arg1Val = utils.Align16(c.Watermark)
	}
}

// lowerStmt dispatches one statement by kind (spec.md §4.1-§4.2).
func (c *Context) lowerStmt(s *ast.Stmt) {
	switch s.Kind {
	case ast.StmtVarDecl:
		c.lowerVarDecl(s)
	case ast.StmtAssign:
		c.lowerAssign(s)
	case ast.StmtExprStmt:
		c.lowerCallStmt(s)
	case ast.StmtIf:
		c.lowerIf(s)
		c.pushBlock("if")
	case ast.StmtElif:
		c.lowerElif(s)
	case ast.StmtElse:
		c.lowerElse()
	case ast.StmtWhile:
		c.lowerWhile(s)
		c.pushBlock("while")
	case ast.StmtEnd:
		c.lowerEnd()
	case ast.StmtBreak:
		c.lowerBreak(s)
	case ast.StmtContinue:
		c.lowerContinue(s)
	case ast.StmtReturn:
		c.lowerReturn(s)
	default:
		c.Diag.Report(diag.Error, s.Line, "unsupported statement")
	}
}
