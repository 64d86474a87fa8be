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
	"ltac/ltacir"
)

// lowerReturn lowers `return [expr]` (spec.md §4.3): a void return emits a
// bare Ret, a value return lowers the expression into the return register
// of its type first.
func (c *Context) lowerReturn(s *ast.Stmt) {
	if len(s.Args) == 0 {
		c.File.Emit(&ltacir.Instr{Kind: ltacir.KRet})
		return
	}
	val := c.lowerExpr(s.Args[0])
	dst := retRegFor(c.CurrentType)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(c.CurrentType), Arg1: val, Arg2: dst, Comment: "return value"})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KRet})
}

func retRegFor(t *ast.DataType) ltacir.Operand {
	switch {
	case t.IsFloat():
		return ltacir.RetReg{Kind: ltacir.RetRegF32}
	case t.IsDouble():
		return ltacir.RetReg{Kind: ltacir.RetRegF64}
	case t.Width() == 8:
		return ltacir.RetReg{Kind: ltacir.RetRegI64}
	default:
		return ltacir.RetReg{Kind: ltacir.RetRegI32}
	}
}

// lowerEnd closes whatever block is currently open, routing to the if or
// while closer by consulting blockStack (spec.md §4.2: a bare "end"
// statement terminates either construct). When no block is open, end marks
// the function body's close: a void function gets an unconditional Ret so
// falling off the end of the function is well defined (SPEC_FULL.md §3
// supplemental behavior, grounded on the original's unconditional epilogue
// ret in the no-return-statement path).
func (c *Context) lowerEnd() {
	kind := c.popBlock()
	switch kind {
	case "if":
		c.lowerEndIf()
	case "while":
		c.lowerEndWhile()
	default:
		if c.CurrentType.IsVoid() {
			c.File.Emit(&ltacir.Instr{Kind: ltacir.KRet})
		}
	}
}

// lowerCallStmt lowers a call that appears as its own statement, discarding
// any return value.
func (c *Context) lowerCallStmt(s *ast.Stmt) {
	if len(s.Args) == 0 {
		return
	}
	c.lowerCall(s.Args[0])
}
