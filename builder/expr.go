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

// regFor returns operation register idx in the bank matching t's class
// (spec.md GLOSSARY "Operation register"): the float bank for float/double,
// the integer bank (sized to t's width) for everything else.
func regFor(t *ast.DataType, idx int) ltacir.Reg {
	switch {
	case t.IsFloat():
		return ltacir.FltReg(idx)
	case t.IsDouble():
		return ltacir.FltReg64(idx)
	default:
		w := t.Width()
		if w == 0 {
			w = 4
		}
		switch w {
		case 1:
			return ltacir.Reg8(idx)
		case 2:
			return ltacir.Reg16(idx)
		case 8:
			return ltacir.Reg64(idx)
		default:
			return ltacir.Reg32(idx)
		}
	}
}

// arithKindFor maps a binary operator to its generic arithmetic/bitwise
// Kind; the suffix/width is deduced by the emitter from the operand's
// width, matching the teacher's LIROp design (compile/codegen/lir.go).
func arithKindFor(op ast.BinOp) (ltacir.Kind, bool) {
	switch op {
	case ast.OpAdd:
		return ltacir.KAdd, true
	case ast.OpSub:
		return ltacir.KSub, true
	case ast.OpMul:
		return ltacir.KMul, true
	case ast.OpDiv:
		return ltacir.KDiv, true
	case ast.OpMod:
		return ltacir.KMod, true
	case ast.OpAnd:
		return ltacir.KAnd, true
	case ast.OpOr:
		return ltacir.KOr, true
	case ast.OpXor:
		return ltacir.KXor, true
	case ast.OpLShift:
		return ltacir.KLShift, true
	case ast.OpRShift:
		return ltacir.KRShift, true
	default:
		return 0, false
	}
}

// lowerExpr lowers an expression and returns the Operand holding its value
// (spec.md §4.1 "Expression lowering"): an immediate, pool reference or
// stack slot for leaf expressions, the ABI return register for calls, and
// register 0 of the type's bank for computed results.
// The ordering rule is strict: operands are materialized first, operators
// second, following the AST's own parenthesization.
func (c *Context) lowerExpr(e *ast.Expr) ltacir.Operand {
	switch e.Kind {
	case ast.ExprIntLit:
		return c.lowerIntLiteral(e)
	case ast.ExprFloatLit:
		return c.lowerFloatLiteral(e, false)
	case ast.ExprStrLit:
		return c.lowerStrLiteral(e)
	case ast.ExprCharLit:
		return ltacir.NewByte(int8(e.IntVal))
	case ast.ExprBoolLit:
		if e.IntVal != 0 {
			return ltacir.NewUByte(1)
		}
		return ltacir.NewUByte(0)
	case ast.ExprIdent:
		return c.lowerIdent(e)
	case ast.ExprEnumVal:
		return c.lowerEnumVal(e)
	case ast.ExprUnaryMinus:
		return c.lowerUnaryMinus(e)
	case ast.ExprUnaryNot:
		return c.lowerUnaryNot(e)
	case ast.ExprAddrOf:
		return c.lowerAddrOf(e)
	case ast.ExprSizeOf:
		return c.lowerSizeOf(e)
	case ast.ExprIndex:
		return c.lowerArrayLoad(e)
	case ast.ExprBinary:
		return c.lowerBinary(e)
	case ast.ExprCall:
		return c.lowerCall(e)
	default:
		c.Diag.Report(diag.Error, e.Line, "unsupported expression")
		return ltacir.Empty{}
	}
}

func (c *Context) lowerIntLiteral(e *ast.Expr) ltacir.Operand {
	t := e.Type
	if t == nil {
		t = ast.TInt
	}
	switch t.Kind {
	case ast.Byte:
		return ltacir.NewByte(int8(e.IntVal))
	case ast.UByte:
		return ltacir.NewUByte(uint8(e.IntVal))
	case ast.Short:
		return ltacir.NewI16(int16(e.IntVal))
	case ast.UShort:
		return ltacir.NewU16(uint16(e.IntVal))
	case ast.UInt:
		return ltacir.NewU32(uint32(e.IntVal))
	case ast.Int64:
		return ltacir.NewI64(e.IntVal)
	case ast.UInt64:
		return ltacir.NewU64(uint64(e.IntVal))
	default:
		return ltacir.NewI32(int32(e.IntVal))
	}
}

// lowerFloatLiteral pools a float/double literal as a data-section entry
// and returns a reference to it (spec.md §4.1 "Constants and literals").
// negate flips the bit pattern's sign before pooling, recovering the
// original's unary-minus-placeholder behavior (SPEC_FULL.md §3).
func (c *Context) lowerFloatLiteral(e *ast.Expr, negate bool) ltacir.Operand {
	v := e.FloatVal
	if negate {
		v = -v
	}
	name := utils.FltSymbol(c.fltPoolCounter)
	c.fltPoolCounter++
	if e.Type != nil && e.Type.IsFloat() {
		c.File.AddData(ltacir.DataEntry{Kind: ltacir.FloatLiteral, Symbol: name, Payload: ltacir.Float32Bits(float32(v))})
		return ltacir.FloatRef{Width: 4, Symbol: name}
	}
	c.File.AddData(ltacir.DataEntry{Kind: ltacir.DoubleLiteral, Symbol: name, Payload: ltacir.Float64Bits(v)})
	return ltacir.FloatRef{Width: 8, Symbol: name}
}

// lowerStrLiteral pools a string literal verbatim (spec.md §4.1, testable
// scenario B).
func (c *Context) lowerStrLiteral(e *ast.Expr) ltacir.Operand {
	name := utils.StrSymbol(c.strPoolCounter)
	c.strPoolCounter++
	c.File.AddData(ltacir.DataEntry{Kind: ltacir.StringLiteral, Symbol: name, Payload: e.StrVal})
	return ltacir.PtrLcl{Symbol: name}
}

func (c *Context) lowerIdent(e *ast.Expr) ltacir.Operand {
	if info, ok := c.Vars[e.Name]; ok {
		if info.Type.IsPtr() && info.Type.Sub != nil {
			return ltacir.Ptr{Offset: info.Offset}
		}
		return ltacir.Mem{Offset: info.Offset}
	}
	if v, ok := c.GlobalConsts[e.Name]; ok {
		return v
	}
	c.Diag.Report(diag.Error, e.Line, "unknown identifier %q", e.Name)
	return ltacir.Empty{}
}

func (c *Context) lowerEnumVal(e *ast.Expr) ltacir.Operand {
	enumName := ""
	if e.Type != nil {
		enumName = e.Type.Name
	}
	if decl, ok := c.Enums[enumName]; ok {
		if v, ok := decl.Values[e.Name]; ok {
			return ltacir.NewI32(int32(v))
		}
	}
	c.Diag.Report(diag.Error, e.Line, "unknown enum member %q", e.Name)
	return ltacir.Empty{}
}

func (c *Context) lowerUnaryMinus(e *ast.Expr) ltacir.Operand {
	if e.Operand.Kind == ast.ExprFloatLit {
		return c.lowerFloatLiteral(e.Operand, true)
	}
	if e.Operand.Kind == ast.ExprIntLit {
		neg := *e.Operand
		neg.IntVal = -neg.IntVal
		return c.lowerIntLiteral(&neg)
	}
	t := exprType(e.Operand)
	val := c.lowerExpr(e.Operand)
	dst := regFor(t, 0)
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.NewI32(0), Arg2: dst, Comment: "neg: zero reg"})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KSub, Arg1: val, Arg2: dst, Comment: "neg"})
	return dst
}

func (c *Context) lowerUnaryNot(e *ast.Expr) ltacir.Operand {
	t := exprType(e.Operand)
	val := c.lowerExpr(e.Operand)
	dst := regFor(t, 0)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(t), Arg1: val, Arg2: dst})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KNot, Arg1: dst})
	return dst
}

// lowerAddrOf takes the address of a variable (spec.md §4.1 "address-of").
func (c *Context) lowerAddrOf(e *ast.Expr) ltacir.Operand {
	if e.Operand.Kind != ast.ExprIdent {
		c.Diag.Report(diag.Error, e.Line, "address-of requires an identifier operand")
		return ltacir.Empty{}
	}
	info, ok := c.Vars[e.Operand.Name]
	if !ok {
		c.Diag.Report(diag.Error, e.Line, "unknown identifier %q", e.Operand.Name)
		return ltacir.Empty{}
	}
	return ltacir.Ptr{Offset: info.Offset}
}

// lowerSizeOf resolves sizeof(T) / sizeof(expr) to a compile-time constant
// (spec.md §4.1 "sizeof").
func (c *Context) lowerSizeOf(e *ast.Expr) ltacir.Operand {
	t := e.Type
	if t == nil {
		t = exprType(e.Operand)
	}
	if t.IsPtr() && t.Sub != nil {
		return ltacir.NewI32(int32(t.Sub.Width()))
	}
	return ltacir.NewI32(int32(t.Width()))
}

// exprType recovers the static type a front-end-resolved expression
// carries. The front-end's type checker always annotates Expr.Type; this
// helper exists so internal helpers (unary minus/not) don't repeat the nil
// guard everywhere.
func exprType(e *ast.Expr) *ast.DataType {
	if e.Type != nil {
		return e.Type
	}
	return ast.TInt
}

// lowerBinary lowers a binary infix expression left-to-right: the running
// result stays in reg 0 of the type bank, the next operand is materialized
// into reg 1, and one typed arithmetic instruction is emitted per operator
// (spec.md §4.1 "Expression lowering").
func (c *Context) lowerBinary(e *ast.Expr) ltacir.Operand {
	if isComparisonOp(e.Op) {
		return c.lowerComparisonValue(e)
	}
	t := exprType(e)
	lhs := c.lowerExpr(e.Lhs)
	reg0 := regFor(t, 0)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(t), Arg1: lhs, Arg2: reg0, Comment: "binop lhs"})

	rhs := c.lowerExpr(e.Rhs)
	reg1 := regFor(t, 1)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(t), Arg1: rhs, Arg2: reg1, Comment: "binop rhs"})

	kind, ok := arithKindFor(e.Op)
	if !ok {
		c.Diag.Report(diag.Error, e.Line, "unsupported binary operator")
		return ltacir.Empty{}
	}
	c.File.Emit(&ltacir.Instr{Kind: kind, Arg1: reg1, Arg2: reg0})
	return reg0
}

func isComparisonOp(op ast.BinOp) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

// cmpKindFor selects the typed comparison family by the priority spec.md
// §4.2 lays out: string first, then float32, then float64, then
// signed/unsigned integer by width. Shared with control.go's if/while
// lowering so both a standalone boolean expression and a branch condition
// pick the same instruction family for the same operand type.
func cmpKindFor(t *ast.DataType) ltacir.Kind {
	switch {
	case t.IsStr():
		return ltacir.KStrCmp
	case t.IsFloat():
		return ltacir.KF32Cmp
	case t.IsDouble():
		return ltacir.KF64Cmp
	case t.IsUnsigned():
		switch t.Width() {
		case 1:
			return ltacir.KU8Cmp
		case 2:
			return ltacir.KU16Cmp
		case 8:
			return ltacir.KU64Cmp
		default:
			return ltacir.KU32Cmp
		}
	default:
		switch t.Width() {
		case 1:
			return ltacir.KI8Cmp
		case 2:
			return ltacir.KI16Cmp
		case 8:
			return ltacir.KI64Cmp
		default:
			return ltacir.KI32Cmp
		}
	}
}

// branchKindFor maps a comparison operator to the branch that is TAKEN when
// the comparison holds (spec.md §4.2): callers needing the inverted "skip"
// branch for an if-guard negate the operator before calling this, which
// lowerGuard (control.go) does.
func branchKindFor(op ast.BinOp, float bool) ltacir.Kind {
	if float {
		switch op {
		case ast.OpEq:
			return ltacir.KBe
		case ast.OpNe:
			return ltacir.KBne
		case ast.OpLt:
			return ltacir.KBfl
		case ast.OpLe:
			return ltacir.KBfle
		case ast.OpGt:
			return ltacir.KBfg
		default:
			return ltacir.KBfge
		}
	}
	switch op {
	case ast.OpEq:
		return ltacir.KBe
	case ast.OpNe:
		return ltacir.KBne
	case ast.OpLt:
		return ltacir.KBl
	case ast.OpLe:
		return ltacir.KBle
	case ast.OpGt:
		return ltacir.KBg
	default:
		return ltacir.KBge
	}
}

// invertCmpOp returns the logical negation of a comparison operator, used to
// turn an if-guard's condition into the "skip the body" branch (spec.md
// §4.2 "branch inversion for if").
func invertCmpOp(op ast.BinOp) ast.BinOp {
	switch op {
	case ast.OpEq:
		return ast.OpNe
	case ast.OpNe:
		return ast.OpEq
	case ast.OpLt:
		return ast.OpGe
	case ast.OpLe:
		return ast.OpGt
	case ast.OpGt:
		return ast.OpLe
	default:
		return ast.OpLt
	}
}

// emitComparison lowers both operands of a comparison into reg0/reg1 of the
// operand type's bank and emits the typed Cmp instruction, returning the
// operator so the caller picks the branch it needs (spec.md §4.2).
func (c *Context) emitComparison(e *ast.Expr) (op ast.BinOp, isFloat bool) {
	t := exprType(e.Lhs)
	lhs := c.lowerExpr(e.Lhs)
	reg0 := regFor(t, 0)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(t), Arg1: lhs, Arg2: reg0, Comment: "cmp lhs"})

	rhs := c.lowerExpr(e.Rhs)
	reg1 := regFor(t, 1)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(t), Arg1: rhs, Arg2: reg1, Comment: "cmp rhs"})

	c.File.Emit(&ltacir.Instr{Kind: cmpKindFor(t), Arg1: reg0, Arg2: reg1})
	return e.Op, t.IsFloat() || t.IsDouble()
}

// lowerComparisonValue materializes a comparison as a 0/1 integer value,
// for the (uncommon) case of a comparison used outside an if/while guard —
// e.g. `result := a < b`. Guards themselves go through emitComparison
// directly (control.go) to avoid the extra branch-around-a-constant this
// needs.
func (c *Context) lowerComparisonValue(e *ast.Expr) ltacir.Operand {
	op, isFloat := c.emitComparison(e)
	dst := ltacir.Reg32(0)
	trueLabel := c.newLabel()
	doneLabel := c.newLabel()
	c.File.Emit(&ltacir.Instr{Kind: branchKindFor(op, isFloat), Symbol: trueLabel})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.NewI32(0), Arg2: dst})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: doneLabel})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: trueLabel})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.NewI32(1), Arg2: dst})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: doneLabel})
	return dst
}

// lowerArrayLoad reads a[i] (spec.md §4.1 "Array indexing").
func (c *Context) lowerArrayLoad(e *ast.Expr) ltacir.Operand {
	info, ok := c.Vars[e.Array.Name]
	if !ok {
		c.Diag.Report(diag.Error, e.Line, "unknown identifier %q", e.Array.Name)
		return ltacir.Empty{}
	}
	elem := info.SubType
	if elem == nil {
		elem = ast.TInt
	}
	scale := elem.Width()
	if e.Index.Kind == ast.ExprIntLit {
		return ltacir.MemOffsetImm{BaseOffset: info.Offset, Imm: int(e.Index.IntVal) * scale}
	}
	idxInfo, ok := c.Vars[e.Index.Name]
	if !ok {
		c.Diag.Report(diag.Error, e.Line, "unknown identifier in array index")
		return ltacir.Empty{}
	}
	c.loadIndexReg(idxInfo)
	return ltacir.MemOffsetMem{BaseOffset: info.Offset, IdxOffset: idxInfo.Offset, Scale: scale}
}

// loadIndexReg loads a runtime array index into the reserved index
// register (operation register 2) ahead of a MemOffsetMem use: the
// emitters render MemOffsetMem assuming that register already holds the
// index (spec.md §4.5's "operation regs (0..4)"; see DESIGN.md's
// "MemOffsetMem runtime index" note).
func (c *Context) loadIndexReg(idx *varInfo) {
	t := idx.Type
	if t == nil {
		t = ast.TInt
	}
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KMov, Arg1: ltacir.Mem{Offset: idx.Offset}, Arg2: regFor(t, 2), Comment: "array index"})
}

// lowerArrayStore writes a[i] := rhs, symmetric to lowerArrayLoad on the
// destination operand (spec.md §4.1).
func (c *Context) lowerArrayStore(arrayName string, index *ast.Expr, rhs *ast.Expr) {
	info, ok := c.Vars[arrayName]
	if !ok {
		c.Diag.Report(diag.Error, rhs.Line, "unknown identifier %q", arrayName)
		return
	}
	elem := info.SubType
	if elem == nil {
		elem = ast.TInt
	}
	scale := elem.Width()

	var dst ltacir.Operand
	if index.Kind == ast.ExprIntLit {
		dst = ltacir.MemOffsetImm{BaseOffset: info.Offset, Imm: int(index.IntVal) * scale}
	} else {
		idxInfo, ok := c.Vars[index.Name]
		if !ok {
			c.Diag.Report(diag.Error, rhs.Line, "unknown identifier in array index")
			return
		}
		c.loadIndexReg(idxInfo)
		dst = ltacir.MemOffsetMem{BaseOffset: info.Offset, IdxOffset: idxInfo.Offset, Scale: scale}
	}
	val := c.lowerExpr(rhs)
	c.File.Emit(&ltacir.Instr{Kind: movKindFor(elem), Arg1: val, Arg2: dst, Comment: "array store " + arrayName})
}

// lowerCall lowers a call sub-expression (spec.md §4.3 "Call ABI lowering",
// reused here for calls that appear inside a larger expression rather than
// as their own statement). Each call gets its own pair of argument-position
// cursors starting at 1, independent of the enclosing function's own
// parameter cursors.
func (c *Context) lowerCall(e *ast.Expr) ltacir.Operand {
	switch e.Name {
	case "exit":
		c.File.Emit(&ltacir.Instr{Kind: ltacir.KExit, Arg1: c.lowerExpr(e.CallArgs[0])})
		return ltacir.Empty{}
	case "malloc":
		c.File.Emit(&ltacir.Instr{Kind: ltacir.KMalloc, Arg1: c.lowerExpr(e.CallArgs[0])})
		return ltacir.RetReg{Kind: ltacir.RetRegI64}
	case "free":
		c.File.Emit(&ltacir.Instr{Kind: ltacir.KFree, Arg1: c.lowerExpr(e.CallArgs[0])})
		return ltacir.Empty{}
	}

	intPos, fltPos := 1, 1
	for _, arg := range e.CallArgs {
		t := exprType(arg)
		val := c.lowerExpr(arg)
		if t.IsFloat() || t.IsDouble() {
			c.File.Emit(&ltacir.Instr{Kind: ltacir.KPushArg, Arg1: val, Arg1Val: fltPos, Comment: "call arg"})
			fltPos++
			continue
		}
		c.File.Emit(&ltacir.Instr{Kind: ltacir.KPushArg, Arg1: val, Arg1Val: intPos, Comment: "call arg"})
		intPos++
	}
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KCall, Symbol: e.Name})

	retType, ok := c.Functions[e.Name]
	if !ok || retType.IsVoid() {
		return ltacir.Empty{}
	}
	switch {
	case retType.IsFloat():
		return ltacir.RetReg{Kind: ltacir.RetRegF32}
	case retType.IsDouble():
		return ltacir.RetReg{Kind: ltacir.RetRegF64}
	case retType.Width() == 8:
		return ltacir.RetReg{Kind: ltacir.RetRegI64}
	default:
		return ltacir.RetReg{Kind: ltacir.RetRegI32}
	}
}
