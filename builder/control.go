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

// lowerGuard emits the typed comparison for an if/while header and the
// branch that takes the given labelling convention. takenOnTrue controls
// which way the test points: if headers branch on the INVERTED condition
// (skip-the-body when false), while headers branch on the POSITIVE
// condition (enter-the-body when true) — spec.md §4.2 "branch inversion for
// if vs. positive test for while".
func (c *Context) lowerGuard(cond *ast.Expr, target string, takenOnTrue bool) {
	if cond.Kind != ast.ExprBinary || !isComparisonOp(cond.Op) {
		c.Diag.Report(diag.Error, cond.Line, "if/while condition must be a comparison")
		return
	}
	op := cond.Op
	if !takenOnTrue {
		op = invertCmpOp(op)
	}
	guard := *cond
	guard.Op = op
	_, isFloat := c.emitComparison(&guard)
	c.File.Emit(&ltacir.Instr{Kind: branchKindFor(op, isFloat), Symbol: target})
}

// lowerIf opens an if/elif chain (spec.md §4.2). label_stack holds the
// label that skips to the next elif/else/end; top_label_stack holds the
// shared join label every branch of the chain eventually falls into.
func (c *Context) lowerIf(s *ast.Stmt) {
	skip := c.newLabel()
	join := c.newLabel()
	c.lowerGuard(s.Args[0], skip, false)
	c.pushLabelStack(skip)
	c.pushTopLabelStack(join)
}

// lowerElif closes the previous branch with a jump to the shared join
// label, opens the skip label for the branch just finished, and lowers the
// elif's own guard into a fresh skip label.
func (c *Context) lowerElif(s *ast.Stmt) {
	join := peekStack(c.topLabelStack)
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: join})
	prevSkip := c.popLabelStack()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: prevSkip})

	skip := c.newLabel()
	c.lowerGuard(s.Args[0], skip, false)
	c.pushLabelStack(skip)
}

// lowerElse closes the previous branch exactly like lowerElif, but opens a
// plain fallthrough block instead of a new guarded one.
func (c *Context) lowerElse() {
	join := peekStack(c.topLabelStack)
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: join})
	prevSkip := c.popLabelStack()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: prevSkip})
}

// lowerEndIf closes the chain's last open branch and plants the shared
// join label every branch falls into.
func (c *Context) lowerEndIf() {
	prevSkip := c.popLabelStack()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: prevSkip})
	join := c.popTopLabelStack()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: join})
}

// lowerWhile opens a while loop (spec.md §4.2: "unconditional branch to
// compare label; body label; body instructions; compare label; comparison
// block; conditional branch (taken -> body label); end label"). The
// compare label is the continue target, the end label the break target;
// the condition itself is re-lowered at the compare label once the body
// has been emitted, so it is stashed until lowerEndWhile.
func (c *Context) lowerWhile(s *ast.Stmt) {
	body := c.newLabel()
	compare := c.newLabel()
	end := c.newLabel()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: compare})
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: body})
	c.pushLoopLabels(compare, end)
	c.pushWhile(body, s.Args[0])
}

// lowerEndWhile closes a while loop: the compare label, the re-tested
// condition with a positive branch back to the body, then the end label
// the positive branch falls past when the loop is done.
func (c *Context) lowerEndWhile() {
	compare := c.currentLoopLabel()
	end := c.currentEndLabel()
	body, cond := c.popWhile()
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: compare})
	c.lowerGuard(cond, body, true)
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KLabel, Symbol: end})
	c.popLoopLabels()
}

// lowerBreak/lowerContinue jump to the innermost enclosing loop's end/
// compare label (spec.md §4.2).
func (c *Context) lowerBreak(s *ast.Stmt) {
	target := c.currentEndLabel()
	if target == "" {
		c.Diag.Report(diag.Error, s.Line, "break outside a loop")
		return
	}
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: target})
}

func (c *Context) lowerContinue(s *ast.Stmt) {
	target := c.currentLoopLabel()
	if target == "" {
		c.Diag.Report(diag.Error, s.Line, "continue outside a loop")
		return
	}
	c.File.Emit(&ltacir.Instr{Kind: ltacir.KBr, Symbol: target})
}
