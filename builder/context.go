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

// Package builder lowers a type-checked ast.AstTree into ltacir.File (spec.md
// §4.1-§4.3). Following spec.md §9 "Global builder state should be an
// explicit context passed to each lowering routine rather than module-level
// globals", every lowering function hangs off *Context; nothing here is a
// package-level variable.
package builder

import (
	"ltac/ast"
	"ltac/diag"
	"ltac/ltacir"
	"ltac/utils"
)

// varInfo is one entry of the current function's variable symbol table
// (spec.md §3.3).
type varInfo struct {
	Offset   int
	Type     *ast.DataType
	SubType  *ast.DataType // element type when Type is an array/pointer
	IsParam  bool
}

// Context is the builder's explicit, non-global state (spec.md §3.3, §9).
// It is reset per function by resetFunction; the symbol tables it carries
// never leak across function boundaries.
type Context struct {
	File *ltacir.File
	Diag *diag.Manager

	// Whole-program symbol tables, populated by the two-pass Build.
	Functions     map[string]*ast.DataType // name -> return type
	GlobalConsts  map[string]ltacir.Operand

	// Per-function state, cleared by resetFunction.
	CurrentFunc string
	CurrentType *ast.DataType
	Vars        map[string]*varInfo
	Enums       map[string]*ast.EnumDecl

	Watermark int // running total of bytes allocated below fp (spec.md §3.2)

	strPoolCounter int
	fltPoolCounter int
	labelCounter   int

	// Control-flow stacks (spec.md §4.2). Labels are carried as bare names:
	// branch instructions reference a label through Instr.Symbol, not
	// through an Operand — spec.md §3.1's closed operand set has no Label
	// variant, only the KLabel instruction family that defines one.
	labelStack    []string // per-branch skip target (if/elif/else)
	topLabelStack []string // per-if join target
	loopLabels    []string // continue target (compare label)
	endLabels     []string // break target (end label)
	whileBodyLabels []string // body label, re-tested from the compare label at loop close
	whileConds      []*ast.Expr // condition re-lowered at the compare label
	blockStack    []string // "if" or "while", routes a bare StmtEnd (spec.md §4.2)

	seenLabels *utils.Set[string] // testable property 2: label uniqueness

	// ABI position cursors for the function currently being lowered.
	intArgPos int
	fltArgPos int

	Trace bool
}

func NewContext(fileName string) *Context {
	return &Context{
		File:         ltacir.NewFile(fileName),
		Diag:         diag.NewManager(),
		Functions:    make(map[string]*ast.DataType),
		GlobalConsts: make(map[string]ltacir.Operand),
		seenLabels:   utils.NewSet[string](),
	}
}

// resetFunction clears per-function state and seeds the enum table from the
// function's own local declarations (spec.md §4.1 step 1, §9 "the enum
// table must be cleared at function entry and repopulated").
func (c *Context) resetFunction(fn *ast.FuncDecl) {
	c.CurrentFunc = fn.Name
	c.CurrentType = fn.ReturnType
	c.Vars = make(map[string]*varInfo)
	c.Enums = make(map[string]*ast.EnumDecl)
	for _, e := range fn.Enums {
		c.Enums[e.Name] = e
	}
	c.Watermark = 0
	c.labelStack = nil
	c.topLabelStack = nil
	c.loopLabels = nil
	c.endLabels = nil
	c.whileBodyLabels = nil
	c.whileConds = nil
	c.blockStack = nil
	c.intArgPos = 1
	c.fltArgPos = 1
}

// newLabel draws the next synthetic label (spec.md §4.2 "Labels … drawn
// from the float counter (a shared name counter is acceptable)").
func (c *Context) newLabel() string {
	name := utils.LabelName(c.labelCounter)
	c.labelCounter++
	utils.Assert(c.seenLabels.Add(name), "label %s drawn twice", name)
	return name
}

// allocSlot bumps the watermark by size bytes and returns the offset of the
// newly allocated slot (spec.md §3.2 "Stack watermark").
func (c *Context) allocSlot(size int) int {
	c.Watermark += size
	return c.Watermark
}

func (c *Context) pushLabelStack(l string)   { c.labelStack = append(c.labelStack, l) }
func (c *Context) popLabelStack() string     { return popStack(&c.labelStack) }
func (c *Context) pushTopLabelStack(l string) { c.topLabelStack = append(c.topLabelStack, l) }
func (c *Context) popTopLabelStack() string  { return popStack(&c.topLabelStack) }
func (c *Context) pushLoopLabels(cont, brk string) {
	c.loopLabels = append(c.loopLabels, cont)
	c.endLabels = append(c.endLabels, brk)
}
func (c *Context) popLoopLabels() {
	popStack(&c.loopLabels)
	popStack(&c.endLabels)
}
func (c *Context) currentLoopLabel() string { return peekStack(c.loopLabels) }
func (c *Context) currentEndLabel() string  { return peekStack(c.endLabels) }

func (c *Context) pushBlock(kind string) { c.blockStack = append(c.blockStack, kind) }
func (c *Context) popBlock() string      { return popStack(&c.blockStack) }

func (c *Context) pushWhile(body string, cond *ast.Expr) {
	c.whileBodyLabels = append(c.whileBodyLabels, body)
	c.whileConds = append(c.whileConds, cond)
}

func (c *Context) popWhile() (string, *ast.Expr) {
	body := popStack(&c.whileBodyLabels)
	n := len(c.whileConds)
	if n == 0 {
		return body, nil
	}
	cond := c.whileConds[n-1]
	c.whileConds = c.whileConds[:n-1]
	return body, cond
}

func popStack(s *[]string) string {
	n := len(*s)
	if n == 0 {
		return ""
	}
	top := (*s)[n-1]
	*s = (*s)[:n-1]
	return top
}

func peekStack(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
