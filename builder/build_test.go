package builder

import (
	"testing"

	"ltac/ast"
	"ltac/ltacir"
	"ltac/utils"
)

// addFunc builds `func add(a int, b int) int { return a + b }`.
func addFunc() *ast.AstTree {
	fn := &ast.FuncDecl{
		Name:       "add",
		ReturnType: ast.TInt,
		Args: []*ast.Param{
			{Name: "a", Type: ast.TInt},
			{Name: "b", Type: ast.TInt},
		},
		Statements: []*ast.Stmt{
			{
				Kind: ast.StmtReturn,
				Args: []*ast.Expr{{
					Kind: ast.ExprBinary,
					Type: ast.TInt,
					Op:   ast.OpAdd,
					Lhs:  &ast.Expr{Kind: ast.ExprIdent, Type: ast.TInt, Name: "a"},
					Rhs:  &ast.Expr{Kind: ast.ExprIdent, Type: ast.TInt, Name: "b"},
				}},
			},
		},
	}
	return &ast.AstTree{Functions: []*ast.FuncDecl{fn}}
}

func TestBuildSimpleFunction(t *testing.T) {
	file, err := Build(addFunc(), "add")
	if err != nil {
		t.Fatalf("Build returned an error: %v", err)
	}

	if len(file.Instructions) == 0 {
		t.Fatal("Build produced no instructions")
	}
	if file.Instructions[0].Kind != ltacir.KFunc || file.Instructions[0].Symbol != "add" {
		t.Fatalf("first instruction = %+v, want a KFunc for add", file.Instructions[0])
	}

	last := file.Instructions[len(file.Instructions)-1]
	if last.Kind != ltacir.KRet {
		t.Errorf("last instruction kind = %v, want KRet", last.Kind)
	}

	var sawAdd bool
	for _, in := range file.Instructions {
		if in.Kind == ltacir.KAdd {
			sawAdd = true
		}
	}
	if !sawAdd {
		t.Error("lowering a+b must emit a KAdd instruction")
	}
}

func TestBuildFrameSizeIsAlign16(t *testing.T) {
	// Two int locals (8 bytes of watermark) force a non-zero, correctly
	// rounded frame size (spec.md §3.4).
	fn := &ast.FuncDecl{
		Name:       "locals",
		ReturnType: ast.TVoid,
		Statements: []*ast.Stmt{
			{Kind: ast.StmtVarDecl, Name: "x", Type: ast.TInt, Args: []*ast.Expr{{Kind: ast.ExprIntLit, Type: ast.TInt, IntVal: 1}}},
			{Kind: ast.StmtVarDecl, Name: "y", Type: ast.TInt, Args: []*ast.Expr{{Kind: ast.ExprIntLit, Type: ast.TInt, IntVal: 2}}},
			{Kind: ast.StmtReturn},
		},
	}
	tree := &ast.AstTree{Functions: []*ast.FuncDecl{fn}}

	file, err := Build(tree, "locals")
	if err != nil {
		t.Fatalf("Build returned an error: %v", err)
	}

	funcInstr := file.Instructions[0]
	if funcInstr.Kind != ltacir.KFunc {
		t.Fatalf("first instruction = %+v, want KFunc", funcInstr)
	}
	size := funcInstr.FuncFrameSize()
	if size == 0 {
		t.Fatal("two int locals must produce a non-zero frame size")
	}
	if size != utils.Align16(size-1) && size%16 != 0 {
		t.Errorf("frame size %d is not 16-aligned", size)
	}
}

func TestBuildVoidFunctionFallsOffToRet(t *testing.T) {
	fn := &ast.FuncDecl{Name: "noop", ReturnType: ast.TVoid}
	tree := &ast.AstTree{Functions: []*ast.FuncDecl{fn}}

	file, err := Build(tree, "noop")
	if err != nil {
		t.Fatalf("Build returned an error: %v", err)
	}
	if len(file.Instructions) != 2 || file.Instructions[0].Kind != ltacir.KFunc || file.Instructions[1].Kind != ltacir.KRet {
		t.Fatalf("a statement-less void function must lower to KFunc followed by KRet, got %+v", file.Instructions)
	}
}

func TestBuildLabelsAreUnique(t *testing.T) {
	// Two independent if-statements must draw distinct labels even though
	// each lowers the same shape (spec.md §8, testable property 2).
	cond := func() *ast.Expr {
		return &ast.Expr{Kind: ast.ExprBinary, Type: ast.TInt, Op: ast.OpEq,
			Lhs: &ast.Expr{Kind: ast.ExprIntLit, Type: ast.TInt, IntVal: 1},
			Rhs: &ast.Expr{Kind: ast.ExprIntLit, Type: ast.TInt, IntVal: 1}}
	}
	fn := &ast.FuncDecl{
		Name:       "branchy",
		ReturnType: ast.TVoid,
		Statements: []*ast.Stmt{
			{Kind: ast.StmtIf, Args: []*ast.Expr{cond()}},
			{Kind: ast.StmtEnd},
			{Kind: ast.StmtIf, Args: []*ast.Expr{cond()}},
			{Kind: ast.StmtEnd},
		},
	}
	tree := &ast.AstTree{Functions: []*ast.FuncDecl{fn}}

	file, err := Build(tree, "branchy")
	if err != nil {
		t.Fatalf("Build returned an error: %v", err)
	}

	seen := map[string]int{}
	for _, in := range file.Instructions {
		if in.Kind == ltacir.KLabel {
			seen[in.Symbol]++
		}
	}
	for name, count := range seen {
		if count != 1 {
			t.Errorf("label %s emitted %d times, want exactly once", name, count)
		}
	}
	if len(seen) == 0 {
		t.Fatal("two if-statements must emit at least one label each")
	}
}
