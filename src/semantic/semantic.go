// Package semantic annotates a parsed chunk for the code generator. Every
// name is tagged with where it is bound and whether it is read or written,
// every break is linked to the loop it exits, and every expression list
// records whether its tail expands to multiple values.
package semantic

import (
	"errors"

	"github.com/airtrack/luna-sub000/src/ast"
	"github.com/airtrack/luna-sub000/src/lerrors"
)

var (
	errBreakOutsideLoop = errors.New("no loop to break")
	errVarArgOutsideFn  = errors.New("cannot use '...' outside a vararg function")
)

type (
	funcScope struct {
		parent *funcScope
		blocks []map[string]struct{}
		loops  []ast.Stmt
		vararg bool
	}
	analyzer struct {
		module string
		fn     *funcScope
	}
)

// Analyze walks the chunk once and fills in the annotation fields of its nodes.
func Analyze(chunk *ast.Chunk) error {
	a := &analyzer{module: chunk.Module}
	a.enterFunction(true)
	defer a.leaveFunction()
	return a.block(chunk.Block)
}

func (a *analyzer) err(node ast.Node, err error) error {
	return &lerrors.Error{
		Kind:   lerrors.SemanticErr,
		Module: a.module,
		Line:   node.Line(),
		Err:    err,
	}
}

func (a *analyzer) enterFunction(vararg bool) {
	a.fn = &funcScope{parent: a.fn, vararg: vararg}
	a.enterBlock()
}

func (a *analyzer) leaveFunction() { a.fn = a.fn.parent }

func (a *analyzer) enterBlock() {
	a.fn.blocks = append(a.fn.blocks, map[string]struct{}{})
}

func (a *analyzer) leaveBlock() {
	a.fn.blocks = a.fn.blocks[:len(a.fn.blocks)-1]
}

func (a *analyzer) declare(names ...string) {
	scope := a.fn.blocks[len(a.fn.blocks)-1]
	for _, name := range names {
		scope[name] = struct{}{}
	}
}

func (fs *funcScope) has(name string) bool {
	for i := len(fs.blocks) - 1; i >= 0; i-- {
		if _, ok := fs.blocks[i][name]; ok {
			return true
		}
	}
	return false
}

func (a *analyzer) resolve(name string) ast.Scoping {
	if a.fn.has(name) {
		return ast.ScopingLocal
	}
	for fs := a.fn.parent; fs != nil; fs = fs.parent {
		if fs.has(name) {
			return ast.ScopingUpvalue
		}
	}
	return ast.ScopingGlobal
}

func (a *analyzer) loop(loop ast.Stmt, body func() error) error {
	a.fn.loops = append(a.fn.loops, loop)
	defer func() { a.fn.loops = a.fn.loops[:len(a.fn.loops)-1] }()
	return body()
}

func (a *analyzer) block(block *ast.Block) error {
	a.enterBlock()
	defer a.leaveBlock()
	return a.stmts(block.Stmts)
}

func (a *analyzer) stmts(stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if err := a.stmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) stmt(stmt ast.Stmt) error {
	switch stmt := stmt.(type) {
	case *ast.Block:
		return a.block(stmt)
	case *ast.Do:
		return a.block(stmt.Body)
	case *ast.While:
		if err := a.expr(stmt.Cond); err != nil {
			return err
		}
		return a.loop(stmt, func() error { return a.block(stmt.Body) })
	case *ast.Repeat:
		// the condition can see the locals of the body
		return a.loop(stmt, func() error {
			a.enterBlock()
			defer a.leaveBlock()
			if err := a.stmts(stmt.Body.Stmts); err != nil {
				return err
			}
			return a.expr(stmt.Cond)
		})
	case *ast.If:
		if err := a.expr(stmt.Cond); err != nil {
			return err
		} else if err := a.block(stmt.Then); err != nil {
			return err
		} else if stmt.Else != nil {
			return a.stmt(stmt.Else)
		}
		return nil
	case *ast.NumericFor:
		exprs := []ast.Expr{stmt.Init, stmt.Limit}
		if stmt.Step != nil {
			exprs = append(exprs, stmt.Step)
		}
		if err := a.exprs(exprs); err != nil {
			return err
		}
		return a.loop(stmt, func() error {
			a.enterBlock()
			defer a.leaveBlock()
			a.declare(stmt.Var)
			return a.block(stmt.Body)
		})
	case *ast.GenericFor:
		if err := a.exprs(stmt.Exprs); err != nil {
			return err
		}
		stmt.Multi = multi(stmt.Exprs)
		stmt.ValueCount = 3
		return a.loop(stmt, func() error {
			a.enterBlock()
			defer a.leaveBlock()
			a.declare(stmt.Names...)
			return a.block(stmt.Body)
		})
	case *ast.FunctionStmt:
		if err := a.target(stmt.Target); err != nil {
			return err
		}
		return a.function(stmt.Func)
	case *ast.LocalFunction:
		a.declare(stmt.Name)
		return a.function(stmt.Func)
	case *ast.Local:
		if err := a.exprs(stmt.Exprs); err != nil {
			return err
		}
		stmt.Multi = multi(stmt.Exprs)
		stmt.ValueCount = len(stmt.Names)
		a.declare(stmt.Names...)
		return nil
	case *ast.Assign:
		if err := a.exprs(stmt.Exprs); err != nil {
			return err
		}
		for _, target := range stmt.Targets {
			if err := a.target(target); err != nil {
				return err
			}
		}
		stmt.Multi = multi(stmt.Exprs)
		stmt.ValueCount = len(stmt.Targets)
		return nil
	case *ast.CallStmt:
		return a.expr(stmt.Call)
	case *ast.Return:
		stmt.Multi = multi(stmt.Exprs)
		return a.exprs(stmt.Exprs)
	case *ast.Break:
		if len(a.fn.loops) == 0 {
			return a.err(stmt, errBreakOutsideLoop)
		}
		stmt.Loop = a.fn.loops[len(a.fn.loops)-1]
		return nil
	}
	return nil
}

func (a *analyzer) target(expr ast.Expr) error {
	switch expr := expr.(type) {
	case *ast.Name:
		expr.Scoping = a.resolve(expr.Name)
		expr.Semantic = ast.SemanticWrite
	case *ast.Index:
		expr.Semantic = ast.SemanticWrite
		if err := a.expr(expr.Obj); err != nil {
			return err
		}
		return a.expr(expr.Key)
	}
	return nil
}

func (a *analyzer) function(fn *ast.Function) error {
	a.enterFunction(fn.HasVarArg)
	defer a.leaveFunction()
	a.declare(fn.Params...)
	return a.block(fn.Body)
}

func (a *analyzer) exprs(exprs []ast.Expr) error {
	for _, expr := range exprs {
		if err := a.expr(expr); err != nil {
			return err
		}
	}
	return nil
}

func (a *analyzer) expr(expr ast.Expr) error {
	switch expr := expr.(type) {
	case *ast.Name:
		expr.Scoping = a.resolve(expr.Name)
		expr.Semantic = ast.SemanticRead
	case *ast.Index:
		expr.Semantic = ast.SemanticRead
		if err := a.expr(expr.Obj); err != nil {
			return err
		}
		return a.expr(expr.Key)
	case *ast.VarArg:
		if !a.fn.vararg {
			return a.err(expr, errVarArgOutsideFn)
		}
	case *ast.Function:
		return a.function(expr)
	case *ast.Table:
		for _, field := range expr.Fields {
			if err := a.field(field); err != nil {
				return err
			}
		}
		if n := len(expr.Fields); n > 0 {
			if last, ok := expr.Fields[n-1].(*ast.ArrayField); ok {
				expr.Multi = ast.IsMulti(last.Value)
			}
		}
	case *ast.BinOp:
		if err := a.expr(expr.Left); err != nil {
			return err
		}
		return a.expr(expr.Right)
	case *ast.UnOp:
		return a.expr(expr.Operand)
	case *ast.Paren:
		return a.expr(expr.Inner)
	case *ast.Call:
		if err := a.expr(expr.Func); err != nil {
			return err
		}
		expr.Multi = multi(expr.Args)
		return a.exprs(expr.Args)
	case *ast.MethodCall:
		if err := a.expr(expr.Receiver); err != nil {
			return err
		}
		expr.Multi = multi(expr.Args)
		return a.exprs(expr.Args)
	}
	return nil
}

func (a *analyzer) field(field ast.Field) error {
	switch field := field.(type) {
	case *ast.ArrayField:
		return a.expr(field.Value)
	case *ast.NamedField:
		return a.expr(field.Value)
	case *ast.IndexField:
		if err := a.expr(field.Key); err != nil {
			return err
		}
		return a.expr(field.Value)
	}
	return nil
}

func multi(exprs []ast.Expr) bool {
	return len(exprs) > 0 && ast.IsMulti(exprs[len(exprs)-1])
}
