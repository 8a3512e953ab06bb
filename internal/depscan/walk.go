package depscan

import (
	"github.com/yuin/gopher-lua/ast"
)

// collector walks a Lua syntax tree and records the string literal arguments
// of inclusion-style calls.
type collector struct {
	funcs map[string]struct{}
	refs  []string
}

func (c *collector) stmts(stmts []ast.Stmt) {
	for _, st := range stmts {
		c.stmt(st)
	}
}

func (c *collector) stmt(st ast.Stmt) {
	switch s := st.(type) {
	case *ast.AssignStmt:
		c.exprs(s.Lhs)
		c.exprs(s.Rhs)
	case *ast.LocalAssignStmt:
		c.exprs(s.Exprs)
	case *ast.FuncCallStmt:
		c.expr(s.Expr)
	case *ast.DoBlockStmt:
		c.stmts(s.Stmts)
	case *ast.WhileStmt:
		c.expr(s.Condition)
		c.stmts(s.Stmts)
	case *ast.RepeatStmt:
		c.stmts(s.Stmts)
		c.expr(s.Condition)
	case *ast.IfStmt:
		c.expr(s.Condition)
		c.stmts(s.Then)
		c.stmts(s.Else)
	case *ast.NumberForStmt:
		c.expr(s.Init)
		c.expr(s.Limit)
		c.expr(s.Step)
		c.stmts(s.Stmts)
	case *ast.GenericForStmt:
		c.exprs(s.Exprs)
		c.stmts(s.Stmts)
	case *ast.FuncDefStmt:
		c.function(s.Func)
	case *ast.ReturnStmt:
		c.exprs(s.Exprs)
	}
}

func (c *collector) function(fn *ast.FunctionExpr) {
	if fn != nil {
		c.stmts(fn.Stmts)
	}
}

func (c *collector) exprs(exprs []ast.Expr) {
	for _, e := range exprs {
		c.expr(e)
	}
}

func (c *collector) expr(ex ast.Expr) {
	switch e := ex.(type) {
	case *ast.FuncCallExpr:
		c.call(e)
	case *ast.AttrGetExpr:
		c.expr(e.Object)
		c.expr(e.Key)
	case *ast.TableExpr:
		for _, f := range e.Fields {
			c.expr(f.Key)
			c.expr(f.Value)
		}
	case *ast.FunctionExpr:
		c.function(e)
	case *ast.ArithmeticOpExpr:
		c.expr(e.Lhs)
		c.expr(e.Rhs)
	case *ast.StringConcatOpExpr:
		c.expr(e.Lhs)
		c.expr(e.Rhs)
	case *ast.RelationalOpExpr:
		c.expr(e.Lhs)
		c.expr(e.Rhs)
	case *ast.LogicalOpExpr:
		c.expr(e.Lhs)
		c.expr(e.Rhs)
	case *ast.UnaryMinusOpExpr:
		c.expr(e.Expr)
	case *ast.UnaryNotOpExpr:
		c.expr(e.Expr)
	case *ast.UnaryLenOpExpr:
		c.expr(e.Expr)
	}
}

func (c *collector) call(e *ast.FuncCallExpr) {
	if ident, ok := e.Func.(*ast.IdentExpr); ok && e.Receiver == nil {
		if _, ok := c.funcs[ident.Value]; ok {
			for _, arg := range e.Args {
				if lit, ok := arg.(*ast.StringExpr); ok {
					c.refs = append(c.refs, lit.Value)
				}
			}
		}
	}

	c.expr(e.Func)
	c.expr(e.Receiver)
	c.exprs(e.Args)
}
