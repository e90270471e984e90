// Package validator resolves and validates parsed models.
//
// Resolution binds every identifier to its declaration through a scoped
// symbol table; validation then enforces the language rules that need
// resolved referents: constants must fold, guards must be boolean, rules
// must not return values, and so on. Both passes collect located errors
// rather than stopping at the first problem where recovery is safe.
package validator

import (
	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// resolver binds identifiers to declarations.
type resolver struct {
	symtab *ast.Symtab
	errors []ast.Error
}

// Resolve binds every ExprID, TypeExprID and FunctionCall in the model to
// its referent. Top-level declarations are processed left to right so that
// later declarations see earlier ones.
func Resolve(m *ast.Model) []ast.Error {
	r := &resolver{symtab: ast.NewSymtab()}
	r.symtab.OpenScope()
	r.declareBuiltins()

	for _, d := range m.Decls {
		r.resolveDecl(d)
		r.symtab.Declare(d.DeclName(), d)
	}
	for _, f := range m.Functions {
		r.resolveFunction(f)
		r.symtab.Declare(f.Name, f)
	}
	for _, rule := range m.Rules {
		r.resolveRule(rule)
	}

	r.symtab.CloseScope()
	return r.errors
}

func (r *resolver) errorf(loc ast.Loc, format string, args ...interface{}) {
	r.errors = append(r.errors, ast.Errorf(loc, format, args...))
}

// declareBuiltins installs boolean and its members. The boolean type is an
// enum of false and true, so comparisons against the literals go through
// the ordinary enum machinery.
func (r *resolver) declareBuiltins() {
	boolean := ast.Boolean()
	boolDecl := &ast.TypeDecl{Name: "boolean", Value: boolean}
	r.symtab.Declare("boolean", boolDecl)
	r.symtab.Declare("false", &ast.ConstDecl{
		Name: "false", Value: ast.NewNumber(ast.Loc{}, 0), Type: boolean,
	})
	r.symtab.Declare("true", &ast.ConstDecl{
		Name: "true", Value: ast.NewNumber(ast.Loc{}, 1), Type: boolean,
	})
}

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

func (r *resolver) resolveDecl(d ast.Decl) {
	switch decl := d.(type) {
	case *ast.ConstDecl:
		r.resolveExpr(decl.Value)
	case *ast.TypeDecl:
		r.resolveType(decl.Value)
	case *ast.VarDecl:
		r.resolveType(decl.Type)
	case *ast.AliasDecl:
		r.resolveExpr(decl.Value)
	}
}

// resolveType resolves a type expression. Enum members are declared as
// constants in the current scope as a side effect, giving them the same
// visibility as the type itself.
func (r *resolver) resolveType(t ast.TypeExpr) {
	switch typ := t.(type) {
	case *ast.Range:
		r.resolveExpr(typ.Min)
		r.resolveExpr(typ.Max)

	case *ast.Enum:
		for i, m := range typ.Members {
			r.symtab.Declare(m.Name, &ast.ConstDecl{
				Loc:   m.Loc,
				Name:  m.Name,
				Value: ast.NewNumber(m.Loc, int64(i)),
				Type:  typ,
			})
		}

	case *ast.Scalarset:
		r.resolveExpr(typ.Bound)

	case *ast.Array:
		r.resolveType(typ.Index)
		r.resolveType(typ.Element)

	case *ast.Record:
		for _, f := range typ.Fields {
			r.resolveType(f.Type)
		}

	case *ast.TypeExprID:
		ref, err := ast.Lookup[*ast.TypeDecl](r.symtab, typ.Name, typ.Loc)
		if err != nil {
			r.errors = append(r.errors, err.(ast.Error))
			return
		}
		typ.Referent = ref
	}
}

func (r *resolver) resolveFunction(f *ast.Function) {
	if f.ReturnType != nil {
		r.resolveType(f.ReturnType)
	}

	r.symtab.OpenScope()
	for _, p := range f.Parameters {
		r.resolveType(p.Decl.Type)
		r.symtab.Declare(p.Decl.Name, p.Decl)
	}
	for _, d := range f.Decls {
		r.resolveDecl(d)
		r.symtab.Declare(d.DeclName(), d)
	}
	r.resolveStmts(f.Body)
	r.symtab.CloseScope()
}

// ----------------------------------------------------------------------------
// Rules
// ----------------------------------------------------------------------------

func (r *resolver) resolveRule(rule ast.Rule) {
	switch rl := rule.(type) {
	case *ast.SimpleRule:
		r.symtab.OpenScope()
		r.declareCommon(rl.CommonQuantifiers(), rl.CommonAliases())
		for _, d := range rl.Decls {
			r.resolveDecl(d)
			r.symtab.Declare(d.DeclName(), d)
		}
		if rl.Guard != nil {
			r.resolveExpr(rl.Guard)
		}
		r.resolveStmts(rl.Body)
		r.symtab.CloseScope()

	case *ast.StartState:
		r.symtab.OpenScope()
		r.declareCommon(rl.CommonQuantifiers(), rl.CommonAliases())
		for _, d := range rl.Decls {
			r.resolveDecl(d)
			r.symtab.Declare(d.DeclName(), d)
		}
		r.resolveStmts(rl.Body)
		r.symtab.CloseScope()

	case *ast.PropertyRule:
		r.symtab.OpenScope()
		r.declareCommon(rl.CommonQuantifiers(), rl.CommonAliases())
		r.resolveExpr(rl.Property.Expr)
		r.symtab.CloseScope()

	case *ast.AliasRule:
		r.symtab.OpenScope()
		for _, a := range rl.Aliases {
			r.resolveExpr(a.Value)
			r.symtab.Declare(a.Name, a)
		}
		for _, inner := range rl.Rules {
			r.resolveRule(inner)
		}
		r.symtab.CloseScope()

	case *ast.Ruleset:
		r.symtab.OpenScope()
		for _, q := range rl.Quantifiers {
			r.resolveQuantifier(q)
		}
		for _, inner := range rl.Rules {
			r.resolveRule(inner)
		}
		r.symtab.CloseScope()
	}
}

// declareCommon pushes a flattened rule's accumulated quantifiers and
// aliases. Quantifier variables come first, then aliases, so alias values
// may reference the loop variables.
func (r *resolver) declareCommon(quantifiers []*ast.Quantifier, aliases []*ast.AliasDecl) {
	for _, q := range quantifiers {
		r.resolveQuantifier(q)
	}
	for _, a := range aliases {
		r.resolveExpr(a.Value)
		r.symtab.Declare(a.Name, a)
	}
}

// resolveQuantifier resolves the quantifier's domain, synthesizes its loop
// variable declaration and declares it in the current scope.
func (r *resolver) resolveQuantifier(q *ast.Quantifier) {
	var typ ast.TypeExpr
	if q.Type != nil {
		r.resolveType(q.Type)
		typ = q.Type
	} else {
		r.resolveExpr(q.From)
		r.resolveExpr(q.To)
		if q.Step != nil {
			r.resolveExpr(q.Step)
		}
		typ = &ast.Range{
			Loc: q.Loc,
			Min: q.From.Clone().(ast.Expr),
			Max: q.To.Clone().(ast.Expr),
		}
	}
	if q.Decl == nil {
		q.Decl = &ast.VarDecl{Loc: q.Loc, Name: q.Name, Type: typ, Readonly: true}
	}
	r.symtab.Declare(q.Name, q.Decl)
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

func (r *resolver) resolveStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		r.resolveStmt(s)
	}
}

func (r *resolver) resolveStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Assignment:
		r.resolveExpr(st.LHS)
		r.resolveExpr(st.RHS)

	case *ast.Clear:
		r.resolveExpr(st.RHS)

	case *ast.Undefine:
		r.resolveExpr(st.RHS)

	case *ast.ProcedureCall:
		r.resolveCall(&st.Call)

	case *ast.Return:
		if st.Expr != nil {
			r.resolveExpr(st.Expr)
		}

	case *ast.For:
		r.symtab.OpenScope()
		r.resolveQuantifier(st.Quantifier)
		r.resolveStmts(st.Body)
		r.symtab.CloseScope()

	case *ast.If:
		for i := range st.Clauses {
			if st.Clauses[i].Condition != nil {
				r.resolveExpr(st.Clauses[i].Condition)
			}
			r.resolveStmts(st.Clauses[i].Body)
		}

	case *ast.Switch:
		r.resolveExpr(st.Expr)
		for i := range st.Cases {
			for _, m := range st.Cases[i].Matches {
				r.resolveExpr(m)
			}
			r.resolveStmts(st.Cases[i].Body)
		}

	case *ast.While:
		r.resolveExpr(st.Condition)
		r.resolveStmts(st.Body)

	case *ast.AliasStmt:
		r.symtab.OpenScope()
		for _, a := range st.Aliases {
			r.resolveExpr(a.Value)
			r.symtab.Declare(a.Name, a)
		}
		r.resolveStmts(st.Body)
		r.symtab.CloseScope()

	case *ast.PropertyStmt:
		r.resolveExpr(st.Property.Expr)

	case *ast.Put:
		if st.Value != nil {
			r.resolveExpr(st.Value)
		}
	}
}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

func (r *resolver) resolveExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.ExprID:
		ref, err := ast.Lookup[ast.Decl](r.symtab, ex.Name, ex.Loc)
		if err != nil {
			r.errors = append(r.errors, err.(ast.Error))
			return
		}
		ex.Referent = ref

	case *ast.Binary:
		r.resolveExpr(ex.LHS)
		r.resolveExpr(ex.RHS)

	case *ast.Unary:
		r.resolveExpr(ex.RHS)

	case *ast.Ternary:
		r.resolveExpr(ex.Cond)
		r.resolveExpr(ex.LHS)
		r.resolveExpr(ex.RHS)

	case *ast.Element:
		r.resolveExpr(ex.Array)
		r.resolveExpr(ex.Index)

	case *ast.Field:
		r.resolveExpr(ex.Record)

	case *ast.Quantified:
		r.symtab.OpenScope()
		r.resolveQuantifier(ex.Quantifier)
		r.resolveExpr(ex.Body)
		r.symtab.CloseScope()

	case *ast.FunctionCall:
		r.resolveCall(ex)

	case *ast.IsUndefined:
		r.resolveExpr(ex.E)
	}
}

func (r *resolver) resolveCall(call *ast.FunctionCall) {
	ref, err := ast.Lookup[*ast.Function](r.symtab, call.Name, call.Loc)
	if err != nil {
		r.errors = append(r.errors, err.(ast.Error))
	} else {
		call.Function = ref
	}
	for _, a := range call.Args {
		r.resolveExpr(a)
	}
}
