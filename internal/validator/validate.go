package validator

import (
	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// validatorPass enforces language rules over a resolved model.
type validatorPass struct {
	errors []ast.Error
}

// Validate checks a resolved model. It assumes Resolve has run without
// errors; unresolved referents are reported as internal inconsistencies.
func Validate(m *ast.Model) []ast.Error {
	v := &validatorPass{}

	for _, d := range m.Decls {
		v.validateDecl(d)
	}
	for _, f := range m.Functions {
		v.validateFunction(f)
	}
	for _, r := range m.Rules {
		v.validateRule(r)
	}

	return v.errors
}

func (v *validatorPass) errorf(loc ast.Loc, format string, args ...interface{}) {
	v.errors = append(v.errors, ast.Errorf(loc, format, args...))
}

func (v *validatorPass) validateDecl(d ast.Decl) {
	switch decl := d.(type) {
	case *ast.ConstDecl:
		if !decl.Value.Constant() {
			v.errorf(decl.Value.Pos(), "const definition is not a constant")
		} else if _, err := decl.Value.ConstantFold(); err != nil {
			v.errors = append(v.errors, err.(ast.Error))
		}
	case *ast.TypeDecl:
		v.validateType(decl.Value)
	case *ast.VarDecl:
		v.validateType(decl.Type)
	}
}

func (v *validatorPass) validateType(t ast.TypeExpr) {
	switch typ := t.(type) {
	case *ast.Range:
		v.requireConstant(typ.Min, "range lower bound")
		v.requireConstant(typ.Max, "range upper bound")
		if typ.Min.Constant() && typ.Max.Constant() {
			lo, err1 := typ.Min.ConstantFold()
			hi, err2 := typ.Max.ConstantFold()
			if err1 == nil && err2 == nil && lo.Cmp(hi) > 0 {
				v.errorf(typ.Loc, "range lower bound exceeds upper bound")
			}
		}
	case *ast.Scalarset:
		v.requireConstant(typ.Bound, "scalarset bound")
		if typ.Bound.Constant() {
			if b, err := typ.Bound.ConstantFold(); err == nil && b.Sign() <= 0 {
				v.errorf(typ.Loc, "scalarset bound must be positive")
			}
		}
	case *ast.Array:
		v.validateType(typ.Index)
		v.validateType(typ.Element)
		if !typ.Index.Resolve().IsSimple() {
			v.errorf(typ.Loc, "array indexed by non-simple type")
		}
	case *ast.Record:
		for _, f := range typ.Fields {
			v.validateType(f.Type)
		}
	}
}

func (v *validatorPass) requireConstant(e ast.Expr, what string) {
	if e == nil {
		return
	}
	if !e.Constant() {
		v.errorf(e.Pos(), "%s is not a constant", what)
	}
}

func (v *validatorPass) validateFunction(f *ast.Function) {
	for _, d := range f.Decls {
		v.validateDecl(d)
	}
	v.validateStmts(f.Body, true)
}

func (v *validatorPass) validateRule(r ast.Rule) {
	switch rl := r.(type) {
	case *ast.SimpleRule:
		if rl.Guard != nil {
			v.requireBoolean(rl.Guard, "rule guard")
		}
		for _, d := range rl.Decls {
			v.validateDecl(d)
		}
		v.validateStmts(rl.Body, false)

	case *ast.StartState:
		for _, d := range rl.Decls {
			v.validateDecl(d)
		}
		v.validateStmts(rl.Body, false)

	case *ast.PropertyRule:
		v.requireBoolean(rl.Property.Expr, rl.Property.Category.String())

	case *ast.AliasRule:
		for _, inner := range rl.Rules {
			v.validateRule(inner)
		}

	case *ast.Ruleset:
		for _, q := range rl.Quantifiers {
			if !q.Constant() {
				v.errorf(q.Loc, "non-constant quantifier expression as ruleset parameter")
			}
		}
		for _, inner := range rl.Rules {
			v.validateRule(inner)
		}
	}
}

// validateStmts walks a statement list. inFunction controls whether return
// statements may carry a value; the walk does not descend into called
// functions, which are validated on their own.
func (v *validatorPass) validateStmts(stmts []ast.Stmt, inFunction bool) {
	for _, s := range stmts {
		v.validateStmt(s, inFunction)
	}
}

func (v *validatorPass) validateStmt(s ast.Stmt, inFunction bool) {
	switch st := s.(type) {
	case *ast.Assignment:
		if !st.LHS.IsLvalue() {
			v.errorf(st.LHS.Pos(), "invalid expression used as lvalue")
		}
		v.validateExpr(st.LHS)
		v.validateExpr(st.RHS)

	case *ast.Clear:
		if !st.RHS.IsLvalue() {
			v.errorf(st.RHS.Pos(), "invalid expression used as lvalue")
		}
		v.validateExpr(st.RHS)

	case *ast.Undefine:
		if !st.RHS.IsLvalue() {
			v.errorf(st.RHS.Pos(), "invalid expression used as lvalue")
		}
		v.validateExpr(st.RHS)

	case *ast.ProcedureCall:
		v.validateCall(&st.Call)

	case *ast.Return:
		if !inFunction && st.Expr != nil {
			v.errorf(st.Loc, "return statement in rule or startstate returns a value")
		}
		if st.Expr != nil {
			v.validateExpr(st.Expr)
		}

	case *ast.For:
		v.validateStmts(st.Body, inFunction)

	case *ast.If:
		for i := range st.Clauses {
			c := &st.Clauses[i]
			if c.Condition == nil && i != len(st.Clauses)-1 {
				v.errorf(c.Loc, "if clause without a condition is not last")
			}
			if c.Condition != nil {
				v.requireBoolean(c.Condition, "if condition")
				v.validateExpr(c.Condition)
			}
			v.validateStmts(c.Body, inFunction)
		}

	case *ast.Switch:
		v.validateExpr(st.Expr)
		for i := range st.Cases {
			for _, m := range st.Cases[i].Matches {
				v.validateExpr(m)
			}
			v.validateStmts(st.Cases[i].Body, inFunction)
		}

	case *ast.While:
		v.requireBoolean(st.Condition, "while condition")
		v.validateExpr(st.Condition)
		v.validateStmts(st.Body, inFunction)

	case *ast.AliasStmt:
		v.validateStmts(st.Body, inFunction)

	case *ast.PropertyStmt:
		v.requireBoolean(st.Property.Expr, st.Property.Category.String())
		v.validateExpr(st.Property.Expr)

	case *ast.Put:
		if st.Value != nil {
			v.validateExpr(st.Value)
		}
	}
}

func (v *validatorPass) validateCall(call *ast.FunctionCall) {
	if call.Function == nil {
		return // resolution already reported this
	}
	if len(call.Args) != len(call.Function.Parameters) {
		v.errorf(call.Loc, "%s takes %d arguments but %d were given",
			call.Name, len(call.Function.Parameters), len(call.Args))
		return
	}
	for i, a := range call.Args {
		p := call.Function.Parameters[i]
		if p.ByRef && !a.IsLvalue() {
			v.errorf(a.Pos(), "argument %d of %s must be a writable designator",
				i+1, call.Name)
		}
		v.validateExpr(a)
	}
}

// assignable reports whether a value of type from may be used where type
// to is expected. Numeric ranges are mutually assignable, with the bounds
// enforced at runtime; enums and scalarsets must agree on the declared
// type. A nil type is an untyped literal and always fits.
func assignable(to, from ast.TypeExpr) bool {
	if to == nil || from == nil {
		return true
	}
	switch t := to.Resolve().(type) {
	case *ast.Range:
		_, ok := from.Resolve().(*ast.Range)
		return ok
	case *ast.Enum:
		f, ok := from.Resolve().(*ast.Enum)
		return ok && t.Equals(f)
	case *ast.Scalarset:
		f, ok := from.Resolve().(*ast.Scalarset)
		return ok && t.Equals(f)
	}
	return false
}

func (v *validatorPass) requireBoolean(e ast.Expr, what string) {
	if e == nil {
		return
	}
	if !ast.IsBoolean(e.Type()) {
		v.errorf(e.Pos(), "%s has non-boolean type", what)
	}
}

// validateExpr checks expression-level rules: unresolved referents, index
// type compatibility and field existence.
func (v *validatorPass) validateExpr(e ast.Expr) {
	ast.Walk(e, func(n ast.Node) bool {
		switch ex := n.(type) {
		case *ast.ExprID:
			if ex.Referent == nil {
				v.errorf(ex.Loc, "unresolved symbol %q in expression", ex.Name)
			}

		case *ast.Element:
			t := ex.Array.Type()
			if t == nil {
				v.errorf(ex.Loc, "indexing into non-array expression")
				return true
			}
			a, ok := t.Resolve().(*ast.Array)
			if !ok {
				v.errorf(ex.Loc, "indexing into non-array expression")
				return true
			}
			if it := ex.Index.Type(); it != nil {
				if !it.Resolve().IsSimple() {
					v.errorf(ex.Index.Pos(), "array indexed by non-simple expression")
				} else if !assignable(a.Index, it) {
					v.errorf(ex.Index.Pos(), "array indexed by incompatible type")
				}
			}

		case *ast.Field:
			t := ex.Record.Type()
			if t == nil {
				v.errorf(ex.Loc, "left hand side of field expression is not a record")
				return true
			}
			r, ok := t.Resolve().(*ast.Record)
			if !ok {
				v.errorf(ex.Loc, "left hand side of field expression is not a record")
				return true
			}
			if _, _, ok := r.FieldOffset(ex.FieldName); !ok {
				v.errorf(ex.Loc, "no field named %q in record", ex.FieldName)
			}

		case *ast.FunctionCall:
			v.validateCall(ex)
			return false
		}
		return true
	})
}
