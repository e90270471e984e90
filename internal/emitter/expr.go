package emitter

import (
	"fmt"
	"strings"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// Expression emission. RValues of simple type are unboxed value_t
// expressions; aggregates stay as handle expressions. LValues are always
// handle expressions.

// typeBounds renders the lower and upper bound of an expression's type,
// falling back to the full value range for untyped operands.
func typeBounds(e ast.Expr) (string, string) {
	t := e.Type()
	if t == nil {
		return "VALUE_MIN", "VALUE_MAX"
	}
	rt := t.Resolve()
	if !rt.IsSimple() {
		return "VALUE_MIN", "VALUE_MAX"
	}
	return fmt.Sprintf("VALUE_C(%d)", rt.LowerBound()),
		fmt.Sprintf("VALUE_C(%d)", rt.UpperBound())
}

// stateVarHandle renders the handle literal for a state variable. The
// const cast is deliberate: guards and properties hold a const state but
// construct the same handles, and stay morally read-only.
func stateVarHandle(v *ast.VarDecl) string {
	return fmt.Sprintf(
		"((struct handle){ .base = (uint8_t*)s->data, .offset = %dul, .width = %dul })",
		v.Offset, v.Type.Width())
}

// rvalue renders an expression for reading.
func (g *generator) rvalue(e ast.Expr) string {
	switch ex := e.(type) {
	case *ast.Number:
		return fmt.Sprintf("VALUE_C(%s)", ex.Value.String())

	case *ast.ExprID:
		return g.rvalueID(ex)

	case *ast.Binary:
		return g.rvalueBinary(ex)

	case *ast.Unary:
		if ex.Op == ast.Not {
			return fmt.Sprintf("(!%s)", g.rvalue(ex.RHS))
		}
		return fmt.Sprintf("negate(s, %s)", g.rvalue(ex.RHS))

	case *ast.Ternary:
		return fmt.Sprintf("(%s ? %s : %s)",
			g.rvalue(ex.Cond), g.rvalue(ex.LHS), g.rvalue(ex.RHS))

	case *ast.Element, *ast.Field:
		return g.readWrap(e, g.handleOf(e))

	case *ast.Quantified:
		return g.rvalueQuantified(ex)

	case *ast.FunctionCall:
		return g.callExpr(ex)

	case *ast.IsUndefined:
		return fmt.Sprintf("(handle_read_raw(%s) == 0)", g.handleOf(ex.E))
	}
	panic(ast.Errorf(e.Pos(), "unsupported expression in emission"))
}

// readWrap wraps a handle expression in handle_read when the designated
// type is simple; aggregates pass as bare handles.
func (g *generator) readWrap(e ast.Expr, handle string) string {
	t := e.Type()
	if t == nil || !t.Resolve().IsSimple() {
		return handle
	}
	lb, ub := typeBounds(e)
	return fmt.Sprintf("handle_read(s, %s, %s, %s)", lb, ub, handle)
}

func (g *generator) rvalueID(ex *ast.ExprID) string {
	switch d := ex.Referent.(type) {
	case *ast.ConstDecl:
		v, err := d.Value.ConstantFold()
		if err != nil {
			panic(err)
		}
		return fmt.Sprintf("VALUE_C(%s)", v.String())

	case *ast.AliasDecl:
		return g.rvalue(d.Value)

	case *ast.VarDecl:
		if d.Readonly {
			// Quantifier loop variables and by-value parameters are plain
			// scalars.
			return "ru_" + d.Name
		}
		return g.readWrap(ex, g.handleOf(ex))
	}
	panic(ast.Errorf(ex.Loc, "symbol %q in expression is unresolved", ex.Name))
}

var comparisonTokens = map[ast.BinaryOp]string{
	ast.Eq:  "==",
	ast.Neq: "!=",
	ast.Lt:  "<",
	ast.Leq: "<=",
	ast.Gt:  ">",
	ast.Geq: ">=",
}

var arithmeticHelpers = map[ast.BinaryOp]string{
	ast.Add: "add",
	ast.Sub: "sub",
	ast.Mul: "mul",
	ast.Div: "divide",
	ast.Mod: "mod",
}

func (g *generator) rvalueBinary(ex *ast.Binary) string {
	lhs, rhs := g.rvalue(ex.LHS), g.rvalue(ex.RHS)

	if helper, ok := arithmeticHelpers[ex.Op]; ok {
		return fmt.Sprintf("%s(s, %s, %s)", helper, lhs, rhs)
	}
	if tok, ok := comparisonTokens[ex.Op]; ok {
		return fmt.Sprintf("(%s %s %s)", lhs, tok, rhs)
	}
	switch ex.Op {
	case ast.And:
		return fmt.Sprintf("(%s && %s)", lhs, rhs)
	case ast.Or:
		return fmt.Sprintf("(%s || %s)", lhs, rhs)
	case ast.Implication:
		return fmt.Sprintf("(!%s || %s)", lhs, rhs)
	}
	panic(ast.Errorf(ex.Loc, "unsupported operator %s", ex.Op))
}

// rvalueQuantified compiles forall/exists into a statement-expression loop
// with a short-circuit boolean reduction.
func (g *generator) rvalueQuantified(ex *ast.Quantified) string {
	result := fmt.Sprintf("result%d", g.varCounter)
	g.varCounter++

	loop := g.quantLoop(ex.Quantifier)

	var b strings.Builder
	if ex.Kind == ast.Forall {
		fmt.Fprintf(&b, "({ bool %s = true; %s { if (!%s) { %s = false; break; } } %s; })",
			result, loop, g.rvalue(ex.Body), result, result)
	} else {
		fmt.Fprintf(&b, "({ bool %s = false; %s { if (%s) { %s = true; break; } } %s; })",
			result, loop, g.rvalue(ex.Body), result, result)
	}
	return b.String()
}

// callExpr renders a function or procedure call. By-value arguments pass
// the scalar, by-reference arguments pass the argument's handle.
func (g *generator) callExpr(call *ast.FunctionCall) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ru_f_%s(s", call.Name)
	for i, a := range call.Args {
		if call.Function != nil && i < len(call.Function.Parameters) &&
			call.Function.Parameters[i].ByRef {
			fmt.Fprintf(&b, ", %s", g.handleOf(a))
		} else {
			fmt.Fprintf(&b, ", %s", g.rvalue(a))
		}
	}
	b.WriteString(")")
	return b.String()
}

// handleOf renders the handle expression designating e's storage. It is
// the compositional core shared by lvalues and aggregate rvalues.
func (g *generator) handleOf(e ast.Expr) string {
	switch ex := e.(type) {
	case *ast.ExprID:
		switch d := ex.Referent.(type) {
		case *ast.VarDecl:
			if d.StateVariable {
				return stateVarHandle(d)
			}
			if !d.Readonly {
				return "ru_" + d.Name
			}
		case *ast.AliasDecl:
			return g.handleOf(d.Value)
		}
		panic(ast.Errorf(ex.Loc, "invalid expression used as lvalue"))

	case *ast.Element:
		t := ex.Array.Type()
		a, ok := t.Resolve().(*ast.Array)
		if !ok {
			panic(ast.Errorf(ex.Loc, "indexing into non-array expression"))
		}
		it := a.Index.Resolve()
		return fmt.Sprintf("handle_index(s, %dul, VALUE_C(%d), VALUE_C(%d), %s, %s)",
			a.Element.Width(), it.LowerBound(), it.UpperBound(),
			g.handleOf(ex.Array), g.rvalue(ex.Index))

	case *ast.Field:
		t := ex.Record.Type()
		r, ok := t.Resolve().(*ast.Record)
		if !ok {
			panic(ast.Errorf(ex.Loc, "left hand side of field expression is not a record"))
		}
		off, fd, ok := r.FieldOffset(ex.FieldName)
		if !ok {
			panic(ast.Errorf(ex.Loc, "no field named %q in record", ex.FieldName))
		}
		return fmt.Sprintf("handle_narrow(%s, %dul, %dul)",
			g.handleOf(ex.Record), off, fd.Type.Width())
	}
	panic(ast.Errorf(e.Pos(), "invalid expression used as lvalue"))
}
