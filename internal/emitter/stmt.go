package emitter

import (
	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// Statement emission.

func (g *generator) emitStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		g.emitStmt(s)
	}
}

func (g *generator) emitStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Assignment:
		g.emitAssignment(st)

	case *ast.Clear:
		g.line("handle_zero(%s);", g.handleOf(st.RHS))

	case *ast.Undefine:
		g.line("handle_zero(%s);", g.handleOf(st.RHS))

	case *ast.ProcedureCall:
		g.line("(void)%s;", g.callExpr(&st.Call))

	case *ast.Return:
		if st.Expr == nil {
			g.line("return;")
		} else {
			g.line("return %s;", g.rvalue(st.Expr))
		}

	case *ast.For:
		g.open("{")
		g.quantHeader(st.Quantifier)
		g.emitStmts(st.Body)
		g.close("}")
		g.close("}")

	case *ast.If:
		for i := range st.Clauses {
			c := &st.Clauses[i]
			switch {
			case c.Condition == nil:
				g.open("} else {")
			case i == 0:
				g.open("if (%s) {", g.rvalue(c.Condition))
			default:
				g.open("} else if (%s) {", g.rvalue(c.Condition))
			}
			g.emitStmts(c.Body)
			if i != len(st.Clauses)-1 {
				// The next clause reopens the brace.
				g.indent--
			}
		}
		g.close("}")

	case *ast.Switch:
		g.open("{")
		g.line("value_t scrutinee = %s;", g.rvalue(st.Expr))
		for i := range st.Cases {
			c := &st.Cases[i]
			if len(c.Matches) == 0 {
				g.open("} else {")
			} else {
				cond := ""
				for j, m := range c.Matches {
					if j > 0 {
						cond += " || "
					}
					cond += "scrutinee == " + g.rvalue(m)
				}
				if i == 0 {
					g.open("if (%s) {", cond)
				} else {
					g.open("} else if (%s) {", cond)
				}
			}
			g.emitStmts(c.Body)
			if i != len(st.Cases)-1 {
				g.indent--
			}
		}
		if len(st.Cases) > 0 {
			g.close("}")
		}
		g.close("}")

	case *ast.While:
		g.open("while (%s) {", g.rvalue(st.Condition))
		g.emitStmts(st.Body)
		g.close("}")

	case *ast.AliasStmt:
		// Alias uses expand to their bound expressions at every reference,
		// so the binding itself emits nothing.
		g.emitStmts(st.Body)

	case *ast.ErrorStmt:
		g.line("error(s, false, \"%s\");", escapeC(st.Message))

	case *ast.PropertyStmt:
		g.open("if (!%s) {", g.rvalue(st.Property.Expr))
		switch st.Property.Category {
		case ast.Assumption:
			g.line("assumption_failed();")
		case ast.Assertion:
			if st.Message != "" {
				g.line("error(s, false, \"assertion failed: %s\");", escapeC(st.Message))
			} else {
				g.line("error(s, false, \"assertion failed\");")
			}
		default:
			if st.Message != "" {
				g.line("error(s, false, \"invariant violated: %s\");", escapeC(st.Message))
			} else {
				g.line("error(s, false, \"invariant violated\");")
			}
		}
		g.close("}")

	case *ast.Put:
		if st.Value != nil {
			g.line("printf(\"%%\" PRIVAL \"\\n\", %s);", g.rvalue(st.Value))
		} else {
			g.line("printf(\"%%s\\n\", \"%s\");", escapeC(st.Text))
		}

	default:
		panic(ast.Errorf(s.Pos(), "unsupported statement in emission"))
	}
}

func (g *generator) emitAssignment(st *ast.Assignment) {
	t := st.LHS.Type()
	if t != nil && !t.Resolve().IsSimple() {
		g.line("handle_copy(%s, %s);", g.handleOf(st.LHS), g.handleOf(st.RHS))
		return
	}
	lb, ub := typeBounds(st.LHS)
	g.line("handle_write(s, %s, %s, %s, %s);",
		lb, ub, g.handleOf(st.LHS), g.rvalue(st.RHS))
}
