package checker

import (
	"fmt"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// The interpreter evaluates resolved AST expressions and executes statement
// bodies against packed state bytes, through the same handle semantics the
// emitted checker uses.

// activation is one stack frame: rule-local and function-local storage.
// Scalars that are not addressable (by-value parameters, quantifier loop
// variables) live in vals; everything else is a handle into either the
// state vector or frame-local backing bytes.
type activation struct {
	vals    map[*ast.VarDecl]int64
	handles map[*ast.VarDecl]Handle
}

func newActivation() *activation {
	return &activation{
		vals:    make(map[*ast.VarDecl]int64),
		handles: make(map[*ast.VarDecl]Handle),
	}
}

// env is the evaluation context for one state.
type env struct {
	c      *Checker
	state  *State
	frames []*activation
}

func (e *env) push() *activation {
	a := newActivation()
	e.frames = append(e.frames, a)
	return a
}

func (e *env) pop() {
	e.frames = e.frames[:len(e.frames)-1]
}

// lookupVal finds a scalar binding for d. Bindings are keyed by the
// declaration pointer; rule flattening clones local declaration lists, so
// a miss falls back to matching the declaration name innermost-first.
func (e *env) lookupVal(d *ast.VarDecl) (int64, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i].vals[d]; ok {
			return v, true
		}
	}
	for i := len(e.frames) - 1; i >= 0; i-- {
		for k, v := range e.frames[i].vals {
			if k.Name == d.Name {
				return v, true
			}
		}
	}
	return 0, false
}

// lookupHandle finds a storage binding for d, with the same name fallback
// as lookupVal.
func (e *env) lookupHandle(d *ast.VarDecl) (Handle, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if h, ok := e.frames[i].handles[d]; ok {
			return h, true
		}
	}
	for i := len(e.frames) - 1; i >= 0; i-- {
		for k, h := range e.frames[i].handles {
			if k.Name == d.Name {
				return h, true
			}
		}
	}
	return Handle{}, false
}

// returnSignal unwinds a function body on return. It is not a failure.
type returnSignal struct {
	value    int64
	hasValue bool
}

func (r *returnSignal) Error() string { return "return outside a function" }

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------

// eval computes the scalar value of an expression.
func (e *env) eval(x ast.Expr) (int64, error) {
	switch ex := x.(type) {
	case *ast.Number:
		if !ex.Value.IsInt64() {
			return 0, failf(Overflow, "literal %s exceeds the value type", ex.Value)
		}
		return ex.Value.Int64(), nil

	case *ast.ExprID:
		return e.evalID(ex)

	case *ast.Binary:
		return e.evalBinary(ex)

	case *ast.Unary:
		v, err := e.eval(ex.RHS)
		if err != nil {
			return 0, err
		}
		if ex.Op == ast.Not {
			return b2i(v == 0), nil
		}
		return negate(v)

	case *ast.Ternary:
		c, err := e.eval(ex.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return e.eval(ex.LHS)
		}
		return e.eval(ex.RHS)

	case *ast.Element, *ast.Field:
		h, t, err := e.lvalue(x)
		if err != nil {
			return 0, err
		}
		rt := t.Resolve()
		return h.Read(rt.LowerBound(), rt.UpperBound())

	case *ast.Quantified:
		return e.evalQuantified(ex)

	case *ast.FunctionCall:
		v, has, err := e.call(ex)
		if err != nil {
			return 0, err
		}
		if !has {
			return 0, failf(ModelError, "procedure %s used in expression", ex.Name)
		}
		return v, nil

	case *ast.IsUndefined:
		h, _, err := e.lvalue(ex.E)
		if err != nil {
			return 0, err
		}
		return b2i(h.IsUndefined()), nil
	}

	return 0, failf(ModelError, "unsupported expression at %s", x.Pos())
}

func b2i(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (e *env) evalID(ex *ast.ExprID) (int64, error) {
	switch d := ex.Referent.(type) {
	case *ast.ConstDecl:
		v, err := d.Value.ConstantFold()
		if err != nil {
			return 0, failf(ModelError, "%v", err)
		}
		if !v.IsInt64() {
			return 0, failf(Overflow, "constant %s exceeds the value type", ex.Name)
		}
		return v.Int64(), nil

	case *ast.AliasDecl:
		return e.eval(d.Value)

	case *ast.VarDecl:
		if d.Readonly {
			if v, ok := e.lookupVal(d); ok {
				return v, nil
			}
			return 0, failf(ModelError, "variable %s has no binding", ex.Name)
		}
		h, t, err := e.varHandle(d)
		if err != nil {
			return 0, err
		}
		rt := t.Resolve()
		if !rt.IsSimple() {
			return 0, failf(ModelError, "aggregate %s used as a scalar", ex.Name)
		}
		return h.Read(rt.LowerBound(), rt.UpperBound())
	}
	return 0, failf(ModelError, "unresolved symbol %s", ex.Name)
}

func (e *env) evalBinary(ex *ast.Binary) (int64, error) {
	// Logical operators short-circuit.
	if ex.Op.IsLogical() {
		l, err := e.eval(ex.LHS)
		if err != nil {
			return 0, err
		}
		switch ex.Op {
		case ast.And:
			if l == 0 {
				return 0, nil
			}
		case ast.Or:
			if l != 0 {
				return 1, nil
			}
		case ast.Implication:
			if l == 0 {
				return 1, nil
			}
		}
		r, err := e.eval(ex.RHS)
		if err != nil {
			return 0, err
		}
		return b2i(r != 0), nil
	}

	l, err := e.eval(ex.LHS)
	if err != nil {
		return 0, err
	}
	r, err := e.eval(ex.RHS)
	if err != nil {
		return 0, err
	}

	switch ex.Op {
	case ast.Add:
		return add(l, r)
	case ast.Sub:
		return sub(l, r)
	case ast.Mul:
		return mul(l, r)
	case ast.Div:
		return divide(l, r)
	case ast.Mod:
		return mod(l, r)
	case ast.Eq:
		return b2i(l == r), nil
	case ast.Neq:
		return b2i(l != r), nil
	case ast.Lt:
		return b2i(l < r), nil
	case ast.Leq:
		return b2i(l <= r), nil
	case ast.Gt:
		return b2i(l > r), nil
	case ast.Geq:
		return b2i(l >= r), nil
	}
	return 0, failf(ModelError, "unsupported operator %s", ex.Op)
}

func (e *env) evalQuantified(ex *ast.Quantified) (int64, error) {
	result := ex.Kind == ast.Forall
	err := e.forQuantifier(ex.Quantifier, func() error {
		v, err := e.eval(ex.Body)
		if err != nil {
			return err
		}
		if ex.Kind == ast.Forall && v == 0 {
			result = false
			return errStopIteration
		}
		if ex.Kind == ast.Exists && v != 0 {
			result = true
			return errStopIteration
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b2i(result), nil
}

// errStopIteration short-circuits quantifier loops.
var errStopIteration = fmt.Errorf("stop iteration")

// forQuantifier binds the loop variable in the current frame and runs body
// for each value in the quantifier's domain. For-loop bounds may be
// arbitrary expressions; they are evaluated once, before the first
// iteration.
func (e *env) forQuantifier(q *ast.Quantifier, body func() error) error {
	var from, to, step int64
	if q.Type != nil {
		t := q.Type.Resolve()
		from, to, step = t.LowerBound(), t.UpperBound(), 1
	} else {
		var err error
		if from, err = e.eval(q.From); err != nil {
			return err
		}
		if to, err = e.eval(q.To); err != nil {
			return err
		}
		step = 1
		if q.Step != nil {
			if step, err = e.eval(q.Step); err != nil {
				return err
			}
		}
	}
	if step == 0 {
		return failf(ModelError, "quantifier %s has zero step", q.Name)
	}

	frame := e.frames[len(e.frames)-1]
	defer delete(frame.vals, q.Decl)

	for v := from; (step > 0 && v <= to) || (step < 0 && v >= to); v += step {
		frame.vals[q.Decl] = v
		if err := body(); err != nil {
			if err == errStopIteration {
				return nil
			}
			return err
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Lvalues
// ----------------------------------------------------------------------------

// varHandle returns the storage handle for a variable declaration.
func (e *env) varHandle(d *ast.VarDecl) (Handle, ast.TypeExpr, error) {
	if d.StateVariable {
		return e.state.Handle(d.Offset, d.Type.Width()), d.Type, nil
	}
	if h, ok := e.lookupHandle(d); ok {
		return h, d.Type, nil
	}
	return Handle{}, nil, failf(ModelError, "variable %s has no storage", d.Name)
}

// lvalue resolves a designator to a handle and the designated type.
func (e *env) lvalue(x ast.Expr) (Handle, ast.TypeExpr, error) {
	switch ex := x.(type) {
	case *ast.ExprID:
		switch d := ex.Referent.(type) {
		case *ast.VarDecl:
			return e.varHandle(d)
		case *ast.AliasDecl:
			return e.lvalue(d.Value)
		}
		return Handle{}, nil, failf(ModelError, "invalid expression used as lvalue")

	case *ast.Element:
		root, t, err := e.lvalue(ex.Array)
		if err != nil {
			return Handle{}, nil, err
		}
		a, ok := t.Resolve().(*ast.Array)
		if !ok {
			return Handle{}, nil, failf(ModelError, "indexing into non-array")
		}
		idx, err := e.eval(ex.Index)
		if err != nil {
			return Handle{}, nil, err
		}
		it := a.Index.Resolve()
		h, err := root.Index(a.Element.Width(), it.LowerBound(), it.UpperBound(), idx)
		if err != nil {
			return Handle{}, nil, err
		}
		return h, a.Element, nil

	case *ast.Field:
		root, t, err := e.lvalue(ex.Record)
		if err != nil {
			return Handle{}, nil, err
		}
		r, ok := t.Resolve().(*ast.Record)
		if !ok {
			return Handle{}, nil, failf(ModelError, "field access into non-record")
		}
		off, fd, ok := r.FieldOffset(ex.FieldName)
		if !ok {
			return Handle{}, nil, failf(ModelError, "no field named %q", ex.FieldName)
		}
		return root.Narrow(off, fd.Type.Width()), fd.Type, nil
	}
	return Handle{}, nil, failf(ModelError, "invalid expression used as lvalue")
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

// execDecls allocates frame-local storage for a declaration list.
func (e *env) execDecls(decls []ast.Decl, frame *activation) {
	for _, d := range decls {
		if v, ok := d.(*ast.VarDecl); ok {
			width := v.Type.Width()
			backing := make([]byte, (width+7)/8)
			frame.handles[v] = NewHandle(backing, 0, width)
		}
	}
}

func (e *env) execStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := e.execStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) execStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.Assignment:
		return e.execAssignment(st)

	case *ast.Clear:
		h, _, err := e.lvalue(st.RHS)
		if err != nil {
			return err
		}
		h.Zero()
		return nil

	case *ast.Undefine:
		h, _, err := e.lvalue(st.RHS)
		if err != nil {
			return err
		}
		h.Zero()
		return nil

	case *ast.ProcedureCall:
		_, _, err := e.call(&st.Call)
		return err

	case *ast.Return:
		sig := &returnSignal{}
		if st.Expr != nil {
			v, err := e.eval(st.Expr)
			if err != nil {
				return err
			}
			sig.value, sig.hasValue = v, true
		}
		return sig

	case *ast.For:
		return e.forQuantifier(st.Quantifier, func() error {
			return e.execStmts(st.Body)
		})

	case *ast.If:
		for i := range st.Clauses {
			c := &st.Clauses[i]
			if c.Condition == nil {
				return e.execStmts(c.Body)
			}
			v, err := e.eval(c.Condition)
			if err != nil {
				return err
			}
			if v != 0 {
				return e.execStmts(c.Body)
			}
		}
		return nil

	case *ast.Switch:
		v, err := e.eval(st.Expr)
		if err != nil {
			return err
		}
		for i := range st.Cases {
			c := &st.Cases[i]
			if len(c.Matches) == 0 {
				return e.execStmts(c.Body)
			}
			for _, m := range c.Matches {
				mv, err := e.eval(m)
				if err != nil {
					return err
				}
				if mv == v {
					return e.execStmts(c.Body)
				}
			}
		}
		return nil

	case *ast.While:
		for {
			v, err := e.eval(st.Condition)
			if err != nil {
				return err
			}
			if v == 0 {
				return nil
			}
			if err := e.execStmts(st.Body); err != nil {
				return err
			}
		}

	case *ast.AliasStmt:
		// Alias referents carry their value expressions; the bindings need
		// no storage of their own.
		return e.execStmts(st.Body)

	case *ast.ErrorStmt:
		return failf(ModelError, "%s", st.Message)

	case *ast.PropertyStmt:
		v, err := e.eval(st.Property.Expr)
		if err != nil {
			return err
		}
		if v == 0 {
			return e.propertyFailure(st.Property.Category, st.Message)
		}
		return nil

	case *ast.Put:
		if st.Value != nil {
			v, err := e.eval(st.Value)
			if err != nil {
				return err
			}
			e.c.put(fmt.Sprintf("%d", v))
		} else {
			e.c.put(st.Text)
		}
		return nil
	}

	return failf(ModelError, "unsupported statement at %s", s.Pos())
}

func (e *env) propertyFailure(category ast.PropertyCategory, msg string) error {
	switch category {
	case ast.Assertion:
		if msg == "" {
			return fail(AssertionFailed)
		}
		return failf(AssertionFailed, "assertion failed: %s", msg)
	case ast.Assumption:
		return fail(AssumptionFailed)
	default:
		if msg == "" {
			return fail(InvariantViolated)
		}
		return failf(InvariantViolated, "invariant violated: %s", msg)
	}
}

func (e *env) execAssignment(st *ast.Assignment) error {
	h, t, err := e.lvalue(st.LHS)
	if err != nil {
		return err
	}
	rt := t.Resolve()

	if rt.IsSimple() {
		v, err := e.eval(st.RHS)
		if err != nil {
			return err
		}
		return h.Write(rt.LowerBound(), rt.UpperBound(), v)
	}

	// Aggregate assignment is a bitwise copy between equal-width fields.
	src, _, err := e.lvalue(st.RHS)
	if err != nil {
		return err
	}
	Copy(h, src)
	return nil
}

// ----------------------------------------------------------------------------
// Calls
// ----------------------------------------------------------------------------

func (e *env) call(call *ast.FunctionCall) (int64, bool, error) {
	f := call.Function
	if f == nil {
		return 0, false, failf(ModelError, "call to unresolved function %s", call.Name)
	}

	frame := newActivation()
	for i, p := range f.Parameters {
		arg := call.Args[i]
		if p.ByRef {
			h, _, err := e.lvalue(arg)
			if err != nil {
				return 0, false, err
			}
			frame.handles[p.Decl] = h
		} else {
			v, err := e.eval(arg)
			if err != nil {
				return 0, false, err
			}
			frame.vals[p.Decl] = v
		}
	}

	e.frames = append(e.frames, frame)
	e.execDecls(f.Decls, frame)
	err := e.execStmts(f.Body)
	e.pop()

	if sig, ok := err.(*returnSignal); ok {
		return sig.value, sig.hasValue, nil
	}
	return 0, false, err
}
