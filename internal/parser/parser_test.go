package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

const counterModel = `
-- a two-element counter
const
  MAX : 1;

var
  x : 0 .. MAX;

startstate begin
  x := 0;
end;

rule "up" x = 0 ==> begin
  x := 1;
end;

rule "down" x = 1 ==> begin
  x := 0;
end;

invariant "bounded" x <= MAX;
`

func parse(t *testing.T, source string) *ast.Model {
	t.Helper()
	m, errs := New(source).Parse()
	require.Empty(t, errs)
	return m
}

func TestParseCounterModel(t *testing.T) {
	m := parse(t, counterModel)

	require.Len(t, m.Decls, 2)

	c, ok := m.Decls[0].(*ast.ConstDecl)
	require.True(t, ok)
	require.Equal(t, "MAX", c.Name)

	v, ok := m.Decls[1].(*ast.VarDecl)
	require.True(t, ok)
	require.Equal(t, "x", v.Name)
	require.True(t, v.StateVariable)
	_, ok = v.Type.(*ast.Range)
	require.True(t, ok)

	require.Len(t, m.Rules, 4)
	_, ok = m.Rules[0].(*ast.StartState)
	require.True(t, ok)

	up, ok := m.Rules[1].(*ast.SimpleRule)
	require.True(t, ok)
	require.Equal(t, "up", up.Name)
	require.NotNil(t, up.Guard)
	require.Len(t, up.Body, 1)

	inv, ok := m.Rules[3].(*ast.PropertyRule)
	require.True(t, ok)
	require.Equal(t, "bounded", inv.Name)
	require.Equal(t, ast.Invariant, inv.Property.Category)
}

func TestParseTypes(t *testing.T) {
	m := parse(t, `
type
  small : 0 .. 7;
  color : enum { red, green, blue };
  pid : scalarset(4);
  board : array [small] of color;
  pair : record
    first : small;
    second : small;
  end;
`)
	require.Len(t, m.Decls, 5)

	require.IsType(t, &ast.Range{}, m.Decls[0].(*ast.TypeDecl).Value)

	e := m.Decls[1].(*ast.TypeDecl).Value.(*ast.Enum)
	require.Len(t, e.Members, 3)
	require.Equal(t, "red", e.Members[0].Name)

	require.IsType(t, &ast.Scalarset{}, m.Decls[2].(*ast.TypeDecl).Value)

	a := m.Decls[3].(*ast.TypeDecl).Value.(*ast.Array)
	require.IsType(t, &ast.TypeExprID{}, a.Index)

	r := m.Decls[4].(*ast.TypeDecl).Value.(*ast.Record)
	require.Len(t, r.Fields, 2)
	require.Equal(t, "second", r.Fields[1].Name)
}

func TestParseRuleset(t *testing.T) {
	m := parse(t, `
var x : 0 .. 3;

ruleset i : 0 .. 3 do
  rule "set" true ==> begin
    x := i;
  end;
end;
`)
	require.Len(t, m.Rules, 1)
	rs, ok := m.Rules[0].(*ast.Ruleset)
	require.True(t, ok)
	require.Len(t, rs.Quantifiers, 1)
	require.Equal(t, "i", rs.Quantifiers[0].Name)
	require.Len(t, rs.Rules, 1)
}

func TestParseAliasRule(t *testing.T) {
	m := parse(t, `
var xs : array [0 .. 1] of 0 .. 5;

alias head : xs[0] do
  rule "bump" head < 5 ==> begin
    head := head + 1;
  end;
end;
`)
	require.Len(t, m.Rules, 1)
	al, ok := m.Rules[0].(*ast.AliasRule)
	require.True(t, ok)
	require.Len(t, al.Aliases, 1)
	require.Equal(t, "head", al.Aliases[0].Name)
}

func TestParseStatements(t *testing.T) {
	m := parse(t, `
var x : 0 .. 10;
var ys : array [0 .. 3] of 0 .. 10;

rule "all" begin
  if x = 0 then
    x := 1;
  elsif x = 1 then
    x := 2;
  else
    x := 0;
  end;
  for i : 0 .. 3 do
    ys[i] := x;
  end;
  while x > 0 do
    x := x - 1;
  end;
  switch x
  case 0, 1:
    x := 2;
  else
    x := 0;
  end;
  clear ys;
  undefine x;
  assert x != 1 "never one";
  error "unreachable";
end;
`)
	r := m.Rules[0].(*ast.SimpleRule)
	require.Nil(t, r.Guard)
	require.Len(t, r.Body, 8)
	require.IsType(t, &ast.If{}, r.Body[0])
	require.IsType(t, &ast.For{}, r.Body[1])
	require.IsType(t, &ast.While{}, r.Body[2])
	require.IsType(t, &ast.Switch{}, r.Body[3])
	require.IsType(t, &ast.Clear{}, r.Body[4])
	require.IsType(t, &ast.Undefine{}, r.Body[5])
	require.IsType(t, &ast.PropertyStmt{}, r.Body[6])
	require.IsType(t, &ast.ErrorStmt{}, r.Body[7])

	ifStmt := r.Body[0].(*ast.If)
	require.Len(t, ifStmt.Clauses, 3)
	require.NotNil(t, ifStmt.Clauses[0].Condition)
	require.Nil(t, ifStmt.Clauses[2].Condition)
}

func TestParseFunctions(t *testing.T) {
	m := parse(t, `
function clamp(v : 0 .. 20) : 0 .. 10;
begin
  if v > 10 then
    return 10;
  end;
  return v;
end;

procedure bump(var target : 0 .. 10);
begin
  target := target + 1;
end;
`)
	require.Len(t, m.Functions, 2)

	f := m.Functions[0]
	require.Equal(t, "clamp", f.Name)
	require.NotNil(t, f.ReturnType)
	require.Len(t, f.Parameters, 1)
	require.False(t, f.Parameters[0].ByRef)

	p := m.Functions[1]
	require.Equal(t, "bump", p.Name)
	require.Nil(t, p.ReturnType)
	require.True(t, p.Parameters[0].ByRef)
}

func TestParseExpressionPrecedence(t *testing.T) {
	m := parse(t, `invariant "p" 1 + 2 * 3 = 7 & !false -> true;`)
	pr := m.Rules[0].(*ast.PropertyRule)

	// -> binds loosest.
	impl, ok := pr.Property.Expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.Implication, impl.Op)

	and, ok := impl.LHS.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.And, and.Op)

	eq, ok := and.LHS.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.Eq, eq.Op)

	sum, ok := eq.LHS.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.Add, sum.Op)
	require.Equal(t, ast.Mul, sum.RHS.(*ast.Binary).Op)
}

func TestParseQuantifiedExpressions(t *testing.T) {
	m := parse(t, `
var ys : array [0 .. 3] of 0 .. 10;
invariant "all small" forall i : 0 .. 3 do ys[i] < 10 end;
invariant "one zero" exists i := 0 to 3 by 1 do ys[i] = 0 end;
`)
	q1 := m.Rules[0].(*ast.PropertyRule).Property.Expr.(*ast.Quantified)
	require.Equal(t, ast.Forall, q1.Kind)
	require.NotNil(t, q1.Quantifier.Type)

	q2 := m.Rules[1].(*ast.PropertyRule).Property.Expr.(*ast.Quantified)
	require.Equal(t, ast.Exists, q2.Kind)
	require.Nil(t, q2.Quantifier.Type)
	require.NotNil(t, q2.Quantifier.From)
	require.NotNil(t, q2.Quantifier.Step)
}

func TestParseErrors(t *testing.T) {
	_, errs := New(`var x : ;`).Parse()
	require.NotEmpty(t, errs)
	require.Positive(t, errs[0].Line)

	_, errs = New(`rule "r" x = ==> begin end;`).Parse()
	require.NotEmpty(t, errs)
}

func TestParseDesignators(t *testing.T) {
	m := parse(t, `
type pair : record a : 0 .. 3; b : 0 .. 3; end;
var ps : array [0 .. 1] of pair;

rule "write" begin
  ps[0].a := ps[1].b;
end;
`)
	r := m.Rules[0].(*ast.SimpleRule)
	asg := r.Body[0].(*ast.Assignment)

	f, ok := asg.LHS.(*ast.Field)
	require.True(t, ok)
	require.Equal(t, "a", f.FieldName)
	_, ok = f.Record.(*ast.Element)
	require.True(t, ok)
}
