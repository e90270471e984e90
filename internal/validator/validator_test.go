package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/parser"
)

func parse(t *testing.T, source string) *ast.Model {
	t.Helper()
	m, errs := parser.New(source).Parse()
	require.Empty(t, errs)
	return m
}

func resolveOK(t *testing.T, source string) *ast.Model {
	t.Helper()
	m := parse(t, source)
	require.Empty(t, Resolve(m))
	return m
}

func TestResolveBindsReferents(t *testing.T) {
	m := resolveOK(t, `
const N : 3;
var x : 0 .. N;

rule "bump" x < N ==> begin
  x := x + 1;
end;
`)
	require.Empty(t, Validate(m))

	r := m.Rules[0].(*ast.SimpleRule)
	guard := r.Guard.(*ast.Binary)
	id := guard.LHS.(*ast.ExprID)
	require.NotNil(t, id.Referent)
	v, ok := id.Referent.(*ast.VarDecl)
	require.True(t, ok)
	require.True(t, v.StateVariable)

	n := guard.RHS.(*ast.ExprID)
	_, ok = n.Referent.(*ast.ConstDecl)
	require.True(t, ok)
}

func TestResolveUnknownSymbol(t *testing.T) {
	m := parse(t, `
var x : 0 .. 1;
rule "r" begin
  x := y;
end;
`)
	errs := Resolve(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "unknown symbol: y")
}

func TestResolveEnumMembers(t *testing.T) {
	m := resolveOK(t, `
type color : enum { red, green };
var c : color;

startstate begin
  c := red;
end;

invariant "not green" c != green;
`)
	require.Empty(t, Validate(m))
}

func TestResolveBuiltinBoolean(t *testing.T) {
	m := resolveOK(t, `
var flag : boolean;

startstate begin
  flag := true;
end;

rule "flip" flag ==> begin
  flag := false;
end;
`)
	require.Empty(t, Validate(m))
}

func TestValidateNonConstantConst(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 1;
const Y : 1;

rule "r" true ==> begin
  x := 1;
end;
`)
	// Rewrite Y's value to a non-constant expression.
	c := m.Decls[1].(*ast.ConstDecl)
	c.Value = &ast.ExprID{Name: "x", Referent: m.Decls[0]}

	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "not a constant")
}

func TestValidateReturnWithValueInRule(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 1;

rule "r" true ==> begin
  return 1;
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "return statement in rule or startstate returns a value")
}

func TestValidateReturnInsideCalledFunctionAllowed(t *testing.T) {
	// The check must stop at function boundaries: a function with a value
	// return invoked from a rule is fine.
	m := resolveOK(t, `
var x : 0 .. 10;

function next(v : 0 .. 10) : 0 .. 10;
begin
  return v + 1;
end;

rule "r" x < 10 ==> begin
  x := next(x);
end;
`)
	require.Empty(t, Validate(m))
}

func TestValidateNonBooleanGuard(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 5;

rule "r" x + 1 ==> begin
  x := 0;
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "non-boolean")
}

func TestValidateNonConstantRulesetQuantifier(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 5;

ruleset i := 0 to x do
  rule "r" true ==> begin
    x := 0;
  end;
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "non-constant quantifier")
}

func TestValidateAssignToReadonly(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 5;

ruleset i : 0 .. 2 do
  rule "r" true ==> begin
    i := 1;
  end;
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "lvalue")
}

func TestValidateMissingField(t *testing.T) {
	m := resolveOK(t, `
type pair : record a : 0 .. 3; end;
var p : pair;
var x : 0 .. 3;

rule "bad field" true ==> begin
  x := p.missing;
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "no field named")
}

func TestValidateIndexTypeMismatch(t *testing.T) {
	m := resolveOK(t, `
type color : enum { red, green };
type flag : enum { off, on };
var board : array [color] of 0 .. 3;
var f : flag;
var x : 0 .. 3;

rule "bad index" true ==> begin
  x := board[f];
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "array indexed by incompatible type")
}

func TestValidateIndexTypeMatches(t *testing.T) {
	m := resolveOK(t, `
type color : enum { red, green };
var board : array [color] of 0 .. 3;
var x : 0 .. 3;

rule "good index" true ==> begin
  x := board[red];
end;
`)
	require.Empty(t, Validate(m))
}

func TestValidateArgumentCount(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 10;

function next(v : 0 .. 10) : 0 .. 10;
begin
  return v;
end;

rule "r" true ==> begin
  x := next(x, x);
end;
`)
	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "arguments")
}

func TestValidateElseNotLast(t *testing.T) {
	m := resolveOK(t, `
var x : 0 .. 1;
rule "r" true ==> begin
  if x = 0 then
    x := 1;
  end;
end;
`)
	// Force a malformed clause list: condition-less clause first.
	r := m.Rules[0].(*ast.SimpleRule)
	ifStmt := r.Body[0].(*ast.If)
	ifStmt.Clauses = append([]ast.IfClause{{Body: nil}}, ifStmt.Clauses...)

	errs := Validate(m)
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Error(), "not last")
}
