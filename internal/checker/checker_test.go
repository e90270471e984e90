package checker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/config"
	"github.com/Siddhesh-Ghadi/rumur/internal/parser"
	"github.com/Siddhesh-Ghadi/rumur/internal/validator"
)

// compile runs the front end over a model source.
func compile(t *testing.T, source string) *ast.Model {
	t.Helper()
	m, errs := parser.New(source).Parse()
	require.Empty(t, errs)
	require.Empty(t, validator.Resolve(m))
	require.Empty(t, validator.Validate(m))
	m.Reindex()
	return m
}

// check explores a model and returns the checker plus its exit status and
// captured output.
func check(t *testing.T, source string, threads int) (*Checker, int, string, string) {
	t.Helper()
	m := compile(t, source)

	cfg := config.Default()
	cfg.Threads = threads

	var out, errOut bytes.Buffer
	ck := New(m, cfg, &out, &errOut)
	status := ck.Run()
	return ck, status, out.String(), errOut.String()
}

func TestTwoElementCounter(t *testing.T) {
	_, status, out, _ := check(t, `
var x : 0 .. 1;

startstate begin
  x := 0;
end;

rule "up" x = 0 ==> begin
  x := 1;
end;

rule "down" x = 1 ==> begin
  x := 0;
end;

invariant "bounded" x <= 1;
`, 1)

	require.Equal(t, 0, status)
	require.Contains(t, out, "2 states")
	require.Contains(t, out, "No error found.")
}

func TestDeliberateOverflowWrite(t *testing.T) {
	ck, status, _, errOut := check(t, `
var x : 0 .. 255;

startstate begin
  x := 0;
end;

rule "blow up" true ==> begin
  x := x + 300;
end;
`, 1)

	require.Equal(t, 1, status)
	require.EqualValues(t, 1, ck.Errors())
	require.EqualValues(t, 1, ck.StatesExplored())
	require.Contains(t, errOut, "write of out-of-range value")
}

func TestUndefinedRead(t *testing.T) {
	_, status, _, errOut := check(t, `
var x : 0 .. 10;
var y : 0 .. 10;

startstate begin
  x := 0;
end;

rule "copy" true ==> begin
  x := y + 1;
end;
`, 1)

	require.Equal(t, 1, status)
	require.Contains(t, errOut, "read of undefined value")
}

func TestUnreachableInvariant(t *testing.T) {
	ck, status, out, _ := check(t, `
var x : 0 .. 3;

startstate begin
  x := 0;
end;

rule "up" x = 0 ==> begin
  x := 1;
end;

rule "down" x = 1 ==> begin
  x := 0;
end;

invariant "never two" x != 2;
`, 1)

	require.Equal(t, 0, status)
	require.EqualValues(t, 0, ck.Errors())
	require.Contains(t, out, "2 states")
}

func TestViolatedInvariantTrace(t *testing.T) {
	_, status, _, errOut := check(t, `
var x : 0 .. 3;

startstate begin
  x := 0;
end;

rule "up" x < 3 ==> begin
  x := x + 1;
end;

invariant "small" x < 2;
`, 1)

	require.Equal(t, 1, status)
	require.Contains(t, errOut, "invariant \"small\"")
	require.Contains(t, errOut, "error trace")
	// The trace prints oldest-first and ends at the violating state.
	require.Contains(t, errOut, "x: 2")
	first := strings.Index(errOut, "x: 0")
	last := strings.Index(errOut, "x: 2")
	require.Greater(t, last, first)
}

func TestRulesetExploration(t *testing.T) {
	_, status, out, _ := check(t, `
var x : 0 .. 4;

startstate begin
  x := 0;
end;

ruleset i : 1 .. 4 do
  rule "jump" true ==> begin
    x := i;
  end;
end;
`, 1)

	require.Equal(t, 0, status)
	require.Contains(t, out, "5 states")
}

func TestRecordsAndArrays(t *testing.T) {
	_, status, out, _ := check(t, `
type slot : record owner : 0 .. 2; busy : boolean; end;
var table : array [0 .. 1] of slot;

startstate begin
  for i : 0 .. 1 do
    table[i].owner := 0;
    table[i].busy := false;
  end;
end;

ruleset i : 0 .. 1 do
  rule "claim" !table[i].busy ==> begin
    table[i].owner := 1;
    table[i].busy := true;
  end;

  rule "release" table[i].busy ==> begin
    table[i].owner := 0;
    table[i].busy := false;
  end;
end;
`, 1)

	require.Equal(t, 0, status)
	require.Contains(t, out, "4 states")
}

func TestAssumptionPrunes(t *testing.T) {
	// The assumption discards states with x > 1 silently, so the invariant
	// on those states never fires.
	ck, status, _, _ := check(t, `
var x : 0 .. 3;

startstate begin
  x := 0;
end;

rule "up" x < 3 ==> begin
  x := x + 1;
end;

assume "small states only" x <= 1;

invariant "would fail on two" x != 2;
`, 1)

	require.Equal(t, 0, status)
	require.EqualValues(t, 0, ck.Errors())
}

func TestErrorStatement(t *testing.T) {
	_, status, _, errOut := check(t, `
var x : 0 .. 1;

startstate begin
  x := 0;
end;

rule "fail" x = 0 ==> begin
  error "boom";
end;
`, 1)

	require.Equal(t, 1, status)
	require.Contains(t, errOut, "boom")
}

func TestFunctionsAndProcedures(t *testing.T) {
	_, status, out, _ := check(t, `
var x : 0 .. 10;

function capped(v : 0 .. 20) : 0 .. 10;
begin
  if v > 10 then
    return 10;
  end;
  return v;
end;

procedure reset(var target : 0 .. 10);
begin
  target := 0;
end;

startstate begin
  x := 0;
end;

rule "grow" x < 10 ==> begin
  x := capped(x + 7);
end;

rule "reset" x = 10 ==> begin
  reset(x);
end;
`, 1)

	require.Equal(t, 0, status)
	// States: 0, 7, 10.
	require.Contains(t, out, "3 states")
}

func TestUndefineAndIsUndefined(t *testing.T) {
	_, status, out, _ := check(t, `
var x : 0 .. 3;

startstate begin
  x := 1;
end;

rule "drop" !isundefined(x) ==> begin
  undefine x;
end;

rule "revive" isundefined(x) ==> begin
  x := 1;
end;
`, 1)

	require.Equal(t, 0, status)
	require.Contains(t, out, "2 states")
}

func TestMultithreadedExploration(t *testing.T) {
	// A model big enough to leave warmup. The chain plus a toggled flag
	// gives 2 * 201 reachable states.
	_, status, out, _ := check(t, `
var x : 0 .. 200;
var flag : boolean;

startstate begin
  x := 0;
  flag := false;
end;

rule "walk" x < 200 ==> begin
  x := x + 1;
end;

rule "toggle on" !flag ==> begin
  flag := true;
end;

rule "toggle off" flag ==> begin
  flag := false;
end;

invariant "bounded" x <= 200;
`, 4)

	require.Equal(t, 0, status)
	require.Contains(t, out, "402 states")
}

func TestExplorationMatchesTransitiveClosure(t *testing.T) {
	// Modular counter: the reachable set is exactly {0..6}.
	ck, status, _, _ := check(t, `
var x : 0 .. 6;

startstate begin
  x := 0;
end;

rule "step" true ==> begin
  x := (x + 1) % 7;
end;
`, 1)

	require.Equal(t, 0, status)
	require.EqualValues(t, 7, ck.StatesExplored())
}

func TestStatePrinting(t *testing.T) {
	m := compile(t, `
type color : enum { red, green };
var c : color;
var n : 3 .. 9;
`)
	cfg := config.Default()

	var out bytes.Buffer
	ck := New(m, cfg, &out, &out)

	s := NewState(int((m.SizeBits + 7) / 8))
	vars := m.StateVariables()
	require.NoError(t, s.Handle(vars[0].Offset, vars[0].Type.Width()).Write(0, 1, 1)) // green
	require.NoError(t, s.Handle(vars[1].Offset, vars[1].Type.Width()).Write(3, 9, 5))

	ck.printState(&out, s, nil)
	text := out.String()
	require.Contains(t, text, "c: green")
	require.Contains(t, text, "n: 5")

	// Diff mode elides unchanged components.
	out.Reset()
	next := s.Dup()
	require.NoError(t, next.Handle(vars[1].Offset, vars[1].Type.Width()).Write(3, 9, 6))
	ck.printState(&out, next, s)
	text = out.String()
	require.NotContains(t, text, "c: green")
	require.Contains(t, text, "n: 6")
}

func TestMachineReadablePrinting(t *testing.T) {
	m := compile(t, `var n : 0 .. 3;`)
	cfg := config.Default()
	cfg.MachineReadable = true

	var out bytes.Buffer
	ck := New(m, cfg, &out, &out)

	s := NewState(int((m.SizeBits + 7) / 8))
	v := m.StateVariables()[0]
	require.NoError(t, s.Handle(v.Offset, v.Type.Width()).Write(0, 3, 2))

	ck.printState(&out, s, nil)
	require.Contains(t, out.String(), `<state_component name="n" value="2"/>`)
}

func TestMaxErrorsBudget(t *testing.T) {
	// With room for two errors, exploration continues past the single
	// violating state and drains the remaining queue before exiting.
	m := compile(t, `
var x : 0 .. 3;

startstate begin
  x := 0;
end;

rule "a" x = 0 ==> begin
  x := 1;
end;

rule "b" x = 1 ==> begin
  x := 2;
end;

invariant "never past zero" x < 2;
`)
	cfg := config.Default()
	cfg.Threads = 1
	cfg.MaxErrors = 2

	var out, errOut bytes.Buffer
	ck := New(m, cfg, &out, &errOut)
	status := ck.Run()

	require.Equal(t, 1, status)
	require.EqualValues(t, 1, ck.Errors())
}

func TestRuleLocalVariables(t *testing.T) {
	// Rule-local scratch storage: swap two state variables through a local.
	_, status, out, _ := check(t, `
var a : 0 .. 3;
var b : 0 .. 3;

startstate begin
  a := 1;
  b := 2;
end;

rule "swap" a != b ==> 
var tmp : 0 .. 3;
begin
  tmp := a;
  a := b;
  b := tmp;
end;
`, 1)

	require.Equal(t, 0, status)
	// (1,2) and (2,1).
	require.Contains(t, out, "2 states")
}

func TestForLoopWithRuntimeStep(t *testing.T) {
	// The loop step comes from the state, so its direction is only known at
	// runtime: with d = -1 the loop counts 4 down to 0, five iterations.
	_, status, out, _ := check(t, `
var x : 0 .. 10;
var d : -2 .. 2;

startstate begin
  d := -1;
  x := 0;
end;

rule "sweep" x = 0 ==> begin
  for i := 4 to 0 by d do
    x := x + 1;
  end;
end;
`, 1)

	require.Equal(t, 0, status)
	// The initial state and the state with x = 5.
	require.Contains(t, out, "2 states")
}

func TestAliasStatementAndRule(t *testing.T) {
	_, status, out, _ := check(t, `
var xs : array [0 .. 1] of 0 .. 3;

startstate begin
  xs[0] := 0;
  xs[1] := 0;
end;

alias head : xs[0] do
  rule "bump" head < 3 ==> begin
    alias h2 : head do
      h2 := h2 + 1;
    end;
  end;
end;
`, 1)

	require.Equal(t, 0, status)
	require.Contains(t, out, "4 states")
}
