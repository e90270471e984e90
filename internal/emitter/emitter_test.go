package emitter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/config"
	"github.com/Siddhesh-Ghadi/rumur/internal/parser"
	"github.com/Siddhesh-Ghadi/rumur/internal/test"
	"github.com/Siddhesh-Ghadi/rumur/internal/validator"
)

func compile(t *testing.T, source string) *ast.Model {
	t.Helper()
	m, errs := parser.New(source).Parse()
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs[0])
	}
	if errs := validator.Resolve(m); len(errs) > 0 {
		t.Fatalf("resolve: %v", errs[0])
	}
	if errs := validator.Validate(m); len(errs) > 0 {
		t.Fatalf("validate: %v", errs[0])
	}
	m.Reindex()
	return m
}

func emit(t *testing.T, source string, mutate func(*config.Config)) string {
	t.Helper()
	m := compile(t, source)
	cfg := config.Default()
	cfg.Threads = 2
	if mutate != nil {
		mutate(&cfg)
	}
	var buf bytes.Buffer
	if err := Emit(&buf, m, cfg); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	return buf.String()
}

const counterModel = `
var x : 0 .. 1;

startstate begin
  x := 0;
end;

rule "up" x = 0 ==> begin
  x := 1;
end;

invariant "bounded" x <= 1;
`

func TestTemplateSubstitution(t *testing.T) {
	out := emit(t, counterModel, func(c *config.Config) {
		c.MaxErrors = 5
		c.SetExpandThreshold = 70
		c.Color = config.Off
	})

	test.AssertContains(t, out, "#define STATE_SIZE_BITS 2")
	test.AssertContains(t, out, "#define THREADS 2")
	test.AssertContains(t, out, "#define MAX_ERRORS 5ul")
	test.AssertContains(t, out, "#define SET_EXPAND_THRESHOLD 70")
	test.AssertContains(t, out, "#define COLOR COLOR_OFF")
	test.AssertContains(t, out, "#define ASSUMPTION_COUNT 0")
	test.AssertContains(t, out, "typedef int64_t value_t;")
}

func TestTemplateRuntimePresent(t *testing.T) {
	out := emit(t, counterModel, nil)

	// The generation-independent kernel rides along verbatim.
	for _, symbol := range []string{
		"MurmurHash64A",
		"static bool set_insert(struct state *s, size_t *count)",
		"static void set_migrate(void)",
		"static void *refcounted_ptr_get(refcounted_ptr_t *p)",
		"static void rendezvous_opt_out(void)",
		"static value_t decode_value(value_t lb, value_t ub, value_t v)",
		"static void sandbox(void)",
		"int main(void)",
	} {
		test.AssertContains(t, out, symbol)
	}
}

func TestGeneratedRuleFunctions(t *testing.T) {
	out := emit(t, counterModel, nil)

	test.AssertContains(t, out, "static void startstate0(struct state *s)")
	test.AssertContains(t, out, "static bool guard0(const struct state *s)")
	test.AssertContains(t, out, "static void rule0(struct state *s)")
	test.AssertContains(t, out, "static bool property0(const struct state *s)")

	// State variable accesses go through handles with the variable's
	// layout baked in.
	test.AssertContains(t, out,
		"((struct handle){ .base = (uint8_t*)s->data, .offset = 0ul, .width = 2ul })")
	test.AssertContains(t, out, "handle_read(s, VALUE_C(0), VALUE_C(1), ")
	test.AssertContains(t, out, "handle_write(s, VALUE_C(0), VALUE_C(1), ")
}

func TestGeneratedExploreAndInit(t *testing.T) {
	out := emit(t, counterModel, nil)

	test.AssertContains(t, out, "static void init(void)")
	test.AssertContains(t, out, "static _Noreturn void explore(void)")
	test.AssertContains(t, out, "queue_enqueue(s, 0)")
	test.AssertContains(t, out, "state_hash(n) % THREADS")
	test.AssertContains(t, out, "if (guard0(s)) {")
	test.AssertContains(t, out, "rules_fired_local++;")
	test.AssertContains(t, out, "if (++states_handled % PROGRESS_INTERVAL == 0) {")
	test.AssertContains(t, out, `error(s, true, "invariant \"bounded\" failed");`)
	test.AssertContains(t, out, "start_secondary_threads();")
}

func TestConstantEmission(t *testing.T) {
	out := emit(t, `
const N : 3;
var x : 0 .. N;
startstate begin x := N; end;
`, nil)

	test.AssertContains(t, out, "static const value_t ru_N __attribute__((unused)) = VALUE_C(3);")
	// Uses of the constant fold to literals.
	test.AssertContains(t, out, "handle_write(s, VALUE_C(0), VALUE_C(3), ")
}

func TestQuantifiedRules(t *testing.T) {
	out := emit(t, `
var x : 0 .. 4;
startstate begin x := 0; end;
ruleset i : 1 .. 4 do
  rule "set" true ==> begin x := i; end;
end;
`, nil)

	test.AssertContains(t, out, "static bool guard0(const struct state *s, value_t ru_i)")
	test.AssertContains(t, out, "static void rule0(struct state *s, value_t ru_i)")
	test.AssertContains(t, out,
		"for (value_t ru_i = VALUE_C(1); ru_i <= VALUE_C(4); ru_i += VALUE_C(1))")
	test.AssertContains(t, out, "if (guard0(s, ru_i)) {")
}

func TestArrayAndRecordAccessPaths(t *testing.T) {
	out := emit(t, `
type slot : record owner : 0 .. 2; end;
var table : array [0 .. 1] of slot;
startstate begin
  table[0].owner := 1;
end;
`, nil)

	// Element then field: handle_index composed under handle_narrow.
	test.AssertContains(t, out, "handle_narrow(handle_index(s, 2ul, VALUE_C(0), VALUE_C(1), ")
}

func TestQuantifiedExpressionEmission(t *testing.T) {
	out := emit(t, `
var ys : array [0 .. 3] of 0 .. 5;
startstate begin
  for i : 0 .. 3 do ys[i] := 0; end;
end;
invariant "all" forall i : 0 .. 3 do ys[i] <= 5 end;
`, nil)

	test.AssertContains(t, out, "({ bool result0 = true; for (value_t ru_i = VALUE_C(0);")
}

func TestNonConstantStepQuantifier(t *testing.T) {
	out := emit(t, `
var x : 0 .. 10;
var d : -2 .. 2;

startstate begin
  d := 1;
  x := 0;
end;

rule "sweep" true ==> begin
  for i := 10 to 0 by d do
    x := i;
  end;
end;
`, nil)

	// The step is read from the state at runtime, so its sign must pick the
	// loop direction dynamically.
	test.AssertContains(t, out,
		"ru_i_step > 0 ? ru_i <= VALUE_C(0) : ru_i >= VALUE_C(0); ru_i += ru_i_step)")
}

func TestConstantNegativeStepQuantifier(t *testing.T) {
	out := emit(t, `
var x : 0 .. 10;
startstate begin x := 0; end;
rule "down" true ==> begin
  for i := 10 to 0 by -1 do
    x := i;
  end;
end;
`, nil)

	test.AssertContains(t, out,
		"for (value_t ru_i = VALUE_C(10); ru_i >= VALUE_C(0); ru_i += VALUE_C(-1))")
}

func TestArithmeticHelpers(t *testing.T) {
	out := emit(t, `
var x : 0 .. 10;
startstate begin x := 0; end;
rule "math" true ==> begin
  x := (x + 1) * 2 / 2 - 1 + x % 3;
end;
`, nil)

	for _, call := range []string{"add(s, ", "sub(s, ", "mul(s, ", "divide(s, ", "mod(s, "} {
		test.AssertContains(t, out, call)
	}
}

func TestStatePrinterEmission(t *testing.T) {
	out := emit(t, `
type color : enum { red, green };
var c : color;
var board : array [0 .. 2] of 0 .. 5;
startstate begin c := red; end;
`, nil)

	test.AssertContains(t, out,
		"static void state_print(const struct state *previous, const struct state *s)")
	test.AssertContains(t, out, `case VALUE_C(1): printf("%s", "red"); break;`)
	test.AssertContains(t, out, `case VALUE_C(2): printf("%s", "green"); break;`)
	// Array printing loops over the index domain.
	test.AssertContains(t, out, "for (size_t i0 = 0; i0 < 3ull; i0++)")
	test.AssertContains(t, out, "<state_component name=")
}

func TestMachineReadableAndDiffDefines(t *testing.T) {
	out := emit(t, counterModel, func(c *config.Config) {
		c.MachineReadable = true
		c.CounterexampleDiff = false
	})
	test.AssertContains(t, out, "#define MACHINE_READABLE_OUTPUT 1")
	test.AssertContains(t, out, "#define COUNTEREXAMPLE_DIFF 0")
}

func TestValueTypeSelection(t *testing.T) {
	out := emit(t, counterModel, func(c *config.Config) {
		c.ValueType = "int16"
	})
	test.AssertContains(t, out, "typedef int16_t value_t;")
	test.AssertContains(t, out, "#define VALUE_C(x) INT16_C(x)")
}

func TestFunctionEmission(t *testing.T) {
	out := emit(t, `
var x : 0 .. 10;

function next(v : 0 .. 10) : 0 .. 10;
begin
  return v;
end;

procedure reset(var target : 0 .. 10);
begin
  target := 0;
end;

startstate begin x := 0; end;
rule "r" true ==> begin
  x := next(x);
  reset(x);
end;
`, nil)

	test.AssertContains(t, out, "static value_t ru_f_next(const struct state *s, value_t ru_v)")
	test.AssertContains(t, out, "static void ru_f_reset(const struct state *s, struct handle ru_target)")
	// The by-reference call site passes the argument's handle.
	test.AssertContains(t, out, "(void)ru_f_reset(s, ((struct handle){ .base = (uint8_t*)s->data,")
}

func TestAssumptionEmission(t *testing.T) {
	out := emit(t, `
var x : 0 .. 3;
startstate begin x := 0; end;
rule "up" x < 3 ==> begin x := x + 1; end;
assume "small" x <= 1;
`, nil)

	test.AssertContains(t, out, "#define ASSUMPTION_COUNT 1")
	test.AssertContains(t, out, "assumption_failed();")
}

func TestEmittedCodeHasBalancedBraces(t *testing.T) {
	out := emit(t, counterModel, nil)
	if n := strings.Count(out, "{") - strings.Count(out, "}"); n != 0 {
		t.Errorf("unbalanced braces in emitted C: %+d", n)
	}
}
