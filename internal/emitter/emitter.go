// Package emitter translates a resolved model into a self-contained C
// program that explores the model's state space when compiled and run.
//
// The translation unit is the fixed runtime template (header.c, embedded at
// build time) preceded by a block of generated defines, and followed by the
// model-specific code: constants, functions, guard/rule/startstate/property
// functions, init, explore and the state printer.
package emitter

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/config"
)

//go:embed header.c
var runtimeTemplate string

// valueTypedefs maps --value-type spellings to the C typedef block.
var valueTypedefs = map[string]string{
	"int8": "typedef int8_t value_t;\n" +
		"#define PRIVAL PRId8\n" +
		"#define VALUE_MAX INT8_MAX\n" +
		"#define VALUE_MIN INT8_MIN\n" +
		"#define VALUE_C(x) INT8_C(x)\n",
	"int16": "typedef int16_t value_t;\n" +
		"#define PRIVAL PRId16\n" +
		"#define VALUE_MAX INT16_MAX\n" +
		"#define VALUE_MIN INT16_MIN\n" +
		"#define VALUE_C(x) INT16_C(x)\n",
	"int32": "typedef int32_t value_t;\n" +
		"#define PRIVAL PRId32\n" +
		"#define VALUE_MAX INT32_MAX\n" +
		"#define VALUE_MIN INT32_MIN\n" +
		"#define VALUE_C(x) INT32_C(x)\n",
	"int64": "typedef int64_t value_t;\n" +
		"#define PRIVAL PRId64\n" +
		"#define VALUE_MAX INT64_MAX\n" +
		"#define VALUE_MIN INT64_MIN\n" +
		"#define VALUE_C(x) INT64_C(x)\n",
}

// generator carries emission state.
type generator struct {
	w   *strings.Builder
	m   *ast.Model
	cfg config.Config

	startStates []*ast.StartState
	rules       []*ast.SimpleRule
	properties  []*ast.PropertyRule

	indent int

	// varCounter numbers invented loop variables in the state printer.
	varCounter int
}

// Emit writes the complete C translation unit for the model.
func Emit(w io.Writer, m *ast.Model, cfg config.Config) error {
	g := &generator{w: &strings.Builder{}, m: m, cfg: cfg}

	for _, r := range m.FlattenedRules() {
		switch rule := r.(type) {
		case *ast.StartState:
			g.startStates = append(g.startStates, rule)
		case *ast.SimpleRule:
			g.rules = append(g.rules, rule)
		case *ast.PropertyRule:
			g.properties = append(g.properties, rule)
		}
	}

	g.emitPrelude()
	g.w.WriteString(runtimeTemplate)
	g.emitPrototypes()
	g.emitConstants()
	g.emitFunctions()
	g.emitRules()
	g.emitInit()
	g.emitExplore()
	g.emitStatePrint()

	_, err := io.WriteString(w, g.w.String())
	return err
}

// ----------------------------------------------------------------------------
// Output helpers
// ----------------------------------------------------------------------------

func (g *generator) printf(format string, args ...interface{}) {
	fmt.Fprintf(g.w, format, args...)
}

func (g *generator) line(format string, args ...interface{}) {
	for i := 0; i < g.indent; i++ {
		g.w.WriteString("  ")
	}
	fmt.Fprintf(g.w, format, args...)
	g.w.WriteByte('\n')
}

func (g *generator) open(format string, args ...interface{}) {
	g.line(format, args...)
	g.indent++
}

func (g *generator) close(s string) {
	g.indent--
	g.line("%s", s)
}

// escapeC escapes a string for inclusion in a C string literal.
func escapeC(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ruleComment renders a rule's display name for a generated comment.
func ruleComment(kind, name string) string {
	if name == "" {
		return kind
	}
	return fmt.Sprintf("%s %q", kind, name)
}

// ----------------------------------------------------------------------------
// Prelude
// ----------------------------------------------------------------------------

func (g *generator) boolDefine(name string, v bool) {
	n := 0
	if v {
		n = 1
	}
	g.printf("#define %s %d\n", name, n)
}

func (g *generator) emitPrelude() {
	g.printf("/* Generated by rumur. Do not edit. */\n\n")

	g.printf("#include <assert.h>\n" +
		"#include <inttypes.h>\n" +
		"#include <limits.h>\n" +
		"#include <pthread.h>\n" +
		"#include <setjmp.h>\n" +
		"#include <stdarg.h>\n" +
		"#include <stdatomic.h>\n" +
		"#include <stdbool.h>\n" +
		"#include <stddef.h>\n" +
		"#include <stdint.h>\n" +
		"#include <stdio.h>\n" +
		"#include <stdlib.h>\n" +
		"#include <string.h>\n" +
		"#include <time.h>\n" +
		"#include <unistd.h>\n" +
		"\n" +
		"#ifdef __APPLE__\n" +
		"  #include <sandbox.h>\n" +
		"#endif\n" +
		"#ifdef __linux__\n" +
		"  #include <linux/filter.h>\n" +
		"  #include <linux/seccomp.h>\n" +
		"  #include <linux/version.h>\n" +
		"  #include <sys/prctl.h>\n" +
		"  #include <sys/syscall.h>\n" +
		"#endif\n\n")

	g.printf("#define STATE_SIZE_BITS %d\n", g.m.SizeBits)
	g.printf("#define THREADS %d\n", g.cfg.EffectiveThreads())
	g.printf("#define MAX_ERRORS %dul\n", g.cfg.MaxErrors)
	g.boolDefine("SANDBOX_ENABLED", g.cfg.Sandbox == config.On)
	g.printf("#define ASSUMPTION_COUNT %d\n", g.m.AssumptionCount())
	switch g.cfg.Color {
	case config.On:
		g.printf("#define COLOR COLOR_ON\n")
	case config.Off:
		g.printf("#define COLOR COLOR_OFF\n")
	default:
		g.printf("#define COLOR COLOR_AUTO\n")
	}
	g.printf("#define SET_CAPACITY %dul\n", g.cfg.SetCapacity)
	g.printf("#define SET_EXPAND_THRESHOLD %d\n", g.cfg.SetExpandThreshold)
	g.printf("#define TRACES_ENABLED %d\n", g.cfg.Traces)
	g.boolDefine("MACHINE_READABLE_OUTPUT", g.cfg.MachineReadable)
	g.boolDefine("COUNTEREXAMPLE_DIFF", g.cfg.CounterexampleDiff)
	g.boolDefine("OVERFLOW_CHECKS", g.cfg.OverflowChecks)
	g.printf("\n%s\n", valueTypedefs[g.cfg.ValueType])
}

// ----------------------------------------------------------------------------
// Prototypes
// ----------------------------------------------------------------------------

// emitPrototypes declares every generated function ahead of the bodies, so
// the bodies may call each other in any order.
func (g *generator) emitPrototypes() {
	g.printf("\n/* Prototypes for model-specific generated code. */\n\n")

	for _, f := range g.m.Functions {
		g.printf("%s;\n", g.functionSignature(f))
	}
	for i, r := range g.startStates {
		g.printf("static void startstate%d(struct state *s%s);\n",
			i, g.quantifierParams(r.Quantifiers))
	}
	for i, r := range g.rules {
		g.printf("static bool guard%d(const struct state *s%s);\n",
			i, g.quantifierParams(r.Quantifiers))
		g.printf("static void rule%d(struct state *s%s);\n",
			i, g.quantifierParams(r.Quantifiers))
	}
	for i, r := range g.properties {
		g.printf("static bool property%d(const struct state *s%s);\n",
			i, g.quantifierParams(r.Quantifiers))
	}
	g.printf("\n")
}

// quantifierParams renders the trailing parameters for a flattened rule's
// accumulated quantifiers.
func (g *generator) quantifierParams(quantifiers []*ast.Quantifier) string {
	var b strings.Builder
	for _, q := range quantifiers {
		fmt.Fprintf(&b, ", value_t ru_%s", q.Name)
	}
	return b.String()
}

// quantifierArgs renders the matching call-site arguments.
func (g *generator) quantifierArgs(quantifiers []*ast.Quantifier) string {
	var b strings.Builder
	for _, q := range quantifiers {
		fmt.Fprintf(&b, ", ru_%s", q.Name)
	}
	return b.String()
}

// quantBound renders one bound of a quantifier's domain, folding to a
// literal when the expression is constant so the loop header stays usable
// in contexts with no state in scope.
func (g *generator) quantBound(e ast.Expr) string {
	if e.Constant() {
		v, err := e.ConstantFold()
		if err == nil {
			return fmt.Sprintf("VALUE_C(%s)", v.String())
		}
	}
	return g.rvalue(e)
}

// quantLoop renders the C loop header over a quantifier's domain.
func (g *generator) quantLoop(q *ast.Quantifier) string {
	if q.Type != nil {
		t := q.Type.Resolve()
		return fmt.Sprintf("for (value_t ru_%s = VALUE_C(%d); ru_%s <= VALUE_C(%d); ru_%s += VALUE_C(1))",
			q.Name, t.LowerBound(), q.Name, t.UpperBound(), q.Name)
	}

	from, to := g.quantBound(q.From), g.quantBound(q.To)

	if q.Step == nil || q.Step.Constant() {
		step := "VALUE_C(1)"
		cmp := "<="
		if q.Step != nil {
			step = g.quantBound(q.Step)
			if v, err := q.Step.ConstantFold(); err == nil && v.Sign() < 0 {
				cmp = ">="
			}
		}
		return fmt.Sprintf("for (value_t ru_%s = %s; ru_%s %s %s; ru_%s += %s)",
			q.Name, from, q.Name, cmp, to, q.Name, step)
	}

	// The step is only known at runtime. Evaluate it once and let its sign
	// pick the loop direction, like the in-process interpreter does.
	return fmt.Sprintf(
		"for (value_t ru_%s = %s, ru_%s_step = %s; ru_%s_step > 0 ? ru_%s <= %s : ru_%s >= %s; ru_%s += ru_%s_step)",
		q.Name, from, q.Name, g.quantBound(q.Step),
		q.Name, q.Name, to, q.Name, to, q.Name, q.Name)
}

// quantHeader opens a C loop over the quantifier's domain.
func (g *generator) quantHeader(q *ast.Quantifier) {
	g.open("%s {", g.quantLoop(q))
}

// ----------------------------------------------------------------------------
// Constants
// ----------------------------------------------------------------------------

func (g *generator) emitConstants() {
	emitted := false
	for _, d := range g.m.Decls {
		c, ok := d.(*ast.ConstDecl)
		if !ok {
			continue
		}
		v, err := c.Value.ConstantFold()
		if err != nil {
			continue
		}
		g.printf("static const value_t ru_%s __attribute__((unused)) = VALUE_C(%s);\n",
			c.Name, v.String())
		emitted = true
	}
	if emitted {
		g.printf("\n")
	}
}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

func (g *generator) functionSignature(f *ast.Function) string {
	ret := "void"
	if f.ReturnType != nil {
		ret = "value_t"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "static %s ru_f_%s(const struct state *s", ret, f.Name)
	for _, p := range f.Parameters {
		if p.ByRef {
			fmt.Fprintf(&b, ", struct handle ru_%s", p.Decl.Name)
		} else {
			fmt.Fprintf(&b, ", value_t ru_%s", p.Decl.Name)
		}
	}
	b.WriteString(")")
	return b.String()
}

func (g *generator) emitFunctions() {
	for _, f := range g.m.Functions {
		g.open("%s {", g.functionSignature(f))
		g.emitLocalDecls(f.Decls)
		g.emitStmts(f.Body)
		g.close("}")
		g.printf("\n")
	}
}

// emitLocalDecls allocates backing storage and a handle for each local
// variable declaration.
func (g *generator) emitLocalDecls(decls []ast.Decl) {
	for _, d := range decls {
		v, ok := d.(*ast.VarDecl)
		if !ok {
			continue
		}
		width := v.Type.Width()
		g.line("uint8_t ru_%s_data[BITS_TO_BYTES(%d)] = { 0 };", v.Name, width)
		g.line("struct handle ru_%s __attribute__((unused)) = { .base = ru_%s_data, .offset = 0ul, .width = %dul };",
			v.Name, v.Name, width)
	}
}

// ----------------------------------------------------------------------------
// Rules
// ----------------------------------------------------------------------------

func (g *generator) emitRules() {
	for i, r := range g.startStates {
		g.printf("/* %s */\n", ruleComment("startstate", r.Name))
		g.open("static void startstate%d(struct state *s%s) {",
			i, g.quantifierParams(r.Quantifiers))
		g.emitLocalDecls(r.Decls)
		g.emitStmts(r.Body)
		g.close("}")
		g.printf("\n")
	}

	for i, r := range g.rules {
		g.printf("/* %s */\n", ruleComment("rule", r.Name))
		g.open("static bool guard%d(const struct state *s%s) {",
			i, g.quantifierParams(r.Quantifiers))
		if r.Guard == nil {
			g.line("return true;")
		} else {
			g.line("return %s;", g.rvalue(r.Guard))
		}
		g.close("}")

		g.open("static void rule%d(struct state *s%s) {",
			i, g.quantifierParams(r.Quantifiers))
		g.emitLocalDecls(r.Decls)
		g.emitStmts(r.Body)
		g.close("}")
		g.printf("\n")
	}

	for i, r := range g.properties {
		g.printf("/* %s */\n", ruleComment(r.Property.Category.String(), r.Name))
		g.open("static bool property%d(const struct state *s%s) {",
			i, g.quantifierParams(r.Quantifiers))
		g.line("return %s;", g.rvalue(r.Property.Expr))
		g.close("}")
		g.printf("\n")
	}
}

// ----------------------------------------------------------------------------
// init and explore
// ----------------------------------------------------------------------------

func (g *generator) emitInit() {
	g.open("static void init(void) {")
	for i, r := range g.startStates {
		g.line("/* %s */", ruleComment("startstate", r.Name))
		g.open("{")
		for _, q := range r.Quantifiers {
			g.quantHeader(q)
		}
		g.line("struct state *s = state_new();")
		g.line("startstate%d(s%s);", i, g.quantifierArgs(r.Quantifiers))
		g.line("size_t size;")
		g.open("if (set_insert(s, &size)) {")
		g.line("(void)queue_enqueue(s, 0);")
		g.close("} else {")
		g.indent++
		g.line("free(s);")
		g.close("}")
		for range r.Quantifiers {
			g.close("}")
		}
		g.close("}")
	}
	g.close("}")
	g.printf("\n")
}

func (g *generator) emitExplore() {
	g.open("static _Noreturn void explore(void) {")
	g.line("size_t queue_id = thread_id;")
	g.open("for (;;) {")
	g.printf("\n")

	g.open("if (error_count >= MAX_ERRORS) {")
	g.line("exit_with(EXIT_FAILURE);")
	g.close("}")
	g.printf("\n")

	g.line("const struct state *s = queue_dequeue(&queue_id);")
	g.open("if (s == NULL) {")
	g.line("break;")
	g.close("}")
	g.printf("\n")

	g.open("if (++states_handled %% PROGRESS_INTERVAL == 0) {")
	g.line("progress_report();")
	g.close("}")
	g.printf("\n")

	// Re-arm the checkpoint for this state; a recoverable error longjmps
	// back here and moves on to the next state.
	g.open("if (JMP_BUF_NEEDED) {")
	g.open("if (setjmp(checkpoint)) {")
	g.line("continue;")
	g.close("}")
	g.close("}")
	g.printf("\n")

	for i, r := range g.properties {
		label := ruleComment(r.Property.Category.String(), r.Name)
		g.line("/* %s */", label)
		g.open("{")
		for _, q := range r.Quantifiers {
			g.quantHeader(q)
		}
		g.open("if (!property%d(s%s)) {", i, g.quantifierArgs(r.Quantifiers))
		if r.Property.Category == ast.Assumption {
			g.line("assumption_failed();")
		} else {
			g.line("error(s, true, \"%s failed\");", escapeC(label))
		}
		g.close("}")
		for range r.Quantifiers {
			g.close("}")
		}
		g.close("}")
		g.printf("\n")
	}

	for i, r := range g.rules {
		g.line("/* %s */", ruleComment("rule", r.Name))
		g.open("{")
		for _, q := range r.Quantifiers {
			g.quantHeader(q)
		}
		g.open("if (guard%d(s%s)) {", i, g.quantifierArgs(r.Quantifiers))
		g.line("struct state *n = state_dup(s);")
		g.line("rule%d(n%s);", i, g.quantifierArgs(r.Quantifiers))
		g.line("size_t size;")
		g.open("if (set_insert(n, &size)) {")
		g.line("(void)queue_enqueue(n, state_hash(n) %% THREADS);")
		g.close("} else {")
		g.indent++
		g.line("free(n);")
		g.close("}")
		g.line("rules_fired_local++;")
		g.close("}")
		for range r.Quantifiers {
			g.close("}")
		}
		g.close("}")
		g.printf("\n")
	}

	g.open("if (phase == WARMUP && thread_id == 0 && queue_size(0) > THREADS * 8) {")
	g.line("phase = RUN;")
	g.line("start_secondary_threads();")
	g.close("}")

	g.close("}")
	g.printf("\n")
	g.line("exit_with(error_count == 0 ? EXIT_SUCCESS : EXIT_FAILURE);")
	g.close("}")
	g.printf("\n")
}
