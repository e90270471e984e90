package emitter

import (
	"fmt"
	"strings"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// State printer generation. The generated state_print walks the model's
// state variables in declaration order, printing each simple component
// according to its type. Array components indexed by ranges and scalarsets
// print through generated loops with dynamically computed handles;
// enum-indexed arrays and record fields unroll statically. When a previous
// state is supplied, unchanged components are elided. Machine-readable
// mode swaps the human format for XML state_component tags.

// printfCall is a dynamically assembled printf: a format string made of
// literal pieces and embedded value directives, plus the matching argument
// expressions.
type printfCall struct {
	format []string
	args   []string
}

func (p printfCall) str(s string) printfCall {
	q := p.clone()
	q.format = append(q.format, escapeC(s))
	return q
}

func (p printfCall) val(expr string) printfCall {
	q := p.clone()
	q.format = append(q.format, `%" PRIVAL "`)
	q.args = append(q.args, expr)
	return q
}

func (p printfCall) clone() printfCall {
	q := printfCall{
		format: make([]string, len(p.format)),
		args:   make([]string, len(p.args)),
	}
	copy(q.format, p.format)
	copy(q.args, p.args)
	return q
}

// render emits the call as a C statement fragment.
func (p printfCall) render() string {
	var b strings.Builder
	b.WriteString(`printf("`)
	for _, f := range p.format {
		b.WriteString(f)
	}
	b.WriteString(`"`)
	for _, a := range p.args {
		b.WriteString(", ")
		b.WriteString(a)
	}
	b.WriteString(")")
	return b.String()
}

func (g *generator) emitStatePrint() {
	g.open("static void state_print(const struct state *previous, const struct state *s) {")
	if !g.cfg.CounterexampleDiff {
		g.line("previous = NULL;")
	}
	for _, v := range g.m.StateVariables() {
		name := printfCall{}.str(v.Name)
		g.emitPrintComponent(name, v.Type, fmt.Sprintf("%dul", v.Offset))
	}
	g.close("}")
	g.printf("\n")
}

// emitPrintComponent prints one component whose bit offset within the
// state is the C expression offset.
func (g *generator) emitPrintComponent(name printfCall, t ast.TypeExpr, offset string) {
	switch rt := t.Resolve().(type) {
	case *ast.Array:
		g.emitPrintArray(name, rt, offset)

	case *ast.Record:
		fieldOffset := offset
		for _, f := range rt.Fields {
			g.emitPrintComponent(name.str("."+f.Name), f.Type, fieldOffset)
			fieldOffset = fmt.Sprintf("%s + %dul", fieldOffset, f.Type.Width())
		}

	default:
		g.emitPrintScalar(name, rt, offset, t.Width())
	}
}

func (g *generator) emitPrintArray(name printfCall, a *ast.Array, offset string) {
	elementWidth := a.Element.Width()

	if e, ok := a.Index.Resolve().(*ast.Enum); ok {
		for i, m := range e.Members {
			elemOffset := fmt.Sprintf("%s + %dul", offset, uint64(i)*elementWidth)
			g.emitPrintComponent(name.str("["+m.Name+"]"), a.Element, elemOffset)
		}
		return
	}

	it := a.Index.Resolve()
	lb, ub := it.LowerBound(), it.UpperBound()
	count := ub - lb + 1

	i := fmt.Sprintf("i%d", g.varCounter)
	g.varCounter++

	g.open("{")
	g.open("for (size_t %s = 0; %s < %dull; %s++) {", i, i, count, i)

	elemName := name.str("[").val(fmt.Sprintf("(value_t)%s + VALUE_C(%d)", i, lb)).str("]")
	elemOffset := fmt.Sprintf("%s + %s * %dul", offset, i, elementWidth)
	g.emitPrintComponent(elemName, a.Element, elemOffset)

	g.close("}")
	g.close("}")
}

func (g *generator) emitPrintScalar(name printfCall, rt ast.TypeExpr, offset string, width uint64) {
	g.open("{")
	g.line("struct handle h = { .base = (uint8_t*)s->data, .offset = %s, .width = %dul };",
		offset, width)
	g.line("value_t v = handle_read_raw(h);")
	g.line("bool changed = true;")
	g.open("if (previous != NULL) {")
	g.line("struct handle ph = { .base = (uint8_t*)previous->data, .offset = %s, .width = %dul };",
		offset, width)
	g.line("changed = handle_read_raw(ph) != v;")
	g.close("}")
	g.open("if (changed) {")

	g.open("if (MACHINE_READABLE_OUTPUT) {")
	g.line(`printf("<state_component name=\"");`)
	g.line("%s;", name.render())
	g.line(`printf("\" value=\"");`)
	g.close("} else {")
	g.indent++
	g.line("%s;", name.render())
	g.line(`printf(": ");`)
	g.close("}")

	g.open("if (v == 0) {")
	g.line(`printf("Undefined");`)
	g.close("} else {")
	g.indent++
	if e, ok := rt.(*ast.Enum); ok {
		g.open("switch (v) {")
		for i, m := range e.Members {
			g.line("case VALUE_C(%d): printf(\"%%s\", \"%s\"); break;", i+1, escapeC(m.Name))
		}
		g.line(`default: printf("<invalid>"); break;`)
		g.close("}")
	} else {
		g.line(`printf("%%" PRIVAL, decode_value(VALUE_C(%d), VALUE_C(%d), v));`,
			rt.LowerBound(), rt.UpperBound())
	}
	g.close("}")

	g.open("if (MACHINE_READABLE_OUTPUT) {")
	g.line(`printf("\"/>\n");`)
	g.close("} else {")
	g.indent++
	g.line(`printf("\n");`)
	g.close("}")

	g.close("}")
	g.close("}")
}
