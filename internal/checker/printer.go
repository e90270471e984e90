package checker

import (
	"fmt"
	"io"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
)

// State printing walks the model's state variables in declaration order
// and prints each component according to its type. With a previous state
// available, unchanged components are elided (counterexample diff mode).
// Machine-readable mode emits XML state_component tags instead.

// printState writes every component of s, comparing against previous when
// diff mode is on. The caller holds the print lock.
func (c *Checker) printState(w io.Writer, s, previous *State) {
	if !c.cfg.CounterexampleDiff {
		previous = nil
	}
	for _, v := range c.model.StateVariables() {
		c.printComponent(w, v.Name, v.Type, v.Offset, s, previous)
	}
}

// printComponent prints one named component at the given state offset.
func (c *Checker) printComponent(w io.Writer, name string, t ast.TypeExpr, offset uint64, s, previous *State) {
	switch rt := t.Resolve().(type) {
	case *ast.Array:
		it := rt.Index.Resolve()
		ew := rt.Element.Width()
		if e, ok := it.(*ast.Enum); ok {
			for i, m := range e.Members {
				c.printComponent(w, fmt.Sprintf("%s[%s]", name, m.Name),
					rt.Element, offset+uint64(i)*ew, s, previous)
			}
			return
		}
		lb, ub := it.LowerBound(), it.UpperBound()
		for i := lb; i <= ub; i++ {
			c.printComponent(w, fmt.Sprintf("%s[%d]", name, i),
				rt.Element, offset+uint64(i-lb)*ew, s, previous)
		}

	case *ast.Record:
		fieldOffset := offset
		for _, f := range rt.Fields {
			c.printComponent(w, name+"."+f.Name, f.Type, fieldOffset, s, previous)
			fieldOffset += f.Type.Width()
		}

	default:
		width := t.Width()
		raw := s.Handle(offset, width).ReadRaw()
		if previous != nil {
			if previous.Handle(offset, width).ReadRaw() == raw {
				return
			}
		}
		c.printScalar(w, name, rt, raw)
	}
}

// printScalar prints one simple component from its raw encoding.
func (c *Checker) printScalar(w io.Writer, name string, rt ast.TypeExpr, raw uint64) {
	value := "Undefined"
	if raw != 0 {
		if e, ok := rt.(*ast.Enum); ok && int64(raw)-1 < int64(len(e.Members)) {
			value = e.Members[raw-1].Name
		} else {
			value = fmt.Sprintf("%d", int64(raw)-1+rt.LowerBound())
		}
	}

	if c.cfg.MachineReadable {
		fmt.Fprintf(w, "<state_component name=\"%s\" value=\"%s\"/>\n", name, value)
	} else {
		fmt.Fprintf(w, "%s: %s\n", name, value)
	}
}
