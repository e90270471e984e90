package ast

// Model is a complete Murphi model: declarations, functions and rules in
// source order.
type Model struct {
	Loc       Loc
	Decls     []Decl
	Functions []*Function
	Rules     []Rule

	// SizeBits is the total packed state width, computed by Reindex.
	SizeBits uint64
}

func (m *Model) Pos() Loc { return m.Loc }

func (m *Model) Clone() Node {
	c := &Model{Loc: m.Loc, SizeBits: m.SizeBits}
	c.Decls = cloneDecls(m.Decls)
	for _, f := range m.Functions {
		c.Functions = append(c.Functions, f.Clone().(*Function))
	}
	for _, r := range m.Rules {
		c.Rules = append(c.Rules, r.Clone().(Rule))
	}
	return c
}

func (m *Model) Equals(other Node) bool {
	o, ok := other.(*Model)
	if !ok || !eqDecls(m.Decls, o.Decls) ||
		len(m.Functions) != len(o.Functions) || len(m.Rules) != len(o.Rules) {
		return false
	}
	for i := range m.Functions {
		if !m.Functions[i].Equals(o.Functions[i]) {
			return false
		}
	}
	for i := range m.Rules {
		if !m.Rules[i].Equals(o.Rules[i]) {
			return false
		}
	}
	return true
}

func (m *Model) Children() []Node {
	var out []Node
	for _, d := range m.Decls {
		out = append(out, d)
	}
	for _, f := range m.Functions {
		out = append(out, f)
	}
	for _, r := range m.Rules {
		out = append(out, r)
	}
	return out
}

// StateVariables returns the model's state variables in declaration order.
func (m *Model) StateVariables() []*VarDecl {
	var out []*VarDecl
	for _, d := range m.Decls {
		if v, ok := d.(*VarDecl); ok && v.StateVariable {
			out = append(out, v)
		}
	}
	return out
}

// Reindex assigns each state variable its bit offset, the cumulative width
// of the variables declared before it, and recomputes SizeBits. It must be
// re-run after any rewrite that changes declarations or type widths.
func (m *Model) Reindex() {
	var offset uint64
	for _, v := range m.StateVariables() {
		v.Offset = offset
		offset += v.Width()
	}
	m.SizeBits = offset
}

// AssumptionCount returns the number of assumption properties anywhere in
// the model.
func (m *Model) AssumptionCount() uint64 {
	var count uint64
	Walk(m, func(n Node) bool {
		switch p := n.(type) {
		case *Property:
			if p.Category == Assumption {
				count++
			}
		case *PropertyStmt:
			if p.Property.Category == Assumption {
				count++
			}
			return false
		}
		return true
	})
	return count
}

// FlattenedRules returns the model's rules with AliasRule/Ruleset groups
// expanded.
func (m *Model) FlattenedRules() []Rule {
	var out []Rule
	for _, r := range m.Rules {
		out = append(out, r.Flatten()...)
	}
	return out
}
