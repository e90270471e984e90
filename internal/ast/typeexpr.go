package ast

import "math/big"

// ----------------------------------------------------------------------------
// Type Expressions
// ----------------------------------------------------------------------------

// TypeExpr is a type expression. Simple types (Range, Enum, Scalarset) have
// scalar values; Array and Record are aggregates addressed through handles.
type TypeExpr interface {
	Node

	// Width returns the number of bits a value of this type occupies in the
	// packed state vector. Scalar widths reserve encoding 0 for "undefined".
	Width() uint64

	// Count returns the number of distinct values of the type. For arrays
	// this is the number of elements; records report 0 as they are never
	// iterated.
	Count() uint64

	// LowerBound and UpperBound return the inclusive representable bounds of
	// a simple type. They panic for aggregates; callers guard with IsSimple.
	LowerBound() int64
	UpperBound() int64

	// Resolve dereferences named types to their underlying definition.
	Resolve() TypeExpr

	// IsSimple reports whether values of this type fit in a single scalar.
	IsSimple() bool

	typeExpr()
}

// Range is a bounded integer type, Min .. Max inclusive.
type Range struct {
	Loc Loc
	Min Expr
	Max Expr
}

func (r *Range) Pos() Loc { return r.Loc }

func (r *Range) Clone() Node {
	return &Range{Loc: r.Loc, Min: cloneExpr(r.Min), Max: cloneExpr(r.Max)}
}

func (r *Range) Equals(other Node) bool {
	o, ok := other.(*Range)
	return ok && eqExpr(r.Min, o.Min) && eqExpr(r.Max, o.Max)
}

func (r *Range) Children() []Node { return []Node{r.Min, r.Max} }

func (r *Range) Width() uint64 {
	// Values plus the undefined encoding.
	n := new(big.Int).Sub(mustFold(r.Max), mustFold(r.Min))
	n.Add(n, big.NewInt(2))
	return bitsFor(n)
}

func (r *Range) Count() uint64 {
	n := new(big.Int).Sub(mustFold(r.Max), mustFold(r.Min))
	n.Add(n, big.NewInt(1))
	if n.Sign() < 0 {
		return 0
	}
	return n.Uint64()
}

func (r *Range) LowerBound() int64 { return mustFoldInt64(r.Min) }
func (r *Range) UpperBound() int64 { return mustFoldInt64(r.Max) }
func (r *Range) Resolve() TypeExpr { return r }
func (r *Range) IsSimple() bool    { return true }
func (r *Range) typeExpr()         {}

// Enum is an ordered set of named members. Member i has value i; the packed
// encoding is i+1, with 0 meaning undefined.
type Enum struct {
	Loc     Loc
	Members []EnumMember
}

// EnumMember is a single named enum value.
type EnumMember struct {
	Name string
	Loc  Loc
}

func (e *Enum) Pos() Loc { return e.Loc }

func (e *Enum) Clone() Node {
	members := make([]EnumMember, len(e.Members))
	copy(members, e.Members)
	return &Enum{Loc: e.Loc, Members: members}
}

func (e *Enum) Equals(other Node) bool {
	o, ok := other.(*Enum)
	if !ok || len(e.Members) != len(o.Members) {
		return false
	}
	for i := range e.Members {
		if e.Members[i].Name != o.Members[i].Name {
			return false
		}
	}
	return true
}

func (e *Enum) Children() []Node { return nil }

func (e *Enum) Width() uint64 {
	return bitsFor(big.NewInt(int64(len(e.Members)) + 1))
}

func (e *Enum) Count() uint64     { return uint64(len(e.Members)) }
func (e *Enum) LowerBound() int64 { return 0 }
func (e *Enum) UpperBound() int64 { return int64(len(e.Members)) - 1 }
func (e *Enum) Resolve() TypeExpr { return e }
func (e *Enum) IsSimple() bool    { return true }
func (e *Enum) typeExpr()         {}

// Scalarset is a symmetry domain of Bound values, treated as the integer
// range 0 .. Bound-1.
type Scalarset struct {
	Loc   Loc
	Bound Expr
}

func (s *Scalarset) Pos() Loc { return s.Loc }

func (s *Scalarset) Clone() Node {
	return &Scalarset{Loc: s.Loc, Bound: cloneExpr(s.Bound)}
}

func (s *Scalarset) Equals(other Node) bool {
	o, ok := other.(*Scalarset)
	return ok && eqExpr(s.Bound, o.Bound)
}

func (s *Scalarset) Children() []Node { return []Node{s.Bound} }

func (s *Scalarset) Width() uint64 {
	n := new(big.Int).Add(mustFold(s.Bound), big.NewInt(1))
	return bitsFor(n)
}

func (s *Scalarset) Count() uint64 {
	n := mustFold(s.Bound)
	if n.Sign() < 0 {
		return 0
	}
	return n.Uint64()
}

func (s *Scalarset) LowerBound() int64 { return 0 }
func (s *Scalarset) UpperBound() int64 { return mustFoldInt64(s.Bound) - 1 }
func (s *Scalarset) Resolve() TypeExpr { return s }
func (s *Scalarset) IsSimple() bool    { return true }
func (s *Scalarset) typeExpr()         {}

// Array is an aggregate indexed by a simple type.
type Array struct {
	Loc     Loc
	Index   TypeExpr
	Element TypeExpr
}

func (a *Array) Pos() Loc { return a.Loc }

func (a *Array) Clone() Node {
	return &Array{Loc: a.Loc, Index: cloneType(a.Index), Element: cloneType(a.Element)}
}

func (a *Array) Equals(other Node) bool {
	o, ok := other.(*Array)
	return ok && eqType(a.Index, o.Index) && eqType(a.Element, o.Element)
}

func (a *Array) Children() []Node { return []Node{a.Index, a.Element} }

func (a *Array) Width() uint64 {
	return a.Element.Width() * a.Index.Resolve().Count()
}

func (a *Array) Count() uint64 { return a.Index.Resolve().Count() }

func (a *Array) LowerBound() int64 { panic("lower bound of non-simple type") }
func (a *Array) UpperBound() int64 { panic("upper bound of non-simple type") }
func (a *Array) Resolve() TypeExpr { return a }
func (a *Array) IsSimple() bool    { return false }
func (a *Array) typeExpr()         {}

// Record is an aggregate of ordered named fields. Field offsets within the
// record are the cumulative widths of the preceding fields.
type Record struct {
	Loc    Loc
	Fields []*VarDecl
}

func (r *Record) Pos() Loc { return r.Loc }

func (r *Record) Clone() Node {
	fields := make([]*VarDecl, len(r.Fields))
	for i, f := range r.Fields {
		fields[i] = f.Clone().(*VarDecl)
	}
	return &Record{Loc: r.Loc, Fields: fields}
}

func (r *Record) Equals(other Node) bool {
	o, ok := other.(*Record)
	if !ok || len(r.Fields) != len(o.Fields) {
		return false
	}
	for i := range r.Fields {
		if !r.Fields[i].Equals(o.Fields[i]) {
			return false
		}
	}
	return true
}

func (r *Record) Children() []Node {
	out := make([]Node, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f
	}
	return out
}

func (r *Record) Width() uint64 {
	var w uint64
	for _, f := range r.Fields {
		w += f.Type.Width()
	}
	return w
}

// FieldOffset returns the bit offset of the named field within the record,
// or false if there is no such field.
func (r *Record) FieldOffset(name string) (uint64, *VarDecl, bool) {
	var off uint64
	for _, f := range r.Fields {
		if f.Name == name {
			return off, f, true
		}
		off += f.Type.Width()
	}
	return 0, nil, false
}

func (r *Record) Count() uint64     { return 0 }
func (r *Record) LowerBound() int64 { panic("lower bound of non-simple type") }
func (r *Record) UpperBound() int64 { panic("upper bound of non-simple type") }
func (r *Record) Resolve() TypeExpr { return r }
func (r *Record) IsSimple() bool    { return false }
func (r *Record) typeExpr()         {}

// TypeExprID is a reference to a named type. Referent is populated during
// resolution.
type TypeExprID struct {
	Loc      Loc
	Name     string
	Referent *TypeDecl
}

func (t *TypeExprID) Pos() Loc { return t.Loc }

func (t *TypeExprID) Clone() Node {
	// The referent is a back-reference into the model, shared by design.
	return &TypeExprID{Loc: t.Loc, Name: t.Name, Referent: t.Referent}
}

func (t *TypeExprID) Equals(other Node) bool {
	o, ok := other.(*TypeExprID)
	return ok && t.Name == o.Name
}

func (t *TypeExprID) Children() []Node { return nil }

func (t *TypeExprID) Width() uint64 { return t.mustResolve().Width() }
func (t *TypeExprID) Count() uint64 { return t.mustResolve().Count() }

func (t *TypeExprID) LowerBound() int64 { return t.mustResolve().LowerBound() }
func (t *TypeExprID) UpperBound() int64 { return t.mustResolve().UpperBound() }

func (t *TypeExprID) Resolve() TypeExpr { return t.mustResolve().Resolve() }

func (t *TypeExprID) IsSimple() bool { return t.mustResolve().IsSimple() }

func (t *TypeExprID) mustResolve() TypeExpr {
	if t.Referent == nil {
		panic(Errorf(t.Loc, "unresolved type %q", t.Name))
	}
	return t.Referent.Value
}

func (t *TypeExprID) typeExpr() {}

// Boolean is the built-in boolean type, an enum of false and true. The
// resolver declares it, together with its members, in the global scope.
func Boolean() *Enum {
	return &Enum{Members: []EnumMember{{Name: "false"}, {Name: "true"}}}
}

// IsBoolean reports whether t resolves to the built-in boolean enum.
func IsBoolean(t TypeExpr) bool {
	if t == nil {
		return false
	}
	e, ok := t.Resolve().(*Enum)
	return ok && len(e.Members) == 2 &&
		e.Members[0].Name == "false" && e.Members[1].Name == "true"
}
