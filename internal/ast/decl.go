package ast

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

// Decl is a declaration: a name bound to a constant, type, variable or
// alias.
type Decl interface {
	Node

	// DeclName returns the declared name.
	DeclName() string

	decl()
}

// ConstDecl binds a name to a constant value. Enum members are declared as
// ConstDecls whose Type is the owning enum.
type ConstDecl struct {
	Loc   Loc
	Name  string
	Value Expr

	// Type is the declared type where one exists, e.g. the enum a member
	// belongs to. Nil for plain numeric constants.
	Type TypeExpr
}

func (c *ConstDecl) Pos() Loc         { return c.Loc }
func (c *ConstDecl) DeclName() string { return c.Name }

func (c *ConstDecl) Clone() Node {
	return &ConstDecl{Loc: c.Loc, Name: c.Name, Value: cloneExpr(c.Value), Type: cloneType(c.Type)}
}

func (c *ConstDecl) Equals(other Node) bool {
	o, ok := other.(*ConstDecl)
	return ok && c.Name == o.Name && eqExpr(c.Value, o.Value)
}

func (c *ConstDecl) Children() []Node {
	out := []Node{c.Value}
	if c.Type != nil {
		out = append(out, c.Type)
	}
	return out
}

func (c *ConstDecl) decl() {}

// TypeDecl binds a name to a type expression.
type TypeDecl struct {
	Loc   Loc
	Name  string
	Value TypeExpr
}

func (t *TypeDecl) Pos() Loc         { return t.Loc }
func (t *TypeDecl) DeclName() string { return t.Name }

func (t *TypeDecl) Clone() Node {
	return &TypeDecl{Loc: t.Loc, Name: t.Name, Value: cloneType(t.Value)}
}

func (t *TypeDecl) Equals(other Node) bool {
	o, ok := other.(*TypeDecl)
	return ok && t.Name == o.Name && eqType(t.Value, o.Value)
}

func (t *TypeDecl) Children() []Node { return []Node{t.Value} }

func (t *TypeDecl) decl() {}

// VarDecl declares a variable: a state variable, a rule/function local, a
// record field, a function parameter or a quantifier loop variable.
type VarDecl struct {
	Loc  Loc
	Name string
	Type TypeExpr

	// StateVariable marks top-level variables that live in the packed state
	// vector.
	StateVariable bool

	// Offset is the variable's bit index within the state vector, assigned
	// by Model.Reindex. Only meaningful when StateVariable is set.
	Offset uint64

	// Readonly marks by-value function parameters and quantifier loop
	// variables, which cannot be assigned.
	Readonly bool
}

func (v *VarDecl) Pos() Loc         { return v.Loc }
func (v *VarDecl) DeclName() string { return v.Name }

func (v *VarDecl) Clone() Node {
	return &VarDecl{
		Loc:           v.Loc,
		Name:          v.Name,
		Type:          cloneType(v.Type),
		StateVariable: v.StateVariable,
		Offset:        v.Offset,
		Readonly:      v.Readonly,
	}
}

func (v *VarDecl) Equals(other Node) bool {
	o, ok := other.(*VarDecl)
	return ok && v.Name == o.Name && eqType(v.Type, o.Type) &&
		v.StateVariable == o.StateVariable && v.Offset == o.Offset
}

func (v *VarDecl) Children() []Node { return []Node{v.Type} }

// Width returns the bit width of the variable's type.
func (v *VarDecl) Width() uint64 { return v.Type.Width() }

func (v *VarDecl) decl() {}

// AliasDecl binds a name to an expression; uses of the name behave as uses
// of the expression.
type AliasDecl struct {
	Loc   Loc
	Name  string
	Value Expr
}

func (a *AliasDecl) Pos() Loc         { return a.Loc }
func (a *AliasDecl) DeclName() string { return a.Name }

func (a *AliasDecl) Clone() Node {
	return &AliasDecl{Loc: a.Loc, Name: a.Name, Value: cloneExpr(a.Value)}
}

func (a *AliasDecl) Equals(other Node) bool {
	o, ok := other.(*AliasDecl)
	return ok && a.Name == o.Name && eqExpr(a.Value, o.Value)
}

func (a *AliasDecl) Children() []Node { return []Node{a.Value} }

func (a *AliasDecl) decl() {}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

// Parameter is a function parameter. ByRef parameters are passed as
// handles and writes through them are visible to the caller.
type Parameter struct {
	Decl  *VarDecl
	ByRef bool
}

// Function is a function or procedure declaration. A procedure is a
// function with a nil ReturnType.
type Function struct {
	Loc        Loc
	Name       string
	Parameters []Parameter
	ReturnType TypeExpr // nil for procedures
	Decls      []Decl
	Body       []Stmt
}

func (f *Function) Pos() Loc { return f.Loc }

func (f *Function) Clone() Node {
	params := make([]Parameter, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = Parameter{Decl: p.Decl.Clone().(*VarDecl), ByRef: p.ByRef}
	}
	return &Function{
		Loc:        f.Loc,
		Name:       f.Name,
		Parameters: params,
		ReturnType: cloneType(f.ReturnType),
		Decls:      cloneDecls(f.Decls),
		Body:       cloneStmts(f.Body),
	}
}

func (f *Function) Equals(other Node) bool {
	o, ok := other.(*Function)
	if !ok || f.Name != o.Name || len(f.Parameters) != len(o.Parameters) {
		return false
	}
	for i := range f.Parameters {
		if f.Parameters[i].ByRef != o.Parameters[i].ByRef ||
			!f.Parameters[i].Decl.Equals(o.Parameters[i].Decl) {
			return false
		}
	}
	return eqType(f.ReturnType, o.ReturnType) && eqDecls(f.Decls, o.Decls) &&
		eqStmts(f.Body, o.Body)
}

func (f *Function) Children() []Node {
	var out []Node
	for _, p := range f.Parameters {
		out = append(out, p.Decl)
	}
	if f.ReturnType != nil {
		out = append(out, f.ReturnType)
	}
	for _, d := range f.Decls {
		out = append(out, d)
	}
	return append(out, stmtChildren(f.Body)...)
}
