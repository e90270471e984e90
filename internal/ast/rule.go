package ast

// ----------------------------------------------------------------------------
// Properties
// ----------------------------------------------------------------------------

// PropertyCategory classifies a property.
type PropertyCategory uint8

const (
	// Invariant must hold in every reachable state.
	Invariant PropertyCategory = iota
	// Assertion must hold at the point it is evaluated.
	Assertion
	// Assumption prunes the current state without error when false.
	Assumption
)

func (c PropertyCategory) String() string {
	switch c {
	case Invariant:
		return "invariant"
	case Assertion:
		return "assertion"
	case Assumption:
		return "assumption"
	}
	return "unknown"
}

// Property is a boolean expression with a category.
type Property struct {
	Loc      Loc
	Category PropertyCategory
	Expr     Expr
}

func (p *Property) Pos() Loc { return p.Loc }

func (p *Property) Clone() Node {
	return &Property{Loc: p.Loc, Category: p.Category, Expr: cloneExpr(p.Expr)}
}

func (p *Property) Equals(other Node) bool {
	o, ok := other.(*Property)
	return ok && p.Category == o.Category && eqExpr(p.Expr, o.Expr)
}

func (p *Property) Children() []Node { return []Node{p.Expr} }

// ----------------------------------------------------------------------------
// Rules
// ----------------------------------------------------------------------------

// Rule is a transition rule, startstate, property, or a grouping construct
// (AliasRule, Ruleset). Flatten decomposes groups into flat rules carrying
// accumulated aliases and quantifiers.
type Rule interface {
	Node

	// RuleName returns the rule's name, possibly empty.
	RuleName() string

	// Flatten expands grouping rules into SimpleRule/StartState/PropertyRule
	// sequences. Aliases accumulate at the front, quantifiers at the back,
	// so alias bindings are evaluated inside the quantifier loops.
	Flatten() []Rule

	// CommonAliases and CommonQuantifiers expose the accumulated bindings.
	CommonAliases() []*AliasDecl
	CommonQuantifiers() []*Quantifier

	rule()
}

// ruleCommon carries the bindings every rule kind accumulates during
// flattening.
type ruleCommon struct {
	Aliases     []*AliasDecl
	Quantifiers []*Quantifier
}

func (rc *ruleCommon) CommonAliases() []*AliasDecl      { return rc.Aliases }
func (rc *ruleCommon) CommonQuantifiers() []*Quantifier { return rc.Quantifiers }

func (rc *ruleCommon) cloneCommon() ruleCommon {
	c := ruleCommon{}
	for _, a := range rc.Aliases {
		c.Aliases = append(c.Aliases, a.Clone().(*AliasDecl))
	}
	for _, q := range rc.Quantifiers {
		c.Quantifiers = append(c.Quantifiers, q.Clone().(*Quantifier))
	}
	return c
}

func (rc *ruleCommon) eqCommon(o *ruleCommon) bool {
	if len(rc.Aliases) != len(o.Aliases) || len(rc.Quantifiers) != len(o.Quantifiers) {
		return false
	}
	for i := range rc.Aliases {
		if !rc.Aliases[i].Equals(o.Aliases[i]) {
			return false
		}
	}
	for i := range rc.Quantifiers {
		if !rc.Quantifiers[i].Equals(o.Quantifiers[i]) {
			return false
		}
	}
	return true
}

func (rc *ruleCommon) commonChildren() []Node {
	var out []Node
	for _, a := range rc.Aliases {
		out = append(out, a)
	}
	for _, q := range rc.Quantifiers {
		out = append(out, q)
	}
	return out
}

// prependAliases inserts the given aliases ahead of the rule's existing ones,
// preserving outer-to-inner order.
func (rc *ruleCommon) prependAliases(aliases []*AliasDecl) {
	merged := make([]*AliasDecl, 0, len(aliases)+len(rc.Aliases))
	for _, a := range aliases {
		merged = append(merged, a.Clone().(*AliasDecl))
	}
	rc.Aliases = append(merged, rc.Aliases...)
}

// appendQuantifiers adds the given quantifiers after the rule's existing
// ones.
func (rc *ruleCommon) appendQuantifiers(quantifiers []*Quantifier) {
	for _, q := range quantifiers {
		rc.Quantifiers = append(rc.Quantifiers, q.Clone().(*Quantifier))
	}
}

// SimpleRule is a guarded transition.
type SimpleRule struct {
	ruleCommon
	Loc   Loc
	Name  string
	Guard Expr // nil means always enabled
	Decls []Decl
	Body  []Stmt
}

func (r *SimpleRule) Pos() Loc         { return r.Loc }
func (r *SimpleRule) RuleName() string { return r.Name }

func (r *SimpleRule) Clone() Node {
	return &SimpleRule{
		ruleCommon: r.cloneCommon(),
		Loc:        r.Loc,
		Name:       r.Name,
		Guard:      cloneExpr(r.Guard),
		Decls:      cloneDecls(r.Decls),
		Body:       cloneStmts(r.Body),
	}
}

func (r *SimpleRule) Equals(other Node) bool {
	o, ok := other.(*SimpleRule)
	return ok && r.Name == o.Name && eqExpr(r.Guard, o.Guard) &&
		eqDecls(r.Decls, o.Decls) && eqStmts(r.Body, o.Body) &&
		r.eqCommon(&o.ruleCommon)
}

func (r *SimpleRule) Children() []Node {
	out := r.commonChildren()
	if r.Guard != nil {
		out = append(out, r.Guard)
	}
	for _, d := range r.Decls {
		out = append(out, d)
	}
	return append(out, stmtChildren(r.Body)...)
}

func (r *SimpleRule) Flatten() []Rule { return []Rule{r.Clone().(*SimpleRule)} }
func (r *SimpleRule) rule()           {}

// StartState is an unguarded rule run once to build an initial state.
type StartState struct {
	ruleCommon
	Loc   Loc
	Name  string
	Decls []Decl
	Body  []Stmt
}

func (r *StartState) Pos() Loc         { return r.Loc }
func (r *StartState) RuleName() string { return r.Name }

func (r *StartState) Clone() Node {
	return &StartState{
		ruleCommon: r.cloneCommon(),
		Loc:        r.Loc,
		Name:       r.Name,
		Decls:      cloneDecls(r.Decls),
		Body:       cloneStmts(r.Body),
	}
}

func (r *StartState) Equals(other Node) bool {
	o, ok := other.(*StartState)
	return ok && r.Name == o.Name && eqDecls(r.Decls, o.Decls) &&
		eqStmts(r.Body, o.Body) && r.eqCommon(&o.ruleCommon)
}

func (r *StartState) Children() []Node {
	out := r.commonChildren()
	for _, d := range r.Decls {
		out = append(out, d)
	}
	return append(out, stmtChildren(r.Body)...)
}

func (r *StartState) Flatten() []Rule { return []Rule{r.Clone().(*StartState)} }
func (r *StartState) rule()           {}

// PropertyRule is a top-level property.
type PropertyRule struct {
	ruleCommon
	Loc      Loc
	Name     string
	Property Property
}

func (r *PropertyRule) Pos() Loc         { return r.Loc }
func (r *PropertyRule) RuleName() string { return r.Name }

func (r *PropertyRule) Clone() Node {
	return &PropertyRule{
		ruleCommon: r.cloneCommon(),
		Loc:        r.Loc,
		Name:       r.Name,
		Property:   *r.Property.Clone().(*Property),
	}
}

func (r *PropertyRule) Equals(other Node) bool {
	o, ok := other.(*PropertyRule)
	return ok && r.Name == o.Name && r.Property.Equals(&o.Property) &&
		r.eqCommon(&o.ruleCommon)
}

func (r *PropertyRule) Children() []Node {
	return append(r.commonChildren(), &r.Property)
}

func (r *PropertyRule) Flatten() []Rule { return []Rule{r.Clone().(*PropertyRule)} }
func (r *PropertyRule) rule()           {}

// AliasRule wraps rules in alias bindings.
type AliasRule struct {
	ruleCommon
	Loc   Loc
	Rules []Rule
}

func (r *AliasRule) Pos() Loc         { return r.Loc }
func (r *AliasRule) RuleName() string { return "" }

func (r *AliasRule) Clone() Node {
	rules := make([]Rule, len(r.Rules))
	for i, rr := range r.Rules {
		rules[i] = rr.Clone().(Rule)
	}
	return &AliasRule{ruleCommon: r.cloneCommon(), Loc: r.Loc, Rules: rules}
}

func (r *AliasRule) Equals(other Node) bool {
	o, ok := other.(*AliasRule)
	if !ok || len(r.Rules) != len(o.Rules) || !r.eqCommon(&o.ruleCommon) {
		return false
	}
	for i := range r.Rules {
		if !r.Rules[i].Equals(o.Rules[i]) {
			return false
		}
	}
	return true
}

func (r *AliasRule) Children() []Node {
	out := r.commonChildren()
	for _, rr := range r.Rules {
		out = append(out, rr)
	}
	return out
}

func (r *AliasRule) Flatten() []Rule {
	var out []Rule
	for _, rr := range r.Rules {
		for _, f := range rr.Flatten() {
			switch fr := f.(type) {
			case *SimpleRule:
				fr.prependAliases(r.Aliases)
			case *StartState:
				fr.prependAliases(r.Aliases)
			case *PropertyRule:
				fr.prependAliases(r.Aliases)
			}
			out = append(out, f)
		}
	}
	return out
}

func (r *AliasRule) rule() {}

// Ruleset parameterizes rules over quantifier domains.
type Ruleset struct {
	ruleCommon
	Loc   Loc
	Rules []Rule
}

func (r *Ruleset) Pos() Loc         { return r.Loc }
func (r *Ruleset) RuleName() string { return "" }

func (r *Ruleset) Clone() Node {
	rules := make([]Rule, len(r.Rules))
	for i, rr := range r.Rules {
		rules[i] = rr.Clone().(Rule)
	}
	return &Ruleset{ruleCommon: r.cloneCommon(), Loc: r.Loc, Rules: rules}
}

func (r *Ruleset) Equals(other Node) bool {
	o, ok := other.(*Ruleset)
	if !ok || len(r.Rules) != len(o.Rules) || !r.eqCommon(&o.ruleCommon) {
		return false
	}
	for i := range r.Rules {
		if !r.Rules[i].Equals(o.Rules[i]) {
			return false
		}
	}
	return true
}

func (r *Ruleset) Children() []Node {
	out := r.commonChildren()
	for _, rr := range r.Rules {
		out = append(out, rr)
	}
	return out
}

func (r *Ruleset) Flatten() []Rule {
	var out []Rule
	for _, rr := range r.Rules {
		for _, f := range rr.Flatten() {
			switch fr := f.(type) {
			case *SimpleRule:
				fr.appendQuantifiers(r.Quantifiers)
			case *StartState:
				fr.appendQuantifiers(r.Quantifiers)
			case *PropertyRule:
				fr.appendQuantifiers(r.Quantifiers)
			}
			out = append(out, f)
		}
	}
	return out
}

func (r *Ruleset) rule() {}
