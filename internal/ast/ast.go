// Package ast defines the abstract syntax tree for Murphi models.
//
// The AST is designed to be:
// - Complete: represents every construct the checker can compile
// - Inspectable: every node supports structural equality and deep cloning
// - Transformable: resolution and reindexing mutate nodes in place
//
// Node categories follow the language: declarations, type expressions,
// expressions, statements and rules. Each category is a tagged sum behind a
// small interface rather than a class hierarchy.
package ast

import (
	"fmt"
	"math/big"
)

// ----------------------------------------------------------------------------
// Source Location
// ----------------------------------------------------------------------------

// Loc is a position in the model source.
type Loc struct {
	Line   int // 1-based
	Column int // 1-based
}

func (l Loc) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Error is a source-located semantic error raised during resolution,
// validation or layout.
type Error struct {
	Loc Loc
	Msg string
}

func (e Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Loc.Line, e.Loc.Column, e.Msg)
}

// Errorf constructs a located error.
func Errorf(loc Loc, format string, args ...interface{}) Error {
	return Error{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// ----------------------------------------------------------------------------
// Node
// ----------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	// Pos returns the node's source location.
	Pos() Loc

	// Clone returns a deep copy of the node. Resolved referents are shared,
	// not copied: they are back-references into the model, and the tree
	// itself is acyclic.
	Clone() Node

	// Equals reports structural equality over the node's shape and its
	// immediate children.
	Equals(other Node) bool

	// Children returns the node's immediate children, for traversal.
	Children() []Node
}

// Walk traverses the tree rooted at n in depth-first pre-order. visit is
// called for each node; returning false prunes the node's children.
func Walk(n Node, visit func(Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children() {
		if c == nil {
			continue
		}
		Walk(c, visit)
	}
}

// bitsFor returns the number of bits needed to distinguish n encodings,
// i.e. ceil(log2(n)) with bitsFor(0) == bitsFor(1) == 0.
func bitsFor(n *big.Int) uint64 {
	if n.Sign() <= 0 {
		return 0
	}
	m := new(big.Int).Sub(n, big.NewInt(1))
	return uint64(m.BitLen())
}

// cloneExpr clones an optional expression.
func cloneExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	return e.Clone().(Expr)
}

// cloneType clones an optional type expression.
func cloneType(t TypeExpr) TypeExpr {
	if t == nil {
		return nil
	}
	return t.Clone().(TypeExpr)
}

// cloneStmts clones a statement list.
func cloneStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = s.Clone().(Stmt)
	}
	return out
}

// cloneDecls clones a declaration list.
func cloneDecls(decls []Decl) []Decl {
	if decls == nil {
		return nil
	}
	out := make([]Decl, len(decls))
	for i, d := range decls {
		out[i] = d.Clone().(Decl)
	}
	return out
}

// eqExpr compares two optional expressions.
func eqExpr(a, b Expr) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	return a.Equals(b)
}

// eqType compares two optional type expressions.
func eqType(a, b TypeExpr) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	return a.Equals(b)
}

// eqStmts compares two statement lists.
func eqStmts(a, b []Stmt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

// eqDecls compares two declaration lists.
func eqDecls(a, b []Decl) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

func stmtChildren(stmts []Stmt) []Node {
	out := make([]Node, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, s)
	}
	return out
}
