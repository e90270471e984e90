// Package parser provides Murphi parsing into an AST.
//
// The parser is a single-pass recursive descent over the token stream. It
// builds an unresolved ast.Model: identifier references carry only names,
// and binding them to declarations is the validator's job. Errors are
// collected rather than aborting, so a run reports as many problems as the
// token stream allows.
package parser

import (
	"fmt"
	"math/big"

	"github.com/Siddhesh-Ghadi/rumur/internal/ast"
	"github.com/Siddhesh-Ghadi/rumur/internal/diagnostic"
	"github.com/Siddhesh-Ghadi/rumur/internal/lexer"
)

// ParseError represents a parsing error.
type ParseError struct {
	Message string
	Pos     int
	Line    int
	Column  int
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser parses Murphi source into an AST.
type Parser struct {
	source    string
	tokens    []lexer.Token
	pos       int
	lineIndex *diagnostic.LineIndex

	errors []ParseError
}

// New creates a new parser for the given source.
func New(source string) *Parser {
	lex := lexer.New(source)
	return &Parser{
		source:    source,
		tokens:    lex.Tokenize(),
		lineIndex: diagnostic.NewLineIndex(source),
	}
}

// Parse parses the source and returns the model. The model is unresolved;
// run the validator before using types, widths or referents.
func (p *Parser) Parse() (*ast.Model, []ParseError) {
	model := &ast.Model{Loc: p.loc(p.current())}
	p.parseModel(model)
	return model, p.errors
}

// ----------------------------------------------------------------------------
// Token Helpers
// ----------------------------------------------------------------------------

func (p *Parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) lexer.Token {
	pos := p.pos + offset
	if pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.TokEOF}
	}
	return p.tokens[pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, bool) {
	tok := p.current()
	if tok.Kind != kind {
		p.errorf("expected %s, found %s", kind, describe(tok))
		return tok, false
	}
	p.advance()
	return tok, true
}

func (p *Parser) match(kind lexer.TokenKind) bool {
	if p.current().Kind == kind {
		p.advance()
		return true
	}
	return false
}

func describe(tok lexer.Token) string {
	switch tok.Kind {
	case lexer.TokIdent, lexer.TokNumber:
		return fmt.Sprintf("%s %q", tok.Kind, tok.Value)
	default:
		return tok.Kind.String()
	}
}

func (p *Parser) loc(tok lexer.Token) ast.Loc {
	pos := p.lineIndex.Position(tok.Start)
	return ast.Loc{Line: pos.Line, Column: pos.Column}
}

func (p *Parser) errorf(format string, args ...interface{}) {
	tok := p.current()
	pos := p.lineIndex.Position(tok.Start)
	p.errors = append(p.errors, ParseError{
		Message: fmt.Sprintf(format, args...),
		Pos:     tok.Start,
		Line:    pos.Line,
		Column:  pos.Column,
	})
}

// sync skips tokens until a likely section boundary, so one error does not
// cascade into dozens.
func (p *Parser) sync() {
	for {
		switch p.current().Kind {
		case lexer.TokEOF, lexer.TokSemicolon,
			lexer.TokConst, lexer.TokType, lexer.TokVar,
			lexer.TokRule, lexer.TokStartState, lexer.TokInvariant,
			lexer.TokRuleset, lexer.TokFunction, lexer.TokProcedure,
			lexer.TokEnd:
			return
		}
		p.advance()
	}
}

// ----------------------------------------------------------------------------
// Model
// ----------------------------------------------------------------------------

func (p *Parser) parseModel(model *ast.Model) {
	for {
		tok := p.current()
		switch tok.Kind {
		case lexer.TokEOF:
			return

		case lexer.TokConst:
			p.advance()
			model.Decls = append(model.Decls, p.parseConstSection()...)

		case lexer.TokType:
			p.advance()
			model.Decls = append(model.Decls, p.parseTypeSection()...)

		case lexer.TokVar:
			p.advance()
			model.Decls = append(model.Decls, p.parseVarSection(true)...)

		case lexer.TokFunction, lexer.TokProcedure:
			if f := p.parseFunction(); f != nil {
				model.Functions = append(model.Functions, f)
			}

		case lexer.TokRule, lexer.TokStartState, lexer.TokInvariant,
			lexer.TokAssert, lexer.TokAssume, lexer.TokRuleset, lexer.TokAlias:
			if r := p.parseRule(); r != nil {
				model.Rules = append(model.Rules, r)
			}
			p.match(lexer.TokSemicolon)

		case lexer.TokSemicolon:
			p.advance()

		default:
			p.errorf("unexpected %s at top level", describe(tok))
			p.advance()
			p.sync()
		}
	}
}

// parseConstSection parses `name : expr ;` entries until the next section.
func (p *Parser) parseConstSection() []ast.Decl {
	var decls []ast.Decl
	for p.current().Kind == lexer.TokIdent && p.peek(1).Kind == lexer.TokColon {
		name := p.advance()
		p.advance() // :
		value := p.parseExpr()
		decls = append(decls, &ast.ConstDecl{
			Loc:   p.loc(name),
			Name:  name.Value,
			Value: value,
		})
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}
	return decls
}

// parseTypeSection parses `name : typeexpr ;` entries.
func (p *Parser) parseTypeSection() []ast.Decl {
	var decls []ast.Decl
	for p.current().Kind == lexer.TokIdent && p.peek(1).Kind == lexer.TokColon {
		name := p.advance()
		p.advance() // :
		value := p.parseTypeExpr()
		if value == nil {
			p.sync()
			p.match(lexer.TokSemicolon)
			continue
		}
		decls = append(decls, &ast.TypeDecl{
			Loc:   p.loc(name),
			Name:  name.Value,
			Value: value,
		})
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}
	return decls
}

// parseVarSection parses `name, name : typeexpr ;` entries.
func (p *Parser) parseVarSection(stateVariable bool) []ast.Decl {
	var decls []ast.Decl
	for p.current().Kind == lexer.TokIdent {
		names := []lexer.Token{p.advance()}
		for p.match(lexer.TokComma) {
			n, ok := p.expect(lexer.TokIdent)
			if !ok {
				return decls
			}
			names = append(names, n)
		}
		if _, ok := p.expect(lexer.TokColon); !ok {
			p.sync()
			return decls
		}
		typ := p.parseTypeExpr()
		if typ == nil {
			p.sync()
			p.match(lexer.TokSemicolon)
			continue
		}
		for _, n := range names {
			decls = append(decls, &ast.VarDecl{
				Loc:           p.loc(n),
				Name:          n.Value,
				Type:          typ.Clone().(ast.TypeExpr),
				StateVariable: stateVariable,
			})
		}
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}
	return decls
}

// parseLocalDecls parses the optional const/type/var sections of a rule,
// startstate or function body.
func (p *Parser) parseLocalDecls() []ast.Decl {
	var decls []ast.Decl
	for {
		switch p.current().Kind {
		case lexer.TokConst:
			p.advance()
			decls = append(decls, p.parseConstSection()...)
		case lexer.TokType:
			p.advance()
			decls = append(decls, p.parseTypeSection()...)
		case lexer.TokVar:
			p.advance()
			decls = append(decls, p.parseVarSection(false)...)
		default:
			return decls
		}
	}
}

// ----------------------------------------------------------------------------
// Types
// ----------------------------------------------------------------------------

func (p *Parser) parseTypeExpr() ast.TypeExpr {
	tok := p.current()
	switch tok.Kind {
	case lexer.TokBoolean:
		p.advance()
		return &ast.TypeExprID{Loc: p.loc(tok), Name: "boolean"}

	case lexer.TokEnum:
		return p.parseEnum()

	case lexer.TokScalarset:
		p.advance()
		if _, ok := p.expect(lexer.TokLParen); !ok {
			return nil
		}
		bound := p.parseExpr()
		p.expect(lexer.TokRParen)
		return &ast.Scalarset{Loc: p.loc(tok), Bound: bound}

	case lexer.TokArray:
		p.advance()
		if _, ok := p.expect(lexer.TokLBracket); !ok {
			return nil
		}
		index := p.parseTypeExpr()
		p.expect(lexer.TokRBracket)
		p.expect(lexer.TokOf)
		element := p.parseTypeExpr()
		if index == nil || element == nil {
			return nil
		}
		return &ast.Array{Loc: p.loc(tok), Index: index, Element: element}

	case lexer.TokRecord:
		p.advance()
		rec := &ast.Record{Loc: p.loc(tok)}
		for p.current().Kind == lexer.TokIdent {
			fields := p.parseVarSection(false)
			for _, f := range fields {
				rec.Fields = append(rec.Fields, f.(*ast.VarDecl))
			}
			if len(fields) == 0 {
				break
			}
		}
		p.expect(lexer.TokEnd)
		return rec
	}

	// A range or a type name. Parse an expression; `..` decides.
	start := p.current()
	e := p.parseExpr()
	if e == nil {
		return nil
	}
	if p.match(lexer.TokDotDot) {
		max := p.parseExpr()
		return &ast.Range{Loc: p.loc(start), Min: e, Max: max}
	}
	if id, ok := e.(*ast.ExprID); ok {
		return &ast.TypeExprID{Loc: id.Loc, Name: id.Name}
	}
	p.errorf("expected type expression")
	return nil
}

func (p *Parser) parseEnum() ast.TypeExpr {
	tok := p.advance() // enum
	e := &ast.Enum{Loc: p.loc(tok)}
	if _, ok := p.expect(lexer.TokLBrace); !ok {
		return nil
	}
	for {
		name, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		e.Members = append(e.Members, ast.EnumMember{Name: name.Value, Loc: p.loc(name)})
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRBrace)
	return e
}

// ----------------------------------------------------------------------------
// Quantifiers
// ----------------------------------------------------------------------------

// parseQuantifier parses `name : type` or `name := from to to [by step]`.
func (p *Parser) parseQuantifier() *ast.Quantifier {
	name, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	q := &ast.Quantifier{Loc: p.loc(name), Name: name.Value}

	switch p.current().Kind {
	case lexer.TokColon:
		p.advance()
		q.Type = p.parseTypeExpr()
		if q.Type == nil {
			return nil
		}
	case lexer.TokAssign:
		p.advance()
		q.From = p.parseExpr()
		p.expect(lexer.TokTo)
		q.To = p.parseExpr()
		if p.match(lexer.TokBy) {
			q.Step = p.parseExpr()
		}
	default:
		p.errorf("expected : or := in quantifier, found %s", describe(p.current()))
		return nil
	}
	return q
}

// ----------------------------------------------------------------------------
// Rules
// ----------------------------------------------------------------------------

func (p *Parser) parseRule() ast.Rule {
	tok := p.current()
	switch tok.Kind {
	case lexer.TokRule:
		return p.parseSimpleRule()
	case lexer.TokStartState:
		return p.parseStartState()
	case lexer.TokInvariant:
		return p.parsePropertyRule(ast.Invariant)
	case lexer.TokAssert:
		return p.parsePropertyRule(ast.Assertion)
	case lexer.TokAssume:
		return p.parsePropertyRule(ast.Assumption)
	case lexer.TokRuleset:
		return p.parseRuleset()
	case lexer.TokAlias:
		return p.parseAliasRule()
	}
	p.errorf("expected rule, found %s", describe(tok))
	p.advance()
	return nil
}

func (p *Parser) parseSimpleRule() ast.Rule {
	tok := p.advance() // rule
	r := &ast.SimpleRule{Loc: p.loc(tok)}

	if p.current().Kind == lexer.TokString {
		r.Name = p.advance().Value
	}

	// The guard is optional: an unguarded rule goes straight to its local
	// declarations or body.
	switch p.current().Kind {
	case lexer.TokArrow, lexer.TokBegin, lexer.TokVar, lexer.TokConst, lexer.TokType:
	default:
		r.Guard = p.parseExpr()
	}
	if r.Guard != nil {
		if _, ok := p.expect(lexer.TokArrow); !ok {
			p.sync()
			return nil
		}
	} else {
		p.match(lexer.TokArrow)
	}

	r.Decls = p.parseLocalDecls()
	p.match(lexer.TokBegin)
	r.Body = p.parseStmts()
	p.expect(lexer.TokEnd)
	return r
}

func (p *Parser) parseStartState() ast.Rule {
	tok := p.advance() // startstate
	r := &ast.StartState{Loc: p.loc(tok)}

	if p.current().Kind == lexer.TokString {
		r.Name = p.advance().Value
	}

	r.Decls = p.parseLocalDecls()
	p.match(lexer.TokBegin)
	r.Body = p.parseStmts()
	p.expect(lexer.TokEnd)
	return r
}

func (p *Parser) parsePropertyRule(category ast.PropertyCategory) ast.Rule {
	tok := p.advance() // invariant / assert / assume
	r := &ast.PropertyRule{Loc: p.loc(tok)}

	if p.current().Kind == lexer.TokString {
		r.Name = p.advance().Value
	}

	expr := p.parseExpr()
	r.Property = ast.Property{Loc: p.loc(tok), Category: category, Expr: expr}
	return r
}

func (p *Parser) parseRuleset() ast.Rule {
	tok := p.advance() // ruleset
	r := &ast.Ruleset{Loc: p.loc(tok)}

	for {
		q := p.parseQuantifier()
		if q == nil {
			p.sync()
			return nil
		}
		r.Quantifiers = append(r.Quantifiers, q)
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}

	p.expect(lexer.TokDo)
	for p.current().Kind != lexer.TokEnd && p.current().Kind != lexer.TokEOF {
		if rr := p.parseRule(); rr != nil {
			r.Rules = append(r.Rules, rr)
		}
		p.match(lexer.TokSemicolon)
	}
	p.expect(lexer.TokEnd)
	return r
}

func (p *Parser) parseAliasRule() ast.Rule {
	tok := p.advance() // alias
	r := &ast.AliasRule{Loc: p.loc(tok)}

	aliases := p.parseAliasBindings()
	if aliases == nil {
		return nil
	}
	r.Aliases = aliases

	p.expect(lexer.TokDo)
	for p.current().Kind != lexer.TokEnd && p.current().Kind != lexer.TokEOF {
		if rr := p.parseRule(); rr != nil {
			r.Rules = append(r.Rules, rr)
		}
		p.match(lexer.TokSemicolon)
	}
	p.expect(lexer.TokEnd)
	return r
}

func (p *Parser) parseAliasBindings() []*ast.AliasDecl {
	var aliases []*ast.AliasDecl
	for {
		name, ok := p.expect(lexer.TokIdent)
		if !ok {
			return nil
		}
		if _, ok := p.expect(lexer.TokColon); !ok {
			return nil
		}
		value := p.parseExpr()
		aliases = append(aliases, &ast.AliasDecl{
			Loc:   p.loc(name),
			Name:  name.Value,
			Value: value,
		})
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}
	return aliases
}

// ----------------------------------------------------------------------------
// Functions
// ----------------------------------------------------------------------------

func (p *Parser) parseFunction() *ast.Function {
	tok := p.advance() // function / procedure
	isFunction := tok.Kind == lexer.TokFunction

	name, ok := p.expect(lexer.TokIdent)
	if !ok {
		p.sync()
		return nil
	}
	f := &ast.Function{Loc: p.loc(tok), Name: name.Value}

	if p.match(lexer.TokLParen) {
		for p.current().Kind != lexer.TokRParen && p.current().Kind != lexer.TokEOF {
			byRef := p.match(lexer.TokVar)
			names := []lexer.Token{}
			n, ok := p.expect(lexer.TokIdent)
			if !ok {
				p.sync()
				return nil
			}
			names = append(names, n)
			for p.match(lexer.TokComma) {
				n, ok := p.expect(lexer.TokIdent)
				if !ok {
					return nil
				}
				names = append(names, n)
			}
			if _, ok := p.expect(lexer.TokColon); !ok {
				return nil
			}
			typ := p.parseTypeExpr()
			if typ == nil {
				return nil
			}
			for _, n := range names {
				f.Parameters = append(f.Parameters, ast.Parameter{
					Decl: &ast.VarDecl{
						Loc:      p.loc(n),
						Name:     n.Value,
						Type:     typ.Clone().(ast.TypeExpr),
						Readonly: !byRef,
					},
					ByRef: byRef,
				})
			}
			if !p.match(lexer.TokSemicolon) {
				break
			}
		}
		p.expect(lexer.TokRParen)
	}

	if isFunction {
		if _, ok := p.expect(lexer.TokColon); ok {
			f.ReturnType = p.parseTypeExpr()
		}
	}
	p.match(lexer.TokSemicolon)

	f.Decls = p.parseLocalDecls()
	p.match(lexer.TokBegin)
	f.Body = p.parseStmts()
	p.expect(lexer.TokEnd)
	p.match(lexer.TokSemicolon)
	return f
}

// ----------------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------------

// isStmtTerminator reports whether a token ends a statement list.
func isStmtTerminator(k lexer.TokenKind) bool {
	switch k {
	case lexer.TokEnd, lexer.TokElse, lexer.TokElsif, lexer.TokCase, lexer.TokEOF:
		return true
	}
	return false
}

func (p *Parser) parseStmts() []ast.Stmt {
	var stmts []ast.Stmt
	for !isStmtTerminator(p.current().Kind) {
		s := p.parseStmt()
		if s == nil {
			p.sync()
			if !p.match(lexer.TokSemicolon) {
				break
			}
			continue
		}
		stmts = append(stmts, s)
		if !p.match(lexer.TokSemicolon) {
			break
		}
	}
	return stmts
}

func (p *Parser) parseStmt() ast.Stmt {
	tok := p.current()
	switch tok.Kind {
	case lexer.TokIf:
		return p.parseIf()
	case lexer.TokSwitch:
		return p.parseSwitch()
	case lexer.TokFor:
		return p.parseFor()
	case lexer.TokWhile:
		return p.parseWhile()
	case lexer.TokAlias:
		return p.parseAliasStmt()

	case lexer.TokClear:
		p.advance()
		return &ast.Clear{Loc: p.loc(tok), RHS: p.parseExpr()}

	case lexer.TokUndefine:
		p.advance()
		return &ast.Undefine{Loc: p.loc(tok), RHS: p.parseExpr()}

	case lexer.TokErrorKw:
		p.advance()
		msg, _ := p.expect(lexer.TokString)
		return &ast.ErrorStmt{Loc: p.loc(tok), Message: msg.Value}

	case lexer.TokAssert:
		p.advance()
		expr := p.parseExpr()
		s := &ast.PropertyStmt{
			Loc:      p.loc(tok),
			Property: ast.Property{Loc: p.loc(tok), Category: ast.Assertion, Expr: expr},
		}
		if p.current().Kind == lexer.TokString {
			s.Message = p.advance().Value
		}
		return s

	case lexer.TokAssume:
		p.advance()
		expr := p.parseExpr()
		s := &ast.PropertyStmt{
			Loc:      p.loc(tok),
			Property: ast.Property{Loc: p.loc(tok), Category: ast.Assumption, Expr: expr},
		}
		if p.current().Kind == lexer.TokString {
			s.Message = p.advance().Value
		}
		return s

	case lexer.TokPut:
		p.advance()
		if p.current().Kind == lexer.TokString {
			return &ast.Put{Loc: p.loc(tok), Text: p.advance().Value}
		}
		return &ast.Put{Loc: p.loc(tok), Value: p.parseExpr()}

	case lexer.TokReturn:
		p.advance()
		r := &ast.Return{Loc: p.loc(tok)}
		if p.current().Kind != lexer.TokSemicolon && !isStmtTerminator(p.current().Kind) {
			r.Expr = p.parseExpr()
		}
		return r

	case lexer.TokIdent:
		return p.parseAssignmentOrCall()
	}

	p.errorf("expected statement, found %s", describe(tok))
	return nil
}

func (p *Parser) parseAssignmentOrCall() ast.Stmt {
	tok := p.current()

	// A call is an identifier immediately followed by an argument list.
	if p.peek(1).Kind == lexer.TokLParen {
		call := p.parseCall()
		if call == nil {
			return nil
		}
		return &ast.ProcedureCall{Loc: p.loc(tok), Call: *call}
	}

	lhs := p.parseDesignator()
	if lhs == nil {
		return nil
	}
	if _, ok := p.expect(lexer.TokAssign); !ok {
		return nil
	}
	rhs := p.parseExpr()
	return &ast.Assignment{Loc: p.loc(tok), LHS: lhs, RHS: rhs}
}

// parseDesignator parses ident { .field | [expr] }.
func (p *Parser) parseDesignator() ast.Expr {
	name, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	var e ast.Expr = &ast.ExprID{Loc: p.loc(name), Name: name.Value}
	return p.parsePostfixOps(e)
}

func (p *Parser) parsePostfixOps(e ast.Expr) ast.Expr {
	for {
		switch p.current().Kind {
		case lexer.TokDot:
			dot := p.advance()
			field, ok := p.expect(lexer.TokIdent)
			if !ok {
				return e
			}
			e = &ast.Field{Loc: p.loc(dot), Record: e, FieldName: field.Value}
		case lexer.TokLBracket:
			br := p.advance()
			index := p.parseExpr()
			p.expect(lexer.TokRBracket)
			e = &ast.Element{Loc: p.loc(br), Array: e, Index: index}
		default:
			return e
		}
	}
}

func (p *Parser) parseCall() *ast.FunctionCall {
	name, ok := p.expect(lexer.TokIdent)
	if !ok {
		return nil
	}
	call := &ast.FunctionCall{Loc: p.loc(name), Name: name.Value}
	p.expect(lexer.TokLParen)
	for p.current().Kind != lexer.TokRParen && p.current().Kind != lexer.TokEOF {
		call.Args = append(call.Args, p.parseExpr())
		if !p.match(lexer.TokComma) {
			break
		}
	}
	p.expect(lexer.TokRParen)
	return call
}

func (p *Parser) parseIf() ast.Stmt {
	tok := p.advance() // if
	s := &ast.If{Loc: p.loc(tok)}

	cond := p.parseExpr()
	p.expect(lexer.TokThen)
	s.Clauses = append(s.Clauses, ast.IfClause{
		Loc:       p.loc(tok),
		Condition: cond,
		Body:      p.parseStmts(),
	})

	for p.current().Kind == lexer.TokElsif {
		et := p.advance()
		cond := p.parseExpr()
		p.expect(lexer.TokThen)
		s.Clauses = append(s.Clauses, ast.IfClause{
			Loc:       p.loc(et),
			Condition: cond,
			Body:      p.parseStmts(),
		})
	}

	if p.current().Kind == lexer.TokElse {
		et := p.advance()
		s.Clauses = append(s.Clauses, ast.IfClause{
			Loc:  p.loc(et),
			Body: p.parseStmts(),
		})
	}

	p.expect(lexer.TokEnd)
	return s
}

func (p *Parser) parseSwitch() ast.Stmt {
	tok := p.advance() // switch
	s := &ast.Switch{Loc: p.loc(tok), Expr: p.parseExpr()}

	for p.current().Kind == lexer.TokCase {
		ct := p.advance()
		c := ast.SwitchCase{Loc: p.loc(ct)}
		for {
			c.Matches = append(c.Matches, p.parseExpr())
			if !p.match(lexer.TokComma) {
				break
			}
		}
		p.expect(lexer.TokColon)
		c.Body = p.parseStmts()
		s.Cases = append(s.Cases, c)
	}

	if p.current().Kind == lexer.TokElse {
		et := p.advance()
		s.Cases = append(s.Cases, ast.SwitchCase{Loc: p.loc(et), Body: p.parseStmts()})
	}

	p.expect(lexer.TokEnd)
	return s
}

func (p *Parser) parseFor() ast.Stmt {
	tok := p.advance() // for
	q := p.parseQuantifier()
	if q == nil {
		return nil
	}
	p.expect(lexer.TokDo)
	body := p.parseStmts()
	p.expect(lexer.TokEnd)
	return &ast.For{Loc: p.loc(tok), Quantifier: q, Body: body}
}

func (p *Parser) parseWhile() ast.Stmt {
	tok := p.advance() // while
	cond := p.parseExpr()
	p.expect(lexer.TokDo)
	body := p.parseStmts()
	p.expect(lexer.TokEnd)
	return &ast.While{Loc: p.loc(tok), Condition: cond, Body: body}
}

func (p *Parser) parseAliasStmt() ast.Stmt {
	tok := p.advance() // alias
	aliases := p.parseAliasBindings()
	if aliases == nil {
		return nil
	}
	p.expect(lexer.TokDo)
	body := p.parseStmts()
	p.expect(lexer.TokEnd)
	return &ast.AliasStmt{Loc: p.loc(tok), Aliases: aliases, Body: body}
}

// ----------------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------------
//
// Precedence, loosest first: ?: -> | & ! comparison additive multiplicative
// unary-minus postfix primary.

func (p *Parser) parseExpr() ast.Expr {
	return p.parseTernary()
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseImplication()
	if cond == nil {
		return nil
	}
	if p.current().Kind != lexer.TokQuestion {
		return cond
	}
	tok := p.advance()
	lhs := p.parseTernary()
	p.expect(lexer.TokColon)
	rhs := p.parseTernary()
	return &ast.Ternary{Loc: p.loc(tok), Cond: cond, LHS: lhs, RHS: rhs}
}

func (p *Parser) parseImplication() ast.Expr {
	lhs := p.parseOr()
	if lhs == nil {
		return nil
	}
	if p.current().Kind != lexer.TokImplies {
		return lhs
	}
	tok := p.advance()
	// Implication is right-associative.
	rhs := p.parseImplication()
	return &ast.Binary{Loc: p.loc(tok), Op: ast.Implication, LHS: lhs, RHS: rhs}
}

func (p *Parser) parseOr() ast.Expr {
	lhs := p.parseAnd()
	for lhs != nil && p.current().Kind == lexer.TokPipe {
		tok := p.advance()
		rhs := p.parseAnd()
		lhs = &ast.Binary{Loc: p.loc(tok), Op: ast.Or, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) parseAnd() ast.Expr {
	lhs := p.parseNot()
	for lhs != nil && p.current().Kind == lexer.TokAmp {
		tok := p.advance()
		rhs := p.parseNot()
		lhs = &ast.Binary{Loc: p.loc(tok), Op: ast.And, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) parseNot() ast.Expr {
	if p.current().Kind == lexer.TokBang {
		tok := p.advance()
		return &ast.Unary{Loc: p.loc(tok), Op: ast.Not, RHS: p.parseNot()}
	}
	return p.parseComparison()
}

var comparisonOps = map[lexer.TokenKind]ast.BinaryOp{
	lexer.TokEq:    ast.Eq,
	lexer.TokNotEq: ast.Neq,
	lexer.TokLt:    ast.Lt,
	lexer.TokLtEq:  ast.Leq,
	lexer.TokGt:    ast.Gt,
	lexer.TokGtEq:  ast.Geq,
}

func (p *Parser) parseComparison() ast.Expr {
	lhs := p.parseAdditive()
	if lhs == nil {
		return nil
	}
	op, ok := comparisonOps[p.current().Kind]
	if !ok {
		return lhs
	}
	tok := p.advance()
	rhs := p.parseAdditive()
	return &ast.Binary{Loc: p.loc(tok), Op: op, LHS: lhs, RHS: rhs}
}

func (p *Parser) parseAdditive() ast.Expr {
	lhs := p.parseMultiplicative()
	for lhs != nil {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokPlus:
			op = ast.Add
		case lexer.TokMinus:
			op = ast.Sub
		default:
			return lhs
		}
		tok := p.advance()
		rhs := p.parseMultiplicative()
		lhs = &ast.Binary{Loc: p.loc(tok), Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) parseMultiplicative() ast.Expr {
	lhs := p.parseUnary()
	for lhs != nil {
		var op ast.BinaryOp
		switch p.current().Kind {
		case lexer.TokStar:
			op = ast.Mul
		case lexer.TokSlash:
			op = ast.Div
		case lexer.TokPercent:
			op = ast.Mod
		default:
			return lhs
		}
		tok := p.advance()
		rhs := p.parseUnary()
		lhs = &ast.Binary{Loc: p.loc(tok), Op: op, LHS: lhs, RHS: rhs}
	}
	return lhs
}

func (p *Parser) parseUnary() ast.Expr {
	if p.current().Kind == lexer.TokMinus {
		tok := p.advance()
		return &ast.Unary{Loc: p.loc(tok), Op: ast.Negative, RHS: p.parseUnary()}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	if e == nil {
		return nil
	}
	return p.parsePostfixOps(e)
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.current()
	switch tok.Kind {
	case lexer.TokNumber:
		p.advance()
		v, ok := new(big.Int).SetString(tok.Value, 10)
		if !ok {
			p.errorf("invalid number %q", tok.Value)
			return nil
		}
		return &ast.Number{Loc: p.loc(tok), Value: v}

	case lexer.TokLParen:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.TokRParen)
		return e

	case lexer.TokForall, lexer.TokExists:
		p.advance()
		kind := ast.Forall
		if tok.Kind == lexer.TokExists {
			kind = ast.Exists
		}
		q := p.parseQuantifier()
		if q == nil {
			return nil
		}
		p.expect(lexer.TokDo)
		body := p.parseExpr()
		p.expect(lexer.TokEnd)
		return &ast.Quantified{Loc: p.loc(tok), Kind: kind, Quantifier: q, Body: body}

	case lexer.TokIsUndefined:
		p.advance()
		p.expect(lexer.TokLParen)
		e := p.parseExpr()
		p.expect(lexer.TokRParen)
		return &ast.IsUndefined{Loc: p.loc(tok), E: e}

	case lexer.TokIdent:
		if p.peek(1).Kind == lexer.TokLParen {
			call := p.parseCall()
			if call == nil {
				return nil
			}
			return call
		}
		p.advance()
		return &ast.ExprID{Loc: p.loc(tok), Name: tok.Value}
	}

	p.errorf("expected expression, found %s", describe(tok))
	return nil
}
