// Package parser implements RogueScript's recursive-descent, precedence
// climbing grammar described in SPEC_FULL.md §4.2.
package parser

import (
	"fmt"

	"roguevault/internal/script/ast"
	"roguevault/internal/script/token"
)

// Error is one parse error: an unexpected token with a message and a
// source line.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[line %d] parse error: %s", e.Line, e.Message)
}

// Parser consumes a fixed token slice produced by the lexer.
type Parser struct {
	tokens  []token.Token
	current int
	errors  []error
}

// New creates a Parser over a complete, EOF-terminated token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse runs the full program → declaration* grammar. If any error was
// recorded during the parse the returned program is nil, per §4.2: "a
// parse that produced any error yields a null program."
func (p *Parser) Parse() (*ast.ProgramStmt, []error) {
	var statements []ast.Stmt
	for !p.isAtEnd() {
		stmt := p.declaration()
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return ast.NewProgram(statements), nil
}

// ---- declarations ----

func (p *Parser) declaration() ast.Stmt {
	errCountBefore := len(p.errors)
	var stmt ast.Stmt
	switch {
	case p.check(token.Def):
		stmt = p.defDecl()
	case p.check(token.Var):
		stmt = p.varDecl()
	default:
		stmt = p.statement()
	}
	// Any error recorded while parsing this statement/declaration
	// leaves the token stream in an unknown position; synchronize to
	// the next recoverable boundary before the caller's loop tries
	// again (§4.2). A no-op if a nested parser already synchronized.
	if len(p.errors) > errCountBefore {
		p.synchronize()
	}
	return stmt
}

func (p *Parser) defDecl() ast.Stmt {
	line := p.peek().Line
	p.advance() // def
	name := p.consume(token.Identifier, "expect function name")
	if name == nil {
		p.synchronize()
		return nil
	}
	if p.consume(token.LeftParen, "expect '(' after function name") == nil {
		p.synchronize()
		return nil
	}
	var params []string
	if !p.check(token.RightParen) {
		for {
			if len(params) >= 255 {
				p.errorAt(p.peek(), "can't have more than 255 parameters")
			}
			pname := p.consume(token.Identifier, "expect parameter name")
			if pname != nil {
				params = append(params, pname.Lexeme)
			}
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if p.consume(token.RightParen, "expect ')' after parameters") == nil {
		p.synchronize()
		return nil
	}
	if p.consume(token.LeftBrace, "expect '{' before function body") == nil {
		p.synchronize()
		return nil
	}
	body := p.blockBody()
	return ast.NewDefStmt(line, name.Lexeme, params, body)
}

func (p *Parser) varDecl() ast.Stmt {
	line := p.peek().Line
	p.advance() // var
	name := p.consume(token.Identifier, "expect variable name")
	if name == nil {
		p.synchronize()
		return nil
	}
	var init ast.Expr
	if p.match(token.Equal) {
		init = p.expression()
	}
	p.consumeSemicolon()
	return ast.NewVarDeclStmt(line, name.Lexeme, init)
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.check(token.Print):
		return p.printStmt()
	case p.check(token.Return):
		return p.returnStmt()
	case p.check(token.While):
		return p.whileStmt()
	case p.check(token.If):
		return p.ifStmt()
	case p.check(token.LeftBrace):
		line := p.peek().Line
		p.advance()
		return ast.NewBlockStmt(line, p.blockBody())
	default:
		return p.expressionStmt()
	}
}

func (p *Parser) blockBody() []ast.Stmt {
	var statements []ast.Stmt
	for !p.check(token.RightBrace) && !p.isAtEnd() {
		stmt := p.declaration()
		if stmt != nil {
			statements = append(statements, stmt)
		}
	}
	p.consume(token.RightBrace, "expect '}' after block")
	return statements
}

func (p *Parser) printStmt() ast.Stmt {
	line := p.peek().Line
	p.advance() // print
	expr := p.expression()
	p.consumeSemicolon()
	return ast.NewPrintStmt(line, expr)
}

func (p *Parser) returnStmt() ast.Stmt {
	line := p.peek().Line
	p.advance() // return
	var value ast.Expr
	if !p.check(token.Semicolon) {
		value = p.expression()
	}
	p.consumeSemicolon()
	return ast.NewReturnStmt(line, value)
}

func (p *Parser) whileStmt() ast.Stmt {
	line := p.peek().Line
	p.advance() // while
	p.consume(token.LeftParen, "expect '(' after 'while'")
	cond := p.expression()
	p.consume(token.RightParen, "expect ')' after condition")
	body := p.statement()
	return ast.NewWhileStmt(line, cond, body)
}

func (p *Parser) ifStmt() ast.Stmt {
	line := p.peek().Line
	p.advance() // if
	p.consume(token.LeftParen, "expect '(' after 'if'")
	cond := p.expression()
	p.consume(token.RightParen, "expect ')' after condition")
	then := p.statement()
	var els ast.Stmt
	if p.match(token.Else) {
		els = p.statement()
	}
	return ast.NewIfStmt(line, cond, then, els)
}

func (p *Parser) expressionStmt() ast.Stmt {
	line := p.peek().Line
	expr := p.expression()
	p.consumeSemicolon()
	return ast.NewExpressionStmt(line, expr)
}

// ---- expressions, lowest to highest precedence ----

func (p *Parser) expression() ast.Expr { return p.assignment() }

func (p *Parser) assignment() ast.Expr {
	expr := p.logicOr()
	if p.match(token.Equal) {
		equalsLine := p.previous().Line
		value := p.assignment()
		if v, ok := expr.(*ast.VariableExpr); ok {
			return ast.NewAssign(equalsLine, v.Name, value)
		}
		p.errorAt(p.previous(), "invalid assignment target")
		return expr
	}
	return expr
}

func (p *Parser) logicOr() ast.Expr {
	expr := p.logicAnd()
	for p.match(token.Or) {
		line := p.previous().Line
		right := p.logicAnd()
		expr = ast.NewLogical(line, expr, "or", right)
	}
	return expr
}

func (p *Parser) logicAnd() ast.Expr {
	expr := p.equality()
	for p.match(token.And) {
		line := p.previous().Line
		right := p.equality()
		expr = ast.NewLogical(line, expr, "and", right)
	}
	return expr
}

func (p *Parser) equality() ast.Expr {
	expr := p.comparison()
	for p.match(token.EqualEqual, token.BangEqual) {
		op := p.previous()
		right := p.comparison()
		expr = ast.NewBinary(op.Line, expr, op.Kind.String(), right)
	}
	return expr
}

func (p *Parser) comparison() ast.Expr {
	expr := p.term()
	for p.match(token.Greater, token.GreaterEqual, token.Less, token.LessEqual) {
		op := p.previous()
		right := p.term()
		expr = ast.NewBinary(op.Line, expr, op.Kind.String(), right)
	}
	return expr
}

func (p *Parser) term() ast.Expr {
	expr := p.factor()
	for p.match(token.Plus, token.Minus) {
		op := p.previous()
		right := p.factor()
		expr = ast.NewBinary(op.Line, expr, op.Kind.String(), right)
	}
	return expr
}

func (p *Parser) factor() ast.Expr {
	expr := p.unary()
	for p.match(token.Star, token.Slash) {
		op := p.previous()
		right := p.unary()
		expr = ast.NewBinary(op.Line, expr, op.Kind.String(), right)
	}
	return expr
}

func (p *Parser) unary() ast.Expr {
	if p.match(token.Bang, token.Minus) {
		op := p.previous()
		right := p.unary()
		return ast.NewUnary(op.Line, op.Kind.String(), right)
	}
	return p.call()
}

func (p *Parser) call() ast.Expr {
	expr := p.primary()
	for {
		if p.match(token.LeftParen) {
			expr = p.finishCall(expr)
		} else {
			break
		}
	}
	return expr
}

func (p *Parser) finishCall(callee ast.Expr) ast.Expr {
	line := p.previous().Line
	var args []ast.Expr
	if !p.check(token.RightParen) {
		for {
			if len(args) >= 255 {
				p.errorAt(p.peek(), "can't have more than 255 arguments")
			}
			args = append(args, p.expression())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "expect ')' after arguments")
	return ast.NewCall(line, callee, args)
}

func (p *Parser) primary() ast.Expr {
	switch {
	case p.match(token.Number):
		return ast.NewLiteral(p.previous().Line, p.previous().Literal)
	case p.match(token.String):
		return ast.NewLiteral(p.previous().Line, p.previous().Literal)
	case p.match(token.True):
		return ast.NewLiteral(p.previous().Line, true)
	case p.match(token.False):
		return ast.NewLiteral(p.previous().Line, false)
	case p.match(token.Nil):
		return ast.NewLiteral(p.previous().Line, nil)
	case p.match(token.Identifier):
		return ast.NewVariable(p.previous().Line, p.previous().Lexeme)
	case p.match(token.LeftParen):
		line := p.previous().Line
		expr := p.expression()
		p.consume(token.RightParen, "expect ')' after expression")
		return ast.NewGrouping(line, expr)
	}
	p.errorAt(p.peek(), "expect expression")
	// Consume the offending token so the parser always makes forward
	// progress, then return a harmless placeholder so callers can keep
	// walking the tree; Parse() reports the recorded error regardless.
	line := p.peek().Line
	p.advance()
	return ast.NewLiteral(line, nil)
}

// ---- token stream helpers ----

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) check(k token.Kind) bool {
	if p.isAtEnd() {
		return k == token.EOF
	}
	return p.peek().Kind == k
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) isAtEnd() bool { return p.peek().Kind == token.EOF }

func (p *Parser) peek() token.Token { return p.tokens[p.current] }

func (p *Parser) previous() token.Token { return p.tokens[p.current-1] }

func (p *Parser) consume(k token.Kind, message string) *token.Token {
	if p.check(k) {
		t := p.advance()
		return &t
	}
	p.errorAt(p.peek(), message)
	return nil
}

func (p *Parser) consumeSemicolon() {
	p.consume(token.Semicolon, "expect ';' after statement")
}

func (p *Parser) errorAt(t token.Token, message string) {
	p.errors = append(p.errors, &Error{Line: t.Line, Message: message})
}

// synchronize discards tokens until just past a ';' or until the next
// token begins a statement, per §4.2's error-recovery rule.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.previous().Kind == token.Semicolon {
			return
		}
		switch p.peek().Kind {
		case token.Def, token.Var, token.For, token.If, token.While, token.Print, token.Return, token.LeftBrace:
			return
		}
		p.advance()
	}
}
