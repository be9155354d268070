// Package parser implements a recursive-descent parser for the SQL
// dialect of spec.md §4.6, grounded on internal/parser/parser.go's
// precedence-table/parseBinary(minPrec) shape and its
// panic-on-syntax-error discipline (caught at the package boundary and
// turned into an ivmerr.ConstructionError, matching spec.md §7's
// "construction error: SQL parse failure" classification).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"sentra/internal/ivmerr"
	"sentra/internal/sql/ast"
	"sentra/internal/sql/lexer"
	"sentra/internal/sql/token"
)

type Parser struct {
	tokens  []token.Token
	current int
}

// New builds a Parser over an already-scanned token stream.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseProgram scans and parses src into zero or more top-level
// statements (CREATE TABLE, CREATE VIEW, or a bare SELECT), returning a
// *ivmerr.Error of Kind ConstructionError on any syntax problem instead
// of panicking across the package boundary.
func ParseProgram(src string) (stmts []ast.Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*ivmerr.Error); ok {
				err = e
				return
			}
			err = ivmerr.New(ivmerr.ConstructionError, "sql: parse failure: %v", r)
		}
	}()
	toks := lexer.New(src).ScanTokens()
	p := New(toks)
	stmts = p.Parse()
	return stmts, nil
}

// Parse parses every statement in the token stream up to EOF.
func (p *Parser) Parse() []ast.Stmt {
	var stmts []ast.Stmt
	for !p.isAtEnd() {
		stmts = append(stmts, p.statement())
		p.match(token.SEMICOLON)
	}
	return stmts
}

func (p *Parser) statement() ast.Stmt {
	if p.match(token.CREATE) {
		return p.createStatement()
	}
	return p.selectStatement()
}

func (p *Parser) createStatement() ast.Stmt {
	switch {
	case p.match(token.TABLE):
		return p.createTable()
	case p.match(token.VIEW):
		return p.createView()
	default:
		p.fail("expected TABLE or VIEW after CREATE")
		return nil
	}
}

func (p *Parser) createTable() ast.Stmt {
	name := p.consume(token.IDENT, "expected table name").Lexeme
	p.consume(token.LPAREN, "expected '(' after table name")
	var cols []ast.ColumnDef
	cols = append(cols, p.columnDef())
	for p.match(token.COMMA) {
		cols = append(cols, p.columnDef())
	}
	p.consume(token.RPAREN, "expected ')' after column list")
	appendOnly := false
	if p.match(token.APPEND) {
		p.consume(token.ONLY, "expected ONLY after APPEND")
		appendOnly = true
	}
	return &ast.CreateTableStmt{Name: name, Columns: cols, AppendOnly: appendOnly}
}

func (p *Parser) columnDef() ast.ColumnDef {
	name := p.consume(token.IDENT, "expected column name").Lexeme
	typ := p.consume(token.IDENT, "expected column type").Lexeme
	return ast.ColumnDef{Name: name, Type: typ}
}

func (p *Parser) createView() ast.Stmt {
	name := p.consume(token.IDENT, "expected view name").Lexeme
	p.consume(token.AS, "expected AS after view name")
	query := p.selectCore()
	return &ast.CreateViewStmt{Name: name, Query: query}
}

func (p *Parser) selectStatement() ast.Stmt {
	return p.selectCore()
}

// selectCore parses one SELECT...LIMIT query and any UNION/UNION ALL
// arms that directly follow it. Each arm is itself parsed with
// selectCoreNoUnion so a chain of unions flattens into one Unions slice
// rather than nesting.
func (p *Parser) selectCore() *ast.SelectStmt {
	stmt := p.selectCoreNoUnion()
	for p.match(token.UNION) {
		all := p.match(token.ALL)
		arm := p.selectCoreNoUnion()
		stmt.Unions = append(stmt.Unions, ast.UnionArm{All: all, Query: arm})
	}
	return stmt
}

func (p *Parser) selectCoreNoUnion() *ast.SelectStmt {
	p.consume(token.SELECT, "expected SELECT")
	stmt := &ast.SelectStmt{Columns: p.selectList()}

	if p.match(token.FROM) {
		from := p.tableRef()
		stmt.From = &from
		for p.checkAny(token.JOIN, token.INNER, token.LEFT, token.RIGHT, token.CROSS) {
			stmt.Joins = append(stmt.Joins, p.joinClause())
		}
	}
	if p.match(token.WHERE) {
		stmt.Where = p.expr()
	}
	if p.match(token.GROUP) {
		p.consume(token.BY, "expected BY after GROUP")
		stmt.GroupBy = append(stmt.GroupBy, p.expr())
		for p.match(token.COMMA) {
			stmt.GroupBy = append(stmt.GroupBy, p.expr())
		}
	}
	if p.match(token.HAVING) {
		stmt.Having = p.expr()
	}
	if p.match(token.ORDER) {
		p.consume(token.BY, "expected BY after ORDER")
		stmt.OrderBy = append(stmt.OrderBy, p.orderItem())
		for p.match(token.COMMA) {
			stmt.OrderBy = append(stmt.OrderBy, p.orderItem())
		}
	}
	if p.match(token.LIMIT) {
		tok := p.consume(token.NUMBER, "expected a number after LIMIT")
		n, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			p.fail("invalid LIMIT value %q", tok.Lexeme)
		}
		stmt.Limit = n
		stmt.HasLimit = true
	}
	return stmt
}

func (p *Parser) selectList() []ast.SelectItem {
	items := []ast.SelectItem{p.selectItem()}
	for p.match(token.COMMA) {
		items = append(items, p.selectItem())
	}
	return items
}

func (p *Parser) selectItem() ast.SelectItem {
	e := p.expr()
	alias := ""
	if p.match(token.AS) {
		alias = p.consume(token.IDENT, "expected alias after AS").Lexeme
	}
	return ast.SelectItem{Expr: e, Alias: alias}
}

func (p *Parser) tableRef() ast.TableRef {
	name := p.consume(token.IDENT, "expected table name").Lexeme
	alias := ""
	if p.match(token.AS) {
		alias = p.consume(token.IDENT, "expected alias after AS").Lexeme
	} else if p.check(token.IDENT) {
		alias = p.advance().Lexeme
	}
	return ast.TableRef{Name: name, Alias: alias}
}

func (p *Parser) joinClause() ast.JoinClause {
	kind := "INNER"
	switch {
	case p.match(token.INNER):
		kind = "INNER"
		p.consume(token.JOIN, "expected JOIN after INNER")
	case p.match(token.LEFT):
		kind = "LEFT"
		p.consume(token.JOIN, "expected JOIN after LEFT")
	case p.match(token.RIGHT):
		kind = "RIGHT"
		p.consume(token.JOIN, "expected JOIN after RIGHT")
	case p.match(token.CROSS):
		kind = "CROSS"
		p.consume(token.JOIN, "expected JOIN after CROSS")
	default:
		p.consume(token.JOIN, "expected JOIN")
	}
	table := p.tableRef()
	var on ast.Expr
	if kind != "CROSS" {
		p.consume(token.ON, "expected ON for a non-CROSS join")
		on = p.expr()
	}
	return ast.JoinClause{Kind: kind, Table: table, On: on}
}

func (p *Parser) orderItem() ast.OrderItem {
	e := p.expr()
	desc := false
	if p.match(token.DESC) {
		desc = true
	} else {
		p.match(token.ASC)
	}
	return ast.OrderItem{Expr: e, Descending: desc}
}

// --- expression parsing ---

func (p *Parser) expr() ast.Expr { return p.or() }

func (p *Parser) or() ast.Expr {
	left := p.and()
	for p.match(token.OR) {
		right := p.and()
		left = &ast.Binary{Left: left, Operator: "OR", Right: right}
	}
	return left
}

func (p *Parser) and() ast.Expr {
	left := p.not()
	for p.match(token.AND) {
		right := p.not()
		left = &ast.Binary{Left: left, Operator: "AND", Right: right}
	}
	return left
}

func (p *Parser) not() ast.Expr {
	if p.match(token.NOT) {
		return &ast.Unary{Operator: "NOT", Operand: p.not()}
	}
	return p.predicate()
}

// predicate handles comparison operators and the postfix predicates
// BETWEEN/IN/IS [NOT] NULL/LIKE, each optionally preceded by NOT.
func (p *Parser) predicate() ast.Expr {
	left := p.additive()

	negate := false
	if p.check(token.NOT) && p.checkNextAny(token.BETWEEN, token.IN, token.LIKE) {
		p.advance()
		negate = true
	}

	switch {
	case p.match(token.BETWEEN):
		low := p.additive()
		p.consume(token.AND, "expected AND in BETWEEN")
		high := p.additive()
		return &ast.Between{Expr: left, Low: low, High: high, Negate: negate}
	case p.match(token.IN):
		p.consume(token.LPAREN, "expected '(' after IN")
		var list []ast.Expr
		if !p.check(token.RPAREN) {
			list = append(list, p.expr())
			for p.match(token.COMMA) {
				list = append(list, p.expr())
			}
		}
		p.consume(token.RPAREN, "expected ')' after IN list")
		return &ast.InList{Expr: left, List: list, Negate: negate}
	case p.match(token.LIKE):
		pattern := p.additive()
		return &ast.Like{Expr: left, Pattern: pattern, Negate: negate}
	case p.match(token.IS):
		isNegate := p.match(token.NOT)
		p.consume(token.NULL, "expected NULL after IS [NOT]")
		return &ast.IsNull{Expr: left, Negate: isNegate}
	}

	if negate {
		p.fail("expected BETWEEN, IN or LIKE after NOT")
	}

	if op, ok := comparisonOp(p.peek().Type); ok {
		p.advance()
		right := p.additive()
		return &ast.Binary{Left: left, Operator: op, Right: right}
	}
	return left
}

func comparisonOp(t token.Type) (string, bool) {
	switch t {
	case token.EQ:
		return "=", true
	case token.NEQ:
		return "!=", true
	case token.LT:
		return "<", true
	case token.GT:
		return ">", true
	case token.LE:
		return "<=", true
	case token.GE:
		return ">=", true
	}
	return "", false
}

func (p *Parser) additive() ast.Expr {
	left := p.multiplicative()
	for p.checkAny(token.PLUS, token.MINUS) {
		op := p.advance().Lexeme
		right := p.multiplicative()
		left = &ast.Binary{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) multiplicative() ast.Expr {
	left := p.unary()
	for p.checkAny(token.STAR, token.SLASH, token.PERCENT) {
		op := p.advance().Lexeme
		right := p.unary()
		left = &ast.Binary{Left: left, Operator: op, Right: right}
	}
	return left
}

func (p *Parser) unary() ast.Expr {
	if p.match(token.MINUS) {
		return &ast.Unary{Operator: "-", Operand: p.unary()}
	}
	return p.primary()
}

func (p *Parser) primary() ast.Expr {
	tok := p.advance()
	switch tok.Type {
	case token.NUMBER:
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.fail("invalid number literal %q", tok.Lexeme)
		}
		return &ast.Literal{Value: v}
	case token.STRING:
		return &ast.Literal{Value: tok.Lexeme}
	case token.TRUE:
		return &ast.Literal{Value: true}
	case token.FALSE:
		return &ast.Literal{Value: false}
	case token.NULL:
		return &ast.Literal{Value: nil}
	case token.STAR:
		return &ast.Star{}
	case token.LPAREN:
		e := p.expr()
		p.consume(token.RPAREN, "expected ')' after expression")
		return e
	case token.CASE:
		return p.caseExpr()
	case token.CAST:
		return p.castExpr()
	case token.IDENT:
		name := tok.Lexeme
		if p.match(token.DOT) {
			col := p.consume(token.IDENT, "expected column name after '.'").Lexeme
			return &ast.ColumnRef{Table: name, Name: col}
		}
		if p.match(token.LPAREN) {
			var args []ast.Expr
			if !p.check(token.RPAREN) {
				args = append(args, p.expr())
				for p.match(token.COMMA) {
					args = append(args, p.expr())
				}
			}
			p.consume(token.RPAREN, "expected ')' after function arguments")
			return &ast.FuncCall{Name: strings.ToUpper(name), Args: args}
		}
		return &ast.ColumnRef{Name: name}
	default:
		p.fail("unexpected token %q in expression", tok.Lexeme)
		return nil
	}
}

func (p *Parser) caseExpr() ast.Expr {
	var whens []ast.WhenClause
	for p.match(token.WHEN) {
		cond := p.expr()
		p.consume(token.THEN, "expected THEN after WHEN condition")
		result := p.expr()
		whens = append(whens, ast.WhenClause{Cond: cond, Result: result})
	}
	if len(whens) == 0 {
		p.fail("expected at least one WHEN clause in CASE expression")
	}
	var elseExpr ast.Expr
	if p.match(token.ELSE) {
		elseExpr = p.expr()
	}
	p.consume(token.END, "expected END to close CASE expression")
	return &ast.Case{Whens: whens, Else: elseExpr}
}

func (p *Parser) castExpr() ast.Expr {
	p.consume(token.LPAREN, "expected '(' after CAST")
	e := p.expr()
	p.consume(token.AS, "expected AS in CAST")
	typ := p.consume(token.IDENT, "expected target type in CAST").Lexeme
	p.consume(token.RPAREN, "expected ')' after CAST")
	return &ast.Cast{Expr: e, Type: typ}
}

// --- token-stream utilities ---

func (p *Parser) match(t token.Type) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) checkAny(ts ...token.Type) bool {
	for _, t := range ts {
		if p.check(t) {
			return true
		}
	}
	return false
}

func (p *Parser) checkNextAny(ts ...token.Type) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.current+1].Type
	for _, t := range ts {
		if next == t {
			return true
		}
	}
	return false
}

func (p *Parser) check(t token.Type) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) consume(t token.Type, msg string, args ...interface{}) token.Token {
	if p.check(t) {
		return p.advance()
	}
	p.fail("%s (got %q on line %d)", fmt.Sprintf(msg, args...), p.peek().Lexeme, p.peek().Line)
	return token.Token{}
}

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) peek() token.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.peek().Type == token.EOF }

func (p *Parser) fail(format string, args ...interface{}) {
	panic(ivmerr.New(ivmerr.ConstructionError, "sql: "+format, args...))
}
