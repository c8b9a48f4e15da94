// Package parser implements the recursive-descent, one-token-lookahead
// parser for the grammar in spec §6. Grounded on
// original_source/python/toydb/parser.py (SQLParser: parse_select,
// _parse_column_expression, parse_join, expression precedence climbing)
// for grammar coverage including HAVING and aliases, which that file's
// executor never actually evaluates but which this repo completes (see
// SPEC_FULL.md Supplemented Features).
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
	"coredb/internal/sql/token"
)

type Parser struct {
	tokens []token.Token
	pos    int
}

// Parse tokenizes and parses sql into a single statement.
func Parse(sql string) (ast.Statement, error) {
	p := &Parser{tokens: token.Lex(sql)}
	return p.parseStatement()
}

func (p *Parser) current() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) peek(off int) *token.Token {
	idx := p.pos + off
	if idx >= len(p.tokens) {
		return nil
	}
	return &p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

// match reports whether the current token's text equals one of options
// (case-insensitive), without consuming it.
func (p *Parser) match(options ...string) bool {
	c := p.current()
	if c == nil {
		return false
	}
	up := strings.ToUpper(c.Text)
	for _, o := range options {
		if up == strings.ToUpper(o) {
			return true
		}
	}
	return false
}

func (p *Parser) expect(text string) (token.Token, error) {
	c := p.current()
	if c == nil || strings.ToUpper(c.Text) != strings.ToUpper(text) {
		offset := -1
		tok := "<eof>"
		if c != nil {
			offset = c.Offset
			tok = c.Text
		}
		return token.Token{}, &dberr.ParseError{Token: tok, Offset: offset, Msg: fmt.Sprintf("expected %q", text)}
	}
	return p.advance(), nil
}

func (p *Parser) errUnexpected(msg string) error {
	c := p.current()
	if c == nil {
		return &dberr.ParseError{Token: "<eof>", Offset: -1, Msg: msg}
	}
	return &dberr.ParseError{Token: c.Text, Offset: c.Offset, Msg: msg}
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	c := p.current()
	if c == nil {
		return nil, p.errUnexpected("empty statement")
	}
	switch strings.ToUpper(c.Text) {
	case "EXPLAIN":
		p.advance()
		inner, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		return &ast.ExplainStmt{Inner: inner}, nil
	case "CREATE":
		next := p.peek(1)
		if next == nil {
			return nil, p.errUnexpected("expected TABLE or INDEX after CREATE")
		}
		switch strings.ToUpper(next.Text) {
		case "TABLE":
			return p.parseCreateTable()
		case "INDEX":
			return p.parseCreateIndex()
		}
		return nil, p.errUnexpected("expected TABLE or INDEX after CREATE")
	case "DROP":
		next := p.peek(1)
		if next == nil {
			return nil, p.errUnexpected("expected TABLE or INDEX after DROP")
		}
		switch strings.ToUpper(next.Text) {
		case "TABLE":
			return p.parseDropTable()
		case "INDEX":
			return p.parseDropIndex()
		}
		return nil, p.errUnexpected("expected TABLE or INDEX after DROP")
	case "ALTER":
		return p.parseAlterTable()
	case "INSERT":
		return p.parseInsert()
	case "SELECT":
		return p.parseSelect()
	case "UPDATE":
		return p.parseUpdate()
	case "DELETE":
		return p.parseDelete()
	default:
		return nil, p.errUnexpected(fmt.Sprintf("unsupported statement: %s", c.Text))
	}
}

func (p *Parser) parseIdent() (string, error) {
	c := p.current()
	if c == nil {
		return "", p.errUnexpected("expected identifier")
	}
	if c.Kind != token.Ident && c.Kind != token.Keyword {
		return "", p.errUnexpected("expected identifier")
	}
	return p.advance().Text, nil
}

func (p *Parser) parseType() (string, error) {
	c := p.current()
	if c == nil {
		return "", p.errUnexpected("expected type")
	}
	t := strings.ToUpper(c.Text)
	if t != "INT" && t != "TEXT" && t != "FLOAT" {
		return "", p.errUnexpected("expected INT, TEXT, or FLOAT")
	}
	p.advance()
	return t, nil
}

func (p *Parser) parseCreateTable() (*ast.CreateTableStmt, error) {
	if _, err := p.expect("CREATE"); err != nil {
		return nil, err
	}
	if _, err := p.expect("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var cols []ast.ColumnDef
	for !p.match(")") {
		colName, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		colType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		cols = append(cols, ast.ColumnDef{Name: colName, Type: colType})
		// Tolerate trailing "PRIMARY KEY" / "NOT NULL" markers without
		// attaching semantics the spec doesn't define for them.
		for p.match("PRIMARY", "NOT", "NULL", "KEY") {
			p.advance()
		}
		if p.match(",") {
			p.advance()
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return &ast.CreateTableStmt{Table: name, Columns: cols}, nil
}

func (p *Parser) parseDropTable() (*ast.DropTableStmt, error) {
	if _, err := p.expect("DROP"); err != nil {
		return nil, err
	}
	if _, err := p.expect("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &ast.DropTableStmt{Table: name}, nil
}

func (p *Parser) parseAlterTable() (*ast.AlterTableStmt, error) {
	if _, err := p.expect("ALTER"); err != nil {
		return nil, err
	}
	if _, err := p.expect("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("ADD"); err != nil {
		return nil, err
	}
	if _, err := p.expect("COLUMN"); err != nil {
		return nil, err
	}
	colName, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	colType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &ast.AlterTableStmt{Table: table, NewColumn: ast.ColumnDef{Name: colName, Type: colType}}, nil
}

func (p *Parser) parseCreateIndex() (*ast.CreateIndexStmt, error) {
	if _, err := p.expect("CREATE"); err != nil {
		return nil, err
	}
	if _, err := p.expect("INDEX"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("ON"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	col, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return &ast.CreateIndexStmt{Index: name, Table: table, Column: col}, nil
}

func (p *Parser) parseDropIndex() (*ast.DropIndexStmt, error) {
	if _, err := p.expect("DROP"); err != nil {
		return nil, err
	}
	if _, err := p.expect("INDEX"); err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	return &ast.DropIndexStmt{Index: name}, nil
}

func (p *Parser) parseInsert() (*ast.InsertStmt, error) {
	if _, err := p.expect("INSERT"); err != nil {
		return nil, err
	}
	if _, err := p.expect("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	var values []ast.Literal
	for !p.match(")") {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, lit)
		if p.match(",") {
			p.advance()
		}
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return &ast.InsertStmt{Table: table, Values: values}, nil
}

// parseQualifiedIdent parses ident or ident . ident.
func (p *Parser) parseQualifiedIdent() (string, error) {
	first, err := p.parseIdent()
	if err != nil {
		return "", err
	}
	if p.match(".") {
		p.advance()
		second, err := p.parseIdent()
		if err != nil {
			return "", err
		}
		return first + "." + second, nil
	}
	return first, nil
}

func (p *Parser) parseSelectItem() (ast.SelectItem, error) {
	if p.match("COUNT", "SUM", "AVG", "MIN", "MAX") {
		agg, err := p.parseAggCall()
		if err != nil {
			return ast.SelectItem{}, err
		}
		return ast.SelectItem{Agg: agg}, nil
	}
	col, err := p.parseQualifiedIdent()
	if err != nil {
		return ast.SelectItem{}, err
	}
	return ast.SelectItem{Col: col}, nil
}

func (p *Parser) parseTableRef() (ast.TableRef, error) {
	name, err := p.parseIdent()
	if err != nil {
		return ast.TableRef{}, err
	}
	ref := ast.TableRef{Table: name}
	if p.match("AS") {
		p.advance()
		alias, err := p.parseIdent()
		if err != nil {
			return ast.TableRef{}, err
		}
		ref.Alias = alias
	} else if c := p.current(); c != nil && c.Kind == token.Ident && !p.match("LEFT", "RIGHT") {
		// bare alias: FROM t x
		ref.Alias = p.advance().Text
	}
	return ref, nil
}

func (p *Parser) parseJoin() (ast.JoinClause, error) {
	if p.match("LEFT", "RIGHT") {
		kind := p.advance().Text
		return ast.JoinClause{}, p.errUnexpected(fmt.Sprintf("unsupported join type %s (only inner nested-loop joins are supported)", kind))
	}
	if p.match("INNER") {
		p.advance()
	}
	if _, err := p.expect("JOIN"); err != nil {
		return ast.JoinClause{}, err
	}
	ref, err := p.parseTableRef()
	if err != nil {
		return ast.JoinClause{}, err
	}
	if _, err := p.expect("ON"); err != nil {
		return ast.JoinClause{}, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return ast.JoinClause{}, err
	}
	return ast.JoinClause{Right: ref, On: on}, nil
}

func (p *Parser) parseSelect() (*ast.SelectStmt, error) {
	if _, err := p.expect("SELECT"); err != nil {
		return nil, err
	}
	stmt := &ast.SelectStmt{}
	if p.match("*") {
		p.advance()
		stmt.Items = append(stmt.Items, ast.SelectItem{Star: true})
	} else {
		for {
			item, err := p.parseSelectItem()
			if err != nil {
				return nil, err
			}
			stmt.Items = append(stmt.Items, item)
			if !p.match(",") {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	stmt.From = from

	for p.match("INNER", "LEFT", "RIGHT", "JOIN") {
		j, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, j)
	}

	if p.match("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = w
	}

	if p.match("GROUP") {
		p.advance()
		if _, err := p.expect("BY"); err != nil {
			return nil, err
		}
		for {
			col, err := p.parseQualifiedIdent()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, col)
			if !p.match(",") {
				break
			}
			p.advance()
		}
	}

	if p.match("HAVING") {
		p.advance()
		h, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = h
	}

	if p.match("ORDER") {
		p.advance()
		if _, err := p.expect("BY"); err != nil {
			return nil, err
		}
		col, err := p.parseQualifiedIdent()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = col
	}

	if p.match("LIMIT") {
		p.advance()
		c := p.current()
		if c == nil || c.Kind != token.Int {
			return nil, p.errUnexpected("expected integer after LIMIT")
		}
		n, err := strconv.Atoi(p.advance().Text)
		if err != nil {
			return nil, p.errUnexpected("invalid LIMIT value")
		}
		stmt.Limit = &n
	}

	return stmt, nil
}

func (p *Parser) parseUpdate() (*ast.UpdateStmt, error) {
	if _, err := p.expect("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("SET"); err != nil {
		return nil, err
	}
	var assigns []ast.Assignment
	for {
		col, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("="); err != nil {
			return nil, err
		}
		val, err := p.parseExprPrimary()
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, ast.Assignment{Column: col, Value: val})
		if !p.match(",") {
			break
		}
		p.advance()
	}
	var where ast.Expr
	if p.match("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	return &ast.UpdateStmt{Table: table, Assignments: assigns, Where: where}, nil
}

func (p *Parser) parseDelete() (*ast.DeleteStmt, error) {
	if _, err := p.expect("DELETE"); err != nil {
		return nil, err
	}
	if _, err := p.expect("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	var where ast.Expr
	if p.match("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		where = w
	}
	return &ast.DeleteStmt{Table: table, Where: where}, nil
}

// Expression parsing: OR binds loosest, then AND, then comparison.

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.match("AND") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseExprPrimary()
	if err != nil {
		return nil, err
	}
	if p.match("=", ">", "<", ">=", "<=", "!=") {
		op := p.advance().Text
		right, err := p.parseExprPrimary()
		if err != nil {
			return nil, err
		}
		return ast.BinaryOp{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseExprPrimary() (ast.Expr, error) {
	c := p.current()
	if c == nil {
		return nil, p.errUnexpected("unexpected end of expression")
	}
	if p.match("(") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	if c.Kind == token.String || c.Kind == token.Int || c.Kind == token.Float {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return lit, nil
	}
	// An aggregate call may appear directly in a HAVING expression (spec
	// §4.9.1), not just the select list, so it's recognized here too.
	if p.match("COUNT", "SUM", "AVG", "MIN", "MAX") && p.peek(1) != nil && p.peek(1).Text == "(" {
		return p.parseAggCall()
	}
	name, err := p.parseQualifiedIdent()
	if err != nil {
		return nil, err
	}
	return ast.ColumnRef{Name: name}, nil
}

func (p *Parser) parseAggCall() (*ast.AggCall, error) {
	fn := strings.ToUpper(p.advance().Text)
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	if p.match("*") {
		p.advance()
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return &ast.AggCall{Func: fn, Star: true}, nil
	}
	arg, err := p.parseQualifiedIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return &ast.AggCall{Func: fn, Arg: arg}, nil
}

func (p *Parser) parseLiteral() (ast.Literal, error) {
	c := p.current()
	if c == nil {
		return ast.Literal{}, p.errUnexpected("expected literal")
	}
	switch c.Kind {
	case token.String:
		p.advance()
		return ast.Literal{Kind: ast.LitString, Str: c.Text[1 : len(c.Text)-1]}, nil
	case token.Float:
		p.advance()
		f, err := strconv.ParseFloat(c.Text, 64)
		if err != nil {
			return ast.Literal{}, &dberr.ParseError{Token: c.Text, Offset: c.Offset, Msg: "invalid float literal"}
		}
		return ast.Literal{Kind: ast.LitFloat, Float: f}, nil
	case token.Int:
		p.advance()
		n, err := strconv.ParseInt(c.Text, 10, 64)
		if err != nil {
			return ast.Literal{}, &dberr.ParseError{Token: c.Text, Offset: c.Offset, Msg: "invalid integer literal"}
		}
		return ast.Literal{Kind: ast.LitInt, Int: n}, nil
	default:
		return ast.Literal{}, p.errUnexpected("expected a literal value")
	}
}
