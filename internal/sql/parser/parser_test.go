package parser

import (
	"sentra/internal/sql/ast"
	"testing"
)

// parseString is the test convention grounded on internal/parser/parser_test.go:
// wrap ParseProgram's error-returning boundary so tests read the same way.
func parseString(input string) (stmts []ast.Stmt, errs []error) {
	stmts, err := ParseProgram(input)
	if err != nil {
		errs = append(errs, err)
	}
	return
}

func assertParseSuccess(t *testing.T, input string, description string) []ast.Stmt {
	stmts, errs := parseString(input)
	if len(errs) > 0 {
		t.Errorf("%s: parsing failed with errors: %v", description, errs)
		return nil
	}
	if stmts == nil {
		t.Errorf("%s: parsing returned nil statements", description)
		return nil
	}
	return stmts
}

func assertParseError(t *testing.T, input string, description string) {
	_, errs := parseString(input)
	if len(errs) == 0 {
		t.Errorf("%s: expected parsing to fail but it succeeded", description)
	}
}

func TestCreateTableStatements(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"basic table", "CREATE TABLE orders (id INT, amount FLOAT)", true},
		{"append only table", "CREATE TABLE events (id INT, ts INT) APPEND ONLY", true},
		{"missing paren", "CREATE TABLE orders id INT", false},
		{"missing column type", "CREATE TABLE orders (id)", false},
		{"missing name", "CREATE TABLE (id INT)", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestCreateTableAppendOnlyFlag(t *testing.T) {
	stmts := assertParseSuccess(t, "CREATE TABLE events (id INT) APPEND ONLY", "append only flag")
	ct, ok := stmts[0].(*ast.CreateTableStmt)
	if !ok {
		t.Fatalf("expected *ast.CreateTableStmt, got %T", stmts[0])
	}
	if !ct.AppendOnly {
		t.Errorf("expected AppendOnly to be true")
	}
	if ct.Name != "events" {
		t.Errorf("expected name %q, got %q", "events", ct.Name)
	}
	if len(ct.Columns) != 1 || ct.Columns[0].Name != "id" || ct.Columns[0].Type != "INT" {
		t.Errorf("unexpected columns: %+v", ct.Columns)
	}
}

func TestCreateViewWrapsSelect(t *testing.T) {
	stmts := assertParseSuccess(t, "CREATE VIEW big_orders AS SELECT id, amount FROM orders WHERE amount > 100", "create view")
	cv, ok := stmts[0].(*ast.CreateViewStmt)
	if !ok {
		t.Fatalf("expected *ast.CreateViewStmt, got %T", stmts[0])
	}
	if cv.Name != "big_orders" {
		t.Errorf("expected view name %q, got %q", "big_orders", cv.Name)
	}
	if cv.Query == nil || cv.Query.From == nil || cv.Query.From.Name != "orders" {
		t.Fatalf("expected query FROM orders, got %+v", cv.Query)
	}
	if cv.Query.Where == nil {
		t.Errorf("expected a WHERE clause")
	}
}

func TestSelectBasics(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"star", "SELECT * FROM orders", true},
		{"column list", "SELECT id, amount FROM orders", true},
		{"aliased column", "SELECT amount AS total FROM orders", true},
		{"arithmetic", "SELECT amount * 2 FROM orders", true},
		{"no from", "SELECT 1 + 1", true},
		{"missing from table", "SELECT * FROM", false},
		{"unterminated paren", "SELECT (amount FROM orders", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

func TestSelectWhereOperators(t *testing.T) {
	tests := []string{
		"SELECT * FROM orders WHERE amount > 100",
		"SELECT * FROM orders WHERE amount BETWEEN 10 AND 100",
		"SELECT * FROM orders WHERE amount NOT BETWEEN 10 AND 100",
		"SELECT * FROM orders WHERE status IN ('open', 'pending')",
		"SELECT * FROM orders WHERE status NOT IN ('closed')",
		"SELECT * FROM orders WHERE customer_id IS NULL",
		"SELECT * FROM orders WHERE customer_id IS NOT NULL",
		"SELECT * FROM orders WHERE name LIKE 'A%'",
		"SELECT * FROM orders WHERE name NOT LIKE 'A%'",
		"SELECT * FROM orders WHERE amount > 10 AND status = 'open'",
		"SELECT * FROM orders WHERE NOT (amount > 10)",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			assertParseSuccess(t, input, input)
		})
	}
}

func TestSelectJoin(t *testing.T) {
	stmts := assertParseSuccess(t, "SELECT o.id, c.name FROM orders o INNER JOIN customers c ON o.customer_id = c.id", "inner join")
	sel := stmts[0].(*ast.SelectStmt)
	if len(sel.Joins) != 1 {
		t.Fatalf("expected 1 join, got %d", len(sel.Joins))
	}
	j := sel.Joins[0]
	if j.Kind != "INNER" || j.Table.Name != "customers" || j.Table.Alias != "c" {
		t.Errorf("unexpected join clause: %+v", j)
	}
	if j.On == nil {
		t.Errorf("expected ON condition")
	}
}

func TestSelectCrossJoinHasNoOn(t *testing.T) {
	stmts := assertParseSuccess(t, "SELECT * FROM a CROSS JOIN b", "cross join")
	sel := stmts[0].(*ast.SelectStmt)
	if len(sel.Joins) != 1 || sel.Joins[0].Kind != "CROSS" {
		t.Fatalf("unexpected joins: %+v", sel.Joins)
	}
	if sel.Joins[0].On != nil {
		t.Errorf("expected no ON clause for CROSS JOIN")
	}
}

func TestSelectGroupByHavingOrderByLimit(t *testing.T) {
	input := "SELECT region, SUM(amount) AS total FROM orders GROUP BY region HAVING SUM(amount) > 100 ORDER BY total DESC LIMIT 10"
	stmts := assertParseSuccess(t, input, "group by having order by limit")
	sel := stmts[0].(*ast.SelectStmt)
	if len(sel.GroupBy) != 1 {
		t.Fatalf("expected 1 GROUP BY expr, got %d", len(sel.GroupBy))
	}
	if sel.Having == nil {
		t.Errorf("expected HAVING clause")
	}
	if len(sel.OrderBy) != 1 || !sel.OrderBy[0].Descending {
		t.Fatalf("expected one descending ORDER BY item, got %+v", sel.OrderBy)
	}
	if !sel.HasLimit || sel.Limit != 10 {
		t.Errorf("expected LIMIT 10, got has=%v val=%d", sel.HasLimit, sel.Limit)
	}
}

func TestSelectUnionFlattensArms(t *testing.T) {
	input := "SELECT id FROM a UNION SELECT id FROM b UNION ALL SELECT id FROM c"
	stmts := assertParseSuccess(t, input, "union chain")
	sel := stmts[0].(*ast.SelectStmt)
	if len(sel.Unions) != 2 {
		t.Fatalf("expected 2 union arms, got %d", len(sel.Unions))
	}
	if sel.Unions[0].All {
		t.Errorf("expected first union arm to be plain UNION")
	}
	if !sel.Unions[1].All {
		t.Errorf("expected second union arm to be UNION ALL")
	}
}

func TestSelectCaseAndCast(t *testing.T) {
	input := "SELECT CASE WHEN amount > 100 THEN 'big' ELSE 'small' END AS bucket, CAST(amount AS STRING) FROM orders"
	stmts := assertParseSuccess(t, input, "case and cast")
	sel := stmts[0].(*ast.SelectStmt)
	if len(sel.Columns) != 2 {
		t.Fatalf("expected 2 select items, got %d", len(sel.Columns))
	}
	caseExpr, ok := sel.Columns[0].Expr.(*ast.Case)
	if !ok {
		t.Fatalf("expected *ast.Case, got %T", sel.Columns[0].Expr)
	}
	if len(caseExpr.Whens) != 1 || caseExpr.Else == nil {
		t.Errorf("unexpected case shape: %+v", caseExpr)
	}
	castExpr, ok := sel.Columns[1].Expr.(*ast.Cast)
	if !ok {
		t.Fatalf("expected *ast.Cast, got %T", sel.Columns[1].Expr)
	}
	if castExpr.Type != "STRING" {
		t.Errorf("expected cast type STRING, got %q", castExpr.Type)
	}
}

func TestSelectFuncCallWithStarArg(t *testing.T) {
	stmts := assertParseSuccess(t, "SELECT COUNT(*) FROM orders", "count star")
	sel := stmts[0].(*ast.SelectStmt)
	fc, ok := sel.Columns[0].Expr.(*ast.FuncCall)
	if !ok {
		t.Fatalf("expected *ast.FuncCall, got %T", sel.Columns[0].Expr)
	}
	if fc.Name != "COUNT" {
		t.Errorf("expected function name COUNT, got %q", fc.Name)
	}
	if len(fc.Args) != 1 {
		t.Fatalf("expected 1 arg, got %d", len(fc.Args))
	}
	if _, ok := fc.Args[0].(*ast.Star); !ok {
		t.Errorf("expected Star arg, got %T", fc.Args[0])
	}
}

func TestMultipleStatementsSeparatedBySemicolons(t *testing.T) {
	input := "CREATE TABLE orders (id INT); SELECT * FROM orders;"
	stmts := assertParseSuccess(t, input, "multiple statements")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
}

func TestKeywordsAreCaseInsensitiveIdentifiersAreNot(t *testing.T) {
	stmts := assertParseSuccess(t, "select Id from Orders where Id > 1", "case insensitive keywords")
	sel := stmts[0].(*ast.SelectStmt)
	col, ok := sel.Columns[0].Expr.(*ast.ColumnRef)
	if !ok || col.Name != "Id" {
		t.Errorf("expected column reference to preserve case 'Id', got %+v", sel.Columns[0].Expr)
	}
	if sel.From.Name != "Orders" {
		t.Errorf("expected table name to preserve case 'Orders', got %q", sel.From.Name)
	}
}
