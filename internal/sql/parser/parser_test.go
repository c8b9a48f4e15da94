package parser

import (
	"testing"

	"coredb/internal/sql/ast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT, name TEXT)")
	require.NoError(t, err)

	create, ok := stmt.(*ast.CreateTableStmt)
	require.True(t, ok)
	assert.Equal(t, "users", create.Table)
	require.Len(t, create.Columns, 2)
	assert.Equal(t, "INT", create.Columns[0].Type)
}

func TestParseCreateTableTolerant(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INT PRIMARY KEY, name TEXT NOT NULL)")
	require.NoError(t, err)
	create := stmt.(*ast.CreateTableStmt)
	require.Len(t, create.Columns, 2)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'alice')")
	require.NoError(t, err)

	ins := stmt.(*ast.InsertStmt)
	assert.Equal(t, "users", ins.Table)
	require.Len(t, ins.Values, 2)
	assert.Equal(t, ast.LitInt, ins.Values[0].Kind)
	assert.Equal(t, ast.LitString, ins.Values[1].Kind)
	assert.Equal(t, "alice", ins.Values[1].Str)
}

func TestParseSelectWithWhereAndLimit(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM users WHERE age > 18 LIMIT 5")
	require.NoError(t, err)

	sel := stmt.(*ast.SelectStmt)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, "users", sel.From.Table)
	require.NotNil(t, sel.Where)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, 5, *sel.Limit)
}

func TestParseSelectStar(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users")
	require.NoError(t, err)
	sel := stmt.(*ast.SelectStmt)
	require.Len(t, sel.Items, 1)
	assert.True(t, sel.Items[0].Star)
}

func TestParseSelectWithJoinAndAlias(t *testing.T) {
	stmt, err := Parse("SELECT u.id, o.total FROM users u JOIN orders o ON u.id = o.user_id")
	require.NoError(t, err)

	sel := stmt.(*ast.SelectStmt)
	assert.Equal(t, "u", sel.From.Alias)
	require.Len(t, sel.Joins, 1)
	assert.Equal(t, "orders", sel.Joins[0].Right.Table)
	assert.Equal(t, "o", sel.Joins[0].Right.Alias)
}

func TestParseLeftJoinRejected(t *testing.T) {
	_, err := Parse("SELECT * FROM users LEFT JOIN orders ON users.id = orders.user_id")
	assert.Error(t, err)
}

func TestParseAggregateAndGroupByHaving(t *testing.T) {
	stmt, err := Parse("SELECT dept, COUNT(*) FROM employees GROUP BY dept HAVING COUNT(*) > 2")
	require.NoError(t, err)

	sel := stmt.(*ast.SelectStmt)
	require.Len(t, sel.Items, 2)
	require.NotNil(t, sel.Items[1].Agg)
	assert.Equal(t, "COUNT", sel.Items[1].Agg.Func)
	assert.True(t, sel.Items[1].Agg.Star)
	assert.Equal(t, []string{"dept"}, sel.GroupBy)
	require.NotNil(t, sel.Having)
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET age = 30 WHERE id = 1")
	require.NoError(t, err)

	upd := stmt.(*ast.UpdateStmt)
	assert.Equal(t, "users", upd.Table)
	require.Len(t, upd.Assignments, 1)
	assert.Equal(t, "age", upd.Assignments[0].Column)
	require.NotNil(t, upd.Where)
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)

	del := stmt.(*ast.DeleteStmt)
	assert.Equal(t, "users", del.Table)
	require.NotNil(t, del.Where)
}

func TestParseExplain(t *testing.T) {
	stmt, err := Parse("EXPLAIN SELECT * FROM users")
	require.NoError(t, err)

	explain := stmt.(*ast.ExplainStmt)
	require.NotNil(t, explain.Inner)
	assert.Equal(t, "users", explain.Inner.From.Table)
}

func TestParseUnknownStatementErrors(t *testing.T) {
	_, err := Parse("FROB users")
	assert.Error(t, err)
}

func TestParseMissingTokenErrors(t *testing.T) {
	_, err := Parse("SELECT * FROM")
	assert.Error(t, err)
}
