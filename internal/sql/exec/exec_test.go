package exec

import (
	"path"
	"testing"

	"coredb/internal/catalog"
	"coredb/internal/config"
	"coredb/internal/engine"
	"coredb/internal/sql/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	cfg := config.Default(path.Join(t.TempDir(), "test.db"))
	e, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	cat, err := catalog.New(e, nil)
	require.NoError(t, err)
	return New(e, cat, nil)
}

func run(t *testing.T, x *Executor, sql string) *Result {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err)
	res, err := x.Execute(stmt)
	require.NoError(t, err)
	return res
}

func TestCreateTableAndInsertAndSelect(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, name TEXT, age INT)")
	run(t, x, "INSERT INTO users VALUES (1, 'alice', 30)")
	run(t, x, "INSERT INTO users VALUES (2, 'bob', 25)")

	res := run(t, x, "SELECT * FROM users")
	assert.Equal(t, []string{"id", "name", "age"}, res.Columns)
	require.Len(t, res.Rows, 2)
}

func TestSelectWithWhereFiltersRows(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, age INT)")
	run(t, x, "INSERT INTO users VALUES (1, 30)")
	run(t, x, "INSERT INTO users VALUES (2, 15)")

	res := run(t, x, "SELECT id FROM users WHERE age > 18")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0][0])
}

func TestUpdateModifiesMatchingRows(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, age INT)")
	run(t, x, "INSERT INTO users VALUES (1, 30)")
	run(t, x, "UPDATE users SET age = 31 WHERE id = 1")

	res := run(t, x, "SELECT age FROM users WHERE id = 1")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(31), res.Rows[0][0])
}

func TestDeleteSoftDeletesRows(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT)")
	run(t, x, "INSERT INTO users VALUES (1)")
	run(t, x, "INSERT INTO users VALUES (2)")
	run(t, x, "DELETE FROM users WHERE id = 1")

	res := run(t, x, "SELECT id FROM users")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(2), res.Rows[0][0])
}

func TestInsertColumnCountMismatchFails(t *testing.T) {
	x := newTestExecutor(t)
	run(t, x, "CREATE TABLE users (id INT, name TEXT)")

	stmt, err := parser.Parse("INSERT INTO users VALUES (1)")
	require.NoError(t, err)
	_, err = x.Execute(stmt)
	assert.Error(t, err)
}

func TestJoinMergesQualifiedColumns(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, name TEXT)")
	run(t, x, "CREATE TABLE orders (id INT, user_id INT, total INT)")
	run(t, x, "INSERT INTO users VALUES (1, 'alice')")
	run(t, x, "INSERT INTO orders VALUES (100, 1, 50)")

	res := run(t, x, "SELECT users.name, orders.total FROM users JOIN orders ON users.id = orders.user_id")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0][0])
	assert.Equal(t, int64(50), res.Rows[0][1])
}

func TestJoinThenWhereFiltersOnRightTableColumn(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, name TEXT)")
	run(t, x, "CREATE TABLE orders (id INT, user_id INT, product TEXT)")
	run(t, x, "INSERT INTO users VALUES (1, 'alice')")
	run(t, x, "INSERT INTO orders VALUES (100, 1, 'Laptop')")
	run(t, x, "INSERT INTO orders VALUES (101, 1, 'Mouse')")

	res := run(t, x, "SELECT users.name, orders.product FROM users JOIN orders ON users.id = orders.user_id WHERE orders.product = 'Laptop'")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0][0])
	assert.Equal(t, "Laptop", res.Rows[0][1])
}

func TestIndexScanStillAppliesResidualWhere(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE t (c INT, d INT)")
	run(t, x, "CREATE INDEX idx_c ON t (c)")
	run(t, x, "INSERT INTO t VALUES (42, 10)")
	run(t, x, "INSERT INTO t VALUES (42, 3)")
	for i := 0; i < 18; i++ {
		run(t, x, "INSERT INTO t VALUES (1, 1)")
	}

	res := run(t, x, "SELECT d FROM t WHERE c = 42 AND d > 5")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(10), res.Rows[0][0])
}

func TestMinMaxOverTextColumnIsLexicographic(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE names (name TEXT)")
	run(t, x, "INSERT INTO names VALUES ('charlie')")
	run(t, x, "INSERT INTO names VALUES ('alice')")
	run(t, x, "INSERT INTO names VALUES ('bob')")

	res := run(t, x, "SELECT MIN(name), MAX(name) FROM names")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "alice", res.Rows[0][0])
	assert.Equal(t, "charlie", res.Rows[0][1])
}

func TestSumAvgOverEmptyGroupReturnNull(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE sales (amount INT)")

	res := run(t, x, "SELECT SUM(amount), AVG(amount) FROM sales")
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][0])
	assert.Nil(t, res.Rows[0][1])
}

func TestAggregateCountSumAvg(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE sales (region TEXT, amount INT)")
	run(t, x, "INSERT INTO sales VALUES ('east', 10)")
	run(t, x, "INSERT INTO sales VALUES ('east', 20)")
	run(t, x, "INSERT INTO sales VALUES ('west', 5)")

	res := run(t, x, "SELECT region, COUNT(*), SUM(amount) FROM sales GROUP BY region")
	require.Len(t, res.Rows, 2)
}

func TestHavingFiltersGroups(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE sales (region TEXT, amount INT)")
	run(t, x, "INSERT INTO sales VALUES ('east', 10)")
	run(t, x, "INSERT INTO sales VALUES ('east', 20)")
	run(t, x, "INSERT INTO sales VALUES ('west', 5)")

	res := run(t, x, "SELECT region, COUNT(*) FROM sales GROUP BY region HAVING COUNT(*) > 1")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "east", res.Rows[0][0])
}

func TestOrderByAndLimit(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE nums (n INT)")
	run(t, x, "INSERT INTO nums VALUES (3)")
	run(t, x, "INSERT INTO nums VALUES (1)")
	run(t, x, "INSERT INTO nums VALUES (2)")

	res := run(t, x, "SELECT n FROM nums ORDER BY n LIMIT 2")
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0][0])
	assert.Equal(t, int64(2), res.Rows[1][0])
}

func TestExplainReturnsPlanText(t *testing.T) {
	x := newTestExecutor(t)
	run(t, x, "CREATE TABLE users (id INT)")

	res := run(t, x, "EXPLAIN SELECT * FROM users")
	assert.Contains(t, res.Message, "TableScan")
}

func TestAmbiguousColumnInJoinErrors(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE a (id INT, val INT)")
	run(t, x, "CREATE TABLE b (id INT, val INT)")
	run(t, x, "INSERT INTO a VALUES (1, 10)")
	run(t, x, "INSERT INTO b VALUES (1, 20)")

	stmt, err := parser.Parse("SELECT val FROM a JOIN b ON a.id = b.id")
	require.NoError(t, err)
	_, err = x.Execute(stmt)
	assert.Error(t, err)
}

func TestAlterTableAddsColumn(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT)")
	run(t, x, "ALTER TABLE users ADD COLUMN age INT")
	run(t, x, "INSERT INTO users VALUES (1, 40)")

	res := run(t, x, "SELECT age FROM users")
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(40), res.Rows[0][0])
}

func TestDropTableThenSelectFails(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT)")
	run(t, x, "DROP TABLE users")

	stmt, err := parser.Parse("SELECT * FROM users")
	require.NoError(t, err)
	_, err = x.Execute(stmt)
	assert.Error(t, err)
}

func TestCreateAndDropIndex(t *testing.T) {
	x := newTestExecutor(t)

	run(t, x, "CREATE TABLE users (id INT, age INT)")
	res := run(t, x, "CREATE INDEX idx_age ON users (age)")
	assert.Contains(t, res.Message, "idx_age")

	res = run(t, x, "DROP INDEX idx_age")
	assert.Contains(t, res.Message, "dropped")
}
