package catalog

import (
	"path"
	"testing"

	"coredb/internal/config"
	"coredb/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cfg := config.Default(path.Join(t.TempDir(), "test.db"))
	e, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	cat, err := New(e, nil)
	require.NoError(t, err)
	return cat
}

func TestCreateAndDescribeTable(t *testing.T) {
	cat := newTestCatalog(t)

	cols := []ColumnDef{{Name: "id", Type: "INT"}, {Name: "name", Type: "TEXT"}}
	require.NoError(t, cat.CreateTable("users", cols))

	got, err := cat.DescribeTable("users")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "id", got[0].Name)
	assert.Equal(t, 0, got[0].Ordinal)
	assert.Equal(t, "name", got[1].Name)
	assert.Equal(t, 1, got[1].Ordinal)
}

func TestCreateTableDuplicateFails(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "id", Type: "INT"}}))
	err := cat.CreateTable("users", []ColumnDef{{Name: "id", Type: "INT"}})
	assert.Error(t, err)
}

func TestDropTableMarksDeleted(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "id", Type: "INT"}}))
	require.NoError(t, cat.DropTable("users"))

	exists, err := cat.TableExists("users")
	require.NoError(t, err)
	assert.False(t, exists)

	cols, err := cat.DescribeTable("users")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestAddColumnAppendsAtNextOrdinal(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "id", Type: "INT"}}))
	require.NoError(t, cat.AddColumn("users", ColumnDef{Name: "age", Type: "INT"}))

	cols, err := cat.DescribeTable("users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "age", cols[1].Name)
	assert.Equal(t, 1, cols[1].Ordinal)
}

func TestCreateIndexRequiresExistingTable(t *testing.T) {
	cat := newTestCatalog(t)

	err := cat.CreateIndex("idx_age", "nosuchtable", "age")
	assert.Error(t, err)
}

func TestCreateAndListIndexes(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "age", Type: "INT"}}))
	require.NoError(t, cat.CreateIndex("idx_age", "users", "age"))

	indexes, err := cat.GetIndexesForTable("users")
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "age", indexes[0].Column)

	require.NoError(t, cat.DropIndex("idx_age"))
	indexes, err = cat.GetIndexesForTable("users")
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestDropTableInvalidatesIndexCache(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "age", Type: "INT"}}))
	require.NoError(t, cat.CreateIndex("idx_age", "users", "age"))

	indexes, err := cat.GetIndexesForTable("users")
	require.NoError(t, err)
	require.Len(t, indexes, 1)

	require.NoError(t, cat.DropTable("users"))

	indexes, err = cat.GetIndexesForTable("users")
	require.NoError(t, err)
	assert.Empty(t, indexes)
}

func TestStatsRoundTrip(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("users", []ColumnDef{{Name: "id", Type: "INT"}}))
	n, err := cat.GetStats("users")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, cat.UpdateStats("users", 42))
	n, err = cat.GetStats("users")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestListTablesExcludesDropped(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.CreateTable("a", []ColumnDef{{Name: "id", Type: "INT"}}))
	require.NoError(t, cat.CreateTable("b", []ColumnDef{{Name: "id", Type: "INT"}}))
	require.NoError(t, cat.DropTable("a"))

	names, err := cat.ListTables()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}
