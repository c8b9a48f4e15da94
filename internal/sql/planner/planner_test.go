package planner

import (
	"path"
	"strings"
	"testing"

	"coredb/internal/catalog"
	"coredb/internal/config"
	"coredb/internal/engine"
	"coredb/internal/sql/ast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	cfg := config.Default(path.Join(t.TempDir(), "test.db"))
	e, err := engine.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	cat, err := catalog.New(e, nil)
	require.NoError(t, err)
	require.NoError(t, cat.CreateTable("users", []catalog.ColumnDef{{Name: "id", Type: "INT"}, {Name: "age", Type: "INT"}}))
	require.NoError(t, cat.UpdateStats("users", 1000))
	return New(cat)
}

func TestPlanTableScanWithNoIndex(t *testing.T) {
	pl := newTestPlanner(t)
	stmt := &ast.SelectStmt{
		Items: []ast.SelectItem{{Star: true}},
		From:  ast.TableRef{Table: "users"},
		Where: ast.BinaryOp{Op: "=", Left: ast.ColumnRef{Name: "age"}, Right: ast.Literal{Kind: ast.LitInt, Int: 30}},
	}
	plan, err := pl.Plan(stmt)
	require.NoError(t, err)

	leaf := innermost(plan)
	assert.Equal(t, NodeTableScan, leaf.Kind)
}

func TestPlanPrefersIndexSeekWhenCheaper(t *testing.T) {
	pl := newTestPlanner(t)
	require.NoError(t, pl.cat.CreateIndex("idx_age", "users", "age"))

	stmt := &ast.SelectStmt{
		Items: []ast.SelectItem{{Star: true}},
		From:  ast.TableRef{Table: "users"},
		Where: ast.BinaryOp{Op: "=", Left: ast.ColumnRef{Name: "age"}, Right: ast.Literal{Kind: ast.LitInt, Int: 30}},
	}
	plan, err := pl.Plan(stmt)
	require.NoError(t, err)

	leaf := innermost(plan)
	assert.Equal(t, NodeIndexScan, leaf.Kind)
	assert.Equal(t, "idx_age", leaf.IndexName)
}

func TestExplainRendersCostAndRows(t *testing.T) {
	pl := newTestPlanner(t)
	stmt := &ast.SelectStmt{
		Items: []ast.SelectItem{{Star: true}},
		From:  ast.TableRef{Table: "users"},
	}
	plan, err := pl.Plan(stmt)
	require.NoError(t, err)

	out := plan.String()
	assert.True(t, strings.Contains(out, "TableScan"))
	assert.True(t, strings.Contains(out, "cost="))
	assert.True(t, strings.Contains(out, "rows="))
}

func TestEstimateSelectivity(t *testing.T) {
	eq := ast.BinaryOp{Op: "=", Left: ast.ColumnRef{Name: "x"}, Right: ast.Literal{Kind: ast.LitInt, Int: 1}}
	assert.Equal(t, 0.01, estimateSelectivity(eq))

	rng := ast.BinaryOp{Op: ">", Left: ast.ColumnRef{Name: "x"}, Right: ast.Literal{Kind: ast.LitInt, Int: 1}}
	assert.Equal(t, 0.33, estimateSelectivity(rng))

	and := ast.BinaryOp{Op: "AND", Left: eq, Right: rng}
	assert.InDelta(t, 0.01*0.33, estimateSelectivity(and), 1e-9)
}

func innermost(p *Plan) *Plan {
	for p.Child != nil {
		p = p.Child
	}
	return p
}
