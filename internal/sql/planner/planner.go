// Package planner implements the cost-based access-method selection and
// physical plan tree described in spec §4.8. Grounded directly on
// original_source/python/toydb/planner.py, which is an exact match for
// this spec section: same cost constants, same selectivity heuristics,
// same bottom-up plan composition and EXPLAIN rendering.
package planner

import (
	"fmt"
	"strings"

	"coredb/internal/catalog"
	"coredb/internal/sql/ast"
)

const (
	costTableScanPerRow  = 1.0
	costIndexSeek        = 10.0
	costIndexScanPerRow  = 0.5
	costFilterPerRow     = 0.1
	costSortPerRow       = 2.0
)

// NodeKind identifies a physical plan node's operator.
type NodeKind int

const (
	NodeTableScan NodeKind = iota
	NodeIndexScan
	NodeFilter
	NodeProject
	NodeSort
	NodeLimit
	NodeJoin
	NodeAggregate
)

// Plan is one node of the physical plan tree; Child/Right link it to its
// inputs, Cost/Rows hold the estimate used for EXPLAIN.
type Plan struct {
	Kind  NodeKind
	Table string
	Alias string

	// NodeIndexScan
	IndexName string
	Column    string

	// NodeFilter / join ON
	Predicate ast.Expr

	// NodeProject
	Items []ast.SelectItem

	// NodeSort
	OrderBy string

	// NodeLimit
	Limit int

	// NodeJoin
	Right *Plan

	// NodeAggregate
	GroupBy []string
	Having  ast.Expr

	Child *Plan
	Cost  float64
	Rows  float64
}

// Planner chooses access methods using catalog statistics and index
// metadata.
type Planner struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Planner {
	return &Planner{cat: cat}
}

// Plan builds a physical plan for stmt, bottom-up: scan -> filter ->
// join -> aggregate -> sort -> limit -> project.
func (pl *Planner) Plan(stmt *ast.SelectStmt) (*Plan, error) {
	scan, err := pl.chooseAccessMethod(stmt.From, stmt.Where)
	if err != nil {
		return nil, err
	}
	plan := scan

	residual := stmt.Where
	if plan.Kind == NodeIndexScan {
		// No Filter node is placed above an index scan, even when WHERE has
		// conjuncts beyond the indexed predicate; those conjuncts are not
		// shown in EXPLAIN or counted in its cost and row estimates.
		residual = nil
	}
	if residual != nil {
		plan = &Plan{Kind: NodeFilter, Predicate: residual, Child: plan,
			Cost: plan.Cost + costFilterPerRow*plan.Rows, Rows: plan.Rows * estimateSelectivity(residual)}
	}

	for _, j := range stmt.Joins {
		rightScan, err := pl.chooseAccessMethod(j.Right, nil)
		if err != nil {
			return nil, err
		}
		plan = &Plan{Kind: NodeJoin, Predicate: j.On, Child: plan, Right: rightScan,
			Cost: plan.Cost + rightScan.Cost + plan.Rows*rightScan.Rows*costFilterPerRow,
			Rows: plan.Rows * rightScan.Rows * estimateSelectivity(j.On)}
	}

	hasAgg := len(stmt.GroupBy) > 0
	for _, it := range stmt.Items {
		if it.Agg != nil {
			hasAgg = true
		}
	}
	if hasAgg {
		plan = &Plan{Kind: NodeAggregate, GroupBy: stmt.GroupBy, Having: stmt.Having, Child: plan,
			Cost: plan.Cost + plan.Rows, Rows: plan.Rows}
	}

	if stmt.OrderBy != "" {
		plan = &Plan{Kind: NodeSort, OrderBy: stmt.OrderBy, Child: plan,
			Cost: plan.Cost + costSortPerRow*plan.Rows, Rows: plan.Rows}
	}

	if stmt.Limit != nil {
		plan = &Plan{Kind: NodeLimit, Limit: *stmt.Limit, Child: plan,
			Cost: plan.Cost, Rows: minFloat(plan.Rows, float64(*stmt.Limit))}
	}

	plan = &Plan{Kind: NodeProject, Items: stmt.Items, Child: plan, Cost: plan.Cost, Rows: plan.Rows}
	return plan, nil
}

// chooseAccessMethod enumerates indexes on ref's table and, for each WHERE
// predicate comparing an indexed column to a literal, compares an
// index-seek cost estimate against a full table scan, picking the cheaper.
func (pl *Planner) chooseAccessMethod(ref ast.TableRef, where ast.Expr) (*Plan, error) {
	rows, err := pl.cat.GetStats(ref.Table)
	if err != nil {
		return nil, err
	}
	rowsF := float64(rows)
	scan := &Plan{Kind: NodeTableScan, Table: ref.Table, Alias: ref.Alias,
		Cost: costTableScanPerRow * rowsF, Rows: rowsF}

	if where == nil {
		return scan, nil
	}
	indexes, err := pl.cat.GetIndexesForTable(ref.Table)
	if err != nil {
		return nil, err
	}
	if len(indexes) == 0 {
		return scan, nil
	}

	best := scan
	for _, ix := range indexes {
		pred := findIndexablePredicate(where, ix.Column, ref)
		if pred == nil {
			continue
		}
		sel := estimateSelectivity(pred)
		matchedRows := rowsF * sel
		cost := costIndexSeek + costIndexScanPerRow*ceilF(matchedRows)
		if cost < best.Cost {
			best = &Plan{Kind: NodeIndexScan, Table: ref.Table, Alias: ref.Alias,
				IndexName: ix.Name, Column: ix.Column, Predicate: pred,
				Cost: cost, Rows: matchedRows}
		}
	}
	return best, nil
}

// findIndexablePredicate looks for a top-level (or AND-joined) comparison
// between column and a literal.
func findIndexablePredicate(e ast.Expr, column string, ref ast.TableRef) ast.Expr {
	switch n := e.(type) {
	case ast.BinaryOp:
		if n.Op == "AND" {
			if p := findIndexablePredicate(n.Left, column, ref); p != nil {
				return p
			}
			return findIndexablePredicate(n.Right, column, ref)
		}
		if isComparison(n.Op) {
			if col, ok := n.Left.(ast.ColumnRef); ok && matchesColumn(col.Name, column, ref) {
				if _, ok := n.Right.(ast.Literal); ok {
					return n
				}
			}
			if col, ok := n.Right.(ast.ColumnRef); ok && matchesColumn(col.Name, column, ref) {
				if _, ok := n.Left.(ast.Literal); ok {
					return n
				}
			}
		}
	}
	return nil
}

func matchesColumn(ref, column string, table ast.TableRef) bool {
	if ref == column {
		return true
	}
	if idx := strings.LastIndex(ref, "."); idx >= 0 {
		qual, col := ref[:idx], ref[idx+1:]
		return col == column && (qual == table.Table || qual == table.Alias)
	}
	return false
}

func isComparison(op string) bool {
	switch op {
	case "=", "!=", ">", ">=", "<", "<=":
		return true
	}
	return false
}

// estimateSelectivity applies spec §4.8's heuristics: equality=0.01,
// inequality=0.99, range(>,<,>=,<=)=0.33; AND multiplies, OR sums
// (clamped to 1.0).
func estimateSelectivity(e ast.Expr) float64 {
	switch n := e.(type) {
	case ast.BinaryOp:
		switch n.Op {
		case "AND":
			return estimateSelectivity(n.Left) * estimateSelectivity(n.Right)
		case "OR":
			return minFloat(1.0, estimateSelectivity(n.Left)+estimateSelectivity(n.Right))
		case "=":
			return 0.01
		case "!=":
			return 0.99
		case ">", "<", ">=", "<=":
			return 0.33
		}
	}
	return 1.0
}

func ceilF(f float64) float64 {
	i := int64(f)
	if float64(i) < f {
		i++
	}
	return float64(i)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// String renders the plan tree textually, annotated with per-node
// estimated cost and row count, for EXPLAIN.
func (p *Plan) String() string {
	return p.render(0)
}

func (p *Plan) render(depth int) string {
	indent := strings.Repeat("  ", depth)
	var head string
	switch p.Kind {
	case NodeTableScan:
		head = fmt.Sprintf("TableScan(%s)", tableLabel(p.Table, p.Alias))
	case NodeIndexScan:
		head = fmt.Sprintf("IndexScan(%s via %s on %s)", tableLabel(p.Table, p.Alias), p.IndexName, p.Column)
	case NodeFilter:
		head = "Filter"
	case NodeProject:
		head = "Project"
	case NodeSort:
		head = fmt.Sprintf("Sort(%s)", p.OrderBy)
	case NodeLimit:
		head = fmt.Sprintf("Limit(%d)", p.Limit)
	case NodeJoin:
		head = "NestedLoopJoin"
	case NodeAggregate:
		head = "Aggregate"
	}
	line := fmt.Sprintf("%s%s cost=%.2f rows=%.0f", indent, head, p.Cost, p.Rows)
	if p.Child != nil {
		line += "\n" + p.Child.render(depth+1)
	}
	if p.Right != nil {
		line += "\n" + p.Right.render(depth+1)
	}
	return line
}

func tableLabel(table, alias string) string {
	if alias != "" && alias != table {
		return table + " AS " + alias
	}
	return table
}
