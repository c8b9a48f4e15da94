package exec

import (
	"sort"

	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
	"coredb/internal/sql/planner"
)

// scanTable performs a full table scan: range-scan the table's key
// prefix, skip soft-deleted rows, and parse each serialized row into a
// name-keyed view.
func (x *Executor) scanTable(table string) ([]record, error) {
	cols, err := x.cat.DescribeTable(table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		exists, err := x.cat.TableExists(table)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &dberr.SchemaError{Msg: "unknown table " + table}
		}
	}
	prefix := table + ":"
	kvs, err := x.eng.RangeScan([]byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return nil, err
	}
	var out []record
	for _, kv := range kvs {
		if string(kv.Value) == "DELETED" {
			continue
		}
		r, err := parseRow(string(kv.Value), cols)
		if err != nil {
			return nil, err
		}
		out = append(out, plainRecord(r))
	}
	return out, nil
}

// scanAccess runs a scan according to the plan node chosen by the
// planner: a table scan, or an index scan filtered by its seek predicate
// (no physical index exists, per spec §1 Non-goals, so an index scan is
// executed as a table scan narrowed by the predicate it was chosen for).
func (x *Executor) scanAccess(p *planner.Plan) ([]record, error) {
	all, err := x.scanTable(p.Table)
	if err != nil {
		return nil, err
	}
	if p.Kind == planner.NodeIndexScan && p.Predicate != nil {
		var filtered []record
		for _, rec := range all {
			ok, err := evaluateTruthy(p.Predicate, newEvalCtx2(rec))
			if err != nil {
				return nil, err
			}
			if ok {
				filtered = append(filtered, rec)
			}
		}
		return filtered, nil
	}
	return all, nil
}

// ExecuteSelect evaluates a SELECT (or the inner select of an EXPLAIN),
// returning the projected result rows.
func (x *Executor) ExecuteSelect(stmt *ast.SelectStmt) (*Result, error) {
	plan, err := x.planner.Plan(stmt)
	if err != nil {
		return nil, err
	}
	return x.runSelect(stmt, plan)
}

// ExecuteExplain builds the plan and renders it textually, annotated with
// per-node estimated cost and row count (spec §4.8).
func (x *Executor) ExecuteExplain(stmt *ast.ExplainStmt) (*Result, error) {
	plan, err := x.planner.Plan(stmt.Inner)
	if err != nil {
		return nil, err
	}
	return &Result{Message: plan.String()}, nil
}

func (x *Executor) runSelect(stmt *ast.SelectStmt, plan *planner.Plan) (*Result, error) {
	accessPlan := innermostScan(plan)
	records, err := x.scanAccess(accessPlan)
	if err != nil {
		return nil, err
	}

	leftName := stmt.From.Name()
	for _, j := range stmt.Joins {
		rightRecords, err := x.scanTable(j.Right.Table)
		if err != nil {
			return nil, err
		}
		records, err = nestedLoopJoin(records, leftName, rightRecords, j.Right.Name(), j.On)
		if err != nil {
			return nil, err
		}
	}

	// The full WHERE is always re-evaluated here, after any join, matching
	// the original's join-then-filter order. An index seek (scanAccess
	// above) only narrows the scan as a cost optimization; it is never a
	// substitute for this filter, since its predicate may be a strict
	// subset of stmt.Where (e.g. "c=42 AND d>5" with an index only on c).
	if stmt.Where != nil {
		records, err = filterRecords(records, stmt.Where)
		if err != nil {
			return nil, err
		}
	}

	hasAgg := len(stmt.GroupBy) > 0
	for _, it := range stmt.Items {
		if it.Agg != nil {
			hasAgg = true
		}
	}

	starColumns, err := x.starColumns(stmt)
	if err != nil {
		return nil, err
	}

	var projected []row
	if hasAgg {
		projected, err = x.evaluateAggregates(stmt, records)
	} else {
		projected, err = x.projectPlain(stmt, records, starColumns)
	}
	if err != nil {
		return nil, err
	}

	if stmt.OrderBy != "" {
		sortRows(projected, stmt.OrderBy)
	}
	if stmt.Limit != nil && *stmt.Limit < len(projected) {
		projected = projected[:*stmt.Limit]
	}

	cols := columnLabels(stmt.Items, starColumns)
	tuples := make([][]any, len(projected))
	for i, r := range projected {
		tuple := make([]any, len(cols))
		for j, c := range cols {
			tuple[j] = r[c]
		}
		tuples[i] = tuple
	}
	return &Result{Columns: cols, Rows: tuples}, nil
}

func innermostScan(p *planner.Plan) *planner.Plan {
	for p.Child != nil {
		p = p.Child
	}
	return p
}

func filterRecords(records []record, where ast.Expr) ([]record, error) {
	var out []record
	for _, rec := range records {
		ok, err := evaluateTruthy(where, newEvalCtx2(rec))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// starColumns resolves the ordinal column order "*" expands to: the
// FROM table's columns, followed by each joined table's, in ordinal
// order (spec §6: "'*' expands to the table's columns in ordinal
// order").
func (x *Executor) starColumns(stmt *ast.SelectStmt) ([]string, error) {
	needsStar := false
	for _, it := range stmt.Items {
		if it.Star {
			needsStar = true
		}
	}
	if !needsStar {
		return nil, nil
	}
	cols, err := x.cat.DescribeTable(stmt.From.Table)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	for _, j := range stmt.Joins {
		jcols, err := x.cat.DescribeTable(j.Right.Table)
		if err != nil {
			return nil, err
		}
		for _, c := range jcols {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

// projectPlain handles the non-aggregate case: project each record's
// select-list columns, with "*" expanding to starColumns in order.
func (x *Executor) projectPlain(stmt *ast.SelectStmt, records []record, starColumns []string) ([]row, error) {
	out := make([]row, 0, len(records))
	for _, rec := range records {
		projected, err := projectOne(stmt.Items, rec, starColumns)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

func projectOne(items []ast.SelectItem, rec record, starColumns []string) (row, error) {
	out := make(row)
	for _, it := range items {
		if it.Star {
			for _, name := range starColumns {
				if v, ok := rec.row[name]; ok {
					out[name] = v
				}
			}
			continue
		}
		v, err := newEvalCtx2(rec).resolveColumn(it.Col)
		if err != nil {
			return nil, err
		}
		out[it.Col] = v
	}
	return out, nil
}

// evaluateAggregates implements spec §4.9.1: group, compute each
// aggregate per group, apply HAVING, then hand back one row per group in
// the select list's declared order.
func (x *Executor) evaluateAggregates(stmt *ast.SelectStmt, records []record) ([]row, error) {
	groups, order, err := group(records, stmt.GroupBy)
	if err != nil {
		return nil, err
	}

	var out []row
	for _, key := range order {
		members := groups[key]
		out2 := make(row)
		for _, it := range stmt.Items {
			if it.Agg != nil {
				v, err := computeAggregate(it.Agg, members)
				if err != nil {
					return nil, err
				}
				out2[aggregateLabel(it.Agg)] = v
				continue
			}
			if len(members) == 0 {
				out2[it.Col] = nil
				continue
			}
			v, err := newEvalCtx2(members[0]).resolveColumn(it.Col)
			if err != nil {
				return nil, err
			}
			out2[it.Col] = v
		}

		if stmt.Having != nil {
			ok, err := evaluateHaving(stmt.Having, members, stmt.Items)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, out2)
	}
	return out, nil
}

// evaluateHaving evaluates a HAVING predicate against a group: plain
// column references resolve against the group's representative row,
// while aggregate calls appearing directly in the predicate are computed
// over the group's members.
func evaluateHaving(e ast.Expr, members []record, items []ast.SelectItem) (bool, error) {
	rewritten, err := substituteAggregates(e, members)
	if err != nil {
		return false, err
	}
	var rep row
	if len(members) > 0 {
		rep = members[0].row
	} else {
		rep = row{}
	}
	return evaluateTruthy(rewritten, evalCtx{row: rep})
}

// substituteAggregates walks e, replacing any aggregate call with the
// literal value it computes over members, so the rewritten expression can
// be evaluated with the ordinary expression evaluator.
func substituteAggregates(e ast.Expr, members []record) (ast.Expr, error) {
	switch n := e.(type) {
	case ast.BinaryOp:
		left, err := substituteAggregates(n.Left, members)
		if err != nil {
			return nil, err
		}
		right, err := substituteAggregates(n.Right, members)
		if err != nil {
			return nil, err
		}
		return ast.BinaryOp{Op: n.Op, Left: left, Right: right}, nil
	case *ast.AggCall:
		v, err := computeAggregate(n, members)
		if err != nil {
			return nil, err
		}
		return valueLiteral(v), nil
	default:
		return n, nil
	}
}

func valueLiteral(v any) ast.Literal {
	switch x := v.(type) {
	case int64:
		return ast.Literal{Kind: ast.LitInt, Int: x}
	case float64:
		return ast.Literal{Kind: ast.LitFloat, Float: x}
	default:
		return ast.Literal{Kind: ast.LitString, Str: fmtValue(v)}
	}
}

func columnLabels(items []ast.SelectItem, starColumns []string) []string {
	var cols []string
	for _, it := range items {
		switch {
		case it.Star:
			cols = append(cols, starColumns...)
		case it.Agg != nil:
			cols = append(cols, aggregateLabel(it.Agg))
		default:
			cols = append(cols, it.Col)
		}
	}
	return cols
}

func sortRows(rows []row, orderBy string) {
	sort.SliceStable(rows, func(i, j int) bool {
		vi, vj := rows[i][orderBy], rows[j][orderBy]
		if vi == nil {
			return false // nulls last
		}
		if vj == nil {
			return true
		}
		fi, iOK := asFloat(vi)
		fj, jOK := asFloat(vj)
		if iOK && jOK {
			return fi < fj
		}
		return fmtValue(vi) < fmtValue(vj)
	})
}
