package exec

import (
	"strconv"
	"strings"

	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
)

// evalCtx carries a row view and, for joined rows, the set of unqualified
// column names that are ambiguous across the joined relations.
type evalCtx struct {
	row       row
	ambiguous map[string]bool
	// joinOn is true while evaluating a JOIN's ON predicate, where
	// ambiguity is never an error (spec §4.9's resolution rule always
	// tries the merged row's unqualified key first).
	joinOn bool
}

func newEvalCtx(r row) evalCtx { return evalCtx{row: r} }

// resolveColumn implements spec §4.9.2's column resolution: qualified
// references look themselves up directly; unqualified references outside
// an ON clause must error if ambiguous across joined tables.
func (c evalCtx) resolveColumn(name string) (any, error) {
	if strings.Contains(name, ".") {
		v, ok := c.row[name]
		if !ok {
			return nil, &dberr.SchemaError{Msg: "unknown column " + name}
		}
		return v, nil
	}
	if !c.joinOn && c.ambiguous != nil && c.ambiguous[name] {
		return nil, &dberr.SchemaError{Msg: "ambiguous column reference " + name}
	}
	v, ok := c.row[name]
	if !ok {
		return nil, &dberr.SchemaError{Msg: "unknown column " + name}
	}
	return v, nil
}

// evaluate recursively evaluates e against ctx, per spec §4.9.2: column
// references resolve against the row view, literal types are preserved,
// comparisons coerce to a common type first, and AND/OR short-circuit.
func evaluate(e ast.Expr, ctx evalCtx) (any, error) {
	switch n := e.(type) {
	case ast.Literal:
		return literalToValue(n), nil
	case ast.ColumnRef:
		return ctx.resolveColumn(n.Name)
	case ast.BinaryOp:
		return evaluateBinary(n, ctx)
	default:
		return nil, &dberr.SchemaError{Msg: "unsupported expression"}
	}
}

func evaluateBinary(n ast.BinaryOp, ctx evalCtx) (any, error) {
	switch n.Op {
	case "AND":
		left, err := evaluateTruthy(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !left {
			return false, nil
		}
		return evaluateTruthy(n.Right, ctx)
	case "OR":
		left, err := evaluateTruthy(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if left {
			return true, nil
		}
		return evaluateTruthy(n.Right, ctx)
	default:
		lv, err := evaluate(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		rv, err := evaluate(n.Right, ctx)
		if err != nil {
			return nil, err
		}
		return compare(n.Op, lv, rv), nil
	}
}

func evaluateTruthy(e ast.Expr, ctx evalCtx) (bool, error) {
	v, err := evaluate(e, ctx)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// compare applies an operator after coercing both sides to a common type:
// if either side is numeric and the other a numeric string, parse the
// string; otherwise compare as strings.
func compare(op string, a, b any) bool {
	af, aIsNum := asFloat(a)
	bf, bIsNum := asFloat(b)
	_, aIsStr := a.(string)
	_, bIsStr := b.(string)
	if aIsNum && bIsNum && !(aIsStr && bIsStr) {
		return numCompare(op, af, bf)
	}
	as, bs := fmtValue(a), fmtValue(b)
	switch op {
	case "=":
		return as == bs
	case "!=":
		return as != bs
	case ">":
		return as > bs
	case "<":
		return as < bs
	case ">=":
		return as >= bs
	case "<=":
		return as <= bs
	}
	return false
}

func numCompare(op string, a, b float64) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
