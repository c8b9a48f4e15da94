// Aggregation, per spec §4.9.1. Grounded on
// original_source/python/toydb/aggregates.py: group_rows's
// defaultdict-by-tuple-key grouping and compute_aggregate's per-function
// switch, ported to Go maps keyed by a stringified tuple.
package exec

import (
	"fmt"
	"strings"

	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
)

// group assigns each record to a group keyed by the tuple of its GROUP BY
// column values. With no GROUP BY, all records form a single implicit
// group (spec §4.9.1).
func group(records []record, groupBy []string) (map[string][]record, []string, error) {
	groups := make(map[string][]record)
	var order []string

	for _, rec := range records {
		key, err := groupKey(rec, groupBy)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	if len(records) == 0 && len(groupBy) == 0 {
		// An aggregate over zero rows still yields one group (e.g. COUNT(*) = 0).
		groups[""] = nil
		order = []string{""}
	}
	return groups, order, nil
}

func groupKey(rec record, groupBy []string) (string, error) {
	if len(groupBy) == 0 {
		return "", nil
	}
	parts := make([]string, len(groupBy))
	for i, col := range groupBy {
		v, err := newEvalCtx2(rec).resolveColumn(col)
		if err != nil {
			return "", err
		}
		parts[i] = fmtValue(v)
	}
	return strings.Join(parts, "\x1f"), nil
}

func newEvalCtx2(rec record) evalCtx {
	return evalCtx{row: rec.row, ambiguous: rec.ambiguous}
}

// computeAggregate evaluates one aggregate call over a group's records.
// COUNT(*) counts rows; COUNT(col) counts non-null fields; AVG returns
// float; SUM/MIN/MAX return the column's declared (runtime) type.
func computeAggregate(agg *ast.AggCall, members []record) (any, error) {
	if agg.Star {
		return int64(len(members)), nil
	}
	var values []any
	for _, rec := range members {
		v, err := newEvalCtx2(rec).resolveColumn(agg.Arg)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values = append(values, v)
		}
	}

	switch agg.Func {
	case "COUNT":
		return int64(len(values)), nil
	case "SUM":
		if len(values) == 0 {
			return nil, nil
		}
		return sumValues(values), nil
	case "AVG":
		if len(values) == 0 {
			return nil, nil
		}
		sum, _ := asFloat(sumValues(values))
		return sum / float64(len(values)), nil
	case "MIN":
		return minMaxValues(values, true)
	case "MAX":
		return minMaxValues(values, false)
	default:
		return nil, &dberr.SchemaError{Msg: "unknown aggregate function " + agg.Func}
	}
}

func sumValues(values []any) any {
	allInt := true
	var fsum float64
	var isum int64
	for _, v := range values {
		switch x := v.(type) {
		case int64:
			isum += x
			fsum += float64(x)
		case float64:
			allInt = false
			fsum += x
		default:
			f, _ := asFloat(v)
			allInt = false
			fsum += f
		}
	}
	if allInt {
		return isum
	}
	return fsum
}

// minMaxValues compares numerically when every value is numeric, and
// lexicographically (Python's min/max over strings) otherwise, so MIN/MAX
// over a TEXT column doesn't fold every value to 0 via asFloat.
func minMaxValues(values []any, wantMin bool) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	best := values[0]
	_, allNumeric := asFloat(best)
	for _, v := range values[1:] {
		if _, ok := asFloat(v); !ok {
			allNumeric = false
		}
	}
	for _, v := range values[1:] {
		if allNumeric {
			bf, _ := asFloat(best)
			vf, _ := asFloat(v)
			if (wantMin && vf < bf) || (!wantMin && vf > bf) {
				best = v
			}
			continue
		}
		bs, vs := fmtValue(best), fmtValue(v)
		if (wantMin && vs < bs) || (!wantMin && vs > bs) {
			best = v
		}
	}
	return best, nil
}

// aggregateLabel renders the FUNC(arg) label for an aggregate item, used
// as its column header and as its key in the projected row.
func aggregateLabel(agg *ast.AggCall) string {
	if agg.Star {
		return fmt.Sprintf("%s(*)", agg.Func)
	}
	return fmt.Sprintf("%s(%s)", agg.Func, agg.Arg)
}
