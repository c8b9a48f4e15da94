package exec

import "coredb/internal/sql/ast"

// mergeRows combines left and right per spec §4.9: the result contains
// both qualified names (<table>.<column>) and unqualified names, where
// unqualified resolves to the left table on conflict. Grounded on
// original_source/executor.py's _execute_join (qualified-key building,
// __ambiguous_cols__ tracking) ported to the teacher's map-merging idiom.
func mergeRows(left row, leftName string, right row, rightName string) record {
	merged := make(row, len(left)+len(right))
	ambiguous := make(map[string]bool)

	for col, v := range left {
		merged[leftName+"."+col] = v
		merged[col] = v
	}
	for col, v := range right {
		merged[rightName+"."+col] = v
		if _, exists := merged[col]; exists {
			ambiguous[col] = true
		} else {
			merged[col] = v
		}
	}
	return record{row: merged, ambiguous: ambiguous}
}

// nestedLoopJoin pairs every row of left with every row of right,
// evaluating on against each merged view and keeping matches, per
// spec §4.9 ("only nested-loop is required").
func nestedLoopJoin(left []record, leftName string, right []record, rightName string, on ast.Expr) ([]record, error) {
	var out []record
	for _, l := range left {
		for _, r := range right {
			jr := mergeRows(l.row, leftName, r.row, rightName)
			ctx := evalCtx{row: jr.row, ambiguous: jr.ambiguous, joinOn: true}
			ok, err := evaluateTruthy(on, ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, jr)
			}
		}
	}
	return out, nil
}
