// Package exec evaluates parsed statements against the engine and
// catalog, per spec §4.9/§4.9.1/§4.9.2. Grounded primarily on
// original_source/python/toydb/executor.py (execute_insert/select/update/
// delete, the nested-loop join's qualified/unqualified column merging and
// ambiguity tracking, expression/type-coercion helpers) and
// original_source/python/toydb/aggregates.py for grouping; the Go
// coercion idiom follows the teacher's query_executor/type_conv.go
// (toInt/toFloat/compareValues).
package exec

import (
	"fmt"

	"coredb/internal/catalog"
	"coredb/internal/engine"
	"coredb/internal/sql/planner"

	"go.uber.org/zap"
)

// row is a name-keyed view over one table's values. For single-table
// scans the keys are unqualified column names; joins additionally carry
// qualified "table.column" keys (see join.go).
type row map[string]any

// record pairs a row view with the set of unqualified column names that
// are ambiguous in that view (always empty outside a join), threaded
// through the filter/join/aggregate/sort/project pipeline uniformly.
type record struct {
	row       row
	ambiguous map[string]bool
}

func plainRecord(r row) record { return record{row: r} }

// Result is the return shape of the top-level execute call (spec §6):
// DDL and mutations return a human-readable confirmation string; SELECT
// returns an ordered sequence of tuples.
type Result struct {
	Message string
	Columns []string
	Rows    [][]any
}

// Executor evaluates statements against one engine/catalog pair.
type Executor struct {
	eng     *engine.Engine
	cat     *catalog.Catalog
	planner *planner.Planner
	log     *zap.Logger

	rowIDs *rowIDGenerator
}

func New(eng *engine.Engine, cat *catalog.Catalog, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		eng:     eng,
		cat:     cat,
		planner: planner.New(cat),
		log:     log,
		rowIDs:  newRowIDGenerator(eng),
	}
}

func fmtValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case int64:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
