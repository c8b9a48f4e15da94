package exec

import (
	"fmt"

	"coredb/internal/dberr"
	"coredb/internal/sql/ast"

	"go.uber.org/zap"
)

// ExecuteInsert resolves the table's columns from the catalog, coerces
// each value to its declared type, assigns a fresh row id, and stores the
// row under <table>:<row-id> as pipe-joined values, per spec §4.9.
func (x *Executor) ExecuteInsert(stmt *ast.InsertStmt) (*Result, error) {
	cols, err := x.cat.DescribeTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		exists, err := x.cat.TableExists(stmt.Table)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &dberr.SchemaError{Msg: "unknown table " + stmt.Table}
		}
	}
	if len(stmt.Values) != len(cols) {
		return nil, &dberr.SchemaError{Msg: fmt.Sprintf("column count mismatch: table %s has %d columns, got %d values", stmt.Table, len(cols), len(stmt.Values))}
	}

	values := make([]any, len(cols))
	for i, col := range cols {
		v, err := coerce(col, literalToValue(stmt.Values[i]))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	id, err := x.rowIDs.next(stmt.Table)
	if err != nil {
		return nil, err
	}
	key := rowKey(stmt.Table, id)
	if err := x.eng.Insert(key, []byte(serializeRow(values))); err != nil {
		return nil, err
	}

	rows, err := x.cat.GetStats(stmt.Table)
	if err != nil {
		return nil, err
	}
	if err := x.cat.UpdateStats(stmt.Table, rows+1); err != nil {
		return nil, err
	}

	x.log.Debug("insert", zap.String("table", stmt.Table), zap.String("key", string(key)))
	return &Result{Message: fmt.Sprintf("1 row inserted into %s", stmt.Table)}, nil
}

// ExecuteUpdate iterates rows via a full scan, applies WHERE, and for
// each matching row computes new values by evaluating each SET
// expression against the row, re-serializing and overwriting under the
// same key.
func (x *Executor) ExecuteUpdate(stmt *ast.UpdateStmt) (*Result, error) {
	cols, err := x.cat.DescribeTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	colByName := make(map[string]int, len(cols))
	for i, c := range cols {
		colByName[c.Name] = i
	}

	prefix := stmt.Table + ":"
	kvs, err := x.eng.RangeScan([]byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return nil, err
	}

	count := 0
	for _, kv := range kvs {
		if string(kv.Value) == "DELETED" {
			continue
		}
		r, err := parseRow(string(kv.Value), cols)
		if err != nil {
			return nil, err
		}
		if stmt.Where != nil {
			ok, err := evaluateTruthy(stmt.Where, newEvalCtx(r))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		values := make([]any, len(cols))
		for name, v := range r {
			if idx, ok := colByName[name]; ok {
				values[idx] = v
			}
		}
		for _, a := range stmt.Assignments {
			idx, ok := colByName[a.Column]
			if !ok {
				return nil, &dberr.SchemaError{Msg: "unknown column " + a.Column}
			}
			v, err := evaluate(a.Value, newEvalCtx(r))
			if err != nil {
				return nil, err
			}
			coerced, err := coerce(cols[idx], v)
			if err != nil {
				return nil, err
			}
			values[idx] = coerced
		}

		if err := x.eng.Update(kv.Key, []byte(serializeRow(values))); err != nil {
			return nil, err
		}
		count++
	}
	return &Result{Message: fmt.Sprintf("%d row(s) updated in %s", count, stmt.Table)}, nil
}

// ExecuteDelete iterates and applies WHERE; each matching row's value is
// marked DELETED (soft delete), and statistics are decremented.
func (x *Executor) ExecuteDelete(stmt *ast.DeleteStmt) (*Result, error) {
	cols, err := x.cat.DescribeTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	prefix := stmt.Table + ":"
	kvs, err := x.eng.RangeScan([]byte(prefix), []byte(prefix+"\xff"))
	if err != nil {
		return nil, err
	}

	count := 0
	for _, kv := range kvs {
		if string(kv.Value) == "DELETED" {
			continue
		}
		r, err := parseRow(string(kv.Value), cols)
		if err != nil {
			return nil, err
		}
		if stmt.Where != nil {
			ok, err := evaluateTruthy(stmt.Where, newEvalCtx(r))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if err := x.eng.Update(kv.Key, []byte("DELETED")); err != nil {
			return nil, err
		}
		count++
	}

	if count > 0 {
		rows, err := x.cat.GetStats(stmt.Table)
		if err != nil {
			return nil, err
		}
		newRows := rows - count
		if newRows < 0 {
			newRows = 0
		}
		if err := x.cat.UpdateStats(stmt.Table, newRows); err != nil {
			return nil, err
		}
	}
	return &Result{Message: fmt.Sprintf("%d row(s) deleted from %s", count, stmt.Table)}, nil
}
