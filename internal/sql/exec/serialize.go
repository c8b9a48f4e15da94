package exec

import (
	"strconv"
	"strings"

	"coredb/internal/catalog"
	"coredb/internal/dberr"
	"coredb/internal/sql/ast"
)

// literalToValue converts a parsed literal into its runtime value: int64,
// float64, or string.
func literalToValue(l ast.Literal) any {
	switch l.Kind {
	case ast.LitInt:
		return l.Int
	case ast.LitFloat:
		return l.Float
	default:
		return l.Str
	}
}

// coerce converts v to the declared column type, per spec §4.9: "INT via
// integer parse, FLOAT via float parse, TEXT by string."
func coerce(col catalog.ColumnDef, v any) (any, error) {
	switch col.Type {
	case "INT":
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, &dberr.TypeError{Column: col.Name, Want: "INT", Value: x}
			}
			return n, nil
		}
	case "FLOAT":
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, &dberr.TypeError{Column: col.Name, Want: "FLOAT", Value: x}
			}
			return f, nil
		}
	case "TEXT":
		return fmtValue(v), nil
	}
	return nil, &dberr.TypeError{Column: col.Name, Want: col.Type, Value: fmtValue(v)}
}

// serializeRow joins values with the reserved pipe delimiter, per spec §6.
func serializeRow(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmtValue(v)
	}
	return strings.Join(parts, "|")
}

// parseRow splits a stored value on "|" and coerces each field to its
// column's declared type, building a name-keyed row view.
func parseRow(serialized string, cols []catalog.ColumnDef) (row, error) {
	fields := strings.Split(serialized, "|")
	r := make(row, len(cols))
	for i, col := range cols {
		if i >= len(fields) {
			r[col.Name] = nil
			continue
		}
		raw := fields[i]
		if raw == "None" {
			r[col.Name] = nil
			continue
		}
		v, err := coerceStored(col, raw)
		if err != nil {
			return nil, err
		}
		r[col.Name] = v
	}
	return r, nil
}

// coerceStored parses a raw stored field (always textual) into its
// column's declared runtime type.
func coerceStored(col catalog.ColumnDef, raw string) (any, error) {
	switch col.Type {
	case "INT":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &dberr.TypeError{Column: col.Name, Want: "INT", Value: raw}
		}
		return n, nil
	case "FLOAT":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &dberr.TypeError{Column: col.Name, Want: "FLOAT", Value: raw}
		}
		return f, nil
	default:
		return raw, nil
	}
}
