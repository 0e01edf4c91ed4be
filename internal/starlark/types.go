// Package starlark provides the Starlark execution context and builtins for
// template rendering and procedural models.
package starlark

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leaprun/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// TargetInfo contains database adapter/target information.
// Exposed as the "target" global in Starlark execution.
type TargetInfo struct {
	Type     string // "duckdb", "postgres", "sqlite"
	Schema   string // Schema models are written to
	Database string // Database name
}

// ThisInfo contains current model information.
// Exposed as the "this" global in Starlark execution.
type ThisInfo struct {
	Name         string // Current model name
	Schema       string // Current model schema
	Materialized string // Effective materialization
}

// ToStarlark converts TargetInfo to a Starlark struct value.
func (t *TargetInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("target"), starlark.StringDict{
		"type":     starlark.String(t.Type),
		"schema":   starlark.String(t.Schema),
		"database": starlark.String(t.Database),
	})
}

// ToStarlark converts ThisInfo to a Starlark struct value.
func (t *ThisInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("this"), starlark.StringDict{
		"name":         starlark.String(t.Name),
		"schema":       starlark.String(t.Schema),
		"materialized": starlark.String(t.Materialized),
	})
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, ints, floats, bool, time.Time, []string, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil
	case string:
		return starlark.String(val), nil
	case []byte:
		return starlark.String(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt64(int64(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case uint64:
		return starlark.MakeUint64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil
	case bool:
		return starlark.Bool(val), nil
	case time.Time:
		return starlark.String(val.Format(time.RFC3339Nano)), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return val.String(), nil
		}
		return i64, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Indexable: // list, tuple
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil
	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil
	default:
		return val.String(), nil
	}
}

// TableToStarlark exposes a table as a struct with "columns" (list of
// names) and "rows" (list of dicts keyed by column).
func TableToStarlark(t *core.Table) (starlark.Value, error) {
	if t == nil {
		t = &core.Table{}
	}
	cols := make([]starlark.Value, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = starlark.String(c)
	}

	rows := make([]starlark.Value, len(t.Rows))
	for i, row := range t.Rows {
		d := starlark.NewDict(len(t.Columns))
		for j, c := range t.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			if err := d.SetKey(starlark.String(c), sv); err != nil {
				return nil, err
			}
		}
		rows[i] = d
	}

	return starlarkstruct.FromStringDict(starlark.String("table"), starlark.StringDict{
		"columns": starlark.NewList(cols),
		"rows":    starlark.NewList(rows),
	}), nil
}

// TableFromStarlark reads a transform result. Accepted shapes:
// {"columns": [...], "rows": [[...], ...]} as a dict or struct, where each
// row is either a list in column order or a dict keyed by column.
func TableFromStarlark(v starlark.Value) (*core.Table, error) {
	var colsV, rowsV starlark.Value
	switch val := v.(type) {
	case *starlark.Dict:
		colsV, _, _ = val.Get(starlark.String("columns"))
		rowsV, _, _ = val.Get(starlark.String("rows"))
	case starlark.HasAttrs:
		colsV, _ = val.Attr("columns")
		rowsV, _ = val.Attr("rows")
	default:
		return nil, fmt.Errorf("transform must return a table, got %s", v.Type())
	}
	if colsV == nil || rowsV == nil {
		return nil, fmt.Errorf("transform result needs both columns and rows")
	}

	rawCols, err := ToGo(colsV)
	if err != nil {
		return nil, err
	}
	colList, ok := rawCols.([]any)
	if !ok {
		return nil, fmt.Errorf("columns must be a list, got %s", colsV.Type())
	}
	table := &core.Table{Columns: make([]string, len(colList))}
	for i, c := range colList {
		s, ok := c.(string)
		if !ok {
			return nil, fmt.Errorf("column %d must be a string", i)
		}
		table.Columns[i] = s
	}

	rawRows, err := ToGo(rowsV)
	if err != nil {
		return nil, err
	}
	rowList, ok := rawRows.([]any)
	if !ok {
		return nil, fmt.Errorf("rows must be a list, got %s", rowsV.Type())
	}
	for i, r := range rowList {
		switch row := r.(type) {
		case []any:
			if len(row) != len(table.Columns) {
				return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(table.Columns))
			}
			table.Rows = append(table.Rows, row)
		case map[string]any:
			out := make([]any, len(table.Columns))
			for j, c := range table.Columns {
				out[j] = row[c]
			}
			table.Rows = append(table.Rows, out)
		default:
			return nil, fmt.Errorf("row %d must be a list or dict", i)
		}
	}
	return table, nil
}
