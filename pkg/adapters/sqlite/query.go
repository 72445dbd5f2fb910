package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tessera/pkg/adapters/filter"
	"github.com/aretw0/tessera/pkg/core"
)

// dateLayout has a fixed width so stored dates order lexically.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

var comparisons = map[string]string{
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// compileWhere renders where as a " WHERE ..." clause. Keys are rendered in
// sorted order so equal filters produce equal statements.
func compileWhere(def core.Definition, where core.Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var (
		terms []string
		args  []any
	)
	for _, f := range fields {
		if !hasColumn(def, f) {
			return "", nil, fmt.Errorf("sqlite: %s has no column %q", def.Name, f)
		}
		col := quote(f)
		var ops map[string]any
		switch c := where[f].(type) {
		case core.Ops:
			ops = c
		case map[string]any:
			ops = c
		case nil:
			terms = append(terms, col+" IS NULL")
			continue
		default:
			terms = append(terms, col+" = ?")
			args = append(args, encode(c))
			continue
		}

		names := make([]string, 0, len(ops))
		for op := range ops {
			names = append(names, op)
		}
		sort.Strings(names)
		for _, op := range names {
			term, opArgs, err := compileOp(col, op, ops[op])
			if err != nil {
				return "", nil, fmt.Errorf("field %s: %w", f, err)
			}
			terms = append(terms, term)
			args = append(args, opArgs...)
		}
	}
	return " WHERE " + strings.Join(terms, " AND "), args, nil
}

func compileOp(col, op string, operand any) (string, []any, error) {
	if sym, ok := comparisons[op]; ok {
		return col + " " + sym + " ?", []any{encode(operand)}, nil
	}
	switch op {
	case "ne", "neq":
		return col + " IS NOT ?", []any{encode(operand)}, nil
	case "inq", "in", "nin":
		set := filter.Values(operand)
		if len(set) == 0 {
			if op == "nin" {
				return "1", nil, nil
			}
			return "0", nil, nil
		}
		args := make([]any, len(set))
		for i, v := range set {
			args[i] = encode(v)
		}
		kw := " IN "
		if op == "nin" {
			kw = " NOT IN "
		}
		return col + kw + "(" + placeholders(len(set)) + ")", args, nil
	case "between":
		bounds := filter.Values(operand)
		if len(bounds) != 2 {
			return "", nil, fmt.Errorf("between needs two bounds, got %d", len(bounds))
		}
		return col + " BETWEEN ? AND ?", []any{encode(bounds[0]), encode(bounds[1])}, nil
	case "like":
		return col + " LIKE ?", []any{operand}, nil
	case "nlike":
		return col + " NOT LIKE ?", []any{operand}, nil
	case "glob":
		return col + " GLOB ?", []any{operand}, nil
	}
	return "", nil, fmt.Errorf("unsupported operator %q", op)
}

func compileOrder(def core.Definition, order string) (string, error) {
	keys := filter.ParseOrder(order)
	if len(keys) == 0 {
		return "", nil
	}
	terms := make([]string, len(keys))
	for i, k := range keys {
		if !hasColumn(def, k.Field) {
			return "", fmt.Errorf("sqlite: cannot order %s by unknown column %q", def.Name, k.Field)
		}
		terms[i] = quote(k.Field)
		if k.Desc {
			terms[i] += " DESC"
		}
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

// encode maps a value onto a type SQLite stores natively.
func encode(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, []byte:
		return x
	case int:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().Format(dateLayout)
	case map[string]any, []any, core.Fields:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
	return v
}

// decode normalizes driver values. Kind coercion happens in the core.
func decode(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func columnType(k core.Kind) string {
	switch k {
	case core.String, core.Text, core.Date, core.JSON, core.Array:
		return "TEXT"
	case core.Number:
		return "NUMERIC"
	case core.Boolean:
		return "INTEGER"
	}
	return ""
}
