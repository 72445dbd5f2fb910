// Package filter evaluates core.Where conditions, order clauses and paging
// over rows held in process. It backs the memory and fs adapters.
package filter

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/bmatcuk/doublestar/v4"
)

// Apply filters rows by q.Where, sorts them by q.Order and pages them.
// rows is not modified.
func Apply(rows []core.Fields, q core.Query) ([]core.Fields, error) {
	out := make([]core.Fields, 0, len(rows))
	for _, row := range rows {
		ok, err := Match(row, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	Sort(out, q.Order)
	return Page(out, q.Skip, q.Limit), nil
}

// Match reports whether row satisfies every condition of where.
func Match(row core.Fields, where core.Where) (bool, error) {
	for field, cond := range where {
		ok, err := matchField(row[field], cond)
		if err != nil {
			return false, fmt.Errorf("field %s: %w", field, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchField(v, cond any) (bool, error) {
	var ops map[string]any
	switch c := cond.(type) {
	case core.Ops:
		ops = c
	case map[string]any:
		ops = c
	default:
		return Equal(v, cond), nil
	}
	for op, operand := range ops {
		ok, err := apply(op, v, operand)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func apply(op string, v, operand any) (bool, error) {
	switch op {
	case "gt", "gte", "lt", "lte":
		if v == nil {
			return false, nil
		}
		c, ok := Compare(v, operand)
		if !ok {
			return false, nil
		}
		switch op {
		case "gt":
			return c > 0, nil
		case "gte":
			return c >= 0, nil
		case "lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "ne", "neq":
		return !Equal(v, operand), nil
	case "inq", "in":
		return contains(operand, v), nil
	case "nin":
		return !contains(operand, v), nil
	case "between":
		bounds := Values(operand)
		if len(bounds) != 2 {
			return false, fmt.Errorf("between needs two bounds, got %d", len(bounds))
		}
		lo, ok1 := Compare(v, bounds[0])
		hi, ok2 := Compare(v, bounds[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0, nil
	case "like", "nlike":
		s, ok := v.(string)
		pattern, _ := operand.(string)
		re, err := likePattern(pattern)
		if err != nil {
			return false, err
		}
		matched := ok && re.MatchString(s)
		if op == "nlike" {
			return !matched, nil
		}
		return matched, nil
	case "glob":
		s, ok := v.(string)
		pattern, _ := operand.(string)
		if !ok {
			return false, nil
		}
		matched, err := doublestar.Match(pattern, s)
		if err != nil {
			return false, fmt.Errorf("glob %q: %w", pattern, err)
		}
		return matched, nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

// likePattern turns an SQL LIKE pattern into a case-insensitive regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func contains(set, v any) bool {
	for _, candidate := range Values(set) {
		if Equal(v, candidate) {
			return true
		}
	}
	return false
}

// Values spreads a slice operand into its elements. A scalar yields itself.
func Values(set any) []any {
	if s, ok := set.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(set)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{set}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Equal compares two stored values. Numbers compare by value whatever their
// Go type and times compare as instants.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values of compatible kinds. ok is false when they
// cannot be ordered.
func Compare(a, b any) (c int, ok bool) {
	if fa, isNum := number(a); isNum {
		if fb, isNum := number(b); isNum {
			return cmpFloat(fa, fb), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, isStr := b.(string); isStr {
			return strings.Compare(x, y), true
		}
		if y, isTime := b.(time.Time); isTime {
			if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return t.Compare(y), true
			}
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return x.Compare(y), true
		case string:
			if t, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return x.Compare(t), true
			}
		}
	case bool:
		if y, isBool := b.(bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// OrderKey is one term of an order clause.
type OrderKey struct {
	Field string
	Desc  bool
}

// ParseOrder splits a clause such as "name DESC, age" into its terms.
func ParseOrder(order string) []OrderKey {
	var keys []OrderKey
	for _, part := range strings.Split(order, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		keys = append(keys, OrderKey{
			Field: fields[0],
			Desc:  len(fields) > 1 && strings.EqualFold(fields[1], "desc"),
		})
	}
	return keys
}

// Sort orders rows in place by an order clause such as "name DESC, age".
// Missing values sort first. The sort is stable.
func Sort(rows []core.Fields, order string) {
	keys := ParseOrder(order)
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareForSort(rows[i][k.Field], rows[j][k.Field])
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c, ok := Compare(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// Page applies skip and limit. A limit of zero or less means no limit.
func Page(rows []core.Fields, skip, limit int) []core.Fields {
	if skip > 0 {
		if skip >= len(rows) {
			return rows[:0]
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
