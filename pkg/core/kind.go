package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind is the declared datatype of a property.
type Kind int

const (
	Any Kind = iota
	String
	Text
	Number
	Boolean
	Date
	JSON
	Array
)

var kindNames = map[Kind]string{
	Any:     "any",
	String:  "string",
	Text:    "text",
	Number:  "number",
	Boolean: "boolean",
	Date:    "date",
	JSON:    "json",
	Array:   "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind by its name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return Any, fmt.Errorf("%w: unknown kind %q", ErrDefinition, name)
}

// Property declares one field of a model.
type Property struct {
	Kind Kind
	// Default is either a literal value or a func() any evaluated per entity.
	Default any
	// Column renames the field on the storage side.
	Column string
	// Elem is the element model of an Array property holding entities.
	Elem  *Model
	Index bool
}

// Properties maps field names to their declarations.
type Properties map[string]Property

func (p *Property) defaultValue() (any, bool) {
	switch d := p.Default.(type) {
	case nil:
		return nil, false
	case func() any:
		return d(), true
	default:
		return d, true
	}
}

// coerce converts v to the property's kind. Values that cannot be converted
// are kept as given.
func (p *Property) coerce(v any) any {
	if v == nil {
		return nil
	}
	switch p.Kind {
	case String, Text:
		return toString(v)
	case Number:
		return toNumber(v)
	case Boolean:
		return toBoolean(v)
	case Date:
		return toDate(v)
	case JSON:
		return toJSON(v)
	default:
		return canonical(v)
	}
}

func toString(v any) any {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return s.String()
	case float64, float32, int, int64, int32, bool:
		return fmt.Sprint(s)
	}
	return v
}

func toNumber(v any) any {
	switch n := v.(type) {
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return canonicalFloat(f)
		}
		return v
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return canonicalFloat(f)
		}
		return v
	case bool:
		if n {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return n.UnixMilli()
	}
	return canonical(v)
}

func toBoolean(v any) any {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.TrimSpace(strings.ToLower(b)) {
		case "", "false", "0":
			return false
		}
		return true
	}
	if n, ok := canonical(v).(int64); ok {
		return n != 0
	}
	if f, ok := canonical(v).(float64); ok {
		return f != 0
	}
	return v
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func toDate(v any) any {
	switch d := v.(type) {
	case time.Time:
		return d.UTC()
	case *time.Time:
		if d == nil {
			return nil
		}
		return d.UTC()
	case string:
		if d == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UTC()
			}
		}
		return v
	}
	switch n := canonical(v).(type) {
	case int64:
		return time.UnixMilli(n).UTC()
	case float64:
		return time.UnixMilli(int64(n)).UTC()
	}
	return v
}

func toJSON(v any) any {
	var raw []byte
	switch s := v.(type) {
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	case json.RawMessage:
		raw = s
	default:
		return canonicalDeep(v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return canonicalDeep(out)
}

// canonical maps every Go numeric type to int64 when integral and to float64
// otherwise. Non-numeric values pass through.
func canonical(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return float64(n)
		}
		return int64(n)
	case float32:
		return canonicalFloat(float64(n))
	case float64:
		return canonicalFloat(n)
	case json.Number:
		return toNumber(n)
	}
	return v
}

func canonicalDeep(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = canonicalDeep(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = canonicalDeep(e)
		}
		return out
	}
	return canonical(v)
}

func canonicalFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// IsBlank reports whether v counts as an absent value: nil, the empty string,
// an empty slice or an empty List.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case *List:
		return x == nil || x.Len() == 0
	case []any:
		return len(x) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

// Key renders a value as a comparable identity key. Numerically equal values
// of different Go types share a key.
func Key(v any) string {
	switch x := canonical(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func isNewID(id any) bool {
	if IsBlank(id) {
		return true
	}
	if n, ok := canonical(id).(int64); ok {
		return n == 0
	}
	return false
}

func equalValues(a, b any) bool {
	ta, okA := a.(time.Time)
	tb, okB := b.(time.Time)
	if okA && okB {
		return ta.Equal(tb)
	}
	return reflect.DeepEqual(canonicalDeep(a), canonicalDeep(b))
}
