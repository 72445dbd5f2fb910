package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/tessera/pkg/core"
	"gopkg.in/yaml.v3"
)

// Serializer reads and writes the record list of one model file.
type Serializer interface {
	// Ext is the file extension, dot included.
	Ext() string
	Decode(data []byte) ([]core.Fields, error)
	Encode(rows []core.Fields) ([]byte, error)
}

// SerializerFor resolves a format name ("json", "yaml" or "yml").
func SerializerFor(format string) (Serializer, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "", "json":
		return JSONSerializer{}, nil
	case "yaml", "yml":
		return YAMLSerializer{}, nil
	}
	return nil, fmt.Errorf("unsupported fs format %q", format)
}

// JSONSerializer stores records as an indented JSON array.
type JSONSerializer struct{}

func (JSONSerializer) Ext() string { return ".json" }

func (JSONSerializer) Decode(data []byte) ([]core.Fields, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return toRows(raw), nil
}

func (JSONSerializer) Encode(rows []core.Fields) ([]byte, error) {
	if rows == nil {
		rows = []core.Fields{}
	}
	return json.MarshalIndent(rows, "", "  ")
}

// YAMLSerializer stores records as a YAML sequence.
type YAMLSerializer struct{}

func (YAMLSerializer) Ext() string { return ".yaml" }

func (YAMLSerializer) Decode(data []byte) ([]core.Fields, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return toRows(raw), nil
}

func (YAMLSerializer) Encode(rows []core.Fields) ([]byte, error) {
	plain := make([]map[string]any, len(rows))
	for i, r := range rows {
		plain[i] = r
	}
	return yaml.Marshal(plain)
}

func toRows(raw []map[string]any) []core.Fields {
	rows := make([]core.Fields, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		rows = append(rows, normalize(r).(map[string]any))
	}
	return rows
}

// normalize maps decoded numbers onto int64 and float64, the types the
// filter package and the core compare.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case uint64:
		return int64(x)
	}
	return v
}
