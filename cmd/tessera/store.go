package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/tessera/internal/platform"
	"github.com/aretw0/tessera/pkg/core"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// settings merges environment configuration with command-line flags.
func settings() (platform.Config, error) {
	cfg, err := platform.LoadConfig()
	if err != nil {
		return cfg, err
	}
	if adapterName != "" {
		cfg.Adapter = adapterName
	}
	if dsn != "" {
		cfg.DSN = dsn
	}
	if schemaPath != "" {
		cfg.Schema = schemaPath
	}
	if format != "" {
		cfg.Format = format
	}

	if cfg.Schema == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}
		root, err := platform.FindRoot(wd)
		if err != nil {
			return cfg, fmt.Errorf("no schema given: %w", err)
		}
		cfg.Schema = filepath.Join(root, platform.SchemaFileName)
	}
	if cfg.DSN == "" {
		dir := filepath.Dir(cfg.Schema)
		switch cfg.Adapter {
		case "sqlite":
			cfg.DSN = filepath.Join(dir, "tessera.db")
		case "fs":
			cfg.DSN = filepath.Join(dir, "data")
		}
	}
	return cfg, nil
}

// openStore returns the schema described by the current settings.
func openStore() (*core.Schema, error) {
	cfg, err := settings()
	if err != nil {
		return nil, err
	}
	f, err := platform.LoadSchemaFile(cfg.Schema)
	if err != nil {
		return nil, err
	}
	opts := append(cfg.Options(), platform.WithLogger(slog.Default()))
	s, err := platform.New(cfg.DSN, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := f.Apply(s); err != nil {
		_ = s.Close()
		return nil, err
	}
	slog.Debug("store opened", "adapter", cfg.Adapter, "dsn", cfg.DSN, "schema", cfg.Schema)
	return s, nil
}

// matchModels resolves a model name or glob pattern such as "User*".
func matchModels(s *core.Schema, pattern string) ([]*core.Model, error) {
	if m, ok := s.Model(pattern); ok {
		return []*core.Model{m}, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid model pattern %q", pattern)
	}
	var out []*core.Model
	for _, m := range s.Models() {
		if ok, _ := doublestar.Match(pattern, m.Name); ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no model matches %q", pattern)
	}
	return out, nil
}

// parseValue reads a command-line value as a YAML scalar so numbers, booleans
// and null keep their type. Anything else is a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case map[string]any:
		return v
	case []any:
		return v
	case nil:
		if strings.TrimSpace(s) == "" {
			return ""
		}
		return nil
	}
	if _, isString := v.(string); isString {
		return s
	}
	return v
}

// parseAssignments turns "key=value" pairs into fields.
func parseAssignments(pairs []string) (core.Fields, error) {
	fields := make(core.Fields, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		fields[key] = parseValue(value)
	}
	return fields, nil
}

// parseWhere turns "key=value" and "key:op=value" terms into conditions.
// Operands of inq, nin and between are comma separated.
func parseWhere(terms []string) (core.Where, error) {
	where := make(core.Where, len(terms))
	for _, term := range terms {
		lhs, value, ok := strings.Cut(term, "=")
		if !ok || lhs == "" {
			return nil, fmt.Errorf("expected key=value or key:op=value, got %q", term)
		}
		key, op, hasOp := strings.Cut(lhs, ":")
		if !hasOp {
			where[key] = parseValue(value)
			continue
		}

		var operand any = parseValue(value)
		switch op {
		case "inq", "in", "nin", "between":
			parts := strings.Split(value, ",")
			list := make([]any, len(parts))
			for i, p := range parts {
				list[i] = parseValue(strings.TrimSpace(p))
			}
			operand = list
		case "like", "nlike", "glob":
			operand = value
		}

		ops, _ := where[key].(core.Ops)
		if ops == nil {
			ops = core.Ops{}
		}
		ops[op] = operand
		where[key] = ops
	}
	return where, nil
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields core.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}
