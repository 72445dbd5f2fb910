package platform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/aretw0/tessera/pkg/validation"
	"gopkg.in/yaml.v3"
)

// SchemaFile describes models in YAML:
//
//	models:
//	  User:
//	    properties:
//	      name: string
//	      email: {type: string, index: true}
//	    relations:
//	      posts: {type: hasMany, model: Post}
//	    scopes:
//	      adults: {where: {age: {gte: 18}}, order: name}
//	    validations:
//	      - {rule: presence, field: name}
type SchemaFile struct {
	Models map[string]ModelSpec `yaml:"models"`
}

// ModelSpec declares one model.
type ModelSpec struct {
	Properties  map[string]PropertySpec `yaml:"properties"`
	Relations   map[string]RelationSpec `yaml:"relations"`
	Scopes      map[string]ScopeSpec    `yaml:"scopes"`
	Validations []ValidationSpec        `yaml:"validations"`
}

// PropertySpec declares a property. A bare scalar is read as its type.
type PropertySpec struct {
	Type    string `yaml:"type"`
	Default any    `yaml:"default"`
	Column  string `yaml:"column"`
	Index   bool   `yaml:"index"`
	// Elem names the element model of an array property.
	Elem string `yaml:"elem"`
}

// UnmarshalYAML accepts both "name: string" and the mapping form.
func (p *PropertySpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Type = node.Value
		return nil
	}
	type plain PropertySpec
	return node.Decode((*plain)(p))
}

// RelationSpec declares a relation. Type is hasMany, belongsTo or
// hasAndBelongsToMany.
type RelationSpec struct {
	Type       string `yaml:"type"`
	Model      string `yaml:"model"`
	ForeignKey string `yaml:"foreignKey"`
	TargetKey  string `yaml:"targetKey"`
	Through    string `yaml:"through"`
}

// ScopeSpec declares a named query.
type ScopeSpec struct {
	Where   map[string]any `yaml:"where"`
	Order   string         `yaml:"order"`
	Limit   int            `yaml:"limit"`
	Skip    int            `yaml:"skip"`
	Include any            `yaml:"include"`
}

// ValidationSpec declares one rule of the validation package.
type ValidationSpec struct {
	Rule     string `yaml:"rule"`
	Field    string `yaml:"field"`
	Message  string `yaml:"message"`
	If       string `yaml:"if"`
	Unless   string `yaml:"unless"`
	AllowNil bool   `yaml:"allowNil"`
	Min      int    `yaml:"min"`
	Max      int    `yaml:"max"`
	Is       int    `yaml:"is"`
	Pattern  string `yaml:"pattern"`
	Integer  bool   `yaml:"integer"`
	Values   []any  `yaml:"values"`
	Expr     string `yaml:"expr"`
}

// LoadSchemaFile reads and decodes a schema file.
func LoadSchemaFile(path string) (*SchemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	f, err := ParseSchemaFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseSchemaFile decodes a schema document. Unknown keys are rejected.
func ParseSchemaFile(data []byte) (*SchemaFile, error) {
	var f SchemaFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: invalid schema file: %v", core.ErrDefinition, err)
	}
	return &f, nil
}

// Apply defines every model of f on s. Models referenced as array elements
// are defined before the models holding them.
func (f *SchemaFile) Apply(s *core.Schema) (map[string]*core.Model, error) {
	models := make(map[string]*core.Model, len(f.Models))
	pending := make([]string, 0, len(f.Models))
	for name := range f.Models {
		pending = append(pending, name)
	}
	sort.Strings(pending)

	for len(pending) > 0 {
		var next []string
		for _, name := range pending {
			props, ready, err := f.properties(name, models)
			if err != nil {
				return nil, err
			}
			if !ready {
				next = append(next, name)
				continue
			}
			if err := guard(func() { models[name] = s.Define(name, props) }); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, fmt.Errorf("%w: cyclic array elements between %v", core.ErrDefinition, next)
		}
		pending = next
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.relate(name, models); err != nil {
			return nil, err
		}
	}
	for _, name := range names {
		spec := f.Models[name]
		m := models[name]
		for _, scope := range sortedKeys(spec.Scopes) {
			q := spec.Scopes[scope]
			err := guard(func() {
				m.DefineScope(scope, core.Query{
					Where:   core.Where(q.Where),
					Order:   q.Order,
					Limit:   q.Limit,
					Skip:    q.Skip,
					Include: q.Include,
				})
			})
			if err != nil {
				return nil, err
			}
		}
		if len(spec.Validations) > 0 {
			v, err := buildValidator(spec.Validations)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			m.UseValidator(v)
		}
	}
	return models, nil
}

func (f *SchemaFile) properties(name string, models map[string]*core.Model) (core.Properties, bool, error) {
	spec := f.Models[name]
	props := make(core.Properties, len(spec.Properties))
	for field, p := range spec.Properties {
		kind := core.Any
		if p.Type != "" {
			k, err := core.ParseKind(p.Type)
			if err != nil {
				return nil, false, fmt.Errorf("%s.%s: %w", name, field, err)
			}
			kind = k
		}
		prop := core.Property{Kind: kind, Default: p.Default, Column: p.Column, Index: p.Index}
		if p.Elem != "" {
			if _, declared := f.Models[p.Elem]; !declared {
				return nil, false, fmt.Errorf("%w: %s.%s: unknown element model %s", core.ErrDefinition, name, field, p.Elem)
			}
			elem, ok := models[p.Elem]
			if !ok {
				return nil, false, nil
			}
			prop.Elem = elem
		}
		props[field] = prop
	}
	return props, true, nil
}

func (f *SchemaFile) relate(name string, models map[string]*core.Model) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()

	spec := f.Models[name]
	m := models[name]
	for _, rel := range sortedKeys(spec.Relations) {
		r := spec.Relations[rel]
		target, ok := models[r.Model]
		if !ok {
			return fmt.Errorf("%w: %s.%s: unknown model %q", core.ErrDefinition, name, rel, r.Model)
		}
		opts := core.RelationOptions{ForeignKey: r.ForeignKey, TargetKey: r.TargetKey}
		if r.Through != "" {
			through, ok := models[r.Through]
			if !ok {
				return fmt.Errorf("%w: %s.%s: unknown join model %q", core.ErrDefinition, name, rel, r.Through)
			}
			opts.Through = through
		}
		switch r.Type {
		case "hasMany":
			m.HasMany(rel, target, opts)
		case "belongsTo":
			m.BelongsTo(rel, target, opts)
		case "hasAndBelongsToMany":
			m.HasAndBelongsToMany(rel, target, opts)
		default:
			return fmt.Errorf("%w: %s.%s: unknown relation type %q", core.ErrDefinition, name, rel, r.Type)
		}
	}
	return nil
}

// guard turns a definition panic into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	fn()
	return nil
}

func recovered(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrDefinition, r)
}

func buildValidator(specs []ValidationSpec) (*validation.Validator, error) {
	v := validation.New()
	for i, spec := range specs {
		if spec.Field == "" {
			return nil, fmt.Errorf("%w: validation %d has no field", core.ErrDefinition, i)
		}
		var opts []validation.Option
		if spec.Message != "" {
			opts = append(opts, validation.Message(spec.Message))
		}
		if spec.If != "" {
			opts = append(opts, validation.If(spec.If))
		}
		if spec.Unless != "" {
			opts = append(opts, validation.Unless(spec.Unless))
		}
		if spec.AllowNil {
			opts = append(opts, validation.AllowNil())
		}

		switch spec.Rule {
		case validation.CodePresence:
			v.Presence(spec.Field, opts...)
		case validation.CodeLength:
			v.Length(spec.Field, validation.Bounds{Min: spec.Min, Max: spec.Max, Is: spec.Is}, opts...)
		case validation.CodeFormat:
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: format of %s: %v", core.ErrDefinition, spec.Field, err)
			}
			v.Format(spec.Field, re, opts...)
		case validation.CodeNumericality:
			v.Numericality(spec.Field, spec.Integer, opts...)
		case validation.CodeInclusion:
			v.Inclusion(spec.Field, spec.Values, opts...)
		case validation.CodeExclusion:
			v.Exclusion(spec.Field, spec.Values, opts...)
		case validation.CodeUniqueness:
			v.Uniqueness(spec.Field, opts...)
		case validation.CodeExpr:
			v.Expr(spec.Field, spec.Expr, opts...)
		default:
			return nil, fmt.Errorf("%w: unknown validation rule %q", core.ErrDefinition, spec.Rule)
		}
	}
	return v, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
