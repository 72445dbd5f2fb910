package core

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Model is a named, schema-described collection of entities.
//
// Properties, relations, scopes, hooks and the validator are declared at
// setup time, before the model is used concurrently.
type Model struct {
	Name string

	schema    *Schema
	props     map[string]*Property
	names     []string
	relations map[string]*Relation

	classScopes    map[string]*scopeDef
	instanceScopes map[string]*scopeDef
	subScopes      map[string]Query

	validator Validatable
	hooks     Hookable
	cache     relationCache
}

func newModel(s *Schema, name string, props Properties) *Model {
	m := &Model{
		Name:           name,
		schema:         s,
		props:          make(map[string]*Property, len(props)+1),
		relations:      make(map[string]*Relation),
		classScopes:    make(map[string]*scopeDef),
		instanceScopes: make(map[string]*scopeDef),
		subScopes:      make(map[string]Query),
		hooks:          noHooks{},
	}
	m.props["id"] = &Property{Kind: Any}
	for pname, p := range props {
		if p.Kind == Array && p.Elem != nil && p.Elem.schema != s {
			panic(fmt.Errorf("%w: %s.%s element model belongs to another schema", ErrDefinition, name, pname))
		}
		m.props[pname] = &p
	}
	m.sortNames()
	return m
}

func (m *Model) sortNames() {
	m.names = m.names[:0]
	for name := range m.props {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
}

// Schema returns the schema the model is defined in.
func (m *Model) Schema() *Schema {
	return m.schema
}

// Property returns the declaration of a field.
func (m *Model) Property(name string) (Property, bool) {
	p, ok := m.props[name]
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// Properties returns the declared field names, "id" included, in sorted order.
func (m *Model) Properties() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Relation returns a relation declared on the model.
func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relations[name]
	return r, ok
}

// Relations returns every relation declared on the model, ordered by name.
func (m *Model) Relations() []*Relation {
	out := make([]*Relation, 0, len(m.relations))
	for _, r := range m.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UseValidator installs the validation contract for the model.
func (m *Model) UseValidator(v Validatable) *Model {
	m.validator = v
	return m
}

// UseHooks installs the hook contract for the model. Nil restores the default.
func (m *Model) UseHooks(h Hookable) *Model {
	if h == nil {
		h = noHooks{}
	}
	m.hooks = h
	return m
}

// ensureProperty declares name as an untyped property unless it already exists.
func (m *Model) ensureProperty(name string) {
	if _, ok := m.props[name]; ok {
		return
	}
	m.props[name] = &Property{Kind: Any, Index: true}
	m.sortNames()
	m.schema.announce(m)
}

// Definition describes the storage layout of the model.
func (m *Model) Definition() Definition {
	def := Definition{Name: m.Name}
	for _, name := range m.names {
		p := m.props[name]
		def.Columns = append(def.Columns, Column{Name: m.column(name), Kind: p.Kind, Index: p.Index})
	}
	return def
}

func (m *Model) checkName(name string) {
	if name == "" {
		panic(fmt.Errorf("%w: %s: empty name", ErrDefinition, m.Name))
	}
	if _, ok := m.props[name]; ok {
		panic(fmt.Errorf("%w: %s.%s collides with a property", ErrDefinition, m.Name, name))
	}
	if _, ok := m.relations[name]; ok {
		panic(fmt.Errorf("%w: %s.%s is already a relation", ErrDefinition, m.Name, name))
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func plural(s string) string {
	switch {
	case strings.HasSuffix(s, "y") && !strings.HasSuffix(s, "ay") && !strings.HasSuffix(s, "ey") && !strings.HasSuffix(s, "oy"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	}
	return s + "s"
}
