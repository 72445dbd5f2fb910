package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// relationCache holds fetched related entities. Concurrent fetches may race
// on the same name; the last write wins.
type relationCache struct {
	mu sync.Mutex
	m  map[string]any
}

func (c *relationCache) get(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[name]
	return v, ok
}

func (c *relationCache) set(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]any)
	}
	c.m[name] = v
}

func (c *relationCache) snapshot() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Entity is one record of a model. It tracks its current values, the values
// last known to be persisted, and the related entities fetched for it.
type Entity struct {
	model *Model
	data  Fields
	was   Fields
	cache relationCache
	errs  *ValidationError
}

// New constructs an entity from data. Defaults fill the properties data does
// not carry; the result is not persisted.
func (m *Model) New(data Fields) *Entity {
	e := &Entity{model: m, data: make(Fields, len(m.names))}
	for _, name := range m.names {
		if _, given := data[name]; given {
			continue
		}
		if v, ok := m.props[name].defaultValue(); ok {
			e.Set(name, v)
		}
	}
	for k, v := range data {
		e.Set(k, v)
	}
	e.snapshot()
	return e
}

// Model returns the model the entity belongs to.
func (e *Entity) Model() *Model {
	return e.model
}

// Get returns the current value of a field.
func (e *Entity) Get(name string) any {
	return e.data[name]
}

// Set assigns a field through its property's coercion. Assigning an *Entity
// to a belongs-to relation name stores its id in the foreign key and caches it.
func (e *Entity) Set(name string, v any) {
	if rel, ok := e.model.relations[name]; ok && rel.Kind == BelongsTo {
		switch target := v.(type) {
		case *Entity:
			if target == nil {
				e.data[rel.ForeignKey] = nil
				e.cache.set(name, nil)
				return
			}
			e.data[rel.ForeignKey] = target.ID()
			e.cache.set(name, target)
			return
		case nil:
			e.data[rel.ForeignKey] = nil
			e.cache.set(name, nil)
			return
		}
	}
	p, ok := e.model.props[name]
	if !ok {
		e.data[name] = v
		return
	}
	if p.Kind == Array {
		if v == nil {
			e.data[name] = nil
			return
		}
		l := NewList(v, p.Elem)
		l.attach(e, name)
		e.data[name] = l
		return
	}
	e.data[name] = p.coerce(v)
}

// ID returns the entity's identity, nil while unsaved.
func (e *Entity) ID() any {
	return e.data["id"]
}

// Identity implements Element.
func (e *Entity) Identity() any {
	return e.ID()
}

// Object implements Element.
func (e *Entity) Object() Fields {
	return e.ToObject(true)
}

// IsNew reports whether the entity has no identity yet.
func (e *Entity) IsNew() bool {
	return isNewID(e.ID())
}

// List returns the list held by an Array field, nil when unset.
func (e *Entity) List(name string) *List {
	l, _ := e.data[name].(*List)
	return l
}

// PropertyChanged reports whether a field differs from its persisted value.
func (e *Entity) PropertyChanged(name string) bool {
	return !equalValues(plain(e.data[name]), e.was[name])
}

// Changed returns the declared fields that differ from their persisted value.
func (e *Entity) Changed() []string {
	var out []string
	for _, name := range e.model.names {
		if e.PropertyChanged(name) {
			out = append(out, name)
		}
	}
	return out
}

// Reset discards unsaved modifications of declared fields and drops
// undeclared ones.
func (e *Entity) Reset() {
	for name := range e.data {
		if _, declared := e.model.props[name]; !declared {
			delete(e.data, name)
		}
	}
	for _, name := range e.model.names {
		if e.PropertyChanged(name) {
			e.Set(name, e.was[name])
		}
	}
}

// ToObject returns the entity's values as plain data. Lists and nested
// entities are unwrapped. With onlySchema, undeclared fields are omitted.
func (e *Entity) ToObject(onlySchema bool) Fields {
	out := make(Fields, len(e.data))
	for _, name := range e.model.names {
		out[name] = plain(e.data[name])
	}
	if !onlySchema {
		for name, v := range e.data {
			if _, declared := e.model.props[name]; !declared {
				out[name] = plain(v)
			}
		}
	}
	return out
}

// MarshalJSON encodes the entity with its cached relations.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := e.ToObject(false)
	for name, v := range e.cache.snapshot() {
		if _, taken := out[name]; taken {
			continue
		}
		out[name] = v
	}
	return json.Marshal(out)
}

// Errors returns the failures of the last validation run, nil when it passed.
func (e *Entity) Errors() *ValidationError {
	return e.errs
}

// IsValid runs the model's validator against the entity.
func (e *Entity) IsValid(ctx context.Context) error {
	return e.validate(ctx)
}

func (e *Entity) validate(ctx context.Context) error {
	if e.model.validator == nil {
		e.errs = nil
		return nil
	}
	err := e.model.validator.IsValid(ctx, e)
	var verr *ValidationError
	if errors.As(err, &verr) {
		e.errs = verr
	} else {
		e.errs = nil
	}
	return err
}

// Cached returns a relation value fetched earlier.
func (e *Entity) Cached(name string) (any, bool) {
	return e.cache.get(name)
}

// CachedList returns a cached to-many relation.
func (e *Entity) CachedList(name string) []*Entity {
	v, _ := e.cache.get(name)
	list, _ := v.([]*Entity)
	return list
}

// CachedOne returns a cached to-one relation.
func (e *Entity) CachedOne(name string) *Entity {
	v, _ := e.cache.get(name)
	one, _ := v.(*Entity)
	return one
}

// snapshot marks every current value as persisted.
func (e *Entity) snapshot() {
	e.was = make(Fields, len(e.data))
	for name, v := range e.data {
		e.was[name] = plain(v)
	}
}

// advance marks the given fields as persisted.
func (e *Entity) advance(names ...string) {
	for _, name := range names {
		if rel, ok := e.model.relations[name]; ok && rel.Kind == BelongsTo {
			name = rel.ForeignKey
		}
		e.was[name] = plain(e.data[name])
	}
}

func plain(v any) any {
	switch x := v.(type) {
	case *List:
		if x == nil {
			return nil
		}
		return x.ToObject()
	case *Entity:
		if x == nil {
			return nil
		}
		return x.ToObject(true)
	}
	return v
}
