package core

import (
	"context"
	"fmt"
)

type scopeDef struct {
	name     string
	host     *Model
	target   *Model
	relation *Relation
	params   func(owner *Entity) Query
}

type callKind int

const (
	callPlain callKind = iota
	callRefresh
	callConditions
)

// Call selects how a scope accessor fetches.
type Call struct {
	kind    callKind
	refresh bool
	cond    Query
}

// PlainFetch returns the cached result when present.
var PlainFetch = Call{}

// Refresh bypasses the cache when force is true and stores the new result.
func Refresh(force bool) Call {
	return Call{kind: callRefresh, refresh: force}
}

// Conditions fetches with extra conditions. The result is never cached.
func Conditions(q Query) Call {
	return Call{kind: callConditions, refresh: true, cond: q}
}

func singleCall(calls []Call) (Call, error) {
	switch len(calls) {
	case 0:
		return PlainFetch, nil
	case 1:
		return calls[0], nil
	}
	return Call{}, fmt.Errorf("%w: at most one call descriptor is accepted, got %d", ErrUsage, len(calls))
}

// Scope is a named, parameterized query bound to a model or to an owner
// entity. Fetched results are cached under the scope name on the owner, or on
// the model for class scopes.
type Scope struct {
	def   *scopeDef
	owner *Entity
	query Query
	err   error
	// narrowed is set once Sub merged a sub-scope; such results bypass the
	// relation cache.
	narrowed bool
}

// DefineScope declares a class-level named scope. The conditions also serve
// as a sub-scope of the model for Scope.Sub.
func (m *Model) DefineScope(name string, q Query) {
	if _, exists := m.classScopes[name]; exists {
		panic(fmt.Errorf("%w: %s scope %q already defined", ErrDefinition, m.Name, name))
	}
	q = q.Clone()
	m.subScopes[name] = q
	m.classScopes[name] = &scopeDef{
		name:   name,
		host:   m,
		target: m,
		params: func(*Entity) Query { return q.Clone() },
	}
}

// Scope returns an accessor for a class-level scope.
func (m *Model) Scope(name string) *Scope {
	def, ok := m.classScopes[name]
	if !ok {
		return &Scope{err: fmt.Errorf("%w: %q is not defined for %s model", ErrUndefinedScope, name, m.Name)}
	}
	return &Scope{def: def, query: def.params(nil)}
}

// Scope returns an accessor for a relation scope bound to e.
func (e *Entity) Scope(name string) *Scope {
	def, ok := e.model.instanceScopes[name]
	if !ok {
		return &Scope{err: fmt.Errorf("%w: %q is not defined for %s model", ErrUndefinedScope, name, e.model.Name)}
	}
	return &Scope{def: def, owner: e, query: def.params(e)}
}

// Err returns the error carried by an accessor for an undefined scope.
func (s *Scope) Err() error {
	return s.err
}

// Query returns the bound parameters.
func (s *Scope) Query() Query {
	return s.query.Clone()
}

func (s *Scope) cache() *relationCache {
	if s.owner != nil {
		return &s.owner.cache
	}
	return &s.def.host.cache
}

func (s *Scope) manyToMany() bool {
	return s.def.relation != nil && s.def.relation.Kind == HasAndBelongsToMany
}

// Fetch runs the scope according to at most one call descriptor.
func (s *Scope) Fetch(ctx context.Context, calls ...Call) ([]*Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	call, err := singleCall(calls)
	if err != nil {
		return nil, err
	}
	cache := s.cache()
	if !call.refresh && !s.narrowed {
		if v, ok := cache.get(s.def.name); ok {
			items, _ := v.([]*Entity)
			return items, nil
		}
	}
	items, err := s.def.target.All(ctx, mergeQuery(call.cond, s.query))
	if err != nil {
		return nil, err
	}
	if call.kind != callConditions && !s.narrowed {
		cache.set(s.def.name, items)
	}
	return items, nil
}

// Get returns the cached result, fetching it on first access.
func (s *Scope) Get(ctx context.Context) ([]*Entity, error) {
	return s.Fetch(ctx)
}

// Refresh fetches and caches a fresh result.
func (s *Scope) Refresh(ctx context.Context) ([]*Entity, error) {
	return s.Fetch(ctx, Refresh(true))
}

// Where fetches with additional conditions; bound conditions take
// precedence on the same field.
func (s *Scope) Where(ctx context.Context, q Query) ([]*Entity, error) {
	return s.Fetch(ctx, Conditions(q))
}

// Sub narrows the scope with a named scope of its target model and returns
// the same accessor. A narrowed scope always fetches and never touches the
// cached result of the unnarrowed one.
func (s *Scope) Sub(name string) *Scope {
	if s.err != nil {
		return s
	}
	q, ok := s.def.target.subScopes[name]
	if !ok {
		s.err = fmt.Errorf("%w: %q is not defined for %s model", ErrUndefinedScope, name, s.def.target.Name)
		return s
	}
	s.query = mergeQuery(s.query, q)
	s.narrowed = true
	return s
}

// Build returns a new, unsaved entity of the scope's target carrying the
// bound equality conditions merged with data.
func (s *Scope) Build(data Fields) (*Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.manyToMany() {
		return s.def.relation.Target.New(data), nil
	}
	merged := plainConditions(s.query.Where)
	for k, v := range data {
		merged[k] = v
	}
	return s.def.target.New(merged), nil
}

// Create builds and saves an entity within the scope. For many-to-many
// scopes the saved target is then linked to the owner.
func (s *Scope) Create(ctx context.Context, data Fields) (*Entity, error) {
	e, err := s.Build(data)
	if err != nil {
		return nil, err
	}
	if err := e.Save(ctx); err != nil {
		return nil, err
	}
	if s.manyToMany() {
		if _, err := s.Add(ctx, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// DestroyAll destroys every matching entity one after another and returns
// the owner.
func (s *Scope) DestroyAll(ctx context.Context) (*Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	items, err := s.def.target.All(ctx, s.query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no %s records found to destroy", ErrNoMatches, s.def.name)
	}
	for _, e := range items {
		if err := e.Destroy(ctx); err != nil {
			return nil, err
		}
	}
	return s.owner, nil
}

// Find returns the entity with id when it belongs to the scope.
func (s *Scope) Find(ctx context.Context, id any) (*Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	target := s.def.target
	if s.manyToMany() {
		target = s.def.relation.Target
	}
	e, err := target.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	owned, err := s.owns(ctx, e)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, fmt.Errorf("%s %v in scope %s: %w", target.Name, id, s.def.name, ErrPermissionDenied)
	}
	return e, nil
}

func (s *Scope) owns(ctx context.Context, e *Entity) (bool, error) {
	if s.manyToMany() {
		rel := s.def.relation
		n, err := rel.Through.Count(ctx, Where{rel.ForeignKey: s.owner.ID(), rel.TargetKey: e.ID()})
		return n > 0, err
	}
	for k, v := range plainConditions(s.query.Where) {
		if Key(e.Get(k)) != Key(v) {
			return false, nil
		}
	}
	return true, nil
}

// Destroy destroys the entity with id after checking it belongs to the scope.
func (s *Scope) Destroy(ctx context.Context, id any) error {
	e, err := s.Find(ctx, id)
	if err != nil {
		return err
	}
	return e.Destroy(ctx)
}

// Add links target to the owner of a many-to-many scope and returns the
// join entity.
func (s *Scope) Add(ctx context.Context, target *Entity) (*Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.manyToMany() {
		return nil, fmt.Errorf("%w: scope %s is not many-to-many", ErrUsage, s.def.name)
	}
	rel := s.def.relation
	return rel.Through.Create(ctx, Fields{rel.ForeignKey: s.owner.ID(), rel.TargetKey: target.ID()})
}

// Remove unlinks target from the owner of a many-to-many scope.
func (s *Scope) Remove(ctx context.Context, target *Entity) error {
	if s.err != nil {
		return s.err
	}
	if !s.manyToMany() {
		return fmt.Errorf("%w: scope %s is not many-to-many", ErrUsage, s.def.name)
	}
	rel := s.def.relation
	_, err := rel.Through.DestroySome(ctx, Query{Where: Where{rel.ForeignKey: s.owner.ID(), rel.TargetKey: target.ID()}})
	return err
}
