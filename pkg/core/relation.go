package core

import (
	"context"
	"fmt"
)

// RelationKind distinguishes relation shapes.
type RelationKind int

const (
	BelongsTo RelationKind = iota + 1
	HasMany
	HasAndBelongsToMany
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongsTo"
	case HasMany:
		return "hasMany"
	case HasAndBelongsToMany:
		return "hasAndBelongsToMany"
	}
	return fmt.Sprintf("relation(%d)", int(k))
}

// Relation describes a link between two models. It is immutable once declared.
type Relation struct {
	Name   string
	Kind   RelationKind
	Model  *Model
	Target *Model
	// ForeignKey lives on Model for BelongsTo, on Target for HasMany and on
	// Through for HasAndBelongsToMany, where it points at Model.
	ForeignKey string
	// TargetKey is the Through field pointing at Target.
	TargetKey string
	Through   *Model
}

// RelationOptions overrides relation defaults.
type RelationOptions struct {
	ForeignKey string
	TargetKey  string
	Through    *Model
}

func relationOptions(opts []RelationOptions) RelationOptions {
	if len(opts) == 0 {
		return RelationOptions{}
	}
	return opts[0]
}

// HasMany declares that target records point at m through a foreign key,
// "<model>Id" by default. The relation is reachable as an instance scope.
func (m *Model) HasMany(name string, target *Model, opts ...RelationOptions) *Relation {
	o := relationOptions(opts)
	if name == "" {
		name = lowerFirst(plural(target.Name))
	}
	m.checkName(name)
	fk := o.ForeignKey
	if fk == "" {
		fk = lowerFirst(m.Name) + "Id"
	}
	target.ensureProperty(fk)

	rel := &Relation{Name: name, Kind: HasMany, Model: m, Target: target, ForeignKey: fk}
	m.relations[name] = rel
	m.instanceScopes[name] = &scopeDef{
		name:     name,
		host:     m,
		target:   target,
		relation: rel,
		params: func(owner *Entity) Query {
			return Query{Where: Where{fk: owner.ID()}}
		},
	}
	return rel
}

// BelongsTo declares that m points at target through a foreign key,
// "<name>Id" by default. The related entity is reachable with Entity.Related.
func (m *Model) BelongsTo(name string, target *Model, opts ...RelationOptions) *Relation {
	o := relationOptions(opts)
	if name == "" {
		name = lowerFirst(target.Name)
	}
	m.checkName(name)
	fk := o.ForeignKey
	if fk == "" {
		fk = name + "Id"
	}
	m.ensureProperty(fk)

	rel := &Relation{Name: name, Kind: BelongsTo, Model: m, Target: target, ForeignKey: fk}
	m.relations[name] = rel
	return rel
}

// HasAndBelongsToMany declares a many-to-many link through a join model,
// "<Model><Target>" by default, defined on demand with belongs-to relations
// towards both sides.
func (m *Model) HasAndBelongsToMany(name string, target *Model, opts ...RelationOptions) *Relation {
	o := relationOptions(opts)
	if name == "" {
		name = lowerFirst(plural(target.Name))
	}
	m.checkName(name)

	through := o.Through
	if through == nil {
		joinName := m.Name + target.Name
		var ok bool
		if through, ok = m.schema.Model(joinName); !ok {
			through = m.schema.Define(joinName, nil)
		}
	}
	fk := o.ForeignKey
	if fk == "" {
		fk = lowerFirst(m.Name) + "Id"
	}
	tk := o.TargetKey
	if tk == "" {
		tk = lowerFirst(target.Name) + "Id"
	}
	targetRel := lowerFirst(target.Name)
	if _, ok := through.relations[targetRel]; !ok {
		through.BelongsTo(targetRel, target, RelationOptions{ForeignKey: tk})
	}
	if hostRel := lowerFirst(m.Name); hostRel != targetRel {
		if _, ok := through.relations[hostRel]; !ok {
			through.BelongsTo(hostRel, m, RelationOptions{ForeignKey: fk})
		}
	}

	rel := &Relation{
		Name:       name,
		Kind:       HasAndBelongsToMany,
		Model:      m,
		Target:     target,
		ForeignKey: fk,
		TargetKey:  tk,
		Through:    through,
	}
	m.relations[name] = rel
	m.instanceScopes[name] = &scopeDef{
		name:     name,
		host:     m,
		target:   through,
		relation: rel,
		params: func(owner *Entity) Query {
			return Query{Where: Where{fk: owner.ID()}, Include: targetRel, Collect: targetRel}
		},
	}
	return rel
}

// Related returns the entity a belongs-to relation points at, from the cache
// when present. Refresh(true) forces a fetch.
func (e *Entity) Related(ctx context.Context, name string, calls ...Call) (*Entity, error) {
	rel, ok := e.model.relations[name]
	if !ok || rel.Kind != BelongsTo {
		return nil, fmt.Errorf("%w: relation %q is not defined for %s model", ErrUndefinedRelation, name, e.model.Name)
	}
	call, err := singleCall(calls)
	if err != nil {
		return nil, err
	}
	if call.kind == callConditions {
		return nil, fmt.Errorf("%w: %s.%s does not accept conditions", ErrUsage, e.model.Name, name)
	}
	if !call.refresh {
		if v, ok := e.cache.get(name); ok {
			if one, _ := v.(*Entity); one != nil {
				return one, nil
			}
			return nil, fmt.Errorf("%s.%s: %w", e.model.Name, name, ErrNotFound)
		}
	}
	fk := e.Get(rel.ForeignKey)
	if IsBlank(fk) {
		e.cache.set(name, nil)
		return nil, fmt.Errorf("%s.%s: %w", e.model.Name, name, ErrNotFound)
	}
	found, err := rel.Target.Find(ctx, fk)
	if err != nil {
		return nil, err
	}
	e.cache.set(name, found)
	return found, nil
}
