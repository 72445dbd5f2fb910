package core

import (
	"context"
	"fmt"
	"sort"
)

type includeItem struct {
	name   string
	nested any
}

// normalizeInclude flattens an include specification into (relation, nested)
// pairs. Accepted forms: "rel", []string, []any mixing both forms, and
// map[string]any / Include of rel to nested spec.
func normalizeInclude(spec any) ([]includeItem, error) {
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case string:
		return []includeItem{{name: s}}, nil
	case []string:
		out := make([]includeItem, 0, len(s))
		for _, name := range s {
			out = append(out, includeItem{name: name})
		}
		return out, nil
	case []any:
		var out []includeItem
		for _, el := range s {
			items, err := normalizeInclude(el)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		}
		return out, nil
	case Include:
		return normalizeInclude(map[string]any(s))
	case map[string]any:
		names := make([]string, 0, len(s))
		for name := range s {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]includeItem, 0, len(names))
		for _, name := range names {
			out = append(out, includeItem{name: name, nested: s[name]})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported include specification %T", ErrUsage, spec)
}

// include loads the named relations of parents with one query per relation
// and stores them in each parent's relation cache.
func (m *Model) include(ctx context.Context, parents []*Entity, spec any) error {
	items, err := normalizeInclude(spec)
	if err != nil {
		return err
	}
	rels := make([]*Relation, len(items))
	for i, it := range items {
		rel, ok := m.relations[it.name]
		if !ok {
			return fmt.Errorf("%w: relation %q is not defined for %s model", ErrUndefinedRelation, it.name, m.Name)
		}
		rels[i] = rel
	}
	if len(parents) == 0 {
		return nil
	}
	for i, rel := range rels {
		children, err := rel.preload(ctx, parents)
		if err != nil {
			return fmt.Errorf("include %s.%s: %w", m.Name, rel.Name, err)
		}
		if items[i].nested != nil && len(children) > 0 {
			if err := rel.Target.include(ctx, children, items[i].nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// preload fetches the relation for every parent and returns the fetched
// children.
func (r *Relation) preload(ctx context.Context, parents []*Entity) ([]*Entity, error) {
	switch r.Kind {
	case BelongsTo:
		return r.preloadOwners(ctx, parents)
	case HasMany:
		return r.preloadChildren(ctx, parents)
	case HasAndBelongsToMany:
		return r.preloadLinked(ctx, parents)
	}
	return nil, fmt.Errorf("%w: unknown relation kind %v", ErrUsage, r.Kind)
}

func (r *Relation) preloadOwners(ctx context.Context, parents []*Entity) ([]*Entity, error) {
	keys := uniqueKeys(parents, func(p *Entity) any { return p.Get(r.ForeignKey) })
	var owners []*Entity
	if len(keys) > 0 {
		var err error
		if owners, err = r.Target.All(ctx, Query{Where: Where{"id": In(keys...)}}); err != nil {
			return nil, err
		}
	}
	byID := make(map[string]*Entity, len(owners))
	for _, o := range owners {
		byID[Key(o.ID())] = o
	}
	for _, p := range parents {
		if owner, ok := byID[Key(p.Get(r.ForeignKey))]; ok {
			p.cache.set(r.Name, owner)
		} else {
			p.cache.set(r.Name, nil)
		}
	}
	return owners, nil
}

func (r *Relation) preloadChildren(ctx context.Context, parents []*Entity) ([]*Entity, error) {
	keys := uniqueKeys(parents, (*Entity).ID)
	var children []*Entity
	if len(keys) > 0 {
		var err error
		if children, err = r.Target.All(ctx, Query{Where: Where{r.ForeignKey: In(keys...)}}); err != nil {
			return nil, err
		}
	}
	groups := make(map[string][]*Entity)
	for _, c := range children {
		k := Key(c.Get(r.ForeignKey))
		groups[k] = append(groups[k], c)
	}
	for _, p := range parents {
		group := groups[Key(p.ID())]
		if group == nil {
			group = []*Entity{}
		}
		p.cache.set(r.Name, group)
	}
	return children, nil
}

func (r *Relation) preloadLinked(ctx context.Context, parents []*Entity) ([]*Entity, error) {
	keys := uniqueKeys(parents, (*Entity).ID)
	var links, targets []*Entity
	var err error
	if len(keys) > 0 {
		if links, err = r.Through.All(ctx, Query{Where: Where{r.ForeignKey: In(keys...)}}); err != nil {
			return nil, err
		}
	}
	targetKeys := uniqueKeys(links, func(l *Entity) any { return l.Get(r.TargetKey) })
	if len(targetKeys) > 0 {
		if targets, err = r.Target.All(ctx, Query{Where: Where{"id": In(targetKeys...)}}); err != nil {
			return nil, err
		}
	}
	byID := make(map[string]*Entity, len(targets))
	for _, t := range targets {
		byID[Key(t.ID())] = t
	}
	groups := make(map[string][]*Entity)
	for _, l := range links {
		t, ok := byID[Key(l.Get(r.TargetKey))]
		if !ok {
			continue
		}
		k := Key(l.Get(r.ForeignKey))
		groups[k] = append(groups[k], t)
	}
	for _, p := range parents {
		group := groups[Key(p.ID())]
		if group == nil {
			group = []*Entity{}
		}
		p.cache.set(r.Name, group)
	}
	return targets, nil
}

// uniqueKeys returns the distinct non-blank values of key over items, in
// first-seen order.
func uniqueKeys(items []*Entity, key func(*Entity) any) []any {
	seen := make(map[string]bool, len(items))
	var out []any
	for _, it := range items {
		v := key(it)
		if IsBlank(v) {
			continue
		}
		k := Key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
