package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the Iterate batch size used when none is given.
const DefaultBatchSize = 1000

// Find returns the entity with the given id.
func (m *Model) Find(ctx context.Context, id any) (*Entity, error) {
	if err := m.schema.ready(ctx); err != nil {
		return nil, err
	}
	row, err := m.adapter().Find(ctx, m.Name, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s %v: %w", m.Name, id, ErrNotFound)
	}
	if IsBlank(row["id"]) {
		row = row.Clone()
		row["id"] = id
	}
	return m.load(row), nil
}

// FindOne returns the first entity matching q.
func (m *Model) FindOne(ctx context.Context, q Query) (*Entity, error) {
	q.Limit = 1
	items, err := m.All(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name, ErrNotFound)
	}
	return items[0], nil
}

// All returns the entities matching q. Relations named by q.Include are
// loaded into each entity's cache; with q.Collect the cached relation is
// returned instead of the entities themselves.
func (m *Model) All(ctx context.Context, q Query) ([]*Entity, error) {
	if err := m.schema.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := m.adapter().All(ctx, m.Name, m.queryToStorage(q))
	if err != nil {
		return nil, err
	}
	items := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		items = append(items, m.load(row))
	}
	if q.Include == nil {
		return items, nil
	}
	if err := m.include(ctx, items, q.Include); err != nil {
		return nil, err
	}
	if q.Collect != "" {
		return collect(items, q.Collect), nil
	}
	return items, nil
}

// collect replaces each entity by its cached relation.
func collect(items []*Entity, name string) []*Entity {
	out := make([]*Entity, 0, len(items))
	for _, e := range items {
		v, _ := e.cache.get(name)
		switch rel := v.(type) {
		case *Entity:
			if rel != nil {
				out = append(out, rel)
			}
		case []*Entity:
			out = append(out, rel...)
		}
	}
	return out
}

// Count returns how many records match where.
func (m *Model) Count(ctx context.Context, where Where) (int, error) {
	if err := m.schema.ready(ctx); err != nil {
		return 0, err
	}
	return m.adapter().Count(ctx, m.Name, m.whereToStorage(where))
}

// Exists reports whether a record with the given id is stored.
func (m *Model) Exists(ctx context.Context, id any) (bool, error) {
	if IsBlank(id) {
		return false, fmt.Errorf("%w: %s: exists requires an id", ErrUsage, m.Name)
	}
	if err := m.schema.ready(ctx); err != nil {
		return false, err
	}
	return m.adapter().Exists(ctx, m.Name, id)
}

// DestroySome destroys every entity matching q concurrently and returns how
// many were destroyed.
func (m *Model) DestroySome(ctx context.Context, q Query) (int, error) {
	items, err := m.All(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: no %s records found to destroy", ErrNoMatches, m.Name)
	}
	var g errgroup.Group
	for _, e := range items {
		g.Go(func() error {
			return e.Destroy(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(items), nil
}

// DestroyAll removes every record of the model. Hooks do not run.
func (m *Model) DestroyAll(ctx context.Context) error {
	if err := m.schema.ready(ctx); err != nil {
		return err
	}
	return m.adapter().DestroyAll(ctx, m.Name)
}

// IterateOptions controls Iterate. Query.Limit caps the number of visited
// entities; Query.Skip is ignored.
type IterateOptions struct {
	Query
	BatchSize  int
	Concurrent bool
}

// IterateFunc visits one entity. index counts from the first visited entity.
type IterateFunc func(ctx context.Context, e *Entity, index int) error

// Iterate visits the matching entities batch by batch. A batch is fetched
// only after the previous one was fully processed. It returns the index of
// the batch at which iteration stopped, which is the number of batches
// processed.
func (m *Model) Iterate(ctx context.Context, opts IterateOptions, fn IterateFunc) (int, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	limited := opts.Limit > 0
	remaining := opts.Limit

	batch := -1
	for {
		batch++
		q := opts.Query.Clone()
		q.Skip = batch * size
		q.Limit = size
		if limited && remaining < size {
			q.Limit = remaining
		}
		if q.Limit <= 0 {
			return batch, nil
		}
		items, err := m.All(ctx, q)
		if err != nil {
			return batch, err
		}
		if len(items) == 0 {
			return batch, nil
		}
		remaining -= len(items)

		offset := batch * size
		if opts.Concurrent {
			g, gctx := errgroup.WithContext(ctx)
			for i, e := range items {
				g.Go(func() error {
					return fn(gctx, e, offset+i)
				})
			}
			if err := g.Wait(); err != nil {
				return batch, err
			}
			continue
		}
		for i, e := range items {
			if err := fn(ctx, e, offset+i); err != nil {
				return batch, err
			}
		}
	}
}
