// Package typed maps core entities onto Go structs. Struct fields are matched
// to model properties through their JSON names.
package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/tessera/pkg/core"
)

// Record is a typed view of an entity.
type Record[T any] struct {
	ID    any
	Data  T
	Saver Saver[T] // Active Record reference
}

// Saver decouples records from the repository that loaded them.
type Saver[T any] interface {
	Save(ctx context.Context, rec *Record[T]) error
}

// Save persists the record through its attached saver.
func (r *Record[T]) Save(ctx context.Context) error {
	if r.Saver == nil {
		return fmt.Errorf("record is detached (missing Saver)")
	}
	return r.Saver.Save(ctx, r)
}

// Repository wraps a core.Model to provide type-safe access.
type Repository[T any] struct {
	model *core.Model
}

// NewRepository creates a type-safe wrapper around model.
func NewRepository[T any](model *core.Model) *Repository[T] {
	return &Repository[T]{model: model}
}

// Model returns the wrapped model.
func (r *Repository[T]) Model() *core.Model {
	return r.model
}

// Save creates the record when it has no ID, otherwise updates or creates
// the entity with that ID. The assigned ID is written back.
func (r *Repository[T]) Save(ctx context.Context, rec *Record[T]) error {
	fields, err := toFields(rec.Data)
	if err != nil {
		return err
	}
	delete(fields, "id")

	var e *core.Entity
	if rec.ID == nil {
		e, err = r.model.Create(ctx, fields)
	} else {
		fields["id"] = rec.ID
		e, err = r.model.UpdateOrCreate(ctx, fields)
	}
	if err != nil {
		return err
	}

	rec.ID = e.ID()
	if rec.Saver == nil {
		rec.Saver = r
	}
	return nil
}

// Get retrieves a record and decodes it.
func (r *Repository[T]) Get(ctx context.Context, id any) (*Record[T], error) {
	e, err := r.model.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromEntity[T](e, r)
}

// List returns the records matching q.
func (r *Repository[T]) List(ctx context.Context, q core.Query) ([]*Record[T], error) {
	items, err := r.model.All(ctx, q)
	if err != nil {
		return nil, err
	}
	result := make([]*Record[T], 0, len(items))
	for _, e := range items {
		rec, err := FromEntity[T](e, r)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s %v: %w", r.model.Name, e.ID(), err)
		}
		result = append(result, rec)
	}
	return result, nil
}

// Delete removes the entity with id.
func (r *Repository[T]) Delete(ctx context.Context, id any) error {
	e, err := r.model.Find(ctx, id)
	if err != nil {
		return err
	}
	return e.Destroy(ctx)
}

// FromEntity decodes an entity, cached relations included, into a record.
func FromEntity[T any](e *core.Entity, saver Saver[T]) (*Record[T], error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("entity marshal failed: %w", err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal to target type failed: %w", err)
	}
	return &Record[T]{ID: e.ID(), Data: data, Saver: saver}, nil
}

func toFields(v any) (core.Fields, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var fields core.Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to convert typed data to fields: %w", err)
	}
	return fields, nil
}
