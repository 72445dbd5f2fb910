package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// SaveOption tunes a single create or save call.
type SaveOption func(*saveOptions)

type saveOptions struct {
	validate bool
}

// SkipValidation persists without running the validator.
func SkipValidation() SaveOption {
	return func(o *saveOptions) {
		o.validate = false
	}
}

func newSaveOptions(opts []SaveOption) saveOptions {
	o := saveOptions{validate: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (m *Model) adapter() Adapter {
	return m.schema.adapter
}

// Create builds an entity from data and persists it.
func (m *Model) Create(ctx context.Context, data Fields, opts ...SaveOption) (*Entity, error) {
	if err := m.schema.ready(ctx); err != nil {
		return nil, err
	}
	e := m.New(data)
	if err := m.create(ctx, e, newSaveOptions(opts)); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateMany creates every element concurrently. The returned entities are
// aligned with data whether or not they were persisted; on failure the error
// is a *BatchError aligned the same way.
func (m *Model) CreateMany(ctx context.Context, data []Fields, opts ...SaveOption) ([]*Entity, error) {
	if err := m.schema.ready(ctx); err != nil {
		return nil, err
	}
	o := newSaveOptions(opts)
	out := make([]*Entity, len(data))
	errs := make([]error, len(data))

	if m.schema.logger != nil {
		m.schema.logger.Debug("batch create", "model", m.Name, "size", len(data))
	}

	var wg sync.WaitGroup
	for i, d := range data {
		out[i] = m.New(d)
		wg.Go(func() {
			errs[i] = m.create(ctx, out[i], o)
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return out, &BatchError{Errors: errs}
		}
	}
	return out, nil
}

func (m *Model) create(ctx context.Context, e *Entity, o saveOptions) error {
	if o.validate {
		if err := e.validate(ctx); err != nil {
			return err
		}
	}
	return m.hooks.Trigger(ctx, EventCreate, e, e.ToObject(true), func(ctx context.Context) error {
		return m.hooks.Trigger(ctx, EventSave, e, e.ToObject(true), func(ctx context.Context) error {
			data := m.toStorage(e.ToObject(true))
			if isNewID(data["id"]) {
				delete(data, "id")
			}
			id, stored, err := m.adapter().Create(ctx, m.Name, data)
			if err != nil {
				return err
			}
			if id != nil {
				e.data["id"] = canonical(id)
			}
			for name, v := range m.fromStorage(stored) {
				e.Set(name, v)
			}
			e.snapshot()
			return nil
		})
	})
}

// Save persists the entity: new entities are created, others are written
// in full.
func (e *Entity) Save(ctx context.Context, opts ...SaveOption) error {
	m := e.model
	if err := m.schema.ready(ctx); err != nil {
		return err
	}
	o := newSaveOptions(opts)
	if e.IsNew() {
		return m.create(ctx, e, o)
	}
	if o.validate {
		if err := e.validate(ctx); err != nil {
			return err
		}
	}
	return m.hooks.Trigger(ctx, EventSave, e, e.ToObject(true), func(ctx context.Context) error {
		return m.hooks.Trigger(ctx, EventUpdate, e, e.ToObject(true), func(ctx context.Context) error {
			if err := m.adapter().Save(ctx, m.Name, m.toStorage(e.ToObject(true))); err != nil {
				return err
			}
			e.snapshot()
			return nil
		})
	})
}

// UpdateAttributes applies data, validates the merged entity and writes only
// the given fields. Other unsaved modifications stay pending.
func (e *Entity) UpdateAttributes(ctx context.Context, data Fields) error {
	m := e.model
	if err := m.schema.ready(ctx); err != nil {
		return err
	}
	if e.IsNew() {
		return fmt.Errorf("%w: %s: update of an unsaved entity", ErrUsage, m.Name)
	}
	names := make([]string, 0, len(data))
	for name, v := range data {
		e.Set(name, v)
		names = append(names, name)
	}
	if err := e.validate(ctx); err != nil {
		return err
	}
	return m.hooks.Trigger(ctx, EventSave, e, data, func(ctx context.Context) error {
		return m.hooks.Trigger(ctx, EventUpdate, e, data, func(ctx context.Context) error {
			partial := make(Fields, len(names))
			for _, name := range names {
				if rel, ok := m.relations[name]; ok && rel.Kind == BelongsTo {
					name = rel.ForeignKey
				}
				partial[name] = e.data[name]
			}
			if err := m.adapter().UpdateAttributes(ctx, m.Name, e.ID(), m.toStorage(partial)); err != nil {
				return err
			}
			e.advance(names...)
			return nil
		})
	})
}

// UpdateAttribute is UpdateAttributes for a single field.
func (e *Entity) UpdateAttribute(ctx context.Context, name string, v any) error {
	return e.UpdateAttributes(ctx, Fields{name: v})
}

// Destroy removes the entity from storage. Post-destroy hooks receive the
// values the entity had before removal.
func (e *Entity) Destroy(ctx context.Context) error {
	m := e.model
	if err := m.schema.ready(ctx); err != nil {
		return err
	}
	if e.IsNew() {
		return fmt.Errorf("%w: %s: destroy of an unsaved entity", ErrUsage, m.Name)
	}
	return m.hooks.Trigger(ctx, EventDestroy, e, e.ToObject(false), func(ctx context.Context) error {
		return m.adapter().Destroy(ctx, m.Name, e.ID())
	})
}

// Reload fetches a fresh copy of the entity.
func (e *Entity) Reload(ctx context.Context) (*Entity, error) {
	if e.IsNew() {
		return nil, fmt.Errorf("%w: %s: reload of an unsaved entity", ErrUsage, e.model.Name)
	}
	return e.model.Find(ctx, e.ID())
}

// Update writes data to every record matching where and returns how many
// were changed. Hooks and validation do not run.
func (m *Model) Update(ctx context.Context, where Where, data Fields) (int, error) {
	if err := m.schema.ready(ctx); err != nil {
		return 0, err
	}
	u, ok := m.adapter().(Updater)
	if !ok {
		return 0, fmt.Errorf("%w: adapter does not support bulk update", ErrUsage)
	}
	return u.Update(ctx, m.Name, m.whereToStorage(where), m.toStorage(m.coerceFields(data)))
}

// UpdateOrCreate updates the record identified by data["id"], creating it
// when it does not exist.
func (m *Model) UpdateOrCreate(ctx context.Context, data Fields) (*Entity, error) {
	if err := m.schema.ready(ctx); err != nil {
		return nil, err
	}
	if isNewID(data["id"]) {
		return m.Create(ctx, data)
	}
	if up, ok := m.adapter().(Upserter); ok {
		e := m.New(data)
		if err := e.validate(ctx); err != nil {
			return nil, err
		}
		row, err := up.UpdateOrCreate(ctx, m.Name, m.toStorage(e.ToObject(true)))
		if err != nil {
			return nil, err
		}
		if row == nil {
			e.snapshot()
			return e, nil
		}
		return m.load(row), nil
	}

	found, err := m.Find(ctx, data["id"])
	if errors.Is(err, ErrNotFound) {
		e := m.New(data)
		if err := m.create(ctx, e, newSaveOptions(nil)); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	rest := data.Clone()
	delete(rest, "id")
	if err := found.UpdateAttributes(ctx, rest); err != nil {
		return nil, err
	}
	return found, nil
}

// FindOrCreate returns the first record matching q, creating one from data
// when none does. A nil data creates from the plain conditions of q.
func (m *Model) FindOrCreate(ctx context.Context, q Query, data Fields) (*Entity, error) {
	found, err := m.FindOne(ctx, q)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if data == nil {
		data = plainConditions(q.Where)
	}
	return m.Create(ctx, data)
}

// plainConditions keeps the equality conditions of w.
func plainConditions(w Where) Fields {
	out := make(Fields, len(w))
	for k, v := range w {
		switch v.(type) {
		case Ops, map[string]any:
			continue
		}
		out[k] = v
	}
	return out
}
