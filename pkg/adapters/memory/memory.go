// Package memory implements core.Adapter in process memory. Records are kept
// per model in insertion order and identified by sequential int64 ids.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/tessera/pkg/adapters/filter"
	"github.com/aretw0/tessera/pkg/core"
)

type table struct {
	rows   map[string]core.Fields
	order  []string
	nextID int64
}

func newTable() *table {
	return &table{rows: make(map[string]core.Fields), nextID: 1}
}

func (t *table) put(row core.Fields) {
	key := core.Key(row["id"])
	if _, exists := t.rows[key]; !exists {
		t.order = append(t.order, key)
	}
	t.rows[key] = row
}

func (t *table) remove(key string) {
	if _, exists := t.rows[key]; !exists {
		return
	}
	delete(t.rows, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *table) list() []core.Fields {
	out := make([]core.Fields, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.rows[key])
	}
	return out
}

// Adapter keeps every model's records in memory.
type Adapter struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// New returns an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{tables: make(map[string]*table)}
}

func (a *Adapter) table(model string) *table {
	t, ok := a.tables[model]
	if !ok {
		t = newTable()
		a.tables[model] = t
	}
	return t
}

// Connect implements core.Connector.
func (a *Adapter) Connect(ctx context.Context) error {
	return ctx.Err()
}

// Create implements core.Adapter.
func (a *Adapter) Create(ctx context.Context, model string, data core.Fields) (any, core.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.table(model)
	row := data.Clone()
	id, given := row["id"]
	if !given || core.IsBlank(id) {
		id = t.nextID
		t.nextID++
	} else if n, ok := id.(int64); ok && n >= t.nextID {
		t.nextID = n + 1
	}
	row["id"] = id
	t.put(row)
	return id, nil, nil
}

// Save implements core.Adapter. A missing record is inserted.
func (a *Adapter) Save(ctx context.Context, model string, data core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if core.IsBlank(data["id"]) {
		return fmt.Errorf("save %s: missing id", model)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table(model).put(data.Clone())
	return nil
}

// UpdateAttributes implements core.Adapter.
func (a *Adapter) UpdateAttributes(ctx context.Context, model string, id any, data core.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.table(model)
	row, ok := t.rows[core.Key(id)]
	if !ok {
		return fmt.Errorf("update %s %v: %w", model, id, core.ErrNotFound)
	}
	merged := row.Clone()
	for k, v := range data {
		merged[k] = v
	}
	merged["id"] = row["id"]
	t.put(merged)
	return nil
}

// Update implements core.Updater.
func (a *Adapter) Update(ctx context.Context, model string, where core.Where, data core.Fields) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.table(model)
	n := 0
	for _, row := range t.list() {
		ok, err := filter.Match(row, where)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		merged := row.Clone()
		for k, v := range data {
			if k != "id" {
				merged[k] = v
			}
		}
		t.put(merged)
		n++
	}
	return n, nil
}

// Destroy implements core.Adapter.
func (a *Adapter) Destroy(ctx context.Context, model string, id any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table(model).remove(core.Key(id))
	return nil
}

// DestroyAll implements core.Adapter. The id sequence is kept.
func (a *Adapter) DestroyAll(ctx context.Context, model string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.table(model)
	t.rows = make(map[string]core.Fields)
	t.order = nil
	return nil
}

// Find implements core.Adapter.
func (a *Adapter) Find(ctx context.Context, model string, id any) (core.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tables[model]
	if !ok {
		return nil, nil
	}
	row, ok := t.rows[core.Key(id)]
	if !ok {
		return nil, nil
	}
	return row.Clone(), nil
}

// All implements core.Adapter.
func (a *Adapter) All(ctx context.Context, model string, q core.Query) ([]core.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tables[model]
	if !ok {
		return nil, nil
	}
	rows, err := filter.Apply(t.list(), q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	out := make([]core.Fields, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out, nil
}

// Count implements core.Adapter.
func (a *Adapter) Count(ctx context.Context, model string, where core.Where) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tables[model]
	if !ok {
		return 0, nil
	}
	n := 0
	for _, row := range t.list() {
		ok, err := filter.Match(row, where)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", model, err)
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Exists implements core.Adapter.
func (a *Adapter) Exists(ctx context.Context, model string, id any) (bool, error) {
	row, err := a.Find(ctx, model, id)
	return row != nil, err
}

var (
	_ core.Adapter   = (*Adapter)(nil)
	_ core.Updater   = (*Adapter)(nil)
	_ core.Connector = (*Adapter)(nil)
)
